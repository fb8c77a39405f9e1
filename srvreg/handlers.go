package srvreg

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/lineops/shiftline/engine"
	"github.com/lineops/shiftline/metrics"
	"github.com/lineops/shiftline/repository/models"
	"github.com/lineops/shiftline/session"
)

// liveMetrics is the preview computed for every session read and patch. The
// same metrics functions run again at commit time for the persisted
// aggregates, so both views always agree.
type liveMetrics struct {
	OpeningTimeMin    int     `json:"opening_time_min"`
	LostTimeMin       int     `json:"lost_time_min"`
	AvailableTimeMin  int     `json:"available_time_min"`
	OpeningTimeText   string  `json:"opening_time_text"`
	LostTimeText      string  `json:"lost_time_text"`
	AvailableTimeText string  `json:"available_time_text"`
	TheoreticalLength float64 `json:"theoretical_length"`
	YieldPercent      float64 `json:"yield_percent"`
	EfficiencyPercent float64 `json:"efficiency_percent"`
}

func computeLiveMetrics(draft *session.Draft) liveMetrics {
	start, end := "", ""
	if draft.StartTime != nil {
		start = *draft.StartTime
	}
	if draft.EndTime != nil {
		end = *draft.EndTime
	}
	opening := metrics.OpeningTime(start, end)
	lost := metrics.LostTime(draft.LostTimeDurations())
	available := metrics.AvailableTime(opening, lost)

	beltSpeed := 0.0
	if draft.BeltSpeed != nil {
		beltSpeed = *draft.BeltSpeed
	}
	okLength := 0.0
	if draft.OkLength != nil {
		okLength = *draft.OkLength
	}
	theoretical := metrics.LengthFromTime(available, beltSpeed)

	return liveMetrics{
		OpeningTimeMin:    opening,
		LostTimeMin:       lost,
		AvailableTimeMin:  available,
		OpeningTimeText:   metrics.FormatDuration(opening),
		LostTimeText:      metrics.FormatDuration(lost),
		AvailableTimeText: metrics.FormatDuration(available),
		TheoreticalLength: theoretical,
		YieldPercent:      metrics.YieldPercent(okLength, theoretical),
		EfficiencyPercent: metrics.EfficiencyPercent(available, opening, okLength, theoretical),
	}
}

// InfoHandler returns line service information
func (sr *ServiceRegistry) InfoHandler(req *Request) (*Response, error) {
	info := map[string]interface{}{
		"line_id": sr.lineID,
		"type":    "Production Line Shift Tracker",
		"status":  "active",
	}
	return jsonResponse(http.StatusOK, info), nil
}

// StartSessionHandler mints a session key and registers an empty draft
func (sr *ServiceRegistry) StartSessionHandler(req *Request) (*Response, error) {
	sessionKey := fmt.Sprintf("SES-%s", uuid.New().String()[:8])
	draft := sr.drafts.Create(sessionKey)

	return jsonResponse(http.StatusCreated, map[string]interface{}{
		"message":     "Session created successfully",
		"session_key": sessionKey,
		"draft":       draft,
	}), nil
}

// GetSessionHandler returns the current draft with live metrics
func (sr *ServiceRegistry) GetSessionHandler(req *Request) (*Response, error) {
	sessionKey, ok := pathPart(req.Path, 2, 3)
	if !ok {
		return badRequest("Invalid path format"), nil
	}

	draft, found := sr.drafts.Get(sessionKey)
	if !found {
		return jsonError(http.StatusNotFound, fmt.Sprintf("No draft exists for session %s", sessionKey)), nil
	}

	return jsonResponse(http.StatusOK, map[string]interface{}{
		"session_key": sessionKey,
		"draft":       draft,
		"metrics":     computeLiveMetrics(draft),
	}), nil
}

// PatchSessionHandler merges posted fields into the draft and returns the
// updated draft with live metrics. Unknown keys are rejected rather than
// merged silently.
func (sr *ServiceRegistry) PatchSessionHandler(req *Request) (*Response, error) {
	sessionKey, ok := pathPart(req.Path, 2, 3)
	if !ok {
		return badRequest("Invalid path format"), nil
	}

	decoder := json.NewDecoder(bytes.NewReader([]byte(req.Body)))
	decoder.DisallowUnknownFields()
	var patch session.Draft
	if err := decoder.Decode(&patch); err != nil {
		return badRequest(fmt.Sprintf("Invalid patch document: %s", err.Error())), nil
	}

	if patch.Vacation != nil {
		switch *patch.Vacation {
		case models.VacationMorning, models.VacationAfternoon, models.VacationNight, models.VacationDay:
		default:
			return jsonError(http.StatusUnprocessableEntity,
				fmt.Sprintf("Unknown vacation %q", *patch.Vacation)), nil
		}
	}

	draft := sr.drafts.Patch(sessionKey, &patch)

	return jsonResponse(http.StatusOK, map[string]interface{}{
		"session_key": sessionKey,
		"draft":       draft,
		"metrics":     computeLiveMetrics(draft),
	}), nil
}

// ClearSessionHandler resets the draft; durable records are untouched
func (sr *ServiceRegistry) ClearSessionHandler(req *Request) (*Response, error) {
	sessionKey, ok := pathPart(req.Path, 2, 3)
	if !ok {
		return badRequest("Invalid path format"), nil
	}

	if _, found := sr.drafts.Get(sessionKey); !found {
		return jsonError(http.StatusNotFound, fmt.Sprintf("No draft exists for session %s", sessionKey)), nil
	}
	sr.drafts.Clear(sessionKey)

	return jsonResponse(http.StatusOK, map[string]interface{}{
		"message":     "Session draft cleared",
		"session_key": sessionKey,
	}), nil
}

// SaveRollHandler persists the roll currently filled in under the draft
func (sr *ServiceRegistry) SaveRollHandler(req *Request) (*Response, error) {
	sessionKey, ok := pathPart(req.Path, 2, 4)
	if !ok {
		return badRequest("Invalid path format"), nil
	}

	var body struct {
		Status      string `json:"status"`
		Destination string `json:"destination"`
	}
	if err := json.Unmarshal([]byte(req.Body), &body); err != nil {
		return badRequest(fmt.Sprintf("Invalid request body: %s", err.Error())), nil
	}

	roll, draft, err := sr.recorder.RecordRoll(sessionKey, body.Status, body.Destination)
	if err != nil {
		return engineErrorResponse(err), nil
	}

	return jsonResponse(http.StatusCreated, map[string]interface{}{
		"message": "Roll recorded successfully",
		"roll_id": roll.ID,
		"status":  roll.Status,
		"length":  roll.Length,
		"draft":   draft,
	}), nil
}

// CommitShiftHandler runs the commit transaction and resets the draft for the
// next shift
func (sr *ServiceRegistry) CommitShiftHandler(req *Request) (*Response, error) {
	sessionKey, ok := pathPart(req.Path, 2, 4)
	if !ok {
		return badRequest("Invalid path format"), nil
	}

	var form engine.CommitForm
	if req.Body != "" {
		if err := json.Unmarshal([]byte(req.Body), &form); err != nil {
			return badRequest(fmt.Sprintf("Invalid request body: %s", err.Error())), nil
		}
	}

	draft, found := sr.drafts.Get(sessionKey)
	if !found {
		return jsonError(http.StatusNotFound, fmt.Sprintf("No draft exists for session %s", sessionKey)), nil
	}

	shift, err := sr.committer.Commit(sessionKey, form)
	if err != nil {
		return engineErrorResponse(err), nil
	}

	nextDraft := session.DeriveNextDraft(shift, draft, time.Now())
	sr.drafts.Put(sessionKey, nextDraft)

	sr.logger.Info("shift committed",
		zap.String("session", sessionKey),
		zap.String("shift", shift.ID))

	return jsonResponse(http.StatusCreated, map[string]interface{}{
		"message":  "Shift saved successfully",
		"shift_id": shift.ID,
		"shift": map[string]interface{}{
			"total_length":          shift.TotalLength,
			"ok_length":             shift.OkLength,
			"nok_length":            shift.NokLength,
			"raw_waste_length":      shift.RawWasteLength,
			"opening_time_min":      shift.OpeningTimeMin,
			"lost_time_min":         shift.LostTimeMin,
			"availability_time_min": shift.AvailabilityTimeMin,
			"avg_thickness_left":    shift.AvgThicknessLeft,
			"avg_thickness_right":   shift.AvgThicknessRight,
			"avg_grammage":          shift.AvgGrammage,
		},
		"draft": nextDraft,
	}), nil
}

// CheckShiftHandler is the shift existence probe
func (sr *ServiceRegistry) CheckShiftHandler(req *Request) (*Response, error) {
	shiftID, ok := pathPart(req.Path, 2, 4)
	if !ok {
		return badRequest("Invalid path format"), nil
	}

	exists, rerr := sr.store.ShiftExists(shiftID)
	if rerr != nil {
		return jsonError(http.StatusInternalServerError, rerr.Message), nil
	}

	return jsonResponse(http.StatusOK, map[string]interface{}{
		"shift_id": shiftID,
		"exists":   exists,
	}), nil
}

// CheckRollHandler is the roll existence probe
func (sr *ServiceRegistry) CheckRollHandler(req *Request) (*Response, error) {
	rollID, ok := pathPart(req.Path, 2, 4)
	if !ok {
		return badRequest("Invalid path format"), nil
	}

	exists, rerr := sr.store.RollExists(rollID)
	if rerr != nil {
		return jsonError(http.StatusInternalServerError, rerr.Message), nil
	}

	return jsonResponse(http.StatusOK, map[string]interface{}{
		"roll_id": rollID,
		"exists":  exists,
	}), nil
}

// pathPart extracts path segment index from a path expected to have wantLen
// segments ("" before the leading slash counts).
func pathPart(path string, index, wantLen int) (string, bool) {
	parts := strings.Split(path, "/")
	if len(parts) != wantLen || parts[index] == "" {
		return "", false
	}
	return parts[index], true
}

// engineErrorResponse maps the engine error taxonomy onto response codes.
func engineErrorResponse(err error) *Response {
	var engineErr *engine.Error
	if !errors.As(err, &engineErr) {
		return jsonError(http.StatusInternalServerError, err.Error())
	}

	body := map[string]interface{}{
		"error": engineErr.Message,
		"kind":  engineErr.Kind.String(),
	}
	var status int
	switch engineErr.Kind {
	case engine.KindValidation:
		status = http.StatusUnprocessableEntity
		body["field"] = engineErr.Field
	case engine.KindDuplicate:
		status = http.StatusConflict
		body["id"] = engineErr.ID
	case engine.KindNotFound:
		status = http.StatusNotFound
	case engine.KindPartialCommit:
		status = http.StatusInternalServerError
		body["shift_id"] = engineErr.ID
		body["step"] = engineErr.Step
		body["retry"] = "resume"
	default:
		status = http.StatusInternalServerError
	}
	return jsonResponse(status, body)
}

func jsonResponse(status int, payload interface{}) *Response {
	body, _ := json.Marshal(payload)
	return &Response{
		StatusCode: status,
		Headers:    defaultHeaders,
		Body:       string(body),
	}
}

func jsonError(status int, message string) *Response {
	return jsonResponse(status, map[string]string{"error": message})
}

func badRequest(message string) *Response {
	return jsonError(http.StatusBadRequest, message)
}
