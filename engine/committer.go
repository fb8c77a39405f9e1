package engine

import (
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/lineops/shiftline/metrics"
	"github.com/lineops/shiftline/repository"
	"github.com/lineops/shiftline/repository/models"
	"github.com/lineops/shiftline/session"
)

// CommitForm carries the fields posted with the commit request. Empty fields
// fall back to the draft's values.
type CommitForm struct {
	Date       string `json:"date,omitempty"`
	OperatorID string `json:"operator_id,omitempty"`
	Vacation   string `json:"vacation,omitempty"`
	StartTime  string `json:"start_time,omitempty"`
	EndTime    string `json:"end_time,omitempty"`
}

// ShiftCommitter turns a session draft into a durable shift: it creates the
// shift row, re-parents the session's orphans onto it, recomputes every
// derived aggregate, and persists the dependent records captured only in the
// draft.
type ShiftCommitter struct {
	store  Store
	drafts *session.Store
	logger *zap.Logger
	clock  func() time.Time

	// Commits for the same session must not race each other past the
	// duplicate check, so each session key gets a single-flight lock.
	mu    sync.Mutex
	locks map[string]*sessionLock
}

// sessionLock is a single-flight mutex counting the commits holding or
// waiting on it, so the map entry can be dropped once the last one releases.
type sessionLock struct {
	sync.Mutex
	waiters int
}

// NewShiftCommitter creates a shift committer.
func NewShiftCommitter(store Store, drafts *session.Store, logger *zap.Logger) *ShiftCommitter {
	return &ShiftCommitter{
		store:  store,
		drafts: drafts,
		logger: logger,
		clock:  time.Now,
		locks:  make(map[string]*sessionLock),
	}
}

// ShiftID derives the deterministic shift identifier from its date, operator
// name, and vacation.
func ShiftID(date time.Time, operatorName, vacation string) string {
	return date.Format("020106") + "_" + strings.ReplaceAll(operatorName, " ", "") + "_" + vacation
}

func (sc *ShiftCommitter) acquireSession(sessionKey string) *sessionLock {
	sc.mu.Lock()
	lock, ok := sc.locks[sessionKey]
	if !ok {
		lock = &sessionLock{}
		sc.locks[sessionKey] = lock
	}
	lock.waiters++
	sc.mu.Unlock()
	lock.Lock()
	return lock
}

func (sc *ShiftCommitter) releaseSession(sessionKey string, lock *sessionLock) {
	lock.Unlock()
	sc.mu.Lock()
	lock.waiters--
	if lock.waiters == 0 {
		delete(sc.locks, sessionKey)
	}
	sc.mu.Unlock()
}

// Commit runs the commit transaction for the session. All preconditions are
// checked before any write. Once the shift row exists, every later step is
// individually re-runnable: a failure is reported as a partial commit and a
// retry resumes linking against the existing shift instead of re-creating it.
func (sc *ShiftCommitter) Commit(sessionKey string, form CommitForm) (*models.Shift, error) {
	lock := sc.acquireSession(sessionKey)
	defer sc.releaseSession(sessionKey, lock)

	draft, ok := sc.drafts.Get(sessionKey)
	if !ok {
		return nil, notFoundError(sessionKey)
	}

	// Step 1: preconditions, fail fast with no writes.
	operatorID := fallback(form.OperatorID, draft.OperatorID)
	if operatorID == "" {
		return nil, validationError(sessionKey, "operator_id")
	}
	dateStr := fallback(form.Date, draft.Date)
	date, err := time.Parse("2006-01-02", dateStr)
	if err != nil {
		return nil, validationError(sessionKey, "date")
	}
	vacation := fallback(form.Vacation, draft.Vacation)
	switch vacation {
	case models.VacationMorning, models.VacationAfternoon, models.VacationNight, models.VacationDay:
	default:
		return nil, validationError(sessionKey, "vacation")
	}
	startTime := fallback(form.StartTime, draft.StartTime)
	endTime := fallback(form.EndTime, draft.EndTime)

	if len(draft.QCLeftReadings) == 0 {
		return nil, validationError(sessionKey, "qc_left_readings")
	}
	if len(draft.QCRightReadings) == 0 {
		return nil, validationError(sessionKey, "qc_right_readings")
	}
	if draft.ChecklistSignature == nil || *draft.ChecklistSignature == "" {
		return nil, validationError(sessionKey, "checklist_signature")
	}

	operator, rerr := sc.store.GetOperator(operatorID)
	if rerr != nil {
		if rerr.Code == repository.CodeNotFound {
			return nil, validationError(sessionKey, "operator_id")
		}
		return nil, internalError(sessionKey, rerr)
	}

	shiftID := ShiftID(date, operator.Name, vacation)

	// Step 2: provisional totals from the session's orphans.
	orphanRolls, rerr := sc.store.OrphanRolls(sessionKey)
	if rerr != nil {
		return nil, internalError(sessionKey, rerr)
	}
	orphanEntries, rerr := sc.store.OrphanLostTimeEntries(sessionKey)
	if rerr != nil {
		return nil, internalError(sessionKey, rerr)
	}

	exists, rerr := sc.store.ShiftExists(shiftID)
	if rerr != nil {
		return nil, internalError(sessionKey, rerr)
	}
	resume := false
	if exists {
		// A shift still in the linking state is a previous partial commit:
		// resume its remaining steps instead of failing.
		existing, rerr := sc.store.GetShift(shiftID)
		if rerr != nil {
			return nil, internalError(sessionKey, rerr)
		}
		if existing.Status == models.ShiftStatusComplete {
			return nil, duplicateError(sessionKey, shiftID)
		}
		resume = true
		sc.logger.Warn("shift exists in linking state, resuming commit",
			zap.String("session", sessionKey),
			zap.String("shift", shiftID))
	}

	totalLength, okLength, nokLength := sumLengths(orphanRolls)

	// Step 3: persist the shift with the provisional totals.
	if !resume {
		signedAt := sc.clock()
		shift := &models.Shift{
			ID:                 shiftID,
			OperatorID:         &operator.ID,
			Date:               dateStr,
			Vacation:           vacation,
			StartTime:          startTime,
			EndTime:            endTime,
			Status:             models.ShiftStatusLinking,
			OpeningTimeMin:     metrics.OpeningTime(startTime, endTime),
			TotalLength:        totalLength,
			OkLength:           okLength,
			NokLength:          nokLength,
			ChecklistSignature: *draft.ChecklistSignature,
			ChecklistSignedAt:  &signedAt,
		}
		if draft.StartedAtBeginning != nil {
			shift.StartedAtBeginning = *draft.StartedAtBeginning
		}
		if draft.MachineRunningAtEnd != nil {
			shift.MachineRunningAtEnd = *draft.MachineRunningAtEnd
		}
		shift.StartMeterReading = draft.StartMeterReading
		shift.EndMeterReading = draft.EndMeterReading
		if draft.Comment != nil {
			shift.Comment = *draft.Comment
		}

		if rerr := sc.store.CreateShift(shift); rerr != nil {
			if rerr.Code == repository.CodeDuplicate {
				return nil, duplicateError(sessionKey, shiftID)
			}
			return nil, internalError(sessionKey, rerr)
		}
	}

	// Step 4: re-parent the session's orphans in one bulk operation.
	if rerr := sc.store.LinkSessionOrphans(sessionKey, shiftID); rerr != nil {
		return nil, partialCommitError(sessionKey, shiftID, "link-orphans", rerr)
	}

	// Step 5: recompute aggregates from the rolls now linked. This supersedes
	// the provisional totals of step 2.
	if err := sc.recomputeRollAggregates(shiftID, draft); err != nil {
		return nil, partialCommitError(sessionKey, shiftID, "recompute-aggregates", err)
	}

	// Step 6: persist dependent records captured only in the draft.
	if err := sc.persistDependents(shiftID, draft); err != nil {
		return nil, partialCommitError(sessionKey, shiftID, "persist-dependents", err)
	}

	// Step 7: time aggregates, after every lost-time entry is linked.
	if err := sc.recomputeTimeAggregates(shiftID, startTime, endTime); err != nil {
		return nil, partialCommitError(sessionKey, shiftID, "recompute-time", err)
	}

	if rerr := sc.store.MarkShiftComplete(shiftID); rerr != nil {
		return nil, partialCommitError(sessionKey, shiftID, "mark-complete", rerr)
	}

	shift, rerr := sc.store.GetShift(shiftID)
	if rerr != nil {
		return nil, partialCommitError(sessionKey, shiftID, "reload-shift", rerr)
	}

	sc.logger.Info("shift committed",
		zap.String("session", sessionKey),
		zap.String("shift", shiftID),
		zap.Int("rolls", len(orphanRolls)),
		zap.Int("lost_time_entries", len(orphanEntries)),
		zap.Bool("resumed", resume))

	return shift, nil
}

// recomputeRollAggregates re-derives every roll-based aggregate by summing the
// linked rolls directly, guarding against double-count or omission.
func (sc *ShiftCommitter) recomputeRollAggregates(shiftID string, draft *session.Draft) error {
	rolls, rerr := sc.store.LinkedRolls(shiftID)
	if rerr != nil {
		return rerr
	}

	totalLength, okLength, nokLength := sumLengths(rolls)

	// A start-of-shift meter reading is footage already on the counter; it
	// comes off exactly one bucket, chosen by the first roll's status, and
	// never drives a bucket negative.
	if draft.StartMeterReading != nil && *draft.StartMeterReading > 0 && len(rolls) > 0 {
		reading := *draft.StartMeterReading
		if rolls[0].Status == models.StatusConforming {
			okLength = clampZero(okLength - reading)
		} else {
			nokLength = clampZero(nokLength - reading)
		}
	}

	rawWaste := clampZero(totalLength - (okLength + nokLength))

	var thickLeftSum, thickRightSum float64
	var thickN int
	var grammageSum float64
	var grammageN int
	for _, roll := range rolls {
		if roll.AvgThicknessLeft != 0 || roll.AvgThicknessRight != 0 {
			thickLeftSum += roll.AvgThicknessLeft
			thickRightSum += roll.AvgThicknessRight
			thickN++
		}
		if roll.NetMass > 0 && roll.Length > 0 {
			grammageSum += roll.Grammage
			grammageN++
		}
	}

	fields := map[string]interface{}{
		"total_length":     totalLength,
		"ok_length":        okLength,
		"nok_length":       nokLength,
		"raw_waste_length": rawWaste,
	}
	if thickN > 0 {
		fields["avg_thickness_left"] = thickLeftSum / float64(thickN)
		fields["avg_thickness_right"] = thickRightSum / float64(thickN)
	}
	if grammageN > 0 {
		fields["avg_grammage"] = grammageSum / float64(grammageN)
	}

	if rerr := sc.store.UpdateShiftAggregates(shiftID, fields); rerr != nil {
		return rerr
	}
	return nil
}

// persistDependents writes the quality-control sample, checklist responses,
// and draft-only lost-time entries. Every write is guarded so the step stays
// idempotent across commit retries.
func (sc *ShiftCommitter) persistDependents(shiftID string, draft *session.Draft) error {
	hasQC, rerr := sc.store.HasQualityControl(shiftID)
	if rerr != nil {
		return rerr
	}
	if !hasQC {
		qc := &models.QualityControl{
			ID:       "QC-" + uuid.New().String()[:8],
			ShiftID:  shiftID,
			AvgLeft:  mean(draft.QCLeftReadings),
			AvgRight: mean(draft.QCRightReadings),
		}
		if draft.SampleGiven != nil && *draft.SampleGiven {
			now := sc.clock()
			qc.SampleGiven = true
			qc.SampleGivenAt = &now
		}
		if rerr := sc.store.CreateQualityControl(qc); rerr != nil {
			return rerr
		}
	}

	hasChecklist, rerr := sc.store.HasChecklistResponses(shiftID)
	if rerr != nil {
		return rerr
	}
	if !hasChecklist && len(draft.ChecklistResponses) > 0 {
		items := make([]string, 0, len(draft.ChecklistResponses))
		for item := range draft.ChecklistResponses {
			items = append(items, item)
		}
		sort.Strings(items)
		responses := make([]models.ChecklistResponse, 0, len(items))
		for _, item := range items {
			responses = append(responses, models.ChecklistResponse{
				ShiftID:  shiftID,
				Item:     item,
				Response: draft.ChecklistResponses[item],
			})
		}
		if rerr := sc.store.CreateChecklistResponses(responses); rerr != nil {
			return rerr
		}
	}

	// Draft lost times were never persisted as orphans; write them linked,
	// under deterministic ids so a resume can tell whether they already made
	// it in. Orphan entries carry LT- prefixed ids and never match.
	if len(draft.LostTimes) > 0 {
		linked, rerr := sc.store.LinkedLostTimeEntries(shiftID)
		if rerr != nil {
			return rerr
		}
		written := false
		for _, entry := range linked {
			if strings.HasPrefix(entry.ID, shiftID+"_LT") {
				written = true
				break
			}
		}
		if !written {
			entries := make([]models.LostTimeEntry, 0, len(draft.LostTimes))
			for i, lt := range draft.LostTimes {
				entries = append(entries, models.LostTimeEntry{
					ID:          draftLostTimeID(shiftID, i),
					ShiftID:     &shiftID,
					Reason:      lt.Reason,
					DurationMin: lt.DurationMin,
					Comment:     lt.Comment,
				})
			}
			if rerr := sc.store.CreateLostTimeEntries(entries); rerr != nil {
				return rerr
			}
		}
	}

	return nil
}

// draftLostTimeID derives the stable identifier of a draft lost-time entry
// within its shift.
func draftLostTimeID(shiftID string, index int) string {
	return fmt.Sprintf("%s_LT%02d", shiftID, index+1)
}

// recomputeTimeAggregates derives lost and available time from the linked
// lost-time entries. Must run after persistDependents or it is stale.
func (sc *ShiftCommitter) recomputeTimeAggregates(shiftID, startTime, endTime string) error {
	entries, rerr := sc.store.LinkedLostTimeEntries(shiftID)
	if rerr != nil {
		return rerr
	}
	durations := make([]int, 0, len(entries))
	for _, e := range entries {
		durations = append(durations, e.DurationMin)
	}

	opening := metrics.OpeningTime(startTime, endTime)
	lost := metrics.LostTime(durations)
	available := metrics.AvailableTime(opening, lost)

	return errOrNil(sc.store.UpdateShiftAggregates(shiftID, map[string]interface{}{
		"opening_time_min":      opening,
		"lost_time_min":         lost,
		"availability_time_min": available,
	}))
}

func sumLengths(rolls []models.Roll) (total, ok, nok float64) {
	for _, roll := range rolls {
		total += roll.Length
		if roll.Status == models.StatusConforming {
			ok += roll.Length
		} else {
			nok += roll.Length
		}
	}
	return total, ok, nok
}

func fallback(formValue string, draftValue *string) string {
	if formValue != "" {
		return formValue
	}
	if draftValue != nil {
		return *draftValue
	}
	return ""
}

func mean(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	var sum float64
	for _, v := range values {
		sum += v
	}
	return sum / float64(len(values))
}

func clampZero(v float64) float64 {
	if v < 0 {
		return 0
	}
	return v
}

// errOrNil lets a typed nil *RepositoryError flow back as a plain nil error.
func errOrNil(rerr *repository.RepositoryError) error {
	if rerr != nil {
		return rerr
	}
	return nil
}
