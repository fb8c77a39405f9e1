// Package engine holds the session-to-record reconciliation logic: roll
// recording against an open session and the transactional shift commit.
package engine

import (
	"fmt"
	"math"
	"time"

	"go.uber.org/zap"

	"github.com/lineops/shiftline/repository"
	"github.com/lineops/shiftline/repository/models"
	"github.com/lineops/shiftline/session"
)

// UnknownCuttingOrder is the fallback order reference for a non-conforming
// roll recorded while no cutting order is set in the draft.
const UnknownCuttingOrder = "UnknownCuttingOrder"

// RollRecorder persists completed rolls as orphans of their session and
// applies the per-roll side effects to the draft.
type RollRecorder struct {
	store  Store
	drafts *session.Store
	logger *zap.Logger
	clock  func() time.Time
}

// NewRollRecorder creates a roll recorder.
func NewRollRecorder(store Store, drafts *session.Store, logger *zap.Logger) *RollRecorder {
	return &RollRecorder{
		store:  store,
		drafts: drafts,
		logger: logger,
		clock:  time.Now,
	}
}

// ConformingRollID builds the identifier of a conforming roll from its
// fabrication order and sequence number.
func ConformingRollID(orderNumber string, sequence int) string {
	return fmt.Sprintf("%s_%03d", orderNumber, sequence)
}

// NonConformingRollID builds the identifier of a non-conforming roll from the
// cutting order and the recording instant.
func NonConformingRollID(cuttingOrder string, now time.Time) string {
	if cuttingOrder == "" {
		cuttingOrder = UnknownCuttingOrder
	}
	return fmt.Sprintf("%s_%s_%s", cuttingOrder, now.Format("020106"), now.Format("1504"))
}

// RecordRoll persists the roll currently filled in under the session's draft.
// The roll is written as an orphan (no shift yet, tagged with the session key);
// the owning shift links it at commit. Returns the persisted roll and the
// draft after its side effects.
func (rr *RollRecorder) RecordRoll(sessionKey, status, destination string) (*models.Roll, *session.Draft, error) {
	draft, ok := rr.drafts.Get(sessionKey)
	if !ok {
		return nil, nil, notFoundError(sessionKey)
	}

	if status != models.StatusConforming && status != models.StatusNonConforming {
		return nil, nil, validationError(sessionKey, "status")
	}
	switch destination {
	case models.DestinationProduction, models.DestinationCutting, models.DestinationWaste:
	default:
		return nil, nil, validationError(sessionKey, "destination")
	}

	if draft.RollNumber == nil {
		return nil, nil, validationError(sessionKey, "roll_number")
	}
	if draft.Roll == nil || draft.Roll.Length == nil || *draft.Roll.Length <= 0 {
		return nil, nil, validationError(sessionKey, "length")
	}
	if draft.Roll.TubeMass == nil {
		return nil, nil, validationError(sessionKey, "tube_mass")
	}
	if draft.Roll.TotalMass == nil {
		return nil, nil, validationError(sessionKey, "total_mass")
	}

	// Conforming rolls attach to the current production order, non-conforming
	// rolls to the cutting order. Both come from the draft, never from global
	// state.
	var rollID, orderNumber string
	if status == models.StatusConforming {
		if draft.ProductionOrder == nil || *draft.ProductionOrder == "" {
			return nil, nil, validationError(sessionKey, "production_order")
		}
		orderNumber = *draft.ProductionOrder
		rollID = ConformingRollID(orderNumber, *draft.RollNumber)
	} else {
		orderNumber = UnknownCuttingOrder
		if draft.CuttingOrder != nil && *draft.CuttingOrder != "" {
			orderNumber = *draft.CuttingOrder
		}
		rollID = NonConformingRollID(orderNumber, rr.clock())
	}

	exists, rerr := rr.store.RollExists(rollID)
	if rerr != nil {
		return nil, nil, internalError(sessionKey, rerr)
	}
	if exists {
		return nil, nil, duplicateError(sessionKey, rollID)
	}

	length := *draft.Roll.Length
	tubeMass := *draft.Roll.TubeMass
	totalMass := *draft.Roll.TotalMass
	netMass := totalMass - tubeMass

	roll := &models.Roll{
		ID:          rollID,
		SessionKey:  &sessionKey,
		RollNumber:  *draft.RollNumber,
		Status:      status,
		Destination: destination,
		OrderNumber: orderNumber,
		Length:      length,
		TubeMass:    tubeMass,
		TotalMass:   totalMass,
		NetMass:     netMass,
		Grammage:    grammage(netMass, length),
	}
	if draft.Roll.Comment != nil {
		roll.Comment = *draft.Roll.Comment
	}

	for _, d := range draft.Roll.Defects {
		roll.Defects = append(roll.Defects, models.RollDefect{
			DefectType:    d.Type,
			MeterPosition: d.MeterPosition,
			Side:          d.Side,
		})
	}
	for _, t := range draft.Roll.Thickness {
		roll.Measurements = append(roll.Measurements, models.ThicknessMeasurement{
			Side:    t.Side,
			Point:   t.Point,
			Value:   t.Value,
			CatchUp: t.CatchUp,
		})
	}
	roll.AvgThicknessLeft = averageThickness(roll.Measurements, "left")
	roll.AvgThicknessRight = averageThickness(roll.Measurements, "right")

	if rerr := rr.store.CreateRoll(roll); rerr != nil {
		if rerr.Code == repository.CodeDuplicate {
			return nil, nil, duplicateError(sessionKey, rollID)
		}
		return nil, nil, internalError(sessionKey, rerr)
	}

	rr.applyDraftSideEffects(draft, roll)
	rr.drafts.Put(sessionKey, draft)

	rr.logger.Info("roll recorded",
		zap.String("session", sessionKey),
		zap.String("roll", rollID),
		zap.String("status", status),
		zap.Float64("length", length))

	return roll, draft, nil
}

// applyDraftSideEffects prepares the draft for the next roll. The counter
// advances only for conforming rolls so a failed roll can be retried under the
// same number; the next tube mass carries into the new roll's tube mass and
// the target length pre-fills its length.
func (rr *RollRecorder) applyDraftSideEffects(draft *session.Draft, roll *models.Roll) {
	addTotal(&draft.TotalLength, roll.Length)
	if roll.Status == models.StatusConforming {
		addTotal(&draft.OkLength, roll.Length)
		next := *draft.RollNumber + 1
		draft.RollNumber = &next
	} else {
		addTotal(&draft.NokLength, roll.Length)
	}

	nextRoll := &session.RollDraft{}
	if draft.Roll.NextTubeMass != nil {
		tube := *draft.Roll.NextTubeMass
		nextRoll.TubeMass = &tube
	}
	if draft.TargetLength != nil {
		length := *draft.TargetLength
		nextRoll.Length = &length
	}
	draft.Roll = nextRoll
}

func addTotal(total **float64, delta float64) {
	if *total == nil {
		*total = new(float64)
	}
	**total += delta
}

// grammage is net mass per unit length, rounded to two decimals.
func grammage(netMass, length float64) float64 {
	if length <= 0 {
		return 0
	}
	return math.Round(netMass/length*100) / 100
}

// averageThickness is the mean of the side's normal measurements; catch-up
// readings do not contribute.
func averageThickness(measurements []models.ThicknessMeasurement, side string) float64 {
	var sum float64
	var n int
	for _, m := range measurements {
		if m.CatchUp || m.Side != side {
			continue
		}
		sum += m.Value
		n++
	}
	if n == 0 {
		return 0
	}
	return sum / float64(n)
}
