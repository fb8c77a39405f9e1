package engine

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/lineops/shiftline/repository/models"
	"github.com/lineops/shiftline/session"
)

func newTestRecorder(store Store) (*RollRecorder, *session.Store) {
	drafts := session.NewStore(zap.NewNop())
	recorder := NewRollRecorder(store, drafts, zap.NewNop())
	recorder.clock = func() time.Time {
		return time.Date(2026, 8, 27, 14, 5, 0, 0, time.UTC)
	}
	return recorder, drafts
}

func rollReadyDraft() *session.Draft {
	order := "FO-4711"
	cutting := "CO-88"
	rollNumber := 7
	length := 1200.0
	tube := 12.5
	total := 262.5
	target := 1200.0
	return &session.Draft{
		ProductionOrder: &order,
		CuttingOrder:    &cutting,
		RollNumber:      &rollNumber,
		TargetLength:    &target,
		Roll: &session.RollDraft{
			Length:    &length,
			TubeMass:  &tube,
			TotalMass: &total,
		},
	}
}

func kindOf(t *testing.T, err error) *Error {
	t.Helper()
	var engineErr *Error
	require.True(t, errors.As(err, &engineErr), "expected *engine.Error, got %v", err)
	return engineErr
}

func TestRecordRollNoDraft(t *testing.T) {
	recorder, _ := newTestRecorder(newFakeStore())

	_, _, err := recorder.RecordRoll("missing", models.StatusConforming, models.DestinationProduction)
	assert.Equal(t, KindNotFound, kindOf(t, err).Kind)
}

func TestRecordRollValidation(t *testing.T) {
	store := newFakeStore()

	cases := []struct {
		name      string
		mutate    func(*session.Draft)
		wantField string
	}{
		{"missing roll number", func(d *session.Draft) { d.RollNumber = nil }, "roll_number"},
		{"missing length", func(d *session.Draft) { d.Roll.Length = nil }, "length"},
		{"missing tube mass", func(d *session.Draft) { d.Roll.TubeMass = nil }, "tube_mass"},
		{"missing total mass", func(d *session.Draft) { d.Roll.TotalMass = nil }, "total_mass"},
		{"missing production order", func(d *session.Draft) { d.ProductionOrder = nil }, "production_order"},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			recorder, drafts := newTestRecorder(store)
			draft := rollReadyDraft()
			c.mutate(draft)
			drafts.Put("abc", draft)

			_, _, err := recorder.RecordRoll("abc", models.StatusConforming, models.DestinationProduction)
			engineErr := kindOf(t, err)
			assert.Equal(t, KindValidation, engineErr.Kind)
			assert.Equal(t, c.wantField, engineErr.Field)
		})
	}

	// nothing was written
	assert.Empty(t, store.rolls)
}

func TestRecordRollRejectsBadStatusAndDestination(t *testing.T) {
	recorder, drafts := newTestRecorder(newFakeStore())
	drafts.Put("abc", rollReadyDraft())

	_, _, err := recorder.RecordRoll("abc", "Suspicious", models.DestinationProduction)
	assert.Equal(t, "status", kindOf(t, err).Field)

	_, _, err = recorder.RecordRoll("abc", models.StatusConforming, "Elsewhere")
	assert.Equal(t, "destination", kindOf(t, err).Field)
}

func TestRecordRollConformingIdentifier(t *testing.T) {
	store := newFakeStore()
	recorder, drafts := newTestRecorder(store)
	drafts.Put("abc", rollReadyDraft())

	roll, _, err := recorder.RecordRoll("abc", models.StatusConforming, models.DestinationProduction)
	require.NoError(t, err)

	assert.Equal(t, "FO-4711_007", roll.ID)
	assert.Equal(t, "FO-4711", roll.OrderNumber)

	// recorded as an orphan: session-keyed, no shift
	require.NotNil(t, roll.SessionKey)
	assert.Equal(t, "abc", *roll.SessionKey)
	assert.Nil(t, roll.ShiftID)
}

func TestRecordRollNonConformingIdentifier(t *testing.T) {
	t.Run("with cutting order", func(t *testing.T) {
		recorder, drafts := newTestRecorder(newFakeStore())
		drafts.Put("abc", rollReadyDraft())

		roll, _, err := recorder.RecordRoll("abc", models.StatusNonConforming, models.DestinationCutting)
		require.NoError(t, err)
		assert.Equal(t, "CO-88_270826_1405", roll.ID)
	})

	t.Run("falls back without cutting order", func(t *testing.T) {
		recorder, drafts := newTestRecorder(newFakeStore())
		draft := rollReadyDraft()
		draft.CuttingOrder = nil
		drafts.Put("abc", draft)

		roll, _, err := recorder.RecordRoll("abc", models.StatusNonConforming, models.DestinationCutting)
		require.NoError(t, err)
		assert.Equal(t, "UnknownCuttingOrder_270826_1405", roll.ID)
	})
}

func TestRecordRollDuplicateIdentifier(t *testing.T) {
	store := newFakeStore()
	store.rolls["FO-4711_007"] = &models.Roll{ID: "FO-4711_007"}

	recorder, drafts := newTestRecorder(store)
	drafts.Put("abc", rollReadyDraft())

	_, _, err := recorder.RecordRoll("abc", models.StatusConforming, models.DestinationProduction)
	engineErr := kindOf(t, err)
	assert.Equal(t, KindDuplicate, engineErr.Kind)
	assert.Equal(t, "FO-4711_007", engineErr.ID)
}

func TestRecordRollMassAndGrammage(t *testing.T) {
	recorder, drafts := newTestRecorder(newFakeStore())
	drafts.Put("abc", rollReadyDraft())

	roll, _, err := recorder.RecordRoll("abc", models.StatusConforming, models.DestinationProduction)
	require.NoError(t, err)

	assert.Equal(t, 250.0, roll.NetMass) // 262.5 - 12.5
	// 250 kg over 1200 m, rounded to two decimals
	assert.Equal(t, 0.21, roll.Grammage)
}

func TestRecordRollThicknessAverages(t *testing.T) {
	recorder, drafts := newTestRecorder(newFakeStore())
	draft := rollReadyDraft()
	draft.Roll.Thickness = []session.Thickness{
		{Side: "left", Point: 1, Value: 24.0},
		{Side: "left", Point: 2, Value: 26.0},
		{Side: "left", Point: 3, Value: 99.0, CatchUp: true}, // excluded
		{Side: "right", Point: 1, Value: 25.0},
	}
	drafts.Put("abc", draft)

	roll, _, err := recorder.RecordRoll("abc", models.StatusConforming, models.DestinationProduction)
	require.NoError(t, err)

	assert.Equal(t, 25.0, roll.AvgThicknessLeft)
	assert.Equal(t, 25.0, roll.AvgThicknessRight)
	assert.Len(t, roll.Measurements, 4)
}

func TestRecordRollDraftSideEffects(t *testing.T) {
	t.Run("conforming advances the counter", func(t *testing.T) {
		recorder, drafts := newTestRecorder(newFakeStore())
		draft := rollReadyDraft()
		nextTube := 13.0
		draft.Roll.NextTubeMass = &nextTube
		drafts.Put("abc", draft)

		_, updated, err := recorder.RecordRoll("abc", models.StatusConforming, models.DestinationProduction)
		require.NoError(t, err)

		assert.Equal(t, 8, *updated.RollNumber)

		// next tube mass carried forward, target length pre-filled
		require.NotNil(t, updated.Roll)
		assert.Equal(t, 13.0, *updated.Roll.TubeMass)
		assert.Equal(t, 1200.0, *updated.Roll.Length)
		assert.Nil(t, updated.Roll.TotalMass)
		assert.Nil(t, updated.Roll.NextTubeMass)
		assert.Empty(t, updated.Roll.Defects)
		assert.Empty(t, updated.Roll.Thickness)

		// running totals
		assert.Equal(t, 1200.0, *updated.TotalLength)
		assert.Equal(t, 1200.0, *updated.OkLength)
		assert.Nil(t, updated.NokLength)
	})

	t.Run("non-conforming keeps the number for the retry", func(t *testing.T) {
		recorder, drafts := newTestRecorder(newFakeStore())
		drafts.Put("abc", rollReadyDraft())

		_, updated, err := recorder.RecordRoll("abc", models.StatusNonConforming, models.DestinationWaste)
		require.NoError(t, err)

		assert.Equal(t, 7, *updated.RollNumber)
		assert.Equal(t, 1200.0, *updated.NokLength)
		assert.Nil(t, updated.OkLength)
	})
}
