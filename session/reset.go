package session

import (
	"time"

	"github.com/lineops/shiftline/repository/models"
)

// carryRule classifies what happens to a draft field when the draft is reset
// after a successful commit.
type carryRule int

const (
	clearField  carryRule = iota // reset to zero value
	carryField                   // copied into the next draft unchanged
	deriveField                  // recomputed from the committed shift and the clock
)

// fieldPolicy lists every Draft field exactly once. DeriveNextDraft is written
// against this table; the reset test checks the table covers the struct so a
// new field cannot slip through unclassified.
var fieldPolicy = map[string]carryRule{
	"OperatorID":          clearField,
	"Date":                deriveField,
	"Vacation":            deriveField,
	"StartTime":           deriveField,
	"EndTime":             deriveField,
	"StartedAtBeginning":  deriveField,
	"MachineRunningAtEnd": clearField,
	"StartMeterReading":   deriveField,
	"EndMeterReading":     clearField,
	"Comment":             clearField,
	"ChecklistResponses":  clearField,
	"ChecklistSignature":  clearField,
	"QCLeftReadings":      clearField,
	"QCRightReadings":     clearField,
	"SampleGiven":         clearField,
	"LostTimes":           clearField,
	"Roll":                deriveField,
	"RollNumber":          carryField,
	"ProductionOrder":     carryField,
	"CuttingOrder":        carryField,
	"TargetLength":        carryField,
	"BeltSpeed":           carryField,
	"ProductionActive":    carryField,
	"CuttingActive":       carryField,
	"TotalLength":         clearField,
	"OkLength":            clearField,
	"NokLength":           clearField,
	"WasteLength":         clearField,
}

type window struct {
	Start string
	End   string
}

// nextVacation is the shift rotation: every vacation has exactly one successor.
var nextVacation = map[string]string{
	models.VacationMorning:   models.VacationAfternoon,
	models.VacationAfternoon: models.VacationNight,
	models.VacationNight:     models.VacationMorning,
	models.VacationDay:       models.VacationMorning,
}

// vacationWindow is each vacation's default start/end time pair.
var vacationWindow = map[string]window{
	models.VacationMorning:   {"04:00", "12:00"},
	models.VacationAfternoon: {"12:00", "20:00"},
	models.VacationNight:     {"20:00", "04:00"},
	models.VacationDay:       {"08:00", "16:00"},
}

// DeriveNextDraft builds the draft for the shift that follows a committed one.
// Sticky fields carry over per fieldPolicy, the vacation rotates with its
// default window, and machine state crosses the boundary only when the line
// was still running at commit.
func DeriveNextDraft(committed *models.Shift, prev *Draft, now time.Time) *Draft {
	next := &Draft{}
	if prev != nil {
		next.RollNumber = prev.RollNumber
		next.ProductionOrder = prev.ProductionOrder
		next.CuttingOrder = prev.CuttingOrder
		next.TargetLength = prev.TargetLength
		next.BeltSpeed = prev.BeltSpeed
		next.ProductionActive = prev.ProductionActive
		next.CuttingActive = prev.CuttingActive
		next.Roll = rollSkeleton(prev.Roll, prev.TargetLength)
	}

	vacation, ok := nextVacation[committed.Vacation]
	if !ok {
		vacation = models.VacationMorning
	}
	w := vacationWindow[vacation]
	next.Vacation = &vacation
	next.StartTime = strPtr(w.Start)
	next.EndTime = strPtr(w.End)

	// A night shift's successor starts on the next calendar day.
	date := now
	if committed.Vacation == models.VacationNight {
		date = now.AddDate(0, 0, 1)
	}
	next.Date = strPtr(date.Format("2006-01-02"))

	// Only place machine state crosses the shift boundary.
	if committed.MachineRunningAtEnd {
		next.StartedAtBeginning = boolPtr(true)
		if committed.EndMeterReading != nil {
			reading := *committed.EndMeterReading
			next.StartMeterReading = &reading
		}
	}

	return next
}

// rollSkeleton keeps the thickness grid's slots for the next roll but clears
// every measured value, the defect list, masses, and the comment. The target
// length pre-fills the new roll's length.
func rollSkeleton(prev *RollDraft, targetLength *float64) *RollDraft {
	if prev == nil && targetLength == nil {
		return nil
	}
	skeleton := &RollDraft{}
	if targetLength != nil {
		length := *targetLength
		skeleton.Length = &length
	}
	if prev != nil && len(prev.Thickness) > 0 {
		slots := make([]Thickness, 0, len(prev.Thickness))
		for _, t := range prev.Thickness {
			slots = append(slots, Thickness{Side: t.Side, Point: t.Point})
		}
		skeleton.Thickness = slots
	}
	return skeleton
}

func strPtr(s string) *string { return &s }
func boolPtr(b bool) *bool    { return &b }
