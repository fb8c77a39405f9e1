// Package session holds the transient per-session draft of a production shift
// and derives the next draft after a successful commit.
package session

// LostTime is one lost-production stretch recorded in the draft.
type LostTime struct {
	Reason      string `json:"reason"`
	DurationMin int    `json:"duration_min"`
	Comment     string `json:"comment,omitempty"`
}

// Defect is one observed defect on the roll currently being filled in.
type Defect struct {
	Type          string  `json:"type"`
	MeterPosition float64 `json:"meter_position"`
	Side          string  `json:"side"`
}

// Thickness is one slot of the roll's thickness grid. CatchUp readings do not
// count toward the roll's average.
type Thickness struct {
	Side    string  `json:"side"`
	Point   int     `json:"point"`
	Value   float64 `json:"value"`
	CatchUp bool    `json:"catch_up,omitempty"`
}

// RollDraft is the roll currently being filled in.
type RollDraft struct {
	Length       *float64    `json:"length,omitempty"`
	TubeMass     *float64    `json:"tube_mass,omitempty"`
	TotalMass    *float64    `json:"total_mass,omitempty"`
	NextTubeMass *float64    `json:"next_tube_mass,omitempty"`
	Comment      *string     `json:"comment,omitempty"`
	Defects      []Defect    `json:"defects,omitempty"`
	Thickness    []Thickness `json:"thickness,omitempty"`
}

// Draft is the mutable in-progress state of one shift, keyed by session.
// Every field is optional until commit-time validation requires it.
type Draft struct {
	OperatorID *string `json:"operator_id,omitempty"`
	Date       *string `json:"date,omitempty"` // YYYY-MM-DD
	Vacation   *string `json:"vacation,omitempty"`
	StartTime  *string `json:"start_time,omitempty"` // HH:MM
	EndTime    *string `json:"end_time,omitempty"`

	StartedAtBeginning  *bool    `json:"started_at_beginning,omitempty"`
	MachineRunningAtEnd *bool    `json:"machine_running_at_end,omitempty"`
	StartMeterReading   *float64 `json:"start_meter_reading,omitempty"`
	EndMeterReading     *float64 `json:"end_meter_reading,omitempty"`

	Comment *string `json:"comment,omitempty"`

	ChecklistResponses map[string]string `json:"checklist_responses,omitempty"`
	ChecklistSignature *string           `json:"checklist_signature,omitempty"`

	QCLeftReadings  []float64 `json:"qc_left_readings,omitempty"`
	QCRightReadings []float64 `json:"qc_right_readings,omitempty"`
	SampleGiven     *bool     `json:"sample_given,omitempty"`

	LostTimes []LostTime `json:"lost_times,omitempty"`

	Roll *RollDraft `json:"roll,omitempty"`

	// Running roll counter; conforming rolls consume a number, non-conforming
	// rolls keep it for the retry.
	RollNumber *int `json:"roll_number,omitempty"`

	ProductionOrder  *string  `json:"production_order,omitempty"`
	CuttingOrder     *string  `json:"cutting_order,omitempty"`
	TargetLength     *float64 `json:"target_length,omitempty"`
	BeltSpeed        *float64 `json:"belt_speed,omitempty"`
	ProductionActive *bool    `json:"production_active,omitempty"`
	CuttingActive    *bool    `json:"cutting_active,omitempty"`

	TotalLength *float64 `json:"total_length,omitempty"`
	OkLength    *float64 `json:"ok_length,omitempty"`
	NokLength   *float64 `json:"nok_length,omitempty"`
	WasteLength *float64 `json:"waste_length,omitempty"`
}

// Merge applies a patch document to the draft. Only fields present in the
// patch are written; absent fields keep their current value. Lists and maps
// are replaced whole, last write wins at the field level.
func (d *Draft) Merge(patch *Draft) {
	if patch == nil {
		return
	}
	if patch.OperatorID != nil {
		d.OperatorID = patch.OperatorID
	}
	if patch.Date != nil {
		d.Date = patch.Date
	}
	if patch.Vacation != nil {
		d.Vacation = patch.Vacation
	}
	if patch.StartTime != nil {
		d.StartTime = patch.StartTime
	}
	if patch.EndTime != nil {
		d.EndTime = patch.EndTime
	}
	if patch.StartedAtBeginning != nil {
		d.StartedAtBeginning = patch.StartedAtBeginning
	}
	if patch.MachineRunningAtEnd != nil {
		d.MachineRunningAtEnd = patch.MachineRunningAtEnd
	}
	if patch.StartMeterReading != nil {
		d.StartMeterReading = patch.StartMeterReading
	}
	if patch.EndMeterReading != nil {
		d.EndMeterReading = patch.EndMeterReading
	}
	if patch.Comment != nil {
		d.Comment = patch.Comment
	}
	if patch.ChecklistResponses != nil {
		d.ChecklistResponses = patch.ChecklistResponses
	}
	if patch.ChecklistSignature != nil {
		d.ChecklistSignature = patch.ChecklistSignature
	}
	if patch.QCLeftReadings != nil {
		d.QCLeftReadings = patch.QCLeftReadings
	}
	if patch.QCRightReadings != nil {
		d.QCRightReadings = patch.QCRightReadings
	}
	if patch.SampleGiven != nil {
		d.SampleGiven = patch.SampleGiven
	}
	if patch.LostTimes != nil {
		d.LostTimes = patch.LostTimes
	}
	if patch.Roll != nil {
		if d.Roll == nil {
			d.Roll = &RollDraft{}
		}
		d.Roll.merge(patch.Roll)
	}
	if patch.RollNumber != nil {
		d.RollNumber = patch.RollNumber
	}
	if patch.ProductionOrder != nil {
		d.ProductionOrder = patch.ProductionOrder
	}
	if patch.CuttingOrder != nil {
		d.CuttingOrder = patch.CuttingOrder
	}
	if patch.TargetLength != nil {
		d.TargetLength = patch.TargetLength
	}
	if patch.BeltSpeed != nil {
		d.BeltSpeed = patch.BeltSpeed
	}
	if patch.ProductionActive != nil {
		d.ProductionActive = patch.ProductionActive
	}
	if patch.CuttingActive != nil {
		d.CuttingActive = patch.CuttingActive
	}
	if patch.TotalLength != nil {
		d.TotalLength = patch.TotalLength
	}
	if patch.OkLength != nil {
		d.OkLength = patch.OkLength
	}
	if patch.NokLength != nil {
		d.NokLength = patch.NokLength
	}
	if patch.WasteLength != nil {
		d.WasteLength = patch.WasteLength
	}
}

func (r *RollDraft) merge(patch *RollDraft) {
	if patch.Length != nil {
		r.Length = patch.Length
	}
	if patch.TubeMass != nil {
		r.TubeMass = patch.TubeMass
	}
	if patch.TotalMass != nil {
		r.TotalMass = patch.TotalMass
	}
	if patch.NextTubeMass != nil {
		r.NextTubeMass = patch.NextTubeMass
	}
	if patch.Comment != nil {
		r.Comment = patch.Comment
	}
	if patch.Defects != nil {
		r.Defects = patch.Defects
	}
	if patch.Thickness != nil {
		r.Thickness = patch.Thickness
	}
}

// LostTimeDurations extracts the duration column for the metrics engine.
func (d *Draft) LostTimeDurations() []int {
	durations := make([]int, 0, len(d.LostTimes))
	for _, lt := range d.LostTimes {
		durations = append(durations, lt.DurationMin)
	}
	return durations
}
