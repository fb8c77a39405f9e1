package models

import "time"

// Vacation identifies a shift rotation slot.
const (
	VacationMorning   = "Morning"
	VacationAfternoon = "Afternoon"
	VacationNight     = "Night"
	VacationDay       = "Day"
)

// Roll status values
const (
	StatusConforming    = "Conforming"
	StatusNonConforming = "NonConforming"
)

// Roll destination values
const (
	DestinationProduction = "Production"
	DestinationCutting    = "Cutting"
	DestinationWaste      = "Waste"
)

// Shift lifecycle states. A shift is created as "linking" and marked
// "complete" once every commit step has run; a commit retry resumes any shift
// still in "linking".
const (
	ShiftStatusLinking  = "linking"
	ShiftStatusComplete = "complete"
)

// Operator represents a line operator
type Operator struct {
	ID        string    `gorm:"column:operator_id;primaryKey;type:varchar(50)"`
	Name      string    `gorm:"column:name;type:varchar(100);not null"`
	CreatedAt time.Time `gorm:"column:created_at;autoCreateTime"`
}

// Shift is the durable per-shift aggregate. Created once at commit; only the
// derived aggregate columns are mutated afterward, never deleted by normal flow.
type Shift struct {
	ID         string  `gorm:"column:shift_id;primaryKey;type:varchar(100)"` // DDMMYY_operatorNoSpaces_vacation
	OperatorID *string `gorm:"column:operator_id;type:varchar(50)"`          // nullable, survives operator deletion
	Date       string  `gorm:"column:date;type:varchar(10);not null"`        // YYYY-MM-DD
	Vacation   string  `gorm:"column:vacation;type:varchar(20);not null"`
	StartTime  string  `gorm:"column:start_time;type:varchar(5)"` // HH:MM
	EndTime    string  `gorm:"column:end_time;type:varchar(5)"`
	Status     string  `gorm:"column:status;type:varchar(20);not null;default:'linking'"` // linking, complete

	// Derived time aggregates, minutes
	OpeningTimeMin      int `gorm:"column:opening_time_min;default:0"`
	LostTimeMin         int `gorm:"column:lost_time_min;default:0"`
	AvailabilityTimeMin int `gorm:"column:availability_time_min;default:0"`

	// Derived length aggregates, meters
	TotalLength    float64 `gorm:"column:total_length;default:0"`
	OkLength       float64 `gorm:"column:ok_length;default:0"`
	NokLength      float64 `gorm:"column:nok_length;default:0"`
	RawWasteLength float64 `gorm:"column:raw_waste_length;default:0"`

	// Derived quality aggregates over linked rolls
	AvgThicknessLeft  float64 `gorm:"column:avg_thickness_left;default:0"`
	AvgThicknessRight float64 `gorm:"column:avg_thickness_right;default:0"`
	AvgGrammage       float64 `gorm:"column:avg_grammage;default:0"`

	// Machine state at shift boundaries
	StartedAtBeginning  bool     `gorm:"column:started_at_beginning;default:false"`
	MachineRunningAtEnd bool     `gorm:"column:machine_running_at_end;default:false"`
	StartMeterReading   *float64 `gorm:"column:start_meter_reading"`
	EndMeterReading     *float64 `gorm:"column:end_meter_reading"`

	Comment            string     `gorm:"column:comment;type:text"`
	ChecklistSignature string     `gorm:"column:checklist_signature;type:varchar(100)"`
	ChecklistSignedAt  *time.Time `gorm:"column:checklist_signed_at"`

	CreatedAt time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt time.Time `gorm:"column:updated_at;autoUpdateTime"`

	// Relationships
	Operator           *Operator           `gorm:"foreignKey:OperatorID"`
	Rolls              []Roll              `gorm:"foreignKey:ShiftID"`
	LostTimeEntries    []LostTimeEntry     `gorm:"foreignKey:ShiftID"`
	QualityControl     *QualityControl     `gorm:"foreignKey:ShiftID"`
	ChecklistResponses []ChecklistResponse `gorm:"foreignKey:ShiftID"`
}

// Roll is one completed coil. A roll belongs to a shift once committed or to a
// session key while orphaned; never both at the same time.
type Roll struct {
	ID          string  `gorm:"column:roll_id;primaryKey;type:varchar(100)"`
	ShiftID     *string `gorm:"column:shift_id;type:varchar(100);index"`
	SessionKey  *string `gorm:"column:session_key;type:varchar(50);index"`
	RollNumber  int     `gorm:"column:roll_number;not null"`
	Status      string  `gorm:"column:status;type:varchar(20);not null"` // Conforming, NonConforming
	Destination string  `gorm:"column:destination;type:varchar(20)"`     // Production, Cutting, Waste
	OrderNumber string  `gorm:"column:order_number;type:varchar(50)"`

	Length    float64 `gorm:"column:length;default:0"`
	TubeMass  float64 `gorm:"column:tube_mass;default:0"`
	TotalMass float64 `gorm:"column:total_mass;default:0"`
	NetMass   float64 `gorm:"column:net_mass;default:0"`
	Grammage  float64 `gorm:"column:grammage;default:0"`

	AvgThicknessLeft  float64 `gorm:"column:avg_thickness_left;default:0"`
	AvgThicknessRight float64 `gorm:"column:avg_thickness_right;default:0"`

	Comment   string    `gorm:"column:comment;type:text"`
	CreatedAt time.Time `gorm:"column:created_at;autoCreateTime"`

	// Relationships
	Defects      []RollDefect           `gorm:"foreignKey:RollID"`
	Measurements []ThicknessMeasurement `gorm:"foreignKey:RollID"`
}

// RollDefect records one observed defect on a roll
type RollDefect struct {
	ID            uint    `gorm:"column:defect_id;primaryKey;autoIncrement"`
	RollID        string  `gorm:"column:roll_id;type:varchar(100);index;not null"`
	DefectType    string  `gorm:"column:defect_type;type:varchar(50);not null"`
	MeterPosition float64 `gorm:"column:meter_position;default:0"`
	Side          string  `gorm:"column:side;type:varchar(10)"` // left, right
}

// ThicknessMeasurement is one thickness probe on a roll. CatchUp measurements
// are excluded from the roll's average.
type ThicknessMeasurement struct {
	ID      uint    `gorm:"column:measurement_id;primaryKey;autoIncrement"`
	RollID  string  `gorm:"column:roll_id;type:varchar(100);index;not null"`
	Side    string  `gorm:"column:side;type:varchar(10);not null"` // left, right
	Point   int     `gorm:"column:point;not null"`
	Value   float64 `gorm:"column:value;default:0"`
	CatchUp bool    `gorm:"column:catch_up;default:false"`
}

// LostTimeEntry records one stretch of lost production time. Follows the same
// orphan pattern as Roll: session-keyed until the owning shift exists.
type LostTimeEntry struct {
	ID          string  `gorm:"column:lost_time_id;primaryKey;type:varchar(50)"`
	ShiftID     *string `gorm:"column:shift_id;type:varchar(100);index"`
	SessionKey  *string `gorm:"column:session_key;type:varchar(50);index"`
	Reason      string  `gorm:"column:reason;type:varchar(100);not null"`
	DurationMin int     `gorm:"column:duration_min;not null"`
	Comment     string  `gorm:"column:comment;type:text"`

	CreatedAt time.Time `gorm:"column:created_at;autoCreateTime"`
}

// QualityControl stores the shift's quality sample; raw side readings are
// averaged at write time.
type QualityControl struct {
	ID            string     `gorm:"column:qc_id;primaryKey;type:varchar(50)"`
	ShiftID       string     `gorm:"column:shift_id;type:varchar(100);uniqueIndex;not null"`
	AvgLeft       float64    `gorm:"column:avg_left;default:0"`
	AvgRight      float64    `gorm:"column:avg_right;default:0"`
	SampleGiven   bool       `gorm:"column:sample_given;default:false"`
	SampleGivenAt *time.Time `gorm:"column:sample_given_at"`
	CreatedAt     time.Time  `gorm:"column:created_at;autoCreateTime"`
}

// ChecklistResponse is one answered checklist item for a shift
type ChecklistResponse struct {
	ID       uint   `gorm:"column:response_id;primaryKey;autoIncrement"`
	ShiftID  string `gorm:"column:shift_id;type:varchar(100);index;not null"`
	Item     string `gorm:"column:item;type:varchar(100);not null"`
	Response string `gorm:"column:response;type:varchar(10);not null"` // ok, nok, na
}
