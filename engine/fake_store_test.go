package engine

import (
	"fmt"
	"sort"
	"sync"

	"github.com/lineops/shiftline/repository"
	"github.com/lineops/shiftline/repository/models"
)

// fakeStore is an in-memory Store for exercising the recorder and committer
// without Postgres. failures maps an operation name to an error injected on
// its next call.
type fakeStore struct {
	mu         sync.Mutex
	operators  map[string]models.Operator
	shifts     map[string]*models.Shift
	rolls      map[string]*models.Roll
	lostTimes  map[string]*models.LostTimeEntry
	qcs        map[string]*models.QualityControl
	checklists map[string][]models.ChecklistResponse
	failures   map[string]*repository.RepositoryError
	nextID     uint
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		operators:  map[string]models.Operator{"OP-001": {ID: "OP-001", Name: "Joao Silva"}},
		shifts:     make(map[string]*models.Shift),
		rolls:      make(map[string]*models.Roll),
		lostTimes:  make(map[string]*models.LostTimeEntry),
		qcs:        make(map[string]*models.QualityControl),
		checklists: make(map[string][]models.ChecklistResponse),
		failures:   make(map[string]*repository.RepositoryError),
	}
}

func (f *fakeStore) failOnce(op string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.failures[op] = &repository.RepositoryError{
		Code:    repository.CodeDatabaseError,
		Message: "injected failure",
		Detail:  op,
	}
}

// takeFailure must be called with the lock held.
func (f *fakeStore) takeFailure(op string) *repository.RepositoryError {
	if rerr, ok := f.failures[op]; ok {
		delete(f.failures, op)
		return rerr
	}
	return nil
}

func (f *fakeStore) GetOperator(operatorID string) (*models.Operator, *repository.RepositoryError) {
	f.mu.Lock()
	defer f.mu.Unlock()
	operator, ok := f.operators[operatorID]
	if !ok {
		return nil, &repository.RepositoryError{
			Code:    repository.CodeNotFound,
			Message: "Operator not found",
			Detail:  operatorID,
		}
	}
	return &operator, nil
}

func (f *fakeStore) ShiftExists(shiftID string) (bool, *repository.RepositoryError) {
	f.mu.Lock()
	defer f.mu.Unlock()
	_, ok := f.shifts[shiftID]
	return ok, nil
}

func (f *fakeStore) RollExists(rollID string) (bool, *repository.RepositoryError) {
	f.mu.Lock()
	defer f.mu.Unlock()
	_, ok := f.rolls[rollID]
	return ok, nil
}

func (f *fakeStore) CreateShift(shift *models.Shift) *repository.RepositoryError {
	f.mu.Lock()
	defer f.mu.Unlock()
	if rerr := f.takeFailure("CreateShift"); rerr != nil {
		return rerr
	}
	if _, ok := f.shifts[shift.ID]; ok {
		return &repository.RepositoryError{
			Code:    repository.CodeDuplicate,
			Message: "Shift already exists",
			Detail:  shift.ID,
		}
	}
	copied := *shift
	f.shifts[shift.ID] = &copied
	return nil
}

func (f *fakeStore) GetShift(shiftID string) (*models.Shift, *repository.RepositoryError) {
	f.mu.Lock()
	defer f.mu.Unlock()
	shift, ok := f.shifts[shiftID]
	if !ok {
		return nil, &repository.RepositoryError{
			Code:    repository.CodeNotFound,
			Message: "Shift not found",
			Detail:  shiftID,
		}
	}
	copied := *shift
	for _, roll := range f.rolls {
		if roll.ShiftID != nil && *roll.ShiftID == shiftID {
			copied.Rolls = append(copied.Rolls, *roll)
		}
	}
	for _, entry := range f.lostTimes {
		if entry.ShiftID != nil && *entry.ShiftID == shiftID {
			copied.LostTimeEntries = append(copied.LostTimeEntries, *entry)
		}
	}
	if qc, ok := f.qcs[shiftID]; ok {
		qcCopy := *qc
		copied.QualityControl = &qcCopy
	}
	copied.ChecklistResponses = append(copied.ChecklistResponses, f.checklists[shiftID]...)
	return &copied, nil
}

func (f *fakeStore) CreateRoll(roll *models.Roll) *repository.RepositoryError {
	f.mu.Lock()
	defer f.mu.Unlock()
	if rerr := f.takeFailure("CreateRoll"); rerr != nil {
		return rerr
	}
	if _, ok := f.rolls[roll.ID]; ok {
		return &repository.RepositoryError{
			Code:    repository.CodeDuplicate,
			Message: "Roll already exists",
			Detail:  roll.ID,
		}
	}
	copied := *roll
	f.rolls[roll.ID] = &copied
	return nil
}

func (f *fakeStore) OrphanRolls(sessionKey string) ([]models.Roll, *repository.RepositoryError) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var rolls []models.Roll
	for _, roll := range f.rolls {
		if roll.SessionKey != nil && *roll.SessionKey == sessionKey {
			rolls = append(rolls, *roll)
		}
	}
	sortRollsByNumber(rolls)
	return rolls, nil
}

func (f *fakeStore) OrphanLostTimeEntries(sessionKey string) ([]models.LostTimeEntry, *repository.RepositoryError) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var entries []models.LostTimeEntry
	for _, entry := range f.lostTimes {
		if entry.SessionKey != nil && *entry.SessionKey == sessionKey {
			entries = append(entries, *entry)
		}
	}
	return entries, nil
}

func (f *fakeStore) LinkSessionOrphans(sessionKey, shiftID string) *repository.RepositoryError {
	f.mu.Lock()
	defer f.mu.Unlock()
	if rerr := f.takeFailure("LinkSessionOrphans"); rerr != nil {
		return rerr
	}
	for _, roll := range f.rolls {
		if roll.SessionKey != nil && *roll.SessionKey == sessionKey {
			id := shiftID
			roll.ShiftID = &id
			roll.SessionKey = nil
		}
	}
	for _, entry := range f.lostTimes {
		if entry.SessionKey != nil && *entry.SessionKey == sessionKey {
			id := shiftID
			entry.ShiftID = &id
			entry.SessionKey = nil
		}
	}
	return nil
}

func (f *fakeStore) LinkedRolls(shiftID string) ([]models.Roll, *repository.RepositoryError) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var rolls []models.Roll
	for _, roll := range f.rolls {
		if roll.ShiftID != nil && *roll.ShiftID == shiftID {
			rolls = append(rolls, *roll)
		}
	}
	sortRollsByNumber(rolls)
	return rolls, nil
}

func (f *fakeStore) LinkedLostTimeEntries(shiftID string) ([]models.LostTimeEntry, *repository.RepositoryError) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var entries []models.LostTimeEntry
	for _, entry := range f.lostTimes {
		if entry.ShiftID != nil && *entry.ShiftID == shiftID {
			entries = append(entries, *entry)
		}
	}
	return entries, nil
}

func (f *fakeStore) UpdateShiftAggregates(shiftID string, fields map[string]interface{}) *repository.RepositoryError {
	f.mu.Lock()
	defer f.mu.Unlock()
	if rerr := f.takeFailure("UpdateShiftAggregates"); rerr != nil {
		return rerr
	}
	shift, ok := f.shifts[shiftID]
	if !ok {
		return &repository.RepositoryError{
			Code:    repository.CodeNotFound,
			Message: "Shift not found",
			Detail:  shiftID,
		}
	}
	for column, value := range fields {
		switch column {
		case "total_length":
			shift.TotalLength = value.(float64)
		case "ok_length":
			shift.OkLength = value.(float64)
		case "nok_length":
			shift.NokLength = value.(float64)
		case "raw_waste_length":
			shift.RawWasteLength = value.(float64)
		case "avg_thickness_left":
			shift.AvgThicknessLeft = value.(float64)
		case "avg_thickness_right":
			shift.AvgThicknessRight = value.(float64)
		case "avg_grammage":
			shift.AvgGrammage = value.(float64)
		case "opening_time_min":
			shift.OpeningTimeMin = value.(int)
		case "lost_time_min":
			shift.LostTimeMin = value.(int)
		case "availability_time_min":
			shift.AvailabilityTimeMin = value.(int)
		default:
			panic(fmt.Sprintf("fakeStore: unknown aggregate column %q", column))
		}
	}
	return nil
}

func (f *fakeStore) MarkShiftComplete(shiftID string) *repository.RepositoryError {
	f.mu.Lock()
	defer f.mu.Unlock()
	if rerr := f.takeFailure("MarkShiftComplete"); rerr != nil {
		return rerr
	}
	shift, ok := f.shifts[shiftID]
	if !ok {
		return &repository.RepositoryError{
			Code:    repository.CodeNotFound,
			Message: "Shift not found",
			Detail:  shiftID,
		}
	}
	shift.Status = models.ShiftStatusComplete
	return nil
}

func (f *fakeStore) HasQualityControl(shiftID string) (bool, *repository.RepositoryError) {
	f.mu.Lock()
	defer f.mu.Unlock()
	_, ok := f.qcs[shiftID]
	return ok, nil
}

func (f *fakeStore) CreateQualityControl(qc *models.QualityControl) *repository.RepositoryError {
	f.mu.Lock()
	defer f.mu.Unlock()
	if rerr := f.takeFailure("CreateQualityControl"); rerr != nil {
		return rerr
	}
	copied := *qc
	f.qcs[qc.ShiftID] = &copied
	return nil
}

func (f *fakeStore) HasChecklistResponses(shiftID string) (bool, *repository.RepositoryError) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.checklists[shiftID]) > 0, nil
}

func (f *fakeStore) CreateChecklistResponses(responses []models.ChecklistResponse) *repository.RepositoryError {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, response := range responses {
		f.nextID++
		response.ID = f.nextID
		f.checklists[response.ShiftID] = append(f.checklists[response.ShiftID], response)
	}
	return nil
}

func (f *fakeStore) CreateLostTimeEntries(entries []models.LostTimeEntry) *repository.RepositoryError {
	f.mu.Lock()
	defer f.mu.Unlock()
	if rerr := f.takeFailure("CreateLostTimeEntries"); rerr != nil {
		return rerr
	}
	for _, entry := range entries {
		copied := entry
		f.lostTimes[entry.ID] = &copied
	}
	return nil
}

// sortRollsByNumber mimics the repository's creation-order listing.
func sortRollsByNumber(rolls []models.Roll) {
	sort.Slice(rolls, func(i, j int) bool {
		if rolls[i].RollNumber != rolls[j].RollNumber {
			return rolls[i].RollNumber < rolls[j].RollNumber
		}
		return rolls[i].ID < rolls[j].ID
	})
}

var _ Store = (*fakeStore)(nil)
