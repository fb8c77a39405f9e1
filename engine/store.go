package engine

import (
	"github.com/lineops/shiftline/repository"
	"github.com/lineops/shiftline/repository/models"
)

// Store is the slice of the repository the engine needs. Keeping it narrow
// lets the recorder and committer be exercised against an in-memory fake.
type Store interface {
	GetOperator(operatorID string) (*models.Operator, *repository.RepositoryError)

	ShiftExists(shiftID string) (bool, *repository.RepositoryError)
	RollExists(rollID string) (bool, *repository.RepositoryError)

	CreateShift(shift *models.Shift) *repository.RepositoryError
	GetShift(shiftID string) (*models.Shift, *repository.RepositoryError)
	CreateRoll(roll *models.Roll) *repository.RepositoryError

	OrphanRolls(sessionKey string) ([]models.Roll, *repository.RepositoryError)
	OrphanLostTimeEntries(sessionKey string) ([]models.LostTimeEntry, *repository.RepositoryError)
	LinkSessionOrphans(sessionKey, shiftID string) *repository.RepositoryError
	LinkedRolls(shiftID string) ([]models.Roll, *repository.RepositoryError)
	LinkedLostTimeEntries(shiftID string) ([]models.LostTimeEntry, *repository.RepositoryError)

	UpdateShiftAggregates(shiftID string, fields map[string]interface{}) *repository.RepositoryError
	MarkShiftComplete(shiftID string) *repository.RepositoryError

	HasQualityControl(shiftID string) (bool, *repository.RepositoryError)
	CreateQualityControl(qc *models.QualityControl) *repository.RepositoryError
	HasChecklistResponses(shiftID string) (bool, *repository.RepositoryError)
	CreateChecklistResponses(responses []models.ChecklistResponse) *repository.RepositoryError
	CreateLostTimeEntries(entries []models.LostTimeEntry) *repository.RepositoryError
}

var _ Store = (*repository.Repository)(nil)
