// Package repository handles all database operations for the line service.
package repository

import (
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"github.com/lineops/shiftline/repository/models"
)

// Error codes returned by the repository layer.
const (
	CodeNotFound      = "NOT_FOUND"
	CodeDuplicate     = "DUPLICATE"
	CodeCreateFailed  = "CREATE_FAILED"
	CodeUpdateFailed  = "UPDATE_FAILED"
	CodeCommitFailed  = "COMMIT_FAILED"
	CodeDatabaseError = "DATABASE_ERROR"
)

// RepositoryError represents repository layer errors
type RepositoryError struct {
	Code    string
	Message string
	Detail  string
}

func (e *RepositoryError) Error() string {
	return fmt.Sprintf("%s: %s - %s", e.Code, e.Message, e.Detail)
}

// Repository handles all database operations for shifts, rolls, and their
// dependent records
type Repository struct {
	db     *gorm.DB
	logger *zap.Logger
}

// NewRepository creates a new repository instance
func NewRepository(logger *zap.Logger) *Repository {
	return &Repository{logger: logger}
}

// ConnectDB establishes the database connection and performs migrations
func (r *Repository) ConnectDB(dsn string) error {
	for i := 0; i < 10; i++ {
		r.logger.Info("database connection attempt", zap.Int("attempt", i+1))
		db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{TranslateError: true})
		if err != nil {
			r.logger.Warn("connection attempt failed", zap.Int("attempt", i+1), zap.Error(err))
			time.Sleep(2 * time.Second)
			continue
		}
		r.db = db
		r.logger.Info("connected to database")

		if err := r.Migrate(); err != nil {
			return fmt.Errorf("migration failed: %w", err)
		}

		r.Seed()

		return nil
	}
	return fmt.Errorf("failed to connect to database after 10 attempts")
}

// Migrate performs database schema migrations
func (r *Repository) Migrate() error {
	r.logger.Info("running database migrations")

	migrator := r.db.Migrator()

	// Order matters due to foreign keys
	tables := []interface{}{
		&models.Operator{},
		&models.Shift{},
		&models.Roll{},
		&models.RollDefect{},
		&models.ThicknessMeasurement{},
		&models.LostTimeEntry{},
		&models.QualityControl{},
		&models.ChecklistResponse{},
	}

	for _, table := range tables {
		if !migrator.HasTable(table) {
			if err := migrator.CreateTable(table); err != nil {
				return fmt.Errorf("failed to create table: %w", err)
			}
		}
	}

	r.logger.Info("database migrations completed")
	return nil
}

// Seed initializes the operator table with test data
func (r *Repository) Seed() {
	var operatorCount int64
	r.db.Model(&models.Operator{}).Count(&operatorCount)
	if operatorCount > 0 {
		r.logger.Info("seed data already exists, skipping")
		return
	}

	r.logger.Info("seeding database with test data")

	operators := []models.Operator{
		{ID: "OP-001", Name: "Joao Silva"},
		{ID: "OP-002", Name: "Maria Santos"},
		{ID: "OP-003", Name: "Pedro Costa"},
	}
	for _, operator := range operators {
		r.db.Create(&operator)
	}

	r.logger.Info("database seeding completed")
}

// GetOperator retrieves an operator by ID
func (r *Repository) GetOperator(operatorID string) (*models.Operator, *RepositoryError) {
	var operator models.Operator
	err := r.db.Where("operator_id = ?", operatorID).First(&operator).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, &RepositoryError{
				Code:    CodeNotFound,
				Message: "Operator not found",
				Detail:  fmt.Sprintf("Operator %s does not exist", operatorID),
			}
		}
		return nil, &RepositoryError{
			Code:    CodeDatabaseError,
			Message: "Database error",
			Detail:  err.Error(),
		}
	}
	return &operator, nil
}

// ShiftExists reports whether a shift with the given identifier exists
func (r *Repository) ShiftExists(shiftID string) (bool, *RepositoryError) {
	var count int64
	err := r.db.Model(&models.Shift{}).Where("shift_id = ?", shiftID).Count(&count).Error
	if err != nil {
		return false, &RepositoryError{
			Code:    CodeDatabaseError,
			Message: "Database error",
			Detail:  err.Error(),
		}
	}
	return count > 0, nil
}

// RollExists reports whether a roll with the given identifier exists
func (r *Repository) RollExists(rollID string) (bool, *RepositoryError) {
	var count int64
	err := r.db.Model(&models.Roll{}).Where("roll_id = ?", rollID).Count(&count).Error
	if err != nil {
		return false, &RepositoryError{
			Code:    CodeDatabaseError,
			Message: "Database error",
			Detail:  err.Error(),
		}
	}
	return count > 0, nil
}

// GetShift retrieves a shift with its linked records
func (r *Repository) GetShift(shiftID string) (*models.Shift, *RepositoryError) {
	var shift models.Shift
	err := r.db.Preload("Rolls").
		Preload("LostTimeEntries").
		Preload("QualityControl").
		Preload("ChecklistResponses").
		Where("shift_id = ?", shiftID).
		First(&shift).Error

	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, &RepositoryError{
				Code:    CodeNotFound,
				Message: "Shift not found",
				Detail:  fmt.Sprintf("Shift %s does not exist", shiftID),
			}
		}
		return nil, &RepositoryError{
			Code:    CodeDatabaseError,
			Message: "Database error",
			Detail:  err.Error(),
		}
	}
	return &shift, nil
}

// CreateShift persists a new shift row. The primary key doubles as the
// duplicate guard: a concurrent commit that lost the race surfaces here as a
// DUPLICATE error.
func (r *Repository) CreateShift(shift *models.Shift) *RepositoryError {
	if err := r.db.Create(shift).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return &RepositoryError{
				Code:    CodeDuplicate,
				Message: "Shift already exists",
				Detail:  fmt.Sprintf("Shift %s already exists", shift.ID),
			}
		}
		return &RepositoryError{
			Code:    CodeCreateFailed,
			Message: "Failed to create shift",
			Detail:  err.Error(),
		}
	}
	return nil
}

// CreateRoll persists a roll together with its defects and thickness
// measurements in one transaction
func (r *Repository) CreateRoll(roll *models.Roll) *RepositoryError {
	dbTx := r.db.Begin()

	defects := roll.Defects
	measurements := roll.Measurements
	roll.Defects = nil
	roll.Measurements = nil

	if err := dbTx.Create(roll).Error; err != nil {
		dbTx.Rollback()
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return &RepositoryError{
				Code:    CodeDuplicate,
				Message: "Roll already exists",
				Detail:  fmt.Sprintf("Roll %s already exists", roll.ID),
			}
		}
		return &RepositoryError{
			Code:    CodeCreateFailed,
			Message: "Failed to create roll",
			Detail:  err.Error(),
		}
	}

	for i := range defects {
		defects[i].RollID = roll.ID
	}
	if len(defects) > 0 {
		if err := dbTx.Create(&defects).Error; err != nil {
			dbTx.Rollback()
			return &RepositoryError{
				Code:    CodeCreateFailed,
				Message: "Failed to create roll defects",
				Detail:  err.Error(),
			}
		}
	}

	for i := range measurements {
		measurements[i].RollID = roll.ID
	}
	if len(measurements) > 0 {
		if err := dbTx.Create(&measurements).Error; err != nil {
			dbTx.Rollback()
			return &RepositoryError{
				Code:    CodeCreateFailed,
				Message: "Failed to create thickness measurements",
				Detail:  err.Error(),
			}
		}
	}

	if err := dbTx.Commit().Error; err != nil {
		return &RepositoryError{
			Code:    CodeCommitFailed,
			Message: "Failed to commit transaction",
			Detail:  err.Error(),
		}
	}

	roll.Defects = defects
	roll.Measurements = measurements
	return nil
}

// OrphanRolls returns the rolls still tagged with the session key
func (r *Repository) OrphanRolls(sessionKey string) ([]models.Roll, *RepositoryError) {
	var rolls []models.Roll
	err := r.db.Where("session_key = ?", sessionKey).Order("created_at").Find(&rolls).Error
	if err != nil {
		return nil, &RepositoryError{
			Code:    CodeDatabaseError,
			Message: "Database error",
			Detail:  err.Error(),
		}
	}
	return rolls, nil
}

// OrphanLostTimeEntries returns the lost-time entries still tagged with the
// session key
func (r *Repository) OrphanLostTimeEntries(sessionKey string) ([]models.LostTimeEntry, *RepositoryError) {
	var entries []models.LostTimeEntry
	err := r.db.Where("session_key = ?", sessionKey).Order("created_at").Find(&entries).Error
	if err != nil {
		return nil, &RepositoryError{
			Code:    CodeDatabaseError,
			Message: "Database error",
			Detail:  err.Error(),
		}
	}
	return entries, nil
}

// LinkSessionOrphans re-parents every roll and lost-time entry tagged with the
// session key onto the shift and clears the tag, as one transaction. A partial
// linkage would be a correctness bug, so the two bulk updates commit together
// or not at all.
func (r *Repository) LinkSessionOrphans(sessionKey, shiftID string) *RepositoryError {
	dbTx := r.db.Begin()

	reparent := map[string]interface{}{
		"shift_id":    shiftID,
		"session_key": nil,
	}

	if err := dbTx.Model(&models.Roll{}).Where("session_key = ?", sessionKey).Updates(reparent).Error; err != nil {
		dbTx.Rollback()
		return &RepositoryError{
			Code:    CodeUpdateFailed,
			Message: "Failed to link rolls",
			Detail:  err.Error(),
		}
	}

	if err := dbTx.Model(&models.LostTimeEntry{}).Where("session_key = ?", sessionKey).Updates(reparent).Error; err != nil {
		dbTx.Rollback()
		return &RepositoryError{
			Code:    CodeUpdateFailed,
			Message: "Failed to link lost-time entries",
			Detail:  err.Error(),
		}
	}

	if err := dbTx.Commit().Error; err != nil {
		return &RepositoryError{
			Code:    CodeCommitFailed,
			Message: "Failed to commit transaction",
			Detail:  err.Error(),
		}
	}

	return nil
}

// LinkedRolls returns every roll linked to the shift
func (r *Repository) LinkedRolls(shiftID string) ([]models.Roll, *RepositoryError) {
	var rolls []models.Roll
	err := r.db.Where("shift_id = ?", shiftID).Order("created_at").Find(&rolls).Error
	if err != nil {
		return nil, &RepositoryError{
			Code:    CodeDatabaseError,
			Message: "Database error",
			Detail:  err.Error(),
		}
	}
	return rolls, nil
}

// LinkedLostTimeEntries returns every lost-time entry linked to the shift
func (r *Repository) LinkedLostTimeEntries(shiftID string) ([]models.LostTimeEntry, *RepositoryError) {
	var entries []models.LostTimeEntry
	err := r.db.Where("shift_id = ?", shiftID).Order("created_at").Find(&entries).Error
	if err != nil {
		return nil, &RepositoryError{
			Code:    CodeDatabaseError,
			Message: "Database error",
			Detail:  err.Error(),
		}
	}
	return entries, nil
}

// MarkShiftComplete flips the shift out of the "linking" state once every
// commit step has run
func (r *Repository) MarkShiftComplete(shiftID string) *RepositoryError {
	err := r.db.Model(&models.Shift{}).
		Where("shift_id = ?", shiftID).
		Update("status", models.ShiftStatusComplete).Error
	if err != nil {
		return &RepositoryError{
			Code:    CodeUpdateFailed,
			Message: "Failed to mark shift complete",
			Detail:  err.Error(),
		}
	}
	return nil
}

// UpdateShiftAggregates writes recomputed aggregate columns for the shift
func (r *Repository) UpdateShiftAggregates(shiftID string, fields map[string]interface{}) *RepositoryError {
	err := r.db.Model(&models.Shift{}).Where("shift_id = ?", shiftID).Updates(fields).Error
	if err != nil {
		return &RepositoryError{
			Code:    CodeUpdateFailed,
			Message: "Failed to update shift aggregates",
			Detail:  err.Error(),
		}
	}
	return nil
}

// HasQualityControl reports whether the shift already has a quality-control
// record. Used by the commit resume path to keep step 6 idempotent.
func (r *Repository) HasQualityControl(shiftID string) (bool, *RepositoryError) {
	var count int64
	err := r.db.Model(&models.QualityControl{}).Where("shift_id = ?", shiftID).Count(&count).Error
	if err != nil {
		return false, &RepositoryError{
			Code:    CodeDatabaseError,
			Message: "Database error",
			Detail:  err.Error(),
		}
	}
	return count > 0, nil
}

// CreateQualityControl persists the shift's quality-control record
func (r *Repository) CreateQualityControl(qc *models.QualityControl) *RepositoryError {
	if err := r.db.Create(qc).Error; err != nil {
		return &RepositoryError{
			Code:    CodeCreateFailed,
			Message: "Failed to create quality control record",
			Detail:  err.Error(),
		}
	}
	return nil
}

// HasChecklistResponses reports whether the shift already has checklist
// responses persisted
func (r *Repository) HasChecklistResponses(shiftID string) (bool, *RepositoryError) {
	var count int64
	err := r.db.Model(&models.ChecklistResponse{}).Where("shift_id = ?", shiftID).Count(&count).Error
	if err != nil {
		return false, &RepositoryError{
			Code:    CodeDatabaseError,
			Message: "Database error",
			Detail:  err.Error(),
		}
	}
	return count > 0, nil
}

// CreateChecklistResponses persists the shift's checklist responses in one
// transaction
func (r *Repository) CreateChecklistResponses(responses []models.ChecklistResponse) *RepositoryError {
	if len(responses) == 0 {
		return nil
	}
	if err := r.db.Create(&responses).Error; err != nil {
		return &RepositoryError{
			Code:    CodeCreateFailed,
			Message: "Failed to create checklist responses",
			Detail:  err.Error(),
		}
	}
	return nil
}

// CreateLostTimeEntries persists lost-time entries captured only in the draft
func (r *Repository) CreateLostTimeEntries(entries []models.LostTimeEntry) *RepositoryError {
	if len(entries) == 0 {
		return nil
	}
	if err := r.db.Create(&entries).Error; err != nil {
		return &RepositoryError{
			Code:    CodeCreateFailed,
			Message: "Failed to create lost-time entries",
			Detail:  err.Error(),
		}
	}
	return nil
}
