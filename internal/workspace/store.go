// Package workspace keeps per-user project selection and impersonation state.
package workspace

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/glebarez/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/portal-dev/portal/internal/models"
)

// Impersonation is the support-mode override of the active project
type Impersonation struct {
	ProjectID   string    `json:"projectId"`
	ProjectName string    `json:"projectName"`
	UserEmail   string    `json:"userEmail"`
	ExpiresAt   time.Time `json:"expiresAt"`
}

// State is a user's workspace selection. Nil fields are unset.
type State struct {
	SelectedProjectID *string        `json:"selectedProjectId"`
	Impersonation     *Impersonation `json:"impersonation"`
}

// EffectiveProjectID applies the precedence rule: an active impersonation
// wins, then the explicit selection, then fallback. The bool is false only
// when nothing is set and fallback is empty.
func (s State) EffectiveProjectID(fallback string) (string, bool) {
	if s.Impersonation != nil {
		return s.Impersonation.ProjectID, true
	}
	if s.SelectedProjectID != nil {
		return *s.SelectedProjectID, true
	}
	return fallback, fallback != ""
}

// Store persists workspace state with gorm
type Store struct {
	db  *gorm.DB
	ttl time.Duration
	now func() time.Time
}

// Open opens (or creates) the SQLite database at dsn and migrates it
func Open(dsn string, impersonationTTL time.Duration) (*Store, error) {
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.New(
			log.New(os.Stdout, "\r\n", log.LstdFlags),
			logger.Config{
				LogLevel:                  logger.Error,
				IgnoreRecordNotFoundError: true,
				SlowThreshold:             200 * time.Millisecond,
			},
		),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get underlying sql.DB: %w", err)
	}
	// SQLite allows one writer at a time
	sqlDB.SetMaxOpenConns(1)

	if err := db.Exec("PRAGMA journal_mode=WAL").Error; err != nil {
		return nil, fmt.Errorf("failed to enable WAL: %w", err)
	}
	if err := db.Exec("PRAGMA busy_timeout=5000").Error; err != nil {
		return nil, fmt.Errorf("failed to set busy timeout: %w", err)
	}

	return New(db, impersonationTTL)
}

// New wraps an existing connection and migrates it
func New(db *gorm.DB, impersonationTTL time.Duration) (*Store, error) {
	if err := models.AutoMigrate(db); err != nil {
		return nil, fmt.Errorf("failed to migrate workspace state: %w", err)
	}
	return &Store{db: db, ttl: impersonationTTL, now: time.Now}, nil
}

// Close releases the underlying connection
func (s *Store) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// Get returns the user's state. Unknown users get an empty state; an
// expired impersonation reads as unset.
func (s *Store) Get(ctx context.Context, userID string) (State, error) {
	var row models.WorkspaceState
	err := models.FindByUserID(s.db.WithContext(ctx), userID, &row)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return State{}, nil
	}
	if err != nil {
		return State{}, fmt.Errorf("failed to load workspace state: %w", err)
	}
	return s.toState(row), nil
}

// SelectProject records the user's chosen project
func (s *Store) SelectProject(ctx context.Context, userID, projectID string) (State, error) {
	return s.update(ctx, userID, func(row *models.WorkspaceState) {
		row.SelectedProjectID = &projectID
	})
}

// Impersonate starts (or replaces) an impersonation for the user
func (s *Store) Impersonate(ctx context.Context, userID string, imp Impersonation) (State, error) {
	expiresAt := s.now().UTC().Add(s.ttl)
	return s.update(ctx, userID, func(row *models.WorkspaceState) {
		row.ImpersonatedProjectID = &imp.ProjectID
		row.ImpersonatedProjectName = imp.ProjectName
		row.ImpersonatedUserEmail = imp.UserEmail
		row.ImpersonationExpiresAt = &expiresAt
	})
}

// ClearImpersonation ends the user's impersonation
func (s *Store) ClearImpersonation(ctx context.Context, userID string) (State, error) {
	return s.update(ctx, userID, clearImpersonation)
}

// PruneExpired clears impersonations whose expiry has passed
func (s *Store) PruneExpired(ctx context.Context) (int64, error) {
	result := s.db.WithContext(ctx).
		Model(&models.WorkspaceState{}).
		Where("impersonation_expires_at IS NOT NULL AND impersonation_expires_at <= ?", s.now().UTC()).
		Updates(map[string]interface{}{
			"impersonated_project_id":   nil,
			"impersonated_project_name": "",
			"impersonated_user_email":   "",
			"impersonation_expires_at":  nil,
		})
	if result.Error != nil {
		return 0, fmt.Errorf("failed to prune impersonations: %w", result.Error)
	}
	return result.RowsAffected, nil
}

func (s *Store) update(ctx context.Context, userID string, mutate func(*models.WorkspaceState)) (State, error) {
	var row models.WorkspaceState
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		err := models.FindByUserID(tx, userID, &row)
		if errors.Is(err, gorm.ErrRecordNotFound) {
			row = models.WorkspaceState{UserID: userID}
		} else if err != nil {
			return err
		}

		mutate(&row)
		return tx.Save(&row).Error
	})
	if err != nil {
		return State{}, fmt.Errorf("failed to save workspace state: %w", err)
	}
	return s.toState(row), nil
}

func clearImpersonation(row *models.WorkspaceState) {
	row.ImpersonatedProjectID = nil
	row.ImpersonatedProjectName = ""
	row.ImpersonatedUserEmail = ""
	row.ImpersonationExpiresAt = nil
}

func (s *Store) toState(row models.WorkspaceState) State {
	state := State{SelectedProjectID: row.SelectedProjectID}

	if row.ImpersonatedProjectID != nil {
		active := row.ImpersonationExpiresAt == nil || row.ImpersonationExpiresAt.After(s.now())
		if active {
			imp := &Impersonation{
				ProjectID:   *row.ImpersonatedProjectID,
				ProjectName: row.ImpersonatedProjectName,
				UserEmail:   row.ImpersonatedUserEmail,
			}
			if row.ImpersonationExpiresAt != nil {
				imp.ExpiresAt = *row.ImpersonationExpiresAt
			}
			state.Impersonation = imp
		}
	}
	return state
}
