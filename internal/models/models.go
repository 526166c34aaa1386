package models

import (
	"time"

	"github.com/oklog/ulid/v2"
	"gorm.io/gorm"
)

// BaseModel provides common fields and auto-generated ULID for all models
type BaseModel struct {
	ID        string    `json:"id" gorm:"primaryKey;type:varchar(26)"`
	CreatedAt time.Time `json:"created_at" gorm:"autoCreateTime"`
}

// BeforeCreate generates a ULID for the ID field if it's empty
func (b *BaseModel) BeforeCreate(tx *gorm.DB) error {
	if b.ID == "" {
		b.ID = ulid.Make().String()
	}
	return nil
}

// WorkspaceState holds one user's project selection and, for support staff,
// the project they are currently impersonating.
// A nil pointer column means "unset"; an empty string is a real value.
type WorkspaceState struct {
	BaseModel
	UserID            string  `json:"user_id" gorm:"uniqueIndex;not null"`
	SelectedProjectID *string `json:"selected_project_id"`

	ImpersonatedProjectID   *string    `json:"impersonated_project_id"`
	ImpersonatedProjectName string     `json:"impersonated_project_name"`
	ImpersonatedUserEmail   string     `json:"impersonated_user_email"`
	ImpersonationExpiresAt  *time.Time `json:"impersonation_expires_at" gorm:"index"`

	UpdatedAt time.Time `json:"updated_at" gorm:"autoUpdateTime"`
}

// AutoMigrate runs database migrations for all models
func AutoMigrate(db *gorm.DB) error {
	return db.AutoMigrate(&WorkspaceState{})
}

// FindByUserID loads the row owned by userID
func FindByUserID[T any](db *gorm.DB, userID string, model *T) error {
	return db.Where("user_id = ?", userID).First(model).Error
}
