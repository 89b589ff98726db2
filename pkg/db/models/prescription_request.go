package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/substractum/storefront/pkg/enums"
)

// PrescriptionRequest asks the pharmacy to quote a prescription. The uploaded
// file lives in blob storage; only its object path is kept here.
type PrescriptionRequest struct {
	ID              uuid.UUID                `gorm:"column:id;type:uuid;primaryKey"`
	UserID          uuid.UUID                `gorm:"column:user_id;type:uuid;not null"`
	Name            string                   `gorm:"column:name;not null"`
	Phone           string                   `gorm:"column:phone;not null"`
	Message         *string                  `gorm:"column:message"`
	FilePath        *string                  `gorm:"column:file_path"`
	FileContentType *string                  `gorm:"column:file_content_type"`
	FileSize        *int64                   `gorm:"column:file_size"`
	Status          enums.PrescriptionStatus `gorm:"column:status;not null;default:'pending'"`
	CreatedAt       time.Time                `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt       time.Time                `gorm:"column:updated_at;autoUpdateTime"`
}

func (PrescriptionRequest) TableName() string { return "prescription_requests" }
