package prescriptions

import (
	"time"

	"github.com/google/uuid"
	"github.com/substractum/storefront/pkg/db/models"
	"github.com/substractum/storefront/pkg/enums"
)

// FileDTO describes the uploaded prescription file.
type FileDTO struct {
	Path        string `json:"path"`
	ContentType string `json:"content_type,omitempty"`
	Size        int64  `json:"size,omitempty"`
}

// RequestDTO is a prescription request as shown to its sender.
type RequestDTO struct {
	ID          uuid.UUID                `json:"id"`
	Name        string                   `json:"name"`
	Phone       string                   `json:"phone"`
	Message     *string                  `json:"message,omitempty"`
	File        *FileDTO                 `json:"file,omitempty"`
	Status      enums.PrescriptionStatus `json:"status"`
	StatusLabel string                   `json:"status_label"`
	CreatedAt   time.Time                `json:"created_at"`
}

// RequestList is one page of a user's prescription requests.
type RequestList struct {
	Requests   []RequestDTO `json:"requests"`
	NextCursor string       `json:"next_cursor"`
}

// ToRequestDTO maps the stored row.
func ToRequestDTO(row models.PrescriptionRequest) RequestDTO {
	dto := RequestDTO{
		ID:          row.ID,
		Name:        row.Name,
		Phone:       row.Phone,
		Message:     row.Message,
		Status:      row.Status,
		StatusLabel: row.Status.Label(),
		CreatedAt:   row.CreatedAt,
	}
	if row.FilePath != nil {
		file := &FileDTO{Path: *row.FilePath}
		if row.FileContentType != nil {
			file.ContentType = *row.FileContentType
		}
		if row.FileSize != nil {
			file.Size = *row.FileSize
		}
		dto.File = file
	}
	return dto
}
