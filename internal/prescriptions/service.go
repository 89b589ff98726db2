package prescriptions

import (
	"context"
	"errors"
	"fmt"
	"path"
	"strings"
	"time"
	"unicode"
	"unicode/utf8"

	"github.com/gabriel-vasile/mimetype"
	"github.com/google/uuid"
	"github.com/substractum/storefront/pkg/db/models"
	"github.com/substractum/storefront/pkg/enums"
	pkgerrors "github.com/substractum/storefront/pkg/errors"
	"github.com/substractum/storefront/pkg/logger"
	"github.com/substractum/storefront/pkg/outbox"
	"github.com/substractum/storefront/pkg/outbox/payloads"
	"github.com/substractum/storefront/pkg/pagination"
	"gorm.io/gorm"
)

const (
	MinNameLength    = 2
	MaxNameLength    = 100
	MinPhoneDigits   = 10
	MaxPhoneDigits   = 15
	MaxMessageLength = 500
	MaxFileSize      = 5 * 1024 * 1024
	maxFilePath      = 255
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type outboxPublisher interface {
	Emit(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error
}

// Service records prescription quote requests for signed-in buyers.
type Service interface {
	Submit(ctx context.Context, userID uuid.UUID, input SubmitInput) (RequestDTO, error)
	ListRequests(ctx context.Context, userID uuid.UUID, params pagination.Params) (RequestList, error)
	GetRequest(ctx context.Context, userID, requestID uuid.UUID) (RequestDTO, error)
}

// FileRef points at a prescription already uploaded to blob storage under the
// sender's folder.
type FileRef struct {
	Path        string
	ContentType string
	Size        int64
}

// SubmitInput is the quote request form.
type SubmitInput struct {
	Name    string
	Phone   string
	Message *string
	File    *FileRef
}

type service struct {
	repo   Repository
	tx     txRunner
	outbox outboxPublisher
	logg   *logger.Logger
}

// NewService builds the prescriptions service.
func NewService(repo Repository, tx txRunner, publisher outboxPublisher, logg *logger.Logger) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("prescriptions repository required")
	}
	if tx == nil {
		return nil, fmt.Errorf("tx runner required")
	}
	if publisher == nil {
		return nil, fmt.Errorf("outbox publisher required")
	}
	if logg == nil {
		logg = logger.Nop()
	}
	return &service{repo: repo, tx: tx, outbox: publisher, logg: logg}, nil
}

// Submit stores the request and stages a prescription_requested event for
// the pharmacy desk in the same transaction.
func (s *service) Submit(ctx context.Context, userID uuid.UUID, input SubmitInput) (RequestDTO, error) {
	if userID == uuid.Nil {
		return RequestDTO{}, pkgerrors.New(pkgerrors.CodeUnauthorized, "user required")
	}
	row, err := normalize(userID, input)
	if err != nil {
		return RequestDTO{}, err
	}

	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		created, err := s.repo.WithTx(tx).Create(ctx, row)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create prescription request")
		}
		event := outbox.DomainEvent{
			EventType:     enums.EventPrescriptionRequested,
			AggregateType: enums.AggregatePrescriptionRequest,
			AggregateID:   created.ID,
			Actor:         &outbox.ActorRef{UserID: userID, Role: enums.RoleUser.String()},
			Data: payloads.PrescriptionRequestedEvent{
				RequestID:   created.ID,
				UserID:      userID,
				Name:        created.Name,
				Phone:       created.Phone,
				Message:     created.Message,
				FilePath:    created.FilePath,
				RequestedAt: created.CreatedAt,
			},
		}
		if err := s.outbox.Emit(ctx, tx, event); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "stage prescription_requested event")
		}
		return nil
	})
	if err != nil {
		return RequestDTO{}, err
	}

	s.logg.Info(s.logg.WithFields(ctx, map[string]any{
		"prescription_request_id": row.ID.String(),
		"has_file":                row.FilePath != nil,
	}), "prescription request stored")
	return ToRequestDTO(*row), nil
}

func (s *service) ListRequests(ctx context.Context, userID uuid.UUID, params pagination.Params) (RequestList, error) {
	if userID == uuid.Nil {
		return RequestList{}, pkgerrors.New(pkgerrors.CodeUnauthorized, "user required")
	}
	cursor, err := pagination.ParseCursor(params.Cursor)
	if err != nil {
		return RequestList{}, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid cursor")
	}

	rows, err := s.repo.ListByUser(ctx, userID, cursor, pagination.LimitWithBuffer(params.Limit))
	if err != nil {
		return RequestList{}, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list prescription requests")
	}
	page, next := pagination.Trim(rows, params.Limit, func(r models.PrescriptionRequest) pagination.Cursor {
		return pagination.Cursor{CreatedAt: r.CreatedAt, ID: r.ID}
	})

	out := RequestList{Requests: make([]RequestDTO, 0, len(page)), NextCursor: next}
	for _, row := range page {
		out.Requests = append(out.Requests, ToRequestDTO(row))
	}
	return out, nil
}

func (s *service) GetRequest(ctx context.Context, userID, requestID uuid.UUID) (RequestDTO, error) {
	if userID == uuid.Nil {
		return RequestDTO{}, pkgerrors.New(pkgerrors.CodeUnauthorized, "user required")
	}
	if requestID == uuid.Nil {
		return RequestDTO{}, pkgerrors.New(pkgerrors.CodeValidation, "request id required")
	}
	row, err := s.repo.FindForUser(ctx, requestID, userID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return RequestDTO{}, pkgerrors.New(pkgerrors.CodeNotFound, "prescription request not found")
		}
		return RequestDTO{}, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load prescription request")
	}
	return ToRequestDTO(*row), nil
}

func normalize(userID uuid.UUID, input SubmitInput) (*models.PrescriptionRequest, error) {
	name := strings.TrimSpace(input.Name)
	if n := utf8.RuneCountInString(name); n < MinNameLength || n > MaxNameLength {
		return nil, fieldError("name", fmt.Sprintf("must be between %d and %d characters", MinNameLength, MaxNameLength))
	}

	phone, ok := normalizePhone(input.Phone)
	if !ok {
		return nil, fieldError("phone", fmt.Sprintf("must have between %d and %d digits", MinPhoneDigits, MaxPhoneDigits))
	}

	row := &models.PrescriptionRequest{
		ID:        uuid.New(),
		UserID:    userID,
		Name:      name,
		Phone:     phone,
		Status:    enums.PrescriptionStatusPending,
		CreatedAt: time.Now().UTC(),
	}

	if input.Message != nil {
		message := strings.TrimSpace(*input.Message)
		if utf8.RuneCountInString(message) > MaxMessageLength {
			return nil, fieldError("message", fmt.Sprintf("must be at most %d characters", MaxMessageLength))
		}
		if message != "" {
			row.Message = &message
		}
	}

	if input.File != nil {
		if err := attachFile(row, userID, *input.File); err != nil {
			return nil, err
		}
	}
	return row, nil
}

// normalizePhone keeps the digits of a Brazilian phone number, allowing the
// usual separators and a leading plus sign.
func normalizePhone(raw string) (string, bool) {
	raw = strings.TrimSpace(raw)
	var b strings.Builder
	for i, r := range raw {
		switch {
		case unicode.IsDigit(r):
			b.WriteRune(r)
		case r == '+' && i == 0:
		case r == ' ' || r == '-' || r == '(' || r == ')' || r == '.':
		default:
			return "", false
		}
	}
	digits := b.String()
	return digits, len(digits) >= MinPhoneDigits && len(digits) <= MaxPhoneDigits
}

// attachFile accepts images and PDFs stored under the sender's folder.
func attachFile(row *models.PrescriptionRequest, userID uuid.UUID, file FileRef) error {
	objectPath := strings.TrimSpace(file.Path)
	if objectPath == "" {
		return nil
	}
	if len(objectPath) > maxFilePath || path.Clean(objectPath) != objectPath ||
		!strings.HasPrefix(objectPath, userID.String()+"/") {
		return fieldError("file_path", "must point inside the sender's folder")
	}
	if file.Size <= 0 || file.Size > MaxFileSize {
		return fieldError("file_size", "file must be at most 5MB")
	}

	mime := mimetype.Lookup(strings.ToLower(strings.TrimSpace(file.ContentType)))
	if mime == nil || !(mime.Is("application/pdf") || strings.HasPrefix(mime.String(), "image/")) {
		return fieldError("file_content_type", "must be an image or a PDF")
	}

	contentType := mime.String()
	size := file.Size
	row.FilePath = &objectPath
	row.FileContentType = &contentType
	row.FileSize = &size
	return nil
}

func fieldError(field, message string) error {
	return pkgerrors.New(pkgerrors.CodeValidation, "invalid prescription request").
		WithDetails(map[string]any{"field": field, "reason": message})
}
