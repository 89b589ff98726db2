package reviews

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/substractum/storefront/pkg/db/models"
	pkgerrors "github.com/substractum/storefront/pkg/errors"
	"github.com/substractum/storefront/pkg/pagination"
	"gorm.io/gorm"
)

const (
	MinRating        = 1
	MaxRating        = 5
	MinTitleLength   = 3
	MaxTitleLength   = 100
	MinCommentLength = 10
	MaxCommentLength = 1000
)

type productLoader interface {
	FindByID(ctx context.Context, id uuid.UUID) (*models.Product, error)
}

// Service publishes and lists product reviews.
type Service interface {
	ListReviews(ctx context.Context, productID uuid.UUID, params pagination.Params) (ReviewList, error)
	AddReview(ctx context.Context, userID, productID uuid.UUID, input ReviewInput) (ReviewDTO, error)
}

// ReviewInput is the review form.
type ReviewInput struct {
	Rating  int
	Title   string
	Comment string
}

type service struct {
	repo     Repository
	products productLoader
}

// NewService builds the reviews service.
func NewService(repo Repository, products productLoader) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("reviews repository required")
	}
	if products == nil {
		return nil, fmt.Errorf("product loader required")
	}
	return &service{repo: repo, products: products}, nil
}

func (s *service) ListReviews(ctx context.Context, productID uuid.UUID, params pagination.Params) (ReviewList, error) {
	if err := s.ensureProduct(ctx, productID); err != nil {
		return ReviewList{}, err
	}
	cursor, err := pagination.ParseCursor(params.Cursor)
	if err != nil {
		return ReviewList{}, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid cursor")
	}

	rows, err := s.repo.ListByProduct(ctx, productID, cursor, pagination.LimitWithBuffer(params.Limit))
	if err != nil {
		return ReviewList{}, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list reviews")
	}
	summary, err := s.repo.Summarize(ctx, productID)
	if err != nil {
		return ReviewList{}, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "summarize reviews")
	}
	page, next := pagination.Trim(rows, params.Limit, func(r models.ProductReview) pagination.Cursor {
		return pagination.Cursor{CreatedAt: r.CreatedAt, ID: r.ID}
	})

	out := ReviewList{Summary: summary, Reviews: make([]ReviewDTO, 0, len(page)), NextCursor: next}
	for _, row := range page {
		out.Reviews = append(out.Reviews, ToReviewDTO(row))
	}
	return out, nil
}

// AddReview publishes the buyer's review. Each buyer reviews a product once.
func (s *service) AddReview(ctx context.Context, userID, productID uuid.UUID, input ReviewInput) (ReviewDTO, error) {
	if userID == uuid.Nil {
		return ReviewDTO{}, pkgerrors.New(pkgerrors.CodeUnauthorized, "user required")
	}
	title := strings.TrimSpace(input.Title)
	comment := strings.TrimSpace(input.Comment)
	if input.Rating < MinRating || input.Rating > MaxRating {
		return ReviewDTO{}, fieldError("rating", fmt.Sprintf("must be between %d and %d", MinRating, MaxRating))
	}
	if n := utf8.RuneCountInString(title); n < MinTitleLength || n > MaxTitleLength {
		return ReviewDTO{}, fieldError("title", fmt.Sprintf("must be between %d and %d characters", MinTitleLength, MaxTitleLength))
	}
	if n := utf8.RuneCountInString(comment); n < MinCommentLength || n > MaxCommentLength {
		return ReviewDTO{}, fieldError("comment", fmt.Sprintf("must be between %d and %d characters", MinCommentLength, MaxCommentLength))
	}
	if err := s.ensureProduct(ctx, productID); err != nil {
		return ReviewDTO{}, err
	}

	exists, err := s.repo.ExistsForUser(ctx, productID, userID)
	if err != nil {
		return ReviewDTO{}, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "check existing review")
	}
	if exists {
		return ReviewDTO{}, pkgerrors.New(pkgerrors.CodeConflict, "product already reviewed").
			WithDetails(map[string]any{"product_id": productID.String()})
	}

	created, err := s.repo.Create(ctx, &models.ProductReview{
		ProductID: productID,
		UserID:    userID,
		Rating:    input.Rating,
		Title:     title,
		Comment:   comment,
		CreatedAt: time.Now().UTC(),
	})
	if err != nil {
		return ReviewDTO{}, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create review")
	}
	return ToReviewDTO(*created), nil
}

func (s *service) ensureProduct(ctx context.Context, productID uuid.UUID) error {
	if productID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "product id required")
	}
	if _, err := s.products.FindByID(ctx, productID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return pkgerrors.New(pkgerrors.CodeNotFound, "product not found")
		}
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load product")
	}
	return nil
}

func fieldError(field, message string) error {
	return pkgerrors.New(pkgerrors.CodeValidation, "invalid review").
		WithDetails(map[string]any{"field": field, "reason": message})
}
