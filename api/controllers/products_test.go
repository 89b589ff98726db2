package controllers

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	productsvc "github.com/substractum/storefront/internal/products"
	"github.com/substractum/storefront/pkg/db/models"
	pkgerrors "github.com/substractum/storefront/pkg/errors"
	"github.com/substractum/storefront/pkg/logger"
	"github.com/substractum/storefront/pkg/pagination"
)

type stubProductService struct {
	product    *models.Product
	list       productsvc.ProductListDTO
	err        error
	lastFilter productsvc.ListFilter
	lastParams pagination.Params
}

func (s *stubProductService) GetProduct(ctx context.Context, id uuid.UUID) (*models.Product, error) {
	if s.err != nil {
		return nil, s.err
	}
	return s.product, nil
}

func (s *stubProductService) ListProducts(ctx context.Context, filter productsvc.ListFilter, params pagination.Params) (productsvc.ProductListDTO, error) {
	s.lastFilter = filter
	s.lastParams = params
	return s.list, s.err
}

func testLogger() *logger.Logger {
	return logger.New(logger.Options{ServiceName: "test", Level: logger.ParseLevel("debug"), Output: io.Discard})
}

func TestProductListParsesFilters(t *testing.T) {
	stub := &stubProductService{list: productsvc.ProductListDTO{NextCursor: "next"}}
	req := httptest.NewRequest(http.MethodGet, "/api/v1/products?category=vitaminas&in_stock=true&q=%20vit%20&limit=5&cursor=abc", nil)
	rec := httptest.NewRecorder()
	ProductList(stub, testLogger()).ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d", rec.Code)
	}
	if stub.lastFilter.Category != "vitaminas" || !stub.lastFilter.InStockOnly || stub.lastFilter.Search != "vit" {
		t.Fatalf("unexpected filter %+v", stub.lastFilter)
	}
	if stub.lastParams.Limit != 5 || stub.lastParams.Cursor != "abc" {
		t.Fatalf("unexpected params %+v", stub.lastParams)
	}
}

func TestProductListRejectsBadQuery(t *testing.T) {
	for _, url := range []string{"/api/v1/products?in_stock=maybe", "/api/v1/products?limit=1000"} {
		rec := httptest.NewRecorder()
		ProductList(&stubProductService{}, nil).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, url, nil))
		if rec.Code != http.StatusBadRequest {
			t.Fatalf("%s: expected 400 got %d", url, rec.Code)
		}
	}
}

func TestProductDetail(t *testing.T) {
	productID := uuid.New()
	makeRequest := func(id string, svc productsvc.Service) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodGet, "/api/v1/products/"+id, nil)
		routeCtx := chi.NewRouteContext()
		routeCtx.URLParams.Add("productId", id)
		req = req.WithContext(context.WithValue(req.Context(), chi.RouteCtxKey, routeCtx))
		rec := httptest.NewRecorder()
		ProductDetail(svc, nil).ServeHTTP(rec, req)
		return rec
	}

	t.Run("invalid id", func(t *testing.T) {
		if rec := makeRequest("not-a-uuid", &stubProductService{}); rec.Code != http.StatusBadRequest {
			t.Fatalf("expected 400 got %d", rec.Code)
		}
	})

	t.Run("not found", func(t *testing.T) {
		stub := &stubProductService{err: pkgerrors.New(pkgerrors.CodeNotFound, "product not found")}
		if rec := makeRequest(productID.String(), stub); rec.Code != http.StatusNotFound {
			t.Fatalf("expected 404 got %d", rec.Code)
		}
	})

	t.Run("success", func(t *testing.T) {
		stub := &stubProductService{product: &models.Product{
			ID:                   productID,
			Name:                 "Amoxicilina 500mg",
			Price:                decimal.RequireFromString("35.90"),
			Category:             "antibioticos",
			InStock:              true,
			RequiresPrescription: true,
		}}
		rec := makeRequest(productID.String(), stub)
		if rec.Code != http.StatusOK {
			t.Fatalf("expected 200 got %d", rec.Code)
		}
		var envelope struct {
			Data productsvc.ProductDTO `json:"data"`
		}
		if err := json.Unmarshal(rec.Body.Bytes(), &envelope); err != nil {
			t.Fatalf("decode: %v", err)
		}
		if envelope.Data.ID != productID || !envelope.Data.RequiresPrescription {
			t.Fatalf("unexpected product %+v", envelope.Data)
		}
	})
}
