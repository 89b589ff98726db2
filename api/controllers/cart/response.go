package cart

import (
	"github.com/shopspring/decimal"

	cartsvc "github.com/substractum/storefront/internal/cart"
	"github.com/substractum/storefront/pkg/enums"
)

type lineResponse struct {
	ProductID string          `json:"product_id"`
	Name      string          `json:"name"`
	ImageURL  string          `json:"image_url"`
	Price     decimal.Decimal `json:"price"`
	Quantity  int             `json:"quantity"`
	Subtotal  decimal.Decimal `json:"subtotal"`
}

type cartResponse struct {
	Items      []lineResponse     `json:"items"`
	TotalItems int                `json:"total_items"`
	TotalPrice decimal.Decimal    `json:"total_price"`
	IsReady    bool               `json:"is_ready"`
	Identity   enums.IdentityKind `json:"identity"`
}

type mergeResponse struct {
	Merged int          `json:"merged"`
	Cart   cartResponse `json:"cart"`
}

func newCartResponse(view cartsvc.View) cartResponse {
	items := make([]lineResponse, 0, len(view.Items))
	for _, item := range view.Items {
		items = append(items, lineResponse{
			ProductID: item.ProductID,
			Name:      item.Name,
			ImageURL:  item.ImageURL,
			Price:     item.Price,
			Quantity:  item.Quantity,
			Subtotal:  item.Subtotal(),
		})
	}
	return cartResponse{
		Items:      items,
		TotalItems: view.TotalItems,
		TotalPrice: view.TotalPrice,
		IsReady:    view.IsReady,
		Identity:   view.Identity,
	}
}
