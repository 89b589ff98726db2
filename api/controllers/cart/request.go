package cart

type addItemRequest struct {
	ProductID string `json:"product_id" validate:"required,uuid"`
	Quantity  int    `json:"quantity" validate:"omitempty,min=1,max=99"`
}

func (r addItemRequest) quantity() int {
	if r.Quantity == 0 {
		return 1
	}
	return r.Quantity
}

type updateItemRequest struct {
	Quantity *int `json:"quantity" validate:"required,max=99"`
}

type mergeRequest struct {
	GuestID string `json:"guest_id" validate:"omitempty,max=64"`
}
