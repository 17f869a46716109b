package response

import (
	"encoding/json"
	"time"

	"storefront/internal/usecase/queries"

	"github.com/google/uuid"
)

type OrderResponse struct {
	ID              uuid.UUID           `json:"id"`
	TotalCents      int64               `json:"totalCents"`
	Status          string              `json:"status"`
	SessionID       string              `json:"sessionId"`
	ShippingAddress json.RawMessage     `json:"shippingAddress,omitempty"`
	Items           []OrderItemResponse `json:"items"`
	CreatedAt       time.Time           `json:"createdAt"`
}

type OrderItemResponse struct {
	ProductID      uuid.UUID `json:"productId"`
	ProductName    string    `json:"productName"`
	Quantity       int32     `json:"quantity"`
	UnitPriceCents int64     `json:"unitPriceCents"`
}

func FromOrderView(view *queries.OrderView) *OrderResponse {
	items := make([]OrderItemResponse, len(view.Items))
	for i, it := range view.Items {
		items[i] = OrderItemResponse{
			ProductID:      it.ProductID,
			ProductName:    it.ProductName,
			Quantity:       it.Quantity,
			UnitPriceCents: it.UnitPriceCents,
		}
	}
	return &OrderResponse{
		ID:              view.ID,
		TotalCents:      view.TotalCents,
		Status:          view.Status,
		SessionID:       view.SessionID,
		ShippingAddress: view.ShippingAddress,
		Items:           items,
		CreatedAt:       view.CreatedAt,
	}
}
