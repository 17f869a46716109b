package request

// CheckoutItem mirrors one line of the caller's cart at session-creation
// time. Prices arrive in major units (10.00) and are converted to the
// processor's minor unit downstream; an omitted price is filled from the
// catalog.
type CheckoutItem struct {
	ProductID   string  `json:"product_id" binding:"required,uuid"`
	Name        string  `json:"name"`
	Description string  `json:"description"`
	Price       float64 `json:"price" binding:"gte=0"`
	Quantity    int32   `json:"quantity" binding:"required,gt=0"`
	ImageURL    string  `json:"image_url"`
}

// CartItems may be empty for authenticated callers, whose server-side
// cart is used instead.
type CreateCheckoutSessionRequest struct {
	CartItems []CheckoutItem `json:"cart_items" binding:"omitempty,dive"`
}

type ConfirmCheckoutRequest struct {
	SessionID string `json:"session_id" binding:"required"`
}
