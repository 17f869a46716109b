package response

import (
	"storefront/internal/usecase/commands"

	"github.com/google/uuid"
)

type CheckoutSessionResponse struct {
	SessionID string `json:"session_id"`
	URL       string `json:"url"`
}

type ConfirmCheckoutResponse struct {
	Success bool       `json:"success"`
	OrderID *uuid.UUID `json:"order_id,omitempty"`
	Status  string     `json:"status,omitempty"`
}

func FromInitiateResult(result *commands.InitiateCheckoutResult) *CheckoutSessionResponse {
	return &CheckoutSessionResponse{
		SessionID: result.SessionID,
		URL:       result.RedirectURL,
	}
}

func FromConfirmResult(result *commands.ConfirmCheckoutResult) *ConfirmCheckoutResponse {
	resp := &ConfirmCheckoutResponse{
		Success: result.Settled,
		Status:  string(result.Status),
	}
	if result.OrderID != uuid.Nil {
		id := result.OrderID
		resp.OrderID = &id
	}
	return resp
}
