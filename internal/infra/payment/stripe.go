package payment

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"storefront/internal/pkg/config"
	"storefront/internal/pkg/errs"
	"storefront/internal/usecase/shared"

	"github.com/google/uuid"
)

var (
	ErrSessionNotFound = errs.New("checkout session not found")
	ErrProviderCall    = errs.New("payment provider call failed")
)

// StripeClient talks to the Stripe REST API directly: form-encoded
// requests, Bearer secret key, JSON responses.
type StripeClient struct {
	httpClient *http.Client
	baseURL    string
	secretKey  string
	currency   string
}

func NewStripeClient(cfg config.StripeConfig) *StripeClient {
	return &StripeClient{
		httpClient: &http.Client{
			Timeout: cfg.Timeout,
		},
		baseURL:   cfg.APIBaseURL,
		secretKey: cfg.SecretKey,
		currency:  cfg.Currency,
	}
}

type checkoutSessionResponse struct {
	ID              string            `json:"id"`
	URL             string            `json:"url"`
	PaymentStatus   string            `json:"payment_status"`
	AmountTotal     int64             `json:"amount_total"`
	Metadata        map[string]string `json:"metadata"`
	ShippingDetails *struct {
		Address json.RawMessage `json:"address"`
	} `json:"shipping_details"`
}

type customerListResponse struct {
	Data []struct {
		ID string `json:"id"`
	} `json:"data"`
}

type customerResponse struct {
	ID string `json:"id"`
}

type apiError struct {
	Err struct {
		Type    string `json:"type"`
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

func (c *StripeClient) CreateSession(ctx context.Context, params shared.CreateSessionParams) (*shared.PaymentSession, error) {
	form := url.Values{}
	form.Set("mode", "payment")
	form.Set("success_url", params.SuccessURL)
	form.Set("cancel_url", params.CancelURL)
	if params.CustomerID != "" {
		form.Set("customer", params.CustomerID)
	}
	for i, item := range params.LineItems {
		prefix := fmt.Sprintf("line_items[%d]", i)
		form.Set(prefix+"[price_data][currency]", c.currency)
		form.Set(prefix+"[price_data][unit_amount]", strconv.FormatInt(item.UnitPriceCents, 10))
		form.Set(prefix+"[price_data][product_data][name]", item.Name)
		if item.Description != "" {
			form.Set(prefix+"[price_data][product_data][description]", item.Description)
		}
		if item.ImageURL != "" {
			form.Set(prefix+"[price_data][product_data][images][0]", item.ImageURL)
		}
		form.Set(prefix+"[quantity]", strconv.FormatInt(int64(item.Quantity), 10))
	}
	for key, value := range params.Metadata {
		form.Set("metadata["+key+"]", value)
	}

	var resp checkoutSessionResponse
	if err := c.do(ctx, http.MethodPost, "/v1/checkout/sessions", form, &resp); err != nil {
		return nil, err
	}
	return &shared.PaymentSession{ID: resp.ID, URL: resp.URL}, nil
}

func (c *StripeClient) RetrieveSession(ctx context.Context, sessionID string) (*shared.SessionStatus, error) {
	var resp checkoutSessionResponse
	if err := c.do(ctx, http.MethodGet, "/v1/checkout/sessions/"+url.PathEscape(sessionID), nil, &resp); err != nil {
		return nil, err
	}

	status := &shared.SessionStatus{
		ID:               resp.ID,
		PaymentStatus:    resp.PaymentStatus,
		AmountTotalCents: resp.AmountTotal,
		Metadata:         resp.Metadata,
	}
	if resp.ShippingDetails != nil {
		status.ShippingAddress = resp.ShippingDetails.Address
	}
	return status, nil
}

func (c *StripeClient) FindOrCreateCustomer(ctx context.Context, email string, userID uuid.UUID) (string, error) {
	query := url.Values{}
	query.Set("email", email)
	query.Set("limit", "1")

	var list customerListResponse
	if err := c.do(ctx, http.MethodGet, "/v1/customers?"+query.Encode(), nil, &list); err != nil {
		return "", err
	}
	if len(list.Data) > 0 {
		return list.Data[0].ID, nil
	}

	form := url.Values{}
	form.Set("email", email)
	form.Set("metadata[user_id]", userID.String())

	var created customerResponse
	if err := c.do(ctx, http.MethodPost, "/v1/customers", form, &created); err != nil {
		return "", err
	}
	return created.ID, nil
}

func (c *StripeClient) do(ctx context.Context, method, path string, form url.Values, out any) error {
	var body io.Reader
	if form != nil {
		body = strings.NewReader(form.Encode())
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return errs.Mark(err, ErrProviderCall)
	}
	req.Header.Set("Authorization", "Bearer "+c.secretKey)
	if form != nil {
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return errs.Mark(err, ErrProviderCall)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		var apiErr apiError
		if decodeErr := json.NewDecoder(resp.Body).Decode(&apiErr); decodeErr == nil {
			if resp.StatusCode == http.StatusNotFound || apiErr.Err.Code == "resource_missing" {
				return ErrSessionNotFound
			}
			return errs.Mark(
				errs.New(fmt.Sprintf("stripe %s %s: %s (%s)", method, path, apiErr.Err.Message, apiErr.Err.Type)),
				ErrProviderCall,
			)
		}
		if resp.StatusCode == http.StatusNotFound {
			return ErrSessionNotFound
		}
		return errs.Mark(errs.New(fmt.Sprintf("stripe %s %s: status %d", method, path, resp.StatusCode)), ErrProviderCall)
	}

	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return errs.Mark(err, ErrProviderCall)
		}
	}
	return nil
}

var _ shared.PaymentGateway = (*StripeClient)(nil)
