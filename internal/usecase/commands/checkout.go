package commands

import (
	"context"
	"log/slog"

	"storefront/internal/domain/checkout"
	"storefront/internal/domain/order"
	reqdto "storefront/internal/handler/dto/request"
	"storefront/internal/infra"
	"storefront/internal/infra/payment"
	"storefront/internal/pkg/clock"
	"storefront/internal/pkg/config"
	"storefront/internal/pkg/errs"
	"storefront/internal/pkg/identity"
	"storefront/internal/pkg/money"
	"storefront/internal/usecase/shared"

	"github.com/google/uuid"
)

var (
	ErrInvalidCart             = errs.New("invalid cart")
	ErrPaymentProvider         = errs.New("payment provider request failed")
	ErrSessionNotFound         = errs.New("session not found")
	ErrCorruptSessionMetadata  = errs.New("corrupt session metadata")
	ErrInsufficientStock       = errs.New("insufficient stock")
	ErrDatabaseOperationFailed = errs.New("database operation failed")
)

const (
	metadataUserIDKey    = "user_id"
	metadataCartItemsKey = "cart_items"
)

type InitiateCheckoutResult struct {
	SessionID   string
	RedirectURL string
}

type ConfirmCheckoutResult struct {
	Settled  bool
	OrderID  uuid.UUID
	Status   order.Status
	Replayed bool
}

type CheckoutCommands interface {
	InitiateCheckout(ctx context.Context, req reqdto.CreateCheckoutSessionRequest, ident *identity.Identity) (*InitiateCheckoutResult, error)
	ConfirmCheckout(ctx context.Context, sessionID string) (*ConfirmCheckoutResult, error)
}

type checkoutUseCaseImpl struct {
	gateway shared.PaymentGateway
	uow     shared.UnitOfWork
	cfg     config.CheckoutConfig
	clock   clock.Clock
}

func NewCheckoutUseCase(
	gateway shared.PaymentGateway,
	uow shared.UnitOfWork,
	cfg config.CheckoutConfig,
	clk clock.Clock,
) CheckoutCommands {
	return &checkoutUseCaseImpl{
		gateway: gateway,
		uow:     uow,
		cfg:     cfg,
		clock:   clk,
	}
}

// InitiateCheckout opens a payment session for the submitted cart. The
// store is never written here: the only side effect is the remote session
// object, which carries a tamper-evident copy of the cart in its metadata.
func (c *checkoutUseCaseImpl) InitiateCheckout(
	ctx context.Context,
	req reqdto.CreateCheckoutSessionRequest,
	ident *identity.Identity,
) (*InitiateCheckoutResult, error) {
	snapshot, lineItems, err := c.buildSnapshot(ctx, req, ident)
	if err != nil {
		return nil, err
	}

	customerID := c.resolveCustomer(ctx, ident)

	metadata, err := buildMetadata(snapshot, ident)
	if err != nil {
		return nil, errs.Mark(err, ErrInvalidCart)
	}

	session, err := c.gateway.CreateSession(ctx, shared.CreateSessionParams{
		CustomerID: customerID,
		LineItems:  lineItems,
		SuccessURL: c.cfg.SuccessURL,
		CancelURL:  c.cfg.CancelURL,
		Metadata:   metadata,
	})
	if err != nil {
		return nil, errs.Mark(err, ErrPaymentProvider)
	}

	return &InitiateCheckoutResult{
		SessionID:   session.ID,
		RedirectURL: session.URL,
	}, nil
}

// ConfirmCheckout settles a session: it is safe to call any number of
// times from any caller (redirect visit, webhook, poller) because the
// order row keyed by session id makes the materialization idempotent.
func (c *checkoutUseCaseImpl) ConfirmCheckout(ctx context.Context, sessionID string) (*ConfirmCheckoutResult, error) {
	status, err := c.gateway.RetrieveSession(ctx, sessionID)
	if err != nil {
		if errs.Is(err, payment.ErrSessionNotFound) {
			return nil, errs.Mark(err, ErrSessionNotFound)
		}
		return nil, errs.Mark(err, ErrPaymentProvider)
	}

	if !status.Paid() {
		// Expected while the customer is still on the hosted page;
		// callers may poll.
		return &ConfirmCheckoutResult{Settled: false}, nil
	}

	existing, err := c.uow.Reads().OrderBySessionID(ctx, sessionID)
	if err != nil {
		return nil, errs.Mark(err, ErrDatabaseOperationFailed)
	}
	if existing != nil {
		return replayResult(existing), nil
	}

	userID, snapshot, err := decodeSessionMetadata(status)
	if err != nil {
		slog.Error("session metadata failed to decode",
			"session_id", sessionID,
			"error", err.Error())
		return nil, errs.Mark(err, ErrCorruptSessionMetadata)
	}

	total := money.Cents(status.AmountTotalCents)
	if total == 0 {
		// The processor should always report the charged amount for a
		// paid session; fall back to the snapshot sum rather than
		// recording a zero-value order.
		total = snapshot.Subtotal()
	}

	created, err := c.materialize(ctx, userID, sessionID, total, snapshot, status)
	if err == nil {
		return &ConfirmCheckoutResult{
			Settled: true,
			OrderID: created.ID(),
			Status:  created.Status(),
		}, nil
	}

	switch {
	case infra.IsKind(err, infra.KindDuplicateKey):
		// Race lost: another settlement attempt for this session
		// committed first. Fall back to the idempotent read path.
		return c.replayAfterLostRace(ctx, sessionID)
	case infra.IsKind(err, infra.KindInsufficientStock):
		// The shortfall may be the winner of a settlement race having
		// taken the stock this same session already paid for. Re-read
		// before recording a failure.
		if existing, readErr := c.uow.Reads().OrderBySessionID(ctx, sessionID); readErr == nil && existing != nil {
			return replayResult(existing), nil
		}
		c.recordStockFailure(ctx, userID, sessionID, total)
		return nil, ErrInsufficientStock
	default:
		return nil, errs.Mark(err, ErrDatabaseOperationFailed)
	}
}

// materialize runs the one-time settlement writes as a single unit:
// stock decrements, order row, order items, cart cleanup. Any failure
// rolls back all of them.
func (c *checkoutUseCaseImpl) materialize(
	ctx context.Context,
	userID uuid.UUID,
	sessionID string,
	total money.Cents,
	snapshot *checkout.CartSnapshot,
	status *shared.SessionStatus,
) (*order.Order, error) {
	var created *order.Order

	err := c.uow.Within(ctx, func(ctx context.Context, tx shared.Tx) error {
		for _, it := range snapshot.Items() {
			if err := tx.Products().DecrementStock(ctx, it.ProductID, it.Quantity); err != nil {
				return err
			}
		}

		ord, err := order.NewSettled(userID, sessionID, total, snapshot, status.ShippingAddress, c.clock.Now())
		if err != nil {
			return err
		}

		if err := tx.Orders().Create(ctx, ord); err != nil {
			return err
		}
		if err := tx.Orders().CreateItems(ctx, ord.ID(), ord.Items()); err != nil {
			return err
		}

		if userID != uuid.Nil {
			if _, err := tx.Carts().ClearByUser(ctx, userID); err != nil {
				return err
			}
		}

		created = ord
		return nil
	})
	if err != nil {
		return nil, err
	}
	return created, nil
}

func (c *checkoutUseCaseImpl) replayAfterLostRace(ctx context.Context, sessionID string) (*ConfirmCheckoutResult, error) {
	existing, err := c.uow.Reads().OrderBySessionID(ctx, sessionID)
	if err != nil {
		return nil, errs.Mark(err, ErrDatabaseOperationFailed)
	}
	if existing == nil {
		return nil, errs.Mark(errs.New("duplicate order insert but no order found"), ErrDatabaseOperationFailed)
	}
	return replayResult(existing), nil
}

// recordStockFailure leaves a durable failed-status order so the paid
// session can be reconciled manually. Losing a race here is fine: some
// other attempt already recorded the same terminal outcome.
func (c *checkoutUseCaseImpl) recordStockFailure(ctx context.Context, userID uuid.UUID, sessionID string, total money.Cents) {
	failed := order.NewStockFailed(userID, sessionID, total, c.clock.Now())

	err := c.uow.Within(ctx, func(ctx context.Context, tx shared.Tx) error {
		return tx.Orders().Create(ctx, failed)
	})
	if err != nil && !infra.IsKind(err, infra.KindDuplicateKey) {
		slog.Error("failed to record stock-failure order",
			"session_id", sessionID,
			"error", err.Error())
	}
}

func (c *checkoutUseCaseImpl) resolveCustomer(ctx context.Context, ident *identity.Identity) string {
	if ident == nil || ident.Email == "" {
		return ""
	}
	customerID, err := c.gateway.FindOrCreateCustomer(ctx, ident.Email, ident.UserID)
	if err != nil {
		slog.Warn("customer lookup failed, continuing without customer",
			"user_id", ident.UserID.String(),
			"error", err.Error())
		return ""
	}
	return customerID
}

// buildSnapshot resolves the cart to charge. Submitted lines win; an
// authenticated request without lines falls back to the server-side
// cart. Lines without a price are priced from the catalog.
func (c *checkoutUseCaseImpl) buildSnapshot(
	ctx context.Context,
	req reqdto.CreateCheckoutSessionRequest,
	ident *identity.Identity,
) (*checkout.CartSnapshot, []shared.SessionLineItem, error) {
	if len(req.CartItems) == 0 {
		if ident == nil {
			return nil, nil, errs.Mark(checkout.ErrEmptyCart, ErrInvalidCart)
		}
		return c.snapshotFromStoredCart(ctx, ident.UserID)
	}

	items := make([]checkout.SnapshotItem, len(req.CartItems))
	lineItems := make([]shared.SessionLineItem, len(req.CartItems))
	for i, it := range req.CartItems {
		productID, err := uuid.Parse(it.ProductID)
		if err != nil {
			return nil, nil, errs.Mark(errs.Wrap(err, "invalid product id"), ErrInvalidCart)
		}

		name := it.Name
		imageURL := it.ImageURL
		unitPrice := money.FromFloat(it.Price)
		if it.Price == 0 {
			product, err := c.uow.Reads().ProductByID(ctx, productID)
			if err != nil {
				return nil, nil, errs.Mark(err, ErrDatabaseOperationFailed)
			}
			if product == nil {
				return nil, nil, errs.Mark(errs.New("unknown product "+productID.String()), ErrInvalidCart)
			}
			unitPrice = money.Cents(product.PriceCents)
			if name == "" {
				name = product.Name
			}
			if imageURL == "" {
				imageURL = product.ImageURL
			}
		}

		items[i] = checkout.SnapshotItem{
			ProductID: productID,
			Name:      name,
			UnitPrice: unitPrice,
			Quantity:  it.Quantity,
			ImageURL:  imageURL,
		}
		lineItems[i] = shared.SessionLineItem{
			Name:           name,
			Description:    it.Description,
			ImageURL:       imageURL,
			UnitPriceCents: unitPrice.Int64(),
			Quantity:       it.Quantity,
		}
	}

	snapshot, err := checkout.NewCartSnapshot(items)
	if err != nil {
		return nil, nil, errs.Mark(err, ErrInvalidCart)
	}
	return snapshot, lineItems, nil
}

func (c *checkoutUseCaseImpl) snapshotFromStoredCart(ctx context.Context, userID uuid.UUID) (*checkout.CartSnapshot, []shared.SessionLineItem, error) {
	stored, err := c.uow.Reads().CartItemsByUser(ctx, userID)
	if err != nil {
		return nil, nil, errs.Mark(err, ErrDatabaseOperationFailed)
	}
	if len(stored) == 0 {
		return nil, nil, errs.Mark(checkout.ErrEmptyCart, ErrInvalidCart)
	}

	items := make([]checkout.SnapshotItem, len(stored))
	lineItems := make([]shared.SessionLineItem, len(stored))
	for i, it := range stored {
		imageURL := ""
		if it.ImageURL != nil {
			imageURL = *it.ImageURL
		}
		items[i] = checkout.SnapshotItem{
			ProductID: it.ProductID,
			Name:      it.ProductName,
			UnitPrice: money.Cents(it.UnitPriceCents),
			Quantity:  it.Quantity,
			ImageURL:  imageURL,
		}
		lineItems[i] = shared.SessionLineItem{
			Name:           it.ProductName,
			ImageURL:       imageURL,
			UnitPriceCents: it.UnitPriceCents,
			Quantity:       it.Quantity,
		}
	}

	snapshot, err := checkout.NewCartSnapshot(items)
	if err != nil {
		return nil, nil, errs.Mark(err, ErrInvalidCart)
	}
	return snapshot, lineItems, nil
}

func buildMetadata(snapshot *checkout.CartSnapshot, ident *identity.Identity) (map[string]string, error) {
	encoded, err := snapshot.EncodeMetadata()
	if err != nil {
		return nil, err
	}
	return map[string]string{
		metadataUserIDKey:    identity.MetadataUserID(ident),
		metadataCartItemsKey: encoded,
	}, nil
}

func decodeSessionMetadata(status *shared.SessionStatus) (uuid.UUID, *checkout.CartSnapshot, error) {
	rawUserID, ok := status.Metadata[metadataUserIDKey]
	if !ok {
		return uuid.Nil, nil, errs.New("session metadata missing user id")
	}

	userID := uuid.Nil
	if rawUserID != identity.GuestMarker {
		parsed, err := uuid.Parse(rawUserID)
		if err != nil {
			return uuid.Nil, nil, errs.Wrap(err, "session metadata user id unparsable")
		}
		userID = parsed
	}

	snapshot, err := checkout.DecodeMetadata(status.Metadata[metadataCartItemsKey])
	if err != nil {
		return uuid.Nil, nil, err
	}
	return userID, snapshot, nil
}

func replayResult(existing *shared.OrderSnapshot) *ConfirmCheckoutResult {
	return &ConfirmCheckoutResult{
		Settled:  existing.Status == order.StatusCompleted,
		OrderID:  existing.ID,
		Status:   existing.Status,
		Replayed: true,
	}
}
