package checkout

import (
	"encoding/json"

	"storefront/internal/pkg/errs"
	"storefront/internal/pkg/money"

	"github.com/google/uuid"
)

var (
	ErrEmptyCart         = errs.New("cart has no items")
	ErrInvalidQuantity   = errs.New("line item quantity must be positive")
	ErrInvalidPrice      = errs.New("line item price must be positive")
	ErrMalformedSnapshot = errs.New("cart snapshot is malformed")
)

// SnapshotItem is one line of a cart captured at session-creation time.
// Name and ImageURL are display-only and are not carried into the
// settlement metadata.
type SnapshotItem struct {
	ProductID uuid.UUID
	Name      string
	UnitPrice money.Cents
	Quantity  int32
	ImageURL  string
}

// CartSnapshot is an immutable copy of cart contents, independent of the
// live cart the items were copied from.
type CartSnapshot struct {
	items []SnapshotItem
}

func NewCartSnapshot(items []SnapshotItem) (*CartSnapshot, error) {
	if len(items) == 0 {
		return nil, ErrEmptyCart
	}
	for _, it := range items {
		if it.Quantity <= 0 {
			return nil, ErrInvalidQuantity
		}
		if it.UnitPrice <= 0 {
			return nil, ErrInvalidPrice
		}
	}
	copied := make([]SnapshotItem, len(items))
	copy(copied, items)
	return &CartSnapshot{items: copied}, nil
}

func (s *CartSnapshot) Items() []SnapshotItem {
	return s.items
}

func (s *CartSnapshot) Subtotal() money.Cents {
	var total money.Cents
	for _, it := range s.items {
		total += it.UnitPrice * money.Cents(it.Quantity)
	}
	return total
}

// metadataItem is the wire form embedded in the payment session metadata.
// Only the fields settlement needs survive the round trip.
type metadataItem struct {
	ProductID      uuid.UUID `json:"product_id"`
	Quantity       int32     `json:"quantity"`
	UnitPriceCents int64     `json:"unit_price_cents"`
}

// EncodeMetadata serializes the snapshot for the session metadata field.
func (s *CartSnapshot) EncodeMetadata() (string, error) {
	wire := make([]metadataItem, len(s.items))
	for i, it := range s.items {
		wire[i] = metadataItem{
			ProductID:      it.ProductID,
			Quantity:       it.Quantity,
			UnitPriceCents: it.UnitPrice.Int64(),
		}
	}
	data, err := json.Marshal(wire)
	if err != nil {
		return "", errs.Mark(err, ErrMalformedSnapshot)
	}
	return string(data), nil
}

// DecodeMetadata parses a snapshot previously embedded by EncodeMetadata.
// An unparsable or empty payload is rejected, never defaulted.
func DecodeMetadata(raw string) (*CartSnapshot, error) {
	if raw == "" {
		return nil, ErrMalformedSnapshot
	}
	var wire []metadataItem
	if err := json.Unmarshal([]byte(raw), &wire); err != nil {
		return nil, errs.Mark(err, ErrMalformedSnapshot)
	}
	if len(wire) == 0 {
		return nil, ErrEmptyCart
	}
	items := make([]SnapshotItem, len(wire))
	for i, w := range wire {
		if w.ProductID == uuid.Nil {
			return nil, ErrMalformedSnapshot
		}
		if w.Quantity <= 0 {
			return nil, ErrInvalidQuantity
		}
		if w.UnitPriceCents <= 0 {
			return nil, ErrInvalidPrice
		}
		items[i] = SnapshotItem{
			ProductID: w.ProductID,
			Quantity:  w.Quantity,
			UnitPrice: money.Cents(w.UnitPriceCents),
		}
	}
	return &CartSnapshot{items: items}, nil
}
