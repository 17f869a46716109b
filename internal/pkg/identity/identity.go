package identity

import "github.com/google/uuid"

// GuestMarker is the user id written into session metadata when checkout
// starts without an authenticated identity.
const GuestMarker = "guest"

// Identity is the authenticated caller of a checkout request.
type Identity struct {
	UserID uuid.UUID
	Email  string
}

// MetadataUserID returns the value stored in the payment session metadata:
// the user id for authenticated checkouts, the guest marker otherwise.
func MetadataUserID(id *Identity) string {
	if id == nil {
		return GuestMarker
	}
	return id.UserID.String()
}
