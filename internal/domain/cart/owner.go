package cart

import (
	"strings"

	"github.com/google/uuid"
)

const (
	guestKey       = "guest"
	cacheKeyPrefix = "cart_"
)

// Owner identifies who a cart belongs to: the anonymous guest or an
// authenticated user. The zero value is the guest.
type Owner struct {
	userID uuid.UUID
}

// GuestOwner is the anonymous owner
var GuestOwner = Owner{}

// UserOwner returns the owner for an authenticated user
func UserOwner(userID uuid.UUID) Owner {
	return Owner{userID: userID}
}

// ParseOwner parses the string form produced by Owner.String
func ParseOwner(s string) (Owner, error) {
	if s == "" || s == guestKey {
		return GuestOwner, nil
	}
	id, err := uuid.Parse(s)
	if err != nil {
		return GuestOwner, err
	}
	return UserOwner(id), nil
}

// IsGuest reports whether the owner is anonymous
func (o Owner) IsGuest() bool {
	return o.userID == uuid.Nil
}

// UserID returns the user id, uuid.Nil for the guest
func (o Owner) UserID() uuid.UUID {
	return o.userID
}

// String returns "guest" or the user id
func (o Owner) String() string {
	if o.IsGuest() {
		return guestKey
	}
	return o.userID.String()
}

// CacheKey returns the local cache key for this owner's cart:
// cart_guest or cart_<userId>.
func (o Owner) CacheKey() string {
	return cacheKeyPrefix + o.String()
}

// IsCacheKey reports whether key has the cart cache key shape
func IsCacheKey(key string) bool {
	return strings.HasPrefix(key, cacheKeyPrefix)
}
