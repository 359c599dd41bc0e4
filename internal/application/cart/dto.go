package cart

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/foodcourt/storefront/internal/domain/cart"
	"github.com/foodcourt/storefront/internal/domain/order"
	"github.com/foodcourt/storefront/internal/domain/shared"
)

var validate = validator.New(validator.WithRequiredStructEnabled())

// ==================== Requests ====================

// AddItemRequest adds a quantity of a product to the cart
type AddItemRequest struct {
	ProductID uuid.UUID `json:"product_id" validate:"required"`
	VendorID  uuid.UUID `json:"vendor_id" validate:"required"`
	Name      string    `json:"name" validate:"required,max=200"`
	UnitPrice int64     `json:"unit_price" validate:"gte=0"`
	Quantity  int       `json:"quantity" validate:"gte=1,lte=999"`
	ImageRef  string    `json:"image_ref" validate:"omitempty,max=500"`
}

// ToLine converts the request to a cart line
func (r AddItemRequest) ToLine() cart.CartLine {
	return cart.CartLine{
		ProductID: r.ProductID,
		VendorID:  r.VendorID,
		Name:      strings.TrimSpace(r.Name),
		UnitPrice: r.UnitPrice,
		Quantity:  r.Quantity,
		ImageRef:  r.ImageRef,
	}
}

// CheckoutRequest places an order for one vendor's lines
type CheckoutRequest struct {
	VendorID  uuid.UUID `json:"vendor_id" validate:"required"`
	OrderInfo string    `json:"order_info" validate:"max=500"`
}

// Validate runs struct validation and reports the first failure as a
// validation error
func Validate(req any) error {
	err := validate.Struct(req)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) && len(verrs) > 0 {
		fe := verrs[0]
		return shared.NewValidationError(fmt.Sprintf("%s failed on '%s'", fe.Field(), fe.Tag()))
	}
	return shared.NewValidationError(err.Error())
}

// ==================== Responses ====================

// SyncStatus reports the health of the remote write-back of one cart
type SyncStatus struct {
	Owner         string           `json:"owner"`
	PendingRemote bool             `json:"pending_remote"`
	LastSyncAt    *time.Time       `json:"last_sync_at,omitempty"`
	LastError     string           `json:"last_error,omitempty"`
	LastErrorKind shared.ErrorKind `json:"last_error_kind,omitempty"`
	LastErrorAt   *time.Time       `json:"last_error_at,omitempty"`
	// Stale is set when the cart was loaded from the local cache because the
	// remote store was unreachable
	Stale bool `json:"stale"`
}

// CartView is an immutable snapshot of a cart
type CartView struct {
	Owner     cart.Owner
	Lines     []cart.CartLine
	Total     int64
	ItemCount int
}

// CartLineResponse is a cart line as returned to clients
type CartLineResponse struct {
	ProductID uuid.UUID `json:"product_id"`
	VendorID  uuid.UUID `json:"vendor_id"`
	Name      string    `json:"name"`
	UnitPrice int64     `json:"unit_price"`
	Quantity  int       `json:"quantity"`
	Subtotal  int64     `json:"subtotal"`
	ImageRef  string    `json:"image_ref,omitempty"`
}

// VendorGroupResponse is one vendor's share of the cart
type VendorGroupResponse struct {
	VendorID   uuid.UUID          `json:"vendor_id"`
	Items      []CartLineResponse `json:"items"`
	TotalItems int                `json:"total_items"`
	TotalPrice int64              `json:"total_price"`
}

// CartResponse is the full cart summary
type CartResponse struct {
	Owner     string                `json:"owner"`
	Items     []CartLineResponse    `json:"items"`
	Total     int64                 `json:"total"`
	ItemCount int                   `json:"item_count"`
	Vendors   []VendorGroupResponse `json:"vendors"`
	Sync      SyncStatus            `json:"sync"`
}

// ToCartLineResponse converts a line
func ToCartLineResponse(l cart.CartLine) CartLineResponse {
	return CartLineResponse{
		ProductID: l.ProductID,
		VendorID:  l.VendorID,
		Name:      l.Name,
		UnitPrice: l.UnitPrice,
		Quantity:  l.Quantity,
		Subtotal:  l.Subtotal(),
		ImageRef:  l.ImageRef,
	}
}

func toLineResponses(lines []cart.CartLine) []CartLineResponse {
	out := make([]CartLineResponse, len(lines))
	for i, l := range lines {
		out[i] = ToCartLineResponse(l)
	}
	return out
}

// ToVendorGroupResponse converts a vendor group
func ToVendorGroupResponse(g cart.VendorGroup) VendorGroupResponse {
	return VendorGroupResponse{
		VendorID:   g.VendorID,
		Items:      toLineResponses(g.Items),
		TotalItems: g.TotalItems,
		TotalPrice: g.TotalPrice,
	}
}

// ToCartResponse builds the cart summary from a view and its sync status
func ToCartResponse(v CartView, status SyncStatus) CartResponse {
	groups := cart.GroupByVendor(v.Lines)
	vendors := make([]VendorGroupResponse, len(groups))
	for i, g := range groups {
		vendors[i] = ToVendorGroupResponse(g)
	}
	return CartResponse{
		Owner:     v.Owner.String(),
		Items:     toLineResponses(v.Lines),
		Total:     v.Total,
		ItemCount: v.ItemCount,
		Vendors:   vendors,
		Sync:      status,
	}
}

// CheckoutResult is the outcome of placing an order. The order exists even
// when the payment link could not be created; PaymentError then explains why.
type CheckoutResult struct {
	Order        *order.Order
	PayURL       string
	PaymentError string
}
