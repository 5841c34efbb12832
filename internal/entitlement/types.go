package entitlement

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Product is a purchasable access tier.
type Product string

// Products on sale.
const (
	ProductExam     Product = "exam"
	ProductScenario Product = "scenario"
	ProductBundle   Product = "bundle"
)

// BundleValidity is how long a bundle token grants access after issue.
const BundleValidity = 30 * 24 * time.Hour

var (
	ErrUnknownProduct        = errors.New("unknown product")
	ErrMissingPaymentIntent  = errors.New("payment intent id required")
	ErrMissingUser           = errors.New("user id required")
	ErrPaymentAlreadyClaimed = errors.New("payment already claimed by another entitlement")
)

// ParseProduct validates a raw product value.
func ParseProduct(raw string) (Product, error) {
	switch p := Product(strings.ToLower(strings.TrimSpace(raw))); p {
	case ProductExam, ProductScenario, ProductBundle:
		return p, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownProduct, raw)
	}
}

// Grants reports whether holding p gives access to target. A bundle covers every product.
func (p Product) Grants(target Product) bool {
	return p == target || p == ProductBundle
}

// AccessToken is the entitlement minted for one verified payment.
type AccessToken struct {
	Token           string     `json:"token"`
	PaymentIntentID string     `json:"paymentIntentId"`
	Product         Product    `json:"product"`
	UserID          uuid.UUID  `json:"userId"`
	ExpiresAt       *time.Time `json:"expiresAt"`
	CreatedAt       time.Time  `json:"createdAt"`
}

// Active reports whether the token still grants access at now. Tokens without expiry never lapse.
func (t AccessToken) Active(now time.Time) bool {
	return t.ExpiresAt == nil || now.Before(*t.ExpiresAt)
}
