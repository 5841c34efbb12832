package payment

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/gokatarajesh/mortgage-trainer/internal/entitlement"
)

// Intent status values reported by the gateway.
const (
	StatusSucceeded = "succeeded"
)

// Metadata keys attached to every intent this service creates.
const (
	MetadataProduct = "product"
	MetadataUserID  = "user_id"
)

var (
	ErrPaymentsUnavailable = errors.New("payments are not configured")
	ErrNotCompleted        = errors.New("payment has not completed")
	ErrMismatch            = errors.New("payment does not match the catalog")
	ErrWrongUser           = errors.New("payment belongs to another user")
	ErrMissingIntent       = errors.New("payment intent id required")
	ErrInvalidSignature    = errors.New("invalid webhook signature")
	ErrUnknownIntent       = errors.New("payment intent not found")
	ErrIssueFailed         = errors.New("access token could not be issued")
)

// Price is the catalog amount for one product, in minor units.
type Price struct {
	Amount   int64  `json:"amount"`
	Currency string `json:"currency"`
}

// Catalog maps each product to its price.
type Catalog map[entitlement.Product]Price

// NewCatalog builds a catalog where every product shares the same currency.
func NewCatalog(currency string, exam, scenario, bundle int64) Catalog {
	currency = strings.ToLower(strings.TrimSpace(currency))
	return Catalog{
		entitlement.ProductExam:     {Amount: exam, Currency: currency},
		entitlement.ProductScenario: {Amount: scenario, Currency: currency},
		entitlement.ProductBundle:   {Amount: bundle, Currency: currency},
	}
}

// Lookup returns the price for product.
func (c Catalog) Lookup(product entitlement.Product) (Price, error) {
	price, ok := c[product]
	if !ok || price.Amount <= 0 {
		return Price{}, fmt.Errorf("%w: %q", entitlement.ErrUnknownProduct, product)
	}
	return price, nil
}

// Intent is the gateway's record of a payment.
type Intent struct {
	ID           string
	ClientSecret string
	Status       string
	Amount       int64
	Currency     string
	Metadata     map[string]string
}

// CreateIntentResult is returned to the client to complete checkout.
type CreateIntentResult struct {
	ClientSecret    string              `json:"clientSecret"`
	PaymentIntentID string              `json:"paymentIntentId"`
	Product         entitlement.Product `json:"product"`
	Amount          int64               `json:"amount"`
	Currency        string              `json:"currency"`
}

// VerifyResult carries the entitlement minted for a verified payment.
type VerifyResult struct {
	AccessToken string              `json:"accessToken"`
	Product     entitlement.Product `json:"product"`
	ExpiresAt   *time.Time          `json:"expiresAt"`
}
