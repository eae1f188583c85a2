package domain

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
)

type Category string

const (
	CategoryCapsule   Category = "CAPSULE"
	CategoryAccessory Category = "ADDITIONAL_PRODUCT"
)

// ParseCategory accepts the wire names plus the short forms used by the kiosk UI.
func ParseCategory(s string) (Category, bool) {
	switch s {
	case string(CategoryCapsule), "capsule", "capsules":
		return CategoryCapsule, true
	case string(CategoryAccessory), "accessory", "accessories":
		return CategoryAccessory, true
	}
	return "", false
}

type Classification string

const (
	AmericanCapsule Classification = "AMERICAN_CAPSULE"
	EuropeanCapsule Classification = "EUROPEAN_CAPSULE"
	AmericanCup     Classification = "AMERICAN_CUP"
	EuropeanCup     Classification = "EUROPEAN_CUP"
	Sugar           Classification = "SUGAR"
)

var ErrInvalidCatalog = errors.New("invalid catalog")

// CatalogItem is the immutable part of a product as the backend sends it.
type CatalogItem struct {
	ID                 int64
	Name               string
	ImageURL           string
	UnitPrice          decimal.Decimal
	AvailableQuantity  int
	Classification     Classification
	PerCapsuleQuantity int // accessories only
}

type Catalog struct {
	PointID                    int64
	PointName                  string
	Capsules                   []CatalogItem
	Accessories                []CatalogItem
	MaxPurchaseQuantity        int
	PurchasePerCapsuleQuantity int
}

// Validate rejects catalogs the selection engine cannot hold invariants for.
func (c Catalog) Validate() error {
	if err := validateItems(CategoryCapsule, c.Capsules); err != nil {
		return err
	}
	if err := validateItems(CategoryAccessory, c.Accessories); err != nil {
		return err
	}
	if c.MaxPurchaseQuantity < 0 || c.PurchasePerCapsuleQuantity < 0 {
		return fmt.Errorf("%w: negative purchase limits", ErrInvalidCatalog)
	}
	return nil
}

func validateItems(cat Category, items []CatalogItem) error {
	seen := make(map[int64]struct{}, len(items))
	for _, it := range items {
		if _, dup := seen[it.ID]; dup {
			return fmt.Errorf("%w: duplicate %s id %d", ErrInvalidCatalog, cat, it.ID)
		}
		seen[it.ID] = struct{}{}
		if it.UnitPrice.IsNegative() {
			return fmt.Errorf("%w: %s %d has negative price", ErrInvalidCatalog, cat, it.ID)
		}
		if it.AvailableQuantity < 0 || it.PerCapsuleQuantity < 0 {
			return fmt.Errorf("%w: %s %d has negative quantity", ErrInvalidCatalog, cat, it.ID)
		}
	}
	return nil
}

// ItemState is a read-only view of one product with its runtime selection fields.
type ItemState struct {
	CatalogItem
	SelectedQty      int
	DisableInc       bool
	OutOfStock       bool
	MaxSelectableQty int // accessories only
}

type Line struct {
	ID       int64 `json:"id"`
	Quantity int   `json:"quantity"`
}

type SelectionSnapshot struct {
	TotalSelectedCapsuleQty int
	TotalPrice              decimal.Decimal
	SelectedLines           []Line
}

func (s SelectionSnapshot) Empty() bool { return len(s.SelectedLines) == 0 }
