// Package selection holds the catalog a customer is choosing from and enforces
// the quantity rules across capsules and the accessories linked to them.
//
// An Engine is not safe for concurrent use; it is owned by the kiosk event loop.
package selection

import (
	"log/slog"

	domain "github.com/aq2208/kiosk-api/internal/entity"
	"github.com/aq2208/kiosk-api/internal/pricemath"
	"github.com/shopspring/decimal"
)

type item struct {
	domain.CatalogItem
	selected      int
	disableInc    bool
	maxSelectable int
}

func (it *item) state() domain.ItemState {
	return domain.ItemState{
		CatalogItem:      it.CatalogItem,
		SelectedQty:      it.selected,
		DisableInc:       it.disableInc,
		OutOfStock:       it.AvailableQuantity == 0,
		MaxSelectableQty: it.maxSelectable,
	}
}

type Engine struct {
	log *slog.Logger

	loaded        bool
	catalog       domain.Catalog
	capsules      []*item
	accessories   []*item
	totalCapsules int
	snap          domain.SelectionSnapshot
}

func New(log *slog.Logger) *Engine {
	e := &Engine{log: log}
	e.Clear()
	return e
}

// Load replaces the catalog wholesale and resets every selection.
func (e *Engine) Load(c domain.Catalog) error {
	if err := c.Validate(); err != nil {
		return err
	}
	e.catalog = domain.Catalog{
		PointID:                    c.PointID,
		PointName:                  c.PointName,
		Capsules:                   append([]domain.CatalogItem(nil), c.Capsules...),
		Accessories:                append([]domain.CatalogItem(nil), c.Accessories...),
		MaxPurchaseQuantity:        c.MaxPurchaseQuantity,
		PurchasePerCapsuleQuantity: c.PurchasePerCapsuleQuantity,
	}
	e.capsules = make([]*item, 0, len(c.Capsules))
	for _, ci := range c.Capsules {
		e.capsules = append(e.capsules, &item{CatalogItem: ci})
	}
	e.accessories = make([]*item, 0, len(c.Accessories))
	for _, ci := range c.Accessories {
		e.accessories = append(e.accessories, &item{CatalogItem: ci, disableInc: true})
	}
	e.totalCapsules = 0
	e.loaded = true
	e.recompute()
	return nil
}

// Clear drops the catalog; the engine behaves as an empty catalog until the next Load.
func (e *Engine) Clear() {
	e.loaded = false
	e.catalog = domain.Catalog{}
	e.capsules = nil
	e.accessories = nil
	e.totalCapsules = 0
	e.snap = domain.SelectionSnapshot{TotalPrice: decimal.Zero}
}

func (e *Engine) Loaded() bool { return e.loaded }

func (e *Engine) Catalog() (domain.Catalog, bool) { return e.catalog, e.loaded }

func (e *Engine) HasAccessories() bool { return len(e.accessories) > 0 }

// Increment adds one unit when every applicable cap allows it and reports whether it did.
func (e *Engine) Increment(cat domain.Category, id int64) bool {
	it := e.find(cat, id)
	if it == nil {
		return false
	}
	switch cat {
	case domain.CategoryCapsule:
		if !e.capsuleCanIncrement(it) {
			return false
		}
		it.selected++
		e.totalCapsules++
	case domain.CategoryAccessory:
		if it.selected >= it.AvailableQuantity || it.selected >= it.maxSelectable {
			return false
		}
		it.selected++
	}
	e.recompute()
	return true
}

// Decrement removes one unit when the item has any selected.
func (e *Engine) Decrement(cat domain.Category, id int64) bool {
	it := e.find(cat, id)
	if it == nil || it.selected == 0 {
		return false
	}
	it.selected--
	if cat == domain.CategoryCapsule {
		e.totalCapsules--
	}
	e.recompute()
	return true
}

// Snapshot returns a copy of the derived selection state.
func (e *Engine) Snapshot() domain.SelectionSnapshot {
	out := e.snap
	out.SelectedLines = append([]domain.Line(nil), e.snap.SelectedLines...)
	return out
}

func (e *Engine) Items(cat domain.Category) []domain.ItemState {
	var src []*item
	switch cat {
	case domain.CategoryCapsule:
		src = e.capsules
	case domain.CategoryAccessory:
		src = e.accessories
	}
	out := make([]domain.ItemState, 0, len(src))
	for _, it := range src {
		out = append(out, it.state())
	}
	return out
}

// ProductLookup denormalizes the catalog for receipt rendering after the kiosk navigates away.
func (e *Engine) ProductLookup() map[int64]domain.ProductInfo {
	out := make(map[int64]domain.ProductInfo, len(e.capsules)+len(e.accessories))
	for _, list := range [][]*item{e.capsules, e.accessories} {
		for _, it := range list {
			out[it.ID] = domain.ProductInfo{
				Name:           it.Name,
				UnitPrice:      it.UnitPrice,
				ImageURL:       it.ImageURL,
				Classification: it.Classification,
			}
		}
	}
	return out
}

func (e *Engine) find(cat domain.Category, id int64) *item {
	var list []*item
	switch cat {
	case domain.CategoryCapsule:
		list = e.capsules
	case domain.CategoryAccessory:
		list = e.accessories
	default:
		e.log.Warn("selection: unknown category", "category", cat, "id", id)
		return nil
	}
	for _, it := range list {
		if it.ID == id {
			return it
		}
	}
	// only reachable through a stale catalog reference in the UI
	e.log.Warn("selection: unknown product", "category", cat, "id", id, "loaded", e.loaded)
	return nil
}

func (e *Engine) capsuleCanIncrement(it *item) bool {
	return it.selected < it.AvailableQuantity &&
		it.selected < e.catalog.MaxPurchaseQuantity &&
		it.selected < e.catalog.PurchasePerCapsuleQuantity &&
		e.totalCapsules < e.catalog.MaxPurchaseQuantity
}

func (e *Engine) recompute() {
	for _, it := range e.capsules {
		it.disableInc = !e.capsuleCanIncrement(it)
	}
	if len(e.accessories) > 0 {
		e.relinkAccessories()
	}
	e.rebuildSnapshot()
}

// relinkAccessories derives each accessory cap from the capsule selection it is proportional to.
func (e *Engine) relinkAccessories() {
	var american, european int
	for _, it := range e.capsules {
		switch it.Classification {
		case domain.AmericanCapsule:
			american += it.selected
		case domain.EuropeanCapsule:
			european += it.selected
		}
	}

	for _, acc := range e.accessories {
		var linked int
		switch acc.Classification {
		case domain.AmericanCup:
			linked = american
		case domain.EuropeanCup:
			linked = european
		case domain.Sugar:
			linked = e.totalCapsules
		}
		limit := linked * acc.PerCapsuleQuantity
		if limit > acc.AvailableQuantity {
			limit = acc.AvailableQuantity
		}
		acc.maxSelectable = limit
		if acc.selected > limit {
			e.log.Debug("selection: clamping accessory", "id", acc.ID, "from", acc.selected, "to", limit)
			acc.selected = limit
		}
		acc.disableInc = acc.selected >= acc.maxSelectable || acc.selected >= acc.AvailableQuantity
	}
}

func (e *Engine) rebuildSnapshot() {
	var lines []domain.Line
	sumOf := func(list []*item) decimal.Decimal {
		var amounts []decimal.Decimal
		for _, it := range list {
			if it.selected <= 0 {
				continue
			}
			lines = append(lines, domain.Line{ID: it.ID, Quantity: it.selected})
			amounts = append(amounts, pricemath.LineTotal(it.UnitPrice, it.selected))
		}
		return pricemath.Sum(amounts...)
	}
	capsules := sumOf(e.capsules)
	accessories := sumOf(e.accessories)

	e.snap = domain.SelectionSnapshot{
		TotalSelectedCapsuleQty: e.totalCapsules,
		TotalPrice:              pricemath.Sum(capsules, accessories),
		SelectedLines:           lines,
	}
}
