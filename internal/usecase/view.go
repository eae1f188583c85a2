package usecase

import (
	domain "github.com/aq2208/kiosk-api/internal/entity"
	"github.com/aq2208/kiosk-api/internal/pricemath"
)

type ItemView struct {
	ID                 int64  `json:"id"`
	Name               string `json:"name"`
	ImageURL           string `json:"imageUrl,omitempty"`
	UnitPrice          string `json:"unitPrice"`
	AvailableQuantity  int    `json:"availableQuantity"`
	Classification     string `json:"productClassification"`
	PerCapsuleQuantity int    `json:"perCapsuleQuantity,omitempty"`
	SelectedQty        int    `json:"selectedQty"`
	DisableInc         bool   `json:"disableInc"`
	OutOfStock         bool   `json:"outOfStock"`
	MaxSelectableQty   int    `json:"maxSelectableQty,omitempty"`
}

type TransactionView struct {
	ID            string `json:"id"`
	Status        string `json:"status"`
	PaymentMethod string `json:"paymentMethod"`
}

type ReceiptLineView struct {
	ID        int64  `json:"id"`
	Name      string `json:"name"`
	Quantity  int    `json:"quantity"`
	UnitPrice string `json:"unitPrice"`
	Amount    string `json:"amount"`
}

type ReceiptView struct {
	TransactionID string            `json:"transactionId"`
	PointLabel    string            `json:"pointLabel"`
	Lines         []ReceiptLineView `json:"lines"`
	Total         string            `json:"total"`
}

// View is what the kiosk UI renders.
type View struct {
	Screen       string `json:"screen"`
	Overlay      bool   `json:"overlay"`
	Language     string `json:"language"`
	Loading      bool   `json:"loading"`
	CatalogError string `json:"catalogError,omitempty"`

	PointID             int64      `json:"pointId,omitempty"`
	PointName           string     `json:"pointName,omitempty"`
	Tab                 string     `json:"tab"`
	AccessoriesUnlocked bool       `json:"accessoriesUnlocked"`
	Capsules            []ItemView `json:"capsules"`
	Accessories         []ItemView `json:"accessories"`

	TotalSelectedCapsuleQty int           `json:"totalSelectedCapsuleQty"`
	TotalPrice              string        `json:"totalPrice"`
	SelectedLines           []domain.Line `json:"selectedLines"`

	PaymentMethod      string `json:"paymentMethod"`
	RefundAcknowledged bool   `json:"refundAcknowledged"`

	Transaction *TransactionView `json:"transaction,omitempty"`
	CheckoutURL string           `json:"checkoutUrl,omitempty"`
	RedirectURL string           `json:"redirectUrl,omitempty"`
	Receipt     *ReceiptView     `json:"receipt,omitempty"`
}

func (s *Session) View() View {
	snap := s.engine.Snapshot()
	cat, _ := s.engine.Catalog()
	v := View{
		Screen:                  string(s.nav.Current()),
		Overlay:                 s.nav.Overlay(),
		Language:                s.lang,
		Loading:                 s.loading,
		PointID:                 cat.PointID,
		PointName:               cat.PointName,
		Tab:                     string(s.tab),
		AccessoriesUnlocked:     s.engine.HasAccessories() && snap.TotalSelectedCapsuleQty > 0,
		Capsules:                itemViews(s.engine.Items(domain.CategoryCapsule)),
		Accessories:             itemViews(s.engine.Items(domain.CategoryAccessory)),
		TotalSelectedCapsuleQty: snap.TotalSelectedCapsuleQty,
		TotalPrice:              pricemath.Format(snap.TotalPrice),
		SelectedLines:           snap.SelectedLines,
		PaymentMethod:           string(s.method),
		RefundAcknowledged:      s.refundAck,
		CheckoutURL:             s.life.CheckoutURL(),
		RedirectURL:             s.life.RedirectURL(),
	}
	if v.SelectedLines == nil {
		v.SelectedLines = []domain.Line{}
	}
	if s.loadErr != nil {
		v.CatalogError = s.loadErr.Error()
	}
	if tx, ok := s.life.Transaction(); ok {
		v.Transaction = &TransactionView{ID: tx.ID, Status: string(tx.Status), PaymentMethod: string(tx.PaymentMethod)}
	}
	if s.receipt != nil {
		v.Receipt = receiptView(*s.receipt)
	}
	return v
}

// Receipt returns the receipt of the last completed order, if any.
func (s *Session) Receipt() (domain.Receipt, bool) {
	if s.receipt == nil {
		return domain.Receipt{}, false
	}
	return *s.receipt, true
}

func itemViews(items []domain.ItemState) []ItemView {
	out := make([]ItemView, 0, len(items))
	for _, it := range items {
		out = append(out, ItemView{
			ID:                 it.ID,
			Name:               it.Name,
			ImageURL:           it.ImageURL,
			UnitPrice:          pricemath.Format(it.UnitPrice),
			AvailableQuantity:  it.AvailableQuantity,
			Classification:     string(it.Classification),
			PerCapsuleQuantity: it.PerCapsuleQuantity,
			SelectedQty:        it.SelectedQty,
			DisableInc:         it.DisableInc,
			OutOfStock:         it.OutOfStock,
			MaxSelectableQty:   it.MaxSelectableQty,
		})
	}
	return out
}

func receiptView(r domain.Receipt) *ReceiptView {
	v := &ReceiptView{
		TransactionID: r.TransactionID,
		PointLabel:    r.PointLabel,
		Total:         pricemath.Format(r.Total),
		Lines:         make([]ReceiptLineView, 0, len(r.Lines)),
	}
	for _, l := range r.Lines {
		v.Lines = append(v.Lines, ReceiptLineView{
			ID:        l.ID,
			Name:      l.Name,
			Quantity:  l.Quantity,
			UnitPrice: pricemath.Format(l.UnitPrice),
			Amount:    pricemath.Format(l.Amount),
		})
	}
	return v
}
