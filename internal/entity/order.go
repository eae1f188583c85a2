package domain

import (
	"strings"

	"github.com/shopspring/decimal"
)

type Status string

const (
	StatusPending   Status = "PENDING"
	StatusCompleted Status = "COMPLETED"
	StatusFailed    Status = "FAILED"
)

func (s Status) Terminal() bool { return s == StatusCompleted || s == StatusFailed }

type PaymentMethod string

const (
	PaymentCard   PaymentMethod = "CARD"
	PaymentCrypto PaymentMethod = "CRYPTO"
)

func ParsePaymentMethod(s string) (PaymentMethod, bool) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case string(PaymentCard):
		return PaymentCard, true
	case string(PaymentCrypto):
		return PaymentCrypto, true
	}
	return "", false
}

// Wallet values the backend expects for card orders.
const (
	WalletGooglePay = "GOOGLE_PAY"
	WalletApplePay  = "APPLE_PAY"
)

// WalletForUserAgent picks the card wallet the way the kiosk browser reports itself.
func WalletForUserAgent(ua string) string {
	if strings.Contains(ua, "Android") {
		return WalletGooglePay
	}
	return WalletApplePay
}

// FreeTransactionPrefix marks locally synthesized ids of zero-price orders.
const FreeTransactionPrefix = "FREE_"

type Transaction struct {
	ID            string
	Status        Status
	PaymentMethod PaymentMethod
	CheckoutURL   string
}

// OrderRequest is the create-order body.
type OrderRequest struct {
	Products      []Line `json:"products"`
	PaymentMethod string `json:"paymentMethod,omitempty"`
}

type CreatedOrder struct {
	TransactionID    string
	OuterGeneratedID string
	CheckoutURL      string
}

type PollInterval struct {
	MaxTimeInSeconds int
	NumberOfTries    int
}

type TransactionLookup struct {
	ScanCode string
	PointID  int64
}

// ProductInfo is the denormalized catalog entry kept for receipts.
type ProductInfo struct {
	Name           string          `json:"name"`
	UnitPrice      decimal.Decimal `json:"unitPrice"`
	ImageURL       string          `json:"imageUrl"`
	Classification Classification  `json:"productClassification"`
}

// OrderSnapshot is everything written to durable storage before an order leaves the kiosk.
type OrderSnapshot struct {
	TransactionID        string
	ReceiptTransactionID string
	PaymentInProgress    bool
	Catalog              map[int64]ProductInfo
	Lines                []Line
	Total                decimal.Decimal
	PointLabel           string
}

type ReceiptLine struct {
	ID        int64
	Name      string
	Quantity  int
	UnitPrice decimal.Decimal
	Amount    decimal.Decimal
}

type Receipt struct {
	TransactionID string
	PointLabel    string
	Lines         []ReceiptLine
	Total         decimal.Decimal
}

// Receipt joins the stored lines with the stored catalog lookup.
func (s OrderSnapshot) Receipt(txID string) Receipt {
	r := Receipt{TransactionID: txID, PointLabel: s.PointLabel, Total: s.Total}
	for _, l := range s.Lines {
		info := s.Catalog[l.ID]
		r.Lines = append(r.Lines, ReceiptLine{
			ID:        l.ID,
			Name:      info.Name,
			Quantity:  l.Quantity,
			UnitPrice: info.UnitPrice,
			Amount:    info.UnitPrice.Mul(decimal.NewFromInt(int64(l.Quantity))),
		})
	}
	return r
}
