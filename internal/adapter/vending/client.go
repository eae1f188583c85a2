// Package vending talks to the vending backend's kiosk API over HTTP/JSON.
package vending

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	domain "github.com/aq2208/kiosk-api/internal/entity"
	"github.com/aq2208/kiosk-api/internal/usecase"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

const (
	defaultTimeout    = 15 * time.Second
	idempotencyHeader = "Idempotency-Key"
	languageHeader    = "Content-Language"

	ErrorCodeDeviceBusy = "DEVICE_BUSY"
)

// APIError is a non-2xx answer from the backend.
type APIError struct {
	Op         string
	StatusCode int
	Code       string // errorCode from the body, if any
	Body       string
}

func (e *APIError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("vending: %s: status %d: %s", e.Op, e.StatusCode, e.Code)
	}
	return fmt.Sprintf("vending: %s: status %d: %s", e.Op, e.StatusCode, e.Body)
}

// Is lets callers test for usecase.ErrDeviceBusy with errors.Is.
func (e *APIError) Is(target error) bool {
	return target == usecase.ErrDeviceBusy && e.Code == ErrorCodeDeviceBusy
}

type Client struct {
	baseURL   string // .../kiosk/
	apiOrigin string // scheme://host of baseURL
	http      *http.Client
}

func NewClient(baseURL string, timeout time.Duration) (*Client, error) {
	baseURL = strings.TrimRight(strings.TrimSpace(baseURL), "/")
	u, err := url.Parse(baseURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("vending: invalid base url %q", baseURL)
	}
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	return &Client{
		baseURL:   baseURL,
		apiOrigin: u.Scheme + "://" + u.Host,
		http:      &http.Client{Timeout: timeout},
	}, nil
}

var _ usecase.VendingBackend = (*Client)(nil)

func (c *Client) FetchCatalog(ctx context.Context, code string) (domain.Catalog, error) {
	if strings.TrimSpace(code) == "" {
		return domain.Catalog{}, fmt.Errorf("%w: empty scan code", domain.ErrInvalidCatalog)
	}
	var env envelope[catalogPayload]
	if err := c.do(ctx, "catalog", http.MethodGet, c.endpoint("catalog", code), nil, &env); err != nil {
		return domain.Catalog{}, err
	}
	cat, err := env.Data.toCatalog()
	if err != nil {
		return domain.Catalog{}, err
	}
	return cat, cat.Validate()
}

func (c *Client) CreateOrder(ctx context.Context, pointID int64, req domain.OrderRequest) (domain.CreatedOrder, error) {
	if req.Products == nil {
		req.Products = []domain.Line{}
	}
	var env envelope[createdPayload]
	if err := c.do(ctx, "create-order", http.MethodPost, c.endpoint("create-order", strconv.FormatInt(pointID, 10)), req, &env); err != nil {
		return domain.CreatedOrder{}, err
	}
	return env.Data.toCreated(), nil
}

func (c *Client) CreateCryptoOrder(ctx context.Context, pointID int64, lines []domain.Line) (domain.CreatedOrder, error) {
	if lines == nil {
		lines = []domain.Line{}
	}
	body := domain.OrderRequest{Products: lines}
	var env envelope[createdPayload]
	if err := c.do(ctx, "create-crypto-order", http.MethodPost, c.endpoint("create-crypto-order", strconv.FormatInt(pointID, 10)), body, &env); err != nil {
		return domain.CreatedOrder{}, err
	}
	return env.Data.toCreated(), nil
}

func (c *Client) TransactionStatus(ctx context.Context, txID string) (domain.Status, error) {
	var env envelope[statusPayload]
	if err := c.do(ctx, "status", http.MethodGet, c.endpoint("status", txID), nil, &env); err != nil {
		return "", err
	}
	return domain.Status(strings.ToUpper(strings.TrimSpace(env.Data.Status))), nil
}

// PollInterval is the one endpoint that answers without the data envelope.
func (c *Client) PollInterval(ctx context.Context, txID string) (domain.PollInterval, error) {
	var p intervalPayload
	if err := c.do(ctx, "interval", http.MethodGet, c.endpoint("interval", txID), nil, &p); err != nil {
		return domain.PollInterval{}, err
	}
	return domain.PollInterval{MaxTimeInSeconds: p.MaxTimeInSeconds, NumberOfTries: p.NumberOfTries}, nil
}

// LookupTransaction lives on the API origin, outside the kiosk base path. The
// answer may or may not be wrapped in data.
func (c *Client) LookupTransaction(ctx context.Context, txID string) (domain.TransactionLookup, error) {
	endpoint := c.apiOrigin + "/api/kioskDevice/transactions/transaction/" + url.PathEscape(txID)
	var p lookupPayload
	if err := c.do(ctx, "transaction", http.MethodGet, endpoint, nil, &p); err != nil {
		return domain.TransactionLookup{}, err
	}
	qr, pointID := p.QRCode, p.PointID
	if p.Data != nil {
		if qr == "" {
			qr = p.Data.QRCode
		}
		if pointID == 0 {
			pointID = p.Data.PointID
		}
	}
	return domain.TransactionLookup{ScanCode: qr, PointID: pointID}, nil
}

func (c *Client) endpoint(parts ...string) string {
	escaped := make([]string, 0, len(parts)+1)
	escaped = append(escaped, c.baseURL)
	for _, p := range parts {
		escaped = append(escaped, url.PathEscape(p))
	}
	return strings.Join(escaped, "/")
}

func (c *Client) do(ctx context.Context, op, method, endpoint string, body, out any) error {
	var rdr io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("vending: %s: encode: %w", op, err)
		}
		rdr = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(ctx, method, endpoint, rdr)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set(languageHeader, usecase.LanguageFrom(ctx))
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if method == http.MethodPost {
		req.Header.Set(idempotencyHeader, uuid.NewString())
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("vending: %s: %w", op, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 400 {
		return apiError(op, resp)
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("vending: %s: decode: %w", op, err)
	}
	return nil
}

func apiError(op string, resp *http.Response) error {
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
	e := &APIError{Op: op, StatusCode: resp.StatusCode, Body: strings.TrimSpace(string(raw))}
	var p errorPayload
	if json.Unmarshal(raw, &p) == nil {
		e.Code = p.ErrorCode
	}
	return e
}

type envelope[T any] struct {
	Data T `json:"data"`
}

type errorPayload struct {
	ErrorCode string `json:"errorCode"`
}

type productPayload struct {
	ID                    int64           `json:"id"`
	Name                  string          `json:"name"`
	UnitPrice             decimal.Decimal `json:"unitPrice"`
	ImageURL              string          `json:"imageUrl"`
	AvailableQuantity     int             `json:"availableQuantity"`
	ProductClassification string          `json:"productClassification"`
	PerCapsuleQuantity    int             `json:"perCapsuleQuantity"`
}

type catalogPagePayload struct {
	CategoryType               string           `json:"categoryType"`
	MaxPurchaseQuantity        int              `json:"maxPurchaseQuantity"`
	PurchasePerCapsuleQuantity int              `json:"purchasePerCapsuleQuantity"`
	Products                   []productPayload `json:"products"`
}

type catalogPayload struct {
	PointID      int64                `json:"pointId"`
	PointName    string               `json:"pointName"`
	CatalogPages []catalogPagePayload `json:"catalogPages"`
}

// toCatalog takes the purchase limits from the capsule page.
func (p catalogPayload) toCatalog() (domain.Catalog, error) {
	cat := domain.Catalog{PointID: p.PointID, PointName: strings.TrimSpace(p.PointName)}
	sawCapsules := false
	for _, page := range p.CatalogPages {
		category, ok := domain.ParseCategory(page.CategoryType)
		if !ok {
			continue
		}
		items := make([]domain.CatalogItem, 0, len(page.Products))
		for _, pr := range page.Products {
			items = append(items, domain.CatalogItem{
				ID:                 pr.ID,
				Name:               pr.Name,
				ImageURL:           pr.ImageURL,
				UnitPrice:          pr.UnitPrice,
				AvailableQuantity:  pr.AvailableQuantity,
				Classification:     domain.Classification(pr.ProductClassification),
				PerCapsuleQuantity: pr.PerCapsuleQuantity,
			})
		}
		switch category {
		case domain.CategoryCapsule:
			sawCapsules = true
			cat.Capsules = append(cat.Capsules, items...)
			cat.MaxPurchaseQuantity = page.MaxPurchaseQuantity
			cat.PurchasePerCapsuleQuantity = page.PurchasePerCapsuleQuantity
		case domain.CategoryAccessory:
			cat.Accessories = append(cat.Accessories, items...)
		}
	}
	if !sawCapsules {
		return domain.Catalog{}, fmt.Errorf("%w: no capsule page", domain.ErrInvalidCatalog)
	}
	return cat, nil
}

type createdPayload struct {
	TransactionID    json.RawMessage `json:"transactionId"`
	OuterGeneratedID json.RawMessage `json:"outerGeneratedId"`
	CheckoutURL      string          `json:"checkoutURL"`
}

func (p createdPayload) toCreated() domain.CreatedOrder {
	return domain.CreatedOrder{
		TransactionID:    idString(p.TransactionID),
		OuterGeneratedID: idString(p.OuterGeneratedID),
		CheckoutURL:      strings.TrimSpace(p.CheckoutURL),
	}
}

// idString accepts ids sent either as JSON strings or numbers.
func idString(raw json.RawMessage) string {
	if len(raw) == 0 || string(raw) == "null" {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return strings.TrimSpace(s)
	}
	var n json.Number
	if err := json.Unmarshal(raw, &n); err == nil {
		return n.String()
	}
	return ""
}

type statusPayload struct {
	Status string `json:"status"`
}

type intervalPayload struct {
	MaxTimeInSeconds int `json:"maxTimeInSeconds"`
	NumberOfTries    int `json:"numberOfTries"`
}

type lookupFields struct {
	QRCode  string `json:"qrCode"`
	PointID int64  `json:"pointId"`
}

type lookupPayload struct {
	lookupFields
	Data *lookupFields `json:"data"`
}
