package domain

import (
	"encoding/json"
	"time"

	"github.com/shopspring/decimal"
)

type TransactionType string

const (
	TransactionIn     TransactionType = "IN"
	TransactionOut    TransactionType = "OUT"
	TransactionAdjust TransactionType = "ADJUST"
)

func (t TransactionType) Valid() bool {
	switch t {
	case TransactionIn, TransactionOut, TransactionAdjust:
		return true
	default:
		return false
	}
}

type Direction string

const (
	DirectionIncrease Direction = "INCREASE"
	DirectionDecrease Direction = "DECREASE"
)

func (d Direction) Valid() bool {
	return d == DirectionIncrease || d == DirectionDecrease
}

type Category struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"created_at"`
}

type CategoryCreateRequest struct {
	Name string `json:"name"`
}

type Product struct {
	ID            string              `json:"id"`
	Name          string              `json:"name"`
	Description   string              `json:"description,omitempty"`
	CategoryID    string              `json:"category_id,omitempty"`
	Price         decimal.Decimal     `json:"price"`
	SalePrice     decimal.NullDecimal `json:"sale_price"`
	StockQuantity int                 `json:"stock_quantity"`
	Active        bool                `json:"active"`
	Featured      bool                `json:"featured"`
	ImageURL      string              `json:"image_url,omitempty"`
	CreatedAt     time.Time           `json:"created_at"`
	UpdatedAt     time.Time           `json:"updated_at"`
}

// EffectivePrice is the sale price when one is set, otherwise the list price.
func (p Product) EffectivePrice() decimal.Decimal {
	if p.SalePrice.Valid {
		return p.SalePrice.Decimal
	}
	return p.Price
}

type ProductFilter struct {
	CategoryID      string
	Search          string
	IncludeInactive bool
}

type ProductCreateRequest struct {
	Name         string              `json:"name"`
	Description  string              `json:"description"`
	CategoryID   string              `json:"category_id"`
	Price        decimal.Decimal     `json:"price"`
	SalePrice    decimal.NullDecimal `json:"sale_price"`
	Featured     bool                `json:"featured"`
	ImageURL     string              `json:"image_url"`
	InitialStock int                 `json:"initial_stock"`
}

// ProductUpdateRequest never carries stock; stock moves only through
// inventory transactions.
type ProductUpdateRequest struct {
	Name           *string          `json:"name,omitempty"`
	Description    *string          `json:"description,omitempty"`
	CategoryID     *string          `json:"category_id,omitempty"`
	Price          *decimal.Decimal `json:"price,omitempty"`
	SalePrice      *decimal.Decimal `json:"sale_price,omitempty"`
	ClearSalePrice bool             `json:"clear_sale_price,omitempty"`
	Active         *bool            `json:"active,omitempty"`
	Featured       *bool            `json:"featured,omitempty"`
	ImageURL       *string          `json:"image_url,omitempty"`
}

// InventoryTransaction is an append-only ledger row.
type InventoryTransaction struct {
	ID                string              `json:"id"`
	ProductID         string              `json:"product_id"`
	ProductName       string              `json:"product_name,omitempty"`
	Type              TransactionType     `json:"type"`
	Direction         Direction           `json:"direction"`
	RequestedQuantity int                 `json:"requested_quantity"`
	AppliedQuantity   int                 `json:"applied_quantity"`
	Delta             int                 `json:"delta"`
	StockBefore       int                 `json:"stock_before"`
	StockAfter        int                 `json:"stock_after"`
	Note              string              `json:"note,omitempty"`
	InputValue        decimal.NullDecimal `json:"input_value"`
	InputUnit         string              `json:"input_unit,omitempty"`
	ReceiptID         string              `json:"receipt_id,omitempty"`
	CreatedBy         string              `json:"created_by,omitempty"`
	CreatedAt         time.Time           `json:"created_at"`
}

// StockMovement is one requested change handed to a store.
type StockMovement struct {
	ProductID  string
	Type       TransactionType
	Direction  Direction
	Quantity   int
	Note       string
	InputValue decimal.NullDecimal
	InputUnit  string
}

// MovementBatch is applied by a store as a single all-or-nothing unit.
type MovementBatch struct {
	ReceiptID string
	CreatedBy string
	CreatedAt time.Time
	Movements []StockMovement
}

type TransactionFilter struct {
	ProductID string
	Type      TransactionType
	ReceiptID string
	From      *time.Time
	To        *time.Time
	Limit     int
}

type InventoryLineRequest struct {
	ProductID  string              `json:"product_id"`
	Quantity   json.Number         `json:"quantity"`
	Direction  string              `json:"direction,omitempty"`
	InputValue decimal.NullDecimal `json:"input_value"`
	InputUnit  string              `json:"input_unit,omitempty"`
}

type InventoryBatchRequest struct {
	Note  string                 `json:"note"`
	Lines []InventoryLineRequest `json:"lines"`
}

type InventoryBatchResponse struct {
	ReceiptID    string                 `json:"receipt_id"`
	Type         TransactionType        `json:"type"`
	Transactions []InventoryTransaction `json:"transactions"`
}

type ReceiptSummary struct {
	ReceiptID  string          `json:"receipt_id"`
	Type       TransactionType `json:"type"`
	CreatedAt  time.Time       `json:"created_at"`
	TotalLines int             `json:"total_lines"`
	TotalQty   int             `json:"total_qty"`
	Note       string          `json:"note,omitempty"`
	CreatedBy  string          `json:"created_by,omitempty"`
}

type ReceiptLine struct {
	TransactionID     string          `json:"transaction_id"`
	ProductID         string          `json:"product_id"`
	ProductName       string          `json:"product_name"`
	Type              TransactionType `json:"type"`
	Direction         Direction       `json:"direction"`
	RequestedQuantity int             `json:"requested_quantity"`
	AppliedQuantity   int             `json:"applied_quantity"`
	Delta             int             `json:"delta"`
	InputText         string          `json:"input_text"`
	Note              string          `json:"note,omitempty"`
	CreatedAt         time.Time       `json:"created_at"`
}

type ReceiptDetail struct {
	Receipt ReceiptSummary `json:"receipt"`
	Lines   []ReceiptLine  `json:"lines"`
}

type ReceiptPrintResponse struct {
	ReceiptID    string `json:"receipt_id"`
	EscposBase64 string `json:"escpos_base64"`
	PreviewText  string `json:"preview_text"`
	FileName     string `json:"file_name"`
}

type Voucher struct {
	ID        string          `json:"id"`
	Code      string          `json:"code"`
	Type      string          `json:"type"`
	Value     decimal.Decimal `json:"value"`
	MinOrder  decimal.Decimal `json:"min_order"`
	MaxUses   int             `json:"max_uses"`
	StartsAt  time.Time       `json:"starts_at"`
	EndsAt    *time.Time      `json:"ends_at,omitempty"`
	Active    bool            `json:"active"`
	CreatedAt time.Time       `json:"created_at"`
	UpdatedAt time.Time       `json:"updated_at"`
}

type VoucherCreateRequest struct {
	Code     string          `json:"code"`
	Type     string          `json:"type"`
	Value    decimal.Decimal `json:"value"`
	MinOrder decimal.Decimal `json:"min_order"`
	MaxUses  int             `json:"max_uses"`
	StartsAt *time.Time      `json:"starts_at,omitempty"`
	EndsAt   *time.Time      `json:"ends_at,omitempty"`
}

type VoucherUpdateRequest struct {
	Value     *decimal.Decimal `json:"value,omitempty"`
	MinOrder  *decimal.Decimal `json:"min_order,omitempty"`
	MaxUses   *int             `json:"max_uses,omitempty"`
	EndsAt    *time.Time       `json:"ends_at,omitempty"`
	ClearEnds bool             `json:"clear_ends_at,omitempty"`
	Active    *bool            `json:"active,omitempty"`
}

type News struct {
	ID          string     `json:"id"`
	Title       string     `json:"title"`
	Slug        string     `json:"slug"`
	Body        string     `json:"body"`
	ImageURL    string     `json:"image_url,omitempty"`
	Published   bool       `json:"published"`
	PublishedAt *time.Time `json:"published_at,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
}

type NewsCreateRequest struct {
	Title     string `json:"title"`
	Body      string `json:"body"`
	ImageURL  string `json:"image_url"`
	Published bool   `json:"published"`
}

type NewsUpdateRequest struct {
	Title     *string `json:"title,omitempty"`
	Body      *string `json:"body,omitempty"`
	ImageURL  *string `json:"image_url,omitempty"`
	Published *bool   `json:"published,omitempty"`
}

type LoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type LoginResponse struct {
	AccessToken string `json:"access_token"`
	Role        string `json:"role"`
	ExpiresAt   string `json:"expires_at"`
}

type Actor struct {
	Username string
	Role     string
}

// UserAccount is an internal persistence model for auth credentials.
type UserAccount struct {
	Username  string
	Password  string
	Role      string
	Active    bool
	CreatedAt time.Time
}

type UserCreateRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
	Role     string `json:"role"`
}

type UserUpdateRequest struct {
	Active   *bool   `json:"active,omitempty"`
	Password *string `json:"password,omitempty"`
}

type UserView struct {
	Username  string    `json:"username"`
	Role      string    `json:"role"`
	Active    bool      `json:"active"`
	CreatedAt time.Time `json:"created_at"`
}

type AuditLog struct {
	ID            string    `json:"id"`
	ActorUsername string    `json:"actor_username"`
	ActorRole     string    `json:"actor_role"`
	Action        string    `json:"action"`
	EntityType    string    `json:"entity_type"`
	EntityID      string    `json:"entity_id"`
	Detail        string    `json:"detail"`
	CreatedAt     time.Time `json:"created_at"`
}

type DailyMovement struct {
	Date      string `json:"date"`
	Inbound   int    `json:"inbound"`
	Outbound  int    `json:"outbound"`
	AdjustIn  int    `json:"adjust_in"`
	AdjustOut int    `json:"adjust_out"`
}

type ProductMovement struct {
	ProductID   string `json:"product_id"`
	ProductName string `json:"product_name"`
	UnitsIn     int    `json:"units_in"`
	UnitsOut    int    `json:"units_out"`
}

type LowStockItem struct {
	ProductID     string `json:"product_id"`
	Name          string `json:"name"`
	StockQuantity int    `json:"stock_quantity"`
	Threshold     int    `json:"threshold"`
}

// RestockSuggestion ranks an active product for reordering from its recent
// outbound velocity.
type RestockSuggestion struct {
	ProductID     string  `json:"product_id"`
	Name          string  `json:"name"`
	StockQuantity int     `json:"stock_quantity"`
	DailyOutbound float64 `json:"daily_outbound"`
	CoverDays     float64 `json:"cover_days"`
	SuggestedQty  int     `json:"suggested_qty"`
	ReasonCode    string  `json:"reason_code"`
	Score         float64 `json:"score"`
}

type DashboardSummary struct {
	From           string            `json:"from"`
	To             string            `json:"to"`
	Days           int               `json:"days"`
	TotalProducts  int               `json:"total_products"`
	ActiveProducts int               `json:"active_products"`
	LowStockCount  int               `json:"low_stock_count"`
	TotalUnits     int               `json:"total_units"`
	InventoryValue decimal.Decimal   `json:"inventory_value"`
	Movements      []DailyMovement   `json:"movements"`
	TopMovers      []ProductMovement `json:"top_movers"`
	RecentReceipts []ReceiptSummary  `json:"recent_receipts"`
	GeneratedAt    string            `json:"generated_at"`
}

const (
	RoleAdmin = "admin"
	RoleStaff = "staff"
)

const (
	VoucherTypePercent = "percent"
	VoucherTypeFlat    = "flat"
)
