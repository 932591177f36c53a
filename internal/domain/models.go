package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

type Product struct {
	ID        string          `json:"id"`
	SKU       string          `json:"sku"`
	Name      string          `json:"name"`
	Barcode   string          `json:"barcode,omitempty"`
	Price     decimal.Decimal `json:"price"`
	Cost      decimal.Decimal `json:"cost"`
	Stock     int             `json:"stock"`
	MinStock  *int            `json:"min_stock,omitempty"`
	MaxStock  *int            `json:"max_stock,omitempty"`
	StoreID   *string         `json:"store_id,omitempty"`
	Active    bool            `json:"active"`
	CreatedAt time.Time       `json:"created_at"`
	UpdatedAt time.Time       `json:"updated_at"`
}

type ProductCreateRequest struct {
	SKU      string          `json:"sku"`
	Name     string          `json:"name"`
	Barcode  string          `json:"barcode,omitempty"`
	Price    decimal.Decimal `json:"price"`
	Cost     decimal.Decimal `json:"cost"`
	Stock    int             `json:"stock"`
	MinStock *int            `json:"min_stock,omitempty"`
	MaxStock *int            `json:"max_stock,omitempty"`
	StoreID  *string         `json:"store_id,omitempty"`
}

// ProductUpdateRequest is an explicit partial update: one optional field per
// mutable attribute, resolved into fixed column assignments by the store.
type ProductUpdateRequest struct {
	Name     *string          `json:"name,omitempty"`
	Barcode  *string          `json:"barcode,omitempty"`
	Price    *decimal.Decimal `json:"price,omitempty"`
	Cost     *decimal.Decimal `json:"cost,omitempty"`
	MinStock *int             `json:"min_stock,omitempty"`
	MaxStock *int             `json:"max_stock,omitempty"`
	StoreID  *string          `json:"store_id,omitempty"`
	Active   *bool            `json:"active,omitempty"`
}

type Customer struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Email     string    `json:"email,omitempty"`
	Phone     string    `json:"phone,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

type CustomerCreateRequest struct {
	Name  string `json:"name"`
	Email string `json:"email,omitempty"`
	Phone string `json:"phone,omitempty"`
}

type Sale struct {
	ID            string          `json:"id"`
	CustomerID    *string         `json:"customer_id,omitempty"`
	UserID        string          `json:"user_id"`
	InvoiceNumber string          `json:"invoice_number"`
	Subtotal      decimal.Decimal `json:"subtotal"`
	Discount      decimal.Decimal `json:"discount"`
	Tax           decimal.Decimal `json:"tax"`
	Total         decimal.Decimal `json:"total"`
	PaymentMethod string          `json:"payment_method"`
	PaidAmount    decimal.Decimal `json:"paid_amount"`
	Change        decimal.Decimal `json:"change"`
	Status        string          `json:"status"`
	Notes         string          `json:"notes,omitempty"`
	CreatedAt     time.Time       `json:"created_at"`
	UpdatedAt     time.Time       `json:"updated_at"`
	Items         []SaleItem      `json:"items"`
}

type SaleItem struct {
	ID        string          `json:"id"`
	SaleID    string          `json:"sale_id"`
	ProductID string          `json:"product_id"`
	Quantity  int             `json:"quantity"`
	Price     decimal.Decimal `json:"price"`
	Discount  decimal.Decimal `json:"discount"`
	Subtotal  decimal.Decimal `json:"subtotal"`
}

type SaleItemRequest struct {
	ProductID string          `json:"product_id"`
	Quantity  int             `json:"quantity"`
	Price     decimal.Decimal `json:"price"`
	Discount  decimal.Decimal `json:"discount"`
}

type SaleCreateRequest struct {
	CustomerID    *string           `json:"customer_id,omitempty"`
	UserID        string            `json:"user_id"`
	Items         []SaleItemRequest `json:"items"`
	PaymentMethod string            `json:"payment_method"`
	PaidAmount    decimal.Decimal   `json:"paid_amount"`
	Discount      decimal.Decimal   `json:"discount"`
	TaxRate       *decimal.Decimal  `json:"tax_rate,omitempty"`
	Notes         string            `json:"notes,omitempty"`
}

type SaleFilter struct {
	CustomerID    string
	UserID        string
	Status        string
	PaymentMethod string
	From          *time.Time
	To            *time.Time
	Limit         int
}

type InventoryTransfer struct {
	ID          string     `json:"id"`
	FromStoreID string     `json:"from_store_id"`
	ToStoreID   string     `json:"to_store_id"`
	ProductID   string     `json:"product_id"`
	Quantity    int        `json:"quantity"`
	Notes       string     `json:"notes,omitempty"`
	Status      string     `json:"status"`
	CreatedByID string     `json:"created_by_id"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
}

type TransferCreateRequest struct {
	FromStoreID string `json:"from_store_id"`
	ToStoreID   string `json:"to_store_id"`
	ProductID   string `json:"product_id"`
	Quantity    int    `json:"quantity"`
	Notes       string `json:"notes,omitempty"`
	CreatedByID string `json:"created_by_id"`
}

type TransferFilter struct {
	FromStoreID string
	ToStoreID   string
	ProductID   string
	Status      string
	Limit       int
}

type StoreConfig struct {
	ID            string          `json:"id"`
	Name          string          `json:"name"`
	Address       string          `json:"address,omitempty"`
	Phone         string          `json:"phone,omitempty"`
	Currency      string          `json:"currency"`
	TaxRate       decimal.Decimal `json:"tax_rate"`
	LowStockAlert int             `json:"low_stock_alert"`
	InvoicePrefix string          `json:"invoice_prefix"`
	InvoiceNumber int64           `json:"invoice_number"`
	CreatedAt     time.Time       `json:"created_at"`
	UpdatedAt     time.Time       `json:"updated_at"`
}

type StoreConfigUpdateRequest struct {
	Name          *string          `json:"name,omitempty"`
	Address       *string          `json:"address,omitempty"`
	Phone         *string          `json:"phone,omitempty"`
	Currency      *string          `json:"currency,omitempty"`
	TaxRate       *decimal.Decimal `json:"tax_rate,omitempty"`
	LowStockAlert *int             `json:"low_stock_alert,omitempty"`
	InvoicePrefix *string          `json:"invoice_prefix,omitempty"`
}

type LoyaltyConfig struct {
	ID                   string          `json:"id"`
	PointsPerDollar      decimal.Decimal `json:"points_per_dollar"`
	RedemptionRate       decimal.Decimal `json:"redemption_rate"`
	PointsExpireMonths   *int            `json:"points_expire_months,omitempty"`
	MinPurchaseForPoints decimal.Decimal `json:"min_purchase_for_points"`
	MaxPointsPerPurchase *int64          `json:"max_points_per_purchase,omitempty"`
	Active               bool            `json:"active"`
	CreatedAt            time.Time       `json:"created_at"`
}

type LoyaltyConfigUpdateRequest struct {
	PointsPerDollar      *decimal.Decimal `json:"points_per_dollar,omitempty"`
	RedemptionRate       *decimal.Decimal `json:"redemption_rate,omitempty"`
	PointsExpireMonths   *int             `json:"points_expire_months,omitempty"`
	MinPurchaseForPoints *decimal.Decimal `json:"min_purchase_for_points,omitempty"`
	MaxPointsPerPurchase *int64           `json:"max_points_per_purchase,omitempty"`
}

type LoyaltyPointTransaction struct {
	ID          string     `json:"id"`
	CustomerID  string     `json:"customer_id"`
	Type        string     `json:"type"`
	Points      int64      `json:"points"`
	Description string     `json:"description,omitempty"`
	SaleID      *string    `json:"sale_id,omitempty"`
	ExpiresAt   *time.Time `json:"expires_at,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
}

type LoyaltyAwardRequest struct {
	CustomerID     string          `json:"customer_id"`
	PurchaseAmount decimal.Decimal `json:"purchase_amount"`
	SaleID         string          `json:"sale_id"`
}

type LoyaltyAwardResponse struct {
	PointsAwarded int64 `json:"points_awarded"`
	Duplicate     bool  `json:"duplicate"`
}

type LoyaltyBalance struct {
	CustomerID      string     `json:"customer_id"`
	CustomerName    string     `json:"customer_name"`
	TotalPoints     int64      `json:"total_points"`
	AvailablePoints int64      `json:"available_points"`
	ExpiringSoon    int64      `json:"expiring_soon"`
	LastActivity    *time.Time `json:"last_activity,omitempty"`
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

type CashierCreateRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type CashierUser struct {
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

const (
	SaleStatusCompleted = "COMPLETED"
	SaleStatusCancelled = "CANCELLED"
	SaleStatusRefunded  = "REFUNDED"
)

const (
	TransferStatusPending   = "PENDING"
	TransferStatusInTransit = "IN_TRANSIT"
	TransferStatusCompleted = "COMPLETED"
	TransferStatusCancelled = "CANCELLED"
)

const (
	PaymentCash     = "CASH"
	PaymentCard     = "CARD"
	PaymentTransfer = "TRANSFER"
	PaymentQR       = "QR"
)

const (
	LoyaltyTypeEarned   = "EARNED"
	LoyaltyTypeRedeemed = "REDEEMED"
	LoyaltyTypeAdjusted = "ADJUSTED"
)

// IsCash reports whether a payment method settles with physical cash,
// which is the only case where change is returned.
func IsCash(method string) bool {
	return method == PaymentCash
}

func IsSupportedPaymentMethod(method string) bool {
	switch method {
	case PaymentCash, PaymentCard, PaymentTransfer, PaymentQR:
		return true
	}
	return false
}
