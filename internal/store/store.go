package store

import (
	"context"
	"errors"
	"time"

	"shopflow/backend/internal/domain"
)

var (
	ErrNotFound             = errors.New("not found")
	ErrProductInactive      = errors.New("product inactive")
	ErrInsufficientStock    = errors.New("insufficient stock")
	ErrInsufficientPayment  = errors.New("insufficient payment")
	ErrInvalidRequest       = errors.New("invalid request")
	ErrAlreadyCancelled     = errors.New("sale already cancelled")
	ErrAlreadyRefunded      = errors.New("sale already refunded")
	ErrInvalidState         = errors.New("invalid state transition")
	ErrSameStore            = errors.New("source and destination store are the same")
	ErrConfigMissing        = errors.New("store configuration missing")
	ErrDuplicate            = errors.New("duplicate entry")
	ErrCustomerHasSales     = errors.New("customer has sales")
)

type Repository interface {
	ListProducts(ctx context.Context, activeOnly bool) ([]domain.Product, error)
	CreateProduct(ctx context.Context, product domain.Product) (*domain.Product, error)
	GetProductByID(ctx context.Context, id string) (*domain.Product, error)
	GetProductBySKU(ctx context.Context, sku string) (*domain.Product, error)
	UpdateProduct(ctx context.Context, id string, req domain.ProductUpdateRequest) (*domain.Product, error)
	ListLowStockProducts(ctx context.Context, threshold int) ([]domain.Product, error)

	CreateCustomer(ctx context.Context, customer domain.Customer) (*domain.Customer, error)
	GetCustomerByID(ctx context.Context, id string) (*domain.Customer, error)
	ListCustomers(ctx context.Context, limit int) ([]domain.Customer, error)
	DeleteCustomer(ctx context.Context, id string) error

	CreateSale(ctx context.Context, sale domain.Sale) (*domain.Sale, error)
	GetSaleByID(ctx context.Context, id string) (*domain.Sale, error)
	ListSales(ctx context.Context, filter domain.SaleFilter) ([]domain.Sale, error)
	CancelSale(ctx context.Context, id string, at time.Time) (*domain.Sale, error)
	RefundSale(ctx context.Context, id string, at time.Time) (*domain.Sale, error)

	NextInvoiceNumber(ctx context.Context) (string, error)

	CreateTransfer(ctx context.Context, transfer domain.InventoryTransfer) (*domain.InventoryTransfer, error)
	GetTransferByID(ctx context.Context, id string) (*domain.InventoryTransfer, error)
	ListTransfers(ctx context.Context, filter domain.TransferFilter) ([]domain.InventoryTransfer, error)
	MarkTransferInTransit(ctx context.Context, id string, at time.Time) (*domain.InventoryTransfer, error)
	CompleteTransfer(ctx context.Context, id string, at time.Time) (*domain.InventoryTransfer, error)
	CancelTransfer(ctx context.Context, id string, at time.Time) (*domain.InventoryTransfer, error)

	GetStoreConfig(ctx context.Context) (*domain.StoreConfig, error)
	UpdateStoreConfig(ctx context.Context, req domain.StoreConfigUpdateRequest) (*domain.StoreConfig, error)

	GetActiveLoyaltyConfig(ctx context.Context) (*domain.LoyaltyConfig, error)
	ReplaceLoyaltyConfig(ctx context.Context, cfg domain.LoyaltyConfig) (*domain.LoyaltyConfig, error)
	CreateLoyaltyTransaction(ctx context.Context, tx domain.LoyaltyPointTransaction) (*domain.LoyaltyPointTransaction, error)
	FindEarnedBySale(ctx context.Context, saleID string) (*domain.LoyaltyPointTransaction, error)
	ListLoyaltyTransactions(ctx context.Context, customerID string, limit int) ([]domain.LoyaltyPointTransaction, error)

	CreateAuditLog(ctx context.Context, entry domain.AuditLog) error
	ListAuditLogs(ctx context.Context, from time.Time, to time.Time, limit int) ([]domain.AuditLog, error)

	CreateUser(ctx context.Context, user domain.UserAccount) error
	ListUsers(ctx context.Context) ([]domain.UserAccount, error)
	UpdateUserPassword(ctx context.Context, username string, password string) error
}
