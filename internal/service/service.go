package service

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"shopflow/backend/internal/cache"
	"shopflow/backend/internal/domain"
	"shopflow/backend/internal/loyalty"
	"shopflow/backend/internal/store"
)

type actorContextKey struct{}

func WithActor(ctx context.Context, actor domain.Actor) context.Context {
	return context.WithValue(ctx, actorContextKey{}, actor)
}

func ActorFromContext(ctx context.Context) (domain.Actor, bool) {
	actor, ok := ctx.Value(actorContextKey{}).(domain.Actor)
	return actor, ok
}

type Service struct {
	repo        store.Repository
	configCache cache.ConfigCache
	cacheTTL    time.Duration
}

func New(repo store.Repository, configCache cache.ConfigCache, cacheTTL time.Duration) *Service {
	if configCache == nil {
		configCache = cache.NoopConfigCache{}
	}
	if cacheTTL <= 0 {
		cacheTTL = 60 * time.Second
	}

	return &Service{
		repo:        repo,
		configCache: configCache,
		cacheTTL:    cacheTTL,
	}
}

func (s *Service) ListProducts(ctx context.Context, activeOnly bool) ([]domain.Product, error) {
	return s.repo.ListProducts(ctx, activeOnly)
}

func (s *Service) GetProduct(ctx context.Context, id string) (domain.Product, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return domain.Product{}, store.ErrInvalidRequest
	}
	product, err := s.repo.GetProductByID(ctx, id)
	if err != nil {
		return domain.Product{}, err
	}
	return *product, nil
}

func (s *Service) CreateProduct(ctx context.Context, req domain.ProductCreateRequest) (domain.Product, error) {
	actor, ok := ActorFromContext(ctx)
	if !ok || actor.Role != "admin" {
		return domain.Product{}, fmt.Errorf("admin role required")
	}

	req.SKU = strings.ToUpper(strings.TrimSpace(req.SKU))
	req.Name = strings.TrimSpace(req.Name)
	if req.SKU == "" || req.Name == "" {
		return domain.Product{}, store.ErrInvalidRequest
	}
	if req.Price.IsNegative() || req.Cost.IsNegative() || req.Stock < 0 {
		return domain.Product{}, store.ErrInvalidRequest
	}

	created, err := s.repo.CreateProduct(ctx, domain.Product{
		SKU:      req.SKU,
		Name:     req.Name,
		Barcode:  strings.TrimSpace(req.Barcode),
		Price:    req.Price,
		Cost:     req.Cost,
		Stock:    req.Stock,
		MinStock: req.MinStock,
		MaxStock: req.MaxStock,
		StoreID:  req.StoreID,
		Active:   true,
	})
	if err != nil {
		return domain.Product{}, err
	}

	s.logAudit(ctx, "product_create", "product", created.ID, fmt.Sprintf("sku=%s,price=%s,stock=%d", created.SKU, created.Price.String(), created.Stock))
	return *created, nil
}

func (s *Service) UpdateProduct(ctx context.Context, id string, req domain.ProductUpdateRequest) (domain.Product, error) {
	actor, ok := ActorFromContext(ctx)
	if !ok || actor.Role != "admin" {
		return domain.Product{}, fmt.Errorf("admin role required")
	}

	id = strings.TrimSpace(id)
	if id == "" {
		return domain.Product{}, store.ErrInvalidRequest
	}

	saved, err := s.repo.UpdateProduct(ctx, id, req)
	if err != nil {
		return domain.Product{}, err
	}

	s.logAudit(ctx, "product_update", "product", saved.ID, fmt.Sprintf("sku=%s,active=%t,price=%s", saved.SKU, saved.Active, saved.Price.String()))
	return *saved, nil
}

func (s *Service) ListLowStockProducts(ctx context.Context) ([]domain.Product, error) {
	cfg, err := s.storeConfig(ctx)
	if err != nil {
		return nil, err
	}
	return s.repo.ListLowStockProducts(ctx, cfg.LowStockAlert)
}

func (s *Service) CreateCustomer(ctx context.Context, req domain.CustomerCreateRequest) (domain.Customer, error) {
	req.Name = strings.TrimSpace(req.Name)
	if req.Name == "" {
		return domain.Customer{}, store.ErrInvalidRequest
	}

	created, err := s.repo.CreateCustomer(ctx, domain.Customer{
		Name:  req.Name,
		Email: strings.TrimSpace(req.Email),
		Phone: strings.TrimSpace(req.Phone),
	})
	if err != nil {
		return domain.Customer{}, err
	}

	s.logAudit(ctx, "customer_create", "customer", created.ID, fmt.Sprintf("name=%s", created.Name))
	return *created, nil
}

func (s *Service) GetCustomer(ctx context.Context, id string) (domain.Customer, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return domain.Customer{}, store.ErrInvalidRequest
	}
	customer, err := s.repo.GetCustomerByID(ctx, id)
	if err != nil {
		return domain.Customer{}, err
	}
	return *customer, nil
}

func (s *Service) ListCustomers(ctx context.Context, limit int) ([]domain.Customer, error) {
	if limit < 1 {
		limit = 100
	}
	return s.repo.ListCustomers(ctx, limit)
}

func (s *Service) DeleteCustomer(ctx context.Context, id string) error {
	actor, ok := ActorFromContext(ctx)
	if !ok || actor.Role != "admin" {
		return fmt.Errorf("admin role required")
	}

	id = strings.TrimSpace(id)
	if id == "" {
		return store.ErrInvalidRequest
	}
	if err := s.repo.DeleteCustomer(ctx, id); err != nil {
		return err
	}

	s.logAudit(ctx, "customer_delete", "customer", id, "")
	return nil
}

// CreateSale validates and prices a cart, allocates an invoice number and
// persists the sale with its stock decrement. Item checks run in request
// order so the first failing line determines the reported error.
func (s *Service) CreateSale(ctx context.Context, req domain.SaleCreateRequest) (domain.Sale, error) {
	if len(req.Items) == 0 {
		return domain.Sale{}, fmt.Errorf("%w: sale requires at least one item", store.ErrInvalidRequest)
	}
	req.PaymentMethod = strings.ToUpper(strings.TrimSpace(req.PaymentMethod))
	if !domain.IsSupportedPaymentMethod(req.PaymentMethod) {
		return domain.Sale{}, fmt.Errorf("%w: unsupported payment method %q", store.ErrInvalidRequest, req.PaymentMethod)
	}
	if req.Discount.IsNegative() || req.PaidAmount.IsNegative() {
		return domain.Sale{}, store.ErrInvalidRequest
	}
	if req.TaxRate != nil && req.TaxRate.IsNegative() {
		return domain.Sale{}, store.ErrInvalidRequest
	}

	subtotal := decimal.Zero
	items := make([]domain.SaleItem, 0, len(req.Items))
	for _, line := range req.Items {
		if line.Quantity < 1 {
			return domain.Sale{}, fmt.Errorf("%w: quantity must be positive", store.ErrInvalidRequest)
		}
		if line.Price.IsNegative() || line.Discount.IsNegative() {
			return domain.Sale{}, store.ErrInvalidRequest
		}

		product, err := s.repo.GetProductByID(ctx, line.ProductID)
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				return domain.Sale{}, fmt.Errorf("product %s: %w", line.ProductID, store.ErrNotFound)
			}
			return domain.Sale{}, err
		}
		if !product.Active {
			return domain.Sale{}, fmt.Errorf("product %s: %w", product.ID, store.ErrProductInactive)
		}
		if product.Stock < line.Quantity {
			return domain.Sale{}, fmt.Errorf("product %s: %w", product.ID, store.ErrInsufficientStock)
		}

		lineSubtotal := line.Price.Mul(decimal.NewFromInt(int64(line.Quantity))).Sub(line.Discount)
		if lineSubtotal.IsNegative() {
			return domain.Sale{}, store.ErrInvalidRequest
		}
		subtotal = subtotal.Add(lineSubtotal)
		items = append(items, domain.SaleItem{
			ProductID: product.ID,
			Quantity:  line.Quantity,
			Price:     line.Price,
			Discount:  line.Discount,
			Subtotal:  lineSubtotal,
		})
	}

	if req.CustomerID != nil && *req.CustomerID != "" {
		if _, err := s.repo.GetCustomerByID(ctx, *req.CustomerID); err != nil {
			if errors.Is(err, store.ErrNotFound) {
				return domain.Sale{}, fmt.Errorf("customer %s: %w", *req.CustomerID, store.ErrNotFound)
			}
			return domain.Sale{}, err
		}
	}

	taxRate := decimal.Zero
	if req.TaxRate != nil {
		taxRate = *req.TaxRate
	} else {
		cfg, err := s.storeConfig(ctx)
		if err != nil {
			return domain.Sale{}, err
		}
		taxRate = cfg.TaxRate
	}

	if req.Discount.GreaterThan(subtotal) {
		return domain.Sale{}, fmt.Errorf("%w: discount exceeds subtotal", store.ErrInvalidRequest)
	}
	afterDiscount := subtotal.Sub(req.Discount)
	tax := afterDiscount.Mul(taxRate).Round(2)
	total := afterDiscount.Add(tax)

	if req.PaidAmount.LessThan(total) {
		return domain.Sale{}, store.ErrInsufficientPayment
	}
	change := decimal.Zero
	if domain.IsCash(req.PaymentMethod) {
		change = req.PaidAmount.Sub(total)
	}

	invoice, err := s.repo.NextInvoiceNumber(ctx)
	if err != nil {
		return domain.Sale{}, err
	}

	sale := domain.Sale{
		ID:            uuid.NewString(),
		CustomerID:    req.CustomerID,
		UserID:        req.UserID,
		InvoiceNumber: invoice,
		Subtotal:      subtotal,
		Discount:      req.Discount,
		Tax:           tax,
		Total:         total,
		PaymentMethod: req.PaymentMethod,
		PaidAmount:    req.PaidAmount,
		Change:        change,
		Status:        domain.SaleStatusCompleted,
		Notes:         strings.TrimSpace(req.Notes),
		CreatedAt:     time.Now().UTC(),
		Items:         items,
	}

	created, err := s.repo.CreateSale(ctx, sale)
	if err != nil {
		return domain.Sale{}, err
	}

	s.logAudit(ctx, "sale_create", "sale", created.ID, fmt.Sprintf("invoice=%s,total=%s,payment=%s", created.InvoiceNumber, created.Total.String(), created.PaymentMethod))

	if created.CustomerID != nil && *created.CustomerID != "" {
		if _, err := s.AwardPoints(ctx, domain.LoyaltyAwardRequest{
			CustomerID:     *created.CustomerID,
			PurchaseAmount: created.Total,
			SaleID:         created.ID,
		}); err != nil && !errors.Is(err, store.ErrNotFound) {
			log.Printf("[service] WARN: failed to award loyalty points sale=%s: %v", created.ID, err)
		}
	}

	return *created, nil
}

func (s *Service) GetSale(ctx context.Context, id string) (domain.Sale, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return domain.Sale{}, store.ErrInvalidRequest
	}
	sale, err := s.repo.GetSaleByID(ctx, id)
	if err != nil {
		return domain.Sale{}, err
	}
	return *sale, nil
}

func (s *Service) ListSales(ctx context.Context, filter domain.SaleFilter) ([]domain.Sale, error) {
	if filter.Limit < 1 {
		filter.Limit = 100
	}
	return s.repo.ListSales(ctx, filter)
}

func (s *Service) CancelSale(ctx context.Context, id string) (domain.Sale, error) {
	actor, ok := ActorFromContext(ctx)
	if !ok || actor.Role != "admin" {
		return domain.Sale{}, fmt.Errorf("admin role required")
	}

	id = strings.TrimSpace(id)
	if id == "" {
		return domain.Sale{}, store.ErrInvalidRequest
	}

	cancelled, err := s.repo.CancelSale(ctx, id, time.Now().UTC())
	if err != nil {
		return domain.Sale{}, err
	}

	s.logAudit(ctx, "sale_cancel", "sale", cancelled.ID, fmt.Sprintf("invoice=%s", cancelled.InvoiceNumber))
	return *cancelled, nil
}

func (s *Service) RefundSale(ctx context.Context, id string) (domain.Sale, error) {
	actor, ok := ActorFromContext(ctx)
	if !ok || actor.Role != "admin" {
		return domain.Sale{}, fmt.Errorf("admin role required")
	}

	id = strings.TrimSpace(id)
	if id == "" {
		return domain.Sale{}, store.ErrInvalidRequest
	}

	refunded, err := s.repo.RefundSale(ctx, id, time.Now().UTC())
	if err != nil {
		return domain.Sale{}, err
	}

	s.logAudit(ctx, "sale_refund", "sale", refunded.ID, fmt.Sprintf("invoice=%s,total=%s", refunded.InvoiceNumber, refunded.Total.String()))
	return *refunded, nil
}

func (s *Service) CreateTransfer(ctx context.Context, req domain.TransferCreateRequest) (domain.InventoryTransfer, error) {
	req.FromStoreID = strings.TrimSpace(req.FromStoreID)
	req.ToStoreID = strings.TrimSpace(req.ToStoreID)
	req.ProductID = strings.TrimSpace(req.ProductID)
	if req.FromStoreID == "" || req.ToStoreID == "" || req.ProductID == "" {
		return domain.InventoryTransfer{}, store.ErrInvalidRequest
	}
	if req.Quantity < 1 {
		return domain.InventoryTransfer{}, fmt.Errorf("%w: quantity must be positive", store.ErrInvalidRequest)
	}
	if req.FromStoreID == req.ToStoreID {
		return domain.InventoryTransfer{}, store.ErrSameStore
	}

	created, err := s.repo.CreateTransfer(ctx, domain.InventoryTransfer{
		FromStoreID: req.FromStoreID,
		ToStoreID:   req.ToStoreID,
		ProductID:   req.ProductID,
		Quantity:    req.Quantity,
		Notes:       strings.TrimSpace(req.Notes),
		CreatedByID: req.CreatedByID,
	})
	if err != nil {
		return domain.InventoryTransfer{}, err
	}

	s.logAudit(ctx, "transfer_create", "transfer", created.ID, fmt.Sprintf("product=%s,qty=%d,from=%s,to=%s", created.ProductID, created.Quantity, created.FromStoreID, created.ToStoreID))
	return *created, nil
}

func (s *Service) GetTransfer(ctx context.Context, id string) (domain.InventoryTransfer, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return domain.InventoryTransfer{}, store.ErrInvalidRequest
	}
	transfer, err := s.repo.GetTransferByID(ctx, id)
	if err != nil {
		return domain.InventoryTransfer{}, err
	}
	return *transfer, nil
}

func (s *Service) ListTransfers(ctx context.Context, filter domain.TransferFilter) ([]domain.InventoryTransfer, error) {
	if filter.Limit < 1 {
		filter.Limit = 100
	}
	return s.repo.ListTransfers(ctx, filter)
}

func (s *Service) MarkTransferInTransit(ctx context.Context, id string) (domain.InventoryTransfer, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return domain.InventoryTransfer{}, store.ErrInvalidRequest
	}

	transfer, err := s.repo.MarkTransferInTransit(ctx, id, time.Now().UTC())
	if err != nil {
		return domain.InventoryTransfer{}, err
	}

	s.logAudit(ctx, "transfer_in_transit", "transfer", transfer.ID, "")
	return *transfer, nil
}

func (s *Service) CompleteTransfer(ctx context.Context, id string) (domain.InventoryTransfer, error) {
	actor, ok := ActorFromContext(ctx)
	if !ok || actor.Role != "admin" {
		return domain.InventoryTransfer{}, fmt.Errorf("admin role required")
	}

	id = strings.TrimSpace(id)
	if id == "" {
		return domain.InventoryTransfer{}, store.ErrInvalidRequest
	}

	transfer, err := s.repo.CompleteTransfer(ctx, id, time.Now().UTC())
	if err != nil {
		return domain.InventoryTransfer{}, err
	}

	s.logAudit(ctx, "transfer_complete", "transfer", transfer.ID, fmt.Sprintf("product=%s,qty=%d,to=%s", transfer.ProductID, transfer.Quantity, transfer.ToStoreID))
	return *transfer, nil
}

func (s *Service) CancelTransfer(ctx context.Context, id string) (domain.InventoryTransfer, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return domain.InventoryTransfer{}, store.ErrInvalidRequest
	}

	transfer, err := s.repo.CancelTransfer(ctx, id, time.Now().UTC())
	if err != nil {
		return domain.InventoryTransfer{}, err
	}

	s.logAudit(ctx, "transfer_cancel", "transfer", transfer.ID, "")
	return *transfer, nil
}

func (s *Service) GetStoreConfig(ctx context.Context) (domain.StoreConfig, error) {
	cfg, err := s.storeConfig(ctx)
	if err != nil {
		return domain.StoreConfig{}, err
	}
	return *cfg, nil
}

func (s *Service) UpdateStoreConfig(ctx context.Context, req domain.StoreConfigUpdateRequest) (domain.StoreConfig, error) {
	actor, ok := ActorFromContext(ctx)
	if !ok || actor.Role != "admin" {
		return domain.StoreConfig{}, fmt.Errorf("admin role required")
	}

	updated, err := s.repo.UpdateStoreConfig(ctx, req)
	if err != nil {
		return domain.StoreConfig{}, err
	}
	if err := s.configCache.InvalidateStoreConfig(ctx); err != nil {
		log.Printf("[service] WARN: failed to invalidate store config cache: %v", err)
	}

	s.logAudit(ctx, "store_config_update", "store_config", updated.ID, fmt.Sprintf("tax_rate=%s,prefix=%s", updated.TaxRate.String(), updated.InvoicePrefix))
	return *updated, nil
}

func (s *Service) GetLoyaltyConfig(ctx context.Context) (domain.LoyaltyConfig, error) {
	cfg, err := s.loyaltyConfig(ctx)
	if err != nil {
		return domain.LoyaltyConfig{}, err
	}
	return *cfg, nil
}

// UpdateLoyaltyConfig versions the program: the active row is merged with
// the patch and written as a fresh active row, deactivating its predecessors
// so historical awards keep the config they were computed under.
func (s *Service) UpdateLoyaltyConfig(ctx context.Context, req domain.LoyaltyConfigUpdateRequest) (domain.LoyaltyConfig, error) {
	actor, ok := ActorFromContext(ctx)
	if !ok || actor.Role != "admin" {
		return domain.LoyaltyConfig{}, fmt.Errorf("admin role required")
	}

	next := domain.LoyaltyConfig{
		PointsPerDollar:      decimal.NewFromInt(1),
		RedemptionRate:       decimal.RequireFromString("0.01"),
		MinPurchaseForPoints: decimal.Zero,
	}
	if current, err := s.repo.GetActiveLoyaltyConfig(ctx); err == nil {
		next = *current
	} else if !errors.Is(err, store.ErrNotFound) {
		return domain.LoyaltyConfig{}, err
	}

	if req.PointsPerDollar != nil {
		if req.PointsPerDollar.IsNegative() {
			return domain.LoyaltyConfig{}, store.ErrInvalidRequest
		}
		next.PointsPerDollar = *req.PointsPerDollar
	}
	if req.RedemptionRate != nil {
		if req.RedemptionRate.IsNegative() {
			return domain.LoyaltyConfig{}, store.ErrInvalidRequest
		}
		next.RedemptionRate = *req.RedemptionRate
	}
	if req.PointsExpireMonths != nil {
		if *req.PointsExpireMonths < 0 {
			return domain.LoyaltyConfig{}, store.ErrInvalidRequest
		}
		next.PointsExpireMonths = req.PointsExpireMonths
	}
	if req.MinPurchaseForPoints != nil {
		if req.MinPurchaseForPoints.IsNegative() {
			return domain.LoyaltyConfig{}, store.ErrInvalidRequest
		}
		next.MinPurchaseForPoints = *req.MinPurchaseForPoints
	}
	if req.MaxPointsPerPurchase != nil {
		if *req.MaxPointsPerPurchase < 0 {
			return domain.LoyaltyConfig{}, store.ErrInvalidRequest
		}
		next.MaxPointsPerPurchase = req.MaxPointsPerPurchase
	}

	next.ID = ""
	next.CreatedAt = time.Time{}
	saved, err := s.repo.ReplaceLoyaltyConfig(ctx, next)
	if err != nil {
		return domain.LoyaltyConfig{}, err
	}
	if err := s.configCache.InvalidateLoyaltyConfig(ctx); err != nil {
		log.Printf("[service] WARN: failed to invalidate loyalty config cache: %v", err)
	}

	s.logAudit(ctx, "loyalty_config_update", "loyalty_config", saved.ID, fmt.Sprintf("points_per_dollar=%s,min_purchase=%s", saved.PointsPerDollar.String(), saved.MinPurchaseForPoints.String()))
	return *saved, nil
}

// AwardPoints applies the active loyalty program to a completed purchase.
// Awarding is idempotent per sale: a second call for the same sale returns
// the points already granted instead of double-crediting.
func (s *Service) AwardPoints(ctx context.Context, req domain.LoyaltyAwardRequest) (domain.LoyaltyAwardResponse, error) {
	req.CustomerID = strings.TrimSpace(req.CustomerID)
	req.SaleID = strings.TrimSpace(req.SaleID)
	if req.CustomerID == "" || req.SaleID == "" {
		return domain.LoyaltyAwardResponse{}, store.ErrInvalidRequest
	}
	if req.PurchaseAmount.IsNegative() {
		return domain.LoyaltyAwardResponse{}, store.ErrInvalidRequest
	}

	cfg, err := s.loyaltyConfig(ctx)
	if err != nil {
		return domain.LoyaltyAwardResponse{}, err
	}

	award := loyalty.CalculateAward(*cfg, req.PurchaseAmount, time.Now().UTC())
	if award.Points == 0 {
		return domain.LoyaltyAwardResponse{PointsAwarded: 0}, nil
	}

	saleID := req.SaleID
	_, err = s.repo.CreateLoyaltyTransaction(ctx, domain.LoyaltyPointTransaction{
		CustomerID:  req.CustomerID,
		Type:        domain.LoyaltyTypeEarned,
		Points:      award.Points,
		Description: fmt.Sprintf("Points earned from purchase of %s", req.PurchaseAmount.StringFixed(2)),
		SaleID:      &saleID,
		ExpiresAt:   award.ExpiresAt,
	})
	if err != nil {
		if errors.Is(err, store.ErrDuplicate) {
			if existing, findErr := s.repo.FindEarnedBySale(ctx, saleID); findErr == nil {
				return domain.LoyaltyAwardResponse{PointsAwarded: existing.Points, Duplicate: true}, nil
			}
			return domain.LoyaltyAwardResponse{Duplicate: true}, nil
		}
		return domain.LoyaltyAwardResponse{}, err
	}

	s.logAudit(ctx, "loyalty_award", "loyalty_transaction", saleID, fmt.Sprintf("customer=%s,points=%d", req.CustomerID, award.Points))
	return domain.LoyaltyAwardResponse{PointsAwarded: award.Points}, nil
}

func (s *Service) LoyaltyBalance(ctx context.Context, customerID string) (domain.LoyaltyBalance, error) {
	customerID = strings.TrimSpace(customerID)
	if customerID == "" {
		return domain.LoyaltyBalance{}, store.ErrInvalidRequest
	}

	customer, err := s.repo.GetCustomerByID(ctx, customerID)
	if err != nil {
		return domain.LoyaltyBalance{}, err
	}
	history, err := s.repo.ListLoyaltyTransactions(ctx, customerID, 0)
	if err != nil {
		return domain.LoyaltyBalance{}, err
	}

	return loyalty.Balance(*customer, history, time.Now().UTC()), nil
}

func (s *Service) ListLoyaltyTransactions(ctx context.Context, customerID string, limit int) ([]domain.LoyaltyPointTransaction, error) {
	customerID = strings.TrimSpace(customerID)
	if customerID == "" {
		return nil, store.ErrInvalidRequest
	}
	if limit < 1 {
		limit = 100
	}
	return s.repo.ListLoyaltyTransactions(ctx, customerID, limit)
}

func (s *Service) ListAuditLogs(ctx context.Context, date string, limit int) ([]domain.AuditLog, error) {
	if limit < 1 {
		limit = 100
	}

	var from time.Time
	if strings.TrimSpace(date) == "" {
		from = time.Now().UTC().Add(-24 * time.Hour)
	} else {
		parsed, err := time.Parse("2006-01-02", date)
		if err != nil {
			return nil, store.ErrInvalidRequest
		}
		from = parsed.UTC()
	}
	to := from.Add(24 * time.Hour)

	return s.repo.ListAuditLogs(ctx, from, to, limit)
}

func (s *Service) storeConfig(ctx context.Context) (*domain.StoreConfig, error) {
	if cached, ok, err := s.configCache.GetStoreConfig(ctx); err == nil && ok {
		return cached, nil
	}

	cfg, err := s.repo.GetStoreConfig(ctx)
	if err != nil {
		return nil, err
	}
	if err := s.configCache.SetStoreConfig(ctx, cfg, s.cacheTTL); err != nil {
		log.Printf("[service] WARN: failed to cache store config: %v", err)
	}
	return cfg, nil
}

func (s *Service) loyaltyConfig(ctx context.Context) (*domain.LoyaltyConfig, error) {
	if cached, ok, err := s.configCache.GetLoyaltyConfig(ctx); err == nil && ok {
		return cached, nil
	}

	cfg, err := s.repo.GetActiveLoyaltyConfig(ctx)
	if err != nil {
		return nil, err
	}
	if err := s.configCache.SetLoyaltyConfig(ctx, cfg, s.cacheTTL); err != nil {
		log.Printf("[service] WARN: failed to cache loyalty config: %v", err)
	}
	return cfg, nil
}

func (s *Service) logAudit(ctx context.Context, action string, entityType string, entityID string, detail string) {
	actor, ok := ActorFromContext(ctx)
	if !ok {
		actor = domain.Actor{Username: "system", Role: "system"}
	}

	if err := s.repo.CreateAuditLog(ctx, domain.AuditLog{
		ID:            uuid.NewString(),
		ActorUsername: actor.Username,
		ActorRole:     actor.Role,
		Action:        action,
		EntityType:    entityType,
		EntityID:      entityID,
		Detail:        detail,
		CreatedAt:     time.Now().UTC(),
	}); err != nil {
		log.Printf("[audit] WARN: failed to write audit log action=%s entity=%s/%s: %v", action, entityType, entityID, err)
	}
}
