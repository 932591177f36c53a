package memory

import (
	"context"
	"fmt"
	"log"
	"os"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"golang.org/x/crypto/bcrypt"

	"shopflow/backend/internal/domain"
	"shopflow/backend/internal/store"
)

type Store struct {
	mu              sync.RWMutex
	products        map[string]domain.Product
	productIDBySKU  map[string]string
	customers       map[string]domain.Customer
	sales           map[string]*domain.Sale
	saleByInvoice   map[string]string
	transfers       map[string]domain.InventoryTransfer
	storeConfig     *domain.StoreConfig
	loyaltyConfigs  []domain.LoyaltyConfig
	loyaltyTxs      []domain.LoyaltyPointTransaction
	auditLogs       []domain.AuditLog
	usersByUsername map[string]domain.UserAccount
}

// seedUsers builds the initial in-memory user accounts for dev/demo mode.
// Credentials are read from SEED_ADMIN_PASSWORD and SEED_CASHIER_PASSWORD
// environment variables. If unset, hardcoded dev defaults are used with a
// warning printed to stdout. These credentials are never used in production
// (the backend uses PostgreSQL when DATABASE_URL is set).
func seedUsers() map[string]domain.UserAccount {
	adminPwd := envOr("SEED_ADMIN_PASSWORD", "admin123")
	cashierPwd := envOr("SEED_CASHIER_PASSWORD", "cashier123")
	if os.Getenv("SEED_ADMIN_PASSWORD") == "" || os.Getenv("SEED_CASHIER_PASSWORD") == "" {
		log.Println("[memory-store] WARNING: using default dev credentials. Set SEED_ADMIN_PASSWORD and SEED_CASHIER_PASSWORD to override.")
	}

	now := time.Now().UTC()
	users := map[string]domain.UserAccount{}
	for _, u := range []struct {
		username string
		password string
		role     string
	}{
		{"admin", adminPwd, "admin"},
		{"cashier", cashierPwd, "cashier"},
	} {
		hash, err := bcrypt.GenerateFromPassword([]byte(u.password), bcrypt.DefaultCost)
		if err != nil {
			log.Fatalf("[memory-store] failed to hash seed password for %s: %v", u.username, err)
		}
		users[u.username] = domain.UserAccount{
			Username:  u.username,
			Password:  string(hash),
			Role:      u.role,
			Active:    true,
			CreatedAt: now,
		}
	}
	return users
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func New() *Store {
	return &Store{
		products:        make(map[string]domain.Product),
		productIDBySKU:  make(map[string]string),
		customers:       make(map[string]domain.Customer),
		sales:           make(map[string]*domain.Sale),
		saleByInvoice:   make(map[string]string),
		transfers:       make(map[string]domain.InventoryTransfer),
		loyaltyConfigs:  make([]domain.LoyaltyConfig, 0, 4),
		loyaltyTxs:      make([]domain.LoyaltyPointTransaction, 0, 64),
		auditLogs:       make([]domain.AuditLog, 0, 128),
		usersByUsername: seedUsers(),
	}
}

func NewSeeded() *Store {
	s := New()
	now := time.Now().UTC()

	mainStore := "00000000-0000-0000-0000-000000000001"
	branchStore := "00000000-0000-0000-0000-000000000002"

	seedProducts := []struct {
		sku   string
		name  string
		price string
		cost  string
		stock int
	}{
		{"SKU-MIE-01", "Mie Goreng Instan", "3.50", "2.70", 120},
		{"SKU-TELUR-01", "Telur 10 Butir", "26.50", "23.00", 80},
		{"SKU-SUSU-01", "Susu UHT 1L", "18.90", "13.60", 60},
		{"SKU-ROTI-01", "Roti Tawar", "17.80", "12.50", 45},
		{"SKU-KOPI-01", "Kopi Sachet", "2.60", "1.70", 200},
		{"SKU-GULA-01", "Gula 1kg", "17.40", "15.30", 90},
		{"SKU-TEH-01", "Teh Celup", "9.80", "7.20", 70},
		{"SKU-AIR-01", "Air Mineral 600ml", "3.90", "3.20", 300},
	}
	minStock := 10
	for _, p := range seedProducts {
		id := uuid.NewString()
		storeID := mainStore
		product := domain.Product{
			ID:        id,
			SKU:       p.sku,
			Name:      p.name,
			Price:     decimal.RequireFromString(p.price),
			Cost:      decimal.RequireFromString(p.cost),
			Stock:     p.stock,
			MinStock:  &minStock,
			StoreID:   &storeID,
			Active:    true,
			CreatedAt: now,
			UpdatedAt: now,
		}
		s.products[id] = product
		s.productIDBySKU[p.sku] = id
	}

	branchID := uuid.NewString()
	s.products[branchID] = domain.Product{
		ID:        branchID,
		SKU:       "SKU-KOPI-02",
		Name:      "Kopi Botol RTD",
		Price:     decimal.RequireFromString("7.90"),
		Cost:      decimal.RequireFromString("5.40"),
		Stock:     40,
		MinStock:  &minStock,
		StoreID:   &branchStore,
		Active:    true,
		CreatedAt: now,
		UpdatedAt: now,
	}
	s.productIDBySKU["SKU-KOPI-02"] = branchID

	customer := domain.Customer{
		ID:        uuid.NewString(),
		Name:      "Walk-in Regular",
		Phone:     "+628120000001",
		CreatedAt: now,
	}
	s.customers[customer.ID] = customer

	s.storeConfig = defaultStoreConfig(now)

	expireMonths := 12
	s.loyaltyConfigs = append(s.loyaltyConfigs, domain.LoyaltyConfig{
		ID:                   uuid.NewString(),
		PointsPerDollar:      decimal.NewFromInt(1),
		RedemptionRate:       decimal.RequireFromString("0.01"),
		PointsExpireMonths:   &expireMonths,
		MinPurchaseForPoints: decimal.NewFromInt(10),
		Active:               true,
		CreatedAt:            now,
	})

	return s
}

func defaultStoreConfig(now time.Time) *domain.StoreConfig {
	return &domain.StoreConfig{
		ID:            uuid.NewString(),
		Name:          "My Store",
		Currency:      "USD",
		TaxRate:       decimal.Zero,
		LowStockAlert: 10,
		InvoicePrefix: "INV-",
		InvoiceNumber: 1,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
}

func (s *Store) ListProducts(_ context.Context, activeOnly bool) ([]domain.Product, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	products := make([]domain.Product, 0, len(s.products))
	for _, p := range s.products {
		if activeOnly && !p.Active {
			continue
		}
		products = append(products, p)
	}

	slices.SortFunc(products, func(a, b domain.Product) int {
		return cmpString(a.Name, b.Name)
	})
	return products, nil
}

func (s *Store) CreateProduct(_ context.Context, product domain.Product) (*domain.Product, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if product.SKU == "" || product.Name == "" {
		return nil, store.ErrInvalidRequest
	}
	if product.Price.IsNegative() || product.Stock < 0 {
		return nil, store.ErrInvalidRequest
	}
	if _, exists := s.productIDBySKU[product.SKU]; exists {
		return nil, store.ErrDuplicate
	}

	if product.ID == "" {
		product.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if product.CreatedAt.IsZero() {
		product.CreatedAt = now
	}
	product.UpdatedAt = now
	product.Active = true

	s.products[product.ID] = product
	s.productIDBySKU[product.SKU] = product.ID
	created := product
	return &created, nil
}

func (s *Store) GetProductByID(_ context.Context, id string) (*domain.Product, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	product, exists := s.products[id]
	if !exists {
		return nil, store.ErrNotFound
	}
	copyProduct := product
	return &copyProduct, nil
}

func (s *Store) GetProductBySKU(_ context.Context, sku string) (*domain.Product, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	id, exists := s.productIDBySKU[sku]
	if !exists {
		return nil, store.ErrNotFound
	}
	copyProduct := s.products[id]
	return &copyProduct, nil
}

func (s *Store) UpdateProduct(_ context.Context, id string, req domain.ProductUpdateRequest) (*domain.Product, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	product, exists := s.products[id]
	if !exists {
		return nil, store.ErrNotFound
	}

	if req.Name != nil {
		if strings.TrimSpace(*req.Name) == "" {
			return nil, store.ErrInvalidRequest
		}
		product.Name = *req.Name
	}
	if req.Barcode != nil {
		product.Barcode = *req.Barcode
	}
	if req.Price != nil {
		if req.Price.IsNegative() {
			return nil, store.ErrInvalidRequest
		}
		product.Price = *req.Price
	}
	if req.Cost != nil {
		if req.Cost.IsNegative() {
			return nil, store.ErrInvalidRequest
		}
		product.Cost = *req.Cost
	}
	if req.MinStock != nil {
		product.MinStock = req.MinStock
	}
	if req.MaxStock != nil {
		product.MaxStock = req.MaxStock
	}
	if req.StoreID != nil {
		product.StoreID = req.StoreID
	}
	if req.Active != nil {
		product.Active = *req.Active
	}
	product.UpdatedAt = time.Now().UTC()

	s.products[id] = product
	updated := product
	return &updated, nil
}

func (s *Store) ListLowStockProducts(_ context.Context, threshold int) ([]domain.Product, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]domain.Product, 0, 16)
	for _, p := range s.products {
		if !p.Active {
			continue
		}
		limit := threshold
		if p.MinStock != nil {
			limit = *p.MinStock
		}
		if p.Stock <= limit {
			result = append(result, p)
		}
	}
	slices.SortFunc(result, func(a, b domain.Product) int {
		if a.Stock == b.Stock {
			return cmpString(a.Name, b.Name)
		}
		if a.Stock < b.Stock {
			return -1
		}
		return 1
	})
	return result, nil
}

func (s *Store) CreateCustomer(_ context.Context, customer domain.Customer) (*domain.Customer, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	customer.Name = strings.TrimSpace(customer.Name)
	if customer.Name == "" {
		return nil, store.ErrInvalidRequest
	}
	if customer.ID == "" {
		customer.ID = uuid.NewString()
	}
	if customer.CreatedAt.IsZero() {
		customer.CreatedAt = time.Now().UTC()
	}

	s.customers[customer.ID] = customer
	created := customer
	return &created, nil
}

func (s *Store) GetCustomerByID(_ context.Context, id string) (*domain.Customer, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	customer, exists := s.customers[id]
	if !exists {
		return nil, store.ErrNotFound
	}
	copyCustomer := customer
	return &copyCustomer, nil
}

func (s *Store) ListCustomers(_ context.Context, limit int) ([]domain.Customer, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	customers := make([]domain.Customer, 0, len(s.customers))
	for _, c := range s.customers {
		customers = append(customers, c)
	}
	slices.SortFunc(customers, func(a, b domain.Customer) int {
		return cmpString(a.Name, b.Name)
	})
	if limit > 0 && len(customers) > limit {
		customers = customers[:limit]
	}
	return customers, nil
}

func (s *Store) DeleteCustomer(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.customers[id]; !exists {
		return store.ErrNotFound
	}
	for _, sale := range s.sales {
		if sale.CustomerID != nil && *sale.CustomerID == id {
			return store.ErrCustomerHasSales
		}
	}
	delete(s.customers, id)
	return nil
}

func (s *Store) CreateSale(_ context.Context, sale domain.Sale) (*domain.Sale, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(sale.Items) == 0 {
		return nil, store.ErrInvalidRequest
	}
	if sale.InvoiceNumber == "" {
		return nil, store.ErrInvalidRequest
	}
	if _, taken := s.saleByInvoice[sale.InvoiceNumber]; taken {
		return nil, store.ErrDuplicate
	}

	// Stock is re-checked under the lock so a concurrent sale cannot
	// oversell between the service's validation read and this write.
	for _, item := range sale.Items {
		product, exists := s.products[item.ProductID]
		if !exists {
			return nil, fmt.Errorf("product %s: %w", item.ProductID, store.ErrNotFound)
		}
		if !product.Active {
			return nil, fmt.Errorf("product %s: %w", item.ProductID, store.ErrProductInactive)
		}
		if product.Stock < item.Quantity {
			return nil, fmt.Errorf("product %s: %w", item.ProductID, store.ErrInsufficientStock)
		}
	}

	now := time.Now().UTC()
	if sale.ID == "" {
		sale.ID = uuid.NewString()
	}
	if sale.CreatedAt.IsZero() {
		sale.CreatedAt = now
	}
	sale.UpdatedAt = now
	if sale.Status == "" {
		sale.Status = domain.SaleStatusCompleted
	}

	for i := range sale.Items {
		if sale.Items[i].ID == "" {
			sale.Items[i].ID = uuid.NewString()
		}
		sale.Items[i].SaleID = sale.ID
		product := s.products[sale.Items[i].ProductID]
		product.Stock -= sale.Items[i].Quantity
		product.UpdatedAt = now
		s.products[product.ID] = product
	}

	saved := cloneSale(&sale)
	s.sales[sale.ID] = saved
	s.saleByInvoice[sale.InvoiceNumber] = sale.ID
	return cloneSale(saved), nil
}

func (s *Store) GetSaleByID(_ context.Context, id string) (*domain.Sale, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sale, exists := s.sales[id]
	if !exists {
		return nil, store.ErrNotFound
	}
	return cloneSale(sale), nil
}

func (s *Store) ListSales(_ context.Context, filter domain.SaleFilter) ([]domain.Sale, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]domain.Sale, 0, 64)
	for _, sale := range s.sales {
		if filter.CustomerID != "" && (sale.CustomerID == nil || *sale.CustomerID != filter.CustomerID) {
			continue
		}
		if filter.UserID != "" && sale.UserID != filter.UserID {
			continue
		}
		if filter.Status != "" && sale.Status != filter.Status {
			continue
		}
		if filter.PaymentMethod != "" && sale.PaymentMethod != filter.PaymentMethod {
			continue
		}
		if filter.From != nil && sale.CreatedAt.Before(*filter.From) {
			continue
		}
		if filter.To != nil && !sale.CreatedAt.Before(*filter.To) {
			continue
		}
		result = append(result, *cloneSale(sale))
	}

	slices.SortFunc(result, func(a, b domain.Sale) int {
		if a.CreatedAt.Equal(b.CreatedAt) {
			return cmpString(b.ID, a.ID)
		}
		if a.CreatedAt.After(b.CreatedAt) {
			return -1
		}
		return 1
	})
	if filter.Limit > 0 && len(result) > filter.Limit {
		result = result[:filter.Limit]
	}
	return result, nil
}

func (s *Store) CancelSale(_ context.Context, id string, at time.Time) (*domain.Sale, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sale, exists := s.sales[id]
	if !exists {
		return nil, store.ErrNotFound
	}
	switch sale.Status {
	case domain.SaleStatusCancelled:
		return nil, store.ErrAlreadyCancelled
	case domain.SaleStatusRefunded:
		return nil, store.ErrAlreadyRefunded
	}

	s.restoreSaleStock(sale, at)
	sale.Status = domain.SaleStatusCancelled
	sale.UpdatedAt = at
	return cloneSale(sale), nil
}

func (s *Store) RefundSale(_ context.Context, id string, at time.Time) (*domain.Sale, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sale, exists := s.sales[id]
	if !exists {
		return nil, store.ErrNotFound
	}
	switch sale.Status {
	case domain.SaleStatusCancelled:
		// Refund only applies to settled sales; a cancelled sale never settled.
		return nil, fmt.Errorf("refund cancelled sale: %w", store.ErrInvalidState)
	case domain.SaleStatusRefunded:
		return nil, store.ErrAlreadyRefunded
	}

	s.restoreSaleStock(sale, at)
	sale.Status = domain.SaleStatusRefunded
	sale.UpdatedAt = at
	return cloneSale(sale), nil
}

func (s *Store) restoreSaleStock(sale *domain.Sale, at time.Time) {
	for _, item := range sale.Items {
		product, exists := s.products[item.ProductID]
		if !exists {
			continue
		}
		product.Stock += item.Quantity
		product.UpdatedAt = at
		s.products[product.ID] = product
	}
}

func (s *Store) NextInvoiceNumber(_ context.Context) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.storeConfig == nil {
		return "", store.ErrConfigMissing
	}
	n := s.storeConfig.InvoiceNumber
	s.storeConfig.InvoiceNumber++
	s.storeConfig.UpdatedAt = time.Now().UTC()
	return fmt.Sprintf("%s%06d", s.storeConfig.InvoicePrefix, n), nil
}

func (s *Store) CreateTransfer(_ context.Context, transfer domain.InventoryTransfer) (*domain.InventoryTransfer, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if transfer.Quantity < 1 {
		return nil, store.ErrInvalidRequest
	}
	if transfer.FromStoreID == transfer.ToStoreID {
		return nil, store.ErrSameStore
	}
	product, exists := s.products[transfer.ProductID]
	if !exists {
		return nil, store.ErrNotFound
	}
	if product.Stock < transfer.Quantity {
		return nil, store.ErrInsufficientStock
	}

	now := time.Now().UTC()
	if transfer.ID == "" {
		transfer.ID = uuid.NewString()
	}
	transfer.Status = domain.TransferStatusPending
	transfer.CreatedAt = now
	transfer.UpdatedAt = now

	s.transfers[transfer.ID] = transfer
	created := transfer
	return &created, nil
}

func (s *Store) GetTransferByID(_ context.Context, id string) (*domain.InventoryTransfer, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	transfer, exists := s.transfers[id]
	if !exists {
		return nil, store.ErrNotFound
	}
	copyTransfer := transfer
	return &copyTransfer, nil
}

func (s *Store) ListTransfers(_ context.Context, filter domain.TransferFilter) ([]domain.InventoryTransfer, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]domain.InventoryTransfer, 0, len(s.transfers))
	for _, transfer := range s.transfers {
		if filter.FromStoreID != "" && transfer.FromStoreID != filter.FromStoreID {
			continue
		}
		if filter.ToStoreID != "" && transfer.ToStoreID != filter.ToStoreID {
			continue
		}
		if filter.ProductID != "" && transfer.ProductID != filter.ProductID {
			continue
		}
		if filter.Status != "" && transfer.Status != filter.Status {
			continue
		}
		result = append(result, transfer)
	}

	slices.SortFunc(result, func(a, b domain.InventoryTransfer) int {
		if a.CreatedAt.Equal(b.CreatedAt) {
			return cmpString(b.ID, a.ID)
		}
		if a.CreatedAt.After(b.CreatedAt) {
			return -1
		}
		return 1
	})
	if filter.Limit > 0 && len(result) > filter.Limit {
		result = result[:filter.Limit]
	}
	return result, nil
}

func (s *Store) MarkTransferInTransit(_ context.Context, id string, at time.Time) (*domain.InventoryTransfer, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	transfer, exists := s.transfers[id]
	if !exists {
		return nil, store.ErrNotFound
	}
	if transfer.Status != domain.TransferStatusPending {
		return nil, store.ErrInvalidState
	}

	transfer.Status = domain.TransferStatusInTransit
	transfer.UpdatedAt = at
	s.transfers[id] = transfer
	copyTransfer := transfer
	return &copyTransfer, nil
}

func (s *Store) CompleteTransfer(_ context.Context, id string, at time.Time) (*domain.InventoryTransfer, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	transfer, exists := s.transfers[id]
	if !exists {
		return nil, store.ErrNotFound
	}
	if transfer.Status != domain.TransferStatusPending && transfer.Status != domain.TransferStatusInTransit {
		return nil, store.ErrInvalidState
	}

	product, exists := s.products[transfer.ProductID]
	if !exists {
		return nil, store.ErrNotFound
	}
	if product.Stock < transfer.Quantity {
		return nil, store.ErrInsufficientStock
	}
	// An unassigned product may be debited from anywhere; once homed, only
	// from the transfer's source store.
	if product.StoreID != nil && *product.StoreID != transfer.FromStoreID {
		return nil, fmt.Errorf("product no longer at store %s: %w", transfer.FromStoreID, store.ErrInvalidState)
	}

	toStore := transfer.ToStoreID
	product.Stock -= transfer.Quantity
	product.StoreID = &toStore
	product.UpdatedAt = at
	s.products[product.ID] = product

	transfer.Status = domain.TransferStatusCompleted
	transfer.CompletedAt = &at
	transfer.UpdatedAt = at
	s.transfers[id] = transfer
	copyTransfer := transfer
	return &copyTransfer, nil
}

func (s *Store) CancelTransfer(_ context.Context, id string, at time.Time) (*domain.InventoryTransfer, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	transfer, exists := s.transfers[id]
	if !exists {
		return nil, store.ErrNotFound
	}
	if transfer.Status == domain.TransferStatusCompleted || transfer.Status == domain.TransferStatusCancelled {
		return nil, store.ErrInvalidState
	}

	transfer.Status = domain.TransferStatusCancelled
	transfer.UpdatedAt = at
	s.transfers[id] = transfer
	copyTransfer := transfer
	return &copyTransfer, nil
}

func (s *Store) GetStoreConfig(_ context.Context) (*domain.StoreConfig, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.storeConfig == nil {
		s.storeConfig = defaultStoreConfig(time.Now().UTC())
	}
	copyConfig := *s.storeConfig
	return &copyConfig, nil
}

func (s *Store) UpdateStoreConfig(_ context.Context, req domain.StoreConfigUpdateRequest) (*domain.StoreConfig, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.storeConfig == nil {
		s.storeConfig = defaultStoreConfig(time.Now().UTC())
	}
	cfg := s.storeConfig

	if req.Name != nil {
		if strings.TrimSpace(*req.Name) == "" {
			return nil, store.ErrInvalidRequest
		}
		cfg.Name = *req.Name
	}
	if req.Address != nil {
		cfg.Address = *req.Address
	}
	if req.Phone != nil {
		cfg.Phone = *req.Phone
	}
	if req.Currency != nil {
		cfg.Currency = *req.Currency
	}
	if req.TaxRate != nil {
		if req.TaxRate.IsNegative() {
			return nil, store.ErrInvalidRequest
		}
		cfg.TaxRate = *req.TaxRate
	}
	if req.LowStockAlert != nil {
		if *req.LowStockAlert < 0 {
			return nil, store.ErrInvalidRequest
		}
		cfg.LowStockAlert = *req.LowStockAlert
	}
	if req.InvoicePrefix != nil {
		cfg.InvoicePrefix = *req.InvoicePrefix
	}
	cfg.UpdatedAt = time.Now().UTC()

	copyConfig := *cfg
	return &copyConfig, nil
}

func (s *Store) GetActiveLoyaltyConfig(_ context.Context) (*domain.LoyaltyConfig, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for i := len(s.loyaltyConfigs) - 1; i >= 0; i-- {
		if s.loyaltyConfigs[i].Active {
			copyConfig := s.loyaltyConfigs[i]
			return &copyConfig, nil
		}
	}
	return nil, store.ErrNotFound
}

func (s *Store) ReplaceLoyaltyConfig(_ context.Context, cfg domain.LoyaltyConfig) (*domain.LoyaltyConfig, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if cfg.ID == "" {
		cfg.ID = uuid.NewString()
	}
	if cfg.CreatedAt.IsZero() {
		cfg.CreatedAt = time.Now().UTC()
	}
	cfg.Active = true

	for i := range s.loyaltyConfigs {
		s.loyaltyConfigs[i].Active = false
	}
	s.loyaltyConfigs = append(s.loyaltyConfigs, cfg)
	copyConfig := cfg
	return &copyConfig, nil
}

func (s *Store) CreateLoyaltyTransaction(_ context.Context, tx domain.LoyaltyPointTransaction) (*domain.LoyaltyPointTransaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if tx.CustomerID == "" {
		return nil, store.ErrInvalidRequest
	}
	if _, exists := s.customers[tx.CustomerID]; !exists {
		return nil, store.ErrNotFound
	}
	if tx.Type == domain.LoyaltyTypeEarned && tx.SaleID != nil {
		for _, existing := range s.loyaltyTxs {
			if existing.Type == domain.LoyaltyTypeEarned && existing.SaleID != nil && *existing.SaleID == *tx.SaleID {
				return nil, store.ErrDuplicate
			}
		}
	}

	if tx.ID == "" {
		tx.ID = uuid.NewString()
	}
	if tx.CreatedAt.IsZero() {
		tx.CreatedAt = time.Now().UTC()
	}
	s.loyaltyTxs = append(s.loyaltyTxs, tx)
	created := tx
	return &created, nil
}

func (s *Store) FindEarnedBySale(_ context.Context, saleID string) (*domain.LoyaltyPointTransaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, tx := range s.loyaltyTxs {
		if tx.Type == domain.LoyaltyTypeEarned && tx.SaleID != nil && *tx.SaleID == saleID {
			copyTx := tx
			return &copyTx, nil
		}
	}
	return nil, store.ErrNotFound
}

func (s *Store) ListLoyaltyTransactions(_ context.Context, customerID string, limit int) ([]domain.LoyaltyPointTransaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]domain.LoyaltyPointTransaction, 0, 32)
	for _, tx := range s.loyaltyTxs {
		if tx.CustomerID != customerID {
			continue
		}
		result = append(result, tx)
	}
	slices.SortFunc(result, func(a, b domain.LoyaltyPointTransaction) int {
		if a.CreatedAt.Equal(b.CreatedAt) {
			return cmpString(b.ID, a.ID)
		}
		if a.CreatedAt.After(b.CreatedAt) {
			return -1
		}
		return 1
	})
	if limit > 0 && len(result) > limit {
		result = result[:limit]
	}
	return result, nil
}

func (s *Store) CreateAuditLog(_ context.Context, entry domain.AuditLog) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if entry.ID == "" {
		entry.ID = uuid.NewString()
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}
	s.auditLogs = append(s.auditLogs, entry)
	return nil
}

func (s *Store) ListAuditLogs(_ context.Context, from time.Time, to time.Time, limit int) ([]domain.AuditLog, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]domain.AuditLog, 0, 64)
	for _, entry := range s.auditLogs {
		if entry.CreatedAt.Before(from) || !entry.CreatedAt.Before(to) {
			continue
		}
		result = append(result, entry)
	}

	slices.SortFunc(result, func(a, b domain.AuditLog) int {
		if a.CreatedAt.Equal(b.CreatedAt) {
			return cmpString(b.ID, a.ID)
		}
		if a.CreatedAt.After(b.CreatedAt) {
			return -1
		}
		return 1
	})
	if limit > 0 && len(result) > limit {
		result = result[:limit]
	}
	return result, nil
}

func (s *Store) CreateUser(_ context.Context, user domain.UserAccount) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	username := strings.ToLower(strings.TrimSpace(user.Username))
	if username == "" || strings.TrimSpace(user.Password) == "" {
		return store.ErrInvalidRequest
	}
	if _, exists := s.usersByUsername[username]; exists {
		return store.ErrDuplicate
	}
	user.Username = username
	if user.Role == "" {
		user.Role = "cashier"
	}
	if user.CreatedAt.IsZero() {
		user.CreatedAt = time.Now().UTC()
	}
	user.Active = true
	s.usersByUsername[user.Username] = user
	return nil
}

func (s *Store) ListUsers(_ context.Context) ([]domain.UserAccount, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	users := make([]domain.UserAccount, 0, len(s.usersByUsername))
	for _, user := range s.usersByUsername {
		users = append(users, user)
	}
	slices.SortFunc(users, func(a, b domain.UserAccount) int {
		return cmpString(a.Username, b.Username)
	})
	return users, nil
}

func (s *Store) UpdateUserPassword(_ context.Context, username string, password string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	username = strings.ToLower(strings.TrimSpace(username))
	if username == "" || strings.TrimSpace(password) == "" {
		return store.ErrInvalidRequest
	}
	user, exists := s.usersByUsername[username]
	if !exists {
		return store.ErrNotFound
	}
	user.Password = password
	s.usersByUsername[username] = user
	return nil
}

func cmpString(a string, b string) int {
	if a == b {
		return 0
	}
	if a < b {
		return -1
	}
	return 1
}

func cloneSale(src *domain.Sale) *domain.Sale {
	if src == nil {
		return nil
	}
	dup := *src
	items := make([]domain.SaleItem, len(src.Items))
	copy(items, src.Items)
	dup.Items = items
	return &dup
}
