package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"shopflow/backend/internal/cache"
	"shopflow/backend/internal/domain"
	"shopflow/backend/internal/store"
	"shopflow/backend/internal/store/memory"
)

func newTestService() *Service {
	return New(memory.NewSeeded(), cache.NoopConfigCache{}, 5*time.Second)
}

func adminCtx() context.Context {
	return WithActor(context.Background(), domain.Actor{Username: "admin", Role: "admin"})
}

func mustCreateProduct(t *testing.T, svc *Service, sku string, price string, stock int) domain.Product {
	t.Helper()
	product, err := svc.CreateProduct(adminCtx(), domain.ProductCreateRequest{
		SKU:   sku,
		Name:  "Product " + sku,
		Price: decimal.RequireFromString(price),
		Cost:  decimal.RequireFromString(price).Mul(decimal.RequireFromString("0.7")),
		Stock: stock,
	})
	if err != nil {
		t.Fatalf("create product %s failed: %v", sku, err)
	}
	return product
}

func mustCreateCustomer(t *testing.T, svc *Service, name string) domain.Customer {
	t.Helper()
	customer, err := svc.CreateCustomer(adminCtx(), domain.CustomerCreateRequest{Name: name})
	if err != nil {
		t.Fatalf("create customer failed: %v", err)
	}
	return customer
}

func taxRate(pct string) *decimal.Decimal {
	rate := decimal.RequireFromString(pct)
	return &rate
}

func TestCreateSaleComputesTotalsAndChange(t *testing.T) {
	svc := newTestService()
	product := mustCreateProduct(t, svc, "SKU-A", "10.00", 10)

	sale, err := svc.CreateSale(adminCtx(), domain.SaleCreateRequest{
		UserID: "user-1",
		Items: []domain.SaleItemRequest{
			{ProductID: product.ID, Quantity: 2, Price: decimal.RequireFromString("10.00")},
		},
		PaymentMethod: "CASH",
		PaidAmount:    decimal.RequireFromString("22.00"),
		TaxRate:       taxRate("0.10"),
	})
	if err != nil {
		t.Fatalf("create sale failed: %v", err)
	}

	if !sale.Subtotal.Equal(decimal.RequireFromString("20.00")) {
		t.Fatalf("expected subtotal 20, got %s", sale.Subtotal)
	}
	if !sale.Tax.Equal(decimal.RequireFromString("2.00")) {
		t.Fatalf("expected tax 2, got %s", sale.Tax)
	}
	if !sale.Total.Equal(decimal.RequireFromString("22.00")) {
		t.Fatalf("expected total 22, got %s", sale.Total)
	}
	if !sale.Change.IsZero() {
		t.Fatalf("expected change 0, got %s", sale.Change)
	}
	if sale.Status != domain.SaleStatusCompleted {
		t.Fatalf("expected COMPLETED, got %s", sale.Status)
	}

	updated, err := svc.GetProduct(context.Background(), product.ID)
	if err != nil {
		t.Fatalf("get product failed: %v", err)
	}
	if updated.Stock != 8 {
		t.Fatalf("expected stock 8 after sale, got %d", updated.Stock)
	}
}

func TestCreateSaleNonCashHasZeroChange(t *testing.T) {
	svc := newTestService()
	product := mustCreateProduct(t, svc, "SKU-B", "15.00", 5)

	sale, err := svc.CreateSale(adminCtx(), domain.SaleCreateRequest{
		UserID: "user-1",
		Items: []domain.SaleItemRequest{
			{ProductID: product.ID, Quantity: 1, Price: decimal.RequireFromString("15.00")},
		},
		PaymentMethod: "CARD",
		PaidAmount:    decimal.RequireFromString("20.00"),
		TaxRate:       taxRate("0"),
	})
	if err != nil {
		t.Fatalf("create sale failed: %v", err)
	}
	if !sale.Change.IsZero() {
		t.Fatalf("expected zero change for card payment, got %s", sale.Change)
	}
}

func TestCreateSaleRejectsInsufficientStock(t *testing.T) {
	svc := newTestService()
	product := mustCreateProduct(t, svc, "SKU-C", "5.00", 3)

	_, err := svc.CreateSale(adminCtx(), domain.SaleCreateRequest{
		UserID: "user-1",
		Items: []domain.SaleItemRequest{
			{ProductID: product.ID, Quantity: 4, Price: decimal.RequireFromString("5.00")},
		},
		PaymentMethod: "CASH",
		PaidAmount:    decimal.RequireFromString("100.00"),
		TaxRate:       taxRate("0"),
	})
	if !errors.Is(err, store.ErrInsufficientStock) {
		t.Fatalf("expected ErrInsufficientStock, got %v", err)
	}

	after, err := svc.GetProduct(context.Background(), product.ID)
	if err != nil {
		t.Fatalf("get product failed: %v", err)
	}
	if after.Stock != 3 {
		t.Fatalf("rejected sale must not touch stock, got %d", after.Stock)
	}
}

func TestCreateSaleRejectsInactiveProduct(t *testing.T) {
	svc := newTestService()
	product := mustCreateProduct(t, svc, "SKU-D", "5.00", 10)
	inactive := false
	if _, err := svc.UpdateProduct(adminCtx(), product.ID, domain.ProductUpdateRequest{Active: &inactive}); err != nil {
		t.Fatalf("deactivate product failed: %v", err)
	}

	_, err := svc.CreateSale(adminCtx(), domain.SaleCreateRequest{
		UserID: "user-1",
		Items: []domain.SaleItemRequest{
			{ProductID: product.ID, Quantity: 1, Price: decimal.RequireFromString("5.00")},
		},
		PaymentMethod: "CASH",
		PaidAmount:    decimal.RequireFromString("10.00"),
		TaxRate:       taxRate("0"),
	})
	if !errors.Is(err, store.ErrProductInactive) {
		t.Fatalf("expected ErrProductInactive, got %v", err)
	}
}

func TestCreateSaleRejectsUnknownCustomer(t *testing.T) {
	svc := newTestService()
	product := mustCreateProduct(t, svc, "SKU-E", "5.00", 10)

	missing := "does-not-exist"
	_, err := svc.CreateSale(adminCtx(), domain.SaleCreateRequest{
		CustomerID: &missing,
		UserID:     "user-1",
		Items: []domain.SaleItemRequest{
			{ProductID: product.ID, Quantity: 1, Price: decimal.RequireFromString("5.00")},
		},
		PaymentMethod: "CASH",
		PaidAmount:    decimal.RequireFromString("10.00"),
		TaxRate:       taxRate("0"),
	})
	if !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("expected ErrNotFound for unknown customer, got %v", err)
	}
}

func TestCreateSaleRejectsInsufficientPayment(t *testing.T) {
	svc := newTestService()
	product := mustCreateProduct(t, svc, "SKU-F", "10.00", 10)

	_, err := svc.CreateSale(adminCtx(), domain.SaleCreateRequest{
		UserID: "user-1",
		Items: []domain.SaleItemRequest{
			{ProductID: product.ID, Quantity: 2, Price: decimal.RequireFromString("10.00")},
		},
		PaymentMethod: "CASH",
		PaidAmount:    decimal.RequireFromString("19.99"),
		TaxRate:       taxRate("0"),
	})
	if !errors.Is(err, store.ErrInsufficientPayment) {
		t.Fatalf("expected ErrInsufficientPayment, got %v", err)
	}
}

func TestInvoiceNumbersAreSequentialAndUnique(t *testing.T) {
	svc := newTestService()
	product := mustCreateProduct(t, svc, "SKU-G", "1.00", 100)

	seen := map[string]bool{}
	for i := 0; i < 3; i++ {
		sale, err := svc.CreateSale(adminCtx(), domain.SaleCreateRequest{
			UserID: "user-1",
			Items: []domain.SaleItemRequest{
				{ProductID: product.ID, Quantity: 1, Price: decimal.RequireFromString("1.00")},
			},
			PaymentMethod: "CASH",
			PaidAmount:    decimal.RequireFromString("1.00"),
			TaxRate:       taxRate("0"),
		})
		if err != nil {
			t.Fatalf("create sale %d failed: %v", i, err)
		}
		if seen[sale.InvoiceNumber] {
			t.Fatalf("duplicate invoice number %s", sale.InvoiceNumber)
		}
		seen[sale.InvoiceNumber] = true
	}
	if !seen["INV-000001"] || !seen["INV-000002"] || !seen["INV-000003"] {
		t.Fatalf("expected INV-000001..INV-000003, got %v", seen)
	}
}

func TestNextInvoiceFailsWithoutConfig(t *testing.T) {
	repo := memory.New()
	svc := New(repo, cache.NoopConfigCache{}, 5*time.Second)
	product := mustCreateProduct(t, svc, "SKU-H", "1.00", 10)

	// Passing a tax override skips the config read, so the missing config
	// is only hit at invoice allocation.
	_, err := svc.CreateSale(adminCtx(), domain.SaleCreateRequest{
		UserID: "user-1",
		Items: []domain.SaleItemRequest{
			{ProductID: product.ID, Quantity: 1, Price: decimal.RequireFromString("1.00")},
		},
		PaymentMethod: "CASH",
		PaidAmount:    decimal.RequireFromString("1.00"),
		TaxRate:       taxRate("0"),
	})
	if !errors.Is(err, store.ErrConfigMissing) {
		t.Fatalf("expected ErrConfigMissing, got %v", err)
	}
}

func TestCancelSaleRestoresStockAndIsTerminal(t *testing.T) {
	svc := newTestService()
	product := mustCreateProduct(t, svc, "SKU-I", "10.00", 10)

	sale, err := svc.CreateSale(adminCtx(), domain.SaleCreateRequest{
		UserID: "user-1",
		Items: []domain.SaleItemRequest{
			{ProductID: product.ID, Quantity: 3, Price: decimal.RequireFromString("10.00")},
		},
		PaymentMethod: "CASH",
		PaidAmount:    decimal.RequireFromString("30.00"),
		TaxRate:       taxRate("0"),
	})
	if err != nil {
		t.Fatalf("create sale failed: %v", err)
	}

	cancelled, err := svc.CancelSale(adminCtx(), sale.ID)
	if err != nil {
		t.Fatalf("cancel sale failed: %v", err)
	}
	if cancelled.Status != domain.SaleStatusCancelled {
		t.Fatalf("expected CANCELLED, got %s", cancelled.Status)
	}

	after, err := svc.GetProduct(context.Background(), product.ID)
	if err != nil {
		t.Fatalf("get product failed: %v", err)
	}
	if after.Stock != 10 {
		t.Fatalf("expected stock restored to 10, got %d", after.Stock)
	}

	if _, err := svc.CancelSale(adminCtx(), sale.ID); !errors.Is(err, store.ErrAlreadyCancelled) {
		t.Fatalf("expected ErrAlreadyCancelled on second cancel, got %v", err)
	}
	if _, err := svc.RefundSale(adminCtx(), sale.ID); !errors.Is(err, store.ErrInvalidState) {
		t.Fatalf("expected ErrInvalidState refunding a cancelled sale, got %v", err)
	}

	// The failed refund must not touch stock a second time.
	after, err = svc.GetProduct(context.Background(), product.ID)
	if err != nil {
		t.Fatalf("get product failed: %v", err)
	}
	if after.Stock != 10 {
		t.Fatalf("expected stock to stay at 10 after rejected refund, got %d", after.Stock)
	}
}

func TestRefundSaleRestoresStock(t *testing.T) {
	svc := newTestService()
	product := mustCreateProduct(t, svc, "SKU-J", "10.00", 6)

	sale, err := svc.CreateSale(adminCtx(), domain.SaleCreateRequest{
		UserID: "user-1",
		Items: []domain.SaleItemRequest{
			{ProductID: product.ID, Quantity: 2, Price: decimal.RequireFromString("10.00")},
		},
		PaymentMethod: "CASH",
		PaidAmount:    decimal.RequireFromString("20.00"),
		TaxRate:       taxRate("0"),
	})
	if err != nil {
		t.Fatalf("create sale failed: %v", err)
	}

	refunded, err := svc.RefundSale(adminCtx(), sale.ID)
	if err != nil {
		t.Fatalf("refund sale failed: %v", err)
	}
	if refunded.Status != domain.SaleStatusRefunded {
		t.Fatalf("expected REFUNDED, got %s", refunded.Status)
	}

	after, err := svc.GetProduct(context.Background(), product.ID)
	if err != nil {
		t.Fatalf("get product failed: %v", err)
	}
	if after.Stock != 6 {
		t.Fatalf("expected stock restored to 6, got %d", after.Stock)
	}

	if _, err := svc.RefundSale(adminCtx(), sale.ID); !errors.Is(err, store.ErrAlreadyRefunded) {
		t.Fatalf("expected ErrAlreadyRefunded on second refund, got %v", err)
	}
}

func TestSaleItemDiscountReducesSubtotal(t *testing.T) {
	svc := newTestService()
	product := mustCreateProduct(t, svc, "SKU-K", "10.00", 10)

	sale, err := svc.CreateSale(adminCtx(), domain.SaleCreateRequest{
		UserID: "user-1",
		Items: []domain.SaleItemRequest{
			{ProductID: product.ID, Quantity: 2, Price: decimal.RequireFromString("10.00"), Discount: decimal.RequireFromString("3.00")},
		},
		PaymentMethod: "CASH",
		PaidAmount:    decimal.RequireFromString("17.00"),
		Discount:      decimal.Zero,
		TaxRate:       taxRate("0"),
	})
	if err != nil {
		t.Fatalf("create sale failed: %v", err)
	}
	if !sale.Subtotal.Equal(decimal.RequireFromString("17.00")) {
		t.Fatalf("expected subtotal 17, got %s", sale.Subtotal)
	}
}

func TestTransferLifecycleMovesProduct(t *testing.T) {
	svc := newTestService()
	product := mustCreateProduct(t, svc, "SKU-L", "10.00", 5)

	transfer, err := svc.CreateTransfer(adminCtx(), domain.TransferCreateRequest{
		FromStoreID: "store-a",
		ToStoreID:   "store-b",
		ProductID:   product.ID,
		Quantity:    3,
		CreatedByID: "user-1",
	})
	if err != nil {
		t.Fatalf("create transfer failed: %v", err)
	}
	if transfer.Status != domain.TransferStatusPending {
		t.Fatalf("expected PENDING, got %s", transfer.Status)
	}

	if _, err := svc.MarkTransferInTransit(adminCtx(), transfer.ID); err != nil {
		t.Fatalf("mark in transit failed: %v", err)
	}

	completed, err := svc.CompleteTransfer(adminCtx(), transfer.ID)
	if err != nil {
		t.Fatalf("complete transfer failed: %v", err)
	}
	if completed.Status != domain.TransferStatusCompleted {
		t.Fatalf("expected COMPLETED, got %s", completed.Status)
	}
	if completed.CompletedAt == nil {
		t.Fatalf("expected CompletedAt to be set")
	}

	after, err := svc.GetProduct(context.Background(), product.ID)
	if err != nil {
		t.Fatalf("get product failed: %v", err)
	}
	if after.Stock != 2 {
		t.Fatalf("expected stock 2 after transfer of 3, got %d", after.Stock)
	}
	if after.StoreID == nil || *after.StoreID != "store-b" {
		t.Fatalf("expected product relocated to store-b, got %v", after.StoreID)
	}

	if _, err := svc.CancelTransfer(adminCtx(), transfer.ID); !errors.Is(err, store.ErrInvalidState) {
		t.Fatalf("expected cancel of completed transfer to fail, got %v", err)
	}
}

func TestCreateTransferRejectsSameStore(t *testing.T) {
	svc := newTestService()
	product := mustCreateProduct(t, svc, "SKU-M", "10.00", 5)

	_, err := svc.CreateTransfer(adminCtx(), domain.TransferCreateRequest{
		FromStoreID: "store-a",
		ToStoreID:   "store-a",
		ProductID:   product.ID,
		Quantity:    1,
		CreatedByID: "user-1",
	})
	if !errors.Is(err, store.ErrSameStore) {
		t.Fatalf("expected ErrSameStore, got %v", err)
	}
}

func TestCancelPendingTransferLeavesStockUntouched(t *testing.T) {
	svc := newTestService()
	product := mustCreateProduct(t, svc, "SKU-N", "10.00", 5)

	transfer, err := svc.CreateTransfer(adminCtx(), domain.TransferCreateRequest{
		FromStoreID: "store-a",
		ToStoreID:   "store-b",
		ProductID:   product.ID,
		Quantity:    2,
		CreatedByID: "user-1",
	})
	if err != nil {
		t.Fatalf("create transfer failed: %v", err)
	}

	cancelled, err := svc.CancelTransfer(adminCtx(), transfer.ID)
	if err != nil {
		t.Fatalf("cancel transfer failed: %v", err)
	}
	if cancelled.Status != domain.TransferStatusCancelled {
		t.Fatalf("expected CANCELLED, got %s", cancelled.Status)
	}

	after, err := svc.GetProduct(context.Background(), product.ID)
	if err != nil {
		t.Fatalf("get product failed: %v", err)
	}
	if after.Stock != 5 {
		t.Fatalf("pending transfer cancel must not touch stock, got %d", after.Stock)
	}
}

func TestCompleteTransferRejectsRelocatedProduct(t *testing.T) {
	svc := newTestService()

	homeStore := "store-x"
	product, err := svc.CreateProduct(adminCtx(), domain.ProductCreateRequest{
		SKU:     "SKU-REL",
		Name:    "Relocated Widget",
		Price:   decimal.RequireFromString("10.00"),
		Stock:   5,
		StoreID: &homeStore,
	})
	if err != nil {
		t.Fatalf("create product failed: %v", err)
	}

	// The transfer claims the product sits at store-a, but it lives at store-x.
	transfer, err := svc.CreateTransfer(adminCtx(), domain.TransferCreateRequest{
		FromStoreID: "store-a",
		ToStoreID:   "store-b",
		ProductID:   product.ID,
		Quantity:    2,
		CreatedByID: "user-1",
	})
	if err != nil {
		t.Fatalf("create transfer failed: %v", err)
	}

	if _, err := svc.CompleteTransfer(adminCtx(), transfer.ID); !errors.Is(err, store.ErrInvalidState) {
		t.Fatalf("expected ErrInvalidState completing a transfer for a relocated product, got %v", err)
	}

	after, err := svc.GetProduct(context.Background(), product.ID)
	if err != nil {
		t.Fatalf("get product failed: %v", err)
	}
	if after.Stock != 5 {
		t.Fatalf("rejected completion must not touch stock, got %d", after.Stock)
	}
	if after.StoreID == nil || *after.StoreID != homeStore {
		t.Fatalf("rejected completion must not move the product, got %v", after.StoreID)
	}
}

func TestConcurrentSalesReceiveDistinctInvoices(t *testing.T) {
	svc := newTestService()
	const workers = 16
	product := mustCreateProduct(t, svc, "SKU-CC", "3.00", workers)

	invoices := make([]string, workers)
	errs := make([]error, workers)
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			sale, err := svc.CreateSale(adminCtx(), domain.SaleCreateRequest{
				UserID: "user-1",
				Items: []domain.SaleItemRequest{
					{ProductID: product.ID, Quantity: 1, Price: decimal.RequireFromString("3.00")},
				},
				PaymentMethod: domain.PaymentCash,
				PaidAmount:    decimal.RequireFromString("3.00"),
			})
			if err != nil {
				errs[i] = err
				return
			}
			invoices[i] = sale.InvoiceNumber
		}(i)
	}
	wg.Wait()

	seen := make(map[string]bool, workers)
	for i := 0; i < workers; i++ {
		if errs[i] != nil {
			t.Fatalf("concurrent sale %d failed: %v", i, errs[i])
		}
		if invoices[i] == "" {
			t.Fatalf("concurrent sale %d returned empty invoice number", i)
		}
		if seen[invoices[i]] {
			t.Fatalf("invoice number %s allocated twice", invoices[i])
		}
		seen[invoices[i]] = true
	}

	after, err := svc.GetProduct(context.Background(), product.ID)
	if err != nil {
		t.Fatalf("get product failed: %v", err)
	}
	if after.Stock != 0 {
		t.Fatalf("expected all %d units sold, stock is %d", workers, after.Stock)
	}
}

func TestAwardPointsIsIdempotentPerSale(t *testing.T) {
	svc := newTestService()
	customer := mustCreateCustomer(t, svc, "Dina")

	maxPoints := int64(15)
	if _, err := svc.UpdateLoyaltyConfig(adminCtx(), domain.LoyaltyConfigUpdateRequest{
		PointsPerDollar:      taxRate("1"),
		MinPurchaseForPoints: taxRate("10"),
		MaxPointsPerPurchase: &maxPoints,
	}); err != nil {
		t.Fatalf("update loyalty config failed: %v", err)
	}

	first, err := svc.AwardPoints(adminCtx(), domain.LoyaltyAwardRequest{
		CustomerID:     customer.ID,
		PurchaseAmount: decimal.RequireFromString("20.00"),
		SaleID:         "sale-1",
	})
	if err != nil {
		t.Fatalf("award failed: %v", err)
	}
	if first.PointsAwarded != 15 {
		t.Fatalf("expected clamp to 15 points, got %d", first.PointsAwarded)
	}
	if first.Duplicate {
		t.Fatalf("first award must not be duplicate")
	}

	second, err := svc.AwardPoints(adminCtx(), domain.LoyaltyAwardRequest{
		CustomerID:     customer.ID,
		PurchaseAmount: decimal.RequireFromString("20.00"),
		SaleID:         "sale-1",
	})
	if err != nil {
		t.Fatalf("second award failed: %v", err)
	}
	if !second.Duplicate || second.PointsAwarded != 15 {
		t.Fatalf("expected duplicate award returning 15 points, got %+v", second)
	}

	balance, err := svc.LoyaltyBalance(context.Background(), customer.ID)
	if err != nil {
		t.Fatalf("balance failed: %v", err)
	}
	if balance.AvailablePoints != 15 {
		t.Fatalf("expected 15 available points after duplicate award, got %d", balance.AvailablePoints)
	}
}

func TestAwardPointsBelowMinimumEarnsNothing(t *testing.T) {
	svc := newTestService()
	customer := mustCreateCustomer(t, svc, "Omar")

	if _, err := svc.UpdateLoyaltyConfig(adminCtx(), domain.LoyaltyConfigUpdateRequest{
		PointsPerDollar:      taxRate("1"),
		MinPurchaseForPoints: taxRate("10"),
	}); err != nil {
		t.Fatalf("update loyalty config failed: %v", err)
	}

	resp, err := svc.AwardPoints(adminCtx(), domain.LoyaltyAwardRequest{
		CustomerID:     customer.ID,
		PurchaseAmount: decimal.RequireFromString("9.99"),
		SaleID:         "sale-small",
	})
	if err != nil {
		t.Fatalf("award failed: %v", err)
	}
	if resp.PointsAwarded != 0 {
		t.Fatalf("expected 0 points below minimum, got %d", resp.PointsAwarded)
	}
}

func TestSaleWithCustomerAwardsPoints(t *testing.T) {
	svc := newTestService()
	product := mustCreateProduct(t, svc, "SKU-O", "25.00", 10)
	customer := mustCreateCustomer(t, svc, "Ika")

	if _, err := svc.UpdateLoyaltyConfig(adminCtx(), domain.LoyaltyConfigUpdateRequest{
		PointsPerDollar:      taxRate("1"),
		MinPurchaseForPoints: taxRate("10"),
	}); err != nil {
		t.Fatalf("update loyalty config failed: %v", err)
	}

	customerID := customer.ID
	sale, err := svc.CreateSale(adminCtx(), domain.SaleCreateRequest{
		CustomerID: &customerID,
		UserID:     "user-1",
		Items: []domain.SaleItemRequest{
			{ProductID: product.ID, Quantity: 1, Price: decimal.RequireFromString("25.00")},
		},
		PaymentMethod: "CASH",
		PaidAmount:    decimal.RequireFromString("25.00"),
		TaxRate:       taxRate("0"),
	})
	if err != nil {
		t.Fatalf("create sale failed: %v", err)
	}

	history, err := svc.ListLoyaltyTransactions(context.Background(), customer.ID, 10)
	if err != nil {
		t.Fatalf("list transactions failed: %v", err)
	}
	if len(history) != 1 {
		t.Fatalf("expected one loyalty transaction, got %d", len(history))
	}
	if history[0].Points != 25 {
		t.Fatalf("expected 25 points, got %d", history[0].Points)
	}
	if history[0].SaleID == nil || *history[0].SaleID != sale.ID {
		t.Fatalf("expected transaction linked to sale %s", sale.ID)
	}
}

func TestLoyaltyConfigVersioning(t *testing.T) {
	svc := newTestService()

	first, err := svc.UpdateLoyaltyConfig(adminCtx(), domain.LoyaltyConfigUpdateRequest{
		PointsPerDollar: taxRate("1"),
	})
	if err != nil {
		t.Fatalf("first config update failed: %v", err)
	}

	second, err := svc.UpdateLoyaltyConfig(adminCtx(), domain.LoyaltyConfigUpdateRequest{
		PointsPerDollar: taxRate("2"),
	})
	if err != nil {
		t.Fatalf("second config update failed: %v", err)
	}
	if first.ID == second.ID {
		t.Fatalf("expected a new config row per update")
	}

	active, err := svc.GetLoyaltyConfig(context.Background())
	if err != nil {
		t.Fatalf("get config failed: %v", err)
	}
	if active.ID != second.ID {
		t.Fatalf("expected latest config active, got %s", active.ID)
	}
	if !active.PointsPerDollar.Equal(decimal.NewFromInt(2)) {
		t.Fatalf("expected merged rate 2, got %s", active.PointsPerDollar)
	}
}

func TestCancelSaleRequiresAdmin(t *testing.T) {
	svc := newTestService()
	product := mustCreateProduct(t, svc, "SKU-P", "10.00", 10)

	sale, err := svc.CreateSale(adminCtx(), domain.SaleCreateRequest{
		UserID: "user-1",
		Items: []domain.SaleItemRequest{
			{ProductID: product.ID, Quantity: 1, Price: decimal.RequireFromString("10.00")},
		},
		PaymentMethod: "CASH",
		PaidAmount:    decimal.RequireFromString("10.00"),
		TaxRate:       taxRate("0"),
	})
	if err != nil {
		t.Fatalf("create sale failed: %v", err)
	}

	cashier := WithActor(context.Background(), domain.Actor{Username: "cashier", Role: "cashier"})
	if _, err := svc.CancelSale(cashier, sale.ID); err == nil {
		t.Fatalf("expected cashier cancel to be rejected")
	}
}

func TestDeleteCustomerWithSalesRejected(t *testing.T) {
	svc := newTestService()
	product := mustCreateProduct(t, svc, "SKU-Q", "10.00", 10)
	customer := mustCreateCustomer(t, svc, "Rudi")

	customerID := customer.ID
	if _, err := svc.CreateSale(adminCtx(), domain.SaleCreateRequest{
		CustomerID: &customerID,
		UserID:     "user-1",
		Items: []domain.SaleItemRequest{
			{ProductID: product.ID, Quantity: 1, Price: decimal.RequireFromString("10.00")},
		},
		PaymentMethod: "CASH",
		PaidAmount:    decimal.RequireFromString("10.00"),
		TaxRate:       taxRate("0"),
	}); err != nil {
		t.Fatalf("create sale failed: %v", err)
	}

	if err := svc.DeleteCustomer(adminCtx(), customer.ID); !errors.Is(err, store.ErrCustomerHasSales) {
		t.Fatalf("expected ErrCustomerHasSales, got %v", err)
	}
}

func TestAuditLogWrittenForSale(t *testing.T) {
	svc := newTestService()
	product := mustCreateProduct(t, svc, "SKU-R", "10.00", 10)

	if _, err := svc.CreateSale(adminCtx(), domain.SaleCreateRequest{
		UserID: "user-1",
		Items: []domain.SaleItemRequest{
			{ProductID: product.ID, Quantity: 1, Price: decimal.RequireFromString("10.00")},
		},
		PaymentMethod: "CASH",
		PaidAmount:    decimal.RequireFromString("10.00"),
		TaxRate:       taxRate("0"),
	}); err != nil {
		t.Fatalf("create sale failed: %v", err)
	}

	logs, err := svc.ListAuditLogs(context.Background(), "", 50)
	if err != nil {
		t.Fatalf("list audit logs failed: %v", err)
	}
	found := false
	for _, entry := range logs {
		if entry.Action == "sale_create" {
			found = true
			break
		}
	}
	if !found {
		t.Fatalf("expected sale_create audit entry")
	}
}
