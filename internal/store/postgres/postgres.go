package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/shopspring/decimal"

	"shopflow/backend/internal/domain"
	"shopflow/backend/internal/store"
)

type Store struct {
	db *sql.DB
}

func New(ctx context.Context, databaseURL string) (*Store, error) {
	db, err := sql.Open("pgx", databaseURL)
	if err != nil {
		return nil, err
	}

	db.SetMaxIdleConns(8)
	db.SetMaxOpenConns(30)
	db.SetConnMaxLifetime(30 * time.Minute)

	pingCtx, cancel := context.WithTimeout(ctx, 6*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, err
	}

	return &Store{db: db}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

const productColumns = `id, sku, name, COALESCE(barcode,''), price, cost, stock, min_stock, max_stock, store_id, active, created_at, updated_at`

func scanProduct(row interface{ Scan(...any) error }) (*domain.Product, error) {
	var p domain.Product
	var minStock, maxStock sql.NullInt64
	var storeID sql.NullString
	err := row.Scan(&p.ID, &p.SKU, &p.Name, &p.Barcode, &p.Price, &p.Cost, &p.Stock, &minStock, &maxStock, &storeID, &p.Active, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return nil, err
	}
	if minStock.Valid {
		v := int(minStock.Int64)
		p.MinStock = &v
	}
	if maxStock.Valid {
		v := int(maxStock.Int64)
		p.MaxStock = &v
	}
	if storeID.Valid {
		v := storeID.String
		p.StoreID = &v
	}
	p.CreatedAt = p.CreatedAt.UTC()
	p.UpdatedAt = p.UpdatedAt.UTC()
	return &p, nil
}

func (s *Store) ListProducts(ctx context.Context, activeOnly bool) ([]domain.Product, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+productColumns+`
		FROM products
		WHERE ($1 = false OR active = true)
		ORDER BY name, sku
	`, activeOnly)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	products := make([]domain.Product, 0, 128)
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, err
		}
		products = append(products, *p)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return products, nil
}

func (s *Store) CreateProduct(ctx context.Context, product domain.Product) (*domain.Product, error) {
	if product.SKU == "" || product.Name == "" || product.Stock < 0 {
		return nil, store.ErrInvalidRequest
	}
	if product.ID == "" {
		product.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if product.CreatedAt.IsZero() {
		product.CreatedAt = now
	}
	product.UpdatedAt = now

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO products (id, sku, name, barcode, price, cost, stock, min_stock, max_stock, store_id, active, created_at, updated_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13)
	`, product.ID, product.SKU, product.Name, nullIfEmpty(product.Barcode), product.Price, product.Cost,
		product.Stock, product.MinStock, product.MaxStock, product.StoreID, product.Active, product.CreatedAt, product.UpdatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, store.ErrDuplicate
		}
		return nil, err
	}

	created := product
	return &created, nil
}

func (s *Store) GetProductByID(ctx context.Context, id string) (*domain.Product, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+productColumns+` FROM products WHERE id = $1`, id)
	product, err := scanProduct(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, err
	}
	return product, nil
}

func (s *Store) GetProductBySKU(ctx context.Context, sku string) (*domain.Product, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+productColumns+` FROM products WHERE sku = $1`, sku)
	product, err := scanProduct(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, err
	}
	return product, nil
}

func (s *Store) UpdateProduct(ctx context.Context, id string, req domain.ProductUpdateRequest) (*domain.Product, error) {
	row := s.db.QueryRowContext(ctx, `
		UPDATE products
		SET name = COALESCE($2, name),
			barcode = COALESCE($3, barcode),
			price = COALESCE($4, price),
			cost = COALESCE($5, cost),
			min_stock = COALESCE($6, min_stock),
			max_stock = COALESCE($7, max_stock),
			store_id = COALESCE($8, store_id),
			active = COALESCE($9, active),
			updated_at = now()
		WHERE id = $1
		RETURNING `+productColumns+`
	`, id, req.Name, req.Barcode, nullDecimal(req.Price), nullDecimal(req.Cost), req.MinStock, req.MaxStock, req.StoreID, req.Active)
	product, err := scanProduct(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, err
	}
	return product, nil
}

func (s *Store) ListLowStockProducts(ctx context.Context, threshold int) ([]domain.Product, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+productColumns+`
		FROM products
		WHERE active = true AND stock <= COALESCE(min_stock, $1)
		ORDER BY stock ASC, sku
	`, threshold)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	products := make([]domain.Product, 0, 32)
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, err
		}
		products = append(products, *p)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return products, nil
}

func (s *Store) CreateCustomer(ctx context.Context, customer domain.Customer) (*domain.Customer, error) {
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

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO customers (id, name, email, phone, created_at)
		VALUES ($1,$2,$3,$4,$5)
	`, customer.ID, customer.Name, nullIfEmpty(customer.Email), nullIfEmpty(customer.Phone), customer.CreatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, store.ErrDuplicate
		}
		return nil, err
	}
	created := customer
	return &created, nil
}

func (s *Store) GetCustomerByID(ctx context.Context, id string) (*domain.Customer, error) {
	var customer domain.Customer
	err := s.db.QueryRowContext(ctx, `
		SELECT id, name, COALESCE(email,''), COALESCE(phone,''), created_at
		FROM customers
		WHERE id = $1
	`, id).Scan(&customer.ID, &customer.Name, &customer.Email, &customer.Phone, &customer.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, err
	}
	customer.CreatedAt = customer.CreatedAt.UTC()
	return &customer, nil
}

func (s *Store) ListCustomers(ctx context.Context, limit int) ([]domain.Customer, error) {
	if limit < 1 {
		limit = 200
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, name, COALESCE(email,''), COALESCE(phone,''), created_at
		FROM customers
		ORDER BY name ASC
		LIMIT $1
	`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	customers := make([]domain.Customer, 0, limit)
	for rows.Next() {
		var customer domain.Customer
		if err := rows.Scan(&customer.ID, &customer.Name, &customer.Email, &customer.Phone, &customer.CreatedAt); err != nil {
			return nil, err
		}
		customer.CreatedAt = customer.CreatedAt.UTC()
		customers = append(customers, customer)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return customers, nil
}

func (s *Store) DeleteCustomer(ctx context.Context, id string) error {
	tx, err := s.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelSerializable})
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	var hasSales bool
	err = tx.QueryRowContext(ctx, `
		SELECT EXISTS (SELECT 1 FROM sales WHERE customer_id = $1)
	`, id).Scan(&hasSales)
	if err != nil {
		return err
	}
	if hasSales {
		return store.ErrCustomerHasSales
	}

	res, err := tx.ExecContext(ctx, `DELETE FROM customers WHERE id = $1`, id)
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return store.ErrNotFound
	}
	return tx.Commit()
}

func (s *Store) CreateSale(ctx context.Context, sale domain.Sale) (*domain.Sale, error) {
	if len(sale.Items) == 0 || sale.InvoiceNumber == "" {
		return nil, store.ErrInvalidRequest
	}
	if sale.ID == "" {
		sale.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if sale.CreatedAt.IsZero() {
		sale.CreatedAt = now
	}
	sale.UpdatedAt = now
	if sale.Status == "" {
		sale.Status = domain.SaleStatusCompleted
	}

	tx, err := s.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelSerializable})
	if err != nil {
		return nil, err
	}
	defer func() { _ = tx.Rollback() }()

	for i := range sale.Items {
		item := &sale.Items[i]
		if item.Quantity < 1 {
			return nil, store.ErrInvalidRequest
		}

		var active bool
		err := tx.QueryRowContext(ctx, `
			SELECT active
			FROM products
			WHERE id = $1
			FOR UPDATE
		`, item.ProductID).Scan(&active)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return nil, fmt.Errorf("product %s: %w", item.ProductID, store.ErrNotFound)
			}
			return nil, err
		}
		if !active {
			return nil, fmt.Errorf("product %s: %w", item.ProductID, store.ErrProductInactive)
		}

		res, err := tx.ExecContext(ctx, `
			UPDATE products
			SET stock = stock - $1, updated_at = now()
			WHERE id = $2 AND stock >= $1
		`, item.Quantity, item.ProductID)
		if err != nil {
			return nil, err
		}
		affected, err := res.RowsAffected()
		if err != nil {
			return nil, err
		}
		if affected == 0 {
			return nil, fmt.Errorf("product %s: %w", item.ProductID, store.ErrInsufficientStock)
		}

		if item.ID == "" {
			item.ID = uuid.NewString()
		}
		item.SaleID = sale.ID
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO sales (
			id, customer_id, user_id, invoice_number, subtotal, discount, tax, total,
			payment_method, paid_amount, change, status, notes, created_at, updated_at
		)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15)
	`, sale.ID, sale.CustomerID, sale.UserID, sale.InvoiceNumber, sale.Subtotal, sale.Discount,
		sale.Tax, sale.Total, sale.PaymentMethod, sale.PaidAmount, sale.Change, sale.Status,
		nullIfEmpty(sale.Notes), sale.CreatedAt, sale.UpdatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, store.ErrDuplicate
		}
		if isForeignKeyViolation(err) {
			return nil, store.ErrNotFound
		}
		return nil, err
	}

	for _, item := range sale.Items {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO sale_items (id, sale_id, product_id, quantity, price, discount, subtotal)
			VALUES ($1,$2,$3,$4,$5,$6,$7)
		`, item.ID, item.SaleID, item.ProductID, item.Quantity, item.Price, item.Discount, item.Subtotal)
		if err != nil {
			return nil, err
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, err
	}
	created := sale
	return &created, nil
}

const saleColumns = `id, customer_id, user_id, invoice_number, subtotal, discount, tax, total, payment_method, paid_amount, change, status, COALESCE(notes,''), created_at, updated_at`

func scanSale(row interface{ Scan(...any) error }) (*domain.Sale, error) {
	var sale domain.Sale
	var customerID sql.NullString
	err := row.Scan(&sale.ID, &customerID, &sale.UserID, &sale.InvoiceNumber, &sale.Subtotal,
		&sale.Discount, &sale.Tax, &sale.Total, &sale.PaymentMethod, &sale.PaidAmount,
		&sale.Change, &sale.Status, &sale.Notes, &sale.CreatedAt, &sale.UpdatedAt)
	if err != nil {
		return nil, err
	}
	if customerID.Valid {
		v := customerID.String
		sale.CustomerID = &v
	}
	sale.CreatedAt = sale.CreatedAt.UTC()
	sale.UpdatedAt = sale.UpdatedAt.UTC()
	return &sale, nil
}

func (s *Store) loadSaleItems(ctx context.Context, saleIDs []string) (map[string][]domain.SaleItem, error) {
	itemMap := make(map[string][]domain.SaleItem, len(saleIDs))
	if len(saleIDs) == 0 {
		return itemMap, nil
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, sale_id, product_id, quantity, price, discount, subtotal
		FROM sale_items
		WHERE sale_id = ANY($1)
		ORDER BY id ASC
	`, saleIDs)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		var item domain.SaleItem
		if err := rows.Scan(&item.ID, &item.SaleID, &item.ProductID, &item.Quantity, &item.Price, &item.Discount, &item.Subtotal); err != nil {
			return nil, err
		}
		itemMap[item.SaleID] = append(itemMap[item.SaleID], item)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return itemMap, nil
}

func (s *Store) GetSaleByID(ctx context.Context, id string) (*domain.Sale, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+saleColumns+` FROM sales WHERE id = $1`, id)
	sale, err := scanSale(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, err
	}

	itemMap, err := s.loadSaleItems(ctx, []string{sale.ID})
	if err != nil {
		return nil, err
	}
	sale.Items = itemMap[sale.ID]
	return sale, nil
}

func (s *Store) ListSales(ctx context.Context, filter domain.SaleFilter) ([]domain.Sale, error) {
	limit := filter.Limit
	if limit < 1 {
		limit = 100
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT `+saleColumns+`
		FROM sales
		WHERE ($1 = '' OR customer_id = $1)
			AND ($2 = '' OR user_id = $2)
			AND ($3 = '' OR status = $3)
			AND ($4 = '' OR payment_method = $4)
			AND ($5::timestamptz IS NULL OR created_at >= $5)
			AND ($6::timestamptz IS NULL OR created_at < $6)
		ORDER BY created_at DESC
		LIMIT $7
	`, filter.CustomerID, filter.UserID, filter.Status, filter.PaymentMethod, filter.From, filter.To, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	sales := make([]domain.Sale, 0, limit)
	ids := make([]string, 0, limit)
	for rows.Next() {
		sale, err := scanSale(rows)
		if err != nil {
			return nil, err
		}
		sales = append(sales, *sale)
		ids = append(ids, sale.ID)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	itemMap, err := s.loadSaleItems(ctx, ids)
	if err != nil {
		return nil, err
	}
	for i := range sales {
		sales[i].Items = itemMap[sales[i].ID]
	}
	return sales, nil
}

func (s *Store) CancelSale(ctx context.Context, id string, at time.Time) (*domain.Sale, error) {
	return s.closeSale(ctx, id, domain.SaleStatusCancelled, at)
}

func (s *Store) RefundSale(ctx context.Context, id string, at time.Time) (*domain.Sale, error) {
	return s.closeSale(ctx, id, domain.SaleStatusRefunded, at)
}

// closeSale moves a COMPLETED sale to a terminal status and puts the sold
// quantities back on the shelf inside one serializable transaction.
func (s *Store) closeSale(ctx context.Context, id string, status string, at time.Time) (*domain.Sale, error) {
	tx, err := s.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelSerializable})
	if err != nil {
		return nil, err
	}
	defer func() { _ = tx.Rollback() }()

	row := tx.QueryRowContext(ctx, `SELECT `+saleColumns+` FROM sales WHERE id = $1 FOR UPDATE`, id)
	sale, err := scanSale(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, err
	}
	switch sale.Status {
	case domain.SaleStatusCancelled:
		if status == domain.SaleStatusRefunded {
			// Refund only applies to settled sales; a cancelled sale never settled.
			return nil, fmt.Errorf("refund cancelled sale: %w", store.ErrInvalidState)
		}
		return nil, store.ErrAlreadyCancelled
	case domain.SaleStatusRefunded:
		return nil, store.ErrAlreadyRefunded
	}

	itemRows, err := tx.QueryContext(ctx, `
		SELECT product_id, quantity
		FROM sale_items
		WHERE sale_id = $1
	`, id)
	if err != nil {
		return nil, err
	}
	type restock struct {
		productID string
		qty       int
	}
	restocks := make([]restock, 0, 8)
	for itemRows.Next() {
		var r restock
		if err := itemRows.Scan(&r.productID, &r.qty); err != nil {
			_ = itemRows.Close()
			return nil, err
		}
		restocks = append(restocks, r)
	}
	if err := itemRows.Err(); err != nil {
		_ = itemRows.Close()
		return nil, err
	}
	_ = itemRows.Close()

	for _, r := range restocks {
		_, err := tx.ExecContext(ctx, `
			UPDATE products
			SET stock = stock + $1, updated_at = now()
			WHERE id = $2
		`, r.qty, r.productID)
		if err != nil {
			return nil, err
		}
	}

	_, err = tx.ExecContext(ctx, `
		UPDATE sales
		SET status = $2, updated_at = $3
		WHERE id = $1
	`, id, status, at)
	if err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, err
	}

	sale.Status = status
	sale.UpdatedAt = at.UTC()
	itemMap, err := s.loadSaleItems(ctx, []string{sale.ID})
	if err != nil {
		return nil, err
	}
	sale.Items = itemMap[sale.ID]
	return sale, nil
}

// NextInvoiceNumber increments the configured counter atomically; the
// pre-increment value is rendered into the returned invoice number.
func (s *Store) NextInvoiceNumber(ctx context.Context) (string, error) {
	var prefix string
	var next int64
	err := s.db.QueryRowContext(ctx, `
		UPDATE store_config
		SET invoice_number = invoice_number + 1, updated_at = now()
		RETURNING invoice_prefix, invoice_number - 1
	`).Scan(&prefix, &next)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", store.ErrConfigMissing
		}
		return "", err
	}
	return fmt.Sprintf("%s%06d", prefix, next), nil
}

const transferColumns = `id, from_store_id, to_store_id, product_id, quantity, COALESCE(notes,''), status, created_by_id, completed_at, created_at, updated_at`

func scanTransfer(row interface{ Scan(...any) error }) (*domain.InventoryTransfer, error) {
	var transfer domain.InventoryTransfer
	var completedAt sql.NullTime
	err := row.Scan(&transfer.ID, &transfer.FromStoreID, &transfer.ToStoreID, &transfer.ProductID,
		&transfer.Quantity, &transfer.Notes, &transfer.Status, &transfer.CreatedByID,
		&completedAt, &transfer.CreatedAt, &transfer.UpdatedAt)
	if err != nil {
		return nil, err
	}
	if completedAt.Valid {
		at := completedAt.Time.UTC()
		transfer.CompletedAt = &at
	}
	transfer.CreatedAt = transfer.CreatedAt.UTC()
	transfer.UpdatedAt = transfer.UpdatedAt.UTC()
	return &transfer, nil
}

func (s *Store) CreateTransfer(ctx context.Context, transfer domain.InventoryTransfer) (*domain.InventoryTransfer, error) {
	if transfer.Quantity < 1 {
		return nil, store.ErrInvalidRequest
	}
	if transfer.FromStoreID == transfer.ToStoreID {
		return nil, store.ErrSameStore
	}
	if transfer.ID == "" {
		transfer.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if transfer.CreatedAt.IsZero() {
		transfer.CreatedAt = now
	}
	transfer.UpdatedAt = now
	transfer.Status = domain.TransferStatusPending
	transfer.CompletedAt = nil

	tx, err := s.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelSerializable})
	if err != nil {
		return nil, err
	}
	defer func() { _ = tx.Rollback() }()

	var stock int
	err = tx.QueryRowContext(ctx, `
		SELECT stock
		FROM products
		WHERE id = $1
		FOR UPDATE
	`, transfer.ProductID).Scan(&stock)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, err
	}
	if stock < transfer.Quantity {
		return nil, store.ErrInsufficientStock
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO inventory_transfers (
			id, from_store_id, to_store_id, product_id, quantity, notes, status,
			created_by_id, completed_at, created_at, updated_at
		)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,NULL,$9,$10)
	`, transfer.ID, transfer.FromStoreID, transfer.ToStoreID, transfer.ProductID, transfer.Quantity,
		nullIfEmpty(transfer.Notes), transfer.Status, transfer.CreatedByID, transfer.CreatedAt, transfer.UpdatedAt)
	if err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, err
	}
	created := transfer
	return &created, nil
}

func (s *Store) GetTransferByID(ctx context.Context, id string) (*domain.InventoryTransfer, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+transferColumns+` FROM inventory_transfers WHERE id = $1`, id)
	transfer, err := scanTransfer(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, err
	}
	return transfer, nil
}

func (s *Store) ListTransfers(ctx context.Context, filter domain.TransferFilter) ([]domain.InventoryTransfer, error) {
	limit := filter.Limit
	if limit < 1 {
		limit = 100
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT `+transferColumns+`
		FROM inventory_transfers
		WHERE ($1 = '' OR from_store_id = $1)
			AND ($2 = '' OR to_store_id = $2)
			AND ($3 = '' OR product_id = $3)
			AND ($4 = '' OR status = $4)
		ORDER BY created_at DESC
		LIMIT $5
	`, filter.FromStoreID, filter.ToStoreID, filter.ProductID, filter.Status, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	transfers := make([]domain.InventoryTransfer, 0, limit)
	for rows.Next() {
		transfer, err := scanTransfer(rows)
		if err != nil {
			return nil, err
		}
		transfers = append(transfers, *transfer)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return transfers, nil
}

func (s *Store) MarkTransferInTransit(ctx context.Context, id string, at time.Time) (*domain.InventoryTransfer, error) {
	row := s.db.QueryRowContext(ctx, `
		UPDATE inventory_transfers
		SET status = $2, updated_at = $3
		WHERE id = $1 AND status = $4
		RETURNING `+transferColumns+`
	`, id, domain.TransferStatusInTransit, at, domain.TransferStatusPending)
	transfer, err := scanTransfer(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			if _, lookupErr := s.GetTransferByID(ctx, id); lookupErr != nil {
				return nil, lookupErr
			}
			return nil, store.ErrInvalidState
		}
		return nil, err
	}
	return transfer, nil
}

func (s *Store) CompleteTransfer(ctx context.Context, id string, at time.Time) (*domain.InventoryTransfer, error) {
	tx, err := s.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelSerializable})
	if err != nil {
		return nil, err
	}
	defer func() { _ = tx.Rollback() }()

	row := tx.QueryRowContext(ctx, `SELECT `+transferColumns+` FROM inventory_transfers WHERE id = $1 FOR UPDATE`, id)
	transfer, err := scanTransfer(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, err
	}
	if transfer.Status != domain.TransferStatusPending && transfer.Status != domain.TransferStatusInTransit {
		return nil, store.ErrInvalidState
	}

	// The decrement only applies while the product still sits at the source
	// store; an unassigned product may be debited from anywhere.
	res, err := tx.ExecContext(ctx, `
		UPDATE products
		SET stock = stock - $1, store_id = $2, updated_at = now()
		WHERE id = $3 AND stock >= $1 AND (store_id = $4 OR store_id IS NULL)
	`, transfer.Quantity, transfer.ToStoreID, transfer.ProductID, transfer.FromStoreID)
	if err != nil {
		return nil, err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return nil, err
	}
	if affected == 0 {
		var stock int
		var storeID sql.NullString
		err := tx.QueryRowContext(ctx, `SELECT stock, store_id FROM products WHERE id = $1`, transfer.ProductID).Scan(&stock, &storeID)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return nil, store.ErrNotFound
			}
			return nil, err
		}
		if stock < transfer.Quantity {
			return nil, store.ErrInsufficientStock
		}
		return nil, fmt.Errorf("product no longer at store %s: %w", transfer.FromStoreID, store.ErrInvalidState)
	}

	_, err = tx.ExecContext(ctx, `
		UPDATE inventory_transfers
		SET status = $2, completed_at = $3, updated_at = $3
		WHERE id = $1
	`, id, domain.TransferStatusCompleted, at)
	if err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, err
	}

	completedAt := at.UTC()
	transfer.Status = domain.TransferStatusCompleted
	transfer.CompletedAt = &completedAt
	transfer.UpdatedAt = completedAt
	return transfer, nil
}

func (s *Store) CancelTransfer(ctx context.Context, id string, at time.Time) (*domain.InventoryTransfer, error) {
	row := s.db.QueryRowContext(ctx, `
		UPDATE inventory_transfers
		SET status = $2, updated_at = $3
		WHERE id = $1 AND status IN ($4, $5)
		RETURNING `+transferColumns+`
	`, id, domain.TransferStatusCancelled, at, domain.TransferStatusPending, domain.TransferStatusInTransit)
	transfer, err := scanTransfer(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			if _, lookupErr := s.GetTransferByID(ctx, id); lookupErr != nil {
				return nil, lookupErr
			}
			return nil, store.ErrInvalidState
		}
		return nil, err
	}
	return transfer, nil
}

const storeConfigColumns = `id, name, COALESCE(address,''), COALESCE(phone,''), currency, tax_rate, low_stock_alert, invoice_prefix, invoice_number, created_at, updated_at`

func scanStoreConfig(row interface{ Scan(...any) error }) (*domain.StoreConfig, error) {
	var cfg domain.StoreConfig
	err := row.Scan(&cfg.ID, &cfg.Name, &cfg.Address, &cfg.Phone, &cfg.Currency, &cfg.TaxRate,
		&cfg.LowStockAlert, &cfg.InvoicePrefix, &cfg.InvoiceNumber, &cfg.CreatedAt, &cfg.UpdatedAt)
	if err != nil {
		return nil, err
	}
	cfg.CreatedAt = cfg.CreatedAt.UTC()
	cfg.UpdatedAt = cfg.UpdatedAt.UTC()
	return &cfg, nil
}

func (s *Store) GetStoreConfig(ctx context.Context) (*domain.StoreConfig, error) {
	row := s.db.QueryRowContext(ctx, `SELECT ` + storeConfigColumns + ` FROM store_config LIMIT 1`)
	cfg, err := scanStoreConfig(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return s.seedStoreConfig(ctx)
		}
		return nil, err
	}
	return cfg, nil
}

func (s *Store) seedStoreConfig(ctx context.Context) (*domain.StoreConfig, error) {
	row := s.db.QueryRowContext(ctx, `
		INSERT INTO store_config (id, name, address, phone, currency, tax_rate, low_stock_alert, invoice_prefix, invoice_number, created_at, updated_at)
		VALUES ($1, 'My Store', NULL, NULL, 'USD', 0, 10, 'INV-', 1, now(), now())
		ON CONFLICT DO NOTHING
		RETURNING `+storeConfigColumns+`
	`, uuid.NewString())
	cfg, err := scanStoreConfig(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			// Lost the insert race, the winner's row is there now.
			row := s.db.QueryRowContext(ctx, `SELECT ` + storeConfigColumns + ` FROM store_config LIMIT 1`)
			return scanStoreConfig(row)
		}
		return nil, err
	}
	return cfg, nil
}

func (s *Store) UpdateStoreConfig(ctx context.Context, req domain.StoreConfigUpdateRequest) (*domain.StoreConfig, error) {
	if _, err := s.GetStoreConfig(ctx); err != nil {
		return nil, err
	}

	row := s.db.QueryRowContext(ctx, `
		UPDATE store_config
		SET name = COALESCE($1, name),
			address = COALESCE($2, address),
			phone = COALESCE($3, phone),
			currency = COALESCE($4, currency),
			tax_rate = COALESCE($5, tax_rate),
			low_stock_alert = COALESCE($6, low_stock_alert),
			invoice_prefix = COALESCE($7, invoice_prefix),
			updated_at = now()
		RETURNING `+storeConfigColumns+`
	`, req.Name, req.Address, req.Phone, req.Currency, nullDecimal(req.TaxRate), req.LowStockAlert, req.InvoicePrefix)
	cfg, err := scanStoreConfig(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrConfigMissing
		}
		return nil, err
	}
	return cfg, nil
}

const loyaltyConfigColumns = `id, points_per_dollar, redemption_rate, points_expire_months, min_purchase_for_points, max_points_per_purchase, active, created_at`

func scanLoyaltyConfig(row interface{ Scan(...any) error }) (*domain.LoyaltyConfig, error) {
	var cfg domain.LoyaltyConfig
	var expireMonths sql.NullInt64
	var maxPoints sql.NullInt64
	err := row.Scan(&cfg.ID, &cfg.PointsPerDollar, &cfg.RedemptionRate, &expireMonths,
		&cfg.MinPurchaseForPoints, &maxPoints, &cfg.Active, &cfg.CreatedAt)
	if err != nil {
		return nil, err
	}
	if expireMonths.Valid {
		v := int(expireMonths.Int64)
		cfg.PointsExpireMonths = &v
	}
	if maxPoints.Valid {
		v := maxPoints.Int64
		cfg.MaxPointsPerPurchase = &v
	}
	cfg.CreatedAt = cfg.CreatedAt.UTC()
	return &cfg, nil
}

func (s *Store) GetActiveLoyaltyConfig(ctx context.Context) (*domain.LoyaltyConfig, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT ` + loyaltyConfigColumns + `
		FROM loyalty_configs
		WHERE active = true
		ORDER BY created_at DESC
		LIMIT 1
	`)
	cfg, err := scanLoyaltyConfig(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, err
	}
	return cfg, nil
}

// ReplaceLoyaltyConfig keeps prior versions as inactive rows so historical
// transactions can be explained against the config in force at the time.
func (s *Store) ReplaceLoyaltyConfig(ctx context.Context, cfg domain.LoyaltyConfig) (*domain.LoyaltyConfig, error) {
	if cfg.ID == "" {
		cfg.ID = uuid.NewString()
	}
	if cfg.CreatedAt.IsZero() {
		cfg.CreatedAt = time.Now().UTC()
	}
	cfg.Active = true

	tx, err := s.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelSerializable})
	if err != nil {
		return nil, err
	}
	defer func() { _ = tx.Rollback() }()

	_, err = tx.ExecContext(ctx, `UPDATE loyalty_configs SET active = false WHERE active = true`)
	if err != nil {
		return nil, err
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO loyalty_configs (
			id, points_per_dollar, redemption_rate, points_expire_months,
			min_purchase_for_points, max_points_per_purchase, active, created_at
		)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
	`, cfg.ID, cfg.PointsPerDollar, cfg.RedemptionRate, cfg.PointsExpireMonths,
		cfg.MinPurchaseForPoints, cfg.MaxPointsPerPurchase, cfg.Active, cfg.CreatedAt)
	if err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, err
	}
	saved := cfg
	return &saved, nil
}

func (s *Store) CreateLoyaltyTransaction(ctx context.Context, entry domain.LoyaltyPointTransaction) (*domain.LoyaltyPointTransaction, error) {
	if entry.CustomerID == "" || entry.Type == "" {
		return nil, store.ErrInvalidRequest
	}
	if entry.ID == "" {
		entry.ID = uuid.NewString()
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}

	var saleID any
	if entry.SaleID != nil && *entry.SaleID != "" {
		saleID = *entry.SaleID
	}

	// A partial unique index on (sale_id) WHERE type = 'EARNED' backs the
	// one-award-per-sale guarantee.
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO loyalty_point_transactions (
			id, customer_id, type, points, description, sale_id, expires_at, created_at
		)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
	`, entry.ID, entry.CustomerID, entry.Type, entry.Points, nullIfEmpty(entry.Description),
		saleID, entry.ExpiresAt, entry.CreatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, store.ErrDuplicate
		}
		if isForeignKeyViolation(err) {
			return nil, store.ErrNotFound
		}
		return nil, err
	}
	saved := entry
	return &saved, nil
}

const loyaltyTxColumns = `id, customer_id, type, points, COALESCE(description,''), sale_id, expires_at, created_at`

func scanLoyaltyTx(row interface{ Scan(...any) error }) (*domain.LoyaltyPointTransaction, error) {
	var entry domain.LoyaltyPointTransaction
	var saleID sql.NullString
	var expiresAt sql.NullTime
	err := row.Scan(&entry.ID, &entry.CustomerID, &entry.Type, &entry.Points, &entry.Description,
		&saleID, &expiresAt, &entry.CreatedAt)
	if err != nil {
		return nil, err
	}
	if saleID.Valid {
		v := saleID.String
		entry.SaleID = &v
	}
	if expiresAt.Valid {
		at := expiresAt.Time.UTC()
		entry.ExpiresAt = &at
	}
	entry.CreatedAt = entry.CreatedAt.UTC()
	return &entry, nil
}

func (s *Store) FindEarnedBySale(ctx context.Context, saleID string) (*domain.LoyaltyPointTransaction, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT `+loyaltyTxColumns+`
		FROM loyalty_point_transactions
		WHERE sale_id = $1 AND type = $2
	`, saleID, domain.LoyaltyTypeEarned)
	entry, err := scanLoyaltyTx(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, err
	}
	return entry, nil
}

func (s *Store) ListLoyaltyTransactions(ctx context.Context, customerID string, limit int) ([]domain.LoyaltyPointTransaction, error) {
	if limit < 1 {
		limit = 100
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+loyaltyTxColumns+`
		FROM loyalty_point_transactions
		WHERE customer_id = $1
		ORDER BY created_at DESC
		LIMIT $2
	`, customerID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	entries := make([]domain.LoyaltyPointTransaction, 0, limit)
	for rows.Next() {
		entry, err := scanLoyaltyTx(rows)
		if err != nil {
			return nil, err
		}
		entries = append(entries, *entry)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return entries, nil
}

func (s *Store) CreateAuditLog(ctx context.Context, entry domain.AuditLog) error {
	if entry.ID == "" {
		entry.ID = uuid.NewString()
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO audit_logs (id, actor_username, actor_role, action, entity_type, entity_id, detail, created_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
	`, entry.ID, entry.ActorUsername, entry.ActorRole, entry.Action, entry.EntityType, entry.EntityID, entry.Detail, entry.CreatedAt)
	return err
}

func (s *Store) ListAuditLogs(ctx context.Context, from time.Time, to time.Time, limit int) ([]domain.AuditLog, error) {
	if limit < 1 {
		limit = 100
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, actor_username, actor_role, action, entity_type, entity_id, detail, created_at
		FROM audit_logs
		WHERE created_at >= $1 AND created_at < $2
		ORDER BY created_at DESC
		LIMIT $3
	`, from, to, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	logs := make([]domain.AuditLog, 0, limit)
	for rows.Next() {
		var entry domain.AuditLog
		if err := rows.Scan(&entry.ID, &entry.ActorUsername, &entry.ActorRole, &entry.Action, &entry.EntityType, &entry.EntityID, &entry.Detail, &entry.CreatedAt); err != nil {
			return nil, err
		}
		entry.CreatedAt = entry.CreatedAt.UTC()
		logs = append(logs, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return logs, nil
}

func (s *Store) CreateUser(ctx context.Context, user domain.UserAccount) error {
	user.Username = strings.ToLower(strings.TrimSpace(user.Username))
	if user.Username == "" || strings.TrimSpace(user.Password) == "" {
		return store.ErrInvalidRequest
	}
	if user.Role == "" {
		user.Role = "cashier"
	}
	if user.CreatedAt.IsZero() {
		user.CreatedAt = time.Now().UTC()
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO app_users (username, password, role, active, created_at, updated_at)
		VALUES ($1,$2,$3,$4,$5,now())
	`, user.Username, user.Password, user.Role, user.Active, user.CreatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return store.ErrDuplicate
		}
		return err
	}
	return nil
}

func (s *Store) ListUsers(ctx context.Context) ([]domain.UserAccount, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT username, password, role, active, created_at
		FROM app_users
		ORDER BY username ASC
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	users := make([]domain.UserAccount, 0, 16)
	for rows.Next() {
		var user domain.UserAccount
		if err := rows.Scan(&user.Username, &user.Password, &user.Role, &user.Active, &user.CreatedAt); err != nil {
			return nil, err
		}
		user.CreatedAt = user.CreatedAt.UTC()
		users = append(users, user)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return users, nil
}

func (s *Store) UpdateUserPassword(ctx context.Context, username string, password string) error {
	username = strings.ToLower(strings.TrimSpace(username))
	if username == "" || strings.TrimSpace(password) == "" {
		return store.ErrInvalidRequest
	}

	res, err := s.db.ExecContext(ctx, `
		UPDATE app_users
		SET password = $2, updated_at = now()
		WHERE username = $1
	`, username, password)
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return store.ErrNotFound
	}
	return nil
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505"
	}
	return false
}

func isForeignKeyViolation(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23503"
	}
	return false
}

func nullIfEmpty(val string) any {
	if val == "" {
		return nil
	}
	return val
}

func nullDecimal(val *decimal.Decimal) any {
	if val == nil {
		return nil
	}
	return *val
}
