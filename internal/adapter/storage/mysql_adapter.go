package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/go-sql-driver/mysql"

	"github.com/rl1809/campus-market/internal/core/domain"
)

// MySQL error numbers that mark a transaction safe to replay whole.
const (
	mysqlErrLockWaitTimeout = 1205
	mysqlErrDeadlock        = 1213
)

type MySQLAdapter struct {
	db *sql.DB
}

func NewMySQLAdapter(db *sql.DB) *MySQLAdapter {
	return &MySQLAdapter{db: db}
}

func (m *MySQLAdapter) GetItem(ctx context.Context, itemID string) (*domain.Item, error) {
	var item domain.Item
	var status string
	err := m.db.QueryRowContext(ctx, `
		SELECT id, seller_id, title, description, category, item_condition,
		       price, image_url, status, rating, created_at, updated_at
		FROM items WHERE id = ?`, itemID,
	).Scan(&item.ID, &item.SellerID, &item.Title, &item.Description, &item.Category,
		&item.Condition, &item.Price, &item.ImageURL, &status, &item.Rating,
		&item.CreatedAt, &item.UpdatedAt)

	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("query item: %w", err)
	}

	item.Status = domain.ItemStatus(status)
	return &item, nil
}

func (m *MySQLAdapter) SetItemRemoved(ctx context.Context, itemID, sellerID string) error {
	tx, err := m.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	var owner, status string
	err = tx.QueryRowContext(ctx,
		`SELECT seller_id, status FROM items WHERE id = ? FOR UPDATE`, itemID,
	).Scan(&owner, &status)
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("item %s: %w", itemID, domain.ErrItemUnavailable)
	}
	if err != nil {
		return wrapConflict("lock item", err)
	}

	if owner != sellerID {
		return domain.ErrUnauthorized
	}
	// Only an available listing can be retired; anything else is a no-op.
	if domain.ItemStatus(status) != domain.ItemStatusAvailable {
		return tx.Commit()
	}

	if _, err := tx.ExecContext(ctx,
		`UPDATE items SET status = ?, updated_at = NOW() WHERE id = ?`,
		string(domain.ItemStatusRemoved), itemID,
	); err != nil {
		return wrapConflict("remove item", err)
	}

	return tx.Commit()
}

// CreateOrder executes the whole checkout unit: every referenced item is
// re-read under FOR UPDATE, the order and its lines are inserted with the
// buyer's snapshot values, and each item flips available -> sold. Any failure
// rolls the entire unit back.
func (m *MySQLAdapter) CreateOrder(ctx context.Context, order domain.Order) error {
	tx, err := m.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	for _, line := range order.Lines {
		var sellerID, status string
		err := tx.QueryRowContext(ctx,
			`SELECT seller_id, status FROM items WHERE id = ? FOR UPDATE`, line.ItemID,
		).Scan(&sellerID, &status)
		if errors.Is(err, sql.ErrNoRows) {
			return fmt.Errorf("item %s: %w", line.ItemID, domain.ErrItemUnavailable)
		}
		if err != nil {
			return wrapConflict("lock item", err)
		}
		if domain.ItemStatus(status) != domain.ItemStatusAvailable {
			return fmt.Errorf("item %s: %w", line.ItemID, domain.ErrItemUnavailable)
		}
		if sellerID == order.BuyerID {
			return fmt.Errorf("item %s: %w", line.ItemID, domain.ErrSelfPurchase)
		}
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO orders (id, buyer_id, total, recipient_name, address_line,
		                    city, postcode, phone, status, estimated_arrival,
		                    created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		order.ID, order.BuyerID, order.Total,
		order.Delivery.RecipientName, order.Delivery.AddressLine,
		order.Delivery.City, order.Delivery.Postcode, order.Delivery.Phone,
		string(order.Status), order.EstimatedArrival,
		order.CreatedAt, order.UpdatedAt,
	)
	if err != nil {
		return wrapConflict("insert order", err)
	}

	for _, line := range order.Lines {
		_, err = tx.ExecContext(ctx, `
			INSERT INTO order_lines (order_id, item_id, seller_id, quantity,
			                         price_at_purchase, title_snapshot, image_snapshot)
			VALUES (?, ?, ?, ?, ?, ?, ?)`,
			order.ID, line.ItemID, line.SellerID, line.Quantity,
			line.PriceAtPurchase, line.TitleSnapshot, line.ImageSnapshot,
		)
		if err != nil {
			return wrapConflict("insert order line", err)
		}
	}

	for _, line := range order.Lines {
		result, err := tx.ExecContext(ctx, `
			UPDATE items SET status = ?, updated_at = NOW()
			WHERE id = ? AND status = ?`,
			string(domain.ItemStatusSold), line.ItemID, string(domain.ItemStatusAvailable),
		)
		if err != nil {
			return wrapConflict("mark item sold", err)
		}
		// The row is locked above, so this guard only fires if a status
		// change slipped past the lock.
		rows, _ := result.RowsAffected()
		if rows == 0 {
			return fmt.Errorf("item %s: %w", line.ItemID, domain.ErrItemUnavailable)
		}
	}

	if err := tx.Commit(); err != nil {
		return wrapConflict("commit", err)
	}
	return nil
}

func (m *MySQLAdapter) UpdateOrderStatus(ctx context.Context, orderID, sellerID string, next domain.OrderStatus) (domain.OrderStatus, error) {
	tx, err := m.db.BeginTx(ctx, nil)
	if err != nil {
		return "", fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	var current string
	err = tx.QueryRowContext(ctx,
		`SELECT status FROM orders WHERE id = ? FOR UPDATE`, orderID,
	).Scan(&current)
	if errors.Is(err, sql.ErrNoRows) {
		return "", domain.ErrOrderNotFound
	}
	if err != nil {
		return "", wrapConflict("lock order", err)
	}

	var sells int
	err = tx.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM order_lines WHERE order_id = ? AND seller_id = ?`,
		orderID, sellerID,
	).Scan(&sells)
	if err != nil {
		return "", wrapConflict("check seller", err)
	}
	if sells == 0 {
		return "", domain.ErrUnauthorized
	}

	prior := domain.OrderStatus(current)
	if !domain.CanTransition(prior, next) {
		return "", fmt.Errorf("%s -> %s: %w", prior, next, domain.ErrInvalidTransition)
	}

	if _, err := tx.ExecContext(ctx,
		`UPDATE orders SET status = ?, updated_at = NOW() WHERE id = ?`,
		string(next), orderID,
	); err != nil {
		return "", wrapConflict("update status", err)
	}

	if err := tx.Commit(); err != nil {
		return "", wrapConflict("commit", err)
	}
	return prior, nil
}

func (m *MySQLAdapter) MarkOrderPaid(ctx context.Context, orderID, buyerID string) error {
	tx, err := m.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	var buyer, status string
	err = tx.QueryRowContext(ctx,
		`SELECT buyer_id, status FROM orders WHERE id = ? FOR UPDATE`, orderID,
	).Scan(&buyer, &status)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.ErrOrderNotFound
	}
	if err != nil {
		return wrapConflict("lock order", err)
	}

	if buyer != buyerID {
		return domain.ErrUnauthorized
	}
	if domain.OrderStatus(status) != domain.OrderStatusPendingPayment {
		return fmt.Errorf("order is %s: %w", status, domain.ErrInvalidTransition)
	}

	if _, err := tx.ExecContext(ctx,
		`UPDATE orders SET status = ?, updated_at = NOW() WHERE id = ?`,
		string(domain.OrderStatusProcessing), orderID,
	); err != nil {
		return wrapConflict("update status", err)
	}

	if err := tx.Commit(); err != nil {
		return wrapConflict("commit", err)
	}
	return nil
}

func (m *MySQLAdapter) GetOrder(ctx context.Context, orderID string) (*domain.Order, error) {
	order, err := scanOrder(m.db.QueryRowContext(ctx, `
		SELECT id, buyer_id, total, recipient_name, address_line, city, postcode,
		       phone, status, estimated_arrival, created_at, updated_at
		FROM orders WHERE id = ?`, orderID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("query order: %w", err)
	}

	lines, err := m.orderLines(ctx, `
		SELECT order_id, item_id, seller_id, quantity, price_at_purchase,
		       title_snapshot, image_snapshot
		FROM order_lines WHERE order_id = ?`, orderID)
	if err != nil {
		return nil, err
	}
	order.Lines = lines
	return order, nil
}

func (m *MySQLAdapter) ListBuyerOrders(ctx context.Context, buyerID string) ([]domain.Order, error) {
	rows, err := m.db.QueryContext(ctx, `
		SELECT id, buyer_id, total, recipient_name, address_line, city, postcode,
		       phone, status, estimated_arrival, created_at, updated_at
		FROM orders WHERE buyer_id = ?
		ORDER BY created_at DESC, id`, buyerID)
	if err != nil {
		return nil, fmt.Errorf("query orders: %w", err)
	}
	defer rows.Close()

	var orders []domain.Order
	index := make(map[string]int)
	for rows.Next() {
		order, err := scanOrder(rows)
		if err != nil {
			return nil, fmt.Errorf("scan order: %w", err)
		}
		index[order.ID] = len(orders)
		orders = append(orders, *order)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate orders: %w", err)
	}

	lines, err := m.orderLines(ctx, `
		SELECT ol.order_id, ol.item_id, ol.seller_id, ol.quantity,
		       ol.price_at_purchase, ol.title_snapshot, ol.image_snapshot
		FROM order_lines ol
		JOIN orders o ON o.id = ol.order_id
		WHERE o.buyer_id = ?`, buyerID)
	if err != nil {
		return nil, err
	}
	for _, line := range lines {
		if i, ok := index[line.OrderID]; ok {
			orders[i].Lines = append(orders[i].Lines, line)
		}
	}
	return orders, nil
}

func (m *MySQLAdapter) ListSellerSales(ctx context.Context, sellerID string) ([]domain.Sale, error) {
	rows, err := m.db.QueryContext(ctx, `
		SELECT ol.order_id, ol.item_id, ol.seller_id, ol.quantity,
		       ol.price_at_purchase, ol.title_snapshot, ol.image_snapshot,
		       o.created_at, o.status, o.recipient_name, o.address_line,
		       o.city, o.postcode, o.phone
		FROM order_lines ol
		JOIN orders o ON o.id = ol.order_id
		WHERE ol.seller_id = ?
		ORDER BY o.created_at DESC, ol.order_id, ol.item_id`, sellerID)
	if err != nil {
		return nil, fmt.Errorf("query sales: %w", err)
	}
	defer rows.Close()

	var sales []domain.Sale
	for rows.Next() {
		var sale domain.Sale
		var status string
		if err := rows.Scan(&sale.Line.OrderID, &sale.Line.ItemID, &sale.Line.SellerID,
			&sale.Line.Quantity, &sale.Line.PriceAtPurchase, &sale.Line.TitleSnapshot,
			&sale.Line.ImageSnapshot, &sale.OrderDate, &status,
			&sale.Contact.RecipientName, &sale.Contact.AddressLine,
			&sale.Contact.City, &sale.Contact.Postcode, &sale.Contact.Phone,
		); err != nil {
			return nil, fmt.Errorf("scan sale: %w", err)
		}
		sale.OrderID = sale.Line.OrderID
		sale.Status = domain.OrderStatus(status)
		sales = append(sales, sale)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate sales: %w", err)
	}
	return sales, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanOrder(row rowScanner) (*domain.Order, error) {
	var order domain.Order
	var status string
	var arrival sql.NullTime
	err := row.Scan(&order.ID, &order.BuyerID, &order.Total,
		&order.Delivery.RecipientName, &order.Delivery.AddressLine,
		&order.Delivery.City, &order.Delivery.Postcode, &order.Delivery.Phone,
		&status, &arrival, &order.CreatedAt, &order.UpdatedAt)
	if err != nil {
		return nil, err
	}
	order.Status = domain.OrderStatus(status)
	if arrival.Valid {
		t := arrival.Time
		order.EstimatedArrival = &t
	}
	return &order, nil
}

func (m *MySQLAdapter) orderLines(ctx context.Context, query string, args ...any) ([]domain.OrderLine, error) {
	rows, err := m.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query order lines: %w", err)
	}
	defer rows.Close()

	var lines []domain.OrderLine
	for rows.Next() {
		var line domain.OrderLine
		if err := rows.Scan(&line.OrderID, &line.ItemID, &line.SellerID,
			&line.Quantity, &line.PriceAtPurchase, &line.TitleSnapshot,
			&line.ImageSnapshot,
		); err != nil {
			return nil, fmt.Errorf("scan order line: %w", err)
		}
		lines = append(lines, line)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate order lines: %w", err)
	}
	return lines, nil
}

// wrapConflict maps deadlock and lock-wait failures onto ErrStorageConflict so
// callers can replay the whole unit.
func wrapConflict(op string, err error) error {
	var myErr *mysql.MySQLError
	if errors.As(err, &myErr) &&
		(myErr.Number == mysqlErrDeadlock || myErr.Number == mysqlErrLockWaitTimeout) {
		return fmt.Errorf("%s: %v: %w", op, err, domain.ErrStorageConflict)
	}
	return fmt.Errorf("%s: %w", op, err)
}
