package orders

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Repository provides PostgreSQL backed persistence for the workflow.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

type txRepo struct {
	tx pgx.Tx
}

// WithTx wraps the callback in a repeatable-read transaction. Serialization
// failures surface as ErrConflict so callers can refetch and retry.
func (r *Repository) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.RepeatableRead})
	if err != nil {
		return err
	}
	if err := fn(ctx, &txRepo{tx: tx}); err != nil {
		_ = tx.Rollback(ctx)
		return asConflict(err)
	}
	if err := tx.Commit(ctx); err != nil {
		return asConflict(err)
	}
	return nil
}

// asConflict maps SQLSTATE 40001 (serialization failure) to ErrConflict.
func asConflict(err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "40001" {
		return fmt.Errorf("%w: %s", ErrConflict, pgErr.Message)
	}
	return err
}

const orderColumns = `id, pharmacy_id, created_by, status, total_items, total_amount,
notes, proof_ref, payment_method, payment_date, reason, created_at, updated_at`

func scanOrder(row pgx.Row) (Order, error) {
	var (
		o           Order
		totalAmount pgtype.Numeric
		paymentDate pgtype.Timestamptz
	)
	err := row.Scan(&o.ID, &o.PharmacyID, &o.CreatedBy, &o.Status, &o.TotalItems, &totalAmount,
		&o.Notes, &o.ProofRef, &o.PaymentMethod, &paymentDate, &o.Reason, &o.CreatedAt, &o.UpdatedAt)
	if err != nil {
		return Order{}, err
	}
	if totalAmount.Valid {
		f, _ := totalAmount.Float64Value()
		o.TotalAmount = f.Float64
		o.TotalPriced = true
	}
	if paymentDate.Valid {
		o.PaymentDate = paymentDate.Time
	}
	return o, nil
}

// GetOrder returns the order header and its line items.
func (r *Repository) GetOrder(ctx context.Context, id uuid.UUID) (Order, []OrderItem, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+orderColumns+` FROM orders WHERE id=$1`, id)
	order, err := scanOrder(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Order{}, nil, ErrNotFound
		}
		return Order{}, nil, err
	}

	rows, err := r.pool.Query(ctx, `SELECT id, order_id, product_id, qty FROM order_items WHERE order_id=$1 ORDER BY id`, id)
	if err != nil {
		return Order{}, nil, err
	}
	defer rows.Close()
	var items []OrderItem
	for rows.Next() {
		var item OrderItem
		if err := rows.Scan(&item.ID, &item.OrderID, &item.ProductID, &item.Qty); err != nil {
			return Order{}, nil, err
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return Order{}, nil, err
	}
	return order, items, nil
}

// GetPricing returns all pricing entries for an order.
func (r *Repository) GetPricing(ctx context.Context, id uuid.UUID) ([]PricingEntry, error) {
	rows, err := r.pool.Query(ctx, `SELECT id, order_id, product_id, unit_price, total_price, discount_percent, notes, updated_at
FROM order_pricing WHERE order_id=$1 ORDER BY product_id`, id)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var entries []PricingEntry
	for rows.Next() {
		var (
			e        PricingEntry
			unit     pgtype.Numeric
			total    pgtype.Numeric
			discount pgtype.Numeric
		)
		if err := rows.Scan(&e.ID, &e.OrderID, &e.ProductID, &unit, &total, &discount, &e.Notes, &e.UpdatedAt); err != nil {
			return nil, err
		}
		if unit.Valid {
			f, _ := unit.Float64Value()
			e.UnitPrice = f.Float64
		}
		if total.Valid {
			f, _ := total.Float64Value()
			e.TotalPrice = f.Float64
		}
		if discount.Valid {
			f, _ := discount.Float64Value()
			e.DiscountPercent = f.Float64
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return entries, nil
}

// ListApprovalLog returns the full approval trail, oldest first.
func (r *Repository) ListApprovalLog(ctx context.Context, id uuid.UUID) ([]ApprovalLogEntry, error) {
	rows, err := r.pool.Query(ctx, `SELECT id, order_id, actor_id, from_status, to_status, notes, created_at
FROM approval_logs WHERE order_id=$1 ORDER BY id`, id)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var entries []ApprovalLogEntry
	for rows.Next() {
		var e ApprovalLogEntry
		if err := rows.Scan(&e.ID, &e.OrderID, &e.ActorID, &e.FromStatus, &e.ToStatus, &e.Notes, &e.CreatedAt); err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return entries, nil
}

// ListOrders returns a page of orders plus the unpaged total.
func (r *Repository) ListOrders(ctx context.Context, limit, offset int, filters ListFilters) ([]Order, int, error) {
	countSQL := `SELECT COUNT(*) FROM orders o WHERE 1=1`
	dataSQL := `SELECT ` + orderColumns + ` FROM orders o WHERE 1=1`

	where := ""
	args := []any{}
	argNum := 1
	if filters.Status != "" {
		where += ` AND o.status = $` + itoa(argNum)
		args = append(args, filters.Status)
		argNum++
	}
	if filters.PharmacyID > 0 {
		where += ` AND o.pharmacy_id = $` + itoa(argNum)
		args = append(args, filters.PharmacyID)
		argNum++
	}
	if filters.Search != "" {
		where += ` AND (o.id::text ILIKE $` + itoa(argNum) + ` OR o.notes ILIKE $` + itoa(argNum) + `)`
		args = append(args, "%"+filters.Search+"%")
		argNum++
	}

	var total int
	if err := r.pool.QueryRow(ctx, countSQL+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	dataSQL += where + ` ORDER BY ` + sortOrder(filters.SortBy, filters.SortDir) +
		` LIMIT $` + itoa(argNum) + ` OFFSET $` + itoa(argNum+1)
	args = append(args, limit, offset)

	rows, err := r.pool.Query(ctx, dataSQL, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	var orders []Order
	for rows.Next() {
		order, err := scanOrder(rows)
		if err != nil {
			return nil, 0, err
		}
		orders = append(orders, order)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, err
	}
	return orders, total, nil
}

func itoa(i int) string {
	return fmt.Sprintf("%d", i)
}

// sortOrder returns a safe ORDER BY clause for order listings.
func sortOrder(sortBy, sortDir string) string {
	dir := "DESC"
	if sortDir == "asc" {
		dir = "ASC"
	}
	switch sortBy {
	case "status":
		return "o.status " + dir
	case "total_amount":
		return "o.total_amount " + dir + " NULLS LAST"
	case "updated_at":
		return "o.updated_at " + dir
	default:
		return "o.created_at DESC"
	}
}

func (tx *txRepo) CreateOrder(ctx context.Context, order Order) error {
	_, err := tx.tx.Exec(ctx, `INSERT INTO orders (id, pharmacy_id, created_by, status, total_items, notes, proof_ref, payment_method, reason, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5, $6, '', '', '', NOW(), NOW())`,
		order.ID, order.PharmacyID, order.CreatedBy, string(order.Status), order.TotalItems, order.Notes)
	return err
}

func (tx *txRepo) InsertItem(ctx context.Context, item OrderItem) error {
	_, err := tx.tx.Exec(ctx, `INSERT INTO order_items (order_id, product_id, qty) VALUES ($1, $2, $3)`,
		item.OrderID, item.ProductID, item.Qty)
	return err
}

func (tx *txRepo) DeleteItems(ctx context.Context, orderID uuid.UUID) error {
	_, err := tx.tx.Exec(ctx, `DELETE FROM order_items WHERE order_id=$1`, orderID)
	return err
}

func (tx *txRepo) SetTotalItems(ctx context.Context, orderID uuid.UUID, total int) error {
	_, err := tx.tx.Exec(ctx, `UPDATE orders SET total_items=$1, updated_at=NOW() WHERE id=$2`, total, orderID)
	return err
}

func (tx *txRepo) UpdateStatus(ctx context.Context, orderID uuid.UUID, expected, next Status) (bool, error) {
	tag, err := tx.tx.Exec(ctx, `UPDATE orders SET status=$1, updated_at=NOW() WHERE id=$2 AND status=$3`,
		string(next), orderID, string(expected))
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

func (tx *txRepo) SetReason(ctx context.Context, orderID uuid.UUID, reason string) error {
	_, err := tx.tx.Exec(ctx, `UPDATE orders SET reason=$1, updated_at=NOW() WHERE id=$2`, reason, orderID)
	return err
}

func (tx *txRepo) SetPayment(ctx context.Context, orderID uuid.UUID, proofRef, method string, date time.Time) error {
	_, err := tx.tx.Exec(ctx, `UPDATE orders SET proof_ref=$1, payment_method=$2, payment_date=$3, updated_at=NOW() WHERE id=$4`,
		proofRef, method, date, orderID)
	return err
}

func (tx *txRepo) UpsertPricing(ctx context.Context, entry PricingEntry) error {
	var unit, total, discount pgtype.Numeric
	_ = unit.Scan(fmt.Sprintf("%f", entry.UnitPrice))
	_ = total.Scan(fmt.Sprintf("%f", entry.TotalPrice))
	_ = discount.Scan(fmt.Sprintf("%f", entry.DiscountPercent))

	_, err := tx.tx.Exec(ctx, `INSERT INTO order_pricing (order_id, product_id, unit_price, total_price, discount_percent, notes, updated_at)
VALUES ($1, $2, $3, $4, $5, $6, NOW())
ON CONFLICT (order_id, product_id) DO UPDATE
SET unit_price=EXCLUDED.unit_price, total_price=EXCLUDED.total_price,
    discount_percent=EXCLUDED.discount_percent, notes=EXCLUDED.notes, updated_at=NOW()`,
		entry.OrderID, entry.ProductID, unit, total, discount, entry.Notes)
	return err
}

func (tx *txRepo) SumPricing(ctx context.Context, orderID uuid.UUID) (float64, error) {
	var total pgtype.Numeric
	if err := tx.tx.QueryRow(ctx, `SELECT COALESCE(SUM(total_price), 0) FROM order_pricing WHERE order_id=$1`, orderID).Scan(&total); err != nil {
		return 0, err
	}
	f, _ := total.Float64Value()
	return f.Float64, nil
}

func (tx *txRepo) SetTotalAmount(ctx context.Context, orderID uuid.UUID, amount float64) error {
	var total pgtype.Numeric
	_ = total.Scan(fmt.Sprintf("%f", amount))
	_, err := tx.tx.Exec(ctx, `UPDATE orders SET total_amount=$1, updated_at=NOW() WHERE id=$2`, total, orderID)
	return err
}

func (tx *txRepo) AppendLog(ctx context.Context, entry ApprovalLogEntry) error {
	_, err := tx.tx.Exec(ctx, `INSERT INTO approval_logs (order_id, actor_id, from_status, to_status, notes, created_at)
VALUES ($1, $2, $3, $4, $5, NOW())`,
		entry.OrderID, entry.ActorID, string(entry.FromStatus), string(entry.ToStatus), entry.Notes)
	return err
}
