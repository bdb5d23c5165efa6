package store

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/shopspring/decimal"

	"github.com/iurnickita/foodorder/internal/model"
	"github.com/iurnickita/foodorder/internal/store/config"
)

type Store interface {
	OrderGet(ctx context.Context, id int64) (model.Order, error)
	OrderExists(ctx context.Context, id int64) (bool, error)
	OrderCreate(ctx context.Context, order model.Order) (model.Order, error)
	OrderBalance(ctx context.Context, id int64) (model.OrderBalance, error)
	OrderPayments(ctx context.Context, orderID int64) ([]model.Payment, error)
	PaymentTypeExists(ctx context.Context, id int64) (bool, error)
	PaymentTypeCreate(ctx context.Context, paymentType model.PaymentType) (model.PaymentType, error)
	PaymentTypeList(ctx context.Context) ([]model.PaymentType, error)
	PaymentTransactionExists(ctx context.Context, transactionID string) (bool, error)
	PaymentGet(ctx context.Context, id int64) (model.Payment, error)
	PaymentList(ctx context.Context, filter model.PaymentFilter) (model.PaymentPage, error)
	// InTx выполняет fn в одной транзакции. Ошибка fn откатывает все изменения.
	InTx(ctx context.Context, fn func(tx Tx) error) error
	Ping(ctx context.Context) error
	Close() error
}

// Tx - операции, доступные внутри транзакции расчета.
// OrderGetForUpdate удерживает блокировку строки заказа до конца транзакции.
type Tx interface {
	OrderGetForUpdate(ctx context.Context, id int64) (model.Order, error)
	PaymentSum(ctx context.Context, orderID int64) (decimal.Decimal, error)
	PaymentInsert(ctx context.Context, payment model.Payment) (model.Payment, error)
	OrderSetPaid(ctx context.Context, update model.OrderPaidUpdate) error
}

var (
	ErrNoRows        = errors.New("no rows")
	ErrAlreadyExists = errors.New("already exists")
	ErrLockTimeout   = errors.New("lock timeout")
	ErrUnavailable   = errors.New("storage unavailable")
)

type store struct {
	database    *sql.DB
	lockTimeout time.Duration
}

func NewStore(cfg config.Config) (Store, error) {
	if cfg.DBDsn == "" {
		return NewMemStore(cfg), nil
	}

	db, err := sql.Open("pgx", cfg.DBDsn)
	if err != nil {
		return nil, err
	}

	// Справочник способов оплаты
	_, err = db.Exec(
		"CREATE TABLE IF NOT EXISTS payment_types (" +
			" id BIGSERIAL PRIMARY KEY," +
			" name VARCHAR (255) NOT NULL UNIQUE," +
			" slug VARCHAR (255) NOT NULL" +
			" );")
	if err != nil {
		return nil, mapError(err)
	}

	// Таблица заказов.
	// Заказы создает сервис оформления, здесь меняется только is_paid
	_, err = db.Exec(
		"CREATE TABLE IF NOT EXISTS orders (" +
			" id BIGSERIAL PRIMARY KEY," +
			" user_id BIGINT NOT NULL," +
			" total NUMERIC (10, 2) NOT NULL DEFAULT 0," +
			" is_paid BOOLEAN NOT NULL DEFAULT FALSE" +
			" );")
	if err != nil {
		return nil, mapError(err)
	}

	// Таблица оплат. Записи только добавляются
	_, err = db.Exec(
		"CREATE TABLE IF NOT EXISTS payments (" +
			" id BIGSERIAL PRIMARY KEY," +
			" order_id BIGINT NOT NULL REFERENCES orders (id) ON DELETE RESTRICT," +
			" user_id BIGINT NOT NULL," +
			" payment_type_id BIGINT NOT NULL REFERENCES payment_types (id)," +
			" amount NUMERIC (10, 2) NOT NULL CHECK (amount > 0)," +
			" transaction_id VARCHAR (255)," +
			" created_at TIMESTAMPTZ NOT NULL DEFAULT now()" +
			" );")
	if err != nil {
		return nil, mapError(err)
	}
	_, err = db.Exec(
		"CREATE UNIQUE INDEX IF NOT EXISTS payments_transaction_id_key" +
			" ON payments (transaction_id) WHERE transaction_id IS NOT NULL;")
	if err != nil {
		return nil, mapError(err)
	}
	_, err = db.Exec(
		"CREATE INDEX IF NOT EXISTS payments_order_id_idx ON payments (order_id);")
	if err != nil {
		return nil, mapError(err)
	}

	return &store{
		database:    db,
		lockTimeout: cfg.LockTimeout,
	}, nil
}

func (store *store) Ping(ctx context.Context) error {
	return mapError(store.database.PingContext(ctx))
}

func (store *store) Close() error {
	return store.database.Close()
}

func (store *store) OrderGet(ctx context.Context, id int64) (model.Order, error) {
	row := store.database.QueryRowContext(ctx,
		"SELECT id, user_id, total, is_paid FROM orders"+
			" WHERE id = $1",
		id)
	return scanOrder(row)
}

func (store *store) OrderExists(ctx context.Context, id int64) (bool, error) {
	return store.exists(ctx, "SELECT EXISTS (SELECT 1 FROM orders WHERE id = $1)", id)
}

func (store *store) OrderCreate(ctx context.Context, order model.Order) (model.Order, error) {
	row := store.database.QueryRowContext(ctx,
		"INSERT INTO orders (user_id, total, is_paid)"+
			" VALUES ($1, $2, $3)"+
			" RETURNING id",
		order.UserID,
		order.Total,
		order.IsPaid)
	err := row.Scan(&order.ID)
	if err != nil {
		return model.Order{}, mapError(err)
	}
	return order, nil
}

func (store *store) OrderBalance(ctx context.Context, id int64) (model.OrderBalance, error) {
	row := store.database.QueryRowContext(ctx,
		"SELECT o.id, o.total, o.is_paid, COALESCE(SUM(p.amount), 0)"+
			" FROM orders AS o"+
			" LEFT JOIN payments AS p ON p.order_id = o.id"+
			" WHERE o.id = $1"+
			" GROUP BY o.id",
		id)
	var balance model.OrderBalance
	err := row.Scan(&balance.OrderID,
		&balance.Total,
		&balance.IsPaid,
		&balance.Paid)
	if err != nil {
		return model.OrderBalance{}, mapError(err)
	}
	balance.Remaining = balance.Total.Sub(balance.Paid)
	return balance, nil
}

func (store *store) OrderPayments(ctx context.Context, orderID int64) ([]model.Payment, error) {
	rows, err := store.database.QueryContext(ctx,
		"SELECT "+paymentColumns+
			" FROM payments"+
			" WHERE order_id = $1"+
			" ORDER BY id",
		orderID)
	if err != nil {
		return nil, mapError(err)
	}
	return scanPayments(rows)
}

func (store *store) PaymentTypeExists(ctx context.Context, id int64) (bool, error) {
	return store.exists(ctx, "SELECT EXISTS (SELECT 1 FROM payment_types WHERE id = $1)", id)
}

func (store *store) PaymentTypeCreate(ctx context.Context, paymentType model.PaymentType) (model.PaymentType, error) {
	row := store.database.QueryRowContext(ctx,
		"INSERT INTO payment_types (name, slug)"+
			" VALUES ($1, $2)"+
			" RETURNING id",
		paymentType.Name,
		paymentType.Slug)
	err := row.Scan(&paymentType.ID)
	if err != nil {
		return model.PaymentType{}, mapError(err)
	}
	return paymentType, nil
}

func (store *store) PaymentTypeList(ctx context.Context) ([]model.PaymentType, error) {
	rows, err := store.database.QueryContext(ctx,
		"SELECT id, name, slug FROM payment_types ORDER BY id")
	if err != nil {
		return nil, mapError(err)
	}
	defer rows.Close()
	var paymentTypes []model.PaymentType
	for rows.Next() {
		var paymentType model.PaymentType
		err := rows.Scan(&paymentType.ID, &paymentType.Name, &paymentType.Slug)
		if err != nil {
			return nil, mapError(err)
		}
		paymentTypes = append(paymentTypes, paymentType)
	}
	return paymentTypes, mapError(rows.Err())
}

func (store *store) PaymentTransactionExists(ctx context.Context, transactionID string) (bool, error) {
	return store.exists(ctx, "SELECT EXISTS (SELECT 1 FROM payments WHERE transaction_id = $1)", transactionID)
}

func (store *store) PaymentGet(ctx context.Context, id int64) (model.Payment, error) {
	row := store.database.QueryRowContext(ctx,
		"SELECT "+paymentColumns+
			" FROM payments"+
			" WHERE id = $1",
		id)
	return scanPayment(row)
}

func (store *store) PaymentList(ctx context.Context, filter model.PaymentFilter) (model.PaymentPage, error) {
	page, perPage, offset := pageBounds(filter)

	var conditions []string
	var args []any
	if filter.UserID != 0 {
		args = append(args, filter.UserID)
		conditions = append(conditions, "user_id = $"+strconv.Itoa(len(args)))
	}
	if filter.OrderID != 0 {
		args = append(args, filter.OrderID)
		conditions = append(conditions, "order_id = $"+strconv.Itoa(len(args)))
	}
	where := ""
	if len(conditions) > 0 {
		where = " WHERE " + strings.Join(conditions, " AND ")
	}

	// Общее количество для пагинации
	var total int
	err := store.database.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM payments"+where, args...).Scan(&total)
	if err != nil {
		return model.PaymentPage{}, mapError(err)
	}

	args = append(args, perPage, offset)
	rows, err := store.database.QueryContext(ctx,
		"SELECT "+paymentColumns+
			" FROM payments"+where+
			" ORDER BY created_at DESC, id DESC"+
			" LIMIT $"+strconv.Itoa(len(args)-1)+
			" OFFSET $"+strconv.Itoa(len(args)),
		args...)
	if err != nil {
		return model.PaymentPage{}, mapError(err)
	}
	payments, err := scanPayments(rows)
	if err != nil {
		return model.PaymentPage{}, err
	}

	return model.PaymentPage{
		Payments:    payments,
		CurrentPage: page,
		TotalPages:  totalPages(total, perPage),
		PerPage:     perPage,
		Total:       total,
	}, nil
}

func (store *store) InTx(ctx context.Context, fn func(tx Tx) error) error {
	sqlTx, err := store.database.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelReadCommitted})
	if err != nil {
		return mapError(err)
	}
	defer sqlTx.Rollback()

	// Ожидание блокировки строки ограничено
	if store.lockTimeout > 0 {
		_, err = sqlTx.ExecContext(ctx,
			fmt.Sprintf("SET LOCAL lock_timeout = %d", store.lockTimeout.Milliseconds()))
		if err != nil {
			return mapError(err)
		}
	}

	err = fn(&tx{sqlTx: sqlTx})
	if err != nil {
		return err
	}
	return mapError(sqlTx.Commit())
}

type tx struct {
	sqlTx *sql.Tx
}

func (tx *tx) OrderGetForUpdate(ctx context.Context, id int64) (model.Order, error) {
	row := tx.sqlTx.QueryRowContext(ctx,
		"SELECT id, user_id, total, is_paid FROM orders"+
			" WHERE id = $1"+
			" FOR UPDATE",
		id)
	return scanOrder(row)
}

func (tx *tx) PaymentSum(ctx context.Context, orderID int64) (decimal.Decimal, error) {
	var sum decimal.Decimal
	err := tx.sqlTx.QueryRowContext(ctx,
		"SELECT COALESCE(SUM(amount), 0) FROM payments"+
			" WHERE order_id = $1",
		orderID).Scan(&sum)
	if err != nil {
		return decimal.Zero, mapError(err)
	}
	return sum, nil
}

func (tx *tx) PaymentInsert(ctx context.Context, payment model.Payment) (model.Payment, error) {
	row := tx.sqlTx.QueryRowContext(ctx,
		"INSERT INTO payments (order_id, user_id, payment_type_id, amount, transaction_id)"+
			" VALUES ($1, $2, $3, $4, $5)"+
			" RETURNING id, created_at",
		payment.OrderID,
		payment.UserID,
		payment.PaymentTypeID,
		payment.Amount,
		nullString(payment.TransactionID))
	err := row.Scan(&payment.ID, &payment.CreatedAt)
	if err != nil {
		return model.Payment{}, mapError(err)
	}
	return payment, nil
}

func (tx *tx) OrderSetPaid(ctx context.Context, update model.OrderPaidUpdate) error {
	result, err := tx.sqlTx.ExecContext(ctx,
		"UPDATE orders"+
			" SET is_paid = $1"+
			" WHERE id = $2",
		update.IsPaid,
		update.OrderID)
	if err != nil {
		return mapError(err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return mapError(err)
	}
	if affected == 0 {
		return ErrNoRows
	}
	return nil
}

func (store *store) exists(ctx context.Context, query string, arg any) (bool, error) {
	var exists bool
	err := store.database.QueryRowContext(ctx, query, arg).Scan(&exists)
	if err != nil {
		return false, mapError(err)
	}
	return exists, nil
}

const paymentColumns = "id, order_id, user_id, payment_type_id, amount, transaction_id, created_at"

type scanner interface {
	Scan(dest ...any) error
}

func scanOrder(row scanner) (model.Order, error) {
	var order model.Order
	err := row.Scan(&order.ID,
		&order.UserID,
		&order.Total,
		&order.IsPaid)
	if err != nil {
		return model.Order{}, mapError(err)
	}
	return order, nil
}

func scanPayment(row scanner) (model.Payment, error) {
	var payment model.Payment
	var transactionID sql.NullString
	err := row.Scan(&payment.ID,
		&payment.OrderID,
		&payment.UserID,
		&payment.PaymentTypeID,
		&payment.Amount,
		&transactionID,
		&payment.CreatedAt)
	if err != nil {
		return model.Payment{}, mapError(err)
	}
	if transactionID.Valid {
		payment.TransactionID = &transactionID.String
	}
	return payment, nil
}

func scanPayments(rows *sql.Rows) ([]model.Payment, error) {
	defer rows.Close()
	var payments []model.Payment
	for rows.Next() {
		payment, err := scanPayment(rows)
		if err != nil {
			return nil, err
		}
		payments = append(payments, payment)
	}
	return payments, mapError(rows.Err())
}

func nullString(s *string) sql.NullString {
	if s == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *s, Valid: true}
}

// mapError приводит ошибки драйвера к ошибкам хранилища
func mapError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, sql.ErrNoRows) {
		return ErrNoRows
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return err
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch {
		case pgErr.Code == "23505": // unique_violation
			return fmt.Errorf("%w: %s", ErrAlreadyExists, pgErr.ConstraintName)
		case pgErr.Code == "55P03", pgErr.Code == "57014": // lock_not_available, query_canceled
			return fmt.Errorf("%w: %s", ErrLockTimeout, pgErr.Message)
		case strings.HasPrefix(pgErr.Code, "08"), // connection_exception
			strings.HasPrefix(pgErr.Code, "53"), // insufficient_resources
			strings.HasPrefix(pgErr.Code, "57P"): // operator_intervention
			return fmt.Errorf("%w: %s", ErrUnavailable, pgErr.Message)
		}
		return err
	}

	var connectErr *pgconn.ConnectError
	if errors.As(err, &connectErr) || errors.Is(err, sql.ErrConnDone) || errors.Is(err, driver.ErrBadConn) {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	if pgconn.Timeout(err) {
		return fmt.Errorf("%w: %v", ErrLockTimeout, err)
	}
	return err
}
