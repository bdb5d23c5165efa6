package store

import (
	"context"
	"fmt"
	"math"
	"os"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/iurnickita/foodorder/internal/model"
	"github.com/iurnickita/foodorder/internal/store/config"
)

// Хранилища, на которых гоняются общие тесты.
// PostgreSQL подключается, только если задан FOODORDER_TEST_DSN.
func testStores(t *testing.T) map[string]Store {
	t.Helper()
	stores := map[string]Store{
		"memory": NewMemStore(config.Config{LockTimeout: 200 * time.Millisecond}),
	}

	dsn := os.Getenv("FOODORDER_TEST_DSN")
	if dsn == "" {
		return stores
	}
	store, err := NewStore(config.Config{DBDsn: dsn, LockTimeout: 200 * time.Millisecond})
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	stores["postgres"] = store
	return stores
}

// уникальные имена, чтобы повторные прогоны на одной базе не конфликтовали
func uniqueName(prefix string) string {
	return fmt.Sprintf("%s-%d", prefix, time.Now().UnixNano())
}

func seed(t *testing.T, store Store, userID int64, total string) (model.Order, model.PaymentType) {
	t.Helper()
	ctx := context.Background()

	paymentType, err := store.PaymentTypeCreate(ctx, model.PaymentType{Name: uniqueName("card"), Slug: "card"})
	require.NoError(t, err)
	order, err := store.OrderCreate(ctx, model.Order{UserID: userID, Total: decimal.RequireFromString(total)})
	require.NoError(t, err)
	return order, paymentType
}

func TestStoreOrder(t *testing.T) {
	for name, store := range testStores(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			order, paymentType := seed(t, store, 100001, "42.10")

			// Чтение заказа
			dbOrder, err := store.OrderGet(ctx, order.ID)
			require.NoError(t, err)
			require.Equal(t, order.UserID, dbOrder.UserID)
			require.True(t, order.Total.Equal(dbOrder.Total))
			require.False(t, dbOrder.IsPaid)

			exists, err := store.OrderExists(ctx, order.ID)
			require.NoError(t, err)
			require.True(t, exists)

			exists, err = store.PaymentTypeExists(ctx, paymentType.ID)
			require.NoError(t, err)
			require.True(t, exists)

			_, err = store.OrderGet(ctx, order.ID+1_000_000)
			require.ErrorIs(t, err, ErrNoRows)

			exists, err = store.OrderExists(ctx, order.ID+1_000_000)
			require.NoError(t, err)
			require.False(t, exists)

			paymentTypes, err := store.PaymentTypeList(ctx)
			require.NoError(t, err)
			require.Contains(t, paymentTypes, paymentType)
		})
	}
}

func TestStoreTxCommit(t *testing.T) {
	for name, store := range testStores(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			order, paymentType := seed(t, store, 100002, "25.00")
			transactionID := uniqueName("TX")

			var inserted model.Payment
			err := store.InTx(ctx, func(tx Tx) error {
				locked, err := tx.OrderGetForUpdate(ctx, order.ID)
				if err != nil {
					return err
				}
				sum, err := tx.PaymentSum(ctx, locked.ID)
				if err != nil {
					return err
				}
				require.True(t, sum.IsZero())

				inserted, err = tx.PaymentInsert(ctx, model.Payment{
					OrderID:       locked.ID,
					UserID:        locked.UserID,
					PaymentTypeID: paymentType.ID,
					Amount:        locked.Total,
					TransactionID: &transactionID,
				})
				if err != nil {
					return err
				}

				// сумма внутри транзакции видит свою запись
				sum, err = tx.PaymentSum(ctx, locked.ID)
				if err != nil {
					return err
				}
				require.True(t, sum.Equal(locked.Total))

				return tx.OrderSetPaid(ctx, model.OrderPaidUpdate{OrderID: locked.ID, IsPaid: true})
			})
			require.NoError(t, err)
			require.NotZero(t, inserted.ID)

			dbOrder, err := store.OrderGet(ctx, order.ID)
			require.NoError(t, err)
			require.True(t, dbOrder.IsPaid)

			payment, err := store.PaymentGet(ctx, inserted.ID)
			require.NoError(t, err)
			require.Equal(t, transactionID, *payment.TransactionID)
			require.True(t, payment.Amount.Equal(order.Total))

			used, err := store.PaymentTransactionExists(ctx, transactionID)
			require.NoError(t, err)
			require.True(t, used)

			balance, err := store.OrderBalance(ctx, order.ID)
			require.NoError(t, err)
			require.True(t, balance.Remaining.IsZero())
			require.True(t, balance.IsPaid)
		})
	}
}

func TestStoreTxRollback(t *testing.T) {
	for name, store := range testStores(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			order, paymentType := seed(t, store, 100003, "10.00")
			errAbort := fmt.Errorf("abort")

			err := store.InTx(ctx, func(tx Tx) error {
				_, err := tx.OrderGetForUpdate(ctx, order.ID)
				if err != nil {
					return err
				}
				_, err = tx.PaymentInsert(ctx, model.Payment{
					OrderID:       order.ID,
					UserID:        order.UserID,
					PaymentTypeID: paymentType.ID,
					Amount:        order.Total,
				})
				if err != nil {
					return err
				}
				err = tx.OrderSetPaid(ctx, model.OrderPaidUpdate{OrderID: order.ID, IsPaid: true})
				if err != nil {
					return err
				}
				return errAbort
			})
			require.ErrorIs(t, err, errAbort)

			dbOrder, err := store.OrderGet(ctx, order.ID)
			require.NoError(t, err)
			require.False(t, dbOrder.IsPaid)

			payments, err := store.OrderPayments(ctx, order.ID)
			require.NoError(t, err)
			require.Empty(t, payments)
		})
	}
}

func TestStoreDuplicateTransaction(t *testing.T) {
	for name, store := range testStores(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			order, paymentType := seed(t, store, 100004, "10.00")
			transactionID := uniqueName("TX")

			insert := func() error {
				return store.InTx(ctx, func(tx Tx) error {
					_, err := tx.PaymentInsert(ctx, model.Payment{
						OrderID:       order.ID,
						UserID:        order.UserID,
						PaymentTypeID: paymentType.ID,
						Amount:        decimal.NewFromInt(1),
						TransactionID: &transactionID,
					})
					return err
				})
			}
			require.NoError(t, insert())
			require.ErrorIs(t, insert(), ErrAlreadyExists)
		})
	}
}

func TestStoreRowLockTimeout(t *testing.T) {
	for name, store := range testStores(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			order, _ := seed(t, store, 100005, "10.00")

			locked := make(chan struct{})
			release := make(chan struct{})
			done := make(chan error)
			go func() {
				done <- store.InTx(ctx, func(tx Tx) error {
					_, err := tx.OrderGetForUpdate(ctx, order.ID)
					close(locked)
					<-release
					return err
				})
			}()
			<-locked

			err := store.InTx(ctx, func(tx Tx) error {
				_, err := tx.OrderGetForUpdate(ctx, order.ID)
				return err
			})
			require.ErrorIs(t, err, ErrLockTimeout)

			// чтение без блокировки не ждет
			_, err = store.OrderGet(ctx, order.ID)
			require.NoError(t, err)

			close(release)
			require.NoError(t, <-done)
		})
	}
}

func TestStorePaymentList(t *testing.T) {
	for name, store := range testStores(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			userID := time.Now().UnixNano() % 1_000_000_000
			_, paymentType := seed(t, store, userID, "1.00")

			for i := 0; i < 3; i++ {
				order, err := store.OrderCreate(ctx, model.Order{UserID: userID, Total: decimal.NewFromInt(int64(i + 1))})
				require.NoError(t, err)
				err = store.InTx(ctx, func(tx Tx) error {
					_, err := tx.PaymentInsert(ctx, model.Payment{
						OrderID:       order.ID,
						UserID:        userID,
						PaymentTypeID: paymentType.ID,
						Amount:        order.Total,
					})
					return err
				})
				require.NoError(t, err)
			}

			page, err := store.PaymentList(ctx, model.PaymentFilter{UserID: userID, Page: 1, PerPage: 2})
			require.NoError(t, err)
			require.Equal(t, 3, page.Total)
			require.Equal(t, 2, page.TotalPages)
			require.Len(t, page.Payments, 2)
			// от новых к старым
			require.Greater(t, page.Payments[0].ID, page.Payments[1].ID)

			page, err = store.PaymentList(ctx, model.PaymentFilter{UserID: userID, Page: 2, PerPage: 2})
			require.NoError(t, err)
			require.Len(t, page.Payments, 1)
			require.Equal(t, 2, page.CurrentPage)

			page, err = store.PaymentList(ctx, model.PaymentFilter{UserID: userID, Page: 5, PerPage: 2})
			require.NoError(t, err)
			require.Empty(t, page.Payments)

			// огромный номер страницы не переполняет смещение
			require.NotPanics(t, func() {
				page, err = store.PaymentList(ctx, model.PaymentFilter{UserID: userID, Page: math.MaxInt/2 + 1, PerPage: 3})
			})
			require.NoError(t, err)
			require.Empty(t, page.Payments)
			require.Equal(t, 3, page.Total)
		})
	}
}

func TestPageBounds(t *testing.T) {
	tests := []struct {
		filter                model.PaymentFilter
		page, perPage, offset int
	}{
		{model.PaymentFilter{}, 1, DefaultPerPage, 0},
		{model.PaymentFilter{Page: 3, PerPage: 20}, 3, 20, 40},
		{model.PaymentFilter{Page: -1, PerPage: 1000}, 1, MaxPerPage, 0},
		{model.PaymentFilter{Page: math.MaxInt, PerPage: 3}, math.MaxInt / 3, 3, (math.MaxInt/3 - 1) * 3},
	}
	for _, tt := range tests {
		page, perPage, offset := pageBounds(tt.filter)
		require.Equal(t, tt.page, page)
		require.Equal(t, tt.perPage, perPage)
		require.Equal(t, tt.offset, offset)
	}

	require.Equal(t, 1, totalPages(0, 10))
	require.Equal(t, 1, totalPages(10, 10))
	require.Equal(t, 2, totalPages(11, 10))
}
