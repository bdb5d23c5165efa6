package store

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/iurnickita/foodorder/internal/model"
	"github.com/iurnickita/foodorder/internal/store/config"
)

func TestMemStoreCommitRechecksTransaction(t *testing.T) {
	ctx := context.Background()
	store := NewMemStore(config.Config{LockTimeout: time.Second})
	orderA, paymentType := seed(t, store, 1, "10.00")
	orderB, err := store.OrderCreate(ctx, model.Order{UserID: 1, Total: decimal.NewFromInt(5)})
	require.NoError(t, err)
	transactionID := "TX-42"

	staged := make(chan struct{})
	commit := make(chan struct{})
	done := make(chan error)
	go func() {
		done <- store.InTx(ctx, func(tx Tx) error {
			_, err := tx.PaymentInsert(ctx, model.Payment{
				OrderID:       orderA.ID,
				UserID:        1,
				PaymentTypeID: paymentType.ID,
				Amount:        orderA.Total,
				TransactionID: &transactionID,
			})
			close(staged)
			<-commit
			return err
		})
	}()
	<-staged

	// вторая транзакция по другому заказу фиксируется первой
	err = store.InTx(ctx, func(tx Tx) error {
		_, err := tx.PaymentInsert(ctx, model.Payment{
			OrderID:       orderB.ID,
			UserID:        1,
			PaymentTypeID: paymentType.ID,
			Amount:        orderB.Total,
			TransactionID: &transactionID,
		})
		return err
	})
	require.NoError(t, err)

	close(commit)
	require.ErrorIs(t, <-done, ErrAlreadyExists)

	payments, err := store.OrderPayments(ctx, orderA.ID)
	require.NoError(t, err)
	require.Empty(t, payments)
}

func TestMemStorePaymentInsertChecks(t *testing.T) {
	ctx := context.Background()
	store := NewMemStore(config.Config{})
	order, paymentType := seed(t, store, 1, "10.00")

	tests := []struct {
		name    string
		payment model.Payment
		wantErr error
	}{
		{
			name:    "zero amount",
			payment: model.Payment{OrderID: order.ID, PaymentTypeID: paymentType.ID},
			wantErr: errAmountCheck,
		},
		{
			name:    "unknown order",
			payment: model.Payment{OrderID: 999, PaymentTypeID: paymentType.ID, Amount: decimal.NewFromInt(1)},
			wantErr: ErrNoRows,
		},
		{
			name:    "unknown payment type",
			payment: model.Payment{OrderID: order.ID, PaymentTypeID: 999, Amount: decimal.NewFromInt(1)},
			wantErr: ErrNoRows,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := store.InTx(ctx, func(tx Tx) error {
				_, err := tx.PaymentInsert(ctx, tt.payment)
				return err
			})
			require.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestMemStoreCanceledBeforeCommit(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	store := NewMemStore(config.Config{})
	order, paymentType := seed(t, store, 1, "10.00")

	err := store.InTx(ctx, func(tx Tx) error {
		_, err := tx.PaymentInsert(ctx, model.Payment{
			OrderID:       order.ID,
			UserID:        1,
			PaymentTypeID: paymentType.ID,
			Amount:        order.Total,
		})
		cancel()
		return err
	})
	require.ErrorIs(t, err, context.Canceled)

	payments, err := store.OrderPayments(context.Background(), order.ID)
	require.NoError(t, err)
	require.Empty(t, payments)
}

func TestMemStoreRowLockReleased(t *testing.T) {
	ctx := context.Background()
	store := NewMemStore(config.Config{LockTimeout: 100 * time.Millisecond})
	order, _ := seed(t, store, 1, "10.00")

	for i := 0; i < 3; i++ {
		err := store.InTx(ctx, func(tx Tx) error {
			_, err := tx.OrderGetForUpdate(ctx, order.ID)
			if err != nil {
				return err
			}
			// повторная блокировка в той же транзакции не ждет
			_, err = tx.OrderGetForUpdate(ctx, order.ID)
			return err
		})
		require.NoError(t, err)
	}
}
