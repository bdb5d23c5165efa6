package settlement

import (
	"context"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/mock"

	"github.com/iurnickita/foodorder/internal/model"
	"github.com/iurnickita/foodorder/internal/store"
)

type LookupMock struct {
	mock.Mock
}

func (m *LookupMock) OrderExists(ctx context.Context, id int64) (bool, error) {
	args := m.Called(ctx, id)
	return args.Bool(0), args.Error(1)
}

func (m *LookupMock) PaymentTypeExists(ctx context.Context, id int64) (bool, error) {
	args := m.Called(ctx, id)
	return args.Bool(0), args.Error(1)
}

func (m *LookupMock) PaymentTransactionExists(ctx context.Context, transactionID string) (bool, error) {
	args := m.Called(ctx, transactionID)
	return args.Bool(0), args.Error(1)
}

// StoreMock переопределяет только то, что нужно расчету
type StoreMock struct {
	mock.Mock
	store.Store
}

func (m *StoreMock) OrderExists(ctx context.Context, id int64) (bool, error) {
	args := m.Called(ctx, id)
	return args.Bool(0), args.Error(1)
}

func (m *StoreMock) PaymentTypeExists(ctx context.Context, id int64) (bool, error) {
	args := m.Called(ctx, id)
	return args.Bool(0), args.Error(1)
}

func (m *StoreMock) PaymentTransactionExists(ctx context.Context, transactionID string) (bool, error) {
	args := m.Called(ctx, transactionID)
	return args.Bool(0), args.Error(1)
}

func (m *StoreMock) InTx(ctx context.Context, fn func(tx store.Tx) error) error {
	args := m.Called(ctx, fn)
	if tx, ok := args.Get(0).(store.Tx); ok {
		if err := fn(tx); err != nil {
			return err
		}
	}
	return args.Error(1)
}

type TxMock struct {
	mock.Mock
}

func (m *TxMock) OrderGetForUpdate(ctx context.Context, id int64) (model.Order, error) {
	args := m.Called(ctx, id)
	return args.Get(0).(model.Order), args.Error(1)
}

func (m *TxMock) PaymentSum(ctx context.Context, orderID int64) (decimal.Decimal, error) {
	args := m.Called(ctx, orderID)
	return args.Get(0).(decimal.Decimal), args.Error(1)
}

func (m *TxMock) PaymentInsert(ctx context.Context, payment model.Payment) (model.Payment, error) {
	args := m.Called(ctx, payment)
	return args.Get(0).(model.Payment), args.Error(1)
}

func (m *TxMock) OrderSetPaid(ctx context.Context, update model.OrderPaidUpdate) error {
	args := m.Called(ctx, update)
	return args.Error(0)
}
