package handler

import (
	"context"

	"github.com/stretchr/testify/mock"

	"github.com/iurnickita/foodorder/internal/model"
	"github.com/iurnickita/foodorder/internal/settlement"
)

type ServiceMock struct {
	mock.Mock
}

func (m *ServiceMock) Settle(ctx context.Context, req settlement.Request) (model.Payment, error) {
	args := m.Called(ctx, req)
	return args.Get(0).(model.Payment), args.Error(1)
}

func (m *ServiceMock) GetOrderBalance(ctx context.Context, payerID int64, orderID int64) (model.OrderBalance, error) {
	args := m.Called(ctx, payerID, orderID)
	return args.Get(0).(model.OrderBalance), args.Error(1)
}

func (m *ServiceMock) GetOrderPayments(ctx context.Context, payerID int64, orderID int64) ([]model.Payment, error) {
	args := m.Called(ctx, payerID, orderID)
	payments, _ := args.Get(0).([]model.Payment)
	return payments, args.Error(1)
}

func (m *ServiceMock) GetPaymentTypes(ctx context.Context) ([]model.PaymentType, error) {
	args := m.Called(ctx)
	paymentTypes, _ := args.Get(0).([]model.PaymentType)
	return paymentTypes, args.Error(1)
}

func (m *ServiceMock) GetPayment(ctx context.Context, id int64) (model.Payment, error) {
	args := m.Called(ctx, id)
	return args.Get(0).(model.Payment), args.Error(1)
}

func (m *ServiceMock) ListPayments(ctx context.Context, filter model.PaymentFilter) (model.PaymentPage, error) {
	args := m.Called(ctx, filter)
	return args.Get(0).(model.PaymentPage), args.Error(1)
}

func (m *ServiceMock) Ping(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}
