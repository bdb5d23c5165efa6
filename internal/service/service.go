package service

import (
	"context"
	"errors"

	"go.uber.org/zap"

	"github.com/iurnickita/foodorder/internal/model"
	"github.com/iurnickita/foodorder/internal/service/config"
	"github.com/iurnickita/foodorder/internal/settlement"
	"github.com/iurnickita/foodorder/internal/store"
)

type Service interface {
	Settle(ctx context.Context, req settlement.Request) (model.Payment, error)
	GetOrderBalance(ctx context.Context, payerID int64, orderID int64) (model.OrderBalance, error)
	GetOrderPayments(ctx context.Context, payerID int64, orderID int64) ([]model.Payment, error)
	GetPaymentTypes(ctx context.Context) ([]model.PaymentType, error)
	GetPayment(ctx context.Context, id int64) (model.Payment, error)
	ListPayments(ctx context.Context, filter model.PaymentFilter) (model.PaymentPage, error)
	Ping(ctx context.Context) error
}

type service struct {
	cfg        config.Config
	store      store.Store
	reconciler settlement.Reconciler
	zaplog     *zap.Logger
}

func NewService(cfg config.Config, store store.Store, zaplog *zap.Logger) Service {
	return newService(cfg, store, settlement.NewReconciler(cfg.Settlement, store), zaplog)
}

func newService(cfg config.Config, store store.Store, reconciler settlement.Reconciler, zaplog *zap.Logger) *service {
	return &service{
		cfg:        cfg,
		store:      store,
		reconciler: reconciler,
		zaplog:     zaplog,
	}
}

func (service *service) Settle(ctx context.Context, req settlement.Request) (model.Payment, error) {
	payment, err := service.reconciler.Reconcile(ctx, req)
	if err != nil {
		fields := []zap.Field{
			zap.Int64("order_id", req.OrderID),
			zap.Int64("payer_id", req.PayerID),
			zap.String("code", settlement.Code(err)),
			zap.Error(err),
		}
		switch {
		case errors.Is(err, context.Canceled):
			// клиент отключился, сбоя нет
			service.zaplog.Info("order settlement canceled", fields...)
		case settlement.Retryable(err) || settlement.Code(err) == settlement.CodeInternal:
			service.zaplog.Error("order settlement failed", fields...)
		default:
			service.zaplog.Info("order settlement rejected", fields...)
		}
		return model.Payment{}, err
	}

	service.zaplog.Info("order settled",
		zap.Int64("order_id", payment.OrderID),
		zap.Int64("payment_id", payment.ID),
		zap.String("amount", payment.Amount.StringFixed(2)))
	return payment, nil
}

func (service *service) GetOrderBalance(ctx context.Context, payerID int64, orderID int64) (model.OrderBalance, error) {
	order, err := service.ownedOrder(ctx, payerID, orderID)
	if err != nil {
		return model.OrderBalance{}, err
	}

	balance, err := service.store.OrderBalance(ctx, order.ID)
	if err != nil {
		return model.OrderBalance{}, storeError(err)
	}
	if balance.Remaining.IsNegative() {
		service.zaplog.Warn("order overpaid",
			zap.Int64("order_id", order.ID),
			zap.String("remaining", balance.Remaining.StringFixed(2)))
	}
	return balance, nil
}

func (service *service) GetOrderPayments(ctx context.Context, payerID int64, orderID int64) ([]model.Payment, error) {
	order, err := service.ownedOrder(ctx, payerID, orderID)
	if err != nil {
		return nil, err
	}

	payments, err := service.store.OrderPayments(ctx, order.ID)
	if err != nil {
		return nil, storeError(err)
	}
	return payments, nil
}

func (service *service) GetPaymentTypes(ctx context.Context) ([]model.PaymentType, error) {
	paymentTypes, err := service.store.PaymentTypeList(ctx)
	if err != nil {
		return nil, storeError(err)
	}
	return paymentTypes, nil
}

func (service *service) GetPayment(ctx context.Context, id int64) (model.Payment, error) {
	payment, err := service.store.PaymentGet(ctx, id)
	if err != nil {
		return model.Payment{}, storeError(err)
	}
	return payment, nil
}

func (service *service) ListPayments(ctx context.Context, filter model.PaymentFilter) (model.PaymentPage, error) {
	page, err := service.store.PaymentList(ctx, filter)
	if err != nil {
		return model.PaymentPage{}, storeError(err)
	}
	return page, nil
}

func (service *service) Ping(ctx context.Context) error {
	return storeError(service.store.Ping(ctx))
}

func (service *service) ownedOrder(ctx context.Context, payerID int64, orderID int64) (model.Order, error) {
	if payerID <= 0 {
		return model.Order{}, settlement.ErrUnauthorized
	}
	order, err := service.store.OrderGet(ctx, orderID)
	if err != nil {
		return model.Order{}, storeError(err)
	}
	if order.UserID != payerID {
		return model.Order{}, settlement.ErrUnauthorized
	}
	return order, nil
}

// storeError сводит ошибки чтения к видам ошибок settlement
func storeError(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, store.ErrNoRows):
		return errors.Join(settlement.ErrNotFound, err)
	case errors.Is(err, store.ErrLockTimeout),
		errors.Is(err, context.DeadlineExceeded),
		errors.Is(err, context.Canceled):
		return errors.Join(settlement.ErrTimeout, err)
	default:
		return errors.Join(settlement.ErrStorageUnavailable, err)
	}
}
