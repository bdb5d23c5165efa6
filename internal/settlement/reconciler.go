package settlement

import (
	"context"
	"fmt"

	"github.com/iurnickita/foodorder/internal/model"
	"github.com/iurnickita/foodorder/internal/settlement/config"
	"github.com/iurnickita/foodorder/internal/store"
)

type Reconciler interface {
	Reconcile(ctx context.Context, req Request) (model.Payment, error)
}

type reconciler struct {
	cfg       config.Config
	store     store.Store
	validator *Validator
}

func NewReconciler(cfg config.Config, store store.Store) Reconciler {
	return &reconciler{
		cfg:       cfg,
		store:     store,
		validator: NewValidator(store),
	}
}

// Reconcile оплачивает весь остаток по заказу одной записью.
// Строка заказа блокируется на время транзакции, поэтому из параллельных попыток
// по одному заказу успешна только первая, остальные видят is_paid или нулевой остаток.
func (r *reconciler) Reconcile(ctx context.Context, req Request) (model.Payment, error) {
	if req.PayerID <= 0 {
		return model.Payment{}, ErrUnauthorized
	}

	err := r.validator.Validate(ctx, req)
	if err != nil {
		return model.Payment{}, err
	}

	if r.cfg.TxTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.cfg.TxTimeout)
		defer cancel()
	}

	var payment model.Payment
	err = r.store.InTx(ctx, func(tx store.Tx) error {
		// Блокировка заказа
		order, err := tx.OrderGetForUpdate(ctx, req.OrderID)
		if err != nil {
			return mapStoreError(err)
		}
		if order.UserID != req.PayerID {
			return ErrUnauthorized
		}
		if order.IsPaid {
			return ErrAlreadySettled
		}

		// Остаток считается под блокировкой
		paid, err := tx.PaymentSum(ctx, order.ID)
		if err != nil {
			return mapStoreError(err)
		}
		remaining := order.Total.Sub(paid)
		if !remaining.IsPositive() {
			return ErrNoRemainingBalance
		}
		// TODO: частичная оплата; пока сумма из запроса только сверяется с остатком
		if req.Amount != nil && !req.Amount.Equal(remaining) {
			return &ValidationError{kind: ErrValidationFailed, Fields: []FieldError{{
				Field:   "amount",
				Rule:    "remaining",
				Message: fmt.Sprintf("amount must equal the remaining balance %s", remaining.StringFixed(2)),
			}}}
		}

		payment, err = tx.PaymentInsert(ctx, model.Payment{
			OrderID:       order.ID,
			UserID:        req.PayerID,
			PaymentTypeID: req.PaymentTypeID,
			Amount:        remaining,
			TransactionID: req.TransactionID,
		})
		if err != nil {
			return mapStoreError(err)
		}

		return mapStoreError(tx.OrderSetPaid(ctx, model.OrderPaidUpdate{OrderID: order.ID, IsPaid: true}))
	})
	if err != nil {
		return model.Payment{}, mapStoreError(err)
	}

	return payment, nil
}
