package settlement

import (
	"context"
	"strings"
	"unicode/utf8"

	"github.com/shopspring/decimal"
)

const maxTransactionIDLen = 255

// Request - попытка оплатить заказ целиком.
// Amount необязателен: если передан, он должен совпасть с остатком к оплате.
type Request struct {
	OrderID       int64
	PayerID       int64
	PaymentTypeID int64
	TransactionID *string
	Amount        *decimal.Decimal
}

// Lookup - проверки ссылочной целостности запроса.
type Lookup interface {
	OrderExists(ctx context.Context, id int64) (bool, error)
	PaymentTypeExists(ctx context.Context, id int64) (bool, error)
	PaymentTransactionExists(ctx context.Context, transactionID string) (bool, error)
}

type Validator struct {
	lookup Lookup
}

func NewValidator(lookup Lookup) *Validator {
	return &Validator{lookup: lookup}
}

// Validate проверяет форму запроса и ссылки на заказ, способ оплаты и транзакцию.
// Возвращает *ValidationError со всеми нарушениями либо ошибку хранилища.
func (v *Validator) Validate(ctx context.Context, req Request) error {
	var structural []FieldError

	if req.OrderID <= 0 {
		structural = append(structural, FieldError{"order_id", "required", "order_id is required"})
	}
	if req.PaymentTypeID <= 0 {
		structural = append(structural, FieldError{"payment_type_id", "required", "payment_type_id is required"})
	}
	transactionOK := false
	if req.TransactionID != nil {
		switch {
		case strings.TrimSpace(*req.TransactionID) == "":
			structural = append(structural, FieldError{"transaction_id", "blank", "transaction_id must not be blank"})
		case utf8.RuneCountInString(*req.TransactionID) > maxTransactionIDLen:
			structural = append(structural, FieldError{"transaction_id", "max", "transaction_id may not be greater than 255 characters"})
		default:
			transactionOK = true
		}
	}
	if req.Amount != nil && req.Amount.IsNegative() {
		structural = append(structural, FieldError{"amount", "min", "amount must be at least 0"})
	}

	// Ссылки проверяются только для корректно заполненных полей
	var missing, duplicate []FieldError
	if req.OrderID > 0 {
		ok, err := v.lookup.OrderExists(ctx, req.OrderID)
		if err != nil {
			return mapStoreError(err)
		}
		if !ok {
			missing = append(missing, FieldError{"order_id", "exists", "the selected order_id is invalid"})
		}
	}
	if req.PaymentTypeID > 0 {
		ok, err := v.lookup.PaymentTypeExists(ctx, req.PaymentTypeID)
		if err != nil {
			return mapStoreError(err)
		}
		if !ok {
			missing = append(missing, FieldError{"payment_type_id", "exists", "the selected payment_type_id is invalid"})
		}
	}
	if transactionOK {
		used, err := v.lookup.PaymentTransactionExists(ctx, *req.TransactionID)
		if err != nil {
			return mapStoreError(err)
		}
		if used {
			duplicate = append(duplicate, FieldError{"transaction_id", "unique", "the transaction_id has already been taken"})
		}
	}

	fields := append(append(structural, missing...), duplicate...)
	switch {
	case len(structural) > 0:
		return &ValidationError{kind: ErrValidationFailed, Fields: fields}
	case len(missing) > 0:
		return &ValidationError{kind: ErrNotFound, Fields: fields}
	case len(duplicate) > 0:
		return &ValidationError{kind: ErrDuplicateReference, Fields: fields}
	}
	return nil
}
