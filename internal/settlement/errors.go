package settlement

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/iurnickita/foodorder/internal/store"
)

var (
	ErrNotFound           = errors.New("not found")
	ErrUnauthorized       = errors.New("payer does not own the order")
	ErrAlreadySettled     = errors.New("order is already fully paid")
	ErrNoRemainingBalance = errors.New("order has no remaining balance")
	ErrDuplicateReference = errors.New("transaction reference is already used")
	ErrValidationFailed   = errors.New("validation failed")
	ErrStorageUnavailable = errors.New("storage unavailable")
	ErrTimeout            = errors.New("timeout")
)

// Машиночитаемые коды ошибок, стабильные для клиентов API
const (
	CodeNotFound           = "not_found"
	CodeUnauthorized       = "unauthorized"
	CodeAlreadySettled     = "already_settled"
	CodeNoRemainingBalance = "no_remaining_balance"
	CodeDuplicateReference = "duplicate_reference"
	CodeValidationFailed   = "validation_failed"
	CodeStorageUnavailable = "storage_unavailable"
	CodeTimeout            = "timeout"
	CodeInternal           = "internal"
)

var kinds = []struct {
	err  error
	code string
}{
	{ErrValidationFailed, CodeValidationFailed},
	{ErrNotFound, CodeNotFound},
	{ErrUnauthorized, CodeUnauthorized},
	{ErrAlreadySettled, CodeAlreadySettled},
	{ErrNoRemainingBalance, CodeNoRemainingBalance},
	{ErrDuplicateReference, CodeDuplicateReference},
	{ErrStorageUnavailable, CodeStorageUnavailable},
	{ErrTimeout, CodeTimeout},
}

// Code возвращает код вида ошибки. Неизвестные ошибки - CodeInternal.
func Code(err error) string {
	for _, kind := range kinds {
		if errors.Is(err, kind.err) {
			return kind.code
		}
	}
	return CodeInternal
}

// Retryable - повтор без изменений имеет смысл только при сбое хранилища или таймауте.
func Retryable(err error) bool {
	return errors.Is(err, ErrStorageUnavailable) || errors.Is(err, ErrTimeout)
}

// FieldError - нарушение по одному полю запроса.
type FieldError struct {
	Field   string
	Rule    string
	Message string
}

// ValidationError перечисляет все нарушенные поля.
// Вид ошибки (ErrValidationFailed, ErrNotFound, ErrDuplicateReference) доступен через errors.Is.
type ValidationError struct {
	kind   error
	Fields []FieldError
}

func (e *ValidationError) Error() string {
	parts := make([]string, 0, len(e.Fields))
	for _, field := range e.Fields {
		parts = append(parts, field.Field+": "+field.Message)
	}
	return fmt.Sprintf("%s: %s", e.kind, strings.Join(parts, "; "))
}

func (e *ValidationError) Unwrap() error {
	return e.kind
}

// FieldMessages группирует сообщения по полям, как в ответах API
func (e *ValidationError) FieldMessages() map[string][]string {
	messages := make(map[string][]string, len(e.Fields))
	for _, field := range e.Fields {
		messages[field.Field] = append(messages[field.Field], field.Message)
	}
	return messages
}

// mapStoreError переводит ошибки хранилища в ошибки расчета.
// Ошибки расчета возвращаются без изменений.
func mapStoreError(err error) error {
	if err == nil {
		return nil
	}
	for _, kind := range kinds {
		if errors.Is(err, kind.err) {
			return err
		}
	}

	switch {
	case errors.Is(err, store.ErrNoRows):
		return fmt.Errorf("%w: %w", ErrNotFound, err)
	case errors.Is(err, store.ErrAlreadyExists):
		return fmt.Errorf("%w: %w", ErrDuplicateReference, err)
	case errors.Is(err, store.ErrLockTimeout),
		errors.Is(err, context.DeadlineExceeded),
		errors.Is(err, context.Canceled):
		return fmt.Errorf("%w: %w", ErrTimeout, err)
	default:
		return fmt.Errorf("%w: %w", ErrStorageUnavailable, err)
	}
}
