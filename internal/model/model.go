package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// Заказы

type Order struct {
	ID     int64
	UserID int64
	Total  decimal.Decimal
	IsPaid bool
}

// OrderPaidUpdate - единственное изменение заказа, которое выполняет расчет.
type OrderPaidUpdate struct {
	OrderID int64
	IsPaid  bool
}

type OrderBalance struct {
	OrderID   int64
	Total     decimal.Decimal
	Paid      decimal.Decimal
	Remaining decimal.Decimal
	IsPaid    bool
}

// Оплаты

type Payment struct {
	ID            int64
	OrderID       int64
	UserID        int64
	PaymentTypeID int64
	Amount        decimal.Decimal
	TransactionID *string
	CreatedAt     time.Time
}

type PaymentType struct {
	ID   int64
	Name string
	Slug string
}

// Выборка оплат для администратора

type PaymentFilter struct {
	UserID  int64
	OrderID int64
	Page    int
	PerPage int
}

type PaymentPage struct {
	Payments    []Payment
	CurrentPage int
	TotalPages  int
	PerPage     int
	Total       int
}
