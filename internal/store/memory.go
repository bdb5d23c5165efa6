package store

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/iurnickita/foodorder/internal/model"
	"github.com/iurnickita/foodorder/internal/store/config"
)

var errAmountCheck = errors.New("payments amount check violated")

// memStore - хранилище в памяти для локального запуска и тестов.
// Блокировка строки заказа живет до конца транзакции, как SELECT ... FOR UPDATE.
// Изменения транзакции применяются целиком при фиксации.
type memStore struct {
	mu           sync.Mutex
	orders       map[int64]model.Order
	paymentTypes map[int64]model.PaymentType
	payments     []model.Payment
	lastID       struct{ order, paymentType, payment int64 }

	rowLocks    map[int64]chan struct{}
	lockTimeout time.Duration
}

func NewMemStore(cfg config.Config) Store {
	return &memStore{
		orders:       make(map[int64]model.Order),
		paymentTypes: make(map[int64]model.PaymentType),
		rowLocks:     make(map[int64]chan struct{}),
		lockTimeout:  cfg.LockTimeout,
	}
}

func (s *memStore) Ping(ctx context.Context) error {
	return ctx.Err()
}

func (s *memStore) Close() error {
	return nil
}

func (s *memStore) OrderGet(_ context.Context, id int64) (model.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	order, ok := s.orders[id]
	if !ok {
		return model.Order{}, ErrNoRows
	}
	return order, nil
}

func (s *memStore) OrderExists(_ context.Context, id int64) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, ok := s.orders[id]
	return ok, nil
}

func (s *memStore) OrderCreate(_ context.Context, order model.Order) (model.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.lastID.order++
	order.ID = s.lastID.order
	s.orders[order.ID] = order
	return order, nil
}

func (s *memStore) OrderBalance(_ context.Context, id int64) (model.OrderBalance, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	order, ok := s.orders[id]
	if !ok {
		return model.OrderBalance{}, ErrNoRows
	}
	paid := s.paymentSumLocked(id)
	return model.OrderBalance{
		OrderID:   order.ID,
		Total:     order.Total,
		Paid:      paid,
		Remaining: order.Total.Sub(paid),
		IsPaid:    order.IsPaid,
	}, nil
}

func (s *memStore) OrderPayments(_ context.Context, orderID int64) ([]model.Payment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var payments []model.Payment
	for _, payment := range s.payments {
		if payment.OrderID == orderID {
			payments = append(payments, payment)
		}
	}
	return payments, nil
}

func (s *memStore) PaymentTypeExists(_ context.Context, id int64) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, ok := s.paymentTypes[id]
	return ok, nil
}

func (s *memStore) PaymentTypeCreate(_ context.Context, paymentType model.PaymentType) (model.PaymentType, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, existing := range s.paymentTypes {
		if existing.Name == paymentType.Name {
			return model.PaymentType{}, ErrAlreadyExists
		}
	}
	s.lastID.paymentType++
	paymentType.ID = s.lastID.paymentType
	s.paymentTypes[paymentType.ID] = paymentType
	return paymentType, nil
}

func (s *memStore) PaymentTypeList(_ context.Context) ([]model.PaymentType, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	paymentTypes := make([]model.PaymentType, 0, len(s.paymentTypes))
	for _, paymentType := range s.paymentTypes {
		paymentTypes = append(paymentTypes, paymentType)
	}
	sort.Slice(paymentTypes, func(i, j int) bool { return paymentTypes[i].ID < paymentTypes[j].ID })
	return paymentTypes, nil
}

func (s *memStore) PaymentTransactionExists(_ context.Context, transactionID string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.transactionExistsLocked(transactionID), nil
}

func (s *memStore) PaymentGet(_ context.Context, id int64) (model.Payment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, payment := range s.payments {
		if payment.ID == id {
			return payment, nil
		}
	}
	return model.Payment{}, ErrNoRows
}

func (s *memStore) PaymentList(_ context.Context, filter model.PaymentFilter) (model.PaymentPage, error) {
	page, perPage, offset := pageBounds(filter)

	s.mu.Lock()
	var matched []model.Payment
	// от новых к старым
	for i := len(s.payments) - 1; i >= 0; i-- {
		payment := s.payments[i]
		if filter.UserID != 0 && payment.UserID != filter.UserID {
			continue
		}
		if filter.OrderID != 0 && payment.OrderID != filter.OrderID {
			continue
		}
		matched = append(matched, payment)
	}
	s.mu.Unlock()

	total := len(matched)
	var payments []model.Payment
	if offset < total {
		end := min(offset+perPage, total)
		payments = matched[offset:end]
	}

	return model.PaymentPage{
		Payments:    payments,
		CurrentPage: page,
		TotalPages:  totalPages(total, perPage),
		PerPage:     perPage,
		Total:       total,
	}, nil
}

func (s *memStore) InTx(ctx context.Context, fn func(tx Tx) error) error {
	tx := &memTx{
		store: s,
		paid:  make(map[int64]bool),
	}
	defer tx.release()

	err := fn(tx)
	if err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	return tx.commit()
}

func (s *memStore) paymentSumLocked(orderID int64) decimal.Decimal {
	sum := decimal.Zero
	for _, payment := range s.payments {
		if payment.OrderID == orderID {
			sum = sum.Add(payment.Amount)
		}
	}
	return sum
}

func (s *memStore) transactionExistsLocked(transactionID string) bool {
	for _, payment := range s.payments {
		if payment.TransactionID != nil && *payment.TransactionID == transactionID {
			return true
		}
	}
	return false
}

// lockRow ждет освобождения строки заказа не дольше lockTimeout
func (s *memStore) lockRow(ctx context.Context, orderID int64) error {
	s.mu.Lock()
	lock, ok := s.rowLocks[orderID]
	if !ok {
		lock = make(chan struct{}, 1)
		s.rowLocks[orderID] = lock
	}
	s.mu.Unlock()

	var timeout <-chan time.Time
	if s.lockTimeout > 0 {
		timer := time.NewTimer(s.lockTimeout)
		defer timer.Stop()
		timeout = timer.C
	}

	select {
	case lock <- struct{}{}:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-timeout:
		return ErrLockTimeout
	}
}

func (s *memStore) unlockRow(orderID int64) {
	s.mu.Lock()
	lock := s.rowLocks[orderID]
	s.mu.Unlock()
	<-lock
}

type memTx struct {
	store    *memStore
	locked   []int64
	payments []model.Payment
	paid     map[int64]bool
}

func (tx *memTx) OrderGetForUpdate(ctx context.Context, id int64) (model.Order, error) {
	if !tx.holds(id) {
		if err := tx.store.lockRow(ctx, id); err != nil {
			return model.Order{}, err
		}
		tx.locked = append(tx.locked, id)
	}

	order, err := tx.store.OrderGet(ctx, id)
	if err != nil {
		return model.Order{}, err
	}
	if isPaid, ok := tx.paid[id]; ok {
		order.IsPaid = isPaid
	}
	return order, nil
}

func (tx *memTx) PaymentSum(_ context.Context, orderID int64) (decimal.Decimal, error) {
	tx.store.mu.Lock()
	sum := tx.store.paymentSumLocked(orderID)
	tx.store.mu.Unlock()

	for _, payment := range tx.payments {
		if payment.OrderID == orderID {
			sum = sum.Add(payment.Amount)
		}
	}
	return sum, nil
}

func (tx *memTx) PaymentInsert(_ context.Context, payment model.Payment) (model.Payment, error) {
	if !payment.Amount.IsPositive() {
		return model.Payment{}, errAmountCheck
	}

	tx.store.mu.Lock()
	defer tx.store.mu.Unlock()

	if _, ok := tx.store.orders[payment.OrderID]; !ok {
		return model.Payment{}, ErrNoRows
	}
	if _, ok := tx.store.paymentTypes[payment.PaymentTypeID]; !ok {
		return model.Payment{}, ErrNoRows
	}
	if payment.TransactionID != nil {
		if tx.store.transactionExistsLocked(*payment.TransactionID) || tx.pendingTransaction(*payment.TransactionID) {
			return model.Payment{}, ErrAlreadyExists
		}
	}

	tx.store.lastID.payment++
	payment.ID = tx.store.lastID.payment
	payment.CreatedAt = time.Now().UTC()
	tx.payments = append(tx.payments, payment)
	return payment, nil
}

func (tx *memTx) OrderSetPaid(_ context.Context, update model.OrderPaidUpdate) error {
	tx.store.mu.Lock()
	_, ok := tx.store.orders[update.OrderID]
	tx.store.mu.Unlock()
	if !ok {
		return ErrNoRows
	}
	tx.paid[update.OrderID] = update.IsPaid
	return nil
}

func (tx *memTx) commit() error {
	tx.store.mu.Lock()
	defer tx.store.mu.Unlock()

	// ссылка могла быть записана параллельной транзакцией
	for _, payment := range tx.payments {
		if payment.TransactionID != nil && tx.store.transactionExistsLocked(*payment.TransactionID) {
			return ErrAlreadyExists
		}
	}

	tx.store.payments = append(tx.store.payments, tx.payments...)
	for orderID, isPaid := range tx.paid {
		order := tx.store.orders[orderID]
		order.IsPaid = isPaid
		tx.store.orders[orderID] = order
	}
	return nil
}

func (tx *memTx) release() {
	for _, orderID := range tx.locked {
		tx.store.unlockRow(orderID)
	}
	tx.locked = nil
}

func (tx *memTx) holds(orderID int64) bool {
	for _, id := range tx.locked {
		if id == orderID {
			return true
		}
	}
	return false
}

func (tx *memTx) pendingTransaction(transactionID string) bool {
	for _, payment := range tx.payments {
		if payment.TransactionID != nil && *payment.TransactionID == transactionID {
			return true
		}
	}
	return false
}
