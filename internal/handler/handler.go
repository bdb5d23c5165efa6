package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/iurnickita/foodorder/internal/auth"
	"github.com/iurnickita/foodorder/internal/gzip"
	"github.com/iurnickita/foodorder/internal/handler/config"
	"github.com/iurnickita/foodorder/internal/logger"
	"github.com/iurnickita/foodorder/internal/model"
	"github.com/iurnickita/foodorder/internal/service"
	"github.com/iurnickita/foodorder/internal/settlement"
)

// Serve запускает HTTP-сервер и останавливает его по отмене ctx
func Serve(ctx context.Context, cfg config.Config, auth auth.Auth, service service.Service, zaplog *zap.Logger) error {
	h := newHandler(auth, service, zaplog)
	router := h.newRouter()

	srv := &http.Server{
		Addr:              cfg.ServerAddr,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		zaplog.Info("server started", zap.String("addr", cfg.ServerAddr))
		err := srv.ListenAndServe()
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer cancel()
		zaplog.Info("server shutting down")
		return srv.Shutdown(shutdownCtx)
	})

	return g.Wait()
}

type handler struct {
	auth    auth.Auth
	service service.Service
	zaplog  *zap.Logger
}

func newHandler(auth auth.Auth, service service.Service, zaplog *zap.Logger) *handler {
	return &handler{
		auth:    auth,
		service: service,
		zaplog:  zaplog,
	}
}

func (h *handler) newRouter() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/health", gzip.GzipMiddleware(logger.RequestLogMdlw(h.GetHealth, h.zaplog)))
	mux.HandleFunc("POST /api/user/payments", gzip.GzipMiddleware(logger.RequestLogMdlw(h.auth.Middleware(h.PostPayment), h.zaplog)))
	mux.HandleFunc("GET /api/user/payment-types", gzip.GzipMiddleware(logger.RequestLogMdlw(h.auth.Middleware(h.GetPaymentTypes), h.zaplog)))
	mux.HandleFunc("GET /api/user/orders/{id}/balance", gzip.GzipMiddleware(logger.RequestLogMdlw(h.auth.Middleware(h.GetOrderBalance), h.zaplog)))
	mux.HandleFunc("GET /api/user/orders/{id}/payments", gzip.GzipMiddleware(logger.RequestLogMdlw(h.auth.Middleware(h.GetOrderPayments), h.zaplog)))
	mux.HandleFunc("GET /api/admin/payments", gzip.GzipMiddleware(logger.RequestLogMdlw(h.auth.AdminMiddleware(h.GetPayments), h.zaplog)))
	mux.HandleFunc("GET /api/admin/payments/{id}", gzip.GzipMiddleware(logger.RequestLogMdlw(h.auth.AdminMiddleware(h.GetPayment), h.zaplog)))

	return mux
}

// предел тела запроса оплаты
const maxPaymentBody = 4 << 10

type PostPaymentJSONRequest struct {
	OrderID       int64            `json:"order_id"`
	PaymentTypeID int64            `json:"payment_type_id"`
	TransactionID *string          `json:"transaction_id"`
	Amount        *decimal.Decimal `json:"amount"`
}

type PaymentJSONResponse struct {
	ID            int64     `json:"id"`
	OrderID       int64     `json:"order_id"`
	UserID        int64     `json:"user_id"`
	Amount        string    `json:"amount"`
	PaymentTypeID int64     `json:"payment_type_id"`
	TransactionID *string   `json:"transaction_id"`
	CreatedAt     time.Time `json:"created_at"`
}

func (h *handler) PostPayment(w http.ResponseWriter, r *http.Request) {
	var buf bytes.Buffer
	_, err := buf.ReadFrom(http.MaxBytesReader(w, r.Body, maxPaymentBody))
	if err != nil {
		var maxBytesErr *http.MaxBytesError
		if errors.As(err, &maxBytesErr) {
			h.writeMessage(w, http.StatusRequestEntityTooLarge, "request_too_large", "request body is too large")
			return
		}
		h.writeMessage(w, http.StatusBadRequest, "bad_request", "request body could not be read")
		return
	}

	var paymentJSON PostPaymentJSONRequest
	err = json.Unmarshal(buf.Bytes(), &paymentJSON)
	if err != nil {
		h.writeMessage(w, http.StatusBadRequest, "bad_request", "request body is not valid JSON")
		return
	}

	principal, _ := auth.PrincipalFrom(r.Context())

	payment, err := h.service.Settle(r.Context(), settlement.Request{
		OrderID:       paymentJSON.OrderID,
		PayerID:       principal.UserID,
		PaymentTypeID: paymentJSON.PaymentTypeID,
		TransactionID: paymentJSON.TransactionID,
		Amount:        paymentJSON.Amount,
	})
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	h.writeJSON(w, http.StatusCreated, map[string]any{
		"success": true,
		"message": "Payment created successfully",
		"data":    paymentOutput(payment),
	})
}

type PaymentTypeJSONResponse struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
	Slug string `json:"slug"`
}

func (h *handler) GetPaymentTypes(w http.ResponseWriter, r *http.Request) {
	paymentTypes, err := h.service.GetPaymentTypes(r.Context())
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	paymentTypesJSON := make([]PaymentTypeJSONResponse, 0, len(paymentTypes))
	for _, paymentType := range paymentTypes {
		paymentTypesJSON = append(paymentTypesJSON, PaymentTypeJSONResponse{
			ID:   paymentType.ID,
			Name: paymentType.Name,
			Slug: paymentType.Slug,
		})
	}
	h.writeJSON(w, http.StatusOK, map[string]any{"data": paymentTypesJSON})
}

type OrderBalanceJSONResponse struct {
	OrderID   int64  `json:"order_id"`
	Total     string `json:"total"`
	Paid      string `json:"paid"`
	Remaining string `json:"remaining"`
	IsPaid    bool   `json:"is_paid"`
}

func (h *handler) GetOrderBalance(w http.ResponseWriter, r *http.Request) {
	orderID, ok := h.pathID(w, r)
	if !ok {
		return
	}
	principal, _ := auth.PrincipalFrom(r.Context())

	balance, err := h.service.GetOrderBalance(r.Context(), principal.UserID, orderID)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	// переплата не показывается как отрицательный остаток
	remaining := decimal.Max(balance.Remaining, decimal.Zero)
	h.writeJSON(w, http.StatusOK, map[string]any{"data": OrderBalanceJSONResponse{
		OrderID:   balance.OrderID,
		Total:     moneyOutput(balance.Total),
		Paid:      moneyOutput(balance.Paid),
		Remaining: moneyOutput(remaining),
		IsPaid:    balance.IsPaid,
	}})
}

func (h *handler) GetOrderPayments(w http.ResponseWriter, r *http.Request) {
	orderID, ok := h.pathID(w, r)
	if !ok {
		return
	}
	principal, _ := auth.PrincipalFrom(r.Context())

	payments, err := h.service.GetOrderPayments(r.Context(), principal.UserID, orderID)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]any{"data": paymentsOutput(payments)})
}

type PageMetaJSONResponse struct {
	CurrentPage int `json:"current_page"`
	TotalPage   int `json:"total_page"`
	PerPage     int `json:"per_page"`
	Total       int `json:"total"`
}

func (h *handler) GetPayments(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	var filter model.PaymentFilter
	var fields []settlement.FieldError
	for _, param := range []struct {
		name string
		dest *int64
	}{
		{"user_id", &filter.UserID},
		{"order_id", &filter.OrderID},
	} {
		if value := query.Get(param.name); value != "" {
			n, err := strconv.ParseInt(value, 10, 64)
			if err != nil || n <= 0 {
				fields = append(fields, settlement.FieldError{Field: param.name, Rule: "integer", Message: param.name + " must be a positive integer"})
				continue
			}
			*param.dest = n
		}
	}
	for _, param := range []struct {
		name string
		dest *int
	}{
		{"page", &filter.Page},
		{"per_page", &filter.PerPage},
	} {
		if value := query.Get(param.name); value != "" {
			n, err := strconv.Atoi(value)
			if err != nil || n <= 0 {
				fields = append(fields, settlement.FieldError{Field: param.name, Rule: "integer", Message: param.name + " must be a positive integer"})
				continue
			}
			*param.dest = n
		}
	}
	if len(fields) > 0 {
		h.writeValidation(w, fields)
		return
	}

	page, err := h.service.ListPayments(r.Context(), filter)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]any{
		"data": paymentsOutput(page.Payments),
		"meta": PageMetaJSONResponse{
			CurrentPage: page.CurrentPage,
			TotalPage:   page.TotalPages,
			PerPage:     page.PerPage,
			Total:       page.Total,
		},
	})
}

func (h *handler) GetPayment(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r)
	if !ok {
		return
	}

	payment, err := h.service.GetPayment(r.Context(), id)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]any{"data": paymentOutput(payment)})
}

func (h *handler) GetHealth(w http.ResponseWriter, r *http.Request) {
	err := h.service.Ping(r.Context())
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]any{"status": "ok"})
}

func (h *handler) pathID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil || id <= 0 {
		h.writeValidation(w, []settlement.FieldError{{Field: "id", Rule: "integer", Message: "id must be a positive integer"}})
		return 0, false
	}
	return id, true
}

func paymentOutput(payment model.Payment) PaymentJSONResponse {
	return PaymentJSONResponse{
		ID:            payment.ID,
		OrderID:       payment.OrderID,
		UserID:        payment.UserID,
		Amount:        moneyOutput(payment.Amount),
		PaymentTypeID: payment.PaymentTypeID,
		TransactionID: payment.TransactionID,
		CreatedAt:     payment.CreatedAt,
	}
}

func paymentsOutput(payments []model.Payment) []PaymentJSONResponse {
	paymentsJSON := make([]PaymentJSONResponse, 0, len(payments))
	for _, payment := range payments {
		paymentsJSON = append(paymentsJSON, paymentOutput(payment))
	}
	return paymentsJSON
}

func moneyOutput(amount decimal.Decimal) string {
	return amount.StringFixed(2)
}
