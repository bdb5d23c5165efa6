package client

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/go-resty/resty/v2"
)

// JSON ответы foodorder

type Payment struct {
	ID            int64     `json:"id"`
	OrderID       int64     `json:"order_id"`
	UserID        int64     `json:"user_id"`
	Amount        string    `json:"amount"`
	PaymentTypeID int64     `json:"payment_type_id"`
	TransactionID *string   `json:"transaction_id"`
	CreatedAt     time.Time `json:"created_at"`
}

type PaymentType struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
	Slug string `json:"slug"`
}

type OrderBalance struct {
	OrderID   int64  `json:"order_id"`
	Total     string `json:"total"`
	Paid      string `json:"paid"`
	Remaining string `json:"remaining"`
	IsPaid    bool   `json:"is_paid"`
}

type PageMeta struct {
	CurrentPage int `json:"current_page"`
	TotalPage   int `json:"total_page"`
	PerPage     int `json:"per_page"`
	Total       int `json:"total"`
}

type PaymentsPage struct {
	Data []Payment `json:"data"`
	Meta PageMeta  `json:"meta"`
}

type SettleRequest struct {
	OrderID       int64   `json:"order_id"`
	PaymentTypeID int64   `json:"payment_type_id"`
	TransactionID *string `json:"transaction_id,omitempty"`
	Amount        *string `json:"amount,omitempty"`
}

type PaymentsQuery struct {
	UserID  int64
	OrderID int64
	Page    int
	PerPage int
}

// APIError - ответ сервиса с кодом ошибки
type APIError struct {
	Status  int                 `json:"-"`
	Code    string              `json:"code"`
	Message string              `json:"message"`
	Errors  map[string][]string `json:"errors"`
}

func (e *APIError) Error() string {
	return fmt.Sprintf("foodorder: %d %s: %s", e.Status, e.Code, e.Message)
}

type Client interface {
	Settle(ctx context.Context, req SettleRequest) (Payment, error)
	OrderBalance(ctx context.Context, orderID int64) (OrderBalance, error)
	OrderPayments(ctx context.Context, orderID int64) ([]Payment, error)
	PaymentTypes(ctx context.Context) ([]PaymentType, error)
	Payments(ctx context.Context, query PaymentsQuery) (PaymentsPage, error)
}

type client struct {
	rest *resty.Client
}

func NewClient(serviceAddr string, token string) Client {
	rest := resty.New().
		SetBaseURL(serviceAddr).
		SetHeader("Accept", "application/json").
		SetTimeout(30 * time.Second)
	if token != "" {
		rest.SetAuthToken(token)
	}
	return client{rest: rest}
}

func (client client) Settle(ctx context.Context, req SettleRequest) (Payment, error) {
	var answer struct {
		Data Payment `json:"data"`
	}
	err := client.do(ctx, http.MethodPost, "/api/user/payments", req, nil, http.StatusCreated, &answer)
	return answer.Data, err
}

func (client client) OrderBalance(ctx context.Context, orderID int64) (OrderBalance, error) {
	var answer struct {
		Data OrderBalance `json:"data"`
	}
	path := "/api/user/orders/" + strconv.FormatInt(orderID, 10) + "/balance"
	err := client.do(ctx, http.MethodGet, path, nil, nil, http.StatusOK, &answer)
	return answer.Data, err
}

func (client client) OrderPayments(ctx context.Context, orderID int64) ([]Payment, error) {
	var answer struct {
		Data []Payment `json:"data"`
	}
	path := "/api/user/orders/" + strconv.FormatInt(orderID, 10) + "/payments"
	err := client.do(ctx, http.MethodGet, path, nil, nil, http.StatusOK, &answer)
	return answer.Data, err
}

func (client client) PaymentTypes(ctx context.Context) ([]PaymentType, error) {
	var answer struct {
		Data []PaymentType `json:"data"`
	}
	err := client.do(ctx, http.MethodGet, "/api/user/payment-types", nil, nil, http.StatusOK, &answer)
	return answer.Data, err
}

func (client client) Payments(ctx context.Context, query PaymentsQuery) (PaymentsPage, error) {
	params := map[string]string{}
	if query.UserID != 0 {
		params["user_id"] = strconv.FormatInt(query.UserID, 10)
	}
	if query.OrderID != 0 {
		params["order_id"] = strconv.FormatInt(query.OrderID, 10)
	}
	if query.Page != 0 {
		params["page"] = strconv.Itoa(query.Page)
	}
	if query.PerPage != 0 {
		params["per_page"] = strconv.Itoa(query.PerPage)
	}

	var answer PaymentsPage
	err := client.do(ctx, http.MethodGet, "/api/admin/payments", nil, params, http.StatusOK, &answer)
	return answer, err
}

func (client client) do(ctx context.Context, method string, path string, body any, params map[string]string, wantStatus int, answer any) error {
	setreq := client.rest.R().SetContext(ctx)
	if body != nil {
		setreq.SetHeader("Content-Type", "application/json").SetBody(body)
	}
	if params != nil {
		setreq.SetQueryParams(params)
	}
	setresp, err := setreq.Execute(method, path)
	if err != nil {
		return err
	}

	if setresp.StatusCode() != wantStatus {
		apiErr := &APIError{Status: setresp.StatusCode()}
		if json.Unmarshal(setresp.Body(), apiErr) != nil || apiErr.Code == "" {
			apiErr.Code = "http_" + strconv.Itoa(setresp.StatusCode())
			apiErr.Message = http.StatusText(setresp.StatusCode())
		}
		return apiErr
	}
	return json.Unmarshal(setresp.Body(), answer)
}
