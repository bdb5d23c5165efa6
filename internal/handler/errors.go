package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"go.uber.org/zap"

	"github.com/iurnickita/foodorder/internal/logger"
	"github.com/iurnickita/foodorder/internal/settlement"
)

type ErrorJSONResponse struct {
	Success bool                `json:"success"`
	Code    string              `json:"code"`
	Message string              `json:"message"`
	Errors  map[string][]string `json:"errors,omitempty"`
}

// Статус и текст ответа для каждого вида ошибки.
// Текст ошибки из хранилища клиенту не отдается.
var errorResponses = map[string]struct {
	status  int
	message string
}{
	settlement.CodeValidationFailed:   {http.StatusUnprocessableEntity, "Validation failed"},
	settlement.CodeNotFound:           {http.StatusNotFound, "Resource not found"},
	settlement.CodeUnauthorized:       {http.StatusForbidden, "This order belongs to another user"},
	settlement.CodeAlreadySettled:     {http.StatusConflict, "This order has already been fully paid"},
	settlement.CodeNoRemainingBalance: {http.StatusConflict, "This order has no remaining balance"},
	settlement.CodeDuplicateReference: {http.StatusConflict, "This transaction reference has already been used"},
	settlement.CodeTimeout:            {http.StatusServiceUnavailable, "The order is busy, try again later"},
	settlement.CodeStorageUnavailable: {http.StatusServiceUnavailable, "Service temporarily unavailable, try again later"},
	settlement.CodeInternal:           {http.StatusInternalServerError, "An error occurred while processing the request"},
}

func (h *handler) writeError(w http.ResponseWriter, r *http.Request, err error) {
	code := settlement.Code(err)
	response := errorResponses[code]

	body := ErrorJSONResponse{
		Code:    code,
		Message: response.message,
	}
	var validationErr *settlement.ValidationError
	if errors.As(err, &validationErr) {
		body.Errors = validationErr.FieldMessages()
	}

	if response.status >= http.StatusInternalServerError {
		fields := []zap.Field{
			zap.String("request_id", logger.RequestID(r.Context())),
			zap.String("code", code),
			zap.Error(err),
		}
		if errors.Is(err, context.Canceled) {
			h.zaplog.Info("request canceled by client", fields...)
		} else {
			h.zaplog.Error("request failed", fields...)
		}
	}
	if settlement.Retryable(err) {
		w.Header().Set("Retry-After", "1")
	}
	h.writeJSON(w, response.status, body)
}

func (h *handler) writeValidation(w http.ResponseWriter, fields []settlement.FieldError) {
	messages := make(map[string][]string, len(fields))
	for _, field := range fields {
		messages[field.Field] = append(messages[field.Field], field.Message)
	}
	h.writeJSON(w, http.StatusUnprocessableEntity, ErrorJSONResponse{
		Code:    settlement.CodeValidationFailed,
		Message: "Validation failed",
		Errors:  messages,
	})
}

func (h *handler) writeMessage(w http.ResponseWriter, status int, code string, message string) {
	h.writeJSON(w, status, ErrorJSONResponse{Code: code, Message: message})
}

func (h *handler) writeJSON(w http.ResponseWriter, status int, body any) {
	responseJSON, err := json.Marshal(body)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	w.Write(responseJSON)
}
