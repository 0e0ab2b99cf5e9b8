package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"cfdpaper/src/auth"
	"cfdpaper/src/model"
	"cfdpaper/src/repository"
	"cfdpaper/src/trading"
	"cfdpaper/src/validation"

	"github.com/shopspring/decimal"
	logger "github.com/sirupsen/logrus"
)

type orderSearcher interface {
	Search(ctx context.Context, options repository.OrderSearchOptions) ([]model.Order, error)
}

type orderValidator interface {
	Validate(ctx context.Context, userID string, req trading.OrderRequest) (*validation.Result, error)
}

type orderExecutor interface {
	Replay(ctx context.Context, userID, clientOrderID string) (*trading.ExecutionResult, error)
	ExecuteOrder(ctx context.Context, userID string, req trading.OrderRequest) (*trading.ExecutionResult, error)
}

type orderResponse struct {
	Success        bool            `json:"success"`
	Order          model.Order     `json:"order"`
	Position       *model.Position `json:"position"`
	ExecutionPrice decimal.Decimal `json:"execution_price"`
	RequiredMargin decimal.Decimal `json:"required_margin"`
	Commission     decimal.Decimal `json:"commission"`
	Warnings       []string        `json:"warnings"`
	Replayed       bool            `json:"replayed"`
}

func decodeOrder(w http.ResponseWriter, r *http.Request) (trading.OrderRequest, bool) {
	var req trading.OrderRequest
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(&req); err != nil {
		logger.WithError(err).Warn("invalid order payload")
		badRequest(w, "Invalid payload")
		return req, false
	}
	return req, true
}

// SubmitOrderHandler validates and executes an order for the authenticated user.
// A known client_order_id replays the stored result without re-validating.
func SubmitOrderHandler(validator orderValidator, executor orderExecutor, errs *ErrorWriter) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, ok := auth.UserIDFromContext(r.Context())
		if !ok {
			unauthorized(w)
			return
		}

		req, ok := decodeOrder(w, r)
		if !ok {
			return
		}

		if strings.TrimSpace(req.ClientOrderID) != "" {
			replayed, err := executor.Replay(r.Context(), userID, req.ClientOrderID)
			if err != nil {
				errs.Write(w, r, "orders_handler", err)
				return
			}
			if replayed != nil {
				writeJSON(w, http.StatusOK, toOrderResponse(replayed, []string{}))
				return
			}
		}

		verdict, err := validator.Validate(r.Context(), userID, req)
		if err != nil {
			errs.Write(w, r, "orders_handler", err)
			return
		}
		if !verdict.IsValid {
			writeJSON(w, http.StatusBadRequest, errorResponse{
				Error:    verdict.Errors[0],
				Code:     trading.KindValidation.String(),
				Errors:   verdict.Errors,
				Warnings: verdict.Warnings,
			})
			return
		}

		result, err := executor.ExecuteOrder(r.Context(), userID, req)
		if err != nil {
			errs.Write(w, r, "orders_handler", err)
			return
		}
		writeJSON(w, http.StatusOK, toOrderResponse(result, verdict.Warnings))
	}
}

func toOrderResponse(result *trading.ExecutionResult, warnings []string) orderResponse {
	return orderResponse{
		Success:        true,
		Order:          result.Order,
		Position:       result.Position,
		ExecutionPrice: result.ExecutionPrice,
		RequiredMargin: result.RequiredMargin,
		Commission:     result.Commission,
		Warnings:       warnings,
		Replayed:       result.Replayed,
	}
}

// ValidateOrderHandler runs the pre-flight checks only.
func ValidateOrderHandler(validator orderValidator, errs *ErrorWriter) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, ok := auth.UserIDFromContext(r.Context())
		if !ok {
			unauthorized(w)
			return
		}

		req, ok := decodeOrder(w, r)
		if !ok {
			return
		}

		verdict, err := validator.Validate(r.Context(), userID, req)
		if err != nil {
			errs.Write(w, r, "orders_handler", err)
			return
		}
		writeJSON(w, http.StatusOK, verdict)
	}
}

// SearchOrdersHandler returns a handler that lists orders for the authenticated user.
// Supports pagination and filters (symbol, status, createdFrom, createdTo).
func SearchOrdersHandler(repo orderSearcher, errs *ErrorWriter) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, ok := auth.UserIDFromContext(r.Context())
		if !ok {
			unauthorized(w)
			return
		}

		var symbol *string
		if symbolParam := r.URL.Query().Get("symbol"); symbolParam != "" {
			upper := strings.ToUpper(symbolParam)
			symbol = &upper
		}

		var status *string
		if statusParam := r.URL.Query().Get("status"); statusParam != "" {
			status = &statusParam
		}

		var createdFrom, createdTo *time.Time
		if createdFromParam := r.URL.Query().Get("createdFrom"); createdFromParam != "" {
			parsed, err := time.Parse(time.RFC3339, createdFromParam)
			if err != nil {
				badRequest(w, "invalid createdFrom")
				return
			}
			createdFrom = &parsed
		}

		if createdToParam := r.URL.Query().Get("createdTo"); createdToParam != "" {
			parsed, err := time.Parse(time.RFC3339, createdToParam)
			if err != nil {
				badRequest(w, "invalid createdTo")
				return
			}
			createdTo = &parsed
		}

		limit, offset, page, err := parsePage(r)
		if err != nil {
			badRequest(w, err.Error())
			return
		}

		orders, err := repo.Search(r.Context(), repository.OrderSearchOptions{
			UserID:        userID,
			Symbol:        symbol,
			Status:        status,
			CreatedAfter:  createdFrom,
			CreatedBefore: createdTo,
			Limit:         limit,
			Offset:        offset,
		})
		if err != nil {
			errs.Write(w, r, "orders_handler", err)
			return
		}
		if orders == nil {
			orders = []model.Order{}
		}

		writeJSON(w, http.StatusOK, map[string]interface{}{
			"orders":    orders,
			"page":      page,
			"page_size": limit,
		})
	}
}

// DefaultSearchOrdersHandler wires the handler to the read replica repository.
func DefaultSearchOrdersHandler(errs *ErrorWriter) http.HandlerFunc {
	return SearchOrdersHandler(repository.NewOrderReadRepository(), errs)
}
