package handler

import (
	"context"
	"encoding/json"
	"net/http"

	"cfdpaper/src/auth"
	"cfdpaper/src/model"
	"cfdpaper/src/repository"
	"cfdpaper/src/trading"

	logger "github.com/sirupsen/logrus"
)

type positionCloser interface {
	ClosePosition(ctx context.Context, userID string, req trading.CloseRequest) (*trading.CloseResult, error)
}

type positionLister interface {
	ListOpen(ctx context.Context, filter repository.PositionFilter) ([]model.Position, error)
}

type closeResponse struct {
	Success bool `json:"success"`
	*trading.CloseResult
}

// ClosePositionHandler closes all or part of one of the caller's positions.
func ClosePositionHandler(closer positionCloser, errs *ErrorWriter) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, ok := auth.UserIDFromContext(r.Context())
		if !ok {
			unauthorized(w)
			return
		}

		var req trading.CloseRequest
		decoder := json.NewDecoder(r.Body)
		decoder.DisallowUnknownFields()
		if err := decoder.Decode(&req); err != nil {
			logger.WithError(err).Warn("invalid close payload")
			badRequest(w, "Invalid payload")
			return
		}
		if req.PositionID == 0 {
			badRequest(w, "position_id is required")
			return
		}

		result, err := closer.ClosePosition(r.Context(), userID, req)
		if err != nil {
			errs.Write(w, r, "positions_handler", err)
			return
		}
		writeJSON(w, http.StatusOK, closeResponse{Success: true, CloseResult: result})
	}
}

// ListPositionsHandler returns the caller's open positions.
func ListPositionsHandler(repo positionLister, errs *ErrorWriter) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, ok := auth.UserIDFromContext(r.Context())
		if !ok {
			unauthorized(w)
			return
		}

		filter := repository.PositionFilter{UserID: userID}
		if symbol := r.URL.Query().Get("symbol"); symbol != "" {
			filter.Symbols = []string{symbol}
		}

		positions, err := repo.ListOpen(r.Context(), filter)
		if err != nil {
			errs.Write(w, r, "positions_handler", err)
			return
		}
		if positions == nil {
			positions = []model.Position{}
		}
		writeJSON(w, http.StatusOK, map[string]interface{}{"positions": positions})
	}
}
