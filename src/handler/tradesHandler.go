package handler

import (
	"context"
	"net/http"

	"cfdpaper/src/auth"
	"cfdpaper/src/model"
)

type tradeLister interface {
	ListByUser(ctx context.Context, userID string, limit int, offset int) ([]model.TradeHistory, error)
}

// ListTradesHandler pages through the caller's trade history, newest first.
func ListTradesHandler(repo tradeLister, errs *ErrorWriter) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, ok := auth.UserIDFromContext(r.Context())
		if !ok {
			unauthorized(w)
			return
		}

		limit, offset, page, err := parsePage(r)
		if err != nil {
			badRequest(w, err.Error())
			return
		}

		trades, err := repo.ListByUser(r.Context(), userID, limit, offset)
		if err != nil {
			errs.Write(w, r, "trades_handler", err)
			return
		}
		if trades == nil {
			trades = []model.TradeHistory{}
		}
		writeJSON(w, http.StatusOK, map[string]interface{}{
			"trades":    trades,
			"page":      page,
			"page_size": limit,
		})
	}
}
