package handler

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"cfdpaper/src/trading"

	logger "github.com/sirupsen/logrus"
)

type positionMarker interface {
	MarkToMarket(ctx context.Context, scope trading.Scope) (*trading.MarkResult, error)
}

type refreshResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
	*trading.MarkResult
}

// RefreshPositionsHandler runs mark-to-market for the cron caller. An empty
// body refreshes every open position.
func RefreshPositionsHandler(marker positionMarker, errs *ErrorWriter) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var scope trading.Scope
		if err := json.NewDecoder(r.Body).Decode(&scope); err != nil && !errors.Is(err, io.EOF) {
			logger.WithError(err).Warn("invalid refresh payload")
			badRequest(w, "Invalid payload")
			return
		}

		result, err := marker.MarkToMarket(r.Context(), scope)
		if err != nil {
			errs.Write(w, r, "refresh_handler", err)
			return
		}

		writeJSON(w, http.StatusOK, refreshResponse{
			Success:    true,
			Message:    fmt.Sprintf("%d positions updated", result.UpdatedCount),
			MarkResult: result,
		})
	}
}
