package handler

import (
	"context"
	"net/http"

	"cfdpaper/src/auth"
	"cfdpaper/src/model"
	"cfdpaper/src/trading"
)

type profileReader interface {
	GetByUserID(ctx context.Context, userID string) (*model.Profile, error)
}

func GetProfileHandler(repo profileReader, errs *ErrorWriter) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, ok := auth.UserIDFromContext(r.Context())
		if !ok {
			unauthorized(w)
			return
		}

		profile, err := repo.GetByUserID(r.Context(), userID)
		if err != nil {
			errs.Write(w, r, "profile_handler", err)
			return
		}
		if profile == nil {
			errs.Write(w, r, "profile_handler", trading.ErrProfileNotFound)
			return
		}
		writeJSON(w, http.StatusOK, profile)
	}
}
