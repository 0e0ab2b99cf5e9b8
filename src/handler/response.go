package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"runtime/debug"
	"strconv"

	"cfdpaper/src/auth"
	"cfdpaper/src/model"
	"cfdpaper/src/trading"

	logger "github.com/sirupsen/logrus"
)

const (
	defaultPageSize = 20
	maxPageSize     = 200
)

type errorResponse struct {
	Error    string   `json:"error"`
	Code     string   `json:"code"`
	Errors   []string `json:"errors,omitempty"`
	Warnings []string `json:"warnings,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		logger.WithError(err).Error("failed to encode response")
	}
}

func badRequest(w http.ResponseWriter, msg string) {
	writeJSON(w, http.StatusBadRequest, errorResponse{Error: msg, Code: trading.KindValidation.String()})
}

func unauthorized(w http.ResponseWriter) {
	writeJSON(w, http.StatusUnauthorized, errorResponse{Error: "Unauthorized", Code: trading.KindUnauthorized.String()})
}

type exceptionCreator interface {
	Create(ctx context.Context, exc *model.Exception) error
}

// ErrorWriter maps service errors to responses. Internal errors get a generic
// message and are persisted as exceptions.
type ErrorWriter struct {
	exceptions exceptionCreator
	service    string
}

func NewErrorWriter(exceptions exceptionCreator, service string) *ErrorWriter {
	return &ErrorWriter{exceptions: exceptions, service: service}
}

func (e *ErrorWriter) Write(w http.ResponseWriter, r *http.Request, module string, err error) {
	status := trading.StatusCode(err)
	kind := trading.KindOf(err)
	userID, _ := auth.UserIDFromContext(r.Context())

	log := logger.WithFields(map[string]interface{}{
		"module":  module,
		"method":  r.Method + " " + r.URL.Path,
		"user_id": userID,
		"status":  status,
	}).WithError(err)

	if status < http.StatusInternalServerError {
		log.Info("request rejected")
		writeJSON(w, status, errorResponse{Error: err.Error(), Code: kind.String()})
		return
	}

	log.Error("request failed")
	if e != nil && e.exceptions != nil {
		exc := &model.Exception{
			Service: e.service,
			Module:  module,
			Method:  r.Method + " " + r.URL.Path,
			UserID:  userID,
			Message: err.Error(),
			Stack:   string(debug.Stack()),
			Level:   "error",
		}
		if perr := e.exceptions.Create(context.WithoutCancel(r.Context()), exc); perr != nil {
			logger.WithError(perr).Error("failed to persist exception")
		}
	}
	writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "Internal Server Error", Code: kind.String()})
}

// parsePage reads page and pageSize query parameters.
func parsePage(r *http.Request) (limit, offset, page int, err error) {
	page = 1
	if pageParam := r.URL.Query().Get("page"); pageParam != "" {
		parsedPage, perr := strconv.Atoi(pageParam)
		if perr != nil || parsedPage <= 0 {
			return 0, 0, 0, errors.New("invalid page")
		}
		page = parsedPage
	}

	pageSize := defaultPageSize
	if sizeParam := r.URL.Query().Get("pageSize"); sizeParam != "" {
		parsedSize, perr := strconv.Atoi(sizeParam)
		if perr != nil || parsedSize <= 0 || parsedSize > maxPageSize {
			return 0, 0, 0, errors.New("invalid pageSize")
		}
		pageSize = parsedSize
	}

	return pageSize, (page - 1) * pageSize, page, nil
}
