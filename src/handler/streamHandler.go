package handler

import (
	"net/http"
	"strings"
	"time"

	"cfdpaper/src/marketdata"

	"github.com/gorilla/websocket"
	logger "github.com/sirupsen/logrus"
)

const streamWriteTimeout = 10 * time.Second

type eventSource interface {
	Subscribe() chan marketdata.Event
	Unsubscribe(ch chan marketdata.Event)
}

type tokenParser interface {
	ParseToken(token string) (string, error)
}

// StreamHandler upgrades to a websocket and pushes public quote events plus
// the caller's own position and account events. Browsers cannot set headers
// on the upgrade request, so the token may also come as ?token=.
type StreamHandler struct {
	events   eventSource
	tokens   tokenParser
	upgrader websocket.Upgrader
}

func NewStreamHandler(events eventSource, tokens tokenParser, allowedOrigin string) *StreamHandler {
	return &StreamHandler{
		events: events,
		tokens: tokens,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				origin := r.Header.Get("Origin")
				return allowedOrigin == "" || allowedOrigin == "*" || origin == "" || origin == allowedOrigin
			},
		},
	}
}

func (h *StreamHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	token := r.URL.Query().Get("token")
	if authz := r.Header.Get("Authorization"); token == "" && len(authz) > 7 && strings.EqualFold(authz[:7], "bearer ") {
		token = authz[7:]
	}
	userID, err := h.tokens.ParseToken(token)
	if err != nil {
		unauthorized(w)
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		logger.WithError(err).Warn("websocket upgrade failed")
		return
	}
	defer conn.Close()

	sub := h.events.Subscribe()
	defer h.events.Unsubscribe(sub)

	log := logger.WithField("user_id", userID)
	log.Debug("stream connected")

	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	for {
		select {
		case evt, open := <-sub:
			if !open {
				return
			}
			if evt.UserID != "" && evt.UserID != userID {
				continue
			}
			_ = conn.SetWriteDeadline(time.Now().Add(streamWriteTimeout))
			if err := conn.WriteJSON(evt); err != nil {
				log.WithError(err).Debug("stream write failed")
				return
			}
		case <-done:
			log.Debug("stream disconnected")
			return
		}
	}
}
