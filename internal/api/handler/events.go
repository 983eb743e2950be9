package handler

import (
	"net/http"

	"github.com/google/uuid"

	mw "github.com/kiranshivaraju/equiplens/internal/api/middleware"
)

// EventStream upgrades a request to a websocket carrying pipeline events.
type EventStream interface {
	ServeWS(w http.ResponseWriter, r *http.Request, owner uuid.UUID)
}

// NewEventsHandler returns an http.HandlerFunc for GET /api/v1/ws.
// Authenticated clients follow their own datasets; anonymous clients get
// the broadcast channel.
func NewEventsHandler(hub EventStream) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		owner, _ := mw.GetOwnerID(r)
		hub.ServeWS(w, r, owner)
	}
}
