package httpapi

import (
	"net/http"
	"strconv"

	"github.com/gorilla/websocket"

	"github.com/familygrove/engine/internal/app/events"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// The API carries no cookies, so cross-origin reads are harmless.
	CheckOrigin: func(*http.Request) bool { return true },
}

// events serves the domain event stream. Plain GETs return the replay buffer;
// websocket upgrades stream events live, optionally filtered by account.
func (h *handler) events(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	accountID := r.URL.Query().Get("account_id")
	if !websocket.IsWebSocketUpgrade(r) {
		limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
		if limit <= 0 {
			limit = 50
		}
		if accountID != "" {
			writeJSON(w, http.StatusOK, h.app.Bus.RecentByAccount(accountID, limit))
			return
		}
		writeJSON(w, http.StatusOK, h.app.Bus.Recent(limit))
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.WithError(err).Warn("websocket upgrade failed")
		return
	}

	feed := make(chan events.Event, 64)
	var filter events.Filter
	if accountID != "" {
		filter = func(e events.Event) bool { return e.AccountID == accountID }
	}
	unsubscribe := h.app.Bus.SubscribeFiltered(filter, func(e events.Event) {
		select {
		case feed <- e:
		default:
			// Slow consumer; drop rather than block publishers.
		}
	})

	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	defer func() {
		unsubscribe()
		conn.Close()
	}()

	for {
		select {
		case <-done:
			return
		case <-r.Context().Done():
			return
		case event := <-feed:
			if err := conn.WriteJSON(event); err != nil {
				return
			}
		}
	}
}
