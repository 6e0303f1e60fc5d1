package http

import (
	"net/http"

	"family-quiz-service/internal/app"
	"github.com/julienschmidt/httprouter"
)

// NewRouter wires the websocket endpoint, room lookups and the health check.
func NewRouter(store app.RoomStore, ws *WSHandler, rooms *RoomsHandler) *httprouter.Router {
	router := httprouter.New()
	router.GET("/healthz", func(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		if err := store.Ping(r.Context()); err != nil {
			http.Error(w, "store unavailable", http.StatusServiceUnavailable)
			return
		}
		_, _ = w.Write([]byte("ok"))
	})
	router.HandlerFunc(http.MethodGet, "/ws", ws.ServeWS)
	router.GET("/rooms/:code", rooms.Lookup)
	router.GET("/rooms/:code/qr", rooms.QR)
	return router
}
