package http

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"net/url"
	"strings"

	"family-quiz-service/internal/app"
	"family-quiz-service/internal/domain"
	"github.com/julienschmidt/httprouter"
	"github.com/skip2/go-qrcode"
)

const qrSize = 320


// RoomsHandler serves room lookups and join-link QR codes for the lobby screen.
type RoomsHandler struct {
	directory *app.Directory
	publicURL string
}

// NewRoomsHandler builds join links against publicURL, the front end that
// serves the join screen. With no publicURL, lookups omit the link and QR
// codes are unavailable.
func NewRoomsHandler(directory *app.Directory, publicURL string) *RoomsHandler {
	return &RoomsHandler{directory: directory, publicURL: strings.TrimSuffix(publicURL, "/")}
}

type roomResponse struct {
	domain.RoomSummary
	JoinURL string `json:"joinUrl,omitempty"`
}

// Lookup writes the summary of the room named by the :code parameter.
func (h *RoomsHandler) Lookup(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	summary, err := h.directory.Lookup(r.Context(), ps.ByName("code"))
	if err != nil {
		writeError(w, err)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(roomResponse{
		RoomSummary: summary,
		JoinURL:     h.joinURL(summary.Code),
	})
}

// QR writes a PNG QR code of the room's join link.
func (h *RoomsHandler) QR(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	if h.publicURL == "" {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusNotFound)
		_ = json.NewEncoder(w).Encode(errorPayload{
			Kind:    "join_link_unavailable",
			Message: "Join links need server.publicURL to be configured.",
		})
		return
	}
	summary, err := h.directory.Lookup(r.Context(), ps.ByName("code"))
	if err != nil {
		writeError(w, err)
		return
	}
	png, err := qrcode.Encode(h.joinURL(summary.Code), qrcode.Medium, qrSize)
	if err != nil {
		log.Printf("qr generation failed for %s: %v", summary.Code, err)
		http.Error(w, "qr generation failed", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "image/png")
	_, _ = w.Write(png)
}

func (h *RoomsHandler) joinURL(code string) string {
	if h.publicURL == "" {
		return ""
	}
	return h.publicURL + "/?room=" + url.QueryEscape(code)
}

func writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, domain.ErrInvalidInput):
		status = http.StatusBadRequest
	case errors.Is(err, domain.ErrRoomNotFound):
		status = http.StatusNotFound
	case errors.Is(err, domain.ErrNotReady), errors.Is(err, domain.ErrUnavailable):
		status = http.StatusServiceUnavailable
	default:
		log.Printf("room lookup failed: %v", err)
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(errorPayload{
		Kind:    domain.KindOf(err),
		Message: domain.UserMessage(err, http.StatusText(status)),
	})
}
