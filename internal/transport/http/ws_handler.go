package http

import (
	"encoding/json"
	"log"
	"net/http"
	"time"

	"family-quiz-service/internal/app"
	"family-quiz-service/internal/domain"
	"family-quiz-service/internal/identity"
	"github.com/gorilla/websocket"
)

// WSHandler runs one game client per websocket connection.
type WSHandler struct {
	store     app.RoomStore
	questions app.QuestionSource
	cfg       app.Config
	upgrader  websocket.Upgrader
}

func NewWSHandler(store app.RoomStore, questions app.QuestionSource, cfg app.Config) *WSHandler {
	return &WSHandler{
		store:     store,
		questions: questions,
		cfg:       cfg,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
	}
}

type inboundMessage struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

type createPayload struct {
	Name string `json:"name"`
}

type joinPayload struct {
	Code string `json:"code"`
	Name string `json:"name"`
}

type answerPayload struct {
	Answer string `json:"answer"`
}

type createdPayload struct {
	Code string `json:"code"`
}

type outboundMessage[T any] struct {
	Type    string `json:"type"`
	Payload T      `json:"payload"`
}

type errorPayload struct {
	Kind    string `json:"kind"`
	Message string `json:"message"`
}

func errorMessage(err error) outboundMessage[any] {
	return outboundMessage[any]{Type: "error", Payload: errorPayload{
		Kind:    domain.KindOf(err),
		Message: domain.UserMessage(err, "Something went wrong. Try again."),
	}}
}

// ServeWS upgrades the request and drives an app.Session from the client's
// messages. The player id is kept in a cookie so reconnects keep the same
// player. Optional room and name query parameters join a room right away.
func (h *WSHandler) ServeWS(w http.ResponseWriter, r *http.Request) {
	jar := newCookieStorage(r)
	ids := identity.NewProvider(jar)
	playerID := ids.GetOrCreateSessionID()

	conn, err := h.upgrader.Upgrade(w, r, jar.header)
	if err != nil {
		log.Printf("ws upgrade failed: %v", err)
		return
	}
	defer conn.Close()

	session := app.NewSession(h.store, h.questions, identity.Static(playerID), h.cfg)
	defer session.Close()

	updates, cancel := session.Subscribe()
	defer cancel()

	send := make(chan outboundMessage[any], 16)
	closeSignals := make(chan struct{})
	writerDone := make(chan struct{})
	updatesDone := make(chan struct{})

	go func() {
		defer close(writerDone)
		for msg := range send {
			_ = conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if err := conn.WriteJSON(msg); err != nil {
				log.Printf("ws write error: %v", err)
				return
			}
		}
	}()

	go func() {
		defer close(updatesDone)
		for {
			select {
			case view, ok := <-updates:
				if !ok {
					return
				}
				select {
				case send <- outboundMessage[any]{Type: "view", Payload: view}:
				case <-closeSignals:
					return
				}
			case <-closeSignals:
				return
			}
		}
	}()

	reply := func(msg outboundMessage[any]) {
		select {
		case send <- msg:
		case <-writerDone:
		}
	}

	query := r.URL.Query()
	if code := query.Get("room"); code != "" {
		if err := session.JoinRoom(r.Context(), code, query.Get("name")); err != nil {
			reply(errorMessage(err))
		}
	}

	for {
		var inbound inboundMessage
		if err := conn.ReadJSON(&inbound); err != nil {
			break
		}
		ctx := r.Context()
		switch inbound.Type {
		case "create":
			var payload createPayload
			if err := json.Unmarshal(inbound.Payload, &payload); err != nil {
				reply(errorMessage(domain.ErrInvalidInput))
				continue
			}
			code, err := session.CreateRoom(ctx, payload.Name)
			if err != nil {
				reply(errorMessage(err))
				continue
			}
			reply(outboundMessage[any]{Type: "created", Payload: createdPayload{Code: code}})
		case "join":
			var payload joinPayload
			if err := json.Unmarshal(inbound.Payload, &payload); err != nil {
				reply(errorMessage(domain.ErrInvalidInput))
				continue
			}
			if err := session.JoinRoom(ctx, payload.Code, payload.Name); err != nil {
				reply(errorMessage(err))
			}
		case "start":
			if err := session.StartGame(ctx); err != nil {
				reply(errorMessage(err))
			}
		case "advance":
			if err := session.AdvanceRound(ctx); err != nil {
				reply(errorMessage(err))
			}
		case "answer":
			var payload answerPayload
			if err := json.Unmarshal(inbound.Payload, &payload); err != nil {
				reply(errorMessage(domain.ErrInvalidInput))
				continue
			}
			answer, err := session.SubmitAnswer(ctx, payload.Answer)
			if err != nil {
				reply(errorMessage(err))
				continue
			}
			reply(outboundMessage[any]{Type: "answerSelected", Payload: answer})
		case "leave":
			if err := session.LeaveRoom(ctx); err != nil {
				reply(errorMessage(err))
			}
		default:
			reply(outboundMessage[any]{Type: "error", Payload: errorPayload{Kind: "unsupported", Message: "unsupported message type"}})
		}
	}

	close(closeSignals)
	<-updatesDone
	close(send)
	<-writerDone
}

// cookieStorage is identity.Storage over the request cookies. Values set are
// returned to the client as Set-Cookie headers on the upgrade response. The
// cookies carry no expiry, so the browser drops them when its session ends.
type cookieStorage struct {
	r      *http.Request
	header http.Header
}

func newCookieStorage(r *http.Request) *cookieStorage {
	return &cookieStorage{r: r, header: http.Header{}}
}

func (c *cookieStorage) Get(key string) (string, error) {
	cookie, err := c.r.Cookie(key)
	if err != nil || cookie.Value == "" {
		return "", identity.ErrNotStored
	}
	return cookie.Value, nil
}

func (c *cookieStorage) Set(key, value string) error {
	cookie := &http.Cookie{
		Name:     key,
		Value:    value,
		Path:     "/",
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	}
	c.header.Add("Set-Cookie", cookie.String())
	return nil
}
