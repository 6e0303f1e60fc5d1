package app

import (
	"context"
	"time"

	"family-quiz-service/internal/docstore"
	"family-quiz-service/internal/domain"
)

// RoomStore abstracts the shared document store rooms live in (in-memory, Redis, etc).
// Watch channels deliver the full current snapshot on every change and are
// closed by the returned cancel function.
type RoomStore interface {
	Ping(ctx context.Context) error
	Get(ctx context.Context, path string) (docstore.Snapshot, error)
	List(ctx context.Context, collection string) ([]docstore.Snapshot, error)
	Set(ctx context.Context, path string, data docstore.Document, merge bool) error
	Update(ctx context.Context, path string, fields docstore.Document) error
	Batch(ctx context.Context, ops ...docstore.Op) error
	Watch(ctx context.Context, path string) (<-chan docstore.Snapshot, func(), error)
	WatchCollection(ctx context.Context, collection string) (<-chan docstore.CollectionSnapshot, func(), error)
}

// QuestionSource builds the ordered question set for a new room.
type QuestionSource interface {
	BuildQuestionSet(ctx context.Context) ([]domain.Question, error)
}

// IdentityProvider supplies the stable player id for a client session.
type IdentityProvider interface {
	GetOrCreateSessionID() string
}

// Config holds the timing knobs shared by every client of a deployment.
type Config struct {
	RoundDuration time.Duration
	TickInterval  time.Duration
	// RevealHold advances the room automatically once reveal has lasted this
	// long. Zero leaves advancing to the host.
	RevealHold time.Duration
}

const (
	DefaultRoundDuration = 25 * time.Second
	DefaultTickInterval  = 200 * time.Millisecond
)

// DefaultConfig returns the stock round timing.
func DefaultConfig() Config {
	return Config{
		RoundDuration: DefaultRoundDuration,
		TickInterval:  DefaultTickInterval,
	}
}

func (c Config) withDefaults() Config {
	if c.RoundDuration <= 0 {
		c.RoundDuration = DefaultRoundDuration
	}
	if c.TickInterval <= 0 {
		c.TickInterval = DefaultTickInterval
	}
	return c
}

// RoomPath is the document path of a room.
func RoomPath(code string) string {
	return docstore.Join("rooms", code)
}

// PlayersPath is the collection path holding a room's players.
func PlayersPath(code string) string {
	return docstore.Join("rooms", code, "players")
}

// PlayerPath is the document path of one player in a room.
func PlayerPath(code, playerID string) string {
	return docstore.Join("rooms", code, "players", playerID)
}
