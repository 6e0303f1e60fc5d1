package app

import (
	"context"
	"errors"
	"fmt"

	"family-quiz-service/internal/docstore"
	"family-quiz-service/internal/domain"
)

// Directory answers read-only questions about rooms for callers that are not
// part of a game, such as the join page.
type Directory struct {
	store RoomStore
}

func NewDirectory(store RoomStore) *Directory {
	return &Directory{store: store}
}

// Lookup returns a summary of the room with the given code.
func (d *Directory) Lookup(ctx context.Context, rawCode string) (domain.RoomSummary, error) {
	code, err := NormalizeRoomCode(rawCode)
	if err != nil {
		return domain.RoomSummary{}, err
	}
	if d.store == nil {
		return domain.RoomSummary{}, domain.ErrNotReady
	}
	snap, err := d.store.Get(ctx, RoomPath(code))
	if err != nil {
		return domain.RoomSummary{}, fmt.Errorf("load room %s: %w", code, err)
	}
	var room domain.Room
	if err := snap.Decode(&room); err != nil {
		if errors.Is(err, docstore.ErrNotFound) {
			return domain.RoomSummary{}, fmt.Errorf("room %s: %w", code, domain.ErrRoomNotFound)
		}
		return domain.RoomSummary{}, err
	}
	players, err := d.store.List(ctx, PlayersPath(code))
	if err != nil {
		return domain.RoomSummary{}, fmt.Errorf("list players of %s: %w", code, err)
	}
	return domain.RoomSummary{
		Code:          room.Code,
		Status:        room.Status,
		PlayerCount:   len(players),
		QuestionCount: len(room.Questions),
	}, nil
}
