package docstore

import (
	"errors"
	"testing"
)

func TestUpdateDottedPathsAndSentinels(t *testing.T) {
	current := Snapshot{Path: "rooms/A/players/p1", Exists: true, Data: MustEncode(map[string]any{
		"score":   1000,
		"answers": map[string]any{"0": map[string]any{"scored": false}},
	})}

	next, err := Apply(current, Update(current.Path, Document{
		"score":             Increment(250),
		"answers.0.scored":  true,
		"answers.1.elapsed": 40,
	}))
	if err != nil {
		t.Fatalf("update: %v", err)
	}

	var got struct {
		Score   int `json:"score"`
		Answers map[int]struct {
			Scored  bool `json:"scored"`
			Elapsed int  `json:"elapsed"`
		} `json:"answers"`
	}
	if err := next.Decode(&got); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if got.Score != 1250 {
		t.Fatalf("expected score 1250, got %d", got.Score)
	}
	if !got.Answers[0].Scored || got.Answers[1].Elapsed != 40 {
		t.Fatalf("unexpected answers %+v", got.Answers)
	}
	if current.Data["score"].(float64) != 1000 {
		t.Fatalf("apply mutated the input snapshot")
	}
}

func TestArrayUnionSkipsDuplicates(t *testing.T) {
	current := Snapshot{Path: "rooms/A", Exists: true, Data: Document{"scored": []any{float64(0)}}}
	next, err := Apply(current, Update(current.Path, Document{"scored": ArrayUnion{0, 1}}))
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	got := next.Data["scored"].([]any)
	if len(got) != 2 {
		t.Fatalf("expected [0 1], got %v", got)
	}
}

func TestCreateAndUpdateExistence(t *testing.T) {
	missing := Snapshot{Path: "rooms/A"}
	if _, err := Apply(missing, Update("rooms/A", Document{"a": 1})); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
	created, err := Apply(missing, Create("rooms/A", Document{"a": 1}))
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if _, err := Apply(created, Create("rooms/A", Document{"a": 2})); !errors.Is(err, ErrExists) {
		t.Fatalf("expected exists, got %v", err)
	}
}

func TestMergeKeepsOtherFields(t *testing.T) {
	current := Snapshot{Path: "p", Exists: true, Data: Document{"name": "Ann", "score": float64(1250)}}
	next, err := Apply(current, Merge("p", Document{"name": "Annie"}))
	if err != nil {
		t.Fatalf("merge: %v", err)
	}
	if next.Data["name"] != "Annie" || next.Data["score"] != float64(1250) {
		t.Fatalf("unexpected merge result %v", next.Data)
	}
}

func TestApplyBatchIsAllOrNothing(t *testing.T) {
	state := map[string]Snapshot{
		"rooms/A": {Path: "rooms/A", Exists: true, Data: Document{"n": float64(1)}},
	}
	errStop := errors.New("stop")

	_, err := ApplyBatch(state, []Op{
		Update("rooms/A", Document{"n": Increment(1)}),
		Check("rooms/A", func(Snapshot) error { return errStop }),
	})
	if !errors.Is(err, errStop) {
		t.Fatalf("expected guard error, got %v", err)
	}
	if state["rooms/A"].Data["n"] != float64(1) {
		t.Fatalf("state changed after failed batch: %v", state["rooms/A"].Data)
	}

	touched, err := ApplyBatch(state, []Op{
		Update("rooms/A", Document{"n": Increment(1)}),
		Check("rooms/A", func(s Snapshot) error {
			if s.Data["n"] != float64(2) {
				t.Fatalf("guard saw unstaged value %v", s.Data["n"])
			}
			return nil
		}),
		Delete("rooms/B"),
	})
	if err != nil {
		t.Fatalf("batch: %v", err)
	}
	if len(touched) != 2 {
		t.Fatalf("expected two written paths, got %v", touched)
	}
}

func TestPathHelpers(t *testing.T) {
	path := Join("rooms", "ABCDE", "players", "p1")
	if Parent(path) != "rooms/ABCDE/players" || ID(path) != "p1" {
		t.Fatalf("unexpected helpers for %s", path)
	}
}
