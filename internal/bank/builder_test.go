package bank

import (
	"context"
	"errors"
	"math/rand"
	"sort"
	"testing"
)

func TestBuildQuestionSetUsesCatalogOrder(t *testing.T) {
	b := NewBuilderWithRand(NewStaticLoader(DefaultPrompts()), 20, rand.New(rand.NewSource(1)))

	questions, err := b.BuildQuestionSet(context.Background())
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	if len(questions) != 20 {
		t.Fatalf("expected 20 questions, got %d", len(questions))
	}
	if questions[0].ID != "q1" || questions[19].ID != "q20" {
		t.Fatalf("unexpected ids %s..%s", questions[0].ID, questions[19].ID)
	}
	if questions[0].PromptPrefix != "why is the moon" {
		t.Fatalf("expected catalog order, got %q", questions[0].PromptPrefix)
	}

	for _, q := range questions {
		if len(q.Options) != 5 {
			t.Fatalf("%s: expected 5 options, got %v", q.ID, q.Options)
		}
		found := 0
		for _, opt := range q.Options {
			if opt == q.CorrectCompletion {
				found++
			}
		}
		if found != 1 {
			t.Fatalf("%s: correct completion appears %d times", q.ID, found)
		}
	}
}

func TestBuildQuestionSetOptionsArePermutation(t *testing.T) {
	prompts := []Prompt{{Prefix: "why do cats", Correct: "stare", Decoys: []string{"nap", "purr", "hide"}}}
	b := NewBuilderWithRand(NewStaticLoader(prompts), 1, rand.New(rand.NewSource(7)))

	questions, err := b.BuildQuestionSet(context.Background())
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	got := append([]string(nil), questions[0].Options...)
	sort.Strings(got)
	want := []string{"hide", "nap", "purr", "stare"}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("expected options %v, got %v", want, got)
		}
	}
}

func TestBuildQuestionSetDedupesDecoys(t *testing.T) {
	prompts := []Prompt{{Prefix: "how do I", Correct: "fold a sheet", Decoys: []string{"fold a sheet", "clean", "clean", " "}}}
	b := NewBuilderWithRand(NewStaticLoader(prompts), 5, rand.New(rand.NewSource(3)))

	questions, err := b.BuildQuestionSet(context.Background())
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	if len(questions) != 1 {
		t.Fatalf("expected 1 question, got %d", len(questions))
	}
	if len(questions[0].Options) != 2 {
		t.Fatalf("expected correct plus one decoy, got %v", questions[0].Options)
	}
}

func TestBuildQuestionSetCapsCount(t *testing.T) {
	b := NewBuilderWithRand(NewStaticLoader(DefaultPrompts()), 3, rand.New(rand.NewSource(1)))

	questions, err := b.BuildQuestionSet(context.Background())
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	if len(questions) != 3 || questions[2].ID != "q3" {
		t.Fatalf("expected q1..q3, got %d questions", len(questions))
	}
}

func TestBuildQuestionSetEmptyCatalog(t *testing.T) {
	b := NewBuilder(NewStaticLoader(nil), 5)
	if _, err := b.BuildQuestionSet(context.Background()); !errors.Is(err, ErrEmptyCatalog) {
		t.Fatalf("expected empty catalog error, got %v", err)
	}

	blank := NewBuilder(NewStaticLoader([]Prompt{{Prefix: " ", Correct: "x"}}), 5)
	if _, err := blank.BuildQuestionSet(context.Background()); !errors.Is(err, ErrEmptyCatalog) {
		t.Fatalf("expected empty catalog error for blank prompts, got %v", err)
	}
}
