// Package bank turns the prompt catalog into the question set of a new room.
package bank

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"strings"
	"sync"
	"time"

	"family-quiz-service/internal/domain"
)

// ErrEmptyCatalog is returned when the loader yields no usable prompts.
var ErrEmptyCatalog = errors.New("prompt catalog is empty")

// DefaultQuestionCount is the number of questions in a room.
const DefaultQuestionCount = 20

// Loader fetches the prompt catalog from a backing store.
type Loader interface {
	LoadPrompts(ctx context.Context) ([]Prompt, error)
}

// Builder implements app.QuestionSource on top of a Loader.
type Builder struct {
	loader Loader
	count  int

	mu  sync.Mutex
	rnd *rand.Rand
}

func NewBuilder(loader Loader, count int) *Builder {
	return NewBuilderWithRand(loader, count, rand.New(rand.NewSource(time.Now().UnixNano())))
}

// NewBuilderWithRand uses rnd for option shuffling, for deterministic tests.
func NewBuilderWithRand(loader Loader, count int, rnd *rand.Rand) *Builder {
	if count <= 0 {
		count = DefaultQuestionCount
	}
	return &Builder{loader: loader, count: count, rnd: rnd}
}

// BuildQuestionSet returns up to count questions in catalog order with ids
// q1..qN. Each question's options hold the correct completion plus its
// distinct decoys, shuffled.
func (b *Builder) BuildQuestionSet(ctx context.Context) ([]domain.Question, error) {
	prompts, err := b.loader.LoadPrompts(ctx)
	if err != nil {
		return nil, fmt.Errorf("load prompts: %w", err)
	}

	questions := make([]domain.Question, 0, b.count)
	for _, prompt := range prompts {
		if len(questions) == b.count {
			break
		}
		prefix := strings.TrimSpace(prompt.Prefix)
		correct := strings.TrimSpace(prompt.Correct)
		if prefix == "" || correct == "" {
			continue
		}
		questions = append(questions, domain.Question{
			ID:                fmt.Sprintf("q%d", len(questions)+1),
			PromptPrefix:      prefix,
			CorrectCompletion: correct,
			Options:           b.options(correct, prompt.Decoys),
		})
	}
	if len(questions) == 0 {
		return nil, ErrEmptyCatalog
	}
	return questions, nil
}

func (b *Builder) options(correct string, decoys []string) []string {
	options := []string{correct}
	seen := map[string]struct{}{correct: {}}
	for _, decoy := range decoys {
		decoy = strings.TrimSpace(decoy)
		if decoy == "" {
			continue
		}
		if _, dup := seen[decoy]; dup {
			continue
		}
		seen[decoy] = struct{}{}
		options = append(options, decoy)
	}

	b.mu.Lock()
	b.rnd.Shuffle(len(options), func(i, j int) {
		options[i], options[j] = options[j], options[i]
	})
	b.mu.Unlock()
	return options
}

// StaticLoader serves a fixed catalog.
type StaticLoader struct {
	prompts []Prompt
}

func NewStaticLoader(prompts []Prompt) *StaticLoader {
	return &StaticLoader{prompts: prompts}
}

func (l *StaticLoader) LoadPrompts(context.Context) ([]Prompt, error) {
	if len(l.prompts) == 0 {
		return nil, ErrEmptyCatalog
	}
	return append([]Prompt(nil), l.prompts...), nil
}
