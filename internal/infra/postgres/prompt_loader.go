package postgres

import (
	"context"
	"encoding/json"
	"fmt"

	"family-quiz-service/internal/bank"
	"github.com/jackc/pgx/v4/pgxpool"
)

// PromptLoader loads the prompt catalog from the prompts table in position order.
type PromptLoader struct {
	pool *pgxpool.Pool
}

func NewPromptLoader(pool *pgxpool.Pool) *PromptLoader {
	return &PromptLoader{pool: pool}
}

func (l *PromptLoader) LoadPrompts(ctx context.Context) ([]bank.Prompt, error) {
	rows, err := l.pool.Query(ctx, `SELECT prefix, correct, decoys FROM prompts ORDER BY position`)
	if err != nil {
		return nil, fmt.Errorf("load prompts: %w", err)
	}
	defer rows.Close()

	var prompts []bank.Prompt
	for rows.Next() {
		var (
			prompt bank.Prompt
			raw    []byte
		)
		if err := rows.Scan(&prompt.Prefix, &prompt.Correct, &raw); err != nil {
			return nil, fmt.Errorf("scan prompt: %w", err)
		}
		if err := json.Unmarshal(raw, &prompt.Decoys); err != nil {
			return nil, fmt.Errorf("unmarshal decoys for %q: %w", prompt.Prefix, err)
		}
		prompts = append(prompts, prompt)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("load prompts: %w", err)
	}
	if len(prompts) == 0 {
		return nil, bank.ErrEmptyCatalog
	}
	return prompts, nil
}
