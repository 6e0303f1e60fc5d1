package migrations

import (
	"context"

	"family-quiz-service/internal/bank"
	"github.com/uptrace/bun"
)

type promptRow struct {
	bun.BaseModel `bun:"table:prompts"`

	Position int      `bun:"position,pk"`
	Prefix   string   `bun:"prefix,notnull"`
	Correct  string   `bun:"correct,notnull"`
	Decoys   []string `bun:"decoys,type:jsonb,notnull"`
}

func init() {
	Migrations.MustRegister(
		func(ctx context.Context, db *bun.DB) error {
			prompts := bank.DefaultPrompts()
			rows := make([]promptRow, len(prompts))
			for i, p := range prompts {
				rows[i] = promptRow{
					Position: i + 1,
					Prefix:   p.Prefix,
					Correct:  p.Correct,
					Decoys:   p.Decoys,
				}
			}
			_, err := db.NewInsert().Model(&rows).On("CONFLICT (position) DO NOTHING").Exec(ctx)
			return err
		},
		func(ctx context.Context, db *bun.DB) error {
			_, err := db.NewDelete().Model((*promptRow)(nil)).Where("position <= ?", len(bank.DefaultPrompts())).Exec(ctx)
			return err
		},
	)
}
