package migrations

import (
	"context"
	_ "embed"

	"github.com/uptrace/bun"
	"github.com/uptrace/bun/migrate"
)

//go:embed 0001_create_assessments.sql
var createAssessmentsSQL string

var Migrations = migrate.NewMigrations()

func init() {
	Migrations.MustRegister(
		func(ctx context.Context, db *bun.DB) error {
			_, err := db.Exec(createAssessmentsSQL)
			return err
		},
		func(ctx context.Context, db *bun.DB) error {
			_, err := db.Exec(`
				DROP TABLE IF EXISTS attempt_answers;
				DROP TABLE IF EXISTS attempts;
				DROP TABLE IF EXISTS stage_rules;
				DROP TABLE IF EXISTS answer_options;
				DROP TABLE IF EXISTS answers;
				DROP TABLE IF EXISTS assignments;
				DROP TABLE IF EXISTS question_options;
				DROP TABLE IF EXISTS questions;
				DROP TABLE IF EXISTS questionnaires;
			`)
			return err
		},
	)
}
