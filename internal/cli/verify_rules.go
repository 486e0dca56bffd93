package cli

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v4/pgxpool"
	"github.com/spf13/cobra"

	"elevate-assessment-service/internal/app"
	"elevate-assessment-service/internal/config"
	"elevate-assessment-service/internal/domain"
	pgstore "elevate-assessment-service/internal/infra/postgres"
)

const coverageEps = 0.001

// NewVerifyRulesCmd checks stage rule sets for coverage gaps over [0,100].
// Admins run it after editing rules; a gap means some score resolves to no
// stage at all.
func NewVerifyRulesCmd(configPath *string) *cobra.Command {
	var questionnaireID string
	cmd := &cobra.Command{
		Use:   "verify-rules",
		Short: "Report score ranges not covered by any stage rule",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runVerifyRules(cmd.Context(), *configPath, questionnaireID)
		},
	}
	cmd.Flags().StringVar(&questionnaireID, "questionnaire", "", "check a questionnaire's scoped rules instead of the global set")
	return cmd
}

func runVerifyRules(ctx context.Context, configPath, questionnaireID string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	if cfg.Postgres.URL == "" {
		return fmt.Errorf("postgres url not configured")
	}

	pool, err := pgxpool.Connect(ctx, cfg.Postgres.URL)
	if err != nil {
		return err
	}
	defer pool.Close()
	store := pgstore.NewStore(pool)

	var rules []domain.StageRule
	label := "global"
	if questionnaireID != "" {
		rules, err = store.RulesForQuestionnaire(ctx, questionnaireID)
		label = questionnaireID
	} else {
		rules, err = store.GlobalRules(ctx)
	}
	if err != nil {
		return err
	}

	if len(rules) == 0 {
		fmt.Printf("rule set %q is empty\n", label)
		return nil
	}

	gaps := app.CoverageGaps(rules, coverageEps)
	if len(gaps) == 0 {
		fmt.Printf("rule set %q covers [0,100] with no gaps (%d rules)\n", label, len(rules))
		return nil
	}
	for _, g := range gaps {
		fmt.Printf("rule set %q gap: (%.6g, %.6g)\n", label, g.From, g.To)
	}
	return fmt.Errorf("found %d coverage gap(s)", len(gaps))
}
