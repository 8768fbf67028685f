package main

import (
	"encoding/json"
	"os"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/buildquote/leadmatch/internal/model"
)

var (
	matchZIP        string
	matchCategories []string
	matchName       string
	matchEmail      string
	matchPhone      string
	matchDetails    string
	matchBudget     float64
	matchTimeline   string
	matchJSONFile   string
)

var matchCmd = &cobra.Command{
	Use:   "match",
	Short: "Match a single lead against the registry",
	Long:  "Runs the matching pipeline for one lead given by flags or a JSON file, prints the result, and persists it.",
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := cfg.Validate("match"); err != nil {
			return err
		}

		ctx := cmd.Context()
		env, err := initEnv(ctx)
		if err != nil {
			return err
		}
		defer env.Close()

		if err := env.Registry.Migrate(ctx); err != nil {
			return err
		}
		if err := env.Leads.Migrate(ctx); err != nil {
			return err
		}

		lead, err := leadFromFlags()
		if err != nil {
			return err
		}

		outcome, err := env.Engine.Match(ctx, lead)
		if err != nil {
			return err
		}

		if outcome.Degraded() {
			for _, d := range outcome.Degradations {
				zap.L().Warn("match degraded",
					zap.String("component", d.Component),
					zap.String("reason", string(d.Reason)),
				)
			}
		}

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(map[string]any{"lead": lead, "result": outcome.Result})
	},
}

func leadFromFlags() (*model.LeadRequest, error) {
	if matchJSONFile != "" {
		data, err := os.ReadFile(matchJSONFile)
		if err != nil {
			return nil, eris.Wrap(err, "read lead file")
		}
		var lead model.LeadRequest
		if err := json.Unmarshal(data, &lead); err != nil {
			return nil, eris.Wrap(err, "parse lead file")
		}
		return &lead, nil
	}

	return &model.LeadRequest{
		Name:            matchName,
		Email:           matchEmail,
		Phone:           matchPhone,
		ZIP:             matchZIP,
		Categories:      matchCategories,
		ProjectDetails:  matchDetails,
		BudgetUSD:       matchBudget,
		Timeline:        matchTimeline,
		IsLookingForPro: true,
	}, nil
}

func init() {
	matchCmd.Flags().StringVar(&matchZIP, "zip", "", "lead ZIP code")
	matchCmd.Flags().StringSliceVar(&matchCategories, "category", nil, "requested categories (repeatable)")
	matchCmd.Flags().StringVar(&matchName, "name", "", "customer name")
	matchCmd.Flags().StringVar(&matchEmail, "email", "", "customer email")
	matchCmd.Flags().StringVar(&matchPhone, "phone", "", "customer phone")
	matchCmd.Flags().StringVar(&matchDetails, "details", "", "project details")
	matchCmd.Flags().Float64Var(&matchBudget, "budget", 0, "project budget in USD")
	matchCmd.Flags().StringVar(&matchTimeline, "timeline", "", "project timeline")
	matchCmd.Flags().StringVar(&matchJSONFile, "file", "", "JSON file with the full lead (overrides flags)")
	rootCmd.AddCommand(matchCmd)
}
