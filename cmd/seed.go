package main

import (
	"context"
	"encoding/json"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/buildquote/leadmatch/internal/db"
	"github.com/buildquote/leadmatch/internal/model"
	"github.com/buildquote/leadmatch/internal/registry"
)

var seedCmd = &cobra.Command{
	Use:   "seed",
	Short: "Load the sample professional set into the configured backend",
	Long:  "Seeds the registry with the embedded fixture professionals. Idempotent on Postgres; on SQLite each run registers fresh profiles.",
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := cfg.Validate("seed"); err != nil {
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

		profiles, err := registry.FixtureProfiles(ctx, env.Resolver)
		if err != nil {
			return err
		}

		if env.Pool != nil {
			n, err := bulkSeedPostgres(ctx, env.Pool, profiles)
			if err != nil {
				return err
			}
			zap.L().Info("seeded professionals", zap.Int64("count", n), zap.String("driver", "postgres"))
			return nil
		}

		for i := range profiles {
			p := profiles[i]
			if _, err := env.Registry.Register(ctx, &p); err != nil {
				return eris.Wrapf(err, "seed profile %s", profiles[i].DisplayName)
			}
		}
		zap.L().Info("seeded professionals", zap.Int("count", len(profiles)), zap.String("driver", cfg.Store.Driver))
		return nil
	},
}

// bulkSeedPostgres upserts the fixture set keyed by its fixed ids, so
// re-seeding refreshes rather than duplicates.
func bulkSeedPostgres(ctx context.Context, pool db.Pool, profiles []model.Profile) (int64, error) {
	columns := []string{
		"id", "email", "display_name", "business_name", "role", "status", "zip",
		"latitude", "longitude", "geohash", "service_radius_miles", "categories",
		"rating", "review_count", "verified", "created_at", "last_active",
	}

	rows := make([][]any, 0, len(profiles))
	for _, p := range profiles {
		catsJSON, err := json.Marshal(p.Categories())
		if err != nil {
			return 0, eris.Wrap(err, "seed: marshal categories")
		}
		rows = append(rows, []any{
			p.ID, p.Email, p.DisplayName, p.BusinessName, string(p.Role), string(p.Status), p.ZIP,
			p.Location.Latitude, p.Location.Longitude, p.Geohash, p.ServiceRadiusMiles, string(catsJSON),
			p.Rating, p.ReviewCount, p.Verified, p.CreatedAt, p.LastActive,
		})
	}

	return db.BulkUpsert(ctx, pool, db.UpsertConfig{
		Table:        "professionals",
		Columns:      columns,
		ConflictKeys: []string{"id"},
	}, rows)
}

func init() {
	rootCmd.AddCommand(seedCmd)
}
