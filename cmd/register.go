package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/buildquote/leadmatch/internal/model"
)

var (
	registerRole     string
	registerEmail    string
	registerName     string
	registerBusiness string
	registerZIP      string
	registerRadius   float64
	registerCats     []string
	registerRating   float64
)

var registerCmd = &cobra.Command{
	Use:   "register",
	Short: "Register a professional",
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

		p := &model.Profile{
			Email:              registerEmail,
			DisplayName:        registerName,
			BusinessName:       registerBusiness,
			Role:               model.Role(registerRole),
			ZIP:                registerZIP,
			ServiceRadiusMiles: registerRadius,
			Rating:             registerRating,
		}
		p.SetCategories(registerCats)

		id, err := env.Registry.Register(ctx, p)
		if err != nil {
			return err
		}

		fmt.Printf("registered %s %s (%s) id=%s geohash=%s\n",
			registerRole, registerName, registerZIP, id, p.Geohash)
		return nil
	},
}

func init() {
	registerCmd.Flags().StringVar(&registerRole, "role", "vendor", "professional role: vendor or trade")
	registerCmd.Flags().StringVar(&registerEmail, "email", "", "contact email")
	registerCmd.Flags().StringVar(&registerName, "name", "", "display name")
	registerCmd.Flags().StringVar(&registerBusiness, "business", "", "business name")
	registerCmd.Flags().StringVar(&registerZIP, "zip", "", "business ZIP code")
	registerCmd.Flags().Float64Var(&registerRadius, "radius", 0, "service radius in miles (default 50)")
	registerCmd.Flags().StringSliceVar(&registerCats, "category", nil, "offered categories (repeatable)")
	registerCmd.Flags().Float64Var(&registerRating, "rating", 0, "initial rating")
	rootCmd.AddCommand(registerCmd)
}
