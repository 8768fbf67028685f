package main

import (
	"encoding/json"
	"os"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
)

var (
	leadsProfessionalID string
	leadsCustomerEmail  string
)

var leadsCmd = &cobra.Command{
	Use:   "leads",
	Short: "List leads for a professional or a customer",
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := cfg.Validate("match"); err != nil {
			return err
		}
		if (leadsProfessionalID == "") == (leadsCustomerEmail == "") {
			return eris.New("exactly one of --professional or --customer is required")
		}

		ctx := cmd.Context()
		env, err := initEnv(ctx)
		if err != nil {
			return err
		}
		defer env.Close()

		if err := env.Leads.Migrate(ctx); err != nil {
			return err
		}

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")

		if leadsProfessionalID != "" {
			entries, err := env.Leads.LeadsForProfessional(ctx, leadsProfessionalID)
			if err != nil {
				return err
			}
			return enc.Encode(entries)
		}

		leads, err := env.Leads.LeadsByCustomer(ctx, leadsCustomerEmail)
		if err != nil {
			return err
		}
		return enc.Encode(leads)
	},
}

func init() {
	leadsCmd.Flags().StringVar(&leadsProfessionalID, "professional", "", "professional id")
	leadsCmd.Flags().StringVar(&leadsCustomerEmail, "customer", "", "customer email")
	rootCmd.AddCommand(leadsCmd)
}
