package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/varga-labs/sherpa-cli/internal/integrations"
	"github.com/varga-labs/sherpa-cli/internal/observability"
)

// newServicesCmd lists the integration connectors available to api_call steps.
func newServicesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "services",
		Short: "Lists the API integrations available to api_call steps",
		RunE: func(cmd *cobra.Command, args []string) error {
			registry := integrations.NewRegistry(observability.GetLogger())
			for _, service := range registry.Services() {
				fmt.Fprintln(cmd.OutOrStdout(), service)
			}
			return nil
		},
	}
}
