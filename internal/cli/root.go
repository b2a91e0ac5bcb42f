// Package cli implements reactionsctl, the offline admin tool for the JSON
// reaction data file.
package cli

import (
	"fmt"
	"os"

	"github.com/jonboulle/clockwork"
	"github.com/spf13/cobra"

	"github.com/pscheid92/likelovehate/internal/adapter/filestore"
	"github.com/pscheid92/likelovehate/internal/app"
	"github.com/pscheid92/likelovehate/internal/domain"
)

const AppName = "reactionsctl"

const defaultDataFile = "data/reactions.json"

func NewRootCmd(version string) *cobra.Command {
	cmd := &cobra.Command{
		Use:   AppName,
		Short: "Inspect, export and repair the reaction data file",
		Long: `reactionsctl works directly on the JSON document used by the file backend.
Stop the server before running repair; it rewrites the file.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}

	cmd.Version = version
	cmd.SetVersionTemplate(AppName + " version {{.Version}}\n")
	cmd.SetOut(os.Stdout)
	cmd.SetErr(os.Stderr)

	cmd.PersistentFlags().String("data-file", defaultDataFile, "path to reactions.json")
	cmd.PersistentFlags().Bool("json", false, "output in JSON format")

	cmd.AddCommand(
		NewExportCmd(),
		NewListCmd(),
		NewStatsCmd(),
		NewRepairCmd(),
	)

	return cmd
}

// Execute runs the root command with os.Args.
func Execute(version string) error {
	return NewRootCmd(version).Execute()
}

func openStore(cmd *cobra.Command) (*filestore.Store, error) {
	path, err := cmd.Flags().GetString("data-file")
	if err != nil {
		return nil, err
	}
	if _, err := os.Stat(path); err != nil {
		return nil, fmt.Errorf("data file %s: %w", path, err)
	}
	return filestore.Open(path, clockwork.NewRealClock(), nil)
}

func openService(cmd *cobra.Command) (*app.Service, error) {
	store, err := openStore(cmd)
	if err != nil {
		return nil, err
	}
	return app.NewService(store, domain.ReactionColors{}, false, nil), nil
}

func jsonOutput(cmd *cobra.Command) bool {
	asJSON, _ := cmd.Flags().GetBool("json")
	return asJSON
}
