package commands

import (
	"encoding/json"
	"fmt"
	"runtime"

	"github.com/leapstack-labs/leapentity/pkg/provider"
	"github.com/spf13/cobra"
)

// BuildInfo describes the running binary.
type BuildInfo struct {
	Version   string   `json:"version"`
	Commit    string   `json:"commit"`
	BuildDate string   `json:"build_date"`
	GoVersion string   `json:"go_version"`
	Providers []string `json:"providers"`
}

// NewVersionCommand creates the version command.
// It runs without a session, so it takes its own --json flag instead of --output.
func NewVersionCommand(info BuildInfo) *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Long:  `Display the LeapEntity build, Go runtime and the registered providers.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			info.GoVersion = runtime.Version()
			info.Providers = provider.ListProviders()
			w := cmd.OutOrStdout()
			if asJSON {
				enc := json.NewEncoder(w)
				enc.SetIndent("", "  ")
				return enc.Encode(info)
			}
			_, _ = fmt.Fprintf(w, "LeapEntity v%s (%s)\n", info.Version, info.GoVersion)
			_, _ = fmt.Fprintf(w, "commit %s, built %s\n", info.Commit, info.BuildDate)
			_, _ = fmt.Fprintf(w, "Providers: %v\n", info.Providers)
			return nil
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print build information as JSON")
	return cmd
}
