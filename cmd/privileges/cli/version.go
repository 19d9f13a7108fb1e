package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"runtime"

	"github.com/spf13/cobra"

	"github.com/privileges-api/privileges/internal/openapi"
	"github.com/privileges-api/privileges/internal/token"
)

// buildInfo is what `privileges version` reports. The database fields come
// from the effective configuration and are empty when it does not load.
type buildInfo struct {
	Version     string `json:"version"`
	Commit      string `json:"commit"`
	Built       string `json:"built"`
	OpenAPI     string `json:"openapi"`
	TokenPrefix string `json:"token_prefix"`
	Driver      string `json:"database_driver,omitempty"`
	Environment string `json:"environment,omitempty"`
	GoVersion   string `json:"go_version"`
	Platform    string `json:"platform"`
}

func newVersionCmd(version, commit, date string) *cobra.Command {
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "version",
		Short: "Print version and build information",
		RunE: func(cmd *cobra.Command, args []string) error {
			info := buildInfo{
				Version:     version,
				Commit:      commit,
				Built:       date,
				OpenAPI:     openapi.OpenAPIVersion,
				TokenPrefix: token.Prefix,
				GoVersion:   runtime.Version(),
				Platform:    runtime.GOOS + "/" + runtime.GOARCH,
			}
			if settings, err := loadSettings(); err == nil {
				info.Driver = settings.Database.Driver
				info.Environment = settings.Environment
			}

			if jsonOutput {
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(info)
			}
			printBuildInfo(cmd.OutOrStdout(), info)
			return nil
		},
	}

	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output version info as JSON")

	return cmd
}

func printBuildInfo(w io.Writer, info buildInfo) {
	fmt.Fprintf(w, "privileges %s (%s, built %s)\n", info.Version, info.Commit, info.Built)
	fmt.Fprintf(w, "  openapi:   %s\n", info.OpenAPI)
	fmt.Fprintf(w, "  tokens:    %s...\n", info.TokenPrefix)
	if info.Driver != "" {
		fmt.Fprintf(w, "  database:  %s (%s)\n", info.Driver, info.Environment)
	}
	fmt.Fprintf(w, "  runtime:   %s %s\n", info.GoVersion, info.Platform)
}
