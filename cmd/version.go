package cmd

import (
	"encoding/json"
	"fmt"

	"github.com/conneroisu/devserve/internal/version"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Show version information",
	Long: `Display the devserve version, commit, build time, Go version and platform.

Examples:
  devserve version               # Short version
  devserve version --detailed    # Every build field
  devserve version --format json # Machine-readable`,
	RunE: runVersion,
}

func init() {
	rootCmd.AddCommand(versionCmd)

	versionCmd.Flags().StringP("format", "f", "text", "Output format (text, json, yaml)")
	versionCmd.Flags().Bool("detailed", false, "Show detailed version information")
}

func runVersion(cmd *cobra.Command, args []string) error {
	format, _ := cmd.Flags().GetString("format")
	detailed, _ := cmd.Flags().GetBool("detailed")
	info := version.Get()
	out := cmd.OutOrStdout()

	switch format {
	case "json":
		encoder := json.NewEncoder(out)
		encoder.SetIndent("", "  ")
		return encoder.Encode(info)
	case "yaml":
		encoder := yaml.NewEncoder(out)
		defer encoder.Close()
		return encoder.Encode(info)
	case "text":
		if detailed {
			_, err := fmt.Fprintln(out, info.Detailed())
			return err
		}
		_, err := fmt.Fprintln(out, "devserve", info.Short())
		return err
	default:
		return fmt.Errorf("unsupported format: %s (supported: text, json, yaml)", format)
	}
}
