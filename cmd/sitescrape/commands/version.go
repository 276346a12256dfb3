package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/jmylchreest/sitescrape/internal/output"
	"github.com/jmylchreest/sitescrape/internal/version"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print build information",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		info := version.Get()
		formatStr, _ := cmd.Flags().GetString("format")
		if formatStr == "" || formatStr == "text" {
			_, err := fmt.Fprintln(cmd.OutOrStdout(), info.Full())
			return err
		}
		format, err := output.ParseFormat(formatStr)
		if err != nil {
			return err
		}
		return output.Encode(cmd.OutOrStdout(), format, info)
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
	versionCmd.Flags().String("format", "text", "output format: text, json, yaml")
}
