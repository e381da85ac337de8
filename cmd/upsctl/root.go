package main

import (
	"fmt"

	"github.com/cruppstahl/ups"
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "upsctl",
	Short: "inspect and maintain ups database files",
	Long: fmt.Sprintf(`upsctl (%s)

Prints information about ups environments, dumps their databases, runs
select queries on them and loads tab-separated data into them.`, ups.Version()),
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
		if err := bindFlags(cmd); err != nil {
			return err
		}
		return setupLogging()
	},
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.AddCommand(infoCmd)
	rootCmd.AddCommand(dumpCmd)
	rootCmd.AddCommand(loadCmd)
	rootCmd.AddCommand(queryCmd)
	rootCmd.AddCommand(versionCmd)

	rootCmd.PersistentFlags().String("log-level", "warn", "log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().String("log-format", "text", "log format (text, json)")
	rootCmd.PersistentFlags().Bool("in-memory", false, "use a fresh in-memory environment instead of the file")
}
