package main

import (
	"fmt"

	"github.com/cruppstahl/ups"
	"github.com/spf13/cobra"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version of upsctl and the engine",
	Run: func(cmd *cobra.Command, args []string) {
		v := ups.GetVersionInfo()
		fmt.Fprintf(cmd.OutOrStdout(), "upsctl %s\nengine %d.%d.%d\n",
			v.Describe, v.Engine[0], v.Engine[1], v.Engine[2])
	},
}
