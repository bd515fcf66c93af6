package main

import (
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var version = "dev"

var rootCmd = &cobra.Command{
	Use:   "ratelimitd",
	Short: "GCRA rate-limiting daemon",
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the daemon version",
	RunE: func(cmd *cobra.Command, args []string) error {
		cmd.Println(version)
		return nil
	},
}

func init() {
	v := viper.New()
	v.SetEnvPrefix("RATELIMITD")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(newServeCmd(v))
}
