// Package main is the planner command: offline totals, timelines, fill
// previews and conversions over a YAML/JSON plan document.
//
//	planner totals plans.yaml --group month --currency EUR
//	planner timeline plans.yaml --week-start monday
//	planner fill --start 2024-01-01 --end 2024-03-31 --pattern ramp_up --from 10 --to 40 --interval 10
//	planner convert 100 EUR USD --doc plans.yaml
package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var rootCmd = &cobra.Command{
	Use:           "planner",
	Short:         "Estimate totals and timeline layout from plan documents.",
	SilenceErrors: true,
	SilenceUsage:  true,
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.AddCommand(totalsCmd)
	rootCmd.AddCommand(timelineCmd)
	rootCmd.AddCommand(fillCmd)
	rootCmd.AddCommand(convertCmd)

	rootCmd.PersistentFlags().String("color", "yes", "Enable colored output (yes/no/true/false/1/0)")
	rootCmd.PersistentFlags().String("output", string(textOut), "Output format: text or json")
	rootCmd.PersistentFlags().String("config", "", "Path to config file")
	if err := viper.BindPFlags(rootCmd.PersistentFlags()); err != nil {
		fmt.Fprintf(os.Stderr, "Error binding flags: %v\n", err)
		os.Exit(1)
	}
}

// initConfig reads in config file and ENV variables if set.
func initConfig() {
	if configFile := viper.GetString("config"); configFile != "" {
		viper.SetConfigFile(configFile)
	} else {
		viper.SetConfigName(".planner")
		viper.SetConfigType("yaml")
		viper.AddConfigPath(".")
		viper.AddConfigPath("$HOME")
	}

	viper.SetEnvPrefix("PLANNER")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			fmt.Fprintf(os.Stderr, "Error reading config file: %v\n", err)
			os.Exit(1)
		}
	}
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "%s %v\n", errorLabel(useColors()), err)
		os.Exit(1)
	}
}
