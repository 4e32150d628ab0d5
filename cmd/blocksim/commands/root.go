// Copyright (c) 2015 Western Digital Corporation or its affiliates. All rights reserved.
// SPDX-License-Identifier: MIT

// Package commands implements the blocksim CLI.
package commands

import (
	"flag"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

var cfgFile string

var rootCmd = &cobra.Command{
	Use:   "blocksim",
	Short: "Replicated block-storage simulator",
	Long: `blocksim drives a replicated block-storage simulation from a
deterministic event stream read on stdin, emitting the per-step head
action plan and completed-request report on stdout.

Use "blocksim run" to start a session.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute runs the root command, whose subcommands are attached in init.
// Called once from main.main.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "configuration file overriding run defaults (YAML/JSON/TOML via viper)")
	pflag.CommandLine.AddGoFlagSet(flag.CommandLine)
	rootCmd.AddCommand(runCmd)
	cobra.OnInitialize(initConfig)
}

func initConfig() {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.SetConfigName("blocksim")
		viper.AddConfigPath(".")
		viper.AddConfigPath("$HOME/.config/blocksim")
	}
	viper.SetEnvPrefix("BLOCKSIM")
	viper.AutomaticEnv()
	// A missing config file is not an error; every setting has a usable
	// default applied in run.go.
	_ = viper.ReadInConfig()
}
