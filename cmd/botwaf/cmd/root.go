// Package cmd provides the CLI commands for botwaf.
package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/wl4g-collab/botwaf-go/internal/config"
)

var cfgFile string

var rootCmd = &cobra.Command{
	Use:   "botwaf",
	Short: "botwaf - LLM-assisted web application firewall proxy",
	Long: `botwaf is a reverse-proxy web application firewall: it inspects every
request with a ModSecurity-compatible rule engine, blocks or masks
interventions per policy, forwards clean traffic upstream, and continuously
proposes and verifies new rules from an LLM fed by recent access traffic.

Quick start:
  1. Create a config file: botwaf.yaml
  2. Run: botwaf server

Configuration:
  Config is loaded from botwaf.yaml in the current directory, $HOME,
  or /etc/botwaf/.

  Environment variables can override config values with the BOTWAF__ prefix,
  "__" between nested keys and upper-snake-case names.
  Example: BOTWAF__SERVER__PORT=9090

Commands:
  server      Run the inspection proxy
  hash-key    Generate an argon2id hash for an admin bearer token
  version     Print version information`,
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig)
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: ./botwaf.yaml)")
}

func initConfig() {
	config.InitViper(cfgFile)
}
