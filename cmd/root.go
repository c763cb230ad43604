package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// Version is set at build time.
var Version = "dev"

var configPath string

var rootCmd = &cobra.Command{
	Use:   "dealerbot",
	Short: "dealerbot — WhatsApp sales agent for a used-car dealership",
	Long: "dealerbot runs a commercial WhatsApp chatbot: a Twilio webhook feeds a\n" +
		"bounded queue, a background worker drives an LLM sales agent over the car\n" +
		"catalog, financing plans and the dealership knowledge base, and replies go\n" +
		"back out through Twilio.",
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.Version = Version
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "Config file path (default ~/.dealerbot/config.json)")
}
