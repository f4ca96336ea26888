package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var (
	cfgPath string
	envFile string
)

var rootCmd = &cobra.Command{
	Use:   "tokenwatch",
	Short: "Watch newly launched tokens and alert Telegram on a symbol suffix",
	Long: `tokenwatch polls a new-token discovery feed, picks tokens whose symbol ends
with the configured suffix, and posts one Telegram alert per token.

Configuration is layered: built-in defaults, the optional --config file
(JSON or YAML), the --env-file, then the process environment
(MORALIS_API, TELEGRAM_TOKEN, CHAT_ID, PORT, CHECK_INTERVAL, ...).`,
	SilenceUsage: true,
	RunE:         runServe,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgPath, "config", "", "path to config file (.json, .yaml); optional")
	rootCmd.PersistentFlags().StringVar(&envFile, "env-file", ".env", "dotenv file loaded before reading the environment")

	rootCmd.AddCommand(configCmd)
	configCmd.AddCommand(configCheckCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "fatal:", err)
		os.Exit(1)
	}
}
