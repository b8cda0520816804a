package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var version = "dev"

var noColor bool

var rootCmd = &cobra.Command{
	Use:   "jarvis",
	Short: "Personal assistant with Telegram, LLM routing, and cloud storage sync",
	Long: `jarvis is a personal assistant server. It routes Telegram messages
through an LLM intent classifier to task, calendar, reminder, image,
document, knowledge, and conversational handlers, and keeps a knowledge
base in sync with Yandex Disk and iCloud Drive.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the jarvis version",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("jarvis version %s\n", version)
	},
}

func main() {
	rootCmd.PersistentFlags().BoolVar(&noColor, "no-color", false, "disable colored output")

	rootCmd.AddCommand(startCmd)
	rootCmd.AddCommand(stopCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(chatCmd)
	rootCmd.AddCommand(connectionsCmd)
	rootCmd.AddCommand(configCmd)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}
