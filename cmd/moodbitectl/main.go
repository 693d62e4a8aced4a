package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var Version = "dev"

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	opts := &globalOptions{}

	rootCmd := &cobra.Command{
		Use:           "moodbitectl",
		Short:         "moodbitectl - drive the MoodBite diet and mood core from the shell",
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.PersistentFlags().StringVarP(&opts.userID, "user", "u", "", "user id the command acts on")
	rootCmd.PersistentFlags().BoolVar(&opts.json, "json", false, "output as JSON")
	rootCmd.PersistentFlags().BoolVarP(&opts.verbose, "verbose", "v", false, "log to stderr")

	// Add subcommands
	rootCmd.AddCommand(lookupCmd(opts))
	rootCmd.AddCommand(scanCmd(opts))
	rootCmd.AddCommand(listCmd(opts))
	rootCmd.AddCommand(deleteCmd(opts))
	rootCmd.AddCommand(moodCmd(opts))
	rootCmd.AddCommand(dashboardCmd(opts))
	rootCmd.AddCommand(seedCmd(opts))

	return rootCmd
}
