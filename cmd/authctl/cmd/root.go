package cmd

import (
	"context"
	"fmt"
	"os"

	"github.com/pilab-dev/shadow-auth/config"
	"github.com/pilab-dev/shadow-auth/log"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
)

var (
	appLogger log.Logger
	cfg       *config.ServerConfig
	verbose   bool
)

var rootCmd = &cobra.Command{
	Use:   "authctl",
	Short: "authctl manages panel accounts for shadow-auth",
	Long: `A command-line tool for the panel login service. It talks to the same
MongoDB and Redis the server uses, configured through auth.yaml or the
environment.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		level := zerolog.WarnLevel
		if verbose {
			level = zerolog.DebugLevel
		}
		appLogger = log.NewZerologAdapter(level, true)

		loaded, err := config.LoadConfig()
		if err != nil {
			appLogger.Error(cmd.Context(), "Failed to load configuration", err)
			return err
		}
		cfg = loaded
		return nil
	},
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.ExecuteContext(context.Background()); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")
	rootCmd.AddCommand(userCmd)
}
