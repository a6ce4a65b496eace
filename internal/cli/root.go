package cli

import (
	"cmp"
	"os"

	"github.com/spf13/cobra"

	"quiz-agent-service/internal/config"
)

var (
	port       string
	configPath string
)

// Execute runs the CLI.
func Execute() error {
	if err := config.LoadEnv(); err != nil {
		return err
	}
	return newRootCmd().Execute()
}

func newRootCmd() *cobra.Command {
	envConfig := cmp.Or(os.Getenv("CONFIG_PATH"), "config/config.yaml")

	cmd := &cobra.Command{
		Use:          "quiz-agent",
		Short:        "Conversational quiz service with model-backed intent, judging and generation",
		SilenceUsage: true,
	}

	cmd.PersistentFlags().StringVar(&port, "port", "", "port to listen on (overrides config and PORT)")
	cmd.PersistentFlags().StringVar(&configPath, "config", envConfig, "path to YAML config")
	cmd.AddCommand(NewStartCmd(&configPath, &port))
	cmd.AddCommand(NewMigrateCmd(&configPath))
	return cmd
}
