package commands

import (
	"fmt"
	"os"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/momentics/hioload-jobs/control"
)

const cliExecutable = "jobbench"

type managerKey struct{}

// NewCommand constructs the top-level jobbench command, loading
// configuration and setting up logging before any subcommand runs.
func NewCommand() *cobra.Command {
	var (
		configFile     string
		verbosityCount int
		verbose        bool
	)

	cmd := &cobra.Command{
		Use:   cliExecutable,
		Short: "Run synthetic workloads against the hioload-jobs scheduler",
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			mgr := control.NewManager()
			if err := mgr.Load(cmd.Flags(), configFile); err != nil {
				return fmt.Errorf("load configuration: %w", err)
			}
			cfg := mgr.Get()

			logger, err := control.NewLogger(cfg.Log, os.Stderr)
			if err != nil {
				return err
			}
			log.Logger = logger

			// --verbose wins; otherwise -v raises the configured level.
			switch {
			case verbose || verbosityCount >= 2:
				zerolog.SetGlobalLevel(zerolog.DebugLevel)
			case verbosityCount == 1:
				zerolog.SetGlobalLevel(zerolog.InfoLevel)
			}

			cmd.SetContext(withManager(cmd.Context(), mgr))
			return nil
		},
	}
	cmd.SilenceUsage = true

	cmd.PersistentFlags().StringVarP(&configFile, "config", "c", "", "Configuration file path (YAML)")
	cmd.PersistentFlags().CountVarP(&verbosityCount, "verbosity", "v", "Increase logging verbosity (repeatable)")
	cmd.PersistentFlags().BoolVar(&verbose, "verbose", false, "Enable debug logging")
	control.BindFlags(cmd.PersistentFlags())

	cmd.AddCommand(newRunCommand())
	cmd.AddCommand(newConfigCommand())
	return cmd
}
