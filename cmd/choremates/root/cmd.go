// Package rootcmd wires the root cobra.Command for the choremates CLI.
package rootcmd

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/spf13/cobra"

	"github.com/mmynk/choremates/internal/app"
	"github.com/mmynk/choremates/internal/config"
	"github.com/mmynk/choremates/internal/service"
	"github.com/mmynk/choremates/internal/storage/supabase"
	"github.com/mmynk/choremates/pkg/logging"
)

// New creates the root command. Settings come from CHOREMATES_* variables.
func New() *cobra.Command {
	root := &cobra.Command{
		Use:           "choremates",
		Short:         "Household chore sharing backend",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE:          func(cmd *cobra.Command, _ []string) error { return cmd.Help() },
	}

	root.AddCommand(serveCmd(), cleanupCmd(), schemaCmd())
	return root
}

func loadConfig() (*config.Config, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	logging.Setup(cfg.SlogLevel())
	return cfg, nil
}

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP server and the invitation cleanup job",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			a, err := app.New(cfg, slog.Default())
			if err != nil {
				return err
			}
			defer a.Close()
			return a.Run(cmd.Context())
		},
	}
}

func cleanupCmd() *cobra.Command {
	var every time.Duration
	cmd := &cobra.Command{
		Use:   "cleanup",
		Short: "Expire stale pending invitations",
		Long: "Expire stale pending invitations once, or repeatedly with --every.\n" +
			"Runs are idempotent, so it is safe to schedule this alongside a server.",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			store, _, _, err := app.OpenStore(cfg)
			if err != nil {
				return err
			}
			defer store.Close()

			job := service.NewCleanupJob(service.Deps{Store: store})
			if every > 0 {
				return job.Start(cmd.Context(), every)
			}
			n, err := job.Run(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Expired %d invitation(s).\n", n)
			return nil
		},
	}
	cmd.Flags().DurationVar(&every, "every", 0, "repeat at this interval until interrupted")
	return cmd
}

func schemaCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "schema",
		Short: "Print the SQL schema for the hosted backend",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			_, err := fmt.Fprint(cmd.OutOrStdout(), supabase.Schema)
			return err
		},
	}
}
