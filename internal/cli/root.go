// Package cli contains the newstack command tree.
package cli

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"newstack/internal/app"
	"newstack/internal/config"
	"newstack/internal/logging"
)

type rootOptions struct {
	configPath string
	logLevel   string

	cfg    config.Config
	logger *slog.Logger
}

// NewRootCommand builds the command tree.
func NewRootCommand() *cobra.Command {
	opts := &rootOptions{}

	root := &cobra.Command{
		Use:   "newstack",
		Short: "News ingestion run controller",
		Long: `newstack triggers the hosted RSS ingestion function, paces the step
display while it runs and enforces the success/failure cooldowns.

Example usage:
  newstack run                 # Run one manual ingestion
  newstack status              # Show cooldown and source eligibility
  newstack serve               # HTTP API plus auto-refresh timer`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return opts.init(cmd)
		},
	}

	root.PersistentFlags().StringVar(&opts.configPath, "config", "", "config file (default is $NEWSTACK_CONFIG)")
	root.PersistentFlags().StringVar(&opts.logLevel, "log-level", "", "log level override (debug, info, warn, error)")

	root.AddCommand(
		newRunCommand(opts),
		newStatusCommand(opts),
		newServeCommand(opts),
	)
	return root
}

// Execute runs the command tree with ctx.
func Execute(ctx context.Context) error {
	return NewRootCommand().ExecuteContext(ctx)
}

func (o *rootOptions) init(cmd *cobra.Command) error {
	o.cfg = config.Load(o.configPath)
	if o.logLevel != "" {
		o.cfg.Logging.Level = o.logLevel
	}
	o.logger = logging.NewWithWriter(cmd.ErrOrStderr(), o.cfg.Logging.Level)

	o.logger.Debug("configuration loaded",
		"backend", o.cfg.Backend.URL,
		"cooldown_store", o.cfg.Cooldown.Store,
		"database", o.cfg.Database.DSN != "",
	)
	return nil
}

func (o *rootOptions) application(ctx context.Context) (*app.Application, error) {
	application, err := app.New(ctx, o.cfg, o.logger)
	if err != nil {
		return nil, fmt.Errorf("init application: %w", err)
	}
	return application, nil
}
