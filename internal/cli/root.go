package cli

import (
	"context"
	"fmt"
	"io"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/gokatarajesh/mortgage-trainer/internal/app"
	"github.com/gokatarajesh/mortgage-trainer/internal/config"
	"github.com/gokatarajesh/mortgage-trainer/internal/logging"
)

// Runtime is what admin commands operate on.
type Runtime struct {
	Stores   *app.Stores
	Services *app.Services
	Logger   zerolog.Logger
}

// Opener builds a Runtime. The returned func releases it.
type Opener func(ctx context.Context) (*Runtime, func(), error)

// Execute runs the admin CLI against the configured stores.
func Execute(ctx context.Context) error {
	return NewRootCmd(openFromEnv).ExecuteContext(ctx)
}

// NewRootCmd assembles the command tree.
func NewRootCmd(open Opener) *cobra.Command {
	cmd := &cobra.Command{
		Use:          "trainerctl",
		Short:        "Administrative tasks for the mortgage trainer",
		SilenceUsage: true,
	}
	cmd.AddCommand(newPromoteAdminCmd(open))
	cmd.AddCommand(newGrantAccessCmd(open))
	cmd.AddCommand(newSendCampaignCmd(open))
	return cmd
}

func openFromEnv(ctx context.Context) (*Runtime, func(), error) {
	cfg, err := config.Load(ctx)
	if err != nil {
		return nil, nil, err
	}
	logger := logging.New(cfg.Name+"-ctl", cfg.Env)

	stores, err := app.OpenStores(ctx, cfg, logger)
	if err != nil {
		return nil, nil, err
	}
	svcs, err := app.NewServices(ctx, cfg, stores, nil, nil, logger)
	if err != nil {
		stores.Close()
		return nil, nil, err
	}
	return &Runtime{Stores: stores, Services: svcs, Logger: logger}, stores.Close, nil
}

// withRuntime opens a runtime for the duration of fn.
func withRuntime(cmd *cobra.Command, open Opener, fn func(rt *Runtime, out io.Writer) error) error {
	rt, release, err := open(cmd.Context())
	if err != nil {
		return fmt.Errorf("open runtime: %w", err)
	}
	defer release()
	return fn(rt, cmd.OutOrStdout())
}
