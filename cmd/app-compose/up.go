package main

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/CZERTAINLY/app-compose/internal/console"
	"github.com/CZERTAINLY/app-compose/internal/log"
	"github.com/CZERTAINLY/app-compose/internal/service"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
)

func (a *app) upCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "up [service...]",
		Short: "start services and wait until all of them exit",
		Long: `up starts all services of the compose file, or only the named ones.
Ctrl-C stops every service and waits for them to exit.`,
		RunE: a.doUp,
	}
}

func (a *app) doUp(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	attrs := slog.Group("app_compose",
		slog.String("cmd", "up"),
		slog.String("run_id", uuid.NewString()),
		slog.Int("pid", os.Getpid()),
	)
	ctx = log.ContextAttrs(ctx, attrs)
	cmd.SetContext(ctx)

	compose, root, err := a.loadCompose(cmd)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	f, _ := out.(*os.File)
	colored, err := console.Colored(a.settings.Color, f)
	if err != nil {
		return err
	}

	composer := service.NewComposer(root, console.New(out)).
		WithColors(colored).
		WithStopTimeout(a.settings.StopTimeout)
	err = composer.Run(ctx, compose.Services, args...)
	if err != nil && errors.Is(err, context.Canceled) && ctx.Err() != nil {
		slog.InfoContext(ctx, "interrupted")
		return nil
	}
	return err
}
