package main

import (
	"github.com/CZERTAINLY/app-compose/internal/service"

	"github.com/spf13/cobra"
)

func (a *app) killCmd() *cobra.Command {
	var signal string
	cmd := &cobra.Command{
		Use:   "kill [service...]",
		Short: "send a signal to running services",
		Long: `kill signals the process groups recorded in the pid files, all of them
when no service is named. Services which are not running are skipped.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			sig, err := service.ParseSignal(signal)
			if err != nil {
				return err
			}
			_, root, err := a.loadCompose(cmd)
			if err != nil {
				return err
			}
			return service.Signal(cmd.Context(), root, sig, args...)
		},
	}
	cmd.Flags().StringVarP(&signal, "signal", "s", "SIGTERM", "signal name or number")
	return cmd
}
