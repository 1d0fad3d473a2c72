package main

import (
	"errors"
	"fmt"
	"strconv"

	"github.com/CZERTAINLY/app-compose/internal/service"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/spf13/cobra"
)

var (
	headerStyle  = lipgloss.NewStyle().Bold(true).Padding(0, 1)
	cellStyle    = lipgloss.NewStyle().Padding(0, 1)
	runningStyle = cellStyle.Foreground(lipgloss.Color("2"))
)

func (a *app) psCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "ps",
		Short: "list services with their recorded pids",
		Args:  cobra.NoArgs,
		RunE:  a.doPs,
	}
}

func (a *app) doPs(cmd *cobra.Command, _ []string) error {
	compose, root, err := a.loadCompose(cmd)
	if err != nil {
		return err
	}
	statuses, err := service.Statuses(root, compose)
	if err != nil {
		return err
	}

	rows := make([][]string, 0, len(statuses))
	for _, st := range statuses {
		rows = append(rows, statusRow(st))
	}

	t := table.New().
		Border(lipgloss.NormalBorder()).
		Headers("SERVICE", "PID", "STATUS").
		Rows(rows...).
		StyleFunc(func(row, col int) lipgloss.Style {
			switch {
			case row == table.HeaderRow:
				return headerStyle
			case col == 2 && row >= 0 && row < len(statuses) && statuses[row].Alive:
				return runningStyle
			default:
				return cellStyle
			}
		})
	_, err = fmt.Fprintln(cmd.OutOrStdout(), t.Render())
	return err
}

func statusRow(st service.Status) []string {
	name := st.Name
	if !st.Declared {
		name += " (undeclared)"
	}

	pid, status := "-", "exited"
	switch {
	case errors.Is(st.Err, service.ErrNoPid):
		status = "never started"
	case st.Err != nil:
		status = "error: " + st.Err.Error()
	case st.Alive:
		pid, status = strconv.Itoa(st.Pid), "running"
	default:
		pid = strconv.Itoa(st.Pid)
	}
	return []string{name, pid, status}
}
