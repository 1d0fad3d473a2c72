package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"time"

	"github.com/CZERTAINLY/app-compose/internal/color"
	"github.com/CZERTAINLY/app-compose/internal/lines"
	"github.com/CZERTAINLY/app-compose/internal/model"

	"golang.org/x/sync/errgroup"
)

var ErrUnknownService = errors.New("unknown service")

// Composer runs all services of a project concurrently and waits for them.
type Composer struct {
	root        string
	out         lines.Sink
	colored     bool
	stopTimeout time.Duration
}

// NewComposer returns a Composer for the project rooted at root, rendering
// service output to out.
func NewComposer(root string, out lines.Sink) *Composer {
	return &Composer{
		root:        root,
		out:         out,
		colored:     true,
		stopTimeout: DefaultStopTimeout,
	}
}

// WithColors turns ANSI colors of service lines on or off.
func (c *Composer) WithColors(colored bool) *Composer {
	c.colored = colored
	return c
}

// WithStopTimeout sets how long a stopped child may take before it is killed.
func (c *Composer) WithStopTimeout(d time.Duration) *Composer {
	c.stopTimeout = d
	return c
}

// Root returns the project root.
func (c *Composer) Root() string {
	return c.root
}

// Run starts every service and returns when all of them exited.
//
// Colors are assigned in declaration order before anything starts. When only
// is not empty, just the named services run, but each keeps the color of its
// declaration index.
//
// The first setup failure (command not found, bad working directory, pid file
// not writable) cancels the remaining services and is returned. A child
// exiting, with any exit code, is not a failure. Cancelling ctx stops all
// children and Run returns once they are gone.
func (c *Composer) Run(ctx context.Context, services []model.Service, only ...string) error {
	for _, name := range only {
		if !slices.ContainsFunc(services, func(s model.Service) bool { return s.Name == name }) {
			return fmt.Errorf("%w: %s", ErrUnknownService, name)
		}
	}

	pidPath, err := EnsureDirs(c.root)
	if err != nil {
		return err
	}
	pids, err := OpenPidDir(pidPath)
	if err != nil {
		return err
	}
	defer func() {
		_ = pids.Close()
	}()

	procs := c.processes(services, only, pids)
	if len(procs) == 0 {
		slog.DebugContext(ctx, "no services to run")
		return nil
	}

	g, gctx := errgroup.WithContext(ctx)
	for _, p := range procs {
		g.Go(func() error {
			return p.Run(gctx)
		})
	}
	err = g.Wait()
	if err != nil {
		slog.ErrorContext(ctx, "supervision failed", "error", err)
		return err
	}
	slog.DebugContext(ctx, "all services exited", "count", len(procs))
	return nil
}

func (c *Composer) processes(services []model.Service, only []string, pids *PidDir) []*Process {
	colors := color.NewAssigner()
	if !c.colored {
		colors = color.NewPlainAssigner()
	}

	procs := make([]*Process, 0, len(services))
	for _, svc := range services {
		if len(only) > 0 && !slices.Contains(only, svc.Name) {
			colors.Skip()
			continue
		}
		p := NewProcess(svc, c.root, colors.Next(), c.out, pids).
			WithStopTimeout(c.stopTimeout)
		procs = append(procs, p)
	}
	return procs
}
