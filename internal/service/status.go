package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"slices"
	"syscall"

	"github.com/CZERTAINLY/app-compose/internal/model"
)

// Status is what the pid directory knows about one service.
type Status struct {
	Name     string
	Pid      int
	Alive    bool
	Declared bool // present in the compose file
	Err      error
}

// Statuses reports every declared service, in declaration order, followed by
// pid files of services no longer declared. A missing pid directory means
// nothing ran yet.
func Statuses(root string, compose model.Compose) ([]Status, error) {
	var ret []Status
	pids, err := OpenPidDir(PidDirPath(root))
	if errors.Is(err, os.ErrNotExist) {
		for _, name := range compose.Names() {
			ret = append(ret, Status{Name: name, Declared: true, Err: ErrNoPid})
		}
		return ret, nil
	}
	if err != nil {
		return nil, err
	}
	defer func() {
		_ = pids.Close()
	}()

	recorded, err := pids.Names()
	if err != nil {
		return nil, err
	}

	names := compose.Names()
	for _, name := range recorded {
		if !slices.Contains(names, name) {
			names = append(names, name)
		}
	}

	for _, name := range names {
		st := Status{Name: name, Declared: compose.Index(name) >= 0}
		st.Pid, st.Err = pids.Read(name)
		if st.Err == nil {
			st.Alive = alive(st.Pid)
		}
		ret = append(ret, st)
	}
	return ret, nil
}

// Signal sends sig to the process groups recorded for names, or for all
// recorded services when names is empty. Services which are not running are
// skipped, other failures are collected.
func Signal(ctx context.Context, root string, sig syscall.Signal, names ...string) error {
	pids, err := OpenPidDir(PidDirPath(root))
	if err != nil {
		return err
	}
	defer func() {
		_ = pids.Close()
	}()

	if len(names) == 0 {
		names, err = pids.Names()
		if err != nil {
			return err
		}
	}

	var errs []error
	for _, name := range names {
		pid, err := pids.Read(name)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		if !alive(pid) {
			slog.InfoContext(ctx, "service not running: skipping", "service", name, "pid", pid)
			continue
		}
		err = signalGroup(pid, sig)
		if err != nil {
			errs = append(errs, fmt.Errorf("signalling %s (pid %d): %w", name, pid, err))
			continue
		}
		slog.InfoContext(ctx, "signal sent", "service", name, "pid", pid, "signal", sig.String())
	}
	return errors.Join(errs...)
}
