//go:build unix

package service

import (
	"errors"
	"fmt"
	"os/exec"
	"strconv"
	"strings"
	"syscall"

	"golang.org/x/sys/unix"
)

// setProcAttrs puts the child into its own process group, so stopping it
// reaches everything it spawned as well.
func setProcAttrs(cmd *exec.Cmd) {
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
	cmd.Cancel = func() error {
		return signalGroup(cmd.Process.Pid, unix.SIGTERM)
	}
}

// signalGroup signals the process group led by pid. Every service is started
// as a group leader, so there is no fallback to a single process.
func signalGroup(pid int, sig syscall.Signal) error {
	if pid <= 1 {
		// kill(-1) would reach every process we may signal
		return fmt.Errorf("refusing to signal process group %d", pid)
	}
	return unix.Kill(-pid, sig)
}

// killGroup kills whatever is left of the group led by pid. A group which is
// already gone is not an error.
func killGroup(pid int) error {
	err := signalGroup(pid, unix.SIGKILL)
	if errors.Is(err, unix.ESRCH) {
		return nil
	}
	return err
}

// killOrphans kills members of a stopped service's group which outlived the
// reaped leader. The group id cannot be reused while any member lives.
func killOrphans(pid int) error {
	return killGroup(pid)
}

// alive reports whether a process group with id pid exists. Services are
// started as group leaders and the id stays taken while any member of the
// group lives. A recorded pid reused by an unrelated process, which leads no
// group, is neither reported nor signalled. EPERM means the group exists but
// belongs to someone else.
func alive(pid int) bool {
	if pid <= 1 {
		return false
	}
	err := unix.Kill(-pid, 0)
	return err == nil || errors.Is(err, unix.EPERM)
}

// ParseSignal accepts SIGTERM, TERM, term or a number.
func ParseSignal(s string) (syscall.Signal, error) {
	s = strings.ToUpper(strings.TrimSpace(s))
	if n, err := strconv.Atoi(s); err == nil && n > 0 {
		return syscall.Signal(n), nil
	}
	if !strings.HasPrefix(s, "SIG") {
		s = "SIG" + s
	}
	sig := unix.SignalNum(s)
	if sig == 0 {
		return 0, fmt.Errorf("unknown signal %q", s)
	}
	return sig, nil
}
