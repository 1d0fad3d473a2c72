//go:build !unix

package service

import (
	"errors"
	"os"
	"os/exec"
	"strconv"
	"strings"
	"syscall"
)

func setProcAttrs(_ *exec.Cmd) {}

func signalGroup(pid int, sig syscall.Signal) error {
	p, err := os.FindProcess(pid)
	if err != nil {
		return err
	}
	return p.Signal(sig)
}

func killGroup(pid int) error {
	p, err := os.FindProcess(pid)
	if err != nil {
		return err
	}
	return p.Kill()
}

// killOrphans is a no-op, there are no process groups to clean up and the
// reaped pid may already belong to someone else.
func killOrphans(_ int) error {
	return nil
}

func alive(pid int) bool {
	p, err := os.FindProcess(pid)
	if err != nil {
		return false
	}
	_ = p.Release()
	return true
}

func ParseSignal(s string) (syscall.Signal, error) {
	switch strings.ToUpper(strings.TrimPrefix(strings.ToUpper(strings.TrimSpace(s)), "SIG")) {
	case "KILL", "9":
		return syscall.SIGKILL, nil
	case "INT", "2":
		return syscall.SIGINT, nil
	case "TERM", "15", "":
		return syscall.SIGTERM, nil
	}
	if _, err := strconv.Atoi(s); err == nil {
		return 0, errors.New("numeric signals are supported on unix only")
	}
	return 0, errors.New("unsupported signal " + s)
}
