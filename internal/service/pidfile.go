package service

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/CZERTAINLY/app-compose/internal/model"
)

var ErrNoPid = errors.New("no pid recorded")

// EnsureDirs creates <root>/.app-compose/pids when missing and returns its
// path. Existing directories are fine.
func EnsureDirs(root string) (string, error) {
	dir := PidDirPath(root)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("creating pid directory: %w", err)
	}
	return dir, nil
}

// PidDirPath returns where pid files of the project at root live.
func PidDirPath(root string) string {
	return filepath.Join(root, model.WorkDirName, model.PidDirName)
}

// PidDir stores one file per service holding its decimal pid. All access goes
// through os.Root, so a service name can never escape the directory.
type PidDir struct {
	root *os.Root
}

func OpenPidDir(path string) (*PidDir, error) {
	root, err := os.OpenRoot(path)
	if err != nil {
		return nil, fmt.Errorf("opening pid directory: %w", err)
	}
	return &PidDir{root: root}, nil
}

// Path returns the directory the PidDir was opened with.
func (d *PidDir) Path() string {
	if d.root == nil {
		return ""
	}
	return d.root.Name()
}

// Write stores pid for name, replacing an older record.
func (d *PidDir) Write(name string, pid int) error {
	if d.root == nil {
		return errors.New("pid directory already closed")
	}
	f, err := d.root.OpenFile(name, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o644)
	if err != nil {
		return fmt.Errorf("creating pid file: %w", err)
	}
	_, err = f.WriteString(strconv.Itoa(pid))
	if err != nil {
		_ = f.Close()
		return fmt.Errorf("writing pid file: %w", err)
	}
	err = f.Close()
	if err != nil {
		return fmt.Errorf("closing pid file: %w", err)
	}
	return nil
}

// Read returns the pid recorded for name. A missing file is ErrNoPid.
func (d *PidDir) Read(name string) (int, error) {
	if d.root == nil {
		return 0, errors.New("pid directory already closed")
	}
	b, err := fs.ReadFile(d.root.FS(), name)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return 0, fmt.Errorf("%s: %w", name, ErrNoPid)
		}
		return 0, fmt.Errorf("reading pid file: %w", err)
	}
	pid, err := strconv.Atoi(strings.TrimSpace(string(b)))
	if err != nil || pid <= 0 {
		return 0, fmt.Errorf("pid file %s: malformed content %q", name, b)
	}
	return pid, nil
}

// Names lists services having a pid file, sorted.
func (d *PidDir) Names() ([]string, error) {
	if d.root == nil {
		return nil, errors.New("pid directory already closed")
	}
	entries, err := fs.ReadDir(d.root.FS(), ".")
	if err != nil {
		return nil, fmt.Errorf("listing pid directory: %w", err)
	}
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		if e.Type().IsRegular() {
			names = append(names, e.Name())
		}
	}
	sort.Strings(names)
	return names, nil
}

func (d *PidDir) Close() error {
	if d.root == nil {
		return errors.New("pid directory already closed")
	}
	err := d.root.Close()
	d.root = nil
	return err
}
