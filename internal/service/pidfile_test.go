package service_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/CZERTAINLY/app-compose/internal/service"
	"github.com/stretchr/testify/require"
)

func TestPidDir(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	path, err := service.EnsureDirs(root)
	require.NoError(t, err)
	require.Equal(t, filepath.Join(root, ".app-compose", "pids"), path)

	// second call is fine
	_, err = service.EnsureDirs(root)
	require.NoError(t, err)

	pids, err := service.OpenPidDir(path)
	require.NoError(t, err)
	require.Equal(t, path, pids.Path())

	require.NoError(t, pids.Write("web", 4242))
	require.NoError(t, pids.Write("db", 12345))
	require.NoError(t, pids.Write("web", 7))

	raw, err := os.ReadFile(filepath.Join(path, "web"))
	require.NoError(t, err)
	require.Equal(t, "7", string(raw))

	pid, err := pids.Read("db")
	require.NoError(t, err)
	require.Equal(t, 12345, pid)

	_, err = pids.Read("missing")
	require.ErrorIs(t, err, service.ErrNoPid)

	require.NoError(t, os.Mkdir(filepath.Join(path, "subdir"), 0o755))
	names, err := pids.Names()
	require.NoError(t, err)
	require.Equal(t, []string{"db", "web"}, names)

	require.NoError(t, pids.Close())
	require.Error(t, pids.Close())
	require.Error(t, pids.Write("web", 1))
	require.Empty(t, pids.Path())
}

func TestPidDirRead(t *testing.T) {
	t.Parallel()

	var testCases = []struct {
		scenario string
		content  string
		pid      int
		fails    bool
	}{
		{scenario: "plain", content: "42", pid: 42},
		{scenario: "trailing newline", content: "42\n", pid: 42},
		{scenario: "empty", content: "", fails: true},
		{scenario: "garbage", content: "pid", fails: true},
		{scenario: "zero", content: "0", fails: true},
		{scenario: "negative", content: "-1", fails: true},
	}

	path, err := service.EnsureDirs(t.TempDir())
	require.NoError(t, err)
	pids, err := service.OpenPidDir(path)
	require.NoError(t, err)
	t.Cleanup(func() { _ = pids.Close() })

	for _, tc := range testCases {
		t.Run(tc.scenario, func(t *testing.T) {
			name := "svc-" + tc.scenario
			err := os.WriteFile(filepath.Join(path, name), []byte(tc.content), 0o644)
			require.NoError(t, err)

			pid, err := pids.Read(name)
			if tc.fails {
				require.Error(t, err)
				require.NotErrorIs(t, err, service.ErrNoPid)
				return
			}
			require.NoError(t, err)
			require.Equal(t, tc.pid, pid)
		})
	}
}

func TestPidDirEscape(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	path, err := service.EnsureDirs(root)
	require.NoError(t, err)
	pids, err := service.OpenPidDir(path)
	require.NoError(t, err)
	t.Cleanup(func() { _ = pids.Close() })

	require.Error(t, pids.Write("../escaped", 1))
	_, err = os.Stat(filepath.Join(root, ".app-compose", "escaped"))
	require.ErrorIs(t, err, os.ErrNotExist)
}

func TestOpenPidDirMissing(t *testing.T) {
	t.Parallel()
	_, err := service.OpenPidDir(filepath.Join(t.TempDir(), "nope"))
	require.ErrorIs(t, err, os.ErrNotExist)
}
