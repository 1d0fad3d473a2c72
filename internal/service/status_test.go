//go:build unix

package service_test

import (
	"os"
	"os/exec"
	"syscall"
	"testing"
	"time"

	"github.com/CZERTAINLY/app-compose/internal/color"
	"github.com/CZERTAINLY/app-compose/internal/model"
	"github.com/CZERTAINLY/app-compose/internal/service"
	"github.com/stretchr/testify/require"
)

// startSleeper runs sleep outside of app-compose. With ownGroup it leads its
// own process group, like a service does.
func startSleeper(t *testing.T, ownGroup bool) *os.Process {
	t.Helper()
	path, err := exec.LookPath("sleep")
	if err != nil {
		t.Skipf("skipped, binary sleep not available: %v", err)
	}
	cmd := exec.Command(path, "30")
	if ownGroup {
		cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
	}
	require.NoError(t, cmd.Start())
	t.Cleanup(func() {
		_ = cmd.Process.Kill()
		_ = cmd.Wait()
	})
	return cmd.Process
}

func TestStatuses(t *testing.T) {
	t.Parallel()

	compose := model.Compose{Services: []model.Service{
		{Name: "web", Command: "true"},
		{Name: "db", Command: "true"},
	}}

	t.Run("nothing ran yet", func(t *testing.T) {
		statuses, err := service.Statuses(t.TempDir(), compose)
		require.NoError(t, err)
		require.Len(t, statuses, 2)
		for _, st := range statuses {
			require.True(t, st.Declared)
			require.False(t, st.Alive)
			require.ErrorIs(t, st.Err, service.ErrNoPid)
		}
	})

	t.Run("recorded", func(t *testing.T) {
		root, pids := newPidDir(t)
		leader := startSleeper(t, true)
		require.NoError(t, pids.Write("db", leader.Pid))
		require.NoError(t, pids.Write("gone", leader.Pid))

		statuses, err := service.Statuses(root, compose)
		require.NoError(t, err)
		require.Len(t, statuses, 3)

		require.Equal(t, "web", statuses[0].Name)
		require.ErrorIs(t, statuses[0].Err, service.ErrNoPid)

		require.Equal(t, "db", statuses[1].Name)
		require.NoError(t, statuses[1].Err)
		require.Equal(t, leader.Pid, statuses[1].Pid)
		require.True(t, statuses[1].Alive)

		require.Equal(t, "gone", statuses[2].Name)
		require.False(t, statuses[2].Declared)
	})
}

func TestSignal(t *testing.T) {
	t.Parallel()

	root, pids := newPidDir(t)
	out := &sink{}
	p := service.NewProcess(shService(t, "long", "echo ready; sleep 30"), root, color.Color{}, out, pids)
	require.NoError(t, p.Start(t.Context()))
	require.Eventually(t, func() bool {
		return len(out.Lines()) == 1
	}, 5*time.Second, 10*time.Millisecond)

	err := service.Signal(t.Context(), root, syscall.SIGTERM, "long")
	require.NoError(t, err)

	select {
	case <-p.Done():
	case <-time.After(10 * time.Second):
		t.Fatal("signal did not stop the service")
	}
	require.NotEqual(t, 0, p.Result().ExitCode())

	t.Run("not running is skipped", func(t *testing.T) {
		err := service.Signal(t.Context(), root, syscall.SIGTERM)
		require.NoError(t, err)
	})

	t.Run("reused pid is left alone", func(t *testing.T) {
		stray := startSleeper(t, false)
		require.NoError(t, pids.Write("stray", stray.Pid))
		require.NoError(t, pids.Write("init", 1))

		statuses, err := service.Statuses(root, model.Compose{})
		require.NoError(t, err)
		for _, st := range statuses {
			require.False(t, st.Alive, st.Name)
		}

		err = service.Signal(t.Context(), root, syscall.SIGTERM, "stray", "init")
		require.NoError(t, err)
		require.NoError(t, stray.Signal(syscall.Signal(0)))
	})

	t.Run("unknown", func(t *testing.T) {
		err := service.Signal(t.Context(), root, syscall.SIGTERM, "nope")
		require.ErrorIs(t, err, service.ErrNoPid)
	})

	t.Run("no pid directory", func(t *testing.T) {
		err := service.Signal(t.Context(), t.TempDir(), syscall.SIGTERM)
		require.ErrorIs(t, err, os.ErrNotExist)
	})
}

func TestParseSignal(t *testing.T) {
	t.Parallel()

	var testCases = []struct {
		given    string
		expected syscall.Signal
		fails    bool
	}{
		{given: "TERM", expected: syscall.SIGTERM},
		{given: "SIGKILL", expected: syscall.SIGKILL},
		{given: "int", expected: syscall.SIGINT},
		{given: " hup ", expected: syscall.SIGHUP},
		{given: "9", expected: syscall.SIGKILL},
		{given: "SIGNOPE", fails: true},
		{given: "", fails: true},
	}

	for _, tc := range testCases {
		t.Run(tc.given, func(t *testing.T) {
			sig, err := service.ParseSignal(tc.given)
			if tc.fails {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			require.Equal(t, tc.expected, sig)
		})
	}
}
