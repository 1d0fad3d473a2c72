package service_test

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"slices"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/CZERTAINLY/app-compose/internal/color"
	"github.com/CZERTAINLY/app-compose/internal/lines"
	"github.com/CZERTAINLY/app-compose/internal/model"
	"github.com/CZERTAINLY/app-compose/internal/service"
	"github.com/stretchr/testify/require"
)

func TestComposer(t *testing.T) {
	t.Parallel()
	if _, err := exec.LookPath("echo"); err != nil {
		t.Skipf("skipped, binary echo not available: %v", err)
	}

	root := t.TempDir()
	out := &sink{}
	services := []model.Service{
		{Name: "a", Command: "echo hello"},
		{Name: "b", Command: "echo world"},
	}

	composer := service.NewComposer(root, out).WithColors(false)
	require.Equal(t, root, composer.Root())
	err := composer.Run(t.Context(), services)
	require.NoError(t, err)

	require.ElementsMatch(t, []string{"a: hello", "b: world"}, out.Lines())
	for _, name := range []string{"a", "b"} {
		raw, err := os.ReadFile(filepath.Join(root, ".app-compose", "pids", name))
		require.NoError(t, err)
		pid, err := strconv.Atoi(string(raw))
		require.NoError(t, err)
		require.Positive(t, pid)
	}
}

func TestComposerEmpty(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	out := &sink{}
	err := service.NewComposer(root, out).Run(t.Context(), nil)
	require.NoError(t, err)
	require.Empty(t, out.Lines())

	entries, err := os.ReadDir(service.PidDirPath(root))
	require.NoError(t, err)
	require.Empty(t, entries)

	t.Run("existing directories", func(t *testing.T) {
		err := service.NewComposer(root, out).Run(t.Context(), nil)
		require.NoError(t, err)
	})
}

func TestComposerOrderPerService(t *testing.T) {
	t.Parallel()

	const n = 200
	root := t.TempDir()
	out := &sink{}
	services := []model.Service{
		shService(t, "x", fmt.Sprintf("i=0; while [ $i -lt %d ]; do echo x$i; i=$((i+1)); done", n)),
		shService(t, "y", fmt.Sprintf("i=0; while [ $i -lt %d ]; do echo y$i; i=$((i+1)); done", n)),
	}
	require.NoError(t, service.NewComposer(root, out).WithColors(false).Run(t.Context(), services))

	for _, name := range []string{"x", "y"} {
		got := out.Of(name)
		require.Len(t, got, n)
		for i, line := range got {
			require.Equal(t, name+strconv.Itoa(i), line)
		}
	}
}

func TestComposerColors(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	var services []model.Service
	for i := range color.NiceSize + 2 {
		services = append(services, shService(t, "s"+strconv.Itoa(i), "echo line"))
	}

	for range 2 {
		out := &sink{}
		require.NoError(t, service.NewComposer(root, out).Run(t.Context(), services))
		require.ElementsMatch(t, expectedLines(services, nil), out.Lines())
	}

	t.Run("subset keeps colors", func(t *testing.T) {
		out := &sink{}
		only := []string{"s2", "s7"}
		require.NoError(t, service.NewComposer(root, out).Run(t.Context(), services, only...))
		require.ElementsMatch(t, expectedLines(services, only), out.Lines())
	})

	t.Run("unknown service", func(t *testing.T) {
		err := service.NewComposer(root, &sink{}).Run(t.Context(), services, "nope")
		require.ErrorIs(t, err, service.ErrUnknownService)
	})
}

func expectedLines(services []model.Service, only []string) []string {
	var ret []string
	for i, svc := range services {
		if len(only) > 0 && !slices.Contains(only, svc.Name) {
			continue
		}
		ret = append(ret, lines.Render(svc.Name, color.At(i), "line"))
	}
	return ret
}

func TestComposerFailure(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	out := &sink{}
	services := []model.Service{
		shService(t, "long", "echo started; sleep 30"),
		{Name: "broken", Command: "app-compose-does-not-exist"},
	}

	start := time.Now()
	err := service.NewComposer(root, out).
		WithColors(false).
		WithStopTimeout(2*time.Second).
		Run(t.Context(), services)
	require.Error(t, err)
	require.ErrorIs(t, err, exec.ErrNotFound)
	require.ErrorContains(t, err, "broken")
	require.Less(t, time.Since(start), 20*time.Second)

	for _, line := range out.Lines() {
		require.True(t, strings.HasPrefix(line, "long: "), line)
	}
}

func TestComposerCancel(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	out := &sink{}
	services := []model.Service{
		shService(t, "one", "echo one; sleep 30"),
		shService(t, "two", "echo two; sleep 30"),
	}

	ctx, cancel := context.WithCancel(t.Context())
	t.Cleanup(cancel)
	done := make(chan error, 1)
	go func() {
		done <- service.NewComposer(root, out).
			WithColors(false).
			WithStopTimeout(2*time.Second).
			Run(ctx, services)
	}()

	require.Eventually(t, func() bool {
		return len(out.Lines()) == 2
	}, 5*time.Second, 10*time.Millisecond)
	cancel()

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(15 * time.Second):
		t.Fatal("composer did not stop")
	}
}
