package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"sync"
	"time"

	"github.com/CZERTAINLY/app-compose/internal/color"
	"github.com/CZERTAINLY/app-compose/internal/lines"
	"github.com/CZERTAINLY/app-compose/internal/model"

	"github.com/google/shlex"
)

var (
	ErrProcessStarted = errors.New("process already started")
	ErrEmptyCommand   = errors.New("empty command")
)

// DefaultStopTimeout is how long a cancelled child gets between SIGTERM and
// SIGKILL, and how long output is drained after it exited.
const DefaultStopTimeout = 10 * time.Second

// State is a step of the process lifecycle. It only ever moves forward.
type State int

const (
	StateNew State = iota
	StateSpawned
	StatePidRecorded
	StateStreaming
	StateExited
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateNew:
		return "new"
	case StateSpawned:
		return "spawned"
	case StatePidRecorded:
		return "pid-recorded"
	case StateStreaming:
		return "streaming"
	case StateExited:
		return "exited"
	case StateFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Result describes one finished child.
type Result struct {
	Name    string
	Args    []string
	Dir     string
	Pid     int
	Started time.Time
	Stopped time.Time
	State   *os.ProcessState
	// Err is what Wait returned. A non-zero exit is an *exec.ExitError
	// and not a supervision failure.
	Err error
}

// ExitCode returns the exit code or -1 if the process did not exit normally.
func (r Result) ExitCode() int {
	if r.State == nil {
		return -1
	}
	return r.State.ExitCode()
}

// Process supervises a single service. It starts the command, records its
// pid, feeds the merged stdout and stderr to a line multiplexer and signals
// completion through Done.
type Process struct {
	mx          sync.RWMutex
	svc         model.Service
	root        string
	color       color.Color
	out         *lines.Multiplexer
	pids        *PidDir
	stopTimeout time.Duration
	state       State
	result      Result
	done        chan struct{}
}

// NewProcess prepares supervision of svc. Relative working directories are
// resolved against root, pid is stored in pids and lines go to sink.
func NewProcess(svc model.Service, root string, c color.Color, sink lines.Sink, pids *PidDir) *Process {
	return &Process{
		svc:         svc,
		root:        root,
		color:       c,
		out:         lines.New(svc.Name, c, sink),
		pids:        pids,
		stopTimeout: DefaultStopTimeout,
		result:      Result{Name: svc.Name},
		done:        make(chan struct{}),
	}
}

// WithStopTimeout changes DefaultStopTimeout for this process.
func (p *Process) WithStopTimeout(d time.Duration) *Process {
	p.stopTimeout = d
	return p
}

func (p *Process) Name() string {
	return p.svc.Name
}

func (p *Process) Color() color.Color {
	return p.color
}

func (p *Process) State() State {
	p.mx.RLock()
	defer p.mx.RUnlock()
	return p.state
}

// Done is closed exactly once, after the process exited and all its output
// was rendered, or after Start failed.
func (p *Process) Done() <-chan struct{} {
	return p.done
}

// Result returns the current result. It is final once Done is closed.
func (p *Process) Result() Result {
	p.mx.RLock()
	defer p.mx.RUnlock()
	return p.result
}

// Run starts the process and waits until it ends. Only setup failures are
// returned, the exit status of the child is available in Result.
func (p *Process) Run(ctx context.Context) error {
	if err := p.Start(ctx); err != nil {
		return err
	}
	<-p.done
	return nil
}

// Start launches the process and returns once its pid is recorded. It does
// not wait for the process, use Done for that. Cancelling ctx sends SIGTERM
// to the process group and SIGKILL after the stop timeout.
func (p *Process) Start(ctx context.Context) error {
	p.mx.Lock()
	defer p.mx.Unlock()
	if p.state != StateNew {
		return fmt.Errorf("service %s: %w", p.svc.Name, ErrProcessStarted)
	}

	err := p.start(ctx)
	if err != nil {
		p.state = StateFailed
		p.result.Err = err
		p.result.Stopped = time.Now().UTC()
		close(p.done)
		return fmt.Errorf("service %s: %w", p.svc.Name, err)
	}
	return nil
}

// start must be called with p.mx held.
func (p *Process) start(ctx context.Context) error {
	args, err := shlex.Split(p.svc.Command)
	if err != nil {
		return fmt.Errorf("parsing command: %w", err)
	}
	if len(args) == 0 {
		return ErrEmptyCommand
	}

	cmd := exec.CommandContext(ctx, args[0], args[1:]...)
	cmd.Dir = p.svc.Dir(p.root)
	// never nil: a nil Env would inherit our environment
	cmd.Env = p.svc.Env()
	cmd.Stdin = nil
	// the same comparable writer for both, exec merges them into one pipe
	cmd.Stdout = p.out
	cmd.Stderr = p.out
	cmd.WaitDelay = p.stopTimeout
	setProcAttrs(cmd)
	if stop := cmd.Cancel; stop != nil {
		cmd.Cancel = func() error {
			slog.InfoContext(ctx, "stop requested", "service", p.svc.Name, "pid", cmd.Process.Pid)
			return stop()
		}
	}

	p.result.Args = args
	p.result.Dir = cmd.Dir
	p.result.Started = time.Now().UTC()
	if err := cmd.Start(); err != nil {
		return err
	}
	pid := cmd.Process.Pid
	p.result.Pid = pid
	p.state = StateSpawned

	if err := p.pids.Write(p.svc.Name, pid); err != nil {
		// nobody would know about the child, so do not leave it behind
		_ = killGroup(pid)
		_ = cmd.Wait()
		return fmt.Errorf("recording pid %d: %w", pid, err)
	}
	p.state = StatePidRecorded
	slog.InfoContext(ctx, "service spawned",
		"service", p.svc.Name,
		"pid", pid,
		"color", p.color.String(),
		"dir", cmd.Dir,
	)

	p.state = StateStreaming
	go p.wait(ctx, cmd)
	return nil
}

func (p *Process) wait(ctx context.Context, cmd *exec.Cmd) {
	// Wait returns after the copying goroutine has delivered all output
	err := cmd.Wait()
	if ctx.Err() != nil {
		// exec kills only the leader once WaitDelay expires, members of the
		// group that ignored SIGTERM are still around
		if kerr := killOrphans(cmd.Process.Pid); kerr != nil {
			slog.WarnContext(ctx, "killing process group", "service", p.svc.Name, "pid", cmd.Process.Pid, "error", kerr)
		}
	}
	flushErr := p.out.Flush()
	stopped := time.Now().UTC()

	p.mx.Lock()
	defer p.mx.Unlock()
	p.result.Stopped = stopped
	p.result.State = cmd.ProcessState
	p.result.Err = err
	if err == nil && flushErr != nil {
		p.result.Err = flushErr
	}
	p.state = StateExited

	attrs := []any{
		"service", p.svc.Name,
		"pid", p.result.Pid,
		"exit_code", p.result.ExitCode(),
		"duration", stopped.Sub(p.result.Started).String(),
	}
	var exitErr *exec.ExitError
	switch {
	case p.result.Err == nil, errors.As(p.result.Err, &exitErr):
		slog.InfoContext(ctx, "service exited", attrs...)
	default:
		slog.WarnContext(ctx, "service exited", append(attrs, "error", p.result.Err)...)
	}
	close(p.done)
}
