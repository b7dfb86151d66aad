package executor

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/agent462/corral/internal/config"
	"github.com/agent462/corral/internal/play"
)

// Connector opens connections to hosts. The SSH layer implements it.
type Connector interface {
	Connect(ctx context.Context, host config.Host) (Conn, error)
}

// Conn is an open connection to a single host. A Conn is used by one
// worker at a time and never shared between hosts.
type Conn interface {
	Run(ctx context.Context, command string) (stdout, stderr []byte, exitCode int, err error)
	Upload(ctx context.Context, localPath, remotePath string) error
	Close() error
}

// Executor runs a task list across many hosts with bounded concurrency:
// parallel across hosts, strictly sequential within a host.
type Executor struct {
	connector      Connector
	concurrency    int
	timeout        time.Duration
	commandTimeout time.Duration
	runTimeout     time.Duration
	retries        int
	retryBackoff   time.Duration
	logger         logrus.FieldLogger
	observer       func(*HostResult)
}

// Option configures an Executor.
type Option func(*Executor)

// WithConcurrency sets the number of hosts worked on at once.
func WithConcurrency(n int) Option {
	return func(e *Executor) {
		if n > 0 {
			e.concurrency = n
		}
	}
}

// WithHostTimeout bounds a single host's whole run: connect plus every task.
func WithHostTimeout(d time.Duration) Option {
	return func(e *Executor) {
		if d > 0 {
			e.timeout = d
		}
	}
}

// WithCommandTimeout bounds each remote command. Tasks with their own
// timeout override it.
func WithCommandTimeout(d time.Duration) Option {
	return func(e *Executor) {
		if d > 0 {
			e.commandTimeout = d
		}
	}
}

// WithRunTimeout bounds the whole run. Hosts still in flight when it
// expires are recorded as failed or unreachable.
func WithRunTimeout(d time.Duration) Option {
	return func(e *Executor) {
		if d > 0 {
			e.runTimeout = d
		}
	}
}

// WithConnectRetries sets how many extra connection attempts are made for
// transient errors before a host is classified unreachable.
func WithConnectRetries(n int) Option {
	return func(e *Executor) {
		if n >= 0 {
			e.retries = n
		}
	}
}

// WithRetryBackoff sets the initial delay between connection attempts.
func WithRetryBackoff(d time.Duration) Option {
	return func(e *Executor) {
		if d >= 0 {
			e.retryBackoff = d
		}
	}
}

// WithLogger sets the logger for per-host progress.
func WithLogger(l logrus.FieldLogger) Option {
	return func(e *Executor) {
		if l != nil {
			e.logger = l
		}
	}
}

// WithObserver registers fn to be called with every result right after it
// is recorded. fn may be called from several goroutines at once.
func WithObserver(fn func(*HostResult)) Option {
	return func(e *Executor) {
		e.observer = fn
	}
}

// New creates an Executor with the given Connector and options.
func New(connector Connector, opts ...Option) *Executor {
	discard := logrus.New()
	discard.SetOutput(io.Discard)

	e := &Executor{
		connector:    connector,
		concurrency:  10,
		timeout:      5 * time.Minute,
		retries:      2,
		retryBackoff: 500 * time.Millisecond,
		logger:       discard,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Execute runs tasks on every host and blocks until each host has exactly
// one result. Per-host errors are captured in the ResultSet, never returned.
func (e *Executor) Execute(ctx context.Context, hosts []config.Host, tasks []play.Task) *ResultSet {
	rs := e.Start(ctx, hosts, tasks)
	<-rs.Done()
	return rs
}

// Start launches the run in the background and returns its ResultSet
// immediately. The set's Done channel closes when the run is over.
func (e *Executor) Start(ctx context.Context, hosts []config.Host, tasks []play.Task) *ResultSet {
	names := make([]string, len(hosts))
	for i, h := range hosts {
		names[i] = h.Name
	}
	rs := NewResultSet(names)

	go func() {
		defer rs.finish()
		e.run(ctx, rs, hosts, tasks)
	}()
	return rs
}

func (e *Executor) run(ctx context.Context, rs *ResultSet, hosts []config.Host, tasks []play.Task) {
	if len(hosts) == 0 {
		return
	}
	if e.runTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.runTimeout)
		defer cancel()
	}

	workers := e.concurrency
	if workers > len(hosts) {
		workers = len(hosts)
	}
	e.logger.WithFields(logrus.Fields{
		"hosts":   len(hosts),
		"tasks":   len(tasks),
		"workers": workers,
	}).Info("run started")

	queue := make(chan config.Host)
	var g errgroup.Group
	for i := 0; i < workers; i++ {
		g.Go(func() error {
			for h := range queue {
				e.record(rs, e.runHost(ctx, h, tasks))
			}
			return nil
		})
	}

	for _, h := range hosts {
		if ctx.Err() == nil {
			select {
			case queue <- h:
				continue
			case <-ctx.Done():
			}
		}
		// Never started: the run was cancelled while the host was queued.
		e.record(rs, &HostResult{
			Host:    h.Name,
			Outcome: Unreachable{Err: &ConnectionError{Host: h.Name, Err: ctx.Err()}},
		})
	}
	close(queue)
	_ = g.Wait()

	e.logger.WithFields(logrus.Fields{
		"ok":          len(rs.OK()),
		"failed":      len(rs.Failed()),
		"unreachable": len(rs.Unreachable()),
	}).Info("run finished")
}

func (e *Executor) record(rs *ResultSet, r *HostResult) {
	if err := rs.Record(r); err != nil {
		e.logger.WithError(err).Error("dropping result")
		return
	}
	if e.observer != nil {
		e.observer(r)
	}
}

// runHost connects to one host and runs the task list to completion or
// first failure.
func (e *Executor) runHost(ctx context.Context, h config.Host, tasks []play.Task) *HostResult {
	log := e.logger.WithField("host", h.Name)
	start := time.Now()
	result := &HostResult{Host: h.Name}

	hostCtx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	conn, attempts, err := e.connect(hostCtx, h, log)
	if err != nil {
		result.Outcome = Unreachable{Err: &ConnectionError{Host: h.Name, Attempts: attempts, Err: err}}
		result.Duration = time.Since(start)
		log.WithError(err).Warn("unreachable")
		return result
	}
	defer conn.Close()

	vars := make(play.Vars)
	completed := make([]TaskResult, 0, len(tasks))
	for _, t := range tasks {
		tr, err := e.runTask(hostCtx, conn, t, vars)
		completed = append(completed, tr)
		if err != nil {
			result.Outcome = Failure{Tasks: completed, Err: err}
			result.Duration = time.Since(start)
			log.WithError(err).WithField("task", tr.Task).Warn("task failed")
			return result
		}
		if t.Register != "" {
			vars[t.Register] = play.Capture{
				Stdout:   string(tr.Stdout),
				Stderr:   string(tr.Stderr),
				ExitCode: tr.ExitCode,
			}
		}
		log.WithFields(logrus.Fields{"task": tr.Task, "duration": tr.Duration}).Debug("task ok")
	}

	result.Outcome = Success{Tasks: completed}
	result.Duration = time.Since(start)
	log.WithField("duration", result.Duration).Info("ok")
	return result
}

// connect dials the host, retrying transient failures with exponential
// backoff. It returns the number of attempts made.
func (e *Executor) connect(ctx context.Context, h config.Host, log logrus.FieldLogger) (Conn, int, error) {
	var conn Conn
	attempts := 0

	op := func() error {
		if err := ctx.Err(); err != nil {
			return backoff.Permanent(err)
		}
		attempts++
		c, err := e.connector.Connect(ctx, h)
		if err == nil {
			conn = c
			return nil
		}
		if ctx.Err() != nil || !IsTransient(err) {
			return backoff.Permanent(err)
		}
		log.WithError(err).WithField("attempt", attempts).Debug("transient connect error")
		return err
	}

	b := backoff.NewExponentialBackOff()
	b.InitialInterval = e.retryBackoff
	b.MaxElapsedTime = 0
	policy := backoff.WithContext(backoff.WithMaxRetries(b, uint64(e.retries)), ctx)

	if err := backoff.Retry(op, policy); err != nil {
		return nil, attempts, err
	}
	return conn, attempts, nil
}

// runTask executes a single task. A non-nil error means the host's run
// stops here; the returned TaskResult carries the same error.
func (e *Executor) runTask(ctx context.Context, conn Conn, t play.Task, vars play.Vars) (TaskResult, error) {
	tr := TaskResult{Task: t.Label()}
	start := time.Now()

	fail := func(err error) (TaskResult, error) {
		tr.Err = err
		tr.Duration = time.Since(start)
		return tr, err
	}

	if err := ctx.Err(); err != nil {
		return fail(&TaskError{Task: tr.Task, ExitCode: -1, Err: err})
	}

	command := t.Command
	if t.Kind != play.KindScript {
		rendered, err := play.Render(t.Command, vars)
		if err != nil {
			return fail(err)
		}
		command = rendered
	}

	switch t.Kind {
	case play.KindDebug:
		tr.Command = command
		tr.Stdout = []byte(command)
		tr.Duration = time.Since(start)
		return tr, nil
	case play.KindScript:
		remote, err := remoteScriptPath(t.Command)
		if err != nil {
			return fail(&TaskError{Task: tr.Task, ExitCode: -1, Err: err})
		}
		if err := conn.Upload(ctx, t.Command, remote); err != nil {
			return fail(&TaskError{Task: tr.Task, ExitCode: -1, Err: fmt.Errorf("upload: %w", err)})
		}
		command = scriptCommand(remote)
	}
	tr.Command = command

	timeout := e.commandTimeout
	if t.Timeout > 0 {
		timeout = t.Timeout
	}
	cmdCtx := ctx
	if timeout > 0 {
		var cancel context.CancelFunc
		cmdCtx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	stdout, stderr, exitCode, err := conn.Run(cmdCtx, command)
	tr.Stdout = stdout
	tr.Stderr = stderr
	tr.ExitCode = exitCode
	if err != nil {
		if errors.Is(cmdCtx.Err(), context.DeadlineExceeded) && ctx.Err() == nil {
			err = fmt.Errorf("timed out after %s: %w", timeout, err)
		}
		return fail(&TaskError{Task: tr.Task, ExitCode: exitCode, Err: err})
	}
	if exitCode != 0 {
		return fail(&TaskError{Task: tr.Task, ExitCode: exitCode})
	}
	tr.Duration = time.Since(start)
	return tr, nil
}

// remoteScriptPath picks a unique location under /tmp for an uploaded script.
func remoteScriptPath(local string) (string, error) {
	var b [6]byte
	if _, err := rand.Read(b[:]); err != nil {
		return "", fmt.Errorf("random name: %w", err)
	}
	return path.Join("/tmp", ".corral-"+hex.EncodeToString(b[:])+"-"+filepath.Base(local)), nil
}

// scriptCommand runs an uploaded script and removes it, preserving the
// script's exit status.
func scriptCommand(remote string) string {
	q := shellQuote(remote)
	return fmt.Sprintf("sh %s; rc=$?; rm -f %s; exit $rc", q, q)
}

func shellQuote(s string) string {
	return "'" + strings.ReplaceAll(s, "'", `'\''`) + "'"
}
