package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/agent462/corral/internal/executor"
	"github.com/agent462/corral/internal/ssh"
	"github.com/agent462/corral/internal/ui/progress"
	"github.com/agent462/corral/internal/ui/report"
)

var runCmd = &cobra.Command{
	Use:   "run [user@host[:port] ...]",
	Short: "Run tasks on every host",
	Long: `Runs the task list on every host of the inventory, at most --concurrency
hosts at a time, and prints an UP / FAILED / DOWN report.

Hosts given as arguments replace the inventory file. Tasks come from
--exec, --tasks, --play, the config's tasks file, or the "default" play.

Exit status is 0 when every host succeeded, 1 when any host failed or was
unreachable, and 2 when the configuration is invalid.`,
	RunE: runRun,
}

func init() {
	addSourceFlags(runCmd)
	addDefaultsFlags(runCmd)
	f := runCmd.Flags()
	f.BoolP("ask-pass", "k", false, "prompt for an SSH password")
	f.Bool("json", false, "print results as JSON")
	f.BoolP("verbose", "v", false, "print every task's output")
	f.Bool("group", false, "collapse UP hosts with identical output")
	f.Bool("no-color", false, "disable colored output")
	f.Bool("progress", false, "show a live progress table on the terminal")
	rootCmd.AddCommand(runCmd)
}

func runRun(cmd *cobra.Command, args []string) error {
	log, err := setupLogger()
	if err != nil {
		return err
	}
	s, err := buildSession(cmd, args)
	if err != nil {
		return err
	}
	flags := cmd.Flags()
	d := s.cfg.Defaults

	base := ssh.ClientConfig{AcceptUnknownHosts: d.Insecure}
	if ask, _ := flags.GetBool("ask-pass"); ask {
		pw, err := readPassword(os.Stdin, os.Stderr)
		if err != nil {
			return &usageError{err: err}
		}
		base.Password = pw
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	jsonOut, _ := flags.GetBool("json")
	jsonOut = jsonOut || d.Output == "json"

	opts := []executor.Option{
		executor.WithConcurrency(d.Concurrency),
		executor.WithHostTimeout(d.Timeout.Duration),
		executor.WithCommandTimeout(d.CommandTimeout.Duration),
		executor.WithRunTimeout(d.RunTimeout.Duration),
		executor.WithConnectRetries(d.Retries),
		executor.WithRetryBackoff(d.RetryBackoff.Duration),
		executor.WithLogger(log),
	}

	var prog *progress.Program
	if want, _ := flags.GetBool("progress"); want && !jsonOut && isTerminal(os.Stderr) {
		names := make([]string, len(s.hosts))
		for i, h := range s.hosts {
			names[i] = h.Name
		}
		prog = progress.NewProgram(names, cancel, os.Stderr)
		opts = append(opts, executor.WithObserver(prog.Observe))
	}

	log.WithFields(logrus.Fields{
		"hosts": len(s.hosts),
		"tasks": len(s.tasks),
		"from":  s.source,
	}).Info("starting run")

	rs := executor.New(ssh.NewConnector(base), opts...).Start(ctx, s.hosts, s.tasks)
	if prog != nil {
		if err := prog.Run(rs.Done()); err != nil {
			log.WithError(err).Warn("progress view failed")
		}
	}
	<-rs.Done()

	verbose, _ := flags.GetBool("verbose")
	group, _ := flags.GetBool("group")
	noColor, _ := flags.GetBool("no-color")
	color := !noColor && os.Getenv("NO_COLOR") == "" && isTerminal(os.Stdout)

	f := report.NewFormatter(color, verbose, group)
	if jsonOut {
		data, err := f.FormatJSON(rs)
		if err != nil {
			return fmt.Errorf("encode results: %w", err)
		}
		fmt.Fprintln(os.Stdout, string(data))
	} else {
		fmt.Fprint(os.Stdout, f.Format(rs))
	}

	snap := rs.Snapshot()
	if len(snap.Failed) > 0 || len(snap.Unreachable) > 0 {
		return &hostsFailedError{failed: len(snap.Failed), unreachable: len(snap.Unreachable)}
	}
	return nil
}

func isTerminal(f *os.File) bool {
	return term.IsTerminal(int(f.Fd()))
}

// readPassword prompts on prompt and reads a password from in without echo.
func readPassword(in *os.File, prompt io.Writer) (string, error) {
	if !isTerminal(in) {
		return "", errors.New("--ask-pass needs a terminal on stdin")
	}
	fmt.Fprint(prompt, "SSH password: ")
	pw, err := term.ReadPassword(int(in.Fd()))
	fmt.Fprintln(prompt)
	if err != nil {
		return "", fmt.Errorf("read password: %w", err)
	}
	return string(pw), nil
}
