package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"k8s.io/klog/v2"
)

// Exit statuses.
const (
	exitPassed = 0
	exitFailed = 1
	exitConfig = 2
)

// exitError carries the exit status a command wants. Any other error that
// reaches run (flag parsing, unknown commands) is a usage error.
type exitError struct {
	code int
	err  error
}

func (e *exitError) Error() string { return e.err.Error() }
func (e *exitError) Unwrap() error { return e.err }

func configError(err error) error {
	return &exitError{code: exitConfig, err: err}
}

var errCheckFailed = &exitError{code: exitFailed, err: errors.New("policy check failed")}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	code := run(ctx, os.Args[1:], os.Stdin, os.Stdout, os.Stderr)
	stop()
	klog.Flush()
	os.Exit(code)
}

// run executes the CLI and returns the process exit status.
func run(ctx context.Context, args []string, stdin io.Reader, stdout, stderr io.Writer) int {
	root := newRootCmd()
	root.SetArgs(args)
	root.SetIn(stdin)
	root.SetOut(stdout)
	root.SetErr(stderr)

	err := root.ExecuteContext(ctx)
	if err == nil {
		return exitPassed
	}
	fmt.Fprintln(stderr, "mp:", err)

	var ee *exitError
	if errors.As(err, &ee) {
		return ee.code
	}
	return exitConfig
}
