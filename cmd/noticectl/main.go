// Command noticectl talks to a running noticed daemon over the session bus.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/godbus/dbus/v5"
	"github.com/spf13/pflag"

	"github.com/llehouerou/noticed/internal/control"
	"github.com/llehouerou/noticed/internal/errmsg"
	"github.com/llehouerou/noticed/internal/notify"
)

// cmdError carries the failed operation for errmsg formatting.
type cmdError struct {
	op  errmsg.Op
	err error
}

func (e *cmdError) Error() string { return errmsg.Format(e.op, e.err) }

func (e *cmdError) Unwrap() error { return e.err }

func fail(op errmsg.Op, err error) error {
	if err == nil {
		return nil
	}
	return &cmdError{op: op, err: err}
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := run(ctx, os.Args[1:], os.Stdout)
	stop()
	if err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return
		}
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(ctx context.Context, args []string, out io.Writer) error {
	if len(args) == 0 || args[0] == "-h" || args[0] == "--help" || args[0] == "help" {
		usage(out)
		return nil
	}
	cmd, ok := lookup(args[0])
	if !ok {
		usage(os.Stderr)
		return fail(errmsg.OpParseArgs, fmt.Errorf("unknown command %q", args[0]))
	}

	conn, err := dbus.ConnectSessionBus()
	if err != nil {
		return fail(errmsg.OpConnect, err)
	}
	defer conn.Close()

	ntf, err := notify.New(conn)
	if err != nil {
		return fail(errmsg.OpConnect, err)
	}
	e := &env{
		ctl: control.New(conn),
		ntf: ntf,
		out: out,
		now: time.Now,
	}
	return cmd.run(ctx, e, args[1:])
}

func usage(w io.Writer) {
	fmt.Fprintln(w, "usage: noticectl <command> [arguments]")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "commands:")
	for _, c := range commands {
		fmt.Fprintf(w, "  %-28s %s\n", c.name+" "+c.args, c.help)
	}
}
