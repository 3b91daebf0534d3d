// vpn-tunnel provisions a disposable spot EC2 gateway, routes the local
// machine's traffic through it with sshuttle, and guarantees the gateway is
// gone when the tunnel ends, however it ends.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/chainguard-dev/clog"
	charmlog "github.com/charmbracelet/log"
	slogmulti "github.com/samber/slog-multi"
)

const usage = `usage: vpn-tunnel <command> [flags]

commands:
  start    provision a gateway and run the tunnel (blocks until it ends)
             --region <alias|code>   region alias (EU, US, ASIA, APAC) or code (required)
             --instance-class <type> EC2 instance type (default t3.nano)
             --idle-timeout <min>    idle minutes before self-shutdown (default 30)
             --tunnel-args <string>  extra sshuttle arguments, shell-quoted
  stop     stop the tunnel and tear the active session down
  status   report the active session, exit 0 either way
  cleanup  tear the session down, then sweep every region for tagged orphans
`

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	ctx = setupLog(ctx)
	log := clog.FromContext(ctx)

	if len(os.Args) < 2 {
		fmt.Fprint(os.Stderr, usage)
		os.Exit(2)
	}

	var err error
	switch cmd := os.Args[1]; cmd {
	case "start":
		err = runStart(ctx, os.Args[2:])
	case "stop":
		err = runStop(ctx)
	case "status":
		err = runStatus(ctx)
	case "cleanup":
		err = runCleanup(ctx)
	case "-h", "--help", "help":
		fmt.Print(usage)
		return
	default:
		fmt.Fprintf(os.Stderr, "unknown command %q\n\n", cmd)
		fmt.Fprint(os.Stderr, usage)
		os.Exit(2)
	}

	if err != nil {
		log.Error(err.Error())
		os.Exit(1)
	}
}

// setupLog routes clog through a timestamped console handler on stderr, so
// diagnostics never mix with status output on stdout.
func setupLog(ctx context.Context) context.Context {
	handler := charmlog.NewWithOptions(os.Stderr, charmlog.Options{
		ReportTimestamp: true,
	})
	logger := clog.New(slogmulti.Fanout(handler))
	ctx = clog.WithLogger(ctx, logger)
	slog.SetDefault(&logger.Logger)
	return ctx
}
