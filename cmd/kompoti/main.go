package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/kompoti121/kompoti/config"
	"github.com/kompoti121/kompoti/node"
)

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

func run(args []string, out io.Writer, errOut io.Writer) int {
	if len(args) == 0 {
		printUsage(errOut)
		return 2
	}

	switch args[0] {
	case "ingest":
		return cmdIngest(args[1:], out, errOut)
	case "join":
		return cmdJoin(args[1:], out, errOut)
	case "help", "-h", "--help":
		printUsage(out)
		return 0
	default:
		fmt.Fprintf(errOut, "unknown command: %s\n\n", args[0])
		printUsage(errOut)
		return 2
	}
}

func printUsage(w io.Writer) {
	fmt.Fprintln(w, "kompoti: replicated movie catalog node")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Usage:")
	fmt.Fprintln(w, "  kompoti ingest <catalog.json>   publish a scraped catalog and serve it")
	fmt.Fprintln(w, "  kompoti join <ticket>           replicate a published catalog")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Configuration comes from KOMPOTI_* environment variables (or a .env file):")
	fmt.Fprintln(w, "  KOMPOTI_DATA_DIR, KOMPOTI_LISTEN, KOMPOTI_ANNOUNCE, KOMPOTI_SECRET,")
	fmt.Fprintln(w, "  KOMPOTI_REGISTRY_URL, KOMPOTI_REGISTRY_TOKEN, KOMPOTI_TICKET_NAME, KOMPOTI_YTS_URL")
}

func cmdIngest(args []string, out io.Writer, errOut io.Writer) int {
	fs := flag.NewFlagSet("ingest", flag.ContinueOnError)
	fs.SetOutput(errOut)
	if err := fs.Parse(args); err != nil {
		return 2
	}
	if fs.NArg() != 1 {
		fmt.Fprintln(errOut, "usage: kompoti ingest <catalog.json>")
		return 2
	}

	cfg := config.Load()
	logger := newLogger(errOut)
	pub := node.NewPublisher(cfg, logger)

	ctx, stop := signalContext()
	defer stop()
	if err := pub.Run(ctx, fs.Arg(0)); err != nil {
		fmt.Fprintf(errOut, "ingest: %v\n", err)
		return 1
	}
	fmt.Fprintln(out, "shut down cleanly")
	return 0
}

func cmdJoin(args []string, out io.Writer, errOut io.Writer) int {
	fs := flag.NewFlagSet("join", flag.ContinueOnError)
	fs.SetOutput(errOut)
	if err := fs.Parse(args); err != nil {
		return 2
	}
	if fs.NArg() != 1 {
		fmt.Fprintln(errOut, "usage: kompoti join <ticket>")
		return 2
	}

	cfg := config.Load()
	logger := newLogger(errOut)
	rep := node.NewReplica(cfg, logger)

	ctx, stop := signalContext()
	defer stop()
	if err := rep.Run(ctx, fs.Arg(0)); err != nil {
		fmt.Fprintf(errOut, "join: %v\n", err)
		return 1
	}
	fmt.Fprintln(out, "shut down cleanly")
	return 0
}

func newLogger(w io.Writer) *slog.Logger {
	return slog.New(slog.NewTextHandler(w, nil))
}

func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
}
