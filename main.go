package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/pyw0w/AniSystemd/anisystemd"
	"github.com/pyw0w/AniSystemd/anisystemd/journal"
	"github.com/pyw0w/AniSystemd/internal/logging"
)

var (
	pluginsDir  string
	journalFile string
	metricsAddr string
	patterns    stringsFlag

	heartbeat   time.Duration
	flushDelay  = anisystemd.DefaultFlushDelay
	stopTimeout = anisystemd.DefaultStopTimeout
	killTimeout = anisystemd.ProcessWaitTimeout

	logger *slog.Logger
)

func init() {
	// A missing .env is fine.
	godotenv.Load()

	pluginsDir = envOr("ANISYSTEMD_PLUGINS_DIR", "./plugins")
	journalFile = os.Getenv("ANISYSTEMD_JOURNAL")
	metricsAddr = os.Getenv("ANISYSTEMD_METRICS")
	heartbeat = envDuration("ANISYSTEMD_HEARTBEAT", 0)

	flag.StringVar(&pluginsDir, "d", pluginsDir, "plugins directory path")
	flag.StringVar(&journalFile, "j", journalFile, "journal file path, empty to disable")
	flag.StringVar(&metricsAddr, "metrics", metricsAddr, "metrics listen address, empty to disable")
	flag.Var(&patterns, "pattern", "extra artifact glob, may be repeated")
	flag.DurationVar(&heartbeat, "heartbeat", heartbeat, "watchdog interval, 0 to derive it from systemd")
	flag.DurationVar(&flushDelay, "flush-delay", flushDelay, "delay before exiting for a restart")
	flag.DurationVar(&stopTimeout, "stop-timeout", stopTimeout, "time to wait for the worker on interrupt")
	flag.DurationVar(&killTimeout, "kill-timeout", killTimeout, "time between SIGINT and SIGKILL for the worker")
	flag.Usage = func() {
		f := func(f string, v ...interface{}) {
			fmt.Fprintf(flag.CommandLine.Output(), f, v...)
		}

		name := filepath.Base(os.Args[0])

		f("Usage:\n")
		f("  %s [flags] run <command> [args...]\n", name)
		f("  %s [flags] journal [-n N]\n", name)
		f("\n")
		f("Flags:\n")
		flag.PrintDefaults()
	}
	flag.Parse()

	logger = logging.New(logging.FromEnv())
}

func main() {
	var code int
	switch flag.Arg(0) {
	case "run":
		code = run(flag.Args()[1:])
	case "journal":
		code = printJournal(flag.Args()[1:])
	case "":
		flag.Usage()
		code = 1
	default:
		log.Fatalf("unknown subcommand %q\n", flag.Arg(0))
	}

	os.Exit(code)
}

func run(argv []string) int {
	if len(argv) == 0 {
		logger.Error("missing command to run")
		return 1
	}

	j, closeJournal, err := openJournaler()
	if err != nil {
		if errors.Is(err, journal.ErrLockedElsewhere) {
			logger.Error("anisystemd is already running", "journal", journalFile)
			return 1
		}

		logger.Error("failed to open journal", "err", err)
		return 1
	}
	defer closeJournal()

	ctx, cancel := anisystemd.InterruptContext(context.Background())
	defer cancel()

	filter, err := anisystemd.NewArtifactFilter(patterns...)
	if err != nil {
		logger.Error("invalid artifact pattern", "err", err)
		return 1
	}

	change := anisystemd.NewChangeCondition()

	watcher, err := anisystemd.NewWatcher(pluginsDir, filter, change, j)
	if err != nil {
		logger.Error("failed to watch plugins", "dir", pluginsDir, "err", err)
		return 1
	}
	defer watcher.Close()

	if metricsAddr != "" {
		stop, err := serveMetrics(metricsAddr)
		if err != nil {
			logger.Error("failed to serve metrics", "addr", metricsAddr, "err", err)
			return 1
		}
		defer stop()
	}

	worker := anisystemd.NewProcessWorker(argv, j)
	worker.WaitTimeout = killTimeout

	notifier := anisystemd.SystemdNotifier{}

	c := anisystemd.NewCoordinator(anisystemd.CoordinatorOpts{
		Worker:      worker,
		Change:      change,
		Watcher:     watcher,
		Heartbeat:   anisystemd.NewHeartbeat(heartbeat, notifier, j),
		Notifier:    notifier,
		Journaler:   j,
		FlushDelay:  flushDelay,
		StopTimeout: stopTimeout,
	})

	outcome, err := c.Run(ctx)
	if err != nil && !outcome.Failed() {
		logger.Error("coordinator failed", "err", err)
		return 1
	}

	return outcome.ExitCode()
}

// openJournaler returns the journaler for a run: the structured log, plus the
// journal file if one is configured.
func openJournaler() (anisystemd.Journaler, func(), error) {
	lw := journal.NewLogWriter(logging.WithComponent(logger, "anisystemd"))

	if journalFile == "" {
		return lw, func() {}, nil
	}

	f, err := journal.NewFileLockJournaler(journalFile)
	if err != nil {
		return nil, nil, errors.Wrap(err, "failed to acquire journal lock")
	}

	closer := func() {
		if err := f.Close(); err != nil {
			logger.Warn("failed to close journal", "err", err)
		}
	}

	return journal.MultiWriter(f, lw), closer, nil
}

func serveMetrics(addr string) (stop func(), err error) {
	l, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, errors.Wrap(err, "failed to listen")
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())

	srv := &http.Server{
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		if err := srv.Serve(l); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Warn("metrics server stopped", "err", err)
		}
	}()

	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		srv.Shutdown(ctx)
	}, nil
}

func printJournal(args []string) int {
	fs := flag.NewFlagSet("journal", flag.ExitOnError)
	n := fs.Int("n", 20, "number of events to print, 0 for all")
	fs.Parse(args)

	if journalFile == "" {
		logger.Error("missing -j path to journal file")
		return 1
	}

	entries, err := journal.ReadFile(journalFile, *n)
	if err != nil {
		var corrupt *journal.CorruptError
		if !errors.As(err, &corrupt) {
			printEntries(entries)
			logger.Error("failed to read journal", "journal", journalFile, "err", err)
			return 1
		}

		logger.Warn("skipped corrupt journal lines",
			"journal", journalFile, "skipped", corrupt.Skipped, "err", corrupt.First)
	}

	printEntries(entries)
	return 0
}

func printEntries(entries []journal.Entry) {
	for _, entry := range entries {
		data, err := json.Marshal(entry.Event)
		if err != nil {
			data = []byte("{}")
		}

		fmt.Printf("%s  %-20s %s\n", entry.Time.Format(time.RFC3339), entry.Event.Type(), data)
	}
}

// stringsFlag is a flag.Value that collects every occurrence of a flag.
type stringsFlag []string

func (s *stringsFlag) String() string { return strings.Join(*s, ",") }

func (s *stringsFlag) Set(v string) error {
	*s = append(*s, v)
	return nil
}

func envOr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func envDuration(key string, def time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return def
	}

	d, err := time.ParseDuration(v)
	if err != nil {
		log.Fatalf("invalid %s: %v\n", key, err)
	}

	return d
}
