package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/sambeau/vivarium/config"
	"github.com/sambeau/vivarium/pkg/vivarium/conformance"
	verrors "github.com/sambeau/vivarium/pkg/vivarium/errors"
	"github.com/sambeau/vivarium/pkg/vivarium/journal"
	"github.com/sambeau/vivarium/pkg/vivarium/object"
	"github.com/sambeau/vivarium/pkg/vivarium/repl"
	"github.com/sambeau/vivarium/pkg/vivarium/vivarium"
	"github.com/sambeau/vivarium/pkg/vivarium/watch"
)

// Version information, set at build time via -ldflags
var (
	Version = "dev"     // -X main.Version=$(git describe --tags --always)
	Commit  = "unknown" // -X main.Commit=$(git rev-parse --short HEAD)
)

func main() {
	ctx := context.Background()
	if err := run(ctx, os.Args[1:], os.Stdout, os.Stderr, os.Getenv); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

// run is the main entry point, designed for testability (Mat Ryer pattern)
func run(ctx context.Context, args []string, stdout, stderr io.Writer, getenv func(string) string) error {
	// Check for subcommands first
	if len(args) > 0 {
		switch args[0] {
		case "test":
			return runTestCommand(ctx, args[1:], stdout, stderr, getenv)
		case "journal":
			return runJournalCommand(args[1:], stdout, stderr, getenv)
		}
	}

	return runScripts(ctx, args, stdout, stderr, getenv)
}

// runScripts runs files, inline code or the REPL
func runScripts(ctx context.Context, args []string, stdout, stderr io.Writer, getenv func(string) string) error {
	flags := flag.NewFlagSet("vivarium", flag.ContinueOnError)
	flags.SetOutput(io.Discard) // Suppress default -h output

	var (
		configPath  = flags.String("config", "", "Path to config file")
		evalCode    = flags.String("e", "", "Evaluate code string")
		watchMode   = flags.Bool("watch", false, "Re-run files when they change")
		journalDSN  = flags.String("journal", "", "Record runs in this journal database")
		strip       = flags.String("strip", "", "Comma-separated built-ins to remove")
		unlocked    = flags.Bool("unlocked", false, "Leave built-ins writable")
		quietMode   = flags.Bool("quiet", false, "Suppress info logs")
		showVersion = flags.Bool("version", false, "Show version")
		showHelp    = flags.Bool("help", false, "Show help")
	)
	// --eval alias for -e
	flags.StringVar(evalCode, "eval", "", "Alias for -e")

	if err := flags.Parse(args); err != nil {
		// Handle -h/--help: flag package returns ErrHelp
		if errors.Is(err, flag.ErrHelp) {
			printUsage(stdout)
			return nil
		}
		printUsage(stderr)
		return err
	}

	if *showHelp {
		printUsage(stdout)
		return nil
	}

	if *showVersion {
		fmt.Fprintf(stdout, "vivarium version %s (%s)\n", Version, Commit)
		return nil
	}

	cfg, configFile, err := config.LoadWithPath(*configPath, getenv)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	// Apply CLI overrides
	if *quietMode {
		cfg.Logging.Quiet = true
	}
	if *strip != "" {
		cfg.Runtime.Strip = splitList(*strip)
	}
	if *unlocked {
		cfg.Runtime.Lockdown = false
	}
	if *journalDSN != "" {
		cfg.Journal.DSN = *journalDSN
	}

	// Full validation after CLI overrides applied
	if err := config.Validate(cfg); err != nil {
		return fmt.Errorf("config validation: %w", err)
	}

	log, closeLog, err := newLogger(cfg.Logging, stdout, stderr)
	if err != nil {
		return err
	}
	defer closeLog()

	if configFile != "" {
		log.logDebug("using config %s", configFile)
	}

	files := flags.Args()

	if *evalCode == "" && len(files) == 0 {
		if *watchMode {
			return fmt.Errorf("--watch requires at least one file")
		}
		return repl.Start(stdout, repl.Options{
			Version:     Version,
			Prompt:      cfg.REPL.Prompt,
			HistoryFile: cfg.REPL.HistoryFile,
			Strip:       cfg.Runtime.Strip,
		})
	}

	r := &runner{
		opts: vivarium.Options{
			Stdout:   stdout,
			Echo:     cfg.Runtime.EchoOutput,
			Strip:    cfg.Runtime.Strip,
			Unlocked: !cfg.Runtime.Lockdown,
		},
		stdout: stdout,
		stderr: stderr,
		log:    log,
	}

	if cfg.Journal.DSN != "" {
		j, err := journal.Open(journal.Config{
			DSN:        cfg.Journal.DSN,
			MaxEntries: cfg.Journal.MaxEntries,
			Warn:       log.logWarn,
		})
		if err != nil {
			return fmt.Errorf("opening journal: %w", err)
		}
		defer j.Close()
		r.journal = j
		log.logDebug("recording runs in %s journal", j.Driver())
	}

	if *evalCode != "" {
		return r.runInline(*evalCode)
	}

	failed := r.runFiles(files)

	if !*watchMode {
		if failed > 0 {
			return fmt.Errorf("%d of %d files failed", failed, len(files))
		}
		return nil
	}

	// Set up signal handling for graceful shutdown
	ctx, cancel := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	w, err := watch.New(files, func(path string) {
		r.runFile(path)
	}, stderr, stderr)
	if err != nil {
		return fmt.Errorf("starting watcher: %w", err)
	}
	defer w.Close()

	w.Start(ctx)
	<-ctx.Done()
	log.logInfo("stopped watching")
	return nil
}

// runner executes programs and records them in the journal.
type runner struct {
	opts    vivarium.Options
	journal *journal.Journal
	stdout  io.Writer
	stderr  io.Writer
	log     *logger
}

// runFiles runs each file in its own fresh scope. A failing file does not
// stop the rest. It returns the number of failures.
func (r *runner) runFiles(files []string) int {
	failed := 0
	for _, path := range files {
		if err := r.runFile(path); err != nil {
			failed++
		}
	}
	return failed
}

func (r *runner) runFile(path string) error {
	start := time.Now()
	result, err := vivarium.EvalFile(path, r.opts)
	r.finish(path, start, result, err)
	return err
}

func (r *runner) runInline(code string) error {
	opts := r.opts
	opts.Filename = "<inline>"

	start := time.Now()
	result, err := vivarium.Eval(code, opts)
	r.finish(opts.Filename, start, result, err)
	if err != nil {
		return errors.New("inline code failed")
	}

	if v := result.Value; v != nil && v.Type() != object.NONE_OBJ {
		fmt.Fprintln(r.stdout, v.Inspect())
	}
	return nil
}

func (r *runner) finish(source string, start time.Time, result *vivarium.Result, err error) {
	lines := 0
	if result != nil {
		lines = len(result.Output)
	}
	if err != nil {
		printError(r.stderr, err)
	}
	r.log.logDebug("%s finished in %s", source, time.Since(start))

	if r.journal == nil {
		return
	}
	if jerr := r.journal.Record(journal.NewEntry(source, start, lines, err)); jerr != nil {
		r.log.logWarn("journal: %v", jerr)
	}
}

// printError prints a structured error the way the REPL does
func printError(w io.Writer, err error) {
	var verr *verrors.VivariumError
	if errors.As(err, &verr) {
		fmt.Fprintln(w, verr.PrettyString())
		return
	}
	fmt.Fprintf(w, "Runtime error\n  %s\n", err)
}

func splitList(s string) []string {
	var items []string
	for _, item := range strings.Split(s, ",") {
		if item = strings.TrimSpace(item); item != "" {
			items = append(items, item)
		}
	}
	return items
}

func printUsage(w io.Writer) {
	fmt.Fprintf(w, `vivarium - A small interpreter for a Python-like language

Usage:
  vivarium [options]                 Start the interactive REPL
  vivarium [options] <file>...       Run each file in a fresh scope
  vivarium [options] -e "code"       Evaluate inline code
  vivarium test [options] [dir]      Run a conformance suite
  vivarium journal <command>         Inspect the run journal

Options:
  --config PATH      Path to config file (default: auto-detect)
  -e, --eval CODE    Evaluate code string and print its value
  --watch            Re-run files when they change
  --journal DSN      Record runs (SQLite path, postgres:// or mysql:// URL)
  --strip NAMES      Comma-separated built-ins to remove (e.g. input,print)
  --unlocked         Leave built-ins writable
  --quiet            Suppress info logs
  --version          Show version
  --help             Show this help

Config Resolution:
  1. --config flag
  2. VIVARIUM_CONFIG environment variable
  3. ./vivarium.yaml
  4. ~/.config/vivarium/vivarium.yaml

Examples:
  vivarium                          Start the REPL
  vivarium fib.py                   Run a program
  vivarium --watch fib.py           Run, then re-run on every save
  vivarium -e "print(2 ** 10)"      Evaluate inline code
  vivarium test tests               Run the suite in ./tests
  vivarium journal list --limit 5   Show the five most recent runs

`)
}

// runTestCommand handles the `vivarium test` subcommand.
func runTestCommand(ctx context.Context, args []string, stdout, stderr io.Writer, getenv func(string) string) error {
	flags := flag.NewFlagSet("vivarium test", flag.ContinueOnError)
	flags.SetOutput(io.Discard)

	var (
		configPath = flags.String("config", "", "Path to config file")
		keepGoing  = flags.Bool("keep-going", false, "Run every test instead of stopping at the first failure")
		reportPath = flags.String("report", "", "Write an HTML report to this path")
		locale     = flags.String("locale", "", "Locale for the summary line")
		strip      = flags.String("strip", "", "Comma-separated built-ins to remove")
	)

	if err := flags.Parse(args); err != nil {
		printTestUsage(stderr)
		return err
	}

	cfg, _, err := config.LoadWithPath(*configPath, getenv)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	dir := cfg.Conformance.Dir
	if flags.NArg() > 0 {
		dir = flags.Arg(0)
	}
	if *keepGoing {
		cfg.Conformance.KeepGoing = true
	}
	if *reportPath != "" {
		cfg.Conformance.Report = *reportPath
	}
	if *locale != "" {
		cfg.Conformance.Locale = *locale
	}
	if *strip != "" {
		cfg.Runtime.Strip = splitList(*strip)
	}
	if err := config.Validate(cfg); err != nil {
		return fmt.Errorf("config validation: %w", err)
	}

	log, closeLog, err := newLogger(cfg.Logging, stdout, stderr)
	if err != nil {
		return err
	}
	defer closeLog()

	runner := &conformance.Runner{
		Out:       stdout,
		KeepGoing: cfg.Conformance.KeepGoing,
		Strip:     cfg.Runtime.Strip,
	}
	report, err := runner.RunSuite(ctx, dir)
	if err != nil {
		return fmt.Errorf("running suite: %w", err)
	}

	fmt.Fprintln(stdout, report.Summary(conformance.ParseLocale(cfg.Conformance.Locale)))

	if cfg.Conformance.Report != "" {
		if err := writeReport(cfg.Conformance.Report, report); err != nil {
			return err
		}
		log.logInfo("wrote report to %s", cfg.Conformance.Report)
	}

	if !report.Passed() {
		return fmt.Errorf("conformance suite failed")
	}
	return nil
}

func writeReport(path string, report *conformance.Report) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("creating report directory: %w", err)
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("creating report: %w", err)
	}
	if err := report.WriteHTMLReport(f); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

func printTestUsage(w io.Writer) {
	fmt.Fprintf(w, `Usage: vivarium test [options] [dir]

Runs every test listed in <dir>/tests.txt. Each test is a program <name>.py
and a case file <name>.json or <name>.yaml.

Options:
  --config PATH      Path to config file
  --keep-going       Run every test instead of stopping at the first failure
  --report PATH      Write an HTML report
  --locale TAG       Locale for the summary line (e.g. en, de)
  --strip NAMES      Comma-separated built-ins to remove
`)
}

// runJournalCommand handles the `vivarium journal` subcommand.
func runJournalCommand(args []string, stdout, stderr io.Writer, getenv func(string) string) error {
	flags := flag.NewFlagSet("vivarium journal", flag.ContinueOnError)
	flags.SetOutput(io.Discard)

	var (
		configPath = flags.String("config", "", "Path to config file")
		dsn        = flags.String("dsn", "", "Journal database")
		limit      = flags.Int("limit", 20, "Number of runs to list")
	)

	if len(args) == 0 {
		printJournalUsage(stderr)
		return fmt.Errorf("missing journal subcommand")
	}

	subCmd := args[0]

	if err := flags.Parse(args[1:]); err != nil {
		printJournalUsage(stderr)
		return err
	}

	cfg, _, err := config.LoadWithPath(*configPath, getenv)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	if *dsn != "" {
		cfg.Journal.DSN = *dsn
	}
	if cfg.Journal.DSN == "" {
		return fmt.Errorf("no journal configured (set journal.dsn or pass --dsn)")
	}

	j, err := journal.Open(journal.Config{DSN: cfg.Journal.DSN, MaxEntries: cfg.Journal.MaxEntries})
	if err != nil {
		return fmt.Errorf("opening journal: %w", err)
	}
	defer j.Close()

	switch subCmd {
	case "list":
		return journalListCmd(j, *limit, stdout)
	case "count":
		count, err := j.Count()
		if err != nil {
			return err
		}
		fmt.Fprintln(stdout, count)
		return nil
	case "clear":
		if err := j.Clear(); err != nil {
			return err
		}
		fmt.Fprintln(stdout, "Journal cleared")
		return nil
	default:
		printJournalUsage(stderr)
		return fmt.Errorf("unknown journal subcommand: %s", subCmd)
	}
}

func journalListCmd(j *journal.Journal, limit int, stdout io.Writer) error {
	entries, err := j.Recent(limit)
	if err != nil {
		return err
	}
	if len(entries) == 0 {
		fmt.Fprintln(stdout, "No runs recorded")
		return nil
	}

	fmt.Fprintf(stdout, "%-20s %-6s %8s %6s  %s\n", "STARTED", "STATUS", "TIME", "LINES", "SOURCE")
	for _, e := range entries {
		status := e.Status
		if e.ErrorClass != "" {
			status = e.ErrorClass
		}
		fmt.Fprintf(stdout, "%-20s %-6s %8s %6d  %s\n",
			e.StartedAt.Format("2006-01-02 15:04:05"), status, e.Duration, e.OutputLines, e.Source)
	}
	return nil
}

func printJournalUsage(w io.Writer) {
	fmt.Fprintf(w, `Usage: vivarium journal <command> [options]

Commands:
  list               Show the most recent runs
  count              Show the number of recorded runs
  clear              Delete all recorded runs

Options:
  --config PATH      Path to config file
  --dsn DSN          Journal database (overrides journal.dsn)
  --limit N          Number of runs to list (default: 20)
`)
}
