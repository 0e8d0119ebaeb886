package main

import (
	"database/sql"
	stderrors "errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/urfave/cli/v2"
	"go.uber.org/zap"

	"github.com/hpungsan/casetrack/internal/bus"
	"github.com/hpungsan/casetrack/internal/config"
	"github.com/hpungsan/casetrack/internal/db"
	"github.com/hpungsan/casetrack/internal/logging"
	"github.com/hpungsan/casetrack/internal/mcp"
	"github.com/hpungsan/casetrack/internal/store"
)

// Version is set via -ldflags at build time.
var Version = "dev"

// cliCommands contains known CLI subcommands.
var cliCommands = map[string]bool{
	"capture": true, "set-type": true, "complete": true,
	"remove": true, "remove-history": true, "types": true,
	"get": true, "backup": true, "restore": true, "export": true,
	"clear-queue": true, "clear-history": true, "reset": true,
	"stats": true, "lookup": true, "serve": true,
	"help": true,
}

// runtime holds the wired application shared by every front end.
type runtime struct {
	bus        *bus.Dispatcher
	store      *store.Store
	cfg        *config.Config
	exportsDir string
	registry   *prometheus.Registry
	logger     *zap.Logger
	now        func() time.Time
}

// newRuntime wires store, bus and metrics over an open database. The store
// reads the clock through rt.now.
func newRuntime(database *sql.DB, cfg *config.Config, baseDir string, logger *zap.Logger) *runtime {
	if logger == nil {
		logger = zap.NewNop()
	}
	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	rt := &runtime{
		cfg:        cfg,
		exportsDir: filepath.Join(baseDir, "exports"),
		registry:   registry,
		logger:     logger,
		now:        time.Now,
	}
	rt.store = store.New(database,
		store.WithLogger(logger),
		store.WithClock(func() time.Time { return rt.now() }),
	)
	rt.bus = bus.NewDispatcher(rt.store, logger, bus.NewMetrics(registry))
	return rt
}

// isCLIMode determines if we should run CLI vs MCP server.
func isCLIMode(args []string) bool {
	if len(args) < 2 {
		return false // No args → MCP server
	}
	arg := args[1]
	if cliCommands[arg] {
		return true
	}
	return arg == "--help" || arg == "-h" || arg == "--version" || arg == "-v"
}

// isHelpOrVersion returns true if the user is requesting help or version info.
func isHelpOrVersion(args []string) bool {
	if len(args) < 2 {
		return false
	}
	arg := args[1]
	return arg == "--help" || arg == "-h" || arg == "--version" || arg == "-v" || arg == "help"
}

// isTerminal returns true if stdin is a terminal (not piped).
func isTerminal() bool {
	stat, _ := os.Stdin.Stat()
	return (stat.Mode() & os.ModeCharDevice) != 0
}

// printBanner displays a friendly banner when run interactively without args.
func printBanner() {
	fmt.Println(`
   ___ __ _ ___  ___| |_ _ __ __ _  ___| | __
  / __/ _' / __|/ _ \ __| '__/ _' |/ __| |/ /
 | (_| (_| \__ \  __/ |_| | | (_| | (__|   <
  \___\__,_|___/\___|\__|_|  \__,_|\___|_|\_\

  Case queue and handle-time tracker

  Usage: casetrack <command> [options]
         casetrack serve
         casetrack --help

  MCP server mode requires piped input.`)
}

// exitCode prints err (unless it carries no message) and returns the process
// exit status.
func exitCode(err error) int {
	if err == nil {
		return 0
	}
	code := 1
	var coder cli.ExitCoder
	if stderrors.As(err, &coder) {
		code = coder.ExitCode()
	}
	if msg := err.Error(); msg != "" {
		fmt.Fprintf(os.Stderr, "error: %s\n", msg)
	}
	return code
}

func run(args []string) int {
	// No args + interactive terminal → show banner and exit
	if len(args) < 2 && isTerminal() {
		printBanner()
		return 0
	}

	// Handle --help/--version before DB init (no DB needed)
	if isHelpOrVersion(args) {
		return exitCode(newCLIApp(nil).Run(args))
	}

	baseDir, err := config.BaseDir()
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		return 1
	}

	cfg, err := config.Load(baseDir)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: failed to load config: %v\n", err)
		return 1
	}

	logger, err := logging.New(cfg.LogLevel)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		return 1
	}
	defer func() { _ = logger.Sync() }()

	database, err := db.Init(baseDir, cfg.SeedCaseTypes)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: failed to initialize database: %v\n", err)
		return 1
	}
	defer database.Close()
	db.ConfigurePool(database, cfg)

	rt := newRuntime(database, cfg, baseDir, logger)
	defer rt.store.Close()

	// CLI mode: known subcommand
	if isCLIMode(args) {
		return exitCode(newCLIApp(rt).Run(args))
	}

	// Unknown argument + terminal → show error (don't start MCP server)
	if len(args) >= 2 && isTerminal() {
		fmt.Fprintf(os.Stderr, "error: unknown command %q\n", args[1])
		fmt.Fprintf(os.Stderr, "Run 'casetrack --help' for usage.\n")
		return 1
	}

	for _, name := range mcp.ValidateDisabledTools(cfg.DisabledTools) {
		logger.Warn("unknown tool in disabled_tools", zap.String("tool", name))
	}
	for _, name := range mcp.ValidateDisabledTypes(cfg.DisabledTypes) {
		logger.Warn("unknown type in disabled_types", zap.String("type", name))
	}

	// MCP server mode (default)
	if err := mcp.Run(rt.bus, cfg, rt.exportsDir, Version); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		return 1
	}
	return 0
}

func main() {
	os.Exit(run(os.Args))
}
