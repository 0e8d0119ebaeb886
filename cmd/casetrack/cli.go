package main

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"io"
	"strings"

	"github.com/urfave/cli/v2"

	"github.com/hpungsan/casetrack/internal/backup"
	"github.com/hpungsan/casetrack/internal/bus"
	"github.com/hpungsan/casetrack/internal/errors"
	"github.com/hpungsan/casetrack/internal/lookup"
	"github.com/hpungsan/casetrack/internal/record"
	"github.com/hpungsan/casetrack/internal/stats"
	"github.com/hpungsan/casetrack/internal/web"
)

// newCLIApp creates the CLI application with all commands.
// rt may be nil for --help and --version.
func newCLIApp(rt *runtime) *cli.App {
	app := &cli.App{
		Name:    "casetrack",
		Usage:   "Case queue and handle-time tracker",
		Version: Version,
		Commands: []*cli.Command{
			captureCmd(rt),
			setTypeCmd(rt),
			completeCmd(rt),
			removeCmd(rt),
			removeHistoryCmd(rt),
			typesCmd(rt),
			getCmd(rt),
			backupCmd(rt),
			restoreCmd(rt),
			exportCmd(rt),
			clearCmd(rt, "clear-queue", "Remove every queued case", bus.TypeClearQueue),
			clearCmd(rt, "clear-history", "Remove every completed case", bus.TypeClearHistory),
			clearCmd(rt, "reset", "Reset queue, history and case types to empty", bus.TypeResetAll),
			statsCmd(rt),
			lookupCmd(),
			serveCmd(rt),
		},
	}
	// Disable default exit error handler to allow proper error return in tests
	app.ExitErrHandler = func(_ *cli.Context, _ error) {}
	return app
}

func yesFlag() cli.Flag {
	return &cli.BoolFlag{Name: "yes", Aliases: []string{"y"}, Usage: "Confirm a destructive operation"}
}

// captureCmd creates the capture command.
func captureCmd(rt *runtime) *cli.Command {
	return &cli.Command{
		Name:      "capture",
		Usage:     "Queue a case URL unless it is already tracked",
		ArgsUsage: "<url>",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "opened-at", Usage: "ISO-8601 open time (default: now)"},
		},
		Action: func(c *cli.Context) error {
			url, err := arg(c, 0, "url")
			if err != nil {
				return outputError(err)
			}
			openedAt := c.String("opened-at")
			if openedAt == "" {
				openedAt = record.FormatISO(rt.now())
			}
			return rt.send(c, bus.Message{Type: bus.TypeCaptureLink, URL: url, OpenedAt: openedAt})
		},
	}
}

// setTypeCmd creates the set-type command.
func setTypeCmd(rt *runtime) *cli.Command {
	return &cli.Command{
		Name:      "set-type",
		Usage:     "Set the case type of a queued or completed case (omit the type to clear it)",
		ArgsUsage: "<url> [case-type]",
		Action: func(c *cli.Context) error {
			url, err := arg(c, 0, "url")
			if err != nil {
				return outputError(err)
			}
			return rt.send(c, bus.Message{Type: bus.TypeUpdateCaseType, URL: url, CaseType: c.Args().Get(1)})
		},
	}
}

// completeCmd creates the complete command.
func completeCmd(rt *runtime) *cli.Command {
	return &cli.Command{
		Name:      "complete",
		Usage:     "Move a typed case from the queue to history",
		ArgsUsage: "<url>",
		Action: func(c *cli.Context) error {
			url, err := arg(c, 0, "url")
			if err != nil {
				return outputError(err)
			}
			return rt.send(c, bus.Message{Type: bus.TypeMarkCompleted, URL: url})
		},
	}
}

// removeCmd creates the remove command.
func removeCmd(rt *runtime) *cli.Command {
	return &cli.Command{
		Name:      "remove",
		Usage:     "Remove a case from the queue",
		ArgsUsage: "<url>",
		Action: func(c *cli.Context) error {
			url, err := arg(c, 0, "url")
			if err != nil {
				return outputError(err)
			}
			return rt.send(c, bus.Message{Type: bus.TypeRemoveQueueItem, URL: url})
		},
	}
}

// removeHistoryCmd creates the remove-history command.
func removeHistoryCmd(rt *runtime) *cli.Command {
	return &cli.Command{
		Name:      "remove-history",
		Usage:     "Delete one completed case by URL and open time",
		ArgsUsage: "<url>",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "opened-at", Required: true, Usage: "The openedAt of the entry, exactly as stored"},
		},
		Action: func(c *cli.Context) error {
			url, err := arg(c, 0, "url")
			if err != nil {
				return outputError(err)
			}
			return rt.send(c, bus.Message{Type: bus.TypeRemoveHistoryItem, URL: url, OpenedAt: c.String("opened-at")})
		},
	}
}

// typesCmd creates the types command group.
func typesCmd(rt *runtime) *cli.Command {
	return &cli.Command{
		Name:  "types",
		Usage: "Manage the case type catalog",
		Subcommands: []*cli.Command{
			{
				Name:  "list",
				Usage: "List case types in display order",
				Action: func(c *cli.Context) error {
					data, err := rt.snapshot(c.Context)
					if err != nil {
						return outputError(err)
					}
					return outputJSON(c, data.CaseTypes)
				},
			},
			{
				Name:      "add",
				Usage:     "Append a case type",
				ArgsUsage: "<name>",
				Action: func(c *cli.Context) error {
					name, err := arg(c, 0, "name")
					if err != nil {
						return outputError(err)
					}
					return rt.send(c, bus.Message{Type: bus.TypeAddCaseType, Name: name})
				},
			},
			{
				Name:      "remove",
				Usage:     "Remove a case type (cases keep their label)",
				ArgsUsage: "<name>",
				Action: func(c *cli.Context) error {
					name, err := arg(c, 0, "name")
					if err != nil {
						return outputError(err)
					}
					return rt.send(c, bus.Message{Type: bus.TypeRemoveCaseType, Name: name})
				},
			},
			{
				Name:      "rename",
				Usage:     "Rename a case type and relabel every case that uses it",
				ArgsUsage: "<old> <new>",
				Action: func(c *cli.Context) error {
					oldName, err := arg(c, 0, "old name")
					if err != nil {
						return outputError(err)
					}
					newName, err := arg(c, 1, "new name")
					if err != nil {
						return outputError(err)
					}
					return rt.send(c, bus.Message{Type: bus.TypeRenameCaseType, OldName: oldName, NewName: newName})
				},
			},
			{
				Name:      "reorder",
				Usage:     "Replace the catalog with the given names, in order",
				ArgsUsage: "<name>...",
				Action: func(c *cli.Context) error {
					return rt.send(c, bus.Message{Type: bus.TypeReorderCaseTypes, Order: c.Args().Slice()})
				},
			},
		},
	}
}

// getCmd creates the get command.
func getCmd(rt *runtime) *cli.Command {
	return &cli.Command{
		Name:  "get",
		Usage: "Print queue, history and case types",
		Action: func(c *cli.Context) error {
			data, err := rt.snapshot(c.Context)
			if err != nil {
				return outputError(err)
			}
			return outputJSON(c, data)
		},
	}
}

// backupCmd creates the backup command.
func backupCmd(rt *runtime) *cli.Command {
	return &cli.Command{
		Name:  "backup",
		Usage: "Write a JSON backup of all collections",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "path", Aliases: []string{"p"}, Usage: "Backup file path (default: ~/.casetrack/exports/CaseTracker-Backup-<timestamp>.json)"},
		},
		Action: func(c *cli.Context) error {
			now := rt.now()
			path := c.String("path")
			if path == "" {
				path = backup.DefaultPath(rt.exportsDir, backup.KindBackup, now, rt.cfg.Location())
			}
			if err := backup.ValidatePath(path, backup.ModeWrite, backup.ExtJSON, rt.exportsDir, rt.cfg); err != nil {
				return outputError(err)
			}
			data, err := rt.snapshot(c.Context)
			if err != nil {
				return outputError(err)
			}
			result, err := backup.WriteBackup(path, data, now)
			if err != nil {
				return outputError(err)
			}
			return outputJSON(c, result)
		},
	}
}

// restoreCmd creates the restore command.
func restoreCmd(rt *runtime) *cli.Command {
	return &cli.Command{
		Name:  "restore",
		Usage: "Replace collections from a JSON backup file",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "path", Aliases: []string{"p"}, Required: true, Usage: "Backup file path"},
			yesFlag(),
		},
		Action: func(c *cli.Context) error {
			if err := requireYes(c, "restore"); err != nil {
				return err
			}
			path := c.String("path")
			if err := backup.ValidatePath(path, backup.ModeRead, backup.ExtJSON, rt.exportsDir, rt.cfg); err != nil {
				return outputError(err)
			}
			parsed, err := backup.ReadBackupFile(path)
			if err != nil {
				return outputError(err)
			}
			// The file is fully decoded here, so a bus error below is a storage failure.
			payload, err := json.Marshal(parsed.Restore)
			if err != nil {
				return outputError(errors.NewInternal(err))
			}
			return rt.send(c, bus.Message{Type: bus.TypeRestoreBackup, Data: payload})
		},
	}
}

func rangeFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{Name: "range", Aliases: []string{"r"}, Usage: "Quick range: today|yesterday|week|month|all"},
		&cli.StringFlag{Name: "start", Usage: "Custom range start (RFC 3339 or YYYY-MM-DD[THH:MM])"},
		&cli.StringFlag{Name: "end", Usage: "Custom range end (default: now)"},
	}
}

// exportCmd creates the export command group.
func exportCmd(rt *runtime) *cli.Command {
	sub := func(kind backup.Kind, usage string) *cli.Command {
		return &cli.Command{
			Name:  string(kind),
			Usage: usage,
			Flags: append([]cli.Flag{
				&cli.StringFlag{Name: "path", Aliases: []string{"p"}, Usage: "CSV file path (default: ~/.casetrack/exports/<Kind>-<timestamp>.csv)"},
			}, rangeFlags()...),
			Action: func(c *cli.Context) error {
				now := rt.now()
				loc := rt.cfg.Location()
				var rng backup.Range
				r, err := stats.Resolve(c.String("range"), c.String("start"), c.String("end"), now, loc)
				if err != nil {
					return outputError(err)
				}
				if r != nil {
					rng = backup.Range{Start: r.Start, End: r.End}
				}

				path := c.String("path")
				if path == "" {
					path = backup.DefaultPath(rt.exportsDir, kind, now, loc)
				}
				if err := backup.ValidatePath(path, backup.ModeWrite, backup.ExtCSV, rt.exportsDir, rt.cfg); err != nil {
					return outputError(err)
				}
				data, err := rt.snapshot(c.Context)
				if err != nil {
					return outputError(err)
				}

				var result *backup.Result
				if kind == backup.KindQueue {
					result, err = backup.ExportQueue(path, data.Queue, rng, loc, now)
				} else {
					result, err = backup.ExportHistory(path, data.History, rng, loc, now)
				}
				if err != nil {
					return outputError(err)
				}
				return outputJSON(c, result)
			},
		}
	}
	return &cli.Command{
		Name:  "export",
		Usage: "Export queue or history as CSV",
		Subcommands: []*cli.Command{
			sub(backup.KindQueue, "Export queued cases (filtered by open time)"),
			sub(backup.KindHistory, "Export completed cases (filtered by completion time)"),
		},
	}
}

// clearCmd creates a confirmed bulk-clear command.
func clearCmd(rt *runtime, name, usage string, typ bus.Type) *cli.Command {
	return &cli.Command{
		Name:  name,
		Usage: usage,
		Flags: []cli.Flag{yesFlag()},
		Action: func(c *cli.Context) error {
			if err := requireYes(c, name); err != nil {
				return err
			}
			return rt.send(c, bus.Message{Type: typ})
		},
	}
}

// statsCmd creates the stats command.
func statsCmd(rt *runtime) *cli.Command {
	return &cli.Command{
		Name:  "stats",
		Usage: "Print the performance report",
		Flags: append([]cli.Flag{
			&cli.StringFlag{Name: "type", Aliases: []string{"t"}, Usage: "Only count cases of this type (case-insensitive)"},
			&cli.StringFlag{Name: "format", Aliases: []string{"f"}, Value: "json", Usage: "Output format: json|markdown"},
		}, rangeFlags()...),
		Action: func(c *cli.Context) error {
			format := strings.ToLower(c.String("format"))
			if format != "json" && format != "markdown" {
				return outputError(errors.NewInvalidRequest("format must be json or markdown"))
			}
			now := rt.now()
			loc := rt.cfg.Location()
			rng, err := stats.Resolve(c.String("range"), c.String("start"), c.String("end"), now, loc)
			if err != nil {
				return outputError(err)
			}
			data, err := rt.snapshot(c.Context)
			if err != nil {
				return outputError(err)
			}
			report := stats.Compute(data, stats.Filter{Range: rng, CaseType: c.String("type")}, now, loc)
			if format == "markdown" {
				_, err := io.WriteString(c.App.Writer, stats.Markdown(report))
				return err
			}
			return outputJSON(c, report)
		},
	}
}

// lookupCmd creates the lookup command.
func lookupCmd() *cli.Command {
	return &cli.Command{
		Name:      "lookup",
		Usage:     "Build an order-check or tracking URL for an identifier",
		ArgsUsage: "<order|usps|ups> <identifier>",
		Action: func(c *cli.Context) error {
			target, err := arg(c, 0, "target")
			if err != nil {
				return outputError(err)
			}
			if c.NArg() < 2 {
				return outputError(errors.NewInvalidRequest("identifier is required"))
			}
			result, err := lookup.Build(lookup.Target(target), strings.Join(c.Args().Tail(), " "))
			if err != nil {
				return outputError(err)
			}
			return outputJSON(c, result)
		},
	}
}

// serveCmd creates the serve command.
func serveCmd(rt *runtime) *cli.Command {
	return &cli.Command{
		Name:  "serve",
		Usage: "Start the web UI",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "bind", Usage: "Interface to listen on (default from config)"},
			&cli.IntFlag{Name: "port", Usage: "Port to listen on (default from config)"},
		},
		Action: func(c *cli.Context) error {
			if bind := c.String("bind"); bind != "" {
				rt.cfg.WebBind = bind
			}
			if c.IsSet("port") {
				port := c.Int("port")
				if port < 1 || port > 65535 {
					return outputError(errors.NewInvalidRequest(fmt.Sprintf("invalid port %d", port)))
				}
				rt.cfg.WebPort = port
			}
			srv, err := web.NewServer(web.Deps{
				Bus:     rt.bus,
				Events:  rt.store,
				Config:  rt.cfg,
				Metrics: rt.registry,
				Logger:  rt.logger,
				Version: Version,
			})
			if err != nil {
				return outputError(errors.NewInternal(err))
			}
			if err := web.Run(c.Context, srv, rt.logger); err != nil {
				return outputError(errors.NewInternal(err))
			}
			return nil
		},
	}
}

// Helper functions

// send dispatches msg and prints the bus reply. Storage failures exit 1
// with [INTERNAL]; a rejected request prints the reply and exits 1 silently.
func (rt *runtime) send(c *cli.Context, msg bus.Message) error {
	resp := rt.bus.Handle(c.Context, msg)
	if resp.Error != "" {
		return outputError(errors.NewInternal(stderrors.New(resp.Error)))
	}
	if err := outputJSON(c, resp); err != nil {
		return err
	}
	if !resp.OK {
		return cli.Exit("", 1)
	}
	return nil
}

// snapshot fetches the full state through the bus.
func (rt *runtime) snapshot(ctx context.Context) (record.Data, error) {
	resp := rt.bus.Handle(ctx, bus.Message{Type: bus.TypeGetData})
	if resp.Error != "" {
		return record.Data{}, errors.NewInternal(stderrors.New(resp.Error))
	}
	if resp.Data == nil {
		return record.Data{}, errors.NewInternal(nil)
	}
	return *resp.Data, nil
}

// arg returns the i-th positional argument or an INVALID_REQUEST error naming it.
func arg(c *cli.Context, i int, name string) (string, error) {
	v := strings.TrimSpace(c.Args().Get(i))
	if v == "" {
		return "", errors.NewInvalidRequest(name + " is required")
	}
	return v, nil
}

// requireYes refuses a destructive command without --yes.
func requireYes(c *cli.Context, op string) error {
	if c.Bool("yes") {
		return nil
	}
	return outputError(errors.NewInvalidRequest(op + " is destructive; pass --yes to confirm"))
}

// outputJSON marshals result to the app's writer as indented JSON.
func outputJSON(c *cli.Context, v any) error {
	enc := json.NewEncoder(c.App.Writer)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// outputError formats error for CLI.
func outputError(err error) error {
	var cErr *errors.CaseError
	if stderrors.As(err, &cErr) {
		return cli.Exit(fmt.Sprintf("[%s] %s", cErr.Code, cErr.Message), 1)
	}
	return cli.Exit(err.Error(), 1)
}
