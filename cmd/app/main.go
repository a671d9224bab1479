package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"strings"

	_ "github.com/joho/godotenv/autoload"
	"github.com/urfave/cli/v3"

	"github.com/starford/ansuz/internal"
	"github.com/starford/ansuz/internal/mcpserver"
	"github.com/starford/ansuz/internal/recordservice"
	"github.com/starford/ansuz/internal/schema"
	"github.com/starford/ansuz/internal/storage"
	"github.com/starford/ansuz/internal/target"
	pkgconfig "github.com/starford/ansuz/pkg/config"
)

func main() {
	cmd := &cli.Command{
		Name:  "ansuz",
		Usage: "Schema-driven typed Markdown record manager",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:        "config",
				Aliases:     []string{"c"},
				Usage:       "Path to config file",
				DefaultText: "config/config.yaml",
				Value:       "config/config.yaml",
				Sources:     cli.EnvVars("ANSUZ_CONFIG_FILE"),
			},
		},
		Commands: []*cli.Command{
			listCommand(),
			getCommand(),
			editCommand(),
			deleteCommand(),
			checkCommand(),
			driftCommand(),
			serveCommand(),
			mcpCommand(),
		},
	}

	if err := cmd.Run(context.Background(), os.Args); err != nil {
		slog.Error("application error", slog.String("error", err.Error()))
		os.Exit(1)
	}
}

// env bundles everything a vault-facing command needs.
type env struct {
	cfg        *internal.Config
	store      storage.Provider
	schema     *schema.Schema
	schemaData []byte
	svc        *recordservice.Service
}

func loadEnv(cmd *cli.Command) (*env, error) {
	cfg := internal.NewDefaultConfig()
	if err := pkgconfig.LoadIfExists(cmd.String("config"), cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	store, err := storage.NewFS(cfg.Vault.Path)
	if err != nil {
		return nil, err
	}
	sch, schemaData, err := schema.LoadFile(cfg.Vault.SchemaPath())
	if err != nil {
		return nil, err
	}
	return &env{
		cfg:        cfg,
		store:      store,
		schema:     sch,
		schemaData: schemaData,
		svc:        recordservice.NewService(store, sch),
	}, nil
}

// selectorFlags are shared by every targeting command and map one-to-one
// onto the selector fields.
func selectorFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{Name: "type", Usage: "Type path, e.g. objective/task"},
		&cli.StringFlag{Name: "path", Usage: "Path glob over vault-relative paths"},
		&cli.StringSliceFlag{Name: "where", Usage: "Where-expression (repeatable)"},
		&cli.StringFlag{Name: "id", Usage: "Record id (file name without extension)"},
		&cli.StringFlag{Name: "body", Usage: "Body substring to match"},
		&cli.BoolFlag{Name: "all", Usage: "Select every managed record"},
	}
}

// executionFlags carry gate 2 for mutating commands.
func executionFlags() []cli.Flag {
	return []cli.Flag{
		&cli.BoolFlag{Name: "execute", Aliases: []string{"x"}, Usage: "Apply changes (default is a dry-run preview)"},
		&cli.BoolFlag{Name: "dry-run", Usage: "Force a preview even when --execute is set"},
	}
}

func selectorFromCmd(cmd *cli.Command) target.Selector {
	return target.Selector{
		TypePath: cmd.String("type"),
		PathGlob: cmd.String("path"),
		Where:    cmd.StringSlice("where"),
		ID:       cmd.String("id"),
		Body:     cmd.String("body"),
		All:      cmd.Bool("all"),
		Execute:  cmd.Bool("execute") && !cmd.Bool("dry-run"),
	}
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func listCommand() *cli.Command {
	return &cli.Command{
		Name:  "list",
		Usage: "List records matching a selection",
		Flags: selectorFlags(),
		Action: func(ctx context.Context, cmd *cli.Command) error {
			e, err := loadEnv(cmd)
			if err != nil {
				return err
			}
			items, res, err := e.svc.List(ctx, selectorFromCmd(cmd))
			if err != nil {
				return err
			}
			if len(items) == 0 && len(res.NearMisses) > 0 {
				fmt.Fprintf(os.Stderr, "no match; similar ids: %s\n", strings.Join(res.NearMisses, ", "))
			}
			return printJSON(items)
		},
	}
}

func getCommand() *cli.Command {
	return &cli.Command{
		Name:      "get",
		Usage:     "Show one record with its ownership relations",
		ArgsUsage: "<path>",
		Action: func(ctx context.Context, cmd *cli.Command) error {
			if cmd.Args().Len() != 1 {
				return fmt.Errorf("expected exactly one record path")
			}
			e, err := loadEnv(cmd)
			if err != nil {
				return err
			}
			detail, err := e.svc.Get(ctx, cmd.Args().First())
			if err != nil {
				return err
			}
			return printJSON(detail)
		},
	}
}

func editCommand() *cli.Command {
	return &cli.Command{
		Name:  "edit",
		Usage: "Bulk-edit frontmatter on selected records (dry-run unless --execute)",
		Flags: append(append(selectorFlags(), executionFlags()...),
			&cli.StringSliceFlag{Name: "set", Usage: "Set field=value (repeatable)"},
			&cli.StringSliceFlag{Name: "rename", Usage: "Rename old=new (repeatable)"},
			&cli.StringSliceFlag{Name: "remove", Usage: "Remove a field (repeatable)"},
		),
		Action: func(ctx context.Context, cmd *cli.Command) error {
			e, err := loadEnv(cmd)
			if err != nil {
				return err
			}
			changes, err := changeSetFromFlags(cmd)
			if err != nil {
				return err
			}
			report, err := e.svc.BulkEdit(ctx, selectorFromCmd(cmd), changes)
			if err != nil {
				return err
			}
			return printJSON(report)
		},
	}
}

func deleteCommand() *cli.Command {
	return &cli.Command{
		Name:  "delete",
		Usage: "Bulk-delete selected records (dry-run unless --execute)",
		Flags: append(selectorFlags(), executionFlags()...),
		Action: func(ctx context.Context, cmd *cli.Command) error {
			e, err := loadEnv(cmd)
			if err != nil {
				return err
			}
			report, err := e.svc.BulkDelete(ctx, selectorFromCmd(cmd))
			if err != nil {
				return err
			}
			return printJSON(report)
		},
	}
}

func checkCommand() *cli.Command {
	return &cli.Command{
		Name:  "check",
		Usage: "Validate selected records: required fields, enums, ownership of references",
		Flags: selectorFlags(),
		Action: func(ctx context.Context, cmd *cli.Command) error {
			e, err := loadEnv(cmd)
			if err != nil {
				return err
			}
			report, err := e.svc.Check(ctx, selectorFromCmd(cmd))
			if err != nil {
				return err
			}
			return printJSON(report)
		},
	}
}

func driftCommand() *cli.Command {
	return &cli.Command{
		Name:  "drift",
		Usage: "Report whether the schema changed since the last snapshot",
		Flags: []cli.Flag{
			&cli.BoolFlag{Name: "snapshot", Usage: "Record the current schema as the new baseline"},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			e, err := loadEnv(cmd)
			if err != nil {
				return err
			}
			if cmd.Bool("snapshot") {
				if err := schema.WriteSnapshot(e.store, e.schemaData); err != nil {
					return err
				}
			}
			drift, err := schema.DetectDrift(e.store, e.schemaData)
			if err != nil {
				return err
			}
			return printJSON(drift)
		},
	}
}

func serveCommand() *cli.Command {
	return &cli.Command{
		Name:  "serve",
		Usage: "Serve the vault over HTTP with live indexing and SSE events",
		Action: func(ctx context.Context, cmd *cli.Command) error {
			cfg := internal.NewDefaultConfig()
			if err := pkgconfig.LoadIfExists(cmd.String("config"), cfg); err != nil {
				return fmt.Errorf("failed to parse config: %w", err)
			}
			return internal.Serve(ctx, internal.WithConfig(cfg))
		},
	}
}

func mcpCommand() *cli.Command {
	return &cli.Command{
		Name:  "mcp",
		Usage: "Run the MCP server on stdio",
		Action: func(ctx context.Context, cmd *cli.Command) error {
			e, err := loadEnv(cmd)
			if err != nil {
				return err
			}
			return mcpserver.New(e.svc, e.schema, e.store).ServeStdio()
		},
	}
}

// changeSetFromFlags parses --set/--rename/--remove into a change set.
// Values keep their YAML reading: --set priority=3 sets a number, --set
// done=true a boolean, anything else a string.
func changeSetFromFlags(cmd *cli.Command) (recordservice.ChangeSet, error) {
	changes := recordservice.ChangeSet{}

	for _, kv := range cmd.StringSlice("set") {
		key, value, ok := strings.Cut(kv, "=")
		if !ok || key == "" {
			return changes, fmt.Errorf("invalid --set %q, expected field=value", kv)
		}
		if changes.Set == nil {
			changes.Set = map[string]any{}
		}
		changes.Set[key] = coerceValue(value)
	}

	for _, kv := range cmd.StringSlice("rename") {
		oldName, newName, ok := strings.Cut(kv, "=")
		if !ok || oldName == "" || newName == "" {
			return changes, fmt.Errorf("invalid --rename %q, expected old=new", kv)
		}
		if changes.Rename == nil {
			changes.Rename = map[string]string{}
		}
		changes.Rename[oldName] = newName
	}

	changes.Remove = cmd.StringSlice("remove")
	return changes, nil
}

func coerceValue(s string) any {
	switch s {
	case "true":
		return true
	case "false":
		return false
	}
	var n float64
	if _, err := fmt.Sscanf(s, "%f", &n); err == nil && fmt.Sprintf("%v", n) == s {
		return n
	}
	return s
}
