package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	_ "github.com/joho/godotenv/autoload"
	"github.com/urfave/cli/v3"

	"github.com/okvist/zet/internal"
	"github.com/okvist/zet/internal/index"
	"github.com/okvist/zet/internal/mcpserver"
	"github.com/okvist/zet/internal/vault"
	pkgconfig "github.com/okvist/zet/pkg/config"
)

func main() {
	cmd := &cli.Command{
		Name:  "zet",
		Usage: "Personal zettelkasten: Markdown notes, a SQLite index, and git history",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "Path to config file",
				Value:   defaultConfigPath(),
				Sources: cli.EnvVars("ZET_CONFIG_FILE"),
			},
			&cli.StringFlag{
				Name:    "vault",
				Usage:   "Vault directory (overrides config)",
				Sources: cli.EnvVars("ZET_VAULT"),
			},
			&cli.StringFlag{
				Name:    "author",
				Usage:   "Author stamped into new notes (overrides config)",
				Sources: cli.EnvVars("ZET_AUTHOR"),
			},
			&cli.StringFlag{
				Name:    "editor",
				Usage:   "Editor binary for interactive edits (overrides config)",
				Sources: cli.EnvVars("ZET_EDITOR"),
			},
			&cli.BoolFlag{
				Name:  "autocommit",
				Usage: "Commit to git after every mutating operation",
			},
			&cli.BoolFlag{
				Name:  "autosync",
				Usage: "Push to origin after every autocommit (implies --autocommit)",
			},
		},
		Commands: []*cli.Command{
			initCommand(),
			newCommand(),
			editCommand(),
			deleteCommand(),
			printCommand(),
			listCommand(),
			linksCommand(),
			reindexCommand(),
			watchCommand(),
			mcpCommand(),
			pullCommand(),
			statusCommand(),
		},
	}

	if err := cmd.Run(context.Background(), os.Args); err != nil {
		slog.Error("zet error", slog.String("error", err.Error()))
		os.Exit(1)
	}
}

func defaultConfigPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".zet.yaml"
	}
	return home + "/.config/zet/config.yaml"
}

// loadConfig layers the optional config file over the defaults and the
// command-line flags over both.
func loadConfig(cmd *cli.Command) (*internal.Config, error) {
	cfg := internal.NewDefaultConfig()
	if _, err := pkgconfig.LoadIfExists(cmd.String("config"), cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	if v := cmd.String("vault"); v != "" {
		cfg.Vault.Path = v
	}
	if a := cmd.String("author"); a != "" {
		cfg.Vault.Author = a
	}
	if e := cmd.String("editor"); e != "" {
		cfg.Vault.Editor = e
	}
	if cmd.Bool("autocommit") {
		cfg.Git.Autocommit = true
	}
	if cmd.Bool("autosync") {
		cfg.Git.Autocommit = true
		cfg.Git.Autosync = true
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: cfg.App.LogLevel,
	})))
	return cfg, nil
}

func vaultOptions(cfg *internal.Config) []vault.Option {
	return []vault.Option{
		vault.WithAutocommit(cfg.Git.Autocommit),
		vault.WithAutosync(cfg.Git.Autosync),
		vault.WithEditorBin(cfg.Vault.Editor),
		vault.WithLogger(slog.Default()),
	}
}

func openVault(ctx context.Context, cmd *cli.Command) (*vault.Zettelkasten, error) {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return nil, err
	}
	return vault.Open(ctx, cfg.Vault.Path, cfg.Vault.Author, vaultOptions(cfg)...)
}

func initCommand() *cli.Command {
	return &cli.Command{
		Name:  "init",
		Usage: "Initialize a new vault",
		Flags: []cli.Flag{
			&cli.BoolFlag{Name: "git", Usage: "Initialize a git repository for the vault"},
			&cli.StringFlag{Name: "origin", Usage: "Remote origin URL (implies --git)"},
			&cli.BoolFlag{Name: "force", Usage: "Wipe and reinitialize an existing vault"},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			z, err := vault.Initialize(ctx, cfg.Vault.Path, cfg.Vault.Author, vault.InitOptions{
				Git:    cmd.Bool("git"),
				Origin: cmd.String("origin"),
				Force:  cmd.Bool("force"),
			}, vaultOptions(cfg)...)
			if err != nil {
				return err
			}
			defer z.Close()
			fmt.Printf("initialized vault at %s\n", z.Root())
			return nil
		},
	}
}

func newCommand() *cli.Command {
	return &cli.Command{
		Name:      "new",
		Usage:     "Create a note",
		ArgsUsage: "<title>",
		Flags: []cli.Flag{
			&cli.StringSliceFlag{Name: "tag", Aliases: []string{"t"}, Usage: "Tag to attach (repeatable)"},
			&cli.StringSliceFlag{Name: "link", Aliases: []string{"l"}, Usage: "Id of a note to link to (repeatable)"},
			&cli.StringFlag{Name: "body", Aliases: []string{"b"}, Usage: "Note body"},
			&cli.BoolFlag{Name: "edit", Aliases: []string{"e"}, Usage: "Open the note in the editor after creating it"},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			title := cmd.Args().First()
			if title == "" {
				return fmt.Errorf("usage: zet new <title>")
			}
			z, err := openVault(ctx, cmd)
			if err != nil {
				return err
			}
			defer z.Close()

			n, err := z.New(ctx, title, cmd.StringSlice("tag"), cmd.StringSlice("link"), cmd.String("body"))
			if err != nil {
				return err
			}
			fmt.Printf("%s  %s\n", n.ID, n.Filename())

			if cmd.Bool("edit") {
				if _, err := z.Update(ctx, n.ID); err != nil {
					return err
				}
			}
			return nil
		},
	}
}

func editCommand() *cli.Command {
	return &cli.Command{
		Name:      "edit",
		Usage:     "Open a note in the editor and reindex it",
		ArgsUsage: "<id|last>",
		Action: func(ctx context.Context, cmd *cli.Command) error {
			id := cmd.Args().First()
			if id == "" {
				id = "last"
			}
			z, err := openVault(ctx, cmd)
			if err != nil {
				return err
			}
			defer z.Close()

			n, err := z.Update(ctx, id)
			if err != nil {
				return err
			}
			fmt.Printf("%s  %s\n", n.ID, n.Filename())
			return nil
		},
	}
}

func deleteCommand() *cli.Command {
	return &cli.Command{
		Name:      "delete",
		Usage:     "Delete a note",
		ArgsUsage: "<id|last>",
		Action: func(ctx context.Context, cmd *cli.Command) error {
			id := cmd.Args().First()
			if id == "" {
				return fmt.Errorf("usage: zet delete <id>")
			}
			z, err := openVault(ctx, cmd)
			if err != nil {
				return err
			}
			defer z.Close()
			return z.Delete(ctx, id)
		},
	}
}

func printCommand() *cli.Command {
	return &cli.Command{
		Name:      "print",
		Usage:     "Print the raw content of a note",
		ArgsUsage: "<id|last>",
		Action: func(ctx context.Context, cmd *cli.Command) error {
			id := cmd.Args().First()
			if id == "" {
				id = "last"
			}
			z, err := openVault(ctx, cmd)
			if err != nil {
				return err
			}
			defer z.Close()

			content, err := z.PrintNote(id)
			if err != nil {
				return err
			}
			fmt.Print(content)
			return nil
		},
	}
}

func listCommand() *cli.Command {
	return &cli.Command{
		Name:  "list",
		Usage: "List every note as an (id, title) pair",
		Action: func(ctx context.Context, cmd *cli.Command) error {
			z, err := openVault(ctx, cmd)
			if err != nil {
				return err
			}
			defer z.Close()

			entries, err := z.ListNotes()
			if err != nil {
				return err
			}
			for _, e := range entries {
				fmt.Printf("%s  %s\n", e.ID, e.Title)
			}
			return nil
		},
	}
}

func linksCommand() *cli.Command {
	return &cli.Command{
		Name:      "links",
		Usage:     "Show the outgoing links of a note",
		ArgsUsage: "<id|last>",
		Flags: []cli.Flag{
			&cli.BoolFlag{Name: "back", Usage: "Show backlinks instead"},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			id := cmd.Args().First()
			if id == "" {
				id = "last"
			}
			z, err := openVault(ctx, cmd)
			if err != nil {
				return err
			}
			defer z.Close()

			var links []string
			if cmd.Bool("back") {
				resolved, err := z.ResolveID(id)
				if err != nil {
					return err
				}
				links, err = z.Backlinks(resolved)
				if err != nil {
					return err
				}
			} else {
				links, err = z.Links(id)
				if err != nil {
					return err
				}
			}
			for _, l := range links {
				fmt.Println(l)
			}
			return nil
		},
	}
}

func reindexCommand() *cli.Command {
	return &cli.Command{
		Name:  "reindex",
		Usage: "Rebuild the index from the note files",
		Flags: []cli.Flag{
			&cli.BoolFlag{Name: "sequential", Usage: "Disable the parallel worker pool"},
			&cli.IntFlag{Name: "workers", Usage: "Parser workers for the parallel rebuild", Value: 4},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			z, err := openVault(ctx, cmd)
			if err != nil {
				return err
			}
			defer z.Close()

			skipped, err := z.Reindex(ctx, !cmd.Bool("sequential"), int(cmd.Int("workers")))
			if err != nil {
				return err
			}
			for _, sk := range skipped {
				fmt.Fprintf(os.Stderr, "skipped %s: %v\n", sk.Path, sk.Err)
			}
			fmt.Printf("reindexed (%d skipped)\n", len(skipped))
			return nil
		},
	}
}

func watchCommand() *cli.Command {
	return &cli.Command{
		Name:  "watch",
		Usage: "Watch the vault and keep the index in sync until interrupted",
		Action: func(ctx context.Context, cmd *cli.Command) error {
			ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
			defer stop()

			z, err := openVault(ctx, cmd)
			if err != nil {
				return err
			}
			defer z.Close()
			return index.Watch(ctx, z.Index(), z.Files(), z.Root(), slog.Default())
		},
	}
}

func mcpCommand() *cli.Command {
	return &cli.Command{
		Name:  "mcp",
		Usage: "Serve the read-only MCP tools over stdio",
		Action: func(ctx context.Context, cmd *cli.Command) error {
			z, err := openVault(ctx, cmd)
			if err != nil {
				return err
			}
			defer z.Close()
			return mcpserver.New(z.Files(), z.Index()).ServeStdio()
		},
	}
}

func pullCommand() *cli.Command {
	return &cli.Command{
		Name:  "pull",
		Usage: "Pull notes from origin and reconcile the index",
		Action: func(ctx context.Context, cmd *cli.Command) error {
			z, err := openVault(ctx, cmd)
			if err != nil {
				return err
			}
			defer z.Close()
			return z.Pull(ctx)
		},
	}
}

func statusCommand() *cli.Command {
	return &cli.Command{
		Name:  "status",
		Usage: "Show the git status of the vault",
		Action: func(ctx context.Context, cmd *cli.Command) error {
			z, err := openVault(ctx, cmd)
			if err != nil {
				return err
			}
			defer z.Close()

			out, err := z.VCSStatus(ctx)
			if err != nil {
				return err
			}
			fmt.Print(out)
			return nil
		},
	}
}
