package main

import (
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/urfave/cli/v2"

	"tg-chatdump/internal/adapter/storage"
	"tg-chatdump/internal/adapter/telegram"
	"tg-chatdump/internal/adapter/ui"
	"tg-chatdump/internal/config"
	"tg-chatdump/internal/domain"
	"tg-chatdump/internal/pkg/layout"
	"tg-chatdump/internal/usecase"
)

func main() {
	app := &cli.App{
		Name:    "tgchatdump",
		Usage:   "Incrementally mirror Telegram conversations to local storage",
		Version: "0.1.0",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "config",
				Usage: "Path to YAML config file",
			},
			&cli.BoolFlag{
				Name:    "verbose",
				Aliases: []string{"v"},
				Usage:   "Enable debug logging",
			},
		},
		Commands: []*cli.Command{
			downloadCommand,
			listCommand,
		},
	}
	if err := app.Run(os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

var downloadCommand = &cli.Command{
	Name:      "download",
	Usage:     "Sync one or more chats (by id, -100-prefixed id, or @handle); prompts for one when omitted",
	ArgsUsage: "[<chat>...]",
	Flags: []cli.Flag{
		&cli.StringFlag{
			Name:    "output",
			Aliases: []string{"o"},
			Usage:   "Root directory for chat archives",
		},
		&cli.IntFlag{
			Name:    "limit",
			Aliases: []string{"l"},
			Usage:   "Stop after this many messages or albums per chat",
		},
		&cli.BoolFlag{
			Name:  "skip-media",
			Usage: "Store message records without downloading files",
		},
		&cli.BoolFlag{
			Name:  "no-progress",
			Usage: "Disable interactive prompts and progress bars",
		},
		&cli.IntFlag{
			Name:  "threads",
			Usage: "Parallel chunks per file transfer",
		},
	},
	Action: runDownload,
}

var listCommand = &cli.Command{
	Name:  "list",
	Usage: "List resolvable dialogs with their ids",
	Flags: []cli.Flag{
		&cli.BoolFlag{
			Name:  "no-progress",
			Usage: "Disable interactive prompts",
		},
	},
	Action: runList,
}

func setupLogger(verbose bool) zerolog.Logger {
	level := zerolog.InfoLevel
	if verbose {
		level = zerolog.DebugLevel
	}
	return zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.Kitchen}).
		Level(level).
		With().Timestamp().Logger()
}

// bootstrap wires config, logging, and a connected client. The returned
// cleanup closes the client when the command finishes.
func bootstrap(c *cli.Context) (*config.Config, zerolog.Logger, *telegram.Client, *ui.ConsoleUI, func(), error) {
	log := setupLogger(c.Bool("verbose"))

	cfg, err := config.Load(c.String("config"))
	if err != nil {
		return nil, log, nil, nil, nil, err
	}
	if out := c.String("output"); out != "" {
		cfg.OutputDir = out
	}
	if threads := c.Int("threads"); threads > 0 {
		cfg.DownloadThreads = threads
	}

	console := ui.NewConsoleUI(c.Bool("no-progress"))

	client, err := telegram.NewClient(cfg.AppID, cfg.AppHash, cfg.SessionFile, telegram.TransferConfig{
		Threads:  cfg.DownloadThreads,
		PartSize: cfg.PartSizeKB * 1024,
	}, log)
	if err != nil {
		return nil, log, nil, nil, nil, fmt.Errorf("create telegram client: %w", err)
	}

	log.Info().Msg("connecting")
	if err := client.Start(c.Context, console); err != nil {
		return nil, log, nil, nil, nil, fmt.Errorf("start telegram client: %w", err)
	}
	log.Info().Msg("connected")

	cleanup := func() { client.Close() }
	return cfg, log, client, console, cleanup, nil
}

func runDownload(c *cli.Context) error {
	refs := c.Args().Slice()
	if len(refs) == 0 && c.Bool("no-progress") {
		return fmt.Errorf("at least one chat reference is required in non-interactive mode")
	}

	ctx, cancel := signal.NotifyContext(c.Context, os.Interrupt, syscall.SIGTERM)
	defer cancel()
	c.Context = ctx

	cfg, log, client, console, cleanup, err := bootstrap(c)
	if err != nil {
		return err
	}
	defer cleanup()

	if len(refs) == 0 {
		dialogs, err := client.ListDialogs(ctx)
		if err != nil {
			return fmt.Errorf("list dialogs: %w", err)
		}
		dialog, err := console.SelectDialog(dialogs)
		if err != nil {
			return fmt.Errorf("chat selection failed: %w", err)
		}
		refs = []string{strconv.FormatInt(dialog.ID, 10)}
		log.Info().Str("title", dialog.Title).Int64("id", dialog.ID).Msg("selected chat")
	}

	paths := layout.NewLayout(cfg.OutputDir)
	docs := storage.NewJSONStore(paths)
	rel := storage.NewSQLStore(paths)
	store := storage.NewDualStore(docs, rel)
	defer store.Close()

	syncer := usecase.NewSyncer(client, store, paths, log)
	syncer.SetReporter(console)

	opts := usecase.Options{
		Limit:     c.Int("limit"),
		SkipMedia: c.Bool("skip-media"),
	}

	results := syncer.DownloadAll(ctx, refs, opts)
	console.Wait()
	console.PrintSummary(results)

	if failed := countFailed(results); failed > 0 {
		return fmt.Errorf("%d of %d chats failed", failed, len(results))
	}
	return nil
}

func runList(c *cli.Context) error {
	ctx, cancel := signal.NotifyContext(c.Context, os.Interrupt, syscall.SIGTERM)
	defer cancel()
	c.Context = ctx

	_, _, client, console, cleanup, err := bootstrap(c)
	if err != nil {
		return err
	}
	defer cleanup()

	dialogs, err := client.ListDialogs(ctx)
	if err != nil {
		return fmt.Errorf("list dialogs: %w", err)
	}
	console.PrintDialogs(dialogs)
	return nil
}

func countFailed(results []domain.SyncResult) int {
	n := 0
	for _, r := range results {
		if r.Error != "" {
			n++
		}
	}
	return n
}
