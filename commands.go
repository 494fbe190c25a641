package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/chyiyaqing/trendscope/internal/ai"
	"github.com/chyiyaqing/trendscope/internal/config"
	"github.com/chyiyaqing/trendscope/internal/events"
	"github.com/chyiyaqing/trendscope/internal/notify"
	"github.com/chyiyaqing/trendscope/internal/notify/telegram"
	"github.com/chyiyaqing/trendscope/internal/pipeline"
	"github.com/chyiyaqing/trendscope/internal/scheduler"
	"github.com/chyiyaqing/trendscope/internal/server"
	"github.com/chyiyaqing/trendscope/internal/store"
	"github.com/chyiyaqing/trendscope/internal/trend"
)

// app carries state shared by all commands once the root pre-run has
// loaded configuration.
type app struct {
	cfgFile string
	verbose bool
	cfg     *config.Config
	logger  *slog.Logger
}

func newRootCmd() *cobra.Command {
	a := &app{}
	root := &cobra.Command{
		Use:   "trendscope",
		Short: "Search-grounded trending video dashboard",
		Long: `trendscope asks Gemini (with Google Search grounding) for the videos trending
on YouTube, TikTok, X and Instagram, parses the reply into records and serves
them as a dashboard and JSON API.

Example usage:
  trendscope serve                          # dashboard, API and scheduled refresh
  trendscope fetch --platform tiktok        # one refresh, printed to stdout
  trendscope prompt --window week           # show the prompt that would be sent
  trendscope parse reply.txt --refs refs.json
  trendscope runs --limit 10                # recent refresh outcomes`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.init(cmd.ErrOrStderr())
		},
	}

	root.PersistentFlags().StringVar(&a.cfgFile, "config", "trendscope.yaml", "config file")
	root.PersistentFlags().BoolVarP(&a.verbose, "verbose", "v", false, "verbose output")

	root.AddCommand(
		a.serveCmd(),
		a.fetchCmd(),
		a.promptCmd(),
		a.parseCmd(),
		a.runsCmd(),
	)
	return root
}

func (a *app) init(stderr io.Writer) error {
	cfg, err := config.Load(a.cfgFile)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	a.cfg = cfg

	level := slog.LevelInfo
	if err := level.UnmarshalText([]byte(cfg.Log.Level)); err != nil {
		level = slog.LevelInfo
	}
	if a.verbose {
		level = slog.LevelDebug
	}
	a.logger = slog.New(slog.NewTextHandler(stderr, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(a.logger)

	a.logger.Debug("configuration loaded",
		"config", a.cfgFile,
		"model", cfg.Gemini.Model,
		"store", cfg.Store.Path,
		"schedule", cfg.Schedule.Cron,
	)
	return nil
}

func (a *app) aiConfig() ai.Config {
	return ai.Config{
		APIKey:     a.cfg.Gemini.APIKey,
		Model:      a.cfg.Gemini.Model,
		Timeout:    a.cfg.Gemini.Timeout,
		MaxRetries: a.cfg.Gemini.MaxRetries,
	}
}

// searcher returns a nil Searcher, not a typed nil, when no API key is set.
func (a *app) searcher(ctx context.Context) (pipeline.Searcher, error) {
	client, err := ai.NewClient(ctx, a.aiConfig(), a.logger)
	if err != nil {
		return nil, err
	}
	return client, nil
}

func (a *app) publisher() events.Publisher {
	if a.cfg.NATS.URL == "" {
		return events.Nop{}
	}
	p, err := events.Connect(a.cfg.NATS.URL, a.cfg.NATS.Subject, a.logger)
	if err != nil {
		a.logger.Warn("nats unavailable, refresh events disabled", "error", err)
		return events.Nop{}
	}
	return p
}

func (a *app) serveCmd() *cobra.Command {
	var addr string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the dashboard and API, refreshing on the configured schedule",
		RunE: func(cmd *cobra.Command, args []string) error {
			if addr != "" {
				a.cfg.Server.Addr = addr
			}
			ctx, cancel := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer cancel()
			return a.serve(ctx)
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "listen address (overrides server.addr)")
	return cmd
}

func (a *app) serve(ctx context.Context) error {
	if a.cfg.Schedule.Cron != "" {
		if err := scheduler.Validate(a.cfg.Schedule.Cron); err != nil {
			return fmt.Errorf("invalid schedule %q: %w", a.cfg.Schedule.Cron, err)
		}
	}

	db, err := store.New(a.cfg.Store.Path)
	if err != nil {
		return fmt.Errorf("open run log: %w", err)
	}
	defer db.Close()

	searcher, err := a.searcher(ctx)
	if errors.Is(err, ai.ErrMissingAPIKey) {
		a.logger.Warn("no Gemini API key configured; the dashboard will report the service as unavailable")
	} else if err != nil {
		return err
	}

	pub := a.publisher()
	defer pub.Close()

	svc := pipeline.NewService(searcher,
		pipeline.WithRunLog(db),
		pipeline.WithPublisher(pub),
		pipeline.WithLogger(a.logger),
	)
	initial := scheduler.InitialQuery(a.cfg.Schedule.Platform, a.cfg.Schedule.Window, a.logger)
	board := pipeline.NewBoard(svc, initial)

	srv := server.New(server.Config{
		Addr:           a.cfg.Server.Addr,
		CorsOrigins:    a.cfg.Server.CorsOrigins,
		RequestTimeout: a.aiConfig().Budget() + 10*time.Second,
	}, board, svc, db, a.logger)

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error { return srv.Start(ctx) })

	if a.cfg.Schedule.Cron != "" && searcher != nil {
		var notifier notify.Notifier
		if tg := telegram.New(a.cfg.Telegram.BotToken, a.cfg.Telegram.ChatID); tg != nil {
			notifier = tg
		}
		sched := scheduler.New(board, notifier, telegram.Digest, a.logger)
		g.Go(func() error { return sched.Run(ctx, a.cfg.Schedule.Cron) })
	} else {
		a.logger.Info("scheduled refresh disabled")
	}

	return g.Wait()
}

// selectionFlags registers --platform and --window on cmd.
func selectionFlags(cmd *cobra.Command, platform, window *string) {
	cmd.Flags().StringVarP(platform, "platform", "p", "all", "all, youtube, tiktok, x or instagram")
	cmd.Flags().StringVarP(window, "window", "w", "today", "today, week or month")
}

func parseSelection(platform, window string) (trend.Query, error) {
	p, err := trend.ParsePlatform(platform)
	if err != nil {
		return trend.Query{}, err
	}
	r, err := trend.ParseTimeRange(window)
	if err != nil {
		return trend.Query{}, err
	}
	return trend.Query{Platform: p, Range: r}, nil
}

func (a *app) fetchCmd() *cobra.Command {
	var platform, window string
	var asJSON, notifyTG bool
	cmd := &cobra.Command{
		Use:   "fetch",
		Short: "Run one refresh and print the trending records",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			q, err := parseSelection(platform, window)
			if err != nil {
				return err
			}
			ctx := cmd.Context()

			searcher, err := a.searcher(ctx)
			if err != nil {
				return err
			}
			db, err := store.New(a.cfg.Store.Path)
			if err != nil {
				return fmt.Errorf("open run log: %w", err)
			}
			defer db.Close()
			pub := a.publisher()
			defer pub.Close()

			svc := pipeline.NewService(searcher,
				pipeline.WithRunLog(db),
				pipeline.WithPublisher(pub),
				pipeline.WithLogger(a.logger),
			)
			run, err := svc.Fetch(ctx, q)
			if err != nil {
				return fmt.Errorf("fetch trends: %w", err)
			}

			if notifyTG {
				tg := telegram.New(a.cfg.Telegram.BotToken, a.cfg.Telegram.ChatID)
				if tg == nil {
					return errors.New("telegram not configured, set TG_BOT_TOKEN and TG_CHAT_ID")
				}
				title, body := telegram.Digest(run)
				if err := tg.Send(ctx, title, body); err != nil {
					return fmt.Errorf("send digest: %w", err)
				}
			}

			if asJSON {
				return writeJSON(cmd.OutOrStdout(), run)
			}
			printResult(cmd.OutOrStdout(), run.Query, run.Result)
			return nil
		},
	}
	selectionFlags(cmd, &platform, &window)
	cmd.Flags().BoolVar(&asJSON, "json", false, "print the run as JSON")
	cmd.Flags().BoolVar(&notifyTG, "notify", false, "also send the digest to Telegram")
	return cmd
}

func (a *app) promptCmd() *cobra.Command {
	var platform, window string
	cmd := &cobra.Command{
		Use:   "prompt",
		Short: "Print the prompt that would be sent for a selection",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			q, err := parseSelection(platform, window)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), pipeline.NewService(nil).Prompt(q))
			return nil
		},
	}
	selectionFlags(cmd, &platform, &window)
	return cmd
}

func (a *app) parseCmd() *cobra.Command {
	var refsFile string
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "parse <reply-file>",
		Short: "Parse a saved model reply offline",
		Long: `Parse a saved model reply (VIDEO|... and TOPIC|... lines) without calling the
generation service. Use - to read from stdin. --refs takes a JSON array of
{"title", "uri"} grounding references used for link resolution.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			text, err := readInput(cmd.InOrStdin(), args[0])
			if err != nil {
				return err
			}

			var refs []trend.GroundingRef
			if refsFile != "" {
				data, err := os.ReadFile(refsFile)
				if err != nil {
					return fmt.Errorf("read refs: %w", err)
				}
				if err := json.Unmarshal(data, &refs); err != nil {
					return fmt.Errorf("decode refs %s: %w", refsFile, err)
				}
			}

			res := trend.NewParser().Parse(text, refs)
			if asJSON {
				return writeJSON(cmd.OutOrStdout(), res)
			}
			printResult(cmd.OutOrStdout(), trend.Query{}, res)
			return nil
		},
	}
	cmd.Flags().StringVar(&refsFile, "refs", "", "JSON file of grounding references")
	cmd.Flags().BoolVar(&asJSON, "json", false, "print the result as JSON")
	return cmd
}

func (a *app) runsCmd() *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "runs",
		Short: "List recent refresh outcomes from the run log",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			db, err := store.New(a.cfg.Store.Path)
			if err != nil {
				return fmt.Errorf("open run log: %w", err)
			}
			defer db.Close()

			runs, err := db.RecentRuns(limit)
			if err != nil {
				return fmt.Errorf("list runs: %w", err)
			}
			out := cmd.OutOrStdout()
			if len(runs) == 0 {
				fmt.Fprintln(out, "No refresh runs recorded yet.")
				return nil
			}
			for _, r := range runs {
				fmt.Fprintf(out, "%s  %-14s %-10s %-6s records=%d grounded=%d",
					r.StartedAt.Local().Format("2006-01-02 15:04:05"), r.Platform, r.TimeRange, r.Status,
					r.RecordCount, r.GroundedCount)
				if r.Topic != "" {
					fmt.Fprintf(out, " topic=%q", r.Topic)
				}
				if r.Error != "" {
					fmt.Fprintf(out, " error=%q", r.Error)
				}
				fmt.Fprintln(out)
			}
			return nil
		},
	}
	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "number of runs to show")
	return cmd
}

func readInput(stdin io.Reader, name string) (string, error) {
	if name == "-" {
		data, err := io.ReadAll(stdin)
		if err != nil {
			return "", fmt.Errorf("read stdin: %w", err)
		}
		return string(data), nil
	}
	data, err := os.ReadFile(name)
	if err != nil {
		return "", fmt.Errorf("read reply: %w", err)
	}
	return string(data), nil
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func printResult(w io.Writer, q trend.Query, res trend.Result) {
	stats := trend.Summarize(res)
	if q.Platform != "" {
		fmt.Fprintf(w, "=== %s (%s) ===\n", q.Platform, q.Range)
	}
	fmt.Fprintf(w, "Topic: %s | Total views: %s | Top platform: %s\n\n", stats.Topic, stats.TotalViews, stats.TopPlatform)

	if len(res.Records) == 0 {
		fmt.Fprintln(w, "No specific trends found.")
		return
	}
	for i, rec := range res.Records {
		fmt.Fprintf(w, "%d. [%s] %s\n", i+1, rec.Platform, rec.Title)
		fmt.Fprintf(w, "   %s | %s views", rec.Creator, rec.Views)
		if rec.Category != "" {
			fmt.Fprintf(w, " | #%s", rec.Category)
		}
		fmt.Fprintln(w)
		fmt.Fprintf(w, "   %s\n", rec.Description)
		link := rec.URL
		if !rec.Grounded {
			link += " (search)"
		}
		fmt.Fprintf(w, "   %s\n\n", link)
	}
	fmt.Fprintf(w, "%s\n", strings.Repeat("-", 40))
	for _, c := range stats.Counts {
		fmt.Fprintf(w, "%-12s %d\n", c.Platform, c.Count)
	}
}
