package cmd

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/andrejsstepanovs/docqa/analysis"
	"github.com/andrejsstepanovs/docqa/chat"
	"github.com/andrejsstepanovs/docqa/config"
	"github.com/andrejsstepanovs/docqa/file"
	"github.com/andrejsstepanovs/docqa/ingest"
	"github.com/andrejsstepanovs/docqa/models"
	"github.com/andrejsstepanovs/docqa/qa"
	"github.com/andrejsstepanovs/docqa/server"
	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"
)

// Version is set at build time.
var Version = "dev"

var labelStyle = lipgloss.NewStyle().Bold(true)

func newServeCmd(app *App) *cobra.Command {
	var syncFirst bool
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := app.open(); err != nil {
				return err
			}
			if syncFirst {
				if _, err := app.ingest.Sync(cmd.Context(), false); err != nil {
					return err
				}
			}

			cfg := app.cfg.Server
			router := server.NewRouter(server.Options{
				Bot:            app.bot,
				Syncer:         app.ingest,
				Charts:         app.charts,
				DB:             app.conn,
				GraphDir:       app.cfg.GraphDir(),
				EnableCORS:     cfg.EnableCORS,
				EnableXSRF:     cfg.EnableXSRFProtection,
				MaxUploadBytes: cfg.MaxUploadBytes,
				Version:        Version,
			})
			return server.New(cfg, router).Run(cmd.Context())
		},
	}
	cmd.Flags().String("address", "", "address to bind (default 0.0.0.0)")
	cmd.Flags().Int("port", 0, "port to listen on (default 5000)")
	cmd.Flags().Bool("headless", true, "do not print the browser hint")
	cmd.Flags().String("provider", "", "model provider: huggingface, litellm or ollama")
	cmd.Flags().BoolVar(&syncFirst, "sync", false, "index the data directories before serving")
	return cmd
}

func newIngestCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "ingest <file>...",
		Short: "Index PDF or image files",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := app.open(); err != nil {
				return err
			}
			var failed int
			for _, path := range args {
				res, err := app.ingestFile(cmd.Context(), path)
				if err != nil {
					fmt.Fprintf(cmd.ErrOrStderr(), "❌ Error processing %s: %v\n", filepath.Base(path), err)
					failed++
					continue
				}
				printResult(cmd, res)
			}
			if failed > 0 {
				return fmt.Errorf("%d of %d files failed", failed, len(args))
			}
			return nil
		},
	}
}

// ingestFile indexes a file in place when it already lives in its data
// directory and copies it there otherwise.
func (a *App) ingestFile(ctx context.Context, path string) (ingest.Result, error) {
	kind, ok := file.KindOf(path, "")
	if !ok {
		return ingest.Result{File: filepath.Base(path)}, fmt.Errorf("%w: %s", ingest.ErrUnsupportedType, path)
	}

	abs, err := filepath.Abs(path)
	if err != nil {
		return ingest.Result{}, err
	}
	dir, err := filepath.Abs(a.dirFor(kind))
	if err != nil {
		return ingest.Result{}, err
	}
	if filepath.Dir(abs) == dir {
		return a.ingest.IndexFile(ctx, abs, kind)
	}

	f, err := os.Open(path)
	if err != nil {
		return ingest.Result{File: filepath.Base(path)}, err
	}
	defer f.Close()
	return a.bot.Upload(ctx, filepath.Base(path), "", f)
}

func printResult(cmd *cobra.Command, res ingest.Result) {
	if res.Skipped {
		fmt.Fprintf(cmd.OutOrStdout(), "⏭️  %s skipped: %s\n", res.File, res.Reason)
		return
	}
	fmt.Fprintf(cmd.OutOrStdout(), "✅ %s processed successfully (%s, %d chunks in %s).\n", res.File, res.Kind, res.Chunks, res.Index)
}

func newYouTubeCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "youtube <url>",
		Short: "Transcribe and index a YouTube video",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := app.open(); err != nil {
				return err
			}
			res, err := app.bot.YouTube(cmd.Context(), args[0])
			if err != nil {
				return fmt.Errorf("error processing YouTube video: %w", err)
			}
			printResult(cmd, res)
			return nil
		},
	}
}

func newSyncCmd(app *App) *cobra.Command {
	var rebuild bool
	cmd := &cobra.Command{
		Use:   "sync",
		Short: "Index new files in the data directories and drop indexes of deleted ones",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := app.open(); err != nil {
				return err
			}
			report, err := app.ingest.Sync(cmd.Context(), rebuild)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			for _, res := range report.Indexed {
				printResult(cmd, res)
			}
			for _, name := range report.Failed {
				fmt.Fprintf(out, "❌ %s failed\n", name)
			}
			for _, name := range report.Removed {
				fmt.Fprintf(out, "🗑️  %s removed\n", name)
			}
			fmt.Fprintf(out, "%d indexed, %d skipped, %d failed, %d removed\n",
				len(report.Indexed), report.Skipped, len(report.Failed), len(report.Removed))
			return nil
		},
	}
	cmd.Flags().BoolVar(&rebuild, "rebuild", false, "drop every index and rebuild from the data directories")
	return cmd
}

func newAskCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "ask <question>",
		Short: "Ask a question about the indexed documents",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := app.open(); err != nil {
				return err
			}
			reply, err := app.bot.Ask(cmd.Context(), strings.Join(args, " "))
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "🧠 Answer: %s\n", reply.Answer)
			if reply.Chart != "" {
				name, _ := analysis.ChartFile(reply.Chart)
				fmt.Fprintf(cmd.OutOrStdout(), "Chart: %s\n", filepath.Join(app.cfg.GraphDir(), name))
			}
			return nil
		},
	}
}

func newSearchCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "find <query>",
		Short: "Show the chunks most similar to a query, without asking the model",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := app.open(); err != nil {
				return err
			}
			agent, err := qa.New(app.conn, app.ai, app.ai, app.cfg.Processing.RetrieverK, app.cfg.Processing.SimilarityThreshold)
			if err != nil {
				return err
			}

			query := strings.Join(args, " ")
			fmt.Fprintf(cmd.OutOrStdout(), "Searching for: %s\n", query)
			results, err := agent.Find(cmd.Context(), query)
			if err != nil {
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(), "Found %d chunks\n", len(results))
			for _, r := range results {
				fmt.Fprintf(cmd.OutOrStdout(), "%s \t (%f %d) %s\n", r.Source, r.Distance, r.ChunkID, preview(r.Content))
			}
			return nil
		},
	}
}

func preview(s string) string {
	s = strings.Join(strings.Fields(s), " ")
	if r := []rune(s); len(r) > 80 {
		return string(r[:80]) + "..."
	}
	return s
}

func newChartCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:       "chart <vehicles|stock|correlation>",
		Short:     "Render a financial chart",
		Args:      cobra.MatchAll(cobra.ExactArgs(1), cobra.OnlyValidArgs),
		ValidArgs: []string{analysis.ChartVehicles, analysis.ChartStock, analysis.ChartCorrelation},
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := app.open(); err != nil {
				return err
			}
			if args[0] == analysis.ChartCorrelation {
				path, r, err := app.charts.SalesVsStock(cmd.Context())
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Correlation: %.3f\nChart saved to: %s\n", r, path)
				return nil
			}

			path, err := app.charts.Render(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Chart saved to: %s\n", path)
			return nil
		},
	}
}

func newOCRCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "ocr <image>",
		Short: "Extract text and text blocks from an image without indexing it",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := app.open(); err != nil {
				return err
			}
			res, err := app.ocr.Extract(args[0], filepath.Base(args[0]))
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintln(out, res.Text)
			if res.TextPath != "" {
				fmt.Fprintf(out, "Text saved to: %s\n", res.TextPath)
			}
			for _, t := range res.Tables {
				fmt.Fprintf(out, "Table saved to: %s\n", t)
			}
			return nil
		},
	}
}

func newHistoryCmd(app *App) *cobra.Command {
	var clearAll bool
	cmd := &cobra.Command{
		Use:   "history",
		Short: "Show the conversation history",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := app.open(); err != nil {
				return err
			}
			if clearAll {
				return app.bot.ClearHistory()
			}

			messages, err := app.bot.History()
			if err != nil {
				return err
			}
			printHistory(cmd, messages)
			return nil
		},
	}
	cmd.Flags().BoolVar(&clearAll, "clear", false, "delete the conversation history")
	return cmd
}

func printHistory(cmd *cobra.Command, messages []models.Message) {
	out := cmd.OutOrStdout()
	if len(messages) == 0 {
		fmt.Fprintln(out, "No conversation history yet.")
		return
	}
	for _, m := range messages {
		fmt.Fprintf(out, "%s: %s\n", labelStyle.Render(chat.Label(m.Role)), m.Content)
	}
}

func newConfigCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Manage the configuration file",
	}

	var force bool
	initCmd := &cobra.Command{
		Use:   "init [path]",
		Short: "Write the effective configuration to a YAML file",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := "docqa.yaml"
			if len(args) == 1 {
				path = args[0]
			}
			if _, err := os.Stat(path); err == nil && !force {
				return fmt.Errorf("%s already exists, use --force to overwrite", path)
			} else if err != nil && !errors.Is(err, fs.ErrNotExist) {
				return err
			}

			if err := config.WriteFile(app.cfg, path); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Configuration written to %s\n", path)
			return nil
		},
	}
	initCmd.Flags().BoolVar(&force, "force", false, "overwrite an existing file")

	cmd.AddCommand(initCmd)
	return cmd
}

func newRootCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:           "docqa",
		Short:         "Agentic document QA: index PDFs, images and YouTube videos and ask questions",
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return app.loadConfig(cmd.Flags())
		},
		PersistentPostRun: func(*cobra.Command, []string) {
			app.close()
		},
	}
	cmd.PersistentFlags().StringVar(&app.configFile, "config", "", "config file (default docqa.yaml)")
	cmd.PersistentFlags().String("data-dir", "", "data directory (default ./data)")
	cmd.PersistentFlags().String("log-level", "", "log level: debug, info, warn or error")

	cmd.AddCommand(
		newServeCmd(app),
		newIngestCmd(app),
		newYouTubeCmd(app),
		newSyncCmd(app),
		newAskCmd(app),
		newSearchCmd(app),
		newChartCmd(app),
		newOCRCmd(app),
		newHistoryCmd(app),
		newConfigCmd(app),
	)
	return cmd
}

// Execute initializes and runs the root command. It is the single entry point
// for the command-line interface.
func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	app := &App{}
	rootCmd := newRootCmd(app)
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		app.close()
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		stop()
		os.Exit(1)
	}
}
