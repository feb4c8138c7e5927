package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/alienxp03/gempt/internal/config"
	"github.com/alienxp03/gempt/internal/core"
	"github.com/alienxp03/gempt/internal/export"
	"github.com/alienxp03/gempt/internal/oracle"
	"github.com/alienxp03/gempt/internal/session"
	"github.com/alienxp03/gempt/internal/storage"
	"github.com/alienxp03/gempt/web/handlers"
)

var (
	dbPath    string
	cfgPath   string
	debug     bool
	appConfig *config.Config
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "gempt",
	Short: "Cross-verified problem solving",
	Long: `gempt solves a problem from an image by letting two models argue.

A Solver answers, a Verifier checks the answer, and when they disagree
they debate for a bounded number of rounds. Each project keeps a running
score of who won.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		level := slog.LevelWarn
		if debug {
			level = slog.LevelDebug
		}
		slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))

		var err error
		if cfgPath != "" {
			appConfig, err = config.LoadFrom(cfgPath)
		} else {
			appConfig, err = config.Load()
		}
		if err != nil {
			return fmt.Errorf("failed to load config: %w", err)
		}
		if dbPath != "" {
			appConfig.Storage.Path = dbPath
		}
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&dbPath, "db", "", "Database path (default: ~/.gempt/gempt.db)")
	rootCmd.PersistentFlags().StringVar(&cfgPath, "config", "", "Config file path (default: ~/.gempt/config.yaml)")
	rootCmd.PersistentFlags().BoolVar(&debug, "debug", false, "Enable debug logging")

	rootCmd.AddCommand(solveCmd)
	rootCmd.AddCommand(scoresCmd)
	rootCmd.AddCommand(historyCmd)
	rootCmd.AddCommand(showCmd)
	rootCmd.AddCommand(exportCmd)
	rootCmd.AddCommand(deleteCmd)
	rootCmd.AddCommand(oraclesCmd)
	rootCmd.AddCommand(configCmd)
	rootCmd.AddCommand(serveCmd)
}

func getStorage() (*storage.SQLiteStorage, error) {
	store, err := storage.NewSQLiteStorage(appConfig.StoragePath())
	if err != nil {
		return nil, err
	}

	if err := store.Initialize(); err != nil {
		store.Close()
		return nil, err
	}

	return store, nil
}

// ============================================================================
// SOLVE COMMAND
// ============================================================================

var solveCmd = &cobra.Command{
	Use:   "solve IMAGE [QUESTION...]",
	Short: "Solve the problem shown in an image",
	Long: `Solve a problem from an image and cross-verify the answer.

Examples:
  gempt solve problem.png
  gempt solve problem.png "Find all real roots" --project algebra
  gempt solve problem.png --dialect ko --rounds 3 --export pdf`,
	Args: cobra.MinimumNArgs(1),
	RunE: runSolve,
}

var (
	projectFlag     string
	dialectFlag     string
	roundsFlag      int
	noKnowledgeFlag bool
	noSummaryFlag   bool
	solveExportFlag string
)

func init() {
	solveCmd.Flags().StringVarP(&projectFlag, "project", "p", "", "Project ID for score tracking")
	solveCmd.Flags().StringVarP(&dialectFlag, "dialect", "d", "", "Prompt dialect (en, ko)")
	solveCmd.Flags().IntVarP(&roundsFlag, "rounds", "r", 0, "Maximum debate rounds")
	solveCmd.Flags().BoolVar(&noKnowledgeFlag, "no-knowledge", false, "Skip the web search knowledge step")
	solveCmd.Flags().BoolVar(&noSummaryFlag, "no-summary", false, "Skip the final report")
	solveCmd.Flags().StringVar(&solveExportFlag, "export", "", "Export the session afterwards ("+export.FormatNames()+")")
}

func runSolve(cmd *cobra.Command, args []string) error {
	if solveExportFlag != "" {
		if _, err := export.GetExporter(export.Format(strings.ToLower(solveExportFlag))); err != nil {
			return err
		}
	}

	media, err := readMedia(args[0])
	if err != nil {
		return err
	}

	if roundsFlag > 0 {
		appConfig.Engine.MaxRounds = roundsFlag
	}

	store, err := getStorage()
	if err != nil {
		return fmt.Errorf("failed to initialize storage: %w", err)
	}
	defer store.Close()

	orch, _, err := appConfig.CreateOrchestrator(store)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigCh)
	go func() {
		select {
		case <-sigCh:
			fmt.Println("\n\nInterrupted. Stopping after the current call...")
			cancel()
		case <-ctx.Done():
		}
	}()

	question := strings.Join(args[1:], " ")
	fmt.Printf("\n💬 Solving: %s\n", media.Name)
	if question != "" {
		fmt.Printf("   Question: %s\n", question)
	}
	fmt.Printf("   Solver: %s | Verifier: %s\n", describeOracle(appConfig.Oracles.Solver), describeOracle(appConfig.Oracles.Verifier))
	fmt.Println(strings.Repeat("─", 60))

	res, err := orch.SolveWithCallbacks(ctx, session.Request{
		ProjectID:     projectFlag,
		Question:      question,
		Dialect:       dialectFlag,
		Media:         media,
		SkipKnowledge: noKnowledgeFlag,
		SkipSummary:   noSummaryFlag,
	}, session.Callbacks{
		OnStep:  printStep,
		OnRound: printRound,
	})
	if err != nil {
		if ctx.Err() != nil {
			fmt.Println("\nSession cancelled.")
			return nil
		}
		return err
	}

	printResult(res)

	if solveExportFlag != "" && res.Session != nil {
		path, err := exportSession(res.Session, solveExportFlag, "")
		if err != nil {
			return err
		}
		fmt.Printf("\nExported to: %s\n", path)
	}
	return nil
}

func readMedia(path string) (*core.Media, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open image: %w", err)
	}
	defer f.Close()
	return core.ReadMedia(filepath.Base(path), f)
}

func describeOracle(o config.OracleConfig) string {
	if o.Model == "" {
		return o.Provider
	}
	return o.Provider + "/" + o.Model
}

func printStep(step core.Step) {
	fmt.Printf("▸ %s: %s\n", step.Actor, step.Name)
}

func printRound(round core.Round) {
	fmt.Printf("\n📢 Round %d\n", round.Index)
	fmt.Println(strings.Repeat("─", 40))
	fmt.Printf("   Solver:   %s\n", round.DefenseDecision)
	if round.ReactionDecision != "" {
		fmt.Printf("   Verifier: %s\n", round.ReactionDecision)
	}
	if round.AwardedTo != "" {
		fmt.Printf("   +%d to %s\n", round.Award, round.AwardedTo)
	}
	if round.Note != "" {
		fmt.Printf("   Note: %s\n", round.Note)
	}
}

func printResult(res *session.Result) {
	fmt.Printf("\n%s\n", strings.Repeat("═", 60))
	fmt.Printf("🏁 RESULT: %s\n", res.Winner)
	fmt.Println(strings.Repeat("═", 60))
	fmt.Printf("\n%s\n", res.FinalAnswer)
	fmt.Printf("\nScores: Solver %d | Verifier %d\n", res.Scores.Solver, res.Scores.Verifier)
	if res.Summary != "" {
		fmt.Printf("\n%s\n", res.Summary)
	}
	fmt.Printf("\nSession: %s\n", res.ID)
}

// ============================================================================
// SCORES COMMAND
// ============================================================================

var scoresCmd = &cobra.Command{
	Use:   "scores [project]",
	Short: "Show a project's running scores",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		projectID := appConfig.DefaultProject
		if len(args) == 1 {
			projectID = args[0]
		}

		store, err := getStorage()
		if err != nil {
			return err
		}
		defer store.Close()

		l, err := appConfig.CreateLedger(store.DB())
		if err != nil {
			return err
		}

		scores := l.Load(cmd.Context(), projectID)
		w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
		fmt.Fprintf(w, "PROJECT\t%s\n", projectID)
		fmt.Fprintf(w, "Solver\t%d\n", scores.Solver)
		fmt.Fprintf(w, "Verifier\t%d\n", scores.Verifier)
		return w.Flush()
	},
}

// ============================================================================
// HISTORY COMMAND
// ============================================================================

var (
	historyProject string
	historyLimit   int
)

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "List past sessions",
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := getStorage()
		if err != nil {
			return err
		}
		defer store.Close()

		sessions, err := store.ListSessions(historyLimit, 0, historyProject)
		if err != nil {
			return err
		}

		if len(sessions) == 0 {
			fmt.Println("No sessions found. Start one with: gempt solve problem.png")
			return nil
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "ID\tPROJECT\tQUESTION\tSTATUS\tWINNER\tROUNDS\tCREATED")

		for _, s := range sessions {
			question := s.Question
			if len(question) > 35 {
				question = question[:32] + "..."
			}
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%d\t%s\n",
				shortID(s.ID),
				s.ProjectID,
				question,
				s.Status,
				s.Winner,
				s.Rounds,
				s.CreatedAt.Format("2006-01-02 15:04"),
			)
		}
		return w.Flush()
	},
}

func init() {
	historyCmd.Flags().StringVarP(&historyProject, "project", "p", "", "Only show this project")
	historyCmd.Flags().IntVarP(&historyLimit, "limit", "n", 50, "Maximum sessions to list")
}

// ============================================================================
// SHOW COMMAND
// ============================================================================

var showCmd = &cobra.Command{
	Use:   "show [id]",
	Short: "Show session details",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := getStorage()
		if err != nil {
			return err
		}
		defer store.Close()

		sess, err := findSession(store, args[0])
		if err != nil {
			return err
		}

		fmt.Printf("\n💬 Session: %s\n", sess.ID)
		fmt.Printf("   Project: %s\n", sess.ProjectID)
		fmt.Printf("   Status: %s\n", sess.Status)
		if sess.Question != "" {
			fmt.Printf("   Question: %s\n", sess.Question)
		}
		if sess.Subject != "" {
			fmt.Printf("   Subject: %s\n", sess.Subject)
		}
		fmt.Printf("   Created: %s\n", sess.CreatedAt.Format(time.RFC3339))
		if sess.Error != "" {
			fmt.Printf("   Error: %s\n", sess.Error)
		}

		if sess.Decision != nil {
			for _, round := range sess.Decision.Transcript {
				printRound(round)
			}
			fmt.Printf("\n%s\n", strings.Repeat("═", 60))
			fmt.Printf("🏁 RESULT: %s\n", sess.Decision.Winner.Kind)
			fmt.Println(strings.Repeat("═", 60))
			fmt.Printf("\n%s\n", sess.Decision.FinalAnswer)
		}
		if sess.Summary != "" {
			fmt.Printf("\n%s\n", sess.Summary)
		}
		return nil
	},
}

// ============================================================================
// EXPORT COMMAND
// ============================================================================

var (
	exportFormat string
	exportOutput string
)

var exportCmd = &cobra.Command{
	Use:   "export [id]",
	Short: "Export a session to file",
	Long: `Export a session to markdown, PDF, or JSON.

Examples:
  gempt export abc123
  gempt export abc123 --format pdf
  gempt export abc123 --format json -o session.json`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := getStorage()
		if err != nil {
			return err
		}
		defer store.Close()

		sess, err := findSession(store, args[0])
		if err != nil {
			return err
		}

		path, err := exportSession(sess, exportFormat, exportOutput)
		if err != nil {
			return err
		}
		fmt.Printf("Exported to: %s\n", path)
		return nil
	},
}

func init() {
	exportCmd.Flags().StringVarP(&exportFormat, "format", "f", string(export.FormatMarkdown), "Export format ("+export.FormatNames()+")")
	exportCmd.Flags().StringVarP(&exportOutput, "output", "o", "", "Output file path")
}

func exportSession(sess *core.Session, format, outputPath string) (string, error) {
	exporter, err := export.GetExporter(export.Format(strings.ToLower(format)))
	if err != nil {
		return "", err
	}

	if outputPath == "" {
		outputPath = export.GenerateFilename(sess, exporter.FileExtension())
	}

	file, err := os.Create(outputPath)
	if err != nil {
		return "", fmt.Errorf("failed to create file: %w", err)
	}
	defer file.Close()

	if err := exporter.Export(sess, file); err != nil {
		return "", fmt.Errorf("failed to export: %w", err)
	}
	return outputPath, nil
}

// ============================================================================
// DELETE COMMAND
// ============================================================================

var deleteCmd = &cobra.Command{
	Use:   "delete [id]",
	Short: "Delete a session",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := getStorage()
		if err != nil {
			return err
		}
		defer store.Close()

		sess, err := findSession(store, args[0])
		if err != nil {
			return err
		}

		if !sess.IsFinished() {
			return fmt.Errorf("session %s is still %s", shortID(sess.ID), sess.Status)
		}

		if err := store.DeleteSession(sess.ID); err != nil {
			return err
		}

		fmt.Printf("Deleted session: %s\n", sess.ID)
		return nil
	},
}

// ============================================================================
// ORACLES COMMAND
// ============================================================================

var oraclesCheck bool

var oraclesCmd = &cobra.Command{
	Use:   "oracles",
	Short: "List the configured oracles",
	RunE: func(cmd *cobra.Command, args []string) error {
		oracles, err := appConfig.CreateOracles()
		if err != nil {
			return err
		}

		roles := map[string]config.OracleConfig{
			"solver":   appConfig.Oracles.Solver,
			"verifier": appConfig.Oracles.Verifier,
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "ROLE\tORACLE\tSTATUS")

		for _, o := range oracles.Registry.List() {
			status := "❌ Not available"
			if o.Available() {
				status = "✅ Available"
			}
			if oraclesCheck {
				h := oracle.HealthCheck(cmd.Context(), o)
				if h.Healthy {
					status = fmt.Sprintf("✅ Healthy (%s)", h.ResponseTime.Round(time.Millisecond))
				} else {
					status = "❌ " + h.Error
				}
			}
			fmt.Fprintf(w, "%s\t%s\t%s\n", o.Name(), describeOracle(roles[o.Name()]), status)
		}
		return w.Flush()
	},
}

func init() {
	oraclesCmd.Flags().BoolVar(&oraclesCheck, "check", false, "Send a health check prompt to each oracle")
}

// ============================================================================
// CONFIG COMMAND
// ============================================================================

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage configuration",
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show current configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		fmt.Printf("Config file: %s\n\n", config.DefaultConfigPath())

		fmt.Println("Current settings:")
		fmt.Printf("  Dialect: %s\n", appConfig.Dialect)
		fmt.Printf("  Default project: %s\n", appConfig.DefaultProject)
		fmt.Printf("  Max rounds: %d\n", appConfig.Engine.MaxRounds)
		fmt.Printf("  Ledger: %s\n", appConfig.Ledger.Backend)
		fmt.Printf("  Solver: %s\n", describeOracle(appConfig.Oracles.Solver))
		fmt.Printf("  Verifier: %s\n", describeOracle(appConfig.Oracles.Verifier))
		fmt.Printf("  Knowledge: %t (search key set: %t)\n", appConfig.Knowledge.Enabled, appConfig.Search.APIKey != "")
		fmt.Printf("  Summary: %t\n", appConfig.Summary.Enabled)
		return nil
	},
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Create example config file",
	RunE: func(cmd *cobra.Command, args []string) error {
		path := config.DefaultConfigPath()
		if cfgPath != "" {
			path = cfgPath
		}
		if _, err := os.Stat(path); err == nil {
			return fmt.Errorf("config already exists at %s", path)
		}

		if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
			return err
		}
		if err := os.WriteFile(path, []byte(config.GenerateExample()), 0600); err != nil {
			return err
		}

		fmt.Printf("Created config at: %s\n", path)
		return nil
	},
}

func init() {
	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configInitCmd)
}

// ============================================================================
// SERVE COMMAND
// ============================================================================

var servePort int

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP API",
	RunE: func(cmd *cobra.Command, args []string) error {
		if !cmd.Flags().Changed("port") && appConfig.Server.Port != 0 {
			servePort = appConfig.Server.Port
		}

		store, err := getStorage()
		if err != nil {
			return fmt.Errorf("failed to initialize storage: %w", err)
		}
		defer store.Close()

		orch, oracles, err := appConfig.CreateOrchestrator(store)
		if err != nil {
			return err
		}

		fmt.Printf("\n🌐 Starting gempt API on http://localhost:%d\n\n", servePort)
		fmt.Println("Available endpoints:")
		fmt.Printf("  POST http://localhost:%d/api/solve          - Solve an uploaded image\n", servePort)
		fmt.Printf("  GET  http://localhost:%d/api/sessions       - List sessions\n", servePort)
		fmt.Printf("  GET  http://localhost:%d/api/scores/:project - Project scores\n", servePort)
		fmt.Println("\nPress Ctrl+C to stop the server")

		return startServer(handlers.New(orch, oracles.Registry), servePort)
	},
}

func init() {
	serveCmd.Flags().IntVar(&servePort, "port", 8182, "Server port")
}

func startServer(h *handlers.Handler, port int) error {
	server := &http.Server{
		Addr:    fmt.Sprintf(":%d", port),
		Handler: h.Routes(),
	}

	go func() {
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
		<-sigCh
		fmt.Println("\nShutting down...")
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		server.Shutdown(ctx)
	}()

	if err := server.ListenAndServe(); err != http.ErrServerClosed {
		return fmt.Errorf("server error: %w", err)
	}
	return nil
}

// ============================================================================
// HELPERS
// ============================================================================

// findSession resolves a full ID or a unique prefix of a recent session.
func findSession(store storage.Storage, prefix string) (*core.Session, error) {
	if sess, err := store.GetSession(prefix); err == nil && sess != nil {
		return sess, nil
	}

	sessions, err := store.ListSessions(100, 0, "")
	if err != nil {
		return nil, err
	}
	for _, s := range sessions {
		if strings.HasPrefix(s.ID, prefix) {
			return store.GetSession(s.ID)
		}
	}
	return nil, fmt.Errorf("session not found: %s", prefix)
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
