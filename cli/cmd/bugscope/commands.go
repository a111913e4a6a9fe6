package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"bugscope/cli/internal/embedding"
	"bugscope/cli/internal/erruser"
	"bugscope/cli/internal/history"
	"bugscope/cli/internal/rules"
	"bugscope/cli/internal/scan"
	"bugscope/cli/internal/server"
	"bugscope/cli/internal/sniff"
	"bugscope/cli/internal/stats"
)

// readInput returns the snippet named by args: a file path, or stdin for "-" or no argument.
func readInput(cmd *cobra.Command, args []string) (code, path string, err error) {
	if len(args) == 0 || args[0] == "-" {
		data, err := io.ReadAll(cmd.InOrStdin())
		if err != nil {
			return "", "", erruser.New("Could not read snippet from stdin.", err)
		}
		return string(data), "", nil
	}
	data, err := os.ReadFile(args[0])
	if err != nil {
		return "", "", erruser.New(fmt.Sprintf("Could not read %s.", args[0]), err)
	}
	return string(data), args[0], nil
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return erruser.New("Could not write output.", err)
	}
	return nil
}

func traceWriter(cmd *cobra.Command) io.Writer {
	if on, _ := cmd.Flags().GetBool("trace"); on {
		return cmd.ErrOrStderr()
	}
	return nil
}

// unreachable prints the provider hint and returns exit code 2 when err is an
// embedding connectivity failure; otherwise it returns err.
func unreachable(cmd *cobra.Command, a *app, err error) error {
	if !errors.Is(err, embedding.ErrUnreachable) {
		return err
	}
	errOut := cmd.ErrOrStderr()
	fmt.Fprintf(errOut, "Embedding provider %s unreachable. For local Ollama: ollama serve.\n", a.cfg.EmbeddingProvider)
	fmt.Fprintf(errOut, "Details: %v\n", err)
	return errExit(exitUnreachable)
}

func newDetectCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "detect [file|-]",
		Short: "Detect bugs in a snippet (rules, classifier tiers and consensus)",
		Args:  cobra.MaximumNArgs(1),
		RunE:  runDetect,
	}
	cmd.Flags().Bool("json", false, "Emit the full result as JSON to stdout")
	cmd.Flags().Bool("trace", false, "Print pipeline steps to stderr (sniffing, rules, feature vectors, tiers, consensus)")
	cmd.Flags().Bool("fail-on-bug", false, "Exit with code 3 when the verdict is a bug")
	return cmd
}

func runDetect(cmd *cobra.Command, args []string) error {
	code, path, err := readInput(cmd, args)
	if err != nil {
		return err
	}
	a, err := newApp(cmd, traceWriter(cmd))
	if err != nil {
		return err
	}
	defer a.close()
	res, err := a.det.Detect(cmd.Context(), code)
	if err != nil {
		return unreachable(cmd, a, err)
	}
	a.record(history.FromResult(res, history.SourceCLI, path))

	out := cmd.OutOrStdout()
	if asJSON, _ := cmd.Flags().GetBool("json"); asJSON {
		if err := writeJSON(out, res); err != nil {
			return err
		}
	} else {
		writeResultHuman(out, res)
	}
	if fail, _ := cmd.Flags().GetBool("fail-on-bug"); fail && res.Bug() {
		return errExit(exitBug)
	}
	return nil
}

func newAnalyzeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "analyze [file|-]",
		Short: "Rule-only analysis: language, findings, severity and language feature counts",
		Args:  cobra.MaximumNArgs(1),
		RunE:  runAnalyze,
	}
	cmd.Flags().Bool("json", false, "Emit the analysis as JSON to stdout")
	return cmd
}

func runAnalyze(cmd *cobra.Command, args []string) error {
	code, _, err := readInput(cmd, args)
	if err != nil {
		return err
	}
	a, err := newApp(cmd, nil)
	if err != nil {
		return err
	}
	defer a.close()
	an := a.det.Analyze(code)
	out := cmd.OutOrStdout()
	if asJSON, _ := cmd.Flags().GetBool("json"); asJSON {
		return writeJSON(out, an)
	}
	writeAnalysisHuman(out, an)
	return nil
}

func newScanCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "scan <dir>",
		Short: "Detect bugs in every Python, Java and C++ file under a directory",
		Args:  cobra.ExactArgs(1),
		RunE:  runScan,
	}
	cmd.Flags().Bool("json", false, "Emit reports as JSON to stdout")
	cmd.Flags().Bool("include-vendored", false, "Also scan vendored directories (vendor/, node_modules/, ...)")
	cmd.Flags().Int64("max-bytes", scan.DefaultMaxBytes, "Skip files larger than this many bytes")
	cmd.Flags().Bool("fail-on-bug", false, "Exit with code 3 when any file's verdict is a bug")
	return cmd
}

func runScan(cmd *cobra.Command, args []string) error {
	a, err := newApp(cmd, nil)
	if err != nil {
		return err
	}
	defer a.close()
	includeVendored, _ := cmd.Flags().GetBool("include-vendored")
	maxBytes, _ := cmd.Flags().GetInt64("max-bytes")
	outcome, err := scan.Run(cmd.Context(), a.det, scan.Options{
		Root:            args[0],
		MaxBytes:        maxBytes,
		IncludeVendored: includeVendored,
		Logger:          a.log,
	})
	switch {
	case errors.Is(err, scan.ErrNoSources):
		fmt.Fprintf(cmd.ErrOrStderr(), "No Python, Java or C++ sources under %s.\n", args[0])
		return nil
	case err != nil:
		return unreachable(cmd, a, err)
	}
	recs := make([]history.Record, len(outcome.Reports))
	for i, r := range outcome.Reports {
		recs[i] = history.FromResult(r.Result, history.SourceScan, r.Path)
	}
	a.record(recs...)

	out := cmd.OutOrStdout()
	if asJSON, _ := cmd.Flags().GetBool("json"); asJSON {
		if err := writeJSON(out, outcome); err != nil {
			return err
		}
	} else {
		writeScanHuman(out, outcome)
	}
	if fail, _ := cmd.Flags().GetBool("fail-on-bug"); fail && outcome.Bugs() > 0 {
		return errExit(exitBug)
	}
	return nil
}

func newRulesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "rules [language]",
		Short: "List the rule catalogs (python, java, cpp)",
		Args:  cobra.MaximumNArgs(1),
		RunE:  runRules,
	}
}

func runRules(cmd *cobra.Command, args []string) error {
	langs := sniff.Supported
	if len(args) == 1 {
		l := sniff.Parse(args[0])
		if l == sniff.Unknown {
			return erruser.New(fmt.Sprintf("Unknown language %q; use python, java or cpp.", args[0]), nil)
		}
		langs = []sniff.Language{l}
	}
	out := cmd.OutOrStdout()
	for i, l := range langs {
		if i > 0 {
			fmt.Fprintln(out)
		}
		fmt.Fprintf(out, "%s:\n", l)
		for _, r := range rules.Catalog(l) {
			fmt.Fprintf(out, "  %s  %-18s  %s\n", r.ID, r.Category, r.Message)
		}
	}
	return nil
}

func newServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API until interrupted",
		Args:  cobra.NoArgs,
		RunE:  runServe,
	}
	cmd.Flags().String("addr", "", "Listen address host:port (default from config, 0.0.0.0:8000)")
	return cmd
}

func runServe(cmd *cobra.Command, args []string) error {
	a, err := newApp(cmd, nil)
	if err != nil {
		return err
	}
	defer a.close()
	srv, err := server.New(server.Options{
		Detector: a.det,
		History:  a.store,
		Logger:   a.log,
		CORS: server.CORSConfig{
			Origins:          a.cfg.CORSOrigins,
			AllowCredentials: a.cfg.CORSAllowCredentials,
		},
		Addr:            a.cfg.ServerAddr,
		ReadTimeout:     a.cfg.ReadTimeout,
		WriteTimeout:    a.cfg.WriteTimeout,
		ShutdownTimeout: a.cfg.ShutdownTimeout,
	})
	if err != nil {
		return err
	}
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if err := srv.ListenAndServe(ctx); err != nil {
		return erruser.New("HTTP server failed.", err)
	}
	return nil
}

func newStatsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Summarize the detection history",
		Args:  cobra.NoArgs,
		RunE:  runStats,
	}
	cmd.Flags().String("since", "", "Only count detections newer than a duration (24h) or an RFC 3339 time")
	cmd.Flags().Bool("json", false, "Emit the summary as JSON to stdout")
	cmd.Flags().String("compare", "", "Report the accuracy improvement between two measured accuracies: baseline,improved (e.g. 0.80,0.88)")
	return cmd
}

// parseSince accepts a Go duration counted back from now, or an RFC 3339 time.
func parseSince(v string, now time.Time) (time.Time, error) {
	if v == "" {
		return time.Time{}, nil
	}
	if d, err := time.ParseDuration(v); err == nil {
		return now.Add(-d), nil
	}
	t, err := time.Parse(time.RFC3339, v)
	if err != nil {
		return time.Time{}, erruser.New("--since must be a duration (e.g. 24h) or an RFC 3339 time.", err)
	}
	return t, nil
}

// parseCompare parses "baseline,improved".
func parseCompare(v string) (float64, float64, error) {
	parts := strings.Split(v, ",")
	if len(parts) != 2 {
		return 0, 0, erruser.New("--compare takes two accuracies: baseline,improved.", nil)
	}
	b, err := strconv.ParseFloat(strings.TrimSpace(parts[0]), 64)
	if err != nil {
		return 0, 0, erruser.New("--compare baseline accuracy must be a number.", err)
	}
	i, err := strconv.ParseFloat(strings.TrimSpace(parts[1]), 64)
	if err != nil {
		return 0, 0, erruser.New("--compare improved accuracy must be a number.", err)
	}
	return b, i, nil
}

func runStats(cmd *cobra.Command, args []string) error {
	out := cmd.OutOrStdout()
	if cmp, _ := cmd.Flags().GetString("compare"); cmp != "" {
		b, i, err := parseCompare(cmp)
		if err != nil {
			return err
		}
		fmt.Fprintf(out, "Accuracy improvement: %.2f%%\n", stats.AccuracyImprovement(b, i))
		return nil
	}
	root, cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	if !cfg.HistoryEnabled {
		return erruser.New("Detection history is disabled; enable history to collect statistics.", nil)
	}
	sinceFlag, _ := cmd.Flags().GetString("since")
	since, err := parseSince(sinceFlag, time.Now())
	if err != nil {
		return err
	}
	store := history.NewStore(cfg.EffectiveHistoryDir(root), cfg.HistoryMaxRecords)
	sum, err := stats.FromStore(store, since)
	if err != nil {
		return erruser.New("Could not read detection history.", err)
	}
	if asJSON, _ := cmd.Flags().GetBool("json"); asJSON {
		return writeJSON(out, sum)
	}
	writeStatsHuman(out, sum)
	return nil
}

func newDoctorCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "doctor",
		Short: "Verify model files and the embedding provider",
		Args:  cobra.NoArgs,
		RunE:  runDoctor,
	}
}

func runDoctor(cmd *cobra.Command, args []string) error {
	_, cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()
	errOut := cmd.ErrOrStderr()
	failed := false
	for _, t := range []struct {
		label string
		path  string
	}{
		{"Baseline model", cfg.BaselineModel},
		{"Improved model", cfg.ImprovedModel},
	} {
		st := loadTier(t.path)
		switch {
		case st.Err != nil:
			fmt.Fprintf(errOut, "%s %s: invalid: %v\n", t.label, t.path, st.Err)
			failed = true
		case st.Tier == nil:
			fmt.Fprintf(out, "%s: absent (%s)\n", t.label, t.path)
		default:
			fmt.Fprintf(out, "%s: OK (%s, input_dim %d, %d member(s))\n", t.label, t.path, st.Tier.InputDim(), st.Tier.Members())
		}
	}

	emb, err := embedding.New(embeddingConfig(cfg))
	if err != nil {
		fmt.Fprintf(errOut, "Embedding provider: %v\n", err)
		return errExit(exitError)
	}
	if emb == nil {
		fmt.Fprintln(out, "Embedding provider: none")
	} else if checker, ok := emb.(embedding.Checker); ok {
		ctx, cancel := context.WithTimeout(cmd.Context(), 30*time.Second)
		defer cancel()
		if err := checker.Check(ctx); err != nil {
			if errors.Is(err, embedding.ErrUnreachable) {
				fmt.Fprintf(errOut, "Embedding provider %s unreachable. Is the server running? For local: ollama serve.\n", emb.Name())
				fmt.Fprintf(errOut, "Details: %v\n", err)
				return errExit(exitUnreachable)
			}
			fmt.Fprintf(errOut, "Embedding provider %s: %v\n", emb.Name(), err)
			return errExit(exitError)
		}
		fmt.Fprintf(out, "Embedding provider: %s OK\n", emb.Name())
	}
	if failed {
		return errExit(exitError)
	}
	return nil
}
