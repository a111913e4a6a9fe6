package main

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"bugscope/cli/internal/classifier"
	"bugscope/cli/internal/config"
	"bugscope/cli/internal/detector"
	"bugscope/cli/internal/embedding"
	"bugscope/cli/internal/erruser"
	"bugscope/cli/internal/features"
	"bugscope/cli/internal/history"
	"bugscope/cli/internal/logging"
	"bugscope/cli/internal/trace"
)

// app holds what a command needs after configuration is resolved.
type app struct {
	root  string
	cfg   *config.Config
	log   *zap.Logger
	det   *detector.Detector
	store *history.Store // nil when history is disabled
}

func addGlobalFlags(cmd *cobra.Command) {
	f := cmd.PersistentFlags()
	f.String("config", "", "Global config file (default: user config dir bugscope/config.toml)")
	f.String("baseline-model", "", "Baseline tier model file (YAML); overrides config and env")
	f.String("improved-model", "", "Improved tier model file (YAML); overrides config and env")
	f.String("embedding-provider", "", "Embedding provider: none, ollama or genai")
	f.String("embedding-model", "", "Embedding model name")
	f.String("embedding-policy", "", "How embeddings enter the improved vector: none, append or replace")
	f.String("ollama-url", "", "Ollama base URL")
	f.Int("workers", 0, "Concurrent detections for batch work (0 = use config)")
	f.String("log-level", "", "Log level: debug, info, warn or error")
	f.String("log-format", "", "Log format: console or json")
	f.String("history-dir", "", "Detection history directory")
	f.Bool("no-history", false, "Do not record detections")
}

// overridesFromFlags returns Overrides for the persistent flags that were set.
func overridesFromFlags(cmd *cobra.Command) *config.Overrides {
	flags := cmd.Flags()
	o := &config.Overrides{}
	set := false
	str := func(name string, dst **string) {
		if fl := flags.Lookup(name); fl != nil && fl.Changed {
			v := fl.Value.String()
			*dst = &v
			set = true
		}
	}
	str("baseline-model", &o.BaselineModel)
	str("improved-model", &o.ImprovedModel)
	str("embedding-provider", &o.EmbeddingProvider)
	str("embedding-model", &o.EmbeddingModel)
	str("embedding-policy", &o.EmbeddingPolicy)
	str("ollama-url", &o.OllamaBaseURL)
	str("log-level", &o.LogLevel)
	str("log-format", &o.LogFormat)
	str("history-dir", &o.HistoryDir)
	str("addr", &o.ServerAddr)
	if fl := flags.Lookup("workers"); fl != nil && fl.Changed {
		v, _ := flags.GetInt("workers")
		o.Workers = &v
		set = true
	}
	if fl := flags.Lookup("no-history"); fl != nil && fl.Changed {
		v, _ := flags.GetBool("no-history")
		enabled := !v
		o.HistoryEnabled = &enabled
		set = true
	}
	if !set {
		return nil
	}
	return o
}

// loadConfig resolves configuration for the current directory.
func loadConfig(cmd *cobra.Command) (string, *config.Config, error) {
	cwd, err := os.Getwd()
	if err != nil {
		return "", nil, erruser.New("Could not determine current directory.", err)
	}
	global, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(cmd.Context(), config.LoadOptions{
		RepoRoot:         cwd,
		GlobalConfigPath: global,
		Overrides:        overridesFromFlags(cmd),
	})
	if err != nil {
		return "", nil, err
	}
	return cwd, cfg, nil
}

func newLogger(cfg *config.Config) (*zap.Logger, error) {
	log, err := logging.New(logging.Options{
		Level:       cfg.LogLevel,
		Format:      cfg.LogFormat,
		File:        cfg.LogFile,
		Development: cfg.Development(),
	})
	if err != nil {
		return nil, erruser.New("Invalid logging configuration.", err)
	}
	return log, nil
}

func embeddingConfig(cfg *config.Config) embedding.Config {
	return embedding.Config{
		Provider:   cfg.EmbeddingProvider,
		Model:      cfg.EmbeddingModel,
		OllamaURL:  cfg.OllamaBaseURL,
		GenAIKey:   cfg.GenAIAPIKey,
		Dimensions: cfg.EmbeddingDimensions,
		Timeout:    cfg.EmbeddingTimeout,
	}
}

// tierStatus is the outcome of loading one model file.
type tierStatus struct {
	Path string
	Name string
	Tier classifier.Tier
	Err  error
}

// loadTier loads path. An empty path or a missing file leaves the tier absent
// without an error; a present but invalid file records Err.
func loadTier(path string) tierStatus {
	st := tierStatus{Path: path}
	if path == "" {
		return st
	}
	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		return st
	}
	st.Tier, st.Name, st.Err = classifier.LoadTier(path)
	return st
}

// newApp resolves config, logger, tiers, embedder, detector and history store.
// An unusable tier is logged at warn and left absent.
func newApp(cmd *cobra.Command, traceOut io.Writer) (*app, error) {
	root, cfg, err := loadConfig(cmd)
	if err != nil {
		return nil, err
	}
	log, err := newLogger(cfg)
	if err != nil {
		return nil, err
	}
	base := loadTier(cfg.BaselineModel)
	imp := loadTier(cfg.ImprovedModel)
	for _, st := range []tierStatus{base, imp} {
		switch {
		case st.Err != nil:
			log.Warn("model file unusable; tier absent", zap.String("path", st.Path), zap.Error(st.Err))
		case st.Tier == nil && st.Path != "":
			log.Debug("model file not found; tier absent", zap.String("path", st.Path))
		}
	}
	if base.Err != nil {
		base.Tier = nil
	}
	if imp.Err != nil {
		imp.Tier = nil
	}

	emb, err := embedding.New(embeddingConfig(cfg))
	if err != nil {
		return nil, erruser.New("Could not set up the embedding provider.", err)
	}
	policy := features.EmbeddingPolicy(cfg.EmbeddingPolicy)
	if emb == nil && policy != features.PolicyNone {
		return nil, erruser.New(fmt.Sprintf("Embedding policy %q needs an embedding provider; set embedding_provider.", policy), nil)
	}

	det, err := detector.New(detector.Options{
		Baseline:     base.Tier,
		Improved:     imp.Tier,
		BaselineName: base.Name,
		ImprovedName: imp.Name,
		Embedder:     emb,
		Policy:       policy,
		Workers:      cfg.Workers,
		Logger:       log,
		Tracer:       trace.New(traceOut),
	})
	if err != nil {
		return nil, erruser.New("Could not set up the detector.", err)
	}

	a := &app{root: root, cfg: cfg, log: log, det: det}
	if cfg.HistoryEnabled {
		a.store = history.NewStore(cfg.EffectiveHistoryDir(root), cfg.HistoryMaxRecords)
	}
	return a, nil
}

// record appends records to history, warning on failure.
func (a *app) record(recs ...history.Record) {
	if a.store == nil || len(recs) == 0 {
		return
	}
	if err := a.store.Append(recs...); err != nil {
		a.log.Warn("history append failed", zap.Error(err))
	}
}

func (a *app) close() {
	_ = a.log.Sync()
}
