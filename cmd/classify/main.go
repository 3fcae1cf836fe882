// Command classify is a batch CLI front end for the classification engine:
// it loads a rule catalog, runs a batch of native-format inputs through the
// pipeline, and can trigger a catalog reload — a CLI collaborator standing
// in for the out-of-scope HTTP transport.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/xSoVx/amr-project/internal/adapters/native"
	"github.com/xSoVx/amr-project/internal/catalog"
	"github.com/xSoVx/amr-project/internal/config"
	"github.com/xSoVx/amr-project/internal/domain"
	"github.com/xSoVx/amr-project/internal/engine"
	"github.com/xSoVx/amr-project/internal/terminology"
)

func main() {
	if err := rootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "classify",
		Short: "Antimicrobial susceptibility classification engine CLI",
	}
	cmd.AddCommand(runCmd())
	cmd.AddCommand(reloadCmd())
	return cmd
}

func runCmd() *cobra.Command {
	var inputPath string
	var source string

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Classify a batch of native-format records from a JSON file",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runBatch(cmd.Context(), inputPath, source)
		},
	}
	cmd.Flags().StringVarP(&inputPath, "input", "i", "", "path to a JSON file of native records (required)")
	cmd.Flags().StringVarP(&source, "source", "s", "", "breakpoint source preference (EUCAST, CLSI, LOCAL); empty uses the catalog default")
	cmd.MarkFlagRequired("input")
	return cmd
}

func reloadCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "reload",
		Short: "Reload the rule catalog from its configured path and report the new version",
		RunE: func(cmd *cobra.Command, args []string) error {
			return reloadCatalog()
		},
	}
	return cmd
}

func newLogger(cfg config.LoggingConfig) *logrus.Logger {
	logger := logrus.New()
	if level, err := logrus.ParseLevel(cfg.Level); err == nil {
		logger.SetLevel(level)
	}
	if cfg.Format == "text" {
		logger.SetFormatter(&logrus.TextFormatter{})
	} else {
		logger.SetFormatter(&logrus.JSONFormatter{})
	}
	return logger
}

func buildStore(logger *logrus.Logger, cfg *config.Config) (*catalog.Store, error) {
	return catalog.NewStore(logger, cfg.Catalog.Path)
}

func buildNormalizer(logger *logrus.Logger, cfg *config.Config) (*terminology.Normalizer, error) {
	opts := terminology.Options{
		Logger:    logger,
		CacheSize: cfg.Terminology.NormalizationCacheSize,
	}

	if cfg.Terminology.OracleBaseURL != "" {
		opts.Oracle = terminology.NewHTTPOracleClient(logger, terminology.HTTPOracleConfig{
			BaseURL:            cfg.Terminology.OracleBaseURL,
			RequestsPerSecond:  cfg.Terminology.RateLimitPerSecond,
			Burst:              cfg.Terminology.RateLimitBurst,
			BreakerMaxRequests: cfg.Terminology.CircuitBreakerMaxFails,
			BreakerTimeout:     cfg.Terminology.CircuitBreakerTimeout,
		})
		opts.OracleTimeout = cfg.Terminology.OracleTimeout
	}

	if cfg.Terminology.RedisURL != "" {
		responseCache, err := terminology.NewResponseCache(cfg.Terminology.RedisURL, cfg.Terminology.ResponseCacheTTL)
		if err != nil {
			logger.WithError(err).Warn("terminology response cache unavailable; continuing without it")
		} else {
			opts.ResponseCache = responseCache
		}
	}

	return terminology.NewNormalizer(opts), nil
}

// loggingAuditSink emits one structured log line per classification result,
// standing in for the out-of-scope durable audit sink collaborator.
type loggingAuditSink struct {
	logger *logrus.Logger
}

func (s loggingAuditSink) Emit(record domain.AuditRecord) {
	s.logger.WithFields(logrus.Fields{
		"correlationId":  record.CorrelationID,
		"specimen":       record.Specimen,
		"organism":       record.Organism,
		"antibiotic":     record.Antibiotic,
		"method":         record.Method,
		"decision":       record.Decision,
		"firedRules":     record.FiredRules,
		"catalogVersion": record.CatalogVersion,
	}).Debug("classification audit record")
}

func runBatch(ctx context.Context, inputPath string, source string) error {
	configManager, err := config.NewManager()
	if err != nil {
		return fmt.Errorf("load configuration: %w", err)
	}
	if err := configManager.Validate(); err != nil {
		return fmt.Errorf("validate configuration: %w", err)
	}
	cfg := configManager.GetConfig()
	logger := newLogger(cfg.Logging)

	store, err := buildStore(logger, cfg)
	if err != nil {
		return fmt.Errorf("load catalog: %w", err)
	}

	normalizer, err := buildNormalizer(logger, cfg)
	if err != nil {
		return err
	}
	store.OnReload(func(*domain.RuleCatalog) { normalizer.ClearCache() })

	raw, err := os.ReadFile(inputPath)
	if err != nil {
		return fmt.Errorf("read input file: %w", err)
	}

	adapter := native.NewAdapter(normalizer)
	inputs, err := adapter.ParseJSON(ctx, raw)
	if err != nil {
		return fmt.Errorf("parse input records: %w", err)
	}

	e := engine.New(logger, store, engine.WithAuditSink(loggingAuditSink{logger: logger}))

	correlationID := uuid.NewString()
	results, err := e.Classify(ctx, correlationID, inputs, domain.BreakpointSource(source))
	if err != nil {
		return fmt.Errorf("classify batch: %w", err)
	}

	encoder := json.NewEncoder(os.Stdout)
	encoder.SetIndent("", "  ")
	return encoder.Encode(results)
}

func reloadCatalog() error {
	configManager, err := config.NewManager()
	if err != nil {
		return fmt.Errorf("load configuration: %w", err)
	}
	cfg := configManager.GetConfig()
	logger := newLogger(cfg.Logging)

	store, err := buildStore(logger, cfg)
	if err != nil {
		return fmt.Errorf("load catalog: %w", err)
	}

	normalizer, err := buildNormalizer(logger, cfg)
	if err != nil {
		return err
	}
	store.OnReload(func(*domain.RuleCatalog) { normalizer.ClearCache() })

	version, err := store.Reload(cfg.Catalog.Path)
	if err != nil {
		return fmt.Errorf("reload catalog: %w", err)
	}

	fmt.Printf("catalog reloaded: version %s\n", version)
	return nil
}
