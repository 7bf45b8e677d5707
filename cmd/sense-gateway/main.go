// Command sense-gateway runs the privacy interception gateway.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/charmbracelet/log"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/bento-labs/sense-go/core"
	"github.com/bento-labs/sense-go/gateway"
	"github.com/bento-labs/sense-go/llm"
	"github.com/bento-labs/sense-go/ner"
	"github.com/bento-labs/sense-go/server"
	"github.com/bento-labs/sense-go/store"
	"github.com/bento-labs/sense-go/trail"
)

func main() {
	root := &cobra.Command{
		Use:   "sense-gateway",
		Short: "Privacy interception gateway between clients and downstream models",
	}

	root.PersistentFlags().String("config", "", "path to config file")
	root.PersistentFlags().String("log-level", "info", "log level (debug, info, warn, error)")

	root.AddCommand(serveCmd(), scanCmd())

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func initConfig(cmd *cobra.Command) (*viper.Viper, *log.Logger, error) {
	v := viper.New()
	v.SetDefault("server.addr", ":8080")
	v.SetDefault("redis.addr", "localhost:6379")
	v.SetDefault("redis.db", 0)
	v.SetDefault("trail.file", "trail.jsonl")
	v.SetDefault("provider.default", "mock")

	v.SetEnvPrefix("SENSE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if cfgPath, _ := cmd.Flags().GetString("config"); cfgPath != "" {
		v.SetConfigFile(cfgPath)
		if err := v.ReadInConfig(); err != nil {
			return nil, nil, fmt.Errorf("failed to read config: %w", err)
		}
	}

	logger := log.NewWithOptions(os.Stderr, log.Options{
		ReportTimestamp: true,
		Prefix:          "sense",
	})
	levelStr, _ := cmd.Flags().GetString("log-level")
	if level, err := log.ParseLevel(levelStr); err == nil {
		logger.SetLevel(level)
	}

	return v, logger, nil
}

func serveCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP gateway",
		RunE: func(cmd *cobra.Command, args []string) error {
			v, logger, err := initConfig(cmd)
			if err != nil {
				return err
			}
			ctx := cmd.Context()

			rules, err := loadRules(v, logger)
			if err != nil {
				return err
			}

			var classifier core.EntityClassifier
			if url := v.GetString("ner.url"); url != "" {
				classifier = ner.NewClient(url)
				logger.Info("entity classifier enabled", "url", url)
			} else {
				logger.Warn("no entity classifier configured, pattern-only detection")
			}

			redisClient := redis.NewClient(&redis.Options{
				Addr:     v.GetString("redis.addr"),
				Password: v.GetString("redis.password"),
				DB:       v.GetInt("redis.db"),
			})
			if err := redisClient.Ping(ctx).Err(); err != nil {
				return fmt.Errorf("redis unavailable at %s: %w", v.GetString("redis.addr"), err)
			}
			pending := store.NewRedisStore(redisClient)

			sink, cleanup, err := buildSink(ctx, v, logger)
			if err != nil {
				return err
			}
			defer cleanup()

			providers, judge := buildProviders(v, logger)
			router := llm.NewRouter(providers, logger)
			auditor := core.NewAuditor(judge, logger)
			redactor := core.NewRedactor(rules, classifier, logger)
			resolver := core.NewPolicyResolver(nil, logger)

			gw := gateway.New(redactor, resolver, auditor, pending, router, sink, logger)
			srv := &http.Server{
				Addr:    v.GetString("server.addr"),
				Handler: server.New(gw, logger).Router(),
			}

			errCh := make(chan error, 1)
			go func() {
				logger.Info("gateway listening", "addr", srv.Addr)
				if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
					errCh <- err
				}
			}()

			sigCh := make(chan os.Signal, 1)
			signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

			select {
			case err := <-errCh:
				return err
			case sig := <-sigCh:
				logger.Info("shutting down", "signal", sig)
			}

			shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
			defer cancel()
			if err := srv.Shutdown(shutdownCtx); err != nil {
				logger.Error("shutdown error", "err", err)
			}
			gw.Flush()
			return redisClient.Close()
		},
	}
	return cmd
}

func scanCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "scan [text]",
		Short: "Scan text for sensitive data without forwarding anything",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			v, logger, err := initConfig(cmd)
			if err != nil {
				return err
			}

			rules, err := loadRules(v, logger)
			if err != nil {
				return err
			}

			redactor := core.NewRedactor(rules, nil, logger)
			resolver := core.NewPolicyResolver(nil, logger)
			gw := gateway.New(redactor, resolver, core.NewAuditor(nil, logger), store.NewMemoryStore(),
				llm.NewRouter(nil, logger), nil, logger)

			result, err := gw.ScanText(cmd.Context(), args[0], "", "", nil)
			if err != nil {
				return err
			}

			out, err := json.MarshalIndent(result, "", "  ")
			if err != nil {
				return err
			}
			fmt.Println(string(out))
			return nil
		},
	}
	return cmd
}

func loadRules(v *viper.Viper, logger *log.Logger) (*core.RuleSet, error) {
	path := v.GetString("rules.path")
	if path == "" {
		return core.DefaultRuleSet(), nil
	}
	rules, err := core.LoadRuleSet(path)
	if err != nil {
		return nil, fmt.Errorf("failed to load rules from %s: %w", path, err)
	}
	logger.Info("detection rules loaded", "path", path)
	return rules, nil
}

// buildSink prefers Postgres when a DSN is configured and falls back to
// the JSONL file otherwise.
func buildSink(ctx context.Context, v *viper.Viper, logger *log.Logger) (trail.Sink, func(), error) {
	if dsn := v.GetString("postgres.dsn"); dsn != "" {
		pool, err := pgxpool.New(ctx, dsn)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to connect to postgres: %w", err)
		}
		if err := trail.EnsureSchema(ctx, pool); err != nil {
			pool.Close()
			return nil, nil, err
		}
		logger.Info("trail sink: postgres")
		return trail.NewPostgresSink(pool), pool.Close, nil
	}

	path := v.GetString("trail.file")
	sink, err := trail.NewFileSink(path)
	if err != nil {
		return nil, nil, err
	}
	logger.Info("trail sink: file", "path", path)
	return sink, func() { sink.Close() }, nil
}

// buildProviders wires the configured downstream routes. The MCP route
// doubles as the compliance judge when available.
func buildProviders(v *viper.Viper, logger *log.Logger) (map[string]llm.Generator, core.Judge) {
	providers := map[string]llm.Generator{
		"mock": &llm.MockGenerator{},
	}

	var judge core.Judge
	if serverPath := v.GetString("mcp.server_path"); serverPath != "" {
		cfg := llm.LoadMCPConfig(nil)
		if tool := v.GetString("mcp.tool_name"); tool != "" {
			cfg.ToolName = tool
		}
		if model := v.GetString("mcp.model"); model != "" {
			cfg.Model = model
		}

		gen, err := llm.NewMCPGenerator(serverPath, cfg, logger)
		if err != nil {
			logger.Error("MCP generator unavailable, continuing with mock only", "err", err)
		} else {
			providers["mcp"] = gen
			providers[cfg.Model] = gen
			judge = &llm.GeneratorJudge{Generator: gen}
		}
	}
	if judge == nil {
		logger.Warn("no judgment capability configured, audits run in mock mode")
	}

	return providers, judge
}
