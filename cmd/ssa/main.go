// Command ssa drives the social support application wizard from a terminal.
// Every invocation restores the saved draft, performs one interaction and
// saves the result.
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"social-support/internal/app"
	"social-support/internal/common/config"
	apperrors "social-support/internal/common/errors"
	"social-support/internal/common/logger"
	"social-support/internal/common/observability"
)

// session is the state shared by every command of one invocation.
type session struct {
	app     *app.App
	obs     *observability.Observability
	metrics *http.Server
}

var current session

var rootCmd = &cobra.Command{
	Use:           "ssa",
	Short:         "Social support application wizard",
	SilenceUsage:  true,
	SilenceErrors: true,
	Long: `ssa fills in a social support application step by step.

Steps: 0 personal, 1 family, 2 situation. A step must validate before
"ssa next" moves past it. Progress is saved locally after every change and
restored on the next run. "ssa assist" drafts situation answers with an AI
service; "ssa submit" sends the completed application.`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if cmd.Annotations["offline"] == "true" {
			return nil
		}
		return startSession(cmd.Context())
	},
	PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
		return stopSession()
	},
}

func main() {
	addPersistentFlags()
	registerCommands()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		printError(err)
		_ = stopSession()
		os.Exit(1)
	}
}

func addPersistentFlags() {
	rootCmd.PersistentFlags().String("config", "", "config file (default configs/config.yaml)")
	rootCmd.PersistentFlags().Bool("json", false, "output JSON")
	rootCmd.PersistentFlags().String("log-level", "", "log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().String("metrics-addr", "", "serve Prometheus metrics on this address while the command runs")
	_ = viper.BindPFlag("config", rootCmd.PersistentFlags().Lookup("config"))
	_ = viper.BindPFlag("json", rootCmd.PersistentFlags().Lookup("json"))
	_ = viper.BindPFlag("log-level", rootCmd.PersistentFlags().Lookup("log-level"))
	_ = viper.BindPFlag("metrics-addr", rootCmd.PersistentFlags().Lookup("metrics-addr"))
}

func registerCommands() {
	rootCmd.AddCommand(statusCmd())
	rootCmd.AddCommand(setCmd())
	rootCmd.AddCommand(validateCmd())
	rootCmd.AddCommand(nextCmd())
	rootCmd.AddCommand(prevCmd())
	rootCmd.AddCommand(gotoCmd())
	rootCmd.AddCommand(assistCmd())
	rootCmd.AddCommand(submitCmd())
	rootCmd.AddCommand(resetCmd())
	rootCmd.AddCommand(optionsCmd())
	rootCmd.AddCommand(languageCmd())
}

func loadConfig() (*config.Config, error) {
	if path := viper.GetString("config"); path != "" {
		return config.LoadFromFile(path)
	}
	return config.Load()
}

func startSession(ctx context.Context) error {
	cfg, err := loadConfig()
	if err != nil {
		return fmt.Errorf("config load failed: %w", err)
	}
	if lvl := viper.GetString("log-level"); lvl != "" {
		cfg.Logging.Level = lvl
	}
	log := logger.NewStructured(cfg.Logging.Level, cfg.Logging.Format)

	addr := viper.GetString("metrics-addr")
	if addr == "" && cfg.Metrics.Enabled {
		addr = cfg.Metrics.Address
	}
	opts := app.Options{}
	if addr != "" {
		current.obs = observability.New(cfg.App.Name)
		opts.Recorder = current.obs
		current.metrics = serveMetrics(addr, log)
	}

	a, err := app.New(ctx, cfg, log, opts)
	if err != nil {
		return err
	}
	current.app = a
	return nil
}

func serveMetrics(addr string, log logger.Logger) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Warn("Metrics server stopped", map[string]interface{}{"address": addr, "error": err.Error()})
		}
	}()
	log.Info("Serving metrics", map[string]interface{}{"address": addr})
	return srv
}

func stopSession() error {
	var err error
	if current.app != nil {
		err = current.app.Close()
		current.app = nil
	}
	if current.metrics != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		_ = current.metrics.Shutdown(ctx)
		cancel()
		current.metrics = nil
	}
	if current.obs != nil {
		current.obs.Shutdown()
		current.obs = nil
	}
	return err
}

// guarded runs fn inside the recovery boundary. A panic becomes the recovery
// screen instead of a crash.
func guarded(fn func(cmd *cobra.Command, args []string, a *app.App) error) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		a := current.app
		err := a.Boundary.Guard(func() error { return fn(cmd, args, a) })
		if apperrors.Is(err, apperrors.ErrCodeUnhandledRuntime) {
			printRecovery(a.Boundary.Recover(err))
			return errSilent
		}
		return err
	}
}
