// Command rkas runs the RKAS/BOSP budget planner service and its one-shot
// reporting commands.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/spf13/cobra"

	"rkas/internal/amqp"
	"rkas/internal/budget"
	"rkas/internal/cli"
	"rkas/internal/config"
	apphttp "rkas/internal/http"
	applog "rkas/internal/log"
	"rkas/internal/worker"
)

const shutdownTimeout = 30 * time.Second

var (
	configFile string
	envFile    string
	reload     bool
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "rkas",
		Short:         "School budget (RKAS/BOSP) planner service",
		Long:          `rkas plans and tracks a school's BOS budget. Without a subcommand it serves the HTTP API.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE:          runServe,
	}
	root.PersistentFlags().StringVarP(&configFile, "config", "c", "", "Config file (default: rkas.yaml in ., $HOME/.rkas or /etc/rkas)")
	root.PersistentFlags().StringVar(&envFile, "env-file", ".env", "Environment file loaded before configuration")

	root.AddCommand(&cobra.Command{
		Use:   "serve",
		Short: "Serve the HTTP API",
		RunE:  runServe,
	})
	root.AddCommand(&cobra.Command{
		Use:   "summary",
		Short: "Load the budget and print its summary as JSON",
		RunE:  runSummary,
	})
	root.AddCommand(&cobra.Command{
		Use:   "audit",
		Short: "Run the AI audit over the current budget",
		RunE:  runAudit,
	})
	events := &cobra.Command{
		Use:   "events",
		Short: "Print budget change events as JSON lines",
		RunE:  runEvents,
	}
	events.Flags().BoolVar(&reload, "reload", false, "Reload the budget after each event")
	root.AddCommand(events)

	return root
}

// setup loads configuration and installs the logger. Failures are reported
// on stderr since no logger exists yet.
func setup(component string) (*config.Config, *applog.Logger, error) {
	cfg, err := cli.LoadAndValidateConfig(envFile, configFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "configuration error:\n- %v\n", err)
		return nil, nil, err
	}
	logger := cli.SetupLogger(os.Stderr, cfg.Log.Level, cfg.Log.Format, component)
	return cfg, logger, nil
}

func runServe(cmd *cobra.Command, _ []string) error {
	cfg, logger, err := setup(applog.ComponentApp)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()

	a, err := newApp(ctx, cfg, logger)
	if err != nil {
		logger.ErrorContext(ctx, "Startup failed", "error", err)
		return err
	}
	a.store.LoadAll(ctx)

	srv := apphttp.NewServer(apphttp.Options{
		Addr:              cfg.Addr(),
		AllowedOrigins:    cfg.HTTP.AllowedOrigins,
		RequestsPerMinute: cfg.HTTP.RequestsPerMinute,
		Logger:            logger,
	}, apphttp.Deps{
		Store:        a.store,
		Planner:      a.planner,
		SPJ:          a.spj,
		Audit:        a.audit,
		Reallocation: a.reallocation,
		Status:       a.status,
		Advisor:      a.advisor,
		Sync:         a.sync,
	})

	runCtx, done := cli.GracefulShutdown(ctx, logger, shutdownTimeout, func(sctx context.Context) {
		if err := srv.Shutdown(sctx); err != nil {
			logger.ErrorContext(sctx, "Server shutdown error", "error", err)
		}
		a.close(sctx)
	})

	serveErr := make(chan error, 1)
	go func() {
		err := srv.ListenAndServe()
		if err != nil {
			logger.ErrorContext(ctx, "Server error", "error", err, "addr", cfg.Addr())
			cancel()
		}
		serveErr <- err
	}()

	cli.WaitForShutdown(runCtx, done)
	select {
	case err := <-serveErr:
		return err
	default:
		return nil
	}
}

// oneShot builds the app, loads the budget, runs fn and releases everything.
func oneShot(cmd *cobra.Command, fn func(ctx context.Context, a *app) error) error {
	cfg, logger, err := setup(applog.ComponentApp)
	if err != nil {
		return err
	}
	ctx := cmd.Context()
	a, err := newApp(ctx, cfg, logger)
	if err != nil {
		logger.ErrorContext(ctx, "Startup failed", "error", err)
		return err
	}
	defer func() {
		cctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
		defer cancel()
		a.close(cctx)
	}()

	a.store.LoadAll(ctx)
	return fn(ctx, a)
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func runSummary(cmd *cobra.Command, _ []string) error {
	return oneShot(cmd, func(_ context.Context, a *app) error {
		st := a.store.Snapshot()
		return printJSON(cmd.OutOrStdout(), budget.Summarize(st.Items, st.SchoolData))
	})
}

func runAudit(cmd *cobra.Command, _ []string) error {
	return oneShot(cmd, func(ctx context.Context, a *app) error {
		if !a.advisor.Enabled() {
			return errors.New("AI is not configured: set API_KEY")
		}
		res, err := a.audit.Audit(ctx)
		if err != nil {
			return fmt.Errorf("audit budget: %w", err)
		}
		return printJSON(cmd.OutOrStdout(), res)
	})
}

func runEvents(cmd *cobra.Command, _ []string) error {
	cfg, logger, err := setup(applog.ComponentAMQP)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()

	a, err := newApp(ctx, cfg, logger)
	if err != nil {
		logger.ErrorContext(ctx, "Startup failed", "error", err)
		return err
	}
	if a.backend.Events == nil {
		cctx, ccancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer ccancel()
		a.close(cctx)
		return errors.New("change events are not available: set AMQP_URL to a reachable broker")
	}

	var reloader worker.Reloader
	if reload {
		a.store.LoadAll(ctx)
		reloader = a.store
	}
	w := worker.NewChangeWorker(cmd.OutOrStdout(), reloader)

	runCtx, done := cli.GracefulShutdown(ctx, logger, shutdownTimeout, a.close)

	consumeErr := a.backend.Events.ConsumeChanges(runCtx, func(ev *amqp.ChangeEvent) error {
		return w.HandleChange(runCtx, ev)
	})
	cancel()
	<-done

	if consumeErr != nil && !errors.Is(consumeErr, context.Canceled) {
		return consumeErr
	}
	logger.InfoContext(context.Background(), "Change events handled", "counts", w.Counts())
	return nil
}
