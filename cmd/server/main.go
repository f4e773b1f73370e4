package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"sync"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/smsflow/smsflow/config"
	"github.com/smsflow/smsflow/pkg/otellib"
	"github.com/smsflow/smsflow/service/jobs"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	_ "github.com/go-sql-driver/mysql"
	"github.com/spf13/cobra"
)

func startServer() {
	conf := config.Load()
	logger := config.NewLogger(conf.Log)
	defer func() { _ = logger.Sync() }()

	tracerProvider, shutdown := otellib.InitOtel("smsflow", conf.Jaeger)
	defer shutdown()

	otel.SetTracerProvider(tracerProvider)
	otel.SetTextMapPropagator(propagation.TraceContext{})

	a := newApp(conf, logger)
	defer a.close()

	router := chi.NewRouter()
	router.Use(middleware.Recoverer)
	router.Handle("/metrics", promhttp.Handler())
	router.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	router.Group(func(r chi.Router) {
		r.Use(otellib.HTTPMiddleware(logger, tracerProvider))
		a.webhook.Register(r)
	})

	httpServer := &http.Server{
		Addr:              conf.Server.HTTP.ListenString(),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	fmt.Println("HTTP:", conf.Server.HTTP.ListenString())

	jobCtx, stopJobs := context.WithCancel(context.Background())
	a.runner.Start(otellib.ToContext(jobCtx, logger))

	var wg sync.WaitGroup
	wg.Add(1)

	go func() {
		defer wg.Done()

		err := httpServer.ListenAndServe()
		if err != nil && err != http.ErrServerClosed {
			panic(err)
		}
		fmt.Println("Shutdown HTTP server successfully")
	}()

	//--------------------------------
	// Graceful Shutdown
	//--------------------------------
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	<-stop

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	err := httpServer.Shutdown(ctx)
	if err != nil {
		panic(err)
	}

	stopJobs()
	a.runner.Wait()
	fmt.Println("Shutdown jobs successfully")

	wg.Wait()
}

func main() {
	rootCmd := cobra.Command{
		Use: "server",
	}
	rootCmd.AddCommand(
		startServerCommand(),
		jobCommand(jobs.ProcessQueue, "send pending memberships of running campaigns and evaluate A/B tests"),
		jobCommand(jobs.RunScheduled, "start the scheduled campaigns that are due"),
		jobCommand(jobs.Reconcile, "ingest provider messages missed by the webhook and sync conversations"),
		jobCommand(jobs.RecoverFailed, "retry failed webhook processing that is due"),
		jobCommand(jobs.CleanupOverdue, "fail scheduled campaigns left more than a day past due"),
		jobCommand(jobs.CheckIntegrity, "count activities missing a conversation or contact"),
		listExhaustedCommand(),
		retryFailedCommand(),
	)

	err := rootCmd.Execute()
	if err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
}

func startServerCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "start",
		Short: "start the webhook server and the periodic jobs",
		Run: func(cmd *cobra.Command, args []string) {
			startServer()
		},
	}
}

func withApp(fn func(a *app) error) error {
	conf := config.Load()
	logger := config.NewLogger(conf.Log)
	defer func() { _ = logger.Sync() }()

	tracerProvider, shutdown := otellib.InitOtel("smsflow-cli", conf.Jaeger)
	defer shutdown()
	otel.SetTracerProvider(tracerProvider)

	a := newApp(conf, logger)
	defer a.close()

	return fn(a)
}

func jobCommand(name string, short string) *cobra.Command {
	return &cobra.Command{
		Use:   name,
		Short: short,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(func(a *app) error {
				return a.runJob(name)
			})
		},
	}
}

func listExhaustedCommand() *cobra.Command {
	var limit int64
	cmd := &cobra.Command{
		Use:   "list-exhausted",
		Short: "list failed webhook events that reached the retry cap",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(func(a *app) error {
				entries, err := a.recovery.ListExhausted(context.Background(), limit)
				if err != nil {
					return err
				}
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(entries)
			})
		},
	}
	cmd.Flags().Int64Var(&limit, "limit", 50, "max number of entries")
	return cmd
}

func retryFailedCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "retry-failed <id>",
		Short: "re-attempt one failed webhook event regardless of its retry count",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := strconv.ParseInt(args[0], 10, 64)
			if err != nil {
				return fmt.Errorf("invalid id %q: %w", args[0], err)
			}
			return withApp(func(a *app) error {
				resolved, err := a.recovery.Retry(context.Background(), id)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "retry entry %d resolved: %v\n", id, resolved)
				return nil
			})
		},
	}
}
