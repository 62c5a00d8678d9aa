package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"log/slog"
	"net"
	nethttp "net/http"
	"os"
	"os/signal"
	"strconv"
	"sync"
	"syscall"
	"time"

	"github.com/fatih/color"
	"github.com/joho/godotenv"
	"github.com/spf13/pflag"

	apihttp "conncheck/agent/internal/api/http"
	"conncheck/agent/internal/config"
	"conncheck/agent/internal/lib/logger/slogpretty"
	"conncheck/agent/internal/netinfo"
	"conncheck/agent/internal/probe"
	"conncheck/agent/internal/repository"
	"conncheck/agent/internal/repository/kafka"
	"conncheck/agent/internal/run"
	"conncheck/agent/internal/service"
	"conncheck/agent/internal/surface"
)

const usageText = `Usage: agent <command> [flags]

Commands:
  run         execute a batch of connectivity checks from a CSV task file
  probe       test a single host:port
  interfaces  list local IPv4 addresses usable as --source-ip
  serve       run as a long-lived agent (Kafka + HTTP API)
`

func main() {
	if err := godotenv.Load(".env"); err != nil {
		log.Printf("Warning: .env file not found: %v", err)
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	logger := setupLogger(cfg.Env)

	if len(os.Args) < 2 {
		fmt.Fprint(os.Stderr, usageText)
		os.Exit(2)
	}

	switch os.Args[1] {
	case "run":
		os.Exit(runBatch(cfg, logger, os.Args[2:]))
	case "probe":
		os.Exit(probeOne(cfg, os.Args[2:]))
	case "interfaces":
		os.Exit(listInterfaces(cfg, os.Args[2:]))
	case "serve":
		serve(cfg, logger)
	default:
		fmt.Fprintf(os.Stderr, "unknown command %q\n\n%s", os.Args[1], usageText)
		os.Exit(2)
	}
}

// runBatch is the CLI-equivalent surface: one run over a CSV task list.
// Exit code 0 only when every task succeeded and the run was not cancelled.
func runBatch(cfg *config.Config, logger *slog.Logger, args []string) int {
	fs := pflag.NewFlagSet("run", pflag.ExitOnError)
	taskFile := fs.StringP("tasks", "f", "", "CSV task file with Description, IP, Port columns")
	sourceIP := fs.String("source-ip", cfg.Probe.SourceIP, "local IP to bind probes to (empty: OS chooses)")
	delayMs := fs.Int("delay-ms", cfg.Probe.DelayMs, "pause between tasks in milliseconds")
	timeoutMs := fs.Int("timeout-ms", cfg.Probe.TimeoutMs, "per-probe timeout in milliseconds")
	jsonOut := fs.Bool("json", false, "print the final result table as JSON")
	_ = fs.Parse(args)

	if *taskFile == "" {
		fmt.Fprintln(os.Stderr, "run: -f/--tasks is required")
		return 2
	}

	tasks, err := repository.CSVTaskSource{Path: *taskFile}.Tasks()
	if err != nil {
		fmt.Fprintf(os.Stderr, "run: %v\n", err)
		return 2
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	registry := run.NewRegistry(cfg.GetGrace(), logger)
	table := surface.NewTable(tasks)
	console := surface.NewConsoleSink(os.Stdout, tasks)

	ctrl, err := registry.Request(ctx, "cli", tasks, run.Options{
		SourceIP: *sourceIP,
		Delay:    time.Duration(*delayMs) * time.Millisecond,
		Timeout:  time.Duration(*timeoutMs) * time.Millisecond,
	}, run.MultiSink{table, console})
	if err != nil {
		fmt.Fprintf(os.Stderr, "run: %v\n", err)
		return 2
	}

	// Ctrl-C stops the run cooperatively; remaining tasks show as cancelled.
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-quit
		ctrl.Stop()
	}()

	<-ctrl.Done()

	summary := table.Summary()
	if *jsonOut {
		out, _ := json.MarshalIndent(map[string]interface{}{
			"summary": summary,
			"rows":    table.Snapshot(),
		}, "", "  ")
		fmt.Println(string(out))
	} else {
		fmt.Printf("\n%d successful, %d unsuccessful, %d cancelled\n",
			summary.Successful, summary.Unsuccessful, summary.Cancelled)
	}

	if table.AllSucceeded() {
		return 0
	}
	return 1
}

// probeOne is the manual single-target test.
func probeOne(cfg *config.Config, args []string) int {
	fs := pflag.NewFlagSet("probe", pflag.ExitOnError)
	sourceIP := fs.String("source-ip", cfg.Probe.SourceIP, "local IP to bind the probe to")
	timeoutMs := fs.Int("timeout-ms", cfg.Probe.TimeoutMs, "probe timeout in milliseconds")
	_ = fs.Parse(args)

	if fs.NArg() != 1 {
		fmt.Fprintln(os.Stderr, "probe: exactly one host:port argument is required")
		return 2
	}

	host, portStr, err := net.SplitHostPort(fs.Arg(0))
	if err != nil {
		fmt.Fprintf(os.Stderr, "probe: %v\n", err)
		return 2
	}
	port, err := strconv.Atoi(portStr)
	if err != nil || port < 1 || port > 65535 {
		fmt.Fprintf(os.Stderr, "probe: invalid port %q\n", portStr)
		return 2
	}

	res := probe.TCP(context.Background(), host, port, probe.Options{
		Timeout:  time.Duration(*timeoutMs) * time.Millisecond,
		SourceIP: *sourceIP,
	})

	tint := color.New(color.FgRed)
	if res.Success {
		tint = color.New(color.FgGreen)
	}
	fmt.Printf("%s  %s\n", fs.Arg(0), tint.Sprint(res.StatusText()))

	if res.Success {
		return 0
	}
	return 1
}

// listInterfaces shows source-IP candidates, optionally with the public IP
// seen from each.
func listInterfaces(cfg *config.Config, args []string) int {
	fs := pflag.NewFlagSet("interfaces", pflag.ExitOnError)
	withPublic := fs.Bool("public-ip", false, "also resolve the public IP seen from each interface")
	_ = fs.Parse(args)

	ips, err := netinfo.LocalIPv4s()
	if err != nil {
		fmt.Fprintf(os.Stderr, "interfaces: %v\n", err)
		return 1
	}

	resolver := netinfo.NewPublicIPResolver(cfg.PublicIP.URL, cfg.GetPublicIPTimeout())
	for _, ip := range ips {
		if !*withPublic {
			fmt.Println(ip)
			continue
		}
		public, err := resolver.Resolve(context.Background(), ip)
		if err != nil {
			public = "unknown"
		}
		fmt.Printf("%-16s public: %s\n", ip, public)
	}
	return 0
}

// serve runs the long-lived agent: Kafka run requests in, results and logs
// out, plus the HTTP API with the websocket stream.
func serve(cfg *config.Config, logger *slog.Logger) {
	logger.Info("starting agent",
		"env", cfg.Env,
		"agent", cfg.Agent.Name,
	)

	requestConsumer := kafka.NewConsumer(cfg.Kafka.Brokers, cfg.Kafka.Topics.Runs, cfg.Agent.Name, logger)
	defer requestConsumer.Close()

	resultsProducer := kafka.NewProducer(cfg.Kafka.Brokers, cfg.Kafka.Topics.Results)
	defer resultsProducer.Close()

	logsProducer := kafka.NewProducer(cfg.Kafka.Brokers, cfg.Kafka.Topics.Logs)
	defer logsProducer.Close()

	runSource := repository.NewKafkaRunRequestSource(requestConsumer)
	eventSink := repository.NewKafkaEventSink(resultsProducer, logsProducer, logger)

	registry := run.NewRegistry(cfg.GetGrace(), logger)
	surfaces := surface.NewStore()
	hub := apihttp.NewHub(logger)

	defaults := service.Defaults{
		SourceIP: cfg.Probe.SourceIP,
		Delay:    cfg.GetDelay(),
		Timeout:  cfg.GetProbeTimeout(),
	}

	runService := service.NewRunService(runSource, eventSink, registry, surfaces, service.Config{
		AgentID:      cfg.Agent.Name,
		PollInterval: 5 * time.Second,
		Defaults:     defaults,
		ExtraSink:    hub.SinkFor,
	}, logger)

	resolver := netinfo.NewPublicIPResolver(cfg.PublicIP.URL, cfg.GetPublicIPTimeout())

	router := apihttp.NewRouter(
		apihttp.NewHealthController(runService, cfg.Agent.Name),
		apihttp.NewRunController(registry, surfaces, hub, defaults, eventSink, logger),
		apihttp.NewNetInfoController(resolver, logger),
	)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var wg sync.WaitGroup

	wg.Add(1)
	go func() {
		defer wg.Done()
		logger.Info("starting run service",
			"kafka_brokers", cfg.Kafka.Brokers,
			"runs_topic", cfg.Kafka.Topics.Runs,
		)
		if err := runService.Start(ctx); err != nil {
			logger.Error("run service failed", "error", err)
			cancel()
		}
	}()

	httpServer := &nethttp.Server{
		Addr:    ":" + cfg.Server.Port,
		Handler: router,
	}

	wg.Add(1)
	go func() {
		defer wg.Done()
		logger.Info("starting HTTP server", "port", cfg.Server.Port)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, nethttp.ErrServerClosed) {
			logger.Error("HTTP server failed", "error", err)
			cancel()
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	logger.Info("agent started and ready",
		"port", cfg.Server.Port,
		"agent_id", cfg.Agent.Name,
	)

	select {
	case <-quit:
	case <-ctx.Done():
	}

	logger.Info("shutting down agent...")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("HTTP server shutdown failed", "error", err)
	}
	registry.Shutdown(shutdownCtx)

	wg.Wait()
	logger.Info("agent stopped gracefully")
}

const (
	envLocal = "local"
	envDev   = "dev"
	envProd  = "prod"
)

func setupLogger(env string) *slog.Logger {
	var logger *slog.Logger

	switch env {
	case envLocal:
		logger = setupPrettySlog()
	case envDev:
		logger = slog.New(
			slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelDebug}),
		)
	case envProd:
		logger = slog.New(
			slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}),
		)
	default:
		logger = setupPrettySlog()
	}

	return logger
}

func setupPrettySlog() *slog.Logger {
	opts := slogpretty.PrettyHandlerOptions{
		SlogOpts: &slog.HandlerOptions{
			Level: slog.LevelDebug,
		},
	}

	handler := opts.NewPrettyHandler(os.Stdout)

	return slog.New(handler)
}
