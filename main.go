package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

const (
	exitOK = iota
	exitCheckoutFailed
	exitSetupFailed
)

// launchFunc starts the controlled browser. Tests swap in a fake.
type launchFunc func(config *Config, log *zap.Logger) (Driver, error)

func main() {
	configPath := flag.String("config", "config.yaml", "Path to configuration file")
	url := flag.String("url", "", "Product page to buy (overrides config)")
	envFile := flag.String("env", "", "Path to the .env file holding credentials (overrides config)")
	startAt := flag.String("start-at", "", "Wait until this UTC time before starting, e.g. 2025-01-15 16:00")
	headless := flag.Bool("headless", false, "Run the browser without a window")
	debug := flag.Bool("debug", false, "Enable detailed debug logging")
	flag.Parse()

	if err := InitLocale(); err != nil {
		log.Printf("Warning: Locale initialization failed, using message keys: %v", err)
	}

	config, err := LoadConfig(*configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	if *url != "" {
		config.ProductURL = *url
	}
	if *envFile != "" {
		config.EnvFile = *envFile
	}
	if *startAt != "" {
		config.StartAt = *startAt
	}
	if *headless {
		config.Headless = true
	}
	if *debug {
		config.DebugMode = true
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	code := run(ctx, config, LaunchBrowser, os.Stdin, newConsoleLogger(config))
	stop()
	os.Exit(code)
}

// run performs one checkout and returns the process exit code.
func run(ctx context.Context, config *Config, launch launchFunc, stdin io.Reader, logger *zap.Logger) int {
	runID := uuid.NewString()
	defer logger.Sync()

	fmt.Println("╔═══════════════════════════════════════════════════════════╗")
	fmt.Println("║                 Casio Store Checkout Runner               ║")
	fmt.Println("╚═══════════════════════════════════════════════════════════╝")
	fmt.Println()

	// Every credential must be present before the browser is touched.
	creds, err := LoadCredentials(config.EnvFile)
	if err != nil {
		logger.Error("pre-flight failed", zap.String("run_id", runID), zap.String("kind", Kind(err)), zap.Error(err))
		fmt.Printf(T("preflight_failed")+"\n", err)
		return exitSetupFailed
	}
	if config.ProductURL == "" {
		logger.Error("pre-flight failed: no product url", zap.String("run_id", runID))
		fmt.Println(T("no_product_url"))
		return exitSetupFailed
	}

	fmt.Printf(T("target_url")+"\n", config.ProductURL)
	fmt.Printf(T("browser_profile")+"\n", config.BrowserProfilePath)

	if config.StartAt != "" {
		if err := waitForStart(ctx, config, logger); err != nil {
			logger.Error("scheduled start aborted", zap.String("run_id", runID), zap.Error(err))
			if ctx.Err() != nil {
				return exitCheckoutFailed
			}
			return exitSetupFailed
		}
	}

	driver, err := launch(config, logger)
	if err != nil {
		logger.Error("browser launch failed", zap.String("run_id", runID), zap.Error(err))
		return exitSetupFailed
	}

	session := NewSession(driver, logger, runID)
	runLog := session.Logger()

	checkout := newCheckoutFromConfig(config, creds, sleepContext, runLog)
	pipeline := NewPipeline(runLog, checkout.Steps(), WithStepPause(milliseconds(config.StepPauseMs), nil))
	result := pipeline.Run(ctx, session)

	switch {
	case result.Succeeded():
		fmt.Println(T("checkout_completed"))
	case result.Interrupted:
		fmt.Printf(T("checkout_interrupted")+"\n", len(result.Completed))
		runLog.Warn("checkout interrupted", zap.Strings("completed", result.Completed), zap.Error(result.Err))
	default:
		fmt.Printf(T("checkout_failed_at")+"\n", result.FailedStep, result.Err)
		runLog.Error("checkout failed",
			zap.String("step", result.FailedStep),
			zap.String("kind", Kind(result.Err)),
			zap.Error(result.Err))
	}

	if ctx.Err() == nil && (!result.Succeeded() || config.KeepBrowserOpen) {
		reason := holdOpen(ctx, result.Succeeded(), confirmations(stdin), driver, runLog)
		runLog.Info("hold released", zap.Stringer("reason", reason))
	}

	if err := session.Close(); err != nil {
		runLog.Warn("closing browser", zap.Error(err))
	}

	if !result.Succeeded() {
		return exitCheckoutFailed
	}
	return exitOK
}

func waitForStart(ctx context.Context, config *Config, logger *zap.Logger) error {
	start, err := ParseStartTime(config.StartAt)
	if err != nil {
		return err
	}

	ts := NewTimeSync(config.TimeServers, logger)
	if len(config.TimeServers) > 0 {
		if err := ts.Sync(ctx); err != nil {
			logger.Warn("clock not synchronized, using local time", zap.Error(err))
		}
	}

	fmt.Printf(T("scheduled_start")+"\n", start.Local().Format("2006-01-02 15:04:05 MST"))
	return ts.waitUntil(ctx, start, 30*time.Second, sleepContext)
}
