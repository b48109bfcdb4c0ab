package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/intentest/intentest/internal/browser"
	"github.com/intentest/intentest/internal/cache"
	"github.com/intentest/intentest/internal/config"
	"github.com/intentest/intentest/internal/detect"
	"github.com/intentest/intentest/internal/executor"
	"github.com/intentest/intentest/internal/logger"
	"github.com/intentest/intentest/internal/model"
	"github.com/intentest/intentest/internal/pattern"
	"github.com/intentest/intentest/internal/report"
	"github.com/intentest/intentest/internal/resolver"
	"github.com/intentest/intentest/internal/scenario"
	"github.com/intentest/intentest/internal/scheduler"
)

type runOptions struct {
	scenarioPath string
	tags         []string
	parallel     int
	headless     bool
	screenshot   bool
	video        bool
	slowMo       int
	reportPath   string
}

func newRunCmd(root *rootFlags) *cobra.Command {
	opts := runOptions{}

	cmd := &cobra.Command{
		Use:   "run [scenarios]",
		Short: "Execute scenarios from a file or directory",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			opts.scenarioPath = "scenarios"
			if len(args) == 1 {
				opts.scenarioPath = args[0]
			}

			cfg, err := config.Load(root.configPath, root.env)
			if err != nil {
				return err
			}
			applyOverrides(cmd, cfg, opts)

			return runScenarios(cmd, root, cfg, opts)
		},
	}

	cmd.Flags().StringSliceVarP(&opts.tags, "tags", "t", nil, "Only run scenarios carrying one of these tags")
	cmd.Flags().IntVarP(&opts.parallel, "parallel", "p", 0, "Number of parallel workers")
	cmd.Flags().BoolVar(&opts.headless, "headless", true, "Run the browser headless")
	cmd.Flags().BoolVar(&opts.screenshot, "screenshot", false, "Capture a screenshot after every step, not just on failure")
	cmd.Flags().BoolVar(&opts.video, "video", false, "Record scenario video when the driver supports it")
	cmd.Flags().IntVar(&opts.slowMo, "slow-mo", 0, "Delay in milliseconds after each browser action")
	cmd.Flags().StringVarP(&opts.reportPath, "report", "r", "", "Write a JSON report to this path")

	return cmd
}

// applyOverrides folds explicitly-set flags over the loaded config.
func applyOverrides(cmd *cobra.Command, cfg *config.Config, opts runOptions) {
	if cmd.Flags().Changed("parallel") {
		cfg.Execution.Parallel = opts.parallel
	}
	if cmd.Flags().Changed("headless") {
		cfg.Execution.Headless = &opts.headless
	}
	if cmd.Flags().Changed("screenshot") {
		cfg.Execution.Screenshot = opts.screenshot
	}
	if cmd.Flags().Changed("video") {
		cfg.Execution.Video = opts.video
	}
	if cmd.Flags().Changed("slow-mo") {
		cfg.Execution.SlowMo = opts.slowMo
	}
	if cmd.Flags().Changed("report") {
		cfg.Report.Path = opts.reportPath
	}
}

func runScenarios(cmd *cobra.Command, root *rootFlags, cfg *config.Config, opts runOptions) error {
	level := "info"
	if root.verbose {
		level = "debug"
	}
	log, err := logger.New(logger.Options{Level: level, HumanReadable: true})
	if err != nil {
		return err
	}

	scenarios, err := loadScenarios(opts.scenarioPath)
	if err != nil {
		return err
	}
	scenarios = scenario.FilterByTags(scenarios, opts.tags)
	if len(scenarios) == 0 {
		return fmt.Errorf("no scenarios matched %q", opts.scenarioPath)
	}

	registry, err := buildRegistry(cfg)
	if err != nil {
		return err
	}
	compiler := pattern.NewCompiler(registry)

	locators, closeStore, err := buildCache(cfg, log)
	if err != nil {
		return err
	}
	defer closeStore()

	var detector detect.Detector = detect.Disabled{}
	if cfg.AIModel.Type == "http" {
		detector = detect.NewHTTPDetector(cfg.AIModel.Endpoint, time.Duration(cfg.AIModel.Timeout)*time.Second)
	}

	res := resolver.New(locators, detector, cfg.AIModel.Classes, cfg.AIModel.ConfidenceThreshold, log)
	exec := executor.New(res, executor.Options{
		BaseURL:       cfg.BaseURL,
		ActionTimeout: time.Duration(cfg.Execution.Timeout) * time.Second,
		ScreenshotDir: cfg.Execution.ScreenshotDir,
	}, log)

	if cfg.Execution.Video {
		log.Warn("video recording is not supported by the Chrome driver; ignoring")
	}

	factory := browser.NewChromeFactory(browser.ChromeOptions{
		Headless: *cfg.Execution.Headless,
		SlowMo:   time.Duration(cfg.Execution.SlowMo) * time.Millisecond,
	})

	schedOpts := scheduler.Options{
		Workers:           cfg.Execution.Parallel,
		ContinueOnFailure: cfg.Execution.ContinueOnFailure,
		ScreenshotDir:     cfg.Execution.ScreenshotDir,
		StepScreenshots:   cfg.Execution.Screenshot,
		Retrier: executor.Retrier{
			Retries: cfg.Execution.RetryCount,
			Delay:   time.Duration(cfg.Execution.RetryDelay) * time.Millisecond,
		},
	}
	sched := scheduler.New(compiler, exec, factory, schedOpts, log)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	log.WithFields(map[string]any{
		"project":   cfg.Project,
		"scenarios": len(scenarios),
		"workers":   cfg.Execution.Parallel,
	}).Info("run started")

	started := time.Now()
	results := sched.Run(ctx, scenarios)

	rep := report.New(cfg.Project, root.env, started, results)
	if cfg.Report.Path != "" {
		if err := rep.Write(cfg.Report.Path); err != nil {
			log.Error(err, "failed to write report")
		}
	}

	fmt.Fprint(cmd.OutOrStdout(), report.RenderSummary(results))

	if !model.Summarize(results).Success() {
		return fmt.Errorf("run failed")
	}
	return nil
}

func loadScenarios(path string) ([]model.Scenario, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, err
	}
	if info.IsDir() {
		return scenario.LoadDir(path)
	}
	return scenario.Load(path)
}

// buildCache wires the locator cache, with SQLite persistence when the
// config names a cache path. Disabling the cache keeps the structure but
// with a zero TTL, so every lookup misses.
func buildCache(cfg *config.Config, log *logger.Logger) (*cache.LocatorCache, func(), error) {
	ttl := time.Duration(cfg.AIModel.CacheTTL) * time.Second
	if cfg.AIModel.UseCache != nil && !*cfg.AIModel.UseCache {
		return cache.New(0), func() {}, nil
	}

	if cfg.AIModel.CachePath == "" {
		return cache.New(ttl), func() {}, nil
	}

	store, err := cache.OpenStore(cfg.AIModel.CachePath)
	if err != nil {
		return nil, nil, err
	}
	closeStore := func() {
		if err := store.Close(); err != nil {
			log.Error(err, "failed to close locator store")
		}
	}
	return cache.New(ttl, cache.WithStore(store)), closeStore, nil
}
