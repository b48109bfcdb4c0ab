package scheduler

import (
	"context"
	stderrors "errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/intentest/intentest/internal/browser"
	"github.com/intentest/intentest/internal/executor"
	"github.com/intentest/intentest/internal/logger"
	"github.com/intentest/intentest/internal/model"
	"github.com/intentest/intentest/internal/pattern"
	"github.com/intentest/intentest/pkg/errors"
)

// Options configures a run.
type Options struct {
	// Workers bounds concurrent scenarios. Each worker owns one browser
	// session for its whole lifetime.
	Workers int

	// ContinueOnFailure keeps executing a scenario's remaining steps
	// after one fails. The scenario still reports Failed with its first
	// failing step. When false, the remaining steps are skipped.
	// Scenarios are isolated either way: one scenario's failure never
	// stops the others from running.
	ContinueOnFailure bool

	// Retrier is the per-step retry policy.
	Retrier executor.Retrier

	// ScreenshotDir receives screenshots. Failure captures always land
	// here when it is set.
	ScreenshotDir string

	// StepScreenshots captures a screenshot after every passing step,
	// not just on failure.
	StepScreenshots bool
}

// Scheduler fans scenarios out over a bounded worker pool. Results come
// back in declaration order regardless of which worker finished first.
type Scheduler struct {
	compiler *pattern.Compiler
	executor *executor.Executor
	factory  browser.Factory
	opts     Options
	log      *logger.Logger
}

// New creates a scheduler.
func New(compiler *pattern.Compiler, exec *executor.Executor, factory browser.Factory, opts Options, log *logger.Logger) *Scheduler {
	if opts.Workers < 1 {
		opts.Workers = 1
	}
	return &Scheduler{
		compiler: compiler,
		executor: exec,
		factory:  factory,
		opts:     opts,
		log:      log,
	}
}

type job struct {
	index    int
	scenario model.Scenario
}

// Run executes the scenarios and returns one result per scenario, in the
// order the scenarios were given. Canceling ctx stops dispatch; the
// scenarios already running finish and the rest are reported as skipped.
func (s *Scheduler) Run(ctx context.Context, scenarios []model.Scenario) []model.ScenarioResult {
	results := make([]model.ScenarioResult, len(scenarios))

	jobs := make(chan job, len(scenarios))
	for i, sc := range scenarios {
		jobs <- job{index: i, scenario: sc}
	}
	close(jobs)

	workers := s.opts.Workers
	if workers > len(scenarios) {
		workers = len(scenarios)
	}

	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func(worker int) {
			defer wg.Done()
			s.runWorker(ctx, worker, jobs, results)
		}(w)
	}
	wg.Wait()

	return results
}

// runWorker owns one browser session and pulls jobs until the queue
// drains. A scenario that panics or kills its session is contained: the
// worker records the failure, discards the session, and starts the next
// scenario on a fresh one.
func (s *Scheduler) runWorker(ctx context.Context, worker int, jobs <-chan job, results []model.ScenarioResult) {
	var session browser.Session
	defer func() {
		if session != nil {
			session.Close()
		}
	}()

	for j := range jobs {
		if ctx.Err() != nil {
			results[j.index] = skippedResult(j.scenario, worker)
			continue
		}

		if session == nil {
			var err error
			session, err = s.factory.NewSession(ctx)
			if err != nil {
				s.log.WithScenario(j.scenario.Name, worker).Error(err, "failed to start browser session")
				results[j.index] = crashedResult(j.scenario, worker, err)
				continue
			}
		}

		result, crashed := s.runScenario(ctx, worker, session, j.scenario)
		results[j.index] = result
		if crashed {
			session.Close()
			session = nil
		}
	}
}

// runScenario executes one scenario's steps sequentially. The second
// return value reports whether the session is no longer trustworthy.
func (s *Scheduler) runScenario(ctx context.Context, worker int, session browser.Session, scenario model.Scenario) (result model.ScenarioResult, crashed bool) {
	log := s.log.WithScenario(scenario.Name, worker)
	start := time.Now()

	result = model.ScenarioResult{
		ID:        uuid.NewString(),
		Name:      scenario.Name,
		Tags:      scenario.Tags,
		Status:    model.StatusRunning,
		Worker:    worker,
		Timestamp: start,
	}

	defer func() {
		if r := recover(); r != nil {
			log.Error(fmt.Errorf("%v", r), "scenario panicked")
			result.Status = model.StatusFailed
			result.ErrorKind = "panic"
			result.Message = fmt.Sprintf("panic: %v", r)
			result.Duration = time.Since(start)
			crashed = true
		}
	}()

	bindings := map[string]string{}
	steps := append(append([]string{}, scenario.Background...), scenario.Steps...)

	log.Info("scenario started")
	for i, raw := range steps {
		if result.Status == model.StatusFailed && !s.opts.ContinueOnFailure {
			result.Steps = append(result.Steps, model.StepResult{
				Index: i, Text: raw, Status: model.StatusSkipped, Timestamp: time.Now(),
			})
			continue
		}

		stepResult := s.runStep(ctx, session, i, raw, bindings)
		result.Steps = append(result.Steps, stepResult)

		if stepResult.Status == model.StatusPassed && s.opts.StepScreenshots {
			if path := s.captureStep(ctx, session, scenario.Name, i); path != "" {
				result.Steps[len(result.Steps)-1].Screenshot = path
			}
		}

		if stepResult.Status == model.StatusFailed {
			log.WithStep(i, raw).Error(stepResult.Error, "step failed")
			if result.Status == model.StatusFailed {
				// Later failures don't displace the first one's report.
				continue
			}
			result.Status = model.StatusFailed
			result.FailedStep = i
			result.ErrorKind = errorKind(stepResult.Error)
			result.Message = stepResult.Message
			s.captureFailure(ctx, session, &result)
			if result.Screenshot != "" && stepResult.Screenshot == "" {
				result.Steps[len(result.Steps)-1].Screenshot = result.Screenshot
			}
		}
	}

	if result.Status != model.StatusFailed {
		result.Status = model.StatusPassed
	}
	result.Duration = time.Since(start)
	log.WithFields(map[string]any{"status": result.Status, "duration": result.Duration.String()}).Info("scenario finished")
	return result, false
}

func (s *Scheduler) runStep(ctx context.Context, session browser.Session, index int, raw string, bindings map[string]string) model.StepResult {
	start := time.Now()
	result := model.StepResult{Index: index, Text: raw, Timestamp: start}

	step, err := s.compiler.Compile(raw, bindings)
	if err != nil {
		result.Status = model.StatusFailed
		result.Message = err.Error()
		result.Error = err
		result.Duration = time.Since(start)
		return result
	}
	result.Action = step.Action

	var outcome executor.Outcome
	attempts, err := s.opts.Retrier.Do(ctx, func(_ int, bypassCache bool) error {
		var execErr error
		outcome, execErr = s.executor.Execute(ctx, session, step, bindings, bypassCache)
		return execErr
	})

	result.Attempts = attempts
	result.ResolvedBy = outcome.ResolvedBy
	result.Screenshot = outcome.Screenshot
	result.Duration = time.Since(start)
	if err != nil {
		result.Status = model.StatusFailed
		result.Message = err.Error()
		result.Error = err
		return result
	}
	result.Status = model.StatusPassed
	return result
}

// captureFailure grabs a screenshot and page fingerprint for the failure
// report. Best effort: a broken session simply yields neither.
func (s *Scheduler) captureFailure(ctx context.Context, session browser.Session, result *model.ScenarioResult) {
	snapshot, err := session.Snapshot(ctx)
	if err != nil || snapshot == nil {
		return
	}
	result.Fingerprint = snapshot.Fingerprint().Key()

	if s.opts.ScreenshotDir == "" || len(snapshot.Screenshot) == 0 {
		return
	}
	if err := os.MkdirAll(s.opts.ScreenshotDir, 0o755); err != nil {
		return
	}
	name := fmt.Sprintf("failure-%s.png", slug(result.Name))
	path := filepath.Join(s.opts.ScreenshotDir, name)
	if err := os.WriteFile(path, snapshot.Screenshot, 0o644); err != nil {
		return
	}
	result.Screenshot = path
}

// captureStep saves a per-step screenshot. Best effort, like failure
// capture: a broken session or full disk just yields no file.
func (s *Scheduler) captureStep(ctx context.Context, session browser.Session, name string, index int) string {
	if s.opts.ScreenshotDir == "" {
		return ""
	}
	snapshot, err := session.Snapshot(ctx)
	if err != nil || snapshot == nil || len(snapshot.Screenshot) == 0 {
		return ""
	}
	if err := os.MkdirAll(s.opts.ScreenshotDir, 0o755); err != nil {
		return ""
	}
	path := filepath.Join(s.opts.ScreenshotDir, fmt.Sprintf("step-%s-%02d.png", slug(name), index))
	if err := os.WriteFile(path, snapshot.Screenshot, 0o644); err != nil {
		return ""
	}
	return path
}

func skippedResult(scenario model.Scenario, worker int) model.ScenarioResult {
	return model.ScenarioResult{
		ID:        uuid.NewString(),
		Name:      scenario.Name,
		Tags:      scenario.Tags,
		Status:    model.StatusSkipped,
		Worker:    worker,
		Timestamp: time.Now(),
	}
}

func crashedResult(scenario model.Scenario, worker int, err error) model.ScenarioResult {
	return model.ScenarioResult{
		ID:        uuid.NewString(),
		Name:      scenario.Name,
		Tags:      scenario.Tags,
		Status:    model.StatusFailed,
		ErrorKind: "session",
		Message:   err.Error(),
		Worker:    worker,
		Timestamp: time.Now(),
	}
}

func errorKind(err error) string {
	var (
		unmatched *errors.UnmatchedStepError
		binding   *errors.ParameterBindingError
		notFound  *errors.ElementNotFoundError
		action    *errors.ActionExecutionError
	)
	switch {
	case stderrors.As(err, &unmatched):
		return "unmatched_step"
	case stderrors.As(err, &binding):
		return "parameter_binding"
	case stderrors.As(err, &notFound):
		return "element_not_found"
	case stderrors.As(err, &action):
		if !action.Transient {
			return "assertion"
		}
		return "action"
	default:
		return "unknown"
	}
}

func slug(name string) string {
	name = strings.ToLower(strings.TrimSpace(name))
	name = strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			return r
		default:
			return '-'
		}
	}, name)
	return strings.Trim(strings.Join(strings.FieldsFunc(name, func(r rune) bool { return r == '-' }), "-"), "-")
}
