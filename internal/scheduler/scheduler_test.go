package scheduler

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/intentest/intentest/internal/browser"
	"github.com/intentest/intentest/internal/cache"
	"github.com/intentest/intentest/internal/detect"
	"github.com/intentest/intentest/internal/executor"
	"github.com/intentest/intentest/internal/logger"
	"github.com/intentest/intentest/internal/model"
	"github.com/intentest/intentest/internal/pattern"
	"github.com/intentest/intentest/internal/resolver"
)

type fakeSession struct {
	mu        sync.Mutex
	panicOn   string
	acts      []string
	navigated []string
}

func loginNodes() []browser.Node {
	return []browser.Node{
		{Selector: "#email", Tag: "input", Placeholder: "Email", Visible: true, Box: model.BoundingBox{X: 10, Y: 10, Width: 200, Height: 30}},
		{Selector: "#submit", Tag: "button", Text: "Log in", Visible: true, Box: model.BoundingBox{X: 10, Y: 60, Width: 100, Height: 40}},
	}
}

func (f *fakeSession) Navigate(_ context.Context, url string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.navigated = append(f.navigated, url)
	return nil
}

func (f *fakeSession) Act(_ context.Context, action model.ActionKind, locator model.ElementLocator, _ string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.panicOn != "" && locator.Selector == f.panicOn {
		panic("session lost")
	}
	f.acts = append(f.acts, locator.Selector)
	return nil
}

func (f *fakeSession) Text(context.Context, model.ElementLocator) (string, error) {
	return "Welcome", nil
}

func (f *fakeSession) Exists(context.Context, string) (bool, error) { return true, nil }

func (f *fakeSession) Snapshot(context.Context) (*browser.Snapshot, error) {
	return &browser.Snapshot{
		URL:        "https://example.com/login",
		Screenshot: []byte("png"),
		Nodes:      loginNodes(),
	}, nil
}

func (f *fakeSession) CurrentURL(context.Context) (string, error) {
	return "https://example.com/login", nil
}

func (f *fakeSession) Close() error { return nil }

type fakeFactory struct {
	created atomic.Int32
	panicOn string
}

func (f *fakeFactory) NewSession(context.Context) (browser.Session, error) {
	f.created.Add(1)
	return &fakeSession{panicOn: f.panicOn}, nil
}

func newScheduler(t *testing.T, factory browser.Factory, opts Options) *Scheduler {
	t.Helper()
	log, err := logger.New(logger.Options{Level: "error", Writer: io.Discard})
	require.NoError(t, err)

	locators := cache.New(time.Hour)
	res := resolver.New(locators, detect.Disabled{}, nil, 0.6, log)
	exec := executor.New(res, executor.Options{BaseURL: "https://example.com"}, log)
	compiler := pattern.NewCompiler(pattern.NewRegistry())

	if opts.Retrier.Delay == 0 {
		opts.Retrier.Delay = time.Millisecond
	}
	return New(compiler, exec, factory, opts, log)
}

func scenario(name string, steps ...string) model.Scenario {
	return model.Scenario{Name: name, Steps: steps}
}

func TestRunPreservesDeclarationOrder(t *testing.T) {
	t.Parallel()

	s := newScheduler(t, &fakeFactory{}, Options{Workers: 3})

	// The middle scenario finishes first; ordering must not change.
	results := s.Run(context.Background(), []model.Scenario{
		scenario("slow", "I wait for 120 ms", `I click the "Log in" button`),
		scenario("fast", `I click the "Log in" button`),
		scenario("medium", "I wait for 40 ms", `I click the "Log in" button`),
	})

	require.Len(t, results, 3)
	assert.Equal(t, "slow", results[0].Name)
	assert.Equal(t, "fast", results[1].Name)
	assert.Equal(t, "medium", results[2].Name)
	for _, r := range results {
		assert.Equal(t, model.StatusPassed, r.Status)
	}
}

func TestRunStepFailureSkipsRemainder(t *testing.T) {
	t.Parallel()

	s := newScheduler(t, &fakeFactory{}, Options{Workers: 1})

	results := s.Run(context.Background(), []model.Scenario{
		scenario("broken",
			`I click the "Log in" button`,
			"do something unintelligible",
			`I enter "x" in the "Email" field`,
		),
	})

	require.Len(t, results, 1)
	r := results[0]
	assert.Equal(t, model.StatusFailed, r.Status)
	assert.Equal(t, 1, r.FailedStep)
	assert.Equal(t, "unmatched_step", r.ErrorKind)

	require.Len(t, r.Steps, 3)
	assert.Equal(t, model.StatusPassed, r.Steps[0].Status)
	assert.Equal(t, model.StatusFailed, r.Steps[1].Status)
	assert.Equal(t, model.StatusSkipped, r.Steps[2].Status)
}

func TestRunFailureDoesNotBlockOtherScenarios(t *testing.T) {
	t.Parallel()

	s := newScheduler(t, &fakeFactory{}, Options{Workers: 1})

	results := s.Run(context.Background(), []model.Scenario{
		scenario("first", "do something unintelligible"),
		scenario("second", `I click the "Log in" button`),
	})

	require.Len(t, results, 2)
	assert.Equal(t, model.StatusFailed, results[0].Status)
	assert.Equal(t, model.StatusPassed, results[1].Status, "scenarios are isolated; one failing must not skip the rest")
}

func TestRunContinueOnFailureRunsRemainingSteps(t *testing.T) {
	t.Parallel()

	s := newScheduler(t, &fakeFactory{}, Options{Workers: 1, ContinueOnFailure: true})

	results := s.Run(context.Background(), []model.Scenario{
		scenario("keeps going",
			`I click the "Log in" button`,
			"do something unintelligible",
			`I enter "x" in the "Email" field`,
		),
	})

	require.Len(t, results, 1)
	r := results[0]
	assert.Equal(t, model.StatusFailed, r.Status)
	assert.Equal(t, 1, r.FailedStep, "the report pins the first failing step")
	assert.Equal(t, "unmatched_step", r.ErrorKind)

	require.Len(t, r.Steps, 3)
	assert.Equal(t, model.StatusPassed, r.Steps[0].Status)
	assert.Equal(t, model.StatusFailed, r.Steps[1].Status)
	assert.Equal(t, model.StatusPassed, r.Steps[2].Status)
}

func TestRunOneSessionPerWorker(t *testing.T) {
	t.Parallel()

	factory := &fakeFactory{}
	s := newScheduler(t, factory, Options{Workers: 2})

	scenarios := []model.Scenario{
		scenario("a", `I click the "Log in" button`),
		scenario("b", `I click the "Log in" button`),
		scenario("c", `I click the "Log in" button`),
		scenario("d", `I click the "Log in" button`),
	}
	results := s.Run(context.Background(), scenarios)

	require.Len(t, results, 4)
	assert.LessOrEqual(t, factory.created.Load(), int32(2), "workers must reuse their session across scenarios")
}

func TestRunContainsWorkerCrash(t *testing.T) {
	t.Parallel()

	factory := &fakeFactory{panicOn: "#submit"}
	s := newScheduler(t, factory, Options{Workers: 1})

	results := s.Run(context.Background(), []model.Scenario{
		scenario("crashes", `I click the "Log in" button`),
		scenario("survives", `I enter "x" in the "Email" field`),
	})

	require.Len(t, results, 2)
	assert.Equal(t, model.StatusFailed, results[0].Status)
	assert.Equal(t, "panic", results[0].ErrorKind)
	assert.Equal(t, model.StatusPassed, results[1].Status, "worker must re-init its session after a crash")
	assert.Equal(t, int32(2), factory.created.Load())
}

func TestRunHonorsCancellation(t *testing.T) {
	t.Parallel()

	s := newScheduler(t, &fakeFactory{}, Options{Workers: 1})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	results := s.Run(ctx, []model.Scenario{
		scenario("a", `I click the "Log in" button`),
		scenario("b", `I click the "Log in" button`),
	})

	require.Len(t, results, 2)
	for _, r := range results {
		assert.Equal(t, model.StatusSkipped, r.Status)
	}
}

func TestRunBackgroundStepsPrepended(t *testing.T) {
	t.Parallel()

	s := newScheduler(t, &fakeFactory{}, Options{Workers: 1})

	results := s.Run(context.Background(), []model.Scenario{
		{
			Name:       "with background",
			Background: []string{`I go to the "login" page`},
			Steps:      []string{`I click the "Log in" button`},
		},
	})

	require.Len(t, results, 1)
	r := results[0]
	require.Len(t, r.Steps, 2)
	assert.Equal(t, model.ActionNavigate, r.Steps[0].Action)
	assert.Equal(t, model.ActionClick, r.Steps[1].Action)
	assert.Equal(t, model.StatusPassed, r.Status)
}

func TestRunRecordsRetryAttempts(t *testing.T) {
	t.Parallel()

	s := newScheduler(t, &fakeFactory{}, Options{Workers: 1, Retrier: executor.Retrier{Retries: 2, Delay: time.Millisecond}})

	results := s.Run(context.Background(), []model.Scenario{
		scenario("missing element", `I click the "Nonexistent" button`),
	})

	require.Len(t, results, 1)
	r := results[0]
	assert.Equal(t, model.StatusFailed, r.Status)
	assert.Equal(t, "element_not_found", r.ErrorKind)
	require.Len(t, r.Steps, 1)
	assert.Equal(t, 3, r.Steps[0].Attempts)
}

func TestRunAlwaysCapturesFailureScreenshot(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	s := newScheduler(t, &fakeFactory{}, Options{Workers: 1, ScreenshotDir: dir})

	results := s.Run(context.Background(), []model.Scenario{
		scenario("login fails", `I click the "Nonexistent" button`),
	})

	require.Len(t, results, 1)
	r := results[0]
	require.Equal(t, model.StatusFailed, r.Status)
	require.Equal(t, filepath.Join(dir, "failure-login-fails.png"), r.Screenshot)
	_, err := os.Stat(r.Screenshot)
	require.NoError(t, err)

	require.Len(t, r.Steps, 1)
	assert.Equal(t, r.Screenshot, r.Steps[0].Screenshot)
}

func TestRunStepScreenshots(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	s := newScheduler(t, &fakeFactory{}, Options{Workers: 1, ScreenshotDir: dir, StepScreenshots: true})

	results := s.Run(context.Background(), []model.Scenario{
		scenario("shots", `I click the "Log in" button`, `I enter "x" in the "Email" field`),
	})

	require.Len(t, results, 1)
	r := results[0]
	require.Equal(t, model.StatusPassed, r.Status)
	require.Len(t, r.Steps, 2)
	assert.Equal(t, filepath.Join(dir, "step-shots-00.png"), r.Steps[0].Screenshot)
	assert.Equal(t, filepath.Join(dir, "step-shots-01.png"), r.Steps[1].Screenshot)
	for _, step := range r.Steps {
		_, err := os.Stat(step.Screenshot)
		require.NoError(t, err)
	}
}
