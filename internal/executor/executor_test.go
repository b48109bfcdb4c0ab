package executor

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/intentest/intentest/internal/browser"
	"github.com/intentest/intentest/internal/cache"
	"github.com/intentest/intentest/internal/detect"
	"github.com/intentest/intentest/internal/logger"
	"github.com/intentest/intentest/internal/model"
	"github.com/intentest/intentest/internal/resolver"
	"github.com/intentest/intentest/pkg/errors"
)

type actRecord struct {
	action   model.ActionKind
	selector string
	value    string
}

type fakeSession struct {
	snapshot    *browser.Snapshot
	navigations []string
	acts        []actRecord
	actErr      error
	textErr     error
	texts       map[string]string
}

func (f *fakeSession) Navigate(_ context.Context, url string) error {
	f.navigations = append(f.navigations, url)
	return nil
}

func (f *fakeSession) Act(_ context.Context, action model.ActionKind, locator model.ElementLocator, value string) error {
	f.acts = append(f.acts, actRecord{action: action, selector: locator.Selector, value: value})
	return f.actErr
}

func (f *fakeSession) Text(_ context.Context, locator model.ElementLocator) (string, error) {
	if f.textErr != nil {
		return "", f.textErr
	}
	if text, ok := f.texts[locator.Selector]; ok {
		return text, nil
	}
	return "", nil
}

func (f *fakeSession) Exists(context.Context, string) (bool, error) { return true, nil }

func (f *fakeSession) Snapshot(context.Context) (*browser.Snapshot, error) {
	return f.snapshot, nil
}

func (f *fakeSession) CurrentURL(context.Context) (string, error) { return f.snapshot.URL, nil }

func (f *fakeSession) Close() error { return nil }

func newSession() *fakeSession {
	return &fakeSession{
		snapshot: &browser.Snapshot{
			URL:        "https://shop.example.com/login",
			Screenshot: []byte("png"),
			Nodes: []browser.Node{
				{Selector: "#email", Tag: "input", Placeholder: "Email", Visible: true, Box: model.BoundingBox{X: 10, Y: 10, Width: 200, Height: 30}},
				{Selector: "#submit", Tag: "button", Text: "Log in", Visible: true, Box: model.BoundingBox{X: 10, Y: 60, Width: 100, Height: 40}},
				{Selector: "#welcome", Tag: "h1", Text: "Welcome back", Visible: true, Box: model.BoundingBox{X: 10, Y: 120, Width: 300, Height: 40}},
			},
		},
		texts: map[string]string{
			"body":     "Welcome back, Alice",
			"#welcome": "Welcome back",
		},
	}
}

func newExecutor(t *testing.T, opts Options) (*Executor, *cache.LocatorCache) {
	t.Helper()
	log, err := logger.New(logger.Options{Level: "error", Writer: io.Discard})
	require.NoError(t, err)

	locators := cache.New(time.Hour)
	res := resolver.New(locators, detect.Disabled{}, nil, 0.6, log)
	return New(res, opts, log), locators
}

func step(action model.ActionKind, target string, params ...model.Param) model.CompiledStep {
	return model.CompiledStep{Action: action, Target: target, Params: params}
}

func TestExecuteNavigate(t *testing.T) {
	t.Parallel()

	exec, _ := newExecutor(t, Options{BaseURL: "https://shop.example.com"})
	session := newSession()

	tests := []struct {
		name string
		step model.CompiledStep
		want string
	}{
		{"absolute url", step(model.ActionNavigate, "", model.Param{Name: "url", Value: "https://other.example.com/cart"}), "https://other.example.com/cart"},
		{"relative url", step(model.ActionNavigate, "", model.Param{Name: "url", Value: "/checkout"}), "https://shop.example.com/checkout"},
		{"named page", step(model.ActionNavigate, "", model.Param{Name: "page", Value: "login"}), "https://shop.example.com/login"},
		{"home page", step(model.ActionNavigate, "", model.Param{Name: "page", Value: "home"}), "https://shop.example.com"},
	}

	for _, tt := range tests {
		_, err := exec.Execute(context.Background(), session, tt.step, nil, false)
		require.NoError(t, err, tt.name)
	}
	assert.Equal(t, []string{
		"https://other.example.com/cart",
		"https://shop.example.com/checkout",
		"https://shop.example.com/login",
		"https://shop.example.com",
	}, session.navigations)
}

func TestExecuteTypeResolvesTarget(t *testing.T) {
	t.Parallel()

	exec, _ := newExecutor(t, Options{BaseURL: "https://shop.example.com"})
	session := newSession()

	outcome, err := exec.Execute(context.Background(), session,
		step(model.ActionTypeText, "Email field", model.Param{Name: "value", Value: "user@example.com"}),
		nil, false)
	require.NoError(t, err)

	require.Len(t, session.acts, 1)
	assert.Equal(t, model.ActionTypeText, session.acts[0].action)
	assert.Equal(t, "#email", session.acts[0].selector)
	assert.Equal(t, "user@example.com", session.acts[0].value)
	assert.Equal(t, model.ResolvedByHeuristic, outcome.ResolvedBy)
	assert.False(t, outcome.Fingerprint.IsZero())
}

func TestExecuteDoubleClick(t *testing.T) {
	t.Parallel()

	exec, _ := newExecutor(t, Options{})
	session := newSession()

	_, err := exec.Execute(context.Background(), session,
		step(model.ActionClick, "Log in button", model.Param{Name: "count", Value: "2"}),
		nil, false)
	require.NoError(t, err)
	assert.Len(t, session.acts, 2)
}

func TestExecuteSaveVariable(t *testing.T) {
	t.Parallel()

	exec, _ := newExecutor(t, Options{})
	session := newSession()
	bindings := map[string]string{}

	// Literal form.
	_, err := exec.Execute(context.Background(), session,
		step(model.ActionSaveVariable, "", model.Param{Name: "value", Value: "alice"}, model.Param{Name: "name", Value: "username"}),
		bindings, false)
	require.NoError(t, err)
	assert.Equal(t, "alice", bindings["username"])

	// Element text form.
	_, err = exec.Execute(context.Background(), session,
		step(model.ActionSaveVariable, "Welcome back", model.Param{Name: "name", Value: "greeting"}),
		bindings, false)
	require.NoError(t, err)
	assert.Equal(t, "Welcome back", bindings["greeting"])
}

func TestExecuteAssertText(t *testing.T) {
	t.Parallel()

	exec, _ := newExecutor(t, Options{})
	session := newSession()

	// Page-scoped pass (case-insensitive contains).
	_, err := exec.Execute(context.Background(), session,
		step(model.ActionAssertText, "", model.Param{Name: "text", Value: "welcome back"}),
		nil, false)
	require.NoError(t, err)

	// Page-scoped failure is an assertion error, not transient.
	_, err = exec.Execute(context.Background(), session,
		step(model.ActionAssertText, "", model.Param{Name: "text", Value: "Goodbye"}),
		nil, false)
	require.Error(t, err)
	assert.False(t, IsTransient(err))

	// Element-scoped form.
	_, err = exec.Execute(context.Background(), session,
		step(model.ActionAssertText, "Welcome back", model.Param{Name: "text", Value: "Welcome"}),
		nil, false)
	require.NoError(t, err)
}

func TestExecuteAssertVisible(t *testing.T) {
	t.Parallel()

	exec, _ := newExecutor(t, Options{})
	session := newSession()

	outcome, err := exec.Execute(context.Background(), session,
		step(model.ActionAssertVisible, "Log in button"), nil, false)
	require.NoError(t, err)
	assert.Equal(t, model.ResolvedByHeuristic, outcome.ResolvedBy)

	_, err = exec.Execute(context.Background(), session,
		step(model.ActionAssertVisible, "Missing button"), nil, false)
	require.Error(t, err)
	assert.True(t, IsTransient(err), "a not-yet-present element may appear on retry")
}

func TestExecuteWaitDuration(t *testing.T) {
	t.Parallel()

	exec, _ := newExecutor(t, Options{})
	session := newSession()

	start := time.Now()
	_, err := exec.Execute(context.Background(), session,
		step(model.ActionWait, "", model.Param{Name: "duration", Value: "50"}, model.Param{Name: "unit", Value: "ms"}),
		nil, false)
	require.NoError(t, err)
	assert.GreaterOrEqual(t, time.Since(start), 50*time.Millisecond)
}

func TestExecuteScreenshot(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	exec, _ := newExecutor(t, Options{ScreenshotDir: dir})
	session := newSession()

	outcome, err := exec.Execute(context.Background(), session,
		step(model.ActionScreenshot, "", model.Param{Name: "name", Value: "after login"}),
		nil, false)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "after-login.png"), outcome.Screenshot)

	data, err := os.ReadFile(outcome.Screenshot)
	require.NoError(t, err)
	assert.Equal(t, []byte("png"), data)
}

func TestExecuteEvictsFailingCachedLocator(t *testing.T) {
	t.Parallel()

	exec, locators := newExecutor(t, Options{})
	session := newSession()
	session.actErr = fmt.Errorf("element detached")

	fp := session.snapshot.Fingerprint()
	locators.Put(fp, "Log in button", model.ElementLocator{Selector: "#submit", ResolvedBy: model.ResolvedByCache})

	_, err := exec.Execute(context.Background(), session, step(model.ActionClick, "Log in button"), nil, false)
	require.Error(t, err)
	assert.True(t, IsTransient(err))

	_, ok := locators.Get(fp, "Log in button")
	assert.False(t, ok, "failing cached locator must be evicted")
}

func TestExecuteInvalidWaitDurationIsFatal(t *testing.T) {
	t.Parallel()

	exec, _ := newExecutor(t, Options{})
	session := newSession()

	_, err := exec.Execute(context.Background(), session,
		step(model.ActionWait, "", model.Param{Name: "duration", Value: "soon"}, model.Param{Name: "unit", Value: "seconds"}),
		nil, false)
	require.Error(t, err)
	assert.False(t, IsTransient(err), "a malformed duration cannot succeed on retry")
}

func TestExecuteEvictsCachedLocatorOnReadFailure(t *testing.T) {
	t.Parallel()

	exec, locators := newExecutor(t, Options{})
	session := newSession()
	session.textErr = fmt.Errorf("node detached")

	fp := session.snapshot.Fingerprint()
	locators.Put(fp, "Welcome back", model.ElementLocator{Selector: "#welcome", ResolvedBy: model.ResolvedByCache})

	_, err := exec.Execute(context.Background(), session,
		step(model.ActionSaveVariable, "Welcome back", model.Param{Name: "name", Value: "greeting"}),
		map[string]string{}, false)
	require.Error(t, err)
	assert.True(t, IsTransient(err))

	_, ok := locators.Get(fp, "Welcome back")
	assert.False(t, ok, "cached locator failing a text read must be evicted")
}

func TestRetrierBudget(t *testing.T) {
	t.Parallel()

	r := Retrier{Retries: 2, Delay: time.Millisecond}

	calls := 0
	attempts, err := r.Do(context.Background(), func(attempt int, bypassCache bool) error {
		calls++
		assert.Equal(t, calls, attempt)
		assert.Equal(t, attempt > 1, bypassCache, "every retry must bypass the cache")
		return errors.NewElementNotFoundError("Submit button", "no match")
	})
	require.Error(t, err)
	assert.Equal(t, 3, attempts, "retry budget of 2 means at most 3 attempts")
	assert.Equal(t, 3, calls)
}

func TestRetrierStopsOnFatal(t *testing.T) {
	t.Parallel()

	r := Retrier{Retries: 5, Delay: time.Millisecond}

	attempts, err := r.Do(context.Background(), func(int, bool) error {
		return errors.NewAssertionError("assert_text", fmt.Errorf("mismatch"))
	})
	require.Error(t, err)
	assert.Equal(t, 1, attempts, "assertion failures are final")
}

func TestRetrierSucceedsMidway(t *testing.T) {
	t.Parallel()

	r := Retrier{Retries: 2, Delay: time.Millisecond}

	attempts, err := r.Do(context.Background(), func(attempt int, _ bool) error {
		if attempt < 2 {
			return errors.NewActionExecutionError("click", "cache", fmt.Errorf("stale"))
		}
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 2, attempts)
}
