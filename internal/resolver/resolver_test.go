package resolver

import (
	"context"
	"io"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/intentest/intentest/internal/browser"
	"github.com/intentest/intentest/internal/cache"
	"github.com/intentest/intentest/internal/detect"
	"github.com/intentest/intentest/internal/logger"
	"github.com/intentest/intentest/internal/model"
	"github.com/intentest/intentest/pkg/errors"
)

type fakeSession struct {
	snapshot *browser.Snapshot
	missing  map[string]bool
}

func (f *fakeSession) Navigate(context.Context, string) error { return nil }

func (f *fakeSession) Act(context.Context, model.ActionKind, model.ElementLocator, string) error {
	return nil
}

func (f *fakeSession) Text(context.Context, model.ElementLocator) (string, error) { return "", nil }

func (f *fakeSession) Exists(_ context.Context, selector string) (bool, error) {
	return !f.missing[selector], nil
}

func (f *fakeSession) Snapshot(context.Context) (*browser.Snapshot, error) {
	return f.snapshot, nil
}

func (f *fakeSession) CurrentURL(context.Context) (string, error) { return f.snapshot.URL, nil }

func (f *fakeSession) Close() error { return nil }

type fakeDetector struct {
	detections []detect.Detection
	calls      int
}

func (f *fakeDetector) Detect(context.Context, []byte, []string) ([]detect.Detection, error) {
	f.calls++
	return f.detections, nil
}

func testLogger(t *testing.T) *logger.Logger {
	t.Helper()
	log, err := logger.New(logger.Options{Level: "error", Writer: io.Discard})
	require.NoError(t, err)
	return log
}

func box(x, y, w, h float64) model.BoundingBox {
	return model.BoundingBox{X: x, Y: y, Width: w, Height: h}
}

func newResolver(t *testing.T, detector detect.Detector) (*Resolver, *cache.LocatorCache) {
	t.Helper()
	locators := cache.New(time.Hour)
	classes := []string{"button", "input", "link"}
	return New(locators, detector, classes, 0.6, testLogger(t)), locators
}

func loginSnapshot() *browser.Snapshot {
	return &browser.Snapshot{
		URL:        "https://example.com/login",
		Screenshot: []byte("png"),
		Nodes: []browser.Node{
			{Selector: "#email", Tag: "input", Placeholder: "Email", Visible: true, Box: box(100, 100, 200, 30)},
			{Selector: "#password", Tag: "input", Placeholder: "Password", Visible: true, Box: box(100, 150, 200, 30)},
			{Selector: "#submit", Tag: "button", Text: "Log in", Visible: true, Box: box(100, 200, 120, 40)},
			{Selector: "#search", Tag: "input", Label: "Search", Visible: true, Box: box(400, 20, 180, 28)},
			{Selector: "#hidden", Tag: "button", Text: "Log in", Visible: false, Box: box(0, 0, 0, 0)},
		},
	}
}

func TestResolveHeuristicExactText(t *testing.T) {
	t.Parallel()

	detector := &fakeDetector{}
	r, _ := newResolver(t, detector)
	session := &fakeSession{snapshot: loginSnapshot()}

	locator, _, err := r.Resolve(context.Background(), session, `the "Log in" button`, false)
	require.NoError(t, err)
	assert.Equal(t, "#submit", locator.Selector)
	assert.Equal(t, model.ResolvedByHeuristic, locator.ResolvedBy)
	require.NotNil(t, locator.Box)
	assert.Equal(t, box(100, 200, 120, 40), *locator.Box)
	assert.Zero(t, detector.calls, "heuristic hit must not invoke detection")
}

func TestResolveHeuristicLabelAndPlaceholder(t *testing.T) {
	t.Parallel()

	detector := &fakeDetector{}
	r, _ := newResolver(t, detector)
	session := &fakeSession{snapshot: loginSnapshot()}

	locator, _, err := r.Resolve(context.Background(), session, "Search field", false)
	require.NoError(t, err)
	assert.Equal(t, "#search", locator.Selector)

	locator, _, err = r.Resolve(context.Background(), session, "Email field", false)
	require.NoError(t, err)
	assert.Equal(t, "#email", locator.Selector)
	assert.Zero(t, detector.calls)
}

func TestResolveSecondCallServedFromCache(t *testing.T) {
	t.Parallel()

	r, _ := newResolver(t, &fakeDetector{})
	session := &fakeSession{snapshot: loginSnapshot()}

	first, _, err := r.Resolve(context.Background(), session, "Email field", false)
	require.NoError(t, err)
	assert.Equal(t, model.ResolvedByHeuristic, first.ResolvedBy)

	second, _, err := r.Resolve(context.Background(), session, "Email field", false)
	require.NoError(t, err)
	assert.Equal(t, model.ResolvedByCache, second.ResolvedBy)
	assert.Equal(t, first.Selector, second.Selector)
}

func TestResolveStaleCacheEntryEvictedSilently(t *testing.T) {
	t.Parallel()

	r, locators := newResolver(t, &fakeDetector{})
	session := &fakeSession{snapshot: loginSnapshot(), missing: map[string]bool{"#stale": true}}

	fp := session.snapshot.Fingerprint()
	locators.Put(fp, "Email field", model.ElementLocator{Selector: "#stale", ResolvedBy: model.ResolvedByCache})

	locator, _, err := r.Resolve(context.Background(), session, "Email field", false)
	require.NoError(t, err, "validation failure must not surface")
	assert.Equal(t, "#email", locator.Selector)
	assert.Equal(t, model.ResolvedByHeuristic, locator.ResolvedBy)

	// The stale entry is gone; the fresh one replaced it.
	got, ok := locators.Get(fp, "Email field")
	require.True(t, ok)
	assert.Equal(t, "#email", got.Selector)
}

func TestResolveBypassCache(t *testing.T) {
	t.Parallel()

	r, locators := newResolver(t, &fakeDetector{})
	session := &fakeSession{snapshot: loginSnapshot()}

	fp := session.snapshot.Fingerprint()
	locators.Put(fp, "Email field", model.ElementLocator{Selector: "#wrong", ResolvedBy: model.ResolvedByCache})

	locator, _, err := r.Resolve(context.Background(), session, "Email field", true)
	require.NoError(t, err)
	assert.Equal(t, "#email", locator.Selector, "bypass must re-resolve from the live page")

	// Fresh resolution is still written through.
	got, ok := locators.Get(fp, "Email field")
	require.True(t, ok)
	assert.Equal(t, "#email", got.Selector)
}

func TestResolveAmbiguousHeuristicFallsToDetection(t *testing.T) {
	t.Parallel()

	detector := &fakeDetector{detections: []detect.Detection{
		{Label: "button", Confidence: 0.9, Box: box(100, 200, 120, 40)},
	}}
	r, _ := newResolver(t, detector)

	session := &fakeSession{snapshot: &browser.Snapshot{
		URL:        "https://example.com",
		Screenshot: []byte("png"),
		Nodes: []browser.Node{
			{Selector: "#a", Tag: "button", Text: "Delete", Visible: true, Box: box(10, 10, 80, 30)},
			{Selector: "#b", Tag: "button", Text: "Delete", Visible: true, Box: box(10, 60, 80, 30)},
		},
	}}

	locator, _, err := r.Resolve(context.Background(), session, "Delete button", false)
	require.NoError(t, err)
	assert.Equal(t, 1, detector.calls)
	assert.Equal(t, model.ResolvedByAI, locator.ResolvedBy)
	require.NotNil(t, locator.Coordinates)
}

func TestResolveDetectionThreshold(t *testing.T) {
	t.Parallel()

	detector := &fakeDetector{detections: []detect.Detection{
		{Label: "button", Confidence: 0.4, Box: box(0, 0, 10, 10)},
	}}
	r, _ := newResolver(t, detector)
	session := &fakeSession{snapshot: &browser.Snapshot{
		URL:        "https://example.com",
		Screenshot: []byte("png"),
	}}

	_, _, err := r.Resolve(context.Background(), session, "Nonexistent button", false)
	require.Error(t, err)

	var notFound *errors.ElementNotFoundError
	require.ErrorAs(t, err, &notFound)
	assert.Equal(t, "Nonexistent button", notFound.Descriptor)
}

func TestResolveDetectionTieBreak(t *testing.T) {
	t.Parallel()

	// Equal confidence: the smaller box wins; equal area falls back to
	// reading order.
	detector := &fakeDetector{detections: []detect.Detection{
		{Label: "button", Confidence: 0.9, Box: box(0, 300, 200, 100)},
		{Label: "button", Confidence: 0.9, Box: box(50, 100, 100, 40)},
		{Label: "button", Confidence: 0.9, Box: box(50, 50, 100, 40)},
	}}
	r, _ := newResolver(t, detector)
	session := &fakeSession{snapshot: &browser.Snapshot{
		URL:        "https://example.com",
		Screenshot: []byte("png"),
	}}

	locator, _, err := r.Resolve(context.Background(), session, "OK button", false)
	require.NoError(t, err)
	require.NotNil(t, locator.Coordinates)
	assert.Equal(t, float64(100), locator.Coordinates.X)
	assert.Equal(t, float64(70), locator.Coordinates.Y)
	require.NotNil(t, locator.Box)
	assert.Equal(t, box(50, 50, 100, 40), *locator.Box)
}

func TestResolveDetectionClassFilter(t *testing.T) {
	t.Parallel()

	detector := &fakeDetector{detections: []detect.Detection{
		{Label: "input", Confidence: 0.99, Box: box(0, 0, 200, 30)},
		{Label: "button", Confidence: 0.7, Box: box(0, 100, 100, 40)},
	}}
	r, _ := newResolver(t, detector)
	session := &fakeSession{snapshot: &browser.Snapshot{
		URL:        "https://example.com",
		Screenshot: []byte("png"),
	}}

	locator, _, err := r.Resolve(context.Background(), session, "Pay button", false)
	require.NoError(t, err)
	assert.Equal(t, 0.7, locator.Confidence, "input detection must be filtered out for a button descriptor")
}

func TestInferClass(t *testing.T) {
	t.Parallel()

	tests := []struct {
		descriptor string
		want       string
	}{
		{"Submit button", "button"},
		{"Email field", "input"},
		{"username textbox", "input"},
		{"Forgot password link", "link"},
		{"Country dropdown", "dropdown"},
		{"Terms checkbox", "checkbox"},
		{"logo icon", "image"},
		{"Search", ""},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, inferClass(tt.descriptor), tt.descriptor)
	}
}
