package executor

import (
	"context"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/intentest/intentest/internal/browser"
	"github.com/intentest/intentest/internal/logger"
	"github.com/intentest/intentest/internal/model"
	"github.com/intentest/intentest/internal/resolver"
	"github.com/intentest/intentest/pkg/errors"
)

// Options configures step execution.
type Options struct {
	// BaseURL resolves relative navigation targets.
	BaseURL string

	// ActionTimeout bounds each action, resolution included. Zero means
	// no per-action bound beyond the caller's context.
	ActionTimeout time.Duration

	// ScreenshotDir receives captures from screenshot steps.
	ScreenshotDir string
}

// Outcome describes a completed (or failed) step execution.
type Outcome struct {
	// ResolvedBy records which stage produced the locator, when the
	// step targeted an element.
	ResolvedBy model.ResolvedBy

	// Fingerprint is the page state the step executed against.
	Fingerprint model.PageFingerprint

	// Screenshot is the file written by a screenshot step.
	Screenshot string
}

// Executor runs compiled steps against a browser session. It owns
// element resolution and the action dispatch; retry policy lives in
// Retrier.
type Executor struct {
	resolver *resolver.Resolver
	opts     Options
	log      *logger.Logger
}

// New creates an executor.
func New(res *resolver.Resolver, opts Options, log *logger.Logger) *Executor {
	return &Executor{resolver: res, opts: opts, log: log}
}

// Execute performs one compiled step. bindings is the scenario's mutable
// variable table: save_variable steps write into it. bypassCache forces
// fresh element resolution (retries set it so a stale cached locator
// cannot fail the same step twice).
func (e *Executor) Execute(ctx context.Context, session browser.Session, step model.CompiledStep, bindings map[string]string, bypassCache bool) (Outcome, error) {
	if e.opts.ActionTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.opts.ActionTimeout)
		defer cancel()
	}

	switch step.Action {
	case model.ActionNavigate:
		return Outcome{}, e.navigate(ctx, session, step)
	case model.ActionWait:
		return Outcome{}, e.wait(ctx, session, step)
	case model.ActionScreenshot:
		return e.screenshot(ctx, session, step)
	case model.ActionPressKey:
		key, _ := step.Param("key")
		return Outcome{}, wrapAction(step.Action, "", session.Act(ctx, step.Action, model.ElementLocator{}, key))
	case model.ActionScroll:
		direction, _ := step.Param("direction")
		return Outcome{}, wrapAction(step.Action, "", session.Act(ctx, step.Action, model.ElementLocator{}, direction))
	case model.ActionSaveVariable:
		return e.saveVariable(ctx, session, step, bindings, bypassCache)
	case model.ActionAssertText:
		return e.assertText(ctx, session, step, bypassCache)
	case model.ActionAssertVisible:
		locator, fp, err := e.resolve(ctx, session, step.Target, bypassCache)
		if err != nil {
			return Outcome{Fingerprint: fp}, err
		}
		return Outcome{ResolvedBy: locator.ResolvedBy, Fingerprint: fp}, nil
	case model.ActionClick, model.ActionTypeText, model.ActionSelect, model.ActionCheck, model.ActionHover:
		return e.interact(ctx, session, step, bypassCache)
	default:
		return Outcome{}, errors.NewActionValidationError(string(step.Action), fmt.Errorf("unknown action"))
	}
}

func (e *Executor) navigate(ctx context.Context, session browser.Session, step model.CompiledStep) error {
	var target string
	if raw, ok := step.Param("url"); ok {
		target = e.absoluteURL(raw)
	} else if page, ok := step.Param("page"); ok {
		target = e.pageURL(page)
	} else {
		target = e.opts.BaseURL
	}
	return wrapAction(step.Action, "", session.Navigate(ctx, target))
}

// absoluteURL leaves absolute URLs alone and joins relative ones onto
// the configured base.
func (e *Executor) absoluteURL(raw string) string {
	if parsed, err := url.Parse(raw); err == nil && parsed.Scheme != "" {
		return raw
	}
	return strings.TrimSuffix(e.opts.BaseURL, "/") + "/" + strings.TrimPrefix(raw, "/")
}

// pageURL maps a spoken page name onto a path: "login" becomes /login,
// "home" is the base URL itself.
func (e *Executor) pageURL(page string) string {
	slug := strings.ToLower(strings.TrimSpace(page))
	slug = strings.TrimSuffix(slug, " page")
	switch slug {
	case "home", "homepage", "main", "landing", "":
		return e.opts.BaseURL
	}
	return strings.TrimSuffix(e.opts.BaseURL, "/") + "/" + strings.ReplaceAll(slug, " ", "-")
}

func (e *Executor) wait(ctx context.Context, session browser.Session, step model.CompiledStep) error {
	if state, ok := step.Param("state"); ok && state == "load" {
		return e.waitForLoad(ctx, session)
	}

	raw, _ := step.Param("duration")
	amount, err := strconv.Atoi(raw)
	if err != nil {
		return errors.NewActionValidationError(string(step.Action), fmt.Errorf("invalid wait duration %q", raw))
	}
	unit, _ := step.Param("unit")
	d := time.Duration(amount) * time.Second
	if strings.HasPrefix(unit, "ms") || strings.HasPrefix(unit, "millisecond") {
		d = time.Duration(amount) * time.Millisecond
	}

	select {
	case <-time.After(d):
		return nil
	case <-ctx.Done():
		return wrapAction(step.Action, "", ctx.Err())
	}
}

func (e *Executor) waitForLoad(ctx context.Context, session browser.Session) error {
	ticker := time.NewTicker(100 * time.Millisecond)
	defer ticker.Stop()
	for {
		if ok, err := session.Exists(ctx, "body"); err == nil && ok {
			return nil
		}
		select {
		case <-ticker.C:
		case <-ctx.Done():
			return wrapAction(model.ActionWait, "", ctx.Err())
		}
	}
}

func (e *Executor) screenshot(ctx context.Context, session browser.Session, step model.CompiledStep) (Outcome, error) {
	snapshot, err := session.Snapshot(ctx)
	if err != nil {
		return Outcome{}, wrapAction(step.Action, "", err)
	}

	name, _ := step.Param("name")
	if name == "" {
		name = time.Now().Format("screenshot-20060102-150405.000")
	}
	name = strings.ReplaceAll(strings.TrimSpace(name), " ", "-")
	if !strings.HasSuffix(name, ".png") {
		name += ".png"
	}

	if err := os.MkdirAll(e.opts.ScreenshotDir, 0o755); err != nil {
		return Outcome{}, wrapAction(step.Action, "", err)
	}
	path := filepath.Join(e.opts.ScreenshotDir, name)
	if err := os.WriteFile(path, snapshot.Screenshot, 0o644); err != nil {
		return Outcome{}, wrapAction(step.Action, "", err)
	}
	return Outcome{Fingerprint: snapshot.Fingerprint(), Screenshot: path}, nil
}

func (e *Executor) saveVariable(ctx context.Context, session browser.Session, step model.CompiledStep, bindings map[string]string, bypassCache bool) (Outcome, error) {
	name, _ := step.Param("name")

	if value, ok := step.Param("value"); ok {
		bindings[name] = value
		return Outcome{}, nil
	}

	locator, fp, err := e.resolve(ctx, session, step.Target, bypassCache)
	if err != nil {
		return Outcome{Fingerprint: fp}, err
	}
	text, err := e.readText(ctx, session, step, locator, fp)
	if err != nil {
		return Outcome{ResolvedBy: locator.ResolvedBy, Fingerprint: fp}, err
	}
	bindings[name] = text
	return Outcome{ResolvedBy: locator.ResolvedBy, Fingerprint: fp}, nil
}

func (e *Executor) assertText(ctx context.Context, session browser.Session, step model.CompiledStep, bypassCache bool) (Outcome, error) {
	expected, _ := step.Param("text")

	// Element-scoped form: the "X" field should contain "Y".
	if step.Target != "" {
		locator, fp, err := e.resolve(ctx, session, step.Target, bypassCache)
		if err != nil {
			return Outcome{Fingerprint: fp}, err
		}
		actual, err := e.readText(ctx, session, step, locator, fp)
		if err != nil {
			return Outcome{ResolvedBy: locator.ResolvedBy, Fingerprint: fp}, err
		}
		outcome := Outcome{ResolvedBy: locator.ResolvedBy, Fingerprint: fp}
		if !containsFold(actual, expected) {
			return outcome, errors.NewAssertionError(string(step.Action), fmt.Errorf("expected %q to contain %q, got %q", step.Target, expected, actual))
		}
		return outcome, nil
	}

	// Page-scoped form: should see "Y" anywhere in the document.
	actual, err := session.Text(ctx, model.ElementLocator{Selector: "body"})
	if err != nil {
		return Outcome{}, wrapAction(step.Action, "", err)
	}
	if !containsFold(actual, expected) {
		return Outcome{}, errors.NewAssertionError(string(step.Action), fmt.Errorf("expected page to contain %q", expected))
	}
	return Outcome{}, nil
}

// interact covers the actions that resolve a target and drive it: click,
// type, select, check, hover.
func (e *Executor) interact(ctx context.Context, session browser.Session, step model.CompiledStep, bypassCache bool) (Outcome, error) {
	locator, fp, err := e.resolve(ctx, session, step.Target, bypassCache)
	if err != nil {
		return Outcome{Fingerprint: fp}, err
	}
	outcome := Outcome{ResolvedBy: locator.ResolvedBy, Fingerprint: fp}

	value := actionValue(step)
	clicks := 1
	if count, ok := step.Param("count"); ok && step.Action == model.ActionClick {
		if n, err := strconv.Atoi(count); err == nil && n > 1 {
			clicks = n
		}
	}

	for i := 0; i < clicks; i++ {
		if err := session.Act(ctx, step.Action, locator, value); err != nil {
			// A failing cached locator is stale: drop it so the retry
			// re-resolves from the live page.
			if locator.ResolvedBy == model.ResolvedByCache {
				e.resolver.Evict(fp, step.Target)
			}
			return outcome, wrapAction(step.Action, string(locator.ResolvedBy), err)
		}
	}
	return outcome, nil
}

// readText reads the located element's text. Like the Act path, a read
// failing against a cache-resolved locator means the entry is stale, so
// it is dropped before the error propagates.
func (e *Executor) readText(ctx context.Context, session browser.Session, step model.CompiledStep, locator model.ElementLocator, fp model.PageFingerprint) (string, error) {
	text, err := session.Text(ctx, locator)
	if err != nil {
		if locator.ResolvedBy == model.ResolvedByCache {
			e.resolver.Evict(fp, step.Target)
		}
		return "", wrapAction(step.Action, string(locator.ResolvedBy), err)
	}
	return text, nil
}

func (e *Executor) resolve(ctx context.Context, session browser.Session, target string, bypassCache bool) (model.ElementLocator, model.PageFingerprint, error) {
	locator, snapshot, err := e.resolver.Resolve(ctx, session, target, bypassCache)
	var fp model.PageFingerprint
	if snapshot != nil {
		fp = snapshot.Fingerprint()
	}
	return locator, fp, err
}

func actionValue(step model.CompiledStep) string {
	switch step.Action {
	case model.ActionTypeText:
		v, _ := step.Param("value")
		return v
	case model.ActionSelect:
		v, _ := step.Param("option")
		return v
	case model.ActionCheck:
		v, _ := step.Param("state")
		return v
	}
	return ""
}

func wrapAction(action model.ActionKind, provenance string, err error) error {
	if err == nil {
		return nil
	}
	return errors.NewActionExecutionError(string(action), provenance, err)
}

func containsFold(haystack, needle string) bool {
	return strings.Contains(strings.ToLower(haystack), strings.ToLower(needle))
}
