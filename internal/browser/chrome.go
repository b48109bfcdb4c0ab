package browser

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/chromedp/chromedp"

	"github.com/intentest/intentest/internal/model"
)

// ChromeOptions configure the Chrome sessions handed to workers.
type ChromeOptions struct {
	Headless bool
	SlowMo   time.Duration
	Width    int
	Height   int
}

// ChromeFactory creates isolated Chrome sessions via chromedp. Every
// session gets its own allocator so parallel workers never share a
// browser process.
type ChromeFactory struct {
	opts ChromeOptions
}

// NewChromeFactory constructs a factory with the given options.
func NewChromeFactory(opts ChromeOptions) *ChromeFactory {
	if opts.Width == 0 {
		opts.Width = 1440
	}
	if opts.Height == 0 {
		opts.Height = 900
	}
	return &ChromeFactory{opts: opts}
}

// NewSession starts a fresh Chrome instance.
func (f *ChromeFactory) NewSession(ctx context.Context) (Session, error) {
	allocOpts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", f.opts.Headless),
		chromedp.Flag("disable-gpu", f.opts.Headless),
		chromedp.Flag("disable-blink-features", "AutomationControlled"),
		chromedp.WindowSize(f.opts.Width, f.opts.Height),
	)

	allocCtx, allocCancel := chromedp.NewExecAllocator(ctx, allocOpts...)
	browserCtx, browserCancel := chromedp.NewContext(allocCtx,
		chromedp.WithLogf(func(string, ...interface{}) {}),
	)

	// Start the browser process eagerly so a broken Chrome install
	// surfaces as a session error, not a first-action error.
	if err := chromedp.Run(browserCtx); err != nil {
		browserCancel()
		allocCancel()
		return nil, fmt.Errorf("failed to start chrome: %w", err)
	}

	return &chromeSession{
		ctx:    browserCtx,
		cancel: func() { browserCancel(); allocCancel() },
		slowMo: f.opts.SlowMo,
	}, nil
}

type chromeSession struct {
	ctx    context.Context
	cancel context.CancelFunc
	slowMo time.Duration
}

func (s *chromeSession) run(ctx context.Context, actions ...chromedp.Action) error {
	runCtx := s.ctx
	if deadline, ok := ctx.Deadline(); ok {
		var cancel context.CancelFunc
		runCtx, cancel = context.WithDeadline(s.ctx, deadline)
		defer cancel()
	}
	err := chromedp.Run(runCtx, actions...)
	if s.slowMo > 0 {
		time.Sleep(s.slowMo)
	}
	return err
}

func (s *chromeSession) Navigate(ctx context.Context, url string) error {
	return s.run(ctx,
		chromedp.Navigate(url),
		chromedp.WaitReady("body", chromedp.ByQuery),
	)
}

func (s *chromeSession) Act(ctx context.Context, action model.ActionKind, locator model.ElementLocator, value string) error {
	switch action {
	case model.ActionClick:
		return s.click(ctx, locator)
	case model.ActionTypeText:
		return s.typeText(ctx, locator, value)
	case model.ActionSelect:
		return s.selectOption(ctx, locator, value)
	case model.ActionCheck:
		return s.setChecked(ctx, locator, value == "checked")
	case model.ActionHover:
		return s.hover(ctx, locator)
	case model.ActionPressKey:
		return s.run(ctx, chromedp.KeyEvent(keySequence(value)))
	case model.ActionScroll:
		return s.scroll(ctx, value)
	default:
		return fmt.Errorf("unsupported browser action: %s", action)
	}
}

func (s *chromeSession) click(ctx context.Context, locator model.ElementLocator) error {
	if locator.Selector != "" {
		return s.run(ctx,
			chromedp.WaitVisible(locator.Selector, chromedp.ByQuery),
			chromedp.WaitEnabled(locator.Selector, chromedp.ByQuery),
			chromedp.Click(locator.Selector, chromedp.ByQuery),
			chromedp.Sleep(200*time.Millisecond),
		)
	}
	if locator.Coordinates != nil {
		return s.run(ctx,
			chromedp.MouseClickXY(locator.Coordinates.X, locator.Coordinates.Y),
			chromedp.Sleep(200*time.Millisecond),
		)
	}
	return fmt.Errorf("locator carries neither selector nor coordinates")
}

func (s *chromeSession) typeText(ctx context.Context, locator model.ElementLocator, value string) error {
	if locator.Selector != "" {
		return s.run(ctx,
			chromedp.WaitVisible(locator.Selector, chromedp.ByQuery),
			chromedp.Clear(locator.Selector, chromedp.ByQuery),
			chromedp.SendKeys(locator.Selector, value, chromedp.ByQuery),
			chromedp.Sleep(200*time.Millisecond),
		)
	}
	if locator.Coordinates != nil {
		// Coordinate locators come from the AI stage: focus by click,
		// then type into the focused element.
		if err := s.click(ctx, locator); err != nil {
			return err
		}
		return s.run(ctx, chromedp.KeyEvent(value))
	}
	return fmt.Errorf("locator carries neither selector nor coordinates")
}

func (s *chromeSession) selectOption(ctx context.Context, locator model.ElementLocator, value string) error {
	if locator.Selector == "" {
		return fmt.Errorf("select requires a selector locator, got %s", locator)
	}
	return s.run(ctx,
		chromedp.WaitVisible(locator.Selector, chromedp.ByQuery),
		chromedp.SetValue(locator.Selector, value, chromedp.ByQuery),
		chromedp.Sleep(200*time.Millisecond),
	)
}

func (s *chromeSession) setChecked(ctx context.Context, locator model.ElementLocator, checked bool) error {
	if locator.Selector == "" {
		return fmt.Errorf("checkbox toggle requires a selector locator, got %s", locator)
	}
	script := fmt.Sprintf(`(() => {
		const el = document.querySelector(%s);
		if (!el) return false;
		if (el.checked !== %t) { el.click(); }
		return el.checked === %t;
	})()`, jsString(locator.Selector), checked, checked)

	var ok bool
	if err := s.run(ctx, chromedp.Evaluate(script, &ok)); err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("failed to set checkbox %s", locator)
	}
	return nil
}

func (s *chromeSession) hover(ctx context.Context, locator model.ElementLocator) error {
	var target string
	switch {
	case locator.Selector != "":
		target = fmt.Sprintf("document.querySelector(%s)", jsString(locator.Selector))
	case locator.Coordinates != nil:
		target = fmt.Sprintf("document.elementFromPoint(%f, %f)", locator.Coordinates.X, locator.Coordinates.Y)
	default:
		return fmt.Errorf("locator carries neither selector nor coordinates")
	}

	script := fmt.Sprintf(`(() => {
		const el = %s;
		if (!el) return false;
		el.dispatchEvent(new MouseEvent('mouseover', {bubbles: true}));
		el.dispatchEvent(new MouseEvent('mouseenter', {bubbles: true}));
		return true;
	})()`, target)

	var ok bool
	if err := s.run(ctx, chromedp.Evaluate(script, &ok)); err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("hover target not found: %s", locator)
	}
	return nil
}

func (s *chromeSession) scroll(ctx context.Context, direction string) error {
	var script string
	switch direction {
	case "to top":
		script = "window.scrollTo(0, 0)"
	case "to bottom":
		script = "window.scrollTo(0, document.body.scrollHeight)"
	case "up":
		script = "window.scrollBy(0, -window.innerHeight * 0.8)"
	default:
		script = "window.scrollBy(0, window.innerHeight * 0.8)"
	}
	return s.run(ctx,
		chromedp.Evaluate(script, nil),
		chromedp.Sleep(200*time.Millisecond),
	)
}

func (s *chromeSession) Text(ctx context.Context, locator model.ElementLocator) (string, error) {
	if locator.Selector != "" {
		var text string
		err := s.run(ctx, chromedp.Text(locator.Selector, &text, chromedp.ByQuery))
		return strings.TrimSpace(text), err
	}
	if locator.Coordinates != nil {
		script := fmt.Sprintf(`(() => {
			const el = document.elementFromPoint(%f, %f);
			return el ? (el.innerText || el.value || '') : '';
		})()`, locator.Coordinates.X, locator.Coordinates.Y)
		var text string
		err := s.run(ctx, chromedp.Evaluate(script, &text))
		return strings.TrimSpace(text), err
	}
	return "", fmt.Errorf("locator carries neither selector nor coordinates")
}

func (s *chromeSession) Exists(ctx context.Context, selector string) (bool, error) {
	script := fmt.Sprintf("document.querySelector(%s) !== null", jsString(selector))
	var found bool
	if err := s.run(ctx, chromedp.Evaluate(script, &found)); err != nil {
		return false, err
	}
	return found, nil
}

func (s *chromeSession) Snapshot(ctx context.Context) (*Snapshot, error) {
	var (
		url   string
		shot  []byte
		nodes []Node
	)
	err := s.run(ctx,
		chromedp.Location(&url),
		chromedp.CaptureScreenshot(&shot),
		chromedp.Evaluate(snapshotScript, &nodes),
	)
	if err != nil {
		return nil, err
	}
	return &Snapshot{URL: url, Screenshot: shot, Nodes: nodes}, nil
}

func (s *chromeSession) CurrentURL(ctx context.Context) (string, error) {
	var url string
	err := s.run(ctx, chromedp.Location(&url))
	return url, err
}

func (s *chromeSession) Close() error {
	s.cancel()
	return nil
}

// keySequence maps friendly key names to the raw sequences chromedp's
// KeyEvent expects.
func keySequence(key string) string {
	switch strings.ToLower(key) {
	case "enter", "return":
		return "\r"
	case "tab":
		return "\t"
	case "escape", "esc":
		return "\u001b"
	case "backspace":
		return "\b"
	case "space":
		return " "
	default:
		return key
	}
}

func jsString(s string) string {
	encoded, err := json.Marshal(s)
	if err != nil {
		return `""`
	}
	return string(encoded)
}
