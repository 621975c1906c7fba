package main

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"strings"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/proto"
	"github.com/go-rod/stealth"
	"go.uber.org/zap"
)

// rodDriver is the Driver backed by a local Chrome controlled through rod.
type rodDriver struct {
	launcher *launcher.Launcher
	browser  *rod.Browser
	top      *rod.Page
	frames   []*rod.Page
	log      *zap.Logger

	clickTimeout time.Duration
}

// LaunchBrowser starts Chrome with the configured profile and opens a
// stealth page as the top-level context.
func LaunchBrowser(config *Config, log *zap.Logger) (Driver, error) {
	fmt.Println(T("browser_launching"))

	// Leakless deadlocks on Windows, see https://github.com/go-rod/rod/issues/853
	useLeakless := runtime.GOOS != "windows"

	chromePath, chromeExists := launcher.LookPath()

	l := launcher.New().
		Leakless(useLeakless).
		Headless(config.Headless).
		Set("window-size", fmt.Sprintf("%d,%d", config.ViewportWidth, config.ViewportHeight)).
		Set("lang", "en-US").
		Delete("enable-automation")

	if config.BrowserProfilePath != "" {
		l = l.UserDataDir(config.BrowserProfilePath)
		log.Debug("browser profile", zap.String("path", config.BrowserProfilePath))
	}

	if chromeExists {
		l = l.Bin(chromePath)
		log.Debug("using system chrome", zap.String("path", chromePath))
	} else {
		fmt.Println(T("browser_chrome_not_found"))
	}

	url, err := l.Launch()
	if err != nil {
		msg := err.Error()
		if strings.Contains(msg, "ProcessSingleton") || strings.Contains(msg, "SingletonLock") {
			fmt.Println(T("error_chrome_already_running"))
		}
		return nil, fmt.Errorf("failed to launch browser: %w", err)
	}

	browser := rod.New().ControlURL(url)
	if err := browser.Connect(); err != nil {
		l.Cleanup()
		return nil, fmt.Errorf("failed to connect to browser: %w", err)
	}

	page, err := stealth.Page(browser)
	if err != nil {
		browser.Close()
		l.Cleanup()
		return nil, fmt.Errorf("failed to create stealth page: %w", err)
	}

	if config.UserAgent != "" {
		if err := page.SetUserAgent(&proto.NetworkSetUserAgentOverride{UserAgent: config.UserAgent}); err != nil {
			log.Warn("failed to set user agent", zap.Error(err))
		}
	}

	if err := page.SetViewport(&proto.EmulationSetDeviceMetricsOverride{
		Width:             config.ViewportWidth,
		Height:            config.ViewportHeight,
		DeviceScaleFactor: 1,
	}); err != nil {
		log.Warn("failed to set viewport", zap.Error(err))
	}

	fmt.Println(T("browser_launched"))
	return &rodDriver{
		launcher:     l,
		browser:      browser,
		top:          page,
		log:          log,
		clickTimeout: milliseconds(config.ClickTimeoutMs),
	}, nil
}

func (d *rodDriver) active() *rod.Page {
	if n := len(d.frames); n > 0 {
		return d.frames[n-1]
	}
	return d.top
}

func (d *rodDriver) Navigate(ctx context.Context, url string) error {
	d.frames = nil
	page := d.top.Context(ctx)
	if err := page.Navigate(url); err != nil {
		return err
	}
	return page.WaitLoad()
}

func (d *rodDriver) Refresh(ctx context.Context) error {
	d.frames = nil
	page := d.top.Context(ctx)
	if err := page.Reload(); err != nil {
		return err
	}
	return page.WaitLoad()
}

func (d *rodDriver) FindElement(ctx context.Context, loc Locator) (Element, error) {
	page := d.active().Context(ctx)

	var (
		has bool
		el  *rod.Element
		err error
	)
	if loc.Strategy == ByXPath {
		has, el, err = page.HasX(loc.Selector)
	} else {
		has, el, err = page.Has(loc.CSS())
	}
	if err != nil {
		return nil, err
	}
	if !has {
		return nil, fmt.Errorf("%s: %w", loc, ErrElementNotFound)
	}
	return d.element(el), nil
}

func (d *rodDriver) FindElements(ctx context.Context, loc Locator) ([]Element, error) {
	page := d.active().Context(ctx)

	var (
		els rod.Elements
		err error
	)
	if loc.Strategy == ByXPath {
		els, err = page.ElementsX(loc.Selector)
	} else {
		els, err = page.Elements(loc.CSS())
	}
	if err != nil {
		return nil, err
	}

	out := make([]Element, 0, len(els))
	for _, el := range els {
		out = append(out, d.element(el))
	}
	return out, nil
}

func (d *rodDriver) element(el *rod.Element) *rodElement {
	return &rodElement{el: el, clickTimeout: d.clickTimeout}
}

func (d *rodDriver) EnterFrame(ctx context.Context, frame Locator) error {
	found, err := d.FindElement(ctx, frame)
	if err != nil {
		return err
	}
	fp, err := found.(*rodElement).el.Context(ctx).Frame()
	if err != nil {
		return err
	}
	d.frames = append(d.frames, fp)
	return nil
}

func (d *rodDriver) ExitToTopLevel(ctx context.Context) error {
	d.frames = nil
	return nil
}

func (d *rodDriver) CurrentURL(ctx context.Context) (string, error) {
	info, err := d.top.Context(ctx).Info()
	if err != nil {
		return "", err
	}
	return info.URL, nil
}

// isAlive reports whether the browser and its page still answer, which is
// false once the operator closes the window.
func (d *rodDriver) isAlive() bool {
	if _, err := d.browser.Version(); err != nil {
		d.log.Debug("browser version check failed", zap.Error(err))
		return false
	}
	if _, err := d.top.Info(); err != nil {
		d.log.Debug("page info check failed", zap.Error(err))
		return false
	}
	return true
}

func (d *rodDriver) Close() error {
	fmt.Println(T("cleaning_up"))

	var errs []error
	if d.top != nil {
		if err := d.top.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	if d.browser != nil {
		if err := d.browser.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	if d.launcher != nil {
		d.launcher.Cleanup()
	}

	fmt.Println(T("browser_destroyed"))
	return errors.Join(errs...)
}

type rodElement struct {
	el *rod.Element
	// clickTimeout bounds one click. rod waits for the element to become
	// interactable for as long as the context allows, so an overlay that
	// never moves would otherwise stall the click forever.
	clickTimeout time.Duration
}

func (e *rodElement) Click(ctx context.Context) error {
	clickCtx := ctx
	if e.clickTimeout > 0 {
		var cancel context.CancelFunc
		clickCtx, cancel = context.WithTimeout(ctx, e.clickTimeout)
		defer cancel()
	}

	el := e.el.Context(clickCtx)
	if _, err := el.Interactable(); err != nil {
		return clickError(ctx, err)
	}
	return clickError(ctx, el.Click(proto.InputMouseButtonLeft, 1))
}

// clickError maps a click that ran out its own deadline to
// ErrActionIntercepted. Cancellation of ctx itself passes through.
func clickError(ctx context.Context, err error) error {
	if err != nil && ctx.Err() == nil && errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%w: element never became interactable", ErrActionIntercepted)
	}
	return interception(err)
}

// interception classifies rod's occlusion errors as ErrActionIntercepted.
func interception(err error) error {
	if err == nil {
		return nil
	}
	// Both error types render the covering element's HTML in Error(), which
	// panics if that element is already gone, so they are never formatted.
	var covered *rod.CoveredError
	if errors.As(err, &covered) {
		return fmt.Errorf("%w: another element covers the click point", ErrActionIntercepted)
	}
	var noPointer *rod.NoPointerEventsError
	if errors.As(err, &noPointer) {
		return fmt.Errorf("%w: pointer-events disabled at the click point", ErrActionIntercepted)
	}
	return err
}

func (e *rodElement) Clear(ctx context.Context) error {
	el := e.el.Context(ctx)
	if err := el.SelectAllText(); err != nil {
		return err
	}
	return el.Input("")
}

func (e *rodElement) SetValue(ctx context.Context, text string) error {
	return e.el.Context(ctx).Input(text)
}

const appendValueJS = `function (text) {
	const proto = this instanceof HTMLTextAreaElement ? HTMLTextAreaElement.prototype : HTMLInputElement.prototype;
	const setter = Object.getOwnPropertyDescriptor(proto, 'value').set;
	this.focus();
	setter.call(this, this.value + text);
}`

func (e *rodElement) AppendValue(ctx context.Context, text string) error {
	_, err := e.el.Context(ctx).Eval(appendValueJS, text)
	return err
}

func (e *rodElement) Value(ctx context.Context) (string, error) {
	v, err := e.el.Context(ctx).Property("value")
	if err != nil {
		return "", err
	}
	return v.Str(), nil
}

const dispatchJS = `function (type, key) {
	let ev;
	if (type === 'input') {
		ev = new InputEvent('input', { bubbles: true, data: key, inputType: 'insertText' });
	} else {
		ev = new KeyboardEvent(type, { key: key, bubbles: true, cancelable: true });
	}
	this.dispatchEvent(ev);
}`

func (e *rodElement) Dispatch(ctx context.Context, ev SyntheticEvent) error {
	_, err := e.el.Context(ctx).Eval(dispatchJS, string(ev.Type), ev.Key)
	return err
}

func (e *rodElement) Enabled(ctx context.Context) (bool, error) {
	disabled, err := e.el.Context(ctx).Disabled()
	if err != nil {
		return false, err
	}
	return !disabled, nil
}

const hitTestJS = `function () {
	const r = this.getBoundingClientRect();
	if (r.width === 0 || r.height === 0) return false;
	const x = r.left + r.width / 2;
	const y = r.top + r.height / 2;
	if (x < 0 || y < 0 || x > window.innerWidth || y > window.innerHeight) {
		this.scrollIntoView({ block: 'center', inline: 'center' });
		return false;
	}
	const hit = document.elementFromPoint(x, y);
	return hit !== null && (hit === this || this.contains(hit));
}`

func (e *rodElement) HitTest(ctx context.Context) (bool, error) {
	res, err := e.el.Context(ctx).Eval(hitTestJS)
	if err != nil {
		return false, err
	}
	return res.Value.Bool(), nil
}
