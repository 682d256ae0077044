package browser

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"intralu-bot/internal/components/telemetry"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/launcher/flags"
	"github.com/go-rod/rod/lib/proto"
)

const (
	report_rod_launch = "rod.launch"
	report_rod_close  = "rod.close"
)

const probeTimeout = 3 * time.Second

type RodOptions struct {
	// Bin is the chrome executable, rod downloads a revision when empty.
	Bin      string
	Headless bool
	// Flags are extra command line switches such as "--no-sandbox" or
	// "--lang=es-PE".
	Flags []string
	// ControlURL connects to an already running chrome instead of
	// launching one, every Browser is then an incognito context in it.
	ControlURL string
}

type RodDriver struct {
	opts RodOptions
	tel  telemetry.API
}

func NewRodDriver(opts RodOptions, tel telemetry.API) RodDriver {
	return RodDriver{
		opts: opts,
		tel:  telemetry.NewScopedAPI("browser", tel),
	}
}

func (d RodDriver) launcher() *launcher.Launcher {
	l := launcher.New().Headless(d.opts.Headless)
	if d.opts.Bin != "" {
		l = l.Bin(d.opts.Bin)
	}
	for _, raw := range d.opts.Flags {
		name, val, hasVal := strings.Cut(strings.TrimLeft(raw, "-"), "=")
		if hasVal {
			l = l.Set(flags.Flag(name), val)
		} else {
			l = l.Set(flags.Flag(name))
		}
	}
	return l
}

// Launch starts (or connects to) chrome and opens an incognito context.
// The process is not bound to ctx, it lives until Close.
func (d RodDriver) Launch(ctx context.Context) (Browser, error) {
	var l *launcher.Launcher
	controlURL := d.opts.ControlURL
	if controlURL == "" {
		l = d.launcher()
		u, err := l.Launch()
		if err != nil {
			return nil, fmt.Errorf("browser: launch chrome: %w", err)
		}
		controlURL = u
	}

	connCtx, cancel := context.WithCancel(context.Background())
	b := &rodBrowser{launcher: l, connCtx: connCtx, cancel: cancel, tel: d.tel}
	b.root = rod.New().ControlURL(controlURL).Context(connCtx)

	connected := make(chan error, 1)
	go func() {
		connected <- b.root.Connect()
	}()
	select {
	case err := <-connected:
		if err != nil {
			b.teardown()
			return nil, fmt.Errorf("browser: connect: %w", err)
		}
	case <-ctx.Done():
		b.teardown()
		return nil, fmt.Errorf("browser: connect: %w", ctx.Err())
	}

	incognito, err := b.root.Incognito()
	if err != nil {
		b.teardown()
		return nil, fmt.Errorf("browser: open incognito context: %w", err)
	}
	b.incognito = incognito

	d.tel.ReportDebug(report_rod_launch, controlURL, d.opts.Headless)
	return b, nil
}

type rodBrowser struct {
	launcher  *launcher.Launcher
	root      *rod.Browser
	incognito *rod.Browser
	connCtx   context.Context
	cancel    context.CancelFunc
	tel       telemetry.API

	closeOnce sync.Once
	closeErr  error
}

func (b *rodBrowser) NewPage(ctx context.Context) (Page, error) {
	page, err := b.incognito.Context(ctx).Page(proto.TargetCreateTarget{URL: "about:blank"})
	if err != nil {
		return nil, fmt.Errorf("browser: new page: %w", err)
	}
	// rebind to the connection so later probes are not tied to ctx
	return &rodPage{page: page.Context(b.connCtx)}, nil
}

func (b *rodBrowser) Connected() bool {
	_, err := b.root.Timeout(probeTimeout).Version()
	return err == nil
}

func (b *rodBrowser) Close() error {
	b.closeOnce.Do(func() {
		b.closeErr = b.teardown()
		b.tel.ReportDebug(report_rod_close, b.closeErr)
	})
	return b.closeErr
}

func (b *rodBrowser) teardown() error {
	errlist := []error{}
	if b.incognito != nil {
		err := b.incognito.Timeout(probeTimeout).Close()
		if err != nil {
			errlist = append(errlist, fmt.Errorf("close incognito context: %w", err))
		}
	}
	if b.launcher != nil {
		err := b.root.Timeout(probeTimeout).Close()
		if err != nil {
			errlist = append(errlist, fmt.Errorf("close chrome: %w", err))
		}
		b.launcher.Kill()
		b.launcher.Cleanup()
	}
	b.cancel()
	return errors.Join(errlist...)
}

type rodPage struct {
	page *rod.Page
}

func lifecycleEvent(until WaitUntil) proto.PageLifecycleEventName {
	if until == WaitNetworkIdle {
		return proto.PageLifecycleEventNameNetworkIdle
	}
	return proto.PageLifecycleEventNameDOMContentLoaded
}

func (p *rodPage) Navigate(ctx context.Context, url string, until WaitUntil) error {
	page := p.page.Context(ctx)
	wait := page.WaitNavigation(lifecycleEvent(until))
	err := page.Navigate(url)
	if err != nil {
		return fmt.Errorf("browser: navigate %s: %w", url, err)
	}
	wait()
	if ctx.Err() != nil {
		return fmt.Errorf("browser: wait for %s on %s: %w", until, url, ctx.Err())
	}
	return nil
}

func (p *rodPage) URL() (string, error) {
	info, err := p.page.Timeout(probeTimeout).Info()
	if err != nil {
		return "", fmt.Errorf("browser: page info: %w", err)
	}
	return info.URL, nil
}

func (p *rodPage) Closed() bool {
	_, err := p.page.Timeout(probeTimeout).Info()
	return err != nil
}

// locateEval runs locateJS for loc. With count set the script returns the
// number of visible matches instead of the first one.
func locateEval(loc Locator, count bool) *rod.EvalOptions {
	return rod.Eval(
		locateJS,
		string(loc.Kind),
		loc.Selector,
		loc.Text,
		loc.Exact,
		count,
	)
}

func (p *rodPage) find(ctx context.Context, loc Locator) (*rod.Element, error) {
	el, err := p.page.Context(ctx).ElementByJS(locateEval(loc, false))
	if err != nil {
		return nil, fmt.Errorf("browser: locate %s: %w", loc, err)
	}
	return el, nil
}

func (p *rodPage) Fill(ctx context.Context, loc Locator, value string) error {
	el, err := p.find(ctx, loc)
	if err != nil {
		return err
	}
	err = el.SelectAllText()
	if err != nil {
		return fmt.Errorf("browser: fill %s: %w", loc, err)
	}
	err = el.Input(value)
	if err != nil {
		return fmt.Errorf("browser: fill %s: %w", loc, err)
	}
	return nil
}

func (p *rodPage) Click(ctx context.Context, loc Locator) error {
	el, err := p.find(ctx, loc)
	if err != nil {
		return err
	}
	err = el.Click(proto.InputMouseButtonLeft, 1)
	if err != nil {
		return fmt.Errorf("browser: click %s: %w", loc, err)
	}
	return nil
}

func (p *rodPage) WaitFor(ctx context.Context, loc Locator) error {
	_, err := p.find(ctx, loc)
	return err
}

func (p *rodPage) Count(ctx context.Context, loc Locator) (int, error) {
	res, err := p.page.Context(ctx).Evaluate(locateEval(loc, true))
	if err != nil {
		return 0, fmt.Errorf("browser: count %s: %w", loc, err)
	}
	return res.Value.Int(), nil
}

func (p *rodPage) WaitURL(ctx context.Context, match URLMatcher) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	var reached atomic.Bool
	check := func(raw string) bool {
		if match.MatchString(raw) {
			reached.Store(true)
			return true
		}
		return false
	}

	// subscribe before probing the current url so a redirect between the
	// two cannot be missed
	wait := p.page.Context(ctx).EachEvent(
		func(e *proto.PageFrameNavigated) bool {
			return e.Frame.ParentID == "" && check(e.Frame.URL)
		},
		func(e *proto.PageNavigatedWithinDocument) bool {
			return check(e.URL)
		},
	)

	current, err := p.URL()
	if err != nil {
		return err
	}
	if check(current) {
		return nil
	}

	wait()
	if reached.Load() {
		return nil
	}
	if ctx.Err() != nil {
		return fmt.Errorf("browser: wait for url (last %s): %w", current, ctx.Err())
	}
	return fmt.Errorf("browser: wait for url: %w", ErrClosed)
}

// rod's Mouse and Keyboard stay bound to the page they were created with,
// so input is dispatched through proto calls on a page carrying ctx.

func clickEvents(x, y float64) []proto.InputDispatchMouseEvent {
	return []proto.InputDispatchMouseEvent{
		{Type: proto.InputDispatchMouseEventTypeMouseMoved, X: x, Y: y},
		{Type: proto.InputDispatchMouseEventTypeMousePressed, X: x, Y: y, Button: proto.InputMouseButtonLeft, ClickCount: 1},
		{Type: proto.InputDispatchMouseEventTypeMouseReleased, X: x, Y: y, Button: proto.InputMouseButtonLeft, ClickCount: 1},
	}
}

func escapeEvents() []proto.InputDispatchKeyEvent {
	return []proto.InputDispatchKeyEvent{
		{Type: proto.InputDispatchKeyEventTypeKeyDown, Key: "Escape", Code: "Escape", WindowsVirtualKeyCode: 27, NativeVirtualKeyCode: 27},
		{Type: proto.InputDispatchKeyEventTypeKeyUp, Key: "Escape", Code: "Escape", WindowsVirtualKeyCode: 27, NativeVirtualKeyCode: 27},
	}
}

func dispatchClick(c proto.Client, x, y float64) error {
	for _, e := range clickEvents(x, y) {
		err := e.Call(c)
		if err != nil {
			return err
		}
	}
	return nil
}

func dispatchEscape(c proto.Client) error {
	for _, e := range escapeEvents() {
		err := e.Call(c)
		if err != nil {
			return err
		}
	}
	return nil
}

func (p *rodPage) ClickAt(ctx context.Context, x, y float64) error {
	err := dispatchClick(p.page.Context(ctx), x, y)
	if err != nil {
		return fmt.Errorf("browser: click at %.0f,%.0f: %w", x, y, err)
	}
	return nil
}

func (p *rodPage) PressEscape(ctx context.Context) error {
	err := dispatchEscape(p.page.Context(ctx))
	if err != nil {
		return fmt.Errorf("browser: press escape: %w", err)
	}
	return nil
}

func (p *rodPage) HTML(ctx context.Context) (string, error) {
	html, err := p.page.Context(ctx).HTML()
	if err != nil {
		return "", fmt.Errorf("browser: read html: %w", err)
	}
	return html, nil
}
