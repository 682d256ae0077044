package portal

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"sync"
	"time"

	"intralu-bot/internal/browser"
)

const testBaseURL = "https://portal.test"

func testOptions() Options {
	return Options{
		BaseURL: testBaseURL,
		Timeouts: Timeouts{
			Navigation:         50 * time.Millisecond,
			LoginField:         50 * time.Millisecond,
			LoginLanding:       50 * time.Millisecond,
			MenuStep:           50 * time.Millisecond,
			CourseList:         50 * time.Millisecond,
			TableWait:          50 * time.Millisecond,
			InterstitialProbe:  50 * time.Millisecond,
			LoginSettle:        3 * time.Second,
			PageSettle:         2 * time.Second,
			InterstitialSettle: time.Second,
		},
	}
}

type fakeClock struct {
	mu     sync.Mutex
	sleeps []time.Duration
}

func (c *fakeClock) Now() time.Time {
	return time.Date(2025, 10, 15, 9, 0, 0, 0, time.UTC)
}

func (c *fakeClock) Sleep(ctx context.Context, d time.Duration) error {
	c.mu.Lock()
	c.sleeps = append(c.sleeps, d)
	c.mu.Unlock()
	return ctx.Err()
}

func (c *fakeClock) Sleeps() []time.Duration {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]time.Duration(nil), c.sleeps...)
}

// fakePage behaves like a tiny portal: the login button leads home, the menu
// leads to the course list and redirects can bounce any path to another.
type fakePage struct {
	mu      sync.Mutex
	path    string
	closed  bool
	actions []string

	// content is the html served per path
	content map[string]string
	// redirects maps a requested path to where the portal sends it
	redirects map[string]string
	// rejectLogin keeps the page on /login after submit
	rejectLogin bool
	menuBroken  bool
	noTable     bool

	interstitialCounts []int
	countErr           error
	clickAtErr         error
	failLocators       map[string]error
}

func newFakePage(content map[string]string) *fakePage {
	return &fakePage{path: "", content: content}
}

func (p *fakePage) record(format string, args ...any) {
	p.actions = append(p.actions, fmt.Sprintf(format, args...))
}

func (p *fakePage) Actions() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]string(nil), p.actions...)
}

func (p *fakePage) goTo(path string) {
	if target, ok := p.redirects[path]; ok {
		path = target
	}
	p.path = path
}

func (p *fakePage) failure(loc browser.Locator) error {
	return p.failLocators[loc.String()]
}

func (p *fakePage) Navigate(ctx context.Context, raw string, until browser.WaitUntil) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return browser.ErrClosed
	}
	u, err := url.Parse(raw)
	if err != nil {
		return err
	}
	p.record("navigate %s %s", u.Path, until)
	p.goTo(u.Path)
	return ctx.Err()
}

func (p *fakePage) URL() (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return "", browser.ErrClosed
	}
	return testBaseURL + p.path, nil
}

func (p *fakePage) Closed() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.closed
}

func (p *fakePage) Fill(ctx context.Context, loc browser.Locator, value string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.failure(loc); err != nil {
		return err
	}
	p.record("fill %s %s", loc, value)
	return nil
}

func (p *fakePage) Click(ctx context.Context, loc browser.Locator) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.failure(loc); err != nil {
		return err
	}
	p.record("click %s", loc)

	switch {
	case loc.Kind == browser.ByRole && loc.Text == "Ingresar":
		if !p.rejectLogin {
			p.goTo(homePath)
		}
	case loc.Kind == browser.ByText && loc.Text == "Información Académica":
		if p.menuBroken || p.path == loginPath {
			return errors.New("element not found")
		}
	case loc.Kind == browser.ByText && loc.Text == "Cursos Matriculados":
		p.goTo(courseListPath)
	}
	return nil
}

func (p *fakePage) WaitFor(ctx context.Context, loc browser.Locator) error {
	p.mu.Lock()
	noTable := p.noTable && loc == browser.CSS("table")
	p.record("wait %s", loc)
	p.mu.Unlock()

	if noTable {
		<-ctx.Done()
		return ctx.Err()
	}
	return nil
}

func (p *fakePage) Count(ctx context.Context, loc browser.Locator) (int, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.record("count %s", loc)
	if p.countErr != nil {
		return 0, p.countErr
	}
	if len(p.interstitialCounts) == 0 {
		return 0, nil
	}
	count := p.interstitialCounts[0]
	p.interstitialCounts = p.interstitialCounts[1:]
	return count, nil
}

func (p *fakePage) WaitURL(ctx context.Context, match browser.URLMatcher) error {
	p.mu.Lock()
	reached := match.MatchString(testBaseURL + p.path)
	p.mu.Unlock()
	if reached {
		return nil
	}
	<-ctx.Done()
	return ctx.Err()
}

func (p *fakePage) ClickAt(ctx context.Context, x, y float64) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.record("click-at %.0f,%.0f", x, y)
	return p.clickAtErr
}

func (p *fakePage) PressEscape(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.record("escape")
	return nil
}

func (p *fakePage) HTML(ctx context.Context) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return "", browser.ErrClosed
	}
	return p.content[p.path], nil
}

type fakeBrowser struct {
	mu           sync.Mutex
	page         *fakePage
	disconnected bool
	closed       bool
	closeErr     error
}

func (b *fakeBrowser) NewPage(ctx context.Context) (browser.Page, error) {
	return b.page, nil
}

func (b *fakeBrowser) Connected() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return !b.disconnected && !b.closed
}

func (b *fakeBrowser) Close() error {
	b.mu.Lock()
	b.closed = true
	b.mu.Unlock()

	b.page.mu.Lock()
	b.page.closed = true
	b.page.mu.Unlock()
	return b.closeErr
}

func (b *fakeBrowser) Closed() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.closed
}

// fakeDriver hands out one scripted page per launch, the last page is
// reused once the script runs out.
type fakeDriver struct {
	mu        sync.Mutex
	pages     []*fakePage
	launched  []*fakeBrowser
	launchErr error
}

func newFakeDriver(pages ...*fakePage) *fakeDriver {
	return &fakeDriver{pages: pages}
}

func (d *fakeDriver) Launch(ctx context.Context) (browser.Browser, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.launchErr != nil {
		return nil, d.launchErr
	}
	idx := min(len(d.launched), len(d.pages)-1)
	page := d.pages[idx]
	if len(d.launched) >= len(d.pages) {
		// a reused script still gets a fresh tab
		clone := &fakePage{
			content:     page.content,
			redirects:   page.redirects,
			rejectLogin: page.rejectLogin,
			menuBroken:  page.menuBroken,
			noTable:     page.noTable,
		}
		page = clone
	}
	b := &fakeBrowser{page: page}
	d.launched = append(d.launched, b)
	return b, nil
}

func (d *fakeDriver) Launches() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.launched)
}

func (d *fakeDriver) Browser(i int) *fakeBrowser {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.launched[i]
}

type fakeProber struct {
	err    error
	probes int
}

func (p *fakeProber) Probe(ctx context.Context) error {
	p.probes++
	return p.err
}
