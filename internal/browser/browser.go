// Package browser is the narrow surface of browser automation the portal
// navigator relies on. RodDriver implements it over the Chrome DevTools
// protocol, tests implement it with scripted fakes.
package browser

import (
	"context"
	"errors"
	"net/url"
	"strings"
)

var ErrClosed = errors.New("browser: target closed")

// WaitUntil is the readiness condition a navigation waits for.
type WaitUntil int

const (
	WaitDOMReady WaitUntil = iota
	WaitNetworkIdle
)

func (w WaitUntil) String() string {
	switch w {
	case WaitDOMReady:
		return "domcontentloaded"
	case WaitNetworkIdle:
		return "networkidle"
	}
	return "unknown"
}

type LocatorKind string

const (
	ByCSS   LocatorKind = "css"
	ByLabel LocatorKind = "label"
	ByRole  LocatorKind = "role"
	ByText  LocatorKind = "text"
)

// Locator identifies the elements an action applies to. Selector is a CSS
// selector for ByCSS and an ARIA role for ByRole. Text is the visible label,
// accessible name or text content to match, as a case-insensitive substring
// unless Exact is set.
type Locator struct {
	Kind     LocatorKind
	Selector string
	Text     string
	Exact    bool
}

func CSS(selector string) Locator {
	return Locator{Kind: ByCSS, Selector: selector}
}

func Label(text string) Locator {
	return Locator{Kind: ByLabel, Text: text}
}

func Role(role, name string) Locator {
	return Locator{Kind: ByRole, Selector: role, Text: name}
}

func Text(text string) Locator {
	return Locator{Kind: ByText, Text: text}
}

func (l Locator) String() string {
	switch l.Kind {
	case ByCSS:
		return "css=" + l.Selector
	case ByRole:
		return "role=" + l.Selector + "[name=" + l.Text + "]"
	}
	return string(l.Kind) + "=" + l.Text
}

type URLMatcher func(u *url.URL) bool

// PathSuffix matches URLs whose path ends in suffix, ignoring a trailing slash.
func PathSuffix(suffix string) URLMatcher {
	suffix = strings.TrimSuffix(suffix, "/")
	return func(u *url.URL) bool {
		return strings.HasSuffix(strings.TrimSuffix(u.Path, "/"), suffix)
	}
}

// PathContains matches URLs whose path contains segment anywhere.
func PathContains(segment string) URLMatcher {
	return func(u *url.URL) bool {
		return strings.Contains(u.Path, segment)
	}
}

// MatchString parses raw and applies m, unparseable URLs never match.
func (m URLMatcher) MatchString(raw string) bool {
	u, err := url.Parse(raw)
	if err != nil {
		return false
	}
	return m(u)
}

// Driver launches isolated browsers.
type Driver interface {
	Launch(ctx context.Context) (Browser, error)
}

// Browser is one isolated browser context with its own cookie jar.
type Browser interface {
	NewPage(ctx context.Context) (Page, error)
	// Connected probes the remote end, it is false once the process died
	// or the connection dropped.
	Connected() bool
	Close() error
}

// Page is a single tab. Every blocking call honors the deadline of ctx.
type Page interface {
	Navigate(ctx context.Context, url string, until WaitUntil) error
	URL() (string, error)
	// Closed probes the target, it is true once the tab can no longer
	// be inspected.
	Closed() bool

	Fill(ctx context.Context, loc Locator, value string) error
	Click(ctx context.Context, loc Locator) error
	// WaitFor blocks until at least one element matches loc.
	WaitFor(ctx context.Context, loc Locator) error
	// Count returns the number of visible matches of loc without waiting.
	Count(ctx context.Context, loc Locator) (int, error)
	// WaitURL blocks until the page is at a URL accepted by match, without
	// polling: the current URL is checked once, then navigation events are
	// observed.
	WaitURL(ctx context.Context, match URLMatcher) error

	ClickAt(ctx context.Context, x, y float64) error
	PressEscape(ctx context.Context) error
	// HTML returns the serialized DOM as currently rendered.
	HTML(ctx context.Context) (string, error)
}
