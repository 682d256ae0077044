// Package portal drives the INTRALU student portal through a browser: it logs
// in, keeps one authenticated session per chat and scrapes the enrolled
// course list and per-course grades.
package portal

import (
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
)

var tracer = otel.Tracer("intralu/portal")

var (
	ErrNoCredentials = errors.New("no credentials registered for this chat")
	// ErrLoginTimeout means the portal never reached its landing page after
	// the login form was submitted, usually because the credentials were
	// rejected.
	ErrLoginTimeout = errors.New("login did not reach the home page in time")
	// ErrSessionRejected means the portal bounced a freshly logged in
	// session back to the login page.
	ErrSessionRejected     = errors.New("portal redirected a fresh session to the login page")
	ErrNoCourses           = errors.New("no course list has been shown to this chat")
	ErrSelectionOutOfRange = errors.New("course selection out of range")
	ErrStaleCourse         = errors.New("course is not part of the last list shown")
	ErrCourseNotFound      = errors.New("no course matches the query")
)

const (
	loginPath      = "/login"
	homePath       = "/home"
	courseListPath = "/informacion-academica/cursos"

	DefaultBaseURL = "https://alumnos.uni.edu.pe"
)

type ChatID int64

type Credentials struct {
	Identifier string
	Secret     string
}

func (c Credentials) Empty() bool {
	return strings.TrimSpace(c.Identifier) == "" || c.Secret == ""
}

func (c Credentials) String() string {
	return fmt.Sprintf("{%s ********}", c.Identifier)
}

func (c Credentials) LogValue() slog.Value {
	return slog.GroupValue(
		slog.String("identifier", c.Identifier),
		slog.String("secret", "********"),
	)
}

type CourseRef struct {
	DisplayName string
	CourseCode  string
	SectionCode string
	PeriodCode  string
}

type GradeEntry struct {
	EvaluationLabel string
	// Score and Date are empty when the portal has not published them yet.
	Score string
	Date  string
}

type CourseNavigation string

const (
	// NavigateMenu clicks through "Información Académica" > "Cursos
	// Matriculados" and falls back to NavigateDirect when that fails.
	NavigateMenu   CourseNavigation = "menu"
	NavigateDirect CourseNavigation = "direct"
)

type InterstitialDetection string

const (
	// DetectDialog looks for a dialog element mentioning the questionnaire.
	DetectDialog InterstitialDetection = "dialog"
	// DetectText looks for the "Resolver Cuestionario" button text anywhere.
	DetectText InterstitialDetection = "text"
)

// Timeouts bounds every wait the navigator and scraper perform. Settle
// durations are fixed pauses the portal needs after rendering.
type Timeouts struct {
	Navigation   time.Duration
	LoginField   time.Duration
	LoginLanding time.Duration
	MenuStep     time.Duration
	CourseList   time.Duration
	TableWait    time.Duration

	InterstitialProbe  time.Duration
	LoginSettle        time.Duration
	PageSettle         time.Duration
	InterstitialSettle time.Duration
}

func DefaultTimeouts() Timeouts {
	return Timeouts{
		Navigation:   30 * time.Second,
		LoginField:   10 * time.Second,
		LoginLanding: 30 * time.Second,
		MenuStep:     10 * time.Second,
		CourseList:   30 * time.Second,
		TableWait:    15 * time.Second,

		InterstitialProbe:  5 * time.Second,
		LoginSettle:        3 * time.Second,
		PageSettle:         2 * time.Second,
		InterstitialSettle: 1 * time.Second,
	}
}

// withDefaults fills every zero field from DefaultTimeouts.
func (t Timeouts) withDefaults() Timeouts {
	d := DefaultTimeouts()
	fill := func(v *time.Duration, def time.Duration) {
		if *v == 0 {
			*v = def
		}
	}
	fill(&t.Navigation, d.Navigation)
	fill(&t.LoginField, d.LoginField)
	fill(&t.LoginLanding, d.LoginLanding)
	fill(&t.MenuStep, d.MenuStep)
	fill(&t.CourseList, d.CourseList)
	fill(&t.TableWait, d.TableWait)
	fill(&t.InterstitialProbe, d.InterstitialProbe)
	fill(&t.LoginSettle, d.LoginSettle)
	fill(&t.PageSettle, d.PageSettle)
	fill(&t.InterstitialSettle, d.InterstitialSettle)
	return t
}

type Options struct {
	BaseURL               string
	CourseNavigation      CourseNavigation
	InterstitialDetection InterstitialDetection
	Timeouts              Timeouts
}

func (o Options) withDefaults() Options {
	if o.BaseURL == "" {
		o.BaseURL = DefaultBaseURL
	}
	o.BaseURL = strings.TrimSuffix(o.BaseURL, "/")
	if o.CourseNavigation == "" {
		o.CourseNavigation = NavigateMenu
	}
	if o.InterstitialDetection == "" {
		o.InterstitialDetection = DetectDialog
	}
	o.Timeouts = o.Timeouts.withDefaults()
	return o
}

// Validate rejects options a running bot could not recover from.
func (o Options) Validate() error {
	o = o.withDefaults()
	u, err := url.Parse(o.BaseURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("portal: invalid base url %q", o.BaseURL)
	}
	switch o.CourseNavigation {
	case NavigateMenu, NavigateDirect:
	default:
		return fmt.Errorf("portal: unknown course navigation %q", o.CourseNavigation)
	}
	switch o.InterstitialDetection {
	case DetectDialog, DetectText:
	default:
		return fmt.Errorf("portal: unknown interstitial detection %q", o.InterstitialDetection)
	}
	return nil
}

func (o Options) url(path string) string {
	return o.BaseURL + path
}

// courseURL is the detail page of a course, built from its codes.
func (o Options) courseURL(ref CourseRef) string {
	return fmt.Sprintf(
		"%s%s/%s/%s/%s",
		o.BaseURL,
		courseListPath,
		url.PathEscape(ref.PeriodCode),
		url.PathEscape(ref.CourseCode),
		url.PathEscape(ref.SectionCode),
	)
}
