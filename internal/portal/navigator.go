package portal

import (
	"context"
	"errors"
	"fmt"
	"time"

	"intralu-bot/internal/browser"
	"intralu-bot/internal/components/assert"
	"intralu-bot/internal/components/chrono"
	"intralu-bot/internal/components/telemetry"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

const (
	report_navigator_login                = "navigator.login"
	report_navigator_go_to_course_list    = "navigator.go-to-course-list"
	report_navigator_dismiss_interstitial = "navigator.dismiss-interstitial"
)

// Navigator performs the login sequence and the page transitions to the
// course list.
type Navigator struct {
	driver browser.Driver
	prober Prober
	clock  chrono.API
	opts   Options
	tel    telemetry.API
}

// NewNavigator creates a Navigator, prober may be nil to skip the
// reachability check before launching a browser.
func NewNavigator(driver browser.Driver, prober Prober, clock chrono.API, opts Options, tel telemetry.API) Navigator {
	assert.NotNil(driver)
	assert.NotNil(clock)
	assert.NotNil(tel)

	return Navigator{
		driver: driver,
		prober: prober,
		clock:  clock,
		opts:   opts.withDefaults(),
		tel:    telemetry.NewScopedAPI("portal", tel),
	}
}

func withTimeout(ctx context.Context, d time.Duration, fn func(ctx context.Context) error) error {
	if d <= 0 {
		return fn(ctx)
	}
	ctx, cancel := context.WithTimeout(ctx, d)
	defer cancel()
	return fn(ctx)
}

// Login opens a fresh isolated browser, signs in and leaves the page on the
// course list. The browser is closed again if any step fails.
func (n Navigator) Login(ctx context.Context, chatID ChatID, creds Credentials) (*Session, error) {
	ctx, span := tracer.Start(ctx, "navigator:Login")
	defer span.End()
	span.SetAttributes(attribute.Int64("chat_id", int64(chatID)))

	fail := func(err error) (*Session, error) {
		span.RecordError(err)
		span.SetStatus(codes.Error, "login failed")
		n.tel.ReportBroken(report_navigator_login, err, chatID, creds.Identifier)
		return nil, fmt.Errorf("portal: login: %w", err)
	}

	if creds.Empty() {
		return fail(ErrNoCredentials)
	}

	if n.prober != nil {
		err := n.prober.Probe(ctx)
		if err != nil {
			return fail(err)
		}
	}

	b, err := n.driver.Launch(ctx)
	if err != nil {
		return fail(err)
	}
	page, err := b.NewPage(ctx)
	if err != nil {
		return fail(errors.Join(err, b.Close()))
	}
	session := newSession(chatID, b, page, n.clock.Now())

	abort := func(err error) (*Session, error) {
		closeErr := session.close()
		if closeErr != nil {
			n.tel.ReportWarning(report_navigator_login, fmt.Errorf("close after failed login: %w", closeErr))
		}
		return fail(err)
	}

	err = n.submitLogin(ctx, page, creds)
	if err != nil {
		return abort(err)
	}
	_, _ = session.refreshURL()
	n.tel.ReportDebug("landed on home", chatID, session.ID)

	err = n.GoToCourseList(ctx, session)
	if err != nil {
		return abort(err)
	}
	span.SetAttributes(attribute.String("session_id", session.ID))
	return session, nil
}

func (n Navigator) submitLogin(ctx context.Context, page browser.Page, creds Credentials) error {
	t := n.opts.Timeouts

	err := withTimeout(ctx, t.Navigation, func(ctx context.Context) error {
		return page.Navigate(ctx, n.opts.url(loginPath), browser.WaitDOMReady)
	})
	if err != nil {
		return err
	}
	// the form is rendered client side after the document loads
	err = n.clock.Sleep(ctx, t.LoginSettle)
	if err != nil {
		return err
	}

	err = withTimeout(ctx, t.LoginField, func(ctx context.Context) error {
		return page.Fill(ctx, browser.Label("Código Uni"), creds.Identifier)
	})
	if err != nil {
		return fmt.Errorf("identifier field: %w", err)
	}

	err = withTimeout(ctx, t.LoginField, func(ctx context.Context) error {
		password := browser.CSS(`input[type="password"]`)
		err := page.WaitFor(ctx, password)
		if err != nil {
			return err
		}
		return page.Fill(ctx, password, creds.Secret)
	})
	if err != nil {
		return fmt.Errorf("password field: %w", err)
	}

	err = withTimeout(ctx, t.LoginField, func(ctx context.Context) error {
		return page.Click(ctx, browser.Role("button", "Ingresar"))
	})
	if err != nil {
		return fmt.Errorf("submit: %w", err)
	}

	err = withTimeout(ctx, t.LoginLanding, func(ctx context.Context) error {
		return page.WaitURL(ctx, browser.PathSuffix(homePath))
	})
	if errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%w: %w", ErrLoginTimeout, err)
	}
	return err
}

// GoToCourseList moves the session to the course list unless it is already
// there, then checks for the questionnaire interstitial. The check runs on
// every call since the portal shows it again on each visit.
func (n Navigator) GoToCourseList(ctx context.Context, session *Session) error {
	ctx, span := tracer.Start(ctx, "navigator:GoToCourseList")
	defer span.End()

	current, err := session.refreshURL()
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to read current url")
		return fmt.Errorf("portal: go to course list: %w", err)
	}

	if !browser.PathSuffix(courseListPath).MatchString(current) {
		err = n.enterCourseList(ctx, session.page)
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, "failed to reach course list")
			n.tel.ReportBroken(report_navigator_go_to_course_list, err, session.ChatID, current)
			return fmt.Errorf("portal: go to course list: %w", err)
		}
		err = n.clock.Sleep(ctx, n.opts.Timeouts.PageSettle)
		if err != nil {
			return fmt.Errorf("portal: go to course list: %w", err)
		}
	}

	result := n.DismissInterstitial(ctx, session.page)
	span.SetAttributes(attribute.String("interstitial", result.State.String()))
	switch result.State {
	case InterstitialDetectionFailed, InterstitialDismissFailed:
		n.tel.ReportWarning(report_navigator_dismiss_interstitial, result.State.String(), result.Err, session.ChatID)
	case InterstitialDismissed:
		n.tel.ReportDebug("questionnaire dismissed", session.ChatID)
	}

	_, _ = session.refreshURL()
	return nil
}

func (n Navigator) enterCourseList(ctx context.Context, page browser.Page) error {
	if n.opts.CourseNavigation == NavigateDirect {
		return n.directCourseList(ctx, page)
	}

	err := n.menuCourseList(ctx, page)
	if err == nil {
		return nil
	}
	if ctx.Err() != nil {
		return err
	}
	n.tel.ReportWarning(
		report_navigator_go_to_course_list,
		fmt.Errorf("menu navigation failed, navigating directly: %w", err),
	)
	return n.directCourseList(ctx, page)
}

func (n Navigator) menuCourseList(ctx context.Context, page browser.Page) error {
	t := n.opts.Timeouts
	for _, item := range []string{"Información Académica", "Cursos Matriculados"} {
		loc := browser.Locator{Kind: browser.ByText, Text: item, Exact: true}
		err := withTimeout(ctx, t.MenuStep, func(ctx context.Context) error {
			return page.Click(ctx, loc)
		})
		if err != nil {
			return fmt.Errorf("menu item %q: %w", item, err)
		}
	}
	return withTimeout(ctx, t.CourseList, func(ctx context.Context) error {
		return page.WaitURL(ctx, browser.PathSuffix(courseListPath))
	})
}

func (n Navigator) directCourseList(ctx context.Context, page browser.Page) error {
	return withTimeout(ctx, n.opts.Timeouts.Navigation, func(ctx context.Context) error {
		return page.Navigate(ctx, n.opts.url(courseListPath), browser.WaitDOMReady)
	})
}
