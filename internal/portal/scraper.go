package portal

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"intralu-bot/internal/browser"
	"intralu-bot/internal/components/assert"
	"intralu-bot/internal/components/chrono"
	"intralu-bot/internal/components/telemetry"
	"intralu-bot/lib/dumputil"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

const (
	report_scraper_list_courses = "scraper.list-courses"
	report_scraper_list_grades  = "scraper.list-grades"
)

// Scraper reads courses and grades from the rendered page. ListCourses never
// navigates, ListGrades only navigates to the course detail it was given.
type Scraper struct {
	clock chrono.API
	opts  Options
	tel   telemetry.API
	dump  dumputil.Output
}

func NewScraper(clock chrono.API, opts Options, tel telemetry.API) Scraper {
	assert.NotNil(clock)
	assert.NotNil(tel)

	return Scraper{
		clock: clock,
		opts:  opts.withDefaults(),
		tel:   telemetry.NewScopedAPI("portal", tel),
	}
}

// WithDump returns a Scraper that also hands every page it parses to out.
func (s Scraper) WithDump(out dumputil.Output) Scraper {
	s.dump = out
	return s
}

func (s Scraper) dumpPage(id, html string) {
	if s.dump != nil {
		s.dump.Write(id, html)
	}
}

func (s Scraper) ListCourses(ctx context.Context, page browser.Page) ([]CourseRef, error) {
	ctx, span := tracer.Start(ctx, "scraper:ListCourses")
	defer span.End()

	html, err := page.HTML(ctx)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to read page html")
		s.tel.ReportBroken(report_scraper_list_courses, err)
		return nil, fmt.Errorf("portal: list courses: %w", err)
	}
	s.dumpPage("courses", html)
	courses, err := ParseCourses(strings.NewReader(html))
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to parse course list")
		s.tel.ReportBroken(report_scraper_list_courses, err)
		return nil, fmt.Errorf("portal: list courses: %w", err)
	}
	span.SetAttributes(attribute.Int("courses", len(courses)))
	return courses, nil
}

// ListGrades opens the detail page of ref and extracts its grade table. A
// slow page or a missing table is not an error, it only yields fewer rows.
func (s Scraper) ListGrades(ctx context.Context, page browser.Page, ref CourseRef) ([]GradeEntry, error) {
	ctx, span := tracer.Start(ctx, "scraper:ListGrades")
	defer span.End()

	target := s.opts.courseURL(ref)
	span.SetAttributes(attribute.String("url", target))

	fail := func(err error) ([]GradeEntry, error) {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to list grades")
		s.tel.ReportBroken(report_scraper_list_grades, err, ref.DisplayName)
		return nil, fmt.Errorf("portal: list grades: %w", err)
	}

	t := s.opts.Timeouts
	err := withTimeout(ctx, t.Navigation, func(ctx context.Context) error {
		return page.Navigate(ctx, target, browser.WaitNetworkIdle)
	})
	if errors.Is(err, context.DeadlineExceeded) && ctx.Err() == nil {
		// the detail page keeps polling in the background, it rarely goes idle
		s.tel.ReportWarning(report_scraper_list_grades, err, target)
	} else if err != nil {
		return fail(err)
	}

	err = s.clock.Sleep(ctx, t.PageSettle)
	if err != nil {
		return fail(err)
	}

	err = withTimeout(ctx, t.TableWait, func(ctx context.Context) error {
		return page.WaitFor(ctx, browser.CSS("table"))
	})
	if err != nil {
		if ctx.Err() != nil {
			return fail(err)
		}
		s.tel.ReportWarning(report_scraper_list_grades, fmt.Errorf("no table rendered: %w", err), target)
	}

	html, err := page.HTML(ctx)
	if err != nil {
		return fail(err)
	}
	s.dumpPage("grades-"+ref.CourseCode+"-"+ref.SectionCode, html)
	grades, err := ParseGrades(strings.NewReader(html))
	if err != nil {
		return fail(err)
	}
	span.SetAttributes(attribute.Int("grades", len(grades)))
	return grades, nil
}
