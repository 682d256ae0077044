package portal

import (
	"context"
	"fmt"
	"slices"
	"strings"

	"intralu-bot/internal/browser"
	"intralu-bot/internal/components/assert"
	"intralu-bot/internal/components/store"
	"intralu-bot/internal/components/telemetry"
	"intralu-bot/lib/textutil"

	"github.com/antzucaro/matchr"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

const (
	report_service_get_courses      = "service.get-courses"
	report_service_get_grade_detail = "service.get-grade-detail"
)

// fuzzyThreshold is the minimum Jaro-Winkler similarity for FindCourse.
const fuzzyThreshold = 0.85

// Service is what the chat front-end talks to.
type Service struct {
	navigator   Navigator
	scraper     Scraper
	sessions    *SessionManager
	credentials CredentialStore
	lastCourses *store.Store[ChatID, []CourseRef]

	tel telemetry.API
}

func NewService(navigator Navigator, scraper Scraper, sessions *SessionManager, tel telemetry.API) *Service {
	assert.NotNil(sessions)
	assert.NotNil(tel)

	return &Service{
		navigator:   navigator,
		scraper:     scraper,
		sessions:    sessions,
		credentials: NewCredentialStore(),
		lastCourses: store.New[ChatID, []CourseRef](),
		tel:         telemetry.NewScopedAPI("portal", tel),
	}
}

// SetCredentials stores creds for the chat. A session logged in with other
// credentials is closed so the next scrape logs in as the new account.
func (s *Service) SetCredentials(chatID ChatID, creds Credentials) {
	previous, ok := s.credentials.Get(chatID)
	s.credentials.Set(chatID, creds)
	if ok && previous != creds {
		s.tel.ReportDebug("credentials changed, dropping session", chatID)
		s.sessions.Invalidate(chatID)
	}
}

func (s *Service) Credentials(chatID ChatID) (Credentials, bool) {
	return s.credentials.Get(chatID)
}

func (s *Service) OpenSessions() int {
	return s.sessions.Len()
}

// Shutdown closes every browser, it is meant to run once before exit.
func (s *Service) Shutdown() error {
	return s.sessions.CloseAll()
}

func onLoginPage(raw string) bool {
	return browser.PathContains(loginPath).MatchString(raw)
}

func (s *Service) fetchCourses(ctx context.Context, chatID ChatID, creds Credentials) ([]CourseRef, bool, error) {
	session, err := s.sessions.Acquire(ctx, chatID, creds)
	if err != nil {
		return nil, false, err
	}
	err = s.navigator.GoToCourseList(ctx, session)
	if err != nil {
		return nil, false, err
	}
	courses, err := s.scraper.ListCourses(ctx, session.Page())
	if err != nil {
		return nil, false, err
	}
	_, _ = session.refreshURL()
	return courses, onLoginPage(session.LastKnownURL), nil
}

// GetCourses returns the chat's enrolled courses and remembers them as the
// list selections refer to.
//
// The portal expires sessions silently, so an empty list or a bounce to the
// login page is answered with exactly one fresh login. Whatever that second
// attempt returns is final, an account may legitimately have no courses.
func (s *Service) GetCourses(ctx context.Context, chatID ChatID, creds Credentials) ([]CourseRef, error) {
	ctx, span := tracer.Start(ctx, "service:GetCourses")
	defer span.End()
	span.SetAttributes(attribute.Int64("chat_id", int64(chatID)))

	fail := func(err error) ([]CourseRef, error) {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to get courses")
		return nil, err
	}

	courses, bounced, err := s.fetchCourses(ctx, chatID, creds)
	if err != nil {
		return fail(err)
	}
	if len(courses) == 0 || bounced {
		s.tel.ReportWarning(
			report_service_get_courses,
			"session looks stale, logging in again",
			chatID,
			len(courses),
			bounced,
		)
		span.AddEvent("relogin")
		s.sessions.Invalidate(chatID)

		courses, bounced, err = s.fetchCourses(ctx, chatID, creds)
		if err != nil {
			return fail(err)
		}
		if bounced {
			s.tel.ReportBroken(report_service_get_courses, ErrSessionRejected, chatID)
			return fail(fmt.Errorf("portal: get courses: %w", ErrSessionRejected))
		}
	}

	s.lastCourses.Put(chatID, courses)
	span.SetAttributes(attribute.Int("courses", len(courses)))
	return slices.Clone(courses), nil
}

func (s *Service) fetchGrades(ctx context.Context, chatID ChatID, creds Credentials, ref CourseRef) ([]GradeEntry, bool, error) {
	session, err := s.sessions.Acquire(ctx, chatID, creds)
	if err != nil {
		return nil, false, err
	}
	grades, err := s.scraper.ListGrades(ctx, session.Page(), ref)
	if err != nil {
		return nil, false, err
	}
	_, _ = session.refreshURL()
	return grades, onLoginPage(session.LastKnownURL), nil
}

// GetGradeDetail returns the grades of ref, which must come from the last
// course list shown to the chat. A detail page that bounces to the login
// screen gets the same single relogin as GetCourses.
func (s *Service) GetGradeDetail(ctx context.Context, chatID ChatID, creds Credentials, ref CourseRef) ([]GradeEntry, error) {
	ctx, span := tracer.Start(ctx, "service:GetGradeDetail")
	defer span.End()
	span.SetAttributes(
		attribute.Int64("chat_id", int64(chatID)),
		attribute.String("course", ref.DisplayName),
	)

	fail := func(err error) ([]GradeEntry, error) {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to get grade detail")
		return nil, err
	}

	last, _ := s.lastCourses.Get(chatID)
	if !slices.Contains(last, ref) {
		return fail(fmt.Errorf("portal: %s: %w", ref.DisplayName, ErrStaleCourse))
	}

	grades, bounced, err := s.fetchGrades(ctx, chatID, creds, ref)
	if err != nil {
		return fail(err)
	}
	if bounced {
		s.tel.ReportWarning(report_service_get_grade_detail, "detail bounced to login, logging in again", chatID)
		span.AddEvent("relogin")
		s.sessions.Invalidate(chatID)

		grades, bounced, err = s.fetchGrades(ctx, chatID, creds, ref)
		if err != nil {
			return fail(err)
		}
		if bounced {
			s.tel.ReportBroken(report_service_get_grade_detail, ErrSessionRejected, chatID)
			return fail(fmt.Errorf("portal: get grade detail: %w", ErrSessionRejected))
		}
	}

	span.SetAttributes(attribute.Int("grades", len(grades)))
	return grades, nil
}

// LastCourses returns the list last shown to the chat.
func (s *Service) LastCourses(chatID ChatID) ([]CourseRef, bool) {
	courses, ok := s.lastCourses.Get(chatID)
	return slices.Clone(courses), ok
}

// SelectCourse picks a course by its zero based position in the last list.
func (s *Service) SelectCourse(chatID ChatID, index int) (CourseRef, error) {
	courses, ok := s.lastCourses.Get(chatID)
	if !ok {
		return CourseRef{}, ErrNoCourses
	}
	if index < 0 || index >= len(courses) {
		return CourseRef{}, fmt.Errorf("%w: %d not in [1, %d]", ErrSelectionOutOfRange, index+1, len(courses))
	}
	return courses[index], nil
}

// FindCourse matches a typed course code or name against the last list. An
// exact code wins, otherwise the most similar name above fuzzyThreshold.
func (s *Service) FindCourse(chatID ChatID, query string) (CourseRef, error) {
	courses, ok := s.lastCourses.Get(chatID)
	if !ok {
		return CourseRef{}, ErrNoCourses
	}

	target := textutil.NormalizeName(query)
	if target == "" {
		return CourseRef{}, ErrCourseNotFound
	}

	for _, c := range courses {
		code, _, _ := strings.Cut(c.DisplayName, " - ")
		if textutil.NormalizeName(code) == target || textutil.NormalizeName(c.CourseCode) == target {
			return c, nil
		}
	}

	best := -1
	bestScore := 0.0
	for i, c := range courses {
		score := matchr.JaroWinkler(textutil.NormalizeName(c.DisplayName), target, false)
		_, title, found := strings.Cut(c.DisplayName, " - ")
		if found {
			score = max(score, matchr.JaroWinkler(textutil.NormalizeName(title), target, false))
		}
		if score > bestScore {
			best = i
			bestScore = score
		}
	}
	if best < 0 || bestScore < fuzzyThreshold {
		return CourseRef{}, fmt.Errorf("%w: %q", ErrCourseNotFound, query)
	}
	return courses[best], nil
}
