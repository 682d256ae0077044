package chat

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"intralu-bot/internal/components/telemetry"
	"intralu-bot/internal/portal"

	"github.com/stretchr/testify/require"
)

type recordingSender struct {
	mu   sync.Mutex
	sent map[portal.ChatID][]Message
}

func (s *recordingSender) Send(ctx context.Context, chatID portal.ChatID, msg Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.sent == nil {
		s.sent = make(map[portal.ChatID][]Message)
	}
	s.sent[chatID] = append(s.sent[chatID], msg)
	return nil
}

func (s *recordingSender) Texts(chatID portal.ChatID) []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []string
	for _, m := range s.sent[chatID] {
		out = append(out, m.Text)
	}
	return out
}

func (s *recordingSender) Last(chatID portal.ChatID) string {
	texts := s.Texts(chatID)
	if len(texts) == 0 {
		return ""
	}
	return texts[len(texts)-1]
}

var testCourses = []portal.CourseRef{
	{DisplayName: "BEG01-U - ECONOMIA GENERAL", CourseCode: "BEG01", SectionCode: "U", PeriodCode: "2025-2"},
	{DisplayName: "BFI01-V - FISICA I", CourseCode: "BFI01", SectionCode: "V", PeriodCode: "2025-2"},
	{DisplayName: "BMA02-W - CALCULO & ALGEBRA", CourseCode: "BMA02", SectionCode: "W", PeriodCode: "2025-2"},
}

// fakeCore keeps the same bookkeeping as portal.Service without a browser.
type fakeCore struct {
	courses     []portal.CourseRef
	coursesErr  error
	grades      []portal.GradeEntry
	gradesErr   error
	credentials map[portal.ChatID]portal.Credentials
	last        map[portal.ChatID][]portal.CourseRef

	detailCalls []portal.CourseRef
	usedCreds   []portal.Credentials
}

func newFakeCore() *fakeCore {
	return &fakeCore{
		courses:     testCourses,
		credentials: make(map[portal.ChatID]portal.Credentials),
		last:        make(map[portal.ChatID][]portal.CourseRef),
	}
}

func (c *fakeCore) GetCourses(ctx context.Context, chatID portal.ChatID, creds portal.Credentials) ([]portal.CourseRef, error) {
	c.usedCreds = append(c.usedCreds, creds)
	if c.coursesErr != nil {
		return nil, c.coursesErr
	}
	c.last[chatID] = c.courses
	return c.courses, nil
}

func (c *fakeCore) GetGradeDetail(ctx context.Context, chatID portal.ChatID, creds portal.Credentials, ref portal.CourseRef) ([]portal.GradeEntry, error) {
	c.detailCalls = append(c.detailCalls, ref)
	return c.grades, c.gradesErr
}

func (c *fakeCore) SelectCourse(chatID portal.ChatID, index int) (portal.CourseRef, error) {
	last, ok := c.last[chatID]
	if !ok {
		return portal.CourseRef{}, portal.ErrNoCourses
	}
	if index < 0 || index >= len(last) {
		return portal.CourseRef{}, portal.ErrSelectionOutOfRange
	}
	return last[index], nil
}

func (c *fakeCore) FindCourse(chatID portal.ChatID, query string) (portal.CourseRef, error) {
	for _, ref := range c.last[chatID] {
		if strings.Contains(strings.ToLower(ref.DisplayName), strings.ToLower(query)) {
			return ref, nil
		}
	}
	return portal.CourseRef{}, portal.ErrCourseNotFound
}

func (c *fakeCore) LastCourses(chatID portal.ChatID) ([]portal.CourseRef, bool) {
	last, ok := c.last[chatID]
	return last, ok
}

func (c *fakeCore) SetCredentials(chatID portal.ChatID, creds portal.Credentials) {
	c.credentials[chatID] = creds
}

func (c *fakeCore) Credentials(chatID portal.ChatID) (portal.Credentials, bool) {
	creds, ok := c.credentials[chatID]
	return creds, ok
}

func newTestHandler(core *fakeCore) (*Handler, *recordingSender) {
	sender := &recordingSender{}
	return NewHandler(core, sender, &telemetry.Recorder{}), sender
}

func send(h *Handler, chatID portal.ChatID, texts ...string) {
	for _, text := range texts {
		h.Handle(context.Background(), Update{ChatID: chatID, Text: text})
	}
}

func TestStart(t *testing.T) {
	h, sender := newTestHandler(newFakeCore())
	send(h, 1, "/start")
	require.Equal(t, textGreeting, sender.Last(1))
	send(h, 1, "/help@intralu_bot")
	require.Equal(t, textGreeting, sender.Last(1))
}

func TestLoginWizard(t *testing.T) {
	core := newFakeCore()
	h, sender := newTestHandler(core)

	send(h, 1, "/login", "20201234a")
	require.Contains(t, sender.Last(1), "<b>20201234A</b>")

	send(h, 1, "3")
	require.Equal(t, textAnswerYesNo, sender.Last(1))

	// rejecting the code asks for it again
	send(h, 1, "2")
	require.Equal(t, textRetryIdentifier, sender.Last(1))
	send(h, 1, "20209999B", "1")
	require.Equal(t, textAskSecret, sender.Last(1))

	send(h, 1, "wrong", "2")
	require.Equal(t, textRetrySecret, sender.Last(1))
	send(h, 1, "s3cr3t<>")
	require.Equal(t, textConfirmSecret, sender.Last(1))
	send(h, 1, "1")
	require.Equal(t, textSaved, sender.Last(1))

	creds, ok := core.Credentials(1)
	require.True(t, ok)
	require.Equal(t, portal.Credentials{Identifier: "20209999B", Secret: "s3cr3t<>"}, creds)

	for _, text := range sender.Texts(1) {
		require.NotContains(t, text, "s3cr3t")
	}

	// the wizard is over, plain text is no longer captured
	send(h, 1, "hola")
	require.Equal(t, textHint, sender.Last(1))
}

func TestLoginOverwritesCredentials(t *testing.T) {
	core := newFakeCore()
	h, _ := newTestHandler(core)

	send(h, 1, "/login", "A", "1", "one", "1")
	send(h, 1, "/login", "B", "1", "two", "1")
	creds, _ := core.Credentials(1)
	require.Equal(t, portal.Credentials{Identifier: "B", Secret: "two"}, creds)
}

func TestLoginWizardExpires(t *testing.T) {
	core := newFakeCore()
	sender := &recordingSender{}
	h := newHandler(core, sender, 20*time.Millisecond, &telemetry.Recorder{})

	send(h, 1, "/login")
	require.Eventually(t, func() bool {
		_, ok := h.wizard.get(1)
		return !ok
	}, time.Second, 5*time.Millisecond)

	send(h, 1, "20201234A")
	require.Equal(t, textHint, sender.Last(1))
	_, ok := core.Credentials(1)
	require.False(t, ok)
}

func TestCancelLogin(t *testing.T) {
	h, sender := newTestHandler(newFakeCore())

	send(h, 1, "/cancelar")
	require.Equal(t, textNothingCancel, sender.Last(1))

	send(h, 1, "/login", "/cancelar")
	require.Equal(t, textCancelled, sender.Last(1))
	send(h, 1, "20201234A")
	require.Equal(t, textHint, sender.Last(1))
}

func TestLoginSecretMayStartWithSlash(t *testing.T) {
	core := newFakeCore()
	h, sender := newTestHandler(core)

	send(h, 1, "/login", "20201234a", "1", "/clave123")
	require.Equal(t, textConfirmSecret, sender.Last(1))
	send(h, 1, "1")
	require.Equal(t, textSaved, sender.Last(1))

	creds, ok := core.Credentials(1)
	require.True(t, ok)
	require.Equal(t, portal.Credentials{Identifier: "20201234A", Secret: "/clave123"}, creds)
}

func TestCancelWhileAskingSecret(t *testing.T) {
	core := newFakeCore()
	h, sender := newTestHandler(core)

	send(h, 1, "/login", "20201234a", "1", "/cancel")
	require.Equal(t, textCancelled, sender.Last(1))
	_, ok := core.Credentials(1)
	require.False(t, ok)

	// outside of the secret step commands still interrupt the wizard
	send(h, 1, "/login", "/notas")
	require.Equal(t, textNeedLogin, sender.Last(1))
}

func TestCoursesRequireCredentials(t *testing.T) {
	core := newFakeCore()
	h, sender := newTestHandler(core)

	send(h, 1, "/notas")
	require.Equal(t, []string{textNeedLogin}, sender.Texts(1))
	require.Empty(t, core.usedCreds)
}

func TestCourses(t *testing.T) {
	core := newFakeCore()
	core.SetCredentials(1, portal.Credentials{Identifier: "20201234A", Secret: "x"})
	h, sender := newTestHandler(core)

	send(h, 1, "/cursos")
	texts := sender.Texts(1)
	require.Len(t, texts, 2)
	require.Equal(t, textConnecting, texts[0])
	require.Contains(t, texts[1], "1. BEG01-U - ECONOMIA GENERAL\n")
	require.Contains(t, texts[1], "3. BMA02-W - CALCULO &amp; ALGEBRA\n")
}

func TestCoursesEmptyAndError(t *testing.T) {
	core := newFakeCore()
	core.SetCredentials(1, portal.Credentials{Identifier: "20201234A", Secret: "x"})
	h, sender := newTestHandler(core)

	core.courses = nil
	send(h, 1, "/notas")
	require.Equal(t, textNoCourses, sender.Last(1))

	core.coursesErr = fmt.Errorf("portal: login: %w", portal.ErrLoginTimeout)
	send(h, 1, "/notas")
	require.Equal(t, "❌ Error obteniendo tus cursos: portal: login: login did not reach the home page in time", sender.Last(1))
}

func TestSelectCourseByNumber(t *testing.T) {
	core := newFakeCore()
	core.SetCredentials(1, portal.Credentials{Identifier: "20201234A", Secret: "x"})
	core.grades = []portal.GradeEntry{
		{EvaluationLabel: "PRACTICA 1 (N1)", Score: "15", Date: "15/10/2025"},
		{EvaluationLabel: "EXAMEN PARCIAL (EP)"},
	}
	h, sender := newTestHandler(core)

	send(h, 1, "/notas", "2")
	require.Equal(t, []portal.CourseRef{testCourses[1]}, core.detailCalls)

	texts := sender.Texts(1)
	require.Equal(t, fetchingGrades(testCourses[1]), texts[len(texts)-2])
	detail := texts[len(texts)-1]
	require.Contains(t, detail, "📘 <b>BFI01-V - FISICA I</b>")
	require.Contains(t, detail, "PRACTICA 1 (N1)")
	require.Contains(t, detail, "--")
	require.Contains(t, detail, "<pre>")
}

func TestSelectCourseOutOfRange(t *testing.T) {
	core := newFakeCore()
	core.SetCredentials(1, portal.Credentials{Identifier: "20201234A", Secret: "x"})
	h, sender := newTestHandler(core)

	send(h, 1, "/notas")
	for _, text := range []string{"0", "4", "-1"} {
		send(h, 1, text)
		require.Equal(t, textOutOfRange, sender.Last(1), text)
	}
	require.Empty(t, core.detailCalls)
}

func TestSelectCourseByName(t *testing.T) {
	core := newFakeCore()
	core.SetCredentials(1, portal.Credentials{Identifier: "20201234A", Secret: "x"})
	h, sender := newTestHandler(core)

	send(h, 1, "/notas", "fisica")
	require.Equal(t, []portal.CourseRef{testCourses[1]}, core.detailCalls)

	send(h, 1, "quimica")
	require.Equal(t, textUnknownCourse, sender.Last(1))
	require.Len(t, core.detailCalls, 1)
}

func TestGradeDetailErrors(t *testing.T) {
	core := newFakeCore()
	core.SetCredentials(1, portal.Credentials{Identifier: "20201234A", Secret: "x"})
	h, sender := newTestHandler(core)
	send(h, 1, "/notas")

	core.gradesErr = fmt.Errorf("portal: x: %w", portal.ErrStaleCourse)
	send(h, 1, "1")
	require.Equal(t, textStaleCourse, sender.Last(1))

	core.gradesErr = errors.New("browser: navigate: net::ERR_CONNECTION_RESET")
	send(h, 1, "1")
	require.Equal(t, "❌ Error obteniendo el detalle de notas: browser: navigate: net::ERR_CONNECTION_RESET", sender.Last(1))
}

func TestUnknownCommand(t *testing.T) {
	h, sender := newTestHandler(newFakeCore())
	send(h, 1, "/borrar")
	require.Equal(t, textUnknownCmd, sender.Last(1))
}

func TestParseCommand(t *testing.T) {
	cases := []struct {
		text    string
		command string
		ok      bool
	}{
		{"/notas", "notas", true},
		{"/Notas@intralu_bot", "notas", true},
		{"/login ahora", "login", true},
		{"notas", "", false},
		{"12", "", false},
	}
	for _, c := range cases {
		command, ok := parseCommand(c.text)
		require.Equal(t, c.ok, ok, c.text)
		require.Equal(t, c.command, command, c.text)
	}
}
