package portal

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"intralu-bot/internal/browser"
	"intralu-bot/internal/components/assert"
	"intralu-bot/internal/components/store"
	"intralu-bot/internal/components/telemetry"

	"github.com/google/uuid"
	"golang.org/x/time/rate"
)

const (
	report_sessions_acquire    = "sessions.acquire"
	report_sessions_discard    = "sessions.discard"
	report_sessions_close_all  = "sessions.close-all"
	report_sessions_open_count = "sessions.open"
)

// Session is one authenticated browser owned by a chat. Only SessionManager
// creates and closes sessions.
type Session struct {
	ID           string
	ChatID       ChatID
	LastKnownURL string
	CreatedAt    time.Time

	browser browser.Browser
	page    browser.Page
}

func newSession(chatID ChatID, b browser.Browser, page browser.Page, now time.Time) *Session {
	return &Session{
		ID:        uuid.NewString(),
		ChatID:    chatID,
		CreatedAt: now,
		browser:   b,
		page:      page,
	}
}

func (s *Session) Page() browser.Page {
	return s.page
}

// Alive probes the remote browser, a session whose chrome died or whose tab
// was closed is not alive even though nothing here observed it happen.
func (s *Session) Alive() bool {
	if s == nil || s.browser == nil || s.page == nil {
		return false
	}
	return !s.page.Closed() && s.browser.Connected()
}

// refreshURL records where the page currently is.
func (s *Session) refreshURL() (string, error) {
	current, err := s.page.URL()
	if err != nil {
		return "", err
	}
	s.LastKnownURL = current
	return current, nil
}

func (s *Session) close() error {
	if s == nil || s.browser == nil {
		return nil
	}
	return s.browser.Close()
}

type loginFunc func(ctx context.Context, chatID ChatID, creds Credentials) (*Session, error)

// SessionManager keeps at most one live session per chat.
type SessionManager struct {
	login    loginFunc
	sessions *store.Store[ChatID, *Session]
	limiters *store.Store[ChatID, *rate.Limiter]
	// loginRate bounds fresh logins per chat, rate.Inf disables the limit.
	loginRate  rate.Limit
	loginBurst int

	// acquire holds one lock per chat so a chat never logs in twice at once
	acquire *store.Store[ChatID, *sync.Mutex]

	tel telemetry.API
}

// NewSessionManager creates a SessionManager that logs in through navigator.
// loginsPerMinute <= 0 disables login rate limiting.
func NewSessionManager(navigator Navigator, loginsPerMinute float64, tel telemetry.API) *SessionManager {
	return newSessionManager(navigator.Login, loginsPerMinute, tel)
}

func newSessionManager(login loginFunc, loginsPerMinute float64, tel telemetry.API) *SessionManager {
	assert.NotNil(tel)

	limit := rate.Inf
	burst := 0
	if loginsPerMinute > 0 {
		limit = rate.Limit(loginsPerMinute / 60)
		burst = max(1, int(loginsPerMinute))
	}
	return &SessionManager{
		login:      login,
		sessions:   store.New[ChatID, *Session](),
		limiters:   store.New[ChatID, *rate.Limiter](),
		acquire:    store.New[ChatID, *sync.Mutex](),
		loginRate:  limit,
		loginBurst: burst,
		tel:        telemetry.NewScopedAPI("portal", tel),
	}
}

func (m *SessionManager) lock(chatID ChatID) func() {
	mu := m.acquire.GetOrPut(chatID, func() *sync.Mutex { return &sync.Mutex{} })
	mu.Lock()
	return mu.Unlock
}

// Acquire returns the chat's session if it is still alive, otherwise it
// discards the stale one and logs in again. A failed login stores nothing.
func (m *SessionManager) Acquire(ctx context.Context, chatID ChatID, creds Credentials) (*Session, error) {
	unlock := m.lock(chatID)
	defer unlock()

	existing, ok := m.sessions.Get(chatID)
	if ok {
		if existing.Alive() {
			m.tel.ReportDebug("reusing session", chatID, existing.ID)
			return existing, nil
		}
		m.tel.ReportWarning(report_sessions_acquire, "stale session discarded", chatID, existing.ID)
		m.discard(chatID, existing)
	}

	limiter := m.limiters.GetOrPut(chatID, func() *rate.Limiter {
		return rate.NewLimiter(m.loginRate, m.loginBurst)
	})
	err := limiter.Wait(ctx)
	if err != nil {
		return nil, fmt.Errorf("portal: login rate limit: %w", err)
	}

	session, err := m.login(ctx, chatID, creds)
	if err != nil {
		return nil, err
	}
	m.sessions.Put(chatID, session)
	m.tel.ReportCount(report_sessions_open_count, int64(m.sessions.Len()))
	return session, nil
}

// Invalidate tears down and forgets the chat's session, if any.
func (m *SessionManager) Invalidate(chatID ChatID) {
	unlock := m.lock(chatID)
	defer unlock()

	session, ok := m.sessions.Get(chatID)
	if !ok {
		return
	}
	m.discard(chatID, session)
}

// discard expects the chat's lock to be held. Teardown errors are reported
// and swallowed, the browser is usually already gone.
func (m *SessionManager) discard(chatID ChatID, session *Session) {
	m.sessions.Delete(chatID)
	err := session.close()
	if err != nil {
		m.tel.ReportWarning(report_sessions_discard, err, chatID, session.ID)
	}
	m.tel.ReportCount(report_sessions_open_count, int64(m.sessions.Len()))
}

func (m *SessionManager) Len() int {
	return m.sessions.Len()
}

// CloseAll closes every session. It is the only coordinated teardown and runs
// on shutdown, the returned error is for logging only.
func (m *SessionManager) CloseAll() error {
	sessions := m.sessions.Drain()

	errlist := []error{}
	for chatID, session := range sessions {
		err := session.close()
		if err != nil {
			m.tel.ReportWarning(report_sessions_close_all, err, chatID, session.ID)
			errlist = append(errlist, fmt.Errorf("chat %d: %w", chatID, err))
		}
	}
	m.tel.ReportCount(report_sessions_open_count, 0)
	return errors.Join(errlist...)
}
