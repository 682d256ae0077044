package portal

import (
	"context"
	"errors"
	"testing"
	"time"

	"intralu-bot/internal/components/telemetry"

	"github.com/stretchr/testify/require"
)

func newTestSessions(driver *fakeDriver, loginsPerMinute float64) (*SessionManager, *telemetry.Recorder) {
	tel := &telemetry.Recorder{}
	nav := NewNavigator(driver, nil, &fakeClock{}, testOptions(), tel)
	return NewSessionManager(nav, loginsPerMinute, tel), tel
}

func TestAcquireReusesLiveSession(t *testing.T) {
	driver := newFakeDriver(newFakePage(nil))
	sessions, _ := newTestSessions(driver, 0)

	first, err := sessions.Acquire(context.Background(), 1, testCreds)
	require.NoError(t, err)
	actions := len(first.page.(*fakePage).Actions())

	second, err := sessions.Acquire(context.Background(), 1, testCreds)
	require.NoError(t, err)
	require.Same(t, first, second)
	require.Equal(t, 1, driver.Launches())
	// reuse neither logs in nor navigates
	require.Len(t, second.page.(*fakePage).Actions(), actions)
}

func TestAcquireReplacesStaleSession(t *testing.T) {
	cases := []struct {
		name         string
		breakSession func(b *fakeBrowser)
	}{
		{
			name: "page closed",
			breakSession: func(b *fakeBrowser) {
				b.page.mu.Lock()
				b.page.closed = true
				b.page.mu.Unlock()
			},
		},
		{
			name: "browser disconnected",
			breakSession: func(b *fakeBrowser) {
				b.mu.Lock()
				b.disconnected = true
				b.mu.Unlock()
			},
		},
	}

	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			driver := newFakeDriver(newFakePage(nil), newFakePage(nil))
			sessions, tel := newTestSessions(driver, 0)

			first, err := sessions.Acquire(context.Background(), 1, testCreds)
			require.NoError(t, err)
			c.breakSession(driver.Browser(0))

			second, err := sessions.Acquire(context.Background(), 1, testCreds)
			require.NoError(t, err)
			require.NotSame(t, first, second)
			require.NotEqual(t, first.ID, second.ID)
			require.Equal(t, 2, driver.Launches())
			require.True(t, driver.Browser(0).Closed())
			require.False(t, driver.Browser(1).Closed())
			require.Equal(t, 1, sessions.Len())
			require.Len(t, tel.Reports("warning", report_sessions_acquire), 1)
		})
	}
}

func TestAcquireSwallowsTeardownErrors(t *testing.T) {
	driver := newFakeDriver(newFakePage(nil), newFakePage(nil))
	sessions, tel := newTestSessions(driver, 0)

	_, err := sessions.Acquire(context.Background(), 1, testCreds)
	require.NoError(t, err)
	stale := driver.Browser(0)
	stale.closeErr = errors.New("websocket: close sent")
	stale.mu.Lock()
	stale.disconnected = true
	stale.mu.Unlock()

	_, err = sessions.Acquire(context.Background(), 1, testCreds)
	require.NoError(t, err)
	require.Len(t, tel.Reports("warning", report_sessions_discard), 1)
}

func TestAcquireLoginFailureStoresNothing(t *testing.T) {
	page := newFakePage(nil)
	page.rejectLogin = true
	driver := newFakeDriver(page)
	sessions, _ := newTestSessions(driver, 0)

	session, err := sessions.Acquire(context.Background(), 1, testCreds)
	require.ErrorIs(t, err, ErrLoginTimeout)
	require.Nil(t, session)
	require.Zero(t, sessions.Len())
}

func TestAcquireIsPerChat(t *testing.T) {
	driver := newFakeDriver(newFakePage(nil), newFakePage(nil))
	sessions, _ := newTestSessions(driver, 0)

	a, err := sessions.Acquire(context.Background(), 1, testCreds)
	require.NoError(t, err)
	b, err := sessions.Acquire(context.Background(), 2, testCreds)
	require.NoError(t, err)
	require.NotSame(t, a, b)
	require.Equal(t, 2, sessions.Len())
}

func TestInvalidate(t *testing.T) {
	driver := newFakeDriver(newFakePage(nil), newFakePage(nil))
	sessions, _ := newTestSessions(driver, 0)

	_, err := sessions.Acquire(context.Background(), 1, testCreds)
	require.NoError(t, err)

	sessions.Invalidate(1)
	require.Zero(t, sessions.Len())
	require.True(t, driver.Browser(0).Closed())

	// unknown chats are ignored
	sessions.Invalidate(99)
}

func TestLoginRateLimit(t *testing.T) {
	driver := newFakeDriver(newFakePage(nil), newFakePage(nil))
	sessions, _ := newTestSessions(driver, 1)

	_, err := sessions.Acquire(context.Background(), 1, testCreds)
	require.NoError(t, err)
	sessions.Invalidate(1)

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()
	_, err = sessions.Acquire(ctx, 1, testCreds)
	require.ErrorContains(t, err, "login rate limit")
	require.Equal(t, 1, driver.Launches())

	// other chats have their own budget
	_, err = sessions.Acquire(context.Background(), 2, testCreds)
	require.NoError(t, err)
}

func TestCloseAll(t *testing.T) {
	driver := newFakeDriver(newFakePage(nil), newFakePage(nil), newFakePage(nil))
	sessions, _ := newTestSessions(driver, 0)

	for _, chat := range []ChatID{1, 2, 3} {
		_, err := sessions.Acquire(context.Background(), chat, testCreds)
		require.NoError(t, err)
	}
	driver.Browser(1).closeErr = errors.New("already closed")

	err := sessions.CloseAll()
	require.ErrorContains(t, err, "already closed")
	require.Zero(t, sessions.Len())
	for i := 0; i < 3; i++ {
		require.True(t, driver.Browser(i).Closed())
	}
}

func TestCredentialsRedacted(t *testing.T) {
	require.NotContains(t, testCreds.String(), testCreds.Secret)
	require.NotContains(t, testCreds.LogValue().String(), testCreds.Secret)
	require.True(t, Credentials{Identifier: " ", Secret: "x"}.Empty())
}
