package bot

import (
	"sync"
	"time"
)

// pendingKind names the input a session is waiting for.
type pendingKind int

const (
	pendingNone pendingKind = iota
	// pendingTicker waits for a single token ticker (/price flow).
	pendingTicker
	// pendingAnalysisArgs waits for "TICKER TARGETPRICE" (/analysis flow).
	pendingAnalysisArgs
)

// session tracks a single chat's pending prompt. A session is created when
// a command asks the user for a follow-up message and is discarded once the
// reply arrives or the timeout fires, whichever comes first.
type session struct {
	chatID    int64
	pending   pendingKind
	createdAt time.Time
	timer     *time.Timer
	completed bool
}

// sessionManager owns the live sessions. All access goes through the mutex;
// expiry runs on timer goroutines and must not race message handling.
type sessionManager struct {
	mu       sync.Mutex
	sessions map[int64]*session
	timeout  time.Duration
	onExpire func(chatID int64)
}

func newSessionManager(timeout time.Duration, onExpire func(chatID int64)) *sessionManager {
	return &sessionManager{
		sessions: make(map[int64]*session),
		timeout:  timeout,
		onExpire: onExpire,
	}
}

// begin opens a session waiting for the given input kind. Any previous
// pending session for the chat is replaced and its timer cancelled.
func (m *sessionManager) begin(chatID int64, kind pendingKind) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if prev, ok := m.sessions[chatID]; ok {
		prev.timer.Stop()
	}

	s := &session{
		chatID:    chatID,
		pending:   kind,
		createdAt: time.Now(),
	}
	s.timer = time.AfterFunc(m.timeout, func() { m.expire(chatID, s) })
	m.sessions[chatID] = s
}

// take consumes the chat's pending session, returning what it was waiting
// for. Returns pendingNone when no session is open.
func (m *sessionManager) take(chatID int64) pendingKind {
	m.mu.Lock()
	defer m.mu.Unlock()

	s, ok := m.sessions[chatID]
	if !ok {
		return pendingNone
	}
	s.timer.Stop()
	s.completed = true
	delete(m.sessions, chatID)
	return s.pending
}

// expire removes the session if it is still the current one for the chat.
// A session completed or replaced just before the timer fired is left alone.
func (m *sessionManager) expire(chatID int64, s *session) {
	m.mu.Lock()
	cur, ok := m.sessions[chatID]
	if !ok || cur != s || s.completed {
		m.mu.Unlock()
		return
	}
	delete(m.sessions, chatID)
	m.mu.Unlock()

	if m.onExpire != nil {
		m.onExpire(chatID)
	}
}

// close stops every outstanding timer.
func (m *sessionManager) close() {
	m.mu.Lock()
	defer m.mu.Unlock()
	for id, s := range m.sessions {
		s.timer.Stop()
		delete(m.sessions, id)
	}
}
