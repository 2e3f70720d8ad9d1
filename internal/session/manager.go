package session

import (
	"sync"

	"github.com/rs/zerolog"
	"github.com/smartlearn/smartlearn-backend/internal/model"
)

type sessionKey struct {
	examID string
	userID string
}

// Manager is the single in-process owner of live sessions, keyed
// (exam, learner). A learner never holds two sessions for the same exam:
// Begin with a live session returns the existing one, mirroring the store's
// one-record-per-key upsert semantics.
type Manager struct {
	store SubmissionStore
	log   zerolog.Logger
	opts  Options

	mu       sync.Mutex
	sessions map[sessionKey]*Session
}

// NewManager creates a Manager. opts apply to every session it spawns.
func NewManager(store SubmissionStore, log zerolog.Logger, opts Options) *Manager {
	return &Manager{
		store:    store,
		log:      log.With().Str("component", "session_manager").Logger(),
		opts:     opts.withDefaults(),
		sessions: make(map[sessionKey]*Session),
	}
}

// Begin opens (or re-opens) the learner's session for an exam and starts it.
// Re-opening an already running or submitted session returns it unchanged.
// An exam outside its live window returns ErrNotLive and retains nothing.
func (m *Manager) Begin(exam *model.Exam, learner Identity) (*Session, error) {
	if learner.UserID == "" {
		return nil, ErrIdentityRequired
	}

	key := sessionKey{examID: exam.ID, userID: learner.UserID}

	m.mu.Lock()
	defer m.mu.Unlock()

	if sess, ok := m.sessions[key]; ok {
		return sess, nil
	}

	// Evict the session once the submission is persisted. Submitted attempts
	// are served from the store and the Redis mirror; holding them here would
	// grow the map with every learner x exam until shutdown.
	opts := m.opts
	hook := opts.AfterSubmit
	opts.AfterSubmit = func(sub *model.ExamSubmission) {
		if hook != nil {
			hook(sub)
		}
		m.evict(key)
	}

	sess := NewSession(exam, learner, m.store, m.log, opts)
	if err := sess.Begin(); err != nil {
		return nil, err
	}
	m.sessions[key] = sess
	return sess, nil
}

// evict drops a session from the map without touching it. The countdown has
// already stopped by the time the after-submit hook runs.
func (m *Manager) evict(key sessionKey) {
	m.mu.Lock()
	delete(m.sessions, key)
	m.mu.Unlock()
}

// Get returns the learner's session for an exam, or ErrSessionNotFound.
func (m *Manager) Get(examID, userID string) (*Session, error) {
	if userID == "" {
		return nil, ErrIdentityRequired
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	sess, ok := m.sessions[sessionKey{examID: examID, userID: userID}]
	if !ok {
		return nil, ErrSessionNotFound
	}
	return sess, nil
}

// Teardown discards the learner's session for an exam, cancelling its
// countdown. Unknown sessions are a no-op.
func (m *Manager) Teardown(examID, userID string) {
	key := sessionKey{examID: examID, userID: userID}

	m.mu.Lock()
	sess, ok := m.sessions[key]
	if ok {
		delete(m.sessions, key)
	}
	m.mu.Unlock()

	if ok {
		sess.Teardown()
	}
}

// Shutdown tears down every live session. Called on process exit so no timer
// fires into a half-stopped application.
func (m *Manager) Shutdown() {
	m.mu.Lock()
	sessions := make([]*Session, 0, len(m.sessions))
	for _, sess := range m.sessions {
		sessions = append(sessions, sess)
	}
	m.sessions = make(map[sessionKey]*Session)
	m.mu.Unlock()

	for _, sess := range sessions {
		sess.Teardown()
	}
}
