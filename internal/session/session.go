// Package session keeps per-browser state in memory: the line items being
// edited, the last analysis and the Google login.
package session

import (
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/oauth2"

	"finanzen/internal/auth"
	"finanzen/internal/cache"
	"finanzen/internal/core"
	"finanzen/internal/editor"
)

// CookieName is the session cookie.
const CookieName = "finanzen_session"

// Analysis is the result shown on the dashboard.
type Analysis struct {
	ID         int64 // storage id, 0 when history is disabled
	CreatedAt  time.Time
	Data       core.FinancialData
	Totals     core.Totals
	Projection []core.ProjectionPoint
	Diagnosis  string
	SheetURL   string
}

// Session is one browser's state. Editor is safe for concurrent use; the
// remaining fields are guarded by the session's own lock.
type Session struct {
	ID     string
	Editor *editor.Store

	mu       sync.Mutex
	analysis *Analysis
	token    *oauth2.Token
	profile  *auth.Profile
	nonce    string
	flash    string
}

// Analysis returns the last analysis, or nil.
func (s *Session) Analysis() *Analysis {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.analysis
}

func (s *Session) SetAnalysis(a *Analysis) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.analysis = a
}

// ClearAnalysis drops the analysis so the form is shown again.
func (s *Session) ClearAnalysis() {
	s.SetAnalysis(nil)
}

// SetSheetURL records where the current analysis was saved.
func (s *Session) SetSheetURL(url string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.analysis != nil {
		a := *s.analysis
		a.SheetURL = url
		s.analysis = &a
	}
}

// Login stores the user's token and profile.
func (s *Session) Login(tok *oauth2.Token, p auth.Profile) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.token = tok
	s.profile = &p
	s.nonce = ""
}

// Logout forgets the login and returns the token so it can be revoked.
func (s *Session) Logout() *oauth2.Token {
	s.mu.Lock()
	defer s.mu.Unlock()
	tok := s.token
	s.token = nil
	s.profile = nil
	return tok
}

// Token returns the OAuth token, or nil when signed out.
func (s *Session) Token() *oauth2.Token {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.token
}

// UpdateToken stores a refreshed token.
func (s *Session) UpdateToken(tok *oauth2.Token) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.token != nil && tok != nil {
		s.token = tok
	}
}

// Profile returns the signed-in user, or nil.
func (s *Session) Profile() *auth.Profile {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.profile
}

// NewNonce creates and remembers a nonce for the next OAuth round trip.
func (s *Session) NewNonce() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nonce = uuid.NewString()
	return s.nonce
}

// TakeNonce returns the pending nonce and clears it.
func (s *Session) TakeNonce() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := s.nonce
	s.nonce = ""
	return n
}

// Flash stores a one-time message for the next page render.
func (s *Session) Flash(msg string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.flash = msg
}

// TakeFlash returns and clears the pending message.
func (s *Session) TakeFlash() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	msg := s.flash
	s.flash = ""
	return msg
}

// Store holds sessions in an LRU cache with a sliding TTL.
type Store struct {
	sessions *cache.LRUCache[*Session]
	ttl      time.Duration
	secure   bool
}

// NewStore creates a store keeping at most maxSessions sessions.
func NewStore(maxSessions int, ttl time.Duration, secureCookie bool) *Store {
	return &Store{
		sessions: cache.NewLRUCache[*Session](maxSessions, ttl),
		ttl:      ttl,
		secure:   secureCookie,
	}
}

// Cache exposes the underlying cache so it can be registered for cleanup.
func (st *Store) Cache() *cache.LRUCache[*Session] {
	return st.sessions
}

// Len returns the number of live sessions.
func (st *Store) Len() int {
	return st.sessions.Size()
}

// Lookup returns the session named by the request cookie without creating
// one.
func (st *Store) Lookup(r *http.Request) (*Session, bool) {
	c, err := r.Cookie(CookieName)
	if err != nil || c.Value == "" {
		return nil, false
	}
	s, ok := st.sessions.Get(c.Value)
	if ok {
		st.sessions.Touch(c.Value)
	}
	return s, ok
}

// Get returns the request's session, creating a new one (and setting the
// cookie) when there is none.
func (st *Store) Get(w http.ResponseWriter, r *http.Request) *Session {
	if s, ok := st.Lookup(r); ok {
		return s
	}
	s := &Session{ID: uuid.NewString(), Editor: editor.New()}
	st.sessions.Set(s.ID, s)
	http.SetCookie(w, &http.Cookie{
		Name:     CookieName,
		Value:    s.ID,
		Path:     "/",
		HttpOnly: true,
		Secure:   st.secure,
		SameSite: http.SameSiteLaxMode,
		MaxAge:   int(st.ttl / time.Second),
	})
	return s
}

// Destroy removes the session and expires the cookie.
func (st *Store) Destroy(w http.ResponseWriter, s *Session) {
	st.sessions.Delete(s.ID)
	http.SetCookie(w, &http.Cookie{
		Name:     CookieName,
		Value:    "",
		Path:     "/",
		HttpOnly: true,
		Secure:   st.secure,
		SameSite: http.SameSiteLaxMode,
		MaxAge:   -1,
	})
}
