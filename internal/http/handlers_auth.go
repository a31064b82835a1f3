package http

import (
	"context"
	"net/http"
	"sync/atomic"
	"time"

	"finanzen/internal/log"
)

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	if resp := RequireGET(r); resp != nil {
		resp.Write(w)
		return
	}
	if s.auth == nil {
		http.NotFound(w, r)
		return
	}
	sess := s.sessions.Get(w, r)
	u, err := s.auth.LoginURL(sess.NewNonce())
	if err != nil {
		log.FromContext(r.Context()).WithComponent(log.ComponentAuth).ErrorContext(r.Context(), "Failed to build login URL",
			log.FieldOperation, log.OpLogin,
			log.FieldError, err)
		sess.Flash("Não foi possível iniciar o login com o Google.")
		http.Redirect(w, r, "/", http.StatusSeeOther)
		return
	}
	http.Redirect(w, r, u, http.StatusFound)
}

// handleCallback completes the OAuth flow. Every failure returns to the
// form with a message and leaves the session signed out.
func (s *Server) handleCallback(w http.ResponseWriter, r *http.Request) {
	if resp := RequireGET(r); resp != nil {
		resp.Write(w)
		return
	}
	if s.auth == nil {
		http.NotFound(w, r)
		return
	}
	ctx := r.Context()
	logger := log.FromContext(ctx).WithComponent(log.ComponentAuth)
	sess := s.sessions.Get(w, r)
	q := r.URL.Query()

	fail := func(msg string, err error) {
		logger.WarnContext(ctx, "Login failed",
			log.FieldOperation, log.OpLogin,
			log.FieldError, err)
		sess.Flash(msg)
		http.Redirect(w, r, "/", http.StatusSeeOther)
	}

	if e := q.Get("error"); e != "" {
		sess.TakeNonce()
		sess.Flash("Login cancelado.")
		logger.InfoContext(ctx, "Login cancelled by user", "reason", e)
		http.Redirect(w, r, "/", http.StatusSeeOther)
		return
	}

	nonce := sess.TakeNonce()
	if err := s.auth.VerifyState(q.Get("state"), nonce); err != nil {
		fail("Sessão de login expirada. Tente entrar novamente.", err)
		return
	}

	ctx, cancel := context.WithTimeout(ctx, 15*time.Second)
	defer cancel()
	tok, err := s.auth.Exchange(ctx, q.Get("code"))
	if err != nil {
		fail("Não foi possível concluir o login com o Google.", err)
		return
	}
	profile, err := s.auth.Profile(ctx, tok)
	if err != nil {
		fail("Não foi possível obter seu perfil do Google.", err)
		return
	}

	sess.Login(tok, profile)
	atomic.AddInt64(&s.appMetrics.logins, 1)
	logger.InfoContext(ctx, "User logged in", log.FieldOperation, log.OpLogin)

	target := "/"
	if sess.Analysis() != nil {
		target = "/dashboard"
	}
	http.Redirect(w, r, target, http.StatusSeeOther)
}

func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	if resp := RequirePOST(r); resp != nil {
		resp.Write(w)
		return
	}
	sess := s.sessions.Get(w, r)
	tok := sess.Logout()
	if tok != nil && s.auth != nil {
		ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
		defer cancel()
		if err := s.auth.Revoke(ctx, tok); err != nil {
			log.FromContext(r.Context()).WithComponent(log.ComponentAuth).WarnContext(r.Context(), "Token revocation failed",
				log.FieldOperation, log.OpLogout,
				log.FieldError, err)
		}
	}
	s.sessions.Destroy(w, sess)
	redirect(w, r, "/")
}
