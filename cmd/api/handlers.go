package main

import (
	"encoding/json"
	"log"
	"mime"
	"net/http"
	"strconv"
	"time"

	"github.com/PaulBabatuyi/pairchat/internal/apperr"
	"github.com/PaulBabatuyi/pairchat/internal/middleware"
)

const maxBodyBytes = 1 << 20

type loginResponse struct {
	UserID    int64     `json:"user_id"`
	Name      string    `json:"name"`
	Phone     string    `json:"phone"`
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
}

type postMessageRequest struct {
	Message string `json:"message"`
}

// routes builds the HTTP API.
func (s *Server) routes() http.Handler {
	mux := http.NewServeMux()

	mux.Handle("POST /login", limitBody(middleware.RateLimitLogin(s.limiter, s.rateLimited, http.HandlerFunc(s.handleLogin))))
	mux.HandleFunc("GET /logout", s.handleLogout)
	mux.HandleFunc("POST /logout", s.handleLogout)
	mux.HandleFunc("GET /healthz", handleHealth)

	mux.HandleFunc("GET /api/me", s.requireSession(s.handleMe))
	mux.HandleFunc("GET /api/contacts", s.requireSession(s.handleContacts))
	mux.HandleFunc("GET /api/chats", s.requireSession(s.handleChats))
	mux.HandleFunc("GET /api/chat/{contact_id}", s.requireSession(s.handleGetMessages))
	mux.Handle("POST /api/chat/{contact_id}", limitBody(s.requireSession(s.handlePostMessage)))

	return logRequests(mux)
}

// handleLogin finds or registers the user, then sets the session cookie and
// returns the token for non-browser clients.
func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	caller, err := s.chat.Login(r.Context(), r.FormValue("phone"), r.FormValue("name"))
	if err != nil {
		writeError(w, err)
		return
	}

	token, expiresAt, err := s.issueSession(caller)
	if err != nil {
		log.Printf("generate token failed: %v", err)
		writeError(w, apperr.ErrInternal)
		return
	}

	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookie,
		Value:    token,
		Path:     "/",
		Expires:  expiresAt,
		MaxAge:   int(s.auth.Duration().Seconds()),
		HttpOnly: true,
		Secure:   s.secureCookies,
		SameSite: http.SameSiteLaxMode,
	})
	writeJSON(w, http.StatusOK, loginResponse{
		UserID:    caller.UserID,
		Name:      caller.Name,
		Phone:     caller.Phone,
		Token:     token,
		ExpiresAt: expiresAt,
	})
}

// handleLogout clears the session cookie. Tokens are stateless, so a copied
// bearer token stays valid until it expires.
func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookie,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   s.secureCookies,
		SameSite: http.SameSiteLaxMode,
	})
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) rateLimited(w http.ResponseWriter, r *http.Request) {
	writeError(w, apperr.ErrRateLimited)
}

func handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	_, _ = w.Write([]byte("ok"))
}

func (s *Server) handleMe(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, callerFromContext(r.Context()))
}

func (s *Server) handleContacts(w http.ResponseWriter, r *http.Request) {
	contacts, err := s.chat.ListContacts(r.Context(), callerFromContext(r.Context()))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, contacts)
}

func (s *Server) handleChats(w http.ResponseWriter, r *http.Request) {
	chats, err := s.chat.ListChats(r.Context(), callerFromContext(r.Context()))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, chats)
}

func (s *Server) handleGetMessages(w http.ResponseWriter, r *http.Request) {
	contactID, err := contactIDParam(r)
	if err != nil {
		writeError(w, err)
		return
	}
	msgs, err := s.chat.GetMessages(r.Context(), callerFromContext(r.Context()), contactID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, msgs)
}

// handlePostMessage accepts {"message": "..."} as JSON, or a form-encoded
// message field.
func (s *Server) handlePostMessage(w http.ResponseWriter, r *http.Request) {
	contactID, err := contactIDParam(r)
	if err != nil {
		writeError(w, err)
		return
	}

	var text string
	if isJSON(r) {
		var body postMessageRequest
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			writeError(w, apperr.Invalid("invalid JSON body"))
			return
		}
		text = body.Message
	} else {
		text = r.FormValue("message")
	}

	msg, err := s.chat.PostMessage(r.Context(), callerFromContext(r.Context()), contactID, text)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, msg)
}

// limitBody caps request bodies before anything parses them.
func limitBody(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
		next.ServeHTTP(w, r)
	})
}

func contactIDParam(r *http.Request) (int64, error) {
	id, err := strconv.ParseInt(r.PathValue("contact_id"), 10, 64)
	if err != nil || id <= 0 {
		return 0, apperr.Invalid("invalid contact id")
	}
	return id, nil
}

func isJSON(r *http.Request) bool {
	ct, _, err := mime.ParseMediaType(r.Header.Get("Content-Type"))
	return err == nil && ct == "application/json"
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("write response failed: %v", err)
	}
}

// writeError maps err to a status code and a caller-safe message.
func writeError(w http.ResponseWriter, err error) {
	writeJSON(w, apperr.CodeOf(err).HTTPStatus(), map[string]string{"error": apperr.PublicMessage(err)})
}
