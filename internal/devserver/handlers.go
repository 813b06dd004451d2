package devserver

import (
	"log/slog"
	"net/http"
	"sort"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/kinboard/kinboard/client"
	"github.com/kinboard/kinboard/internal/util"
	"github.com/kinboard/kinboard/internal/uuid"
)

const badCredentials = "Incorrect email or password."

func (s *Server) login(w http.ResponseWriter, r *http.Request) {
	var req client.LoginRequest
	if !decodeBody(w, r, &req) {
		return
	}
	email := util.NormalizeEmail(req.Email)

	s.mu.Lock()
	s.logins = append(s.logins, email)
	acct, ok := s.accounts[email]
	if !ok || acct.setupToken != "" || acct.password == "" || acct.password != req.Password {
		s.mu.Unlock()
		s.logger.Info("login rejected", slog.String("account", util.AccountID(email)))
		msg := badCredentials
		writeJSON(w, http.StatusUnauthorized, client.LoginResponse{Success: false, Error: &msg})
		return
	}
	token := uuid.New()
	expiresAt := time.Now().Add(s.sessionTTL)
	s.sessions[token] = session{userID: acct.user.ID, expiresAt: expiresAt}
	user := acct.user
	s.mu.Unlock()

	http.SetCookie(w, &http.Cookie{
		Name:     SessionCookieName,
		Value:    token,
		Path:     "/",
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
		Expires:  expiresAt,
	})
	writeJSON(w, http.StatusOK, client.LoginResponse{Success: true, User: &user})
}

func (s *Server) logout(w http.ResponseWriter, r *http.Request) {
	if c, err := r.Cookie(SessionCookieName); err == nil {
		s.mu.Lock()
		delete(s.sessions, c.Value)
		s.mu.Unlock()
	}
	http.SetCookie(w, &http.Cookie{
		Name:     SessionCookieName,
		Value:    "",
		Path:     "/",
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
		Expires:  time.Unix(0, 0),
		MaxAge:   -1,
	})
	writeJSON(w, http.StatusOK, client.StatusResponse{Success: true})
}

// forgotPassword always succeeds so the endpoint does not reveal which
// emails have accounts.
func (s *Server) forgotPassword(w http.ResponseWriter, r *http.Request) {
	var req client.ForgotPasswordRequest
	if !decodeBody(w, r, &req) {
		return
	}
	s.mu.Lock()
	if acct, ok := s.accounts[util.NormalizeEmail(req.Email)]; ok && acct.setupToken == "" {
		acct.resetToken = uuid.New()
	}
	s.mu.Unlock()
	writeJSON(w, http.StatusOK, client.StatusResponse{Success: true})
}

func (s *Server) resetPassword(w http.ResponseWriter, r *http.Request) {
	var req client.ResetPasswordRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if req.Token == "" || req.Password == "" {
		writeError(w, http.StatusBadRequest, "token and password are required")
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, acct := range s.accounts {
		if acct.resetToken != "" && acct.resetToken == req.Token {
			acct.password = req.Password
			acct.resetToken = ""
			s.revokeSessionsLocked(acct.user.ID)
			writeJSON(w, http.StatusOK, client.StatusResponse{Success: true})
			return
		}
	}
	writeError(w, http.StatusBadRequest, "This reset link is invalid or has expired.")
}

func (s *Server) setup(w http.ResponseWriter, r *http.Request) {
	var req client.SetupRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if req.Token == "" || req.Password == "" {
		writeError(w, http.StatusBadRequest, "token and password are required")
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, acct := range s.accounts {
		if acct.setupToken != "" && acct.setupToken == req.Token {
			acct.password = req.Password
			acct.setupToken = ""
			if req.FirstName != "" {
				acct.user.FirstName = req.FirstName
			}
			if req.LastName != "" {
				acct.user.LastName = req.LastName
			}
			writeJSON(w, http.StatusOK, client.StatusResponse{Success: true})
			return
		}
	}
	writeError(w, http.StatusBadRequest, "This invitation is invalid or has already been used.")
}

func (s *Server) revokeSessionsLocked(userID string) {
	for token, sess := range s.sessions {
		if sess.userID == userID {
			delete(s.sessions, token)
		}
	}
}

func (s *Server) me(w http.ResponseWriter, r *http.Request) {
	s.mu.RLock()
	acct, ok := s.currentAccountLocked(r)
	var user client.User
	if ok {
		user = acct.user
	}
	s.mu.RUnlock()
	if !ok {
		writeError(w, http.StatusUnauthorized, "authentication required")
		return
	}
	writeJSON(w, http.StatusOK, user)
}

func (s *Server) registerPush(w http.ResponseWriter, r *http.Request) {
	var req client.PushRegistration
	if !decodeBody(w, r, &req) {
		return
	}
	if req.Token == "" {
		writeError(w, http.StatusBadRequest, "token is required")
		return
	}
	s.mu.Lock()
	if acct, ok := s.currentAccountLocked(r); ok {
		acct.pushTokens[req.Token] = req
	}
	s.mu.Unlock()
	writeJSON(w, http.StatusOK, client.StatusResponse{Success: true})
}

func (s *Server) unregisterPush(w http.ResponseWriter, r *http.Request) {
	var req client.PushUnregistration
	if !decodeBody(w, r, &req) {
		return
	}
	s.mu.Lock()
	if acct, ok := s.currentAccountLocked(r); ok {
		delete(acct.pushTokens, req.Token)
	}
	s.mu.Unlock()
	writeJSON(w, http.StatusOK, client.StatusResponse{Success: true})
}

func (s *Server) listCards(w http.ResponseWriter, r *http.Request) {
	s.mu.RLock()
	acct, _ := s.currentAccountLocked(r)
	cards := make([]client.Card, 0)
	for _, c := range s.cards {
		if acct != nil && c.FamilyID == acct.user.FamilyID {
			cards = append(cards, c)
		}
	}
	s.mu.RUnlock()
	sort.Slice(cards, func(i, j int) bool {
		if !cards[i].StartsAt.Equal(cards[j].StartsAt) {
			return cards[i].StartsAt.Before(cards[j].StartsAt)
		}
		return cards[i].ID < cards[j].ID
	})
	writeJSON(w, http.StatusOK, cards)
}

func (s *Server) createCard(w http.ResponseWriter, r *http.Request) {
	var card client.Card
	if !decodeBody(w, r, &card) {
		return
	}
	if card.Title == "" {
		writeError(w, http.StatusBadRequest, "title is required")
		return
	}
	s.mu.Lock()
	acct, _ := s.currentAccountLocked(r)
	card.ID = uuid.New()
	if acct != nil {
		card.FamilyID = acct.user.FamilyID
	}
	s.cards[card.ID] = card
	s.mu.Unlock()
	writeJSON(w, http.StatusCreated, card)
}

func (s *Server) getCard(w http.ResponseWriter, r *http.Request) {
	s.mu.RLock()
	card, ok := s.familyCardLocked(r, chi.URLParam(r, "cardID"))
	s.mu.RUnlock()
	if !ok {
		writeError(w, http.StatusNotFound, "card not found")
		return
	}
	writeJSON(w, http.StatusOK, card)
}

func (s *Server) updateCard(w http.ResponseWriter, r *http.Request) {
	var card client.Card
	if !decodeBody(w, r, &card) {
		return
	}
	if card.Title == "" {
		writeError(w, http.StatusBadRequest, "title is required")
		return
	}
	id := chi.URLParam(r, "cardID")
	s.mu.Lock()
	existing, ok := s.familyCardLocked(r, id)
	if ok {
		card.ID = existing.ID
		card.FamilyID = existing.FamilyID
		s.cards[id] = card
	}
	s.mu.Unlock()
	if !ok {
		writeError(w, http.StatusNotFound, "card not found")
		return
	}
	writeJSON(w, http.StatusOK, card)
}

func (s *Server) deleteCard(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "cardID")
	s.mu.Lock()
	_, ok := s.familyCardLocked(r, id)
	if ok {
		delete(s.cards, id)
	}
	s.mu.Unlock()
	if !ok {
		writeError(w, http.StatusNotFound, "card not found")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) familyCardLocked(r *http.Request, id string) (client.Card, bool) {
	acct, ok := s.currentAccountLocked(r)
	if !ok {
		return client.Card{}, false
	}
	card, ok := s.cards[id]
	if !ok || card.FamilyID != acct.user.FamilyID {
		return client.Card{}, false
	}
	return card, true
}
