package handler

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/rs/xid"

	"github.com/fitted/fitted/internal/apperror"
	"github.com/fitted/fitted/internal/auth"
	"github.com/fitted/fitted/internal/model"
	"github.com/fitted/fitted/internal/service"
)

// AuthHandler manages registration, password login, GitHub login, and the
// session cookie.
//
// HANDLER RESPONSIBILITIES:
//   - HandleRegister       → create an account
//   - HandleLogin          → check credentials, set the JWT cookie
//   - HandleStatus         → report whether the browser holds a valid session
//   - HandleLogout         → clear the JWT cookie
//   - HandleGitHubLogin    → redirect the browser to GitHub's authorization page
//   - HandleGitHubCallback → receive the code, exchange it for a user, issue JWT
//
// DEPENDENCY CHAIN:
//   - auth   *service.AuthService   → account rules and token issuing
//   - github *auth.GitHubProvider   → OAuth code exchange (nil when disabled)
type AuthHandler struct {
	auth     *service.AuthService
	github   *auth.GitHubProvider
	secure   bool
	basePath string
	logger   *slog.Logger
}

// NewAuthHandler creates an AuthHandler. github may be nil, in which case
// the GitHub routes answer 404.
func NewAuthHandler(
	authService *service.AuthService,
	github *auth.GitHubProvider,
	secureCookies bool,
	basePath string,
	logger *slog.Logger,
) *AuthHandler {
	return &AuthHandler{
		auth:     authService,
		github:   github,
		secure:   secureCookies,
		basePath: basePath,
		logger:   logger,
	}
}

// flexString accepts a JSON string or number. The registration form posts
// age as text, but API clients send a number.
type flexString string

func (f *flexString) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*f = flexString(s)
		return nil
	}
	if string(data) == "null" {
		*f = ""
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return err
	}
	*f = flexString(n.String())
	return nil
}

type registerRequest struct {
	Username   string     `json:"username"`
	Email      string     `json:"email"`
	Password   string     `json:"password"`
	RePassword string     `json:"repassword"`
	Age        flexString `json:"age"`
}

// HandleRegister creates an account.
//
// HTTP: POST /api/users
// REQUEST BODY: {"username","email","password","repassword","age"}
// RESPONSE: 201 {"message": "User registered successfully"}
func (h *AuthHandler) HandleRegister(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, h.logger, err)
		return
	}

	_, err := h.auth.Register(r.Context(), service.RegisterRequest{
		Username:   req.Username,
		Email:      req.Email,
		Password:   req.Password,
		RePassword: req.RePassword,
		Age:        string(req.Age),
	})
	if err != nil {
		writeError(w, h.logger, err)
		return
	}

	writeJSON(w, http.StatusCreated, MessageResponse{Message: "User registered successfully"})
}

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// sessionResponse is the body of a successful login and of the status check.
type sessionResponse struct {
	Message        string `json:"message,omitempty"`
	LoggedIn       bool   `json:"loggedIn"`
	Username       string `json:"username,omitempty"`
	ProfilePicture string `json:"profilePicture,omitempty"`
}

// HandleLogin checks credentials and sets the session cookie.
//
// HTTP: POST /api/login
//
// A browser that already holds a valid session gets 403: it must log out
// before logging in as someone else. This route runs behind OptionalAuth,
// so the identity (if any) is already in the context.
func (h *AuthHandler) HandleLogin(w http.ResponseWriter, r *http.Request) {
	if _, ok := auth.IdentityFromContext(r.Context()); ok {
		writeError(w, h.logger, apperror.Forbidden("You are already logged in. Please log out first."))
		return
	}

	var req loginRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, h.logger, err)
		return
	}

	res, err := h.auth.Login(r.Context(), req.Username, req.Password)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}

	auth.SetSessionCookie(w, res.Token, h.auth.TokenTTL(), h.secure)
	writeJSON(w, http.StatusOK, sessionResponse{
		Message:        "Login successful",
		LoggedIn:       true,
		Username:       res.User.Username,
		ProfilePicture: withBase(h.basePath, res.User.Picture()),
	})
}

// HandleStatus reports the current session.
//
// HTTP: GET /api/login
//
// Never an error: a missing, expired, or orphaned session is just
// {"loggedIn": false}.
func (h *AuthHandler) HandleStatus(w http.ResponseWriter, r *http.Request) {
	id, ok := auth.IdentityFromContext(r.Context())
	if !ok {
		writeJSON(w, http.StatusOK, sessionResponse{LoggedIn: false})
		return
	}

	user, err := h.auth.CurrentUser(r.Context(), id)
	if err != nil {
		h.logger.Debug("session without account", slog.String("userID", id.UserID), slog.String("error", err.Error()))
		writeJSON(w, http.StatusOK, sessionResponse{LoggedIn: false})
		return
	}

	writeJSON(w, http.StatusOK, sessionResponse{
		LoggedIn:       true,
		Username:       user.Username,
		ProfilePicture: withBase(h.basePath, user.Picture()),
	})
}

// HandleLogout clears the JWT cookie.
//
// HTTP: DELETE /api/login
//
// Since we're stateless (JWT), "logout" just means deleting the client-side
// cookie. The token remains technically valid until it expires, but
// without the cookie the browser can't send it.
func (h *AuthHandler) HandleLogout(w http.ResponseWriter, r *http.Request) {
	auth.ClearSessionCookie(w, h.secure)
	writeJSON(w, http.StatusOK, MessageResponse{Message: "Logged out successfully"})
}

const stateCookie = "oauth_state"

// HandleGitHubLogin redirects the user to GitHub's authorization page.
//
// HTTP: GET /api/auth/github/login
//
// CSRF PROTECTION VIA STATE:
// We generate a random state string and store it in a short-lived cookie.
// When GitHub calls back, HandleGitHubCallback verifies the state matches.
// This proves the callback was initiated by this server, not a CSRF attacker.
func (h *AuthHandler) HandleGitHubLogin(w http.ResponseWriter, r *http.Request) {
	if h.github == nil {
		http.NotFound(w, r)
		return
	}

	state := xid.New().String()
	http.SetCookie(w, &http.Cookie{
		Name:     stateCookie,
		Value:    state,
		Path:     "/",
		MaxAge:   600, // 10 minutes
		HttpOnly: true,
		Secure:   h.secure,
		SameSite: http.SameSiteLaxMode,
	})

	http.Redirect(w, r, h.github.AuthURL(state), http.StatusTemporaryRedirect)
}

// HandleGitHubCallback completes the OAuth login flow.
//
// HTTP: GET /api/auth/github/callback?code=xxx&state=yyy
//
// FLOW:
//  1. Validate the state parameter (CSRF check)
//  2. Exchange the code for a GitHub user profile
//  3. Upsert the user and issue a JWT (AuthService)
//  4. Set the HttpOnly cookie and redirect to the feed
func (h *AuthHandler) HandleGitHubCallback(w http.ResponseWriter, r *http.Request) {
	if h.github == nil {
		http.NotFound(w, r)
		return
	}

	// --- Step 1: Validate CSRF state ---
	cookie, err := r.Cookie(stateCookie)
	if err != nil || cookie.Value == "" || r.URL.Query().Get("state") != cookie.Value {
		h.logger.Warn("auth callback: invalid state")
		http.Error(w, "invalid OAuth state", http.StatusBadRequest)
		return
	}

	// The state cookie is single-use.
	http.SetCookie(w, &http.Cookie{Name: stateCookie, Value: "", Path: "/", MaxAge: -1})

	home := h.basePath + "/"
	if errParam := r.URL.Query().Get("error"); errParam != "" {
		h.logger.Info("auth callback: user denied authorization", slog.String("error", errParam))
		http.Redirect(w, r, home+"?auth=denied", http.StatusSeeOther)
		return
	}

	// --- Step 2: Exchange code for GitHub user profile ---
	code := r.URL.Query().Get("code")
	if code == "" {
		http.Error(w, "missing OAuth code", http.StatusBadRequest)
		return
	}

	ghUser, err := h.github.Exchange(r.Context(), code)
	if err != nil {
		h.logger.Error("auth callback: GitHub exchange failed", slog.String("error", err.Error()))
		http.Error(w, "authentication failed", http.StatusBadGateway)
		return
	}

	// --- Step 3: Upsert and issue token ---
	res, err := h.auth.LoginOrRegisterGitHub(r.Context(), ghUser)
	if err != nil {
		h.logger.Error("auth callback: login failed",
			slog.Int64("githubID", ghUser.ID),
			slog.String("error", err.Error()),
		)
		http.Redirect(w, r, home+"?auth=failed", http.StatusSeeOther)
		return
	}

	// --- Step 4: Cookie and redirect ---
	auth.SetSessionCookie(w, res.Token, h.auth.TokenTTL(), h.secure)
	http.Redirect(w, r, home, http.StatusSeeOther)
}

// withBase prefixes the built-in default picture with the base path. Stored
// uploads already carry it, and external avatars are absolute.
func withBase(basePath, picture string) string {
	if picture == model.DefaultProfilePicture {
		return basePath + picture
	}
	return picture
}
