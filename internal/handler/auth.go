package handler

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"github.com/rs/xid"

	"github.com/sakif/budget-tracker/internal/apperror"
	"github.com/sakif/budget-tracker/internal/auth"
	"github.com/sakif/budget-tracker/internal/model"
	"github.com/sakif/budget-tracker/internal/service"
)

const stateCookieName = "oauth_state"

// AuthHandler exposes the authentication endpoints: local sign-up/sign-in,
// the Google OAuth flow, logout, and the current-user lookup.
type AuthHandler struct {
	service *service.AuthService
	google  *auth.GoogleProvider
	logger  *slog.Logger

	frontendOrigin string        // SPA origin for OAuth redirects
	cookieTTL      time.Duration // same duration as the token's expiry
	secureCookies  bool          // Secure attribute, on in production
}

// NewAuthHandler creates an AuthHandler. cookieTTL should be the token
// service's TTL so the session cookie expires together with the token
// inside it.
func NewAuthHandler(
	svc *service.AuthService,
	google *auth.GoogleProvider,
	logger *slog.Logger,
	frontendOrigin string,
	cookieTTL time.Duration,
	secureCookies bool,
) *AuthHandler {
	return &AuthHandler{
		service:        svc,
		google:         google,
		logger:         logger,
		frontendOrigin: frontendOrigin,
		cookieTTL:      cookieTTL,
		secureCookies:  secureCookies,
	}
}

// signUpRequest is the POST /sign-up body.
type signUpRequest struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

// signInRequest is the POST /sign-in body. The identifier field accepts a
// username or an email.
type signInRequest struct {
	UsernameOrEmail string `json:"usernameOrEmail"`
	Password        string `json:"password"`
}

// authResponse is the success body for sign-up and sign-in. The token
// appears both here and in the cookie; non-browser clients use the body.
type authResponse struct {
	Message string      `json:"message"`
	User    *model.User `json:"user"`
	Token   string      `json:"token"`
}

// HandleSignUp registers a local account.
//
// HTTP: POST /sign-up
// 201 with the sanitized account + token and a session cookie, or 400 on
// validation/duplicate failures.
func (h *AuthHandler) HandleSignUp(w http.ResponseWriter, r *http.Request) {
	var req signUpRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: "Invalid request body"})
		return
	}

	result, err := h.service.Register(r.Context(), req.Username, req.Email, req.Password)
	if err != nil {
		h.logAuthFailure("sign-up", err)
		writeError(w, err)
		return
	}

	h.setTokenCookie(w, result.Token)
	writeJSON(w, http.StatusCreated, authResponse{
		Message: "User created & authenticated",
		User:    result.User,
		Token:   result.Token,
	})
}

// HandleSignIn authenticates a local account.
//
// HTTP: POST /sign-in
func (h *AuthHandler) HandleSignIn(w http.ResponseWriter, r *http.Request) {
	var req signInRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: "Invalid request body"})
		return
	}

	result, err := h.service.Login(r.Context(), req.UsernameOrEmail, req.Password)
	if err != nil {
		h.logAuthFailure("sign-in", err)
		writeError(w, err)
		return
	}

	h.setTokenCookie(w, result.Token)
	writeJSON(w, http.StatusOK, authResponse{
		Message: "Login successful",
		User:    result.User,
		Token:   result.Token,
	})
}

// HandleGoogleLogin starts the Google OAuth flow.
//
// HTTP: GET /auth/google
//
// A random state nonce goes into a short-lived cookie; the callback
// verifies Google echoed the same value, which proves this server started
// the flow.
func (h *AuthHandler) HandleGoogleLogin(w http.ResponseWriter, r *http.Request) {
	state := xid.New().String()

	http.SetCookie(w, &http.Cookie{
		Name:     stateCookieName,
		Value:    state,
		Path:     "/",
		MaxAge:   600, // 10 minutes — enough to click through the consent page
		HttpOnly: true,
		Secure:   h.secureCookies,
		SameSite: http.SameSiteLaxMode,
	})

	http.Redirect(w, r, h.google.AuthURL(state), http.StatusTemporaryRedirect)
}

// HandleGoogleCallback completes the Google OAuth flow.
//
// HTTP: GET /auth/google/callback?code=xxx&state=yyy
//
// The browser is mid-navigation here, so failures never return JSON — every
// error path redirects to the frontend sign-in page with an error marker.
// Success redirects to the dashboard with the token as a query parameter,
// which is what the frontend expects.
func (h *AuthHandler) HandleGoogleCallback(w http.ResponseWriter, r *http.Request) {
	stateCookie, err := r.Cookie(stateCookieName)
	if err != nil || stateCookie.Value == "" || r.URL.Query().Get("state") != stateCookie.Value {
		h.logger.Warn("google callback: state mismatch or missing state cookie")
		h.redirectSignIn(w, r, "invalid_state")
		return
	}

	// The state is single-use.
	http.SetCookie(w, &http.Cookie{Name: stateCookieName, Value: "", Path: "/", MaxAge: -1})

	if errParam := r.URL.Query().Get("error"); errParam != "" {
		h.logger.Info("google callback: consent denied", slog.String("error", errParam))
		h.redirectSignIn(w, r, "denied")
		return
	}

	code := r.URL.Query().Get("code")
	if code == "" {
		h.redirectSignIn(w, r, "missing_code")
		return
	}

	profile, err := h.google.Exchange(r.Context(), code)
	if err != nil {
		h.logger.Error("google callback: exchange failed", slog.String("error", err.Error()))
		h.redirectSignIn(w, r, "exchange_failed")
		return
	}

	result, err := h.service.LoginOrRegisterGoogle(r.Context(), profile)
	if err != nil {
		h.logAuthFailure("google callback", err)
		if errors.Is(err, apperror.ErrDuplicate) {
			// The email belongs to a password account; the sign-in page
			// tells the user to use their password.
			h.redirectSignIn(w, r, "account_exists")
		} else {
			h.redirectSignIn(w, r, "oauth_failed")
		}
		return
	}

	h.setTokenCookie(w, result.Token)
	http.Redirect(w, r,
		h.frontendOrigin+"/DashBoard?token="+url.QueryEscape(result.Token),
		http.StatusSeeOther)
}

// HandleLogout clears the session cookie.
//
// HTTP: POST /auth/logout
//
// Sessions are stateless, so logout is purely client-side: the token stays
// valid until its expiry, but the browser no longer holds it.
func (h *AuthHandler) HandleLogout(w http.ResponseWriter, r *http.Request) {
	http.SetCookie(w, &http.Cookie{
		Name:     auth.TokenCookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   h.secureCookies,
		SameSite: http.SameSiteStrictMode,
	})

	writeJSON(w, http.StatusOK, map[string]string{"message": "logged out"})
}

// HandleMe returns the authenticated account.
//
// HTTP: GET /api/me (behind auth.RequireAuth)
func (h *AuthHandler) HandleMe(w http.ResponseWriter, r *http.Request) {
	userID, ok := auth.UserIDFromContext(r.Context())
	if !ok {
		// Unreachable behind RequireAuth, but don't trust route wiring.
		writeJSON(w, http.StatusUnauthorized, ErrorResponse{Error: "unauthorized"})
		return
	}

	user, err := h.service.GetUserByID(r.Context(), userID)
	if err != nil {
		h.logger.Error("me: lookup failed", slog.String("userID", userID), slog.String("error", err.Error()))
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, user)
}

// setTokenCookie delivers the session token. HttpOnly keeps scripts away
// from it, SameSite=Strict keeps it off cross-site requests, and MaxAge
// matches the token TTL so the cookie cannot outlive the token.
func (h *AuthHandler) setTokenCookie(w http.ResponseWriter, token string) {
	http.SetCookie(w, &http.Cookie{
		Name:     auth.TokenCookieName,
		Value:    token,
		Path:     "/",
		MaxAge:   int(h.cookieTTL.Seconds()),
		HttpOnly: true,
		Secure:   h.secureCookies,
		SameSite: http.SameSiteStrictMode,
	})
}

// redirectSignIn sends the browser back to the frontend sign-in page with
// an error marker the page can render.
func (h *AuthHandler) redirectSignIn(w http.ResponseWriter, r *http.Request, reason string) {
	http.Redirect(w, r, h.frontendOrigin+"/sign-in?error="+url.QueryEscape(reason), http.StatusSeeOther)
}

// logAuthFailure logs expected domain failures at info and everything else
// (store/signing trouble) at error.
func (h *AuthHandler) logAuthFailure(flow string, err error) {
	var appErr *apperror.AppError
	if errors.As(err, &appErr) {
		h.logger.Info(flow+" rejected", slog.String("reason", appErr.Message))
		return
	}
	h.logger.Error(flow+" failed", slog.String("error", err.Error()))
}
