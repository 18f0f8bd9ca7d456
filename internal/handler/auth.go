package handler

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/templui/habits/internal/config"
	"github.com/templui/habits/internal/ctxkeys"
	"github.com/templui/habits/internal/logger"
	"github.com/templui/habits/internal/service"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/github"
	"golang.org/x/oauth2/google"
)

const oauthStateCookie = "oauth_state"

// oauthProvider is an identity provider that can vouch for an email address.
type oauthProvider struct {
	config *oauth2.Config
	// fetchEmail asks the provider's API for the signed-in user's address.
	fetchEmail func(ctx context.Context, client *http.Client) (email, name string, err error)
}

type authHandler struct {
	authService   *service.AuthService
	providers     map[string]*oauthProvider
	secureCookies bool
}

func NewAuthHandler(authService *service.AuthService, cfg *config.Config) *authHandler {
	providers := map[string]*oauthProvider{}

	if cfg.GoogleClientID != "" {
		providers["google"] = &oauthProvider{
			config: &oauth2.Config{
				ClientID:     cfg.GoogleClientID,
				ClientSecret: cfg.GoogleClientSecret,
				RedirectURL:  cfg.AppURL + "/auth/google/callback",
				Scopes:       []string{"https://www.googleapis.com/auth/userinfo.email"},
				Endpoint:     google.Endpoint,
			},
			fetchEmail: googleEmail("https://www.googleapis.com/oauth2/v2/userinfo"),
		}
	}

	if cfg.GitHubClientID != "" {
		providers["github"] = &oauthProvider{
			config: &oauth2.Config{
				ClientID:     cfg.GitHubClientID,
				ClientSecret: cfg.GitHubClientSecret,
				RedirectURL:  cfg.AppURL + "/auth/github/callback",
				Scopes:       []string{"user:email"},
				Endpoint:     github.Endpoint,
			},
			fetchEmail: githubEmail("https://api.github.com"),
		}
	}

	return &authHandler{
		authService:   authService,
		providers:     providers,
		secureCookies: cfg.SecureCookies,
	}
}

// Login redirects the user to the provider's consent screen.
func (h *authHandler) Login(w http.ResponseWriter, r *http.Request) {
	provider, ok := h.providers[r.PathValue("provider")]
	if !ok {
		writeError(w, http.StatusNotFound, "not_found", "unknown identity provider", nil)
		return
	}

	// Generate secure state token for CSRF protection
	state := generateOAuthState()

	http.SetCookie(w, &http.Cookie{
		Name:     oauthStateCookie,
		Value:    state,
		Path:     "/",
		HttpOnly: true,
		Secure:   h.secureCookies,
		SameSite: http.SameSiteLaxMode,
		MaxAge:   600, // 10 minutes
	})

	url := provider.config.AuthCodeURL(state)
	http.Redirect(w, r, url, http.StatusTemporaryRedirect)
}

// Callback completes the OAuth flow, signs the user in and redirects home.
func (h *authHandler) Callback(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("provider")
	provider, ok := h.providers[name]
	if !ok {
		writeError(w, http.StatusNotFound, "not_found", "unknown identity provider", nil)
		return
	}

	ctx := r.Context()
	log := logger.FromContext(ctx).With("provider", name)

	// Validate state parameter for CSRF protection
	state := r.URL.Query().Get("state")
	cookie, err := r.Cookie(oauthStateCookie)
	if err != nil || state == "" || cookie.Value != state {
		log.Warn("oauth state validation failed", "error", err)
		writeError(w, http.StatusBadRequest, "oauth_failed", "authentication failed, please try again", nil)
		return
	}

	http.SetCookie(w, &http.Cookie{
		Name:   oauthStateCookie,
		Value:  "",
		Path:   "/",
		MaxAge: -1,
	})

	code := r.URL.Query().Get("code")
	if code == "" {
		log.Warn("oauth callback missing code")
		writeError(w, http.StatusBadRequest, "oauth_failed", "authentication failed, please try again", nil)
		return
	}

	token, err := provider.config.Exchange(ctx, code)
	if err != nil {
		log.Error("oauth token exchange failed", "error", err)
		writeError(w, http.StatusBadGateway, "oauth_failed", "authentication failed, please try again", nil)
		return
	}

	email, displayName, err := provider.fetchEmail(ctx, provider.config.Client(ctx, token))
	if err != nil {
		log.Error("failed to fetch oauth user info", "error", err)
		writeError(w, http.StatusBadGateway, "oauth_failed", "could not retrieve your email address", nil)
		return
	}

	user, err := h.authService.AuthenticateOAuth(ctx, email, displayName, name)
	if errors.Is(err, service.ErrInvalidEmail) {
		log.Warn("oauth provider returned no usable email", "email", email)
		writeError(w, http.StatusBadRequest, "oauth_failed", "could not retrieve your email address", nil)
		return
	}
	if err != nil {
		handleError(w, r, err)
		return
	}

	jwtToken, err := h.authService.GenerateJWT(user)
	if err != nil {
		handleError(w, r, fmt.Errorf("generate token: %w", err))
		return
	}

	h.authService.SetJWTCookie(w, jwtToken)

	log.Info("user logged in with oauth", "user_id", user.ID)
	http.Redirect(w, r, "/", http.StatusSeeOther)
}

func (h *authHandler) Logout(w http.ResponseWriter, r *http.Request) {
	h.authService.ClearJWTCookie(w)
	w.WriteHeader(http.StatusNoContent)
}

// Me returns the signed-in user.
func (h *authHandler) Me(w http.ResponseWriter, r *http.Request) {
	user := ctxkeys.User(r.Context())
	if user == nil {
		handleError(w, r, service.ErrUnauthenticated)
		return
	}
	writeJSON(w, http.StatusOK, user)
}

// DeleteAccount removes the user with all of their habits and signs them out.
func (h *authHandler) DeleteAccount(w http.ResponseWriter, r *http.Request) {
	err := h.authService.DeleteAccount(r.Context(), ctxkeys.UserID(r.Context()))
	if err != nil {
		handleError(w, r, err)
		return
	}

	h.authService.ClearJWTCookie(w)
	w.WriteHeader(http.StatusNoContent)
}

func googleEmail(userInfoURL string) func(context.Context, *http.Client) (string, string, error) {
	return func(ctx context.Context, client *http.Client) (string, string, error) {
		var info struct {
			Email         string `json:"email"`
			Name          string `json:"name"`
			VerifiedEmail bool   `json:"verified_email"`
		}
		err := getJSON(ctx, client, userInfoURL, &info)
		if err != nil {
			return "", "", err
		}
		if !info.VerifiedEmail {
			return "", "", errors.New("google email is not verified")
		}
		return info.Email, info.Name, nil
	}
}

func githubEmail(apiURL string) func(context.Context, *http.Client) (string, string, error) {
	return func(ctx context.Context, client *http.Client) (string, string, error) {
		var info struct {
			Email string `json:"email"`
			Name  string `json:"name"`
		}
		err := getJSON(ctx, client, apiURL+"/user", &info)
		if err != nil {
			return "", "", err
		}
		if info.Email != "" {
			return info.Email, info.Name, nil
		}

		// GitHub omits private addresses from /user; ask for the primary one.
		var emails []struct {
			Email    string `json:"email"`
			Primary  bool   `json:"primary"`
			Verified bool   `json:"verified"`
		}
		err = getJSON(ctx, client, apiURL+"/user/emails", &emails)
		if err != nil {
			return "", "", err
		}
		for _, e := range emails {
			if e.Primary && e.Verified {
				return e.Email, info.Name, nil
			}
		}
		return "", "", errors.New("github account has no verified primary email")
	}
}

func getJSON(ctx context.Context, client *http.Client, url string, v any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")

	resp, err := client.Do(req)
	if err != nil {
		return err
	}
	defer func() {
		closeErr := resp.Body.Close()
		if closeErr != nil {
			logger.FromContext(ctx).Error("failed to close response body", "error", closeErr)
		}
	}()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("GET %s: unexpected status %d", url, resp.StatusCode)
	}
	return json.NewDecoder(resp.Body).Decode(v)
}

// generateOAuthState creates cryptographically secure random state token for OAuth CSRF protection
func generateOAuthState() string {
	bytes := make([]byte, 32)
	_, err := rand.Read(bytes)
	if err != nil {
		panic("failed to generate oauth state: " + err.Error())
	}
	return base64.RawURLEncoding.EncodeToString(bytes)
}
