package identity

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/tbourn/go-codereview-backend/internal/apperror"
)

// RemoteProvider talks to a GoTrue-compatible auth server (for example
// Supabase Auth) under {baseURL}/auth/v1.
type RemoteProvider struct {
	baseURL string
	apiKey  string
	http    *http.Client
}

// NewRemoteProvider returns a provider for baseURL. apiKey is sent as the
// "apikey" header on every call.
func NewRemoteProvider(baseURL, apiKey string, timeout time.Duration) (*RemoteProvider, error) {
	baseURL = strings.TrimRight(strings.TrimSpace(baseURL), "/")
	if baseURL == "" || apiKey == "" {
		return nil, errors.New("identity: remote provider needs a URL and an API key")
	}
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &RemoteProvider{baseURL: baseURL, apiKey: apiKey, http: &http.Client{Timeout: timeout}}, nil
}

type remoteUser struct {
	ID    string `json:"id"`
	Email string `json:"email"`
}

type remoteSession struct {
	AccessToken  string      `json:"access_token"`
	RefreshToken string      `json:"refresh_token"`
	ExpiresIn    int64       `json:"expires_in"`
	User         *remoteUser `json:"user"`
	// Signup answers with a bare user when email confirmation is on.
	ID    string `json:"id"`
	Email string `json:"email"`
}

type remoteError struct {
	status  int
	message string
}

func (e *remoteError) Error() string {
	return fmt.Sprintf("identity server: %d %s", e.status, e.message)
}

func (p *RemoteProvider) Register(ctx context.Context, email, password string) (User, error) {
	email, err := normalizeEmail(email)
	if err != nil {
		return User{}, err
	}
	if len(password) < MinPasswordLen {
		return User{}, ErrWeakPassword
	}
	var out remoteSession
	err = p.do(ctx, http.MethodPost, "/auth/v1/signup", "", map[string]string{"email": email, "password": password}, &out)
	if err != nil {
		var re *remoteError
		if errors.As(err, &re) && re.status < 500 {
			if strings.Contains(strings.ToLower(re.message), "already registered") {
				return User{}, ErrEmailTaken
			}
			return User{}, apperror.ValidationFailed("", re.message)
		}
		return User{}, p.upstream(err)
	}
	switch {
	case out.User != nil && out.User.ID != "":
		return User{ID: out.User.ID, Email: out.User.Email}, nil
	case out.ID != "":
		return User{ID: out.ID, Email: out.Email}, nil
	}
	return User{}, p.upstream(errors.New("signup response has no user"))
}

func (p *RemoteProvider) Authenticate(ctx context.Context, email, password string) (Session, error) {
	return p.token(ctx, "password", map[string]string{
		"email":    strings.ToLower(strings.TrimSpace(email)),
		"password": password,
	}, ErrInvalidCredentials)
}

func (p *RemoteProvider) Refresh(ctx context.Context, refreshToken string) (Session, error) {
	if strings.TrimSpace(refreshToken) == "" {
		return Session{}, ErrInvalidToken
	}
	return p.token(ctx, "refresh_token", map[string]string{"refresh_token": refreshToken}, ErrInvalidToken)
}

func (p *RemoteProvider) Verify(ctx context.Context, accessToken string) (User, error) {
	if strings.TrimSpace(accessToken) == "" {
		return User{}, ErrInvalidToken
	}
	var u remoteUser
	if err := p.do(ctx, http.MethodGet, "/auth/v1/user", accessToken, nil, &u); err != nil {
		var re *remoteError
		if errors.As(err, &re) && re.status < 500 {
			return User{}, ErrInvalidToken
		}
		return User{}, p.upstream(err)
	}
	if u.ID == "" {
		return User{}, ErrInvalidToken
	}
	return User{ID: u.ID, Email: u.Email}, nil
}

// SignOut asks the server to revoke the session. A token the server no
// longer recognizes counts as signed out.
func (p *RemoteProvider) SignOut(ctx context.Context, accessToken string) error {
	err := p.do(ctx, http.MethodPost, "/auth/v1/logout", accessToken, nil, nil)
	var re *remoteError
	if err == nil || (errors.As(err, &re) && re.status < 500) {
		return nil
	}
	return p.upstream(err)
}

func (p *RemoteProvider) token(ctx context.Context, grant string, body any, rejected error) (Session, error) {
	var out remoteSession
	if err := p.do(ctx, http.MethodPost, "/auth/v1/token?grant_type="+grant, "", body, &out); err != nil {
		var re *remoteError
		if errors.As(err, &re) && re.status < 500 {
			return Session{}, rejected
		}
		return Session{}, p.upstream(err)
	}
	if out.AccessToken == "" || out.User == nil {
		return Session{}, p.upstream(errors.New("token response is incomplete"))
	}
	return Session{
		User:         User{ID: out.User.ID, Email: out.User.Email},
		AccessToken:  out.AccessToken,
		RefreshToken: out.RefreshToken,
		ExpiresIn:    out.ExpiresIn,
	}, nil
}

func (p *RemoteProvider) do(ctx context.Context, method, path, bearer string, in, out any) error {
	var body io.Reader
	if in != nil {
		b, err := json.Marshal(in)
		if err != nil {
			return err
		}
		body = bytes.NewReader(b)
	}
	req, err := http.NewRequestWithContext(ctx, method, p.baseURL+path, body)
	if err != nil {
		return err
	}
	req.Header.Set("apikey", p.apiKey)
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if bearer != "" {
		req.Header.Set("Authorization", "Bearer "+bearer)
	}

	resp, err := p.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<20))

	if resp.StatusCode >= 300 {
		return &remoteError{status: resp.StatusCode, message: remoteMessage(raw, resp.Status)}
	}
	if out == nil || len(bytes.TrimSpace(raw)) == 0 {
		return nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("decode identity response: %w", err)
	}
	return nil
}

func (p *RemoteProvider) upstream(err error) error {
	return apperror.Upstream("Identity service unavailable", err)
}

// remoteMessage picks the first human-readable field GoTrue uses for errors.
func remoteMessage(raw []byte, fallback string) string {
	var e struct {
		Msg              string `json:"msg"`
		Message          string `json:"message"`
		ErrorDescription string `json:"error_description"`
		Error            string `json:"error"`
	}
	if json.Unmarshal(raw, &e) == nil {
		for _, s := range []string{e.Msg, e.Message, e.ErrorDescription, e.Error} {
			if s != "" {
				return s
			}
		}
	}
	return fallback
}
