// Package client is a Go client for the student records API. It holds an
// explicit session and renews it once on an expired access token.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"
)

// State is the authentication state of a Session.
type State int

const (
	Unauthenticated State = iota
	Authenticated
	Renewing
)

func (s State) String() string {
	switch s {
	case Authenticated:
		return "authenticated"
	case Renewing:
		return "renewing"
	default:
		return "unauthenticated"
	}
}

// ErrReauthRequired means the session has no usable credentials and the
// user has to log in again.
var ErrReauthRequired = errors.New("re-authentication required")

// APIError is a non-2xx answer from the server.
type APIError struct {
	Status  int
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func (e *APIError) Error() string {
	return fmt.Sprintf("api error %d (code %d): %s", e.Status, e.Code, e.Message)
}

type envelope struct {
	Code    int             `json:"code"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

type tokenPair struct {
	AccessToken  string `json:"accessToken"`
	RefreshToken string `json:"refreshToken"`
}

// Session carries credentials explicitly; nothing is kept in globals.
// It is safe for concurrent use.
type Session struct {
	BaseURL string
	HTTP    *http.Client

	mu      sync.Mutex
	state   State
	access  string
	renewal string
}

func NewSession(baseURL string) *Session {
	return &Session{
		BaseURL: strings.TrimRight(baseURL, "/"),
		HTTP:    &http.Client{Timeout: 30 * time.Second},
	}
}

// State returns the current state.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Login exchanges email and password for a credential pair.
func (s *Session) Login(ctx context.Context, email, password string) error {
	var pair tokenPair
	_, err := s.send(ctx, http.MethodPost, "/api/auth/login", "", map[string]string{"email": email, "password": password}, &pair)
	if err != nil {
		return err
	}
	s.mu.Lock()
	s.access, s.renewal, s.state = pair.AccessToken, pair.RefreshToken, Authenticated
	s.mu.Unlock()
	return nil
}

// Logout forgets the credentials locally and on the server.
func (s *Session) Logout(ctx context.Context) error {
	s.mu.Lock()
	renewal := s.renewal
	s.access, s.renewal, s.state = "", "", Unauthenticated
	s.mu.Unlock()
	if renewal == "" {
		return nil
	}
	_, err := s.send(ctx, http.MethodPost, "/api/auth/logout", "", map[string]string{"refreshToken": renewal}, nil)
	return err
}

// Do calls an authenticated endpoint and decodes the data part of the
// envelope into out. On 401 it renews once and retries once; a failed
// renewal leaves the session Unauthenticated.
func (s *Session) Do(ctx context.Context, method, path string, body, out interface{}) error {
	s.mu.Lock()
	if s.state != Authenticated {
		s.mu.Unlock()
		return ErrReauthRequired
	}
	token := s.access
	s.mu.Unlock()

	status, err := s.send(ctx, method, path, token, body, out)
	if status != http.StatusUnauthorized {
		return err
	}

	if err := s.renew(ctx, token); err != nil {
		return err
	}
	s.mu.Lock()
	token = s.access
	s.mu.Unlock()

	status, err = s.send(ctx, method, path, token, body, out)
	if status == http.StatusUnauthorized {
		s.reset()
		return ErrReauthRequired
	}
	return err
}

// renew trades the renewal credential for a new pair. stale is the access
// token that was rejected; if another caller already replaced it, nothing
// is done.
func (s *Session) renew(ctx context.Context, stale string) error {
	s.mu.Lock()
	if s.access != stale && s.state == Authenticated {
		s.mu.Unlock()
		return nil
	}
	if s.renewal == "" {
		s.state, s.access = Unauthenticated, ""
		s.mu.Unlock()
		return ErrReauthRequired
	}
	s.state = Renewing
	renewal := s.renewal
	// hold the lock so concurrent callers wait for one renewal
	defer s.mu.Unlock()

	var pair tokenPair
	if _, err := s.send(ctx, http.MethodPost, "/api/auth/refresh", "", map[string]string{"refreshToken": renewal}, &pair); err != nil {
		s.state, s.access, s.renewal = Unauthenticated, "", ""
		return fmt.Errorf("%w: %v", ErrReauthRequired, err)
	}
	s.access, s.renewal, s.state = pair.AccessToken, pair.RefreshToken, Authenticated
	return nil
}

func (s *Session) reset() {
	s.mu.Lock()
	s.state, s.access, s.renewal = Unauthenticated, "", ""
	s.mu.Unlock()
}

// send performs one request and returns the HTTP status.
func (s *Session) send(ctx context.Context, method, path, token string, body, out interface{}) (int, error) {
	var rdr io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return 0, fmt.Errorf("encode body: %w", err)
		}
		rdr = bytes.NewReader(b)
	}
	req, err := http.NewRequestWithContext(ctx, method, s.BaseURL+path, rdr)
	if err != nil {
		return 0, err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := s.HTTP.Do(req)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return resp.StatusCode, fmt.Errorf("read response: %w", err)
	}
	var env envelope
	if len(raw) > 0 {
		if err := json.Unmarshal(raw, &env); err != nil {
			return resp.StatusCode, fmt.Errorf("decode response: %w", err)
		}
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return resp.StatusCode, &APIError{Status: resp.StatusCode, Code: env.Code, Message: env.Message}
	}
	if out != nil && len(env.Data) > 0 {
		if err := json.Unmarshal(env.Data, out); err != nil {
			return resp.StatusCode, fmt.Errorf("decode data: %w", err)
		}
	}
	return resp.StatusCode, nil
}
