package video

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"
)

// HTTPProvisioner creates rooms through the provider's REST API and signs join
// credentials locally.
type HTTPProvisioner struct {
	baseURL string
	apiKey  string
	client  *http.Client
	tokens  *TokenIssuer
	roomTTL time.Duration
	now     func() time.Time
}

func NewHTTPProvisioner(baseURL, apiKey string, tokens *TokenIssuer, roomTTL time.Duration) *HTTPProvisioner {
	return &HTTPProvisioner{
		baseURL: baseURL,
		apiKey:  apiKey,
		client:  &http.Client{Timeout: 15 * time.Second},
		tokens:  tokens,
		roomTTL: roomTTL,
		now:     time.Now,
	}
}

type createRoomRequest struct {
	Name       string         `json:"name"`
	Privacy    string         `json:"privacy"`
	Properties roomProperties `json:"properties"`
}

type roomProperties struct {
	Exp             int64 `json:"exp"`
	MaxParticipants int   `json:"max_participants"`
}

type roomResponse struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	URL  string `json:"url"`
}

func (p *HTTPProvisioner) CreateRoom(ctx context.Context, sessionID string) (Room, error) {
	exp := p.now().Add(p.roomTTL)
	body, err := json.Marshal(createRoomRequest{
		Name:       "s-" + sessionID,
		Privacy:    "private",
		Properties: roomProperties{Exp: exp.Unix(), MaxParticipants: 2},
	})
	if err != nil {
		return Room{}, err
	}

	var out roomResponse
	if err := p.do(ctx, http.MethodPost, "/rooms", body, &out); err != nil {
		return Room{}, fmt.Errorf("video: create room: %w", err)
	}
	id := out.Name
	if id == "" {
		id = out.ID
	}
	if id == "" || out.URL == "" {
		return Room{}, fmt.Errorf("video: create room: provider returned no room")
	}
	return Room{ID: id, URL: out.URL, ExpiresAt: exp}, nil
}

// DeleteRoom treats an already-deleted room as success.
func (p *HTTPProvisioner) DeleteRoom(ctx context.Context, roomID string) error {
	err := p.do(ctx, http.MethodDelete, "/rooms/"+url.PathEscape(roomID), nil, nil)
	var se *statusError
	if errors.As(err, &se) && se.code == http.StatusNotFound {
		return nil
	}
	if err != nil {
		return fmt.Errorf("video: delete room %s: %w", roomID, err)
	}
	return nil
}

func (p *HTTPProvisioner) GenerateToken(_ context.Context, roomID, userID string, ttl time.Duration) (Credential, error) {
	return p.tokens.Issue(roomID, userID, ttl)
}

type statusError struct {
	code int
	body string
}

func (e *statusError) Error() string {
	return fmt.Sprintf("provider responded %d: %s", e.code, e.body)
}

func (p *HTTPProvisioner) do(ctx context.Context, method, path string, body []byte, out any) error {
	var rdr io.Reader
	if body != nil {
		rdr = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, p.baseURL+path, rdr)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+p.apiKey)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := p.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return &statusError{code: resp.StatusCode, body: string(msg)}
	}
	if out == nil {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}
