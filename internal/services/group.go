// Group API client for the cosmic server's room routes
package services

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/desertthunder/cosmic/internal/models"
	"github.com/desertthunder/cosmic/internal/rooms"
	"github.com/desertthunder/cosmic/internal/shared"
)

// GroupClient implements [RoomClient] over HTTP.
type GroupClient struct {
	baseURL    string
	httpClient *http.Client
}

// NewGroupClient creates a new client for the server at baseURL.
func NewGroupClient(baseURL string, client *http.Client) *GroupClient {
	if baseURL == "" {
		baseURL = "http://127.0.0.1:3000"
	}
	if client == nil {
		client = http.DefaultClient
	}

	return &GroupClient{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: client,
	}
}

// APIResponse represents a raw API response with status and body.
type APIResponse struct {
	StatusCode int
	Headers    http.Header
	Body       []byte
}

// do sends a request with an optional JSON body and returns the raw response.
func (g *GroupClient) do(ctx context.Context, method, path string, payload any) (*APIResponse, error) {
	var body io.Reader
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return nil, fmt.Errorf("failed to encode request: %w", err)
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, g.baseURL+path, body)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")

	resp, err := g.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: request failed: %v", shared.ErrServiceUnavailable, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	return &APIResponse{StatusCode: resp.StatusCode, Headers: resp.Header, Body: data}, nil
}

// decode checks the status of resp and decodes its body into result.
func decode(resp *APIResponse, result any) error {
	switch {
	case resp.StatusCode == http.StatusServiceUnavailable:
		return fmt.Errorf("%w: %s", shared.ErrCodeSpaceExhausted, strings.TrimSpace(string(resp.Body)))
	case resp.StatusCode == http.StatusBadRequest:
		return fmt.Errorf("%w: %s", shared.ErrInvalidInput, strings.TrimSpace(string(resp.Body)))
	case resp.StatusCode < 200 || resp.StatusCode >= 300:
		return &shared.UpstreamError{StatusCode: resp.StatusCode, Body: strings.TrimSpace(string(resp.Body))}
	}

	if err := json.Unmarshal(resp.Body, result); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}

func (g *GroupClient) CreateRoom(ctx context.Context) (string, error) {
	resp, err := g.do(ctx, http.MethodPost, "/group/create", nil)
	if err != nil {
		return "", err
	}

	var out struct {
		Code string `json:"code"`
	}
	if err := decode(resp, &out); err != nil {
		return "", err
	}
	return out.Code, nil
}

func (g *GroupClient) Publish(ctx context.Context, code string, member models.Member) (int, error) {
	resp, err := g.do(ctx, http.MethodPost, "/group/publish", models.PublishRequest{Code: code, Member: member})
	if err != nil {
		return 0, err
	}

	var out struct {
		OK   bool `json:"ok"`
		Size int  `json:"size"`
	}
	if err := decode(resp, &out); err != nil {
		return 0, err
	}
	return out.Size, nil
}

func (g *GroupClient) Room(ctx context.Context, code, memberID string) (models.Room, error) {
	q := url.Values{}
	q.Set("code", code)
	if memberID != "" {
		q.Set("member", memberID)
	}

	resp, err := g.do(ctx, http.MethodGet, "/group/get?"+q.Encode(), nil)
	if err != nil {
		return models.Room{}, err
	}

	var room models.Room
	if err := decode(resp, &room); err != nil {
		return models.Room{}, err
	}
	if room.Members == nil {
		room.Members = []models.Member{}
	}
	return room, nil
}

// LocalRooms implements [RoomClient] directly on a [rooms.Service], without a server.
type LocalRooms struct {
	svc *rooms.Service
}

// NewLocalRooms wraps svc.
func NewLocalRooms(svc *rooms.Service) *LocalRooms {
	return &LocalRooms{svc: svc}
}

func (l *LocalRooms) CreateRoom(ctx context.Context) (string, error) {
	return l.svc.Create(ctx)
}

func (l *LocalRooms) Publish(ctx context.Context, code string, member models.Member) (int, error) {
	return l.svc.Publish(ctx, code, member)
}

func (l *LocalRooms) Room(ctx context.Context, code, memberID string) (models.Room, error) {
	return l.svc.Read(ctx, code, memberID)
}

var (
	_ RoomClient = (*GroupClient)(nil)
	_ RoomClient = (*LocalRooms)(nil)
)
