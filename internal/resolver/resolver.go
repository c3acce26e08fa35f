// Package resolver maps a public room handle (web_rid) to the internal
// numeric room id and display metadata via the room-enter HTTP endpoint.
package resolver

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"github.com/Qiujialin/DouyinDm/internal/sign"
)

// DefaultEnterURL is the room-enter endpoint.
const DefaultEnterURL = "https://live.douyin.com/webcast/room/web/enter/"

// StatusLive is the room status value meaning the broadcast is on air.
const StatusLive = 2

// Errors
var (
	ErrRoomNotFound = errors.New("room not found")
)

// Room is the resolver result for a handle.
type Room struct {
	RoomID string // platform-assigned numeric id, as a string
	WebRID string // public handle the lookup started from
	Title  string
	Owner  string
	Live   bool
}

// Client calls the room-enter endpoint.
type Client struct {
	baseURL    string
	cookie     string
	userAgent  string
	httpClient *http.Client
	signer     sign.Signer
	logger     *slog.Logger
}

// Option configures a Client.
type Option func(*Client)

// NewClient creates a resolver client.
func NewClient(cookie, userAgent string, opts ...Option) *Client {
	c := &Client{
		baseURL:   DefaultEnterURL,
		cookie:    cookie,
		userAgent: userAgent,
		httpClient: &http.Client{
			Timeout: 10 * time.Second,
		},
		logger: slog.Default(),
	}

	for _, opt := range opts {
		opt(c)
	}

	return c
}

// WithBaseURL overrides the enter endpoint (used by tests).
func WithBaseURL(u string) Option {
	return func(c *Client) {
		c.baseURL = u
	}
}

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		c.httpClient = hc
	}
}

// WithSigner enables a_bogus URL signing on resolver requests.
func WithSigner(s sign.Signer) Option {
	return func(c *Client) {
		c.signer = s
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Client) {
		c.logger = logger
	}
}

// enterResponse is the wire shape of the enter endpoint reply, trimmed to
// the fields the resolver reads.
type enterResponse struct {
	StatusCode int    `json:"status_code"`
	StatusMsg  string `json:"status_msg"`
	Data       struct {
		Data []struct {
			IDStr  string `json:"id_str"`
			Title  string `json:"title"`
			Status int    `json:"status"`
			Owner  struct {
				Nickname string `json:"nickname"`
			} `json:"owner"`
		} `json:"data"`
	} `json:"data"`
}

// Resolve looks up a room by its public handle.
func (c *Client) Resolve(ctx context.Context, webRID string) (Room, error) {
	query := url.Values{
		"aid":                      {"6383"},
		"app_name":                 {"douyin_web"},
		"live_id":                  {"1"},
		"device_platform":          {"web"},
		"enter_from":               {"web_live"},
		"web_rid":                  {webRID},
		"room_id_str":              {""},
		"enter_source":             {""},
		"Room-Enter-User-Login-Ab": {"0"},
		"is_need_double_stream":    {"false"},
		"cookie_enabled":           {"true"},
		"screen_width":             {"1920"},
		"screen_height":            {"1080"},
		"browser_language":         {"zh-CN"},
		"browser_platform":         {"Win32"},
		"browser_name":             {"Mozilla"},
		"browser_version":          {"5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36"},
	}

	fullURL := c.baseURL + "?" + query.Encode()

	if c.signer != nil {
		signed, err := c.signer.SignURL(fullURL, c.userAgent)
		if err != nil {
			// The endpoint sometimes accepts unsigned requests; try anyway.
			c.logger.Warn("request signing failed, sending unsigned", "error", err)
		} else {
			fullURL = signed
		}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fullURL, nil)
	if err != nil {
		return Room{}, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("User-Agent", c.userAgent)
	req.Header.Set("Cookie", c.cookie)
	req.Header.Set("Referer", "https://live.douyin.com/"+webRID)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return Room{}, fmt.Errorf("do request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return Room{}, fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode >= 400 {
		return Room{}, fmt.Errorf("enter endpoint returned %d", resp.StatusCode)
	}

	var wire enterResponse
	if err := json.Unmarshal(body, &wire); err != nil {
		return Room{}, fmt.Errorf("unmarshal response: %w", err)
	}

	if wire.StatusCode != 0 {
		return Room{}, fmt.Errorf("%w: status %d %s", ErrRoomNotFound, wire.StatusCode, wire.StatusMsg)
	}
	if len(wire.Data.Data) == 0 || wire.Data.Data[0].IDStr == "" {
		return Room{}, fmt.Errorf("%w: empty room data for %s", ErrRoomNotFound, webRID)
	}

	room := wire.Data.Data[0]
	c.logger.Debug("resolved room",
		"web_rid", webRID,
		"room_id", room.IDStr,
		"title", room.Title,
	)

	return Room{
		RoomID: room.IDStr,
		WebRID: webRID,
		Title:  room.Title,
		Owner:  room.Owner.Nickname,
		Live:   room.Status == StatusLive,
	}, nil
}
