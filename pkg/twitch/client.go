// Package twitch is a minimal Helix client covering the calls the pipeline
// needs: live status, archive VOD listings, clip listings and game lookup.
package twitch

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/rs/zerolog"

	"vod-automation/config"
	"vod-automation/dto"
)

const (
	helixBaseURL = "https://api.twitch.tv/helix"
	tokenURL     = "https://id.twitch.tv/oauth2/token"
)

type Client struct {
	cfg        config.Twitch
	httpClient *http.Client

	mu           sync.Mutex
	accessToken  string
	tokenExpires time.Time
	userId       string
}

func NewClient(cfg config.Twitch) *Client {
	return &Client{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: 15 * time.Second},
	}
}

func (c *Client) token(ctx context.Context) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.accessToken != "" && time.Now().Before(c.tokenExpires.Add(-time.Minute)) {
		return c.accessToken, nil
	}

	form := url.Values{}
	form.Set("client_id", c.cfg.ClientId)
	form.Set("client_secret", c.cfg.ClientSecret)
	form.Set("grant_type", "client_credentials")

	operation := func() (string, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, tokenURL, strings.NewReader(form.Encode()))
		if err != nil {
			return "", err
		}
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

		resp, err := c.httpClient.Do(req)
		if err != nil {
			return "", err
		}
		defer resp.Body.Close()

		if resp.StatusCode != http.StatusOK {
			return "", fmt.Errorf("twitch token endpoint returned %d", resp.StatusCode)
		}

		var body struct {
			AccessToken string `json:"access_token"`
			ExpiresIn   int    `json:"expires_in"`
		}
		if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
			return "", err
		}
		c.accessToken = body.AccessToken
		c.tokenExpires = time.Now().Add(time.Duration(body.ExpiresIn) * time.Second)
		return c.accessToken, nil
	}

	bo := backoff.NewExponentialBackOff()
	bo.MaxInterval = 5 * time.Second
	token, err := backoff.Retry(ctx, operation, backoff.WithBackOff(bo), backoff.WithMaxTries(3))
	if err != nil {
		zerolog.Ctx(ctx).Error().Err(err).Msg("failed to fetch twitch app token")
		return "", err
	}
	return token, nil
}

func (c *Client) get(ctx context.Context, path string, query url.Values, out interface{}) error {
	token, err := c.token(ctx)
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, helixBaseURL+path+"?"+query.Encode(), nil)
	if err != nil {
		return err
	}
	req.Header.Set("Client-Id", c.cfg.ClientId)
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("twitch %s returned %d", path, resp.StatusCode)
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

func (c *Client) resolveUserId(ctx context.Context) (string, error) {
	c.mu.Lock()
	cached := c.userId
	c.mu.Unlock()
	if cached != "" {
		return cached, nil
	}

	query := url.Values{}
	query.Set("login", c.cfg.UserLogin)
	var body struct {
		Data []struct {
			Id string `json:"id"`
		} `json:"data"`
	}
	if err := c.get(ctx, "/users", query, &body); err != nil {
		return "", err
	}
	if len(body.Data) == 0 {
		return "", fmt.Errorf("twitch user not found: %s", c.cfg.UserLogin)
	}

	c.mu.Lock()
	c.userId = body.Data[0].Id
	c.mu.Unlock()
	return body.Data[0].Id, nil
}

// GetCurrentBroadcast returns the live broadcast for the configured user,
// or nil when the user is offline.
func (c *Client) GetCurrentBroadcast(ctx context.Context) (*dto.Broadcast, error) {
	query := url.Values{}
	query.Set("user_login", c.cfg.UserLogin)

	var body struct {
		Data []struct {
			Id        string    `json:"id"`
			UserLogin string    `json:"user_login"`
			GameId    string    `json:"game_id"`
			GameName  string    `json:"game_name"`
			Title     string    `json:"title"`
			StartedAt time.Time `json:"started_at"`
		} `json:"data"`
	}
	if err := c.get(ctx, "/streams", query, &body); err != nil {
		return nil, err
	}
	if len(body.Data) == 0 {
		return nil, nil
	}

	s := body.Data[0]
	return &dto.Broadcast{
		StreamId:  s.Id,
		UserLogin: s.UserLogin,
		Title:     s.Title,
		GameId:    s.GameId,
		GameName:  s.GameName,
		StartedAt: s.StartedAt,
	}, nil
}

// ListRecentVods returns archive VODs created within the lookback window,
// newest first as Twitch reports them.
func (c *Client) ListRecentVods(ctx context.Context, since time.Duration) ([]dto.VodSummary, error) {
	userId, err := c.resolveUserId(ctx)
	if err != nil {
		return nil, err
	}

	query := url.Values{}
	query.Set("user_id", userId)
	query.Set("type", "archive")
	query.Set("first", "20")

	var body struct {
		Data []struct {
			Id        string    `json:"id"`
			Title     string    `json:"title"`
			URL       string    `json:"url"`
			Duration  string    `json:"duration"`
			CreatedAt time.Time `json:"created_at"`
		} `json:"data"`
	}
	if err := c.get(ctx, "/videos", query, &body); err != nil {
		return nil, err
	}

	cutoff := time.Now().Add(-since)
	vods := make([]dto.VodSummary, 0, len(body.Data))
	for _, v := range body.Data {
		if v.CreatedAt.Before(cutoff) {
			// Listing is newest-first, everything after this is older.
			break
		}
		vods = append(vods, dto.VodSummary{
			VodId:           v.Id,
			Title:           v.Title,
			URL:             v.URL,
			DurationSeconds: parseDuration(v.Duration),
			CreatedAt:       v.CreatedAt,
		})
	}
	return vods, nil
}

// ListClips returns clips created between start and end for the configured
// broadcaster.
func (c *Client) ListClips(ctx context.Context, start, end time.Time) ([]dto.ClipSummary, error) {
	userId, err := c.resolveUserId(ctx)
	if err != nil {
		return nil, err
	}

	query := url.Values{}
	query.Set("broadcaster_id", userId)
	query.Set("started_at", start.UTC().Format(time.RFC3339))
	query.Set("ended_at", end.UTC().Format(time.RFC3339))
	query.Set("first", "20")

	var body struct {
		Data []struct {
			Id        string    `json:"id"`
			Title     string    `json:"title"`
			URL       string    `json:"url"`
			Duration  float64   `json:"duration"`
			ViewCount int       `json:"view_count"`
			CreatedAt time.Time `json:"created_at"`
		} `json:"data"`
	}
	if err := c.get(ctx, "/clips", query, &body); err != nil {
		return nil, err
	}

	clips := make([]dto.ClipSummary, 0, len(body.Data))
	for _, cl := range body.Data {
		clips = append(clips, dto.ClipSummary{
			ClipId:          cl.Id,
			Title:           cl.Title,
			URL:             cl.URL,
			DurationSeconds: cl.Duration,
			ViewCount:       cl.ViewCount,
			CreatedAt:       cl.CreatedAt,
		})
	}
	return clips, nil
}

// LookupGame resolves a game name against the Twitch games catalog. Returns
// nil when the catalog has no entry for the name.
func (c *Client) LookupGame(ctx context.Context, name string) (*dto.GameCandidate, error) {
	query := url.Values{}
	query.Set("name", name)

	var body struct {
		Data []struct {
			Id   string `json:"id"`
			Name string `json:"name"`
		} `json:"data"`
	}
	if err := c.get(ctx, "/games", query, &body); err != nil {
		return nil, err
	}
	if len(body.Data) == 0 {
		return nil, nil
	}
	return &dto.GameCandidate{
		Name:       body.Data[0].Name,
		ProviderId: body.Data[0].Id,
	}, nil
}

// parseDuration converts the Helix "1h23m45s" duration format to seconds.
func parseDuration(raw string) int {
	total := 0
	current := ""
	for _, r := range raw {
		switch r {
		case 'h':
			n, _ := strconv.Atoi(current)
			total += n * 3600
			current = ""
		case 'm':
			n, _ := strconv.Atoi(current)
			total += n * 60
			current = ""
		case 's':
			n, _ := strconv.Atoi(current)
			total += n
			current = ""
		default:
			current += string(r)
		}
	}
	return total
}
