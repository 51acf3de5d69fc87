package games

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"vod-automation/config"
	"vod-automation/dto"
)

const igdbGamesURL = "https://api.igdb.com/v4/games"

type IGDB struct {
	cfg        config.Games
	httpClient *http.Client
}

func NewIGDB(cfg config.Games) *IGDB {
	return &IGDB{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: 10 * time.Second},
	}
}

func (p *IGDB) Name() string {
	return "igdb"
}

func (p *IGDB) Search(ctx context.Context, gameName string) ([]dto.GameCandidate, error) {
	// IGDB uses the Apicalypse query language in the request body.
	query := fmt.Sprintf(`search "%s"; fields name,summary,genres.name; limit 5;`,
		strings.ReplaceAll(gameName, `"`, ``))

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, igdbGamesURL, strings.NewReader(query))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Client-ID", p.cfg.IGDBClientId)
	req.Header.Set("Authorization", "Bearer "+p.cfg.IGDBAccessToken)

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("igdb returned %d", resp.StatusCode)
	}

	var body []struct {
		Id      int64  `json:"id"`
		Name    string `json:"name"`
		Summary string `json:"summary"`
		Genres  []struct {
			Name string `json:"name"`
		} `json:"genres"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, err
	}

	candidates := make([]dto.GameCandidate, 0, len(body))
	for _, g := range body {
		tags := make([]string, 0, 3)
		for _, genre := range g.Genres {
			if len(tags) == 3 {
				break
			}
			tags = append(tags, genre.Name)
		}
		candidates = append(candidates, dto.GameCandidate{
			Name:        g.Name,
			Description: g.Summary,
			Tags:        tags,
			ProviderId:  strconv.FormatInt(g.Id, 10),
		})
	}
	return candidates, nil
}
