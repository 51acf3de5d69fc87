package games

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"vod-automation/config"
	"vod-automation/dto"
)

const rawgGamesURL = "https://api.rawg.io/api/games"

type RAWG struct {
	cfg        config.Games
	httpClient *http.Client
}

func NewRAWG(cfg config.Games) *RAWG {
	return &RAWG{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: 10 * time.Second},
	}
}

func (p *RAWG) Name() string {
	return "rawg"
}

func (p *RAWG) Search(ctx context.Context, gameName string) ([]dto.GameCandidate, error) {
	query := url.Values{}
	query.Set("key", p.cfg.RAWGApiKey)
	query.Set("search", gameName)
	query.Set("page_size", "5")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawgGamesURL+"?"+query.Encode(), nil)
	if err != nil {
		return nil, err
	}

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("rawg returned %d", resp.StatusCode)
	}

	var body struct {
		Results []struct {
			Id          int64  `json:"id"`
			Name        string `json:"name"`
			Description string `json:"description_raw"`
			Genres      []struct {
				Name string `json:"name"`
			} `json:"genres"`
			Tags []struct {
				Name string `json:"name"`
			} `json:"tags"`
		} `json:"results"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, err
	}

	candidates := make([]dto.GameCandidate, 0, len(body.Results))
	for _, g := range body.Results {
		tags := make([]string, 0, 3)
		for _, genre := range g.Genres {
			if len(tags) == 3 {
				break
			}
			tags = append(tags, genre.Name)
		}
		for _, tag := range g.Tags {
			if len(tags) == 3 {
				break
			}
			tags = append(tags, tag.Name)
		}
		candidates = append(candidates, dto.GameCandidate{
			Name:        g.Name,
			Description: g.Description,
			Tags:        tags,
			ProviderId:  strconv.FormatInt(g.Id, 10),
		})
	}
	return candidates, nil
}
