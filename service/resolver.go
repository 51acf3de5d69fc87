package service

import (
	"context"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"vod-automation/constant"
	"vod-automation/dto"
	"vod-automation/entities"
	"vod-automation/pkg/games"
	"vod-automation/repository"
)

type ResolveStatus string

const (
	ResolveStatusCached   ResolveStatus = "cached"
	ResolveStatusResolved ResolveStatus = "resolved"
	ResolveStatusNotFound ResolveStatus = "not_found"
)

// SourceError records a provider failure observed during resolution.
// Failures do not abort resolution, but callers and tests can tell "nothing
// matched" apart from "a provider errored".
type SourceError struct {
	Source string
	Err    error
}

type Resolution struct {
	Status       ResolveStatus
	Metadata     *entities.GameMetadata
	SourceErrors []SourceError
}

// GameCatalog is the primary, authoritative lookup source (the streaming
// platform's own games catalog).
type GameCatalog interface {
	LookupGame(ctx context.Context, name string) (*dto.GameCandidate, error)
}

// Resolver resolves a game name to cached metadata, querying the catalog
// and the secondary providers in fixed priority order on a cache miss.
type Resolver interface {
	Resolve(ctx context.Context, gameName string) (*Resolution, error)
}

type resolver struct {
	repo      repository.Repository
	catalog   GameCatalog
	providers []games.Provider
	cacheTTL  time.Duration
	now       func() time.Time
}

func NewResolver(repo repository.Repository, catalog GameCatalog, providers []games.Provider, cacheTTL time.Duration) Resolver {
	return &resolver{
		repo:      repo,
		catalog:   catalog,
		providers: providers,
		cacheTTL:  cacheTTL,
		now:       time.Now,
	}
}

func (r *resolver) Resolve(ctx context.Context, gameName string) (*Resolution, error) {
	name := strings.TrimSpace(gameName)
	if name == "" {
		return &Resolution{Status: ResolveStatusNotFound}, nil
	}

	cached, err := r.repo.GetGameMetadata(ctx, name)
	if err != nil {
		return nil, err
	}
	if cached != nil && !r.expired(cached) {
		zerolog.Ctx(ctx).Debug().Str("game", name).Msg("metadata cache hit")
		return &Resolution{Status: ResolveStatusCached, Metadata: cached}, nil
	}

	resolution := &Resolution{Status: ResolveStatusNotFound}

	// Primary source: the platform catalog supplies the canonical name and
	// platform id. A failure here is soft, resolution continues against the
	// input name.
	canonical := name
	var primary *dto.GameCandidate
	candidate, err := r.catalog.LookupGame(ctx, name)
	if err != nil {
		zerolog.Ctx(ctx).Warn().Err(err).Str("game", name).Msg("catalog lookup failed")
		resolution.SourceErrors = append(resolution.SourceErrors, SourceError{Source: string(constant.MetadataSourceTwitch), Err: err})
	} else if candidate != nil {
		primary = candidate
		canonical = candidate.Name
	}

	// Secondary sources in priority order. Only exact (case-insensitive,
	// trimmed) name matches are accepted; similar names attach wrong-game
	// data and are rejected outright.
	for _, provider := range r.providers {
		candidates, err := provider.Search(ctx, name)
		if err != nil {
			zerolog.Ctx(ctx).Warn().Err(err).Str("provider", provider.Name()).Str("game", name).Msg("provider search failed")
			resolution.SourceErrors = append(resolution.SourceErrors, SourceError{Source: provider.Name(), Err: err})
			continue
		}

		match := exactMatch(candidates, name, canonical)
		if match == nil {
			continue
		}

		metadata := r.merge(name, primary, provider.Name(), match)
		if err := r.repo.UpsertGameMetadata(ctx, metadata); err != nil {
			return nil, err
		}
		resolution.Status = ResolveStatusResolved
		resolution.Metadata = metadata
		return resolution, nil
	}

	// No secondary match; the catalog hit alone still carries the canonical
	// name and platform id.
	if primary != nil {
		metadata := r.merge(name, primary, "", nil)
		if err := r.repo.UpsertGameMetadata(ctx, metadata); err != nil {
			return nil, err
		}
		resolution.Status = ResolveStatusResolved
		resolution.Metadata = metadata
		return resolution, nil
	}

	return resolution, nil
}

func (r *resolver) expired(metadata *entities.GameMetadata) bool {
	if r.cacheTTL == 0 {
		return false
	}
	return r.now().Sub(metadata.UpdatedAt) > r.cacheTTL
}

// merge combines the catalog hit (canonical name, platform id) with the
// secondary candidate (description, tags).
func (r *resolver) merge(name string, primary *dto.GameCandidate, providerName string, secondary *dto.GameCandidate) *entities.GameMetadata {
	// The cache row is keyed by the normalized input name so later lookups
	// for the same stream metadata hit it.
	metadata := &entities.GameMetadata{
		GameName: name,
		Source:   constant.MetadataSourceTwitch,
	}
	if primary != nil && primary.ProviderId != "" {
		id := primary.ProviderId
		metadata.TwitchGameId = &id
	}
	if secondary != nil {
		metadata.Source = constant.MetadataSource(providerName)
		metadata.Description = secondary.Description
		if len(secondary.Tags) > 3 {
			metadata.Tags = secondary.Tags[:3]
		} else {
			metadata.Tags = secondary.Tags
		}
		if secondary.ProviderId != "" {
			id := secondary.ProviderId
			metadata.ProviderId = &id
		}
	}
	return metadata
}

func exactMatch(candidates []dto.GameCandidate, name, canonical string) *dto.GameCandidate {
	for i := range candidates {
		candidateName := strings.TrimSpace(candidates[i].Name)
		if strings.EqualFold(candidateName, name) || strings.EqualFold(candidateName, canonical) {
			return &candidates[i]
		}
	}
	return nil
}
