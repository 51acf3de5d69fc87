// Package games holds the secondary game-metadata lookup providers queried
// after the Twitch catalog.
package games

import (
	"context"

	"vod-automation/dto"
)

// Provider searches one external catalog for candidate games matching a
// name. Candidates are raw search results; exact-match filtering is the
// resolver's job.
type Provider interface {
	Name() string
	Search(ctx context.Context, gameName string) ([]dto.GameCandidate, error)
}
