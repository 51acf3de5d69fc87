package service

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"vod-automation/config"
	"vod-automation/constant"
	"vod-automation/dto"
	"vod-automation/entities"
	"vod-automation/repository"
)

// LiveStatusProvider reports the currently-live broadcast, nil when offline.
type LiveStatusProvider interface {
	GetCurrentBroadcast(ctx context.Context) (*dto.Broadcast, error)
}

// Detector is the live-status scan: it creates a Stream the first time a
// broadcast is observed, keeps title/game fresh while it runs, and marks it
// ended once the broadcast disappears from the listing.
type Detector interface {
	Scan(ctx context.Context) error
}

type detector struct {
	repo repository.Repository
	live LiveStatusProvider
	cfg  config.Pipeline
	now  func() time.Time
}

func NewDetector(repo repository.Repository, live LiveStatusProvider, cfg config.Pipeline) Detector {
	return &detector{
		repo: repo,
		live: live,
		cfg:  cfg,
		now:  time.Now,
	}
}

func (d *detector) Scan(ctx context.Context) error {
	broadcast, err := d.live.GetCurrentBroadcast(ctx)
	if err != nil {
		// Scan-level failure: the driver logs it and retries next cadence.
		return err
	}

	if broadcast != nil {
		if err := d.observeLive(ctx, broadcast); err != nil {
			return err
		}
	}

	return d.closeFinishedStreams(ctx, broadcast)
}

func (d *detector) observeLive(ctx context.Context, broadcast *dto.Broadcast) error {
	existing, err := d.repo.FindStreamByTwitchId(ctx, broadcast.StreamId)
	if err != nil {
		return err
	}

	if existing == nil {
		stream := &entities.Stream{
			TwitchStreamId: broadcast.StreamId,
			UserLogin:      broadcast.UserLogin,
			Title:          broadcast.Title,
			Status:         constant.StreamStatusLive,
			StartedAt:      broadcast.StartedAt,
		}
		if broadcast.GameId != "" {
			stream.GameId = &broadcast.GameId
		}
		if broadcast.GameName != "" {
			stream.GameName = &broadcast.GameName
		}
		if err := d.repo.CreateStream(ctx, stream); err != nil {
			return err
		}
		zerolog.Ctx(ctx).Info().
			Str("twitch_stream_id", broadcast.StreamId).
			Str("title", broadcast.Title).
			Msg("stream went live")
		return nil
	}

	// Title and game can change mid-stream.
	return d.repo.UpdateStreamWhileLive(ctx, existing.ID, broadcast.Title, broadcast.GameId, broadcast.GameName)
}

// closeFinishedStreams marks every live record that no longer matches the
// current broadcast as ended and queues its clips job. The download task is
// created later, once the listing poll attaches a VOD id.
func (d *detector) closeFinishedStreams(ctx context.Context, current *dto.Broadcast) error {
	liveStreams, err := d.repo.ListLiveStreams(ctx)
	if err != nil {
		return err
	}

	for _, stream := range liveStreams {
		if current != nil && stream.TwitchStreamId == current.StreamId {
			continue
		}

		endedAt := d.now().UTC()
		duration := int(endedAt.Sub(stream.StartedAt).Seconds())
		if err := d.repo.MarkStreamEnded(ctx, stream.ID, endedAt, duration); err != nil {
			zerolog.Ctx(ctx).Error().Err(err).Str("twitch_stream_id", stream.TwitchStreamId).Msg("failed to mark stream ended")
			continue
		}
		if err := d.repo.CreateJobIfAbsent(ctx, stream.ID, constant.JobTypeClipsFetch, d.cfg.JobMaxAttempts); err != nil {
			zerolog.Ctx(ctx).Error().Err(err).Str("twitch_stream_id", stream.TwitchStreamId).Msg("failed to create clips job")
			continue
		}
		zerolog.Ctx(ctx).Info().
			Str("twitch_stream_id", stream.TwitchStreamId).
			Int("duration_seconds", duration).
			Msg("stream ended")
	}
	return nil
}
