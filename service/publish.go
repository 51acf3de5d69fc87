package service

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"vod-automation/config"
	"vod-automation/repository"
)

// PrivacySetter flips a hosted video's privacy status.
type PrivacySetter interface {
	SetPrivacy(ctx context.Context, videoId, privacyStatus string) error
}

// Publisher flips uploaded private videos to public once their scheduled
// slot arrives. Content flagged for manual review is never published.
type Publisher interface {
	Scan(ctx context.Context) error
}

type publisher struct {
	repo    repository.Repository
	privacy PrivacySetter
	cfg     config.Pipeline
	now     func() time.Time
}

func NewPublisher(repo repository.Repository, privacy PrivacySetter, cfg config.Pipeline) Publisher {
	return &publisher{
		repo:    repo,
		privacy: privacy,
		cfg:     cfg,
		now:     time.Now,
	}
}

func (p *publisher) Scan(ctx context.Context) error {
	now := p.now()
	from := now.Add(-p.cfg.PublishWindow)
	to := now.Add(p.cfg.PublishWindow)

	uploads, err := p.repo.ListUploadsDueForPublish(ctx, from, to)
	if err != nil {
		return err
	}

	for _, upload := range uploads {
		if upload.YoutubeVideoId == nil {
			continue
		}
		if err := p.privacy.SetPrivacy(ctx, *upload.YoutubeVideoId, "public"); err != nil {
			zerolog.Ctx(ctx).Error().Err(err).
				Str("upload_id", upload.ID.String()).
				Msg("failed to publish video")
			continue
		}
		if err := p.repo.MarkUploadPublished(ctx, upload.ID, now); err != nil {
			zerolog.Ctx(ctx).Error().Err(err).
				Str("upload_id", upload.ID.String()).
				Msg("failed to record publish")
			continue
		}
		zerolog.Ctx(ctx).Info().
			Str("upload_id", upload.ID.String()).
			Str("video_id", *upload.YoutubeVideoId).
			Msg("video published")
	}
	return nil
}
