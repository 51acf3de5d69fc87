package service

import (
	"context"
	"sort"
	"time"

	"github.com/rs/zerolog"

	"vod-automation/config"
	"vod-automation/constant"
	"vod-automation/dto"
	"vod-automation/entities"
	"vod-automation/repository"
)

// VodListProvider lists archive VODs created within the lookback window.
type VodListProvider interface {
	ListRecentVods(ctx context.Context, since time.Duration) ([]dto.VodSummary, error)
}

// Discovery is the VOD listing scan. It attaches VOD ids to streams that
// were observed live, retroactively creates records for VODs the live poll
// missed, and queues the download task once a VOD id is known. Re-running
// the scan never creates duplicates.
type Discovery interface {
	Scan(ctx context.Context) error
}

type discovery struct {
	repo repository.Repository
	vods VodListProvider
	cfg  config.Pipeline
}

func NewDiscovery(repo repository.Repository, vods VodListProvider, cfg config.Pipeline) Discovery {
	return &discovery{
		repo: repo,
		vods: vods,
		cfg:  cfg,
	}
}

// retroactiveStreamId derives the external broadcast id used for records
// created from a discovered VOD, so both discovery paths converge on the
// same uniqueness constraint.
func retroactiveStreamId(vodId string) string {
	return "vod_" + vodId
}

func (d *discovery) Scan(ctx context.Context) error {
	lookback := time.Duration(d.cfg.LookbackDays) * 24 * time.Hour
	vods, err := d.vods.ListRecentVods(ctx, lookback)
	if err != nil {
		return err
	}
	if len(vods) == 0 {
		return nil
	}

	// Oldest first, so content reaches downstream stages in the order it was
	// produced.
	sort.Slice(vods, func(i, j int) bool {
		return vods[i].CreatedAt.Before(vods[j].CreatedAt)
	})

	for _, vod := range vods {
		if err := d.processVod(ctx, vod); err != nil {
			// Item-level failures never abort the batch.
			zerolog.Ctx(ctx).Error().Err(err).Str("vod_id", vod.VodId).Msg("failed to process discovered vod")
		}
	}
	return nil
}

func (d *discovery) processVod(ctx context.Context, vod dto.VodSummary) error {
	known, err := d.repo.FindStreamByVodId(ctx, vod.VodId)
	if err != nil {
		return err
	}
	if known != nil {
		return d.ensureDownstream(ctx, known)
	}

	// A stream the live poll already closed may be waiting for this VOD.
	stream, err := d.matchEndedStream(ctx, vod)
	if err != nil {
		return err
	}

	if stream != nil {
		if err := d.repo.AttachVodToStream(ctx, stream.ID, vod.VodId); err != nil {
			return err
		}
		zerolog.Ctx(ctx).Info().
			Str("vod_id", vod.VodId).
			Str("twitch_stream_id", stream.TwitchStreamId).
			Msg("vod attached to observed stream")
		return d.ensureDownstream(ctx, stream)
	}

	return d.createRetroactive(ctx, vod)
}

// matchEndedStream pairs a VOD with an ended, VOD-less stream whose start
// time is close to the VOD creation time.
func (d *discovery) matchEndedStream(ctx context.Context, vod dto.VodSummary) (*entities.Stream, error) {
	candidates, err := d.repo.ListEndedStreamsWithoutVod(ctx)
	if err != nil {
		return nil, err
	}
	for _, stream := range candidates {
		delta := vod.CreatedAt.Sub(stream.StartedAt)
		if delta < 0 {
			delta = -delta
		}
		if delta <= 10*time.Minute {
			return stream, nil
		}
	}
	return nil, nil
}

// createRetroactive records a VOD the live poll never saw. The existence
// check on the synthetic broadcast id keeps a re-run from inserting twice.
func (d *discovery) createRetroactive(ctx context.Context, vod dto.VodSummary) error {
	streamId := retroactiveStreamId(vod.VodId)
	existing, err := d.repo.FindStreamByTwitchId(ctx, streamId)
	if err != nil {
		return err
	}
	if existing != nil {
		return d.ensureDownstream(ctx, existing)
	}

	endedAt := vod.CreatedAt.Add(time.Duration(vod.DurationSeconds) * time.Second)
	duration := vod.DurationSeconds
	vodId := vod.VodId
	stream := &entities.Stream{
		TwitchStreamId:  streamId,
		TwitchVodId:     &vodId,
		Title:           vod.Title,
		Status:          constant.StreamStatusVodAvailable,
		StartedAt:       vod.CreatedAt,
		EndedAt:         &endedAt,
		DurationSeconds: &duration,
	}
	if vod.GameId != "" {
		stream.GameId = &vod.GameId
	}
	if vod.GameName != "" {
		stream.GameName = &vod.GameName
	}
	if err := d.repo.CreateStream(ctx, stream); err != nil {
		return err
	}
	zerolog.Ctx(ctx).Info().
		Str("vod_id", vod.VodId).
		Str("title", vod.Title).
		Msg("retroactive stream record created for discovered vod")
	return d.ensureDownstream(ctx, stream)
}

// ensureDownstream guarantees exactly one download task and one clips job
// exist for a stream with a known VOD.
func (d *discovery) ensureDownstream(ctx context.Context, stream *entities.Stream) error {
	hasDownload, err := d.repo.HasAnyDownload(ctx, stream.ID)
	if err != nil {
		return err
	}
	if !hasDownload {
		download := &entities.VodDownload{
			StreamId:    stream.ID,
			Status:      constant.DownloadStatusPending,
			MaxAttempts: d.cfg.DownloadMaxAttempts,
		}
		if err := d.repo.CreateDownload(ctx, download); err != nil {
			return err
		}
	}
	return d.repo.CreateJobIfAbsent(ctx, stream.ID, constant.JobTypeClipsFetch, d.cfg.JobMaxAttempts)
}
