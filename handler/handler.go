package handler

import (
	"context"
	"encoding/json"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/rs/zerolog"

	"vod-automation/dto"
	"vod-automation/repository"
)

type ServiceDependencies struct {
	Repo repository.Repository
}

// DownloadRetryHandler re-queues a failed VOD download on operator
// request; the next upload scan picks it up.
func DownloadRetryHandler(ctx context.Context, msg amqp.Delivery, deps ServiceDependencies) error {
	var retry dto.DownloadRetryMessage
	if err := json.Unmarshal(msg.Body, &retry); err != nil {
		zerolog.Ctx(ctx).Error().Err(err).Msg("failed to unmarshal download retry message")
		return err
	}

	download, err := deps.Repo.FindDownloadById(ctx, retry.DownloadId)
	if err != nil {
		return err
	}

	// At most one non-terminal download per stream.
	active, err := deps.Repo.HasActiveDownload(ctx, download.StreamId)
	if err != nil {
		return err
	}
	if active {
		zerolog.Ctx(ctx).Warn().
			Str("download_id", retry.DownloadId.String()).
			Msg("stream already has an active download, retry ignored")
		return nil
	}

	requeued, err := deps.Repo.RequeueDownload(ctx, retry.DownloadId)
	if err != nil {
		return err
	}

	if !requeued {
		zerolog.Ctx(ctx).Warn().
			Str("download_id", retry.DownloadId.String()).
			Msg("download not in failed state, retry ignored")
		return nil
	}

	zerolog.Ctx(ctx).Info().
		Str("download_id", retry.DownloadId.String()).
		Msg("download re-queued by operator")
	return nil
}
