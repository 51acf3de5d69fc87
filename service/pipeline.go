package service

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/rs/zerolog"

	"vod-automation/config"
	"vod-automation/constant"
	"vod-automation/dto"
	"vod-automation/entities"
	"vod-automation/pkg/blob"
	"vod-automation/pkg/notify"
	"vod-automation/repository"
)

// ErrNonRetryable marks failures that re-running cannot fix; the item is
// marked failed instead of being returned to the queue.
var ErrNonRetryable = errors.New("non-retryable error")

// ClipLister lists highlight clips created during a broadcast.
type ClipLister interface {
	ListClips(ctx context.Context, start, end time.Time) ([]dto.ClipSummary, error)
}

// VideoUploader is the video platform: upload private, flip privacy, set
// thumbnail.
type VideoUploader interface {
	Upload(ctx context.Context, filePath string, metadata dto.UploadMetadata) (string, error)
	SetPrivacy(ctx context.Context, videoId, privacyStatus string) error
	SetThumbnail(ctx context.Context, videoId, imagePath string) error
}

// MediaRunner shells out to the download/convert tooling.
type MediaRunner interface {
	DownloadVod(ctx context.Context, vodURL, outputPath string) error
	ConvertToVertical(ctx context.Context, inputPath, outputPath string) error
	ExtractThumbnail(ctx context.Context, videoPath, position string) (string, error)
}

// Pipeline is the upload-scan service: it advances every record through
// download -> enrichment -> upload by re-reading persisted status, claiming
// items with conditional updates, and recording outcomes. One item's
// failure never aborts the batch.
type Pipeline interface {
	Scan(ctx context.Context) error
}

type pipeline struct {
	repo      repository.Repository
	resolver  Resolver
	scheduler *Scheduler
	clips     ClipLister
	uploader  VideoUploader
	media     MediaRunner
	store     blob.Store
	notifier  notify.Notifier
	cfg       config.Pipeline
	youtube   config.YouTube
}

func NewPipeline(
	repo repository.Repository,
	resolver Resolver,
	scheduler *Scheduler,
	clips ClipLister,
	uploader VideoUploader,
	media MediaRunner,
	store blob.Store,
	notifier notify.Notifier,
	cfg config.Pipeline,
	youtube config.YouTube,
) Pipeline {
	return &pipeline{
		repo:      repo,
		resolver:  resolver,
		scheduler: scheduler,
		clips:     clips,
		uploader:  uploader,
		media:     media,
		store:     store,
		notifier:  notifier,
		cfg:       cfg,
		youtube:   youtube,
	}
}

func (p *pipeline) Scan(ctx context.Context) error {
	p.processDownloads(ctx)
	p.processClipsJobs(ctx)
	p.processEnrichment(ctx)
	p.processUploads(ctx)
	return nil
}

func vodURL(vodId string) string {
	return "https://www.twitch.tv/videos/" + vodId
}

// processDownloads pulls every pending VOD to local disk, validates it and
// relocates it into object storage.
func (p *pipeline) processDownloads(ctx context.Context) {
	downloads, err := p.repo.ListPendingDownloads(ctx)
	if err != nil {
		zerolog.Ctx(ctx).Error().Err(err).Msg("failed to list pending downloads")
		return
	}

	for _, download := range downloads {
		if err := p.runDownload(ctx, download); err != nil {
			zerolog.Ctx(ctx).Error().Err(err).Str("download_id", download.ID.String()).Msg("download failed")
		}
	}
}

func (p *pipeline) runDownload(ctx context.Context, download *entities.VodDownload) (err error) {
	stream, err := p.repo.FindStreamById(ctx, download.StreamId)
	if err != nil {
		return err
	}
	if stream.TwitchVodId == nil {
		// VOD id not discovered yet; the next scan will see it.
		return nil
	}

	claimed, err := p.repo.ClaimDownload(ctx, download.ID)
	if err != nil {
		return err
	}
	if !claimed {
		return nil
	}

	defer func() {
		if err == nil {
			return
		}
		// The claim bumped the attempt counter; re-read it to decide
		// between another attempt and a terminal failure.
		current, findErr := p.repo.FindDownloadById(ctx, download.ID)
		if findErr != nil {
			zerolog.Ctx(ctx).Error().Err(findErr).Msg("failed to reload download")
			return
		}
		if errors.Is(err, ErrNonRetryable) || current.Attempts >= current.MaxAttempts {
			if updateErr := p.repo.MarkDownloadFailed(ctx, download.ID, err.Error()); updateErr != nil {
				zerolog.Ctx(ctx).Error().Err(updateErr).Msg("failed to mark download failed")
			}
			return
		}
		if updateErr := p.repo.ResetDownloadToPending(ctx, download.ID); updateErr != nil {
			zerolog.Ctx(ctx).Error().Err(updateErr).Msg("failed to reset download")
		}
	}()

	workDir := filepath.Join(p.cfg.WorkDir, download.ID.String())
	if err = os.MkdirAll(workDir, os.ModePerm); err != nil {
		return errors.Join(ErrNonRetryable, err)
	}
	defer os.RemoveAll(workDir)

	localPath := filepath.Join(workDir, *stream.TwitchVodId+".mp4")
	if err = p.media.DownloadVod(ctx, vodURL(*stream.TwitchVodId), localPath); err != nil {
		return err
	}

	info, err := os.Stat(localPath)
	if err != nil {
		return err
	}

	// A tiny file means the download silently truncated; treat it as a
	// failure and drop the partial file.
	minBytes := p.cfg.MinFileSizeMB * 1024 * 1024
	if info.Size() < minBytes {
		if removeErr := os.Remove(localPath); removeErr != nil {
			zerolog.Ctx(ctx).Error().Err(removeErr).Msg("failed to remove undersized file")
		}
		return errors.Join(ErrNonRetryable,
			fmt.Errorf("downloaded file too small: %d bytes (minimum %d)", info.Size(), minBytes))
	}

	// Oversized files are kept but flagged; storage and upload costs climb
	// fast past the configured ceiling.
	maxBytes := p.cfg.MaxFileSizeGB * 1024 * 1024 * 1024
	if maxBytes > 0 && info.Size() > maxBytes {
		zerolog.Ctx(ctx).Warn().
			Int64("size_bytes", info.Size()).
			Int64("max_bytes", maxBytes).
			Msg("downloaded file exceeds the configured maximum size")
	}

	objectName := "vods/" + *stream.TwitchVodId + ".mp4"
	if err = p.store.Upload(ctx, localPath, objectName); err != nil {
		return err
	}

	if err = p.repo.MarkDownloadCompleted(ctx, download.ID, objectName, info.Size()); err != nil {
		return err
	}

	zerolog.Ctx(ctx).Info().
		Str("download_id", download.ID.String()).
		Str("object", objectName).
		Int64("size_bytes", info.Size()).
		Msg("vod download completed")
	return nil
}

// processEnrichment turns completed downloads into upload records,
// resolving game metadata first. A failed resolution never blocks the
// content; the record is created flagged for manual review instead.
func (p *pipeline) processEnrichment(ctx context.Context) {
	downloads, err := p.repo.ListCompletedDownloadsWithoutUpload(ctx)
	if err != nil {
		zerolog.Ctx(ctx).Error().Err(err).Msg("failed to list completed downloads")
		return
	}

	for _, download := range downloads {
		if err := p.enrichDownload(ctx, download); err != nil {
			zerolog.Ctx(ctx).Error().Err(err).Str("download_id", download.ID.String()).Msg("enrichment failed")
		}
	}
}

func (p *pipeline) enrichDownload(ctx context.Context, download *entities.VodDownload) error {
	stream, err := p.repo.FindStreamById(ctx, download.StreamId)
	if err != nil {
		return err
	}
	if stream.EndedAt == nil {
		return fmt.Errorf("stream %s has no end time", stream.ID)
	}

	gameName := p.cfg.FallbackGameName
	if stream.GameName != nil && *stream.GameName != "" {
		gameName = *stream.GameName
	}

	resolution, err := p.resolver.Resolve(ctx, gameName)
	if err != nil {
		return err
	}

	slot, err := p.scheduler.VodSlot(*stream.EndedAt)
	if err != nil {
		return err
	}

	downloadId := download.ID
	upload := &entities.Upload{
		StreamId:           stream.ID,
		VodDownloadId:      &downloadId,
		ContentType:        constant.ContentTypeVod,
		Title:              truncateTitle(stream.Title),
		RemoteObject:       download.RemoteObject,
		Status:             constant.UploadStatusQueued,
		PrivacyStatus:      constant.PrivacyStatusPrivate,
		ScheduledPublishAt: &slot,
	}

	switch resolution.Status {
	case ResolveStatusCached, ResolveStatusResolved:
		upload.MetadataStatus = constant.MetadataStatusReady
		upload.Description = buildDescription(stream, resolution.Metadata)
		upload.Tags = resolution.Metadata.Tags
	default:
		upload.MetadataStatus = constant.MetadataStatusFailed
		upload.ManualReviewRequired = true
		upload.Description = fmt.Sprintf("Full stream from %s.", stream.StartedAt.Format("January 2, 2006"))
		if err := p.notifier.Send(ctx,
			"Game metadata unresolved",
			fmt.Sprintf("No metadata found for %q (stream %s). The upload is held for manual review.", gameName, stream.TwitchStreamId),
		); err != nil {
			zerolog.Ctx(ctx).Error().Err(err).Msg("failed to dispatch operator notification")
		}
	}

	if err := p.repo.CreateUpload(ctx, upload); err != nil {
		return err
	}

	zerolog.Ctx(ctx).Info().
		Str("stream_id", stream.ID.String()).
		Str("metadata_status", string(upload.MetadataStatus)).
		Time("scheduled_publish_at", slot).
		Msg("upload record created")
	return nil
}

// processClipsJobs fetches highlight clips for ended streams, converts them
// to the vertical format and queues them as shorts.
func (p *pipeline) processClipsJobs(ctx context.Context) {
	jobs, err := p.repo.ListRunnableJobs(ctx)
	if err != nil {
		zerolog.Ctx(ctx).Error().Err(err).Msg("failed to list runnable jobs")
		return
	}

	for _, job := range jobs {
		if job.JobType != constant.JobTypeClipsFetch {
			continue
		}
		if err := p.runClipsJob(ctx, job); err != nil {
			zerolog.Ctx(ctx).Error().Err(err).Str("job_id", job.ID.String()).Msg("clips job failed")
		}
	}
}

func (p *pipeline) runClipsJob(ctx context.Context, job *entities.ProcessingJob) (err error) {
	claimed, err := p.repo.ClaimJob(ctx, job.ID)
	if err != nil {
		return err
	}
	if !claimed {
		return nil
	}

	defer func() {
		if err == nil {
			return
		}
		current, findErr := p.repo.FindJob(ctx, job.StreamId, job.JobType)
		if findErr != nil || current == nil {
			zerolog.Ctx(ctx).Error().Err(findErr).Msg("failed to reload job")
			return
		}
		requeue := !errors.Is(err, ErrNonRetryable) && current.Attempts < current.MaxAttempts
		if updateErr := p.repo.MarkJobFailed(ctx, job.ID, err.Error(), requeue); updateErr != nil {
			zerolog.Ctx(ctx).Error().Err(updateErr).Msg("failed to record job failure")
		}
	}()

	stream, err := p.repo.FindStreamById(ctx, job.StreamId)
	if err != nil {
		return err
	}
	if stream.EndedAt == nil {
		// Still live; leave the job pending for a later scan.
		return p.repo.MarkJobFailed(ctx, job.ID, "stream not ended yet", true)
	}

	clips, err := p.clips.ListClips(ctx, stream.StartedAt, *stream.EndedAt)
	if err != nil {
		return err
	}

	if len(clips) == 0 {
		return p.repo.MarkJobCompleted(ctx, job.ID)
	}

	base := stream.EndedAt.AddDate(0, 0, 1)
	slots := p.scheduler.ShortsSlots(base, len(clips))

	workDir := filepath.Join(p.cfg.WorkDir, job.ID.String())
	if err = os.MkdirAll(workDir, os.ModePerm); err != nil {
		return errors.Join(ErrNonRetryable, err)
	}
	defer os.RemoveAll(workDir)

	for i, clip := range clips {
		if clipErr := p.processClip(ctx, stream, clip, slots[i], workDir); clipErr != nil {
			zerolog.Ctx(ctx).Error().Err(clipErr).Str("clip_id", clip.ClipId).Msg("failed to process clip")
		}
	}

	return p.repo.MarkJobCompleted(ctx, job.ID)
}

func (p *pipeline) processClip(ctx context.Context, stream *entities.Stream, clip dto.ClipSummary, slot ScheduleSlot, workDir string) error {
	rawPath := filepath.Join(workDir, clip.ClipId+".mp4")
	if err := p.media.DownloadVod(ctx, clip.URL, rawPath); err != nil {
		return err
	}

	verticalPath := filepath.Join(workDir, clip.ClipId+"_vertical.mp4")
	if err := p.media.ConvertToVertical(ctx, rawPath, verticalPath); err != nil {
		return err
	}

	objectName := "shorts/" + clip.ClipId + ".mp4"
	if err := p.store.Upload(ctx, verticalPath, objectName); err != nil {
		return err
	}

	slotTime := slot.Time
	upload := &entities.Upload{
		StreamId:           stream.ID,
		ContentType:        constant.ContentTypeShort,
		Title:              truncateTitle(clip.Title + " #shorts"),
		Description:        fmt.Sprintf("Highlight from the %s stream.", stream.StartedAt.Format("January 2, 2006")),
		RemoteObject:       &objectName,
		Status:             constant.UploadStatusQueued,
		PrivacyStatus:      constant.PrivacyStatusPrivate,
		MetadataStatus:     constant.MetadataStatusReady,
		ScheduledPublishAt: &slotTime,
	}
	return p.repo.CreateUpload(ctx, upload)
}

// processUploads pushes queued content to the video platform as private;
// the publish scan flips it public later.
func (p *pipeline) processUploads(ctx context.Context) {
	uploads, err := p.repo.ListQueuedUploads(ctx)
	if err != nil {
		zerolog.Ctx(ctx).Error().Err(err).Msg("failed to list queued uploads")
		return
	}

	for _, upload := range uploads {
		if err := p.runUpload(ctx, upload); err != nil {
			zerolog.Ctx(ctx).Error().Err(err).Str("upload_id", upload.ID.String()).Msg("upload failed")
		}
	}
}

func (p *pipeline) runUpload(ctx context.Context, upload *entities.Upload) (err error) {
	if upload.RemoteObject == nil {
		return p.repo.MarkUploadFailed(ctx, upload.ID, "no source object recorded")
	}

	claimed, err := p.repo.ClaimUpload(ctx, upload.ID)
	if err != nil {
		return err
	}
	if !claimed {
		return nil
	}

	defer func() {
		if err == nil {
			return
		}
		if updateErr := p.repo.MarkUploadFailed(ctx, upload.ID, err.Error()); updateErr != nil {
			zerolog.Ctx(ctx).Error().Err(updateErr).Msg("failed to mark upload failed")
		}
	}()

	workDir := filepath.Join(p.cfg.WorkDir, upload.ID.String())
	if err = os.MkdirAll(workDir, os.ModePerm); err != nil {
		return errors.Join(ErrNonRetryable, err)
	}
	defer os.RemoveAll(workDir)

	localPath := filepath.Join(workDir, filepath.Base(*upload.RemoteObject))
	if err = p.store.Download(ctx, *upload.RemoteObject, localPath); err != nil {
		return err
	}

	metadata := dto.UploadMetadata{
		Title:         upload.Title,
		Description:   upload.Description,
		Tags:          upload.Tags,
		CategoryId:    p.youtube.CategoryId,
		PrivacyStatus: string(constant.PrivacyStatusPrivate),
	}
	videoId, err := p.uploader.Upload(ctx, localPath, metadata)
	if err != nil {
		return err
	}

	if upload.ContentType == constant.ContentTypeVod {
		if thumbPath, thumbErr := p.media.ExtractThumbnail(ctx, localPath, "00:05:00"); thumbErr != nil {
			zerolog.Ctx(ctx).Warn().Err(thumbErr).Msg("thumbnail extraction failed")
		} else if thumbErr = p.uploader.SetThumbnail(ctx, videoId, thumbPath); thumbErr != nil {
			zerolog.Ctx(ctx).Warn().Err(thumbErr).Msg("thumbnail set failed")
		}
	}

	if err = p.repo.MarkUploadUploaded(ctx, upload.ID, videoId); err != nil {
		return err
	}

	zerolog.Ctx(ctx).Info().
		Str("upload_id", upload.ID.String()).
		Str("video_id", videoId).
		Msg("content uploaded private")
	return nil
}

// truncateTitle enforces the platform's 100-character title limit,
// counting characters rather than bytes so multibyte titles are never cut
// mid-rune.
func truncateTitle(title string) string {
	const maxTitleLen = 100
	runes := []rune(title)
	if len(runes) <= maxTitleLen {
		return title
	}
	return string(runes[:maxTitleLen-3]) + "..."
}

func buildDescription(stream *entities.Stream, metadata *entities.GameMetadata) string {
	desc := fmt.Sprintf("Full stream from %s.\n\nGame: %s", stream.StartedAt.Format("January 2, 2006"), metadata.GameName)
	if metadata.Description != "" {
		desc += "\n\n" + metadata.Description
	}
	return desc
}
