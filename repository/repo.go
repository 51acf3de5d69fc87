package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"vod-automation/constant"
	"vod-automation/entities"
)

// StatusCounts backs the /status endpoint.
type StatusCounts struct {
	LiveStreams      int64 `json:"live_streams"`
	PendingDownloads int64 `json:"pending_downloads"`
	FailedDownloads  int64 `json:"failed_downloads"`
	QueuedUploads    int64 `json:"queued_uploads"`
	PendingJobs      int64 `json:"pending_jobs"`
}

type Repository interface {
	Transaction(ctx context.Context, callback func(ctx context.Context) error, opts ...*sql.TxOptions) error
	GetDB() *gorm.DB

	FindStreamByTwitchId(ctx context.Context, twitchStreamId string) (*entities.Stream, error)
	FindStreamByVodId(ctx context.Context, vodId string) (*entities.Stream, error)
	FindStreamById(ctx context.Context, id uuid.UUID) (*entities.Stream, error)
	CreateStream(ctx context.Context, stream *entities.Stream) error
	UpdateStreamWhileLive(ctx context.Context, id uuid.UUID, title, gameId, gameName string) error
	MarkStreamEnded(ctx context.Context, id uuid.UUID, endedAt time.Time, durationSeconds int) error
	AttachVodToStream(ctx context.Context, id uuid.UUID, vodId string) error
	ListLiveStreams(ctx context.Context) ([]*entities.Stream, error)
	ListEndedStreamsWithoutVod(ctx context.Context) ([]*entities.Stream, error)

	CreateDownload(ctx context.Context, download *entities.VodDownload) error
	FindDownloadById(ctx context.Context, id uuid.UUID) (*entities.VodDownload, error)
	HasActiveDownload(ctx context.Context, streamId uuid.UUID) (bool, error)
	HasAnyDownload(ctx context.Context, streamId uuid.UUID) (bool, error)
	ListPendingDownloads(ctx context.Context) ([]*entities.VodDownload, error)
	ListCompletedDownloadsWithoutUpload(ctx context.Context) ([]*entities.VodDownload, error)
	ClaimDownload(ctx context.Context, id uuid.UUID) (bool, error)
	MarkDownloadCompleted(ctx context.Context, id uuid.UUID, remoteObject string, fileSizeBytes int64) error
	MarkDownloadFailed(ctx context.Context, id uuid.UUID, errorMessage string) error
	RequeueDownload(ctx context.Context, id uuid.UUID) (bool, error)
	ResetDownloadToPending(ctx context.Context, id uuid.UUID) error

	GetGameMetadata(ctx context.Context, gameName string) (*entities.GameMetadata, error)
	UpsertGameMetadata(ctx context.Context, metadata *entities.GameMetadata) error

	CreateUpload(ctx context.Context, upload *entities.Upload) error
	FindUploadById(ctx context.Context, id uuid.UUID) (*entities.Upload, error)
	ListQueuedUploads(ctx context.Context) ([]*entities.Upload, error)
	ClaimUpload(ctx context.Context, id uuid.UUID) (bool, error)
	MarkUploadUploaded(ctx context.Context, id uuid.UUID, youtubeVideoId string) error
	MarkUploadFailed(ctx context.Context, id uuid.UUID, errorMessage string) error
	ListUploadsDueForPublish(ctx context.Context, windowStart, windowEnd time.Time) ([]*entities.Upload, error)
	MarkUploadPublished(ctx context.Context, id uuid.UUID, publishedAt time.Time) error
	ListUpcomingPublishes(ctx context.Context, until time.Time) ([]*entities.Upload, error)

	CreateJobIfAbsent(ctx context.Context, streamId uuid.UUID, jobType constant.JobType, maxAttempts int) error
	FindJob(ctx context.Context, streamId uuid.UUID, jobType constant.JobType) (*entities.ProcessingJob, error)
	ListRunnableJobs(ctx context.Context) ([]*entities.ProcessingJob, error)
	ClaimJob(ctx context.Context, id uuid.UUID) (bool, error)
	MarkJobCompleted(ctx context.Context, id uuid.UUID) error
	MarkJobFailed(ctx context.Context, id uuid.UUID, errorMessage string, requeue bool) error

	GetStatusCounts(ctx context.Context) (*StatusCounts, error)
}

type repo struct {
	db *gorm.DB
}

func NewRepo(db *sql.DB) Repository {
	gormDB, _ := gorm.Open(postgres.New(postgres.Config{
		Conn: db}),
		&gorm.Config{
			Logger: logger.Default.LogMode(logger.Warn),
		},
	)
	return &repo{
		db: gormDB,
	}
}

func (r *repo) GetDB() *gorm.DB {
	return r.db
}

func (r *repo) Transaction(ctx context.Context, callback func(ctx context.Context) error, opts ...*sql.TxOptions) error {
	return r.GetDB().Transaction(func(tx *gorm.DB) error {
		return callback(ctx)
	}, opts...)
}

func (r *repo) FindStreamByTwitchId(ctx context.Context, twitchStreamId string) (*entities.Stream, error) {
	stream := &entities.Stream{}
	err := r.GetDB().WithContext(ctx).First(stream, "twitch_stream_id = ?", twitchStreamId).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return stream, nil
}

func (r *repo) FindStreamByVodId(ctx context.Context, vodId string) (*entities.Stream, error) {
	stream := &entities.Stream{}
	err := r.GetDB().WithContext(ctx).First(stream, "twitch_vod_id = ?", vodId).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return stream, nil
}

func (r *repo) FindStreamById(ctx context.Context, id uuid.UUID) (*entities.Stream, error) {
	stream := &entities.Stream{}
	err := r.GetDB().WithContext(ctx).First(stream, "id = ?", id).Error
	if err != nil {
		return nil, err
	}
	return stream, nil
}

func (r *repo) CreateStream(ctx context.Context, stream *entities.Stream) error {
	return r.GetDB().WithContext(ctx).Create(stream).Error
}

func (r *repo) UpdateStreamWhileLive(ctx context.Context, id uuid.UUID, title, gameId, gameName string) error {
	updates := map[string]interface{}{
		"title":      title,
		"updated_at": time.Now().UTC(),
	}
	if gameId != "" {
		updates["game_id"] = gameId
	}
	if gameName != "" {
		updates["game_name"] = gameName
	}
	return r.GetDB().WithContext(ctx).Model(&entities.Stream{}).
		Where("id = ? AND status = ?", id, constant.StreamStatusLive).
		Updates(updates).Error
}

func (r *repo) MarkStreamEnded(ctx context.Context, id uuid.UUID, endedAt time.Time, durationSeconds int) error {
	return r.GetDB().WithContext(ctx).Model(&entities.Stream{}).
		Where("id = ? AND status = ?", id, constant.StreamStatusLive).
		Updates(map[string]interface{}{
			"status":           constant.StreamStatusEnded,
			"ended_at":         endedAt,
			"duration_seconds": durationSeconds,
			"updated_at":       time.Now().UTC(),
		}).Error
}

func (r *repo) AttachVodToStream(ctx context.Context, id uuid.UUID, vodId string) error {
	return r.GetDB().WithContext(ctx).Model(&entities.Stream{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"twitch_vod_id": vodId,
			"status":        constant.StreamStatusVodAvailable,
			"updated_at":    time.Now().UTC(),
		}).Error
}

func (r *repo) ListLiveStreams(ctx context.Context) ([]*entities.Stream, error) {
	var streams []*entities.Stream
	err := r.GetDB().WithContext(ctx).
		Where("status = ?", constant.StreamStatusLive).
		Find(&streams).Error
	if err != nil {
		return nil, err
	}
	return streams, nil
}

func (r *repo) ListEndedStreamsWithoutVod(ctx context.Context) ([]*entities.Stream, error) {
	var streams []*entities.Stream
	err := r.GetDB().WithContext(ctx).
		Where("status = ? AND twitch_vod_id IS NULL", constant.StreamStatusEnded).
		Order("started_at ASC").
		Find(&streams).Error
	if err != nil {
		return nil, err
	}
	return streams, nil
}

func (r *repo) CreateDownload(ctx context.Context, download *entities.VodDownload) error {
	return r.GetDB().WithContext(ctx).Create(download).Error
}

func (r *repo) FindDownloadById(ctx context.Context, id uuid.UUID) (*entities.VodDownload, error) {
	download := &entities.VodDownload{}
	err := r.GetDB().WithContext(ctx).First(download, "id = ?", id).Error
	if err != nil {
		return nil, err
	}
	return download, nil
}

func (r *repo) HasActiveDownload(ctx context.Context, streamId uuid.UUID) (bool, error) {
	var count int64
	err := r.GetDB().WithContext(ctx).Model(&entities.VodDownload{}).
		Where("stream_id = ? AND status IN ?", streamId,
			[]constant.DownloadStatus{constant.DownloadStatusPending, constant.DownloadStatusDownloading}).
		Count(&count).Error
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

func (r *repo) HasAnyDownload(ctx context.Context, streamId uuid.UUID) (bool, error) {
	var count int64
	err := r.GetDB().WithContext(ctx).Model(&entities.VodDownload{}).
		Where("stream_id = ?", streamId).
		Count(&count).Error
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

func (r *repo) ListPendingDownloads(ctx context.Context) ([]*entities.VodDownload, error) {
	var downloads []*entities.VodDownload
	err := r.GetDB().WithContext(ctx).
		Where("status = ?", constant.DownloadStatusPending).
		Order("created_at ASC").
		Find(&downloads).Error
	if err != nil {
		return nil, err
	}
	return downloads, nil
}

func (r *repo) ListCompletedDownloadsWithoutUpload(ctx context.Context) ([]*entities.VodDownload, error) {
	var downloads []*entities.VodDownload
	err := r.GetDB().WithContext(ctx).
		Where("status = ?", constant.DownloadStatusCompleted).
		Where("id NOT IN (SELECT vod_download_id FROM uploads WHERE vod_download_id IS NOT NULL)").
		Order("created_at ASC").
		Find(&downloads).Error
	if err != nil {
		return nil, err
	}
	return downloads, nil
}

// ClaimDownload transitions pending -> downloading only if the record is
// still pending, so a concurrent scan cannot take the same item.
func (r *repo) ClaimDownload(ctx context.Context, id uuid.UUID) (bool, error) {
	tx := r.GetDB().WithContext(ctx).Model(&entities.VodDownload{}).
		Where("id = ? AND status = ?", id, constant.DownloadStatusPending).
		Updates(map[string]interface{}{
			"status":     constant.DownloadStatusDownloading,
			"attempts":   gorm.Expr("attempts + 1"),
			"updated_at": time.Now().UTC(),
		})
	if tx.Error != nil {
		return false, tx.Error
	}
	return tx.RowsAffected == 1, nil
}

func (r *repo) MarkDownloadCompleted(ctx context.Context, id uuid.UUID, remoteObject string, fileSizeBytes int64) error {
	return r.GetDB().WithContext(ctx).Model(&entities.VodDownload{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"status":          constant.DownloadStatusCompleted,
			"remote_object":   remoteObject,
			"file_size_bytes": fileSizeBytes,
			"updated_at":      time.Now().UTC(),
		}).Error
}

func (r *repo) MarkDownloadFailed(ctx context.Context, id uuid.UUID, errorMessage string) error {
	return r.GetDB().WithContext(ctx).Model(&entities.VodDownload{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"status":        constant.DownloadStatusFailed,
			"error_message": errorMessage,
			"updated_at":    time.Now().UTC(),
		}).Error
}

// ResetDownloadToPending rolls a claimed download back for a later attempt.
func (r *repo) ResetDownloadToPending(ctx context.Context, id uuid.UUID) error {
	return r.GetDB().WithContext(ctx).Model(&entities.VodDownload{}).
		Where("id = ? AND status = ?", id, constant.DownloadStatusDownloading).
		Updates(map[string]interface{}{
			"status":     constant.DownloadStatusPending,
			"updated_at": time.Now().UTC(),
		}).Error
}

// RequeueDownload is the operator re-trigger path: failed -> pending.
func (r *repo) RequeueDownload(ctx context.Context, id uuid.UUID) (bool, error) {
	tx := r.GetDB().WithContext(ctx).Model(&entities.VodDownload{}).
		Where("id = ? AND status = ?", id, constant.DownloadStatusFailed).
		Updates(map[string]interface{}{
			"status":        constant.DownloadStatusPending,
			"error_message": nil,
			"updated_at":    time.Now().UTC(),
		})
	if tx.Error != nil {
		return false, tx.Error
	}
	return tx.RowsAffected == 1, nil
}

func (r *repo) GetGameMetadata(ctx context.Context, gameName string) (*entities.GameMetadata, error) {
	metadata := &entities.GameMetadata{}
	err := r.GetDB().WithContext(ctx).First(metadata, "game_name = ?", gameName).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return metadata, nil
}

func (r *repo) UpsertGameMetadata(ctx context.Context, metadata *entities.GameMetadata) error {
	existing, err := r.GetGameMetadata(ctx, metadata.GameName)
	if err != nil {
		return err
	}
	if existing == nil {
		return r.GetDB().WithContext(ctx).Create(metadata).Error
	}
	return r.GetDB().WithContext(ctx).Model(&entities.GameMetadata{}).
		Where("game_name = ?", metadata.GameName).
		Updates(map[string]interface{}{
			"source":      metadata.Source,
			"description": metadata.Description,
			"tags":        metadata.Tags,
			"provider_id": metadata.ProviderId,
			"updated_at":  time.Now().UTC(),
		}).Error
}

func (r *repo) CreateUpload(ctx context.Context, upload *entities.Upload) error {
	return r.GetDB().WithContext(ctx).Create(upload).Error
}

func (r *repo) FindUploadById(ctx context.Context, id uuid.UUID) (*entities.Upload, error) {
	upload := &entities.Upload{}
	err := r.GetDB().WithContext(ctx).First(upload, "id = ?", id).Error
	if err != nil {
		return nil, err
	}
	return upload, nil
}

func (r *repo) ListQueuedUploads(ctx context.Context) ([]*entities.Upload, error) {
	var uploads []*entities.Upload
	err := r.GetDB().WithContext(ctx).
		Where("status = ?", constant.UploadStatusQueued).
		Order("created_at ASC").
		Find(&uploads).Error
	if err != nil {
		return nil, err
	}
	return uploads, nil
}

func (r *repo) ClaimUpload(ctx context.Context, id uuid.UUID) (bool, error) {
	tx := r.GetDB().WithContext(ctx).Model(&entities.Upload{}).
		Where("id = ? AND status = ?", id, constant.UploadStatusQueued).
		Updates(map[string]interface{}{
			"status":     constant.UploadStatusUploading,
			"updated_at": time.Now().UTC(),
		})
	if tx.Error != nil {
		return false, tx.Error
	}
	return tx.RowsAffected == 1, nil
}

func (r *repo) MarkUploadUploaded(ctx context.Context, id uuid.UUID, youtubeVideoId string) error {
	return r.GetDB().WithContext(ctx).Model(&entities.Upload{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"status":           constant.UploadStatusUploaded,
			"youtube_video_id": youtubeVideoId,
			"updated_at":       time.Now().UTC(),
		}).Error
}

func (r *repo) MarkUploadFailed(ctx context.Context, id uuid.UUID, errorMessage string) error {
	return r.GetDB().WithContext(ctx).Model(&entities.Upload{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"status":        constant.UploadStatusFailed,
			"error_message": errorMessage,
			"updated_at":    time.Now().UTC(),
		}).Error
}

func (r *repo) ListUploadsDueForPublish(ctx context.Context, windowStart, windowEnd time.Time) ([]*entities.Upload, error) {
	var uploads []*entities.Upload
	err := r.GetDB().WithContext(ctx).
		Where("status = ?", constant.UploadStatusUploaded).
		Where("privacy_status = ?", constant.PrivacyStatusPrivate).
		Where("metadata_status = ?", constant.MetadataStatusReady).
		Where("manual_review_required = ?", false).
		Where("scheduled_publish_at >= ? AND scheduled_publish_at <= ?", windowStart, windowEnd).
		Order("scheduled_publish_at ASC").
		Find(&uploads).Error
	if err != nil {
		return nil, err
	}
	return uploads, nil
}

func (r *repo) MarkUploadPublished(ctx context.Context, id uuid.UUID, publishedAt time.Time) error {
	return r.GetDB().WithContext(ctx).Model(&entities.Upload{}).
		Where("id = ? AND privacy_status = ?", id, constant.PrivacyStatusPrivate).
		Updates(map[string]interface{}{
			"privacy_status": constant.PrivacyStatusPublic,
			"published_at":   publishedAt,
			"updated_at":     time.Now().UTC(),
		}).Error
}

func (r *repo) ListUpcomingPublishes(ctx context.Context, until time.Time) ([]*entities.Upload, error) {
	var uploads []*entities.Upload
	err := r.GetDB().WithContext(ctx).
		Where("privacy_status = ?", constant.PrivacyStatusPrivate).
		Where("scheduled_publish_at IS NOT NULL AND scheduled_publish_at <= ?", until).
		Order("scheduled_publish_at ASC").
		Find(&uploads).Error
	if err != nil {
		return nil, err
	}
	return uploads, nil
}

func (r *repo) CreateJobIfAbsent(ctx context.Context, streamId uuid.UUID, jobType constant.JobType, maxAttempts int) error {
	existing, err := r.FindJob(ctx, streamId, jobType)
	if err != nil {
		return err
	}
	if existing != nil {
		return nil
	}
	job := &entities.ProcessingJob{
		StreamId:    streamId,
		JobType:     jobType,
		Status:      constant.JobStatusPending,
		MaxAttempts: maxAttempts,
	}
	return r.GetDB().WithContext(ctx).Create(job).Error
}

func (r *repo) FindJob(ctx context.Context, streamId uuid.UUID, jobType constant.JobType) (*entities.ProcessingJob, error) {
	job := &entities.ProcessingJob{}
	err := r.GetDB().WithContext(ctx).First(job, "stream_id = ? AND job_type = ?", streamId, jobType).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return job, nil
}

func (r *repo) ListRunnableJobs(ctx context.Context) ([]*entities.ProcessingJob, error) {
	var jobs []*entities.ProcessingJob
	err := r.GetDB().WithContext(ctx).
		Where("status = ? AND attempts < max_attempts", constant.JobStatusPending).
		Order("created_at ASC").
		Find(&jobs).Error
	if err != nil {
		return nil, err
	}
	return jobs, nil
}

func (r *repo) ClaimJob(ctx context.Context, id uuid.UUID) (bool, error) {
	tx := r.GetDB().WithContext(ctx).Model(&entities.ProcessingJob{}).
		Where("id = ? AND status = ?", id, constant.JobStatusPending).
		Updates(map[string]interface{}{
			"status":     constant.JobStatusProcessing,
			"attempts":   gorm.Expr("attempts + 1"),
			"started_at": time.Now().UTC(),
			"updated_at": time.Now().UTC(),
		})
	if tx.Error != nil {
		return false, tx.Error
	}
	return tx.RowsAffected == 1, nil
}

func (r *repo) MarkJobCompleted(ctx context.Context, id uuid.UUID) error {
	return r.GetDB().WithContext(ctx).Model(&entities.ProcessingJob{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"status":       constant.JobStatusCompleted,
			"completed_at": time.Now().UTC(),
			"updated_at":   time.Now().UTC(),
		}).Error
}

// MarkJobFailed either re-queues the job for a later attempt or marks it
// terminally failed once its attempts run out.
func (r *repo) MarkJobFailed(ctx context.Context, id uuid.UUID, errorMessage string, requeue bool) error {
	status := constant.JobStatusFailed
	updates := map[string]interface{}{
		"error_message": errorMessage,
		"updated_at":    time.Now().UTC(),
	}
	if requeue {
		status = constant.JobStatusPending
	} else {
		updates["completed_at"] = time.Now().UTC()
	}
	updates["status"] = status
	return r.GetDB().WithContext(ctx).Model(&entities.ProcessingJob{}).
		Where("id = ?", id).
		Updates(updates).Error
}

func (r *repo) GetStatusCounts(ctx context.Context) (*StatusCounts, error) {
	counts := &StatusCounts{}
	db := r.GetDB().WithContext(ctx)

	if err := db.Model(&entities.Stream{}).Where("status = ?", constant.StreamStatusLive).Count(&counts.LiveStreams).Error; err != nil {
		return nil, err
	}
	if err := db.Model(&entities.VodDownload{}).Where("status = ?", constant.DownloadStatusPending).Count(&counts.PendingDownloads).Error; err != nil {
		return nil, err
	}
	if err := db.Model(&entities.VodDownload{}).Where("status = ?", constant.DownloadStatusFailed).Count(&counts.FailedDownloads).Error; err != nil {
		return nil, err
	}
	if err := db.Model(&entities.Upload{}).Where("status = ?", constant.UploadStatusQueued).Count(&counts.QueuedUploads).Error; err != nil {
		return nil, err
	}
	if err := db.Model(&entities.ProcessingJob{}).Where("status <> ?", constant.JobStatusCompleted).Count(&counts.PendingJobs).Error; err != nil {
		return nil, err
	}
	return counts, nil
}
