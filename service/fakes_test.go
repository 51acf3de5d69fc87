package service

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"vod-automation/constant"
	"vod-automation/dto"
	"vod-automation/entities"
	"vod-automation/repository"
)

// fakeRepo is an in-memory Repository for service tests. Slices keep
// insertion order so list operations are deterministic.
type fakeRepo struct {
	streams   []*entities.Stream
	downloads []*entities.VodDownload
	metadata  map[string]*entities.GameMetadata
	uploads   []*entities.Upload
	jobs      []*entities.ProcessingJob
}

func newFakeRepo() *fakeRepo {
	return &fakeRepo{metadata: map[string]*entities.GameMetadata{}}
}

func (f *fakeRepo) Transaction(ctx context.Context, callback func(ctx context.Context) error, opts ...*sql.TxOptions) error {
	return callback(ctx)
}

func (f *fakeRepo) GetDB() *gorm.DB { return nil }

func (f *fakeRepo) FindStreamByTwitchId(_ context.Context, twitchStreamId string) (*entities.Stream, error) {
	for _, s := range f.streams {
		if s.TwitchStreamId == twitchStreamId {
			return s, nil
		}
	}
	return nil, nil
}

func (f *fakeRepo) FindStreamByVodId(_ context.Context, vodId string) (*entities.Stream, error) {
	for _, s := range f.streams {
		if s.TwitchVodId != nil && *s.TwitchVodId == vodId {
			return s, nil
		}
	}
	return nil, nil
}

func (f *fakeRepo) FindStreamById(_ context.Context, id uuid.UUID) (*entities.Stream, error) {
	for _, s := range f.streams {
		if s.ID == id {
			return s, nil
		}
	}
	return nil, fmt.Errorf("stream %s not found", id)
}

func (f *fakeRepo) CreateStream(_ context.Context, stream *entities.Stream) error {
	for _, s := range f.streams {
		if s.TwitchStreamId == stream.TwitchStreamId {
			return fmt.Errorf("duplicate twitch_stream_id %q", stream.TwitchStreamId)
		}
	}
	if stream.ID == uuid.Nil {
		stream.ID = uuid.New()
	}
	f.streams = append(f.streams, stream)
	return nil
}

func (f *fakeRepo) UpdateStreamWhileLive(ctx context.Context, id uuid.UUID, title, gameId, gameName string) error {
	s, err := f.FindStreamById(ctx, id)
	if err != nil {
		return err
	}
	s.Title = title
	if gameId != "" {
		s.GameId = &gameId
	}
	if gameName != "" {
		s.GameName = &gameName
	}
	return nil
}

func (f *fakeRepo) MarkStreamEnded(ctx context.Context, id uuid.UUID, endedAt time.Time, durationSeconds int) error {
	s, err := f.FindStreamById(ctx, id)
	if err != nil {
		return err
	}
	s.Status = constant.StreamStatusEnded
	s.EndedAt = &endedAt
	s.DurationSeconds = &durationSeconds
	return nil
}

func (f *fakeRepo) AttachVodToStream(ctx context.Context, id uuid.UUID, vodId string) error {
	s, err := f.FindStreamById(ctx, id)
	if err != nil {
		return err
	}
	s.TwitchVodId = &vodId
	s.Status = constant.StreamStatusVodAvailable
	return nil
}

func (f *fakeRepo) ListLiveStreams(_ context.Context) ([]*entities.Stream, error) {
	var out []*entities.Stream
	for _, s := range f.streams {
		if s.Status == constant.StreamStatusLive {
			out = append(out, s)
		}
	}
	return out, nil
}

func (f *fakeRepo) ListEndedStreamsWithoutVod(_ context.Context) ([]*entities.Stream, error) {
	var out []*entities.Stream
	for _, s := range f.streams {
		if s.Status == constant.StreamStatusEnded && s.TwitchVodId == nil {
			out = append(out, s)
		}
	}
	return out, nil
}

func (f *fakeRepo) CreateDownload(_ context.Context, download *entities.VodDownload) error {
	if download.ID == uuid.Nil {
		download.ID = uuid.New()
	}
	f.downloads = append(f.downloads, download)
	return nil
}

func (f *fakeRepo) FindDownloadById(_ context.Context, id uuid.UUID) (*entities.VodDownload, error) {
	for _, d := range f.downloads {
		if d.ID == id {
			return d, nil
		}
	}
	return nil, fmt.Errorf("download %s not found", id)
}

func (f *fakeRepo) HasActiveDownload(_ context.Context, streamId uuid.UUID) (bool, error) {
	for _, d := range f.downloads {
		if d.StreamId == streamId && !d.Status.Terminal() {
			return true, nil
		}
	}
	return false, nil
}

func (f *fakeRepo) HasAnyDownload(_ context.Context, streamId uuid.UUID) (bool, error) {
	for _, d := range f.downloads {
		if d.StreamId == streamId {
			return true, nil
		}
	}
	return false, nil
}

func (f *fakeRepo) ListPendingDownloads(_ context.Context) ([]*entities.VodDownload, error) {
	var out []*entities.VodDownload
	for _, d := range f.downloads {
		if d.Status == constant.DownloadStatusPending {
			out = append(out, d)
		}
	}
	return out, nil
}

func (f *fakeRepo) ListCompletedDownloadsWithoutUpload(_ context.Context) ([]*entities.VodDownload, error) {
	var out []*entities.VodDownload
	for _, d := range f.downloads {
		if d.Status != constant.DownloadStatusCompleted {
			continue
		}
		linked := false
		for _, u := range f.uploads {
			if u.VodDownloadId != nil && *u.VodDownloadId == d.ID {
				linked = true
				break
			}
		}
		if !linked {
			out = append(out, d)
		}
	}
	return out, nil
}

func (f *fakeRepo) ClaimDownload(ctx context.Context, id uuid.UUID) (bool, error) {
	d, err := f.FindDownloadById(ctx, id)
	if err != nil {
		return false, err
	}
	if d.Status != constant.DownloadStatusPending {
		return false, nil
	}
	d.Status = constant.DownloadStatusDownloading
	d.Attempts++
	return true, nil
}

func (f *fakeRepo) MarkDownloadCompleted(ctx context.Context, id uuid.UUID, remoteObject string, fileSizeBytes int64) error {
	d, err := f.FindDownloadById(ctx, id)
	if err != nil {
		return err
	}
	d.Status = constant.DownloadStatusCompleted
	d.RemoteObject = &remoteObject
	d.FileSizeBytes = &fileSizeBytes
	return nil
}

func (f *fakeRepo) MarkDownloadFailed(ctx context.Context, id uuid.UUID, errorMessage string) error {
	d, err := f.FindDownloadById(ctx, id)
	if err != nil {
		return err
	}
	d.Status = constant.DownloadStatusFailed
	d.ErrorMessage = &errorMessage
	return nil
}

func (f *fakeRepo) RequeueDownload(ctx context.Context, id uuid.UUID) (bool, error) {
	d, err := f.FindDownloadById(ctx, id)
	if err != nil {
		return false, err
	}
	if d.Status != constant.DownloadStatusFailed {
		return false, nil
	}
	d.Status = constant.DownloadStatusPending
	d.ErrorMessage = nil
	return true, nil
}

func (f *fakeRepo) ResetDownloadToPending(ctx context.Context, id uuid.UUID) error {
	d, err := f.FindDownloadById(ctx, id)
	if err != nil {
		return err
	}
	d.Status = constant.DownloadStatusPending
	return nil
}

func (f *fakeRepo) GetGameMetadata(_ context.Context, gameName string) (*entities.GameMetadata, error) {
	return f.metadata[gameName], nil
}

func (f *fakeRepo) UpsertGameMetadata(_ context.Context, metadata *entities.GameMetadata) error {
	f.metadata[metadata.GameName] = metadata
	return nil
}

func (f *fakeRepo) CreateUpload(_ context.Context, upload *entities.Upload) error {
	if upload.ID == uuid.Nil {
		upload.ID = uuid.New()
	}
	f.uploads = append(f.uploads, upload)
	return nil
}

func (f *fakeRepo) FindUploadById(_ context.Context, id uuid.UUID) (*entities.Upload, error) {
	for _, u := range f.uploads {
		if u.ID == id {
			return u, nil
		}
	}
	return nil, fmt.Errorf("upload %s not found", id)
}

func (f *fakeRepo) ListQueuedUploads(_ context.Context) ([]*entities.Upload, error) {
	var out []*entities.Upload
	for _, u := range f.uploads {
		if u.Status == constant.UploadStatusQueued {
			out = append(out, u)
		}
	}
	return out, nil
}

func (f *fakeRepo) ClaimUpload(ctx context.Context, id uuid.UUID) (bool, error) {
	u, err := f.FindUploadById(ctx, id)
	if err != nil {
		return false, err
	}
	if u.Status != constant.UploadStatusQueued {
		return false, nil
	}
	u.Status = constant.UploadStatusUploading
	return true, nil
}

func (f *fakeRepo) MarkUploadUploaded(ctx context.Context, id uuid.UUID, youtubeVideoId string) error {
	u, err := f.FindUploadById(ctx, id)
	if err != nil {
		return err
	}
	u.Status = constant.UploadStatusUploaded
	u.YoutubeVideoId = &youtubeVideoId
	return nil
}

func (f *fakeRepo) MarkUploadFailed(ctx context.Context, id uuid.UUID, errorMessage string) error {
	u, err := f.FindUploadById(ctx, id)
	if err != nil {
		return err
	}
	u.Status = constant.UploadStatusFailed
	u.ErrorMessage = &errorMessage
	return nil
}

func (f *fakeRepo) ListUploadsDueForPublish(_ context.Context, windowStart, windowEnd time.Time) ([]*entities.Upload, error) {
	var out []*entities.Upload
	for _, u := range f.uploads {
		if u.Status != constant.UploadStatusUploaded ||
			u.PrivacyStatus != constant.PrivacyStatusPrivate ||
			u.MetadataStatus != constant.MetadataStatusReady ||
			u.ManualReviewRequired ||
			u.ScheduledPublishAt == nil {
			continue
		}
		at := *u.ScheduledPublishAt
		if at.Before(windowStart) || at.After(windowEnd) {
			continue
		}
		out = append(out, u)
	}
	return out, nil
}

func (f *fakeRepo) MarkUploadPublished(ctx context.Context, id uuid.UUID, publishedAt time.Time) error {
	u, err := f.FindUploadById(ctx, id)
	if err != nil {
		return err
	}
	u.PrivacyStatus = constant.PrivacyStatusPublic
	u.PublishedAt = &publishedAt
	return nil
}

func (f *fakeRepo) ListUpcomingPublishes(_ context.Context, until time.Time) ([]*entities.Upload, error) {
	var out []*entities.Upload
	for _, u := range f.uploads {
		if u.PrivacyStatus == constant.PrivacyStatusPrivate &&
			u.ScheduledPublishAt != nil && u.ScheduledPublishAt.Before(until) {
			out = append(out, u)
		}
	}
	return out, nil
}

func (f *fakeRepo) CreateJobIfAbsent(_ context.Context, streamId uuid.UUID, jobType constant.JobType, maxAttempts int) error {
	for _, j := range f.jobs {
		if j.StreamId == streamId && j.JobType == jobType {
			return nil
		}
	}
	f.jobs = append(f.jobs, &entities.ProcessingJob{
		ID:          uuid.New(),
		StreamId:    streamId,
		JobType:     jobType,
		Status:      constant.JobStatusPending,
		MaxAttempts: maxAttempts,
	})
	return nil
}

func (f *fakeRepo) FindJob(_ context.Context, streamId uuid.UUID, jobType constant.JobType) (*entities.ProcessingJob, error) {
	for _, j := range f.jobs {
		if j.StreamId == streamId && j.JobType == jobType {
			return j, nil
		}
	}
	return nil, nil
}

func (f *fakeRepo) ListRunnableJobs(_ context.Context) ([]*entities.ProcessingJob, error) {
	var out []*entities.ProcessingJob
	for _, j := range f.jobs {
		if j.Status == constant.JobStatusPending && j.Attempts < j.MaxAttempts {
			out = append(out, j)
		}
	}
	return out, nil
}

func (f *fakeRepo) ClaimJob(_ context.Context, id uuid.UUID) (bool, error) {
	for _, j := range f.jobs {
		if j.ID == id {
			if j.Status != constant.JobStatusPending {
				return false, nil
			}
			j.Status = constant.JobStatusProcessing
			j.Attempts++
			return true, nil
		}
	}
	return false, fmt.Errorf("job %s not found", id)
}

func (f *fakeRepo) MarkJobCompleted(_ context.Context, id uuid.UUID) error {
	for _, j := range f.jobs {
		if j.ID == id {
			j.Status = constant.JobStatusCompleted
			return nil
		}
	}
	return fmt.Errorf("job %s not found", id)
}

func (f *fakeRepo) MarkJobFailed(_ context.Context, id uuid.UUID, errorMessage string, requeue bool) error {
	for _, j := range f.jobs {
		if j.ID == id {
			j.ErrorMessage = &errorMessage
			if requeue {
				j.Status = constant.JobStatusPending
			} else {
				j.Status = constant.JobStatusFailed
			}
			return nil
		}
	}
	return fmt.Errorf("job %s not found", id)
}

func (f *fakeRepo) GetStatusCounts(_ context.Context) (*repository.StatusCounts, error) {
	counts := &repository.StatusCounts{}
	for _, s := range f.streams {
		if s.Status == constant.StreamStatusLive {
			counts.LiveStreams++
		}
	}
	for _, d := range f.downloads {
		switch d.Status {
		case constant.DownloadStatusPending:
			counts.PendingDownloads++
		case constant.DownloadStatusFailed:
			counts.FailedDownloads++
		}
	}
	for _, u := range f.uploads {
		if u.Status == constant.UploadStatusQueued {
			counts.QueuedUploads++
		}
	}
	for _, j := range f.jobs {
		if j.Status == constant.JobStatusPending {
			counts.PendingJobs++
		}
	}
	return counts, nil
}

var _ repository.Repository = (*fakeRepo)(nil)

// fakeBroadcaster returns a fixed current broadcast.
type fakeBroadcaster struct {
	broadcast *dto.Broadcast
	err       error
}

func (f *fakeBroadcaster) GetCurrentBroadcast(context.Context) (*dto.Broadcast, error) {
	return f.broadcast, f.err
}

// fakeVodLister returns a fixed VOD listing.
type fakeVodLister struct {
	vods []dto.VodSummary
}

func (f *fakeVodLister) ListRecentVods(context.Context, time.Duration) ([]dto.VodSummary, error) {
	return f.vods, nil
}

// fakeCatalog is the primary lookup source.
type fakeCatalog struct {
	candidate *dto.GameCandidate
	err       error
	calls     int
}

func (f *fakeCatalog) LookupGame(context.Context, string) (*dto.GameCandidate, error) {
	f.calls++
	return f.candidate, f.err
}

// fakeProvider is a secondary metadata source.
type fakeProvider struct {
	name       string
	candidates []dto.GameCandidate
	err        error
	calls      int
}

func (f *fakeProvider) Name() string { return f.name }

func (f *fakeProvider) Search(context.Context, string) ([]dto.GameCandidate, error) {
	f.calls++
	return f.candidates, f.err
}

// fakeClipLister returns fixed clips.
type fakeClipLister struct {
	clips []dto.ClipSummary
}

func (f *fakeClipLister) ListClips(context.Context, time.Time, time.Time) ([]dto.ClipSummary, error) {
	return f.clips, nil
}

// fakeUploader records upload and privacy calls.
type fakeUploader struct {
	uploadErr    error
	privacyErr   error
	uploaded     []string
	metadata     []dto.UploadMetadata
	published    []string
	nextVideoId  string
	videoCounter int
}

func (f *fakeUploader) Upload(_ context.Context, filePath string, metadata dto.UploadMetadata) (string, error) {
	if f.uploadErr != nil {
		return "", f.uploadErr
	}
	f.videoCounter++
	id := f.nextVideoId
	if id == "" {
		id = fmt.Sprintf("yt-%d", f.videoCounter)
	}
	f.uploaded = append(f.uploaded, filePath)
	f.metadata = append(f.metadata, metadata)
	return id, nil
}

func (f *fakeUploader) SetPrivacy(_ context.Context, videoId, privacyStatus string) error {
	if f.privacyErr != nil {
		return f.privacyErr
	}
	f.published = append(f.published, videoId+":"+privacyStatus)
	return nil
}

func (f *fakeUploader) SetThumbnail(context.Context, string, string) error { return nil }

// fakeMedia writes files of a configurable size instead of shelling out.
type fakeMedia struct {
	fileSize    int64
	downloadErr error
}

func (f *fakeMedia) DownloadVod(_ context.Context, _ string, outputPath string) error {
	if f.downloadErr != nil {
		return f.downloadErr
	}
	// Truncate keeps multi-gigabyte test files sparse.
	file, err := os.Create(outputPath)
	if err != nil {
		return err
	}
	defer file.Close()
	return file.Truncate(f.fileSize)
}

func (f *fakeMedia) ConvertToVertical(_ context.Context, inputPath, outputPath string) error {
	data, err := os.ReadFile(inputPath)
	if err != nil {
		return err
	}
	return os.WriteFile(outputPath, data, 0o644)
}

func (f *fakeMedia) ExtractThumbnail(_ context.Context, videoPath, _ string) (string, error) {
	thumbPath := videoPath + "_thumb.jpg"
	return thumbPath, os.WriteFile(thumbPath, []byte("jpg"), 0o644)
}

// fakeStore keeps uploaded objects in memory.
type fakeStore struct {
	objects map[string][]byte
}

func newFakeStore() *fakeStore {
	return &fakeStore{objects: map[string][]byte{}}
}

func (f *fakeStore) Upload(_ context.Context, localPath, objectName string) error {
	data, err := os.ReadFile(localPath)
	if err != nil {
		return err
	}
	f.objects[objectName] = data
	return nil
}

func (f *fakeStore) Download(_ context.Context, objectName, localPath string) error {
	data, ok := f.objects[objectName]
	if !ok {
		return fmt.Errorf("object %q not found", objectName)
	}
	return os.WriteFile(localPath, data, 0o644)
}

func (f *fakeStore) Remove(_ context.Context, objectName string) error {
	delete(f.objects, objectName)
	return nil
}

// fakeNotifier records dispatched alerts.
type fakeNotifier struct {
	subjects []string
}

func (f *fakeNotifier) Send(_ context.Context, subject, _ string) error {
	f.subjects = append(f.subjects, subject)
	return nil
}
