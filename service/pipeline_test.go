package service

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"testing"
	"time"
	"unicode/utf8"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"vod-automation/config"
	"vod-automation/constant"
	"vod-automation/dto"
	"vod-automation/entities"
	"vod-automation/pkg/games"
)

type pipelineFixture struct {
	repo     *fakeRepo
	clips    *fakeClipLister
	uploader *fakeUploader
	media    *fakeMedia
	store    *fakeStore
	notifier *fakeNotifier
	cfg      config.Pipeline
	pipeline Pipeline
}

func newPipelineFixture(t *testing.T, catalog *fakeCatalog, providers []games.Provider) *pipelineFixture {
	t.Helper()
	cfg := testPipelineConfig()
	cfg.WorkDir = t.TempDir()
	cfg.MinFileSizeMB = 1

	repo := newFakeRepo()
	scheduler, err := NewScheduler(cfg.Timezone)
	require.NoError(t, err)

	f := &pipelineFixture{
		repo:     repo,
		clips:    &fakeClipLister{},
		uploader: &fakeUploader{},
		media:    &fakeMedia{fileSize: 2 * 1024 * 1024},
		store:    newFakeStore(),
		notifier: &fakeNotifier{},
		cfg:      cfg,
	}
	resolver := NewResolver(repo, catalog, providers, 0)
	f.pipeline = NewPipeline(repo, resolver, scheduler, f.clips, f.uploader, f.media, f.store, f.notifier, cfg,
		config.YouTube{CategoryId: "22"})
	return f
}

func seedVodStream(t *testing.T, repo *fakeRepo, vodId string) (*entities.Stream, *entities.VodDownload) {
	t.Helper()
	startedAt := time.Now().UTC().Add(-26 * time.Hour)
	endedAt := startedAt.Add(3 * time.Hour)
	duration := 10800
	game := "Hades"
	stream := &entities.Stream{
		TwitchStreamId:  "vod_" + vodId,
		TwitchVodId:     &vodId,
		Title:           "a long stream title",
		GameName:        &game,
		Status:          constant.StreamStatusVodAvailable,
		StartedAt:       startedAt,
		EndedAt:         &endedAt,
		DurationSeconds: &duration,
	}
	require.NoError(t, repo.CreateStream(context.Background(), stream))

	download := &entities.VodDownload{
		StreamId:    stream.ID,
		Status:      constant.DownloadStatusPending,
		MaxAttempts: 1,
	}
	require.NoError(t, repo.CreateDownload(context.Background(), download))
	return stream, download
}

func hadesCatalogAndProvider() (*fakeCatalog, []games.Provider) {
	catalog := &fakeCatalog{candidate: &dto.GameCandidate{Name: "Hades", ProviderId: "tw-77"}}
	provider := &fakeProvider{name: "igdb", candidates: []dto.GameCandidate{{
		Name:        "Hades",
		Description: "roguelike dungeon crawler",
		Tags:        []string{"roguelike", "action"},
		ProviderId:  "igdb-5",
	}}}
	return catalog, []games.Provider{provider}
}

func TestPipelineFullWalk(t *testing.T) {
	catalog, providers := hadesCatalogAndProvider()
	f := newPipelineFixture(t, catalog, providers)
	_, download := seedVodStream(t, f.repo, "v100")

	require.NoError(t, f.pipeline.Scan(context.Background()))

	// Download landed in object storage.
	require.Equal(t, constant.DownloadStatusCompleted, download.Status)
	require.NotNil(t, download.RemoteObject)
	require.Contains(t, f.store.objects, "vods/v100.mp4")

	// One VOD upload record, scheduled for an overnight slot, pushed to the
	// video platform as private.
	require.Len(t, f.repo.uploads, 1)
	upload := f.repo.uploads[0]
	require.Equal(t, constant.ContentTypeVod, upload.ContentType)
	require.Equal(t, constant.UploadStatusUploaded, upload.Status)
	require.Equal(t, constant.PrivacyStatusPrivate, upload.PrivacyStatus)
	require.Equal(t, constant.MetadataStatusReady, upload.MetadataStatus)
	require.NotNil(t, upload.YoutubeVideoId)
	require.NotNil(t, upload.ScheduledPublishAt)
	require.Equal(t, 3, upload.ScheduledPublishAt.Hour())
	require.Contains(t, upload.Description, "Hades")
}

func TestPipelineRejectsUndersizedFile(t *testing.T) {
	catalog, providers := hadesCatalogAndProvider()
	f := newPipelineFixture(t, catalog, providers)
	f.media.fileSize = 1024 // far below the 1 MB floor
	_, download := seedVodStream(t, f.repo, "v100")

	require.NoError(t, f.pipeline.Scan(context.Background()))

	require.Equal(t, constant.DownloadStatusFailed, download.Status)
	require.NotNil(t, download.ErrorMessage)
	require.Contains(t, *download.ErrorMessage, "too small")
	require.Empty(t, f.store.objects)
	require.Empty(t, f.repo.uploads)
}

func TestPipelineRetryableFailureReturnsToPending(t *testing.T) {
	catalog, providers := hadesCatalogAndProvider()
	f := newPipelineFixture(t, catalog, providers)
	_, download := seedVodStream(t, f.repo, "v100")
	download.MaxAttempts = 3
	f.media.downloadErr = errors.New("network reset")

	require.NoError(t, f.pipeline.Scan(context.Background()))

	require.Equal(t, constant.DownloadStatusPending, download.Status)
	require.Equal(t, 1, download.Attempts)
}

func TestPipelineExhaustedAttemptsFail(t *testing.T) {
	catalog, providers := hadesCatalogAndProvider()
	f := newPipelineFixture(t, catalog, providers)
	_, download := seedVodStream(t, f.repo, "v100")
	f.media.downloadErr = errors.New("network reset")

	require.NoError(t, f.pipeline.Scan(context.Background()))

	require.Equal(t, constant.DownloadStatusFailed, download.Status)
}

func TestPipelineSkipsStreamWithoutVodId(t *testing.T) {
	catalog, providers := hadesCatalogAndProvider()
	f := newPipelineFixture(t, catalog, providers)
	stream, download := seedVodStream(t, f.repo, "v100")
	stream.TwitchVodId = nil

	require.NoError(t, f.pipeline.Scan(context.Background()))

	require.Equal(t, constant.DownloadStatusPending, download.Status)
	require.Zero(t, download.Attempts)
}

func TestPipelineManualReviewOnUnresolvedMetadata(t *testing.T) {
	// Nothing matches anywhere.
	catalog := &fakeCatalog{}
	provider := &fakeProvider{name: "igdb"}
	f := newPipelineFixture(t, catalog, []games.Provider{provider})
	seedVodStream(t, f.repo, "v100")

	require.NoError(t, f.pipeline.Scan(context.Background()))

	require.Len(t, f.repo.uploads, 1)
	upload := f.repo.uploads[0]
	require.Equal(t, constant.MetadataStatusFailed, upload.MetadataStatus)
	require.True(t, upload.ManualReviewRequired)
	// The content still got uploaded private and scheduled; only publishing
	// is held back.
	require.Equal(t, constant.UploadStatusUploaded, upload.Status)
	require.NotNil(t, upload.ScheduledPublishAt)
	require.Len(t, f.notifier.subjects, 1)
}

func TestPipelineClipsBecomeScheduledShorts(t *testing.T) {
	catalog, providers := hadesCatalogAndProvider()
	f := newPipelineFixture(t, catalog, providers)
	stream, _ := seedVodStream(t, f.repo, "v100")
	require.NoError(t, f.repo.CreateJobIfAbsent(context.Background(), stream.ID, constant.JobTypeClipsFetch, 3))

	f.clips.clips = []dto.ClipSummary{
		{ClipId: "clip1", Title: "big play", URL: "https://clips.example/clip1"},
		{ClipId: "clip2", Title: "bigger play", URL: "https://clips.example/clip2"},
	}

	require.NoError(t, f.pipeline.Scan(context.Background()))

	var shorts []*entities.Upload
	for _, u := range f.repo.uploads {
		if u.ContentType == constant.ContentTypeShort {
			shorts = append(shorts, u)
		}
	}
	require.Len(t, shorts, 2)
	for _, short := range shorts {
		require.Contains(t, short.Title, "#shorts")
		require.NotNil(t, short.ScheduledPublishAt)
		require.Equal(t, constant.PrivacyStatusPrivate, short.PrivacyStatus)
	}
	require.Contains(t, f.store.objects, "shorts/clip1.mp4")
	require.Contains(t, f.store.objects, "shorts/clip2.mp4")

	job, err := f.repo.FindJob(context.Background(), stream.ID, constant.JobTypeClipsFetch)
	require.NoError(t, err)
	require.Equal(t, constant.JobStatusCompleted, job.Status)
}

func TestPipelineNoClipsCompletesJob(t *testing.T) {
	catalog, providers := hadesCatalogAndProvider()
	f := newPipelineFixture(t, catalog, providers)
	stream, _ := seedVodStream(t, f.repo, "v100")
	require.NoError(t, f.repo.CreateJobIfAbsent(context.Background(), stream.ID, constant.JobTypeClipsFetch, 3))

	require.NoError(t, f.pipeline.Scan(context.Background()))

	job, err := f.repo.FindJob(context.Background(), stream.ID, constant.JobTypeClipsFetch)
	require.NoError(t, err)
	require.Equal(t, constant.JobStatusCompleted, job.Status)
	for _, u := range f.repo.uploads {
		require.NotEqual(t, constant.ContentTypeShort, u.ContentType)
	}
}

func TestTruncateTitle(t *testing.T) {
	long := make([]byte, 150)
	for i := range long {
		long[i] = 'a'
	}
	out := truncateTitle(string(long))
	require.Len(t, out, 100)
	require.Equal(t, "...", out[97:])

	require.Equal(t, "short", truncateTitle("short"))
}

func TestTruncateTitleMultibyte(t *testing.T) {
	// Emoji-heavy titles must never be cut mid-rune.
	title := strings.Repeat("a", 96) + strings.Repeat("🔥", 20)
	out := truncateTitle(title)

	require.True(t, utf8.ValidString(out))
	runes := []rune(out)
	require.Len(t, runes, 100)
	require.Equal(t, "...", string(runes[97:]))
	require.Equal(t, '🔥', runes[96])

	// Exactly at the limit passes through untouched.
	exact := strings.Repeat("🔥", 100)
	require.Equal(t, exact, truncateTitle(exact))
}

func TestPipelineUploadUsesConfiguredCategory(t *testing.T) {
	catalog, providers := hadesCatalogAndProvider()
	f := newPipelineFixture(t, catalog, providers)
	seedVodStream(t, f.repo, "v100")

	require.NoError(t, f.pipeline.Scan(context.Background()))

	require.Len(t, f.uploader.metadata, 1)
	require.Equal(t, "22", f.uploader.metadata[0].CategoryId)
}

// sizeOnlyStore records object sizes without reading file contents, so
// sparse multi-gigabyte fixtures stay cheap.
type sizeOnlyStore struct {
	sizes map[string]int64
}

func (s *sizeOnlyStore) Upload(_ context.Context, localPath, objectName string) error {
	info, err := os.Stat(localPath)
	if err != nil {
		return err
	}
	s.sizes[objectName] = info.Size()
	return nil
}

func (s *sizeOnlyStore) Download(_ context.Context, objectName, _ string) error {
	return fmt.Errorf("object %q not downloadable", objectName)
}

func (s *sizeOnlyStore) Remove(_ context.Context, objectName string) error {
	delete(s.sizes, objectName)
	return nil
}

func TestPipelineWarnsOnOversizedFile(t *testing.T) {
	catalog, providers := hadesCatalogAndProvider()
	cfg := testPipelineConfig()
	cfg.WorkDir = t.TempDir()
	cfg.MinFileSizeMB = 1
	cfg.MaxFileSizeGB = 1

	repo := newFakeRepo()
	scheduler, err := NewScheduler(cfg.Timezone)
	require.NoError(t, err)

	media := &fakeMedia{fileSize: 1536 * 1024 * 1024} // 1.5 GB, sparse
	store := &sizeOnlyStore{sizes: map[string]int64{}}
	resolver := NewResolver(repo, catalog, providers, 0)
	p := NewPipeline(repo, resolver, scheduler, &fakeClipLister{}, &fakeUploader{}, media, store, &fakeNotifier{}, cfg,
		config.YouTube{CategoryId: "20"})

	_, download := seedVodStream(t, repo, "v100")

	var logBuf bytes.Buffer
	logger := zerolog.New(&logBuf)
	ctx := logger.WithContext(context.Background())

	require.NoError(t, p.Scan(ctx))

	// Oversize is a warning, not a failure.
	require.Equal(t, constant.DownloadStatusCompleted, download.Status)
	require.Contains(t, logBuf.String(), "exceeds the configured maximum size")
}
