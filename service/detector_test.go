package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"vod-automation/constant"
	"vod-automation/dto"
)

func TestDetectorCreatesStreamOnFirstObservation(t *testing.T) {
	repo := newFakeRepo()
	startedAt := time.Date(2025, time.March, 3, 19, 0, 0, 0, time.UTC)
	live := &fakeBroadcaster{broadcast: &dto.Broadcast{
		StreamId:  "555",
		UserLogin: "streamer",
		Title:     "first title",
		GameId:    "12",
		GameName:  "Celeste",
		StartedAt: startedAt,
	}}
	d := NewDetector(repo, live, testPipelineConfig())

	require.NoError(t, d.Scan(context.Background()))

	stream, err := repo.FindStreamByTwitchId(context.Background(), "555")
	require.NoError(t, err)
	require.NotNil(t, stream)
	require.Equal(t, constant.StreamStatusLive, stream.Status)
	require.Equal(t, "first title", stream.Title)
	require.NotNil(t, stream.GameName)
	require.Equal(t, "Celeste", *stream.GameName)
}

func TestDetectorUpdatesTitleMidStream(t *testing.T) {
	repo := newFakeRepo()
	live := &fakeBroadcaster{broadcast: &dto.Broadcast{
		StreamId:  "555",
		Title:     "first title",
		StartedAt: time.Now().UTC(),
	}}
	d := NewDetector(repo, live, testPipelineConfig())
	require.NoError(t, d.Scan(context.Background()))

	live.broadcast.Title = "second title"
	live.broadcast.GameName = "Hades"
	require.NoError(t, d.Scan(context.Background()))

	require.Len(t, repo.streams, 1)
	require.Equal(t, "second title", repo.streams[0].Title)
	require.NotNil(t, repo.streams[0].GameName)
	require.Equal(t, "Hades", *repo.streams[0].GameName)
}

func TestDetectorMarksStreamEnded(t *testing.T) {
	repo := newFakeRepo()
	startedAt := time.Now().UTC().Add(-2 * time.Hour)
	live := &fakeBroadcaster{broadcast: &dto.Broadcast{
		StreamId:  "555",
		Title:     "going live",
		StartedAt: startedAt,
	}}
	d := NewDetector(repo, live, testPipelineConfig())
	require.NoError(t, d.Scan(context.Background()))

	// The broadcast disappears from the listing.
	live.broadcast = nil
	require.NoError(t, d.Scan(context.Background()))

	stream := repo.streams[0]
	require.Equal(t, constant.StreamStatusEnded, stream.Status)
	require.NotNil(t, stream.EndedAt)
	require.NotNil(t, stream.DurationSeconds)
	require.InDelta(t, 2*60*60, *stream.DurationSeconds, 60)

	// The clips job was queued; the download waits for the VOD id.
	require.Len(t, repo.jobs, 1)
	require.Equal(t, constant.JobTypeClipsFetch, repo.jobs[0].JobType)
	require.Empty(t, repo.downloads)
}

func TestDetectorNewStreamClosesPrevious(t *testing.T) {
	repo := newFakeRepo()
	live := &fakeBroadcaster{broadcast: &dto.Broadcast{
		StreamId:  "555",
		StartedAt: time.Now().UTC().Add(-3 * time.Hour),
	}}
	d := NewDetector(repo, live, testPipelineConfig())
	require.NoError(t, d.Scan(context.Background()))

	// A new broadcast id means the old one finished between polls.
	live.broadcast = &dto.Broadcast{
		StreamId:  "556",
		StartedAt: time.Now().UTC(),
	}
	require.NoError(t, d.Scan(context.Background()))

	require.Len(t, repo.streams, 2)
	first, err := repo.FindStreamByTwitchId(context.Background(), "555")
	require.NoError(t, err)
	require.Equal(t, constant.StreamStatusEnded, first.Status)
	second, err := repo.FindStreamByTwitchId(context.Background(), "556")
	require.NoError(t, err)
	require.Equal(t, constant.StreamStatusLive, second.Status)
}

func TestDetectorPropagatesListingError(t *testing.T) {
	repo := newFakeRepo()
	live := &fakeBroadcaster{err: errors.New("api down")}
	d := NewDetector(repo, live, testPipelineConfig())

	require.Error(t, d.Scan(context.Background()))
	require.Empty(t, repo.streams)
}
