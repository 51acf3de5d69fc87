package dto

import (
	"time"

	"github.com/google/uuid"
)

// Broadcast is a currently-live stream as reported by Twitch.
type Broadcast struct {
	StreamId  string    `json:"stream_id"`
	UserLogin string    `json:"user_login"`
	Title     string    `json:"title"`
	GameId    string    `json:"game_id"`
	GameName  string    `json:"game_name"`
	StartedAt time.Time `json:"started_at"`
}

// VodSummary is one archive VOD from the recent-videos listing.
type VodSummary struct {
	VodId           string    `json:"vod_id"`
	Title           string    `json:"title"`
	URL             string    `json:"url"`
	GameId          string    `json:"game_id"`
	GameName        string    `json:"game_name"`
	DurationSeconds int       `json:"duration_seconds"`
	CreatedAt       time.Time `json:"created_at"`
}

// ClipSummary is one highlight clip eligible for shorts conversion.
type ClipSummary struct {
	ClipId          string    `json:"clip_id"`
	Title           string    `json:"title"`
	URL             string    `json:"url"`
	DurationSeconds float64   `json:"duration_seconds"`
	ViewCount       int       `json:"view_count"`
	CreatedAt       time.Time `json:"created_at"`
}

// GameCandidate is one search result from a metadata provider.
type GameCandidate struct {
	Name        string   `json:"name"`
	Description string   `json:"description"`
	Tags        []string `json:"tags"`
	ProviderId  string   `json:"provider_id"`
}

// UploadMetadata is the descriptive payload handed to the video platform.
type UploadMetadata struct {
	Title         string   `json:"title"`
	Description   string   `json:"description"`
	Tags          []string `json:"tags"`
	CategoryId    string   `json:"category_id"`
	PrivacyStatus string   `json:"privacy_status"`
}

// DownloadRetryMessage is published by an operator to re-trigger a failed
// download.
type DownloadRetryMessage struct {
	DownloadId uuid.UUID `json:"downloadId"`
}
