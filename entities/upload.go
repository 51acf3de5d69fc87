package entities

import (
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"vod-automation/constant"
)

type Upload struct {
	ID                   uuid.UUID               `json:"id" gorm:"type:uuid;primary_key;default:gen_random_uuid()"`
	StreamId             uuid.UUID               `json:"stream_id" gorm:"type:uuid;not null;index:idx_uploads_stream_id"`
	VodDownloadId        *uuid.UUID              `json:"vod_download_id" gorm:"type:uuid"`
	ContentType          constant.ContentType    `json:"content_type" gorm:"type:varchar(10);not null"`
	Title                string                  `json:"title" gorm:"type:varchar(100);not null"`
	Description          string                  `json:"description" gorm:"type:text"`
	Tags                 pq.StringArray          `json:"tags" gorm:"type:text[]"`
	ThumbnailObject      *string                 `json:"thumbnail_object" gorm:"type:varchar(500)"`
	RemoteObject         *string                 `json:"remote_object" gorm:"type:varchar(500)"`
	Status               constant.UploadStatus   `json:"status" gorm:"type:varchar(20);not null;default:'queued';index:idx_uploads_status"`
	PrivacyStatus        constant.PrivacyStatus  `json:"privacy_status" gorm:"type:varchar(10);not null;default:'private'"`
	MetadataStatus       constant.MetadataStatus `json:"metadata_status" gorm:"type:varchar(10);not null;default:'ready'"`
	ManualReviewRequired bool                    `json:"manual_review_required" gorm:"not null;default:false"`
	YoutubeVideoId       *string                 `json:"youtube_video_id" gorm:"type:varchar(100)"`
	ScheduledPublishAt   *time.Time              `json:"scheduled_publish_at" gorm:"type:timestamptz;index:idx_uploads_scheduled"`
	PublishedAt          *time.Time              `json:"published_at" gorm:"type:timestamptz"`
	ErrorMessage         *string                 `json:"error_message" gorm:"type:text"`
	CreatedAt            time.Time               `json:"created_at" gorm:"type:timestamptz;not null;default:CURRENT_TIMESTAMP"`
	UpdatedAt            time.Time               `json:"updated_at" gorm:"type:timestamptz;not null;default:CURRENT_TIMESTAMP"`
}

func (Upload) TableName() string {
	return "uploads"
}
