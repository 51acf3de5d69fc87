package entities

import (
	"time"

	"github.com/google/uuid"

	"vod-automation/constant"
)

type VodDownload struct {
	ID            uuid.UUID               `json:"id" gorm:"type:uuid;primary_key;default:gen_random_uuid()"`
	StreamId      uuid.UUID               `json:"stream_id" gorm:"type:uuid;not null;index:idx_vod_downloads_stream_id"`
	Status        constant.DownloadStatus `json:"status" gorm:"type:varchar(20);not null;default:'pending';index:idx_vod_downloads_status"`
	Attempts      int                     `json:"attempts" gorm:"type:integer;not null;default:0"`
	MaxAttempts   int                     `json:"max_attempts" gorm:"type:integer;not null;default:1"`
	RemoteObject  *string                 `json:"remote_object" gorm:"type:varchar(500)"`
	FileSizeBytes *int64                  `json:"file_size_bytes" gorm:"type:bigint"`
	ErrorMessage  *string                 `json:"error_message" gorm:"type:text"`
	CreatedAt     time.Time               `json:"created_at" gorm:"type:timestamptz;not null;default:CURRENT_TIMESTAMP"`
	UpdatedAt     time.Time               `json:"updated_at" gorm:"type:timestamptz;not null;default:CURRENT_TIMESTAMP"`
}

func (VodDownload) TableName() string {
	return "vod_downloads"
}
