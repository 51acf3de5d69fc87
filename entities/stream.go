package entities

import (
	"time"

	"github.com/google/uuid"

	"vod-automation/constant"
)

type Stream struct {
	ID              uuid.UUID             `json:"id" gorm:"type:uuid;primary_key;default:gen_random_uuid()"`
	TwitchStreamId  string                `json:"twitch_stream_id" gorm:"type:varchar(100);not null;uniqueIndex:unique_twitch_stream_id"`
	TwitchVodId     *string               `json:"twitch_vod_id" gorm:"type:varchar(100);index:idx_streams_vod_id"`
	UserLogin       string                `json:"user_login" gorm:"type:varchar(100);not null"`
	Title           string                `json:"title" gorm:"type:varchar(500);not null"`
	GameId          *string               `json:"game_id" gorm:"type:varchar(100)"`
	GameName        *string               `json:"game_name" gorm:"type:varchar(255)"`
	Status          constant.StreamStatus `json:"status" gorm:"type:varchar(20);not null;default:'live';index:idx_streams_status"`
	StartedAt       time.Time             `json:"started_at" gorm:"type:timestamptz;not null"`
	EndedAt         *time.Time            `json:"ended_at" gorm:"type:timestamptz"`
	DurationSeconds *int                  `json:"duration_seconds" gorm:"type:integer"`
	CreatedAt       time.Time             `json:"created_at" gorm:"type:timestamptz;not null;default:CURRENT_TIMESTAMP"`
	UpdatedAt       time.Time             `json:"updated_at" gorm:"type:timestamptz;not null;default:CURRENT_TIMESTAMP"`
}

func (Stream) TableName() string {
	return "streams"
}
