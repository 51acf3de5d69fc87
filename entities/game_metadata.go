package entities

import (
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"vod-automation/constant"
)

// GameMetadata is keyed by the normalized (trimmed) game name, one row per
// name, refreshed in place on re-resolution.
type GameMetadata struct {
	ID           uuid.UUID               `json:"id" gorm:"type:uuid;primary_key;default:gen_random_uuid()"`
	GameName     string                  `json:"game_name" gorm:"type:varchar(255);not null;uniqueIndex:unique_game_name"`
	Source       constant.MetadataSource `json:"source" gorm:"type:varchar(20);not null"`
	Description  string                  `json:"description" gorm:"type:text"`
	Tags         pq.StringArray          `json:"tags" gorm:"type:text[]"`
	TwitchGameId *string                 `json:"twitch_game_id" gorm:"type:varchar(100)"`
	ProviderId   *string                 `json:"provider_id" gorm:"type:varchar(100)"`
	CreatedAt    time.Time               `json:"created_at" gorm:"type:timestamptz;not null;default:CURRENT_TIMESTAMP"`
	UpdatedAt    time.Time               `json:"updated_at" gorm:"type:timestamptz;not null;default:CURRENT_TIMESTAMP"`
}

func (GameMetadata) TableName() string {
	return "game_metadata"
}
