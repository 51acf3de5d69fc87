package entities

import (
	"time"

	"github.com/google/uuid"

	"vod-automation/constant"
)

type ProcessingJob struct {
	ID           uuid.UUID          `json:"id" gorm:"type:uuid;primary_key;default:gen_random_uuid()"`
	StreamId     uuid.UUID          `json:"stream_id" gorm:"type:uuid;not null;uniqueIndex:unique_stream_job_type,priority:1"`
	JobType      constant.JobType   `json:"job_type" gorm:"type:varchar(30);not null;uniqueIndex:unique_stream_job_type,priority:2"`
	Status       constant.JobStatus `json:"status" gorm:"type:varchar(20);not null;default:'pending';index:idx_processing_jobs_status"`
	Attempts     int                `json:"attempts" gorm:"type:integer;not null;default:0"`
	MaxAttempts  int                `json:"max_attempts" gorm:"type:integer;not null;default:3"`
	ErrorMessage *string            `json:"error_message" gorm:"type:text"`
	StartedAt    *time.Time         `json:"started_at" gorm:"type:timestamptz"`
	CompletedAt  *time.Time         `json:"completed_at" gorm:"type:timestamptz"`
	CreatedAt    time.Time          `json:"created_at" gorm:"type:timestamptz;not null;default:CURRENT_TIMESTAMP"`
	UpdatedAt    time.Time          `json:"updated_at" gorm:"type:timestamptz;not null;default:CURRENT_TIMESTAMP"`
}

func (ProcessingJob) TableName() string {
	return "processing_jobs"
}
