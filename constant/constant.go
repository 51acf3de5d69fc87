package constant

type StreamStatus string

const (
	StreamStatusLive         StreamStatus = "live"
	StreamStatusEnded        StreamStatus = "ended"
	StreamStatusVodAvailable StreamStatus = "vod_available"
)

type DownloadStatus string

const (
	DownloadStatusPending     DownloadStatus = "pending"
	DownloadStatusDownloading DownloadStatus = "downloading"
	DownloadStatusCompleted   DownloadStatus = "completed"
	DownloadStatusFailed      DownloadStatus = "failed"
)

func (s DownloadStatus) Terminal() bool {
	return s == DownloadStatusCompleted || s == DownloadStatusFailed
}

type UploadStatus string

const (
	UploadStatusQueued    UploadStatus = "queued"
	UploadStatusUploading UploadStatus = "uploading"
	UploadStatusUploaded  UploadStatus = "uploaded"
	UploadStatusFailed    UploadStatus = "failed"
)

type PrivacyStatus string

const (
	PrivacyStatusPrivate PrivacyStatus = "private"
	PrivacyStatusPublic  PrivacyStatus = "public"
)

type MetadataStatus string

const (
	MetadataStatusReady  MetadataStatus = "ready"
	MetadataStatusFailed MetadataStatus = "failed"
)

type ContentType string

const (
	ContentTypeVod   ContentType = "vod"
	ContentTypeShort ContentType = "short"
)

type JobStatus string

const (
	JobStatusPending    JobStatus = "pending"
	JobStatusProcessing JobStatus = "processing"
	JobStatusCompleted  JobStatus = "completed"
	JobStatusFailed     JobStatus = "failed"
)

type JobType string

const (
	JobTypeClipsFetch JobType = "clips_fetch"
)

type MetadataSource string

const (
	MetadataSourceTwitch MetadataSource = "twitch"
	MetadataSourceIGDB   MetadataSource = "igdb"
	MetadataSourceRAWG   MetadataSource = "rawg"
)

type Environment string

const (
	EnvironmentProduction Environment = "production"
	EnvironmentStaging    Environment = "staging"
	EnvironmentDevelop    Environment = "develop"
)

func (e Environment) String() string {
	return string(e)
}
