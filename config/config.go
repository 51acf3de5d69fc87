package config

import (
	"database/sql"
	"time"

	_ "github.com/lib/pq"
	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"github.com/spf13/viper"
)

type Config struct {
	MinIOBucket string        `yaml:"minio_bucket"`
	App         App           `yaml:"app"`
	DB          *sql.DB       `yaml:"db"`
	Queue       *RabbitMQ     `yaml:"rabbitmq"`
	Storage     *minio.Client `yaml:"storage"`
	Server      Server        `yaml:"server"`
	Twitch      Twitch        `yaml:"twitch"`
	YouTube     YouTube       `yaml:"youtube"`
	Games       Games         `yaml:"games"`
	Pipeline    Pipeline      `yaml:"pipeline"`
}

type App struct {
	Environment string `yaml:"environment"`
	Host        string `yaml:"host"`
	Protocol    string `yaml:"protocol"`
}

type Server struct {
	HttpPort string `yaml:"http_port"`
	Workers  int    `yaml:"workers"`
}

type RabbitMQ struct {
	Host         string `json:"host"`
	Port         int    `json:"port"`
	User         string `json:"user"`
	Pass         string `json:"pass"`
	ExchangeName string `json:"exchange_name"`
	Kind         string `json:"kind"`
}

type Twitch struct {
	ClientId     string `yaml:"client_id"`
	ClientSecret string `yaml:"client_secret"`
	UserLogin    string `yaml:"user_login"`
}

type YouTube struct {
	AccessToken string `yaml:"access_token"`
	CategoryId  string `yaml:"category_id"`
}

type Games struct {
	IGDBClientId    string `yaml:"igdb_client_id"`
	IGDBAccessToken string `yaml:"igdb_access_token"`
	RAWGApiKey      string `yaml:"rawg_api_key"`
}

// Pipeline carries the cadences, thresholds and retry policy of the
// content pipeline.
type Pipeline struct {
	PollInterval         time.Duration `yaml:"poll_interval"`
	UploadScanInterval   time.Duration `yaml:"upload_scan_interval"`
	PublishScanInterval  time.Duration `yaml:"publish_scan_interval"`
	PublishWindow        time.Duration `yaml:"publish_window"`
	LookbackDays         int           `yaml:"lookback_days"`
	MinFileSizeMB        int64         `yaml:"min_file_size_mb"`
	MaxFileSizeGB        int64         `yaml:"max_file_size_gb"`
	Timezone             string        `yaml:"timezone"`
	WorkDir              string        `yaml:"work_dir"`
	DownloadMaxAttempts  int           `yaml:"download_max_attempts"`
	JobMaxAttempts       int           `yaml:"job_max_attempts"`
	MetadataCacheTTL     time.Duration `yaml:"metadata_cache_ttl"`
	FallbackGameName     string        `yaml:"fallback_game_name"`
	NotificationExchange string        `yaml:"notification_exchange"`
}

func Load(path string) (*Config, error) {
	viper.AddConfigPath(path)
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")

	viper.SetDefault("pipeline.poll_interval", "2m")
	viper.SetDefault("pipeline.upload_scan_interval", "30m")
	viper.SetDefault("pipeline.publish_scan_interval", "5m")
	viper.SetDefault("pipeline.publish_window", "30m")
	viper.SetDefault("pipeline.lookback_days", 7)
	viper.SetDefault("pipeline.min_file_size_mb", 10)
	viper.SetDefault("pipeline.max_file_size_gb", 10)
	viper.SetDefault("pipeline.timezone", "US/Eastern")
	viper.SetDefault("pipeline.work_dir", "temp")
	viper.SetDefault("pipeline.download_max_attempts", 1)
	viper.SetDefault("pipeline.job_max_attempts", 3)
	viper.SetDefault("pipeline.metadata_cache_ttl", 0)
	viper.SetDefault("pipeline.fallback_game_name", "Games + Demos")
	viper.SetDefault("pipeline.notification_exchange", "operator_notifications")
	viper.SetDefault("youtube.category_id", "20")

	err := viper.ReadInConfig()
	if err != nil {
		return nil, err
	}

	db, err := sql.Open("postgres", viper.GetString("postgresql_host"))
	if err != nil {
		return nil, err
	}

	rabbitmq := &RabbitMQ{
		Host:         viper.GetString("rabbitmq_host"),
		Port:         viper.GetInt("rabbitmq_port"),
		User:         viper.GetString("rabbitmq_user"),
		Pass:         viper.GetString("rabbitmq_pass"),
		Kind:         viper.GetString("rabbitmq_kind"),
		ExchangeName: viper.GetString("rabbitmq_exchange_name"),
	}

	minioClient, err := minio.New(viper.GetString("minio.url"), &minio.Options{
		Creds:  credentials.NewStaticV4(viper.GetString("minio.access_id"), viper.GetString("minio.secret_access_key"), ""),
		Secure: false,
	})
	if err != nil {
		return nil, err
	}

	return &Config{
		MinIOBucket: viper.GetString("minio.bucket"),
		App: App{
			Environment: viper.GetString("app.environment"),
			Host:        viper.GetString("app.host"),
			Protocol:    viper.GetString("app.protocol"),
		},
		Server: Server{
			HttpPort: viper.GetString("server.port"),
			Workers:  viper.GetInt("server.workers"),
		},
		Twitch: Twitch{
			ClientId:     viper.GetString("twitch.client_id"),
			ClientSecret: viper.GetString("twitch.client_secret"),
			UserLogin:    viper.GetString("twitch.user_login"),
		},
		YouTube: YouTube{
			AccessToken: viper.GetString("youtube.access_token"),
			CategoryId:  viper.GetString("youtube.category_id"),
		},
		Games: Games{
			IGDBClientId:    viper.GetString("games.igdb_client_id"),
			IGDBAccessToken: viper.GetString("games.igdb_access_token"),
			RAWGApiKey:      viper.GetString("games.rawg_api_key"),
		},
		Pipeline: Pipeline{
			PollInterval:         viper.GetDuration("pipeline.poll_interval"),
			UploadScanInterval:   viper.GetDuration("pipeline.upload_scan_interval"),
			PublishScanInterval:  viper.GetDuration("pipeline.publish_scan_interval"),
			PublishWindow:        viper.GetDuration("pipeline.publish_window"),
			LookbackDays:         viper.GetInt("pipeline.lookback_days"),
			MinFileSizeMB:        viper.GetInt64("pipeline.min_file_size_mb"),
			MaxFileSizeGB:        viper.GetInt64("pipeline.max_file_size_gb"),
			Timezone:             viper.GetString("pipeline.timezone"),
			WorkDir:              viper.GetString("pipeline.work_dir"),
			DownloadMaxAttempts:  viper.GetInt("pipeline.download_max_attempts"),
			JobMaxAttempts:       viper.GetInt("pipeline.job_max_attempts"),
			MetadataCacheTTL:     viper.GetDuration("pipeline.metadata_cache_ttl"),
			FallbackGameName:     viper.GetString("pipeline.fallback_game_name"),
			NotificationExchange: viper.GetString("pipeline.notification_exchange"),
		},
		DB:      db,
		Queue:   rabbitmq,
		Storage: minioClient,
	}, nil
}
