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
	Upload      Upload        `yaml:"upload"`
}

type App struct {
	Environment string `yaml:"environment"`
	Host        string `yaml:"host"`
	Protocol    string `yaml:"protocol"`
}

type Server struct {
	HttpPort string `yaml:"http_port"`
}

type RabbitMQ struct {
	Host string `json:"host"`
	Port int    `json:"port"`
	User string `json:"user"`
	Pass string `json:"pass"`
	Kind string `json:"kind"`
}

// Upload tunes the coordinator: retry budget for blob/store calls, per-call
// timeout, and whether chunk progress is mirrored into the session record.
type Upload struct {
	MaxAttempts       uint          `yaml:"max_attempts"`
	BaseDelay         time.Duration `yaml:"base_delay"`
	MaxDelay          time.Duration `yaml:"max_delay"`
	OpTimeout         time.Duration `yaml:"op_timeout"`
	LinkSessionRecord bool          `yaml:"link_session_record"`
	ValidatorURL      string        `yaml:"validator_url"`
	PublishEvents     bool          `yaml:"publish_events"`
}

func Load(path string) (*Config, error) {
	viper.AddConfigPath(path)
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.SetDefault("upload.max_attempts", 3)
	viper.SetDefault("upload.base_delay_ms", 500)
	viper.SetDefault("upload.max_delay_ms", 8000)
	viper.SetDefault("upload.op_timeout_seconds", 10)
	viper.SetDefault("upload.link_session_record", true)
	err := viper.ReadInConfig()
	if err != nil {
		return nil, err
	}

	db, err := sql.Open("postgres", viper.GetString("postgresql_host"))
	if err != nil {
		return nil, err
	}

	var rabbitmq *RabbitMQ
	if viper.GetBool("upload.publish_events") {
		rabbitmq = &RabbitMQ{
			Host: viper.GetString("rabbitmq_host"),
			Port: viper.GetInt("rabbitmq_port"),
			User: viper.GetString("rabbitmq_user"),
			Pass: viper.GetString("rabbitmq_pass"),
			Kind: viper.GetString("rabbitmq_kind"),
		}
	}

	minioClient, err := minio.New(viper.GetString("minio.url"), &minio.Options{
		Creds:  credentials.NewStaticV4(viper.GetString("minio.access_id"), viper.GetString("minio.secret_access_key"), ""),
		Secure: viper.GetBool("minio.secure"),
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
		},
		Upload: Upload{
			MaxAttempts:       viper.GetUint("upload.max_attempts"),
			BaseDelay:         time.Duration(viper.GetInt("upload.base_delay_ms")) * time.Millisecond,
			MaxDelay:          time.Duration(viper.GetInt("upload.max_delay_ms")) * time.Millisecond,
			OpTimeout:         time.Duration(viper.GetInt("upload.op_timeout_seconds")) * time.Second,
			LinkSessionRecord: viper.GetBool("upload.link_session_record"),
			ValidatorURL:      viper.GetString("upload.validator_url"),
			PublishEvents:     viper.GetBool("upload.publish_events"),
		},
		DB:      db,
		Queue:   rabbitmq,
		Storage: minioClient,
	}, nil
}
