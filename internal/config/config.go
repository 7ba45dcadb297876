package config

import (
	"log"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type Config struct {
	App struct {
		Port string `mapstructure:"port"`
		Env  string `mapstructure:"env"`
	} `mapstructure:"app"`
	DB struct {
		DSN         string `mapstructure:"dsn"`
		Migrations  string `mapstructure:"migrations"`
		AutoMigrate bool   `mapstructure:"auto_migrate"`
	} `mapstructure:"db"`
	Redis struct {
		Addr     string `mapstructure:"addr"`
		Password string `mapstructure:"password"`
	} `mapstructure:"redis"`
	Kafka struct {
		Brokers []string `mapstructure:"brokers"`
		GroupID string   `mapstructure:"group_id"`
	} `mapstructure:"kafka"`
	Auth struct {
		JWTSecret     string        `mapstructure:"jwt_secret"`
		Issuer        string        `mapstructure:"issuer"`
		TokenLifespan time.Duration `mapstructure:"token_lifespan"`
	} `mapstructure:"auth"`
	Storage struct {
		Provider string `mapstructure:"provider"`
		Folder   string `mapstructure:"folder"`
	} `mapstructure:"storage"`
	Cloudinary struct {
		CloudName string `mapstructure:"cloud_name"`
		ApiKey    string `mapstructure:"api_key"`
		ApiSecret string `mapstructure:"api_secret"`
	} `mapstructure:"cloudinary"`
	S3 struct {
		Region          string `mapstructure:"region"`
		Bucket          string `mapstructure:"bucket"`
		AccessKeyID     string `mapstructure:"access_key_id"`
		SecretAccessKey string `mapstructure:"secret_access_key"`
		Endpoint        string `mapstructure:"endpoint"`
	} `mapstructure:"s3"`
	Ollama struct {
		Host           string `mapstructure:"host"`
		EmbeddingModel string `mapstructure:"embedding_model"`
	} `mapstructure:"ollama"`
	Jaeger struct {
		OTLPEndpoint string `mapstructure:"otlp_endpoint"`
	} `mapstructure:"jaeger"`
	SMTP struct {
		Host     string `mapstructure:"host"`
		Port     int    `mapstructure:"port"`
		Username string `mapstructure:"username"`
		Password string `mapstructure:"password"`
		From     string `mapstructure:"from"`
	} `mapstructure:"smtp"`
	Ingest struct {
		MaxUploadBytes int64         `mapstructure:"max_upload_bytes"`
		RunTimeout     time.Duration `mapstructure:"run_timeout"`
		StatusTTL      time.Duration `mapstructure:"status_ttl"`
	} `mapstructure:"ingest"`
	Search struct {
		CacheTTL     time.Duration `mapstructure:"cache_ttl"`
		DefaultLimit int           `mapstructure:"default_limit"`
	} `mapstructure:"search"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("app.port", "8080")
	v.SetDefault("app.env", "development")
	v.SetDefault("db.migrations", "file://migrations")
	v.SetDefault("db.auto_migrate", true)
	v.SetDefault("kafka.group_id", "linkgraph-worker")
	v.SetDefault("auth.issuer", "")
	v.SetDefault("auth.token_lifespan", 24*time.Hour)
	v.SetDefault("storage.provider", "cloudinary")
	v.SetDefault("storage.folder", "linkedin-exports")
	v.SetDefault("ollama.embedding_model", "nomic-embed-text")
	v.SetDefault("smtp.port", 587)
	v.SetDefault("ingest.max_upload_bytes", 32<<20)
	v.SetDefault("ingest.run_timeout", 5*time.Minute)
	v.SetDefault("ingest.status_ttl", 72*time.Hour)
	v.SetDefault("search.cache_ttl", 2*time.Minute)
	v.SetDefault("search.default_limit", 20)
}

// LoadConfig reads .env, then config.yaml from the given paths (or "."),
// then environment variables. Later sources win.
func LoadConfig(paths ...string) (cfg Config, err error) {
	if len(paths) == 0 {
		paths = []string{"."}
	}

	if err := godotenv.Load(); err != nil {
		log.Println("warning: .env file not found, use default.")
	}

	v := viper.New()
	setDefaults(v)

	for _, p := range paths {
		v.AddConfigPath(p)
	}
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	if err := v.ReadInConfig(); err != nil {
		log.Printf("note: config.yaml not found, read .env only. Error: %v", err)
	}

	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	v.BindEnv("app.port", "APP_PORT")
	v.BindEnv("app.env", "APP_ENV")
	v.BindEnv("db.dsn", "DB_DSN")
	v.BindEnv("db.migrations", "DB_MIGRATIONS")
	v.BindEnv("db.auto_migrate", "DB_AUTO_MIGRATE")
	v.BindEnv("redis.addr", "REDIS_ADDR")
	v.BindEnv("redis.password", "REDIS_PASSWORD")
	v.BindEnv("kafka.brokers", "KAFKA_BROKERS")
	v.BindEnv("kafka.group_id", "KAFKA_GROUP_ID")
	v.BindEnv("auth.jwt_secret", "JWT_SECRET")
	v.BindEnv("auth.issuer", "JWT_ISSUER")
	v.BindEnv("auth.token_lifespan", "TOKEN_LIFESPAN")

	v.BindEnv("storage.provider", "STORAGE_PROVIDER")
	v.BindEnv("storage.folder", "STORAGE_FOLDER")
	v.BindEnv("cloudinary.cloud_name", "CLOUDINARY_CLOUD_NAME")
	v.BindEnv("cloudinary.api_key", "CLOUDINARY_API_KEY")
	v.BindEnv("cloudinary.api_secret", "CLOUDINARY_API_SECRET")
	v.BindEnv("s3.region", "S3_REGION")
	v.BindEnv("s3.bucket", "S3_BUCKET")
	v.BindEnv("s3.access_key_id", "S3_ACCESS_KEY_ID")
	v.BindEnv("s3.secret_access_key", "S3_SECRET_ACCESS_KEY")
	v.BindEnv("s3.endpoint", "S3_ENDPOINT")

	v.BindEnv("ollama.host", "OLLAMA_HOST")
	v.BindEnv("ollama.embedding_model", "OLLAMA_EMBEDDING_MODEL")
	v.BindEnv("jaeger.otlp_endpoint", "OTLP_ENDPOINT")

	v.BindEnv("smtp.host", "SMTP_HOST")
	v.BindEnv("smtp.port", "SMTP_PORT")
	v.BindEnv("smtp.username", "SMTP_USERNAME")
	v.BindEnv("smtp.password", "SMTP_PASSWORD")
	v.BindEnv("smtp.from", "SMTP_FROM")

	err = v.Unmarshal(&cfg)
	if err != nil {
		return
	}

	// KAFKA_BROKERS arrives as a single comma separated string.
	if len(cfg.Kafka.Brokers) == 1 && strings.Contains(cfg.Kafka.Brokers[0], ",") {
		cfg.Kafka.Brokers = strings.Split(cfg.Kafka.Brokers[0], ",")
	}
	return
}
