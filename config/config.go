package config

import (
	"fmt"
	"time"

	"github.com/kelseyhightower/envconfig"
	"github.com/redis/go-redis/v9"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

type Config struct {
	Port        string `envconfig:"QUIZ_PORT" default:"8080"`
	BindAddress string `envconfig:"QUIZ_BIND_ADDRESS" default:"0.0.0.0"`

	DBHost     string `envconfig:"QUIZ_DB_HOST" default:"localhost"`
	DBPort     string `envconfig:"QUIZ_DB_PORT" default:"5432"`
	DBUser     string `envconfig:"QUIZ_DB_USER" default:"quizroom"`
	DBPassword string `envconfig:"QUIZ_DB_PASSWORD" default:"quizroom123"`
	DBName     string `envconfig:"QUIZ_DB_NAME" default:"quizroom"`

	RedisHost string `envconfig:"QUIZ_REDIS_HOST" default:"localhost"`
	RedisPort string `envconfig:"QUIZ_REDIS_PORT" default:"6379"`

	JWTSecret string `envconfig:"QUIZ_JWT_SECRET" default:"change-me-in-production"`

	// Time a question stays open for answers.
	QuestionWindow time.Duration `envconfig:"QUIZ_QUESTION_WINDOW" default:"10s"`

	// Time the leaderboard is shown between questions.
	ResultsHold time.Duration `envconfig:"QUIZ_RESULTS_HOLD" default:"3s"`

	// How long a finished room lingers before it is reclaimed.
	GameOverLinger time.Duration `envconfig:"QUIZ_GAME_OVER_LINGER" default:"60s"`

	// Idle lobbies older than this are reclaimed by the registry janitor.
	LobbyIdleTTL time.Duration `envconfig:"QUIZ_LOBBY_IDLE_TTL" default:"1h"`

	MaxPlayersPerRoom int `envconfig:"QUIZ_MAX_PLAYERS" default:"50"`

	// Number of parsed bearer tokens kept in the verifier cache.
	TokenCacheSize int `envconfig:"QUIZ_TOKEN_CACHE_SIZE" default:"1024"`
}

func Load() (*Config, error) {
	cfg := &Config{}
	if err := envconfig.Process("", cfg); err != nil {
		return nil, fmt.Errorf("processing the config: %w", err)
	}
	return cfg, nil
}

func InitDB(cfg *Config) (*gorm.DB, error) {
	dsn := fmt.Sprintf("host=%s user=%s password=%s dbname=%s port=%s sslmode=disable TimeZone=UTC",
		cfg.DBHost, cfg.DBUser, cfg.DBPassword, cfg.DBName, cfg.DBPort)

	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	return db, nil
}

func InitRedis(cfg *Config) *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr: fmt.Sprintf("%s:%s", cfg.RedisHost, cfg.RedisPort),
	})
}
