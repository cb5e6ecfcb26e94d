package config

import (
	"time"

	"github.com/caarlos0/env/v6"
)

type Config struct {
	Server struct {
		Port        string   `env:"PORT" envDefault:"5250"`
		CORSOrigins []string `env:"CORS_ORIGINS" envSeparator:"," envDefault:"http://localhost:3000"`
		LogLevel    string   `env:"LOG_LEVEL" envDefault:"info"`
	}

	Database struct {
		Path string `env:"DB_PATH" envDefault:"database/properties.db"`
	}

	// RegionGroups points at the JSON file describing named groups of regions
	RegionGroups struct {
		Path string `env:"REGION_GROUPS_PATH" envDefault:"config/region_groups.json"`
	}

	Model struct {
		Dir            string  `env:"MODEL_DIR" envDefault:"models"`
		MinSamples     int     `env:"MODEL_MIN_SAMPLES" envDefault:"10"`
		TestFraction   float64 `env:"MODEL_TEST_FRACTION" envDefault:"0.2"`
		Trees          int     `env:"MODEL_TREES" envDefault:"100"`
		LearningRate   float64 `env:"MODEL_LEARNING_RATE" envDefault:"0.1"`
		MaxDepth       int     `env:"MODEL_MAX_DEPTH" envDefault:"4"`
		MinSamplesLeaf int     `env:"MODEL_MIN_SAMPLES_LEAF" envDefault:"1"`
		Seed           int64   `env:"MODEL_SEED" envDefault:"42"`
		FetchWorkers   int     `env:"MODEL_FETCH_WORKERS" envDefault:"4"`
	}

	Recommendation struct {
		DefaultLimit int `env:"RECOMMEND_DEFAULT_LIMIT" envDefault:"10"`
		MaxLimit     int `env:"RECOMMEND_MAX_LIMIT" envDefault:"100"`

		// Collaborative filtering
		Neighbors         int     `env:"CF_NEIGHBORS" envDefault:"5"`
		StrengthThreshold float64 `env:"CF_STRENGTH_THRESHOLD" envDefault:"5"`
	}

	Trends struct {
		Window        int     `env:"TRENDS_WINDOW" envDefault:"3"`
		MinGrowthRate float64 `env:"TRENDS_MIN_GROWTH" envDefault:"0.01"`
		MinSamples    int     `env:"TRENDS_MIN_SAMPLES" envDefault:"5"`
	}

	Scheduler struct {
		Enabled       bool `env:"RETRAIN_ENABLED" envDefault:"true"`
		RetrainHour   int  `env:"RETRAIN_HOUR" envDefault:"3"`
		RetrainMinute int  `env:"RETRAIN_MINUTE" envDefault:"0"`
	}

	// BatchProcessing configuration for interaction logging
	BatchProcessing struct {
		// Number of interaction batches the queue can hold
		QueueSize int `env:"BATCH_QUEUE_SIZE" envDefault:"100"`

		// Maximum number of retries for failed batches
		MaxRetries int `env:"BATCH_MAX_RETRIES" envDefault:"3"`

		// Delay between retries
		RetryDelay time.Duration `env:"BATCH_RETRY_DELAY" envDefault:"5s"`
	}
}

func LoadConfig() (*Config, error) {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}
