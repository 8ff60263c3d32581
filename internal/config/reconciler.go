package config

import "time"

// ReconcilerConfig controls the orphaned-context cleanup worker.
type ReconcilerConfig struct {
	// QueueKey is the Redis list holding orphan cleanup jobs.
	QueueKey string `envconfig:"QUEUE_KEY" default:"superposition:orphans" validate:"required"`

	// PopTimeout bounds a single blocking pop so shutdown is observed.
	PopTimeout time.Duration `envconfig:"POP_TIMEOUT" default:"5s" validate:"min=1s"`

	// MaxRetries is how many times one job is retried before it is dropped.
	MaxRetries uint `envconfig:"MAX_RETRIES" default:"5" validate:"min=1"`

	// BaseRetryDelay is the first backoff interval between retries.
	BaseRetryDelay time.Duration `envconfig:"BASE_RETRY_DELAY" default:"500ms" validate:"min=1ms"`

	// MaxRetryDelay caps the exponential backoff.
	MaxRetryDelay time.Duration `envconfig:"MAX_RETRY_DELAY" default:"30s"`
}
