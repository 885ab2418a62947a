package upload

import (
	"errors"
	"time"
)

const (
	DefaultChunkSize      = 10 * 1024 * 1024
	DefaultRetryCount     = 5
	DefaultRetryBaseDelay = time.Second
	DefaultRetryMaxDelay  = 20 * time.Second
)

// Settings tune the resumable upload path.
type Settings struct {
	ChunkSize      int64         `json:"chunk_size" mapstructure:"chunk_size"`
	RetryCount     int           `json:"retry_count" mapstructure:"retry_count"`
	RetryBaseDelay time.Duration `json:"retry_base_delay" mapstructure:"retry_base_delay"`
	RetryMaxDelay  time.Duration `json:"retry_max_delay" mapstructure:"retry_max_delay"`

	// Enabled is false when resumable transfer is not available, every upload then
	// takes the simple path.
	Enabled bool `json:"enabled" mapstructure:"enabled"`

	// MinSize is the smallest content routed to the resumable path.
	MinSize int64 `json:"min_size" mapstructure:"min_size"`
}

func DefaultSettings() Settings {
	return Settings{
		ChunkSize:      DefaultChunkSize,
		RetryCount:     DefaultRetryCount,
		RetryBaseDelay: DefaultRetryBaseDelay,
		RetryMaxDelay:  DefaultRetryMaxDelay,
		Enabled:        true,
		MinSize:        1,
	}
}

func (s Settings) Validate() error {
	if s.ChunkSize <= 0 {
		return errors.New("upload chunk size must be positive")
	}
	if s.RetryCount < 0 {
		return errors.New("upload retry count must not be negative")
	}
	if s.RetryBaseDelay < 0 || s.RetryMaxDelay < 0 {
		return errors.New("upload retry delays must not be negative")
	}
	return nil
}

// Delays returns the retry sequence for these settings.
func (s Settings) Delays() []time.Duration {
	return RetryDelays(s.RetryCount, s.RetryBaseDelay, s.RetryMaxDelay)
}
