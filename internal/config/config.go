// Package config holds the client configuration.
package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/goccy/go-json"
	"github.com/openmined/storagebrowser/internal/s3list"
	"github.com/openmined/storagebrowser/internal/scopepath"
	"github.com/openmined/storagebrowser/internal/upload"
	"github.com/openmined/storagebrowser/internal/utils"
)

const (
	ListingSourceAPI = "api"
	ListingSourceS3  = "s3"
)

var (
	home, _            = os.UserHomeDir()
	DefaultDataDir     = filepath.Join(home, ".storagebrowser")
	DefaultConfigPath  = filepath.Join(DefaultDataDir, "config.json")
	DefaultLogFilePath = filepath.Join(DefaultDataDir, "logs", "storagebrowser.log")
	DefaultServerURL   = "http://localhost:8080"
	DefaultControlAddr = "localhost:7939"
)

type Config struct {
	ServerURL      string          `json:"server_url"`
	StorageType    string          `json:"storage_type"`
	DataDir        string          `json:"data_dir"`
	ListingSource  string          `json:"listing_source,omitempty"`
	S3             *s3list.Config  `json:"s3,omitempty"`
	Upload         upload.Settings `json:"upload"`
	ControlPlane   ControlPlane    `json:"control_plane"`
	RequestTimeout time.Duration   `json:"request_timeout,omitempty"`
	Debug          bool            `json:"-"`
	Path           string          `json:"-"`
}

// ControlPlane configures the local HTTP bridge started by "serve".
type ControlPlane struct {
	Addr      string `json:"addr"`
	AuthToken string `json:"-"`
}

// Default returns a config with every optional value filled in.
func Default() *Config {
	return &Config{
		ServerURL:     DefaultServerURL,
		StorageType:   string(scopepath.BackendLocal),
		DataDir:       DefaultDataDir,
		ListingSource: ListingSourceAPI,
		Upload:        upload.DefaultSettings(),
		ControlPlane:  ControlPlane{Addr: DefaultControlAddr},
		Path:          DefaultConfigPath,
	}
}

// Backend returns the configured storage backend kind.
func (c *Config) Backend() scopepath.Backend {
	b, _ := scopepath.ParseBackend(c.StorageType)
	return b
}

// Validate checks the config and normalizes paths and defaults in place.
func (c *Config) Validate() error {
	var err error

	if c.ServerURL, err = validateURL(c.ServerURL); err != nil {
		return fmt.Errorf("invalid server url: %w", err)
	}

	backend, err := scopepath.ParseBackend(c.StorageType)
	if err != nil {
		return err
	}
	c.StorageType = string(backend)

	if c.DataDir == "" {
		c.DataDir = DefaultDataDir
	}
	if c.DataDir, err = utils.ResolvePath(c.DataDir); err != nil {
		return fmt.Errorf("invalid data dir: %w", err)
	}
	if c.Path != "" {
		if c.Path, err = utils.ResolvePath(c.Path); err != nil {
			return fmt.Errorf("invalid config path: %w", err)
		}
	}

	if err := c.Upload.Validate(); err != nil {
		return err
	}

	switch c.ListingSource {
	case "":
		c.ListingSource = ListingSourceAPI
	case ListingSourceAPI:
	case ListingSourceS3:
		if !backend.Scoped() {
			return errors.New("s3 listing source needs storage_type s3")
		}
		if c.S3 == nil {
			return errors.New("s3 listing source needs the s3 section")
		}
		if err := c.S3.Validate(); err != nil {
			return err
		}
	default:
		return fmt.Errorf("unknown listing source %q", c.ListingSource)
	}

	if c.ControlPlane.Addr == "" {
		c.ControlPlane.Addr = DefaultControlAddr
	}
	if c.RequestTimeout < 0 {
		return errors.New("request timeout must not be negative")
	}

	return nil
}

func (c *Config) Save(path string) error {
	if err := utils.EnsureParent(path); err != nil {
		return err
	}

	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return err
	}

	return os.WriteFile(path, data, 0o600)
}

func validateURL(raw string) (string, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return "", err
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return "", fmt.Errorf("scheme must be http or https, got %q", u.Scheme)
	}
	if u.Host == "" {
		return "", errors.New("host is missing")
	}
	u.Path = strings.TrimRight(u.Path, "/")
	u.RawQuery = ""
	u.Fragment = ""
	return u.String(), nil
}
