package main

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/openmined/storagebrowser/internal/config"
	"github.com/openmined/storagebrowser/internal/s3list"
	"github.com/openmined/storagebrowser/internal/upload"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

const envPrefix = "STORAGEBROWSER"

// loadConfig reads the config file, then the environment, then the flags, and
// returns the validated result.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	v := viper.New()

	configPath := config.DefaultConfigPath
	if f := cmd.Flag("config"); f != nil {
		configPath = f.Value.String()
	}
	if env := os.Getenv(envPrefix + "_CONFIG_PATH"); env != "" && (cmd.Flag("config") == nil || !cmd.Flag("config").Changed) {
		configPath = env
	}
	v.SetConfigFile(configPath)
	v.SetConfigType("json")

	if err := v.ReadInConfig(); err != nil {
		enoent := errors.Is(err, os.ErrNotExist)
		_, ok := err.(viper.ConfigFileNotFoundError)
		if !enoent && !ok {
			return nil, fmt.Errorf("config read '%s': %w", configPath, err)
		}
	}

	def := config.Default()
	v.SetDefault("server_url", def.ServerURL)
	v.SetDefault("storage_type", def.StorageType)
	v.SetDefault("data_dir", def.DataDir)
	v.SetDefault("listing_source", def.ListingSource)
	v.SetDefault("upload.chunk_size", def.Upload.ChunkSize)
	v.SetDefault("upload.retry_count", def.Upload.RetryCount)
	v.SetDefault("upload.retry_base_delay", def.Upload.RetryBaseDelay)
	v.SetDefault("upload.retry_max_delay", def.Upload.RetryMaxDelay)
	v.SetDefault("upload.enabled", def.Upload.Enabled)
	v.SetDefault("upload.min_size", def.Upload.MinSize)
	v.SetDefault("control_plane.addr", def.ControlPlane.Addr)

	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	for key, flag := range map[string]string{
		"server_url":   "server",
		"storage_type": "storage-type",
		"data_dir":     "datadir",
	} {
		if f := cmd.Flags().Lookup(flag); f != nil {
			if err := v.BindPFlag(key, f); err != nil {
				return nil, err
			}
		}
	}

	cfg := &config.Config{
		Path:          configPath,
		ServerURL:     v.GetString("server_url"),
		StorageType:   v.GetString("storage_type"),
		DataDir:       v.GetString("data_dir"),
		ListingSource: v.GetString("listing_source"),
		Upload: upload.Settings{
			ChunkSize:      v.GetInt64("upload.chunk_size"),
			RetryCount:     v.GetInt("upload.retry_count"),
			RetryBaseDelay: v.GetDuration("upload.retry_base_delay"),
			RetryMaxDelay:  v.GetDuration("upload.retry_max_delay"),
			Enabled:        v.GetBool("upload.enabled"),
			MinSize:        v.GetInt64("upload.min_size"),
		},
		ControlPlane: config.ControlPlane{
			Addr:      v.GetString("control_plane.addr"),
			AuthToken: v.GetString("control_plane.auth_token"),
		},
		RequestTimeout: v.GetDuration("request_timeout"),
		Debug:          v.GetBool("http_dump"),
	}

	if v.IsSet("s3.region") || v.IsSet("s3.access_key") {
		cfg.S3 = &s3list.Config{
			Endpoint:  v.GetString("s3.endpoint"),
			Region:    v.GetString("s3.region"),
			AccessKey: v.GetString("s3.access_key"),
			SecretKey: v.GetString("s3.secret_key"),
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}
