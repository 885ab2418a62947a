// Package s3list lists a scope directly from its S3 bucket, bypassing the
// storage API.
package s3list

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"path"
	"slices"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/openmined/storagebrowser/internal/resource"
	"github.com/openmined/storagebrowser/internal/scopepath"
)

const delimiter = "/"

var ErrNoScope = errors.New("s3list: path has no scope")

// Config is the object store the scopes live in. Every scope is a bucket.
type Config struct {
	Endpoint  string `json:"endpoint" mapstructure:"endpoint"`
	Region    string `json:"region" mapstructure:"region"`
	AccessKey string `json:"access_key" mapstructure:"access_key"`
	SecretKey string `json:"secret_key" mapstructure:"secret_key"`
}

func (c *Config) Validate() error {
	if c.Region == "" {
		return errors.New("s3 region is required")
	}
	if c.AccessKey == "" || c.SecretKey == "" {
		return errors.New("s3 access key and secret key are required")
	}
	return nil
}

// Lister produces directory listings in the same shape as the storage API.
type Lister struct {
	client *s3.Client
}

func NewLister(client *s3.Client) *Lister {
	return &Lister{client: client}
}

// NewListerWithConfig builds the S3 client from cfg. A custom endpoint uses
// path-style addressing.
func NewListerWithConfig(ctx context.Context, cfg *Config) (*Lister, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	httpClient := &http.Client{
		Transport: &http.Transport{
			Proxy:               http.ProxyFromEnvironment,
			MaxIdleConnsPerHost: 16,
			IdleConnTimeout:     90 * time.Second,
			TLSHandshakeTimeout: 10 * time.Second,
		},
		Timeout: 30 * time.Second,
	}

	awsCfg, err := config.LoadDefaultConfig(ctx,
		config.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, ""),
		),
		config.WithRegion(cfg.Region),
		config.WithHTTPClient(httpClient),
	)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
			o.UsePathStyle = true
		}
	})

	return NewLister(client), nil
}

// List returns the entries directly below sp. Directories come first, then
// files, each ordered by name.
func (l *Lister) List(ctx context.Context, sp scopepath.ScopedPath) ([]resource.Entry, error) {
	if !sp.IsScoped() {
		return nil, fmt.Errorf("%w: %s", ErrNoScope, sp.Path)
	}

	prefix := strings.TrimPrefix(scopepath.Normalize(sp.Path), "/")
	if prefix != "" {
		prefix += delimiter
	}

	var dirs, files []resource.Entry
	paginator := s3.NewListObjectsV2Paginator(l.client, &s3.ListObjectsV2Input{
		Bucket:    aws.String(sp.Scope),
		Prefix:    aws.String(prefix),
		Delimiter: aws.String(delimiter),
	})

	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("list %s: %w", sp.Key(), err)
		}

		for _, cp := range page.CommonPrefixes {
			key := strings.TrimSuffix(aws.ToString(cp.Prefix), delimiter)
			dirs = append(dirs, resource.Entry{
				Name:  path.Base(key),
				IsDir: true,
				Path:  "/" + key,
			})
		}

		for _, obj := range page.Contents {
			key := aws.ToString(obj.Key)
			// directory marker objects
			if key == prefix || strings.HasSuffix(key, delimiter) {
				continue
			}
			files = append(files, resource.Entry{
				Name:       path.Base(key),
				Path:       "/" + key,
				Size:       aws.ToInt64(obj.Size),
				Extension:  path.Ext(key),
				ModifiedAt: aws.ToTime(obj.LastModified),
			})
		}
	}

	byName := func(a, b resource.Entry) int { return strings.Compare(a.Name, b.Name) }
	slices.SortFunc(dirs, byName)
	slices.SortFunc(files, byName)

	entries := append(dirs, files...)
	for i := range entries {
		entries[i].Index = i
	}

	slog.Debug("s3 listing", "bucket", sp.Scope, "prefix", prefix, "dirs", len(dirs), "files", len(files))
	return entries, nil
}
