package storageapi

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/openmined/storagebrowser/internal/transport"
)

const bucketsPath = "/api/buckets"

var ErrEmptyBucket = errors.New("storageapi: bucket name is empty")

// Bucket is a scope advertised by an S3 backend.
type Bucket struct {
	Name string `json:"name" yaml:"name"`
}

// Buckets is the client for /api/buckets.
type Buckets struct {
	t transport.Transport
}

func NewBuckets(t transport.Transport) *Buckets {
	return &Buckets{t: t}
}

// List returns the buckets of the backend. Local backends return none.
func (b *Buckets) List(ctx context.Context) ([]Bucket, error) {
	resp, err := b.t.Send(ctx, transport.NewRequest(http.MethodGet, bucketsPath, nil))
	if err != nil {
		return nil, fmt.Errorf("list buckets: %w", err)
	}

	buckets := []Bucket{}
	if err := resp.DecodeJSON(&buckets); err != nil {
		return nil, fmt.Errorf("decode buckets: %w", err)
	}
	return buckets, nil
}

// Switch makes name the backend's current bucket.
func (b *Buckets) Switch(ctx context.Context, name string) error {
	if name == "" {
		return ErrEmptyBucket
	}

	req, err := transport.NewRequest(http.MethodPut, bucketsPath, nil).WithJSON(map[string]string{"bucket": name})
	if err != nil {
		return err
	}

	if _, err := b.t.Send(ctx, req); err != nil {
		return fmt.Errorf("switch bucket %s: %w", name, err)
	}
	return nil
}
