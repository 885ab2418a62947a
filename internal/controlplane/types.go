package controlplane

import (
	"github.com/openmined/storagebrowser/internal/conflict"
	"github.com/openmined/storagebrowser/internal/operation"
	"github.com/openmined/storagebrowser/internal/transport"
	"github.com/openmined/storagebrowser/internal/upload"
)

const (
	CodeOk               = "OK"
	ErrCodeBadRequest    = "ERR_BAD_REQUEST"
	ErrCodeUnauthorized  = "ERR_UNAUTHORIZED"
	ErrCodeRateLimited   = "ERR_RATE_LIMITED"
	ErrCodeNotFound      = "ERR_NOT_FOUND"
	ErrCodeUploadFailed  = "ERR_UPLOAD_FAILED"
	ErrCodeBackendFailed = "ERR_BACKEND_FAILED"
)

type ErrorResponse struct {
	Code  string `json:"code"`
	Error string `json:"error"`
}

type ResolveResponse struct {
	Scope string `json:"scope,omitempty"`
	Path  string `json:"path"`
	Key   string `json:"key"`
}

type TransferRequest struct {
	Items       []operation.Item  `json:"items" binding:"required,min=1,dive"`
	Destination string            `json:"destination" binding:"required"`
	Options     operation.Options `json:"options"`
}

type ConflictRequest struct {
	Items       []operation.Item `json:"items" binding:"required,min=1,dive"`
	Destination string           `json:"destination" binding:"required"`
	// Policy, when set, also resolves the collisions it finds.
	Policy *conflict.Policy `json:"policy,omitempty"`
}

type ConflictResponse struct {
	*conflict.Result
	Resolution *conflict.Resolution `json:"resolution,omitempty"`
}

type UploadRequest struct {
	// LocalPath is a file on the machine running the control plane.
	LocalPath string `json:"localPath" binding:"required"`
	Path      string `json:"path" binding:"required"`
	Overwrite bool   `json:"overwrite"`
}

type UploadResponse struct {
	// Resumable is false when the file went through the simple upload and is
	// already stored.
	Resumable bool         `json:"resumable"`
	Upload    *upload.Info `json:"upload,omitempty"`
}

type UploadListResponse struct {
	Uploads []upload.Info `json:"uploads"`
}

type AbortRequest struct {
	Key string `json:"key" binding:"required"`
}

type AbortResponse struct {
	Aborted bool `json:"aborted"`
}

type StatsResponse struct {
	Transport     transport.HTTPStatsSnapshot `json:"transport"`
	ActiveUploads int                         `json:"activeUploads"`
}
