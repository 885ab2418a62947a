package upload

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"

	"github.com/openmined/storagebrowser/internal/transport"
)

const (
	tusPath          = "/api/tus"
	tusVersion       = "1.0.0"
	tusChunkMimeType = "application/offset+octet-stream"
)

func (u *Upload) tusRequest(method string, query url.Values) *transport.Request {
	req := transport.NewRequest(method, tusPath+u.target.Path, query)
	req.Header.Set(transport.HeaderTusResumable, tusVersion)
	return req
}

func (u *Upload) scopeQuery() url.Values {
	q := url.Values{}
	if u.target.IsScoped() {
		q.Set("scope", u.target.Scope)
	}
	return q
}

// create opens the upload on the backend. A 409 means the file exists and
// overwrite was not requested.
func (u *Upload) create(ctx context.Context, t transport.Transport) error {
	q := u.scopeQuery()
	q.Set("override", strconv.FormatBool(u.overwrite))

	req := u.tusRequest(http.MethodPost, q)
	req.Header.Set(transport.HeaderUploadLength, strconv.FormatInt(u.size, 10))

	if _, err := t.Send(ctx, req); err != nil {
		return err
	}
	u.created.Store(true)
	return nil
}

// patch sends one chunk at offset and returns the offset acknowledged by the backend.
func (u *Upload) patch(ctx context.Context, t transport.Transport, offset int64, chunk []byte) (int64, error) {
	req := u.tusRequest(http.MethodPatch, u.scopeQuery())
	req.Header.Set(transport.HeaderContentType, tusChunkMimeType)
	req.Header.Set(transport.HeaderUploadOffset, strconv.FormatInt(offset, 10))
	req.Body = chunk

	resp, err := t.Send(ctx, req)
	if err != nil {
		return 0, err
	}

	next := offset + int64(len(chunk))
	if v := resp.Header.Get(transport.HeaderUploadOffset); v != "" {
		parsed, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return 0, fmt.Errorf("invalid %s %q: %w", transport.HeaderUploadOffset, v, err)
		}
		next = parsed
	}
	return next, nil
}

// head asks the backend how many bytes it holds for this upload.
func (u *Upload) head(ctx context.Context, t transport.Transport) (int64, error) {
	resp, err := t.Send(ctx, u.tusRequest(http.MethodHead, u.scopeQuery()))
	if err != nil {
		return 0, err
	}

	v := resp.Header.Get(transport.HeaderUploadOffset)
	offset, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q: %w", transport.HeaderUploadOffset, v, err)
	}
	return offset, nil
}

// discard deletes the partial file left by an aborted upload.
func (u *Upload) discard(ctx context.Context, t transport.Transport) error {
	_, err := t.Send(ctx, u.tusRequest(http.MethodDelete, u.scopeQuery()))
	return err
}
