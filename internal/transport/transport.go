// Package transport is the HTTP boundary of the storage client. It attaches the
// session credential, reacts to renewal and logout signals from the backend and
// maps every failure onto a closed set of error kinds.
package transport

import (
	"context"
	"io"
	"net/http"
	"net/url"
)

const (
	HeaderAuth         = "X-Auth"
	HeaderRenewToken   = "X-Renew-Token"
	HeaderUserAgent    = "User-Agent"
	HeaderClientVer    = "X-Storagebrowser-Version"
	HeaderContentType  = "Content-Type"
	HeaderTusResumable = "Tus-Resumable"
	HeaderUploadLength = "Upload-Length"
	HeaderUploadOffset = "Upload-Offset"
	HeaderLocation     = "Location"
)

// Request is a single backend call. Path is relative to the client's base URL and
// is escaped by the transport. When both Body and BodyReader are set, Body wins.
type Request struct {
	Method     string
	Path       string
	Query      url.Values
	Header     http.Header
	Body       []byte
	BodyReader io.Reader

	// Anonymous requests carry no credential and never trigger renewal or logout.
	Anonymous bool
}

// Response is a fully read backend response with a 2xx status.
type Response struct {
	Status int
	Header http.Header
	Body   []byte
}

// Transport sends requests to the backend. A non-2xx status is returned as *Error.
type Transport interface {
	Send(ctx context.Context, req *Request) (*Response, error)
}

// Credentials is the session collaborator consumed by the transport.
type Credentials interface {
	Token() string
	Renew(ctx context.Context) error
	Logout(ctx context.Context) error
}

// UploadTracker reports how many resumable uploads are in flight. A 401 does not
// tear the session down while uploads are active.
type UploadTracker interface {
	Active() int
}

// NewRequest is a convenience constructor for a request with an empty header set.
func NewRequest(method, path string, query url.Values) *Request {
	return &Request{
		Method: method,
		Path:   path,
		Query:  query,
		Header: make(http.Header),
	}
}

// WithJSON sets a JSON encoded body on the request.
func (r *Request) WithJSON(v any) (*Request, error) {
	data, err := jsonMarshal(v)
	if err != nil {
		return nil, err
	}
	if r.Header == nil {
		r.Header = make(http.Header)
	}
	r.Header.Set(HeaderContentType, "application/json")
	r.Body = data
	return r, nil
}

// DecodeJSON decodes the response body into v.
func (r *Response) DecodeJSON(v any) error {
	return jsonUnmarshal(r.Body, v)
}
