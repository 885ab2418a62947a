package controlplane

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/openmined/storagebrowser/internal/operation"
	"github.com/openmined/storagebrowser/internal/scopepath"
	"github.com/openmined/storagebrowser/internal/transport"
	"github.com/openmined/storagebrowser/internal/upload"
	"github.com/openmined/storagebrowser/internal/version"
)

// Handlers serve the v1 routes.
type Handlers struct {
	resolver   scopepath.Resolver
	dispatcher *upload.Dispatcher
	executor   *operation.Executor
	stats      StatsSource
}

// StatsSource reports the traffic between this process and the storage server.
type StatsSource interface {
	Stats() transport.HTTPStatsSnapshot
}

func NewHandlers(resolver scopepath.Resolver, dispatcher *upload.Dispatcher, executor *operation.Executor) *Handlers {
	return &Handlers{
		resolver:   resolver,
		dispatcher: dispatcher,
		executor:   executor,
	}
}

// WithStats makes the storage server traffic of src available on /v1/stats.
func (h *Handlers) WithStats(src StatsSource) *Handlers {
	h.stats = src
	return h
}

func AbortWithError(c *gin.Context, status int, code string, err error) {
	c.Abort()
	_ = c.Error(err)
	c.PureJSON(status, ErrorResponse{
		Code:  code,
		Error: err.Error(),
	})
}

func Index(c *gin.Context) {
	c.JSON(http.StatusOK, version.Current())
}

// Resolve translates a UI path into the backend path and scope.
func (h *Handlers) Resolve(c *gin.Context) {
	uiPath := c.Query("path")
	if uiPath == "" {
		AbortWithError(c, http.StatusBadRequest, ErrCodeBadRequest, errors.New("path is required"))
		return
	}

	sp := h.resolver.Resolve(uiPath)
	c.JSON(http.StatusOK, ResolveResponse{Scope: sp.Scope, Path: sp.Path, Key: sp.Key()})
}

// CheckConflicts reports collisions at the destination without changing anything.
// With a policy in the request the collisions are also resolved to the names the
// transfer would use.
func (h *Handlers) CheckConflicts(c *gin.Context) {
	var req ConflictRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, http.StatusBadRequest, ErrCodeBadRequest, err)
		return
	}

	if req.Policy == nil {
		result, err := h.executor.Check(c.Request.Context(), req.Items, req.Destination)
		if err != nil {
			abortWithBackendError(c, err)
			return
		}
		c.JSON(http.StatusOK, ConflictResponse{Result: result})
		return
	}

	result, resolution, err := h.executor.CheckAndResolve(c.Request.Context(), req.Items, req.Destination, *req.Policy)
	if err != nil {
		abortWithBackendError(c, err)
		return
	}
	c.JSON(http.StatusOK, ConflictResponse{Result: result, Resolution: resolution})
}

func (h *Handlers) Move(c *gin.Context) {
	h.transfer(c, operation.ModeMove)
}

func (h *Handlers) Copy(c *gin.Context) {
	h.transfer(c, operation.ModeCopy)
}

func (h *Handlers) transfer(c *gin.Context, mode operation.Mode) {
	var req TransferRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, http.StatusBadRequest, ErrCodeBadRequest, err)
		return
	}

	res := h.executor.Execute(c.Request.Context(), mode, req.Items, req.Destination, req.Options)
	switch {
	case res.Success:
		c.JSON(http.StatusOK, res)
	case res.Kind == transport.KindConflict:
		c.JSON(http.StatusConflict, res)
	default:
		c.JSON(http.StatusBadGateway, res)
	}
}

// StartUpload uploads a local file. Resumable uploads keep running after the
// response; their progress is on the events stream.
func (h *Handlers) StartUpload(c *gin.Context) {
	var req UploadRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, http.StatusBadRequest, ErrCodeBadRequest, err)
		return
	}

	file, err := upload.OpenFile(req.LocalPath)
	if err != nil {
		AbortWithError(c, http.StatusBadRequest, ErrCodeBadRequest, err)
		return
	}

	// the upload outlives the request
	ctx := context.WithoutCancel(c.Request.Context())
	u, err := h.dispatcher.Upload(ctx, req.Path, file, req.Overwrite)
	if err != nil {
		file.Close()
		abortWithBackendError(c, err)
		return
	}

	if u == nil {
		file.Close()
		c.JSON(http.StatusOK, UploadResponse{})
		return
	}

	go func() {
		<-u.Done()
		file.Close()
	}()

	info := u.Info()
	c.JSON(http.StatusAccepted, UploadResponse{Resumable: true, Upload: &info})
}

func (h *Handlers) ListUploads(c *gin.Context) {
	c.JSON(http.StatusOK, UploadListResponse{Uploads: h.uploadInfos()})
}

func (h *Handlers) AbortUpload(c *gin.Context) {
	var req AbortRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, http.StatusBadRequest, ErrCodeBadRequest, err)
		return
	}

	if !h.dispatcher.Coordinator().Abort(req.Key) {
		AbortWithError(c, http.StatusNotFound, ErrCodeNotFound, fmt.Errorf("no upload for %s", req.Key))
		return
	}

	c.JSON(http.StatusOK, AbortResponse{Aborted: true})
}

func (h *Handlers) AbortAllUploads(c *gin.Context) {
	h.dispatcher.Coordinator().AbortAll()
	c.JSON(http.StatusOK, AbortResponse{Aborted: true})
}

func (h *Handlers) Stats(c *gin.Context) {
	var resp StatsResponse
	if h.stats != nil {
		resp.Transport = h.stats.Stats()
	}
	if h.dispatcher != nil {
		resp.ActiveUploads = h.dispatcher.Coordinator().Active()
	}
	c.JSON(http.StatusOK, resp)
}

func (h *Handlers) uploadInfos() []upload.Info {
	uploads := h.dispatcher.Coordinator().Registry().List()
	infos := make([]upload.Info, len(uploads))
	for i, u := range uploads {
		infos[i] = u.Info()
	}
	return infos
}

func abortWithBackendError(c *gin.Context, err error) {
	status := http.StatusBadGateway
	switch transport.KindOf(err) {
	case transport.KindConflict:
		status = http.StatusConflict
	case transport.KindAuth:
		status = http.StatusUnauthorized
	case transport.KindNone:
		status = http.StatusBadRequest
	}
	AbortWithError(c, status, ErrCodeBackendFailed, err)
}
