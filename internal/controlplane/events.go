package controlplane

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"github.com/gin-gonic/gin"
)

const (
	DefaultEventInterval = 500 * time.Millisecond
	writeTimeout         = 10 * time.Second
)

// UploadEvents streams the upload list over a websocket, once on connect and
// then on every tick, until the peer goes away.
func (h *Handlers) UploadEvents(interval time.Duration) gin.HandlerFunc {
	if interval <= 0 {
		interval = DefaultEventInterval
	}

	return func(c *gin.Context) {
		conn, err := websocket.Accept(c.Writer, c.Request, &websocket.AcceptOptions{
			OriginPatterns: []string{"localhost:*", "127.0.0.1:*"},
		})
		if err != nil {
			slog.Warn("upload events accept", "error", err)
			return
		}
		defer conn.CloseNow()

		// the stream is write-only; CloseRead cancels ctx when the peer closes
		ctx := conn.CloseRead(c.Request.Context())

		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			if err := h.writeUploads(ctx, conn); err != nil {
				if !errors.Is(err, context.Canceled) && websocket.CloseStatus(err) == -1 {
					slog.Debug("upload events write", "error", err)
				}
				return
			}

			select {
			case <-ctx.Done():
				conn.Close(websocket.StatusNormalClosure, "")
				return
			case <-ticker.C:
			}
		}
	}
}

func (h *Handlers) writeUploads(ctx context.Context, conn *websocket.Conn) error {
	ctx, cancel := context.WithTimeout(ctx, writeTimeout)
	defer cancel()
	return wsjson.Write(ctx, conn, UploadListResponse{Uploads: h.uploadInfos()})
}

func methodNotAllowed(c *gin.Context) {
	c.JSON(http.StatusMethodNotAllowed, ErrorResponse{Code: ErrCodeBadRequest, Error: "method not allowed"})
}

func notFound(c *gin.Context) {
	c.JSON(http.StatusNotFound, ErrorResponse{Code: ErrCodeNotFound, Error: "not found"})
}
