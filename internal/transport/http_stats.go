package transport

import (
	"sync/atomic"
	"time"
)

// httpStats tracks the bytes moved by a Client.
type httpStats struct {
	requests   atomic.Int64
	failures   atomic.Int64
	bytesSent  atomic.Int64
	bytesRecv  atomic.Int64
	lastSentNs atomic.Int64
	lastRecvNs atomic.Int64

	lastErrorValue atomic.Value // string
}

func newHTTPStats() *httpStats {
	s := &httpStats{}
	s.lastErrorValue.Store("")
	return s
}

func (s *httpStats) onSend(n int) {
	s.requests.Add(1)
	if n <= 0 {
		return
	}
	s.bytesSent.Add(int64(n))
	s.lastSentNs.Store(time.Now().UnixNano())
}

func (s *httpStats) onRecv(n int) {
	if n <= 0 {
		return
	}
	s.bytesRecv.Add(int64(n))
	s.lastRecvNs.Store(time.Now().UnixNano())
}

func (s *httpStats) setLastError(err error) {
	if err == nil {
		return
	}
	s.failures.Add(1)
	s.lastErrorValue.Store(err.Error())
}

func (s *httpStats) snapshot() HTTPStatsSnapshot {
	lastErr, _ := s.lastErrorValue.Load().(string)
	return HTTPStatsSnapshot{
		Requests:       s.requests.Load(),
		Failures:       s.failures.Load(),
		BytesSentTotal: s.bytesSent.Load(),
		BytesRecvTotal: s.bytesRecv.Load(),
		LastSentAtNs:   s.lastSentNs.Load(),
		LastRecvAtNs:   s.lastRecvNs.Load(),
		LastError:      lastErr,
	}
}

// HTTPStatsSnapshot is a stable, JSON-friendly view of HTTP traffic.
type HTTPStatsSnapshot struct {
	Requests       int64  `json:"requests"`
	Failures       int64  `json:"failures"`
	BytesSentTotal int64  `json:"bytes_sent_total"`
	BytesRecvTotal int64  `json:"bytes_recv_total"`
	LastSentAtNs   int64  `json:"last_sent_at_ns,omitempty"`
	LastRecvAtNs   int64  `json:"last_recv_at_ns,omitempty"`
	LastError      string `json:"last_error,omitempty"`
}
