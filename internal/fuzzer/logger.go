package fuzzer

import (
	"encoding/json"
	"io"
	"sync"
	"time"

	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/su1ph3r/typeconfusion/internal/httpmsg"
	"github.com/su1ph3r/typeconfusion/pkg/types"
)

// RequestLogger writes every request/response pair as one JSON line
type RequestLogger struct {
	mu      sync.Mutex
	out     io.WriteCloser
	encoder *json.Encoder
	count   int
	enabled bool
}

// LogEntry represents a logged request/response pair
type LogEntry struct {
	Timestamp  time.Time       `json:"timestamp"`
	RequestNum int             `json:"request_num"`
	Method     string          `json:"method"`
	URL        string          `json:"url"`
	Request    string          `json:"request"`
	Response   *LoggedResponse `json:"response,omitempty"`
	Duration   string          `json:"duration"`
	Error      string          `json:"error,omitempty"`
}

// LoggedResponse contains response details for logging
type LoggedResponse struct {
	StatusCode  int    `json:"status_code"`
	BodyLength  int    `json:"body_length"`
	BodyPreview string `json:"body_preview,omitempty"`
}

// NewRequestLogger creates a request logger writing to a size-rotated file.
// An empty path returns a disabled logger.
func NewRequestLogger(filePath string, settings types.LogSettings) *RequestLogger {
	if filePath == "" {
		return &RequestLogger{enabled: false}
	}

	return newRequestLogger(&lumberjack.Logger{
		Filename:   filePath,
		MaxSize:    settings.MaxSizeMB,
		MaxBackups: settings.MaxBackups,
		MaxAge:     settings.MaxAgeDays,
	})
}

func newRequestLogger(w io.WriteCloser) *RequestLogger {
	return &RequestLogger{out: w, encoder: json.NewEncoder(w), enabled: true}
}

// Log writes one exchange. resp is nil when sending failed.
func (l *RequestLogger) Log(req *httpmsg.Request, resp *httpmsg.Response, duration time.Duration, sendErr error) error {
	if l == nil || !l.enabled {
		return nil
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	l.count++

	entry := LogEntry{
		Timestamp:  time.Now(),
		RequestNum: l.count,
		Method:     req.Method(),
		URL:        req.URL(),
		Request:    req.String(),
		Duration:   duration.String(),
	}

	if resp != nil {
		entry.Response = &LoggedResponse{
			StatusCode: resp.StatusCode,
			BodyLength: resp.BodyLength(),
		}

		// Include body preview (truncated)
		if len(resp.Body) > 0 {
			preview := string(resp.Body)
			if len(preview) > 500 {
				preview = preview[:500] + "..."
			}
			entry.Response.BodyPreview = preview
		}
	}

	if sendErr != nil {
		entry.Error = sendErr.Error()
	}

	return l.encoder.Encode(entry)
}

// Close closes the log file
func (l *RequestLogger) Close() error {
	if l == nil || !l.enabled {
		return nil
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	return l.out.Close()
}

// Count returns the number of logged entries
func (l *RequestLogger) Count() int {
	if l == nil {
		return 0
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.count
}
