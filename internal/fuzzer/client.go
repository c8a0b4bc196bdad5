package fuzzer

import (
	"context"
	"crypto/tls"
	"fmt"
	"net/http"
	"net/url"
	"sync"
	"sync/atomic"
	"time"

	"github.com/su1ph3r/typeconfusion/internal/httpmsg"
	"github.com/su1ph3r/typeconfusion/internal/logging"
	"github.com/su1ph3r/typeconfusion/internal/metrics"
	"github.com/su1ph3r/typeconfusion/pkg/types"
)

// maxBodySize caps how much of a response body is read
const maxBodySize = 10 * 1024 * 1024

// Sender sends one request and returns the full response
type Sender interface {
	Send(ctx context.Context, req *httpmsg.Request) (*httpmsg.Response, error)
}

// HTTPSender is the network transport. It never retries: a failed send is
// returned to the probe as ErrTransport.
type HTTPSender struct {
	client  *http.Client
	limiter *BackoffLimiter
	session *Session
	reqLog  *RequestLogger
	logger  logging.Logger
	metrics *metrics.Recorder
	sent    atomic.Int64

	// reqLogFailed reports the first request log write failure only
	reqLogFailed sync.Once
}

// NewHTTPSender builds the transport from the scan and HTTP settings
func NewHTTPSender(config types.Config, reqLog *RequestLogger, logger logging.Logger, rec *metrics.Recorder) (*HTTPSender, error) {
	if logger == nil {
		logger = logging.Nop()
	}

	concurrency := config.Scan.Concurrency
	if concurrency < 1 {
		concurrency = 1
	}

	transport := &http.Transport{
		MaxIdleConns:        concurrency * 2,
		MaxIdleConnsPerHost: concurrency,
		IdleConnTimeout:     90 * time.Second,
		TLSClientConfig: &tls.Config{
			InsecureSkipVerify: !config.Scan.VerifySSL,
		},
	}

	if config.HTTP.ProxyURL != "" {
		proxyURL, err := url.Parse(config.HTTP.ProxyURL)
		if err != nil {
			return nil, fmt.Errorf("invalid proxy URL: %w", err)
		}
		transport.Proxy = http.ProxyURL(proxyURL)
	}

	client := &http.Client{
		Transport: transport,
		Timeout:   config.Scan.Timeout,
		CheckRedirect: func(req *http.Request, via []*http.Request) error {
			if !config.Scan.FollowRedirects {
				return http.ErrUseLastResponse
			}
			if len(via) >= config.Scan.MaxRedirects {
				return fmt.Errorf("too many redirects")
			}
			return nil
		},
	}

	return &HTTPSender{
		client:  client,
		limiter: NewBackoffLimiter(config.Scan.RateLimit),
		session: NewSession(config.HTTP.Headers, config.HTTP.Cookies, config.HTTP.AuthHeader, config.HTTP.UserAgent),
		reqLog:  reqLog,
		logger:  logger,
		metrics: rec,
	}, nil
}

// Send implements Sender
func (s *HTTPSender) Send(ctx context.Context, req *httpmsg.Request) (*httpmsg.Response, error) {
	if err := s.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrTransport, err)
	}

	httpReq, err := req.ToHTTP(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrTransport, err)
	}

	s.session.Apply(httpReq)

	s.sent.Add(1)
	s.metrics.RequestSent()

	start := time.Now()
	resp, err := s.do(httpReq)
	if logErr := s.reqLog.Log(req, resp, time.Since(start), err); logErr != nil {
		s.reqLogFailed.Do(func() {
			s.logger.Warnf("request log write failed, further failures are not reported: %v", logErr)
		})
	}
	if err != nil {
		return nil, err
	}

	s.limiter.Record(resp.StatusCode, resp.Headers.Get("Retry-After"))
	return resp, nil
}

func (s *HTTPSender) do(httpReq *http.Request) (*httpmsg.Response, error) {
	resp, err := s.client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrTransport, err)
	}

	out, err := httpmsg.ReadResponse(resp, maxBodySize)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrTransport, err)
	}
	return out, nil
}

// Sent returns the number of requests sent so far
func (s *HTTPSender) Sent() int {
	return int(s.sent.Load())
}
