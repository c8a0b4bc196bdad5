package fuzzer

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/su1ph3r/typeconfusion/internal/httpmsg"
	"github.com/su1ph3r/typeconfusion/internal/insertion"
	"github.com/su1ph3r/typeconfusion/internal/logging"
	"github.com/su1ph3r/typeconfusion/internal/metrics"
	"github.com/su1ph3r/typeconfusion/pkg/types"
)

// Engine runs the check over every insertion point of a set of base
// requests
type Engine struct {
	config  types.Config
	sender  Sender
	check   *Check
	logger  logging.Logger
	metrics *metrics.Recorder
	now     func() time.Time
}

// NewEngine creates a new scan engine
func NewEngine(config types.Config, sender Sender, logger logging.Logger, rec *metrics.Recorder) *Engine {
	if logger == nil {
		logger = logging.Nop()
	}
	return &Engine{
		config:  config,
		sender:  sender,
		check:   NewCheck(sender, logger, rec),
		logger:  logger,
		metrics: rec,
		now:     time.Now,
	}
}

// Check returns the check the engine runs
func (e *Engine) Check() *Check { return e.check }

// job is one insertion point of one base request
type job struct {
	base  httpmsg.RequestResponse
	point insertion.Point
}

// Scan probes every eligible insertion point of targets. Targets without a
// recorded response get a baseline first. Probes run concurrently up to the
// configured concurrency; the requests of a single probe stay sequential.
func (e *Engine) Scan(ctx context.Context, targets []httpmsg.RequestResponse) (*types.ScanResult, error) {
	start := e.now()
	result := &types.ScanResult{
		ScanID:    uuid.New().String(),
		StartTime: start,
		Targets:   len(targets),
		Findings:  []types.Finding{},
	}
	if len(targets) > 0 {
		result.Target = targets[0].Request.Service().BaseURL()
	}

	var mu sync.Mutex
	recordError := func(url, param string, err error) {
		mu.Lock()
		defer mu.Unlock()
		result.Errors = append(result.Errors, types.ScanError{
			URL:       url,
			Parameter: param,
			Error:     err.Error(),
			Timestamp: e.now(),
		})
	}

	bases, err := e.baselines(ctx, targets, recordError, &result.Requests)
	if err != nil {
		return e.finish(result), err
	}

	var jobs []job
	for _, base := range bases {
		for _, point := range insertion.Discover(base.Request) {
			jobs = append(jobs, job{base: base, point: point})
			if Eligible(point.Kind()) {
				result.Probes++
			}
		}
	}
	e.logger.Debugf("discovered %d insertion points across %d targets", len(jobs), len(bases))

	audits := make([]AuditResult, len(jobs))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.concurrency())
	for i, j := range jobs {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			audits[i] = e.check.ActiveAudit(gctx, j.base, j.point)
			return nil
		})
	}
	waitErr := g.Wait()

	for i, audit := range audits {
		result.Requests += audit.Requests
		if audit.Err != nil {
			recordError(jobs[i].base.Request.URL(), jobs[i].point.Name(), audit.Err)
		}
		for _, f := range audit.Findings {
			result.Findings = e.consolidate(result.Findings, f)
		}
	}

	return e.finish(result), waitErr
}

// baselines fills in missing base responses. Targets whose baseline cannot
// be fetched are skipped and recorded as errors.
func (e *Engine) baselines(ctx context.Context, targets []httpmsg.RequestResponse, recordError func(url, param string, err error), requests *int) ([]httpmsg.RequestResponse, error) {
	bases := make([]httpmsg.RequestResponse, len(targets))
	ok := make([]bool, len(targets))
	var sent int
	var mu sync.Mutex

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.concurrency())
	for i, t := range targets {
		if t.Response != nil {
			bases[i], ok[i] = t, true
			continue
		}
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			mu.Lock()
			sent++
			mu.Unlock()

			resp, err := e.sender.Send(gctx, t.Request)
			if err != nil {
				e.logger.Warnf("baseline request to %s failed: %v", t.Request.URL(), err)
				recordError(t.Request.URL(), "", fmt.Errorf("baseline: %w", err))
				return nil
			}
			bases[i], ok[i] = httpmsg.RequestResponse{Request: t.Request, Response: resp}, true
			return nil
		})
	}
	err := g.Wait()
	*requests += sent

	var out []httpmsg.RequestResponse
	for i := range bases {
		if ok[i] {
			out = append(out, bases[i])
		}
	}
	return out, err
}

// consolidate adds f unless an existing finding for the same URL and title
// is to be kept in its place
func (e *Engine) consolidate(kept []types.Finding, f types.Finding) []types.Finding {
	for _, existing := range kept {
		if existing.URL != f.URL || existing.Title != f.Title {
			continue
		}
		if e.check.ConsolidateIssues(f, existing) == KeepExisting {
			return kept
		}
	}
	return append(kept, f)
}

func (e *Engine) finish(result *types.ScanResult) *types.ScanResult {
	result.EndTime = e.now()
	result.Duration = result.EndTime.Sub(result.StartTime)
	result.Summary = types.NewScanSummary(result.Findings)
	return result
}

func (e *Engine) concurrency() int {
	if e.config.Scan.Concurrency < 1 {
		return 1
	}
	return e.config.Scan.Concurrency
}
