// Package fuzzer probes insertion points for type confusion and drives the
// scan over many base requests
package fuzzer

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/su1ph3r/typeconfusion/internal/detector"
	"github.com/su1ph3r/typeconfusion/internal/httpmsg"
	"github.com/su1ph3r/typeconfusion/internal/insertion"
	"github.com/su1ph3r/typeconfusion/internal/logging"
	"github.com/su1ph3r/typeconfusion/internal/metrics"
	"github.com/su1ph3r/typeconfusion/pkg/types"
)

// Finding titles
const (
	TitleQueryArray      = "Array confusion found in urlencoded query parameter"
	TitleBodyArray       = "Array confusion found in urlencoded body parameter"
	TitleJSONType        = "Type confusion found in JSON body"
	TitleJSONArray       = "Array confusion found in JSON body"
	TitleJSONNestedArray = "Nested Array confusion found in JSON body"
)

// ConsolidationAction tells the caller which of two findings to keep
type ConsolidationAction int

const (
	KeepExisting ConsolidationAction = iota
	KeepBoth
)

func (a ConsolidationAction) String() string {
	switch a {
	case KeepExisting:
		return "KEEP_EXISTING"
	default:
		return "KEEP_BOTH"
	}
}

// ineligibleKinds have no array or type analog, or mutating them risks
// breaking the request framing
var ineligibleKinds = map[insertion.Kind]struct{}{
	insertion.EntireBody:         {},
	insertion.ExtensionProvided:  {},
	insertion.Header:             {},
	insertion.ParamAMF:           {},
	insertion.ParamCookie:        {},
	insertion.ParamMultipartAttr: {},
	insertion.ParamXML:           {},
	insertion.ParamXMLAttr:       {},
	insertion.Unknown:            {},
	insertion.URLPathFilename:    {},
	insertion.URLPathFolder:      {},
	insertion.UserProvided:       {},
	insertion.ParamNameURL:       {},
	insertion.ParamNameBody:      {},
}

// Eligible reports whether points of this kind are actively probed
func Eligible(kind insertion.Kind) bool {
	_, excluded := ineligibleKinds[kind]
	return !excluded
}

// AuditResult is the outcome of probing one insertion point. When Err is
// set the probe was abandoned and Findings is empty.
type AuditResult struct {
	Findings []types.Finding
	Requests int
	Err      error
}

// Check is the type confusion scan check. It holds no per-probe state and
// may be used from many goroutines at once.
type Check struct {
	sender  Sender
	logger  logging.Logger
	metrics *metrics.Recorder
	now     func() time.Time
}

// NewCheck creates a check sending through sender. logger and rec may be
// nil.
func NewCheck(sender Sender, logger logging.Logger, rec *metrics.Recorder) *Check {
	if logger == nil {
		logger = logging.Nop()
	}
	return &Check{sender: sender, logger: logger, metrics: rec, now: time.Now}
}

// ActiveAudit probes one insertion point of base. It never fails: any error
// abandons the probe, is logged and counted, and yields no findings.
func (c *Check) ActiveAudit(ctx context.Context, base httpmsg.RequestResponse, point insertion.Point) AuditResult {
	if !Eligible(point.Kind()) {
		return AuditResult{Findings: []types.Finding{}}
	}

	url := base.Request.URL()
	c.logger.Infof("Scanning '%s' of type %s on url %s", point.Name(), point.Kind(), url)
	c.metrics.ProbeStarted(point.Kind().String())

	p := &probe{check: c, ctx: ctx, base: base, point: point}

	var findings []types.Finding
	var err error
	if point.Kind() == insertion.ParamURL {
		findings, err = p.query()
	} else {
		findings, err = p.body()
	}

	if err != nil {
		perr := &ProbeError{Point: point.Name(), Kind: point.Kind().String(), URL: url, Err: err}
		c.logger.Warnf("%v", perr)
		c.metrics.ProbeFailed()
		return AuditResult{Findings: []types.Finding{}, Requests: p.requests, Err: perr}
	}

	for _, f := range findings {
		c.metrics.FindingReported(f.Title)
	}
	if findings == nil {
		findings = []types.Finding{}
	}
	return AuditResult{Findings: findings, Requests: p.requests}
}

// PassiveAudit does nothing; the check only reasons about responses to
// requests it sent itself
func (c *Check) PassiveAudit(base httpmsg.RequestResponse) []types.Finding {
	return []types.Finding{}
}

// ConsolidateIssues keeps only the existing finding when both carry the
// exact same description
func (c *Check) ConsolidateIssues(newFinding, existing types.Finding) ConsolidationAction {
	if existing.Description == newFinding.Description {
		return KeepExisting
	}
	return KeepBoth
}

// probe carries the state of one ActiveAudit call
type probe struct {
	check    *Check
	ctx      context.Context
	base     httpmsg.RequestResponse
	point    insertion.Point
	requests int
}

// send issues req bound to the base service
func (p *probe) send(req *httpmsg.Request) (*httpmsg.Response, error) {
	if err := p.ctx.Err(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrTransport, err)
	}

	p.requests++
	resp, err := p.check.sender.Send(p.ctx, req.WithService(p.base.Request.Service()))
	if err != nil {
		if errors.Is(err, ErrTransport) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %v", ErrTransport, err)
	}
	return resp, nil
}

// changed sends req and reports whether its response diverged from base
func (p *probe) changed(req *httpmsg.Request) (bool, *httpmsg.Response, error) {
	resp, err := p.send(req)
	if err != nil {
		return false, nil, err
	}
	return detector.DetectChange(p.base.Response, resp), resp, nil
}

// gates runs both false-positive checks. The probe may continue only if the
// garbage value and the removal of the parameter each change the response.
func (p *probe) gates(garbage *httpmsg.Request, paramType httpmsg.ParamType) (bool, error) {
	changed, _, err := p.changed(garbage)
	if err != nil || !changed {
		return false, err
	}

	removed, err := p.base.Request.WithRemovedParameter(p.point.Name(), paramType)
	if err != nil {
		if errors.Is(err, httpmsg.ErrParameterNotFound) {
			return false, fmt.Errorf("%w: %v", ErrParameterNotFound, err)
		}
		return false, fmt.Errorf("%w: %v", ErrMalformedBody, err)
	}

	changed, _, err = p.changed(removed)
	if err != nil || !changed {
		return false, err
	}
	return true, nil
}

// finding builds the report for a mutation whose response matched base
func (p *probe) finding(title, shape, payload string, mutated *httpmsg.Request, resp *httpmsg.Response, marker types.Marker) types.Finding {
	baseValue := p.point.BaseValue()
	return types.Finding{
		ID:         uuid.New().String(),
		Type:       types.FindingTypeTypeConfusion,
		Severity:   types.SeverityInfo,
		Confidence: types.ConfidenceFirm,
		Title:      title,
		Description: "The response to the modified request has the same status and similar length to the base request. " +
			"The value <b>" + baseValue + "</b>, was resubmitted as " + shape + " <b>" + payload + "</b> and the response was the same.",
		URL:       p.base.Request.URL(),
		Method:    p.base.Request.Method(),
		Parameter: p.point.Name(),
		Kind:      p.point.Kind().String(),
		Payload:   payload,
		Evidence: &types.Evidence{
			Request:      mutated.String(),
			Response:     &types.ResponseRef{StatusCode: resp.StatusCode, BodyLength: resp.BodyLength()},
			BaselineResp: &types.ResponseRef{StatusCode: p.base.Response.StatusCode, BodyLength: p.base.Response.BodyLength()},
			Markers:      []types.Marker{marker},
		},
		Timestamp: p.check.now(),
	}
}
