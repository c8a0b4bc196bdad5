package fuzzer

import (
	"fmt"

	"github.com/su1ph3r/typeconfusion/internal/httpmsg"
	"github.com/su1ph3r/typeconfusion/internal/payloads"
	"github.com/su1ph3r/typeconfusion/pkg/types"
)

// query probes a query string parameter with the urlencoded array shapes
func (p *probe) query() ([]types.Finding, error) {
	garbage, err := p.point.BuildRequestWithPayload([]byte(payloads.GarbageValue))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedBody, err)
	}

	ok, err := p.gates(garbage, httpmsg.ParamURL)
	if err != nil || !ok {
		return nil, err
	}

	name := p.point.Name()
	baseReq := p.base.Request

	var findings []types.Finding
	for _, m := range payloads.FormMutations(payloads.QuerySuffix) {
		payload := m.Render(name, p.point.BaseValue())
		query := payloads.ReplaceFirstFormParam(baseReq.Query(), name, payload)
		mutated := baseReq.WithPath(baseReq.PathWithoutQuery() + "?" + query)

		changed, resp, err := p.changed(mutated)
		if err != nil {
			return nil, err
		}
		if changed {
			continue
		}

		marker := p.point.Highlight([]byte(payload)).Shift(len(name) + 1)
		findings = append(findings, p.finding(TitleQueryArray, "an array", payload, mutated, resp, marker))
	}

	return findings, nil
}
