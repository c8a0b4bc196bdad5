package fuzzer

import (
	"fmt"

	"github.com/su1ph3r/typeconfusion/internal/httpmsg"
	"github.com/su1ph3r/typeconfusion/internal/inference"
	"github.com/su1ph3r/typeconfusion/internal/payloads"
	"github.com/su1ph3r/typeconfusion/pkg/types"
)

// body probes a body parameter according to the request content type.
// Bodies that are neither JSON nor urlencoded are not probed.
func (p *probe) body() ([]types.Finding, error) {
	switch p.base.Request.ContentType() {
	case httpmsg.ContentTypeJSON:
		return p.jsonBody()
	case httpmsg.ContentTypeURLEncoded:
		return p.form()
	default:
		return nil, nil
	}
}

// form probes an urlencoded body parameter with the array shapes
func (p *probe) form() ([]types.Finding, error) {
	garbage, err := p.point.BuildRequestWithPayload([]byte(payloads.GarbageValue))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedBody, err)
	}

	ok, err := p.gates(garbage, httpmsg.ParamBody)
	if err != nil || !ok {
		return nil, err
	}

	name := p.point.Name()
	baseReq := p.base.Request

	var findings []types.Finding
	for _, m := range payloads.FormMutations(payloads.BodySuffix) {
		payload := m.Render(name, p.point.BaseValue())
		mutated := baseReq.WithBody(payloads.ReplaceFirstFormParam(baseReq.Body(), name, payload))

		changed, resp, err := p.changed(mutated)
		if err != nil {
			return nil, err
		}
		if changed {
			continue
		}

		marker := p.point.Highlight([]byte(payload)).Shift(len(name) + 1)
		findings = append(findings, p.finding(TitleBodyArray, "an array", payload, mutated, resp, marker))
	}

	return findings, nil
}

// jsonBody probes a JSON property. Non-string values are resubmitted as
// strings; string values are wrapped in an array and a nested array.
func (p *probe) jsonBody() ([]types.Finding, error) {
	name := p.point.Name()
	value := p.point.BaseValue()
	baseReq := p.base.Request
	body := baseReq.Body()

	if !payloads.HasJSONKey(body, name) {
		return nil, nil
	}

	jsonType, err := inference.ClassifyJSONProperty(body, name, value)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedBody, err)
	}

	// A string garbage value would itself change the type of a number
	var garbage *httpmsg.Request
	if jsonType == inference.JSONNumber {
		garbage = baseReq.WithBody(payloads.ReplaceFirstJSONMember(body, name, value, payloads.NumberGarbageMember(name)))
	} else {
		garbage, err = p.point.BuildRequestWithPayload([]byte(payloads.GarbageValue))
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrMalformedBody, err)
		}
	}

	ok, err := p.gates(garbage, httpmsg.ParamJSON)
	if err != nil || !ok {
		return nil, err
	}

	var findings []types.Finding

	if jsonType != inference.JSONString {
		mutated, err := p.point.BuildRequestWithPayload([]byte(value))
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrMalformedBody, err)
		}

		changed, resp, err := p.changed(mutated)
		if err != nil {
			return nil, err
		}
		if !changed {
			marker := p.point.Highlight([]byte(value))
			findings = append(findings, p.finding(TitleJSONType, "a string", value, mutated, resp, marker))
		}
		return findings, nil
	}

	serialized, err := inference.SerializeJSONString(value)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedBody, err)
	}

	for _, m := range payloads.JSONArrayMutations() {
		payload := m.Render(name, serialized)
		mutated := baseReq.WithBody(payloads.ReplaceFirstJSONMember(body, name, serialized, payload))

		changed, resp, err := p.changed(mutated)
		if err != nil {
			return nil, err
		}
		if changed {
			continue
		}

		title, shape := TitleJSONArray, "an array"
		if m.Kind == payloads.NestedArray {
			title, shape = TitleJSONNestedArray, "a nested array"
		}
		marker := p.point.Highlight([]byte(payload))
		findings = append(findings, p.finding(title, shape, payload, mutated, resp, marker))
	}

	return findings, nil
}
