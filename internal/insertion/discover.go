package insertion

import (
	"strings"

	"github.com/su1ph3r/typeconfusion/internal/httpmsg"
)

// Discover returns every insertion point of req in request order: query
// parameters, body parameters (urlencoded or JSON), cookies, then the
// names of query and body parameters.
func Discover(req *httpmsg.Request) []*Param {
	var points []*Param

	queryStart := queryOffset(req)
	var queryParams []httpmsg.FormParam
	if queryStart >= 0 {
		queryParams = httpmsg.ParseForm(req.Query())
		for _, fp := range queryParams {
			points = append(points, NewParam(req, ParamURL, fp.Name, fp.Value,
				queryStart+fp.ValueStart, queryStart+fp.ValueEnd))
		}
	}

	bodyStart := req.BodyOffset()
	var bodyParams []httpmsg.FormParam
	switch req.ContentType() {
	case httpmsg.ContentTypeURLEncoded:
		bodyParams = httpmsg.ParseForm(req.Body())
		for _, fp := range bodyParams {
			points = append(points, NewParam(req, ParamBody, fp.Name, fp.Value,
				bodyStart+fp.ValueStart, bodyStart+fp.ValueEnd))
		}

	case httpmsg.ContentTypeJSON:
		// A body that fails to tokenize simply has no JSON points
		members, _ := httpmsg.ScanJSON(req.Body())
		for _, m := range members {
			if !m.IsScalar() || m.Name == "" {
				continue
			}
			points = append(points, NewParam(req, ParamJSON, m.Name, m.Value,
				bodyStart+m.ValueStart, bodyStart+m.ValueEnd))
		}

	case httpmsg.ContentTypeXML:
		points = append(points, NewParam(req, EntireBody, "body", req.Body(), bodyStart, len(req.String())))
	}

	for _, c := range req.Cookies() {
		points = append(points, NewParam(req, ParamCookie, c.Name, c.Value, c.ValueStart, c.ValueEnd))
	}

	for _, fp := range queryParams {
		points = append(points, NewParam(req, ParamNameURL, fp.Name, fp.Name,
			queryStart+fp.NameStart, queryStart+fp.NameEnd))
	}
	for _, fp := range bodyParams {
		points = append(points, NewParam(req, ParamNameBody, fp.Name, fp.Name,
			bodyStart+fp.NameStart, bodyStart+fp.NameEnd))
	}

	return points
}

// queryOffset returns the offset of the first query byte in the raw
// request, or -1 when the target has no query string
func queryOffset(req *httpmsg.Request) int {
	target := req.Target()
	i := strings.IndexByte(target, '?')
	if i < 0 {
		return -1
	}
	return req.TargetOffset() + i + 1
}
