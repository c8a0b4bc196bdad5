// Package detector decides whether a probe response diverged from baseline
package detector

import (
	"github.com/su1ph3r/typeconfusion/internal/httpmsg"
)

// SimilarityBandPercent is the relative body-length difference, in percent,
// that two responses with the same status may have and still count as the
// same response
const SimilarityBandPercent = 40

// DetectChange reports whether check differs materially from base. Only
// the status code and body length are compared; response content is never
// inspected. A missing response always counts as changed.
func DetectChange(base, check *httpmsg.Response) bool {
	if base == nil || check == nil {
		return true
	}
	if base.StatusCode != check.StatusCode {
		return true
	}
	return LengthsDiffer(base.BodyLength(), check.BodyLength())
}

// LengthsDiffer reports whether either length exceeds the other by more than
// SimilarityBandPercent of the other, using integer division
func LengthsDiffer(baseLen, checkLen int) bool {
	return baseLen > checkLen+checkLen*SimilarityBandPercent/100 ||
		checkLen > baseLen+baseLen*SimilarityBandPercent/100
}
