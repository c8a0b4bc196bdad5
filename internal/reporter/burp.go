package reporter

import (
	"encoding/base64"
	"encoding/xml"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/su1ph3r/typeconfusion/pkg/types"
)

// BurpReporter exports the mutated request of every finding as a Burp
// Suite item list, so the accepted payloads can be replayed in Burp or fed
// back into a scan
type BurpReporter struct {
	options ReportOptions
}

// NewBurpReporter creates a new Burp XML reporter
func NewBurpReporter(options ReportOptions) *BurpReporter {
	return &BurpReporter{options: options}
}

// Format returns the format name
func (r *BurpReporter) Format() string {
	return "burp"
}

// Extension returns the file extension
func (r *BurpReporter) Extension() string {
	return "xml"
}

// Generate generates a Burp XML report
func (r *BurpReporter) Generate(result *types.ScanResult) ([]byte, error) {
	var buf strings.Builder
	if err := r.Write(result, &buf); err != nil {
		return nil, err
	}
	return []byte(buf.String()), nil
}

// Write writes the Burp XML report to a writer
func (r *BurpReporter) Write(result *types.ScanResult, w io.Writer) error {
	export := r.buildExport(result)

	if _, err := io.WriteString(w, xml.Header); err != nil {
		return err
	}

	encoder := xml.NewEncoder(w)
	encoder.Indent("", "  ")
	if err := encoder.Encode(export); err != nil {
		return err
	}
	_, err := io.WriteString(w, "\n")
	return err
}

// BurpExport represents a Burp Suite XML export
type BurpExport struct {
	XMLName xml.Name   `xml:"items"`
	Version string     `xml:"burpVersion,attr"`
	Items   []BurpItem `xml:"item"`
}

// BurpItem represents a single request in Burp format
type BurpItem struct {
	Time           string   `xml:"time"`
	URL            string   `xml:"url"`
	Host           string   `xml:"host"`
	Port           string   `xml:"port"`
	Protocol       string   `xml:"protocol"`
	Method         string   `xml:"method"`
	Path           string   `xml:"path"`
	Request        BurpData `xml:"request"`
	Status         string   `xml:"status"`
	ResponseLength string   `xml:"responselength"`
	Comment        string   `xml:"comment"`
}

// BurpData represents base64-encoded data
type BurpData struct {
	Base64 bool   `xml:"base64,attr"`
	Value  string `xml:",chardata"`
}

func (r *BurpReporter) buildExport(result *types.ScanResult) *BurpExport {
	export := &BurpExport{
		Version: "2023.1",
		Items:   make([]BurpItem, 0, len(result.Findings)),
	}

	for _, finding := range sortedFindings(result.Findings) {
		if item, ok := r.buildItem(finding); ok {
			export.Items = append(export.Items, item)
		}
	}

	return export
}

// buildItem converts a finding; findings without request evidence are
// skipped
func (r *BurpReporter) buildItem(finding types.Finding) (BurpItem, bool) {
	req, err := evidenceRequest(&finding)
	if err != nil {
		return BurpItem{}, false
	}
	svc := req.Service()

	item := BurpItem{
		Time:     finding.Timestamp.Format("Mon Jan 02 15:04:05 MST 2006"),
		URL:      req.URL(),
		Host:     svc.Host,
		Port:     strconv.Itoa(svc.Port),
		Protocol: svc.Scheme,
		Method:   req.Method(),
		Path:     req.Path(),
		Request: BurpData{
			Base64: true,
			Value:  base64.StdEncoding.EncodeToString(req.Bytes()),
		},
		Comment: fmt.Sprintf("[%s] %s - %s", strings.ToUpper(finding.Severity), finding.Title, finding.Parameter),
	}

	if resp := finding.Evidence.Response; resp != nil {
		item.Status = strconv.Itoa(resp.StatusCode)
		item.ResponseLength = strconv.Itoa(resp.BodyLength)
	}

	return item, true
}
