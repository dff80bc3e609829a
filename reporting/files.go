package reporting

import (
	"bytes"
	"embed"
	"encoding/json"
	"fmt"
	"html/template"
	"os"
	"path/filepath"

	"github.com/ethereum-optimism/infra/op-matrix/types"
)

const (
	HTMLReportFilename = "report.html"
	JSONReportFilename = "results.json"
)

//go:embed templates/*.html.tmpl
var templateFS embed.FS

var reportTemplate = template.Must(
	template.New("report.html.tmpl").
		Funcs(template.FuncMap{"duration": formatDuration}).
		ParseFS(templateFS, "templates/report.html.tmpl"))

// Reporter consumes the final summary of a run.
type Reporter interface {
	Report(run RunInfo, s *Summary) error
}

// HTMLReporter writes a standalone HTML page into a run directory.
type HTMLReporter struct {
	Dir string
}

var _ Reporter = (*HTMLReporter)(nil)

func (r *HTMLReporter) Report(run RunInfo, s *Summary) error {
	var buf bytes.Buffer
	data := struct {
		Run     RunInfo
		Summary *Summary
		Items   []types.WorkItemView
	}{
		Run:     run,
		Summary: s,
		Items:   s.All(),
	}
	if err := reportTemplate.Execute(&buf, data); err != nil {
		return fmt.Errorf("failed to render HTML report: %w", err)
	}
	return writeFile(filepath.Join(r.Dir, HTMLReportFilename), buf.Bytes())
}

// JSONReporter writes the run info and the full partition as JSON.
type JSONReporter struct {
	Dir string
}

var _ Reporter = (*JSONReporter)(nil)

// JSONReport is the document written by JSONReporter.
type JSONReport struct {
	Run     RunInfo                  `json:"run"`
	Counts  map[types.TestStatus]int `json:"counts"`
	Result  string                   `json:"result"`
	Summary *Summary                 `json:"summary"`
}

func (r *JSONReporter) Report(run RunInfo, s *Summary) error {
	data, err := json.MarshalIndent(JSONReport{
		Run:     run,
		Counts:  s.Counts(),
		Result:  s.Result(),
		Summary: s,
	}, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal JSON report: %w", err)
	}
	return writeFile(filepath.Join(r.Dir, JSONReportFilename), data)
}

func writeFile(path string, data []byte) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create report directory: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	return nil
}
