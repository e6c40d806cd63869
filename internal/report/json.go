package report

import (
	"encoding/json"
	"io"
	"time"

	"github.com/JNZader/shapescan/internal/rules"
	"github.com/JNZader/shapescan/internal/scan"
)

// JSONReporter generates JSON reports. Findings carry their location,
// bindings and excerpt instead of the full file content.
type JSONReporter struct {
	Indent  bool
	Options Options
}

func (r *JSONReporter) Format() string { return "json" }

type jsonReport struct {
	ID       string         `json:"id"`
	Started  time.Time      `json:"started"`
	Duration string         `json:"duration"`
	Rules    int            `json:"rules"`
	Totals   scan.Totals    `json:"totals"`
	Files    []jsonFile     `json:"files"`
	Skipped  []scan.Skipped `json:"skipped,omitempty"`
}

type jsonFile struct {
	Path     string        `json:"path"`
	Language string        `json:"language"`
	Cached   bool          `json:"cached,omitempty"`
	Error    string        `json:"error,omitempty"`
	Findings []jsonFinding `json:"findings"`
}

type jsonFinding struct {
	Rule        string            `json:"rule"`
	Checker     string            `json:"checker"`
	Description string            `json:"description,omitempty"`
	Severity    rules.Severity    `json:"severity"`
	Tags        []string          `json:"tags,omitempty"`
	Function    string            `json:"function,omitempty"`
	Location    Location          `json:"location"`
	Values      map[string]string `json:"values,omitempty"`
	Excerpt     string            `json:"excerpt"`
}

func (r *JSONReporter) build(result *scan.Result) *jsonReport {
	doc := &jsonReport{
		ID:       result.ID,
		Started:  result.Started,
		Duration: result.Duration.String(),
		Rules:    result.Rules,
		Totals:   result.Totals,
		Files:    make([]jsonFile, 0, len(result.Files)),
		Skipped:  result.Skipped,
	}
	for _, f := range result.Files {
		jf := jsonFile{
			Path:     f.Path,
			Language: f.Language,
			Cached:   f.Cached,
			Error:    f.Error,
			Findings: make([]jsonFinding, 0, len(f.Matches)),
		}
		for _, m := range f.Matches {
			finding := jsonFinding{
				Rule:        m.Rule,
				Checker:     m.Checker,
				Description: m.Description,
				Severity:    m.Severity,
				Tags:        m.Tags,
				Function:    functionName(m),
				Location:    Locate(m),
				Excerpt:     m.Display(r.Options.Before, r.Options.After, r.Options.LineNumbers),
			}
			for _, name := range m.Match.Variables() {
				if finding.Values == nil {
					finding.Values = make(map[string]string)
				}
				finding.Values[name], _ = m.Match.Value(name, m.Source)
			}
			jf.Findings = append(jf.Findings, finding)
		}
		doc.Files = append(doc.Files, jf)
	}
	return doc
}

func (r *JSONReporter) Generate(result *scan.Result) (string, error) {
	var data []byte
	var err error

	if r.Indent {
		data, err = json.MarshalIndent(r.build(result), "", "  ")
	} else {
		data, err = json.Marshal(r.build(result))
	}

	if err != nil {
		return "", err
	}
	return string(data), nil
}

func (r *JSONReporter) Write(result *scan.Result, w io.Writer) error {
	encoder := json.NewEncoder(w)
	if r.Indent {
		encoder.SetIndent("", "  ")
	}
	return encoder.Encode(r.build(result))
}
