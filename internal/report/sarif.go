package report

import (
	"encoding/json"
	"io"
	"path/filepath"
	"sort"

	"github.com/JNZader/shapescan/internal/matcher"
	"github.com/JNZader/shapescan/internal/rules"
	"github.com/JNZader/shapescan/internal/scan"
)

// SARIFReporter generates SARIF 2.1.0 reports.
type SARIFReporter struct {
	Version string
}

func (r *SARIFReporter) Format() string { return "sarif" }

// SARIF types
type sarifReport struct {
	Schema  string     `json:"$schema"`
	Version string     `json:"version"`
	Runs    []sarifRun `json:"runs"`
}

type sarifRun struct {
	Tool        sarifTool         `json:"tool"`
	Results     []sarifResult     `json:"results"`
	Invocations []sarifInvocation `json:"invocations,omitempty"`
}

type sarifTool struct {
	Driver sarifDriver `json:"driver"`
}

type sarifDriver struct {
	Name    string      `json:"name"`
	Version string      `json:"version"`
	Rules   []sarifRule `json:"rules,omitempty"`
}

type sarifRule struct {
	ID                   string          `json:"id"`
	ShortDescription     sarifMessage    `json:"shortDescription"`
	DefaultConfiguration sarifRuleConfig `json:"defaultConfiguration"`
	Properties           *sarifRuleProps `json:"properties,omitempty"`
}

type sarifRuleConfig struct {
	Level string `json:"level"`
}

type sarifRuleProps struct {
	Tags []string `json:"tags,omitempty"`
}

type sarifResult struct {
	RuleID     string            `json:"ruleId"`
	RuleIndex  int               `json:"ruleIndex"`
	Level      string            `json:"level"`
	Message    sarifMessage      `json:"message"`
	Locations  []sarifLocation   `json:"locations,omitempty"`
	Properties map[string]string `json:"properties,omitempty"`
}

type sarifMessage struct {
	Text string `json:"text"`
}

type sarifLocation struct {
	PhysicalLocation struct {
		ArtifactLocation struct {
			URI string `json:"uri"`
		} `json:"artifactLocation"`
		Region *sarifRegion `json:"region,omitempty"`
	} `json:"physicalLocation"`
	LogicalLocations []sarifLogicalLocation `json:"logicalLocations,omitempty"`
}

type sarifLogicalLocation struct {
	Name string `json:"name"`
	Kind string `json:"kind"`
}

type sarifRegion struct {
	StartLine   int `json:"startLine"`
	EndLine     int `json:"endLine,omitempty"`
	StartColumn int `json:"startColumn,omitempty"`
	EndColumn   int `json:"endColumn,omitempty"`
}

type sarifInvocation struct {
	ExecutionSuccessful bool                `json:"executionSuccessful"`
	Notifications       []sarifNotification `json:"toolExecutionNotifications,omitempty"`
}

type sarifNotification struct {
	Level     string          `json:"level"`
	Message   sarifMessage    `json:"message"`
	Locations []sarifLocation `json:"locations,omitempty"`
}

func (r *SARIFReporter) Generate(result *scan.Result) (string, error) {
	report := r.buildReport(result)
	data, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		return "", err
	}
	return string(data), nil
}

func (r *SARIFReporter) Write(result *scan.Result, w io.Writer) error {
	report := r.buildReport(result)
	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	return encoder.Encode(report)
}

func (r *SARIFReporter) buildReport(result *scan.Result) *sarifReport {
	version := r.Version
	if version == "" {
		version = "dev"
	}
	run := sarifRun{
		Tool:    sarifTool{Driver: sarifDriver{Name: "shapescan", Version: version}},
		Results: []sarifResult{},
	}

	ruleIndex := make(map[string]int)
	findings := result.Findings()
	for _, f := range findings {
		if _, ok := ruleIndex[f.Report.Rule]; !ok {
			ruleIndex[f.Report.Rule] = 0
			run.Tool.Driver.Rules = append(run.Tool.Driver.Rules, r.rule(f.Report))
		}
	}
	sort.Slice(run.Tool.Driver.Rules, func(i, j int) bool {
		return run.Tool.Driver.Rules[i].ID < run.Tool.Driver.Rules[j].ID
	})
	for i, rule := range run.Tool.Driver.Rules {
		ruleIndex[rule.ID] = i
	}

	for _, f := range findings {
		m := f.Report
		loc := Locate(m)
		res := sarifResult{
			RuleID:    m.Rule,
			RuleIndex: ruleIndex[m.Rule],
			Level:     r.mapLevel(m.Severity),
			Message:   sarifMessage{Text: message(m)},
		}
		if m.Checker != "" {
			res.Properties = map[string]string{"checker": m.Checker}
		}

		sl := artifact(f.Path)
		sl.PhysicalLocation.Region = &sarifRegion{
			StartLine:   loc.Line,
			StartColumn: loc.Column,
			EndLine:     loc.EndLine,
			EndColumn:   loc.EndColumn,
		}
		if fn := functionName(m); fn != "" {
			sl.LogicalLocations = []sarifLogicalLocation{{Name: fn, Kind: "function"}}
		}
		res.Locations = append(res.Locations, sl)
		run.Results = append(run.Results, res)
	}

	inv := sarifInvocation{ExecutionSuccessful: true}
	for _, f := range result.Files {
		if f.Error == "" {
			continue
		}
		inv.Notifications = append(inv.Notifications, sarifNotification{
			Level:     "error",
			Message:   sarifMessage{Text: f.Error},
			Locations: []sarifLocation{artifact(f.Path)},
		})
	}
	run.Invocations = []sarifInvocation{inv}

	return &sarifReport{
		Schema:  "https://json.schemastore.org/sarif-2.1.0.json",
		Version: "2.1.0",
		Runs:    []sarifRun{run},
	}
}

func (r *SARIFReporter) rule(m matcher.RuleMatchReport) sarifRule {
	rule := sarifRule{
		ID:                   m.Rule,
		ShortDescription:     sarifMessage{Text: m.Description},
		DefaultConfiguration: sarifRuleConfig{Level: r.mapLevel(m.Severity)},
	}
	if rule.ShortDescription.Text == "" {
		rule.ShortDescription.Text = m.Rule
	}
	if len(m.Tags) > 0 {
		rule.Properties = &sarifRuleProps{Tags: m.Tags}
	}
	return rule
}

func artifact(path string) sarifLocation {
	var loc sarifLocation
	loc.PhysicalLocation.ArtifactLocation.URI = filepath.ToSlash(path)
	return loc
}

func (r *SARIFReporter) mapLevel(severity rules.Severity) string {
	switch severity {
	case rules.SeverityCritical, rules.SeverityHigh:
		return "error"
	case rules.SeverityMedium:
		return "warning"
	default:
		return "note"
	}
}
