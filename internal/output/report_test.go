package output

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"gopkg.in/yaml.v3"
)

func TestPrintReportBasic(t *testing.T) {
	var buf bytes.Buffer
	PrintReport(&buf, sampleReport())

	output := buf.String()
	for _, want := range []string{
		"Benchmark Results",
		"01HZX3J6Q4N8K2V5R7T9W1Y3B5 (completed)",
		"Requests:          20/20",
		"Pairs:             2/2",
		"alchemy",
		"balanceLookup",
		"380.0ms",
		"2.0KiB",
		"100.0%",
		"codex/tokenPrices: HTTP 401",
		"mobula: not configured",
		"HTTP 401 Unauthorized: 10",
		"codex 401: 10",
		"Leaderboard (mean latency):",
		"#1 alchemy",
		"fastest",
		"Thresholds (1/2 passed)",
		"✓ latency:p95 < 500: 380.00 < 500.00 (alchemy/balanceLookup)",
		"✗ success_rate >= 99",
	} {
		if !strings.Contains(output, want) {
			t.Errorf("report missing %q\n%s", want, output)
		}
	}
	if strings.Contains(output, "\x1b[") {
		t.Error("non-terminal output should not contain color escapes")
	}
}

func TestPrintReportColorsSuccessRate(t *testing.T) {
	var buf bytes.Buffer
	printReport(&buf, sampleReport(), DefaultColorScheme())

	if !strings.Contains(buf.String(), "\x1b[") {
		t.Error("expected color escapes with the default scheme")
	}
}

func TestColorSchemeBands(t *testing.T) {
	scheme := NoColorScheme()
	if got := scheme.SuccessRate(99.5); got != "99.5%" {
		t.Errorf("SuccessRate(99.5) = %q", got)
	}
	if got := scheme.Verdict(false); got != "✗" {
		t.Errorf("Verdict(false) = %q", got)
	}

	colored := DefaultColorScheme()
	good := colored.SuccessRate(100)
	warn := colored.SuccessRate(95)
	bad := colored.SuccessRate(10)
	if good == warn || warn == bad {
		t.Errorf("bands should render differently: %q %q %q", good, warn, bad)
	}
}

func TestSchemeForNonTerminal(t *testing.T) {
	var buf bytes.Buffer
	if got := SchemeFor(&buf).SuccessRate(50); got != "50.0%" {
		t.Errorf("SchemeFor(buffer) colored output: %q", got)
	}
}

func TestPrintJSONReport(t *testing.T) {
	var buf bytes.Buffer
	if err := PrintJSONReport(&buf, sampleReport()); err != nil {
		t.Fatalf("PrintJSONReport failed: %v", err)
	}

	var parsed map[string]interface{}
	if err := json.Unmarshal(buf.Bytes(), &parsed); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}
	for _, field := range []string{"run", "overall", "leaderboard", "thresholds"} {
		if _, ok := parsed[field]; !ok {
			t.Errorf("missing field %q in JSON output", field)
		}
	}
	run := parsed["run"].(map[string]interface{})
	if run["state"] != "completed" {
		t.Errorf("run.state = %v, want completed", run["state"])
	}
	providers := run["providers"].(map[string]interface{})
	summary := providers["alchemy"].(map[string]interface{})["balanceLookup"].(map[string]interface{})
	if summary["success_rate"] != 100.0 {
		t.Errorf("success_rate = %v", summary["success_rate"])
	}
}

func TestPrintYAMLReport(t *testing.T) {
	var buf bytes.Buffer
	if err := PrintYAMLReport(&buf, sampleReport()); err != nil {
		t.Fatalf("PrintYAMLReport failed: %v", err)
	}

	var parsed struct {
		Run struct {
			ID    string `yaml:"id"`
			State string `yaml:"state"`
		} `yaml:"run"`
		Overall struct {
			Total int `yaml:"total"`
		} `yaml:"overall"`
		Thresholds struct {
			Failed int `yaml:"failed"`
		} `yaml:"thresholds"`
	}
	if err := yaml.Unmarshal(buf.Bytes(), &parsed); err != nil {
		t.Fatalf("invalid YAML: %v\n%s", err, buf.String())
	}
	if parsed.Run.ID != "01HZX3J6Q4N8K2V5R7T9W1Y3B5" || parsed.Run.State != "completed" {
		t.Errorf("run = %+v", parsed.Run)
	}
	if parsed.Overall.Total != 20 {
		t.Errorf("overall.total = %d", parsed.Overall.Total)
	}
	if parsed.Thresholds.Failed != 1 {
		t.Errorf("thresholds.failed = %d", parsed.Thresholds.Failed)
	}
}

func TestNewReportWithoutThresholds(t *testing.T) {
	r := sampleReport()
	r = NewReport(r.Run, r.Overall, nil)
	if r.Thresholds != nil {
		t.Error("no threshold results should leave Thresholds nil")
	}
}

func TestOverallFromSnapshot(t *testing.T) {
	snap := sampleReport().Run
	overall := OverallFromSnapshot(snap)

	if overall.Total != 20 || overall.Successes != 10 || overall.Failures != 10 {
		t.Fatalf("overall = %d/%d/%d", overall.Total, overall.Successes, overall.Failures)
	}
	if overall.Duration != 4*time.Second || overall.RequestsPerSec != 5 {
		t.Errorf("duration/rps = %s/%v", overall.Duration, overall.RequestsPerSec)
	}
	if got := overall.Providers["codex"]; got.Failures != 10 {
		t.Errorf("codex = %+v", got)
	}

	var buf bytes.Buffer
	PrintReport(&buf, NewReport(snap, overall, nil))
	if strings.Contains(buf.String(), "Latency (all providers)") {
		t.Error("stored runs have no run-wide latency section")
	}
}
