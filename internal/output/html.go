package output

import (
	"encoding/json"
	"fmt"
	"html/template"
	"io"
	"sort"
	"time"

	"github.com/torosent/provbench/internal/stats"
)

// HTMLReportData contains all data needed for the HTML report template.
type HTMLReportData struct {
	GeneratedAt string
	Report      Report
	Summaries   []stats.ScenarioSummary
	Skipped     []SkippedProvider
	Errors      []ErrorCount
	ChartJSON   string
}

// SkippedProvider is a provider excluded from the run and the reason.
type SkippedProvider struct {
	ID     string
	Reason string
}

// ErrorCount is one row of the error breakdown.
type ErrorCount struct {
	Name  string
	Count int
}

type latencyChart struct {
	Labels []string  `json:"labels"`
	P50    []float64 `json:"p50"`
	P95    []float64 `json:"p95"`
	P99    []float64 `json:"p99"`
}

// GenerateHTMLReport generates a standalone HTML report with an embedded
// latency chart per provider/scenario pair.
func GenerateHTMLReport(w io.Writer, report Report) error {
	summaries := report.Run.Summaries()

	chart := latencyChart{
		Labels: make([]string, 0, len(summaries)),
		P50:    make([]float64, 0, len(summaries)),
		P95:    make([]float64, 0, len(summaries)),
		P99:    make([]float64, 0, len(summaries)),
	}
	for _, s := range summaries {
		chart.Labels = append(chart.Labels, s.Provider+"/"+s.Scenario)
		chart.P50 = append(chart.P50, s.Latency.Median)
		chart.P95 = append(chart.P95, s.Latency.P95)
		chart.P99 = append(chart.P99, s.Latency.P99)
	}
	chartJSON, err := json.Marshal(chart)
	if err != nil {
		return fmt.Errorf("failed to marshal chart data: %w", err)
	}

	skipped := make([]SkippedProvider, 0, len(report.Run.Skipped))
	for id, reason := range report.Run.Skipped {
		skipped = append(skipped, SkippedProvider{ID: id, Reason: reason})
	}
	sort.Slice(skipped, func(i, j int) bool { return skipped[i].ID < skipped[j].ID })

	errs := make([]ErrorCount, 0, len(report.Overall.Errors))
	for name, count := range report.Overall.Errors {
		errs = append(errs, ErrorCount{Name: name, Count: count})
	}
	sort.Slice(errs, func(i, j int) bool {
		if errs[i].Count != errs[j].Count {
			return errs[i].Count > errs[j].Count
		}
		return errs[i].Name < errs[j].Name
	})

	data := HTMLReportData{
		GeneratedAt: time.Now().Format(time.RFC3339),
		Report:      report,
		Summaries:   summaries,
		Skipped:     skipped,
		Errors:      errs,
		ChartJSON:   string(chartJSON),
	}

	tmpl, err := template.New("report").Funcs(template.FuncMap{
		"formatDuration": func(d time.Duration) string {
			return d.String()
		},
		"formatFloat": func(f float64) string {
			return fmt.Sprintf("%.2f", f)
		},
		"formatMs":    formatMs,
		"formatBytes": formatBytes,
		"formatPercent": func(part, total int64) string {
			if total == 0 {
				return "0.0"
			}
			return fmt.Sprintf("%.1f", (float64(part)/float64(total))*100)
		},
		"successBadge": func(pct float64) string {
			switch {
			case pct >= GoodSuccessRate:
				return "badge-success"
			case pct >= WarnSuccessRate:
				return "badge-warning"
			default:
				return "badge-error"
			}
		},
	}).Parse(htmlTemplate)
	if err != nil {
		return fmt.Errorf("failed to parse template: %w", err)
	}

	if err := tmpl.Execute(w, data); err != nil {
		return fmt.Errorf("failed to execute template: %w", err)
	}

	return nil
}

const htmlTemplate = `<!DOCTYPE html>
<html lang="en">
<head>
    <meta charset="UTF-8">
    <meta name="viewport" content="width=device-width, initial-scale=1.0">
    <title>provbench Report</title>
    <style>
        * {
            margin: 0;
            padding: 0;
            box-sizing: border-box;
        }
        body {
            font-family: -apple-system, BlinkMacSystemFont, 'Segoe UI', Roboto, 'Helvetica Neue', Arial, sans-serif;
            background: #f5f7fa;
            color: #2c3e50;
            line-height: 1.6;
            padding: 20px;
        }
        .container {
            max-width: 1400px;
            margin: 0 auto;
            background: white;
            border-radius: 8px;
            box-shadow: 0 2px 8px rgba(0,0,0,0.1);
            overflow: hidden;
        }
        header {
            background: linear-gradient(135deg, #667eea 0%, #764ba2 100%);
            color: white;
            padding: 30px 40px;
        }
        header h1 {
            font-size: 2rem;
            margin-bottom: 10px;
        }
        header .meta {
            opacity: 0.9;
            font-size: 0.9rem;
        }
        .content {
            padding: 40px;
        }
        .grid {
            display: grid;
            grid-template-columns: repeat(auto-fit, minmax(250px, 1fr));
            gap: 20px;
            margin-bottom: 40px;
        }
        .card {
            background: #f8f9fa;
            border-radius: 8px;
            padding: 20px;
            border-left: 4px solid #667eea;
        }
        .card h3 {
            font-size: 0.9rem;
            color: #6c757d;
            text-transform: uppercase;
            letter-spacing: 0.5px;
            margin-bottom: 10px;
        }
        .card .value {
            font-size: 2rem;
            font-weight: bold;
            color: #2c3e50;
        }
        .card .subvalue {
            font-size: 0.85rem;
            color: #6c757d;
            margin-top: 5px;
        }
        .card.success {
            border-left-color: #10b981;
        }
        .card.error {
            border-left-color: #ef4444;
        }
        .card.warning {
            border-left-color: #f59e0b;
        }
        .section {
            margin-bottom: 40px;
        }
        .section h2 {
            font-size: 1.5rem;
            margin-bottom: 20px;
            padding-bottom: 10px;
            border-bottom: 2px solid #e5e7eb;
        }
        .chart-container {
            background: white;
            border-radius: 8px;
            padding: 20px;
            margin-bottom: 30px;
            border: 1px solid #e5e7eb;
        }
        .chart-container h3 {
            font-size: 1.1rem;
            margin-bottom: 15px;
            color: #4b5563;
        }
        .chart {
            width: 100%;
            height: 300px;
        }
        table {
            width: 100%;
            border-collapse: collapse;
            background: white;
        }
        th, td {
            text-align: left;
            padding: 12px;
            border-bottom: 1px solid #e5e7eb;
        }
        th {
            background: #f8f9fa;
            font-weight: 600;
            color: #4b5563;
            font-size: 0.9rem;
            text-transform: uppercase;
            letter-spacing: 0.5px;
        }
        tr:hover {
            background: #f8f9fa;
        }
        .badge {
            display: inline-block;
            padding: 4px 12px;
            border-radius: 12px;
            font-size: 0.85rem;
            font-weight: 600;
        }
        .badge-success {
            background: #d1fae5;
            color: #065f46;
        }
        .badge-warning {
            background: #fef3c7;
            color: #92400e;
        }
        .badge-error {
            background: #fee2e2;
            color: #991b1b;
        }
        .latency-grid {
            display: grid;
            grid-template-columns: repeat(auto-fit, minmax(150px, 1fr));
            gap: 15px;
            margin-top: 20px;
        }
        .latency-item {
            background: #f8f9fa;
            padding: 15px;
            border-radius: 6px;
            text-align: center;
        }
        .latency-item .label {
            font-size: 0.85rem;
            color: #6c757d;
            margin-bottom: 5px;
        }
        .latency-item .value {
            font-size: 1.3rem;
            font-weight: bold;
            color: #2c3e50;
        }
        .no-data {
            text-align: center;
            padding: 40px;
            color: #6c757d;
            font-style: italic;
        }
    </style>
    <script src="https://cdn.jsdelivr.net/npm/uplot@1.6.24/dist/uPlot.iife.min.js"></script>
    <link rel="stylesheet" href="https://cdn.jsdelivr.net/npm/uplot@1.6.24/dist/uPlot.min.css">
</head>
<body>
    <div class="container">
        <header>
            <h1>provbench Report</h1>
            <div class="meta">Run {{.Report.Run.ID}} | {{.Report.Run.State}} | {{.Report.Run.IterationsPerScenario}} iterations per scenario</div>
            <div class="meta">Generated: {{.GeneratedAt}} | Duration: {{formatDuration .Report.Overall.Duration}}</div>
        </header>

        <div class="content">
            <!-- Summary Cards -->
            <div class="grid">
                <div class="card">
                    <h3>Total Requests</h3>
                    <div class="value">{{.Report.Overall.Total}}</div>
                    <div class="subvalue">{{.Report.Run.Completed}}/{{.Report.Run.Total}} planned</div>
                </div>
                <div class="card success">
                    <h3>Successful</h3>
                    <div class="value">{{.Report.Overall.Successes}}</div>
                    <div class="subvalue">{{formatPercent .Report.Overall.Successes .Report.Overall.Total}}%</div>
                </div>
                <div class="card error">
                    <h3>Failed</h3>
                    <div class="value">{{.Report.Overall.Failures}}</div>
                    <div class="subvalue">{{formatPercent .Report.Overall.Failures .Report.Overall.Total}}%</div>
                </div>
                <div class="card">
                    <h3>Requests/sec</h3>
                    <div class="value">{{formatFloat .Report.Overall.RequestsPerSec}}</div>
                </div>
                <div class="card warning">
                    <h3>Pairs</h3>
                    <div class="value">{{.Report.Run.PairsCompleted}}/{{.Report.Run.PairsTotal}}</div>
                </div>
            </div>

            <!-- Charts Section -->
            {{if .Summaries}}
            <div class="section">
                <h2>Latency by Provider and Scenario</h2>
                <div class="chart-container">
                    <h3>Latency Percentiles (ms)</h3>
                    <div id="latency-chart" class="chart"></div>
                </div>
            </div>
            {{end}}

            <!-- Latency Statistics -->
            <div class="section">
                <h2>Latency Statistics (all providers)</h2>
                <div class="latency-grid">
                    <div class="latency-item">
                        <div class="label">Min</div>
                        <div class="value">{{formatDuration .Report.Overall.MinLatency}}</div>
                    </div>
                    <div class="latency-item">
                        <div class="label">Max</div>
                        <div class="value">{{formatDuration .Report.Overall.MaxLatency}}</div>
                    </div>
                    <div class="latency-item">
                        <div class="label">Mean</div>
                        <div class="value">{{formatDuration .Report.Overall.MeanLatency}}</div>
                    </div>
                    <div class="latency-item">
                        <div class="label">P50</div>
                        <div class="value">{{formatDuration .Report.Overall.P50Latency}}</div>
                    </div>
                    <div class="latency-item">
                        <div class="label">P90</div>
                        <div class="value">{{formatDuration .Report.Overall.P90Latency}}</div>
                    </div>
                    <div class="latency-item">
                        <div class="label">P99</div>
                        <div class="value">{{formatDuration .Report.Overall.P99Latency}}</div>
                    </div>
                    <div class="latency-item">
                        <div class="label">TTFB P50</div>
                        <div class="value">{{formatDuration .Report.Overall.P50TTFB}}</div>
                    </div>
                </div>
            </div>

            <!-- Leaderboard -->
            {{if .Report.Leaderboard}}
            <div class="section">
                <h2>Leaderboard</h2>
                <table>
                    <thead>
                        <tr>
                            <th>Scenario</th>
                            <th>Rank</th>
                            <th>Provider</th>
                            <th>Mean</th>
                            <th>RPS</th>
                            <th>Success</th>
                        </tr>
                    </thead>
                    <tbody>
                        {{range .Report.Leaderboard}}{{$scenario := .Scenario}}
                        {{range .Entries}}
                        <tr>
                            <td>{{$scenario}}</td>
                            <td>#{{.Rank}}</td>
                            <td><strong>{{.Provider}}</strong>{{if .Fastest}} <span class="badge badge-success">fastest</span>{{end}}</td>
                            <td>{{formatMs .MeanLatencyMs}}</td>
                            <td>{{formatFloat .ThroughputReqPerSec}}</td>
                            <td><span class="badge {{successBadge .SuccessRatePercent}}">{{formatFloat .SuccessRatePercent}}%</span></td>
                        </tr>
                        {{end}}
                        {{end}}
                    </tbody>
                </table>
            </div>
            {{end}}

            <!-- Scenario Breakdown -->
            {{if .Summaries}}
            <div class="section">
                <h2>Scenario Breakdown</h2>
                <table>
                    <thead>
                        <tr>
                            <th>Provider</th>
                            <th>Scenario</th>
                            <th>Requests</th>
                            <th>Success</th>
                            <th>Mean</th>
                            <th>P50</th>
                            <th>P95</th>
                            <th>P99</th>
                            <th>Std Dev</th>
                            <th>TTFB P50</th>
                            <th>Payload</th>
                            <th>RPS</th>
                        </tr>
                    </thead>
                    <tbody>
                        {{range .Summaries}}
                        <tr>
                            <td><strong>{{.Provider}}</strong></td>
                            <td>{{.Scenario}}</td>
                            <td>{{.TotalRequests}}</td>
                            <td><span class="badge {{successBadge .SuccessRatePercent}}">{{formatFloat .SuccessRatePercent}}%</span></td>
                            <td>{{formatMs .Latency.Mean}}</td>
                            <td>{{formatMs .Latency.Median}}</td>
                            <td>{{formatMs .Latency.P95}}</td>
                            <td>{{formatMs .Latency.P99}}</td>
                            <td>{{formatMs .Latency.StdDev}}</td>
                            <td>{{formatMs .TTFB.Median}}</td>
                            <td>{{formatBytes .AvgPayloadBytes}}</td>
                            <td>{{formatFloat .ThroughputReqPerSec}}</td>
                        </tr>
                        {{if .Error}}
                        <tr>
                            <td colspan="12" class="no-data">{{.Error}}</td>
                        </tr>
                        {{end}}
                        {{end}}
                    </tbody>
                </table>
            </div>
            {{else}}
            <div class="no-data">No results were recorded.</div>
            {{end}}

            <!-- Thresholds -->
            {{if .Report.Thresholds}}
            <div class="section">
                <h2>Thresholds ({{.Report.Thresholds.Passed}}/{{.Report.Thresholds.Total}} Passed)</h2>
                <table>
                    <thead>
                        <tr>
                            <th>Threshold</th>
                            <th>Metric</th>
                            <th>Expected</th>
                            <th>Actual</th>
                            <th>Worst Pair</th>
                            <th>Status</th>
                        </tr>
                    </thead>
                    <tbody>
                        {{range .Report.Thresholds.Results}}
                        <tr>
                            <td>{{.Threshold}}</td>
                            <td>{{.Metric}} ({{.Aggregate}})</td>
                            <td>{{.Operator}} {{formatFloat .Expected}}</td>
                            <td>{{formatFloat .Actual}}</td>
                            <td>{{if .Pair}}{{.Pair}}{{else}}-{{end}}</td>
                            <td>
                                {{if .Pass}}
                                <span class="badge badge-success">✓ PASS</span>
                                {{else}}
                                <span class="badge badge-error">✗ FAIL</span>
                                {{end}}
                            </td>
                        </tr>
                        {{end}}
                    </tbody>
                </table>
            </div>
            {{end}}

            <!-- Errors -->
            {{if .Errors}}
            <div class="section">
                <h2>Errors</h2>
                <table>
                    <thead>
                        <tr>
                            <th>Error</th>
                            <th>Count</th>
                        </tr>
                    </thead>
                    <tbody>
                        {{range .Errors}}
                        <tr>
                            <td>{{.Name}}</td>
                            <td>{{.Count}}</td>
                        </tr>
                        {{end}}
                    </tbody>
                </table>
            </div>
            {{end}}

            <!-- Skipped Providers -->
            {{if .Skipped}}
            <div class="section">
                <h2>Skipped Providers</h2>
                <table>
                    <thead>
                        <tr>
                            <th>Provider</th>
                            <th>Reason</th>
                        </tr>
                    </thead>
                    <tbody>
                        {{range .Skipped}}
                        <tr>
                            <td><strong>{{.ID}}</strong></td>
                            <td>{{.Reason}}</td>
                        </tr>
                        {{end}}
                    </tbody>
                </table>
            </div>
            {{end}}
        </div>
    </div>

    {{if .Summaries}}
    <script>
        const chartJSON = {{.ChartJSON}};
        const chart = JSON.parse(chartJSON);

        if (chart && chart.labels.length > 0) {
            const xs = chart.labels.map((_, i) => i);
            const bars = uPlot.paths.bars({ size: [0.25, 40] });

            new uPlot({
                title: "Latency Percentiles",
                width: document.getElementById('latency-chart').offsetWidth,
                height: 300,
                scales: { x: { time: false, range: [-0.5, xs.length - 0.5] } },
                series: [
                    { label: "Pair", value: (u, i) => chart.labels[i] },
                    { label: "P50", stroke: "#10b981", fill: "rgba(16, 185, 129, 0.4)", paths: bars },
                    { label: "P95", stroke: "#f59e0b", fill: "rgba(245, 158, 11, 0.4)", paths: bars },
                    { label: "P99", stroke: "#ef4444", fill: "rgba(239, 68, 68, 0.4)", paths: bars }
                ],
                axes: [
                    { splits: () => xs, values: (u, splits) => splits.map(i => chart.labels[i] || "") },
                    { label: "Latency (ms)" }
                ]
            }, [xs, chart.p50, chart.p95, chart.p99], document.getElementById('latency-chart'));
        }
    </script>
    {{end}}
</body>
</html>
`
