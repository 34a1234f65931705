// Package dashboard renders a live termui view of a benchmark run: run-wide
// figures from the metrics collector and one table row per provider/scenario
// pair from the latest partial snapshot.
package dashboard

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	ui "github.com/gizak/termui/v3"
	"github.com/gizak/termui/v3/widgets"

	"github.com/torosent/provbench/internal/metrics"
	"github.com/torosent/provbench/internal/runner"
)

// RunConfig holds run parameters for display.
type RunConfig struct {
	Providers  []string      // Provider ids taking part
	Scenarios  []string      // Scenario filter, empty for all
	Iterations int           // Iterations per scenario
	Delay      time.Duration // Inter-request delay
	Timeout    time.Duration // Per-attempt timeout
	Retries    int           // Retries per request
	ConfigFile string        // Path to config file if used
}

// SnapshotSource yields the latest partial snapshot of a run.
type SnapshotSource interface {
	Snapshot() runner.RunSnapshot
}

// Dashboard renders a live terminal UI for benchmark metrics.
type Dashboard struct {
	collector    *metrics.Collector
	source       SnapshotSource
	ctx          context.Context
	cancel       context.CancelFunc
	shutdownFunc func()
	wg           sync.WaitGroup
	mu           sync.Mutex

	// Widgets
	grid           *ui.Grid
	latencySparkle *widgets.SparklineGroup
	latencyPara    *widgets.Paragraph
	progressGauge  *widgets.Gauge
	errorList      *widgets.List
	pairTable      *widgets.Table
	summaryPara    *widgets.Paragraph
	metricsPara    *widgets.Paragraph
	latencyHistory []float64
	startTime      time.Time
	runConfig      RunConfig
}

// New creates a new Dashboard. shutdownFunc runs when the user presses q or
// Ctrl-C and should abort the run.
func New(collector *metrics.Collector, source SnapshotSource, cfg RunConfig, shutdownFunc func()) (*Dashboard, error) {
	if err := ui.Init(); err != nil {
		return nil, fmt.Errorf("failed to initialize termui: %w", err)
	}

	ctx, cancel := context.WithCancel(context.Background())

	d := &Dashboard{
		collector:      collector,
		source:         source,
		ctx:            ctx,
		cancel:         cancel,
		shutdownFunc:   shutdownFunc,
		latencyHistory: make([]float64, 0, 100),
		startTime:      time.Now(),
		runConfig:      cfg,
	}

	d.initWidgets()
	d.setupGrid()

	return d, nil
}

func (d *Dashboard) initWidgets() {
	sparkline := widgets.NewSparkline()
	sparkline.Title = "Latency (ms)"
	sparkline.LineColor = ui.ColorGreen
	sparkline.Data = []float64{0}

	d.latencySparkle = widgets.NewSparklineGroup(sparkline)
	d.latencySparkle.Title = "Real-time Latency"
	d.latencySparkle.BorderStyle.Fg = ui.ColorCyan

	d.latencyPara = widgets.NewParagraph()
	d.latencyPara.Title = "Latency Stats"
	d.latencyPara.Text = "Min: 0ms\nMean: 0ms\nP50: 0ms\nP90: 0ms\nP99: 0ms"
	d.latencyPara.BorderStyle.Fg = ui.ColorCyan

	d.progressGauge = widgets.NewGauge()
	d.progressGauge.Title = "Progress"
	d.progressGauge.Percent = 0
	d.progressGauge.BarColor = ui.ColorBlue
	d.progressGauge.BorderStyle.Fg = ui.ColorCyan
	d.progressGauge.LabelStyle = ui.NewStyle(ui.ColorWhite)

	d.errorList = widgets.NewList()
	d.errorList.Title = "Failures"
	d.errorList.Rows = []string{"No failures"}
	d.errorList.TextStyle = ui.NewStyle(ui.ColorYellow)
	d.errorList.BorderStyle.Fg = ui.ColorCyan

	d.pairTable = widgets.NewTable()
	d.pairTable.Title = "Providers"
	d.pairTable.Rows = [][]string{pairHeader, {"Awaiting data", "", "", "", "", "", ""}}
	d.pairTable.TextStyle = ui.NewStyle(ui.ColorWhite)
	d.pairTable.RowSeparator = false
	d.pairTable.FillRow = true
	d.pairTable.RowStyles[0] = ui.NewStyle(ui.ColorCyan, ui.ColorClear, ui.ModifierBold)
	d.pairTable.BorderStyle.Fg = ui.ColorCyan

	d.summaryPara = widgets.NewParagraph()
	d.summaryPara.Title = "Run Summary"
	d.summaryPara.Text = "Initializing..."
	d.summaryPara.BorderStyle.Fg = ui.ColorCyan

	d.metricsPara = widgets.NewParagraph()
	d.metricsPara.Title = "Metrics"
	d.metricsPara.Text = "Waiting for data..."
	d.metricsPara.BorderStyle.Fg = ui.ColorCyan
}

func (d *Dashboard) setupGrid() {
	termWidth, termHeight := ui.TerminalDimensions()

	d.grid = ui.NewGrid()
	d.grid.SetRect(0, 0, termWidth, termHeight)

	d.grid.Set(
		ui.NewRow(0.14,
			ui.NewCol(1.0, d.summaryPara),
		),
		ui.NewRow(0.18,
			ui.NewCol(0.5, d.progressGauge),
			ui.NewCol(0.5, d.metricsPara),
		),
		ui.NewRow(0.22,
			ui.NewCol(0.65, d.latencySparkle),
			ui.NewCol(0.35, d.latencyPara),
		),
		ui.NewRow(0.46,
			ui.NewCol(0.7, d.pairTable),
			ui.NewCol(0.3, d.errorList),
		),
	)
}

// Start begins the dashboard update loop.
func (d *Dashboard) Start() {
	d.wg.Add(1)
	go d.run()
}

// Stop stops the dashboard and restores the terminal.
func (d *Dashboard) Stop() {
	d.cancel()
	d.wg.Wait()
	ui.Close()
	// Give terminal time to restore
	time.Sleep(100 * time.Millisecond)
}

func (d *Dashboard) run() {
	defer d.wg.Done()

	ticker := time.NewTicker(500 * time.Millisecond)
	defer ticker.Stop()

	uiEvents := ui.PollEvents()

	d.render()

	for {
		select {
		case <-d.ctx.Done():
			for len(uiEvents) > 0 {
				<-uiEvents
			}
			return
		case e := <-uiEvents:
			select {
			case <-d.ctx.Done():
				return
			default:
			}

			switch e.ID {
			case "q", "<C-c>":
				if d.shutdownFunc != nil {
					d.shutdownFunc()
				}
				// Stop() cancels the context once the run has wound down.
			case "<Resize>":
				payload := e.Payload.(ui.Resize)
				d.grid.SetRect(0, 0, payload.Width, payload.Height)
				ui.Clear()
				d.render()
			}
		case <-ticker.C:
			d.update()
			d.render()
		}
	}
}

// update refreshes all widget data from the collector and the snapshot source.
func (d *Dashboard) update() {
	d.mu.Lock()
	defer d.mu.Unlock()

	elapsed := time.Since(d.startTime)
	stats := d.collector.Stats(d.collector.Elapsed())

	if stats.MeanLatency > 0 {
		latencyMs := stats.MeanLatencyMs
		d.latencyHistory = append(d.latencyHistory, latencyMs)
		if len(d.latencyHistory) > 100 {
			d.latencyHistory = d.latencyHistory[1:]
		}
		d.latencySparkle.Sparklines[0].Data = d.latencyHistory
		d.latencySparkle.Title = fmt.Sprintf(
			"Real-time Latency | Current: %.2fms | Min: %.2fms | Max: %.2fms",
			latencyMs,
			stats.MinLatencyMs,
			stats.MaxLatencyMs,
		)
	}

	successRate := 0.0
	if stats.Total > 0 {
		successRate = (float64(stats.Successes) / float64(stats.Total)) * 100
	}

	var snap runner.RunSnapshot
	if d.source != nil {
		snap = d.source.Snapshot()
	}
	d.updateProgress(snap)

	runLine := "Run: pending"
	if snap.ID != "" {
		runLine = fmt.Sprintf("Run: %s (%s)", snap.ID, snap.State)
	}
	d.summaryPara.Text = fmt.Sprintf(
		"%s\n%s\nElapsed: %s | Total: %d | Success Rate: %.1f%%",
		runLine,
		d.formatRunParams(),
		elapsed.Round(time.Second),
		stats.Total,
		successRate,
	)

	d.metricsPara.Text = fmt.Sprintf(
		"Total Requests:    %d\nSuccessful:        %d\nFailed:            %d\nCurrent RPS:       %.2f\nSuccess Rate:      %.1f%%\nTTFB P50:          %.2fms\nReceived:          %s",
		stats.Total,
		stats.Successes,
		stats.Failures,
		stats.RequestsPerSec,
		successRate,
		stats.P50TTFBMs,
		formatBytes(stats.BytesReceived),
	)

	d.latencyPara.Text = fmt.Sprintf(
		"Min:  %.2fms\nMean: %.2fms\nP50:  %.2fms\nP90:  %.2fms\nP99:  %.2fms",
		stats.MinLatencyMs,
		stats.MeanLatencyMs,
		stats.P50LatencyMs,
		stats.P90LatencyMs,
		stats.P99LatencyMs,
	)

	d.errorList.Rows = formatFailureRows(stats)

	d.updatePairTable(snap)
}

func (d *Dashboard) render() {
	d.mu.Lock()
	defer d.mu.Unlock()

	ui.Render(d.grid)
}

func (d *Dashboard) updateProgress(snap runner.RunSnapshot) {
	if snap.Total == 0 {
		d.progressGauge.Percent = 0
		d.progressGauge.Label = "waiting"
		return
	}
	percent := snap.Completed * 100 / snap.Total
	if percent > 100 {
		percent = 100
	}
	d.progressGauge.Percent = percent
	d.progressGauge.Label = fmt.Sprintf("%d/%d requests | %d/%d pairs",
		snap.Completed, snap.Total, snap.PairsCompleted, snap.PairsTotal)
}

var pairHeader = []string{"Provider", "Scenario", "Reqs", "Mean", "P95", "TTFB", "Success"}

func (d *Dashboard) updatePairTable(snap runner.RunSnapshot) {
	summaries := snap.Summaries()
	rows := [][]string{pairHeader}
	styles := map[int]ui.Style{0: ui.NewStyle(ui.ColorCyan, ui.ColorClear, ui.ModifierBold)}

	for _, s := range summaries {
		rows = append(rows, []string{
			s.Provider,
			s.Scenario,
			fmt.Sprintf("%d", s.TotalRequests),
			formatMs(s.Latency.Mean),
			formatMs(s.Latency.P95),
			formatMs(s.TTFB.Median),
			fmt.Sprintf("%.1f%%", s.SuccessRatePercent),
		})
		switch {
		case s.AllFailed:
			styles[len(rows)-1] = ui.NewStyle(ui.ColorRed)
		case s.SuccessRatePercent < 100:
			styles[len(rows)-1] = ui.NewStyle(ui.ColorYellow)
		}
	}

	ids := make([]string, 0, len(snap.Skipped))
	for id := range snap.Skipped {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	for _, id := range ids {
		rows = append(rows, []string{id, "skipped: " + snap.Skipped[id], "", "", "", "", ""})
		styles[len(rows)-1] = ui.NewStyle(ui.ColorWhite, ui.ColorClear, ui.ModifierClear)
	}

	if len(rows) == 1 {
		rows = append(rows, []string{"Awaiting data", "", "", "", "", "", ""})
	}
	d.pairTable.Rows = rows
	d.pairTable.RowStyles = styles
}

func formatFailureRows(stats metrics.Stats) []string {
	rows := formatStatusListRows(stats.StatusBuckets)
	if len(stats.Errors) == 0 {
		return rows
	}
	names := make([]string, 0, len(stats.Errors))
	for name := range stats.Errors {
		names = append(names, name)
	}
	sort.Slice(names, func(i, j int) bool {
		if stats.Errors[names[i]] != stats.Errors[names[j]] {
			return stats.Errors[names[i]] > stats.Errors[names[j]]
		}
		return names[i] < names[j]
	})
	for _, name := range names {
		rows = append(rows, fmt.Sprintf("[%s](fg:yellow) %d", name, stats.Errors[name]))
	}
	return rows
}

func formatStatusListRows(buckets map[string]map[string]int) []string {
	rows := metrics.FlattenStatusBuckets(buckets)
	if len(rows) == 0 {
		return []string{"[No failures](fg:green)"}
	}
	maxRows := len(rows)
	if maxRows > 10 {
		maxRows = 10
	}
	formatted := make([]string, 0, maxRows)
	for i := 0; i < maxRows; i++ {
		row := rows[i]
		formatted = append(formatted, fmt.Sprintf("[%s %s](fg:red) %d", row.Provider, row.Code, row.Count))
	}
	return formatted
}

// formatRunParams formats the run configuration for display.
func (d *Dashboard) formatRunParams() string {
	var parts []string

	if len(d.runConfig.Providers) > 0 {
		parts = append(parts, fmt.Sprintf("Providers: %s", strings.Join(d.runConfig.Providers, ",")))
	}

	if len(d.runConfig.Scenarios) > 0 {
		parts = append(parts, fmt.Sprintf("Scenarios: %s", strings.Join(d.runConfig.Scenarios, ",")))
	} else {
		parts = append(parts, "Scenarios: all")
	}

	if d.runConfig.Iterations > 0 {
		parts = append(parts, fmt.Sprintf("Iterations: %d", d.runConfig.Iterations))
	}

	if d.runConfig.Delay > 0 {
		parts = append(parts, fmt.Sprintf("Delay: %s", d.runConfig.Delay))
	}

	if d.runConfig.Timeout > 0 {
		parts = append(parts, fmt.Sprintf("Timeout: %s", d.runConfig.Timeout))
	}

	if d.runConfig.Retries > 0 {
		parts = append(parts, fmt.Sprintf("Retries: %d", d.runConfig.Retries))
	}

	if d.runConfig.ConfigFile != "" {
		parts = append(parts, fmt.Sprintf("Config: %s", d.runConfig.ConfigFile))
	}

	return strings.Join(parts, " | ")
}

func formatMs(ms float64) string {
	if ms == 0 {
		return "-"
	}
	return fmt.Sprintf("%.1fms", ms)
}

func formatBytes(b int64) string {
	switch {
	case b >= 1<<20:
		return fmt.Sprintf("%.1f MiB", float64(b)/(1<<20))
	case b >= 1<<10:
		return fmt.Sprintf("%.1f KiB", float64(b)/(1<<10))
	default:
		return fmt.Sprintf("%d B", b)
	}
}
