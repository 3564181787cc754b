// Command markreport renders a self-contained HTML dashboard from a
// markctl diagnostics database: a status-word line chart, a busy
// fraction line chart, and a footswitch scatter, combined onto one
// page. Grounded on internal/lidar/monitor/echarts_handlers.go's
// charts.NewBar/NewScatter + components.Page + Render pattern.
package main

import (
	"bytes"
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/components"
	"github.com/go-echarts/go-echarts/v2/opts"

	"github.com/meerk40t/galvo/internal/diag"
)

var (
	dbPath   = flag.String("diag-db", "", "Path to the diagnostics sqlite database (required)")
	serial   = flag.String("serial", "", "Restrict to one session's serial number/ID; empty means all")
	since    = flag.Duration("since", 24*time.Hour, "How far back to include")
	outFile  = flag.String("out", "markreport.html", "Path to write the HTML dashboard to")
	busyMask = flag.Uint("busy-mask", 0x04, "Status-word bit treated as 'busy' for the busy-fraction chart")
)

func statusLine(samples []diag.StatusSample, start time.Time) *charts.Line {
	x := make([]string, len(samples))
	y := make([]opts.LineData, len(samples))
	for i, s := range samples {
		x[i] = fmt.Sprintf("%.1f", s.At().Sub(start).Seconds())
		y[i] = opts.LineData{Value: int(s.StatusWord)}
	}

	line := charts.NewLine()
	line.SetGlobalOptions(
		charts.WithTitleOpts(opts.Title{Title: "Status word over time"}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true)}),
		charts.WithXAxisOpts(opts.XAxis{Name: "Seconds since start"}),
		charts.WithYAxisOpts(opts.YAxis{Name: "Status word"}),
	)
	line.SetXAxis(x).AddSeries("status", y, charts.WithLineChartOpts(opts.LineChart{Smooth: opts.Bool(false)}))
	return line
}

func busyFractionLine(samples []diag.StatusSample, start time.Time, busyBit uint16) *charts.Line {
	x := make([]string, len(samples))
	y := make([]opts.LineData, len(samples))
	for i, s := range samples {
		x[i] = fmt.Sprintf("%.1f", s.At().Sub(start).Seconds())
		v := 0
		if s.StatusWord&busyBit != 0 {
			v = 1
		}
		y[i] = opts.LineData{Value: v}
	}

	line := charts.NewLine()
	line.SetGlobalOptions(
		charts.WithTitleOpts(opts.Title{Title: "Busy fraction (1 = busy, 0 = idle)"}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true)}),
		charts.WithXAxisOpts(opts.XAxis{Name: "Seconds since start"}),
		charts.WithYAxisOpts(opts.YAxis{Name: "Busy", Min: 0, Max: 1}),
	)
	line.SetXAxis(x).AddSeries("busy", y)
	return line
}

func footswitchScatter(events []diag.SessionEvent, start time.Time) *charts.Scatter {
	var data []opts.ScatterData
	for _, e := range events {
		if e.Kind != "footswitch" {
			continue
		}
		data = append(data, opts.ScatterData{Value: []interface{}{e.At().Sub(start).Seconds(), 1}})
	}

	scatter := charts.NewScatter()
	scatter.SetGlobalOptions(
		charts.WithTitleOpts(opts.Title{Title: "Footswitch presses"}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true)}),
		charts.WithXAxisOpts(opts.XAxis{Name: "Seconds since start"}),
		charts.WithYAxisOpts(opts.YAxis{Name: "Press"}),
	)
	scatter.AddSeries("footswitch", data, charts.WithScatterChartOpts(opts.ScatterChart{SymbolSize: 8}))
	return scatter
}

func main() {
	flag.Parse()
	if *dbPath == "" {
		log.Fatal("markreport: -diag-db is required")
	}

	rec, err := diag.Open(*dbPath)
	if err != nil {
		log.Fatalf("markreport: %v", err)
	}
	defer rec.Close()

	from := time.Now().Add(-*since)
	samples, err := rec.StatusSamples(*serial, from)
	if err != nil {
		log.Fatalf("markreport: reading status samples: %v", err)
	}
	events, err := rec.Events(*serial, from)
	if err != nil {
		log.Fatalf("markreport: reading events: %v", err)
	}
	if len(samples) == 0 {
		log.Fatalf("markreport: no status samples in the requested window")
	}

	start := samples[0].At()

	page := components.NewPage()
	page.PageTitle = "markctl diagnostics report"
	page.AddCharts(
		statusLine(samples, start),
		busyFractionLine(samples, start, uint16(*busyMask)),
		footswitchScatter(events, start),
	)

	var buf bytes.Buffer
	if err := page.Render(&buf); err != nil {
		log.Fatalf("markreport: rendering: %v", err)
	}
	if err := os.WriteFile(*outFile, buf.Bytes(), 0o644); err != nil {
		log.Fatalf("markreport: writing %s: %v", *outFile, err)
	}
	log.Printf("markreport: wrote %s (%d status samples, %d events)", *outFile, len(samples), len(events))
}
