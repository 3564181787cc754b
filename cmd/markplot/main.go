// Command markplot renders PNG line charts from a markctl diagnostics
// database: the status-word trace over time, the busy fraction, and
// footswitch press markers. Grounded on internal/lidar/monitor/gridplotter.go's
// plot.New/plotter.NewLine/Save pattern.
package main

import (
	"flag"
	"fmt"
	"log"
	"time"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"

	"github.com/meerk40t/galvo/internal/diag"
)

var (
	dbPath   = flag.String("diag-db", "", "Path to the diagnostics sqlite database (required)")
	serial   = flag.String("serial", "", "Restrict to one session's serial number/ID; empty means all")
	since    = flag.Duration("since", 24*time.Hour, "How far back to include")
	outDir   = flag.String("out", ".", "Directory to write PNG charts into")
	busyMask = flag.Uint("busy-mask", 0x04, "Status-word bit treated as 'busy' for the busy-fraction chart")
)

func statusPlot(samples []diag.StatusSample, start time.Time) (*plot.Plot, error) {
	p := plot.New()
	p.Title.Text = "Status word over time"
	p.X.Label.Text = "Seconds since start"
	p.Y.Label.Text = "Status word"

	pts := make(plotter.XYs, len(samples))
	for i, s := range samples {
		pts[i].X = s.At().Sub(start).Seconds()
		pts[i].Y = float64(s.StatusWord)
	}
	line, err := plotter.NewLine(pts)
	if err != nil {
		return nil, fmt.Errorf("building status line: %w", err)
	}
	p.Add(line)
	return p, nil
}

func busyFractionPlot(samples []diag.StatusSample, start time.Time, busyBit uint16) (*plot.Plot, error) {
	p := plot.New()
	p.Title.Text = "Busy fraction (1 = busy, 0 = idle)"
	p.X.Label.Text = "Seconds since start"
	p.Y.Label.Text = "Busy"

	pts := make(plotter.XYs, len(samples))
	for i, s := range samples {
		pts[i].X = s.At().Sub(start).Seconds()
		if s.StatusWord&busyBit != 0 {
			pts[i].Y = 1
		}
	}
	line, err := plotter.NewLine(pts)
	if err != nil {
		return nil, fmt.Errorf("building busy-fraction line: %w", err)
	}
	p.Add(line)
	return p, nil
}

func footswitchPlot(events []diag.SessionEvent, start time.Time) (*plot.Plot, error) {
	p := plot.New()
	p.Title.Text = "Footswitch presses"
	p.X.Label.Text = "Seconds since start"
	p.Y.Label.Text = "Press"

	var pts plotter.XYs
	for _, e := range events {
		if e.Kind != "footswitch" {
			continue
		}
		pts = append(pts, plotter.XY{X: e.At().Sub(start).Seconds(), Y: 1})
	}
	scatter, err := plotter.NewScatter(pts)
	if err != nil {
		return nil, fmt.Errorf("building footswitch scatter: %w", err)
	}
	p.Add(scatter)
	return p, nil
}

func main() {
	flag.Parse()
	if *dbPath == "" {
		log.Fatal("markplot: -diag-db is required")
	}

	rec, err := diag.Open(*dbPath)
	if err != nil {
		log.Fatalf("markplot: %v", err)
	}
	defer rec.Close()

	from := time.Now().Add(-*since)
	samples, err := rec.StatusSamples(*serial, from)
	if err != nil {
		log.Fatalf("markplot: reading status samples: %v", err)
	}
	events, err := rec.Events(*serial, from)
	if err != nil {
		log.Fatalf("markplot: reading events: %v", err)
	}
	if len(samples) == 0 {
		log.Fatalf("markplot: no status samples in the requested window")
	}

	start := samples[0].At()

	statusP, err := statusPlot(samples, start)
	if err != nil {
		log.Fatalf("markplot: %v", err)
	}
	busyP, err := busyFractionPlot(samples, start, uint16(*busyMask))
	if err != nil {
		log.Fatalf("markplot: %v", err)
	}
	fsP, err := footswitchPlot(events, start)
	if err != nil {
		log.Fatalf("markplot: %v", err)
	}

	charts := map[string]*plot.Plot{
		"status.png":        statusP,
		"busy_fraction.png": busyP,
		"footswitch.png":    fsP,
	}
	for name, p := range charts {
		path := fmt.Sprintf("%s/%s", *outDir, name)
		if err := p.Save(12*vg.Inch, 5*vg.Inch, path); err != nil {
			log.Fatalf("markplot: saving %s: %v", path, err)
		}
		log.Printf("markplot: wrote %s", path)
	}
}
