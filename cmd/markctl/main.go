// Command markctl opens a BJJCZ LMCV4-FIBER-M galvo board, runs its
// device initialization sequence, and executes a small demonstration
// job. Flags follow the style of cmd/lidar/lidar.go: package-level
// flag.* vars, plain log.Printf for status, flag.Parse in main.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/meerk40t/galvo/internal/config"
	"github.com/meerk40t/galvo/internal/diag"
	"github.com/meerk40t/galvo/internal/galvo/builder"
	"github.com/meerk40t/galvo/internal/galvo/calibration"
	"github.com/meerk40t/galvo/internal/galvo/engine"
	"github.com/meerk40t/galvo/internal/galvo/listops"
	"github.com/meerk40t/galvo/internal/galvo/protocol"
	"github.com/meerk40t/galvo/internal/galvo/transport"
)

var (
	deviceIndex   = flag.Int("device", 0, "USB device index to open, when multiple boards are attached")
	mock          = flag.Bool("mock", false, "Use an in-memory mock transport instead of a real USB device")
	correctionTbl = flag.String("correction-table", "", "Path to the binary correction table (4225 5-byte entries); omit to upload an all-zero (identity) table")
	calFile       = flag.String("cal-file", "", "Path to a .cor calibration table; omit to run with calibration disabled")
	diagDB        = flag.String("diag-db", "", "Path to a diagnostics sqlite database; omit to disable diagnostics recording")
	verbose       = flag.Bool("v", false, "Verbose logging of device lifecycle events")
)

func loadCorrectionTable(path string) ([][5]byte, error) {
	if path == "" {
		return make([][5]byte, protocol.CorrectionTableEntries), nil
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading correction table: %w", err)
	}
	if len(raw) != protocol.CorrectionTableEntries*5 {
		return nil, fmt.Errorf("correction table %s: got %d bytes, want %d", path, len(raw), protocol.CorrectionTableEntries*5)
	}
	table := make([][5]byte, protocol.CorrectionTableEntries)
	for i := range table {
		copy(table[i][:], raw[i*5:i*5+5])
	}
	return table, nil
}

func loadCalibration(path string) (*calibration.Cal, error) {
	if path == "" {
		return calibration.Disabled(), nil
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening calibration file: %w", err)
	}
	defer f.Close()
	return calibration.Load(f, 0)
}

func openTransport() (transport.Transport, error) {
	if *mock {
		return transport.NewMockTransport(), nil
	}
	return transport.OpenUSB(*deviceIndex)
}

func demoJob(cal *calibration.Cal) (*builder.CommandList, error) {
	cl := builder.New(cal)
	if err := cl.SetTravelSpeed(1000); err != nil {
		return nil, err
	}
	if err := cl.SetCutSpeed(200); err != nil {
		return nil, err
	}
	if err := cl.SetPower(50); err != nil {
		return nil, err
	}
	if err := cl.SetFrequency(30); err != nil {
		return nil, err
	}
	cl.SetLaserOnDelay(100)
	cl.SetLaserOffDelay(100)
	cl.SetPolygonDelay(50)
	if err := cl.Goto(-5, -5, false, nil); err != nil {
		return nil, err
	}
	cl.LaserControl(true)
	if err := cl.DrawLine(-5, -5, 5, 5, 1, listops.KindMarkTo); err != nil {
		return nil, err
	}
	cl.LaserControl(false)
	return cl, nil
}

func main() {
	flag.Parse()

	t, err := openTransport()
	if err != nil {
		log.Fatalf("markctl: open transport: %v", err)
	}
	defer t.Close()

	table, err := loadCorrectionTable(*correctionTbl)
	if err != nil {
		log.Fatalf("markctl: %v", err)
	}
	cal, err := loadCalibration(*calFile)
	if err != nil {
		log.Fatalf("markctl: %v", err)
	}

	d := protocol.New(t)
	cfg := config.EmptyInitConfig()

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	log.Printf("markctl: initializing device...")
	identity, err := protocol.Init(ctx, d, cfg, table)
	if err != nil {
		log.Fatalf("markctl: init: %v", err)
	}
	log.Printf("markctl: device ready, serial=%d version=%d", identity.SerialNumber, identity.Version)

	sess := engine.New(d)

	var rec *diag.Recorder
	if *diagDB != "" {
		rec, err = diag.Open(*diagDB)
		if err != nil {
			log.Fatalf("markctl: diag: %v", err)
		}
		defer rec.Close()
		sess.OnEvent = rec.Hook(sess.ID)
	} else if *verbose {
		sess.OnEvent = func(e engine.Event) {
			log.Printf("markctl: event %s %s status=%#04x", e.Kind, e.Detail, e.Status)
		}
	}

	cl, err := demoJob(cal)
	if err != nil {
		log.Fatalf("markctl: building job: %v", err)
	}

	start := time.Now()
	res, err := sess.RunOnce(ctx, cl)
	if err != nil {
		log.Fatalf("markctl: execute: %v", err)
	}
	log.Printf("markctl: job %s in %s", res, time.Since(start))
}
