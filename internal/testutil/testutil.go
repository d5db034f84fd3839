// Package testutil builds synthetic frames, configs and loggers for package tests.
package testutil

import (
	"image"
	"image/color"
	"path/filepath"
	"testing"

	"lanepilot/internal/config"
	"lanepilot/internal/logger"

	"gocv.io/x/gocv"
)

var (
	Black = color.RGBA{R: 0, G: 0, B: 0, A: 255}
	Red   = color.RGBA{R: 255, G: 0, B: 0, A: 255}
	Green = color.RGBA{R: 0, G: 200, B: 0, A: 255}
)

// Config returns the default configuration with logs and database kept in a
// per-test temporary directory.
func Config(t *testing.T) *config.Config {
	t.Helper()
	dir := t.TempDir()
	t.Setenv("ENV_FILE", filepath.Join(dir, "none.env"))
	cfg := config.Load()
	cfg.LogDirectory = filepath.Join(dir, "logs")
	cfg.DatabasePath = filepath.Join(dir, "journal.db")
	return cfg
}

// Logger returns a logger writing into the config's log directory.
func Logger(t *testing.T, cfg *config.Config) *logger.Logger {
	t.Helper()
	l, err := logger.NewLogger(cfg)
	if err != nil {
		t.Fatalf("Failed to create logger: %v", err)
	}
	t.Cleanup(l.Close)
	return l
}

// BrightFrame returns a uniformly bright BGR frame. The caller closes it.
func BrightFrame(w, h int) gocv.Mat {
	return gocv.NewMatWithSizeFromScalar(gocv.NewScalar(230, 230, 230, 0), h, w, gocv.MatTypeCV8UC3)
}

// Fill paints a solid rectangle onto a frame.
func Fill(t *testing.T, frame *gocv.Mat, rect image.Rectangle, c color.RGBA) {
	t.Helper()
	if err := gocv.Rectangle(frame, rect, c, -1); err != nil {
		t.Fatalf("Failed to draw rectangle: %v", err)
	}
}

// VerticalLine paints a dark marking spanning columns [x0, x1) over the full
// frame height.
func VerticalLine(t *testing.T, frame *gocv.Mat, x0, x1 int) {
	t.Helper()
	Fill(t, frame, image.Rect(x0, 0, x1, frame.Rows()), Black)
}
