package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("ENV_FILE", filepath.Join(t.TempDir(), "missing.env"))

	cfg := Load()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("default config should validate: %v", err)
	}

	if cfg.ImageWidth != 160 || cfg.ImageHeight != 120 {
		t.Errorf("Expected 160x120 frame, got %dx%d", cfg.ImageWidth, cfg.ImageHeight)
	}
	if cfg.ScanFarOffset != 40 {
		t.Errorf("Expected far offset 40, got %d", cfg.ScanFarOffset)
	}
	if cfg.ActionDuration != 500*time.Millisecond {
		t.Errorf("Expected action duration 500ms, got %s", cfg.ActionDuration)
	}
	if len(cfg.RoutePlan) != 7 || cfg.RoutePlan[2] != "Left_Turn" {
		t.Errorf("Unexpected default route plan: %v", cfg.RoutePlan)
	}
	if cfg.TickPeriod() != 50*time.Millisecond {
		t.Errorf("Expected 50ms tick at 20Hz, got %s", cfg.TickPeriod())
	}
}

func TestLoad_EnvironmentOverrides(t *testing.T) {
	t.Setenv("ENV_FILE", filepath.Join(t.TempDir(), "missing.env"))
	t.Setenv("SCAN_Y", "70")
	t.Setenv("STEERING_SMOOTH_FACTOR", "0.4")
	t.Setenv("OVERLAY_IMAGE", "true")
	t.Setenv("ACTION_DURATION", "1.5")
	t.Setenv("ROUTE_PLAN", "Normal, Right_Turn ,Normal")
	t.Setenv("STOP_SIGN_MIN_HSV1", "1,2,3")

	cfg := Load()

	if cfg.ScanY != 70 {
		t.Errorf("Expected ScanY 70, got %d", cfg.ScanY)
	}
	if cfg.SteeringSmoothFactor != 0.4 {
		t.Errorf("Expected smooth 0.4, got %f", cfg.SteeringSmoothFactor)
	}
	if !cfg.OverlayImage {
		t.Error("Expected overlay enabled")
	}
	if cfg.ActionDuration != 1500*time.Millisecond {
		t.Errorf("Expected 1.5s action duration, got %s", cfg.ActionDuration)
	}
	if strings.Join(cfg.RoutePlan, "|") != "Normal|Right_Turn|Normal" {
		t.Errorf("Unexpected route plan %v", cfg.RoutePlan)
	}
	if cfg.StopColorLow1 != [3]float64{1, 2, 3} {
		t.Errorf("Unexpected stop bounds %v", cfg.StopColorLow1)
	}
}

func TestLoad_InvalidValuesFallBack(t *testing.T) {
	t.Setenv("ENV_FILE", filepath.Join(t.TempDir(), "missing.env"))
	t.Setenv("SCAN_Y", "abc")
	t.Setenv("THROTTLE_MAX", "fast")
	t.Setenv("STOP_SIGN_MIN_HSV1", "1,2")

	cfg := Load()

	if cfg.ScanY != 80 {
		t.Errorf("Expected default ScanY 80, got %d", cfg.ScanY)
	}
	if cfg.ThrottleMax != 0.25 {
		t.Errorf("Expected default throttle max, got %f", cfg.ThrottleMax)
	}
	if cfg.StopColorLow1 != [3]float64{0, 100, 70} {
		t.Errorf("Expected default stop bounds, got %v", cfg.StopColorLow1)
	}
}

func TestLoad_DotEnvFile(t *testing.T) {
	envFile := filepath.Join(t.TempDir(), "test.env")
	if err := os.WriteFile(envFile, []byte("CAR_CENTER_PIXEL=77\nLANE_WIDTH_PIXELS=60\n"), 0644); err != nil {
		t.Fatalf("Failed to write env file: %v", err)
	}
	t.Setenv("ENV_FILE", envFile)
	t.Cleanup(func() {
		os.Unsetenv("CAR_CENTER_PIXEL")
		os.Unsetenv("LANE_WIDTH_PIXELS")
	})

	cfg := Load()

	if cfg.CarCenterPixel != 77 {
		t.Errorf("Expected car center 77 from .env, got %d", cfg.CarCenterPixel)
	}
	if cfg.LaneWidthPixels != 60 {
		t.Errorf("Expected lane width 60 from .env, got %d", cfg.LaneWidthPixels)
	}
}

func TestValidate_Rejects(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(c *Config)
		want   string
	}{
		{"throttle range", func(c *Config) { c.ThrottleMin = 0.5 }, "throttle min"},
		{"smooth factor", func(c *Config) { c.SteeringSmoothFactor = 1.5 }, "smooth factor"},
		{"scan row", func(c *Config) { c.ScanY = 200 }, "scan row"},
		{"unknown behavior", func(c *Config) { c.RoutePlan = []string{"Normal", "U_Turn"} }, "U_Turn"},
		{"no normal", func(c *Config) { c.BehaviorList = []string{"Left_Turn"}; c.RoutePlan = []string{"Left_Turn"} }, "lacks Normal"},
		{"loop rate", func(c *Config) { c.DriveLoopHz = 0 }, "drive loop rate"},
		{"drive mode", func(c *Config) { c.DriveMode = "auto" }, "drive mode"},
		{"intersection band", func(c *Config) { c.IntersectionROIBottom = c.IntersectionROITop }, "intersection band"},
	}

	t.Setenv("ENV_FILE", filepath.Join(t.TempDir(), "missing.env"))
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Load()
			tt.mutate(cfg)
			err := cfg.Validate()
			if err == nil {
				t.Fatalf("Expected validation error")
			}
			if !strings.Contains(err.Error(), tt.want) {
				t.Errorf("Expected error mentioning %q, got %v", tt.want, err)
			}
		})
	}
}
