package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	// Server
	Port            int
	Password        string
	LogDirectory    string
	DatabasePath    string
	StaticDirectory string

	// Camera and drive loop
	CameraDevice        string
	ImageWidth          int
	ImageHeight         int
	DriveLoopHz         int
	DriveMode           string // "user" or "local"
	ViewerFrameInterval int    // Co którą klatkę wysyłać do podglądu

	// Scanline extraction
	ScanY               int
	ScanHeight          int
	ScanFarOffset       int
	ROIMaskLeft         int
	ROIMaskRight        int
	GrayscaleThreshold  int
	ConfidenceThreshold int

	// Lane model
	LaneWidthPixels int
	LaneWidthMin    int
	LaneWidthMax    int
	CarCenterPixel  int

	// Turn counting
	CurveThreshold    int
	TurnEnterFrames   int
	TurnExitFrames    int
	CommitLeftGap     int
	SkipForceStraight bool

	// Steering
	PIDKp                float64
	PIDKi                float64
	PIDKd                float64
	PIDOutputLimit       float64
	SteeringSmoothFactor float64

	// Throttle
	ThrottleInitial        float64
	ThrottleMin            float64
	ThrottleMax            float64
	ThrottleStep           float64
	ThrottleBrakeThreshold float64

	OverlayImage bool

	// Route manager
	IntersectionROITop       int
	IntersectionROIBottom    int
	IntersectionThreshold    int
	IntersectionPixelTrigger int
	IntersectionCooldown     int
	ActionDuration           time.Duration
	RoutePlan                []string
	BehaviorList             []string

	StopColorLow1  [3]float64
	StopColorHigh1 [3]float64
	StopColorLow2  [3]float64
	StopColorHigh2 [3]float64
	StopMinArea    float64

	RightTurnSignalEnabled bool
	RightTurnColorLow      [3]float64
	RightTurnColorHigh     [3]float64
	RightTurnMinArea       float64
	RightTurnCooldown      int

	// Road segmentation
	SegmentationWidth       int
	SegmentationHeight      int
	SegmentationSensitivity int
	SegmentationMinArea     float64
	SegmentationDebug       bool

	// Run journal
	JournalBufferLimit   int
	JournalFlushInterval time.Duration
}

// Load reads an optional .env file and the process environment, falling back
// to the defaults below for anything unset.
func Load() *Config {
	// Brak pliku .env nie jest błędem
	_ = godotenv.Load(getEnv("ENV_FILE", ".env"))

	return &Config{
		Port:            getEnvAsInt("PORT", 8887),
		Password:        getEnv("PASSWORD", "donkey"),
		LogDirectory:    getEnv("LOG_DIR", filepath.Join(".", "logs")),
		DatabasePath:    getEnv("DB_PATH", filepath.Join(".", "data", "journal.db")),
		StaticDirectory: getEnv("STATIC_DIR", "static"),

		CameraDevice:        getEnv("CAMERA_DEVICE", "0"),
		ImageWidth:          getEnvAsInt("IMAGE_W", 160),
		ImageHeight:         getEnvAsInt("IMAGE_H", 120),
		DriveLoopHz:         getEnvAsInt("DRIVE_LOOP_HZ", 20),
		DriveMode:           getEnv("DRIVE_MODE", "local"),
		ViewerFrameInterval: getEnvAsInt("VIEWER_FRAME_INTERVAL", 2),

		ScanY:               getEnvAsInt("SCAN_Y", 80),
		ScanHeight:          getEnvAsInt("SCAN_HEIGHT", 10),
		ScanFarOffset:       getEnvAsInt("SCAN_FAR_OFFSET", 40),
		ROIMaskLeft:         getEnvAsInt("ROI_MASK_LEFT", 0),
		ROIMaskRight:        getEnvAsInt("ROI_MASK_RIGHT", 0),
		GrayscaleThreshold:  getEnvAsInt("GRAYSCALE_THRESHOLD", 100),
		ConfidenceThreshold: getEnvAsInt("CONFIDENCE_THRESHOLD", 1000),

		LaneWidthPixels: getEnvAsInt("LANE_WIDTH_PIXELS", 65),
		LaneWidthMin:    getEnvAsInt("LANE_WIDTH_MIN", 50),
		LaneWidthMax:    getEnvAsInt("LANE_WIDTH_MAX", 80),
		CarCenterPixel:  getEnvAsInt("CAR_CENTER_PIXEL", 80),

		CurveThreshold:    getEnvAsInt("CURVE_THRESHOLD", 25),
		TurnEnterFrames:   getEnvAsInt("TURN_ENTER_FRAMES", 3),
		TurnExitFrames:    getEnvAsInt("TURN_EXIT_FRAMES", 10),
		CommitLeftGap:     getEnvAsInt("COMMIT_LEFT_GAP", 40),
		SkipForceStraight: getEnvAsBool("SKIP_FORCE_STRAIGHT", false),

		PIDKp:                getEnvAsFloat("PID_P", -0.01),
		PIDKi:                getEnvAsFloat("PID_I", 0.0),
		PIDKd:                getEnvAsFloat("PID_D", -0.0001),
		PIDOutputLimit:       getEnvAsFloat("PID_OUTPUT_LIMIT", 1.0),
		SteeringSmoothFactor: getEnvAsFloat("STEERING_SMOOTH_FACTOR", 1.0),

		ThrottleInitial:        getEnvAsFloat("THROTTLE_INITIAL", 0.15),
		ThrottleMin:            getEnvAsFloat("THROTTLE_MIN", 0.15),
		ThrottleMax:            getEnvAsFloat("THROTTLE_MAX", 0.25),
		ThrottleStep:           getEnvAsFloat("THROTTLE_STEP", 0.02),
		ThrottleBrakeThreshold: getEnvAsFloat("THROTTLE_BRAKE_THRESHOLD", 10),

		OverlayImage: getEnvAsBool("OVERLAY_IMAGE", false),

		IntersectionROITop:       getEnvAsInt("ROI_TOP_INTERSECTION", 90),
		IntersectionROIBottom:    getEnvAsInt("ROI_BOTTOM_INTERSECTION", 120),
		IntersectionThreshold:    getEnvAsInt("THRESH_VAL_INTERSECTION", 60),
		IntersectionPixelTrigger: getEnvAsInt("PIXEL_COUNT_TRIGGER_INTERSECTION", 1500),
		IntersectionCooldown:     getEnvAsInt("COOLDOWN_LIMIT_INTERSECTION", 100), // 5 s przy 20 Hz
		ActionDuration:           getEnvAsDuration("ACTION_DURATION", 500*time.Millisecond),
		RoutePlan:                getEnvAsList("ROUTE_PLAN", []string{"Normal", "Normal", "Left_Turn", "Left_Turn", "Left_Turn", "Normal", "Left_Turn"}),
		BehaviorList:             getEnvAsList("BEHAVIOR_LIST", []string{"Normal", "Left_Turn", "Right_Turn"}),

		StopColorLow1:  getEnvAsTriple("STOP_SIGN_MIN_HSV1", [3]float64{0, 100, 70}),
		StopColorHigh1: getEnvAsTriple("STOP_SIGN_MAX_HSV1", [3]float64{10, 255, 255}),
		StopColorLow2:  getEnvAsTriple("STOP_SIGN_MIN_HSV2", [3]float64{170, 100, 70}),
		StopColorHigh2: getEnvAsTriple("STOP_SIGN_MAX_HSV2", [3]float64{180, 255, 255}),
		StopMinArea:    getEnvAsFloat("STOP_SIGN_MIN_AREA", 300),

		RightTurnSignalEnabled: getEnvAsBool("RIGHT_TURN_SIGNAL", false),
		RightTurnColorLow:      getEnvAsTriple("RIGHT_TURN_COLOR_LOW", [3]float64{40, 80, 60}),
		RightTurnColorHigh:     getEnvAsTriple("RIGHT_TURN_COLOR_HIGH", [3]float64{80, 255, 255}),
		RightTurnMinArea:       getEnvAsFloat("RIGHT_TURN_MIN_AREA", 300),
		RightTurnCooldown:      getEnvAsInt("RIGHT_TURN_COOLDOWN_LIMIT", 30), // 1.5 s przy 20 Hz

		SegmentationWidth:       getEnvAsInt("SEGMENTATION_W", 160),
		SegmentationHeight:      getEnvAsInt("SEGMENTATION_H", 120),
		SegmentationSensitivity: getEnvAsInt("SEGMENTATION_SENSITIVITY", 120),
		SegmentationMinArea:     getEnvAsFloat("SEGMENTATION_MIN_AREA", 50),
		SegmentationDebug:       getEnvAsBool("SEGMENTATION_DEBUG", false),

		JournalBufferLimit:   getEnvAsInt("JOURNAL_BUFFER_LIMIT", 500),
		JournalFlushInterval: getEnvAsDuration("JOURNAL_FLUSH_INTERVAL", 5*time.Second),
	}
}

// Validate checks the loaded values once at startup. All problems are
// reported together.
func (c *Config) Validate() error {
	var errs []error
	check := func(ok bool, format string, v ...interface{}) {
		if !ok {
			errs = append(errs, fmt.Errorf(format, v...))
		}
	}

	check(c.ImageWidth > 0 && c.ImageHeight > 0, "image size must be positive, got %dx%d", c.ImageWidth, c.ImageHeight)
	check(c.DriveLoopHz > 0, "drive loop rate must be positive, got %d", c.DriveLoopHz)
	check(c.DriveMode == "user" || c.DriveMode == "local", "drive mode must be \"user\" or \"local\", got %q", c.DriveMode)
	check(c.ViewerFrameInterval > 0, "viewer frame interval must be positive, got %d", c.ViewerFrameInterval)

	check(c.ScanHeight > 0, "scan height must be positive, got %d", c.ScanHeight)
	check(c.ScanY >= 0 && c.ScanY < c.ImageHeight, "scan row %d outside frame height %d", c.ScanY, c.ImageHeight)
	check(c.ScanFarOffset >= 0, "far scan offset must not be negative, got %d", c.ScanFarOffset)
	check(c.ROIMaskLeft >= 0 && c.ROIMaskRight >= 0, "ROI masks must not be negative")
	check(c.ROIMaskLeft+c.ROIMaskRight < c.ImageWidth, "ROI masks cover the whole frame width")
	check(c.GrayscaleThreshold >= 0 && c.GrayscaleThreshold <= 255, "grayscale threshold %d outside [0,255]", c.GrayscaleThreshold)
	check(c.CarCenterPixel >= 0 && c.CarCenterPixel < c.ImageWidth, "car center pixel %d outside frame width %d", c.CarCenterPixel, c.ImageWidth)
	check(c.LaneWidthPixels > 0, "lane width must be positive, got %d", c.LaneWidthPixels)
	check(c.LaneWidthMin < c.LaneWidthMax, "lane width band [%d,%d] is empty", c.LaneWidthMin, c.LaneWidthMax)

	check(c.TurnEnterFrames >= 0 && c.TurnExitFrames >= 0, "turn frame counts must not be negative")
	check(c.SteeringSmoothFactor >= 0 && c.SteeringSmoothFactor <= 1, "steering smooth factor %.3f outside [0,1]", c.SteeringSmoothFactor)
	check(c.PIDOutputLimit > 0, "PID output limit must be positive, got %.3f", c.PIDOutputLimit)

	check(c.ThrottleMin <= c.ThrottleMax, "throttle min %.3f above max %.3f", c.ThrottleMin, c.ThrottleMax)
	check(c.ThrottleStep > 0, "throttle step must be positive, got %.3f", c.ThrottleStep)

	check(c.IntersectionROITop >= 0 && c.IntersectionROITop < c.IntersectionROIBottom, "intersection band [%d,%d) is empty", c.IntersectionROITop, c.IntersectionROIBottom)
	check(c.IntersectionCooldown >= 0, "intersection cooldown must not be negative, got %d", c.IntersectionCooldown)
	check(c.ActionDuration > 0, "action duration must be positive, got %s", c.ActionDuration)
	check(len(c.RoutePlan) > 0, "route plan is empty")

	known := make(map[string]bool, len(c.BehaviorList))
	for _, name := range c.BehaviorList {
		known[name] = true
	}
	check(known["Normal"], "behavior list %v lacks Normal", c.BehaviorList)
	for i, name := range c.RoutePlan {
		check(known[name], "route plan entry %d (%q) not in behavior list", i, name)
	}

	check(c.SegmentationWidth > 0 && c.SegmentationHeight > 0, "segmentation size must be positive")
	check(c.JournalBufferLimit > 0, "journal buffer limit must be positive, got %d", c.JournalBufferLimit)
	check(c.JournalFlushInterval > 0, "journal flush interval must be positive")

	return errors.Join(errs...)
}

// TickPeriod is the duration of one drive loop iteration.
func (c *Config) TickPeriod() time.Duration {
	return time.Second / time.Duration(c.DriveLoopHz)
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvAsFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if floatValue, err := strconv.ParseFloat(value, 64); err == nil {
			return floatValue
		}
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolValue, err := strconv.ParseBool(value); err == nil {
			return boolValue
		}
	}
	return defaultValue
}

// getEnvAsDuration accepts Go duration strings ("500ms") or plain seconds ("0.5").
func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	if d, err := time.ParseDuration(value); err == nil {
		return d
	}
	if seconds, err := strconv.ParseFloat(value, 64); err == nil {
		return time.Duration(seconds * float64(time.Second))
	}
	return defaultValue
}

func getEnvAsList(key string, defaultValue []string) []string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	var items []string
	for _, item := range strings.Split(value, ",") {
		if item = strings.TrimSpace(item); item != "" {
			items = append(items, item)
		}
	}
	if len(items) == 0 {
		return defaultValue
	}
	return items
}

// getEnvAsTriple parses "h,s,v" style bounds.
func getEnvAsTriple(key string, defaultValue [3]float64) [3]float64 {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	parts := strings.Split(value, ",")
	if len(parts) != 3 {
		return defaultValue
	}
	var triple [3]float64
	for i, part := range parts {
		v, err := strconv.ParseFloat(strings.TrimSpace(part), 64)
		if err != nil {
			return defaultValue
		}
		triple[i] = v
	}
	return triple
}
