// Package camera supplies frames to the drive loop.
package camera

import (
	"fmt"
	"image"
	"strconv"
	"time"

	"lanepilot/internal/config"
	"lanepilot/internal/logger"

	"gocv.io/x/gocv"
)

// FrameSource yields one frame per call. A nil frame means no frame this tick.
type FrameSource interface {
	Read() *gocv.Mat
	Close() error
}

// Source reads frames from a capture device or a video file and scales them
// to the configured frame size.
type Source struct {
	capture *gocv.VideoCapture
	raw     gocv.Mat
	frame   gocv.Mat
	size    image.Point
	logger  *logger.Logger
}

// Open opens cfg.CameraDevice: a numeric device id or a file/stream path.
func Open(cfg *config.Config, logger *logger.Logger) (*Source, error) {
	var device interface{} = cfg.CameraDevice
	if id, err := strconv.Atoi(cfg.CameraDevice); err == nil {
		device = id
	}

	capture, err := gocv.OpenVideoCapture(device)
	if err != nil {
		return nil, fmt.Errorf("failed to open camera %s: %w", cfg.CameraDevice, err)
	}

	logger.Info("📷 Camera %s opened, frames scaled to %dx%d", cfg.CameraDevice, cfg.ImageWidth, cfg.ImageHeight)
	return &Source{
		capture: capture,
		raw:     gocv.NewMat(),
		frame:   gocv.NewMat(),
		size:    image.Pt(cfg.ImageWidth, cfg.ImageHeight),
		logger:  logger,
	}, nil
}

// Read grabs the next frame. The returned Mat is reused by the next call.
func (s *Source) Read() *gocv.Mat {
	if ok := s.capture.Read(&s.raw); !ok || s.raw.Empty() {
		s.logger.EveryWarning("camera-read", 5*time.Second, "Camera read failed, no frame this tick")
		return nil
	}

	if s.raw.Cols() == s.size.X && s.raw.Rows() == s.size.Y {
		s.raw.CopyTo(&s.frame)
	} else {
		gocv.Resize(s.raw, &s.frame, s.size, 0, 0, gocv.InterpolationArea)
	}
	return &s.frame
}

func (s *Source) Close() error {
	s.raw.Close()
	s.frame.Close()
	return s.capture.Close()
}
