package segmentation

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"lanepilot/internal/config"
	"lanepilot/internal/logger"

	"gocv.io/x/gocv"
)

const (
	idleSleep  = 10 * time.Millisecond
	cycleSleep = 5 * time.Millisecond
)

// Worker runs the segmenter on the most recently submitted frame. Submit and
// Poll only touch a single pending slot and the published result, both under
// a mutex, so the drive loop never waits on a processing cycle.
type Worker struct {
	segmenter *Segmenter
	segment   func(frame *gocv.Mat) (float64, *gocv.Mat, error)
	logger    *logger.Logger

	mu      sync.Mutex
	pending *gocv.Mat
	area    float64
	mask    *gocv.Mat

	// frames replaced before the loop picked them up
	drops atomic.Uint64

	// serializes processing cycles between Process and the background loop
	processMu sync.Mutex

	stopChan chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
}

func NewWorker(cfg *config.Config, logger *logger.Logger) *Worker {
	w := &Worker{
		segmenter: NewSegmenter(cfg),
		logger:    logger,
		stopChan:  make(chan struct{}),
	}
	w.segment = w.segmenter.Segment
	return w
}

// Submit stores a copy of frame as the next one to process, replacing any
// frame the worker has not picked up yet.
func (w *Worker) Submit(frame *gocv.Mat) {
	if frame == nil || frame.Empty() {
		return
	}
	clone := frame.Clone()

	w.mu.Lock()
	prev := w.pending
	w.pending = &clone
	w.mu.Unlock()

	if prev != nil {
		w.drops.Add(1)
		prev.Close()
	}
}

// Drops returns how many submitted frames were replaced unprocessed.
func (w *Worker) Drops() uint64 {
	return w.drops.Load()
}

// Poll returns the last completed road area and a copy of its debug mask
// (nil unless debug output is enabled). The caller closes the mask.
func (w *Worker) Poll() (float64, *gocv.Mat) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.mask == nil {
		return w.area, nil
	}
	mask := w.mask.Clone()
	return w.area, &mask
}

// Process runs one synchronous cycle on frame and publishes the result. A
// failed or panicking cycle leaves the previous result published.
func (w *Worker) Process(frame *gocv.Mat) (float64, error) {
	w.processMu.Lock()
	defer w.processMu.Unlock()

	area, mask, err := w.guardedSegment(frame)
	if err != nil {
		return 0, err
	}
	w.publish(area, mask)
	return area, nil
}

func (w *Worker) guardedSegment(frame *gocv.Mat) (area float64, mask *gocv.Mat, err error) {
	defer func() {
		if r := recover(); r != nil {
			area, mask = 0, nil
			err = fmt.Errorf("segmentation panicked: %v", r)
		}
	}()
	return w.segment(frame)
}

// Start launches the background loop. It ends on Stop or when ctx is done.
func (w *Worker) Start(ctx context.Context) {
	w.wg.Add(1)
	go w.loop(ctx)
	w.logger.Info("Segmentation worker started")
}

// Stop terminates the background loop, waits for it and frees resources.
func (w *Worker) Stop() {
	w.stopOnce.Do(func() {
		close(w.stopChan)
		w.wg.Wait()

		w.mu.Lock()
		if w.pending != nil {
			w.pending.Close()
			w.pending = nil
		}
		if w.mask != nil {
			w.mask.Close()
			w.mask = nil
		}
		w.mu.Unlock()

		w.segmenter.Close()
		w.logger.Info("Segmentation worker stopped, %d frames replaced unprocessed", w.drops.Load())
	})
}

func (w *Worker) loop(ctx context.Context) {
	defer w.wg.Done()

	for {
		frame := w.take()

		wait := cycleSleep
		if frame == nil {
			wait = idleSleep
		} else {
			if _, err := w.Process(frame); err != nil {
				w.logger.Error("Segmentation error: %v", err)
			}
			frame.Close()
		}

		select {
		case <-ctx.Done():
			return
		case <-w.stopChan:
			return
		case <-time.After(wait):
		}
	}
}

// take removes the pending frame, if any. The caller owns it.
func (w *Worker) take() *gocv.Mat {
	w.mu.Lock()
	defer w.mu.Unlock()
	frame := w.pending
	w.pending = nil
	return frame
}

// publish swaps in a new result; area and mask change together.
func (w *Worker) publish(area float64, mask *gocv.Mat) {
	w.mu.Lock()
	prev := w.mask
	w.area = area
	w.mask = mask
	w.mu.Unlock()

	if prev != nil {
		prev.Close()
	}
}
