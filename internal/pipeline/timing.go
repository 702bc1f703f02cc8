package pipeline

import (
	"encoding/json"
	"fmt"
	"os"
	"sync"
	"time"

	"go.uber.org/zap"
)

// StageTiming is one completed stage of a run
type StageTiming struct {
	Phase      string  `json:"phase"`
	Status     string  `json:"status,omitempty"`
	StartMS    float64 `json:"start_ms"`
	DurationMS float64 `json:"duration_ms"`
	EndMS      float64 `json:"end_ms"`
}

// timingRecorder logs every stage and, when given a path, appends each one
// as a JSON line
type timingRecorder struct {
	start  time.Time
	mu     sync.Mutex
	events []StageTiming
	file   *os.File
	enc    *json.Encoder
	err    error
}

func newTimingRecorder(start time.Time, path string) *timingRecorder {
	tr := &timingRecorder{start: start}
	if path == "" {
		return tr
	}
	f, err := os.Create(path)
	if err != nil {
		tr.err = err
		return tr
	}
	tr.file = f
	tr.enc = json.NewEncoder(f)
	return tr
}

func (tr *timingRecorder) Err() error {
	if tr == nil {
		return nil
	}
	return tr.err
}

func (tr *timingRecorder) Close() {
	if tr == nil || tr.file == nil {
		return
	}
	_ = tr.file.Close()
}

// stage records a phase that began at start and ends now
func (tr *timingRecorder) stage(phase string, start time.Time, status string) {
	if tr == nil {
		return
	}
	duration := time.Since(start)
	startMS := durationToMS(start.Sub(tr.start))
	durationMS := durationToMS(duration)
	event := StageTiming{
		Phase:      phase,
		Status:     status,
		StartMS:    startMS,
		DurationMS: durationMS,
		EndMS:      startMS + durationMS,
	}
	Logger().Debug("stage",
		zap.String("phase", phase),
		zap.String("status", status),
		zap.String("elapsed", formatDuration(duration)))

	tr.mu.Lock()
	tr.events = append(tr.events, event)
	if tr.enc != nil {
		_ = tr.enc.Encode(event)
	}
	tr.mu.Unlock()
}

func (tr *timingRecorder) Events() []StageTiming {
	tr.mu.Lock()
	defer tr.mu.Unlock()
	return append([]StageTiming(nil), tr.events...)
}

func durationToMS(d time.Duration) float64 {
	return float64(d.Nanoseconds()) / 1_000_000.0
}

func formatDuration(d time.Duration) string {
	switch {
	case d < time.Microsecond:
		return fmt.Sprintf("%dns", d.Nanoseconds())
	case d < time.Millisecond:
		return fmt.Sprintf("%dus", d.Microseconds())
	case d < time.Second:
		return fmt.Sprintf("%.2fms", float64(d)/float64(time.Millisecond))
	default:
		return fmt.Sprintf("%.2fs", d.Seconds())
	}
}
