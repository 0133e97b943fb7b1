// Package video keeps the most recent camera frame uploaded for each drone.
package video

import (
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/google/uuid"

	"dronevis/internal/telemetry"
)

// DefaultMaxFrameSize caps an uploaded frame.
const DefaultMaxFrameSize = 8 << 20

// ErrTooLarge is returned by Put for frames over the relay's limit.
var ErrTooLarge = &telemetry.ValidationError{Field: "frame", Reason: "exceeds maximum size"}

// Frame is one stored image.
type Frame struct {
	ID          string    `json:"frame_id"`
	DroneID     string    `json:"drone_id"`
	ContentType string    `json:"content_type"`
	Size        int       `json:"size"`
	ReceivedAt  time.Time `json:"timestamp"`
	Data        []byte    `json:"-"`
}

// Relay stores the latest frame per drone in memory.
type Relay struct {
	mu      sync.RWMutex
	maxSize int
	now     func() time.Time
	log     *slog.Logger
	frames  map[string]Frame
}

// NewRelay creates a relay accepting frames up to maxSize bytes. A
// non-positive maxSize selects DefaultMaxFrameSize.
func NewRelay(maxSize int, log *slog.Logger) *Relay {
	if maxSize <= 0 {
		maxSize = DefaultMaxFrameSize
	}
	if log == nil {
		log = slog.New(slog.DiscardHandler)
	}
	return &Relay{maxSize: maxSize, now: time.Now, log: log, frames: make(map[string]Frame)}
}

// MaxSize is the largest accepted frame in bytes.
func (r *Relay) MaxSize() int { return r.maxSize }

// Put replaces the stored frame for droneID. The data is copied.
func (r *Relay) Put(droneID, contentType string, data []byte) (Frame, error) {
	if droneID == "" {
		return Frame{}, &telemetry.ValidationError{Field: "drone_id", Reason: "is required"}
	}
	if len(data) == 0 {
		return Frame{}, &telemetry.ValidationError{Field: "frame", Reason: "is empty"}
	}
	if len(data) > r.maxSize {
		return Frame{}, fmt.Errorf("%s bytes, limit %s: %w",
			humanize.Comma(int64(len(data))), humanize.IBytes(uint64(r.maxSize)), ErrTooLarge)
	}
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	f := Frame{
		ID:          uuid.NewString(),
		DroneID:     droneID,
		ContentType: contentType,
		Size:        len(data),
		ReceivedAt:  r.now().UTC(),
		Data:        append([]byte(nil), data...),
	}
	r.mu.Lock()
	r.frames[droneID] = f
	r.mu.Unlock()
	r.log.Debug("video frame stored", "drone", droneID, "size", humanize.IBytes(uint64(f.Size)))
	return f, nil
}

// Latest returns the most recent frame for droneID. Data is shared and
// must not be modified.
func (r *Relay) Latest(droneID string) (Frame, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	f, ok := r.frames[droneID]
	if !ok {
		return Frame{}, fmt.Errorf("video frame for %s: %w", droneID, telemetry.ErrNotFound)
	}
	return f, nil
}

// Drop forgets the frame for droneID.
func (r *Relay) Drop(droneID string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.frames[droneID]
	delete(r.frames, droneID)
	return ok
}
