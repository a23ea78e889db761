package views

import (
	"sync"

	"github.com/google/uuid"

	"github.com/ccugym/gymdash/internal/metrics"
)

// Frame is one encoded gym floor image
type Frame struct {
	Data        []byte
	ContentType string
}

// ImageRegistry holds the frames currently on display, each under its own
// handle. A handle must be released once superseded.
type ImageRegistry struct {
	mu      sync.RWMutex
	frames  map[string]Frame
	metrics *metrics.Metrics
}

// NewImageRegistry creates an empty registry. m may be nil.
func NewImageRegistry(m *metrics.Metrics) *ImageRegistry {
	return &ImageRegistry{
		frames:  make(map[string]Frame),
		metrics: m,
	}
}

// Adopt stores a frame and returns its new handle
func (r *ImageRegistry) Adopt(f Frame) string {
	id := uuid.NewString()

	r.mu.Lock()
	r.frames[id] = f
	r.mu.Unlock()

	r.metrics.AddImageHandles(1)
	return id
}

// Release frees a handle. Releasing an unknown handle is a no-op.
func (r *ImageRegistry) Release(id string) {
	r.mu.Lock()
	_, ok := r.frames[id]
	delete(r.frames, id)
	r.mu.Unlock()

	if ok {
		r.metrics.AddImageHandles(-1)
	}
}

// Get returns the frame behind a handle
func (r *ImageRegistry) Get(id string) (Frame, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	f, ok := r.frames[id]
	return f, ok
}

// Len returns the number of frames held
func (r *ImageRegistry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.frames)
}
