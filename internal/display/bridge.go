// Single-slot hand-off of annotated frames from the capture worker to the display
package display

import (
	"context"
	"image"
	"sync"

	"github.com/sirupsen/logrus"
	"gocv.io/x/gocv"
)

// Sink renders one image at a time. Show is called from the bridge pump
// goroutine; implementations marshal onto their own UI thread.
type Sink interface {
	Show(img image.Image)
}

// Bridge holds the most recently published frame. Publishers never wait for
// the consumer: a newer frame simply replaces an unread one.
type Bridge struct {
	mu      sync.Mutex
	current gocv.Mat
	seq     uint64
	ready   chan struct{}
}

func NewBridge() *Bridge {
	return &Bridge{
		current: gocv.NewMat(),
		ready:   make(chan struct{}, 1),
	}
}

// Publish stores frame as the current image and takes ownership of it. The
// previously stored frame is released whether or not it was ever read.
func (b *Bridge) Publish(frame gocv.Mat) {
	b.mu.Lock()
	old := b.current
	b.current = frame
	b.seq++
	b.mu.Unlock()

	old.Close()

	select {
	case b.ready <- struct{}{}:
	default:
	}
}

// Latest returns a copy of the current frame and its sequence number. ok is
// false when nothing has been published yet. The caller owns the copy.
func (b *Bridge) Latest() (frame gocv.Mat, seq uint64, ok bool) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.seq == 0 || b.current.Empty() {
		return gocv.NewMat(), b.seq, false
	}
	return b.current.Clone(), b.seq, true
}

// Updates signals that a new frame may be available
func (b *Bridge) Updates() <-chan struct{} {
	return b.ready
}

// Run feeds published frames to sink until ctx is done. Frames that arrive
// faster than sink consumes them are skipped; frames are never shown out of order.
func (b *Bridge) Run(ctx context.Context, sink Sink, logger logrus.FieldLogger) {
	var shown uint64
	for {
		select {
		case <-ctx.Done():
			return
		case <-b.ready:
		}

		frame, seq, ok := b.Latest()
		if !ok || seq <= shown {
			frame.Close()
			continue
		}

		img, err := frame.ToImage()
		frame.Close()
		if err != nil {
			logger.WithError(err).WithField("seq", seq).Warn("DISPLAY: Failed to convert frame")
			continue
		}

		shown = seq
		sink.Show(img)
	}
}

// Close releases the stored frame
func (b *Bridge) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.current.Close()
	b.current = gocv.NewMat()
}
