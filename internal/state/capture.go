package state

import (
	"fmt"

	"InkBoard/internal/message"
)

// Capture mode names accepted by NewCapture.
const (
	ModeBatch  = "batch"
	ModeStream = "stream"
)

// Capture turns one pointer gesture into outbound messages. Begin starts the
// gesture, Sample feeds every pointer position with its pressure and End
// finishes it. The returned messages must be sent in the order returned.
type Capture interface {
	Begin()
	Sample(point message.GlobalCoordinates, pressure float32) []message.Message
	End() []message.Message
}

// NewCapture returns the capture strategy named by mode.
func NewCapture(mode string, width message.Width, color message.Color, ids IDSource) (Capture, error) {
	switch mode {
	case ModeBatch:
		return &BatchCapture{Width: width, Color: color}, nil
	case ModeStream:
		if ids == nil {
			ids = UUIDSource{}
		}
		return &StreamCapture{Color: color, IDs: ids}, nil
	}
	return nil, fmt.Errorf("unknown capture mode %q", mode)
}

// BatchCapture buffers a whole gesture and sends it as one Path when it ends.
// Pressure is ignored; every point uses Width.
type BatchCapture struct {
	Width  message.Width
	Color  message.Color
	points []message.GlobalCoordinates
}

func (c *BatchCapture) Begin() {
	c.points = c.points[:0]
}

func (c *BatchCapture) Sample(point message.GlobalCoordinates, _ float32) []message.Message {
	c.points = append(c.points, point)
	return nil
}

func (c *BatchCapture) End() []message.Message {
	if len(c.points) == 0 {
		return nil
	}
	points := make([]message.GlobalCoordinates, len(c.points))
	copy(points, c.points)
	c.points = c.points[:0]
	return []message.Message{message.NewDraw(message.Path{
		Points: points,
		Width:  c.Width,
		Color:  c.Color,
	})}
}

// StreamCapture sends every sample immediately as a step of one stroke.
// The raw pressure value becomes the step width unchanged.
type StreamCapture struct {
	Color  message.Color
	IDs    IDSource
	id     message.PathID
	active bool
}

func (c *StreamCapture) Begin() {
	c.id = c.IDs.NewPathID()
	c.active = true
}

func (c *StreamCapture) Sample(point message.GlobalCoordinates, pressure float32) []message.Message {
	if !c.active {
		c.Begin()
	}
	return []message.Message{message.NewDraw(message.PathStepDraw{
		ID:    c.id,
		Point: point,
		Width: message.Width(pressure),
		Color: c.Color,
	})}
}

func (c *StreamCapture) End() []message.Message {
	if !c.active {
		return nil
	}
	c.active = false
	return []message.Message{message.NewDraw(message.PathStepEnd{ID: c.id})}
}

// Current returns the id of the gesture in progress.
func (c *StreamCapture) Current() (message.PathID, bool) {
	return c.id, c.active
}
