package message

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math"
)

// Discriminants. Changing any of these is a breaking protocol change.
const (
	tagDraw      = 0
	tagSubscribe = 1

	tagComposite      = 0
	tagPath           = 1
	tagPathStepAction = 2
	tagLine           = 3
	tagDot            = 4

	tagStepDraw = 0
	tagStepEnd  = 1

	tagRGB = 0
)

// MaxCompositeDepth bounds how deeply Composite messages may nest.
const MaxCompositeDepth = 32

const (
	pointWireSize = 8
	chunkWireSize = 8
)

var (
	ErrUnknownTag    = errors.New("unknown tag")
	ErrTruncated     = errors.New("truncated frame")
	ErrTrailingBytes = errors.New("trailing bytes after message")
	ErrTooLarge      = errors.New("length exceeds frame")
	ErrUnencodable   = errors.New("value cannot be encoded")
)

// DecodeError reports a malformed frame. It only concerns that frame; the
// connection it arrived on is still usable.
type DecodeError struct {
	Offset int
	What   string
	Err    error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("decode %s at byte %d: %v", e.What, e.Offset, e.Err)
}

func (e *DecodeError) Unwrap() error {
	return e.Err
}

// Marshal encodes m as one frame.
func Marshal(m Message) ([]byte, error) {
	e := &encoder{buf: make([]byte, 0, 64)}
	if err := e.message(m); err != nil {
		return nil, err
	}
	return e.buf, nil
}

// Unmarshal decodes exactly one Message from data. Errors are *DecodeError.
func Unmarshal(data []byte) (Message, error) {
	d := &decoder{data: data}
	m, err := d.message()
	if err != nil {
		return nil, err
	}
	if d.off != len(d.data) {
		return nil, d.fail("message", ErrTrailingBytes)
	}
	return m, nil
}

type encoder struct {
	buf []byte
}

func (e *encoder) uvarint(v uint64) {
	e.buf = binary.AppendUvarint(e.buf, v)
}

func (e *encoder) f32(v float32) {
	e.buf = binary.LittleEndian.AppendUint32(e.buf, math.Float32bits(v))
}

func (e *encoder) i32(v int32) {
	e.buf = binary.LittleEndian.AppendUint32(e.buf, uint32(v))
}

func (e *encoder) point(p GlobalCoordinates) {
	e.f32(p.X)
	e.f32(p.Y)
}

func (e *encoder) message(m Message) error {
	switch m := m.(type) {
	case Draw:
		e.uvarint(tagDraw)
		return e.draw(m.Msg, 0)
	case Subscribe:
		e.uvarint(tagSubscribe)
		chunks := m.Subscription.Chunks()
		e.uvarint(uint64(len(chunks)))
		for _, c := range chunks {
			e.i32(c.X)
			e.i32(c.Y)
		}
		return nil
	}
	return fmt.Errorf("%w: message %T", ErrUnencodable, m)
}

func (e *encoder) color(c Color) error {
	switch c := c.(type) {
	case RGB:
		e.uvarint(tagRGB)
		e.buf = append(e.buf, c.R, c.G, c.B)
		return nil
	}
	return fmt.Errorf("%w: color %T", ErrUnencodable, c)
}

func (e *encoder) draw(m DrawMessage, depth int) error {
	switch m := m.(type) {
	case Composite:
		if depth >= MaxCompositeDepth {
			return fmt.Errorf("%w: composite nested deeper than %d", ErrUnencodable, MaxCompositeDepth)
		}
		e.uvarint(tagComposite)
		e.uvarint(uint64(len(m.Messages)))
		for _, sub := range m.Messages {
			if err := e.draw(sub, depth+1); err != nil {
				return err
			}
		}
		return nil
	case Path:
		e.uvarint(tagPath)
		e.uvarint(uint64(len(m.Points)))
		for _, p := range m.Points {
			e.point(p)
		}
		e.f32(float32(m.Width))
		return e.color(m.Color)
	case PathStepDraw:
		e.uvarint(tagPathStepAction)
		e.uvarint(tagStepDraw)
		e.buf = append(e.buf, m.ID[:]...)
		e.point(m.Point)
		e.f32(float32(m.Width))
		return e.color(m.Color)
	case PathStepEnd:
		e.uvarint(tagPathStepAction)
		e.uvarint(tagStepEnd)
		e.buf = append(e.buf, m.ID[:]...)
		return nil
	case Line:
		e.uvarint(tagLine)
		e.point(m.From)
		e.point(m.To)
		e.f32(float32(m.Width))
		return e.color(m.Color)
	case Dot:
		e.uvarint(tagDot)
		e.point(m.Center)
		e.f32(float32(m.Diameter))
		return e.color(m.Color)
	}
	return fmt.Errorf("%w: draw message %T", ErrUnencodable, m)
}

type decoder struct {
	data []byte
	off  int
}

func (d *decoder) fail(what string, err error) error {
	return &DecodeError{Offset: d.off, What: what, Err: err}
}

func (d *decoder) uvarint(what string) (uint64, error) {
	v, n := binary.Uvarint(d.data[d.off:])
	if n == 0 {
		return 0, d.fail(what, ErrTruncated)
	}
	if n < 0 {
		return 0, d.fail(what, ErrTooLarge)
	}
	d.off += n
	return v, nil
}

func (d *decoder) take(what string, n int) ([]byte, error) {
	if len(d.data)-d.off < n {
		return nil, d.fail(what, ErrTruncated)
	}
	b := d.data[d.off : d.off+n]
	d.off += n
	return b, nil
}

// length reads a sequence length and checks that elemSize bytes per element
// could still be present.
func (d *decoder) length(what string, elemSize int) (int, error) {
	n, err := d.uvarint(what)
	if err != nil {
		return 0, err
	}
	if n > uint64(len(d.data)-d.off)/uint64(elemSize) {
		return 0, d.fail(what, ErrTooLarge)
	}
	return int(n), nil
}

func (d *decoder) f32(what string) (float32, error) {
	b, err := d.take(what, 4)
	if err != nil {
		return 0, err
	}
	return math.Float32frombits(binary.LittleEndian.Uint32(b)), nil
}

func (d *decoder) i32(what string) (int32, error) {
	b, err := d.take(what, 4)
	if err != nil {
		return 0, err
	}
	return int32(binary.LittleEndian.Uint32(b)), nil
}

func (d *decoder) point(what string) (GlobalCoordinates, error) {
	x, err := d.f32(what)
	if err != nil {
		return GlobalCoordinates{}, err
	}
	y, err := d.f32(what)
	if err != nil {
		return GlobalCoordinates{}, err
	}
	return GlobalCoordinates{X: x, Y: y}, nil
}

func (d *decoder) width(what string) (Width, error) {
	w, err := d.f32(what)
	return Width(w), err
}

func (d *decoder) pathID() (PathID, error) {
	var id PathID
	b, err := d.take("path id", len(id))
	if err != nil {
		return id, err
	}
	copy(id[:], b)
	return id, nil
}

func (d *decoder) message() (Message, error) {
	start := d.off
	tag, err := d.uvarint("message tag")
	if err != nil {
		return nil, err
	}
	switch tag {
	case tagDraw:
		m, err := d.draw(0)
		if err != nil {
			return nil, err
		}
		return Draw{Msg: m}, nil
	case tagSubscribe:
		n, err := d.length("subscription", chunkWireSize)
		if err != nil {
			return nil, err
		}
		s := Subscription{chunks: make(map[ChunkCoordinates]struct{}, n)}
		for i := 0; i < n; i++ {
			x, err := d.i32("chunk")
			if err != nil {
				return nil, err
			}
			y, err := d.i32("chunk")
			if err != nil {
				return nil, err
			}
			s.chunks[ChunkCoordinates{X: x, Y: y}] = struct{}{}
		}
		return Subscribe{Subscription: s}, nil
	}
	d.off = start
	return nil, d.fail(fmt.Sprintf("message tag %d", tag), ErrUnknownTag)
}

func (d *decoder) color() (Color, error) {
	start := d.off
	tag, err := d.uvarint("color tag")
	if err != nil {
		return nil, err
	}
	switch tag {
	case tagRGB:
		b, err := d.take("rgb", 3)
		if err != nil {
			return nil, err
		}
		return RGB{R: b[0], G: b[1], B: b[2]}, nil
	}
	d.off = start
	return nil, d.fail(fmt.Sprintf("color tag %d", tag), ErrUnknownTag)
}

func (d *decoder) draw(depth int) (DrawMessage, error) {
	start := d.off
	tag, err := d.uvarint("draw tag")
	if err != nil {
		return nil, err
	}
	switch tag {
	case tagComposite:
		if depth >= MaxCompositeDepth {
			return nil, d.fail("composite", ErrTooLarge)
		}
		n, err := d.length("composite", 1)
		if err != nil {
			return nil, err
		}
		var c Composite
		if n > 0 {
			c.Messages = make([]DrawMessage, 0, n)
		}
		for i := 0; i < n; i++ {
			sub, err := d.draw(depth + 1)
			if err != nil {
				return nil, err
			}
			c.Messages = append(c.Messages, sub)
		}
		return c, nil
	case tagPath:
		n, err := d.length("path", pointWireSize)
		if err != nil {
			return nil, err
		}
		var p Path
		if n > 0 {
			p.Points = make([]GlobalCoordinates, 0, n)
		}
		for i := 0; i < n; i++ {
			pt, err := d.point("path point")
			if err != nil {
				return nil, err
			}
			p.Points = append(p.Points, pt)
		}
		if p.Width, err = d.width("path width"); err != nil {
			return nil, err
		}
		if p.Color, err = d.color(); err != nil {
			return nil, err
		}
		return p, nil
	case tagPathStepAction:
		return d.step()
	case tagLine:
		var l Line
		if l.From, err = d.point("line"); err != nil {
			return nil, err
		}
		if l.To, err = d.point("line"); err != nil {
			return nil, err
		}
		if l.Width, err = d.width("line width"); err != nil {
			return nil, err
		}
		if l.Color, err = d.color(); err != nil {
			return nil, err
		}
		return l, nil
	case tagDot:
		var dot Dot
		if dot.Center, err = d.point("dot"); err != nil {
			return nil, err
		}
		if dot.Diameter, err = d.width("dot diameter"); err != nil {
			return nil, err
		}
		if dot.Color, err = d.color(); err != nil {
			return nil, err
		}
		return dot, nil
	}
	d.off = start
	return nil, d.fail(fmt.Sprintf("draw tag %d", tag), ErrUnknownTag)
}

func (d *decoder) step() (DrawMessage, error) {
	start := d.off
	tag, err := d.uvarint("step tag")
	if err != nil {
		return nil, err
	}
	switch tag {
	case tagStepDraw:
		var s PathStepDraw
		if s.ID, err = d.pathID(); err != nil {
			return nil, err
		}
		if s.Point, err = d.point("step point"); err != nil {
			return nil, err
		}
		if s.Width, err = d.width("step width"); err != nil {
			return nil, err
		}
		if s.Color, err = d.color(); err != nil {
			return nil, err
		}
		return s, nil
	case tagStepEnd:
		var s PathStepEnd
		if s.ID, err = d.pathID(); err != nil {
			return nil, err
		}
		return s, nil
	}
	d.off = start
	return nil, d.fail(fmt.Sprintf("step tag %d", tag), ErrUnknownTag)
}
