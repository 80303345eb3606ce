// Package message defines the values exchanged between InkBoard peers and
// their binary wire encoding.
package message

import (
	"encoding/hex"
	"fmt"
	"image/color"
	"math"
)

// Color is a closed set of colour representations. RGB is the only variant.
// Every Color is also an opaque image/color.Color for renderers.
type Color interface {
	color.Color
	fmt.Stringer
	isColor()
}

type RGB struct {
	R, G, B uint8
}

func (RGB) isColor() {}

func (c RGB) RGBA() (r, g, b, a uint32) {
	return color.NRGBA{R: c.R, G: c.G, B: c.B, A: 0xff}.RGBA()
}

func (c RGB) String() string {
	return fmt.Sprintf("rgb(%d,%d,%d)", c.R, c.G, c.B)
}

func NewRGB(r, g, b uint8) Color {
	return RGB{R: r, G: g, B: b}
}

var Black Color = RGB{}

// Width is a stroke thickness or dot diameter in canvas units.
type Width float32

// Valid reports whether a renderer can use w. The wire format accepts any value.
func (w Width) Valid() bool {
	return w >= 0 && !math.IsNaN(float64(w))
}

// PathID correlates the incremental steps of one stroke.
type PathID [16]byte

func (id PathID) String() string {
	return hex.EncodeToString(id[:])
}

// Path is a complete stroke sent at once.
type Path struct {
	Points []GlobalCoordinates
	Width  Width
	Color  Color
}

type Line struct {
	From  GlobalCoordinates
	To    GlobalCoordinates
	Width Width
	Color Color
}

type Dot struct {
	Center   GlobalCoordinates
	Diameter Width
	Color    Color
}

// Primitive is a renderable shape: Line or Dot.
type Primitive interface {
	DrawMessage
	isPrimitive()
}

func (Line) isPrimitive() {}
func (Dot) isPrimitive()  {}

// PathStepAction is one incremental step of a stroke: PathStepDraw or PathStepEnd.
type PathStepAction interface {
	DrawMessage
	StepID() PathID
	isPathStepAction()
}

// PathStepDraw appends Point to the stroke identified by ID.
type PathStepDraw struct {
	ID    PathID
	Point GlobalCoordinates
	Width Width
	Color Color
}

// PathStepEnd completes the stroke identified by ID.
type PathStepEnd struct {
	ID PathID
}

func (s PathStepDraw) StepID() PathID { return s.ID }
func (s PathStepEnd) StepID() PathID  { return s.ID }

func (PathStepDraw) isPathStepAction() {}
func (PathStepEnd) isPathStepAction()  {}

// Composite is a batch of draw messages applied together with one refresh.
type Composite struct {
	Messages []DrawMessage
}

// DrawMessage is one of Composite, Path, PathStepDraw, PathStepEnd, Line or Dot.
type DrawMessage interface {
	isDrawMessage()
}

func (Composite) isDrawMessage()    {}
func (Path) isDrawMessage()         {}
func (PathStepDraw) isDrawMessage() {}
func (PathStepEnd) isDrawMessage()  {}
func (Line) isDrawMessage()         {}
func (Dot) isDrawMessage()          {}

// Message is the only type placed on the wire: Draw or Subscribe.
type Message interface {
	isMessage()
}

type Draw struct {
	Msg DrawMessage
}

type Subscribe struct {
	Subscription Subscription
}

func (Draw) isMessage()      {}
func (Subscribe) isMessage() {}

// NewDraw wraps a draw message for sending.
func NewDraw(m DrawMessage) Message {
	return Draw{Msg: m}
}

func NewSubscribe(s Subscription) Message {
	return Subscribe{Subscription: s}
}
