// Package canvas holds the camera math that places comment pins over a
// pannable, zoomable drawing surface, and the engine contract the rest of
// the client talks to.
package canvas

import (
	"fmt"
	"math"
)

// Point is a position in either world (canvas) or screen (viewport) space.
// Which one is always clear from the function that returns it.
type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Camera is the viewport transform: screen = world*Zoom + (X, Y).
type Camera struct {
	X    float64 `json:"x"`
	Y    float64 `json:"y"`
	Zoom float64 `json:"z"`
}

// Identity is the camera at the origin with no zoom.
var Identity = Camera{Zoom: 1}

// Valid reports whether the camera can map points both ways.
func (c Camera) Valid() bool {
	return finite(c.X) && finite(c.Y) && finite(c.Zoom) && c.Zoom > 0
}

func (c Camera) String() string {
	return fmt.Sprintf("camera(x=%g y=%g zoom=%g)", c.X, c.Y, c.Zoom)
}

// ToScreen maps a world point into the viewport.
func (c Camera) ToScreen(world Point) Point {
	return Point{
		X: world.X*c.Zoom + c.X,
		Y: world.Y*c.Zoom + c.Y,
	}
}

// ToWorld is the inverse of ToScreen. The camera must be Valid.
func (c Camera) ToWorld(screen Point) Point {
	return Point{
		X: (screen.X - c.X) / c.Zoom,
		Y: (screen.Y - c.Y) / c.Zoom,
	}
}

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
