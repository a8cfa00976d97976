package collab

import (
	"fmt"
	"hash/fnv"
	"math"
)

// Color is an RGB color used to tell participants' cursors apart
type Color struct {
	R, G, B uint8
}

// Hex renders the color as #rrggbb
func (c Color) Hex() string {
	return fmt.Sprintf("#%02x%02x%02x", c.R, c.G, c.B)
}

// ColorFor derives a stable color from a nickname: same name, same color on
// every client. Saturation and brightness are fixed so all hues stay readable.
func ColorFor(nickname string) Color {
	h := fnv.New32a()
	_, _ = h.Write([]byte(nickname))
	hue := float64(h.Sum32()%360) / 360
	return hsv(hue, 0.6, 0.9)
}

func hsv(h, s, v float64) Color {
	i := math.Floor(h * 6)
	f := h*6 - i
	p := v * (1 - s)
	q := v * (1 - f*s)
	t := v * (1 - (1-f)*s)

	var r, g, b float64
	switch int(i) % 6 {
	case 0:
		r, g, b = v, t, p
	case 1:
		r, g, b = q, v, p
	case 2:
		r, g, b = p, v, t
	case 3:
		r, g, b = p, q, v
	case 4:
		r, g, b = t, p, v
	default:
		r, g, b = v, p, q
	}
	return Color{R: uint8(math.Round(r * 255)), G: uint8(math.Round(g * 255)), B: uint8(math.Round(b * 255))}
}
