// Package processing implements the per-image display transforms of the
// figure pipeline: min-max normalization, false-coloring onto a color axis,
// and two-channel merge compositing.
package processing

import (
	"fmt"
	"strings"

	"micropanel/internal/models"
)

// Axis is a display color axis expressed as the set of RGB channels it lights.
// Primary axes light one channel; secondary axes light two.
type Axis uint8

const (
	AxisRed Axis = 1 << iota
	AxisGreen
	AxisBlue

	AxisCyan    = AxisGreen | AxisBlue
	AxisMagenta = AxisRed | AxisBlue
	AxisYellow  = AxisRed | AxisGreen
)

var axisNames = map[Axis]string{
	AxisRed:     "red",
	AxisGreen:   "green",
	AxisBlue:    "blue",
	AxisCyan:    "cyan",
	AxisMagenta: "magenta",
	AxisYellow:  "yellow",
}

func (a Axis) String() string {
	if name, ok := axisNames[a]; ok {
		return name
	}
	return fmt.Sprintf("Axis(%d)", uint8(a))
}

// Channels lists the RGB planes lit by the axis, in R, G, B order.
func (a Axis) Channels() []models.Channel {
	var out []models.Channel
	if a&AxisRed != 0 {
		out = append(out, models.Red)
	}
	if a&AxisGreen != 0 {
		out = append(out, models.Green)
	}
	if a&AxisBlue != 0 {
		out = append(out, models.Blue)
	}
	return out
}

// ParseAxis maps a case-insensitive color name to its Axis.
func ParseAxis(name string) (Axis, error) {
	n := strings.ToLower(strings.TrimSpace(name))
	for a, s := range axisNames {
		if s == n {
			return a, nil
		}
	}
	return 0, fmt.Errorf("unknown color axis %q", name)
}
