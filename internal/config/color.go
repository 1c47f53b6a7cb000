package config

import (
	"fmt"
	"strconv"
)

// Color is an RGBA quadruple in [0,1], ready for glClearColor.
type Color [4]float32

// ParseColor parses "#rgb", "#rgba", "#rrggbb" or "#rrggbbaa" (leading '#'
// optional) into a normalized color.
func ParseColor(s string) (Color, error) {
	if len(s) == 0 {
		return Color{}, fmt.Errorf("empty color")
	}
	if s[0] == '#' {
		s = s[1:]
	}
	switch len(s) {
	case 3:
		s = string([]byte{
			s[0], s[0],
			s[1], s[1],
			s[2], s[2],
			'f', 'f',
		})
	case 4:
		s = string([]byte{
			s[0], s[0],
			s[1], s[1],
			s[2], s[2],
			s[3], s[3],
		})
	case 6:
		s += "ff"
	case 8:
		/* do nothing */
	default:
		return Color{}, fmt.Errorf("invalid color: %s", s)
	}
	var c Color
	for i := 0; i < 4; i++ {
		v, err := strconv.ParseUint(s[i*2:i*2+2], 16, 8)
		if err != nil {
			return Color{}, fmt.Errorf("invalid color: %s", s)
		}
		c[i] = float32(v) / 255
	}
	return c, nil
}
