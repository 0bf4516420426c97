package galaxy

import (
	"fmt"
	"strings"
)

// Color is a 0xRRGGBB value.
type Color uint32

const (
	DefaultColor Color = 0xffffff
	EdgeColor    Color = 0x63d4f1
	NebulaColor  Color = 0x8b5cf6
	Background   Color = 0x0f0b1c
)

// RGB splits c into its 8-bit channels.
func (c Color) RGB() (r, g, b uint8) {
	return uint8(c >> 16), uint8(c >> 8), uint8(c)
}

// Hex formats c as "#rrggbb".
func (c Color) Hex() string {
	return fmt.Sprintf("#%06x", uint32(c)&0xffffff)
}

// GenreColor pairs a genre keyword with its color.
type GenreColor struct {
	Genre string
	Color Color
}

// GenreColors is the keyword table used for node colors. Order matters: the first keyword contained
// in a tag wins, so "dream pop" resolves to Pop.
var GenreColors = []GenreColor{
	{"Pop", 0xff69b4},
	{"Electro", 0x00ffff},
	{"Rock", 0xff4500},
	{"Metal", 0x808080},
	{"R&B", 0x9370db},
	{"Jazz", 0x8a2be2},
	{"Breakcore", 0x4682b4},
	{"Shoegaze", 0x6a5acd},
	{"Trance", 0xadd8e6},
	{"Soul", 0x90ee90},
	{"House", 0xffff00},
	{"Folk", 0xffefd5},
	{"Thrash", 0xdaa520},
	{"jazz rap", 0x98ff98},
	{"jazz fusion", 0x3cb371},
	{"japanese classical", 0xda70d6},
	{"anime", 0xffb6c1},
	{"Chillhop", 0x5f9ea0},
	{"Hardcore", 0xff0000},
	{"Electronic", 0x00ff7f},
	{"Dream Pop", 0x4169e1},
	{"Hip Hop", 0xff8c00},
	{"Rap", 0x008000},
}

// ColorForGenres walks the tags in order and returns the color of the first table keyword contained
// (case-insensitively) in a tag. Artists without a match get [DefaultColor].
func ColorForGenres(genres []string) Color {
	for _, tag := range genres {
		tag = strings.ToLower(tag)
		for _, gc := range GenreColors {
			if strings.Contains(tag, strings.ToLower(gc.Genre)) {
				return gc.Color
			}
		}
	}
	return DefaultColor
}
