// Package visualization provides plotting utilities for fitted curves.
//
// It renders a scatter of bond observations over the fitted curve line, with
// cheap/rich names highlighted, and saves to PNG, SVG, or PDF.
package visualization

import (
	"image/color"
)

// Colors defines the chart color scheme.
var Colors = map[string]color.RGBA{
	"observation": {R: 77, G: 121, B: 167, A: 255},  // #4D79A7 blue
	"curve":       {R: 60, G: 60, B: 60, A: 255},    // dark gray line
	"cheap":       {R: 225, G: 87, B: 89, A: 255},   // #E15759 red
	"rich":        {R: 89, G: 161, B: 79, A: 255},   // #59A14F green
	"border":      {R: 0, G: 0, B: 0, A: 255},       // black
	"anchor":      {R: 150, G: 150, B: 150, A: 255}, // gray
}

// GetColor returns the color for a chart element.
// Returns gray if the element is unknown.
func GetColor(element string) color.RGBA {
	if c, ok := Colors[element]; ok {
		return c
	}
	return color.RGBA{R: 128, G: 128, B: 128, A: 255}
}
