package progress

import "fmt"

// barWidth/barWidthSmall are the two renderer sizes the CLI's `progress`
// command offers (its --small flag selects the narrower one).
const (
	barWidth      = 50
	barWidthSmall = 25
)

const (
	fullBlock         = '█' // full block: one whole cell's worth of progress
	oneQuarterBlock   = '▎' // left one quarter block
	threeEighthsBlock = '▍' // left three eighths block
	fiveEighthsBlock  = '▋' // left five eighths block
	oneEighthBlock    = '▏' // left one eighth block: marks the end of the track while incomplete
)

// RenderBar renders fraction (expected in [0,1], clamped otherwise) as a
// unicode block-character bar plus a trailing percentage. Whole cells are
// rendered as full blocks; the cell the bar is currently crossing gets a
// partial block for sub-cell resolution, and while incomplete the end of
// the track (after the padding) is marked with a one-eighth block. small
// selects the narrower 25-cell width over the default 50.
func RenderBar(fraction float64, small bool) string {
	if fraction < 0 {
		fraction = 0
	}
	if fraction > 1 {
		fraction = 1
	}
	percent := fraction * 100
	p := int(percent)

	width := barWidth
	if small {
		width = barWidthSmall
	}

	var steps, fracIndex int
	if small {
		steps = p / 4
		fracIndex = p % 4
	} else {
		steps = p / 2
		fracIndex = (p % 2) * 2
	}
	qSteps := []rune{' ', oneQuarterBlock, threeEighthsBlock, fiveEighthsBlock}

	var bar []rune
	if p == 0 {
		bar = append(bar, oneQuarterBlock)
	}
	for i := 0; i < steps; i++ {
		bar = append(bar, fullBlock)
	}
	bar = append(bar, qSteps[fracIndex])

	start := 2
	switch {
	case p == 0:
		start = 2
	case small:
		start = p/4 + 1
	default:
		start = p/2 + 1
	}
	for i := start; i < width; i++ {
		bar = append(bar, ' ')
	}
	if p < 100 {
		bar = append(bar, oneEighthBlock)
	}

	return fmt.Sprintf("%s %6.2f%%", string(bar), percent)
}
