package compositor

import "strings"

// Wrap packs words left to right, moving to a new line as soon as the
// candidate line would reach maxWidth. It always returns at least one line.
func Wrap(text string, maxWidth float64, measure func(string) float64) []string {
	words := strings.Fields(text)
	if len(words) == 0 {
		return []string{""}
	}

	var lines []string
	cur := words[0]
	for _, w := range words[1:] {
		candidate := cur + " " + w
		if measure(candidate) < maxWidth {
			cur = candidate
			continue
		}
		lines = append(lines, cur)
		cur = w
	}
	return append(lines, cur)
}

// Baselines returns the vertical centre of each line for a block of n lines
// centred in a canvas of the given height.
func Baselines(n, fontSizePx, canvasHeight int) []float64 {
	if n <= 0 {
		n = 1
	}
	lineHeight := float64(fontSizePx) * LineHeightRatio
	total := float64(n) * lineHeight
	y := (float64(canvasHeight)-total)/2 + lineHeight/2

	out := make([]float64, n)
	for i := range out {
		out[i] = y + float64(i)*lineHeight
	}
	return out
}
