package analytics

type OverlayPoint struct {
	Label    string   `json:"label"`
	Current  float64  `json:"current"`
	Previous *float64 `json:"previous,omitempty"`
}

// Overlay pairs the current series with the previous one by position, not
// by date. Points past the end of previous get no Previous value.
func Overlay(current, previous []Point) []OverlayPoint {
	out := make([]OverlayPoint, 0, len(current))
	for i, p := range current {
		op := OverlayPoint{Label: p.DS, Current: p.Y}
		if i < len(previous) {
			y := previous[i].Y
			op.Previous = &y
		}
		out = append(out, op)
	}
	return out
}
