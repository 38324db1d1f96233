package decimate

import "fmt"

// Labeled is a point paired with its assigned zoom.
type Labeled struct {
	Index int   `json:"index"`
	Point Point `json:"point"`
	Zoom  int   `json:"zoom"`
}

// Emit pairs every point of s with its label, in input order.
func Emit(s *Store, labels []int) ([]Labeled, error) {
	if len(labels) != s.Len() {
		return nil, fmt.Errorf("decimate: %d labels for %d points", len(labels), s.Len())
	}
	out := make([]Labeled, s.Len())
	for i := range out {
		out[i] = Labeled{Index: i, Point: s.Get(i), Zoom: labels[i]}
	}
	return out, nil
}

// Visible reports whether a point with the given label is drawn at zoom.
// Unlabeled points appear only past the finest tier.
func Visible(label, zoom, maxZoom int) bool {
	if label == 0 {
		return zoom > maxZoom
	}
	return label <= zoom
}
