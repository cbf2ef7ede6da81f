package crawler

import "github.com/go-rod/rod"

// Observation is a snapshot of the page, its tabs and its interactive elements
// at one point in time. Element ids are only meaningful against the
// Observation they came from.
type Observation struct {
	Elements []ElementDescriptor `json:"dom_state"`
	URL      string              `json:"url"`
	Title    string              `json:"title"`
	Tabs     []TabInfo           `json:"tabs"`
	PageInfo PageInfo            `json:"page_info"`

	handles []*rod.Element
}

// ElementDescriptor describes one visible interactive element
type ElementDescriptor struct {
	ID          int          `json:"id"`
	Tag         string       `json:"tag"`
	Text        string       `json:"text"`
	BoundingBox *BoundingBox `json:"bounding_box"`
}

// BoundingBox is an element's rendered box in viewport CSS pixels
type BoundingBox struct {
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// TabInfo describes one open browsing context
type TabInfo struct {
	URL   string `json:"url"`
	Title string `json:"title"`
}

// PageInfo holds viewport, document and scroll geometry
type PageInfo struct {
	ViewportWidth  int `json:"viewport_width"`
	ViewportHeight int `json:"viewport_height"`
	PageWidth      int `json:"page_width"`
	PageHeight     int `json:"page_height"`
	ScrollX        int `json:"scroll_x"`
	ScrollY        int `json:"scroll_y"`
}

// Handle returns the live element captured for id, if any.
func (o *Observation) Handle(id int) (*rod.Element, bool) {
	if o == nil || id < 0 || id >= len(o.handles) {
		return nil, false
	}
	return o.handles[id], true
}
