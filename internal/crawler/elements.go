package crawler

import (
	"context"
	"fmt"
	"strings"

	"github.com/go-rod/rod"
)

// InteractiveSelector matches the elements the agent may act on.
const InteractiveSelector = "a, button, input, textarea, [role]"

// MaxTextLength caps the visible text carried per element, in runes.
const MaxTextLength = 100

type candidate struct {
	tag     string
	text    string
	box     *BoundingBox
	visible bool
	handle  *rod.Element
}

// Enumerate lists the currently visible interactive elements in document
// order. Ids are assigned 0..n-1 over the visible set only, so the same DOM
// node may get a different id on the next call.
func Enumerate(ctx context.Context, page *rod.Page) ([]ElementDescriptor, []*rod.Element, error) {
	els, err := page.Context(ctx).Elements(InteractiveSelector)
	if err != nil {
		return nil, nil, fmt.Errorf("query interactive elements: %w", err)
	}

	cands := make([]candidate, 0, len(els))
	for _, el := range els {
		cands = append(cands, inspect(el))
	}

	elements, handles := index(cands)
	return elements, handles, nil
}

// inspect reads one element. Any failure (typically a detached node) marks it
// invisible rather than failing the whole enumeration.
func inspect(el *rod.Element) candidate {
	visible, err := el.Visible()
	if err != nil || !visible {
		return candidate{}
	}

	c := candidate{visible: true, handle: el}

	if res, err := el.Eval(`() => this.tagName.toLowerCase()`); err == nil {
		c.tag = res.Value.Str()
	}
	if text, err := el.Text(); err == nil {
		c.text = text
	}
	if shape, err := el.Shape(); err == nil {
		if r := shape.Box(); r != nil {
			c.box = &BoundingBox{X: r.X, Y: r.Y, Width: r.Width, Height: r.Height}
		}
	}
	return c
}

func index(cands []candidate) ([]ElementDescriptor, []*rod.Element) {
	elements := make([]ElementDescriptor, 0, len(cands))
	handles := make([]*rod.Element, 0, len(cands))

	for _, c := range cands {
		if !c.visible || c.box == nil || c.box.Width <= 0 || c.box.Height <= 0 {
			continue
		}
		elements = append(elements, ElementDescriptor{
			ID:          len(elements),
			Tag:         c.tag,
			Text:        truncate(strings.TrimSpace(c.text), MaxTextLength),
			BoundingBox: c.box,
		})
		handles = append(handles, c.handle)
	}
	return elements, handles
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}
