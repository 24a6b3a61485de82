// File: api/schemas/elements.go
package schemas

import (
	"fmt"
	"strings"
	"time"
)

// ElementTag identifies the broad kind of interactive element a descriptor
// refers to. Values mirror the lower-cased tag names reported by the in-page
// extractor; ARIA-role-derived widgets keep their host tag.
type ElementTag string

const (
	TagInput           ElementTag = "input"
	TagTextarea        ElementTag = "textarea"
	TagSelect          ElementTag = "select"
	TagButton          ElementTag = "button"
	TagLink            ElementTag = "a"
	TagContentEditable ElementTag = "contenteditable"
)

// ElementDescriptor is one interactive element found during a page scan.
// Descriptors are transient: only their fingerprint and the test cases
// synthesized for them outlive the scan that produced them.
type ElementDescriptor struct {
	Tag         string `json:"tag"`
	Type        string `json:"type,omitempty"`
	Name        string `json:"name,omitempty"`
	ID          string `json:"id,omitempty"`
	Role        string `json:"role,omitempty"`
	Placeholder string `json:"placeholder,omitempty"`
	Text        string `json:"text,omitempty"`
	Selector    string `json:"selector"`
	Visible     bool   `json:"visible"`
	// FrameURL is the owning sub-frame's URL, empty for the top frame.
	FrameURL string `json:"frame_url,omitempty"`
}

// FieldFingerprint is the normalized key that correlates the same logical
// field across pages, runs and crawls, even when its DOM position differs.
type FieldFingerprint string

// FingerprintOf derives the fingerprint from the identity-bearing attributes
// of a descriptor. Same fingerprint implies same logical intent; it never
// guarantees structural identity.
func FingerprintOf(d ElementDescriptor) FieldFingerprint {
	norm := func(s string) string { return strings.ToLower(strings.TrimSpace(s)) }
	return FieldFingerprint(fmt.Sprintf("%s|%s|%s|%s",
		norm(d.Tag), norm(d.Name), norm(d.Role), norm(d.Placeholder)))
}

// CanvasText is a synthetic record of text painted onto a canvas surface,
// captured by the instrumentation hook rather than DOM inspection.
type CanvasText struct {
	Kind string  `json:"kind"`
	Text string  `json:"text,omitempty"`
	X    float64 `json:"x,omitempty"`
	Y    float64 `json:"y,omitempty"`
	// ImagePath is set for rasterized canvases instead of Text.
	ImagePath string `json:"image_path,omitempty"`
}

// PageScan is the DOM Scanner's output for a single visited page.
type PageScan struct {
	URL         string              `json:"url"`
	Fields      []ElementDescriptor `json:"fields"`
	CanvasTexts []CanvasText        `json:"canvas_texts,omitempty"`
	Timestamp   time.Time           `json:"timestamp"`
}
