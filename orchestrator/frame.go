// Package orchestrator runs the conversational loop that turns a shopper
// message into a guarded, tool-grounded reply. One Engine serves all sessions;
// messages within a session are processed strictly one at a time.
package orchestrator

import "github.com/hupe1980/shopmesh/catalog"

// FrameType discriminates streamed response frames.
type FrameType string

// Frame types emitted for every processed message. A response is always a
// sequence of zero or more text frames, at most one products frame, and a
// terminating done frame.
const (
	FrameText     FrameType = "text"
	FrameProducts FrameType = "products"
	FrameDone     FrameType = "done"
)

// Frame is one unit of the streamed response protocol.
type Frame struct {
	Type     FrameType         `json:"type"`
	Content  string            `json:"content,omitempty"`
	Products []catalog.Product `json:"products,omitempty"`
}

// TextFrame builds a text frame.
func TextFrame(content string) Frame { return Frame{Type: FrameText, Content: content} }

// ProductsFrame builds a products frame.
func ProductsFrame(products []catalog.Product) Frame {
	return Frame{Type: FrameProducts, Products: products}
}

// DoneFrame terminates a response.
func DoneFrame() Frame { return Frame{Type: FrameDone} }
