package dom

import (
	"context"
	"fmt"
	"strings"

	"golang.org/x/net/html"
)

// HTMLDoc is a read-only Document over parsed markup. It serves offline
// snapshots: the inputs carry whatever value attribute the markup had at
// capture time. Inline frames with a srcdoc attribute are reachable as
// nested HTMLDocs; frames pointing at an external src are not part of the
// snapshot and fail on access, the same way a cross-origin frame does live.
type HTMLDoc struct {
	inputs []Input
	frames []Frame
}

// ParseHTML builds an HTMLDoc from markup.
func ParseHTML(markup string) (*HTMLDoc, error) {
	root, err := html.Parse(strings.NewReader(markup))
	if err != nil {
		return nil, fmt.Errorf("dom: parse html: %w", err)
	}

	d := &HTMLDoc{}
	var n int
	d.walk(root, &n)
	return d, nil
}

func (d *HTMLDoc) walk(n *html.Node, seq *int) {
	if n.Type == html.ElementNode {
		switch n.Data {
		case "input":
			*seq++
			in := Input{Ref: fmt.Sprintf("html-%d", *seq)}
			for _, a := range n.Attr {
				switch a.Key {
				case "type":
					in.Type = a.Val
				case "class":
					in.Class = a.Val
				case "name":
					in.Name = a.Val
				case "id":
					in.ID = a.Val
				case "placeholder":
					in.Placeholder = a.Val
				case "data-type":
					in.DataType = a.Val
				case "value":
					in.Value = a.Val
				}
			}
			d.inputs = append(d.inputs, in)
		case "iframe":
			d.frames = append(d.frames, frameFromNode(n))
		}
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		d.walk(c, seq)
	}
}

func frameFromNode(n *html.Node) Frame {
	var srcdoc string
	var hasSrcdoc bool
	var src string
	for _, a := range n.Attr {
		switch a.Key {
		case "srcdoc":
			srcdoc, hasSrcdoc = a.Val, true
		case "src":
			src = a.Val
		}
	}

	if hasSrcdoc {
		return FrameFunc(func(context.Context) (Document, error) {
			return ParseHTML(srcdoc)
		})
	}
	return FrameFunc(func(context.Context) (Document, error) {
		return nil, fmt.Errorf("dom: frame %q not reachable in snapshot", src)
	})
}

// Inputs implements Document.
func (d *HTMLDoc) Inputs(context.Context) ([]Input, error) {
	return append([]Input(nil), d.inputs...), nil
}

// Frames implements Document.
func (d *HTMLDoc) Frames(context.Context) ([]Frame, error) {
	return append([]Frame(nil), d.frames...), nil
}
