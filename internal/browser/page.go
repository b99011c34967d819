package browser

import (
	"context"
	_ "embed"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/proto"

	"github.com/anowarzz/pricewatch/dom"
	"github.com/anowarzz/pricewatch/overlay"
)

//go:embed agent.js
var agentJS []byte

const bindingName = "__pricewatch_emit"

// Page adapts a live Rod page to dom.Page. The overlay surface for the
// same page is obtained from Surface(); they share the agent and the
// binding listener.
type Page struct {
	page   *rod.Page
	url    string
	logger *slog.Logger
	ctx    context.Context
	cancel context.CancelFunc

	records chan dom.Record
	widget  chan overlay.Event

	closeOnce sync.Once
}

func attach(ctx context.Context, page *rod.Page, pageURL string, logger *slog.Logger) (*Page, error) {
	pctx, cancel := context.WithCancel(ctx)
	p := &Page{
		page:    page,
		url:     pageURL,
		logger:  logger,
		ctx:     pctx,
		cancel:  cancel,
		records: make(chan dom.Record, 256),
		widget:  make(chan overlay.Event, 64),
	}

	if err := (proto.RuntimeAddBinding{Name: bindingName}).Call(page); err != nil {
		cancel()
		return nil, fmt.Errorf("browser: add binding: %w", err)
	}
	go p.listenBinding()

	if _, err := page.Eval(string(agentJS)); err != nil {
		cancel()
		return nil, fmt.Errorf("browser: inject agent: %w", err)
	}
	logger.Debug("browser: agent attached", "url", pageURL)
	return p, nil
}

// URL returns the page address the agent was attached on.
func (p *Page) URL() string { return p.url }

// Close detaches the binding listener and closes the event channels.
// The watcher sees the closed records channel as a revoked page.
func (p *Page) Close() {
	p.closeOnce.Do(func() {
		p.cancel()
		close(p.records)
		close(p.widget)
	})
}

// listenBinding receives agent messages via Runtime.bindingCalled and
// demuxes them into the record and widget channels. Returns when the
// page context ends, which also means the page channel is gone.
func (p *Page) listenBinding() {
	p.page.Context(p.ctx).EachEvent(func(e *proto.RuntimeBindingCalled) {
		if e.Name != bindingName {
			return
		}

		var msg struct {
			Kind   string          `json:"kind"`
			Record json.RawMessage `json:"record"`
			Event  json.RawMessage `json:"event"`
		}
		if err := json.Unmarshal([]byte(e.Payload), &msg); err != nil {
			p.logger.Warn("browser: parse binding payload", "error", err)
			return
		}

		switch msg.Kind {
		case "record":
			var rec dom.Record
			if err := json.Unmarshal(msg.Record, &rec); err != nil {
				p.logger.Warn("browser: parse record", "error", err)
				return
			}
			select {
			case p.records <- rec:
			default:
				p.logger.Warn("browser: record channel full, dropping", "op", rec.Op)
			}

		case "widget":
			ev, err := parseWidgetEvent(msg.Event)
			if err != nil {
				p.logger.Warn("browser: parse widget event", "error", err)
				return
			}
			select {
			case p.widget <- ev:
			default:
			}
		}
	})()
	p.Close()
}

func parseWidgetEvent(raw json.RawMessage) (overlay.Event, error) {
	var w struct {
		Kind   string `json:"kind"`
		X      int    `json:"x"`
		Y      int    `json:"y"`
		Widget struct {
			X, Y, W, H int
		} `json:"widget"`
		Viewport struct {
			W, H int
		} `json:"viewport"`
	}
	if err := json.Unmarshal(raw, &w); err != nil {
		return overlay.Event{}, err
	}
	return overlay.Event{
		Kind:     overlay.EventKind(w.Kind),
		X:        w.X,
		Y:        w.Y,
		Widget:   overlay.Rect{X: w.Widget.X, Y: w.Widget.Y, W: w.Widget.W, H: w.Widget.H},
		Viewport: overlay.Size{W: w.Viewport.W, H: w.Viewport.H},
	}, nil
}

// Inputs enumerates the top document's input elements.
func (p *Page) Inputs(ctx context.Context) ([]dom.Input, error) {
	return p.collect(ctx, nil)
}

// Frames enumerates the top document's child frames.
func (p *Page) Frames(ctx context.Context) ([]dom.Frame, error) {
	return p.frames(ctx, nil)
}

func (p *Page) collect(ctx context.Context, path []int) ([]dom.Input, error) {
	if path == nil {
		path = []int{}
	}
	res, err := p.page.Context(ctx).Eval(`(path) => window.__pricewatch.collect(path)`, path)
	if err != nil {
		return nil, fmt.Errorf("browser: collect inputs: %w", err)
	}
	var inputs []dom.Input
	if err := json.Unmarshal([]byte(res.Value.Str()), &inputs); err != nil {
		return nil, fmt.Errorf("browser: decode inputs: %w", err)
	}
	return inputs, nil
}

func (p *Page) frames(ctx context.Context, path []int) ([]dom.Frame, error) {
	if path == nil {
		path = []int{}
	}
	res, err := p.page.Context(ctx).Eval(`(path) => window.__pricewatch.frameCount(path)`, path)
	if err != nil {
		return nil, fmt.Errorf("browser: count frames: %w", err)
	}
	n := res.Value.Int()
	frames := make([]dom.Frame, 0, n)
	for i := 0; i < n; i++ {
		fp := append(append([]int{}, path...), i)
		frames = append(frames, &frameDoc{p: p, path: fp})
	}
	return frames, nil
}

// frameDoc addresses a nested document by its iframe index path from the
// top document. Cross-origin frames fail on first access and are skipped
// by the scanner.
type frameDoc struct {
	p    *Page
	path []int
}

func (f *frameDoc) Contents(ctx context.Context) (dom.Document, error) {
	// Probe accessibility up front so the scanner can skip the frame.
	if _, err := f.p.collect(ctx, f.path); err != nil {
		return nil, err
	}
	return f, nil
}

func (f *frameDoc) Inputs(ctx context.Context) ([]dom.Input, error) {
	return f.p.collect(ctx, f.path)
}

func (f *frameDoc) Frames(ctx context.Context) ([]dom.Frame, error) {
	return f.p.frames(ctx, f.path)
}

// Listen attaches edit listeners to the element identified by ref. An
// element that disappeared between scan and listen is not an error; the
// next mutation pass will re-adopt whatever replaced it.
func (p *Page) Listen(ctx context.Context, ref string) error {
	_, err := p.page.Context(ctx).Eval(`(ref) => window.__pricewatch.listen(ref)`, ref)
	if err != nil {
		return fmt.Errorf("browser: listen %s: %w", ref, err)
	}
	return nil
}

// UnlistenAll strips every edit listener the agent installed.
func (p *Page) UnlistenAll(ctx context.Context) error {
	_, err := p.page.Context(ctx).Eval(`() => window.__pricewatch.unlistenAll()`)
	if err != nil {
		return fmt.Errorf("browser: unlisten: %w", err)
	}
	return nil
}

// Events returns the page record channel.
func (p *Page) Events() <-chan dom.Record { return p.records }

// Surface returns the overlay surface backed by the same agent.
func (p *Page) Surface() *Surface { return &Surface{p: p} }

// Surface drives the in-page overlay widget through the agent.
type Surface struct {
	p *Page
}

func (s *Surface) eval(ctx context.Context, js string, args ...any) error {
	_, err := s.p.page.Context(ctx).Eval(js, args...)
	if err != nil {
		return fmt.Errorf("browser: overlay: %w", err)
	}
	return nil
}

func (s *Surface) Ensure(ctx context.Context) error {
	return s.eval(ctx, `() => window.__pricewatch.overlayEnsure()`)
}

func (s *Surface) SetVisible(ctx context.Context, visible bool) error {
	return s.eval(ctx, `(v) => window.__pricewatch.overlaySetVisible(v)`, visible)
}

func (s *Surface) Render(ctx context.Context, count int, sum string) error {
	return s.eval(ctx, `(c, t) => window.__pricewatch.overlayRender(c, t)`, count, sum)
}

func (s *Surface) SetMinimized(ctx context.Context, minimized bool) error {
	return s.eval(ctx, `(m) => window.__pricewatch.overlaySetMinimized(m)`, minimized)
}

func (s *Surface) MoveTo(ctx context.Context, x, y int) error {
	return s.eval(ctx, `(x, y) => window.__pricewatch.overlayMoveTo(x, y)`, x, y)
}

func (s *Surface) Remove(ctx context.Context) error {
	return s.eval(ctx, `() => window.__pricewatch.overlayRemove()`)
}

func (s *Surface) Events() <-chan overlay.Event { return s.p.widget }
