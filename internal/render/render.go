package render

import (
	"context"
	"fmt"

	"github.com/iago/reports-back/internal/domain"
)

// Kind is a binary document format produced by a Renderer.
type Kind string

const (
	KindPDF   Kind = "pdf"
	KindExcel Kind = "excel"
)

// Section is one titled table of a report.
type Section struct {
	Title   string
	Columns []string
	Rows    [][]string
}

type Renderer interface {
	Render(ctx context.Context, sections []Section, kind Kind) ([]byte, error)
}

// Composite dispatches to the renderer registered for each kind.
type Composite struct {
	renderers map[Kind]Renderer
}

func NewComposite() *Composite {
	return &Composite{
		renderers: map[Kind]Renderer{
			KindExcel: Excel{},
			KindPDF:   PDF{},
		},
	}
}

// With replaces the renderer used for kind.
func (c *Composite) With(kind Kind, renderer Renderer) *Composite {
	c.renderers[kind] = renderer
	return c
}

func (c *Composite) Render(ctx context.Context, sections []Section, kind Kind) ([]byte, error) {
	renderer, ok := c.renderers[kind]
	if !ok {
		return nil, fmt.Errorf("%w: no renderer for %q", domain.ErrRender, kind)
	}
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("%w: %w", domain.ErrRender, err)
	}
	return renderer.Render(ctx, sections, kind)
}
