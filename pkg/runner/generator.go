package runner

import (
	"context"

	"github.com/dmitrymomot/briefkit/pkg/brief"
)

// GeneratedContent is one rendered brief plus the cost of producing it.
// Cost feeds the tenant's daily spend guardrail.
type GeneratedContent struct {
	Subject   string
	BodyHTML  string
	ItemCount int
	Cost      float64
}

// ContentGenerator produces the brief body for one occurrence. Generation is
// the expensive step of a run; implementations typically call out to an LLM
// or aggregation backend and should honor ctx cancellation.
type ContentGenerator interface {
	Generate(ctx context.Context, briefing *brief.Briefing) (*GeneratedContent, error)
}

// GeneratorFunc adapts a function to the ContentGenerator interface.
type GeneratorFunc func(ctx context.Context, briefing *brief.Briefing) (*GeneratedContent, error)

func (f GeneratorFunc) Generate(ctx context.Context, briefing *brief.Briefing) (*GeneratedContent, error) {
	return f(ctx, briefing)
}
