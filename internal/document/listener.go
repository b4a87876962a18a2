package document

import (
	"context"

	"github.com/waterreg/registry-server/internal/workflow"
)

// Listener starts and invalidates documents on request transitions.
type Listener struct {
	pipeline *Pipeline
}

var _ workflow.Listener = (*Listener)(nil)

func NewListener(p *Pipeline) *Listener {
	return &Listener{pipeline: p}
}

func (l *Listener) HandleEvent(ctx context.Context, ev workflow.Event) error {
	if ev.Kind != workflow.KindRequest || ev.New == nil {
		return nil
	}

	switch {
	case ev.AutoApproved():
		l.pipeline.Kickoff(ctx, ev.New.ID)
	case ev.Type == workflow.EventUpdated && ev.StatusChanged():
		switch ev.New.Status {
		case workflow.StatusSubmitted:
			if ev.New.GeneratedFile != "" {
				id := ev.New.ID
				l.pipeline.exec.Submit(ctx, "invalidate-pdf:"+id, func(ctx context.Context) error {
					return l.pipeline.Invalidate(ctx, id)
				})
			}
		case workflow.StatusApproved:
			if ev.New.GeneratedFile == "" {
				l.pipeline.Kickoff(ctx, ev.New.ID)
			}
		}
	}
	return nil
}
