package broadcast

import (
	"context"

	"github.com/lokeshjavvadi/Smart-taskhub-React/domain"
)

// Fanout publishes each event to every publisher in order.
type Fanout []domain.EventPublisher

func (f Fanout) Publish(ctx context.Context, channel string, ev domain.TaskEvent) {
	for _, p := range f {
		if p != nil {
			p.Publish(ctx, channel, ev)
		}
	}
}
