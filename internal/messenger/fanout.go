package messenger

import (
	"context"
	"errors"

	"github.com/rdavydov/node-laundry/internal/domain"
)

// Sender delivers one reminder to an address.
type Sender interface {
	Send(ctx context.Context, address string, kind domain.Kind) error
}

// Fanout delivers every reminder to all of its senders. A failing sender does
// not stop the others; their errors are joined.
type Fanout []Sender

func (f Fanout) Send(ctx context.Context, address string, kind domain.Kind) error {
	var errs []error
	for _, s := range f {
		if err := s.Send(ctx, address, kind); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
