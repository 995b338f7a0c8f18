package event

import (
	"context"
	"errors"
)

// Fanout publishes to several transports; the first is the live path,
// the rest are mirrors. All are attempted and their errors joined.
type Fanout []Transport

func (f Fanout) Publish(ctx context.Context, channel string, envelope []byte) error {
	var errs []error
	for _, t := range f {
		if err := t.Publish(ctx, channel, envelope); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
