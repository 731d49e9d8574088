package main

import (
	"context"
	"errors"
	"time"

	"github.com/sourcegraph/conc/pool"
)

type shutdowner interface {
	Shutdown(context.Context) error
}

// shutdownAll shuts down the services concurrently, waiting up to period for each.
func shutdownAll(period time.Duration, services ...shutdowner) error {
	p := pool.NewWithResults[error]()
	for _, service := range services {
		p.Go(func() error {
			ctx, cancel := context.WithTimeout(context.Background(), period)
			defer cancel()
			return service.Shutdown(ctx)
		})
	}
	return errors.Join(p.Wait()...)
}
