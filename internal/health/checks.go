package health

import (
	"context"
	"fmt"

	"github.com/readingpartner/scriptpipe/internal/resilience"
	"github.com/readingpartner/scriptpipe/internal/store"
)

// StoreCheck probes the project store with a cheap list query.
func StoreCheck(st store.Store) Checker {
	return Checker{
		Name: "store",
		Check: func(ctx context.Context) error {
			_, err := st.ListProjects(ctx)
			return err
		},
	}
}

// BreakerCheck reports the named provider as unready while its circuit is
// open. Half-open counts as ready: probe traffic is already flowing.
func BreakerCheck(name string, b *resilience.Breaker) Checker {
	return Checker{
		Name: name,
		Check: func(_ context.Context) error {
			if b.State() == resilience.StateOpen {
				return fmt.Errorf("circuit open")
			}
			return nil
		},
	}
}
