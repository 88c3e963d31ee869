//go:build property

package cache

import (
	"context"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
)

// TestContentCacheProperties checks the hit/miss contract over random paths.
func TestContentCacheProperties(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.Rng.Seed(1234)
	parameters.MinSuccessfulTests = 100

	properties := gopter.NewProperties(parameters)

	properties.Property("cached paths never re-invoke the producer", prop.ForAll(
		func(paths []string, content string) bool {
			c := New()
			calls := map[string]int{}
			producer := func(ctx context.Context, p string) ([]byte, error) {
				calls[p]++
				return []byte(content + p), nil
			}

			for _, p := range paths {
				if _, err := c.GetOrCompute(context.Background(), p, producer); err != nil {
					return false
				}
			}
			for _, p := range paths {
				entry, err := c.GetOrCompute(context.Background(), p, producer)
				if err != nil || string(entry.Content) != content+p {
					return false
				}
			}
			for _, n := range calls {
				if n != 1 {
					return false
				}
			}
			return true
		},
		gen.SliceOf(gen.Identifier()),
		gen.AlphaString(),
	))

	properties.Property("invalidate then get invokes the producer again", prop.ForAll(
		func(path string) bool {
			c := New()
			calls := 0
			producer := func(ctx context.Context, p string) ([]byte, error) {
				calls++
				return []byte(p), nil
			}

			_, _ = c.GetOrCompute(context.Background(), path, producer)
			c.Invalidate(path)
			_, _ = c.GetOrCompute(context.Background(), path, producer)
			return calls == 2
		},
		gen.Identifier(),
	))

	properties.TestingRun(t)
}
