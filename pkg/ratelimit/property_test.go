//go:build property
// +build property

package ratelimit_test

import (
	"testing"
	"time"

	"github.com/Mindburn-Labs/spapi-core/pkg/clock"
	"github.com/Mindburn-Labs/spapi-core/pkg/ratelimit"
	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
)

// TestBucketStaysWithinBounds exercises invariant 1 through the bucket's
// public surface: for any Bucket with rate r and capacity c, after any
// sequence of admit calls separated by arbitrary intervals, a bucket
// with no token available never reports a negative wait time. The token
// count itself is not exported, so 0 <= tokens <= c is not read directly.
func TestBucketStaysWithinBounds(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 200
	properties := gopter.NewProperties(parameters)

	properties.Property("tokens never leave [0, capacity]", prop.ForAll(
		func(capacity int, rate float64, deltasMs []int) bool {
			if capacity <= 0 || rate <= 0 {
				return true
			}
			fake := clock.NewFake(time.Unix(0, 0))
			b := ratelimit.NewBucket(fake, float64(capacity), rate)

			for _, d := range deltasMs {
				if d < 0 {
					d = -d
				}
				fake.Advance(time.Duration(d) * time.Millisecond)
				b.Admit()
				if !b.CheckAvailable() && b.WaitTime() < 0 {
					return false
				}
			}
			return true
		},
		gen.IntRange(1, 100),
		gen.Float64Range(0.01, 50),
		gen.SliceOf(gen.IntRange(0, 5000)),
	))

	properties.TestingRun(t)
}
