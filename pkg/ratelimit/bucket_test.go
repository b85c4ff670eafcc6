package ratelimit

import (
	"testing"
	"time"

	"github.com/Mindburn-Labs/spapi-core/pkg/clock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBucketAdmitsUpToCapacity(t *testing.T) {
	fake := clock.NewFake(time.Unix(0, 0))
	b := NewBucket(fake, 20, 0.0167)

	for i := 0; i < 20; i++ {
		admitted, _ := b.Admit()
		require.Truef(t, admitted, "request %d should be admitted", i)
	}

	admitted, retryAfter := b.Admit()
	assert.False(t, admitted)
	assert.Greater(t, retryAfter, 0.0)
}

func TestBucketRefillsOverTime(t *testing.T) {
	fake := clock.NewFake(time.Unix(0, 0))
	b := NewBucket(fake, 1, 1) // 1 token/sec, capacity 1

	admitted, _ := b.Admit()
	require.True(t, admitted)

	admitted, _ = b.Admit()
	require.False(t, admitted)

	fake.Advance(1 * time.Second)
	admitted, _ = b.Admit()
	assert.True(t, admitted)
}

func TestBucketNeverExceedsCapacity(t *testing.T) {
	fake := clock.NewFake(time.Unix(0, 0))
	b := NewBucket(fake, 5, 10)

	fake.Advance(100 * time.Second) // would overflow without clamping
	admitted, _ := b.AdmitN(5)
	assert.True(t, admitted)
	admitted, _ = b.Admit()
	assert.False(t, admitted)
}

func TestCheckAvailableDoesNotMutateState(t *testing.T) {
	fake := clock.NewFake(time.Unix(0, 0))
	b := NewBucket(fake, 1, 0)

	assert.True(t, b.CheckAvailable())
	assert.True(t, b.CheckAvailable())
	admitted, _ := b.Admit()
	assert.True(t, admitted)
	assert.False(t, b.CheckAvailable())
}
