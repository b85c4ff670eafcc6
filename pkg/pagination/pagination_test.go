package pagination

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/time/rate"
)

func TestDriveConcatenatesAllPages(t *testing.T) {
	pages := []Page{
		{Records: []any{"a", "b"}, NextToken: "t1", RequestID: "r1"},
		{Records: []any{"c", "d"}, NextToken: "t2", RequestID: "r2"},
		{Records: []any{"e"}, NextToken: "", RequestID: "r3"},
	}
	i := 0
	fetch := func(ctx context.Context, token string) (Page, error) {
		p := pages[i]
		i++
		return p, nil
	}

	res, err := Drive(context.Background(), fetch, 0, time.Time{}, nil)
	require.NoError(t, err)
	assert.Equal(t, []any{"a", "b", "c", "d", "e"}, res.Records)
	assert.True(t, res.PaginationDone)
	assert.Equal(t, "r3", res.LastRequestID)
}

func TestDriveStopsAtCap(t *testing.T) {
	pages := []Page{
		{Records: []any{"a", "b", "c"}, NextToken: "t1"},
		{Records: []any{"d", "e", "f"}, NextToken: "t2"},
	}
	i := 0
	fetch := func(ctx context.Context, token string) (Page, error) {
		p := pages[i]
		i++
		return p, nil
	}

	res, err := Drive(context.Background(), fetch, 4, time.Time{}, nil)
	require.NoError(t, err)
	assert.Len(t, res.Records, 4)
	assert.False(t, res.PaginationDone)
}

func TestDriveCompletenessEqualsMinServerTotalCap(t *testing.T) {
	total := []any{"a", "b", "c", "d", "e", "f", "g"}
	i := 0
	fetch := func(ctx context.Context, token string) (Page, error) {
		if i >= len(total) {
			return Page{}, nil
		}
		end := i + 2
		if end > len(total) {
			end = len(total)
		}
		page := Page{Records: total[i:end]}
		i = end
		if i < len(total) {
			page.NextToken = "more"
		}
		return page, nil
	}

	for _, cap := range []int{3, 5, 100} {
		i = 0
		res, err := Drive(context.Background(), fetch, cap, time.Time{}, nil)
		require.NoError(t, err)
		want := cap
		if want > len(total) {
			want = len(total)
		}
		assert.Len(t, res.Records, want)
	}
}

func TestDriveHonorsPacerBetweenPages(t *testing.T) {
	pages := []Page{
		{Records: []any{"a"}, NextToken: "t1"},
		{Records: []any{"b"}, NextToken: ""},
	}
	i := 0
	fetch := func(ctx context.Context, token string) (Page, error) {
		p := pages[i]
		i++
		return p, nil
	}

	pacer := rate.NewLimiter(rate.Every(20*time.Millisecond), 1)
	start := time.Now()
	res, err := Drive(context.Background(), fetch, 0, time.Time{}, pacer)
	require.NoError(t, err)
	assert.Equal(t, []any{"a", "b"}, res.Records)
	assert.GreaterOrEqual(t, time.Since(start), 15*time.Millisecond)
}
