// Package pagination drives repeated calls against a paginated SP-API
// list operation until the token is exhausted, the caller's cap is
// reached, or the operation's deadline elapses.
package pagination

import (
	"context"
	"time"

	"golang.org/x/time/rate"
)

// DefaultCap is applied when a caller does not specify maxResults.
const DefaultCap = 100

// DefaultPagePace bounds how fast Drive may issue successive page
// fetches within one operation, independent of the per-endpoint token
// bucket: a caller with a generous rate-limit bucket can still not
// hammer a single list operation into many pages per second.
const DefaultPagePace = 100 * time.Millisecond // 10 pages/sec burst-1

// NewPacer builds the limiter Drive uses to throttle inter-page fetches.
func NewPacer() *rate.Limiter {
	return rate.NewLimiter(rate.Every(DefaultPagePace), 1)
}

// Page is one fetched page: the decoded records it carried, the next
// page token (empty when there is no further page), and the request id
// of the call that produced it.
type Page struct {
	Records   []any
	NextToken string
	RequestID string
}

// Fetcher retrieves one page given the previous page's token (empty for
// the first page).
type Fetcher func(ctx context.Context, nextToken string) (Page, error)

// Result is the concatenation of all fetched pages in server order.
type Result struct {
	Records         []any
	LastRequestID   string
	PaginationDone  bool
}

// Drive repeatedly invokes fetch until (a) the server returns no further
// token, (b) accumulated records reach cap, or (c) deadline elapses.
// Pages are fetched sequentially and their records concatenated in
// server order; cap defaults to DefaultCap when <= 0. pacer may be nil,
// in which case pages are fetched as fast as fetch and the endpoint's
// own rate limiter allow.
func Drive(ctx context.Context, fetch Fetcher, cap int, deadline time.Time, pacer *rate.Limiter) (Result, error) {
	if cap <= 0 {
		cap = DefaultCap
	}

	var out Result
	token := ""
	for {
		if !deadline.IsZero() && time.Now().After(deadline) {
			return out, context.DeadlineExceeded
		}
		select {
		case <-ctx.Done():
			return out, ctx.Err()
		default:
		}

		if pacer != nil {
			if err := pacer.Wait(ctx); err != nil {
				return out, err
			}
		}

		page, err := fetch(ctx, token)
		if err != nil {
			return out, err
		}

		remaining := cap - len(out.Records)
		if remaining < 0 {
			remaining = 0
		}
		toAdd := page.Records
		if len(toAdd) > remaining {
			toAdd = toAdd[:remaining]
		}
		out.Records = append(out.Records, toAdd...)
		out.LastRequestID = page.RequestID

		if page.NextToken == "" || len(out.Records) >= cap {
			out.PaginationDone = page.NextToken == ""
			return out, nil
		}
		token = page.NextToken
	}
}
