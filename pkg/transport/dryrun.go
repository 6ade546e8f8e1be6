package transport

import (
	"context"
	"maps"
	"sync"
)

// Request is a script recorded by DryRun.
type Request struct {
	Script string
	Params map[string]any
}

// DryRun records scripts instead of sending them. It answers every request
// with Reply, which is nil unless set.
type DryRun struct {
	Reply []any

	mu       sync.Mutex
	requests []Request
}

// Execute records the request.
func (d *DryRun) Execute(ctx context.Context, script string, params map[string]any) ([]any, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	d.requests = append(d.requests, Request{Script: script, Params: maps.Clone(params)})
	return d.Reply, nil
}

// Requests returns everything recorded so far.
func (d *DryRun) Requests() []Request {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]Request(nil), d.requests...)
}
