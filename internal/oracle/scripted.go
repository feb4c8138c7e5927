package oracle

import (
	"context"
	"sync"
)

// ScriptedOracle replays queued replies. It backs tests and offline demos.
type ScriptedOracle struct {
	mu       sync.Mutex
	name     string
	replies  []string
	errs     map[int]error
	requests []Request
	cycle    bool
}

// NewScriptedOracle creates an oracle that answers with replies in order.
func NewScriptedOracle(name string, replies ...string) *ScriptedOracle {
	return &ScriptedOracle{
		name:    name,
		replies: replies,
		errs:    make(map[int]error),
	}
}

// Cycle makes the oracle start over once its replies run out.
func (o *ScriptedOracle) Cycle() *ScriptedOracle {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.cycle = true
	return o
}

// FailAt makes call number n (0-based) fail with err.
func (o *ScriptedOracle) FailAt(n int, err error) *ScriptedOracle {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.errs[n] = err
	return o
}

func (o *ScriptedOracle) Name() string    { return o.name }
func (o *ScriptedOracle) Available() bool { return true }

// Invoke returns the next reply.
func (o *ScriptedOracle) Invoke(ctx context.Context, req Request) (string, error) {
	o.mu.Lock()
	defer o.mu.Unlock()

	n := len(o.requests)
	o.requests = append(o.requests, req)

	if err := ctx.Err(); err != nil {
		return "", err
	}
	if err, ok := o.errs[n]; ok {
		return "", &TransportError{Oracle: o.name, Message: "scripted failure", Err: err}
	}

	idx := n
	if o.cycle && len(o.replies) > 0 {
		idx = n % len(o.replies)
	}
	if idx >= len(o.replies) {
		return "", &TransportError{Oracle: o.name, Message: "no reply queued", Err: ErrScriptExhausted}
	}
	return o.replies[idx], nil
}

// Requests returns a copy of every request received so far.
func (o *ScriptedOracle) Requests() []Request {
	o.mu.Lock()
	defer o.mu.Unlock()
	return append([]Request(nil), o.requests...)
}

// Calls returns the number of requests received so far.
func (o *ScriptedOracle) Calls() int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return len(o.requests)
}
