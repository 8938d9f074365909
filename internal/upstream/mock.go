package upstream

import (
	"context"
	"sync"
	"time"
)

// MockStep scripts one MockGenerator call.
type MockStep struct {
	Text string
	Err  error
}

// MockGenerator returns scripted results for dev mode and tests. The last
// step repeats once the script runs out; with no steps it returns a canned
// mentor line.
type MockGenerator struct {
	mu        sync.Mutex
	steps     []MockStep
	calls     int
	callTimes []time.Time
}

func NewMockGenerator(steps ...MockStep) *MockGenerator {
	return &MockGenerator{steps: steps}
}

func (g *MockGenerator) Generate(ctx context.Context, _ string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	g.mu.Lock()
	defer g.mu.Unlock()
	g.calls++
	g.callTimes = append(g.callTimes, time.Now())

	if len(g.steps) == 0 {
		return "This is a canned reply from the mock generator.", nil
	}
	step := g.steps[0]
	if len(g.steps) > 1 {
		g.steps = g.steps[1:]
	}
	if step.Err != nil {
		return "", step.Err
	}
	return step.Text, nil
}

func (g *MockGenerator) Calls() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.calls
}

func (g *MockGenerator) CallTimes() []time.Time {
	g.mu.Lock()
	defer g.mu.Unlock()
	out := make([]time.Time, len(g.callTimes))
	copy(out, g.callTimes)
	return out
}
