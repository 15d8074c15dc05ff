// Package progress is the research core's progress-emission event bus:
// producers (the orchestrator, the code-mapper pipeline) call Emit
// without knowing whether anything is listening; a mutex guards
// concurrent emission from parallel exploration/synthesis goroutines;
// exactly one consumer renders, reusing the teacher's internal/ui
// Renderer — a TUI when attached to a terminal, a plain-text renderer
// otherwise, or nothing at all when no consumer is attached.
package progress

import (
	"sync"

	"github.com/Aman-CERP/amanmcp/internal/ui"
)

// Bus is a single-consumer progress event bus. Producers are otherwise
// unaware of whether a consumer is attached or what it does with
// events.
type Bus struct {
	mu       sync.Mutex
	consumer ui.Renderer
}

// NewBus returns a Bus with no consumer attached; Emit/AddError/Complete
// are no-ops until SetConsumer is called; this is the "null" consumer
// case.
func NewBus() *Bus {
	return &Bus{}
}

// SetConsumer attaches the single renderer that receives every
// subsequent call. Passing nil detaches it.
func (b *Bus) SetConsumer(c ui.Renderer) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.consumer = c
}

// Emit reports one progress update, guarded by the bus mutex so
// concurrent producers (parallel PoI jobs, parallel cluster synthesis)
// never interleave a partial render.
func (b *Bus) Emit(event ui.ProgressEvent) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.consumer != nil {
		b.consumer.UpdateProgress(event)
	}
}

// AddError reports one error or warning.
func (b *Bus) AddError(event ui.ErrorEvent) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.consumer != nil {
		b.consumer.AddError(event)
	}
}

// Complete reports the final completion stats for one tracked run.
func (b *Bus) Complete(stats ui.CompletionStats) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.consumer != nil {
		b.consumer.Complete(stats)
	}
}
