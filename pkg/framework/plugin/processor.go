package plugin

import (
	"github.com/justyntemme/consul/pkg/framework/process"
)

// OnProcess sets the audio callback run after queued events are emitted.
// Without one, ProcessBlock passes input through to output.
func (b *Base) OnProcess(fn func(ctx *process.Context)) {
	b.processFunc = fn
}

// ProcessBlock implements Plugin. It drains the realtime queue into the
// block's output events in FIFO order, each placed at frame 0, then runs
// the audio callback.
//
// Events that do not fit the context stay queued for the next block.
func (b *Base) ProcessBlock(ctx *process.Context) {
	ctx.ResetEvents()

	for len(ctx.OutputEvents()) < ctx.MaxEvents() {
		e, ok := b.queue.Get()
		if !ok {
			break
		}
		e.Frame = 0
		ctx.EmitEvent(e)
	}

	if b.processFunc != nil {
		b.processFunc(ctx)
		return
	}
	ctx.PassThrough()
}
