package command

import (
	"context"
	"fmt"

	"github.com/dokzlo13/homebase/internal/eventbus"
)

// envelope carries a command through the bus and its outcome back.
type envelope struct {
	ctx   context.Context
	cmd   Command
	reply chan outcome
}

type outcome struct {
	result Result
	err    error
}

// Dispatcher delivers commands to the executor through the keyed event bus,
// so commands for the same topic run one at a time in submission order.
type Dispatcher struct {
	bus  *eventbus.Bus
	exec *Executor
}

// NewDispatcher subscribes the executor to command events on bus.
func NewDispatcher(bus *eventbus.Bus, exec *Executor) *Dispatcher {
	d := &Dispatcher{bus: bus, exec: exec}
	bus.Subscribe(eventbus.EventTypeCommand, d.handle)
	return d
}

// Submit queues cmd and waits for its result until ctx is done. A command
// whose caller gave up still runs to completion.
func (d *Dispatcher) Submit(ctx context.Context, cmd Command) (Result, error) {
	env := envelope{ctx: ctx, cmd: cmd, reply: make(chan outcome, 1)}
	if err := d.bus.Publish(eventbus.Event{
		Type:    eventbus.EventTypeCommand,
		Key:     string(cmd.Topic),
		Payload: env,
	}); err != nil {
		return Result{}, fmt.Errorf("failed to dispatch command: %w", err)
	}

	select {
	case out := <-env.reply:
		return out.result, out.err
	case <-ctx.Done():
		return Result{}, ctx.Err()
	}
}

func (d *Dispatcher) handle(e eventbus.Event) {
	env, ok := e.Payload.(envelope)
	if !ok {
		return
	}
	result, err := d.exec.Execute(context.WithoutCancel(env.ctx), env.cmd)
	env.reply <- outcome{result: result, err: err}
}
