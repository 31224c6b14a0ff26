// Package seqrunner implements SequentialCommandRunner (spec.md §4.6):
// a queue of commands run strictly in order, aborting on the first
// non-success status and reporting that status to a single completion
// callback. The advertiser and scanner state machines build their
// start/stop sequences on top of it.
package seqrunner

import (
	"github.com/braidwire/hcicore/cmdchannel"
	"github.com/braidwire/hcicore/hcidefs"
	"github.com/braidwire/hcicore/herr"
	"github.com/braidwire/hcicore/packet"
)

// Step is one queued command; ExpectedEvent names the event code that
// finalizes it (typically CommandComplete or CommandStatus).
type Step struct {
	Packet        *packet.Packet
	ExpectedEvent hcidefs.EventCode
}

// Runner drives a sequence of Steps over a CommandChannel.
type Runner struct {
	cmds     *cmdchannel.CommandChannel
	steps    []Step
	idx      int
	canceled bool
	done     func(herr.Status, error)
	curTx    cmdchannel.TransactionID
}

// New constructs a Runner. Nothing is sent until Run is called.
func New(cmds *cmdchannel.CommandChannel) *Runner {
	return &Runner{cmds: cmds}
}

// Run executes steps strictly in order, invoking done exactly once
// with the first non-success status (or Ok after the last step
// succeeds).
func (r *Runner) Run(steps []Step, done func(herr.Status, error)) {
	r.steps = steps
	r.idx = 0
	r.done = done
	r.advance()
}

func (r *Runner) advance() {
	if r.canceled {
		return
	}
	if r.idx >= len(r.steps) {
		if r.done != nil {
			r.done(herr.StatusSuccess, nil)
		}
		return
	}
	step := r.steps[r.idx]
	r.idx++
	id, err := r.cmds.Send(step.Packet, step.ExpectedEvent, r.onStepResult)
	if err != nil {
		if r.done != nil {
			r.done(0, err)
		}
		return
	}
	r.curTx = id
}

func (r *Runner) onStepResult(res cmdchannel.Result) {
	if r.canceled {
		return
	}
	if res.Err != nil {
		if r.done != nil {
			r.done(res.Status, res.Err)
		}
		return
	}
	if !res.Status.Ok() {
		if r.done != nil {
			r.done(res.Status, res.Status.Err())
		}
		return
	}
	r.advance()
}

// Cancel skips any remaining steps; the completion callback receives
// Canceled instead of running further commands.
func (r *Runner) Cancel() {
	if r.canceled {
		return
	}
	r.canceled = true
	r.cmds.Cancel(r.curTx)
	if r.done != nil {
		r.done(0, herr.ErrCanceled)
	}
}
