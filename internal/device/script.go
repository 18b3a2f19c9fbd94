package device

import (
	"context"
	"fmt"
	"time"

	"github.com/cenkalti/backoff"
	"go.uber.org/zap"

	"github.com/whallera/whallera/internal/protocol"
)

// JobState is the host's view of a script job. The device keeps no job id,
// so the state is derived from the statuses observed so far.
type JobState int

const (
	// JobIdle means no job has been accepted
	JobIdle JobState = iota
	// JobSubmitted means EXEC_SCRIPT was accepted and not yet polled
	JobSubmitted
	// JobPending means the last poll answered WAIT
	JobPending
	// JobCompleted means a poll returned a final status
	JobCompleted
)

func (s JobState) String() string {
	switch s {
	case JobIdle:
		return "Idle"
	case JobSubmitted:
		return "Submitted"
	case JobPending:
		return "Pending"
	case JobCompleted:
		return "Completed"
	default:
		return fmt.Sprintf("JobState(%d)", int(s))
	}
}

// StateAfterSubmit returns the job state following an EXEC_SCRIPT reply
func StateAfterSubmit(status protocol.Status) JobState {
	if status == protocol.StatusOK {
		return JobSubmitted
	}
	return JobIdle
}

// StateAfterPoll returns the job state following an EXEC_SCRIPT_STATUS reply
func StateAfterPoll(status protocol.Status) JobState {
	if status == protocol.StatusWait {
		return JobPending
	}
	return JobCompleted
}

// Default poll pacing for RunScript
const (
	DefaultPollInitial = 50 * time.Millisecond
	DefaultPollMax     = 1 * time.Second
	DefaultPollTimeout = 30 * time.Second
)

// PollPolicy paces RunScript's status polls.
type PollPolicy struct {
	Initial time.Duration // first delay between polls
	Max     time.Duration // cap on the delay between polls
	Timeout time.Duration // give up polling after this long; 0 means no limit

	// OnPoll, if set, is called after every poll
	OnPoll func(*ScriptStatus)
}

// DefaultPollPolicy returns the default pacing
func DefaultPollPolicy() PollPolicy {
	return PollPolicy{
		Initial: DefaultPollInitial,
		Max:     DefaultPollMax,
		Timeout: DefaultPollTimeout,
	}
}

// ScriptRun is the outcome of RunScript
type ScriptRun struct {
	Job    ScriptJob
	Submit Reply         // EXEC_SCRIPT reply
	Final  *ScriptStatus // last poll, nil if the job was rejected
	Polls  int
	State  JobState
}

// ExitCode returns the script exit code, or 0 if no poll completed
func (r *ScriptRun) ExitCode() uint8 {
	if r.Final == nil {
		return 0
	}
	return r.Final.ExitCode
}

// Status returns the status that decides the run's outcome: the submit
// status when rejected, otherwise the last poll status.
func (r *ScriptRun) Status() protocol.Status {
	if r.Final == nil {
		return r.Submit.Status
	}
	return r.Final.Status
}

// RunScript submits job and polls until the device reports a final status.
//
// A rejected submission ends the run in JobIdle. If policy.Timeout passes
// while the device still answers WAIT, the run ends in JobPending without an
// error; the job may still finish on the device.
func (c *Client) RunScript(ctx context.Context, job ScriptJob, policy PollPolicy) (*ScriptRun, error) {
	run := &ScriptRun{Job: job, State: JobIdle}

	submit, err := c.ExecScript(ctx, job)
	if err != nil {
		return nil, err
	}
	run.Submit = submit
	run.State = StateAfterSubmit(submit.Status)
	if run.State == JobIdle {
		return run, nil
	}

	var deadline time.Time
	if policy.Timeout > 0 {
		deadline = time.Now().Add(policy.Timeout)
	}
	delays := newBackOff(policy.Initial, policy.Max, 0)

	for {
		status, err := c.PollScriptStatus(ctx)
		if err != nil {
			return run, err
		}
		run.Polls++
		run.Final = status
		run.State = StateAfterPoll(status.Status)
		if policy.OnPoll != nil {
			policy.OnPoll(status)
		}

		if run.State == JobCompleted {
			return run, nil
		}

		next := delays.NextBackOff()
		if next == backoff.Stop || (!deadline.IsZero() && time.Now().Add(next).After(deadline)) {
			c.logger.Warn("Script still running, stopped polling",
				zap.Int("polls", run.Polls),
				zap.Duration("timeout", policy.Timeout),
			)
			return run, nil
		}
		if err := sleep(ctx, next); err != nil {
			return run, err
		}
	}
}
