package main

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/whallera/whallera/internal/device"
	"github.com/whallera/whallera/internal/protocol"
	"github.com/whallera/whallera/internal/ui"
)

const scriptArgs = "SCRIPT KEYS DATA STDOUT STDERR"

func parseScriptJob(args []string) (device.ScriptJob, error) {
	ids, err := device.ParseBankIDs(args)
	if err != nil {
		return device.ScriptJob{}, err
	}
	return device.ScriptJobFromIDs(ids)
}

func jobDetails(job device.ScriptJob) []ui.Detail {
	return []ui.Detail{
		{Key: "Script bank", Value: strconv.Itoa(int(job.Script))},
		{Key: "Keys bank", Value: strconv.Itoa(int(job.Keys))},
		{Key: "Data bank", Value: strconv.Itoa(int(job.Data))},
		{Key: "Stdout bank", Value: strconv.Itoa(int(job.Stdout))},
		{Key: "Stderr bank", Value: strconv.Itoa(int(job.Stderr))},
	}
}

func newExecScriptCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "exec-script " + scriptArgs,
		Short: "Start a script without waiting for it",
		Long: `Start the script stored in bank SCRIPT without waiting for it.

KEYS and DATA are the input banks; the script's output goes to STDOUT and
STDERR. Use poll-script to read the outcome, or run-script to do both.`,
		Example: "  whallera exec-script 1 2 3 4 5",
		Args:    cobra.ExactArgs(5),
		RunE: func(cmd *cobra.Command, args []string) error {
			job, err := parseScriptJob(args)
			if err != nil {
				return err
			}
			return a.withClient(cmd, func(ctx context.Context, c *device.Client) error {
				reply, err := c.ExecScript(ctx, job)
				if err != nil {
					return err
				}
				return a.report("Script submitted", reply, jobDetails(job)...)
			})
		},
	}
}

func newPollScriptCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "poll-script",
		Short: "Read the status of the last script (WAIT while running)",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withClient(cmd, func(ctx context.Context, c *device.Client) error {
				status, err := c.PollScriptStatus(ctx)
				if err != nil {
					return err
				}
				var details []ui.Detail
				if status.OK() {
					details = append(details, ui.Detail{Key: "Exit code", Value: strconv.Itoa(int(status.ExitCode))})
				}
				if err := a.report("Script status", status.Reply, details...); err != nil {
					return err
				}
				return checkScriptExit(status.ExitCode)
			})
		},
	}
}

// scriptExitError reports a script that ran but exited nonzero. The device
// answered OK, so the message is printed here and the run exits 1.
type scriptExitError uint8

func (e scriptExitError) Error() string {
	return fmt.Sprintf("script failed with exit code %d", uint8(e))
}

func checkScriptExit(code uint8) error {
	if code == protocol.ScriptExitOK {
		return nil
	}
	return scriptExitError(code)
}

func newRunScriptCmd(a *app) *cobra.Command {
	policy := device.DefaultPollPolicy()

	cmd := &cobra.Command{
		Use:   "run-script " + scriptArgs,
		Short: "Run a script and wait for it to finish",
		Long: `Start the script stored in bank SCRIPT and poll until it finishes.

Polls back off from --poll-initial up to --poll-max. If the script is still
running after --poll-timeout, polling stops and the job is reported as
pending; it may still finish on the device.`,
		Example: `  whallera run-script 1 2 3 4 5
  whallera run-script 1 2 3 4 5 --poll-timeout 2m`,
		Args: cobra.ExactArgs(5),
		RunE: func(cmd *cobra.Command, args []string) error {
			job, err := parseScriptJob(args)
			if err != nil {
				return err
			}
			if policy.Initial <= 0 || policy.Max < policy.Initial || policy.Timeout < 0 {
				return fmt.Errorf("invalid poll pacing: need 0 < --poll-initial <= --poll-max and --poll-timeout >= 0")
			}

			return a.withClient(cmd, func(ctx context.Context, c *device.Client) error {
				return a.runScript(ctx, c, job, policy, strings.Join(append([]string{"whallera", "run-script"}, args...), " "))
			})
		},
	}

	cmd.Flags().DurationVar(&policy.Initial, "poll-initial", device.DefaultPollInitial, "First delay between status polls")
	cmd.Flags().DurationVar(&policy.Max, "poll-max", device.DefaultPollMax, "Longest delay between status polls")
	cmd.Flags().DurationVar(&policy.Timeout, "poll-timeout", device.DefaultPollTimeout, "Stop polling after this long (0 waits forever)")
	return cmd
}

func (a *app) runScript(ctx context.Context, c *device.Client, job device.ScriptJob, policy device.PollPolicy, command string) error {
	p := a.printer()
	if a.format == formatText {
		p.PrintHeader(ui.NewHeader("Run script", command,
			append([]ui.Detail{{Key: "Interface", Value: c.Transport().String()}}, jobDetails(job)...)...))
	}

	var run *device.ScriptRun
	task := func(ctx context.Context, report func(string)) error {
		started := time.Now()
		local := policy
		local.OnPoll = func(s *device.ScriptStatus) {
			report(fmt.Sprintf("poll %s: %s", time.Since(started).Round(time.Millisecond), s.Status))
		}
		var err error
		run, err = c.RunScript(ctx, job, local)
		return err
	}

	var err error
	switch {
	case a.format == formatJSON:
		err = task(ctx, func(string) {})
	case a.interactive():
		err = ui.RunWithSpinner(ctx, a.out, "Running script", task)
	default:
		err = ui.RunPlain(ctx, a.errOut, "Running script", task)
	}
	if err != nil {
		return err
	}

	details := append(jobDetails(job),
		ui.Detail{Key: "State", Value: run.State.String()},
		ui.Detail{Key: "Polls", Value: strconv.Itoa(run.Polls)},
	)

	switch run.State {
	case device.JobIdle:
		return a.report("Script rejected", run.Submit, details...)
	case device.JobPending:
		if a.format == formatJSON {
			return a.report("Script still running", run.Final.Reply, details...)
		}
		r := ui.NewStatusResult("Script still running", run.Final.Status, details...)
		r.Troubleshooting = []string{
			fmt.Sprintf("No final status after %s", policy.Timeout),
			"Run poll-script later to read the outcome",
		}
		p.PrintResult(r)
		return &statusError{cmd: protocol.CmdExecScriptStatus, status: protocol.StatusWait}
	}

	details = append(details, ui.Detail{Key: "Exit code", Value: strconv.Itoa(int(run.ExitCode()))})
	if err := a.report("Script finished", run.Final.Reply, details...); err != nil {
		return err
	}
	return checkScriptExit(run.ExitCode())
}
