package main

import (
	"encoding/hex"
	"encoding/json"
	"fmt"

	"github.com/whallera/whallera/internal/device"
	"github.com/whallera/whallera/internal/protocol"
	"github.com/whallera/whallera/internal/ui"
)

// statusError carries a non-OK device status out of RunE so main can map it
// to exit status 1. The result has already been printed.
type statusError struct {
	cmd    protocol.Command
	status protocol.Status
}

func (e *statusError) Error() string {
	return fmt.Sprintf("%s: %s", e.cmd, e.status.Description())
}

// jsonReply is the --format json rendering of one command
type jsonReply struct {
	Command    string            `json:"command"`
	Status     string            `json:"status"`
	StatusCode uint8             `json:"status_code"`
	Details    map[string]string `json:"details,omitempty"`
	Attempts   int               `json:"attempts"`
	DurationMS int64             `json:"duration_ms"`
	Request    string            `json:"request"`
	Response   string            `json:"response"`
}

// report prints reply in the selected format and returns a statusError when
// the device did not answer OK
func (a *app) report(title string, reply device.Reply, details ...ui.Detail) error {
	if a.format == formatJSON {
		if err := a.writeJSON(reply, details); err != nil {
			return err
		}
	} else {
		a.printer().PrintResult(ui.NewStatusResult(title, reply.Status, details...))
	}

	if reply.OK() {
		return nil
	}
	return &statusError{cmd: reply.Exchange.Command, status: reply.Status}
}

func (a *app) writeJSON(reply device.Reply, details []ui.Detail) error {
	out := jsonReply{
		Command:    reply.Exchange.Command.String(),
		Status:     reply.Status.String(),
		StatusCode: uint8(reply.Status),
		Attempts:   reply.Exchange.Attempts,
		DurationMS: reply.Exchange.Duration.Milliseconds(),
		Request:    hex.EncodeToString(reply.Exchange.Request),
		Response:   hex.EncodeToString(reply.Exchange.Response),
	}
	if len(details) > 0 {
		out.Details = make(map[string]string, len(details))
		for _, d := range details {
			out.Details[d.Key] = d.Value
		}
	}

	enc := json.NewEncoder(a.out)
	enc.SetIndent("", "  ")
	return enc.Encode(out)
}
