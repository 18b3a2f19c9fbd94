// Package device implements the MP1 command client.
//
// A Client owns one transport and offers one method per device command. Each
// call encodes a request, writes it, waits for the response, decodes it and
// parses the command's result fields.
//
// # Basic Usage
//
//	t, err := transport.Open(ctx, "/dev/ttyACM0", transport.Options{})
//	if err != nil {
//	    return err
//	}
//	client := device.New(t, device.WithTimeout(2*time.Second))
//	defer client.Close()
//
//	bank, err := client.ReadBank(ctx, 0x00)
//	if err != nil {
//	    return err // framing, checksum, timeout or transport failure
//	}
//	if !bank.OK() {
//	    fmt.Println(bank.Status.Description())
//	}
//
// # Status Codes
//
// The trailing status byte is returned in every result's Reply and never
// turned into an error. DEVICE_LOCKED, BANK_OVERFLOW and friends are for
// the caller to judge.
//
// WAIT (0x33) is returned as data unless WithBusyRetry is set, in which case
// the same request is re-sent with exponential backoff until the device
// answers something else or the retry budget is spent.
//
// # Script Jobs
//
// ExecScript submits a job and PollScriptStatus collects its result. The
// device runs one job at a time and keeps no job id, so the caller must not
// interleave two jobs. RunScript does submit-then-poll with backoff pacing.
//
// # Raw Traffic
//
// Each result carries an Exchange with the raw request and response bytes.
// WithObserver additionally reports every exchange to a callback.
//
// # Thread Safety
//
// A Client serializes its commands with a mutex, so only one request is ever
// outstanding on the transport.
package device
