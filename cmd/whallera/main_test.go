package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"testing"

	"github.com/whallera/whallera/internal/protocol"
	"github.com/whallera/whallera/internal/transport"
	"github.com/whallera/whallera/internal/ui"
)

type cliResult struct {
	stdout string
	stderr string
	code   int
	err    error
}

// runCLI executes the root command against mem with an empty config file
// location, returning what a user would see.
func runCLI(t *testing.T, mem *transport.Memory, stdin string, args ...string) cliResult {
	t.Helper()

	t.Setenv("XDG_CONFIG_HOME", t.TempDir())
	orig := openTransport
	openTransport = func(ctx context.Context, endpoint string, opts transport.Options) (transport.Transport, error) {
		if mem == nil {
			return nil, fmt.Errorf("no device for %s", endpoint)
		}
		return mem, nil
	}
	t.Cleanup(func() { openTransport = orig })

	var stdout, stderr bytes.Buffer
	root := newRootCmd()
	root.SetIn(strings.NewReader(stdin))
	root.SetOut(&stdout)
	root.SetErr(&stderr)

	full := append([]string{"--config", filepath.Join(t.TempDir(), "config.yaml"), "--interface", "mem://test"}, args...)
	root.SetArgs(full)

	err := root.ExecuteContext(context.Background())
	code := exitCode(err, &stderr)
	return cliResult{stdout: stdout.String(), stderr: stderr.String(), code: code, err: err}
}

func respond(status protocol.Status, payload ...byte) []byte {
	return protocol.EncodeResponse(payload, status)
}

func TestCLI_ReadBank(t *testing.T) {
	mem := transport.NewMemory("test")
	mem.Enqueue(respond(protocol.StatusOK, 0x05, 0x00, 'h', 'e', 'l', 'l', 'o'))

	res := runCLI(t, mem, "", "read-bank", "0x03", "--no-interactive")
	if res.code != exitOK {
		t.Fatalf("exit = %d, err = %v, stderr = %q", res.code, res.err, res.stderr)
	}
	if res.stdout != "hello\n" {
		t.Errorf("stdout = %q, want %q", res.stdout, "hello\n")
	}
	if got, want := mem.LastWrite(), protocol.Encode(protocol.CmdReadBank, []byte{0x03}); !bytes.Equal(got, want) {
		t.Errorf("request = % X, want % X", got, want)
	}
}

func TestCLI_StyledOutputShowsEveryDetail(t *testing.T) {
	tests := []struct {
		name     string
		response []byte
		args     []string
		want     []string
	}{
		{
			name:     "read-bank content",
			response: respond(protocol.StatusOK, 0x05, 0x00, 'h', 'e', 'l', 'l', 'o'),
			args:     []string{"read-bank", "3"},
			want:     []string{"Length:", "Content:", "hello"},
		},
		{
			name:     "device-unlock remaining attempts",
			response: respond(protocol.StatusDeviceLocked, 0x02),
			args:     []string{"device-unlock", "1234"},
			want:     []string{"DEVICE_LOCKED", "Remaining:", "attempts"},
		},
		{
			name:     "version zenroom",
			response: respond(protocol.StatusOK, make([]byte, 18)...),
			args:     []string{"version"},
			want:     []string{"UDID:", "Firmware:", "Zenroom:"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mem := transport.NewMemory("test")
			mem.Enqueue(tt.response)

			// No --no-interactive: output goes through the styled boxes
			res := runCLI(t, mem, "", tt.args...)
			if res.code == exitProtocolError {
				t.Fatalf("exit = %d, err = %v", res.code, res.err)
			}
			for _, want := range tt.want {
				if !strings.Contains(res.stdout, want) {
					t.Errorf("stdout missing %q:\n%s", want, res.stdout)
				}
			}
		})
	}
}

func TestCLI_ReadBank_Locked(t *testing.T) {
	mem := transport.NewMemory("test")
	mem.Enqueue(respond(protocol.StatusBankLocked))

	res := runCLI(t, mem, "", "read-bank", "3", "--no-interactive")
	if res.code != exitStatus {
		t.Errorf("exit = %d, want %d", res.code, exitStatus)
	}
	if !strings.Contains(res.stderr, protocol.StatusBankLocked.Description()) {
		t.Errorf("stderr = %q, want the status description", res.stderr)
	}
}

func TestCLI_DeviceUnlock_ReportsRemainingAttempts(t *testing.T) {
	mem := transport.NewMemory("test")
	mem.Enqueue(respond(protocol.StatusDeviceLocked, 0x02))

	res := runCLI(t, mem, "", "device-unlock", "1234", "--no-interactive")
	if res.code != exitStatus {
		t.Errorf("exit = %d, want %d", res.code, exitStatus)
	}
	for _, want := range []string{"Status: DEVICE_LOCKED", "2 attempts remaining before factory reset"} {
		if !strings.Contains(res.stdout, want) {
			t.Errorf("stdout missing %q:\n%s", want, res.stdout)
		}
	}
	if got, want := mem.LastWrite(), protocol.Encode(protocol.CmdDeviceUnlock, protocol.Uint32(1234)); !bytes.Equal(got, want) {
		t.Errorf("request = % X, want % X", got, want)
	}
}

func TestCLI_SilentDeviceExitsProtocolError(t *testing.T) {
	mem := transport.NewMemory("test")

	res := runCLI(t, mem, "", "device-locked", "--no-interactive", "--timeout", "20ms")
	if res.code != exitProtocolError {
		t.Errorf("exit = %d, want %d (err = %v)", res.code, exitProtocolError, res.err)
	}
	if !protocol.IsTimeoutError(res.err) {
		t.Errorf("err = %v, want a timeout", res.err)
	}
}

func TestCLI_WriteBank(t *testing.T) {
	t.Run("declined confirmation sends nothing", func(t *testing.T) {
		mem := transport.NewMemory("test")
		res := runCLI(t, mem, "no\n", "write-bank", "1", "hello")
		if res.code != exitOK {
			t.Errorf("exit = %d, want %d", res.code, exitOK)
		}
		if !errors.Is(res.err, errCancelled) {
			t.Errorf("err = %v, want errCancelled", res.err)
		}
		if len(mem.Writes()) != 0 {
			t.Errorf("device received %d frames", len(mem.Writes()))
		}
	})

	t.Run("content from stdin", func(t *testing.T) {
		mem := transport.NewMemory("test")
		mem.Enqueue(respond(protocol.StatusOK))

		res := runCLI(t, mem, "abc", "write-bank", "2", "-", "--no-interactive")
		if res.code != exitOK {
			t.Fatalf("exit = %d, err = %v", res.code, res.err)
		}
		want := protocol.Encode(protocol.CmdWriteBank, []byte{0x02, 0x03, 0x00, 'a', 'b', 'c'})
		if got := mem.LastWrite(); !bytes.Equal(got, want) {
			t.Errorf("request = % X, want % X", got, want)
		}
	})

	t.Run("non-ASCII content rejected before sending", func(t *testing.T) {
		mem := transport.NewMemory("test")
		res := runCLI(t, mem, "", "write-bank", "2", "caffè", "--no-interactive")
		if res.code != exitStatus {
			t.Errorf("exit = %d, want %d", res.code, exitStatus)
		}
		if len(mem.Writes()) != 0 {
			t.Errorf("device received %d frames", len(mem.Writes()))
		}
	})
}

func TestCLI_InvalidArguments(t *testing.T) {
	tests := []struct {
		name string
		args []string
	}{
		{"unknown mode", []string{"operating-mode", "TURBO"}},
		{"unknown led config", []string{"led-conf-set", "STROBE"}},
		{"bank out of range", []string{"read-bank", "256"}},
		{"phrase not a number", []string{"set-phrase", "secret"}},
		{"phrase too large", []string{"device-unlock", "4294967296"}},
		{"too few script banks", []string{"exec-script", "1", "2", "3"}},
		{"bad format", []string{"version", "--format", "xml"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mem := transport.NewMemory("test")
			res := runCLI(t, mem, "", append(tt.args, "--no-interactive")...)
			if res.code != exitStatus {
				t.Errorf("exit = %d, want %d (err = %v)", res.code, exitStatus, res.err)
			}
			if len(mem.Writes()) != 0 {
				t.Errorf("device received %d frames", len(mem.Writes()))
			}
		})
	}
}

func TestCLI_VersionJSON(t *testing.T) {
	payload := make([]byte, 0, 18)
	for i := 0; i < 12; i++ {
		payload = append(payload, byte(i))
	}
	payload = append(payload, 1, 4, 2, 3, 0, 1)

	mem := transport.NewMemory("test")
	mem.Enqueue(respond(protocol.StatusOK, payload...))

	res := runCLI(t, mem, "", "version", "--format", "json")
	if res.code != exitOK {
		t.Fatalf("exit = %d, err = %v", res.code, res.err)
	}

	var out jsonReply
	if err := json.Unmarshal([]byte(res.stdout), &out); err != nil {
		t.Fatalf("stdout is not JSON: %v\n%s", err, res.stdout)
	}
	if out.Command != "VERSION" || out.Status != "OK" || out.Attempts != 1 {
		t.Errorf("reply = %+v", out)
	}
	if out.Details["UDID"] != "000102030405060708090a0b" || out.Details["Firmware"] != "1.4.2" || out.Details["Zenroom"] != "3.0.1" {
		t.Errorf("details = %v", out.Details)
	}
}

func TestCLI_RunScript(t *testing.T) {
	tests := []struct {
		name     string
		exitCode byte
		wantCode int
	}{
		{"script succeeds", protocol.ScriptExitOK, exitOK},
		{"script fails", protocol.ScriptExitError, exitStatus},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			polls := 0
			mem := transport.NewMemory("test")
			mem.SetResponder(func(request []byte) ([]byte, bool) {
				req, err := protocol.DecodeRequest(request)
				if err != nil {
					return respond(protocol.StatusChecksumError), true
				}
				if req.Command == protocol.CmdExecScript {
					return respond(protocol.StatusOK), true
				}
				polls++
				if polls < 3 {
					return respond(protocol.StatusWait), true
				}
				return respond(protocol.StatusOK, tt.exitCode), true
			})

			res := runCLI(t, mem, "", "run-script", "1", "2", "3", "4", "5",
				"--no-interactive", "--poll-initial", "1ms", "--poll-max", "2ms")
			if res.code != tt.wantCode {
				t.Fatalf("exit = %d, want %d (err = %v)", res.code, tt.wantCode, res.err)
			}
			if polls != 3 {
				t.Errorf("polls = %d, want 3", polls)
			}
			if !strings.Contains(res.stdout, fmt.Sprintf("Exit code: %d", tt.exitCode)) {
				t.Errorf("stdout missing exit code:\n%s", res.stdout)
			}
			if !strings.Contains(res.stderr, "WAIT") {
				t.Errorf("progress not reported on stderr:\n%s", res.stderr)
			}

			wantSubmit := protocol.Encode(protocol.CmdExecScript, []byte{1, 2, 3, 4, 5})
			if got := mem.Writes()[0]; !bytes.Equal(got, wantSubmit) {
				t.Errorf("submit = % X, want % X", got, wantSubmit)
			}
		})
	}
}

func TestCLI_ConfigInitAndShow(t *testing.T) {
	path := filepath.Join(t.TempDir(), "whallera.yaml")

	root := newRootCmd()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs([]string{"--config", path, "--no-interactive", "--busy-retries", "4", "config", "init"})
	if err := root.Execute(); err != nil {
		t.Fatalf("config init: %v", err)
	}

	root = newRootCmd()
	out.Reset()
	root.SetOut(&out)
	root.SetArgs([]string{"--config", path, "config", "show"})
	if err := root.Execute(); err != nil {
		t.Fatalf("config show: %v", err)
	}
	if !strings.Contains(out.String(), "max_retries: 4") {
		t.Errorf("saved config lost the override:\n%s", out.String())
	}

	root = newRootCmd()
	root.SetOut(&out)
	root.SetArgs([]string{"--config", path, "config", "init"})
	if err := root.Execute(); err == nil {
		t.Error("config init should refuse to overwrite without --force")
	}
}

func TestExitCode(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		want       int
		wantStderr string
	}{
		{"nil", nil, exitOK, ""},
		{"cancelled", errCancelled, exitOK, "Cancelled"},
		{"device status", &statusError{cmd: protocol.CmdDeviceLock, status: protocol.StatusDeviceLocked}, exitStatus, ""},
		{"timeout", protocol.NewTimeoutError(0), exitProtocolError, "Error:"},
		{"wrapped checksum", fmt.Errorf("VERSION: %w", protocol.NewChecksumError(1, 2, nil)), exitProtocolError, "Error:"},
		{"interrupted", ui.ErrInterrupted, exitStatus, "Interrupted"},
		{"context cancelled", context.Canceled, exitStatus, "Interrupted"},
		{"usage", errors.New("bad bank"), exitStatus, "Error: bad bank"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var stderr bytes.Buffer
			if got := exitCode(tt.err, &stderr); got != tt.want {
				t.Errorf("exitCode() = %d, want %d", got, tt.want)
			}
			if tt.wantStderr == "" && stderr.Len() != 0 {
				t.Errorf("unexpected stderr %q", stderr.String())
			}
			if !strings.Contains(stderr.String(), tt.wantStderr) {
				t.Errorf("stderr = %q, want %q", stderr.String(), tt.wantStderr)
			}
		})
	}
}
