package ui

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/whallera/whallera/internal/protocol"
)

func TestConfirm(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  bool
	}{
		{"yes", "yes\n", true},
		{"y upper", "Y\n", true},
		{"yes without newline", "yes", true},
		{"no", "n\n", false},
		{"empty line", "\n", false},
		{"EOF", "", false},
		{"other word", "sure\n", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var out bytes.Buffer
			got := Confirm(strings.NewReader(tt.input), &out, FactoryResetConfirmation())
			if got != tt.want {
				t.Errorf("Confirm(%q) = %v, want %v", tt.input, got, tt.want)
			}
			if !strings.Contains(out.String(), "FACTORY RESET") {
				t.Errorf("warning box not rendered:\n%s", out.String())
			}
		})
	}
}

func TestConfirmations(t *testing.T) {
	c := WriteBankConfirmation(7, 12)
	if !strings.Contains(c.Title, "7") || !strings.Contains(c.Warnings[0], "12 bytes") {
		t.Errorf("WriteBankConfirmation() = %+v", c)
	}
	if c := OperatingModeConfirmation("bootloader"); !strings.Contains(c.Warnings[0], "bootloader") {
		t.Errorf("OperatingModeConfirmation() = %+v", c)
	}
	if c := SetPhraseConfirmation(); len(c.Warnings) == 0 {
		t.Error("SetPhraseConfirmation() has no warnings")
	}
}

func TestNewStatusResult(t *testing.T) {
	tests := []struct {
		status   protocol.Status
		wantType ResultType
	}{
		{protocol.StatusOK, ResultSuccess},
		{protocol.StatusWait, ResultWarning},
		{protocol.StatusBankLocked, ResultFailure},
		{protocol.Status(0xC7), ResultFailure},
	}

	for _, tt := range tests {
		t.Run(tt.status.String(), func(t *testing.T) {
			r := NewStatusResult("Read bank", tt.status, Detail{Key: "Bank", Value: "3"})
			if r.Type != tt.wantType {
				t.Errorf("Type = %v, want %v", r.Type, tt.wantType)
			}
			if r.Details[0].Value != tt.status.String() || r.Details[1].Key != "Bank" {
				t.Errorf("Details = %+v", r.Details)
			}
			if tt.wantType == ResultFailure && r.Error == nil {
				t.Error("failure result should carry the status description")
			}
		})
	}
}

func TestResult_Render(t *testing.T) {
	r := NewSuccessResult("Version read",
		Detail{Key: "Firmware", Value: "1.4.2"},
		Detail{Key: "UDID", Value: "000102030405060708090a0b"},
	).SetWidth(80)

	out := r.Render()
	for _, want := range []string{"OK", "Version read", "Firmware:", "1.4.2", "UDID:"} {
		if !strings.Contains(out, want) {
			t.Errorf("Render() missing %q:\n%s", want, out)
		}
	}
	if strings.Index(out, "Firmware") > strings.Index(out, "UDID") {
		t.Error("details rendered out of order")
	}

	fail := NewFailureResult("Read failed", errors.New("no response"), []string{"Check the cable"}).Render()
	for _, want := range []string{"FAILED", "no response", "Troubleshooting:", "Check the cable"} {
		if !strings.Contains(fail, want) {
			t.Errorf("failure Render() missing %q", want)
		}
	}
}

func TestRender_KeepsEveryDetail(t *testing.T) {
	result := NewStatusResult("Bank 3", protocol.StatusOK,
		Detail{Key: "Bank", Value: "3"},
		Detail{Key: "Length", Value: "4"},
		Detail{Key: "Content", Value: "ciao"},
	).SetWidth(80).Render()

	header := NewHeader("Run script", "whallera run-script 1 2 3 4 5",
		Detail{Key: "Interface", Value: "mem://test"},
		Detail{Key: "Stderr bank", Value: "5"},
	).SetWidth(80).Render()

	tests := []struct {
		name     string
		rendered string
		want     []string
	}{
		{"result", result, []string{"Status:", "Bank:", "Length:", "Content:", "ciao"}},
		{"header", header, []string{"Interface:", "mem://test", "Stderr bank:"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for _, want := range tt.want {
				if !strings.Contains(tt.rendered, want) {
					t.Errorf("Render() missing %q:\n%s", want, tt.rendered)
				}
			}
		})
	}
}

func TestHeader_Render(t *testing.T) {
	h := NewHeader("Run script", "whallera run-script 1 2 3 4 5",
		Detail{Key: "Interface", Value: "mem://test"},
	).SetWidth(80)
	out := h.Render()
	for _, want := range []string{"RUN SCRIPT", "whallera run-script", "Interface:", "mem://test"} {
		if !strings.Contains(out, want) {
			t.Errorf("Render() missing %q:\n%s", want, out)
		}
	}
}

func TestPrinter_Plain(t *testing.T) {
	var out bytes.Buffer
	p := NewPrinter(&out, true)

	p.PrintHeader(NewHeader("ignored", "ignored"))
	p.PrintResult(NewStatusResult("Unlock", protocol.StatusDeviceLocked, Detail{Key: "Remaining attempts", Value: "2"}))

	want := "Status: DEVICE_LOCKED\nRemaining attempts: 2\nerror: "
	if !strings.HasPrefix(out.String(), want) {
		t.Errorf("plain output = %q, want prefix %q", out.String(), want)
	}
}

func TestSpinnerModel(t *testing.T) {
	var m tea.Model = newSpinnerModel("Running script")

	m, _ = m.Update(detailMsg("poll 3: WAIT"))
	if view := m.View(); !strings.Contains(view, "Running script") || !strings.Contains(view, "poll 3: WAIT") {
		t.Errorf("View() = %q", view)
	}

	wantErr := errors.New("boom")
	m, cmd := m.Update(taskDoneMsg{err: wantErr})
	if cmd == nil {
		t.Fatal("task completion should quit the program")
	}
	sm := m.(spinnerModel)
	if !sm.done || !errors.Is(sm.err, wantErr) {
		t.Errorf("model after done = %+v", sm)
	}
	if sm.View() != "" {
		t.Error("finished spinner should render nothing")
	}
}

func TestSpinnerModel_Interrupt(t *testing.T) {
	var m tea.Model = newSpinnerModel("Running script")
	m, cmd := m.Update(tea.KeyMsg{Type: tea.KeyCtrlC})
	if cmd == nil || !m.(spinnerModel).interrupted {
		t.Error("ctrl+c should interrupt")
	}
}

func TestRunPlain(t *testing.T) {
	var out bytes.Buffer
	err := RunPlain(context.Background(), &out, "Running script", func(ctx context.Context, report func(string)) error {
		report("submitted")
		report("exit code 0")
		return nil
	})
	if err != nil {
		t.Fatalf("RunPlain() error: %v", err)
	}
	if got, want := out.String(), "Running script\n  submitted\n  exit code 0\n"; got != want {
		t.Errorf("output = %q, want %q", got, want)
	}
}
