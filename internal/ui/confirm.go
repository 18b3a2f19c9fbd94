package ui

import (
	"bufio"
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/lipgloss"
)

// Confirmation describes a destructive command the user must approve
type Confirmation struct {
	Title    string
	Warnings []string
}

// Confirm renders c as a warning box on out and reads a yes/no answer from in.
// Only "y" or "yes" (any case) approves; EOF or anything else declines.
func Confirm(in io.Reader, out io.Writer, c Confirmation) bool {
	width := GetTerminalWidth()

	lines := []string{
		"",
		WarningTitleStyle.Render(fmt.Sprintf("   %s  WARNING  ─  %s", WarningMarker, c.Title)),
		"",
	}
	bulletStyle := lipgloss.NewStyle().Foreground(TextColor)
	for _, warning := range c.Warnings {
		lines = append(lines, bulletStyle.Render("   • "+warning))
	}
	lines = append(lines, "")

	_, _ = fmt.Fprintln(out, boxStyle(WarningColor, width).Render(strings.Join(lines, "\n")))
	_, _ = fmt.Fprint(out, WarningTitleStyle.Render("Proceed? [y/N]: "))

	input, err := bufio.NewReader(in).ReadString('\n')
	if err != nil && input == "" {
		_, _ = fmt.Fprintln(out)
		return false
	}

	switch strings.ToLower(strings.TrimSpace(input)) {
	case "y", "yes":
		return true
	}

	_, _ = fmt.Fprintln(out, lipgloss.NewStyle().Foreground(MutedColor).Render("  Operation cancelled."))
	return false
}

// WriteBankConfirmation warns before overwriting a bank
func WriteBankConfirmation(bank uint8, length int) Confirmation {
	return Confirmation{
		Title: fmt.Sprintf("OVERWRITE BANK %d", bank),
		Warnings: []string{
			fmt.Sprintf("The current contents of bank %d will be replaced with %d bytes", bank, length),
			"The previous contents cannot be recovered",
		},
	}
}

// SetPhraseConfirmation warns before changing the unlock phrase
func SetPhraseConfirmation() Confirmation {
	return Confirmation{
		Title: "CHANGE UNLOCK PHRASE",
		Warnings: []string{
			"The device will only unlock with the new phrase",
			"Losing the phrase leaves factory reset as the only way back in",
		},
	}
}

// OperatingModeConfirmation warns before switching the device mode
func OperatingModeConfirmation(mode string) Confirmation {
	return Confirmation{
		Title: "CHANGE OPERATING MODE",
		Warnings: []string{
			"The device will switch to " + mode + " mode",
			"Leaving bootloader mode may require a power cycle",
		},
	}
}

// FactoryResetConfirmation warns before erasing the device
func FactoryResetConfirmation() Confirmation {
	return Confirmation{
		Title: "FACTORY RESET",
		Warnings: []string{
			"Every bank and the unlock phrase will be erased",
			"This cannot be undone",
			"Do not disconnect the device until the command completes",
		},
	}
}
