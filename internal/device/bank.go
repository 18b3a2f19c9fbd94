package device

import (
	"fmt"
	"strconv"
	"strings"
)

// ParseBankID parses a bank id written as decimal ("31") or hex ("0x1F").
func ParseBankID(s string) (uint8, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, fmt.Errorf("empty bank id")
	}

	base := 10
	digits := s
	if strings.HasPrefix(s, "0x") || strings.HasPrefix(s, "0X") {
		base = 16
		digits = s[2:]
	}

	v, err := strconv.ParseUint(digits, base, 8)
	if err != nil {
		return 0, fmt.Errorf("invalid bank id %q (use 0-255 or 0x00-0xFF)", s)
	}
	return uint8(v), nil
}

// ParseBankIDs parses several bank ids, stopping at the first invalid one
func ParseBankIDs(args []string) ([]uint8, error) {
	ids := make([]uint8, 0, len(args))
	for _, a := range args {
		id, err := ParseBankID(a)
		if err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, nil
}
