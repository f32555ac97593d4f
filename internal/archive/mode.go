package archive

import (
	"fmt"
	"strings"
)

// Mode selects how [Reader.Read] hands a member back.
type Mode int

const (
	// ModeDefault reads the target member into memory.
	ModeDefault Mode = iota
	// ModeAll extracts the whole archive next to it on disk.
	ModeAll
)

// String returns the name accepted by ParseMode.
func (m Mode) String() string {
	switch m {
	case ModeDefault:
		return "default"
	case ModeAll:
		return "all"
	default:
		return fmt.Sprintf("Mode(%d)", int(m))
	}
}

// Valid reports whether m is one of the declared modes.
func (m Mode) Valid() bool {
	return m == ModeDefault || m == ModeAll
}

// ParseMode converts a mode name to a Mode.
// The empty string means ModeDefault. Unknown names are rejected rather than
// treated as the default.
func ParseMode(s string) (Mode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "default":
		return ModeDefault, nil
	case "all":
		return ModeAll, nil
	default:
		return 0, fmt.Errorf("%w: %q (must be one of: default, all)", ErrInvalidMode, s)
	}
}
