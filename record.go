// Record format and the fixed wire grammar of the journal.
//
// Every line in the journal (other than the trailing sentinel) is:
//
//	NNNNNN SP module SP action SP filename LF
//
// NNNNNN is a zero-padded six-digit serial, module matches [A-Za-z0-9-]+,
// action is one of the six canonical names below written padded to a fixed
// width of 8 bytes, and filename runs to the end of the line. The fixed
// action width means that marking a record "un*" during rollback never
// changes the byte length of the line — see RewriteAction in journal.go.
package txn

import (
	"fmt"
	"strings"
)

// Action identifies the kind of change (or undo) a Record represents.
type Action int

// Canonical actions, in the order mandated by the wire grammar.
const (
	ActionCreate Action = iota
	ActionPatch
	ActionRemove
	ActionUncreate
	ActionUnpatch
	ActionUnremove
)

// actionNames is the canonical table used for both encoding and decoding.
// Index position is the Action value.
var actionNames = [...]string{
	ActionCreate:   "create",
	ActionPatch:    "patch",
	ActionRemove:   "remove",
	ActionUncreate: "uncreate",
	ActionUnpatch:  "unpatch",
	ActionUnremove: "unremove",
}

// actionWidth is the fixed on-disk width of the action field: the length
// of the longest canonical name ("uncreate", "unremove" — 8 bytes).
// Shorter names are padded with trailing spaces before the separator.
const actionWidth = 8

// serialWidth is the fixed width of a serial number field.
const serialWidth = 6

func (a Action) String() string {
	if int(a) < 0 || int(a) >= len(actionNames) {
		return "invalid"
	}
	return actionNames[a]
}

// Undone reports whether a is already an "un*" form.
func (a Action) Undone() bool {
	return a == ActionUncreate || a == ActionUnpatch || a == ActionUnremove
}

// Inverse maps an active action to the "un*" form recorded after a
// successful rollback of that entry.
func (a Action) Inverse() (Action, bool) {
	switch a {
	case ActionCreate:
		return ActionUncreate, true
	case ActionPatch:
		return ActionUnpatch, true
	case ActionRemove:
		return ActionUnremove, true
	default:
		return a, false
	}
}

func parseAction(s string) (Action, bool) {
	for i, name := range actionNames {
		if name == s {
			return Action(i), true
		}
	}
	return 0, false
}

// Record is a single logical journal entry.
type Record struct {
	Serial   uint64 // monotonic, zero-based, assigned at append time
	Module   string // [A-Za-z0-9-]+, non-empty
	Action   Action
	Filename string // absolute path, length >= 2
}

// validModuleByte reports whether b is legal in a module name:
// [A-Za-z0-9-].
func validModuleByte(b byte) bool {
	return (b >= 'a' && b <= 'z') || (b >= 'A' && b <= 'Z') ||
		(b >= '0' && b <= '9') || b == '-'
}

func validModule(s string) bool {
	if s == "" {
		return false
	}
	for i := 0; i < len(s); i++ {
		if !validModuleByte(s[i]) {
			return false
		}
	}
	return true
}

// encode renders a Record as its on-disk line, without the trailing
// newline. The caller appends LF.
func (r Record) encode() string {
	return fmt.Sprintf("%0*d %s %-*s %s",
		serialWidth, r.Serial, r.Module, actionWidth, r.Action.String(), r.Filename)
}

// decodeRecord parses a single non-sentinel journal line. The line must
// already have its trailing CR/LF stripped.
func decodeRecord(line string) (Record, error) {
	if len(line) < serialWidth+1 {
		return Record{}, ErrCorrupt
	}

	serialPart := line[:serialWidth]
	var serial uint64
	for i := 0; i < serialWidth; i++ {
		c := serialPart[i]
		if c < '0' || c > '9' {
			return Record{}, ErrCorrupt
		}
		serial = serial*10 + uint64(c-'0')
	}

	rest := line[serialWidth:]
	if len(rest) == 0 || rest[0] != ' ' {
		return Record{}, ErrCorrupt
	}
	rest = rest[1:]

	sp := strings.IndexByte(rest, ' ')
	if sp < 0 {
		return Record{}, ErrCorrupt
	}
	module := rest[:sp]
	if !validModule(module) {
		return Record{}, ErrCorrupt
	}
	rest = rest[sp+1:]

	if len(rest) < actionWidth+1 {
		return Record{}, ErrCorrupt
	}
	actionField := strings.TrimRight(rest[:actionWidth], " ")
	action, ok := parseAction(actionField)
	if !ok {
		return Record{}, ErrCorrupt
	}
	rest = rest[actionWidth:]
	if len(rest) == 0 || rest[0] != ' ' {
		return Record{}, ErrCorrupt
	}
	filename := rest[1:]
	if len(filename) < 2 {
		return Record{}, ErrCorrupt
	}

	return Record{Serial: serial, Module: module, Action: action, Filename: filename}, nil
}

// actionFieldOffset returns the byte offset of the action field within a
// record line, used by RewriteAction for its in-place patch.
func actionFieldOffset(module string) int64 {
	return int64(serialWidth + 1 + len(module) + 1)
}

// encodeSentinel renders the trailing sentinel line for nextIndex.
func encodeSentinel(nextIndex uint64) string {
	return fmt.Sprintf("%0*d", serialWidth, nextIndex)
}
