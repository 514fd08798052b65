package launch

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"

	"github.com/nsbox/launchd/launch/errkind"
)

// Fixed ExtraFiles positions every reexec'd process agrees on without
// further negotiation (spec §4.1, §6). Extra namespace fds, when present,
// are passed to the intermediate only and start at fdExtraBase: the client
// mount namespace fd (if any) first, then the parent namespace fds in
// pkg/nsfd's enterOrder. fdSyncR is used by the init only, so both share
// fd 5 in different processes.
const (
	fdSpecR     = 3 // gob-encoded wireEnv, read once at startup
	fdStatusW   = 4 // status pipe write end, child -> supervisor
	fdSyncR     = 5 // sync pipe read end, init blocks here until released
	fdExtraBase = 5 // first namespace fd in the intermediate
)

// writeStatusPid writes the 4-byte init pid word. -1 signals clone failure
// so the supervisor's read never blocks (spec §4.1 step 8).
func writeStatusPid(w io.Writer, pid int) error {
	return binary.Write(w, binary.BigEndian, int32(pid))
}

// readStatusPid reads the 4-byte init pid word. Any short read is reported
// as a resource-limit failure per spec §4.1 step 2.
func readStatusPid(r io.Reader) (int, error) {
	var pid int32
	if err := binary.Read(r, binary.BigEndian, &pid); err != nil {
		return 0, fmt.Errorf("launch: short read on status pid (resource limits): %w", err)
	}
	return int(pid), nil
}

// writeStatusError writes a length-prefixed gob-encoded errkind.Error.
// Only called on a failure path; success is signaled by never writing
// anything and letting every writer's close-on-exec copy of the status fd
// close, which readStatusError observes as EOF.
func writeStatusError(w io.Writer, e *errkind.Error) error {
	payload, err := errkind.Encode(e)
	if err != nil {
		return err
	}
	if err := binary.Write(w, binary.BigEndian, uint32(len(payload))); err != nil {
		return err
	}
	_, err = w.Write(payload)
	return err
}

// readStatusError reads the optional length-prefixed error segment. EOF
// before any bytes arrive is success (spec §4.1 step 3: "empty error
// structure").
func readStatusError(r io.Reader) (*errkind.Error, error) {
	var length uint32
	err := binary.Read(r, binary.BigEndian, &length)
	if errors.Is(err, io.EOF) {
		return &errkind.Error{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("launch: read status error length: %w", err)
	}
	payload := make([]byte, length)
	if _, err := io.ReadFull(r, payload); err != nil {
		return nil, fmt.Errorf("launch: read status error payload: %w", err)
	}
	return errkind.Decode(payload)
}

// writeSyncGo writes the 4-byte "go" word releasing the init from its
// sync-pipe read (spec §4.1 step 10).
func writeSyncGo(w io.Writer) error {
	return binary.Write(w, binary.BigEndian, uint32(0x676f0a00)) // "go\n\x00"
}

// readSyncGo blocks until the intermediate's go word arrives.
func readSyncGo(r io.Reader) error {
	var word uint32
	if err := binary.Read(r, binary.BigEndian, &word); err != nil {
		return fmt.Errorf("launch: sync pipe read: %w", err)
	}
	return nil
}
