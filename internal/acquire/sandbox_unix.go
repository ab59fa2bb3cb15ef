//go:build unix

package acquire

import (
	"fmt"
	"os/exec"
	"os/user"
	"strconv"
	"syscall"
)

// applySandbox arranges for cmd's process to run under sandboxUser, per
// §4.5's "workers drop to the sandbox user immediately after fd
// inheritance." A real apt does this via a setuid helper after fork; Go's
// os/exec has no fork/exec split to hook between them, so this uses
// SysProcAttr.Credential, which the kernel applies at exec time — the
// closest equivalent available without cgo.
func applySandbox(cmd *exec.Cmd, sandboxUser string) error {
	if sandboxUser == "" {
		return nil
	}
	u, err := user.Lookup(sandboxUser)
	if err != nil {
		return err
	}
	uid, err := strconv.ParseUint(u.Uid, 10, 32)
	if err != nil {
		return fmt.Errorf("sandbox user uid: %w", err)
	}
	gid, err := strconv.ParseUint(u.Gid, 10, 32)
	if err != nil {
		return fmt.Errorf("sandbox user gid: %w", err)
	}
	cmd.SysProcAttr = &syscall.SysProcAttr{
		Credential: &syscall.Credential{Uid: uint32(uid), Gid: uint32(gid)},
	}
	return nil
}
