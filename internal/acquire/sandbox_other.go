//go:build !unix

package acquire

import "os/exec"

// applySandbox is a no-op on platforms without POSIX credentials; the
// sandbox-user feature only applies on unix-like method hosts.
func applySandbox(cmd *exec.Cmd, sandboxUser string) error {
	return nil
}
