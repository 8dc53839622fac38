//go:build !windows

package firewall

import "os/exec"

// NewSystem returns a controller that reports ErrUnsupported.
func NewSystem() Controller {
	return Unsupported{}
}

func hideWindow(*exec.Cmd) {}
