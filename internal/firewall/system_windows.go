//go:build windows

package firewall

import (
	"os/exec"
	"syscall"
)

const createNoWindow = 0x08000000

// NewSystem returns the netsh-backed controller.
func NewSystem() Controller {
	return NewNetsh(nil)
}

func hideWindow(cmd *exec.Cmd) {
	cmd.SysProcAttr = &syscall.SysProcAttr{HideWindow: true, CreationFlags: createNoWindow}
}
