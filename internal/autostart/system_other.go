//go:build !windows

package autostart

// NewSystem returns the XDG autostart registrar.
func NewSystem() Registrar {
	return NewXDG("")
}
