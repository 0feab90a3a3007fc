package common

import "errors"

var ErrModulePaused = errors.New("module paused")

// PauseView exposes the process-wide pause switches consulted before any
// state-mutating operation.
type PauseView interface {
	IsPaused(module string) bool
}

// Guard rejects the call when the named module is paused. A nil view or empty
// module name disables the check.
func Guard(p PauseView, module string) error {
	if p == nil || module == "" {
		return nil
	}
	if p.IsPaused(module) {
		return ErrModulePaused
	}
	return nil
}
