//go:build !windows

package supervisor

import "syscall"

// procAttr returns the SysProcAttr that puts the child in its own process
// group so Stop can signal the whole group (the child plus anything it
// forked, e.g. a JVM's watchdog thread helpers) instead of just the direct
// child pid.
func procAttr() *syscall.SysProcAttr {
	return &syscall.SysProcAttr{Setpgid: true}
}

// signalGroup sends sig to the process group led by pid.
func signalGroup(pid int, sig syscall.Signal) error {
	return syscall.Kill(-pid, sig)
}
