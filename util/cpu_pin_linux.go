//go:build linux

package util

import (
	"fmt"
	"os"
	"runtime"

	"golang.org/x/sys/unix"
)

// PinThread locks the calling goroutine to its OS thread and restricts that thread to cpus. The returned function
// releases the goroutine lock; the affinity stays with the thread.
func PinThread(cpus ...int) (unlock func(), err error) {
	if len(cpus) == 0 {
		return nil, errNoCPU
	}

	var want unix.CPUSet
	for _, cpu := range cpus {
		want.Set(cpu)
	}

	runtime.LockOSThread()
	if err := unix.SchedSetaffinity(0, &want); err != nil {
		runtime.UnlockOSThread()
		return nil, os.NewSyscallError("sched_setaffinity", err)
	}

	var got unix.CPUSet
	if err := unix.SchedGetaffinity(0, &got); err != nil {
		runtime.UnlockOSThread()
		return nil, os.NewSyscallError("sched_getaffinity", err)
	}
	if got != want {
		runtime.UnlockOSThread()
		return nil, fmt.Errorf("could not pin to CPUs %v", cpus)
	}
	return runtime.UnlockOSThread, nil
}

// AllowedCPUs lists the CPUs the calling thread may run on.
func AllowedCPUs() ([]int, error) {
	var set unix.CPUSet
	if err := unix.SchedGetaffinity(0, &set); err != nil {
		return nil, os.NewSyscallError("sched_getaffinity", err)
	}

	var cpus []int
	for cpu := 0; len(cpus) < set.Count(); cpu++ {
		if set.IsSet(cpu) {
			cpus = append(cpus, cpu)
		}
	}
	return cpus, nil
}
