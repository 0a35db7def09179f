//go:build !linux

package util

func PinThread(cpus ...int) (unlock func(), err error) {
	return nil, errNoCPU
}

func AllowedCPUs() ([]int, error) {
	return nil, errNoCPU
}
