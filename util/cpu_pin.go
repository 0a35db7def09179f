package util

import "errors"

var errNoCPU = errors.New("no CPU to pin to")
