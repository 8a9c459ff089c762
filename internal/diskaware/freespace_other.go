//go:build !linux && !darwin && !freebsd && !windows

package diskaware

import "errors"

func statFree(string) (uint64, error) {
	return 0, errors.New("free space query not supported on this platform")
}
