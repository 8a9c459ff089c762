package diskaware

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
)

// ErrFreeSpaceUndetectable is returned when neither a path nor any of its
// ancestors exists, so there is no filesystem to ask.
var ErrFreeSpaceUndetectable = errors.New("diskaware: cannot determine free space")

// FreeSpaceProvider reports the bytes available to the current user on the
// filesystem that would hold path.
type FreeSpaceProvider interface {
	Free(path string) (uint64, error)
}

// Static reports a fixed amount of free space.
type Static uint64

// Free implements FreeSpaceProvider.
func (s Static) Free(string) (uint64, error) {
	return uint64(s), nil
}

// StatfsProvider asks the operating system. Paths that do not exist yet are
// resolved to their nearest existing ancestor.
type StatfsProvider struct{}

// Free implements FreeSpaceProvider.
func (StatfsProvider) Free(path string) (uint64, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return 0, fmt.Errorf("%w: %s: %v", ErrFreeSpaceUndetectable, path, err)
	}

	existing, err := nearestExisting(abs, func(p string) bool {
		_, err := os.Stat(p)
		return err == nil
	})
	if err != nil {
		return 0, err
	}

	free, err := statFree(existing)
	if err != nil {
		return 0, fmt.Errorf("%w: %s: %v", ErrFreeSpaceUndetectable, existing, err)
	}
	return free, nil
}

// nearestExisting walks up from path to the first directory exists reports
// true for.
func nearestExisting(path string, exists func(string) bool) (string, error) {
	p := filepath.Clean(path)
	for {
		if exists(p) {
			return p, nil
		}
		parent := filepath.Dir(p)
		if parent == p {
			return "", fmt.Errorf("%w: no existing ancestor of %s", ErrFreeSpaceUndetectable, path)
		}
		p = parent
	}
}
