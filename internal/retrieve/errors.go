package retrieve

import (
	"errors"
	"fmt"
)

// ErrOutputDirMissing is returned when a download targets a directory that
// does not exist.
var ErrOutputDirMissing = errors.New("retrieve: output directory does not exist")

// ErrTransfer matches every *TransferError.
var ErrTransfer = errors.New("retrieve: transfer failed")

// TransferError records the reference whose download or open failed.
type TransferError struct {
	Ref string
	Err error
}

func (e *TransferError) Error() string {
	return fmt.Sprintf("retrieve %s: %v", e.Ref, e.Err)
}

func (e *TransferError) Unwrap() error {
	return e.Err
}

// Is makes errors.Is(err, ErrTransfer) hold.
func (e *TransferError) Is(target error) bool {
	return target == ErrTransfer
}
