package minikv

import (
	"errors"
	"fmt"

	pkgerrors "github.com/pkg/errors"
)

var (
	// ErrStorageUnavailable is returned by Open and Destroy when the
	// directory cannot be acquired or initialized.
	ErrStorageUnavailable = errors.New("storage unavailable")

	// ErrIOFailure wraps read and write faults against the data files.
	ErrIOFailure = errors.New("io failure")

	ErrKeyIsEmpty          = errors.New("the key is empty")
	ErrDatabaseClosed      = errors.New("the database is closed")
	ErrDatabaseIsUsing     = errors.New("the database directory is used by another process")
	ErrDataDirCorrupted    = errors.New("the database directory maybe corrupted")
	ErrDirPathIsEmpty      = errors.New("database dir path is empty")
	ErrDataFileSizeInvalid = errors.New("database data file size must be greater than 0")
	ErrIndexTypeInvalid    = errors.New("unsupported index type")
	ErrIndexUpdateFailed   = errors.New("failed to update index")
	ErrDataFileNotFound    = errors.New("data file is not found")
	ErrNotStoreDir         = errors.New("the directory is not a minikv store")
)

// storageUnavailable and ioFailure record the stack where the fault surfaced;
// logger.Error prints it.
func storageUnavailable(err error) error {
	return pkgerrors.WithStack(fmt.Errorf("%w: %w", ErrStorageUnavailable, err))
}

func ioFailure(err error) error {
	return pkgerrors.WithStack(fmt.Errorf("%w: %w", ErrIOFailure, err))
}
