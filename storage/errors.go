package storage

import "errors"

// Storage error constants
var (
	// ErrDatabaseClosed is returned when an operation is attempted on a closed store
	ErrDatabaseClosed = errors.New("database is closed")

	// ErrNilRecord is returned when a nil event or alert is passed to an insert
	ErrNilRecord = errors.New("nil record")

	// ErrUnsupportedDriver is returned for a storage driver name that is not sqlite or clickhouse
	ErrUnsupportedDriver = errors.New("unsupported storage driver")
)
