package fl

import "errors"

var (
	ErrEmptyInput     = errors.New("no submissions provided for aggregation")
	ErrSchemaMismatch = errors.New("submissions disagree on parameter schema")
	ErrUnnamedParam   = errors.New("parameters must be a named numeric map")
	ErrZeroWeight     = errors.New("total submission weight is zero")
)
