package archive

import (
	"errors"
	"fmt"
	"io/fs"
)

var (
	ErrArchiveNotFound  = fmt.Errorf("archive not found: %w", fs.ErrNotExist)
	ErrMemberNotFound   = fmt.Errorf("member not found: %w", fs.ErrNotExist)
	ErrNotRegularFile   = errors.New("member is not a regular file")
	ErrMalformedArchive = errors.New("malformed archive")
	ErrMemberTooLarge   = errors.New("member too large")
	ErrUnsafePath       = errors.New("unsafe member path")
	ErrInvalidMode      = errors.New("invalid archive mode")
)
