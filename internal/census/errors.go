package census

import "errors"

var (
	ErrMissingHeader = errors.New("missing csv header")
	ErrMalformedCSV  = errors.New("malformed csv")
	ErrMissingColumn = errors.New("missing required column")
	ErrColumnType    = errors.New("invalid column type")
)
