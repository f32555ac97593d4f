// Package archive reads members out of tar archives.
//
// Archives may be plain tar streams or compressed with gzip or bzip2; the
// compression is detected from the leading magic bytes, so callers never
// name it. Two modes are supported:
//
//   - [ModeDefault] returns a single member as a [Member], an owned in-memory
//     copy of the member's bytes. The archive is closed before the call
//     returns, so there is no open handle for the caller to leak.
//   - [ModeAll] extracts every member next to the archive and returns the
//     path the requested member was (or would have been) written to.
//
// # Errors
//
// All failures wrap one of the package sentinels so callers can branch with
// errors.Is:
//
//	ErrArchiveNotFound  - archive path does not exist (also fs.ErrNotExist)
//	ErrMemberNotFound   - member is not in the archive (also fs.ErrNotExist)
//	ErrNotRegularFile   - member is a directory or device, or a link chain loops
//	ErrMalformedArchive - compression or tar framing is corrupt
//	ErrMemberTooLarge   - member exceeds [Reader.MaxMemberSize]
//	ErrUnsafePath       - a member name escapes the extraction directory
//	ErrInvalidMode      - unknown [Mode]
package archive
