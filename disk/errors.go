package disk

import "errors"

var (
	ErrInvalidGeometry = errors.New("track or sector out of range")
	ErrInvalidImage    = errors.New("not a d64 disk image")
	ErrDiskFull        = errors.New("disk full")
	ErrFileNotFound    = errors.New("file not found")
	ErrFileExists      = errors.New("file already exists")
	ErrRelTooLarge     = errors.New("relative file exceeds six side sectors")
	ErrInvalidRel      = errors.New("invalid relative file")
	ErrInvalidArgument = errors.New("invalid argument")
)
