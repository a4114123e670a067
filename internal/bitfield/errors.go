package bitfield

import "errors"

var (
	errInvalidLength = errors.New("bitfield: byte slice length does not match piece count")
	errSpareBitsSet  = errors.New("bitfield: spare trailing bits are set")
)
