package infodownloader

import "errors"

var (
	errNoMetadataExtension = errors.New("infodownloader: peer does not support ut_metadata")
	errPieceOutOfRange     = errors.New("infodownloader: piece index out of range")
	errBlockOverrun        = errors.New("infodownloader: block extends past metadata size")
)
