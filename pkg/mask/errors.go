package mask

import "errors"

var (
	// ErrAssetLoad is returned when the target silhouette file is
	// missing or unreadable.
	ErrAssetLoad = errors.New("target asset could not be loaded")

	// ErrEmptyTarget is returned when the target image loads but
	// binarizes to zero pixels. The file exists; the asset is bad.
	ErrEmptyTarget = errors.New("target mask is empty after binarization")
)
