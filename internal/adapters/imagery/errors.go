package imagery

import "errors"

// Sentinel kinds for image fetch errors.
var (
	ErrImageFetch = errors.New("image fetch failed")
)
