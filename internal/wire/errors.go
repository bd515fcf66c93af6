package wire

import "errors"

// ErrMalformedFrame covers an unknown cmd or a zero key_len. A short read on
// the trailing key bytes is not reported with it; the native listener closes
// the connection instead.
var ErrMalformedFrame = errors.New("wire: malformed frame")

// ErrShortBuffer is returned by DecodeHeader when the supplied buffer is smaller
// than a fixed request header.
var ErrShortBuffer = errors.New("wire: buffer shorter than header")
