package feed

import (
	"errors"
	"fmt"
)

// Err is the root of the error taxonomy. Every error returned by this
// module matches it, so callers can catch broadly with errors.Is(err, Err)
// or narrowly with one of the class sentinels below.
var Err = errors.New("feed")

var (
	// ErrConnection means no transport strategy could retrieve bytes and
	// no cache entry was available to fall back on.
	ErrConnection = fmt.Errorf("%w: cannot load feed", Err)

	// ErrCache means a cache write failed while caching is enabled.
	ErrCache = fmt.Errorf("%w: cannot write to cache", Err)

	// ErrParse means the response bytes did not parse as XML.
	ErrParse = fmt.Errorf("%w: cannot parse feed", Err)

	// ErrFormat means the parsed XML matches neither RSS nor Atom.
	ErrFormat = fmt.Errorf("%w: invalid feed format", Err)

	// ErrReadOnly is returned by any attempt to mutate a Feed or Item.
	ErrReadOnly = fmt.Errorf("%w: property is read-only", Err)
)
