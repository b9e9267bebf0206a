package stripedmap

import "errors"

// ErrInvalidArgument is returned by New when a Config value fails
// boundary validation: a negative capacity or concurrency level, a weak
// strength with no matching cell factory, or dummy-value mode combined
// with weak values (spec §7's InvalidArgument row).
var ErrInvalidArgument = errors.New("stripedmap: invalid argument")
