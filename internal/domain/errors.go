package domain

import "errors"

// ErrDataUnavailable marks a run-fatal failure to produce the forecast
// bulletin. The run must exit cleanly with no outputs rather than proceed on
// stale or partial data. Classify with errors.Is after wrapping.
var ErrDataUnavailable = errors.New("forecast data unavailable")
