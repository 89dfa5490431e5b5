// Package domain models ECMWF ensemble tropical-cyclone track forecasts and
// the basin-filtering and track-assembly rules applied to them.
//
// # Data Source
//
// Track observations originate from the ECMWF essential products feed: one
// bulletin per forecast base time containing every tracked system, with one
// row per (system, ensemble member, forecast step). The adapter layer fetches
// and caches the CSV export of that bulletin; this package only sees the
// parsed rows.
//
// # Track Conventions
//
// Ensemble members:
//
//	The perturbed members are numbered from 1 upward. The unperturbed
//	high-resolution control run carries no member number in the bulletin and
//	is modeled here as a nil Member. When tracks are ordered, the control run
//	sorts before member 1.
//
// Forecast steps:
//
//	Steps are six-hourly valid times out to the five-day horizon. A member
//	reports a step only while its simulated vortex persists, so members of
//	the same system routinely have different track lengths. No interpolation
//	is performed across missing steps.
//
// Units:
//
//	Latitude and longitude are WGS-84 degrees, longitude in [0, 360) as
//	published. Mean sea level pressure is hectopascals (the bulletin's
//	pascals are converted during parsing). Wind speed is meters per second
//	at 10 m.
//
// # Basin Filtering
//
// The South Indian Ocean products admit an observation when all of the
// following hold:
//
//	latMin < latitude < latMax     (strict: the equator row is excluded)
//	lonMin <= longitude <= lonMax  (inclusive)
//	system number >= 70
//
// System identifiers are compared numerically, never lexically: the leading
// unsigned integer of the identifier ("92S" -> 92) is the system number.
// Identifiers without leading digits have no position in that ordering and
// are excluded outright.
//
// # Consensus Tracks
//
// The consensus track is computed per distinct timestep across the ensemble:
// median latitude and longitude for the position, and 10th/50th/90th
// percentile tuples for pressure and wind. Timesteps reported by fewer than
// two members are dropped from the consensus; a percentile band over a single
// sample carries no spread information. Ensemble tracks are unaffected by
// this rule.
//
// # Determinism
//
// Every derived ordering in this package is reproducible for identical input:
//
//	groups sort by system number
//	tracks sort by member number, control first
//	consensus steps sort by valid time
//
// Product manifest keys are derived from run date and system identifier
// rather than generated randomly, so replaying a run overwrites the same
// downstream records instead of duplicating them. See [ProductManifest.Key].
package domain
