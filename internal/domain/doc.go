// Package domain generates synthetic, reproducible wind fields.
//
// # Grids
//
// A [BoundingBox] (south/north latitude, east/west longitude, resolution in
// degrees per cell) determines the grid shape:
//
//	rows = floor(|north - south| / resolution)
//	cols = floor(|east - west| / resolution)
//
// The Vancouver Island box (48.5..50.75 N, -128.5..-123.0 E at 0.25°) is
// 9 x 22. Extents are expected to be multiples of the resolution; anything
// else is truncated. A zero-extent box is legal and yields empty grids.
//
// # Levels
//
// Height levels are either numeric pressure altitudes in hPa (540, 6.2, ...)
// or textual tags ("700hPa", "40m"). Tags are opaque: they are never parsed
// into numbers, so a tag compared against the numeric tropopause is an
// [ErrTypeMismatch] instead of a guess.
//
// # Seeds
//
// A field is fully determined by its base seed, box, level list and
// standard deviation. Level i draws u from seed base+2i and v from base+2i+1,
// so u and v of one level are independent and no two levels share a seed:
//
//	level 0: u=base   v=base+1
//	level 1: u=base+2 v=base+3
//	...
//
// Every build creates its own [RandomSource]; builds never share generator
// state and can run in parallel.
//
// # Bias
//
// A run draws one bias direction (radians, uniform over [0, 2π)) and reuses
// it for every level and scenario. Levels at or below the tropopause get
//
//	u += strength·cos(direction)
//	v += strength·sin(direction)
//
// and levels above it get the same terms subtracted. The older fixed-factor
// variant ([BiasMultiplicative]) scales u and v by (UFactor, VFactor) below
// and by their negation above.
//
// # Perturbation
//
// After generation a field can be randomized with one strategy, all drawing
// scale factors from Normal(0, sigma):
//
//	full_random     one factor per cell, independently for u and v
//	uniform_scale   one factor for all of u, another for all of v
//	gradient_scale  four corner factors (top-left, bottom-left, bottom-right,
//	                top-right), interpolated down both edges and then across
//	                each row
//
// # Lead times
//
// Forecast uncertainty widens with lead time. [StdDevSchedule] maps a lead
// index n (0 = nowcast, 1 step = 6 h) to base + n·increment, 2.0 + 0.05·n by
// default.
package domain
