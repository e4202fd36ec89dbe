package domain

import (
	"fmt"
	"math"
	"strings"
)

const (
	// MaxGridCells bounds rows*cols of a single level.
	MaxGridCells = 1 << 24
	// MaxFieldCells bounds rows*cols*levels of one field.
	MaxFieldCells = 1 << 25
)

// BoundingBox is a rectangular lat/lon region sampled at a fixed resolution
// in degrees per cell. The extents are expected to be integer multiples of
// the resolution; anything else is rounded down by Size.
type BoundingBox struct {
	South      float64 `json:"south" toml:"south"`
	North      float64 `json:"north" toml:"north"`
	East       float64 `json:"east" toml:"east"`
	West       float64 `json:"west" toml:"west"`
	Resolution float64 `json:"resolution" toml:"resolution"`
}

// GridSize is the (rows, cols) shape of a grid. Rows run along latitude and
// columns along longitude.
type GridSize struct {
	Rows int `json:"rows" msgpack:"rows"`
	Cols int `json:"cols" msgpack:"cols"`
}

// Cells returns the number of cells in the grid.
func (s GridSize) Cells() int { return s.Rows * s.Cols }

// Empty reports whether the grid has no cells.
func (s GridSize) Empty() bool { return s.Rows == 0 || s.Cols == 0 }

// CalcArraySize returns floor(|latMax-latMin|/res) rows by
// floor(|lonMax-lonMin|/res) columns. It never fails: a non-positive or
// non-finite resolution, or non-finite extents, yield a zero-size grid, and
// each dimension saturates at math.MaxInt32. Validate rejects boxes whose
// shape exceeds MaxGridCells.
func CalcArraySize(latMin, latMax, lonMin, lonMax, res float64) GridSize {
	return GridSize{
		Rows: cellCount(latMin, latMax, res),
		Cols: cellCount(lonMin, lonMax, res),
	}
}

func cellCount(lo, hi, res float64) int {
	if !(res > 0) || math.IsInf(res, 0) {
		return 0
	}
	n := math.Abs(hi-lo) / res
	if math.IsNaN(n) || math.IsInf(n, 0) {
		return 0
	}
	if n >= math.MaxInt32 {
		return math.MaxInt32
	}
	return int(n)
}

// cellsExceed reports whether a*b > limit without overflowing.
func cellsExceed(a, b, limit int) bool {
	return a > 0 && b > limit/a
}

// Size returns the grid shape of the box at its resolution.
func (b BoundingBox) Size() GridSize {
	return CalcArraySize(b.South, b.North, b.East, b.West, b.Resolution)
}

// Validate checks the resolution, the coordinates and the grid shape. A
// zero-extent box is valid and produces an empty grid.
func (b BoundingBox) Validate() error {
	if !(b.Resolution > 0) || math.IsInf(b.Resolution, 0) {
		return inputError(ErrInvalidResolution, "resolution", b.Resolution)
	}
	for _, c := range []struct {
		name  string
		value float64
		limit float64
	}{
		{"south", b.South, 90},
		{"north", b.North, 90},
		{"east", b.East, 360},
		{"west", b.West, 360},
	} {
		if math.IsNaN(c.value) || math.IsInf(c.value, 0) || math.Abs(c.value) > c.limit {
			return inputError(ErrInvalidBoundingBox, c.name, c.value)
		}
	}
	if size := b.Size(); cellsExceed(size.Rows, size.Cols, MaxGridCells) {
		return inputError(ErrInvalidBoundingBox, "cells", fmt.Sprintf("%dx%d > %d", size.Rows, size.Cols, MaxGridCells))
	}
	return nil
}

// Axis selects the coordinate kind for GridIndex.
type Axis int

const (
	AxisUnknown Axis = iota
	AxisLat
	AxisLon
)

func (a Axis) String() string {
	switch a {
	case AxisLat:
		return "lat"
	case AxisLon:
		return "lon"
	default:
		return "unknown"
	}
}

// ParseAxis maps "lat" and "lon" to their Axis. Anything else is
// ErrInvalidAxis.
func ParseAxis(s string) (Axis, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "lat":
		return AxisLat, nil
	case "lon":
		return AxisLon, nil
	}
	return AxisUnknown, inputError(ErrInvalidAxis, "axis", s)
}

// GridIndex returns the index of coord in a global grid of the given
// resolution whose origin is at -90 latitude / -180 longitude. The
// coordinate is snapped to the nearest multiple of res first.
func GridIndex(res, coord float64, axis Axis) (int, error) {
	if !(res > 0) || math.IsInf(res, 0) {
		return 0, inputError(ErrInvalidResolution, "resolution", res)
	}
	if math.IsNaN(coord) || math.IsInf(coord, 0) {
		return 0, inputError(ErrInvalidBoundingBox, "coord", coord)
	}
	coord = math.Round(coord/res) * res
	var idx float64
	switch axis {
	case AxisLat:
		idx = (coord + 90) / res
	case AxisLon:
		idx = (coord + 180) / res
	default:
		return 0, inputError(ErrInvalidAxis, "axis", axis)
	}
	if math.IsNaN(idx) || math.Abs(idx) >= math.MaxInt32 {
		return 0, inputError(ErrInvalidResolution, "resolution", res)
	}
	return int(idx), nil
}
