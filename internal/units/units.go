// Package units provides shared constants and helpers for the angle and
// coordinate units used across the tracking engine.
//
// Joint angles are always degrees in [0,180]. Skeleton coordinates have no
// fixed unit: the pose backend defines it, and deployments scale the
// catalog's axis-distance thresholds to match via a coordinate scale factor.
package units

import "math"

// Angle bounds for a three-joint angle.
const (
	DegreesMin = 0.0
	DegreesMax = 180.0
)

// ToDegrees converts radians to degrees.
func ToDegrees(rad float64) float64 {
	return rad * 180 / math.Pi
}

// ToRadians converts degrees to radians.
func ToRadians(deg float64) float64 {
	return deg * math.Pi / 180
}

// ClampCosine bounds a cosine into [-1,1] so acos never sees a value pushed
// out of domain by floating-point error.
func ClampCosine(c float64) float64 {
	if c > 1 {
		return 1
	}
	if c < -1 {
		return -1
	}
	return c
}

// Round2 rounds degrees to two decimal places, the resolution the engine
// reports angles at.
func Round2(deg float64) float64 {
	return math.Round(deg*100) / 100
}

// ScaleThreshold adapts a catalog axis-distance threshold, tuned against the
// reference skeleton backend, to the deployed backend's coordinate unit.
func ScaleThreshold(threshold, coordinateScale float64) float64 {
	return threshold * coordinateScale
}
