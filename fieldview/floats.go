package fieldview

import "math"

func decodeFloat32(bits uint32) float32 { return math.Float32frombits(bits) }
func decodeFloat64(bits uint64) float64 { return math.Float64frombits(bits) }
