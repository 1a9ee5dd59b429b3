package component

import (
	"slices"

	"golang.org/x/exp/constraints"

	"sampler/define"
)

// Median 中值，偶数个元素取中间两个的平均值；空切片返回零值
func Median[T constraints.Integer | constraints.Float](vals []T) T {
	var zero T
	if len(vals) == 0 {
		return zero
	}
	sorted := slices.Clone(vals)
	slices.Sort(sorted)
	mid := len(sorted) / 2
	if len(sorted)%2 == 1 {
		return sorted[mid]
	}
	return (sorted[mid-1] + sorted[mid]) / 2
}

// TripleMedian 三次采样的中值。至多一个无效读数时取有效读数的中值，否则返回无效值。
func TripleMedian(samples [3]float64) float64 {
	valid := make([]float64, 0, 3)
	for _, s := range samples {
		if define.IsValid(s) {
			valid = append(valid, s)
		}
	}
	if len(valid) < 2 {
		return define.InvalidReading
	}
	return Median(valid)
}
