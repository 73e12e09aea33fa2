package coordinator

import "sort"

// startAssignment is one coordinator→worker start_time dispatch
// produced by computeStartTimes.
type startAssignment struct {
	part int
	ms   int64
}

// computeStartTimes implements §4.5's need_start rule: group the parts
// that reported need_start=true into maximal runs of consecutive
// indices, then for each run interpolate evenly between the anchors on
// either side (the previous part's settled start_time on the left, the
// next part's discovered real_offset on the right, or
// effectiveDurationMs if the run reaches the last part).
//
// priorStartTime(i) and nextRealOffset(i) are read only for indices
// adjacent to a run, matching §5's rule that a part's fields are only
// read once the coordinator has observed the message establishing them.
func computeStartTimes(n int, needStart []bool, priorStartTime func(i int) int64, nextRealOffset func(i int) int64, effectiveDurationMs int64) []startAssignment {
	var out []startAssignment

	left := -1
	for i := 0; i <= n; i++ {
		inRun := i < n && needStart[i]
		if inRun && left == -1 {
			left = i
		}
		if !inRun && left != -1 {
			right := i - 1
			var low int64
			if left == 0 {
				low = 0
			} else {
				low = priorStartTime(left - 1)
			}
			var high int64
			if right == n-1 {
				high = effectiveDurationMs
			} else {
				high = nextRealOffset(right + 1)
			}
			width := right - left + 2
			for k := 0; k <= right-left; k++ {
				ms := low + int64(k+1)*(high-low)/int64(width)
				out = append(out, startAssignment{part: left + k, ms: ms})
			}
			left = -1
		}
	}

	return out
}

// computeEndTimes implements §4.5's need_end rule: part i-1 is given
// part i's real_offset as its end_time (when both that neighbor's
// real_offset is already known and part i-1 still needs one); the last
// part is always given effectiveDurationMs.
func computeEndTimes(n int, needEnd []bool, realOffsetKnown func(i int) (int64, bool), effectiveDurationMs int64) map[int]int64 {
	out := make(map[int]int64)
	for i := 1; i < n; i++ {
		if !needEnd[i-1] {
			continue
		}
		if v, ok := realOffsetKnown(i); ok {
			out[i-1] = v
		}
	}
	if needEnd[n-1] {
		out[n-1] = effectiveDurationMs
	}
	return out
}

// sortedDesc is a small helper shared by tests that want to assert
// assignment order independent of map iteration order.
func sortedDesc(xs []int64) []int64 {
	out := append([]int64(nil), xs...)
	sort.Slice(out, func(i, j int) bool { return out[i] > out[j] })
	return out
}
