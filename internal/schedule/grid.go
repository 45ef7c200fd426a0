package schedule

// BuildGrid returns the ordered, deduplicated sequence of candidate time
// points from start (inclusive) to end (exclusive), stepped by the interval
// in minutes. Invalid input (start >= end, step <= 0) yields an empty grid
// rather than an error.
func BuildGrid(start, end TimeOfDay, stepMin int) []TimeOfDay {
	if stepMin <= 0 || start >= end {
		return nil
	}

	var points []TimeOfDay
	for t := start; t < end; t = t.Add(stepMin) {
		if n := len(points); n > 0 && points[n-1] == t {
			continue
		}
		points = append(points, t)
	}
	return points
}
