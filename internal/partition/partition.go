// Package partition splits an ordered id list into near-equal contiguous
// slices, one per remote worker task.
package partition

// Split divides ids into at most taskCount contiguous slices of
// ceil(len(ids)/taskCount) elements each; the final slice may be shorter.
// Slices whose start index would fall past the end are omitted rather than
// returned empty, so fewer than taskCount slices come back when there are
// fewer ids than tasks. Concatenating the result in order reproduces ids
// exactly. A non-positive taskCount or empty input yields nil; callers
// validate those before launching.
func Split(ids []int64, taskCount int) [][]int64 {
	if taskCount <= 0 || len(ids) == 0 {
		return nil
	}

	perTask := (len(ids) + taskCount - 1) / taskCount
	out := make([][]int64, 0, taskCount)

	for i := 0; i < taskCount; i++ {
		start := i * perTask
		if start >= len(ids) {
			break
		}
		end := start + perTask
		if end > len(ids) {
			end = len(ids)
		}
		out = append(out, ids[start:end])
	}

	return out
}
