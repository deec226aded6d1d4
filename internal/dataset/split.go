package dataset

import "fmt"

// SplitChronological splits row indices per instrument: the first frac of
// each instrument's rows go to train, the rest to test. Both outputs keep the
// original row order.
func SplitChronological(ids []string, frac float64) (train, test []int, err error) {
	if frac <= 0 || frac > 1 {
		return nil, nil, fmt.Errorf("split fraction %v outside (0,1]", frac)
	}
	total := make(map[string]int)
	for _, id := range ids {
		total[id]++
	}
	seen := make(map[string]int)
	for i, id := range ids {
		cut := int(float64(total[id]) * frac)
		if seen[id] < cut {
			train = append(train, i)
		} else {
			test = append(test, i)
		}
		seen[id]++
	}
	return train, test, nil
}
