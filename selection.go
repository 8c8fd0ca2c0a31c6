package main

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
)

// parseSelection turns a one-based list such as "1,3-5" into sorted,
// de-duplicated zero-based indexes for a collection of size n
func parseSelection(spec string, n int) ([]int, error) {
	spec = strings.TrimSpace(spec)
	if spec == "" {
		return nil, fmt.Errorf("empty selection")
	}

	seen := make(map[int]bool)
	for _, part := range strings.Split(spec, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}

		lo, hi := part, part
		if i := strings.Index(part, "-"); i >= 0 {
			lo, hi = strings.TrimSpace(part[:i]), strings.TrimSpace(part[i+1:])
		}

		start, err := selectionNumber(lo, n)
		if err != nil {
			return nil, err
		}
		end, err := selectionNumber(hi, n)
		if err != nil {
			return nil, err
		}
		if start > end {
			return nil, fmt.Errorf("invalid range %q", part)
		}
		for i := start; i <= end; i++ {
			seen[i-1] = true
		}
	}

	if len(seen) == 0 {
		return nil, fmt.Errorf("empty selection")
	}
	indexes := make([]int, 0, len(seen))
	for idx := range seen {
		indexes = append(indexes, idx)
	}
	sort.Ints(indexes)
	return indexes, nil
}

func selectionNumber(s string, n int) (int, error) {
	v, err := strconv.Atoi(s)
	if err != nil {
		return 0, fmt.Errorf("invalid entry number %q", s)
	}
	if v < 1 || v > n {
		return 0, fmt.Errorf("entry %d out of range 1-%d", v, n)
	}
	return v, nil
}
