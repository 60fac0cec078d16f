package utils

import (
	"golang.org/x/exp/constraints"
)

func Sum[T constraints.Integer](a []T) T {
	var total T
	for _, v := range a {
		total += v
	}
	return total
}
