package shard

import (
	"math/rand/v2"
	"sort"

	disperrors "github.com/maxkimambo/shardrun/internal/errors"
)

// Partition returns contiguous block index (1-based) of total. The first
// len(items)%total blocks hold one extra item, so sizes differ by at most one.
func Partition[T any](items []T, index, total int) []T {
	if total <= 0 || index < 1 || index > total {
		return nil
	}
	size := len(items) / total
	extra := len(items) % total

	start := (index-1)*size + min(index-1, extra)
	end := start + size
	if index <= extra {
		end++
	}
	return items[start:end:end]
}

// Resolve applies a subshard spec to items. Named labels are looked up in
// named, which maps every label the shard understands to its items.
func Resolve[T any](items []T, spec Spec, named map[string][]T) ([]T, error) {
	switch spec.Kind {
	case SpecNone:
		return items, nil
	case SpecIndexOfTotal:
		if spec.Total <= 0 || spec.Index < 1 || spec.Index > spec.Total {
			return nil, disperrors.NewInvalidSubshardSpecError(spec.String(), "index out of range")
		}
		return Partition(items, spec.Index, spec.Total), nil
	case SpecNamed:
		selected, ok := named[spec.Label]
		if !ok {
			return nil, disperrors.NewUnknownSubshardError(spec.Label, Labels(named))
		}
		return selected, nil
	default:
		return nil, disperrors.NewInvalidSubshardSpecError(spec.String(), "unknown spec kind")
	}
}

// Labels returns the named subshards in sorted order.
func Labels[T any](named map[string][]T) []string {
	labels := make([]string, 0, len(named))
	for label := range named {
		labels = append(labels, label)
	}
	sort.Strings(labels)
	return labels
}

// Shuffle returns a copy of items in a pseudo-random order determined by seed.
func Shuffle[T any](items []T, seed int64) []T {
	out := make([]T, len(items))
	copy(out, items)
	rng := rand.New(rand.NewPCG(uint64(seed), uint64(seed)^0x9e3779b97f4a7c15))
	rng.Shuffle(len(out), func(i, j int) {
		out[i], out[j] = out[j], out[i]
	})
	return out
}
