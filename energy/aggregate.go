package energy

import (
	"log/slog"
)

// Aggregation is the result of summing the readings of a group's members.
type Aggregation struct {
	// Watts is the sum of every valid member reading.
	Watts float64
	// Valid counts the members that contributed to Watts.
	Valid int
	// Skipped counts members whose reading was unavailable, unparseable or in an unsupported unit.
	Skipped int
}

// Available reports whether at least one member contributed. An aggregation without any valid member has no value
// rather than a value of 0.
func (a Aggregation) Available() bool {
	return a.Valid > 0
}

func (a Aggregation) LogValue() slog.Value {
	return slog.GroupValue(
		slog.Float64("watts", a.Watts),
		slog.Int("valid", a.Valid),
		slog.Int("skipped", a.Skipped),
	)
}

// Aggregate sums the current reading of every member in ids. Members are looked up with lookup and normalized with
// NormalizeWatts; members that cannot be normalized contribute nothing.
func Aggregate(ids []string, lookup func(id string) Reading) Aggregation {
	var result Aggregation
	for _, id := range ids {
		w, ok := NormalizeWatts(lookup(id))
		if !ok {
			result.Skipped++
			continue
		}

		result.Watts += w
		result.Valid++
	}

	return result
}
