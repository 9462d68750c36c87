package topology

import (
	"strconv"
	"strings"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
)

// nameGen produces separator-free strings, since the tokenizer treats
// space, comma, parens, and quotes as separators rather than payload.
func nameGen() gopter.Gen {
	return gen.AlphaString().SuchThat(func(s string) bool {
		return s != "" && !strings.ContainsAny(s, " ,()\"")
	})
}

// TestParserInvariants checks properties that must hold for any input to
// ParseSyncStandbyNames, independent of the specific grammar form used.
func TestParserInvariants(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping property-based test in short mode")
	}

	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 50

	properties := gopter.NewProperties(parameters)

	properties.Property("ANY quorum always yields an empty set regardless of names", prop.ForAll(
		func(names []string, n int) bool {
			if len(names) == 0 {
				return true
			}
			raw := "ANY " + strconv.Itoa(n) + " (" + strings.Join(names, ", ") + ")"
			return len(ParseSyncStandbyNames(raw)) == 0
		},
		gen.SliceOfN(3, nameGen()),
		gen.IntRange(1, 3),
	))

	properties.Property("FIRST n returns exactly n names when the list has at least n", prop.ForAll(
		func(names []string, n int) bool {
			if len(names) == 0 {
				return true
			}
			raw := "FIRST " + strconv.Itoa(n) + " (" + strings.Join(names, ", ") + ")"
			got := ParseSyncStandbyNames(raw)
			return len(got) == n
		},
		gen.SliceOfN(4, nameGen()),
		gen.IntRange(1, 4),
	))

	properties.Property("a single bare non-keyword name always parses to itself alone", prop.ForAll(
		func(name string) bool {
			if strings.EqualFold(name, "ANY") || strings.EqualFold(name, "FIRST") {
				return true
			}
			got := ParseSyncStandbyNames(name)
			return len(got) == 1 && got[0] == name
		},
		nameGen(),
	))

	properties.Property("parsing is total: never panics, always returns a slice", prop.ForAll(
		func(raw string) bool {
			got := ParseSyncStandbyNames(raw)
			return got != nil
		},
		gen.AnyString(),
	))

	properties.TestingRun(t)
}

// TestPublishedViewsIdempotence checks that publishing the same snapshot
// twice in a row is observably indistinguishable from publishing it once.
func TestPublishedViewsIdempotence(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping property-based test in short mode")
	}

	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 30

	properties := gopter.NewProperties(parameters)

	properties.Property("republishing an identical snapshot changes nothing observable", prop.ForAll(
		func(alive []int) bool {
			v := NewPublishedViews()
			byRole := map[HostRole][]int{RoleMaster: alive}

			v.Publish(alive, byRole)
			first := v.AliveByRtt()

			v.Publish(alive, byRole)
			second := v.AliveByRtt()

			if len(first) != len(second) {
				return false
			}
			for i := range first {
				if first[i] != second[i] {
					return false
				}
			}
			return true
		},
		gen.SliceOf(gen.IntRange(0, 10)),
	))

	properties.TestingRun(t)
}

