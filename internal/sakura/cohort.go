package sakura

// Cohort flags carried in SakuraEvent.SendFlag.
const (
	FlagPS22Users = "PS22Users"
	FlagPS23Users = "PS23Users"
	FlagRandom    = "Random"
)

// Persona id thresholds partitioning the pool into cohorts. Kept as
// constants; the flag combinations that select them live in master data.
const (
	cohortBoundaryID = 30
	cohortUpperID    = 100
	defaultPersonaID = 100
)

// resolveCohort selects the persona subset for a rule by flag combination,
// never by iteration order: both cohort flags → whole pool, PS22 only →
// ids below the boundary, PS23 only → boundary..upper-1, neither → the
// single default persona. Input order is preserved, so resolution is
// deterministic for a fixed pool.
func resolveCohort(pool []Persona, rule EventRule) []Persona {
	ps22 := rule.hasFlag(FlagPS22Users)
	ps23 := rule.hasFlag(FlagPS23Users)

	switch {
	case ps22 && ps23:
		return pool
	case ps22:
		out := make([]Persona, 0, len(pool))
		for _, p := range pool {
			if p.UserID < cohortBoundaryID {
				out = append(out, p)
			}
		}
		return out
	case ps23:
		out := make([]Persona, 0, len(pool))
		for _, p := range pool {
			if p.UserID >= cohortBoundaryID && p.UserID < cohortUpperID {
				out = append(out, p)
			}
		}
		return out
	default:
		for _, p := range pool {
			if p.UserID == defaultPersonaID {
				return []Persona{p}
			}
		}
		return nil
	}
}
