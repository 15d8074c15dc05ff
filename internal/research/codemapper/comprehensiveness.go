package codemapper

// tier bundles every budget the HyDE planner and PoI queue scale by
// comprehensiveness level.
type tier struct {
	scopeFileCap        int
	snippetTokenBudget  int
	architecturalPoints int
	operationalPoints   int
}

var tiers = map[string]tier{
	"minimal": {scopeFileCap: 200, snippetTokenBudget: 2_000, architecturalPoints: 1, operationalPoints: 1},
	"low":     {scopeFileCap: 500, snippetTokenBudget: 10_000, architecturalPoints: 5, operationalPoints: 2},
	"medium":  {scopeFileCap: 2_000, snippetTokenBudget: 20_000, architecturalPoints: 10, operationalPoints: 3},
	"high":    {scopeFileCap: 3_000, snippetTokenBudget: 35_000, architecturalPoints: 15, operationalPoints: 4},
	"maximum": {scopeFileCap: 5_000, snippetTokenBudget: 50_000, architecturalPoints: 20, operationalPoints: 5},
}

// tierFor resolves a comprehensiveness level to its budget tier, falling
// back to "medium" for anything unrecognized.
func tierFor(comprehensiveness string) tier {
	if t, ok := tiers[comprehensiveness]; ok {
		return t
	}
	return tiers["medium"]
}
