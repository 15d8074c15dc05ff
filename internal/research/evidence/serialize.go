package evidence

import (
	"encoding/json"
	"time"
)

// snapshot is the serializable shape of a Ledger: plain slices instead of
// maps so round-tripping is order-independent and the JSON is stable.
type snapshot struct {
	Constants []ConstantEntry `json:"constants"`
	Facts     []factSnapshot  `json:"facts"`
	Conflicts []FactConflict  `json:"conflicts"`
}

type factSnapshot struct {
	ID         string          `json:"id"`
	Statement  string          `json:"statement"`
	FilePath   string          `json:"file_path"`
	StartLine  int             `json:"start_line"`
	EndLine    int             `json:"end_line"`
	Category   string          `json:"category"`
	Confidence ConfidenceLevel `json:"confidence"`
	Entities   []string        `json:"entities"`
	ClusterID  int             `json:"cluster_id"`
	CreatedAt  time.Time       `json:"created_at"`
}

// ToDict serializes the ledger to JSON, matching the original's
// to_dict()/from_dict() round-trip contract (§8 testable property).
func (l *Ledger) ToDict() ([]byte, error) {
	snap := snapshot{
		Constants: make([]ConstantEntry, 0, len(l.constants)),
		Facts:     make([]factSnapshot, 0, len(l.facts)),
		Conflicts: append([]FactConflict(nil), l.conflicts...),
	}
	for _, c := range l.constants {
		snap.Constants = append(snap.Constants, *c)
	}
	for _, f := range l.facts {
		snap.Facts = append(snap.Facts, factSnapshot{
			ID:         f.ID,
			Statement:  f.Statement,
			FilePath:   f.FilePath,
			StartLine:  f.StartLine,
			EndLine:    f.EndLine,
			Category:   f.Category,
			Confidence: f.Confidence,
			Entities:   f.Entities,
			ClusterID:  f.ClusterID,
			CreatedAt:  f.CreatedAt,
		})
	}
	return json.Marshal(snap)
}

// FromDict reconstructs a Ledger from ToDict's JSON, rebuilding the
// entity index via AddFact so invariants hold regardless of how the
// ledger was serialized.
func FromDict(data []byte) (*Ledger, error) {
	var snap snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return nil, err
	}

	l := NewLedger()
	for _, c := range snap.Constants {
		l.AddConstant(c)
	}
	for _, f := range snap.Facts {
		l.AddFact(FactEntry{
			ID:         f.ID,
			Statement:  f.Statement,
			FilePath:   f.FilePath,
			StartLine:  f.StartLine,
			EndLine:    f.EndLine,
			Category:   f.Category,
			Confidence: f.Confidence,
			Entities:   f.Entities,
			ClusterID:  f.ClusterID,
			CreatedAt:  f.CreatedAt,
		})
	}
	l.conflicts = append(l.conflicts, snap.Conflicts...)
	return l, nil
}
