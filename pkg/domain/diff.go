package domain

// SnapshotDiff represents the changes between two snapshots.
// It is designed to be serialized to JSON for partial updates on the client.
type SnapshotDiff struct {
	// SessionID is always present to identify the target.
	SessionID string `json:"session_id"`

	// Current is set when the active leaf changed.
	Current *string `json:"current,omitempty"`

	// History contains only changed or added entries.
	// For deletions, the key is present with an empty value.
	History map[string]string `json:"history,omitempty"`
}

// Diff calculates the difference between oldSnap and newSnap.
// If oldSnap is nil, it returns a diff representing the entire newSnap (initial load).
// It returns nil when nothing changed.
func Diff(oldSnap, newSnap *Snapshot) *SnapshotDiff {
	if newSnap == nil {
		return nil
	}

	diff := &SnapshotDiff{SessionID: newSnap.SessionID}

	if oldSnap == nil || oldSnap.Current != newSnap.Current {
		current := newSnap.Current
		diff.Current = &current
	}

	diff.History = diffHistory(oldSnap, newSnap)

	if diff.IsEmpty() {
		return nil
	}
	return diff
}

func diffHistory(old, new *Snapshot) map[string]string {
	delta := make(map[string]string)

	if old == nil {
		for k, v := range new.History {
			delta[k] = v
		}
	} else {
		for k, v := range new.History {
			if old.History[k] != v {
				delta[k] = v
			}
		}
		for k := range old.History {
			if _, ok := new.History[k]; !ok {
				delta[k] = ""
			}
		}
	}

	if len(delta) == 0 {
		return nil
	}
	return delta
}

// IsEmpty checks if the diff contains any actionable changes.
func (d *SnapshotDiff) IsEmpty() bool {
	return d.Current == nil && len(d.History) == 0
}
