package replay

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"farmLedger/internal/farm"
	"farmLedger/internal/referral"
	"farmLedger/internal/roles"
	"farmLedger/internal/token"
)

// Snapshot is the full ledger state at one applied-op boundary. It carries
// enough to answer queries and to resume without re-reading the ops journal.
type Snapshot struct {
	Farm           farm.State     `json:"farm"`
	Referrals      referral.State `json:"referrals"`
	Roles          roles.State    `json:"roles"`
	Bank           token.State    `json:"bank"`
	LastAppliedSeq uint64         `json:"last_applied_seq"`
	BlockNumber    uint64         `json:"block_number"`
	UpdatedAt      string         `json:"updated_at"`
}

// SnapshotStore persists snapshots as a single JSON file, replaced
// atomically on every save.
type SnapshotStore struct {
	Path string
}

func (s *SnapshotStore) Load() (Snapshot, bool, error) {
	if s == nil || s.Path == "" {
		return Snapshot{}, false, nil
	}
	data, err := os.ReadFile(s.Path)
	if err != nil {
		if os.IsNotExist(err) {
			return Snapshot{}, false, nil
		}
		return Snapshot{}, false, fmt.Errorf("read snapshot: %w", err)
	}

	var snap Snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return Snapshot{}, false, fmt.Errorf("parse snapshot: %w", err)
	}
	return snap, true, nil
}

func (s *SnapshotStore) Save(snap Snapshot) error {
	if s == nil || s.Path == "" {
		return nil
	}
	dir := filepath.Dir(s.Path)
	if dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create snapshot dir: %w", err)
		}
	}

	snap.UpdatedAt = time.Now().UTC().Format(time.RFC3339Nano)
	data, err := json.MarshalIndent(snap, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal snapshot: %w", err)
	}

	tmp := s.Path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("write snapshot tmp: %w", err)
	}
	if err := os.Rename(tmp, s.Path); err != nil {
		return fmt.Errorf("rename snapshot: %w", err)
	}
	return nil
}
