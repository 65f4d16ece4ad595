package farm

// BlockSource reports the current ledger height.
type BlockSource interface {
	Height() uint64
}

// ManualBlocks is a BlockSource advanced explicitly by the caller, used by
// the replay runner and in tests.
type ManualBlocks struct {
	height uint64
}

func NewManualBlocks(height uint64) *ManualBlocks {
	return &ManualBlocks{height: height}
}

func (m *ManualBlocks) SetHeight(height uint64) {
	if height > m.height {
		m.height = height
	}
}

func (m *ManualBlocks) Height() uint64 {
	return m.height
}
