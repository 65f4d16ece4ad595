package farm

// callGuard forbids the ledger's mutating entry points from being reentered
// while control has transiently left the ledger during an external transfer
// call. Calls are otherwise fully serialized, so a plain flag suffices.
type callGuard struct {
	locked bool
}

func (g *callGuard) enter() error {
	if g.locked {
		return ErrReentrantCall
	}
	g.locked = true
	return nil
}

func (g *callGuard) leave() {
	g.locked = false
}
