package journal

import "farmLedger/internal/model"

// Journal defines a sink for ledger event records.
type Journal interface {
	PutEventBatch(events []model.EventRecord) error
}

// Multi fans a batch out to several journals in order.
type Multi []Journal

func (m Multi) PutEventBatch(events []model.EventRecord) error {
	for _, sink := range m {
		if sink == nil {
			continue
		}
		if err := sink.PutEventBatch(events); err != nil {
			return err
		}
	}
	return nil
}
