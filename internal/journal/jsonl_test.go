package journal

import (
	"bufio"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"farmLedger/internal/model"
)

func TestJsonlJournalAppends(t *testing.T) {
	path := filepath.Join(t.TempDir(), "events.jsonl")
	j := NewJsonlJournal(path)

	first := []model.EventRecord{
		{Seq: 1, ChainID: 1, BlockNumber: 10, EventName: model.EventPoolAdded, Actor: "0x01", Decoded: json.RawMessage(`{}`)},
	}
	second := []model.EventRecord{
		{Seq: 2, ChainID: 1, BlockNumber: 11, EventName: model.EventDeposit, Actor: "0x02", Decoded: json.RawMessage(`{}`)},
		{Seq: 3, ChainID: 1, BlockNumber: 11, EventName: model.EventRewardPaid, Actor: "0x02", Decoded: json.RawMessage(`{}`)},
	}

	if err := j.PutEventBatch(first); err != nil {
		t.Fatalf("first batch failed: %v", err)
	}
	if err := j.PutEventBatch(second); err != nil {
		t.Fatalf("second batch failed: %v", err)
	}
	if err := j.PutEventBatch(nil); err != nil {
		t.Fatalf("empty batch failed: %v", err)
	}

	file, err := os.Open(path)
	if err != nil {
		t.Fatalf("open output: %v", err)
	}
	defer file.Close()

	var got []model.EventRecord
	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		var record model.EventRecord
		if err := json.Unmarshal(scanner.Bytes(), &record); err != nil {
			t.Fatalf("decode line: %v", err)
		}
		got = append(got, record)
	}
	if err := scanner.Err(); err != nil {
		t.Fatalf("scan output: %v", err)
	}

	if len(got) != 3 {
		t.Fatalf("got %d records, want 3", len(got))
	}
	for i, record := range got {
		if record.Seq != uint64(i+1) {
			t.Fatalf("record %d seq = %d, want %d", i, record.Seq, i+1)
		}
	}
	if got[2].EventName != model.EventRewardPaid {
		t.Fatalf("last event = %s, want %s", got[2].EventName, model.EventRewardPaid)
	}
}
