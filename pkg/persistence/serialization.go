package persistence

import (
	"encoding/json"
	"fmt"
)

// MarshalKeyEntry serializes a KeyEntry to JSON bytes.
func MarshalKeyEntry(entry *KeyEntry) ([]byte, error) {
	if entry == nil {
		return nil, fmt.Errorf("cannot marshal nil KeyEntry")
	}
	if entry.Address == "" {
		return nil, fmt.Errorf("cannot marshal KeyEntry without address")
	}

	data, err := json.Marshal(entry)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal KeyEntry to JSON: %w", err)
	}
	return data, nil
}

// UnmarshalKeyEntry deserializes a KeyEntry from JSON bytes.
func UnmarshalKeyEntry(data []byte) (*KeyEntry, error) {
	if len(data) == 0 {
		return nil, fmt.Errorf("cannot unmarshal empty data")
	}

	var entry KeyEntry
	if err := json.Unmarshal(data, &entry); err != nil {
		return nil, fmt.Errorf("failed to unmarshal JSON to KeyEntry: %w", err)
	}
	return &entry, nil
}

// MarshalSubmissionRecord serializes a SubmissionRecord to JSON bytes.
func MarshalSubmissionRecord(record *SubmissionRecord) ([]byte, error) {
	if record == nil {
		return nil, fmt.Errorf("cannot marshal nil SubmissionRecord")
	}
	if record.ID == "" {
		return nil, fmt.Errorf("cannot marshal SubmissionRecord without id")
	}

	return json.Marshal(record)
}

// UnmarshalSubmissionRecord deserializes a SubmissionRecord from JSON bytes.
func UnmarshalSubmissionRecord(data []byte) (*SubmissionRecord, error) {
	if len(data) == 0 {
		return nil, fmt.Errorf("cannot unmarshal empty data")
	}

	var record SubmissionRecord
	if err := json.Unmarshal(data, &record); err != nil {
		return nil, fmt.Errorf("failed to unmarshal JSON to SubmissionRecord: %w", err)
	}
	return &record, nil
}
