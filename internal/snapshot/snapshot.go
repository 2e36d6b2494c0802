// Package snapshot encodes and decodes the vault document used for local
// persistence, file export and cloud backup.
//
// Decoding is lenient: any top-level key may be absent, and documents written
// before schema versioning are migrated in one explicit step. Anything that
// is not a JSON object, or a collection that is not an array of objects,
// fails with a core.RestoreParseError.
package snapshot

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"vault/internal/core"
)

// CloudFileName is the fixed name of the backup in every cloud backend.
const CloudFileName = "vault_snapshot.json"

// collections in document order.
var collections = []string{
	"expenses", "incomes", "wealthItems", "bills", "budgetItems",
	"notifications", "rules", "recurringItems",
}

// ExportFileName is the date-stamped name of a downloaded export.
func ExportFileName(t time.Time) string {
	return fmt.Sprintf("vault_snapshot_%s.json", t.Format(core.DateLayout))
}

// Encode writes the current schema version.
func Encode(s core.Snapshot) ([]byte, error) {
	s.SchemaVersion = core.SchemaVersion
	s.Normalize()
	data, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("encode snapshot: %w", err)
	}
	return data, nil
}

// Document is the loosely typed form of a snapshot, used while migrating.
type Document struct {
	SchemaVersion int
	Revision      int64
	SnapshotID    string
	Settings      map[string]any
	Collections   map[string][]map[string]any
	User          json.RawMessage
	Timestamp     string
}

// Decode parses and migrates a snapshot document.
func Decode(data []byte) (core.Snapshot, error) {
	doc, err := Parse(data)
	if err != nil {
		return core.Snapshot{}, err
	}
	if err := Migrate(doc); err != nil {
		return core.Snapshot{}, &core.RestoreParseError{Err: err}
	}
	return doc.typed()
}

// Parse reads the document structure without interpreting records.
func Parse(data []byte) (*Document, error) {
	var top map[string]json.RawMessage
	if err := json.Unmarshal(data, &top); err != nil {
		return nil, &core.RestoreParseError{Err: err}
	}
	if top == nil {
		return nil, &core.RestoreParseError{Err: errors.New("snapshot must be a JSON object")}
	}

	doc := &Document{Collections: make(map[string][]map[string]any, len(collections))}
	if raw, ok := top["schemaVersion"]; ok {
		if err := json.Unmarshal(raw, &doc.SchemaVersion); err != nil {
			return nil, &core.RestoreParseError{Err: fmt.Errorf("schemaVersion: %w", err)}
		}
	}
	if raw, ok := top["revision"]; ok {
		if err := json.Unmarshal(raw, &doc.Revision); err != nil {
			return nil, &core.RestoreParseError{Err: fmt.Errorf("revision: %w", err)}
		}
	}
	if raw, ok := top["snapshotId"]; ok && !isNull(raw) {
		if err := json.Unmarshal(raw, &doc.SnapshotID); err != nil {
			return nil, &core.RestoreParseError{Err: fmt.Errorf("snapshotId: %w", err)}
		}
	}
	if raw, ok := top["settings"]; ok && !isNull(raw) {
		if err := decodeNumbers(raw, &doc.Settings); err != nil {
			return nil, &core.RestoreParseError{Err: fmt.Errorf("settings: %w", err)}
		}
	}
	for _, key := range collections {
		raw, ok := top[key]
		if !ok || isNull(raw) {
			continue
		}
		var records []map[string]any
		if err := decodeNumbers(raw, &records); err != nil {
			return nil, &core.RestoreParseError{Err: fmt.Errorf("%s: %w", key, err)}
		}
		doc.Collections[key] = records
	}
	if raw, ok := top["user"]; ok && !isNull(raw) {
		doc.User = raw
	}
	if raw, ok := top["timestamp"]; ok {
		_ = json.Unmarshal(raw, &doc.Timestamp)
	}
	return doc, nil
}

func (d *Document) typed() (core.Snapshot, error) {
	s := core.EmptySnapshot()
	s.Revision = d.Revision
	s.SnapshotID = d.SnapshotID
	s.User = d.User
	if d.Timestamp != "" {
		if t, err := time.Parse(time.RFC3339, d.Timestamp); err == nil {
			s.Timestamp = t
		}
	}
	if d.Settings != nil {
		if err := remarshal(d.Settings, &s.Settings); err != nil {
			return core.Snapshot{}, &core.RestoreParseError{Err: fmt.Errorf("settings: %w", err)}
		}
	}
	targets := map[string]any{
		"expenses":       &s.Expenses,
		"incomes":        &s.Incomes,
		"wealthItems":    &s.WealthItems,
		"bills":          &s.Bills,
		"budgetItems":    &s.BudgetItems,
		"notifications":  &s.Notifications,
		"rules":          &s.Rules,
		"recurringItems": &s.RecurringItems,
	}
	for _, key := range collections {
		records, ok := d.Collections[key]
		if !ok {
			continue
		}
		if err := remarshal(records, targets[key]); err != nil {
			return core.Snapshot{}, &core.RestoreParseError{Err: fmt.Errorf("%s: %w", key, err)}
		}
	}
	s.Normalize()
	s.SchemaVersion = core.SchemaVersion
	return s, nil
}

func decodeNumbers(raw json.RawMessage, v any) error {
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	return dec.Decode(v)
}

func remarshal(in, out any) error {
	data, err := json.Marshal(in)
	if err != nil {
		return err
	}
	return json.Unmarshal(data, out)
}

func isNull(raw json.RawMessage) bool {
	return bytes.Equal(bytes.TrimSpace(raw), []byte("null"))
}
