package core

import (
	"encoding/json"
	"time"
)

// Split is the percentage of monthly income allotted to each budget category.
type Split struct {
	Needs   int `json:"Needs"`
	Wants   int `json:"Wants"`
	Savings int `json:"Savings"`
}

// DefaultSplit is the 50/30/20 rule.
var DefaultSplit = Split{Needs: 50, Wants: 30, Savings: 20}

// Of returns the share for c, zero for Uncategorized.
func (s Split) Of(c Category) int {
	switch c {
	case Needs:
		return s.Needs
	case Wants:
		return s.Wants
	case Savings:
		return s.Savings
	}
	return 0
}

func (s Split) Validate() error {
	if s.Needs < 0 || s.Wants < 0 || s.Savings < 0 || s.Needs+s.Wants+s.Savings != 100 {
		return Invalid("split", ErrInvalidSplit)
	}
	return nil
}

// Settings holds the engine-relevant preferences. Keys the engine does not
// understand (theme, density...) are kept in Extra and written back unchanged.
type Settings struct {
	MonthlyIncome      int64     `json:"monthlyIncome"`
	Split              Split     `json:"split"`
	Currency           string    `json:"currency"`
	IsCloudSyncEnabled bool      `json:"isCloudSyncEnabled"`
	LastSynced         time.Time `json:"lastSynced,omitzero"`
	LastSyncedRevision int64     `json:"lastSyncedRevision"`
	// LastSyncedSnapshotID is the identity of the remote snapshot this vault
	// last pushed or restored.
	LastSyncedSnapshotID string `json:"lastSyncedSnapshotId,omitempty"`
	HasLoadedMockData    bool   `json:"hasLoadedMockData"`

	Extra map[string]json.RawMessage `json:"-"`
}

var settingsKeys = []string{
	"monthlyIncome", "split", "currency", "isCloudSyncEnabled",
	"lastSynced", "lastSyncedRevision", "lastSyncedSnapshotId", "hasLoadedMockData",
}

// DefaultSettings returns the settings of a fresh vault.
func DefaultSettings() Settings {
	return Settings{
		Split:    DefaultSplit,
		Currency: "INR",
	}
}

type settingsAlias Settings

func (s Settings) MarshalJSON() ([]byte, error) {
	known, err := json.Marshal(settingsAlias(s))
	if err != nil {
		return nil, err
	}
	if len(s.Extra) == 0 {
		return known, nil
	}
	merged := make(map[string]json.RawMessage, len(s.Extra)+len(settingsKeys))
	for k, v := range s.Extra {
		merged[k] = v
	}
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(known, &fields); err != nil {
		return nil, err
	}
	for k, v := range fields {
		merged[k] = v
	}
	return json.Marshal(merged)
}

// UnmarshalJSON overlays the document on the receiver, so absent keys keep
// whatever defaults the caller set beforehand.
func (s *Settings) UnmarshalJSON(data []byte) error {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(data, &fields); err != nil {
		return err
	}
	alias := settingsAlias(*s)
	if err := json.Unmarshal(data, &alias); err != nil {
		return err
	}
	*s = Settings(alias)
	for _, k := range settingsKeys {
		delete(fields, k)
	}
	if len(fields) > 0 {
		s.Extra = fields
	}
	return nil
}

// Clone returns a copy that does not share the Extra map.
func (s Settings) Clone() Settings {
	if s.Extra != nil {
		extra := make(map[string]json.RawMessage, len(s.Extra))
		for k, v := range s.Extra {
			extra[k] = v
		}
		s.Extra = extra
	}
	return s
}
