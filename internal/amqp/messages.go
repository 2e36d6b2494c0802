package amqp

import (
	"encoding/json"
	"errors"
	"time"
)

// SnapshotSyncMessage asks the sync worker to upload the persisted snapshot.
// It carries only the revision; the worker loads the document itself and
// skips messages older than what it already uploaded.
type SnapshotSyncMessage struct {
	Revision  int64     `json:"revision"`
	Reason    string    `json:"reason,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

func NewSnapshotSyncMessage(revision int64, reason string) *SnapshotSyncMessage {
	return &SnapshotSyncMessage{
		Revision:  revision,
		Reason:    reason,
		Timestamp: time.Now(),
	}
}

func (m *SnapshotSyncMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

func SnapshotSyncMessageFromJSON(data []byte) (*SnapshotSyncMessage, error) {
	var msg SnapshotSyncMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	if msg.Revision < 0 {
		return nil, errors.New("revision must not be negative")
	}
	return &msg, nil
}
