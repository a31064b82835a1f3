package amqp

import (
	"encoding/json"
	"time"
)

// AnalysisSyncMessage asks the worker to append one stored analysis to the
// history spreadsheet. The worker loads the row itself; Version lets it skip
// stale deliveries.
type AnalysisSyncMessage struct {
	ID        int64     `json:"id"`
	Version   int64     `json:"version"`
	Timestamp time.Time `json:"timestamp"`
}

func NewAnalysisSyncMessage(id, version int64) *AnalysisSyncMessage {
	return &AnalysisSyncMessage{
		ID:        id,
		Version:   version,
		Timestamp: time.Now(),
	}
}

func (m *AnalysisSyncMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

func AnalysisSyncMessageFromJSON(data []byte) (*AnalysisSyncMessage, error) {
	var msg AnalysisSyncMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	return &msg, nil
}
