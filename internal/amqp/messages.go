package amqp

import (
	"encoding/json"
	"fmt"
	"time"
)

// LedgerChangeMessage announces that the ledger was mutated. It carries no
// row data; consumers re-read the ledger.
type LedgerChangeMessage struct {
	Op        string    `json:"op"`
	Position  int       `json:"position"`
	Timestamp time.Time `json:"timestamp"`
}

func NewLedgerChangeMessage(op string, position int) *LedgerChangeMessage {
	return &LedgerChangeMessage{
		Op:        op,
		Position:  position,
		Timestamp: time.Now(),
	}
}

func (m *LedgerChangeMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

// LedgerChangeMessageFromJSON decodes a message and rejects unknown ops.
func LedgerChangeMessageFromJSON(data []byte) (*LedgerChangeMessage, error) {
	var msg LedgerChangeMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	switch msg.Op {
	case "append", "delete":
		return &msg, nil
	default:
		return nil, fmt.Errorf("unknown ledger op %q", msg.Op)
	}
}
