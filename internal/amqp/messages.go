package amqp

import (
	"encoding/json"
	"errors"
	"time"
)

// TransactionAppendedMessage announces a row that was appended to the
// sheet. It carries enough to audit ids without reading the sheet back.
type TransactionAppendedMessage struct {
	ID              int64     `json:"id"`
	TransactionType string    `json:"transactionType"`
	Amount          string    `json:"amount"`
	Category        string    `json:"category"`
	Date            string    `json:"date"`
	Timestamp       time.Time `json:"timestamp"`
}

// NewTransactionAppendedMessage stamps the message with the current time.
func NewTransactionAppendedMessage(id int64, typ, amount, category, date string) *TransactionAppendedMessage {
	return &TransactionAppendedMessage{
		ID:              id,
		TransactionType: typ,
		Amount:          amount,
		Category:        category,
		Date:            date,
		Timestamp:       time.Now().UTC(),
	}
}

func (m *TransactionAppendedMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

// TransactionAppendedMessageFromJSON decodes a message. Ids below 1 are
// rejected.
func TransactionAppendedMessageFromJSON(data []byte) (*TransactionAppendedMessage, error) {
	var msg TransactionAppendedMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	if msg.ID < 1 {
		return nil, errors.New("message id must be >= 1")
	}
	return &msg, nil
}
