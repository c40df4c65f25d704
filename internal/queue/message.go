package queue

import (
	"encoding/json"
	"errors"
	"time"
)

// MessageVersion is bumped when the wire shape changes.
const MessageVersion = 1

// Message is one unit of work placed on the job queue.
type Message struct {
	JobID      string    `json:"jobId"`
	RequestID  string    `json:"requestId,omitempty"`
	EnqueuedAt time.Time `json:"enqueuedAt"`
	Version    int       `json:"version"`
}

// NewMessage builds a versioned message for a job.
func NewMessage(jobID, requestID string) Message {
	return Message{
		JobID:      jobID,
		RequestID:  requestID,
		EnqueuedAt: time.Now().UTC(),
		Version:    MessageVersion,
	}
}

// Encode serializes the message for the queue.
func (m Message) Encode() ([]byte, error) {
	return json.Marshal(m)
}

// Decode parses a queued payload and rejects messages without a job ID.
func Decode(data []byte) (Message, error) {
	var m Message
	if err := json.Unmarshal(data, &m); err != nil {
		return Message{}, err
	}
	if m.JobID == "" {
		return Message{}, errors.New("queue message missing job id")
	}
	return m, nil
}
