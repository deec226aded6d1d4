package queue

import "context"

// Job defines a queue job handler.
type Job interface {
	// Name identifies the job in logs.
	Name() string

	// Type is the message type the job handles.
	Type() string

	// Handle processes one message payload. Returning an error schedules a
	// retry until the retry limit, then dead-letters the message.
	Handle(ctx context.Context, payload interface{}) error
}
