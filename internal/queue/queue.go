// Package queue abstracts the work queue the upload pipeline reads
// transcode jobs from. Messages stay visible until explicitly deleted, so
// delivery is at-least-once.
package queue

import (
	"context"
	"errors"
)

// Message is a single work item pulled from the queue. ReceiptHandle is the
// opaque token Delete needs to remove this delivery.
type Message struct {
	Body          string
	ReceiptHandle string
}

// ErrReceiptRequired is returned when Delete is called with a blank receipt.
var ErrReceiptRequired = errors.New("queue: receipt handle required")

// Gateway is the work queue contract. Receive blocks up to the configured
// wait time and returns at most max messages; an empty slice means the queue
// was idle. Delete removes a previously received delivery.
type Gateway interface {
	Receive(ctx context.Context, max int) ([]Message, error)
	Delete(ctx context.Context, receiptHandle string) error
}
