package email

import (
	"context"
	"time"
)

// NewSendContext detaches parent's cancellation so a finished request does
// not abort a queued delivery. Values such as the request logger survive.
func NewSendContext(parent context.Context, timeout time.Duration) (context.Context, context.CancelFunc) {
	if parent == nil {
		parent = context.Background()
	}
	parent = context.WithoutCancel(parent)
	return context.WithTimeout(parent, timeout)
}
