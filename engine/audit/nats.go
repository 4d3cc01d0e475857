package audit

import (
	"context"

	"github.com/WessleyAI/wessley-parts/pkg/natsutil"
)

// DefaultSubject is the subject priced-request records are published on.
const DefaultSubject = "parts.priced"

// NATSSink publishes records as JSON with trace context in the headers.
type NATSSink struct {
	nc      natsutil.MsgPublisher
	subject string
}

// NewNATSSink creates a sink publishing on subject through nc.
func NewNATSSink(nc natsutil.MsgPublisher, subject string) *NATSSink {
	if subject == "" {
		subject = DefaultSubject
	}
	return &NATSSink{nc: nc, subject: subject}
}

func (s *NATSSink) Record(ctx context.Context, r Record) error {
	return natsutil.Publish(ctx, s.nc, s.subject, r)
}
