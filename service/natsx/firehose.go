package natsx

import (
	"encoding/json"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/pkg/errors"

	"github.com/harbor-im/harbor/logger"
	"github.com/harbor-im/harbor/service/storage"
)

const (
	SubjectDirect = "im.message.direct"
	SubjectGroup  = "im.message.group"
)

// Firehose publishes every persisted message to NATS for external consumers
// (archival, analytics). Publishing is fire-and-forget: a broker outage is
// logged and never fails a send.
type Firehose struct {
	nc *nats.Conn
}

func NewFirehose(url, name string) (*Firehose, error) {
	nc, err := nats.Connect(url,
		nats.Name(name),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(500*time.Millisecond),
		nats.Timeout(3*time.Second),
	)
	if err != nil {
		return nil, errors.Wrap(err, "connect nats")
	}
	return &Firehose{nc: nc}, nil
}

func (f *Firehose) PublishDirect(m *storage.DirectMessage) {
	if f == nil {
		return
	}
	f.publish(SubjectDirect, m)
}

func (f *Firehose) PublishGroup(m *storage.GroupMessage) {
	if f == nil {
		return
	}
	f.publish(SubjectGroup, m)
}

func (f *Firehose) publish(subject string, v any) {
	data, err := json.Marshal(v)
	if err != nil {
		logger.Errorf("[firehose] marshal %s: %v", subject, err)
		return
	}
	if err := f.nc.Publish(subject, data); err != nil {
		logger.Warnf("[firehose] publish %s: %v", subject, err)
	}
}

func (f *Firehose) Close() {
	if f == nil || f.nc == nil {
		return
	}
	f.nc.Drain() //nolint:errcheck
}
