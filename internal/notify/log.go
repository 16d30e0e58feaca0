package notify

import (
	"pixelforge/internal/infra"
	"pixelforge/internal/jobclient"
)

// Log emits notifications as structured log events. Useful for CLI tools and
// tests where no user inbox exists.
type Log struct {
	logger infra.Logger
}

func NewLog(logger infra.Logger) *Log {
	return &Log{logger: logger}
}

func (n *Log) Show(kind jobclient.Kind, title, message string) jobclient.Handle {
	n.event(kind, title, message)
	return ""
}

func (n *Log) Update(_ jobclient.Handle, kind jobclient.Kind, title, message string) {
	n.event(kind, title, message)
}

func (n *Log) event(kind jobclient.Kind, title, message string) {
	evt := n.logger.Info()
	if kind == jobclient.KindError {
		evt = n.logger.Error()
	}
	evt.Str("kind", string(kind)).Str("title", title).Msg(message)
}

var _ jobclient.Notifier = (*Log)(nil)
