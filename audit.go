package goGuard

import (
	"io"

	"github.com/MrEthical07/goGuard/internal/audit"
	"go.uber.org/zap"
)

const (
	SeverityInfo    = audit.SeverityInfo
	SeverityWarning = audit.SeverityWarning
	SeverityHigh    = audit.SeverityHigh
)

type (
	NoOpSink       = audit.NoOpSink
	ChannelSink    = audit.ChannelSink
	JSONWriterSink = audit.JSONWriterSink
	MultiSink      = audit.MultiSink
)

func NewChannelSink(buffer int) *ChannelSink {
	return audit.NewChannelSink(buffer)
}

func NewJSONWriterSink(w io.Writer) *JSONWriterSink {
	return audit.NewJSONWriterSink(w)
}

// NewZapSink logs audit events through logger.
func NewZapSink(logger *zap.Logger) AuditSink {
	return audit.NewZapSink(logger)
}
