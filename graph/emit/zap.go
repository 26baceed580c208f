package emit

import (
	"go.uber.org/zap"
)

// ZapEmitter forwards events to a zap logger.
//
// Events carrying an "error" meta key are logged at Error level, everything
// else at Info. The logger does the buffering and encoding; this emitter
// only maps fields.
type ZapEmitter struct {
	logger *zap.Logger
}

// NewZapEmitter creates a ZapEmitter. A nil logger falls back to zap.NewNop,
// so a half-configured engine never panics on emit.
func NewZapEmitter(logger *zap.Logger) *ZapEmitter {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ZapEmitter{logger: logger}
}

func (z *ZapEmitter) Emit(event Event) {
	fields := []zap.Field{
		zap.String("threadId", event.ThreadID),
		zap.Int("step", event.Step),
		zap.String("nodeId", event.NodeID),
	}
	for k, v := range event.Meta {
		if k == "error" {
			continue // folded into the log level below
		}
		fields = append(fields, zap.Any(k, v))
	}

	if errVal, ok := event.Meta["error"]; ok {
		fields = append(fields, zap.Any("error", errVal))
		z.logger.Error(event.Msg, fields...)
		return
	}
	z.logger.Info(event.Msg, fields...)
}
