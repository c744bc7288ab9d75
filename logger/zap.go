package logger

import (
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

type zapBridge struct {
	logger Logger
}

func fieldsToMetadata(fields []zapcore.Field) map[string]interface{} {
	enc := zapcore.NewMapObjectEncoder()
	for _, f := range fields {
		f.AddTo(enc)
	}
	return enc.Fields
}

func (z *zapBridge) Enabled(zapcore.Level) bool {
	return true
}

func (z *zapBridge) With(fields []zapcore.Field) zapcore.Core {
	return &zapBridge{logger: z.logger.With(fieldsToMetadata(fields))}
}

func (z *zapBridge) Check(entry zapcore.Entry, ce *zapcore.CheckedEntry) *zapcore.CheckedEntry {
	return ce.AddCore(entry, z)
}

func (z *zapBridge) Write(entry zapcore.Entry, fields []zapcore.Field) error {
	log := z.logger
	if len(fields) > 0 {
		log = log.With(fieldsToMetadata(fields))
	}
	switch entry.Level {
	case zapcore.DebugLevel:
		log.Debug("%s", entry.Message)
	case zapcore.InfoLevel:
		log.Info("%s", entry.Message)
	case zapcore.WarnLevel:
		log.Warn("%s", entry.Message)
	case zapcore.ErrorLevel, zapcore.DPanicLevel, zapcore.PanicLevel, zapcore.FatalLevel:
		log.Error("%s", entry.Message)
	default:
		log.Trace("%s", entry.Message)
	}
	return nil
}

func (z *zapBridge) Sync() error {
	return nil
}

// ToZap returns a zap.Logger whose entries are written to logger. Zap fields
// become logger metadata.
func ToZap(logger Logger) *zap.Logger {
	return zap.New(&zapBridge{logger: logger})
}
