package logger

import (
	"fmt"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/buffer"
	"go.uber.org/zap/zapcore"
)

const (
	colorReset = "\x1b[0m"
	colorBold  = "\x1b[1m"
	colorDim   = "\x1b[38;5;108m"
	colorWarn  = "\x1b[38;5;179m\x1b[48;5;58m"
	colorError = "\x1b[38;5;167m\x1b[48;5;52m"
)

var bufferPool = buffer.NewPool()

// minimalEncoder writes one compact line per entry:
// "13:04:35  WARN  w.watch  Regeneration failed  file=Counter.blueprint"
// The level is shown only above INFO.
type minimalEncoder struct {
	zapcore.Encoder // Serializes With() context fields
	color           bool
}

func newMinimalEncoder(color bool) *minimalEncoder {
	return &minimalEncoder{
		Encoder: zapcore.NewJSONEncoder(zap.NewProductionEncoderConfig()),
		color:   color,
	}
}

func (enc *minimalEncoder) Clone() zapcore.Encoder {
	return &minimalEncoder{Encoder: enc.Encoder.Clone(), color: enc.color}
}

func (enc *minimalEncoder) EncodeEntry(ent zapcore.Entry, fields []zapcore.Field) (*buffer.Buffer, error) {
	final := bufferPool.Get()

	final.AppendString(enc.paint(colorDim, ent.Time.Format("15:04:05")))

	if ent.Level > zapcore.InfoLevel {
		final.AppendString("  ")
		final.AppendString(enc.levelString(ent.Level))
	}

	if ent.LoggerName != "" {
		final.AppendString("  ")
		final.AppendString(enc.paint(colorDim, abbreviateName(ent.LoggerName)))
	}

	final.AppendString("  ")
	final.AppendString(ent.Message)

	if len(fields) > 0 {
		final.AppendString("  ")
		final.AppendString(formatFields(fields))
	}

	final.AppendString("\n")
	return final, nil
}

func (enc *minimalEncoder) paint(color, s string) string {
	if !enc.color {
		return s
	}
	return color + s + colorReset
}

func (enc *minimalEncoder) levelString(level zapcore.Level) string {
	color := colorError
	if level == zapcore.WarnLevel {
		color = colorWarn
	}
	if !enc.color {
		return level.CapitalString()
	}
	return colorBold + color + level.CapitalString() + colorReset
}

// abbreviateName shortens component names: watch -> watch, lsp.handler -> l.handler
func abbreviateName(name string) string {
	parts := strings.Split(name, ".")
	if len(parts) > 1 {
		return string(parts[0][0]) + "." + strings.Join(parts[1:], ".")
	}
	return name
}

// formatFields renders fields as key=value in call order.
func formatFields(fields []zapcore.Field) string {
	parts := make([]string, 0, len(fields))
	for _, field := range fields {
		m := zapcore.NewMapObjectEncoder()
		field.AddTo(m)
		value, ok := m.Fields[field.Key]
		if !ok {
			continue
		}
		s := fmt.Sprint(value)
		if strings.ContainsAny(s, " \t") {
			s = fmt.Sprintf("%q", s)
		}
		parts = append(parts, field.Key+"="+s)
	}
	return strings.Join(parts, " ")
}
