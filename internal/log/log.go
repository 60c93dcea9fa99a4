package log

import (
	"os"
	"strings"
	"sync"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var (
	mu     sync.RWMutex
	logger = zap.NewNop()
)

// New builds the process logger. Entries go to stdout and, when file is set,
// are appended to that file as well.
func New(level, encoding, file string) (*zap.Logger, error) {
	lvl, err := zapcore.ParseLevel(strings.ToLower(strings.TrimSpace(level)))
	if err != nil {
		lvl = zapcore.InfoLevel
	}
	encCfg := zap.NewProductionEncoderConfig()
	encCfg.TimeKey = "ts"
	encCfg.EncodeTime = zapcore.RFC3339TimeEncoder
	encCfg.MessageKey = "action"

	var enc zapcore.Encoder
	if encoding == "console" {
		enc = zapcore.NewConsoleEncoder(encCfg)
	} else {
		enc = zapcore.NewJSONEncoder(encCfg)
	}

	sink := zapcore.AddSync(os.Stdout)
	if file != "" {
		f, err := os.OpenFile(file, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
		if err != nil {
			return nil, err
		}
		sink = zapcore.NewMultiWriteSyncer(sink, zapcore.AddSync(f))
	}
	return zap.New(zapcore.NewCore(enc, sink, lvl), zap.AddCaller()), nil
}

// Set replaces the logger used by the request helpers below.
func Set(l *zap.Logger) {
	if l == nil {
		l = zap.NewNop()
	}
	mu.Lock()
	logger = l
	mu.Unlock()
}

func L() *zap.Logger {
	mu.RLock()
	defer mu.RUnlock()
	return logger
}

func requestFields(c *fiber.Ctx, kind string, fields map[string]any) []zap.Field {
	out := []zap.Field{zap.String("kind", kind)}
	if c != nil {
		out = append(out,
			zap.String("ip", c.IP()),
			zap.String("method", c.Method()),
			zap.String("path", c.Path()),
			zap.Int("status", c.Response().StatusCode()),
		)
		if rid, ok := c.Locals("requestid").(string); ok && rid != "" {
			out = append(out, zap.String("req_id", rid))
		}
		if uid, ok := c.Locals("user_id").(string); ok && uid != "" {
			out = append(out, zap.String("user_id", uid))
		}
	}
	if len(fields) > 0 {
		out = append(out, zap.Any("fields", fields))
	}
	return out
}

func Info(c *fiber.Ctx, action string, fields map[string]any) {
	L().Info(action, requestFields(c, "info", fields)...)
}

func Audit(c *fiber.Ctx, action string, fields map[string]any) {
	L().Info(action, requestFields(c, "audit", fields)...)
}

func Security(c *fiber.Ctx, action string, fields map[string]any) {
	L().Warn(action, requestFields(c, "security", fields)...)
}

func Error(c *fiber.Ctx, action string, err error, fields map[string]any) {
	L().Error(action, append(requestFields(c, "error", fields), zap.Error(err))...)
}
