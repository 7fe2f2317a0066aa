package log

import (
	"io"
	"os"

	"github.com/gofiber/fiber/v2"
	"github.com/sirupsen/logrus"
)

var logger = newLogger(os.Stdout)

func newLogger(w io.Writer) *logrus.Logger {
	l := logrus.New()
	l.SetOutput(w)
	l.SetLevel(logrus.InfoLevel)
	l.SetFormatter(&logrus.JSONFormatter{
		TimestampFormat: "2006-01-02T15:04:05Z07:00",
		FieldMap: logrus.FieldMap{
			logrus.FieldKeyTime: "ts",
			logrus.FieldKeyMsg:  "action",
		},
	})
	return l
}

// L returns the process logger for logs that are not tied to a request.
func L() *logrus.Logger { return logger }

// SetOutput redirects every log line, e.g. to stdout plus LOG_FILE.
func SetOutput(w io.Writer) { logger.SetOutput(w) }

func write(level logrus.Level, c *fiber.Ctx, action string, err error, fields map[string]any) {
	e := logrus.NewEntry(logger)
	if len(fields) > 0 {
		e = e.WithField("fields", fields)
	}
	if c != nil {
		e = e.WithFields(logrus.Fields{
			"ip":     c.IP(),
			"method": c.Method(),
			"path":   c.Path(),
			"status": c.Response().StatusCode(),
		})
		if rid, ok := c.Locals("requestid").(string); ok && rid != "" {
			e = e.WithField("req_id", rid)
		}
	}
	if err != nil {
		e = e.WithField("err", err.Error())
	}
	e.Log(level, action)
}

func Info(c *fiber.Ctx, action string, fields map[string]any) {
	write(logrus.InfoLevel, c, action, nil, fields)
}

// Audit records merchant-visible state changes (orders, payments, catalog edits).
func Audit(c *fiber.Ctx, action string, fields map[string]any) {
	write(logrus.InfoLevel, c, action, nil, mergeKind(fields, "audit"))
}

func Security(c *fiber.Ctx, action string, fields map[string]any) {
	write(logrus.WarnLevel, c, action, nil, fields)
}

func Error(c *fiber.Ctx, action string, err error, fields map[string]any) {
	write(logrus.ErrorLevel, c, action, err, fields)
}

func mergeKind(fields map[string]any, kind string) map[string]any {
	out := make(map[string]any, len(fields)+1)
	for k, v := range fields {
		out[k] = v
	}
	out["kind"] = kind
	return out
}

// Writer is where every log line goes; the access log middleware shares it.
func Writer() io.Writer { return logger.Out }
