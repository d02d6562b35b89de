package logging

import (
	"io"
	"os"
	"strings"

	"github.com/sirupsen/logrus"
)

// Setup configures the standard logrus logger to write to stdout and, when
// file is set, to that file. The returned function releases the file.
func Setup(level, format, file string) (func() error, error) {
	logger := logrus.StandardLogger()

	parsed, err := logrus.ParseLevel(strings.TrimSpace(level))
	if err != nil {
		parsed = logrus.InfoLevel
	}
	logger.SetLevel(parsed)

	if strings.EqualFold(strings.TrimSpace(format), "json") {
		logger.SetFormatter(&logrus.JSONFormatter{TimestampFormat: "2006-01-02T15:04:05.000Z07:00"})
	} else {
		logger.SetFormatter(&logrus.TextFormatter{
			FullTimestamp:   true,
			TimestampFormat: "2006-01-02 15:04:05",
		})
	}

	closer := func() error { return nil }
	writers := []io.Writer{os.Stdout}
	if path := strings.TrimSpace(file); path != "" {
		f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return closer, err
		}
		writers = append(writers, f)
		closer = f.Close
	}
	logger.SetOutput(io.MultiWriter(writers...))
	return closer, nil
}
