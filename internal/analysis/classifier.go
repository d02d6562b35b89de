package analysis

import (
	"context"
	"fmt"
	"iter"
	"sync/atomic"
	"time"

	"github.com/sirupsen/logrus"
)

// TextStreamer opens a streaming generation and yields text fragments in arrival order.
type TextStreamer interface {
	Stream(ctx context.Context, prompt string) iter.Seq2[string, error]
}

// Classifier runs the classification prompt and decodes records as they stream in.
type Classifier struct {
	streamer TextStreamer
	timeout  time.Duration
	log      logrus.FieldLogger
}

// NewClassifier builds a classifier. A zero timeout leaves the stream unbounded.
func NewClassifier(streamer TextStreamer, timeout time.Duration, log logrus.FieldLogger) *Classifier {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Classifier{streamer: streamer, timeout: timeout, log: log}
}

// Classify returns a lazy sequence of records for prompt. The sequence can be
// ranged over once; it ends after the upstream stream ends or after the first
// error, which always wraps ErrStream.
func (c *Classifier) Classify(ctx context.Context, prompt string) iter.Seq2[AnalysisRecord, error] {
	var consumed atomic.Bool
	return func(yield func(AnalysisRecord, error) bool) {
		if consumed.Swap(true) {
			yield(AnalysisRecord{}, fmt.Errorf("%w: record sequence already consumed", ErrStream))
			return
		}

		streamCtx := ctx
		if c.timeout > 0 {
			var cancel context.CancelFunc
			streamCtx, cancel = context.WithTimeout(ctx, c.timeout)
			defer cancel()
		}

		start := time.Now()
		decoder := NewLineDecoder(c.log)
		chunks, emitted := 0, 0
		defer func() {
			c.log.WithFields(logrus.Fields{
				"chunks":    chunks,
				"lines":     decoder.Lines(),
				"records":   emitted,
				"discarded": decoder.Discarded(),
				"duration":  time.Since(start).Round(time.Millisecond),
			}).Debug("classification stream closed")
		}()

		for chunk, err := range c.streamer.Stream(streamCtx, prompt) {
			if err != nil {
				yield(AnalysisRecord{}, wrap(ErrStream, err))
				return
			}
			if err := streamCtx.Err(); err != nil {
				yield(AnalysisRecord{}, wrap(ErrStream, err))
				return
			}
			chunks++
			for _, rec := range decoder.Write(chunk) {
				emitted++
				if !yield(rec, nil) {
					return
				}
			}
		}
		if err := streamCtx.Err(); err != nil {
			yield(AnalysisRecord{}, wrap(ErrStream, err))
			return
		}

		for _, rec := range decoder.Flush() {
			emitted++
			if !yield(rec, nil) {
				return
			}
		}
	}
}
