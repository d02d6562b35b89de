package analysis

import (
	"context"
	"iter"
	"sync"

	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
)

// scriptedStreamer replays fixed chunks and optionally fails after failAt chunks.
type scriptedStreamer struct {
	chunks []string
	err    error
	failAt int
	calls  int
}

func (s *scriptedStreamer) Stream(_ context.Context, _ string) iter.Seq2[string, error] {
	s.calls++
	return func(yield func(string, error) bool) {
		for i, chunk := range s.chunks {
			if s.err != nil && i == s.failAt {
				yield("", s.err)
				return
			}
			if !yield(chunk, nil) {
				return
			}
		}
		if s.err != nil && s.failAt >= len(s.chunks) {
			yield("", s.err)
		}
	}
}

// fakeGenerator answers context calls with a canned response.
type fakeGenerator struct {
	mu        sync.Mutex
	response  string
	err       error
	grounding bool
	prompts   []string
	grounded  []bool
}

func (g *fakeGenerator) Generate(_ context.Context, prompt string, grounded bool) (string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.prompts = append(g.prompts, prompt)
	g.grounded = append(g.grounded, grounded)
	if g.err != nil {
		return "", g.err
	}
	return g.response, nil
}

func (g *fakeGenerator) Grounding() bool { return g.grounding }

func (g *fakeGenerator) calls() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.prompts)
}

type fakePages struct {
	text string
	err  error
	urls []string
}

func (p *fakePages) ReadText(_ context.Context, pageURL string) (string, error) {
	p.urls = append(p.urls, pageURL)
	return p.text, p.err
}

// collectSink records everything a run delivers.
type collectSink struct {
	contexts []BusinessContext
	records  []AnalysisRecord
	failAt   int
	err      error
}

func (s *collectSink) Context(bc BusinessContext) {
	s.contexts = append(s.contexts, bc)
}

func (s *collectSink) Record(rec AnalysisRecord) error {
	if s.err != nil && len(s.records) == s.failAt {
		return s.err
	}
	s.records = append(s.records, rec)
	return nil
}

func quietLogger() (*logrus.Logger, *test.Hook) {
	return test.NewNullLogger()
}

func terms(records []AnalysisRecord) []string {
	out := make([]string, 0, len(records))
	for _, rec := range records {
		out = append(out, rec.Term)
	}
	return out
}
