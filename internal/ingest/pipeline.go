package ingest

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/textproof/textproof/internal/analyzer"
	"github.com/textproof/textproof/internal/extract"
	"github.com/textproof/textproof/internal/metrics"
)

// Analyzer scores text and returns a verdict or a classified error.
type Analyzer interface {
	Analyze(ctx context.Context, text string) (analyzer.Verdict, error)
}

const (
	outcomeDelivered = "delivered"
	outcomeRejected  = "rejected"
	outcomeFailed    = "failed"
)

// UserMessageAnalysisFailed is the sanitized message shown when the
// analysis backend could not produce a verdict.
const UserMessageAnalysisFailed = "Analysis failed, please try again."

// Pipeline is the single consumer of the ingestion queue. One event is in
// flight at a time, so at most one extraction and one analyzer call run
// concurrently regardless of producer parallelism.
type Pipeline struct {
	logger         *slog.Logger
	queue          *Queue
	gate           Gate
	analyzer       Analyzer
	metrics        *metrics.Metrics
	analyzeTimeout time.Duration

	// extractFn is the extraction entry point; a seam for tests.
	extractFn func(data []byte, format extract.Format) (string, error)
}

// NewPipeline wires the consumer. analyzeTimeout bounds each analyzer call
// independently of the producers' own wait budgets.
func NewPipeline(log *slog.Logger, queue *Queue, gate Gate, az Analyzer, m *metrics.Metrics, analyzeTimeout time.Duration) *Pipeline {
	if log == nil {
		log = slog.Default()
	}
	if analyzeTimeout <= 0 {
		analyzeTimeout = 30 * time.Second
	}
	return &Pipeline{
		logger:         log.With(slog.String("component", "pipeline")),
		queue:          queue,
		gate:           gate,
		analyzer:       az,
		metrics:        m,
		analyzeTimeout: analyzeTimeout,
		extractFn:      extract.Extract,
	}
}

// Run consumes events until the queue closes or ctx is cancelled. Events
// already dequeued are finished even when ctx fires mid-processing; their
// delivery degrades to a no-op if the originating caller is gone.
func (p *Pipeline) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			p.logger.Info("pipeline stopping", slog.String("reason", "context cancelled"))
			return
		case ev, ok := <-p.queue.Events():
			if !ok {
				p.logger.Info("pipeline stopping", slog.String("reason", "queue closed"))
				return
			}
			p.process(ctx, ev)
		}
	}
}

func (p *Pipeline) process(ctx context.Context, ev Event) {
	if p.metrics != nil {
		p.metrics.QueueDepth.Set(float64(p.queue.Len()))
	}

	if err := p.gate.Validate(ev); err != nil {
		p.logger.Info("event rejected",
			slog.String("event_id", ev.ID),
			slog.String("kind", string(ev.Kind)),
			slog.Any("reason", err),
		)
		p.count(ev, outcomeRejected)
		p.countRejection(err)
		p.deliver(ctx, ev, Outcome{Err: err})
		return
	}

	text := ev.Text
	content := ""
	if ev.Kind == KindUploadedDocument {
		extracted, err := p.extractFn(ev.Document.Data, ev.Document.Format)
		if err != nil {
			p.logger.Warn("extraction failed",
				slog.String("event_id", ev.ID),
				slog.String("format", ev.Document.Format.String()),
				slog.Any("error", err),
			)
			p.count(ev, outcomeFailed)
			p.deliver(ctx, ev, Outcome{Err: err})
			return
		}
		text = extracted
		content = extracted
	}

	actx, cancel := context.WithTimeout(ctx, p.analyzeTimeout)
	verdict, err := p.analyzer.Analyze(actx, text)
	cancel()
	if err != nil {
		p.logger.Warn("analysis failed",
			slog.String("event_id", ev.ID),
			slog.Any("error", err),
		)
		if p.metrics != nil {
			p.metrics.AnalyzerFailures.Inc()
		}
		p.count(ev, outcomeFailed)
		p.deliver(ctx, ev, Outcome{
			Content: content,
			Verdict: analyzer.FailureVerdict(UserMessageAnalysisFailed),
			Err:     err,
		})
		return
	}

	p.count(ev, outcomeDelivered)
	p.deliver(ctx, ev, Outcome{Content: content, Verdict: verdict})
}

func (p *Pipeline) deliver(ctx context.Context, ev Event, out Outcome) {
	if ev.Reply == nil {
		p.logger.Warn("event has no reply target", slog.String("event_id", ev.ID))
		return
	}
	ev.Reply.Deliver(ctx, out)
}

func (p *Pipeline) count(ev Event, outcome string) {
	if p.metrics == nil {
		return
	}
	p.metrics.EventsTotal.WithLabelValues(string(ev.Kind), outcome).Inc()
}

func (p *Pipeline) countRejection(err error) {
	if p.metrics == nil {
		return
	}
	reason := "unsupported_format"
	if errors.Is(err, ErrTooLarge) {
		reason = "too_large"
	}
	p.metrics.RejectionsTotal.WithLabelValues(reason).Inc()
}
