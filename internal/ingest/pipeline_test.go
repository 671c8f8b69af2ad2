package ingest

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/textproof/textproof/internal/analyzer"
	"github.com/textproof/textproof/internal/extract"
	"github.com/textproof/textproof/internal/metrics"
)

type fakeAnalyzer struct {
	analyzeFunc func(ctx context.Context, text string) (analyzer.Verdict, error)
	calls       atomic.Int32
	lastText    atomic.Value
}

func (f *fakeAnalyzer) Analyze(ctx context.Context, text string) (analyzer.Verdict, error) {
	f.calls.Add(1)
	f.lastText.Store(text)
	if f.analyzeFunc == nil {
		return analyzer.Verdict{Summary: "Originality assessment: 100%", Success: true}, nil
	}
	return f.analyzeFunc(ctx, text)
}

func newTestPipeline(t *testing.T, az Analyzer, gate Gate) (*Pipeline, *Queue) {
	t.Helper()
	q := NewQueue(8)
	m := metrics.NewWith(prometheus.NewRegistry())
	p := NewPipeline(nil, q, gate, az, m, time.Second)
	return p, q
}

func runEvent(t *testing.T, p *Pipeline, q *Queue, ev Event) Outcome {
	t.Helper()
	target := NewWaitTarget()
	ev.Reply = target

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	done := make(chan struct{})
	go func() {
		defer close(done)
		p.Run(ctx)
	}()

	require.NoError(t, q.TryEnqueue(ev))
	out, err := target.Wait(ctx)
	require.NoError(t, err)

	q.Close()
	<-done
	return out
}

func TestPipelineAnalyzesTextMessage(t *testing.T) {
	t.Parallel()

	az := &fakeAnalyzer{}
	p, q := newTestPipeline(t, az, Gate{MaxDocumentBytes: 1 << 20})

	out := runEvent(t, p, q, NewTextEvent("Проверка текста", nil))
	require.NoError(t, out.Err)
	assert.True(t, out.Verdict.Success)
	assert.Equal(t, "Проверка текста", az.lastText.Load())
}

func TestPipelineExtractsThenAnalyzesDocument(t *testing.T) {
	t.Parallel()

	az := &fakeAnalyzer{}
	p, q := newTestPipeline(t, az, Gate{MaxDocumentBytes: 1 << 20})

	ev := NewDocumentEvent(Document{
		Filename: "notes.txt",
		Format:   extract.FormatText,
		Data:     []byte("hello world"),
	}, nil)

	out := runEvent(t, p, q, ev)
	require.NoError(t, out.Err)
	assert.Equal(t, "hello world", out.Content)
	assert.Equal(t, "hello world", az.lastText.Load())
	assert.True(t, out.Verdict.Success)
}

func TestPipelineRejectionSkipsExtractionAndAnalysis(t *testing.T) {
	t.Parallel()

	az := &fakeAnalyzer{}
	p, q := newTestPipeline(t, az, Gate{MaxDocumentBytes: 4})

	var extractions atomic.Int32
	p.extractFn = func(data []byte, format extract.Format) (string, error) {
		extractions.Add(1)
		return extract.Extract(data, format)
	}

	ev := NewDocumentEvent(Document{
		Filename: "big.txt",
		Format:   extract.FormatText,
		Data:     []byte("way past the limit"),
	}, nil)

	out := runEvent(t, p, q, ev)
	require.ErrorIs(t, out.Err, ErrTooLarge)
	assert.Equal(t, int32(0), extractions.Load())
	assert.Equal(t, int32(0), az.calls.Load())
}

func TestPipelineUnsupportedFormatRejected(t *testing.T) {
	t.Parallel()

	az := &fakeAnalyzer{}
	p, q := newTestPipeline(t, az, Gate{MaxDocumentBytes: 1 << 20})

	ev := NewDocumentEvent(Document{Filename: "contract.exe", Data: []byte("MZ")}, nil)

	out := runEvent(t, p, q, ev)
	require.ErrorIs(t, out.Err, extract.ErrUnsupported)
	assert.Equal(t, int32(0), az.calls.Load())
}

func TestPipelineExtractionFailureSkipsAnalysis(t *testing.T) {
	t.Parallel()

	az := &fakeAnalyzer{}
	p, q := newTestPipeline(t, az, Gate{MaxDocumentBytes: 1 << 20})

	ev := NewDocumentEvent(Document{
		Filename: "report.pdf",
		Format:   extract.FormatPDF,
		Data:     []byte("not really a pdf"),
	}, nil)

	out := runEvent(t, p, q, ev)
	require.ErrorIs(t, out.Err, extract.ErrParse)
	assert.Equal(t, int32(0), az.calls.Load())
}

func TestPipelineEmptyExtractedTextStillAnalyzed(t *testing.T) {
	t.Parallel()

	az := &fakeAnalyzer{}
	p, q := newTestPipeline(t, az, Gate{MaxDocumentBytes: 1 << 20})

	ev := NewDocumentEvent(Document{
		Filename: "empty.txt",
		Format:   extract.FormatText,
		Data:     nil,
	}, nil)

	out := runEvent(t, p, q, ev)
	require.NoError(t, out.Err)
	assert.Equal(t, int32(1), az.calls.Load())
	assert.Equal(t, "", az.lastText.Load())
}

func TestPipelineAnalysisFailureSanitized(t *testing.T) {
	t.Parallel()

	az := &fakeAnalyzer{
		analyzeFunc: func(ctx context.Context, text string) (analyzer.Verdict, error) {
			return analyzer.Verdict{}, analyzer.ErrBackend
		},
	}
	p, q := newTestPipeline(t, az, Gate{MaxDocumentBytes: 1 << 20})

	out := runEvent(t, p, q, NewTextEvent("some text", nil))
	require.ErrorIs(t, out.Err, analyzer.ErrBackend)
	assert.False(t, out.Verdict.Success)
	assert.Equal(t, UserMessageAnalysisFailed, out.Verdict.Summary)
}

func TestPipelineAnalyzerTimeoutBounded(t *testing.T) {
	t.Parallel()

	az := &fakeAnalyzer{
		analyzeFunc: func(ctx context.Context, text string) (analyzer.Verdict, error) {
			<-ctx.Done()
			return analyzer.Verdict{}, analyzer.ErrBackend
		},
	}
	q := NewQueue(8)
	m := metrics.NewWith(prometheus.NewRegistry())
	p := NewPipeline(nil, q, Gate{MaxDocumentBytes: 1 << 20}, az, m, 100*time.Millisecond)

	start := time.Now()
	out := runEvent(t, p, q, NewTextEvent("slow", nil))
	require.ErrorIs(t, out.Err, analyzer.ErrBackend)
	assert.False(t, out.Verdict.Success)
	assert.Less(t, time.Since(start), 2*time.Second)
}

func TestPipelinePerSourceOrderPreserved(t *testing.T) {
	t.Parallel()

	az := &fakeAnalyzer{}
	p, q := newTestPipeline(t, az, Gate{})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	first := NewWaitTarget()
	second := NewWaitTarget()

	var order []string
	az.analyzeFunc = func(_ context.Context, text string) (analyzer.Verdict, error) {
		order = append(order, text)
		return analyzer.Verdict{Summary: "ok", Success: true}, nil
	}

	require.NoError(t, q.TryEnqueue(NewTextEvent("message one", first)))
	require.NoError(t, q.TryEnqueue(NewTextEvent("message two", second)))

	done := make(chan struct{})
	go func() {
		defer close(done)
		p.Run(ctx)
	}()

	_, err := first.Wait(ctx)
	require.NoError(t, err)
	_, err = second.Wait(ctx)
	require.NoError(t, err)

	q.Close()
	<-done
	assert.Equal(t, []string{"message one", "message two"}, order)
}

func TestWaitTargetDeliveryAfterAbandonIsNoOp(t *testing.T) {
	t.Parallel()

	target := NewWaitTarget()

	// Caller gives up before delivery.
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	_, err := target.Wait(ctx)
	require.ErrorIs(t, err, context.DeadlineExceeded)

	// Late delivery must not block or panic.
	target.Deliver(context.Background(), Outcome{})
	target.Deliver(context.Background(), Outcome{})
}
