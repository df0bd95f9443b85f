package session

import (
	"context"
	"sync"

	"github.com/rs/zerolog"

	"tsuzi/internal/llm"
	"tsuzi/internal/logging"
)

type summaryJob struct {
	previous string
	turns    []Turn
}

// SummaryWorker compresses older conversation turns in the background. The
// queue holds at most one job; a compression triggered while one is pending
// is skipped rather than queued, so the live session never blocks on
// summarization.
type SummaryWorker struct {
	summarizer llm.Summarizer
	conv       *Conversation
	jobs       chan summaryJob
	log        zerolog.Logger

	cancel context.CancelFunc
	wg     sync.WaitGroup
	once   sync.Once
}

// NewSummaryWorker creates a worker publishing summaries into conv.
func NewSummaryWorker(summarizer llm.Summarizer, conv *Conversation) *SummaryWorker {
	return &SummaryWorker{
		summarizer: summarizer,
		conv:       conv,
		jobs:       make(chan summaryJob, 1),
		log:        logging.Component("summarizer"),
	}
}

// Start launches the worker goroutine.
func (w *SummaryWorker) Start() {
	ctx, cancel := context.WithCancel(context.Background())
	w.cancel = cancel
	w.wg.Add(1)
	go w.run(ctx)
}

// TryEnqueue offers older turns for compression. Returns false when a job is
// already pending; the dropped turns simply stay uncompressed in the summary
// lineage, which is acceptable lossy behavior.
func (w *SummaryWorker) TryEnqueue(turns []Turn) bool {
	if len(turns) == 0 {
		return false
	}
	select {
	case w.jobs <- summaryJob{previous: w.conv.Summary(), turns: turns}:
		return true
	default:
		return false
	}
}

func (w *SummaryWorker) run(ctx context.Context) {
	defer w.wg.Done()
	for {
		select {
		case <-ctx.Done():
			return
		case job := <-w.jobs:
			msgs := make([]llm.Message, len(job.turns))
			for i, t := range job.turns {
				msgs[i] = llm.Message{Role: t.Role, Content: t.Text}
			}
			summary, err := w.summarizer.Summarize(ctx, job.previous, msgs)
			if err != nil {
				w.log.Warn().Err(err).Msg("summarization failed, keeping previous summary")
				continue
			}
			w.conv.SetSummary(summary)
			w.log.Debug().Int("turns", len(job.turns)).Msg("history compressed")
		}
	}
}

// Close stops the worker. A job in flight is abandoned via context cancel.
func (w *SummaryWorker) Close() {
	w.once.Do(func() {
		if w.cancel != nil {
			w.cancel()
		}
		w.wg.Wait()
	})
}
