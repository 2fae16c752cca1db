package reporter

import (
	"context"
	"time"

	"TaskAgent/backend/go/internal/journal"
	"TaskAgent/backend/go/internal/models"
	"TaskAgent/backend/go/pkg/logger"
)

// SourceUpdater writes a terminal status back onto a task row.
type SourceUpdater interface {
	Complete(ctx context.Context, taskID string, status models.TaskStatus, result models.TaskResult) error
}

type Options struct {
	SourceID      string
	ReportTimeout time.Duration
	Logger        *logger.Logger
	Journal       journal.Journal
}

// Reporter delivers each result exactly once to the channel it came from.
type Reporter struct {
	correlator *Correlator
	source     SourceUpdater
	opts       Options
}

func New(correlator *Correlator, source SourceUpdater, opts Options) *Reporter {
	if opts.ReportTimeout <= 0 {
		opts.ReportTimeout = 5 * time.Second
	}
	if opts.Logger == nil {
		opts.Logger = logger.New("result_reporter", "", opts.SourceID)
	}
	if opts.Journal == nil {
		opts.Journal = journal.Discard{}
	}
	return &Reporter{correlator: correlator, source: source, opts: opts}
}

// Report routes res by origin. Failures are logged and never retried.
func (r *Reporter) Report(ctx context.Context, origin models.TaskOrigin, res models.TaskResult) {
	log := r.opts.Logger.WithTask(res.TaskID, res.Kind)
	switch origin {
	case models.OriginSource:
		if r.source == nil {
			log.Error("No task source configured for source-origin result")
			return
		}
		ctx, cancel := context.WithTimeout(ctx, r.opts.ReportTimeout)
		defer cancel()
		if err := r.source.Complete(ctx, res.TaskID, res.Status(), res); err != nil {
			log.WithError(models.ErrorInfo{Message: err.Error()}).Error("Failed to write result to task source")
			return
		}
		log.WithPayload(map[string]interface{}{"status": res.Status()}).Debug("Result written to task source")
	default:
		if r.correlator != nil && r.correlator.Deliver(res) {
			return
		}
		log.WithPayload(map[string]interface{}{"success": res.Success}).Warn("Late result discarded; caller no longer waiting")
		entry := models.JournalEntry{
			TaskID:     res.TaskID,
			SourceID:   r.opts.SourceID,
			Kind:       res.Kind,
			Origin:     models.OriginSync,
			Success:    res.Success,
			ErrorCode:  res.ErrorCode,
			Reason:     res.Reason,
			StartedAt:  res.StartedAt,
			FinishedAt: res.FinishedAt,
			Note:       "late_result",
		}
		if err := r.opts.Journal.Append(ctx, entry); err != nil {
			log.WithError(models.ErrorInfo{Message: err.Error()}).Warn("Failed to journal late result")
		}
	}
}
