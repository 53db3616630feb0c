// Package pipeline turns repository notifications into indexed thesis
// documents.
//
// Every document is processed in isolation: a fetch, transform or write
// failure is logged with the offending URI and never stops the caller's
// loop or sibling documents.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/bft-labs/pit/internal/domain"
	"github.com/bft-labs/pit/internal/metrics"
	"github.com/bft-labs/pit/pkg/executor"
	"github.com/bft-labs/pit/pkg/log"
	"github.com/bft-labs/pit/pkg/stomp"
)

// DefaultConcurrency is the collection indexing concurrency.
const DefaultConcurrency = 10

// Index receives built documents.
type Index interface {
	Add(ctx context.Context, doc domain.Thesis) error
}

// Failure is a member that could not be indexed.
type Failure struct {
	URI string
	Err error
}

// CollectionReport lists indexed members in completion order and failures.
type CollectionReport struct {
	Indexed []string
	Failed  []Failure
}

// Pipeline fetches, builds and writes documents.
type Pipeline struct {
	fetcher *Fetcher
	index   Index
	logger  log.Logger
	metrics *metrics.Metrics
}

// New creates a pipeline. index is the target of OnNotification.
func New(fetcher *Fetcher, index Index, logger log.Logger, m *metrics.Metrics) *Pipeline {
	return &Pipeline{
		fetcher: fetcher,
		index:   index,
		logger:  logger,
		metrics: m,
	}
}

// IndexDocument builds the document for uri and adds it to index.
func (p *Pipeline) IndexDocument(ctx context.Context, index Index, uri string) (string, error) {
	start := time.Now()
	doc, err := p.BuildDocument(ctx, uri)
	if err != nil {
		p.recordFailure(err)
		return "", err
	}
	if err := index.Add(ctx, doc); err != nil {
		err = fmt.Errorf("%w: %s: %w", domain.ErrWrite, uri, err)
		p.recordFailure(err)
		return "", err
	}
	p.metrics.DocumentIndexed(time.Since(start))
	return uri, nil
}

// IndexCollection indexes every member of collectionURI with at most
// concurrency documents in flight. Per-member failures are logged and
// reported; the error is non-nil only when the listing cannot be read or
// ctx ends.
func (p *Pipeline) IndexCollection(ctx context.Context, collectionURI string, index Index, concurrency int) (CollectionReport, error) {
	if concurrency < 1 {
		concurrency = DefaultConcurrency
	}
	members, err := p.Members(ctx, collectionURI)
	if err != nil {
		return CollectionReport{}, err
	}
	p.logger.Info("indexing collection",
		log.String("collection", collectionURI),
		log.Int("members", len(members)),
		log.Int("concurrency", concurrency),
	)

	ex := executor.New(concurrency)
	handles := executor.Map(ctx, ex, func(ctx context.Context, uri string) (string, error) {
		return p.IndexDocument(ctx, index, uri)
	}, members)

	var report CollectionReport
	for h := range executor.Completed(handles) {
		uri, err := h.Result()
		if err != nil {
			member, _ := h.Item.(string)
			report.Failed = append(report.Failed, Failure{URI: member, Err: err})
			p.logger.Warn("failed to index document", log.String("uri", member), log.Err(err))
			continue
		}
		report.Indexed = append(report.Indexed, uri)
		p.logger.Info("indexed document", log.String("uri", uri))
	}
	ex.Wait()

	p.logger.Info("finished indexing collection",
		log.String("collection", collectionURI),
		log.Int("indexed", len(report.Indexed)),
		log.Int("failed", len(report.Failed)),
	)
	return report, ctx.Err()
}

// OnNotification is the subscription handler for repository events.
// Nothing it encounters is returned or re-panicked.
func (p *Pipeline) OnNotification(ctx context.Context, f stomp.Frame) {
	headers := f.HeaderMap()
	n := domain.NotificationFromHeaders(headers, f.Body)
	defer func() {
		if r := recover(); r != nil {
			p.logger.Error("notification handler panicked",
				log.String("message_id", n.MessageID),
				log.Any("panic", r),
			)
		}
	}()

	if !Indexable(headers) {
		p.metrics.Notification(false)
		p.logger.Debug("skipping notification",
			log.String("message_id", n.MessageID),
			log.String("resource_type", n.ResourceType),
			log.String("event_type", n.EventType),
		)
		return
	}
	p.metrics.Notification(true)
	p.logger.Debug("processing notification", log.String("message_id", n.MessageID))

	uri, err := SubjectFromMessage(n.Body)
	if err != nil {
		p.metrics.DocumentFailed(metrics.StageTransform)
		p.logger.Warn("unusable notification body",
			log.String("message_id", n.MessageID),
			log.Err(err),
		)
		return
	}

	if _, err := p.IndexDocument(ctx, p.index, uri); err != nil {
		if ctx.Err() != nil {
			p.logger.Debug("indexing cancelled", log.String("uri", uri))
			return
		}
		p.logger.Warn("error while indexing document",
			log.String("message_id", n.MessageID),
			log.String("uri", uri),
			log.Err(err),
		)
		return
	}
	p.logger.Info("indexed document", log.String("uri", uri), log.String("message_id", n.MessageID))
}

func (p *Pipeline) recordFailure(err error) {
	switch {
	case errors.Is(err, domain.ErrFetch):
		p.metrics.DocumentFailed(metrics.StageFetch)
	case errors.Is(err, domain.ErrTransform):
		p.metrics.DocumentFailed(metrics.StageTransform)
	case errors.Is(err, domain.ErrWrite):
		p.metrics.DocumentFailed(metrics.StageWrite)
	}
}
