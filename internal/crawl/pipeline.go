package crawl

import (
	"context"
	"sync"

	"golang.org/x/time/rate"

	"github.com/jonesrussell/north-cloud/pagemonitor/internal/classifier"
	"github.com/jonesrussell/north-cloud/pagemonitor/internal/database"
	"github.com/jonesrussell/north-cloud/pagemonitor/internal/domain"
	"github.com/jonesrussell/north-cloud/pagemonitor/internal/fetcher"
	"github.com/jonesrussell/north-cloud/pagemonitor/internal/jobs"
	"github.com/jonesrussell/north-cloud/pagemonitor/internal/logger"
)

// pageOutcome is what a worker hands to the writer.
type pageOutcome struct {
	page   domain.MonitoredPage
	fetch  *fetcher.Result
	result classifier.Result
}

// crawlPages dispatches pages to the worker pool and applies each outcome
// in the calling goroutine, the job's only writer.
func (c *Coordinator) crawlPages(ctx context.Context, run *jobs.Run, pages []domain.MonitoredPage, log logger.Logger) {
	work := make(chan domain.MonitoredPage)
	results := make(chan pageOutcome, c.cfg.Workers)

	go c.dispatch(ctx, run, pages, work, log)

	var wg sync.WaitGroup
	for range c.cfg.Workers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			c.worker(ctx, run, work, results)
		}()
	}
	go func() {
		wg.Wait()
		close(results)
	}()

	// Recording continues after a shutdown so dispatched pages are never
	// half-applied.
	writeCtx := context.WithoutCancel(ctx)
	for out := range results {
		c.apply(writeCtx, run, out, log)
	}
}

// dispatch feeds pages to workers at the configured pace until the list is
// exhausted or a stop is requested.
func (c *Coordinator) dispatch(
	ctx context.Context,
	run *jobs.Run,
	pages []domain.MonitoredPage,
	work chan<- domain.MonitoredPage,
	log logger.Logger,
) {
	defer close(work)

	limit := rate.Inf
	if c.cfg.RequestDelay > 0 {
		limit = rate.Every(c.cfg.RequestDelay)
	}
	limiter := rate.NewLimiter(limit, 1)

	for i, page := range pages {
		if c.stopped(run) {
			log.Info("Crawl dispatch stopped", logger.Int("undispatched", len(pages)-i))
			return
		}
		if err := limiter.Wait(ctx); err != nil {
			return
		}
		if c.stopped(run) {
			log.Info("Crawl dispatch stopped", logger.Int("undispatched", len(pages)-i))
			return
		}

		select {
		case work <- page:
		case <-run.Stopped():
			log.Info("Crawl dispatch stopped", logger.Int("undispatched", len(pages)-i))
			return
		case <-ctx.Done():
			return
		}
	}
}

// worker fetches and classifies pages. A page received after a stop request
// is dropped unfetched.
func (c *Coordinator) worker(
	ctx context.Context,
	run *jobs.Run,
	work <-chan domain.MonitoredPage,
	results chan<- pageOutcome,
) {
	for page := range work {
		if c.stopped(run) {
			continue
		}
		res, err := c.fetch.Fetch(ctx, page.URL)
		prev := classifier.Previous{Signature: page.ContentSignature}
		if page.ContentText != nil {
			prev.Text = *page.ContentText
		}
		if page.ErrorType != nil {
			prev.ErrorType = *page.ErrorType
		}

		results <- pageOutcome{
			page:   page,
			fetch:  res,
			result: c.classify.Classify(prev, res, err),
		}
	}
}

// apply records one outcome and publishes the updated job snapshot.
func (c *Coordinator) apply(ctx context.Context, run *jobs.Run, out pageOutcome, log logger.Logger) {
	page := out.page
	res := out.result
	job := run.Snapshot()

	var (
		jobErrs   []domain.PageError
		change    *domain.JobChange
		outcome   = res.Outcome
		ingested  bool
		recordErr = func(err error) {
			jobErrs = append(jobErrs, domain.PageError{URL: page.URL, Error: err.Error()})
			log.Warn("Failed to record page outcome", logger.URL(page.URL), logger.Error(err))
		}
	)

	switch outcome {
	case classifier.OutcomeFailed:
		msg := res.Err.Error()
		errType := string(fetcher.TypeOf(res.Err))
		jobErrs = append(jobErrs, domain.PageError{URL: page.URL, Error: msg})
		if err := c.pages.UpsertAfterCrawl(ctx, database.UpsertParams{
			PageID:       page.ID,
			Status:       domain.PageStatusError,
			ErrorMessage: &msg,
			ErrorType:    optional(errType),
		}); err != nil {
			recordErr(err)
		}
		log.Debug("Page fetch failed", logger.URL(page.URL), logger.String("error_type", errType), logger.Error(res.Err))

	case classifier.OutcomeUnchanged:
		sig := res.NewSignature
		if err := c.pages.UpsertAfterCrawl(ctx, database.UpsertParams{
			PageID:    page.ID,
			Signature: &sig,
			Status:    domain.PageStatusActive,
		}); err != nil {
			recordErr(err)
		}

	case classifier.OutcomeRemoved:
		entry := c.newEntry(job, page, out)
		if err := c.changes.Append(ctx, entry); err != nil {
			recordErr(err)
			outcome = classifier.OutcomeFailed
			break
		}
		change = jobChange(entry)
		msg := res.Err.Error()
		if err := c.pages.UpsertAfterCrawl(ctx, database.UpsertParams{
			PageID:       page.ID,
			Status:       domain.PageStatusError,
			ErrorMessage: &msg,
			ErrorType:    optional(string(fetcher.ErrTypeNotFound)),
		}); err != nil {
			recordErr(err)
		}
		jobErrs = append(jobErrs, domain.PageError{URL: page.URL, Error: msg})

	case classifier.OutcomeNew, classifier.OutcomeModified:
		entry := c.newEntry(job, page, out)
		if err := c.changes.Append(ctx, entry); err != nil {
			// Leave the stored signature alone so the change is detected again.
			recordErr(err)
			outcome = classifier.OutcomeFailed
			break
		}
		change = jobChange(entry)

		sig, text := res.NewSignature, out.fetch.Text
		if err := c.pages.UpsertAfterCrawl(ctx, database.UpsertParams{
			PageID:    page.ID,
			Signature: &sig,
			Text:      &text,
			Title:     optional(out.fetch.Title),
			Status:    domain.PageStatusActive,
		}); err != nil {
			recordErr(err)
		}

		if job.AutoIngest && res.IsSubstantive {
			// Failure is recorded by the change log; the job is unaffected.
			ingested = c.changes.AutoIngest(ctx, entry, text) == nil
		}
	}

	if change != nil {
		log.Info("Page change detected",
			logger.URL(page.URL),
			logger.String("change_type", string(change.ChangeType)),
			logger.Bool("is_substantive", change.IsSubstantive),
			logger.ChangeID(change.ChangeID),
		)
		if c.metrics != nil {
			c.metrics.ChangeDetected(change.ChangeType, change.IsSubstantive)
		}
	}
	if c.metrics != nil {
		c.metrics.PageCrawled(string(outcome))
	}

	run.Update(func(j *domain.CrawlJob) {
		switch outcome {
		case classifier.OutcomeNew:
			j.PagesNew++
		case classifier.OutcomeModified:
			j.PagesModified++
		case classifier.OutcomeUnchanged:
			j.PagesUnchanged++
		case classifier.OutcomeRemoved:
			j.PagesError++
			j.PagesRemoved++
		default:
			j.PagesError++
		}
		if change != nil {
			if change.IsSubstantive {
				j.SubstantiveChanges++
			}
			j.Changes = append(j.Changes, *change)
		}
		if ingested {
			j.AutoIngested++
		}
		j.Errors = append(j.Errors, jobErrs...)
		j.PagesCrawled++
		j.CurrentURL = page.URL
	})
}

func (c *Coordinator) newEntry(job domain.CrawlJob, page domain.MonitoredPage, out pageOutcome) *domain.ChangeLogEntry {
	res := out.result

	title := ""
	if out.fetch != nil && out.fetch.Title != "" {
		title = out.fetch.Title
	} else if page.Title != nil {
		title = *page.Title
	}

	category := domain.CategorizeURL(page.URL)
	if page.Category != nil && *page.Category != "" {
		category = *page.Category
	}

	pageID := page.ID
	entry := &domain.ChangeLogEntry{
		PageID:        &pageID,
		URL:           page.URL,
		ChangeType:    res.Outcome.ChangeType(),
		Title:         title,
		Summary:       classifier.Summary(res.Outcome, title, page.URL, res.Additions, res.Deletions),
		Category:      &category,
		IsSubstantive: res.IsSubstantive,
		DiffAdditions: res.Additions,
		DiffDeletions: res.Deletions,
		Scope:         job.Scope,
	}
	if out.fetch != nil && out.fetch.LastModified != "" {
		lm := out.fetch.LastModified
		entry.LastModified = &lm
	}
	return entry
}

func jobChange(entry *domain.ChangeLogEntry) *domain.JobChange {
	change := &domain.JobChange{
		ChangeID:      entry.ID,
		URL:           entry.URL,
		ChangeType:    entry.ChangeType,
		Title:         entry.Title,
		Summary:       entry.Summary,
		IsSubstantive: entry.IsSubstantive,
	}
	if entry.LastModified != nil {
		change.LastModified = *entry.LastModified
	}
	return change
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
