package crawl

import (
	"context"

	"github.com/jonesrussell/north-cloud/pagemonitor/internal/domain"
	"github.com/jonesrussell/north-cloud/pagemonitor/internal/ingest"
	"github.com/jonesrussell/north-cloud/pagemonitor/internal/jobs"
	"github.com/jonesrussell/north-cloud/pagemonitor/internal/logger"
)

// maxDocumentIngestPerRun caps how many pending documents one job ingests.
const maxDocumentIngestPerRun = 50

// runDiscovery seeds newly found pages and records found documents. Its
// failures are logged and never change the job status.
func (c *Coordinator) runDiscovery(ctx context.Context, run *jobs.Run, log logger.Logger) {
	job := run.Snapshot()
	run.Update(func(j *domain.CrawlJob) { j.CurrentURL = "discovery" })

	found, err := c.discover.Discover(ctx)
	if err != nil {
		log.Warn("Discovery finished with errors", logger.Error(err))
	}

	if len(found.Pages) > 0 {
		urls := make([]string, 0, len(found.Pages))
		for _, item := range found.Pages {
			urls = append(urls, item.URL)
		}
		seeded, seedErr := c.pages.Seed(ctx, job.Scope, urls)
		if seedErr != nil {
			log.Warn("Failed to seed discovered pages", logger.Error(seedErr))
		}
		if seeded > 0 {
			log.Info("Discovered new pages", logger.Int("count", seeded))
			run.Update(func(j *domain.CrawlJob) { j.PagesDiscovered += seeded })
		}
	}

	if c.docs == nil {
		return
	}

	newDocs := 0
	for _, item := range found.Documents {
		doc := &domain.DiscoveredDocument{
			Scope:  job.Scope,
			URL:    item.URL,
			Title:  item.Title,
			Source: item.Source,
		}
		if item.PublishedDate != "" {
			date := item.PublishedDate
			doc.PublishedDate = &date
		}

		isNew, recErr := c.docs.RecordNew(ctx, doc)
		if recErr != nil {
			log.Warn("Failed to record discovered document", logger.URL(item.URL), logger.Error(recErr))
			continue
		}
		if isNew {
			newDocs++
		}
	}
	if newDocs > 0 {
		log.Info("Discovered new documents", logger.Int("count", newDocs))
		run.Update(func(j *domain.CrawlJob) { j.DocumentsFound += newDocs })
	}

	if job.AutoIngest && c.bridge != nil {
		c.ingestPendingDocuments(ctx, run, job.Scope, log)
	}
}

// ingestPendingDocuments hands documents not yet ingested to the bridge,
// including ones recorded by earlier jobs that ran without auto-ingest.
func (c *Coordinator) ingestPendingDocuments(ctx context.Context, run *jobs.Run, scope string, log logger.Logger) {
	pending, err := c.docs.ListPending(ctx, scope, maxDocumentIngestPerRun)
	if err != nil {
		log.Warn("Failed to list pending documents", logger.Error(err))
		return
	}

	for _, doc := range pending {
		if c.stopped(run) {
			return
		}

		category := domain.CategorizeURL(doc.URL)
		_, ingestErr := c.bridge.Ingest(ctx, ingest.Request{
			URL:      doc.URL,
			Title:    doc.Title,
			Category: category,
			Citation: domain.BuildCitation(doc.URL, doc.Title, category),
			Scope:    scope,
		})
		if c.metrics != nil {
			c.metrics.Ingested("document", ingestErr)
		}
		if ingestErr != nil {
			log.Warn("Document ingestion failed", logger.URL(doc.URL), logger.Error(ingestErr))
			continue
		}

		if markErr := c.docs.MarkIngested(ctx, scope, doc.URL); markErr != nil {
			log.Warn("Failed to mark document ingested", logger.URL(doc.URL), logger.Error(markErr))
			continue
		}
		run.Update(func(j *domain.CrawlJob) { j.DocumentsIngested++ })
	}
}
