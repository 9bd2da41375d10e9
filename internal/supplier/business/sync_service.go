package business

import (
	"context"
	"errors"
	"io"
	"time"

	"suppliersync/internal/supplier/models"
	"suppliersync/internal/supplier/pkg"
	"suppliersync/metrics"
	"suppliersync/pkg/logger"
)

// ProductStore is the local catalog as the pipeline sees it.
type ProductStore interface {
	Upsert(ctx context.Context, draft *models.ProductDraft, mode models.UpsertMode) (models.UpsertResult, error)
	SetLocalImage(ctx context.Context, id int64, localPath string) error
}

type ImageFetcher interface {
	FetchImage(ctx context.Context, imageURL, key string) (string, error)
}

// SyncService: конвейер синхронизации: выборка, нормализация, цена,
// запись в каталог и, по желанию, загрузка изображений.
type SyncService struct {
	fetcher    pkg.Fetcher
	store      ProductStore
	normalizer *Normalizer
	pricer     *PriceEngine
	scheduler  *Scheduler
	retrier    *Retrier

	images       ImageFetcher
	imageRetrier *Retrier
	progress     *ProgressReporter

	log logger.Logger
	now func() time.Time
}

func NewSyncService(
	fetcher pkg.Fetcher,
	store ProductStore,
	normalizer *Normalizer,
	pricer *PriceEngine,
	scheduler *Scheduler,
	retrier *Retrier,
	writer io.Writer,
) *SyncService {
	return &SyncService{
		fetcher:    fetcher,
		store:      store,
		normalizer: normalizer,
		pricer:     pricer,
		scheduler:  scheduler,
		retrier:    retrier,
		log:        logger.NewLogger(writer, "[ SyncService ]"),
		now:        time.Now,
	}
}

// WithImages enables local image caching. Image downloads get their own
// retry policy and never fail a product.
func (s *SyncService) WithImages(images ImageFetcher, retrier *Retrier) *SyncService {
	s.images = images
	s.imageRetrier = retrier
	return s
}

func (s *SyncService) WithProgress(progress *ProgressReporter) *SyncService {
	s.progress = progress
	return s
}

// Run processes every identifier and returns the run statistics. Failures of
// single identifiers are inside the SyncRun; the error is only set when the
// run was cancelled between chunks.
func (s *SyncService) Run(ctx context.Context, runID string, identifiers []string, mode models.UpsertMode, exporter *Exporter) (*models.SyncRun, error) {
	run := models.NewSyncRun(runID, s.fetcher.Name(), mode, identifiers, s.now())
	s.log.Log("run %s: %d identifiers, source=%s mode=%s", runID, len(identifiers), s.fetcher.Name(), mode)

	if s.progress != nil {
		s.progress.Start(len(identifiers))
	}

	task := func(ctx context.Context, id string) error {
		return s.processIdentifier(ctx, run, id, mode, exporter)
	}
	done := func(id string, err error) {
		if err != nil {
			run.RecordFailure(id, err)
			s.log.Log("%s failed: %v", id, err)
		}
		if s.progress != nil {
			s.progress.Done(err == nil)
		}
	}

	err := s.scheduler.Run(ctx, identifiers, task, done)
	if s.progress != nil {
		s.progress.Finish()
	}
	run.Finish(s.now())
	s.log.Log("run %s finished in %s: %s", runID, run.Duration().Round(time.Millisecond), run.Summary())
	return run, err
}

func (s *SyncService) processIdentifier(ctx context.Context, run *models.SyncRun, id string, mode models.UpsertMode, exporter *Exporter) error {
	records, err := s.retrier.FetchWithRetry(ctx, s.fetcher, id)
	if err != nil {
		return err
	}

	hint := CategoryHint(id)
	for _, raw := range records {
		draft := s.normalizer.Extract(raw, hint)
		exporter.Add(draft)
		s.persist(ctx, run, id, draft, mode)
	}
	run.RecordSuccess(len(records))
	return nil
}

func (s *SyncService) persist(ctx context.Context, run *models.SyncRun, id string, draft *models.ProductDraft, mode models.UpsertMode) {
	if !s.normalizer.Valid(draft) {
		s.record(run, models.OutcomeInvalid)
		return
	}

	price, err := s.pricer.Price(draft.WholesalePrice, draft.Category)
	if errors.Is(err, ErrBelowMarginFloor) {
		s.log.Log("%s: %q skipped: %v", id, draft.Name, err)
		s.record(run, models.OutcomeBelowMargin)
		return
	}
	if err != nil {
		run.RecordError(id, err)
		s.record(run, models.OutcomeInvalid)
		return
	}
	draft.RetailPrice = price.Retail
	draft.MarginPercent = price.MarginPercent

	result, err := s.store.Upsert(ctx, draft, mode)
	if err != nil {
		run.RecordError(id, err)
		s.record(run, models.OutcomeStoreError)
		return
	}

	switch result.Status {
	case models.UpsertCreated:
		s.record(run, models.OutcomeCreated)
	case models.UpsertUpdated:
		s.record(run, models.OutcomeUpdated)
	case models.UpsertDuplicate:
		s.record(run, models.OutcomeDuplicate)
		return
	}

	if s.images != nil && draft.ImageURL != "" {
		s.cacheImage(ctx, run, id, result.ID, draft)
	}
}

func (s *SyncService) cacheImage(ctx context.Context, run *models.SyncRun, id string, productID int64, draft *models.ProductDraft) {
	var localPath string
	fetch := func(ctx context.Context) error {
		var err error
		localPath, err = s.images.FetchImage(ctx, draft.ImageURL, draft.ExternalID)
		return err
	}

	var err error
	if s.imageRetrier != nil {
		err = s.imageRetrier.Do(ctx, draft.ImageURL, fetch)
	} else {
		err = fetch(ctx)
	}
	if err == nil {
		err = s.store.SetLocalImage(ctx, productID, localPath)
	}
	if err != nil {
		run.RecordImageFailure(id, err)
		s.log.Log("%s: image %s: %v", id, draft.ImageURL, err)
	}
}

func (s *SyncService) record(run *models.SyncRun, outcome models.Outcome) {
	run.RecordOutcome(outcome)
	metrics.RecordProductOutcome(string(outcome))
}
