package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"apteka/parser/internal/catalog"
	"apteka/parser/internal/client"
	"apteka/parser/internal/domain"
	"apteka/parser/internal/domain/task"
	"apteka/parser/internal/queue"
	"apteka/parser/internal/repository"
	"apteka/parser/internal/state"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	log "github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
)

const (
	stageFetch     = "fetch"
	stageNormalize = "normalize"
	stageSave      = "save"
)

// Normalizer maps a detail payload to its canonical record.
type Normalizer interface {
	Normalize(detail *domain.ProductDetail) (*domain.ProductRecord, error)
}

type Settings struct {
	Slugs       []domain.CatalogSlug
	PageSize    int
	MaxWorkers  int
	GroupName   string
	MinIdleTime time.Duration
}

// Stats summarises one run.
type Stats struct {
	SlugsWalked int64
	SlugsFailed int64
	Discovered  int64
	Saved       int64
	Failed      int64
}

type Service struct {
	client       client.AptekaClient
	normalizer   Normalizer
	sink         repository.ProductSink
	queue        queue.Queue
	stateManager state.StateManager
	settings     Settings
	instanceID   string

	stats struct {
		slugsWalked atomic.Int64
		slugsFailed atomic.Int64
		discovered  atomic.Int64
		saved       atomic.Int64
		failed      atomic.Int64
	}
}

// NewService wires the pipeline. q may be nil when only Crawl is used.
func NewService(
	client client.AptekaClient,
	normalizer Normalizer,
	sink repository.ProductSink,
	q queue.Queue,
	stateManager state.StateManager,
	settings Settings,
) *Service {
	if settings.MaxWorkers <= 0 {
		settings.MaxWorkers = 1
	}
	if settings.MinIdleTime <= 0 {
		settings.MinIdleTime = 2 * time.Minute
	}
	if stateManager == nil {
		stateManager = state.NewNopStateManager()
	}
	return &Service{
		client:       client,
		normalizer:   normalizer,
		sink:         sink,
		queue:        q,
		stateManager: stateManager,
		settings:     settings,
		instanceID:   uuid.NewString()[:8],
	}
}

func (s *Service) Stats() Stats {
	return Stats{
		SlugsWalked: s.stats.slugsWalked.Load(),
		SlugsFailed: s.stats.slugsFailed.Load(),
		Discovered:  s.stats.discovered.Load(),
		Saved:       s.stats.saved.Load(),
		Failed:      s.stats.failed.Load(),
	}
}

// Crawl walks every slug and processes every discovered product in-process,
// with at most MaxWorkers products in flight. It returns once all slugs are
// walked and all products processed, or when ctx is cancelled.
func (s *Service) Crawl(ctx context.Context) error {
	jobs := make(chan *task.ProductTask, s.settings.MaxWorkers*2)

	var workers sync.WaitGroup
	for i := 0; i < s.settings.MaxWorkers; i++ {
		workers.Add(1)
		go func() {
			defer workers.Done()
			for job := range jobs {
				s.handleProduct(ctx, job, nil)
			}
		}()
	}

	walkErr := s.walkAll(ctx, func(ctx context.Context, job *task.ProductTask) error {
		select {
		case jobs <- job:
			return nil
		case <-ctx.Done():
			return ctx.Err()
		}
	})
	close(jobs)
	workers.Wait()

	if walkErr != nil {
		return walkErr
	}
	return ctx.Err()
}

// ParseAll walks every slug and publishes one ProductTask per discovered product.
func (s *Service) ParseAll(ctx context.Context) error {
	if s.queue == nil {
		return fmt.Errorf("queue mode requires a queue")
	}

	return s.walkAll(ctx, func(ctx context.Context, job *task.ProductTask) error {
		if _, err := s.queue.AddTask(ctx, job); err != nil {
			return fmt.Errorf("failed to enqueue product %d: %w", job.ProductID, err)
		}
		return nil
	})
}

// walkAll walks the slugs concurrently. A failed walk is logged and recorded
// but does not stop the other slugs; only emit errors and cancellation do.
func (s *Service) walkAll(ctx context.Context, emit func(context.Context, *task.ProductTask) error) error {
	g, ctx := errgroup.WithContext(ctx)

	for _, slug := range s.settings.Slugs {
		g.Go(func() error {
			return s.walkSlug(ctx, slug, emit)
		})
	}

	if err := g.Wait(); err != nil {
		return err
	}

	log.Infof("✅ Completed all %d catalog walks", len(s.settings.Slugs))
	return nil
}

func (s *Service) walkSlug(ctx context.Context, slug domain.CatalogSlug, emit func(context.Context, *task.ProductTask) error) error {
	log.Infof("🔄 Walking catalog: %s", slug)

	if err := s.stateManager.StartWalk(ctx, slug); err != nil {
		log.Warnf("⚠️ %v", err)
	}

	recorder := &pageRecorder{fetcher: s.client, stateManager: s.stateManager}
	walker := catalog.NewWalker(recorder, s.settings.PageSize)

	var walkErr error
	for stub, err := range walker.Walk(ctx, slug) {
		if err != nil {
			walkErr = err
			break
		}

		s.stats.discovered.Add(1)
		if err := emit(ctx, &task.ProductTask{ProductID: stub.ID, Slug: slug}); err != nil {
			return err
		}
	}

	if walkErr != nil && ctx.Err() != nil {
		return ctx.Err()
	}

	if err := s.stateManager.FinishWalk(ctx, slug, walkErr); err != nil {
		log.Warnf("⚠️ %v", err)
	}

	if walkErr != nil {
		s.stats.slugsFailed.Add(1)
		log.Errorf("❌ Catalog walk for %s aborted after %d products: %v", slug, recorder.products, walkErr)
		return nil
	}

	s.stats.slugsWalked.Add(1)
	log.Infof("✅ Completed %s: %d pages, %d products", slug, recorder.pages, recorder.products)
	return nil
}

// handleProduct runs fetch, normalize and save for one product. Failures drop
// only this record; with a queue they are published to the failure stream.
func (s *Service) handleProduct(ctx context.Context, job *task.ProductTask, q queue.Queue) {
	stage, err := s.processProduct(ctx, job.ProductID)
	if err == nil {
		s.stats.saved.Add(1)
		return
	}
	if ctx.Err() != nil {
		return
	}

	s.stats.failed.Add(1)
	log.Errorf("❌ Product %d (%s) dropped at %s: %v", job.ProductID, job.Slug, stage, err)

	if q == nil {
		return
	}
	failure := &task.ProductFailureTask{
		ProductID:    job.ProductID,
		Slug:         job.Slug,
		Error:        err.Error(),
		FailureStage: stage,
	}
	if _, addErr := q.AddTask(ctx, failure); addErr != nil {
		log.Errorf("❌ Failed to record failure of product %d: %v", job.ProductID, addErr)
	}
}

func (s *Service) processProduct(ctx context.Context, id int64) (string, error) {
	detail, err := s.client.GetProductDetail(ctx, id)
	if err != nil {
		return stageFetch, err
	}

	record, err := s.normalizer.Normalize(detail)
	if err != nil {
		return stageNormalize, err
	}

	if err := s.sink.SaveProduct(ctx, record); err != nil {
		return stageSave, err
	}

	log.Debugf("Saved product %d", id)
	return "", nil
}

// RunWorkers consumes ProductTasks until walkDone is closed and the stream is drained, or ctx ends.
func (s *Service) RunWorkers(ctx context.Context, walkDone <-chan struct{}) error {
	if s.queue == nil {
		return fmt.Errorf("queue mode requires a queue")
	}

	var wg sync.WaitGroup
	workersCtx, stopClaimer := context.WithCancel(ctx)
	defer stopClaimer()

	// Auto-claimer for messages left pending by dead consumers
	claimerDone := make(chan struct{})
	go func() {
		defer close(claimerDone)
		s.runAutoClaimer(workersCtx)
	}()

	for i := 0; i < s.settings.MaxWorkers; i++ {
		wg.Add(1)
		go func(workerID int) {
			defer wg.Done()
			s.runWorker(ctx, workerID, walkDone)
		}(i + 1)
	}

	wg.Wait()
	stopClaimer()
	<-claimerDone

	return ctx.Err()
}

func (s *Service) runWorker(ctx context.Context, workerID int, walkDone <-chan struct{}) {
	// consumers of several parser processes share one group
	consumer := fmt.Sprintf("worker-%s-%d", s.instanceID, workerID)
	log.Infof("🚀 Starting worker %d as consumer %s", workerID, consumer)

	for {
		select {
		case <-ctx.Done():
			log.Infof("🛑 Worker %d stopping", workerID)
			return
		default:
		}

		// Checked before reading so that a nil read after the walk finished means nothing new will arrive.
		finished := isClosed(walkDone)

		msg, err := s.queue.GetTask(ctx, s.settings.GroupName, consumer, queue.ProductStream)
		if err != nil {
			if ctx.Err() != nil {
				continue
			}
			log.Errorf("❌ Failed to get task from %s: %v", queue.ProductStream, err)
			continue
		}

		if msg == nil {
			if finished && s.drained(ctx, workerID) {
				log.Infof("🏁 Worker %d found the queue drained", workerID)
				return
			}
			continue
		}

		if err := s.processMessage(ctx, msg); err != nil {
			log.Errorf("❌ Failed to process message %s: %v", msg.ID, err)
		}
	}
}

// drained reports whether no delivered message is left unacknowledged. Messages
// held by other workers or stranded by dead consumers keep the worker around,
// the latter until the auto-claimer hands them out again.
func (s *Service) drained(ctx context.Context, workerID int) bool {
	pending, err := s.queue.Pending(ctx, queue.ProductStream, s.settings.GroupName)
	if err != nil {
		if ctx.Err() == nil {
			log.Warnf("⚠️ Worker %d could not check pending messages: %v", workerID, err)
		}
		return false
	}
	return pending == 0
}

func (s *Service) runAutoClaimer(ctx context.Context) {
	ticker := time.NewTicker(s.settings.MinIdleTime)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			consumer := fmt.Sprintf("autoclaimer-%s", s.instanceID)
			claimed, err := s.queue.AutoClaim(ctx, s.settings.GroupName, consumer, queue.ProductStream, s.settings.MinIdleTime)
			if err != nil {
				if ctx.Err() == nil {
					log.Errorf("❌ Failed to auto-claim messages: %v", err)
				}
				continue
			}
			if len(claimed) > 0 {
				log.Infof("🔄 Auto-claimed %d messages", len(claimed))
			}
			for _, msg := range claimed {
				if err := s.processMessage(ctx, &msg); err != nil {
					log.Errorf("❌ Failed to process auto-claimed message %s: %v", msg.ID, err)
				}
			}
		}
	}
}

func (s *Service) processMessage(ctx context.Context, msg *redis.XMessage) error {
	taskType, ok := msg.Values["task_type"].(string)
	if !ok {
		return fmt.Errorf("invalid task type in message %s", msg.ID)
	}

	taskData, ok := msg.Values["task_data"].(string)
	if !ok {
		return fmt.Errorf("invalid task data in message %s", msg.ID)
	}

	switch taskType {
	case "ProductTask":
		productTask, err := task.UnmarshalTask[task.ProductTask]([]byte(taskData))
		if err != nil {
			return fmt.Errorf("failed to unmarshal product task data: %w", err)
		}
		s.handleProduct(ctx, productTask, s.queue)

	default:
		return fmt.Errorf("unknown task type: %s", taskType)
	}

	if ctx.Err() != nil {
		// leave it pending so another run can claim it
		return nil
	}

	if err := s.queue.AckTask(ctx, queue.ProductStream, s.settings.GroupName, msg.ID); err != nil {
		return fmt.Errorf("failed to ack message %s: %w", msg.ID, err)
	}

	return nil
}

// LogSummary logs the recorded walk state of every slug and the run counters.
func (s *Service) LogSummary(ctx context.Context) {
	for _, slug := range s.settings.Slugs {
		status, err := s.stateManager.GetWalkStatus(ctx, slug)
		if err != nil {
			log.Warnf("⚠️ %v", err)
			continue
		}
		if status == nil {
			continue
		}
		log.WithFields(log.Fields{
			"slug":        slug,
			"status":      status.Status,
			"last_offset": status.LastOffset,
			"products":    status.Products,
			"error":       status.Error,
		}).Info("Walk summary")
	}

	stats := s.Stats()
	log.Infof("📊 Slugs walked: %d, failed: %d. Products discovered: %d, saved: %d, dropped: %d",
		stats.SlugsWalked, stats.SlugsFailed, stats.Discovered, stats.Saved, stats.Failed)
}

// pageRecorder passes page requests through and records walk progress.
type pageRecorder struct {
	fetcher      catalog.PageFetcher
	stateManager state.StateManager
	pages        int
	products     int
}

func (r *pageRecorder) GetCatalogPage(ctx context.Context, cursor domain.PageCursor) ([]domain.ProductStub, error) {
	stubs, err := r.fetcher.GetCatalogPage(ctx, cursor)
	if err != nil {
		return nil, err
	}
	if len(stubs) == 0 {
		return stubs, nil
	}

	r.pages++
	r.products += len(stubs)
	if err := r.stateManager.RecordPage(ctx, cursor.Slug, cursor.Offset, r.products); err != nil && !errors.Is(err, context.Canceled) {
		log.Warnf("⚠️ %v", err)
	}
	return stubs, nil
}

func isClosed(ch <-chan struct{}) bool {
	select {
	case <-ch:
		return true
	default:
		return false
	}
}
