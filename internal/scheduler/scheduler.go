package scheduler

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"MarketFeed/internal/cache"
	"MarketFeed/internal/collector"
	"MarketFeed/internal/model"
	"MarketFeed/internal/notifier"
	"MarketFeed/internal/recorder"
	"MarketFeed/internal/universe"

	"github.com/robfig/cron/v3"
	"golang.org/x/sync/errgroup"
)

// Alerter delivers operator alerts.
type Alerter interface {
	NotifyFallback(ctx context.Context, total, restored int, lastUpdated time.Time) error
}

// Options tunes a refresh pass.
type Options struct {
	ChunkSize       int
	ChunkDelay      time.Duration
	SparklineLength int
	// RetainStaleRows keeps rows of symbols that failed this pass instead of dropping them.
	RetainStaleRows bool
	Clock           cache.Clock
}

// DefaultOptions returns chunks of 10 with a 2s pause and a 30-candle sparkline.
func DefaultOptions() Options {
	return Options{ChunkSize: 10, ChunkDelay: 2 * time.Second, SparklineLength: 30}
}

// PassResult summarizes one refresh pass.
type PassResult struct {
	StartedAt time.Time
	Duration  time.Duration
	Total     int
	Succeeded int
	Failed    int
	Fallback  bool
	// Restored is the number of rows loaded from the repository on fallback.
	Restored int
	Skipped  bool
}

// Scheduler drives periodic refresh passes over the symbol universe.
type Scheduler struct {
	Cron     *cron.Cron
	Chain    *collector.Chain
	Cache    *cache.HistoryCache
	Table    *cache.SnapshotTable
	Universe *universe.Universe
	Repo     recorder.Repository
	Recorder recorder.Recorder
	Notifier Alerter
	Ctx      context.Context

	opts  Options
	clock cache.Clock
	sleep func(time.Duration)
	pass  sync.Mutex
}

// NewScheduler creates a new Scheduler. Repo and rec may be nil.
func NewScheduler(ctx context.Context, chain *collector.Chain, hc *cache.HistoryCache, u *universe.Universe,
	repo recorder.Repository, rec recorder.Recorder, opts Options) *Scheduler {
	if opts.ChunkSize <= 0 {
		opts.ChunkSize = DefaultOptions().ChunkSize
	}
	clock := opts.Clock
	if clock == nil {
		clock = cache.SystemClock{}
	}
	if repo == nil {
		repo = recorder.NewNoopRecorder()
	}
	if rec == nil {
		rec = recorder.NewNoopRecorder()
	}
	return &Scheduler{
		Cron:     cron.New(cron.WithSeconds(), cron.WithChain(cron.Recover(cron.DefaultLogger))),
		Chain:    chain,
		Cache:    hc,
		Table:    cache.NewSnapshotTable(),
		Universe: u,
		Repo:     repo,
		Recorder: rec,
		Ctx:      ctx,
		opts:     opts,
		clock:    clock,
		sleep:    time.Sleep,
	}
}

// Register adds the refresh pass under the given cron spec.
func (s *Scheduler) Register(refreshCron string) error {
	if _, err := s.Cron.AddFunc(refreshCron, func() { s.RunPass(s.Ctx) }); err != nil {
		return fmt.Errorf("register refresh task: %w", err)
	}
	return nil
}

// Start starts the cron scheduler.
func (s *Scheduler) Start() {
	s.Cron.Start()
	log.Println("[INFO] scheduler started")
}

// Stop stops the cron scheduler and waits for a running pass to finish.
func (s *Scheduler) Stop() {
	<-s.Cron.Stop().Done()
	log.Println("[INFO] scheduler stopped")
}

// RunPass refreshes every symbol in chunks. Symbols inside a chunk are fetched
// in parallel; chunks run one after another with ChunkDelay between them. A
// started pass always runs to completion, even if ctx is cancelled.
// Overlapping calls are skipped.
func (s *Scheduler) RunPass(ctx context.Context) PassResult {
	if !s.pass.TryLock() {
		log.Println("[WARN] refresh pass already running, skipping")
		return PassResult{Skipped: true}
	}
	defer s.pass.Unlock()

	ctx = context.WithoutCancel(ctx)
	started := s.clock.Now()
	symbols := s.Universe.All()
	log.Printf("[INFO] refresh pass started: %d symbols", len(symbols))

	items := make([]model.SnapshotItem, 0, len(symbols))
	for i, chunk := range chunks(symbols, s.opts.ChunkSize) {
		if i > 0 && s.opts.ChunkDelay > 0 {
			s.sleep(s.opts.ChunkDelay)
		}
		items = append(items, s.refreshChunk(ctx, chunk)...)
	}

	res := PassResult{
		StartedAt: started,
		Total:     len(symbols),
		Succeeded: len(items),
		Failed:    len(symbols) - len(items),
	}

	if len(items) == 0 && len(symbols) > 0 {
		res.Fallback = true
		res.Restored = s.fallback(ctx, len(symbols))
	} else {
		now := s.clock.Now()
		if s.opts.RetainStaleRows {
			s.Table.Merge(items, now)
		} else {
			s.Table.Replace(items, now)
		}
		s.persist(now)
	}

	res.Duration = s.clock.Now().Sub(started)
	if err := s.Recorder.RecordPass(&recorder.PassEvent{
		StartedAt: res.StartedAt,
		Duration:  res.Duration,
		Total:     res.Total,
		Succeeded: res.Succeeded,
		Failed:    res.Failed,
		Fallback:  res.Fallback,
	}); err != nil {
		log.Printf("[ERROR] record pass: %v", err)
	}
	log.Printf("[INFO] refresh pass done: %d/%d ok, %d dropped, fallback=%v, took %s",
		res.Succeeded, res.Total, res.Failed, res.Fallback, res.Duration)
	return res
}

func (s *Scheduler) refreshChunk(ctx context.Context, symbols []string) []model.SnapshotItem {
	results := make([]*model.SnapshotItem, len(symbols))
	var g errgroup.Group
	for i, sym := range symbols {
		i, sym := i, sym
		g.Go(func() error {
			results[i] = s.refreshSymbol(ctx, sym)
			return nil
		})
	}
	_ = g.Wait()

	out := make([]model.SnapshotItem, 0, len(symbols))
	for _, it := range results {
		if it != nil {
			out = append(out, *it)
		}
	}
	return out
}

// refreshSymbol fetches a quote, folds it into the short-interval series and
// builds the symbol's snapshot row. It returns nil when no source had a price.
func (s *Scheduler) refreshSymbol(ctx context.Context, symbol string) *model.SnapshotItem {
	q := s.Chain.Quote(ctx, symbol)
	if q == nil {
		log.Printf("[WARN] %s: no price data from any source, dropped from pass", symbol)
		return nil
	}

	short := s.Cache.Policy().ShortInterval
	if _, ok := s.Cache.Series(symbol, short); !ok {
		s.Cache.Read(ctx, symbol, short)
	}
	candles := s.Cache.ApplyQuote(q)

	item := &model.SnapshotItem{
		Symbol:      symbol,
		DisplayName: q.DisplayName,
		Price:       q.Price,
		AssetType:   universe.Classify(symbol),
		Sparkline:   tail(candles, s.opts.SparklineLength),
	}
	if item.DisplayName == "" {
		item.DisplayName = symbol
	}
	if q.ChangePercent != nil {
		item.ChangePercent = *q.ChangePercent
	}
	return item
}

// fallback restores the table from the repository and seeds long-interval
// history so indicators keep working. It returns the number of restored rows.
func (s *Scheduler) fallback(ctx context.Context, total int) int {
	log.Printf("[ERROR] all %d symbols failed, falling back to persisted snapshot", total)

	doc, err := s.Repo.Load()
	if err != nil {
		log.Printf("[ERROR] load snapshot: %v", err)
		s.alertFallback(ctx, total, 0, time.Time{})
		return 0
	}

	s.Table.Replace(doc.Items, doc.LastUpdated)
	now := s.clock.Now()
	for _, it := range doc.Items {
		candles := doc.History[it.Symbol]
		if len(candles) == 0 {
			candles = it.Sparkline
		}
		if len(candles) > 0 {
			s.Cache.Seed(it.Symbol, model.Interval1d, candles, now)
		}
	}
	log.Printf("[INFO] restored %d rows from snapshot taken %s", len(doc.Items), doc.LastUpdated.Format(time.RFC3339))
	s.alertFallback(ctx, total, len(doc.Items), doc.LastUpdated)
	return len(doc.Items)
}

func (s *Scheduler) persist(now time.Time) {
	doc := &recorder.Document{
		LastUpdated: now.UTC(),
		Items:       s.Table.Items(),
		History:     s.Cache.Snapshot(model.Interval1d),
	}
	if err := s.Repo.Save(doc); err != nil {
		log.Printf("[ERROR] save snapshot: %v", err)
	}
}

// HandleCommand processes a user command and returns a reply.
func (s *Scheduler) HandleCommand(command string) string {
	switch command {
	case "/status":
		return notifier.FormatStatus(s.Table.Items(), s.Table.UpdatedAt())
	case "/refresh":
		res := s.RunPass(s.Ctx)
		if res.Skipped {
			return "A refresh pass is already running"
		}
		return notifier.FormatPassReport(res.Total, res.Succeeded, res.Failed, res.Duration, res.Fallback)
	default:
		return notifier.FormatHelp()
	}
}

func (s *Scheduler) alertFallback(ctx context.Context, total, restored int, lastUpdated time.Time) {
	if s.Notifier == nil {
		return
	}
	if err := s.Notifier.NotifyFallback(ctx, total, restored, lastUpdated); err != nil {
		log.Printf("[ERROR] send notification: %v", err)
	}
}

func chunks(symbols []string, size int) [][]string {
	var out [][]string
	for start := 0; start < len(symbols); start += size {
		end := min(start+size, len(symbols))
		out = append(out, symbols[start:end])
	}
	return out
}

func tail(candles []model.Candle, n int) []model.Candle {
	if n > 0 && len(candles) > n {
		candles = candles[len(candles)-n:]
	}
	return append([]model.Candle{}, candles...)
}
