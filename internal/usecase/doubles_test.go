package usecase

import (
	"context"
	"math"
	"sort"
	"sync"
	"time"

	"FinGAN/internal/domain/models"
	domrepo "FinGAN/internal/domain/repository"
)

type memFeatureStore struct {
	candles map[string][]models.Candle
}

func (s *memFeatureStore) GetCandles(_ context.Context, symbol string, _, _ time.Time, _ domrepo.Timeframe) ([]models.Candle, error) {
	return append([]models.Candle(nil), s.candles[symbol]...), nil
}

func (s *memFeatureStore) GetLatestNCandles(_ context.Context, symbol string, n int, _ domrepo.Timeframe) ([]models.Candle, error) {
	cs := s.candles[symbol]
	if n < len(cs) {
		cs = cs[len(cs)-n:]
	}
	return append([]models.Candle(nil), cs...), nil
}

type memCheckpointStore struct {
	mu          sync.Mutex
	runs        map[string]models.TrainingRun
	order       []string
	checkpoints map[string][]models.Checkpoint
}

func newMemCheckpointStore() *memCheckpointStore {
	return &memCheckpointStore{runs: map[string]models.TrainingRun{}, checkpoints: map[string][]models.Checkpoint{}}
}

func (s *memCheckpointStore) CreateRun(_ context.Context, run *models.TrainingRun) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.runs[run.ID] = *run
	s.order = append(s.order, run.ID)
	return nil
}

func (s *memCheckpointStore) UpdateRun(_ context.Context, run *models.TrainingRun) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.runs[run.ID]; !ok {
		return domrepo.ErrNotFound
	}
	s.runs[run.ID] = *run
	return nil
}

func (s *memCheckpointStore) GetRun(_ context.Context, id string) (*models.TrainingRun, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	run, ok := s.runs[id]
	if !ok {
		return nil, domrepo.ErrNotFound
	}
	return &run, nil
}

func (s *memCheckpointStore) LatestRun(_ context.Context, status models.RunStatus) (*models.TrainingRun, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := len(s.order) - 1; i >= 0; i-- {
		if run := s.runs[s.order[i]]; run.Status == status {
			return &run, nil
		}
	}
	return nil, domrepo.ErrNotFound
}

func (s *memCheckpointStore) SaveCheckpoint(_ context.Context, cp *models.Checkpoint) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.checkpoints[cp.RunID] = append(s.checkpoints[cp.RunID], *cp)
	return nil
}

func (s *memCheckpointStore) LatestCheckpoint(_ context.Context, runID string) (*models.Checkpoint, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cps := s.checkpoints[runID]
	if len(cps) == 0 {
		return nil, domrepo.ErrNotFound
	}
	cp := cps[len(cps)-1]
	return &cp, nil
}

func (s *memCheckpointStore) ListReports(_ context.Context, runID string) ([]models.EpochReport, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.EpochReport
	for _, cp := range s.checkpoints[runID] {
		out = append(out, cp.Report)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Epoch < out[j].Epoch })
	return out, nil
}

func (s *memCheckpointStore) Close() error { return nil }

type recordingPublisher struct {
	reports []models.EpochReport
	err     error
}

func (p *recordingPublisher) PublishReport(_ context.Context, _ string, r models.EpochReport) error {
	p.reports = append(p.reports, r)
	return p.err
}

func (p *recordingPublisher) Close() error { return nil }

type recordingBroadcaster struct {
	runIDs []string
}

func (b *recordingBroadcaster) Broadcast(runID string, _ models.EpochReport) {
	b.runIDs = append(b.runIDs, runID)
}

type recordingQueue struct {
	types    []string
	payloads []interface{}
	err      error
}

func (q *recordingQueue) PublishMessage(_ context.Context, msgType string, payload interface{}) error {
	q.types = append(q.types, msgType)
	q.payloads = append(q.payloads, payload)
	return q.err
}

// dailyCandles returns n daily bars with a smooth, strictly positive close.
func dailyCandles(symbol string, n int, base float64) []models.Candle {
	start := time.Date(2023, 1, 2, 0, 0, 0, 0, time.UTC)
	out := make([]models.Candle, n)
	for i := range out {
		c := base + 5*math.Sin(float64(i)/4) + 0.1*float64(i)
		out[i] = models.Candle{
			Bucket: start.AddDate(0, 0, i),
			Symbol: symbol,
			Open:   c - 0.5,
			High:   c + 1,
			Low:    c - 1,
			Close:  c,
			Volume: 1000 + float64(i),
		}
	}
	return out
}
