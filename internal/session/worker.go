package session

import (
	"context"
	"math/rand/v2"

	"bourse/internal/config"
	"bourse/internal/store"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	tomb "gopkg.in/tomb.v2"
)

// Trial is one independent session of a batch.
type Trial struct {
	Index int
	ID    string
	Seed  uint64
}

type WorkerFunction = func(ctx context.Context, task Trial) error

// WorkerPool runs trials on a fixed number of goroutines under a tomb: the
// first failing trial kills the tomb, the others stop at their next tick,
// and Run returns that first error.
type WorkerPool struct {
	n     int        // number of workers
	tasks chan Trial // trials waiting for a worker
}

func NewWorkerPool(size int) *WorkerPool {
	return &WorkerPool{
		n:     max(size, 1),
		tasks: make(chan Trial),
	}
}

// Run feeds trials to the workers and waits for all of them. A pool runs
// one batch.
func (pool *WorkerPool) Run(ctx context.Context, trials []Trial, work WorkerFunction) error {
	t, ctx := tomb.WithContext(ctx)
	for id := range pool.n {
		t.Go(func() error {
			return pool.worker(ctx, t, id, work)
		})
	}
	t.Go(func() error {
		defer close(pool.tasks)
		for _, trial := range trials {
			select {
			case pool.tasks <- trial:
			case <-t.Dying():
				return nil
			}
		}
		return nil
	})
	return t.Wait()
}

// Workers wait on trials and run them until the feed is exhausted.
func (pool *WorkerPool) worker(ctx context.Context, t *tomb.Tomb, id int, work WorkerFunction) error {
	for {
		select {
		case <-t.Dying():
			return nil
		case task, ok := <-pool.tasks:
			if !ok {
				return nil
			}
			if err := work(ctx, task); err != nil {
				log.Error().Err(err).Int("worker", id).Str("session", task.ID).Msg("worker exiting")
				return err
			}
		}
	}
}

// RunTrials plays cfg.Session.Trials independent sessions, each with its own
// exchange and a seed derived from the configured one, writing every
// session's output to sink. Results are in trial order.
func RunTrials(ctx context.Context, cfg *config.Config, sink store.Sink) ([]Result, error) {
	trials := make([]Trial, cfg.Session.Trials)
	for i := range trials {
		trials[i] = Trial{Index: i, ID: uuid.NewString(), Seed: uint64(cfg.Session.Seed)}
	}

	results := make([]Result, len(trials))
	pool := NewWorkerPool(cfg.Session.Workers)
	err := pool.Run(ctx, trials, func(ctx context.Context, trial Trial) error {
		rng := rand.New(rand.NewPCG(trial.Seed, uint64(trial.Index)))
		s, err := New(trial.ID, cfg, rng)
		if err != nil {
			return err
		}
		res, err := s.Run(ctx)
		if err != nil {
			return err
		}
		if err := sink.WriteTape(res.ID, res.Tape); err != nil {
			return err
		}
		if err := sink.WriteSummary(res.Summaries); err != nil {
			return err
		}
		results[trial.Index] = res
		return nil
	})
	if err != nil {
		return nil, err
	}
	return results, nil
}
