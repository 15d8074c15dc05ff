package codemapper

import (
	"context"
	"log/slog"
	"math/rand"
	"sync"
	"time"

	"github.com/Aman-CERP/amanmcp/internal/errors"
	"golang.org/x/sync/errgroup"
)

// maxConcurrencyWarnThreshold is the jobs value at or above which the
// caller is warned their concurrency request is unusually high.
const maxConcurrencyWarnThreshold = 8

// resolveJobs picks the PoI worker concurrency: the requested value when
// positive (warning once it reaches maxConcurrencyWarnThreshold), else
// min(4, n).
func resolveJobs(requested, n int) int {
	if requested > 0 {
		if requested >= maxConcurrencyWarnThreshold {
			slog.Warn("code_mapper_high_concurrency",
				slog.Int("jobs", requested),
				slog.Int("points_of_interest", n))
		}
		if requested > n {
			return n
		}
		return requested
	}
	if n < 4 {
		return n
	}
	return 4
}

type poiJob struct {
	index int
	poi   POI
}

// poiOutcome is one PoI's final disposition: a rendered Markdown section
// plus whether it came from a successful research call or a placeholder.
type poiOutcome struct {
	index   int
	poi     POI
	section string
	failed  bool
}

// poiProcessor expands one PoI into its Markdown section. A non-nil,
// non-retryable error aborts the whole queue; a retryable error or an
// empty section (err == nil, section == "") is queued for one retry.
type poiProcessor func(ctx context.Context, index int, poi POI) (string, error)

// runPOIQueue drives every PoI in pois through process with at most
// workers concurrent calls, honoring the pessimistic-backoff policy: the
// first retryable failure flips a shared flag that drains whatever is
// already in flight, after which the one remaining "leader" worker runs
// every subsequent PoI alone. Once the fan-out finishes, every PoI that
// never produced usable content gets one more attempt (after a random
// jitter) before becoming a placeholder outcome. A genuinely terminal
// (non-retryable) process error aborts immediately and is returned.
func runPOIQueue(ctx context.Context, workers int, pois []POI, process poiProcessor) ([]poiOutcome, error) {
	n := len(pois)
	if n == 0 {
		return nil, nil
	}
	if workers <= 0 || workers > n {
		workers = n
	}

	jobs := make([]poiJob, n)
	for i, p := range pois {
		jobs[i] = poiJob{index: i + 1, poi: p}
	}

	var mu sync.Mutex
	cond := sync.NewCond(&mu)
	cursor := 0
	inFlight := 0
	serialize := false

	next := func(workerID int) (poiJob, bool) {
		mu.Lock()
		defer mu.Unlock()
		for {
			if cursor >= len(jobs) {
				return poiJob{}, false
			}
			if serialize && workerID != 0 {
				return poiJob{}, false
			}
			if serialize {
				for inFlight > 0 {
					cond.Wait()
				}
			}
			job := jobs[cursor]
			cursor++
			inFlight++
			return job, true
		}
	}

	release := func() {
		mu.Lock()
		inFlight--
		if inFlight == 0 {
			cond.Broadcast()
		}
		mu.Unlock()
	}

	outcomes := make([]poiOutcome, n)
	needsRetry := make([]bool, n)

	g, gctx := errgroup.WithContext(ctx)
	for w := 0; w < workers; w++ {
		workerID := w
		g.Go(func() error {
			for {
				job, ok := next(workerID)
				if !ok {
					return nil
				}

				section, err := process(gctx, job.index, job.poi)
				if err != nil && !errors.IsRetryable(err) {
					release()
					return err
				}
				if err != nil || section == "" {
					mu.Lock()
					serialize = serialize || err != nil
					mu.Unlock()
					needsRetry[job.index-1] = true
				} else {
					outcomes[job.index-1] = poiOutcome{index: job.index, poi: job.poi, section: section}
				}
				release()
			}
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	for i, retry := range needsRetry {
		if !retry {
			continue
		}
		job := jobs[i]

		select {
		case <-ctx.Done():
			outcomes[i] = poiOutcome{index: job.index, poi: job.poi, failed: true, section: placeholderSection(job.index, n, job.poi, ctx.Err())}
			continue
		case <-time.After(time.Duration(rand.Float64() * float64(time.Second))):
		}

		section, err := process(ctx, job.index, job.poi)
		if err != nil || section == "" {
			if err == nil {
				err = errors.New(errors.ErrCodeResearchNoResults, "point of interest returned no usable content", nil)
			}
			outcomes[i] = poiOutcome{index: job.index, poi: job.poi, failed: true, section: placeholderSection(job.index, n, job.poi, err)}
			continue
		}
		outcomes[i] = poiOutcome{index: job.index, poi: job.poi, section: section}
	}

	return outcomes, nil
}
