package service

import (
	"context"
	"crypto/ed25519"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/avast/retry-go/v4"
	"github.com/oklog/ulid/v2"
	"go.uber.org/atomic"
	"go.uber.org/zap"

	"github.com/er-state/vrf-consumer/config"
	"github.com/er-state/vrf-consumer/ledger"
	"github.com/er-state/vrf-consumer/metrics"
	"github.com/er-state/vrf-consumer/types"
	"github.com/er-state/vrf-consumer/vrf"
)

// Fulfiller drains an oracle queue as its authority: every pending request
// gets randomness from the source, delivered in a provide_randomness
// transaction that the oracle forwards to the request's callback.
type Fulfiller struct {
	cfg         *config.OracleConfig
	client      LedgerClient
	source      RandomnessSource
	authority   ed25519.PrivateKey
	authorityPk types.Pubkey

	metrics *metrics.VrfMetrics
	logger  *zap.Logger

	mu sync.Mutex
	// failed scans per request; a request reaching MaxFulfillAttempts is
	// abandoned and removed from the queue. Entries are dropped once their
	// request is no longer queued.
	failures  map[ulid.ULID]uint32
	abandoned map[ulid.ULID]struct{}

	isStarted *atomic.Bool
	wg        sync.WaitGroup
	quit      chan struct{}
}

func NewFulfiller(
	cfg *config.OracleConfig,
	client LedgerClient,
	source RandomnessSource,
	authority ed25519.PrivateKey,
	metrics *metrics.VrfMetrics,
	logger *zap.Logger,
) *Fulfiller {
	return &Fulfiller{
		cfg:         cfg,
		client:      client,
		source:      source,
		authority:   authority,
		authorityPk: types.PubkeyFromEd25519(authority.Public().(ed25519.PublicKey)),
		metrics:     metrics,
		logger:      logger,
		failures:    make(map[ulid.ULID]uint32),
		abandoned:   make(map[ulid.ULID]struct{}),
		isStarted:   atomic.NewBool(false),
	}
}

func (f *Fulfiller) Start() error {
	if f.isStarted.Swap(true) {
		return fmt.Errorf("the fulfiller of queue %s is already started", f.cfg.Queue)
	}

	f.logger.Info("starting the fulfiller",
		zap.String("queue", f.cfg.Queue.String()),
		zap.String("authority", f.authorityPk.String()),
	)

	f.quit = make(chan struct{})
	f.wg.Add(1)
	go f.fulfillmentLoop()

	return nil
}

func (f *Fulfiller) Stop() error {
	if !f.isStarted.Swap(false) {
		return fmt.Errorf("the fulfiller of queue %s has already stopped", f.cfg.Queue)
	}

	f.logger.Info("stopping the fulfiller", zap.String("queue", f.cfg.Queue.String()))

	close(f.quit)
	f.wg.Wait()

	f.logger.Info("the fulfiller is successfully stopped", zap.String("queue", f.cfg.Queue.String()))

	return nil
}

func (f *Fulfiller) IsRunning() bool {
	return f.isStarted.Load()
}

func (f *Fulfiller) fulfillmentLoop() {
	defer f.wg.Done()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() {
		<-f.quit
		cancel()
	}()

	ticker := time.NewTicker(f.cfg.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if _, err := f.FulfillPending(ctx); err != nil && !errors.Is(err, context.Canceled) {
				f.logger.Error("failed to fulfill pending requests",
					zap.String("queue", f.cfg.Queue.String()),
					zap.Error(err),
				)
			}
		case <-f.quit:
			f.logger.Info("the fulfillment loop is closing")

			return
		}
	}
}

// FulfillPending delivers randomness to up to BatchSize pending requests in
// arrival order and returns how many were fulfilled. A request whose
// fulfillment fails stays queued and is retried on the next scan, until it is
// abandoned and removed from the queue.
func (f *Fulfiller) FulfillPending(ctx context.Context) (int, error) {
	queue, err := f.loadQueue()
	if err != nil {
		return 0, err
	}
	if queue.Authority != f.authorityPk {
		return 0, fmt.Errorf("%w: queue %s is served by %s", ErrNotQueueAuthority, f.cfg.Queue, queue.Authority)
	}

	f.metrics.RecordPendingRequests(len(queue.Requests))
	f.prune(queue)

	var fulfilled, attempted int
	for _, queued := range queue.Requests {
		if err := ctx.Err(); err != nil {
			return fulfilled, err
		}
		if f.isAbandoned(queued.ID) {
			// an earlier removal failed
			f.removeAbandoned(ctx, queued)

			continue
		}
		if attempted >= int(f.cfg.BatchSize) {
			continue
		}
		attempted++

		if err := f.Fulfill(ctx, queued); err != nil {
			if errors.Is(err, context.Canceled) {
				return fulfilled, err
			}
			if f.recordFailure(queued, err) {
				f.removeAbandoned(ctx, queued)
			}

			continue
		}
		fulfilled++
	}

	if fulfilled > 0 {
		f.logger.Info("fulfilled randomness requests",
			zap.String("queue", f.cfg.Queue.String()),
			zap.Int("fulfilled", fulfilled),
			zap.Int("pending", len(queue.Requests)-fulfilled),
		)
	}

	return fulfilled, nil
}

// Fulfill delivers randomness for one queued request, retrying transient
// submission failures.
func (f *Fulfiller) Fulfill(ctx context.Context, queued *vrf.QueuedRequest) error {
	randomness, err := f.source.Randomness(queued)
	if err != nil {
		return fmt.Errorf("failed to produce randomness for request %s: %w", queued.ID, err)
	}

	ix := vrf.NewProvideRandomnessInstruction(f.authorityPk, f.cfg.Queue, queued, randomness)
	if err := f.submit(ctx, ix, queued.ID); err != nil {
		return fmt.Errorf("failed to fulfill request %s: %w", queued.ID, err)
	}

	f.clearFailure(queued.ID)
	f.metrics.RecordFulfillment(time.Since(ulid.Time(queued.ID.Time())))

	f.logger.Debug("fulfilled randomness request",
		zap.String("request_id", queued.ID.String()),
		zap.String("callback_program", queued.Request.CallbackProgramID.String()),
		zap.Uint64("value", vrf.RandomU64(randomness)),
	)

	return nil
}

// removeAbandoned drops an abandoned request from the queue so it stops
// taking up capacity. A failed removal is retried on the next scan.
func (f *Fulfiller) removeAbandoned(ctx context.Context, queued *vrf.QueuedRequest) {
	ix := vrf.NewRemoveRequestInstruction(f.authorityPk, f.cfg.Queue, queued.ID)
	err := f.submit(ctx, ix, queued.ID)
	if err != nil && !errors.Is(err, vrf.ErrRequestNotFound) {
		f.logger.Warn("failed to remove abandoned randomness request",
			zap.String("request_id", queued.ID.String()),
			zap.Error(err),
		)

		return
	}

	f.mu.Lock()
	delete(f.abandoned, queued.ID)
	f.mu.Unlock()

	f.logger.Info("removed abandoned randomness request",
		zap.String("request_id", queued.ID.String()),
		zap.String("queue", f.cfg.Queue.String()),
	)
}

// submit signs ix as the queue authority and executes it, retrying transient
// failures.
func (f *Fulfiller) submit(ctx context.Context, ix *types.Instruction, id ulid.ULID) error {
	return retry.Do(func() error {
		tx := ledger.NewTransaction(ix)
		if err := tx.Sign(f.authority); err != nil {
			return retry.Unrecoverable(err)
		}

		return f.client.Execute(ctx, tx)
	},
		retry.Context(ctx),
		retry.Attempts(f.cfg.RetryAttempts),
		retry.Delay(f.cfg.RetryDelay),
		retry.LastErrorOnly(true),
		retry.RetryIf(isTransient),
		retry.OnRetry(func(n uint, err error) {
			f.logger.Debug("failed to submit oracle transaction",
				zap.String("request_id", id.String()),
				zap.Uint("attempt", n+1),
				zap.Uint("max_attempts", f.cfg.RetryAttempts),
				zap.Error(err),
			)
		}),
	)
}

// NumAbandoned returns the number of abandoned requests still waiting to be
// removed from the queue.
func (f *Fulfiller) NumAbandoned() int {
	f.mu.Lock()
	defer f.mu.Unlock()

	return len(f.abandoned)
}

// prune forgets failures and abandonments of requests no longer queued.
func (f *Fulfiller) prune(queue *vrf.QueueAccount) {
	queued := make(map[ulid.ULID]struct{}, len(queue.Requests))
	for _, r := range queue.Requests {
		queued[r.ID] = struct{}{}
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	for id := range f.failures {
		if _, ok := queued[id]; !ok {
			delete(f.failures, id)
		}
	}
	for id := range f.abandoned {
		if _, ok := queued[id]; !ok {
			delete(f.abandoned, id)
		}
	}
}

func (f *Fulfiller) loadQueue() (*vrf.QueueAccount, error) {
	acc, err := f.client.GetAccount(f.cfg.Queue)
	if err != nil {
		return nil, fmt.Errorf("failed to get oracle queue %s: %w", f.cfg.Queue, err)
	}

	return vrf.LoadQueue(acc)
}

func (f *Fulfiller) isAbandoned(id ulid.ULID) bool {
	f.mu.Lock()
	defer f.mu.Unlock()

	_, ok := f.abandoned[id]

	return ok
}

// recordFailure counts a failed scan of queued and reports whether the
// request is now abandoned.
func (f *Fulfiller) recordFailure(queued *vrf.QueuedRequest, err error) bool {
	f.metrics.RecordFailedFulfillment(f.cfg.Queue.String())

	f.mu.Lock()
	defer f.mu.Unlock()

	f.failures[queued.ID]++
	attempts := f.failures[queued.ID]

	if attempts < f.cfg.MaxFulfillAttempts {
		f.logger.Warn("failed to fulfill randomness request, will retry",
			zap.String("request_id", queued.ID.String()),
			zap.Uint32("attempts", attempts),
			zap.Error(err),
		)

		return false
	}

	delete(f.failures, queued.ID)
	f.abandoned[queued.ID] = struct{}{}
	f.metrics.RecordAbandonedRequest()

	f.logger.Error("giving up on randomness request",
		zap.String("request_id", queued.ID.String()),
		zap.String("callback_program", queued.Request.CallbackProgramID.String()),
		zap.Uint32("attempts", attempts),
		zap.Error(err),
	)

	return true
}

func (f *Fulfiller) clearFailure(id ulid.ULID) {
	f.mu.Lock()
	defer f.mu.Unlock()

	delete(f.failures, id)
}

// isTransient reports whether a failed submission may succeed if resent.
// Coded ledger, oracle and program errors are deterministic.
func isTransient(err error) bool {
	var coded interface{ ABCICode() uint32 }

	return !errors.As(err, &coded) && !errors.Is(err, context.Canceled)
}
