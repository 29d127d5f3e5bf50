package service

import (
	"context"
	"crypto/ed25519"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/lightningnetwork/lnd/kvdb"
	"go.uber.org/zap"

	"github.com/er-state/vrf-consumer/config"
	"github.com/er-state/vrf-consumer/keyring"
	"github.com/er-state/vrf-consumer/ledger"
	"github.com/er-state/vrf-consumer/metrics"
	"github.com/er-state/vrf-consumer/program"
	"github.com/er-state/vrf-consumer/types"
	"github.com/er-state/vrf-consumer/vrf"
)

// UserAccountInfo is a decoded user account and where it lives.
type UserAccountInfo struct {
	Address types.Pubkey `json:"address"`
	User    types.Pubkey `json:"user"`
	Data    uint64       `json:"data"`
	Bump    uint8        `json:"bump"`
}

// RequestRandomnessResult describes a submitted randomness request.
type RequestRandomnessResult struct {
	User       types.Pubkey `json:"user"`
	Account    types.Pubkey `json:"account"`
	Queue      types.Pubkey `json:"queue"`
	ClientSeed uint8        `json:"client_seed"`
	RequestID  string       `json:"request_id"`
}

// VrfConsumerApp runs the consumer program and the oracle stand-in over a
// local ledger and signs transactions with keys from the local key store.
type VrfConsumerApp struct {
	startOnce sync.Once
	stopOnce  sync.Once
	wg        sync.WaitGroup
	quit      chan struct{}

	runtime *ledger.Runtime
	ks      *keyring.KeyStore
	config  *config.Config
	logger  *zap.Logger
	metrics *metrics.VrfMetrics

	fulfillerMu sync.Mutex
	fulfiller   *Fulfiller
}

// NewVrfConsumerAppFromConfig builds the ledger runtime over db and registers
// the consumer program and the oracle stand-in.
func NewVrfConsumerAppFromConfig(
	cfg *config.Config,
	db kvdb.Backend,
	logger *zap.Logger,
) (*VrfConsumerApp, error) {
	store, err := ledger.NewAccountStore(db)
	if err != nil {
		return nil, fmt.Errorf("failed to initiate account store: %w", err)
	}

	rt := ledger.NewRuntime(store, logger)
	if err := rt.RegisterProgram(program.New(logger)); err != nil {
		return nil, fmt.Errorf("failed to register the consumer program: %w", err)
	}
	if err := rt.RegisterProgram(vrf.NewOracleProgram(int(cfg.Oracle.MaxQueueLength), logger)); err != nil {
		return nil, fmt.Errorf("failed to register the oracle program: %w", err)
	}

	ks, err := keyring.NewKeyStore(db)
	if err != nil {
		return nil, fmt.Errorf("failed to initiate key store: %w", err)
	}

	return NewVrfConsumerApp(cfg, rt, ks, metrics.NewVrfMetrics(), logger), nil
}

func NewVrfConsumerApp(
	config *config.Config,
	rt *ledger.Runtime,
	ks *keyring.KeyStore,
	metrics *metrics.VrfMetrics,
	logger *zap.Logger,
) *VrfConsumerApp {
	return &VrfConsumerApp{
		runtime: rt,
		ks:      ks,
		config:  config,
		logger:  logger,
		metrics: metrics,
		quit:    make(chan struct{}),
	}
}

func (app *VrfConsumerApp) GetConfig() *config.Config {
	return app.config
}

func (app *VrfConsumerApp) GetKeyStore() *keyring.KeyStore {
	return app.ks
}

func (app *VrfConsumerApp) GetRuntime() *ledger.Runtime {
	return app.runtime
}

// Start makes sure the oracle queue exists and, with auto-fulfill enabled,
// starts draining it.
func (app *VrfConsumerApp) Start() error {
	var startErr error
	app.startOnce.Do(func() {
		app.logger.Info("Starting VrfConsumerApp")

		if _, startErr = app.EnsureOracleQueue(); startErr != nil {
			return
		}

		if app.config.Oracle.AutoFulfill {
			var f *Fulfiller
			f, startErr = app.getFulfiller()
			if startErr != nil {
				return
			}
			if startErr = f.Start(); startErr != nil {
				return
			}
		}

		app.wg.Add(1)
		go app.metricsUpdateLoop()
	})

	return startErr
}

func (app *VrfConsumerApp) Stop() error {
	var stopErr error
	app.stopOnce.Do(func() {
		app.logger.Info("Stopping VrfConsumerApp")

		close(app.quit)
		app.wg.Wait()

		app.fulfillerMu.Lock()
		defer app.fulfillerMu.Unlock()
		if app.fulfiller != nil && app.fulfiller.IsRunning() {
			if err := app.fulfiller.Stop(); err != nil {
				stopErr = fmt.Errorf("failed to stop the fulfiller: %w", err)

				return
			}
		}

		app.logger.Debug("VrfConsumerApp successfully stopped")
	})

	return stopErr
}

// EnsureOracleQueue creates the oracle authority key and an empty queue at
// the configured address if they do not exist yet, and returns the queue
// authority.
func (app *VrfConsumerApp) EnsureOracleQueue() (types.Pubkey, error) {
	authority, err := app.getOrCreateKey(app.config.Oracle.AuthorityKey)
	if err != nil {
		return types.Pubkey{}, fmt.Errorf("failed to load the oracle authority key: %w", err)
	}

	queueAddr := app.config.Oracle.Queue
	acc, err := app.runtime.GetAccount(queueAddr)
	switch {
	case errors.Is(err, ledger.ErrAccountNotFound):
		if err := app.runtime.Store().SetAccount(vrf.GenesisQueueAccount(queueAddr, authority.Pubkey)); err != nil {
			return types.Pubkey{}, fmt.Errorf("failed to create oracle queue %s: %w", queueAddr, err)
		}
		app.logger.Info("created the oracle queue",
			zap.String("queue", queueAddr.String()),
			zap.String("authority", authority.Pubkey.String()),
		)

		return authority.Pubkey, nil
	case err != nil:
		return types.Pubkey{}, fmt.Errorf("failed to get oracle queue %s: %w", queueAddr, err)
	}

	queue, err := vrf.LoadQueue(acc)
	if err != nil {
		return types.Pubkey{}, err
	}

	return queue.Authority, nil
}

func (app *VrfConsumerApp) getOrCreateKey(name string) (*keyring.KeyInfo, error) {
	info, err := app.ks.GetKey(name)
	if errors.Is(err, keyring.ErrKeyNotFound) {
		return app.ks.CreateKey(name)
	}

	return info, err
}

func (app *VrfConsumerApp) getFulfiller() (*Fulfiller, error) {
	app.fulfillerMu.Lock()
	defer app.fulfillerMu.Unlock()

	if app.fulfiller != nil {
		return app.fulfiller, nil
	}

	authority, err := app.ks.GetPrivateKey(app.config.Oracle.AuthorityKey)
	if err != nil {
		return nil, fmt.Errorf("failed to load the oracle authority key: %w", err)
	}

	app.fulfiller = NewFulfiller(
		app.config.Oracle,
		app.runtime,
		NewSignatureRandomness(authority),
		authority,
		app.metrics,
		app.logger,
	)

	return app.fulfiller, nil
}

// FulfillPending runs one fulfillment scan of the oracle queue.
func (app *VrfConsumerApp) FulfillPending(ctx context.Context) (int, error) {
	f, err := app.getFulfiller()
	if err != nil {
		return 0, err
	}

	return f.FulfillPending(ctx)
}

func (app *VrfConsumerApp) execute(ctx context.Context, keyName string, build func(user types.Pubkey) (*types.Instruction, error)) (types.Pubkey, error) {
	key, err := app.ks.GetPrivateKey(keyName)
	if err != nil {
		return types.Pubkey{}, err
	}
	user := types.PubkeyFromEd25519(key.Public().(ed25519.PublicKey))

	ix, err := build(user)
	if err != nil {
		return types.Pubkey{}, err
	}

	tx := ledger.NewTransaction(ix)
	if err := tx.Sign(key); err != nil {
		return types.Pubkey{}, fmt.Errorf("failed to sign the transaction: %w", err)
	}

	err = app.runtime.Execute(ctx, tx)
	app.metrics.RecordTransaction(err)
	if err != nil {
		return types.Pubkey{}, err
	}

	return user, nil
}

// CreateUserAccount creates the user account of the key stored under keyName.
func (app *VrfConsumerApp) CreateUserAccount(ctx context.Context, keyName string) (*UserAccountInfo, error) {
	user, err := app.execute(ctx, keyName, program.NewInitializeInstruction)
	if err != nil {
		return nil, fmt.Errorf("failed to create the user account: %w", err)
	}

	app.logger.Info("created user account", zap.String("key_name", keyName), zap.String("user", user.String()))

	return app.GetUserAccount(user)
}

// UpdateUserAccount sets the data of the user account of keyName to value.
func (app *VrfConsumerApp) UpdateUserAccount(ctx context.Context, keyName string, value uint64) (*UserAccountInfo, error) {
	user, err := app.execute(ctx, keyName, func(user types.Pubkey) (*types.Instruction, error) {
		return program.NewUpdateInstruction(user, value)
	})
	if err != nil {
		return nil, fmt.Errorf("failed to update the user account: %w", err)
	}

	return app.GetUserAccount(user)
}

// CloseUserAccount deletes the user account of keyName.
func (app *VrfConsumerApp) CloseUserAccount(ctx context.Context, keyName string) error {
	user, err := app.execute(ctx, keyName, program.NewCloseInstruction)
	if err != nil {
		return fmt.Errorf("failed to close the user account: %w", err)
	}

	app.logger.Info("closed user account", zap.String("key_name", keyName), zap.String("user", user.String()))

	return nil
}

// RequestRandomness asks the oracle for randomness on behalf of the user
// account of keyName. The value lands in the account once the request is
// fulfilled.
func (app *VrfConsumerApp) RequestRandomness(ctx context.Context, keyName string, clientSeed uint8) (*RequestRandomnessResult, error) {
	queue := app.config.Oracle.Queue
	user, err := app.execute(ctx, keyName, func(user types.Pubkey) (*types.Instruction, error) {
		return program.NewRequestRandomnessInstruction(user, queue, clientSeed)
	})
	app.metrics.RecordRandomnessRequest(err)
	if err != nil {
		return nil, fmt.Errorf("failed to request randomness: %w", err)
	}

	addr, _, err := program.FindUserAccountAddress(user)
	if err != nil {
		return nil, err
	}

	res := &RequestRandomnessResult{
		User:       user,
		Account:    addr,
		Queue:      queue,
		ClientSeed: clientSeed,
	}

	// the newest request of this user is the one just queued
	pending, err := app.PendingRequests()
	if err != nil {
		return nil, err
	}
	for i := len(pending) - 1; i >= 0; i-- {
		if pending[i].Request.Payer == user {
			res.RequestID = pending[i].ID.String()

			break
		}
	}

	app.logger.Info("requested randomness",
		zap.String("key_name", keyName),
		zap.String("account", addr.String()),
		zap.String("request_id", res.RequestID),
	)

	return res, nil
}

// GetUserAccount returns the decoded account of user.
func (app *VrfConsumerApp) GetUserAccount(user types.Pubkey) (*UserAccountInfo, error) {
	addr, _, err := program.FindUserAccountAddress(user)
	if err != nil {
		return nil, err
	}

	acc, err := app.runtime.GetAccount(addr)
	if errors.Is(err, ledger.ErrAccountNotFound) {
		return nil, fmt.Errorf("%w: %s", ErrUserAccountNotFound, user)
	}
	if err != nil {
		return nil, err
	}
	if acc.Owner != program.ProgramID {
		return nil, fmt.Errorf("%w: %s is owned by %s", ErrUserAccountNotFound, addr, acc.Owner)
	}

	state, err := program.UnmarshalUserAccount(acc.Data)
	if err != nil {
		return nil, err
	}

	return &UserAccountInfo{
		Address: addr,
		User:    state.User,
		Data:    state.Data,
		Bump:    state.Bump,
	}, nil
}

func (app *VrfConsumerApp) GetAccount(addr types.Pubkey) (*ledger.Account, error) {
	return app.runtime.GetAccount(addr)
}

// PendingRequests returns the requests waiting in the configured queue.
func (app *VrfConsumerApp) PendingRequests() ([]*vrf.QueuedRequest, error) {
	acc, err := app.runtime.GetAccount(app.config.Oracle.Queue)
	if err != nil {
		return nil, fmt.Errorf("failed to get oracle queue: %w", err)
	}

	queue, err := vrf.LoadQueue(acc)
	if err != nil {
		return nil, err
	}

	return queue.Requests, nil
}

func (app *VrfConsumerApp) metricsUpdateLoop() {
	defer app.wg.Done()

	ticker := time.NewTicker(app.config.Metrics.UpdateInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			pending, err := app.PendingRequests()
			if err != nil {
				app.logger.Debug("failed to update pending requests metric", zap.Error(err))

				continue
			}
			app.metrics.RecordPendingRequests(len(pending))
		case <-app.quit:
			app.logger.Info("exiting metrics update loop")

			return
		}
	}
}
