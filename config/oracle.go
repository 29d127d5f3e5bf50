package config

import (
	"fmt"
	"time"

	"github.com/er-state/vrf-consumer/types"
	"github.com/er-state/vrf-consumer/vrf"
)

var (
	defaultAuthorityKeyName   = "oracle-authority"
	defaultMaxQueueLength     = uint32(vrf.DefaultMaxQueueLength)
	defaultOraclePollInterval = 500 * time.Millisecond
	defaultFulfillBatchSize   = uint32(16)
	defaultMaxFulfillAttempts = uint32(3)
	defaultRetryAttempts      = uint(3)
	defaultRetryDelay         = 200 * time.Millisecond
)

// MaxFulfillBatchSize bounds the number of requests fulfilled per poll.
const MaxFulfillBatchSize = 256

// OracleConfig configures the local oracle stand-in: the queue it serves and
// how the fulfillment loop drains it.
type OracleConfig struct {
	Queue              types.Pubkey  `long:"queue" description:"The base58 address of the oracle queue requests are sent to"`
	AuthorityKey       string        `long:"authoritykey" description:"The name of the local key that is the queue authority and signs fulfillments"`
	MaxQueueLength     uint32        `long:"maxqueuelength" description:"The maximum number of pending requests the queue holds"`
	AutoFulfill        bool          `long:"autofulfill" description:"Fulfill queued requests automatically while the daemon runs"`
	PollInterval       time.Duration `long:"pollinterval" description:"The interval between each scan of the queue for pending requests"`
	BatchSize          uint32        `long:"batchsize" description:"The maximum number of requests fulfilled per scan"`
	MaxFulfillAttempts uint32        `long:"maxfulfillattempts" description:"The number of failed scans after which a request is given up on"`
	RetryAttempts      uint          `long:"retryattempts" description:"The number of attempts to submit one fulfillment transaction"`
	RetryDelay         time.Duration `long:"retrydelay" description:"The delay between attempts to submit one fulfillment transaction"`
}

func DefaultOracleConfig() OracleConfig {
	return OracleConfig{
		Queue:              vrf.DefaultQueue,
		AuthorityKey:       defaultAuthorityKeyName,
		MaxQueueLength:     defaultMaxQueueLength,
		AutoFulfill:        true,
		PollInterval:       defaultOraclePollInterval,
		BatchSize:          defaultFulfillBatchSize,
		MaxFulfillAttempts: defaultMaxFulfillAttempts,
		RetryAttempts:      defaultRetryAttempts,
		RetryDelay:         defaultRetryDelay,
	}
}

func (c *OracleConfig) Validate() error {
	if c.Queue.IsZero() {
		return fmt.Errorf("oracle queue cannot be empty")
	}
	if c.AuthorityKey == "" {
		return fmt.Errorf("oracle authority key name cannot be empty")
	}
	if c.MaxQueueLength == 0 {
		return fmt.Errorf("max queue length must be positive, got %d", c.MaxQueueLength)
	}
	if c.PollInterval <= 0 {
		return fmt.Errorf("poll interval must be positive, got %v", c.PollInterval)
	}
	if c.BatchSize == 0 {
		return fmt.Errorf("batch size must be positive, got %d", c.BatchSize)
	}
	if c.BatchSize > MaxFulfillBatchSize {
		return fmt.Errorf("batch size must not exceed %d, got %d", MaxFulfillBatchSize, c.BatchSize)
	}
	if c.MaxFulfillAttempts == 0 {
		return fmt.Errorf("max fulfill attempts must be positive, got %d", c.MaxFulfillAttempts)
	}
	if c.RetryAttempts == 0 {
		return fmt.Errorf("retry attempts must be positive, got %d", c.RetryAttempts)
	}
	if c.RetryDelay < 0 {
		return fmt.Errorf("retry delay cannot be negative, got %v", c.RetryDelay)
	}

	return nil
}
