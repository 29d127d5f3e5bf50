package testutil

import (
	"testing"

	"github.com/golang/mock/gomock"

	"github.com/er-state/vrf-consumer/ledger"
	"github.com/er-state/vrf-consumer/testutil/mocks"
	"github.com/er-state/vrf-consumer/types"
	"github.com/er-state/vrf-consumer/vrf"
)

// PrepareMockedLedgerClient returns a ledger client whose queue account at
// queueAddr holds the given queue. The queue is read on every call, so tests
// can change it from their Execute expectations.
func PrepareMockedLedgerClient(t *testing.T, queueAddr types.Pubkey, queue *vrf.QueueAccount) *mocks.MockLedgerClient {
	ctl := gomock.NewController(t)
	mockLedgerClient := mocks.NewMockLedgerClient(ctl)

	mockLedgerClient.EXPECT().GetAccount(queueAddr).DoAndReturn(func(addr types.Pubkey) (*ledger.Account, error) {
		return &ledger.Account{
			Address: addr,
			Owner:   vrf.VRFProgramID,
			Data:    queue.Marshal(),
		}, nil
	}).AnyTimes()

	return mockLedgerClient
}
