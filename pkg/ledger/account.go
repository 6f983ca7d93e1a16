package ledger

import (
	"github.com/tonkeeper/tongo/boc"
	"github.com/tonkeeper/tongo/ton"

	"github.com/arnac-io/teleauction/pkg/core"
)

// Account is an account of the sandbox. Contract is nil until the account
// is deployed.
type Account struct {
	Address  ton.AccountID
	Balance  uint64
	LastPaid uint32
	LastLt   uint64
	Contract Contract
}

func (a *Account) Active() bool {
	return a.Contract != nil
}

func (a *Account) state() (AccountState, error) {
	init, err := StateInit(a.Contract)
	if err != nil {
		return AccountState{}, err
	}
	return AccountState{
		Balance:  a.Balance,
		LastPaid: a.LastPaid,
		LastLt:   a.LastLt,
		Code:     init.Code,
		Data:     init.Data,
	}, nil
}

// Transaction is the outcome of delivering one message.
type Transaction struct {
	Account ton.AccountID
	Lt      uint64
	Now     uint32
	InMsg   core.Message
	OutMsgs []core.Message
	Aborted bool
	// ExitCode is set for aborts raised by the contract.
	ExitCode uint32
	Err      error

	StorageFee  uint64
	ImportFee   uint64
	ForwardFees uint64
	// Bounce is the message returning the inbound value of an aborted transaction.
	Bounce *core.Message
}

// bounceBody is the body of a bounced message: 0xffffffff followed by the
// beginning of the original body.
func bounceBody(original *boc.Cell) (*boc.Cell, error) {
	c, err := core.OpBody(core.OpBounce)
	if err != nil {
		return nil, err
	}
	if original == nil {
		return c, nil
	}
	original.ResetCounters()
	n := original.BitsAvailableForRead()
	if n > bounceBodyBits {
		n = bounceBodyBits
	}
	for i := 0; i < n; i++ {
		bit, err := original.ReadBit()
		if err != nil {
			return nil, err
		}
		if err := c.WriteBit(bit); err != nil {
			return nil, err
		}
	}
	return c, nil
}
