package ledger

import (
	"context"

	"github.com/tonkeeper/tongo/boc"
	"github.com/tonkeeper/tongo/ton"

	"github.com/arnac-io/teleauction/pkg/blockchain"
	"github.com/arnac-io/teleauction/pkg/core"
	"github.com/arnac-io/teleauction/pkg/fees"
)

// TxContext is what a contract sees of the transaction it runs in.
type TxContext struct {
	Self ton.AccountID
	Now  uint32
	Lt   uint64
	// Balance is the account balance after the storage phase, including the
	// value of the inbound message.
	Balance uint64
	Prices  blockchain.Prices
}

// ForwardFees prices an outbound message of this account.
func (tx *TxContext) ForwardFees(m core.Message) (fees.FwdFees, error) {
	m.Source = &tx.Self
	f, _, err := fees.ComputeMessageFees(tx.Prices.Msg, &m)
	return f, err
}

// Contract is a message handler with persistent state. Handlers either
// return the messages to send or an error, in which case the transaction
// is aborted.
type Contract interface {
	Code() *boc.Cell
	Data() (*boc.Cell, error)
	// Clone returns an independent copy the ledger runs a transaction on.
	Clone() Contract
	ReceiveInternal(ctx context.Context, tx *TxContext, msg core.Message) ([]core.Message, error)
	ReceiveExternal(ctx context.Context, tx *TxContext, body *boc.Cell) ([]core.Message, error)
}

// Factory instantiates a contract from its code and data.
type Factory func(init core.StateInit) (Contract, error)

// StateInit returns the code and data of c.
func StateInit(c Contract) (core.StateInit, error) {
	data, err := c.Data()
	if err != nil {
		return core.StateInit{}, err
	}
	return core.StateInit{Code: c.Code(), Data: data}, nil
}
