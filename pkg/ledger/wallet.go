package ledger

import (
	"context"
	"errors"

	"github.com/tonkeeper/tongo/boc"

	"github.com/arnac-io/teleauction/pkg/core"
)

const walletCodeTag = "wallet"

// Wallet is a plain account that accepts every inbound message. Sandbox
// users send from wallets with Sandbox.Send.
type Wallet struct {
	ID uint32
}

func NewWallet(id uint32) *Wallet {
	return &Wallet{ID: id}
}

func WalletCode() *boc.Cell {
	c := boc.NewCell()
	if err := core.WriteText(c, walletCodeTag); err != nil {
		panic(err)
	}
	return c
}

func WalletFactory(init core.StateInit) (Contract, error) {
	if init.Data == nil {
		return nil, errors.New("wallet without data")
	}
	init.Data.ResetCounters()
	id, err := init.Data.ReadUint(32)
	if err != nil {
		return nil, err
	}
	return NewWallet(uint32(id)), nil
}

func (w *Wallet) Code() *boc.Cell {
	return WalletCode()
}

func (w *Wallet) Data() (*boc.Cell, error) {
	c := boc.NewCell()
	if err := c.WriteUint(uint64(w.ID), 32); err != nil {
		return nil, err
	}
	return c, nil
}

func (w *Wallet) Clone() Contract {
	cp := *w
	return &cp
}

func (w *Wallet) ReceiveInternal(ctx context.Context, tx *TxContext, msg core.Message) ([]core.Message, error) {
	return nil, nil
}

func (w *Wallet) ReceiveExternal(ctx context.Context, tx *TxContext, body *boc.Cell) ([]core.Message, error) {
	return nil, core.ErrUnknownOp
}
