package core

import (
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/tonkeeper/tongo/boc"
	"github.com/tonkeeper/tongo/ton"
)

var (
	alice = ton.MustParseAccountID("0:2cf3b5b8c891e517c9addbda1c0386a09ccacbb0e3faf630b51cfc8152325acb")
	bob   = ton.MustParseAccountID("0:14ac072c56291232d7cd93ddec120235c5e5cf5e2027f49bbc5aa276e5d224d8")
)

func TestAddressCodec(t *testing.T) {
	tests := []struct {
		name string
		addr *ton.AccountID
		bits int
	}{
		{name: "none", addr: nil, bits: 2},
		{name: "std", addr: &alice, bits: 267},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := boc.NewCell()
			require.Nil(t, WriteAddress(c, tt.addr))
			require.Equal(t, tt.bits, c.BitSize())
			require.Equal(t, tt.bits, AddressBits(tt.addr))

			c.ResetCounters()
			got, err := ReadAddress(c)
			require.Nil(t, err)
			require.Equal(t, tt.addr, got)
		})
	}
}

func TestReadStdAddressRejectsNone(t *testing.T) {
	c := boc.NewCell()
	require.Nil(t, WriteAddress(c, nil))
	c.ResetCounters()
	_, err := ReadStdAddress(c)
	require.NotNil(t, err)
}

func TestCoinsCodec(t *testing.T) {
	for _, v := range []uint64{0, 1, 255, 256, 1_000_000_000, 1<<64 - 1} {
		t.Run(fmt.Sprint(v), func(t *testing.T) {
			c := boc.NewCell()
			require.Nil(t, WriteCoins(c, v))
			require.Equal(t, CoinsBits(v), c.BitSize())
			c.ResetCounters()
			got, err := ReadCoins(c)
			require.Nil(t, err)
			require.Equal(t, v, got)
		})
	}
}

func TestTextCodec(t *testing.T) {
	c := boc.NewCell()
	require.Nil(t, WriteText(c, "durov"))
	require.Nil(t, WriteText(c, ""))
	require.Equal(t, 8+5*8+8, c.BitSize())
	c.ResetCounters()
	first, err := ReadText(c)
	require.Nil(t, err)
	second, err := ReadText(c)
	require.Nil(t, err)
	require.Equal(t, "durov", first)
	require.Equal(t, "", second)

	require.NotNil(t, WriteText(boc.NewCell(), strings.Repeat("a", 256)))
}

func TestReadOp(t *testing.T) {
	short := boc.NewCell()
	require.Nil(t, short.WriteUint(1, 16))
	query, err := QueryBody(OpStartAuction, 7)
	require.Nil(t, err)

	tests := []struct {
		name    string
		body    *boc.Cell
		op      Op
		ok      bool
		wantErr error
	}{
		{name: "nil body", body: nil, op: OpComment},
		{name: "empty body", body: boc.NewCell(), op: OpComment},
		{name: "short body", body: short, wantErr: ErrInvalidLength},
		{name: "op and query", body: query, op: OpStartAuction, ok: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			op, ok, err := ReadOp(tt.body)
			if tt.wantErr != nil {
				require.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.Nil(t, err)
			require.Equal(t, tt.op, op)
			require.Equal(t, tt.ok, ok)
		})
	}
	queryID, err := ReadQueryID(query)
	require.Nil(t, err)
	require.Equal(t, uint64(7), queryID)
}

func TestComment(t *testing.T) {
	body, err := CommentBody(TopupComment)
	require.Nil(t, err)
	op, ok, err := ReadOp(body)
	require.Nil(t, err)
	require.True(t, ok)
	require.Equal(t, OpComment, op)
	text, err := ReadComment(body)
	require.Nil(t, err)
	require.Equal(t, TopupComment, text)
}

func TestOffchainContent(t *testing.T) {
	uri := "https://example.com/" + strings.Repeat("x", 200)
	c, err := OffchainContent(uri).ToCell()
	require.Nil(t, err)
	require.Equal(t, 127*8, c.BitSize())
	require.Equal(t, 1, c.RefsSize())

	var data []byte
	for cell := c; cell != nil; {
		cell.ResetCounters()
		b, err := cell.ReadBytes(cell.BitsAvailableForRead() / 8)
		require.Nil(t, err)
		data = append(data, b...)
		if cell.RefsAvailableForRead() == 0 {
			break
		}
		cell, err = cell.NextRef()
		require.Nil(t, err)
	}
	require.Equal(t, append([]byte{offchainContentPrefix}, uri...), data)

	_, err = Content{}.ToCell()
	require.NotNil(t, err)
}

func TestExitCodeOf(t *testing.T) {
	tests := []struct {
		name string
		err  error
		code uint32
		ok   bool
	}{
		{name: "plain", err: ErrTooSmallStake, code: 211, ok: true},
		{name: "wrapped", err: fmt.Errorf("bid: %w", ErrForbiddenTopup), code: 215, ok: true},
		{name: "infrastructure", err: errors.New("disk full")},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			code, ok := ExitCodeOf(tt.err)
			require.Equal(t, tt.ok, ok)
			require.Equal(t, tt.code, code)
		})
	}
}
