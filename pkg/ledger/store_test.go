package ledger

import (
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/tonkeeper/tongo/ton"

	"github.com/arnac-io/teleauction/pkg/core"
)

func TestStores(t *testing.T) {
	addr := ton.MustParseAccountID("0:2cf3b5b8c891e517c9addbda1c0386a09ccacbb0e3faf630b51cfc8152325acb")
	missing := ton.MustParseAccountID("0:14ac072c56291232d7cd93ddec120235c5e5cf5e2027f49bbc5aa276e5d224d8")

	bolt, err := NewBoltStore(t.TempDir())
	require.Nil(t, err)
	stores := map[string]Store{
		"memory": NewMemoryStore(),
		"bolt":   bolt,
	}
	for name, store := range stores {
		t.Run(name, func(t *testing.T) {
			defer store.Close()
			data, err := NewWallet(7).Data()
			require.Nil(t, err)
			state := AccountState{
				Balance:  1_000_000_000,
				LastPaid: 1700000000,
				LastLt:   42,
				Code:     WalletCode(),
				Data:     data,
			}
			require.Nil(t, store.Save(addr, state))

			got, err := store.Load(addr)
			require.Nil(t, err)
			require.Equal(t, state.Balance, got.Balance)
			require.Equal(t, state.LastPaid, got.LastPaid)
			require.Equal(t, state.LastLt, got.LastLt)
			wallet, err := WalletFactory(core.StateInit{Code: got.Code, Data: got.Data})
			require.Nil(t, err)
			require.Equal(t, uint32(7), wallet.(*Wallet).ID)

			_, err = store.Load(missing)
			require.ErrorIs(t, err, core.ErrEntityNotFound)
		})
	}
}

func TestAccountStateRequiresCode(t *testing.T) {
	_, err := AccountState{Balance: 1}.MarshalBoc()
	require.NotNil(t, err)
}

func TestNewBoltStoreRequiresDir(t *testing.T) {
	_, err := NewBoltStore("")
	require.NotNil(t, err)
}
