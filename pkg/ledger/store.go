package ledger

import (
	"errors"
	"fmt"
	"hash/maphash"
	"os"
	"path"
	"time"

	"github.com/puzpuzpuz/xsync/v2"
	"github.com/tonkeeper/tongo/boc"
	"github.com/tonkeeper/tongo/ton"
	bolt "go.etcd.io/bbolt"

	"github.com/arnac-io/teleauction/pkg/core"
)

// AccountState is the persisted part of an account.
type AccountState struct {
	Balance  uint64
	LastPaid uint32
	LastLt   uint64
	Code     *boc.Cell
	Data     *boc.Cell
}

func (s AccountState) MarshalBoc() ([]byte, error) {
	c := boc.NewCell()
	if err := core.WriteCoins(c, s.Balance); err != nil {
		return nil, err
	}
	if err := c.WriteUint(uint64(s.LastPaid), 32); err != nil {
		return nil, err
	}
	if err := c.WriteUint(s.LastLt, 64); err != nil {
		return nil, err
	}
	for _, ref := range []*boc.Cell{s.Code, s.Data} {
		if ref == nil {
			return nil, errors.New("account state without code or data")
		}
		if err := c.AddRef(ref); err != nil {
			return nil, err
		}
	}
	return c.ToBoc()
}

func UnmarshalAccountState(b []byte) (AccountState, error) {
	cells, err := boc.DeserializeBoc(b)
	if err != nil {
		return AccountState{}, err
	}
	if len(cells) != 1 {
		return AccountState{}, fmt.Errorf("expected one root cell, got %d", len(cells))
	}
	c := cells[0]
	var s AccountState
	if s.Balance, err = core.ReadCoins(c); err != nil {
		return AccountState{}, err
	}
	lastPaid, err := c.ReadUint(32)
	if err != nil {
		return AccountState{}, err
	}
	s.LastPaid = uint32(lastPaid)
	if s.LastLt, err = c.ReadUint(64); err != nil {
		return AccountState{}, err
	}
	if s.Code, err = c.NextRef(); err != nil {
		return AccountState{}, err
	}
	if s.Data, err = c.NextRef(); err != nil {
		return AccountState{}, err
	}
	return s, nil
}

// Store persists account states between sandbox runs.
type Store interface {
	Save(addr ton.AccountID, state AccountState) error
	// Load returns core.ErrEntityNotFound for unknown accounts.
	Load(addr ton.AccountID) (AccountState, error)
	Close() error
}

func hashAccountID(seed maphash.Seed, a ton.AccountID) uint64 {
	var h maphash.Hash
	h.SetSeed(seed)
	h.WriteString(a.ToRaw())
	return h.Sum64()
}

// MemoryStore keeps serialized states in memory.
type MemoryStore struct {
	states *xsync.MapOf[ton.AccountID, []byte]
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{states: xsync.NewTypedMapOf[ton.AccountID, []byte](hashAccountID)}
}

func (m *MemoryStore) Save(addr ton.AccountID, state AccountState) error {
	b, err := state.MarshalBoc()
	if err != nil {
		return err
	}
	m.states.Store(addr, b)
	return nil
}

func (m *MemoryStore) Load(addr ton.AccountID) (AccountState, error) {
	b, ok := m.states.Load(addr)
	if !ok {
		return AccountState{}, core.ErrEntityNotFound
	}
	return UnmarshalAccountState(b)
}

func (m *MemoryStore) Close() error {
	return nil
}

const (
	boltName      = "accounts.db"
	boltAllocSize = 8 * 1024 * 1024
)

var accountsBucket = []byte("accounts")

// BoltStore keeps account states in a bbolt file.
type BoltStore struct {
	db *bolt.DB
}

func NewBoltStore(dir string) (*BoltStore, error) {
	if len(dir) == 0 {
		return nil, errors.New("bolt store dir path can not be empty")
	}
	if err := os.MkdirAll(dir, os.ModePerm); err != nil {
		return nil, err
	}
	db, err := bolt.Open(path.Join(dir, boltName), 0660, &bolt.Options{Timeout: 2 * time.Second})
	if err != nil {
		if errors.Is(err, bolt.ErrTimeout) {
			return nil, errors.New("cannot obtain database lock, database may be in use by another process")
		}
		return nil, err
	}
	db.AllocSize = boltAllocSize
	if err := db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(accountsBucket)
		return err
	}); err != nil {
		db.Close()
		return nil, err
	}
	return &BoltStore{db: db}, nil
}

func (s *BoltStore) Save(addr ton.AccountID, state AccountState) error {
	b, err := state.MarshalBoc()
	if err != nil {
		return err
	}
	return s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(accountsBucket).Put([]byte(addr.ToRaw()), b)
	})
}

func (s *BoltStore) Load(addr ton.AccountID) (AccountState, error) {
	var data []byte
	err := s.db.View(func(tx *bolt.Tx) error {
		v := tx.Bucket(accountsBucket).Get([]byte(addr.ToRaw()))
		if v == nil {
			return core.ErrEntityNotFound
		}
		// bolt values are only valid inside the transaction
		data = append([]byte(nil), v...)
		return nil
	})
	if err != nil {
		return AccountState{}, err
	}
	return UnmarshalAccountState(data)
}

func (s *BoltStore) Close() error {
	return s.db.Close()
}
