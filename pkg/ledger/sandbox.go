package ledger

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"hash/maphash"
	"strconv"
	"sync"
	"time"

	"github.com/puzpuzpuz/xsync/v2"
	"github.com/sourcegraph/conc/iter"
	"github.com/tonkeeper/tongo/boc"
	"github.com/tonkeeper/tongo/ton"
	"go.uber.org/multierr"
	"go.uber.org/zap"
	"golang.org/x/exp/slices"

	"github.com/arnac-io/teleauction/pkg/blockchain"
	"github.com/arnac-io/teleauction/pkg/cache"
	"github.com/arnac-io/teleauction/pkg/core"
	"github.com/arnac-io/teleauction/pkg/fees"
	"github.com/arnac-io/teleauction/pkg/sentry"
)

var (
	// ErrTooManyRounds is returned when a message cascade keeps producing
	// messages after the configured number of delivery rounds.
	ErrTooManyRounds    = errors.New("message cascade did not settle")
	ErrExternalRejected = errors.New("external message rejected")
	errNoCode           = errors.New("account has no code")
)

const (
	defaultMaxRounds = 64
	statsCacheSize   = 1024
	bounceBodyBits   = 256
)

type Options struct {
	logger        *zap.Logger
	config        blockchain.ConfigSource
	store         Store
	maxGoroutines int
	maxRounds     int
	now           uint32
}

type Option func(o *Options)

func WithLogger(logger *zap.Logger) Option {
	return func(o *Options) {
		o.logger = logger
	}
}

func WithConfig(src blockchain.ConfigSource) Option {
	return func(o *Options) {
		o.config = src
	}
}

func WithStore(store Store) Option {
	return func(o *Options) {
		o.store = store
	}
}

func WithMaxGoroutines(n int) Option {
	return func(o *Options) {
		o.maxGoroutines = n
	}
}

func WithMaxRounds(n int) Option {
	return func(o *Options) {
		o.maxRounds = n
	}
}

func WithNow(now uint32) Option {
	return func(o *Options) {
		o.now = now
	}
}

// Sandbox is an in-process ledger. It delivers messages one at a time per
// account, charges storage, import and forward fees the way the network does
// and bounces the value of aborted transactions.
type Sandbox struct {
	logger        *zap.Logger
	config        blockchain.ConfigSource
	store         Store
	maxGoroutines int
	maxRounds     int

	// runMu serializes message cascades.
	runMu sync.Mutex
	mu    sync.RWMutex
	now   uint32

	accounts  *xsync.MapOf[ton.AccountID, *Account]
	factories *xsync.MapOf[ton.Bits256, Factory]
	stats     cache.Cache[ton.Bits256, fees.CellStats]
}

func hashBits256(seed maphash.Seed, b ton.Bits256) uint64 {
	var h maphash.Hash
	h.SetSeed(seed)
	h.Write(b[:])
	return h.Sum64()
}

func NewSandbox(opts ...Option) *Sandbox {
	o := &Options{
		logger:    zap.NewNop(),
		maxRounds: defaultMaxRounds,
		now:       uint32(time.Now().Unix()),
	}
	for _, opt := range opts {
		opt(o)
	}
	if o.config == nil {
		o.config = blockchain.DefaultConfig()
	}
	s := &Sandbox{
		logger:        o.logger,
		config:        o.config,
		store:         o.store,
		maxGoroutines: o.maxGoroutines,
		maxRounds:     o.maxRounds,
		now:           o.now,
		accounts:      xsync.NewTypedMapOf[ton.AccountID, *Account](hashAccountID),
		factories:     xsync.NewTypedMapOf[ton.Bits256, Factory](hashBits256),
		stats:         cache.NewLRUCache[ton.Bits256, fees.CellStats](statsCacheSize, "state_stats"),
	}
	s.RegisterCode(WalletCode(), WalletFactory)
	return s
}

func (s *Sandbox) Now() uint32 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.now
}

func (s *Sandbox) SetNow(now uint32) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.now = now
}

func (s *Sandbox) Advance(seconds uint32) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.now += seconds
}

// RegisterCode tells the sandbox how to instantiate contracts with the
// given code, either when a message deploys one or when one is restored.
func (s *Sandbox) RegisterCode(code *boc.Cell, f Factory) {
	h, err := core.CellHash(code)
	if err != nil {
		panic(err)
	}
	s.factories.Store(h, f)
}

// Deploy creates a basechain account running c.
func (s *Sandbox) Deploy(ctx context.Context, c Contract, balance uint64) (ton.AccountID, error) {
	init, err := StateInit(c)
	if err != nil {
		return ton.AccountID{}, err
	}
	addr, err := init.Address(0)
	if err != nil {
		return ton.AccountID{}, err
	}
	acc := &Account{Address: addr, Balance: balance, LastPaid: s.Now(), Contract: c}
	if prev, loaded := s.accounts.LoadOrStore(addr, acc); loaded {
		if prev.Active() {
			return ton.AccountID{}, fmt.Errorf("account %v is already deployed", addr.ToRaw())
		}
		acc.Balance += prev.Balance
		acc.LastLt = prev.LastLt
		s.accounts.Store(addr, acc)
	}
	if err := s.save(acc); err != nil {
		return ton.AccountID{}, err
	}
	s.logger.Info("account deployed", zap.String("account", addr.ToRaw()), zap.Uint64("balance", balance))
	return addr, nil
}

// Account returns a copy of the account.
func (s *Sandbox) Account(addr ton.AccountID) (Account, bool) {
	acc, ok := s.accounts.Load(addr)
	if !ok {
		return Account{}, false
	}
	return *acc, true
}

func (s *Sandbox) Balance(addr ton.AccountID) uint64 {
	acc, _ := s.Account(addr)
	return acc.Balance
}

// Accounts lists the known accounts ordered by address.
func (s *Sandbox) Accounts() []ton.AccountID {
	var out []ton.AccountID
	s.accounts.Range(func(addr ton.AccountID, _ *Account) bool {
		out = append(out, addr)
		return true
	})
	slices.SortFunc(out, func(a, b ton.AccountID) int {
		if a.Workchain != b.Workchain {
			return int(a.Workchain) - int(b.Workchain)
		}
		return bytes.Compare(a.Address[:], b.Address[:])
	})
	return out
}

// Contract returns the committed state of the contract at addr.
func (s *Sandbox) Contract(addr ton.AccountID) (Contract, bool) {
	acc, ok := s.Account(addr)
	if !ok || !acc.Active() {
		return nil, false
	}
	return acc.Contract, true
}

// Restore loads an account from the store, replacing the in-memory one.
func (s *Sandbox) Restore(addr ton.AccountID) (*Account, error) {
	if s.store == nil {
		return nil, core.ErrEntityNotFound
	}
	state, err := s.store.Load(addr)
	if err != nil {
		return nil, err
	}
	c, err := s.instantiate(core.StateInit{Code: state.Code, Data: state.Data})
	if err != nil {
		return nil, err
	}
	acc := &Account{
		Address:  addr,
		Balance:  state.Balance,
		LastPaid: state.LastPaid,
		LastLt:   state.LastLt,
		Contract: c,
	}
	s.accounts.Store(addr, acc)
	return acc, nil
}

func (s *Sandbox) Close() error {
	if s.store == nil {
		return nil
	}
	return s.store.Close()
}

func (s *Sandbox) account(addr ton.AccountID) (*Account, error) {
	if acc, ok := s.accounts.Load(addr); ok {
		return acc, nil
	}
	acc, err := s.Restore(addr)
	if err == nil {
		return acc, nil
	}
	if !errors.Is(err, core.ErrEntityNotFound) {
		return nil, err
	}
	acc, _ = s.accounts.LoadOrStore(addr, &Account{Address: addr})
	return acc, nil
}

// deploy instantiates the contract a message's state init carries. The
// init must derive the address of the account it is sent to.
func (s *Sandbox) deploy(addr ton.AccountID, init core.StateInit) (Contract, error) {
	derived, err := init.Address(addr.Workchain)
	if err != nil {
		return nil, err
	}
	if derived != addr {
		return nil, fmt.Errorf("state init of %v does not match the account", derived.ToRaw())
	}
	return s.instantiate(init)
}

func (s *Sandbox) instantiate(init core.StateInit) (Contract, error) {
	h, err := core.CellHash(init.Code)
	if err != nil {
		return nil, err
	}
	f, ok := s.factories.Load(h)
	if !ok {
		return nil, fmt.Errorf("no contract registered for code %v", h.Hex())
	}
	return f(init)
}

func (s *Sandbox) save(acc *Account) error {
	if s.store == nil || !acc.Active() {
		return nil
	}
	state, err := acc.state()
	if err != nil {
		return err
	}
	return s.store.Save(acc.Address, state)
}

// Send injects an internal message from a deployed account and delivers it
// together with every message it causes.
func (s *Sandbox) Send(ctx context.Context, msg core.Message) ([]Transaction, error) {
	s.runMu.Lock()
	defer s.runMu.Unlock()

	if msg.Source == nil {
		return nil, errors.New("internal message without source")
	}
	src, ok := s.accounts.Load(*msg.Source)
	if !ok || !src.Active() {
		return nil, fmt.Errorf("source %v: %w", msg.Source.ToRaw(), core.ErrEntityNotFound)
	}
	prices, err := blockchain.LoadPrices(ctx, s.config, src.Address.Workchain)
	if err != nil {
		return nil, err
	}
	msg.Bounced = false
	f, err := s.priceMessage(prices.Msg, &msg)
	if err != nil {
		return nil, err
	}
	cost := msg.Value
	if msg.Mode.PayFeesSeparately() {
		cost += f.Total
	} else {
		if msg.Value < f.Total {
			return nil, core.ErrNotEnoughFunds
		}
		msg.Value -= f.Total
	}
	if cost > src.Balance {
		return nil, core.ErrNotEnoughFunds
	}
	src.Balance -= cost
	src.LastLt++
	msg.CreatedLt = src.LastLt
	msg.CreatedAt = s.Now()
	if err := s.save(src); err != nil {
		return nil, err
	}
	return s.run(ctx, []core.Message{msg})
}

// SendExternal delivers an inbound external message. A message the
// contract does not accept changes nothing and is reported as an error
// wrapping ErrExternalRejected and the contract's error.
func (s *Sandbox) SendExternal(ctx context.Context, dst ton.AccountID, body *boc.Cell) ([]Transaction, error) {
	s.runMu.Lock()
	defer s.runMu.Unlock()

	if body == nil {
		body = boc.NewCell()
	}
	txs, err := s.run(ctx, []core.Message{{Destination: dst, Body: body}})
	if err != nil {
		return txs, err
	}
	if len(txs) > 0 && txs[0].Aborted && txs[0].Lt == 0 {
		return txs, fmt.Errorf("%w: %w", ErrExternalRejected, txs[0].Err)
	}
	return txs, nil
}

type delivery struct {
	txs []Transaction
	err error
}

func groupByDestination(queue []core.Message) [][]core.Message {
	index := make(map[ton.AccountID]int)
	var groups [][]core.Message
	for _, m := range queue {
		i, ok := index[m.Destination]
		if !ok {
			i = len(groups)
			index[m.Destination] = i
			groups = append(groups, nil)
		}
		groups[i] = append(groups[i], m)
	}
	return groups
}

// run delivers messages in rounds. Messages of one round addressed to
// different accounts are processed concurrently, the ones addressed to the
// same account in the order they were produced.
func (s *Sandbox) run(ctx context.Context, queue []core.Message) ([]Transaction, error) {
	var txs []Transaction
	for round := 0; len(queue) > 0; round++ {
		if round == s.maxRounds {
			return txs, ErrTooManyRounds
		}
		groups := groupByDestination(queue)
		results := make([]delivery, len(groups))
		iterator := iter.Iterator[[]core.Message]{MaxGoroutines: s.maxGoroutines}
		iterator.ForEachIdx(groups, func(i int, msgs *[]core.Message) {
			results[i] = s.deliverAll(ctx, *msgs)
		})
		queue = nil
		var err error
		for _, r := range results {
			err = multierr.Append(err, r.err)
			for _, tx := range r.txs {
				txs = append(txs, tx)
				queue = append(queue, tx.OutMsgs...)
				if tx.Bounce != nil {
					queue = append(queue, *tx.Bounce)
				}
			}
		}
		if err != nil {
			return txs, err
		}
	}
	return txs, nil
}

func (s *Sandbox) deliverAll(ctx context.Context, msgs []core.Message) delivery {
	var d delivery
	for _, m := range msgs {
		tx, err := s.deliver(ctx, m)
		if err != nil {
			d.err = err
			return d
		}
		d.txs = append(d.txs, tx)
	}
	return d
}

func (s *Sandbox) deliver(ctx context.Context, msg core.Message) (Transaction, error) {
	kind := "internal"
	if msg.IsExternal() {
		kind = "external"
	}
	start := time.Now()
	defer func() {
		txTimeHistogram.WithLabelValues(kind).Observe(time.Since(start).Seconds())
	}()

	acc, err := s.account(msg.Destination)
	if err != nil {
		return Transaction{}, err
	}
	prices, err := blockchain.LoadPrices(ctx, s.config, acc.Address.Workchain)
	if err != nil {
		return Transaction{}, err
	}
	if msg.IsExternal() {
		return s.deliverExternal(ctx, acc, prices, msg)
	}
	return s.deliverInternal(ctx, acc, prices, msg)
}

func (s *Sandbox) deliverInternal(ctx context.Context, acc *Account, prices blockchain.Prices, msg core.Message) (Transaction, error) {
	next := *acc
	now := s.Now()
	tx := Transaction{
		Account: acc.Address,
		Lt:      max(next.LastLt, msg.CreatedLt) + 1,
		Now:     now,
		InMsg:   msg,
	}
	var err error
	if tx.StorageFee, err = s.storagePhase(&next, prices, now); err != nil {
		return Transaction{}, err
	}
	next.Balance += msg.Value

	contract := next.Contract
	if contract == nil && msg.Init != nil {
		if contract, err = s.deploy(next.Address, *msg.Init); err != nil {
			s.logger.Warn("failed to deploy account",
				zap.String("account", next.Address.ToRaw()),
				zap.Error(err))
			contract = nil
		}
	}
	if contract == nil {
		if !msg.Bounce {
			next.LastLt = tx.Lt
			return tx, s.commit(acc, next)
		}
		if err := s.abort(&next, &tx, prices, errNoCode); err != nil {
			return Transaction{}, err
		}
		return tx, s.commit(acc, next)
	}

	work := contract.Clone()
	txCtx := &TxContext{Self: next.Address, Now: now, Lt: tx.Lt, Balance: next.Balance, Prices: prices}
	out, err := work.ReceiveInternal(ctx, txCtx, msg)
	var spent uint64
	if err == nil {
		out, spent, tx.ForwardFees, err = s.actionPhase(txCtx, out)
	}
	switch {
	case errors.Is(err, fees.ErrFeeModelDesync):
		return Transaction{}, err
	case err != nil:
		if err := s.abort(&next, &tx, prices, err); err != nil {
			return Transaction{}, err
		}
	default:
		next.Contract = work
		next.Balance -= spent
		tx.OutMsgs = out
		next.LastLt = tx.Lt + uint64(len(out))
		s.logger.Debug("transaction committed",
			zap.String("account", next.Address.ToRaw()),
			zap.Uint64("lt", tx.Lt),
			zap.String("op", msg.Op().String()),
			zap.Int("out_msgs", len(out)))
	}
	return tx, s.commit(acc, next)
}

func (s *Sandbox) deliverExternal(ctx context.Context, acc *Account, prices blockchain.Prices, msg core.Message) (Transaction, error) {
	next := *acc
	now := s.Now()
	reject := func(err error) (Transaction, error) {
		return Transaction{Account: acc.Address, Now: now, InMsg: msg, Aborted: true, Err: err}, nil
	}
	if !next.Active() {
		return reject(errNoCode)
	}
	importFee, err := fees.ImportFee(prices.Msg, msg.Body)
	if err != nil {
		return Transaction{}, err
	}
	storageFee, err := s.storagePhase(&next, prices, now)
	if err != nil {
		return Transaction{}, err
	}
	if next.Balance < importFee {
		return reject(core.ErrNotEnoughFunds)
	}
	next.Balance -= importFee
	lt := next.LastLt + 1
	work := next.Contract.Clone()
	txCtx := &TxContext{Self: next.Address, Now: now, Lt: lt, Balance: next.Balance, Prices: prices}
	out, err := work.ReceiveExternal(ctx, txCtx, msg.Body)
	if err != nil {
		return reject(err)
	}
	tx := Transaction{
		Account:    acc.Address,
		Lt:         lt,
		Now:        now,
		InMsg:      msg,
		StorageFee: storageFee,
		ImportFee:  importFee,
	}
	out, spent, fwd, err := s.actionPhase(txCtx, out)
	switch {
	case errors.Is(err, fees.ErrFeeModelDesync):
		return Transaction{}, err
	case err != nil:
		tx.Aborted, tx.Err = true, err
		tx.ExitCode, _ = core.ExitCodeOf(err)
		next.LastLt = lt
	default:
		next.Contract = work
		next.Balance -= spent
		tx.OutMsgs, tx.ForwardFees = out, fwd
		next.LastLt = lt + uint64(len(out))
	}
	return tx, s.commit(acc, next)
}

func (s *Sandbox) commit(acc *Account, next Account) error {
	*acc = next
	return s.save(acc)
}

// storagePhase charges storage for the time since the last payment. An
// account that cannot pay gives away its whole balance.
func (s *Sandbox) storagePhase(acc *Account, prices blockchain.Prices, now uint32) (uint64, error) {
	if !acc.Active() || now <= acc.LastPaid {
		if now > acc.LastPaid {
			acc.LastPaid = now
		}
		return 0, nil
	}
	stats, err := s.stateStats(acc.Contract)
	if err != nil {
		return 0, err
	}
	fee := prices.StorageFee(stats, now-acc.LastPaid)
	acc.LastPaid = now
	if fee > acc.Balance {
		fee = acc.Balance
	}
	acc.Balance -= fee
	return fee, nil
}

func (s *Sandbox) stateStats(c Contract) (fees.CellStats, error) {
	init, err := StateInit(c)
	if err != nil {
		return fees.CellStats{}, err
	}
	cell, err := init.ToCell()
	if err != nil {
		return fees.CellStats{}, err
	}
	h, err := core.CellHash(cell)
	if err != nil {
		return fees.CellStats{}, err
	}
	return s.stats.GetOrCompute(h, func() (fees.CellStats, error) {
		return fees.CollectCellStats(cell, fees.Visited{}, false, false)
	})
}

// priceMessage computes the fees of an outbound message, declares them on
// the message and checks that a receiver reconstructs the same split.
func (s *Sandbox) priceMessage(p fees.MsgPrices, m *core.Message) (fees.FwdFees, error) {
	f, _, err := fees.ComputeMessageFees(p, m)
	if err != nil {
		return fees.FwdFees{}, err
	}
	m.FwdFee = f.Remaining
	check, err := fees.MessageForwardFee(p, m)
	if err == nil && check != f {
		err = fmt.Errorf("%w: sent %+v, reconstructed %+v", fees.ErrFeeModelDesync, f, check)
	}
	if err != nil {
		s.reportDesync(m, err)
		return fees.FwdFees{}, err
	}
	return f, nil
}

func (s *Sandbox) reportDesync(m *core.Message, err error) {
	if !errors.Is(err, fees.ErrFeeModelDesync) {
		return
	}
	desyncCounter.Inc()
	s.logger.Error("forward fee model desync",
		zap.String("destination", m.Destination.ToRaw()),
		zap.Uint64("declared_fee", m.FwdFee),
		zap.Error(err))
	sentry.Send("forward fee model desync", sentry.SentryInfoData{
		"destination":  m.Destination.ToRaw(),
		"declared_fee": m.FwdFee,
		"error":        err.Error(),
	}, sentry.LevelError)
}

// actionPhase prices and funds the messages produced by a handler. It
// returns the messages as they are sent, the amount they take from the
// balance and the forward fees paid.
func (s *Sandbox) actionPhase(tx *TxContext, out []core.Message) ([]core.Message, uint64, uint64, error) {
	balance := tx.Balance
	var fwd uint64
	sent := make([]core.Message, 0, len(out))
	for _, m := range out {
		m.Source = &tx.Self
		m.Bounced = false
		m.CreatedLt = tx.Lt + uint64(len(sent)) + 1
		m.CreatedAt = tx.Now
		f, err := s.priceMessage(tx.Prices.Msg, &m)
		if err != nil {
			return nil, 0, 0, err
		}
		cost := m.Value
		if m.Mode.PayFeesSeparately() {
			cost += f.Total
		} else if m.Value < f.Total {
			if m.Mode.IgnoreErrors() {
				continue
			}
			return nil, 0, 0, core.ErrNotEnoughFunds
		} else {
			m.Value -= f.Total
		}
		if cost > balance {
			if m.Mode.IgnoreErrors() {
				continue
			}
			return nil, 0, 0, core.ErrNotEnoughFunds
		}
		balance -= cost
		fwd += f.Total
		sent = append(sent, m)
	}
	return sent, tx.Balance - balance, fwd, nil
}

// abort marks tx as aborted and, for bounceable messages, returns the
// inbound value minus the forward fee of the bounce.
func (s *Sandbox) abort(acc *Account, tx *Transaction, prices blockchain.Prices, cause error) error {
	msg := tx.InMsg
	tx.Aborted, tx.Err = true, cause
	code, _ := core.ExitCodeOf(cause)
	tx.ExitCode = code
	abortedCounter.WithLabelValues(strconv.FormatUint(uint64(code), 10)).Inc()
	acc.LastLt = tx.Lt
	s.logger.Debug("transaction aborted",
		zap.String("account", acc.Address.ToRaw()),
		zap.Uint64("lt", tx.Lt),
		zap.Error(cause))
	if !msg.Bounce || msg.Bounced || msg.Source == nil {
		return nil
	}
	body, err := bounceBody(msg.Body)
	if err != nil {
		return err
	}
	b := core.Message{
		Source:      &acc.Address,
		Destination: *msg.Source,
		Value:       msg.Value,
		Bounced:     true,
		Body:        body,
		CreatedLt:   tx.Lt + 1,
		CreatedAt:   tx.Now,
	}
	f, err := s.priceMessage(prices.Msg, &b)
	if err != nil {
		return err
	}
	if b.Value <= f.Total {
		return nil
	}
	b.Value -= f.Total
	acc.Balance -= msg.Value
	acc.LastLt = tx.Lt + 1
	tx.Bounce = &b
	tx.ForwardFees = f.Total
	return nil
}
