// Package statestore persists ledger snapshots in an embedded leveldb
// database. Every save also writes a keccak256 merkle root over the
// serialized records; the root is recomputed and verified on load so a
// corrupted or hand-edited store is refused instead of silently restored.
package statestore

import (
	"encoding/hex"
	"encoding/json"
	"sort"
	"sync"

	"github.com/pkg/errors"
	"github.com/syndtr/goleveldb/leveldb"
	"github.com/syndtr/goleveldb/leveldb/util"
	"github.com/wealdtech/go-merkletree/v2"
	"github.com/wealdtech/go-merkletree/v2/keccak256"
	orderedmap "github.com/wk8/go-ordered-map/v2"
	"go.uber.org/zap"

	"github.com/ledgerlabs/stakevault/pkg/stakeledger"
	"github.com/ledgerlabs/stakevault/pkg/tokenbank"
	"github.com/ledgerlabs/stakevault/pkg/vestingledger"
)

const (
	bankKey          = "bank/state"
	stakeGlobalKey   = "stake/global"
	stakePrefix      = "stake/record/"
	vestingGlobalKey = "vesting/global"
	vestingPrefix    = "vesting/schedule/"
	stateRootKey     = "meta/state_root"
)

// Snapshot is everything needed to rebuild the ledgers and the bank.
type Snapshot struct {
	Bank    *tokenbank.State
	Stake   *stakeledger.State
	Vesting *vestingledger.State
}

type StateStore struct {
	// Serializes snapshot reads and writes; the debounced persister and the
	// shutdown path may both save.
	mu     sync.Mutex
	db     *leveldb.DB
	logger *zap.Logger
}

func NewStateStore(path string, l *zap.Logger) (*StateStore, error) {
	db, err := leveldb.OpenFile(path, nil)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to open state store at %s", path)
	}
	return &StateStore{db: db, logger: l}, nil
}

func (s *StateStore) Close() error {
	return s.db.Close()
}

// Save atomically replaces the stored snapshot and its state root.
func (s *StateStore) Save(snap *Snapshot) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	batch := new(leveldb.Batch)

	// Drop stale per-record keys so deleted records do not resurrect.
	for _, prefix := range []string{stakePrefix, vestingPrefix} {
		iter := s.db.NewIterator(util.BytesPrefix([]byte(prefix)), nil)
		for iter.Next() {
			batch.Delete(append([]byte{}, iter.Key()...))
		}
		iter.Release()
		if err := iter.Error(); err != nil {
			return errors.Wrap(err, "failed to scan state store")
		}
	}

	entries := orderedmap.New[string, []byte]()
	put := func(key string, v any) error {
		raw, err := json.Marshal(v)
		if err != nil {
			return errors.Wrapf(err, "failed to serialize %s", key)
		}
		batch.Put([]byte(key), raw)
		entries.Set(key, raw)
		return nil
	}

	if err := put(bankKey, snap.Bank); err != nil {
		return err
	}
	if err := put(stakeGlobalKey, snap.Stake.Global); err != nil {
		return err
	}
	for _, rec := range snap.Stake.Records {
		if err := put(stakePrefix+rec.Participant, rec); err != nil {
			return err
		}
	}
	if err := put(vestingGlobalKey, snap.Vesting.Global); err != nil {
		return err
	}
	for _, sched := range snap.Vesting.Schedules {
		if err := put(vestingPrefix+sched.Id, sched); err != nil {
			return err
		}
	}

	root, err := stateRoot(entries)
	if err != nil {
		return err
	}
	batch.Put([]byte(stateRootKey), []byte(root))

	if err := s.db.Write(batch, nil); err != nil {
		return errors.Wrap(err, "failed to write state store batch")
	}
	s.logger.Sugar().Debugw("Saved ledger state",
		zap.Int("stakeRecords", len(snap.Stake.Records)),
		zap.Int("vestingSchedules", len(snap.Vesting.Schedules)),
		zap.String("stateRoot", root),
	)
	return nil
}

// Load reads the stored snapshot. The second return value is false when the
// store is empty (fresh start). A state-root mismatch is an error.
func (s *StateStore) Load() (*Snapshot, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rawBank, err := s.db.Get([]byte(bankKey), nil)
	if err == leveldb.ErrNotFound {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, errors.Wrap(err, "failed to read state store")
	}

	entries := orderedmap.New[string, []byte]()
	entries.Set(bankKey, rawBank)

	snap := &Snapshot{
		Bank:    &tokenbank.State{},
		Stake:   &stakeledger.State{},
		Vesting: &vestingledger.State{},
	}
	if err := json.Unmarshal(rawBank, snap.Bank); err != nil {
		return nil, false, errors.Wrap(err, "failed to parse bank state")
	}

	rawStakeGlobal, err := s.db.Get([]byte(stakeGlobalKey), nil)
	if err != nil {
		return nil, false, errors.Wrap(err, "failed to read stake global state")
	}
	entries.Set(stakeGlobalKey, rawStakeGlobal)
	if err := json.Unmarshal(rawStakeGlobal, &snap.Stake.Global); err != nil {
		return nil, false, errors.Wrap(err, "failed to parse stake global state")
	}

	iter := s.db.NewIterator(util.BytesPrefix([]byte(stakePrefix)), nil)
	for iter.Next() {
		var rec stakeledger.RecordState
		if err := json.Unmarshal(iter.Value(), &rec); err != nil {
			iter.Release()
			return nil, false, errors.Wrap(err, "failed to parse stake record")
		}
		entries.Set(string(iter.Key()), append([]byte{}, iter.Value()...))
		snap.Stake.Records = append(snap.Stake.Records, rec)
	}
	iter.Release()
	if err := iter.Error(); err != nil {
		return nil, false, errors.Wrap(err, "failed to scan stake records")
	}

	rawVestingGlobal, err := s.db.Get([]byte(vestingGlobalKey), nil)
	if err != nil {
		return nil, false, errors.Wrap(err, "failed to read vesting global state")
	}
	entries.Set(vestingGlobalKey, rawVestingGlobal)
	if err := json.Unmarshal(rawVestingGlobal, &snap.Vesting.Global); err != nil {
		return nil, false, errors.Wrap(err, "failed to parse vesting global state")
	}

	iter = s.db.NewIterator(util.BytesPrefix([]byte(vestingPrefix)), nil)
	for iter.Next() {
		var sched vestingledger.ScheduleState
		if err := json.Unmarshal(iter.Value(), &sched); err != nil {
			iter.Release()
			return nil, false, errors.Wrap(err, "failed to parse vesting schedule")
		}
		entries.Set(string(iter.Key()), append([]byte{}, iter.Value()...))
		snap.Vesting.Schedules = append(snap.Vesting.Schedules, sched)
	}
	iter.Release()
	if err := iter.Error(); err != nil {
		return nil, false, errors.Wrap(err, "failed to scan vesting schedules")
	}

	storedRoot, err := s.db.Get([]byte(stateRootKey), nil)
	if err != nil {
		return nil, false, errors.Wrap(err, "failed to read state root")
	}
	computed, err := stateRoot(entries)
	if err != nil {
		return nil, false, err
	}
	if computed != string(storedRoot) {
		return nil, false, errors.Errorf("state root mismatch: stored %s, computed %s", storedRoot, computed)
	}

	return snap, true, nil
}

// stateRoot merkleizes the serialized entries. Leaves are sorted by key so
// the root does not depend on whether entries were collected from an
// in-memory snapshot or an iterator over the database.
func stateRoot(entries *orderedmap.OrderedMap[string, []byte]) (string, error) {
	keys := make([]string, 0, entries.Len())
	for pair := entries.Oldest(); pair != nil; pair = pair.Next() {
		keys = append(keys, pair.Key)
	}
	sort.Strings(keys)

	leaves := make([][]byte, 0, len(keys))
	for _, key := range keys {
		value, _ := entries.Get(key)
		leaves = append(leaves, append([]byte(key), value...))
	}
	if len(leaves) == 0 {
		return "", nil
	}
	tree, err := merkletree.NewTree(
		merkletree.WithData(leaves),
		merkletree.WithHashType(keccak256.New()),
	)
	if err != nil {
		return "", errors.Wrap(err, "failed to build state tree")
	}
	return hex.EncodeToString(tree.Root()), nil
}
