// Package txn is the per-transaction context handed out by the host: caller
// identity, id allocation, pending transfers and buffered events. It also
// tracks every linear value that is in transit so that a transaction cannot
// end while a weapon, balance or invoice has been dropped on the floor.
package txn

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
)

var (
	ErrUnconsumed        = errors.New("linear value left unconsumed")
	ErrNotHeld           = errors.New("value is not in transit in this transaction")
	ErrDuplicateResource = errors.New("value is already in transit")
	ErrFinished          = errors.New("transaction already finished")
)

// Principal identifies the party that initiated a transaction.
type Principal string

// Resource is a value with exactly-once ownership. ResourceKey must be stable
// for the lifetime of the value and unique among live values.
type Resource interface {
	ResourceKey() any
}

type Transfer struct {
	Resource Resource
	To       Principal
}

type Event struct {
	Type     string    `json:"type"`
	TxID     uuid.UUID `json:"txId"`
	AvatarID uuid.UUID `json:"avatarId"`
	WeaponID uuid.UUID `json:"weaponId"`
	Kind     string    `json:"kind"`
	At       time.Time `json:"at"`
}

type Tx struct {
	id        uuid.UUID
	sender    Principal
	held      map[any]Resource
	transfers []Transfer
	shared    []uuid.UUID
	events    []Event
	finished  bool
	now       func() time.Time
}

func New(sender Principal) *Tx {
	return &Tx{
		id:     uuid.New(),
		sender: sender,
		held:   make(map[any]Resource),
		now:    time.Now,
	}
}

func (t *Tx) ID() uuid.UUID { return t.id }

func (t *Tx) Sender() Principal { return t.sender }

func (t *Tx) FreshID() uuid.UUID { return uuid.New() }

// Hold marks r as in transit. Anything held must be released before Finish.
func (t *Tx) Hold(r Resource) error {
	if t.finished {
		return ErrFinished
	}
	key := r.ResourceKey()
	if _, ok := t.held[key]; ok {
		return fmt.Errorf("%w: %T %v", ErrDuplicateResource, r, key)
	}
	t.held[key] = r
	return nil
}

// Release marks r as stored, consumed or handed off.
func (t *Tx) Release(r Resource) error {
	key := r.ResourceKey()
	if _, ok := t.held[key]; !ok {
		return fmt.Errorf("%w: %T %v", ErrNotHeld, r, key)
	}
	delete(t.held, key)
	return nil
}

func (t *Tx) Holds(r Resource) bool {
	_, ok := t.held[r.ResourceKey()]
	return ok
}

func (t *Tx) TransferTo(r Resource, to Principal) error {
	if err := t.Release(r); err != nil {
		return fmt.Errorf("transfer to %s: %w", to, err)
	}
	t.transfers = append(t.transfers, Transfer{Resource: r, To: to})
	return nil
}

func (t *Tx) Transfers() []Transfer { return t.transfers }

func (t *Tx) PublishShared(id uuid.UUID) {
	t.shared = append(t.shared, id)
}

func (t *Tx) Shared() []uuid.UUID { return t.shared }

// Emit buffers an event; the host delivers it only after commit.
func (t *Tx) Emit(ev Event) {
	ev.TxID = t.id
	if ev.At.IsZero() {
		ev.At = t.now().UTC()
	}
	t.events = append(t.events, ev)
}

func (t *Tx) Events() []Event { return t.events }

// Finish closes the transaction and fails if anything is still in transit.
func (t *Tx) Finish() error {
	if t.finished {
		return ErrFinished
	}
	t.finished = true
	if len(t.held) == 0 {
		return nil
	}
	names := make([]string, 0, len(t.held))
	for key, r := range t.held {
		names = append(names, fmt.Sprintf("%T(%v)", r, key))
	}
	sort.Strings(names)
	return fmt.Errorf("%w: %s", ErrUnconsumed, strings.Join(names, ", "))
}
