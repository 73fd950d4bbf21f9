package resources

import (
	"errors"
	"fmt"

	"newsportal/config"
	"newsportal/kvstore"
	"newsportal/storage"

	"github.com/gorilla/sessions"
	"go.uber.org/zap"
)

// ErrLateBinding is matched by every LateBindingError.
var ErrLateBinding = errors.New("resource read before it was bound")

// LateBindingError names the slot that was still empty when modules were about
// to be registered.
type LateBindingError struct {
	Slot string
}

func (e *LateBindingError) Error() string {
	return fmt.Sprintf("resource slot %q is not bound; modules must register after every slot is populated", e.Slot)
}

// Is lets errors.Is(err, ErrLateBinding) match.
func (e *LateBindingError) Is(target error) bool {
	return target == ErrLateBinding
}

// Resources is the capability set handed to routing modules at registration.
type Resources interface {
	Database() *storage.SQLite
	KV() *kvstore.Store
	Logger() *zap.SugaredLogger
	Sessions() sessions.Store
	Config() *config.Config
}

// Set owns the process-wide slots and implements Resources.
type Set struct {
	DBSlot      *Slot[*storage.SQLite]
	KVSlot      *Slot[*kvstore.Store]
	SessionSlot *Slot[sessions.Store]

	cfg    *config.Config
	logger *zap.SugaredLogger
}

// NewSet returns a Set with empty slots.
func NewSet(cfg *config.Config, logger *zap.SugaredLogger) *Set {
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	return &Set{
		DBSlot:      NewSlot[*storage.SQLite]("database"),
		KVSlot:      NewSlot[*kvstore.Store]("kv"),
		SessionSlot: NewSlot[sessions.Store]("sessions"),
		cfg:         cfg,
		logger:      logger,
	}
}

// Verify returns a LateBindingError for the first slot that is still empty.
func (s *Set) Verify() error {
	if !s.DBSlot.Bound() {
		return &LateBindingError{Slot: s.DBSlot.Name()}
	}
	if !s.KVSlot.Bound() {
		return &LateBindingError{Slot: s.KVSlot.Name()}
	}
	if !s.SessionSlot.Bound() {
		return &LateBindingError{Slot: s.SessionSlot.Name()}
	}
	return nil
}

// Database returns the bound database handle, or nil before binding.
func (s *Set) Database() *storage.SQLite { return s.DBSlot.Load() }

// KV returns the bound key-value store handle, or nil before binding.
func (s *Set) KV() *kvstore.Store { return s.KVSlot.Load() }

// Sessions returns the bound session store, or nil before binding.
func (s *Set) Sessions() sessions.Store { return s.SessionSlot.Load() }

func (s *Set) Logger() *zap.SugaredLogger { return s.logger }

func (s *Set) Config() *config.Config { return s.cfg }

var _ Resources = (*Set)(nil)
