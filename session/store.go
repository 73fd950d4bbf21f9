// Package session implements server-side sessions on top of the key-value
// store. The cookie carries only a signed session id; values are kept in the
// store under their own key prefix and expire with the session.
package session

import (
	"bytes"
	"context"
	"encoding/base32"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"newsportal/config"
	"newsportal/kvstore"

	"github.com/gorilla/securecookie"
	"github.com/gorilla/sessions"
	"github.com/vmihailenco/msgpack/v5"
)

// ErrNonStringKey is returned when a session value is stored under a non-string key
var ErrNonStringKey = errors.New("session keys must be strings")

// Store is a sessions.Store persisted in kvstore
type Store struct {
	Codecs  []securecookie.Codec
	Options *sessions.Options

	kv        *kvstore.Store
	keyPrefix string
}

var _ sessions.Store = (*Store)(nil)

// NewStore returns a store writing records to kv. keyPairs are hash/block key
// pairs for signing and encrypting the session id cookie, newest first.
func NewStore(kv *kvstore.Store, cfg config.Session, keyPairs ...[]byte) *Store {
	codecs := securecookie.CodecsFromPairs(keyPairs...)
	for _, c := range codecs {
		if sc, ok := c.(*securecookie.SecureCookie); ok {
			sc.MaxAge(cfg.MaxAge)
		}
	}

	return &Store{
		Codecs: codecs,
		Options: &sessions.Options{
			Path:     "/",
			MaxAge:   cfg.MaxAge,
			Secure:   cfg.Secure,
			HttpOnly: cfg.HTTPOnly,
			SameSite: http.SameSiteLaxMode,
		},
		kv:        kv,
		keyPrefix: cfg.KeyPrefix,
	}
}

// Get returns the session cached for this request, loading it on first use
func (s *Store) Get(r *http.Request, name string) (*sessions.Session, error) {
	return sessions.GetRegistry(r).Get(s, name)
}

// New returns a session for name. An existing record is loaded when the
// request carries a valid id cookie; otherwise the session is new and empty.
func (s *Store) New(r *http.Request, name string) (*sessions.Session, error) {
	session := sessions.NewSession(s, name)
	opts := *s.Options
	session.Options = &opts
	session.IsNew = true

	c, err := r.Cookie(name)
	if err != nil {
		return session, nil
	}
	if err := securecookie.DecodeMulti(name, c.Value, &session.ID, s.Codecs...); err != nil {
		return session, err
	}

	found, err := s.load(r.Context(), session)
	if err != nil {
		return session, err
	}
	session.IsNew = !found
	return session, nil
}

// Save writes the session record and its cookie. A negative MaxAge deletes the
// record and expires the cookie.
func (s *Store) Save(r *http.Request, w http.ResponseWriter, session *sessions.Session) error {
	if session.Options.MaxAge < 0 {
		if session.ID != "" {
			if _, err := s.kv.Delete(r.Context(), s.recordKey(session.ID)); err != nil {
				return err
			}
		}
		http.SetCookie(w, sessions.NewCookie(session.Name(), "", session.Options))
		return nil
	}

	if session.ID == "" {
		session.ID = newID()
	}
	if err := s.save(r.Context(), session); err != nil {
		return err
	}

	encoded, err := securecookie.EncodeMulti(session.Name(), session.ID, s.Codecs...)
	if err != nil {
		return err
	}
	http.SetCookie(w, sessions.NewCookie(session.Name(), encoded, session.Options))
	return nil
}

// RecordKey returns the store key holding session id
func (s *Store) RecordKey(id string) string {
	return s.recordKey(id)
}

func (s *Store) recordKey(id string) string {
	return s.keyPrefix + id
}

func (s *Store) save(ctx context.Context, session *sessions.Session) error {
	values := make(map[string]interface{}, len(session.Values))
	for k, v := range session.Values {
		key, ok := k.(string)
		if !ok {
			return fmt.Errorf("%w: %v", ErrNonStringKey, k)
		}
		values[key] = v
	}

	data, err := msgpack.Marshal(values)
	if err != nil {
		return fmt.Errorf("failed to encode session: %w", err)
	}

	ttl := time.Duration(session.Options.MaxAge) * time.Second
	return s.kv.Set(ctx, s.recordKey(session.ID), data, ttl)
}

func (s *Store) load(ctx context.Context, session *sessions.Session) (bool, error) {
	data, found, err := s.kv.Get(ctx, s.recordKey(session.ID))
	if err != nil || !found {
		return false, err
	}

	dec := msgpack.NewDecoder(bytes.NewReader([]byte(data)))
	dec.UseLooseInterfaceDecoding(true)

	var values map[string]interface{}
	if err := dec.Decode(&values); err != nil {
		return false, fmt.Errorf("failed to decode session: %w", err)
	}
	for k, v := range values {
		session.Values[k] = v
	}
	return true, nil
}

func newID() string {
	return strings.TrimRight(base32.StdEncoding.EncodeToString(securecookie.GenerateRandomKey(32)), "=")
}
