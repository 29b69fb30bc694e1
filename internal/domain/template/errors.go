package template

import (
	"errors"
	"fmt"
)

// StoreErrorKind classifies a backend failure.
type StoreErrorKind string

const (
	KindFailure       StoreErrorKind = "failure"
	KindDuplicate     StoreErrorKind = "duplicate"
	KindCorrupt       StoreErrorKind = "corrupt"
	KindArity         StoreErrorKind = "arity"
	KindReadOnly      StoreErrorKind = "read_only"
	KindOrgResolution StoreErrorKind = "org_resolution"
	KindInvalidKey    StoreErrorKind = "invalid_key"
)

// StoreError is returned by backends. It records what was being done and to
// which key so that failures carry their context across the backend boundary.
type StoreError struct {
	Op   string
	Key  string
	Kind StoreErrorKind
	Err  error
}

func (e *StoreError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s %s (%s): %v", e.Op, e.Key, e.Kind, e.Err)
	}
	return fmt.Sprintf("%s %s (%s)", e.Op, e.Key, e.Kind)
}

func (e *StoreError) Unwrap() error { return e.Err }

// NewStoreError creates a StoreError for the given operation and key.
func NewStoreError(op string, key fmt.Stringer, kind StoreErrorKind, err error) *StoreError {
	return &StoreError{Op: op, Key: key.String(), Kind: kind, Err: err}
}

// IsKind reports whether err is a StoreError of the given kind.
func IsKind(err error, kind StoreErrorKind) bool {
	var se *StoreError
	return errors.As(err, &se) && se.Kind == kind
}

// ChannelKey adapts a (channel, tenant) pair to a StoreError key.
type ChannelKey struct {
	Channel Channel
	AppID   string
	Tenant  string
}

func (k ChannelKey) String() string {
	s := fmt.Sprintf("%s/%s", k.Tenant, k.Channel)
	if k.AppID != "" {
		s += "@" + k.AppID
	}
	return s
}

// TenantKey adapts a bare tenant domain to a StoreError key.
type TenantKey string

func (k TenantKey) String() string { return string(k) }
