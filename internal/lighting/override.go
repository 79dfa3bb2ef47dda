// Package lighting resolves the target state of lights from the time-of-day baseline,
// per-node overrides and configuration inherited from ancestor nodes.
//
// Everything in this package is pure: no I/O, no logging, no locking. Callers own
// persistence, publishing and the single-writer discipline for Config mutation.
package lighting

import "time"

// Temporary is a time-stamped override value.
type Temporary[T any] struct {
	Value T
	SetAt time.Time
}

// Override holds an optional permanent value and an optional temporary value.
// The temporary value takes precedence while it is present.
//
// Fields are replaced, never written through, so copies of an Override are
// independent of each other.
type Override[T any] struct {
	Permanent *T
	Temporary *Temporary[T]
}

// None returns an empty override that defers to the parent.
func None[T any]() Override[T] {
	return Override[T]{}
}

// Perm returns an override with a permanent value.
func Perm[T any](v T) Override[T] {
	return Override[T]{Permanent: &v}
}

// Temp returns an override with a temporary value stamped at now.
func Temp[T any](v T, now time.Time) Override[T] {
	return Override[T]{Temporary: &Temporary[T]{Value: v, SetAt: now}}
}

// Value returns the active value: temporary if present, else permanent.
func (o Override[T]) Value() (T, bool) {
	if o.Temporary != nil {
		return o.Temporary.Value, true
	}
	if o.Permanent != nil {
		return *o.Permanent, true
	}
	var zero T
	return zero, false
}

// ValueOr returns the active value or fallback when neither is set.
func (o Override[T]) ValueOr(fallback T) T {
	if v, ok := o.Value(); ok {
		return v
	}
	return fallback
}

// IsSet reports whether either value is present.
func (o Override[T]) IsSet() bool {
	return o.Temporary != nil || o.Permanent != nil
}

// SetTemp replaces the temporary value and stamps it with now.
func (o *Override[T]) SetTemp(v T, now time.Time) {
	o.Temporary = &Temporary[T]{Value: v, SetAt: now}
}

// ModifyTemp applies fn to the active temporary value (or fallback when there is
// none) and stores the result as a new temporary value.
func (o *Override[T]) ModifyTemp(fallback T, now time.Time, fn func(T) T) {
	current := fallback
	if o.Temporary != nil {
		current = o.Temporary.Value
	}
	o.SetTemp(fn(current), now)
}

// SetPermanent replaces the permanent value.
func (o *Override[T]) SetPermanent(v T) {
	o.Permanent = &v
}

// ClearTemp drops the temporary value.
func (o *Override[T]) ClearTemp() {
	o.Temporary = nil
}

// Clear drops both values so the override inherits from its parent again.
func (o *Override[T]) Clear() {
	o.Permanent = nil
	o.Temporary = nil
}

// WithParent merges o with its parent field by field: permanent and temporary
// are each taken from o when present, otherwise from the parent.
func (o Override[T]) WithParent(parent Override[T]) Override[T] {
	merged := o
	if merged.Permanent == nil {
		merged.Permanent = parent.Permanent
	}
	if merged.Temporary == nil {
		merged.Temporary = parent.Temporary
	}
	return merged
}

// Expired reports whether the temporary value is older than ttl at now.
func (o Override[T]) Expired(now time.Time, ttl time.Duration) bool {
	if o.Temporary == nil {
		return false
	}
	return now.Sub(o.Temporary.SetAt) >= ttl
}

// Evict returns a copy without the temporary value if it has expired.
// The boolean reports whether anything was dropped.
func (o Override[T]) Evict(now time.Time, ttl time.Duration) (Override[T], bool) {
	if !o.Expired(now, ttl) {
		return o, false
	}
	o.Temporary = nil
	return o, true
}
