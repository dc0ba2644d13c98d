package domain

import (
	"bytes"
	"encoding/json"
)

// Optional is a patch field that distinguishes an absent key from an
// explicit JSON null and from a concrete value.
type Optional[T any] struct {
	Set   bool
	Null  bool
	Value T
}

// Some returns a present, non-null Optional.
func Some[T any](v T) Optional[T] {
	return Optional[T]{Set: true, Value: v}
}

// Null returns a present Optional holding JSON null.
func Null[T any]() Optional[T] {
	return Optional[T]{Set: true, Null: true}
}

func (o *Optional[T]) UnmarshalJSON(data []byte) error {
	o.Set = true
	if bytes.Equal(bytes.TrimSpace(data), []byte("null")) {
		o.Null = true
		var zero T
		o.Value = zero
		return nil
	}
	o.Null = false
	return json.Unmarshal(data, &o.Value)
}

// Or returns the value when present and non-null, otherwise fallback.
func (o Optional[T]) Or(fallback T) T {
	if o.Set && !o.Null {
		return o.Value
	}
	return fallback
}

type ApplicationFields struct {
	Company       string
	Role          string
	Link          string
	Status        string
	DueDate       string
	SubmittedDate string
	Notes         string
}

type ApplicationPatch struct {
	Company       Optional[string]
	Role          Optional[string]
	Link          Optional[string]
	Status        Optional[string]
	DueDate       Optional[string]
	SubmittedDate Optional[string]
	Notes         Optional[string]
}

type DeliverableFields struct {
	Title   string
	Type    string
	DueDate string
	State   string
	Content string
	IsDone  bool
}

type DeliverablePatch struct {
	Title   Optional[string]
	Type    Optional[string]
	DueDate Optional[string]
	State   Optional[string]
	Content Optional[string]
	IsDone  Optional[bool]
}

type WritingItemFields struct {
	Title   string
	Tags    string
	Content string
}

type WritingItemPatch struct {
	Title   Optional[string]
	Tags    Optional[string]
	Content Optional[string]
}
