package models

import (
	dErrors "trash4cash/pkg/domain-errors"
)

// Kind names a resource collection; its value is the upstream path segment.
type Kind string

const (
	KindDropoff     Kind = "dropoffs"
	KindTransaction Kind = "transactions"
	KindWasteType   Kind = "waste-types"
	KindWasteBank   Kind = "waste-banks"
	KindUser        Kind = "users"
)

func (k Kind) String() string { return string(k) }

// ParseKind accepts the path segment of one of the managed collections.
func ParseKind(s string) (Kind, error) {
	switch Kind(s) {
	case KindDropoff, KindTransaction, KindWasteType, KindWasteBank:
		return Kind(s), nil
	}
	return "", dErrors.New(dErrors.CodeNotFound, "unknown resource "+s)
}

// Label is the singular human name of the kind.
func (k Kind) Label() string {
	switch k {
	case KindDropoff:
		return "dropoff"
	case KindTransaction:
		return "transaction"
	case KindWasteType:
		return "waste type"
	case KindWasteBank:
		return "waste bank"
	case KindUser:
		return "user"
	default:
		return "record"
	}
}
