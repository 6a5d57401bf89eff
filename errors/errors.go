// Copyright 2023 The CubeFS Authors.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or
// implied. See the License for the specific language governing
// permissions and limitations under the License.

// Package errors classifies the failure kinds the aggregation engine can
// produce, per spec.md §7: InvalidInput, NotLeader, Transient, Fatal and
// ConsistencyViolated. Stripe and object drivers branch on Kind, not on
// error identity, the way shardserver/catalog compares apierrors values.
package errors

import "fmt"

type Kind int

const (
	KindUnknown Kind = iota
	// KindInvalidInput marks a caller error: bad epoch range, unsupported
	// object class.
	KindInvalidInput
	// KindNotLeader means the local target is not the leader parity
	// holder for this object; the object is skipped silently.
	KindNotLeader
	// KindTransient marks an RPC or fetch failure; the stripe is
	// abandoned and iteration continues.
	KindTransient
	// KindFatal marks allocation or codec-initialization failure; the
	// current object is aborted.
	KindFatal
	// KindConsistencyViolated means a parity-flagged extent surfaced
	// where data was expected. The driver abandons the akey's extent
	// stream it surfaced in and goes on with the object's next akey; the
	// rest of the object is not aborted and no diagnostic is logged.
	KindConsistencyViolated
)

func (k Kind) String() string {
	switch k {
	case KindInvalidInput:
		return "invalid_input"
	case KindNotLeader:
		return "not_leader"
	case KindTransient:
		return "transient"
	case KindFatal:
		return "fatal"
	case KindConsistencyViolated:
		return "consistency_violated"
	default:
		return "unknown"
	}
}

// Error wraps an underlying cause with the Kind that decides how the
// iteration driver folds it into "continue with next stripe" or "continue
// with next object".
type Error struct {
	kind Kind
	msg  string
	err  error
}

func New(kind Kind, msg string) *Error {
	return &Error{kind: kind, msg: msg}
}

func Wrap(kind Kind, msg string, err error) *Error {
	return &Error{kind: kind, msg: msg, err: err}
}

func (e *Error) Error() string {
	if e.err != nil {
		return fmt.Sprintf("%s: %s: %s", e.kind, e.msg, e.err)
	}
	return fmt.Sprintf("%s: %s", e.kind, e.msg)
}

func (e *Error) Unwrap() error {
	return e.err
}

func (e *Error) Kind() Kind {
	return e.kind
}

// KindOf extracts the Kind of err, defaulting to KindTransient for any
// error that did not originate from this package — an unclassified
// collaborator failure (VOS, RPC, object-remote) is treated as transient
// so a single bad stripe never escalates to aborting the whole object.
func KindOf(err error) Kind {
	if err == nil {
		return KindUnknown
	}
	if e, ok := err.(*Error); ok {
		return e.kind
	}
	return KindTransient
}

var (
	ErrNotLeader            = New(KindNotLeader, "local target is not the leader parity holder")
	ErrUnsupportedParity    = New(KindInvalidInput, "parity count p>2 is unsupported in the peer-parity fetch")
	ErrOutOfMemory          = New(KindFatal, "allocation failure")
	ErrCodecInit            = New(KindFatal, "codec table initialization failed")
	ErrParityWhereData      = New(KindConsistencyViolated, "parity-flagged extent surfaced in data index space")
	ErrInoMismatchShardHole = New(KindInvalidInput, "hole extent outside the current stripe range")
)
