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

package proto

const (
	ReqIdKey = "req-id"

	// ParityFlag is the most significant bit of a record index. A parity
	// extent for stripe s is stored at StripeNum(s)*len | ParityFlag, in a
	// namespace disjoint from data (spec.md §3, §6). All index arithmetic
	// must strip this bit before comparing or computing offsets.
	ParityFlag = uint64(1) << 63

	indexMask = ParityFlag - 1
)

// IsParityIndex reports whether idx carries the parity flag.
func IsParityIndex(idx uint64) bool {
	return idx&ParityFlag != 0
}

// DataIndex strips the parity flag, returning the plain record index.
func DataIndex(idx uint64) uint64 {
	return idx & indexMask
}

// ParityIndex sets the parity flag on a plain record index.
func ParityIndex(idx uint64) uint64 {
	return idx | ParityFlag
}

// StripeNum returns floor(index / (k*len)) for a plain (non-flagged) record
// index, per spec.md §3.
func StripeNum(index uint64, class ObjectClass) uint64 {
	return index / class.StripeRecords()
}

// ParityRecxFor returns the parity extent's address for stripenum: index
// stripenum*len with the parity flag set, length len.
func ParityRecxFor(stripenum uint64, class ObjectClass) Recx {
	return Recx{
		Index: ParityIndex(stripenum * uint64(class.Len)),
		Count: uint64(class.Len),
	}
}

// StripeDataRange returns the data-index range [stripenum*k*len,
// (stripenum+1)*k*len) covered by stripenum.
func StripeDataRange(stripenum uint64, class ObjectClass) Recx {
	width := class.StripeRecords()
	return Recx{Index: stripenum * width, Count: width}
}

// CellRange returns the in-stripe record range of cell i within stripenum:
// [stripenum*k*len + i*len, stripenum*k*len + (i+1)*len).
func CellRange(stripenum uint64, cell uint32, class ObjectClass) Recx {
	base := stripenum*class.StripeRecords() + uint64(cell)*uint64(class.Len)
	return Recx{Index: base, Count: uint64(class.Len)}
}
