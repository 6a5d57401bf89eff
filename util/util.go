// Copyright 2023 The Cuber Authors.
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

package util

import (
	"reflect"
	"unsafe"

	"github.com/cubefs/cubefs/blobstore/util/bytespool"
)

// StringsToBytes does a zero-copy conversion from string to []byte; no
// aggregation path calls it.
func StringsToBytes(s string) []byte {
	sh := (*reflect.StringHeader)(unsafe.Pointer(&s))
	bh := reflect.SliceHeader{
		Data: sh.Data,
		Len:  sh.Len,
		Cap:  sh.Len,
	}
	return *(*[]byte)(unsafe.Pointer(&bh)) //nolint: govet
}

func BytesToString(b []byte) string {
	return *(*string)(unsafe.Pointer(&b))
}

// GetBuffer and PutBuffer back the Cell Buffer Pool: cell-sized SGL buffers
// are requested and released every stripe and would otherwise dominate GC
// pressure on the hot path.
func GetBuffer(size int) []byte {
	return bytespool.Alloc(size)
}

func PutBuffer(b []byte) {
	bytespool.Free(b)
}
