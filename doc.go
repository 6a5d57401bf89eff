/*
 *
 * Copyright 2023 CubeFS authors.
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 *
 */

/*

# objagg: erasure-coded object aggregation

## Why aggregation

An EC-coded object keeps k+p full-size replicas of every stripe until a
background pass folds the k data cells down to their p parity cells and
frees the replica space. Without that pass, EC-coded data costs as much on
disk as plain replication; objagg is the pass that actually recovers the
space EC promised.

## Architecture

Each engine target runs one aggregation driver over the objects it leads.
For every admitted object it walks dkey/akey pairs, folds each one's data
extents into stripes, and for every completed stripe:

* probes the stripe's parity cells, local or remote
* picks one of four transforms: Encode, Partial-Update, Recalc, Hole-Repair
* computes the new parity content
* commits it to every parity holder — peer holders before the local one

## Building Blocks

* klauspost/reedsolomon, for the Galois-field math
* grpc, for peer parity coordination
* Prometheus, for run counters
* cubefs/blobstore util/log, util/errors, common/config, for the ambient
  logging, error wrapping, and configuration conventions

*/

package objagg
