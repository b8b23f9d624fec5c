// Copyright 2025 gorse Project Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
// http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package dataset

// FreqDict maps sparse integer ids to contiguous indices and counts how many
// times each id was added.
type FreqDict struct {
	si  map[int32]int32
	is  []int32
	cnt []int
}

func NewFreqDict() (d *FreqDict) {
	d = &FreqDict{map[int32]int32{}, []int32{}, []int{}}
	return
}

func (d *FreqDict) Count() int32 {
	return int32(len(d.is))
}

// Add returns the index of id, registering it if absent, and increases its frequency.
func (d *FreqDict) Add(id int32) (y int32) {
	if y, ok := d.si[id]; ok {
		d.cnt[y]++
		return y
	}

	y = int32(len(d.is))
	d.si[id] = y
	d.is = append(d.is, id)
	d.cnt = append(d.cnt, 1)
	return
}

// Id returns the index of id or -1 if it was never added.
func (d *FreqDict) Id(id int32) int32 {
	if y, ok := d.si[id]; ok {
		return y
	}
	return -1
}

// Sparse returns the id stored at index.
func (d *FreqDict) Sparse(index int32) (id int32, ok bool) {
	if index < 0 || int(index) >= len(d.is) {
		return 0, false
	}
	return d.is[index], true
}

// Ids returns ids in index order.
func (d *FreqDict) Ids() []int32 {
	return d.is
}

func (d *FreqDict) Freq(index int32) int {
	if index < 0 || int(index) >= len(d.cnt) {
		return 0
	}
	return d.cnt[index]
}
