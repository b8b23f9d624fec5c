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

import (
	"time"

	"github.com/araddon/dateparse"
	"github.com/juju/errors"
)

const (
	MinRating = 0
	MaxRating = 5
)

// Rating is a single observed rating of an item by a user.
type Rating struct {
	UserId int32
	Value  int16
	Date   string
}

// Time parses the observation date. Dates are checked by the loader but never
// used for training.
func (r Rating) Time() (time.Time, error) {
	t, err := dateparse.ParseAny(r.Date)
	if err != nil {
		return time.Time{}, errors.Trace(err)
	}
	return t, nil
}

// Ratings groups observations by item. Items are kept in the order they were
// first added so that every traversal visits observations in the same order.
type Ratings struct {
	items   *FreqDict
	ratings [][]Rating
}

func NewRatings() *Ratings {
	return &Ratings{items: NewFreqDict()}
}

// Add appends an observation for an item.
func (r *Ratings) Add(itemId int32, rating Rating) {
	index := r.items.Add(itemId)
	if int(index) == len(r.ratings) {
		r.ratings = append(r.ratings, nil)
	}
	r.ratings[index] = append(r.ratings[index], rating)
}

// Get returns observations of an item.
func (r *Ratings) Get(itemId int32) []Rating {
	index := r.items.Id(itemId)
	if index < 0 {
		return nil
	}
	return r.ratings[index]
}

// ItemIds returns item ids in insertion order.
func (r *Ratings) ItemIds() []int32 {
	return r.items.Ids()
}

// CountItems returns the number of items with at least one observation.
func (r *Ratings) CountItems() int {
	return len(r.ratings)
}

// Count returns the number of observations.
func (r *Ratings) Count() int {
	count := 0
	for _, ratings := range r.ratings {
		count += len(ratings)
	}
	return count
}

// ForEach visits every observation in insertion order.
func (r *Ratings) ForEach(f func(itemId int32, rating Rating)) {
	for index, ratings := range r.ratings {
		itemId := r.items.Ids()[index]
		for _, rating := range ratings {
			f(itemId, rating)
		}
	}
}
