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
	mapset "github.com/deckarep/golang-set/v2"
	"github.com/juju/errors"
)

// ShrinkageRatio is the pseudo count of the global mean when shrinking the mean
// of a sparsely rated item or user towards it.
const ShrinkageRatio = 25

// Dataset is the frozen training corpus together with statistics derived from it.
// Users and items are mapped to dense indices: items in the order they appear in
// the corpus, users in the order they are first seen. Nothing mutates a Dataset
// after NewDataset returns, so it can be shared by models without locking.
type Dataset struct {
	ratings      *Ratings
	itemDict     *FreqDict
	userDict     *FreqDict
	itemFeedback [][]int32
	itemValues   [][]float64
	userFeedback [][]int32
	userValues   [][]float64
	userItems    []mapset.Set[int32]
	itemMeans    []float64
	userOffsets  []float64
	globalMean   float64
	globalOffset float64
}

// NewDataset builds the dataset and its statistics in a single pass over ratings.
//
// The global mean is the mean of item means and the global offset is the mean of
// user offsets, neither is weighted by the number of observations.
func NewDataset(ratings *Ratings) *Dataset {
	d := &Dataset{
		ratings:      ratings,
		itemDict:     ratings.items,
		userDict:     NewFreqDict(),
		itemFeedback: make([][]int32, ratings.CountItems()),
		itemValues:   make([][]float64, ratings.CountItems()),
		itemMeans:    make([]float64, ratings.CountItems()),
	}
	for itemIndex, itemRatings := range ratings.ratings {
		itemId := ratings.items.Ids()[itemIndex]
		sum := 0
		for _, rating := range itemRatings {
			userIndex := d.userDict.Add(rating.UserId)
			if int(userIndex) == len(d.userFeedback) {
				d.userFeedback = append(d.userFeedback, nil)
				d.userValues = append(d.userValues, nil)
				d.userItems = append(d.userItems, mapset.NewThreadUnsafeSet[int32]())
			}
			d.userFeedback[userIndex] = append(d.userFeedback[userIndex], int32(itemIndex))
			d.userValues[userIndex] = append(d.userValues[userIndex], float64(rating.Value))
			d.userItems[userIndex].Add(itemId)
			d.itemFeedback[itemIndex] = append(d.itemFeedback[itemIndex], userIndex)
			d.itemValues[itemIndex] = append(d.itemValues[itemIndex], float64(rating.Value))
			sum += int(rating.Value)
		}
		d.itemMeans[itemIndex] = float64(sum) / float64(len(itemRatings))
		d.globalMean += d.itemMeans[itemIndex]
	}
	if len(d.itemMeans) > 0 {
		d.globalMean /= float64(len(d.itemMeans))
	}

	// offset between a user's rating and the mean rating of the item
	d.userOffsets = make([]float64, len(d.userFeedback))
	for userIndex, items := range d.userFeedback {
		total := 0.0
		for i, itemIndex := range items {
			total += d.userValues[userIndex][i] - d.itemMeans[itemIndex]
		}
		d.userOffsets[userIndex] = total / float64(len(items))
		d.globalOffset += d.userOffsets[userIndex]
	}
	if len(d.userOffsets) > 0 {
		d.globalOffset /= float64(len(d.userOffsets))
	}
	return d
}

func (d *Dataset) GetRatings() *Ratings {
	return d.ratings
}

func (d *Dataset) GetItemDict() *FreqDict {
	return d.itemDict
}

func (d *Dataset) GetUserDict() *FreqDict {
	return d.userDict
}

// GetItemFeedback returns user indices who rated each item, indexed by item index.
func (d *Dataset) GetItemFeedback() [][]int32 {
	return d.itemFeedback
}

// GetItemValues returns ratings aligned with GetItemFeedback.
func (d *Dataset) GetItemValues() [][]float64 {
	return d.itemValues
}

// GetUserFeedback returns item indices rated by each user, indexed by user index.
func (d *Dataset) GetUserFeedback() [][]int32 {
	return d.userFeedback
}

// GetUserValues returns ratings aligned with GetUserFeedback.
func (d *Dataset) GetUserValues() [][]float64 {
	return d.userValues
}

// GetUserItems returns ids of items rated by a user. The set must not be modified.
func (d *Dataset) GetUserItems(userId int32) mapset.Set[int32] {
	userIndex := d.userDict.Id(userId)
	if userIndex < 0 {
		return mapset.NewThreadUnsafeSet[int32]()
	}
	return d.userItems[userIndex]
}

func (d *Dataset) CountUsers() int {
	return int(d.userDict.Count())
}

func (d *Dataset) CountItems() int {
	return int(d.itemDict.Count())
}

func (d *Dataset) CountRatings() int {
	return d.ratings.Count()
}

func (d *Dataset) ExistsUser(userId int32) bool {
	return d.userDict.Id(userId) >= 0
}

func (d *Dataset) ExistsItem(itemId int32) bool {
	return d.itemDict.Id(itemId) >= 0
}

// GetRating returns the rating a user gave to an item. A NotFound error is
// returned if there is no such observation.
func (d *Dataset) GetRating(userId, itemId int32) (int16, error) {
	if !d.GetUserItems(userId).Contains(itemId) {
		return 0, errors.NotFoundf("rating of item %v by user %v", itemId, userId)
	}
	for _, rating := range d.ratings.Get(itemId) {
		if rating.UserId == userId {
			return rating.Value, nil
		}
	}
	return 0, errors.NotFoundf("rating of item %v by user %v", itemId, userId)
}

func (d *Dataset) GlobalMean() float64 {
	return d.globalMean
}

func (d *Dataset) GlobalOffset() float64 {
	return d.globalOffset
}

// MeanRating returns the mean rating of an item, or the global mean if the item is unknown.
func (d *Dataset) MeanRating(itemId int32) float64 {
	itemIndex := d.itemDict.Id(itemId)
	if itemIndex < 0 {
		return d.globalMean
	}
	return d.itemMeans[itemIndex]
}

// UserOffset returns the mean offset of a user, or the global offset if the user is unknown.
func (d *Dataset) UserOffset(userId int32) float64 {
	userIndex := d.userDict.Id(userId)
	if userIndex < 0 {
		return d.globalOffset
	}
	return d.userOffsets[userIndex]
}

// ShrunkMeanRating returns the mean rating of an item shrunk towards the global mean.
func (d *Dataset) ShrunkMeanRating(itemId int32) float64 {
	itemIndex := d.itemDict.Id(itemId)
	if itemIndex < 0 {
		return d.globalMean
	}
	return shrink(d.itemMeans[itemIndex], d.globalMean, d.itemDict.Freq(itemIndex))
}

// ShrunkUserOffset returns the offset of a user shrunk towards the global offset.
func (d *Dataset) ShrunkUserOffset(userId int32) float64 {
	userIndex := d.userDict.Id(userId)
	if userIndex < 0 {
		return d.globalOffset
	}
	return shrink(d.userOffsets[userIndex], d.globalOffset, d.userDict.Freq(userIndex))
}

// Baseline is the shrunk item mean plus the shrunk user offset, used wherever a
// model has nothing better to say about a pair.
func (d *Dataset) Baseline(itemId, userId int32) float64 {
	return d.ShrunkMeanRating(itemId) + d.ShrunkUserOffset(userId)
}

func shrink(mean, global float64, n int) float64 {
	switch n {
	case 0:
		return global
	case 1:
		return (mean + global) / 2
	default:
		return (global*ShrinkageRatio + mean*float64(n)) / (ShrinkageRatio + float64(n))
	}
}
