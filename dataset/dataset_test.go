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
	"testing"

	"github.com/juju/errors"
	"github.com/stretchr/testify/assert"
)

func newTestDataset() *Dataset {
	ratings := NewRatings()
	ratings.Add(1, Rating{UserId: 1, Value: 5})
	ratings.Add(1, Rating{UserId: 2, Value: 3})
	ratings.Add(2, Rating{UserId: 1, Value: 2})
	ratings.Add(3, Rating{UserId: 3, Value: 4})
	ratings.Add(3, Rating{UserId: 2, Value: 1})
	ratings.Add(3, Rating{UserId: 1, Value: 4})
	return NewDataset(ratings)
}

func TestDataset_SingleItem(t *testing.T) {
	ratings := NewRatings()
	ratings.Add(1, Rating{UserId: 1, Value: 5, Date: "2005-09-06"})
	ratings.Add(1, Rating{UserId: 2, Value: 3, Date: "2005-05-13"})
	d := NewDataset(ratings)
	assert.Equal(t, 4.0, d.MeanRating(1))
	assert.Equal(t, 4.0, d.GlobalMean())
	assert.Equal(t, 4.0, d.ShrunkMeanRating(1))
	assert.Equal(t, 1.0, d.UserOffset(1))
	assert.Equal(t, -1.0, d.UserOffset(2))
	assert.Equal(t, 0.0, d.GlobalOffset())
	// each user has a single observation
	assert.Equal(t, 0.5, d.ShrunkUserOffset(1))
	assert.Equal(t, -0.5, d.ShrunkUserOffset(2))
}

func TestDataset_Statistics(t *testing.T) {
	d := newTestDataset()
	assert.Equal(t, 3, d.CountItems())
	assert.Equal(t, 3, d.CountUsers())
	assert.Equal(t, 6, d.CountRatings())
	assert.Equal(t, 4.0, d.MeanRating(1))
	assert.Equal(t, 2.0, d.MeanRating(2))
	assert.Equal(t, 3.0, d.MeanRating(3))
	// mean of item means, not of ratings
	assert.Equal(t, 3.0, d.GlobalMean())
	assert.Equal(t, d.GlobalMean(), d.MeanRating(100))
	// user 1: (5-4) + (2-2) + (4-3) over 3 items
	assert.InDelta(t, 2.0/3.0, d.UserOffset(1), 1e-12)
	// user 2: (3-4) + (1-3) over 2 items
	assert.Equal(t, -1.5, d.UserOffset(2))
	// user 3: (4-3)
	assert.Equal(t, 1.0, d.UserOffset(3))
	assert.InDelta(t, (2.0/3.0-1.5+1.0)/3, d.GlobalOffset(), 1e-12)
	assert.Equal(t, d.GlobalOffset(), d.UserOffset(100))
}

func TestDataset_Shrinkage(t *testing.T) {
	d := newTestDataset()
	// unseen
	assert.Equal(t, d.GlobalMean(), d.ShrunkMeanRating(100))
	assert.Equal(t, d.GlobalOffset(), d.ShrunkUserOffset(100))
	// single observation
	assert.Equal(t, (d.MeanRating(2)+d.GlobalMean())/2, d.ShrunkMeanRating(2))
	assert.Equal(t, (d.UserOffset(3)+d.GlobalOffset())/2, d.ShrunkUserOffset(3))
	// many observations
	assert.Equal(t, (d.GlobalMean()*25+d.MeanRating(3)*3)/28, d.ShrunkMeanRating(3))
	assert.Equal(t, (d.GlobalOffset()*25+d.UserOffset(2)*2)/27, d.ShrunkUserOffset(2))
	assert.Equal(t, d.ShrunkMeanRating(3)+d.ShrunkUserOffset(2), d.Baseline(3, 2))
}

func TestDataset_GetRating(t *testing.T) {
	d := newTestDataset()
	rating, err := d.GetRating(2, 3)
	assert.NoError(t, err)
	assert.Equal(t, int16(1), rating)
	_, err = d.GetRating(3, 1)
	assert.True(t, errors.Is(err, errors.NotFound))
	_, err = d.GetRating(100, 1)
	assert.True(t, errors.Is(err, errors.NotFound))
}

func TestDataset_Exists(t *testing.T) {
	d := newTestDataset()
	assert.True(t, d.ExistsItem(2))
	assert.False(t, d.ExistsItem(4))
	assert.True(t, d.ExistsUser(3))
	assert.False(t, d.ExistsUser(4))
	assert.ElementsMatch(t, []int32{1, 2, 3}, d.GetUserItems(1).ToSlice())
	assert.Equal(t, 0, d.GetUserItems(4).Cardinality())
}

func TestDataset_Feedback(t *testing.T) {
	d := newTestDataset()
	// users are indexed in order of first appearance: 1, 2, 3
	assert.Equal(t, []int32{1, 2, 3}, d.GetUserDict().Ids())
	assert.Equal(t, [][]int32{{0, 1}, {0}, {2, 1, 0}}, d.GetItemFeedback())
	assert.Equal(t, [][]float64{{5, 3}, {2}, {4, 1, 4}}, d.GetItemValues())
	assert.Equal(t, [][]int32{{0, 1, 2}, {0, 2}, {2}}, d.GetUserFeedback())
	assert.Equal(t, [][]float64{{5, 2, 4}, {3, 1}, {4}}, d.GetUserValues())
	assert.Equal(t, 3, d.GetUserDict().Freq(0))
	assert.Equal(t, 3, d.GetItemDict().Freq(2))
}

func TestDataset_Empty(t *testing.T) {
	d := NewDataset(NewRatings())
	assert.Equal(t, 0.0, d.GlobalMean())
	assert.Equal(t, 0.0, d.GlobalOffset())
	assert.Equal(t, 0.0, d.Baseline(1, 1))
}
