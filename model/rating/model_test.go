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

package rating

import (
	"context"
	"math"
	"testing"

	"github.com/gorse-io/gorse-rating/base"
	"github.com/gorse-io/gorse-rating/dataset"
	"github.com/gorse-io/gorse-rating/model"
	"github.com/stretchr/testify/assert"
)

// newSyntheticDataset rates items by users with probability 0.6. Ratings follow
// a simple item plus user pattern so that models have something to learn.
func newSyntheticDataset(nItems, nUsers int, seed int64) *dataset.Dataset {
	rng := base.NewRandomGenerator(seed)
	ratings := dataset.NewRatings()
	for itemId := 1; itemId <= nItems; itemId++ {
		for userId := 1; userId <= nUsers; userId++ {
			if rng.Float64() < 0.6 {
				value := int16(1 + (itemId%3+userId%3+rng.Intn(2))%5)
				ratings.Add(int32(itemId), dataset.Rating{UserId: int32(userId), Value: value})
			}
		}
	}
	return dataset.NewDataset(ratings)
}

// constModel predicts a constant.
type constModel struct {
	model.BaseModel
	value   float64
	diff    float64
	dataset *dataset.Dataset
	invalid bool
}

func (m *constModel) Predict(_, _ int32) float64 {
	return m.value
}

func (m *constModel) Fit(_ context.Context, _ *FitConfig) (Score, error) {
	m.invalid = false
	return Score{}, nil
}

func (m *constModel) GetDataset() *dataset.Dataset {
	return m.dataset
}

func (m *constModel) GetNearIntegerDiff() float64 {
	return m.diff
}

func (m *constModel) Invalid() bool {
	return m.invalid
}

func TestTruncate(t *testing.T) {
	assert.Equal(t, 5.0, Truncate(5.5))
	assert.Equal(t, 0.0, Truncate(-0.1))
	assert.Equal(t, 3.2, Truncate(3.2))
}

func TestImproved(t *testing.T) {
	// the first iteration always continues
	assert.True(t, improved(math.NaN(), 10, -0.00008))
	assert.True(t, improved(1.0, 0.9, -0.00008))
	assert.False(t, improved(1.0, 0.99995, -0.00008))
	assert.False(t, improved(1.0, 1.1, -0.00008))
}

func TestGetModelName(t *testing.T) {
	d := newSyntheticDataset(3, 3, 0)
	svd := NewSVD(d, nil)
	em := NewEM(d, nil)
	assert.Equal(t, "svd", GetModelName(svd))
	assert.Equal(t, "em", GetModelName(em))
	assert.Equal(t, "blend", GetModelName(NewBlend(svd, em, nil)))
	assert.Equal(t, "*rating.constModel", GetModelName(&constModel{}))
}

func TestFitConfig(t *testing.T) {
	assert.Equal(t, 1, NewFitConfig().Jobs)
	assert.Equal(t, 4, NewFitConfig().SetJobs(4).Jobs)
}
