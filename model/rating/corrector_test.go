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
	"testing"

	"github.com/gorse-io/gorse-rating/dataset"
	"github.com/stretchr/testify/assert"
)

func TestItemCorrector(t *testing.T) {
	ratings := dataset.NewRatings()
	ratings.Add(1, dataset.Rating{UserId: 1, Value: 5})
	ratings.Add(1, dataset.Rating{UserId: 2, Value: 3})
	ratings.Add(2, dataset.Rating{UserId: 1, Value: 1})
	d := dataset.NewDataset(ratings)
	corrector := NewItemCorrector(d, &constModel{value: 3}, 1)
	assert.Equal(t, 4.0, corrector.Correct(1, 3))
	assert.Equal(t, 1.0, corrector.Correct(2, 3))
	// unknown items are not corrected
	assert.Equal(t, 3.0, corrector.Correct(100, 3))
}

func TestItemCorrector_Parallel(t *testing.T) {
	d := newSyntheticDataset(20, 20, 0)
	em := NewEM(d, nil)
	_, err := em.Fit(context.Background(), NewFitConfig())
	assert.NoError(t, err)
	a := NewItemCorrector(d, em, 1)
	b := NewItemCorrector(d, em, 4)
	assert.Equal(t, a.corrections, b.corrections)
}

func TestGlobalCorrector(t *testing.T) {
	reference := newSingleItemRatings()
	corrector, err := NewGlobalCorrector(reference, &constModel{value: 3})
	assert.NoError(t, err)
	assert.Equal(t, 1.0, corrector.Correction())
	assert.Equal(t, 4.0, corrector.Correct(100, 3))

	// predictions pass through other correctors first
	shift := CorrectorFunc(func(_ int32, prediction float64) float64 { return prediction + 0.5 })
	corrector, err = NewGlobalCorrector(reference, &constModel{value: 3}, shift)
	assert.NoError(t, err)
	assert.Equal(t, 0.5, corrector.Correction())

	_, err = NewGlobalCorrector(dataset.NewRatings(), &constModel{value: 3})
	assert.Error(t, err)
}
