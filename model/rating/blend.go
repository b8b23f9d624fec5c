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

	"github.com/gorse-io/gorse-rating/dataset"
	"github.com/gorse-io/gorse-rating/model"
	"github.com/juju/errors"
)

// Blend is a linear combination of two fitted models:
//
//	\hat{r}_{ui} = ratio \hat{r}^1_{ui} + (1 - ratio) \hat{r}^2_{ui}
//
// Blend does not train its delegates. They must be fitted before Blend.Fit is
// called, which only checks that they are.
//
// Hyper-parameters:
//
//	Ratio - The weight of the first model. Default is 0.55.
type Blend struct {
	model.BaseModel
	First  Model
	Second Model
	ratio  float64
	fitted bool
}

// NewBlend creates a blend of two models.
func NewBlend(first, second Model, params model.Params) *Blend {
	blend := &Blend{First: first, Second: second}
	blend.SetParams(params)
	return blend
}

func (blend *Blend) SetParams(params model.Params) {
	blend.BaseModel.SetParams(params)
	blend.ratio = blend.Params.GetFloat64(model.Ratio, 0.55)
}

// Predict returns the weighted sum of both predictions.
func (blend *Blend) Predict(itemId, userId int32) float64 {
	return blend.ratio*blend.First.Predict(itemId, userId) +
		(1-blend.ratio)*blend.Second.Predict(itemId, userId)
}

// Fit fails if any delegate has not been fitted.
func (blend *Blend) Fit(_ context.Context, _ *FitConfig) (Score, error) {
	if blend.First == nil || blend.First.Invalid() {
		return Score{}, errors.NotValidf("first model of blend is not fitted")
	}
	if blend.Second == nil || blend.Second.Invalid() {
		return Score{}, errors.NotValidf("second model of blend is not fitted")
	}
	blend.fitted = true
	loss, err := Evaluate(blend, blend.GetDataset().GetRatings())
	if err != nil {
		return Score{}, errors.Trace(err)
	}
	return Score{Loss: loss}, nil
}

// GetDataset returns the dataset of the first model.
func (blend *Blend) GetDataset() *dataset.Dataset {
	return blend.First.GetDataset()
}

// GetNearIntegerDiff returns the average tolerance of both models.
func (blend *Blend) GetNearIntegerDiff() float64 {
	return (blend.First.GetNearIntegerDiff() + blend.Second.GetNearIntegerDiff()) / 2
}

func (blend *Blend) Invalid() bool {
	return blend == nil || !blend.fitted
}
