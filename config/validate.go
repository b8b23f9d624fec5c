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

package config

import (
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/juju/errors"
	"github.com/samber/lo"
)

// Validate checks tags of every section. Violations are reported together as
// a NotValid error.
func (config *Config) Validate() error {
	validate := validator.New(validator.WithRequiredStructEnabled())
	if err := validate.Struct(config); err != nil {
		var validationErrors validator.ValidationErrors
		if errors.As(err, &validationErrors) {
			messages := lo.Map(validationErrors, func(e validator.FieldError, _ int) string {
				if e.Param() != "" {
					return e.Namespace() + " must satisfy " + e.Tag() + "=" + e.Param()
				}
				return e.Namespace() + " must satisfy " + e.Tag()
			})
			return errors.NotValidf("config (%s)", strings.Join(messages, "; "))
		}
		return errors.Trace(err)
	}
	if blend := lo.IndexOf(config.Train.Models, ModelBlend); blend >= 0 {
		if !lo.Every(config.Train.Models, []string{ModelSVD, ModelEM}) {
			return errors.NotValidf("config (blend requires svd and em in train.models)")
		}
		// blend combines models trained before it
		if blend < lo.IndexOf(config.Train.Models, ModelSVD) || blend < lo.IndexOf(config.Train.Models, ModelEM) {
			return errors.NotValidf("config (blend must follow svd and em in train.models)")
		}
	}
	return nil
}
