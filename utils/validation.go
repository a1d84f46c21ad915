/*
 * Copyright 2025 Olake By Datazip
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
 */

package utils

import (
	"errors"
	"reflect"
	"regexp"
	"strings"

	"github.com/go-playground/locales/en"
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	en_translations "github.com/go-playground/validator/v10/translations/en"
)

// use a single instance, it caches struct info
var (
	uni      *ut.UniversalTranslator
	validate *validator.Validate
	trans    ut.Translator
)

// object names accepted by both engines; quoting handles the rest of the charset
var objectNamePattern = regexp.MustCompile(`^[A-Za-z0-9_$-]{1,64}$`)

func translateError(err error) (errs []string) {
	var validatorErrs validator.ValidationErrors
	if !errors.As(err, &validatorErrs) {
		return []string{err.Error()}
	}
	for _, e := range validatorErrs {
		errs = append(errs, e.Translate(trans))
	}

	return errs
}

// Validate checks struct tags and returns a Validation error listing every problem
func Validate[T any](structure T) error {
	if err := validate.Struct(structure); err != nil {
		return Errorf(ValidationError, "%s", strings.Join(translateError(err), "; "))
	}

	return nil
}

func init() {
	en := en.New()
	uni = ut.New(en, en)
	trans, _ = uni.GetTranslator("en")

	validate = validator.New(validator.WithRequiredStructEnabled())
	validate.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "" {
			name = strings.SplitN(fld.Tag.Get("yaml"), ",", 2)[0]
		}

		if name == "-" || name == "" {
			return fld.Name
		}

		return name
	})

	if err := validate.RegisterValidation("objectname", func(fl validator.FieldLevel) bool {
		return objectNamePattern.MatchString(fl.Field().String())
	}); err != nil {
		panic(err)
	}

	if err := en_translations.RegisterDefaultTranslations(validate, trans); err != nil {
		panic(err)
	}

	if err := validate.RegisterTranslation("objectname", trans,
		func(ut ut.Translator) error {
			return ut.Add("objectname", "{0} must be 1-64 letters, digits, '_', '-' or '$'", true)
		},
		func(ut ut.Translator, fe validator.FieldError) string {
			t, _ := ut.T("objectname", fe.Field())
			return t
		},
	); err != nil {
		panic(err)
	}
}
