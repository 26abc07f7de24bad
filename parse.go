// Copyright 2017 Pilosa Corp.
//
// Redistribution and use in source and binary forms, with or without
// modification, are permitted provided that the following conditions
// are met:
//
// 1. Redistributions of source code must retain the above copyright
// notice, this list of conditions and the following disclaimer.
//
// 2. Redistributions in binary form must reproduce the above copyright
// notice, this list of conditions and the following disclaimer in the
// documentation and/or other materials provided with the distribution.
//
// 3. Neither the name of the copyright holder nor the names of its
// contributors may be used to endorse or promote products derived
// from this software without specific prior written permission.
//
// THIS SOFTWARE IS PROVIDED BY THE COPYRIGHT HOLDERS AND
// CONTRIBUTORS "AS IS" AND ANY EXPRESS OR IMPLIED WARRANTIES,
// INCLUDING, BUT NOT LIMITED TO, THE IMPLIED WARRANTIES OF
// MERCHANTABILITY AND FITNESS FOR A PARTICULAR PURPOSE ARE
// DISCLAIMED. IN NO EVENT SHALL THE COPYRIGHT HOLDER OR
// CONTRIBUTORS BE LIABLE FOR ANY DIRECT, INDIRECT, INCIDENTAL,
// SPECIAL, EXEMPLARY, OR CONSEQUENTIAL DAMAGES (INCLUDING,
// BUT NOT LIMITED TO, PROCUREMENT OF SUBSTITUTE GOODS OR
// SERVICES; LOSS OF USE, DATA, OR PROFITS; OR BUSINESS
// INTERRUPTION) HOWEVER CAUSED AND ON ANY THEORY OF LIABILITY,
// WHETHER IN CONTRACT, STRICT LIABILITY, OR TORT (INCLUDING
// NEGLIGENCE OR OTHERWISE) ARISING IN ANY WAY OUT OF THE USE
// OF THIS SOFTWARE, EVEN IF ADVISED OF THE POSSIBILITY OF SUCH
// DAMAGE.

package datalake

import (
	"encoding/json"
	"math"
	"strconv"
	"strings"

	"github.com/pkg/errors"
)

// The field helpers below read a single value out of a decoded JSON object.
// A missing key and an explicit null are the same thing. Numbers may arrive
// as json.Number, float64 or numeric strings depending on the producer.

func stringField(m map[string]interface{}, key string) (string, error) {
	switch v := m[key].(type) {
	case nil:
		return "", nil
	case string:
		return v, nil
	case json.Number:
		return v.String(), nil
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64), nil
	case bool:
		return strconv.FormatBool(v), nil
	default:
		return "", errors.Errorf("field '%s': can't use %T as a string", key, v)
	}
}

func optStringField(m map[string]interface{}, key string) (*string, error) {
	if m[key] == nil {
		return nil, nil
	}
	s, err := stringField(m, key)
	if err != nil {
		return nil, err
	}
	return &s, nil
}

func intField(m map[string]interface{}, key string) (int64, error) {
	switch v := m[key].(type) {
	case nil:
		return 0, nil
	case json.Number:
		return parseInt(key, v.String())
	case float64:
		return floatToInt(key, v)
	case string:
		if strings.TrimSpace(v) == "" {
			return 0, nil
		}
		return parseInt(key, v)
	default:
		return 0, errors.Errorf("field '%s': can't use %T as an integer", key, v)
	}
}

func parseInt(key, s string) (int64, error) {
	s = strings.TrimSpace(s)
	if i, err := strconv.ParseInt(s, 10, 64); err == nil {
		return i, nil
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, errors.Wrapf(err, "field '%s'", key)
	}
	return floatToInt(key, f)
}

func floatToInt(key string, f float64) (int64, error) {
	if math.IsNaN(f) || math.IsInf(f, 0) || f > math.MaxInt64 || f < math.MinInt64 {
		return 0, errors.Errorf("field '%s': %v out of integer range", key, f)
	}
	return int64(f), nil
}

func optFloatField(m map[string]interface{}, key string) (*float64, error) {
	var f float64
	var err error
	switch v := m[key].(type) {
	case nil:
		return nil, nil
	case json.Number:
		f, err = strconv.ParseFloat(v.String(), 64)
	case float64:
		f = v
	case string:
		if strings.TrimSpace(v) == "" {
			return nil, nil
		}
		f, err = strconv.ParseFloat(strings.TrimSpace(v), 64)
	default:
		return nil, errors.Errorf("field '%s': can't use %T as a number", key, v)
	}
	if err != nil {
		return nil, errors.Wrapf(err, "field '%s'", key)
	}
	return &f, nil
}

func floatField(m map[string]interface{}, key string) (float64, error) {
	f, err := optFloatField(m, key)
	if err != nil || f == nil {
		return 0, err
	}
	return *f, nil
}

// fieldReader collects the first error of a series of field reads so that a
// record can be parsed without checking after every field.
type fieldReader struct {
	m   map[string]interface{}
	err error
}

func (r *fieldReader) str(key string) string {
	if r.err != nil {
		return ""
	}
	var s string
	s, r.err = stringField(r.m, key)
	return s
}

func (r *fieldReader) optStr(key string) *string {
	if r.err != nil {
		return nil
	}
	var s *string
	s, r.err = optStringField(r.m, key)
	return s
}

func (r *fieldReader) int(key string) int64 {
	if r.err != nil {
		return 0
	}
	var i int64
	i, r.err = intField(r.m, key)
	return i
}

func (r *fieldReader) float(key string) float64 {
	if r.err != nil {
		return 0
	}
	var f float64
	f, r.err = floatField(r.m, key)
	return f
}

func (r *fieldReader) optFloat(key string) *float64 {
	if r.err != nil {
		return nil
	}
	var f *float64
	f, r.err = optFloatField(r.m, key)
	return f
}
