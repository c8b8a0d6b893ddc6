// Copyright (C) 2024 right-sizer contributors
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
// GNU Affero General Public License for more details.
//
// You should have received a copy of the GNU Affero General Public License
// along with this program.  If not, see <https://www.gnu.org/licenses/>.

package errors

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOperatorError(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		category string
		op       string
		contains string
	}{
		{
			name:     "basic error",
			err:      New(CategoryType, "validateInput", "iu is not an instance of a declared input class"),
			category: CategoryType,
			op:       "validateInput",
			contains: "[type] validateInput: iu is not an instance of a declared input class",
		},
		{
			name:     "wrapped error",
			err:      Wrap(errors.New("queue closed"), CategoryNetwork, "discover", "failed to traverse buffers"),
			category: CategoryNetwork,
			op:       "discover",
			contains: "[network] discover: failed to traverse buffers: queue closed",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.contains, tt.err.Error())
			assert.True(t, IsCategory(tt.err, tt.category))
			assert.Equal(t, tt.category, GetCategory(tt.err))
		})
	}
}

func TestIsRetryable(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{name: "nil error", err: nil, want: false},
		{name: "type error - not retryable", err: TypeError("test", "bad class"), want: false},
		{name: "topology error - not retryable", err: TopologyError("test", "subscribe to consuming module"), want: false},
		{name: "config error - not retryable", err: ConfigError("test", "invalid config"), want: false},
		{name: "network error - retryable", err: NetworkError("test", errors.New("file busy")), want: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, IsRetryable(tt.err))
		})
	}
}

func TestErrorUnwrap(t *testing.T) {
	baseErr := errors.New("base error")
	wrappedErr := Wrap(baseErr, CategoryNetwork, "test", "wrapped")

	require.True(t, errors.Is(wrappedErr, baseErr))

	var opErr *OperatorError
	require.True(t, errors.As(wrappedErr, &opErr))
}

func TestConvenienceFunctions(t *testing.T) {
	tests := []struct {
		name     string
		errFunc  func() error
		category string
	}{
		{
			name:     "TypeErrorf",
			errFunc:  func() error { return TypeErrorf("op", "value %d invalid", 42) },
			category: CategoryType,
		},
		{
			name:     "NetworkErrorf",
			errFunc:  func() error { return NetworkErrorf("op", errors.New("base"), "failed to load %s", "net.rtc") },
			category: CategoryNetwork,
		},
		{
			name:     "ModuleErrorf",
			errFunc:  func() error { return ModuleErrorf("op", errors.New("base"), "setup panicked in %s", "module") },
			category: CategoryModule,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.errFunc()
			require.Error(t, err)
			assert.Equal(t, tt.category, GetCategory(err))
		})
	}
}
