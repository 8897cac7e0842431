// Copyright (C) 2025 AP2 Project
//
// This file is part of ap2-go.
//
// ap2-go is free software: you can redistribute it and/or modify
// it under the terms of the GNU Lesser General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// ap2-go is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
// GNU Lesser General Public License for more details.
//
// You should have received a copy of the GNU Lesser General Public License
// along with ap2-go.  If not, see <https://www.gnu.org/licenses/>.

package ap2

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestVersionConstants(t *testing.T) {
	assert.NotEmpty(t, Version, "Version should not be empty")
	assert.NotEmpty(t, SchemaVersion, "SchemaVersion should not be empty")
	assert.NotEmpty(t, MinSchemaVersion, "MinSchemaVersion should not be empty")

	assert.Equal(t, "0.3.0", Version)
	assert.Equal(t, "1.0", SchemaVersion)
	assert.Equal(t, "1.0", MinSchemaVersion)
}

func TestGetVersionInfo(t *testing.T) {
	info := GetVersionInfo()

	assert.Equal(t, Version, info.AP2Version)
	assert.Equal(t, SchemaVersion, info.SchemaVersion)
	assert.Equal(t, MinSchemaVersion, info.MinSchemaVersion)
}
