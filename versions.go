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

// Package ap2 provides version information for ap2-go.
package ap2

const (
	// Version is the current version of ap2-go
	Version = "0.3.0"

	// SchemaVersion is the signed-envelope schema version this library
	// emits and accepts by default
	SchemaVersion = "1.0"

	// MinSchemaVersion is the minimum envelope schema version compatible
	// with this library
	MinSchemaVersion = "1.0"
)

// VersionInfo contains detailed version information
type VersionInfo struct {
	AP2Version       string
	SchemaVersion    string
	MinSchemaVersion string
}

// GetVersionInfo returns detailed version information
func GetVersionInfo() VersionInfo {
	return VersionInfo{
		AP2Version:       Version,
		SchemaVersion:    SchemaVersion,
		MinSchemaVersion: MinSchemaVersion,
	}
}
