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

// Package core implements the incremental dialogue pipeline's data model:
// IncrementalUnit, UpdateType, and UpdateMessage. It has no dependency on
// the module runtime that moves these values around — only on the narrow
// Module view an IU needs for lineage and processed-by bookkeeping.
package core

import (
	"retico-go/errors"
)

// UpdateType is the closed set of edit kinds an IU can carry through an
// UpdateMessage.
type UpdateType string

const (
	Add    UpdateType = "ADD"
	Update UpdateType = "UPDATE"
	Revoke UpdateType = "REVOKE"
	Commit UpdateType = "COMMIT"
)

// Valid reports whether ut is one of the four closed edit kinds.
func (ut UpdateType) Valid() bool {
	switch ut {
	case Add, Update, Revoke, Commit:
		return true
	}
	return false
}

// ParseUpdateType validates raw against the closed UpdateType set. In
// strict mode an unrecognized value is a caller-visible type error and the
// caller's update message is left unchanged; in permissive mode any tag,
// including the empty string, is accepted verbatim.
func ParseUpdateType(raw string, strict bool) (UpdateType, error) {
	ut := UpdateType(raw)
	if ut.Valid() || !strict {
		return ut, nil
	}
	return "", errors.TypeErrorf("parse_update_type", "%q is not a valid update type", raw)
}
