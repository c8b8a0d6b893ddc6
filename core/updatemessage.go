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

package core

import "retico-go/errors"

// Pair is one (IU, edit-type) entry of an UpdateMessage.
type Pair struct {
	IU         IU
	UpdateType UpdateType
}

// UpdateMessage is an ordered batch of (IU, edit-type) pairs — the atomic
// unit of inter-module delivery. Delivering a batch rather than individual
// IUs lets a module publish coherent edits (e.g. a REVOKE-then-ADD
// substitution) that downstream modules observe together.
type UpdateMessage struct {
	pairs []Pair
}

// NewUpdateMessage returns an empty update message.
func NewUpdateMessage() *UpdateMessage {
	return &UpdateMessage{}
}

// FromIU builds a single-pair update message.
func FromIU(iu IU, ut UpdateType) (*UpdateMessage, error) {
	um := NewUpdateMessage()
	if err := um.AddIU(iu, ut, true); err != nil {
		return nil, err
	}
	return um, nil
}

// FromIUs builds an update message from a list of pairs, all-or-nothing.
func FromIUs(pairs []Pair) (*UpdateMessage, error) {
	um := NewUpdateMessage()
	if err := um.AddIUs(pairs, true); err != nil {
		return nil, err
	}
	return um, nil
}

// Len returns the number of pairs in the message.
func (um *UpdateMessage) Len() int { return len(um.pairs) }

// Pairs returns a snapshot copy of the contained pairs in insertion order.
func (um *UpdateMessage) Pairs() []Pair {
	return append([]Pair(nil), um.pairs...)
}

// IUs returns just the contained IUs, in insertion order.
func (um *UpdateMessage) IUs() []IU {
	ius := make([]IU, len(um.pairs))
	for i, p := range um.pairs {
		ius[i] = p.IU
	}
	return ius
}

// AddIU appends a single pair. When strict is true, ut is validated
// against the closed UpdateType set; on any validation failure the message
// is left unchanged.
func (um *UpdateMessage) AddIU(iu IU, ut UpdateType, strict bool) error {
	if iu == nil {
		return errors.TypeErrorf("add_iu", "cannot add a nil incremental unit")
	}
	if strict && !ut.Valid() {
		return errors.TypeErrorf("add_iu", "%q is not a valid update type", ut)
	}
	um.pairs = append(um.pairs, Pair{IU: iu, UpdateType: ut})
	return nil
}

// AddIUs appends every pair, two-pass: validate all, then append all. If
// any pair fails validation, none are appended.
func (um *UpdateMessage) AddIUs(pairs []Pair, strict bool) error {
	for _, p := range pairs {
		if p.IU == nil {
			return errors.TypeErrorf("add_ius", "cannot add a nil incremental unit")
		}
		if strict && !p.UpdateType.Valid() {
			return errors.TypeErrorf("add_ius", "%q is not a valid update type", p.UpdateType)
		}
	}
	um.pairs = append(um.pairs, pairs...)
	return nil
}

// HasValidIUs reports whether classes is non-empty and every contained IU
// is a member of at least one class in the set.
func (um *UpdateMessage) HasValidIUs(classes []IUClass) bool {
	if len(classes) == 0 {
		return false
	}
	for _, p := range um.pairs {
		ok := false
		for _, class := range classes {
			if class(p.IU) {
				ok = true
				break
			}
		}
		if !ok {
			return false
		}
	}
	return true
}

// SetProcessed marks every contained IU as processed by m.
func (um *UpdateMessage) SetProcessed(m Module) {
	for _, p := range um.pairs {
		_ = p.IU.SetProcessed(m)
	}
}

// Clone returns a shallow copy: an independent UpdateMessage object whose
// pairs slice is its own, but whose IUs are the same shared references.
// Queue delivery uses this so that different consumers observe independent
// message objects without duplicating IU state.
func (um *UpdateMessage) Clone() *UpdateMessage {
	return &UpdateMessage{pairs: append([]Pair(nil), um.pairs...)}
}
