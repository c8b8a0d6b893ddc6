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

package iu

import "retico-go/core"

// DialogueActIU carries a recognized or planned dialogue act: a label plus
// a map of extracted concepts and a confidence score.
type DialogueActIU struct {
	core.BaseIU

	Act        string
	Concepts   map[string]interface{}
	Confidence float64
}

func NewDialogueActIU(creator core.Module, iuid string, previousIU, groundedIn core.IU) core.IU {
	u := &DialogueActIU{Concepts: map[string]interface{}{}}
	core.InitBaseIU(&u.BaseIU, creator, iuid, previousIU, groundedIn, nil)
	return u
}

func (u *DialogueActIU) Type() string { return "Dialogue Act IU" }

// SetAct replaces the act label, concept map, and confidence together;
// concepts may be nil to leave the existing map untouched.
func (u *DialogueActIU) SetAct(act string, concepts map[string]interface{}, confidence float64) {
	u.Act = act
	if concepts != nil {
		u.Concepts = concepts
	}
	u.Confidence = confidence
	u.SetPayload([2]interface{}{act, u.Concepts})
}

// DispatchableActIU is a DialogueActIU awaiting a dispatch decision from a
// downstream turn-taking policy.
type DispatchableActIU struct {
	DialogueActIU
	Dispatch bool
}

func NewDispatchableActIU(creator core.Module, iuid string, previousIU, groundedIn core.IU) core.IU {
	u := &DispatchableActIU{}
	u.Concepts = map[string]interface{}{}
	core.InitBaseIU(&u.BaseIU, creator, iuid, previousIU, groundedIn, nil)
	return u
}

func (u *DispatchableActIU) Type() string { return "Dispatchable Act IU" }

// EndOfTurnIU carries a turn-taking model's estimate of whether the
// current speaker has finished.
type EndOfTurnIU struct {
	core.BaseIU

	Probability float64
	IsSpeaking  bool
}

func NewEndOfTurnIU(creator core.Module, iuid string, previousIU, groundedIn core.IU) core.IU {
	u := &EndOfTurnIU{}
	core.InitBaseIU(&u.BaseIU, creator, iuid, previousIU, groundedIn, nil)
	return u
}

func (u *EndOfTurnIU) Type() string { return "End-Of-Turn IU" }

// SetEOT records a new end-of-turn estimate.
func (u *EndOfTurnIU) SetEOT(probability float64, isSpeaking bool) {
	u.Probability = probability
	u.IsSpeaking = isSpeaking
	u.SetPayload(probability)
}
