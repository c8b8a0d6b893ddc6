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

// Package iu is a baseline catalogue of concrete incremental unit subtypes
// grouped by modality, grounded on original_source/retico_core's
// audio.py/text.py/dialogue.py/visual.py. They exist to give the module
// runtime and network controller non-trivial payload types to exercise;
// they are not themselves producers or consumers.
package iu

import (
	"strings"

	"retico-go/core"
)

// TextIU carries a text payload.
type TextIU struct {
	core.BaseIU
}

// NewTextIU builds a TextIU and wires it into creator's previous-IU chain.
func NewTextIU(creator core.Module, iuid string, previousIU, groundedIn core.IU) core.IU {
	u := &TextIU{}
	core.InitBaseIU(&u.BaseIU, creator, iuid, previousIU, groundedIn, "")
	return u
}

func (u *TextIU) Type() string { return "Text IU" }

// Text returns the IU's text payload.
func (u *TextIU) Text() string {
	s, _ := u.Payload().(string)
	return s
}

// SetText replaces the IU's text payload.
func (u *TextIU) SetText(text string) { u.SetPayload(text) }

// GeneratedTextIU is text produced for eventual synthesis, carrying a flag
// for whether the resulting speech should be dispatched once ready.
type GeneratedTextIU struct {
	TextIU
	Dispatch bool
}

func NewGeneratedTextIU(creator core.Module, iuid string, previousIU, groundedIn core.IU) core.IU {
	u := &GeneratedTextIU{}
	core.InitBaseIU(&u.BaseIU, creator, iuid, previousIU, groundedIn, "")
	return u
}

func (u *GeneratedTextIU) Type() string { return "Generated Text IU" }

// SpeechRecognitionIU carries an ASR hypothesis: the full prediction
// history, the latest text, and its stability/confidence/finality.
type SpeechRecognitionIU struct {
	TextIU
	Predictions []string
	Stability   float64
	Confidence  float64
	Final       bool
}

func NewSpeechRecognitionIU(creator core.Module, iuid string, previousIU, groundedIn core.IU) core.IU {
	u := &SpeechRecognitionIU{}
	core.InitBaseIU(&u.BaseIU, creator, iuid, previousIU, groundedIn, nil)
	return u
}

func (u *SpeechRecognitionIU) Type() string { return "Speech Recognition IU" }

// SetASRResults records a new recognition hypothesis. predictions is the
// full ranked candidate list; text is the chosen candidate's text.
func (u *SpeechRecognitionIU) SetASRResults(predictions []string, text string, stability, confidence float64, final bool) {
	u.Predictions = predictions
	u.SetPayload(predictions)
	u.SetText(text)
	u.Stability = stability
	u.Confidence = confidence
	u.Final = final
}

// Edit pairs a revoked IU with the REVOKE edit type, the shape
// TextIncrement reports for every token it discards.
type Edit struct {
	IU         core.IU
	UpdateType core.UpdateType
}

// TextIncrement diffs a running transcript against the tokens already
// realized as IUs in currentOutput, grounded on get_text_increment in
// text.py. It returns the IUs whose tokens no longer match (to be REVOKEd
// by the caller), the new trailing tokens that still need IUs created for
// them, and the IUs of currentOutput that were not revoked, in order — the
// value a caller should feed back into its module's current_output list.
// The pass is greedy and linear, not a minimal edit: each new token is
// compared with the next unconsumed IU, and every IU that does not match
// is revoked until one does or the IUs run out; tokens left after that are
// new. An unchanged token after a divergence can therefore be revoked and
// re-added (current "a b c", new text "a x c" revokes b and c and returns
// x and c as new tokens). IUs left over after the last token are neither
// revoked nor reported.
func TextIncrement(currentOutput []*TextIU, newText string) (revoked []Edit, newTokens []string, surviving []*TextIU) {
	tokens := strings.Split(strings.TrimSpace(newText), " ")
	if len(tokens) == 1 && tokens[0] == "" {
		return nil, nil, currentOutput
	}

	iuIdx, tokenIdx := 0, 0
	for tokenIdx < len(tokens) {
		if iuIdx >= len(currentOutput) {
			newTokens = append(newTokens, tokens[tokenIdx])
			tokenIdx++
			continue
		}
		current := currentOutput[iuIdx]
		iuIdx++
		if tokens[tokenIdx] == current.Text() {
			tokenIdx++
			continue
		}
		current.SetRevoked(true)
		revoked = append(revoked, Edit{IU: current, UpdateType: core.Revoke})
	}

	for _, u := range currentOutput {
		if !u.Revoked() {
			surviving = append(surviving, u)
		}
	}
	return revoked, newTokens, surviving
}
