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

// AudioIU carries a raw PCM frame: payload bytes plus the format
// parameters needed to interpret them.
type AudioIU struct {
	core.BaseIU

	RawAudio    []byte
	Rate        int
	NFrames     int
	SampleWidth int
}

// NewAudioIU builds an empty AudioIU; call SetAudio to populate it.
func NewAudioIU(creator core.Module, iuid string, previousIU, groundedIn core.IU) core.IU {
	u := &AudioIU{}
	core.InitBaseIU(&u.BaseIU, creator, iuid, previousIU, groundedIn, nil)
	return u
}

func (u *AudioIU) Type() string { return "Audio IU" }

// SetAudio sets the raw audio payload and its format parameters.
func (u *AudioIU) SetAudio(raw []byte, nframes, rate, sampleWidth int) {
	u.RawAudio = raw
	u.SetPayload(raw)
	u.NFrames = nframes
	u.Rate = rate
	u.SampleWidth = sampleWidth
}

// Duration returns the frame's playback length in seconds.
func (u *AudioIU) Duration() float64 {
	if u.Rate == 0 {
		return 0
	}
	return float64(u.NFrames) / float64(u.Rate)
}

// SpeechIU is an AudioIU believed to contain speech, pending a dispatch
// decision by a downstream consumer (e.g. a VAD or dispatcher module).
type SpeechIU struct {
	AudioIU
	Dispatch bool
}

func NewSpeechIU(creator core.Module, iuid string, previousIU, groundedIn core.IU) core.IU {
	u := &SpeechIU{}
	core.InitBaseIU(&u.BaseIU, creator, iuid, previousIU, groundedIn, nil)
	return u
}

func (u *SpeechIU) Type() string { return "Speech IU" }

// DispatchedAudioIU reports the playback progress of audio already handed
// off to an output device.
type DispatchedAudioIU struct {
	AudioIU
	Completion    float64
	IsDispatching bool
}

func NewDispatchedAudioIU(creator core.Module, iuid string, previousIU, groundedIn core.IU) core.IU {
	u := &DispatchedAudioIU{}
	core.InitBaseIU(&u.BaseIU, creator, iuid, previousIU, groundedIn, nil)
	return u
}

func (u *DispatchedAudioIU) Type() string { return "Dispatched Audio IU" }

// SetDispatching records the current playback state of the dispatched clip.
func (u *DispatchedAudioIU) SetDispatching(completion float64, isDispatching bool) {
	u.Completion = completion
	u.IsDispatching = isDispatching
}
