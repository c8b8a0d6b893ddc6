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

import (
	"encoding/base64"
	"encoding/json"

	"retico-go/core"
)

// ImageIU carries one encoded image frame (e.g. JPEG/PNG bytes) plus the
// capture's frame rate and frame count, mirroring the source's
// to_json/from_json round-trip contract for sending frames over a
// non-Python transport.
type ImageIU struct {
	core.BaseIU

	Image   []byte
	Rate    int
	NFrames int
}

func NewImageIU(creator core.Module, iuid string, previousIU, groundedIn core.IU) core.IU {
	u := &ImageIU{}
	core.InitBaseIU(&u.BaseIU, creator, iuid, previousIU, groundedIn, nil)
	return u
}

func (u *ImageIU) Type() string { return "Image IU" }

// SetImage sets the encoded frame and its format parameters.
func (u *ImageIU) SetImage(image []byte, nframes, rate int) {
	u.Image = image
	u.SetPayload(image)
	u.NFrames = nframes
	u.Rate = rate
}

type imageJSON struct {
	Image   string `json:"image"`
	Rate    int    `json:"rate"`
	NFrames int    `json:"nframes"`
}

// ToJSON encodes the frame, base64-wrapping the raw bytes the way the
// source wraps a numpy array for JSON transport.
func (u *ImageIU) ToJSON() ([]byte, error) {
	return json.Marshal(imageJSON{
		Image:   base64.StdEncoding.EncodeToString(u.Image),
		Rate:    u.Rate,
		NFrames: u.NFrames,
	})
}

// FromJSON populates the IU from the encoding ToJSON produces.
func (u *ImageIU) FromJSON(data []byte) error {
	var payload imageJSON
	if err := json.Unmarshal(data, &payload); err != nil {
		return err
	}
	raw, err := base64.StdEncoding.DecodeString(payload.Image)
	if err != nil {
		return err
	}
	u.SetImage(raw, payload.NFrames, payload.Rate)
	return nil
}

// PosePositionsIU carries pose-estimation output: per-landmark positions,
// an optional segmentation mask, and the source frame they were computed
// from.
type PosePositionsIU struct {
	core.BaseIU

	PoseLandmarks    interface{}
	SegmentationMask []byte
	Image            []byte
}

func NewPosePositionsIU(creator core.Module, iuid string, previousIU, groundedIn core.IU) core.IU {
	u := &PosePositionsIU{}
	core.InitBaseIU(&u.BaseIU, creator, iuid, previousIU, groundedIn, nil)
	return u
}

func (u *PosePositionsIU) Type() string { return "Pose Positions IU" }

// SetPose records a new pose estimate.
func (u *PosePositionsIU) SetPose(landmarks interface{}, mask, image []byte) {
	u.PoseLandmarks = landmarks
	u.SegmentationMask = mask
	u.Image = image
	u.SetPayload(landmarks)
}

// DetectedObjectsIU carries an object detector's output for one frame.
type DetectedObjectsIU struct {
	core.BaseIU

	DetectedObjects interface{}
	NumObjects      int
	Image           []byte
}

func NewDetectedObjectsIU(creator core.Module, iuid string, previousIU, groundedIn core.IU) core.IU {
	u := &DetectedObjectsIU{}
	core.InitBaseIU(&u.BaseIU, creator, iuid, previousIU, groundedIn, nil)
	return u
}

func (u *DetectedObjectsIU) Type() string { return "Detected Objects IU" }

// SetDetections records a new detector output and its object count.
func (u *DetectedObjectsIU) SetDetections(objects interface{}, numObjects int, image []byte) {
	u.DetectedObjects = objects
	u.NumObjects = numObjects
	u.Image = image
	u.SetPayload(objects)
}
