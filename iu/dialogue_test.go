// Copyright (C) 2024 right-sizer contributors
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.

package iu

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDialogueActIU_SetAct(t *testing.T) {
	m := &fakeModule{name: "nlu"}
	u, ok := NewDialogueActIU(m, "1", nil, nil).(*DialogueActIU)
	require.True(t, ok)

	u.SetAct("inform", map[string]interface{}{"food": "italian"}, 0.95)
	assert.Equal(t, "inform", u.Act)
	assert.Equal(t, 0.95, u.Confidence)
	assert.Equal(t, "italian", u.Concepts["food"])
}

func TestEndOfTurnIU_SetEOT(t *testing.T) {
	m := &fakeModule{name: "eot"}
	u, ok := NewEndOfTurnIU(m, "1", nil, nil).(*EndOfTurnIU)
	require.True(t, ok)

	u.SetEOT(0.8, false)
	assert.Equal(t, 0.8, u.Probability)
	assert.False(t, u.IsSpeaking)
}

func TestDispatchableActIU_EmbedsDialogueAct(t *testing.T) {
	m := &fakeModule{name: "nlg"}
	u, ok := NewDispatchableActIU(m, "1", nil, nil).(*DispatchableActIU)
	require.True(t, ok)

	u.SetAct("greet", nil, 1.0)
	assert.Equal(t, "greet", u.Act)
	assert.False(t, u.Dispatch)
}
