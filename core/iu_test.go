// Copyright (C) 2024 right-sizer contributors
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.

package core

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeModule struct{ name string }

func (f *fakeModule) Name() string { return f.name }

type testIU struct {
	BaseIU
}

func newTestIU(creator Module, iuid string, previousIU, groundedIn IU, payload interface{}) *testIU {
	t := &testIU{}
	InitBaseIU(&t.BaseIU, creator, iuid, previousIU, groundedIn, payload)
	return t
}

func (t *testIU) Type() string { return "Test IU" }

func TestBaseIU_MetaDataInheritance(t *testing.T) {
	m := &fakeModule{name: "m"}
	g := newTestIU(m, "g1", nil, nil, "ground")
	g.MetaData()["coords"] = "1,2"

	child := newTestIU(m, "c1", nil, g, "child")

	assert.Equal(t, "1,2", child.MetaData()["coords"])
}

func TestBaseIU_ProcessedList(t *testing.T) {
	m := &fakeModule{name: "m"}
	consumer := &fakeModule{name: "consumer"}
	u := newTestIU(m, "u1", nil, nil, "x")

	assert.False(t, u.IsProcessedBy(consumer))
	require.NoError(t, u.SetProcessed(consumer))
	assert.True(t, u.IsProcessedBy(consumer))
	assert.Contains(t, u.ProcessedList(), Module(consumer))
}

func TestBaseIU_SetProcessedRejectsNil(t *testing.T) {
	u := newTestIU(&fakeModule{name: "m"}, "u1", nil, nil, nil)
	assert.Error(t, u.SetProcessed(nil))
}

func TestBaseIU_Equal(t *testing.T) {
	m := &fakeModule{name: "m"}
	a := newTestIU(m, "same-id", nil, nil, nil)
	b := newTestIU(m, "same-id", nil, nil, nil)
	c := newTestIU(m, "different-id", nil, nil, nil)

	assert.True(t, a.Equal(b))
	assert.False(t, a.Equal(c))
	assert.False(t, a.Equal(nil))
}

func TestBaseIU_AgeAndOlderThan(t *testing.T) {
	restore := fakeNow(time.Unix(1000, 0))
	defer restore()

	u := newTestIU(&fakeModule{name: "m"}, "u1", nil, nil, nil)

	nowFunc = func() time.Time { return time.Unix(1005, 0) }
	assert.Equal(t, 5*time.Second, u.Age())
	assert.True(t, u.OlderThan(4*time.Second))
	assert.False(t, u.OlderThan(6*time.Second))
}

func TestLineageDepthTruncation(t *testing.T) {
	m := &fakeModule{name: "m"}
	var head IU
	var prev IU
	for i := 0; i < 60; i++ {
		next := newTestIU(m, fmt.Sprintf("u%d", i), prev, nil, i)
		if head == nil {
			head = next
		}
		prev = next
	}

	// prev is now the 60th IU constructed; walking previous_iu from it must
	// terminate after exactly 50 hops.
	hops := 0
	cur := prev.PreviousIU()
	for cur != nil {
		hops++
		cur = cur.PreviousIU()
	}
	assert.Equal(t, 50, hops)
}

func fakeNow(t time.Time) func() {
	orig := nowFunc
	nowFunc = func() time.Time { return t }
	return func() { nowFunc = orig }
}
