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

import (
	"sync"
	"time"

	"retico-go/errors"
)

// MaxDepth bounds how far a previous_iu or grounded_in chain may be
// followed. Construction truncates both chains at this depth so long
// pipelines do not retain unbounded IU history.
const MaxDepth = 50

// Module is the narrow capability an IU needs from its owning module:
// identity for processed-list membership and display in error messages.
// The full module runtime lives in package module; this interface exists
// so core has no import-cycle dependency on it.
type Module interface {
	Name() string
}

// IU is the common contract every incremental unit subtype satisfies.
// Concrete subtypes embed BaseIU and override Type().
type IU interface {
	IUID() string
	Creator() Module
	PreviousIU() IU
	SetPreviousIU(IU)
	GroundedIn() IU
	SetGroundedIn(IU)
	Type() string

	CreatedAt() time.Time
	Age() time.Duration
	OlderThan(d time.Duration) bool

	ProcessedList() []Module
	SetProcessed(m Module) error
	IsProcessedBy(m Module) bool

	Committed() bool
	SetCommitted(bool)
	Revoked() bool
	SetRevoked(bool)

	MetaData() map[string]interface{}
	Payload() interface{}
	SetPayload(interface{})

	Equal(other IU) bool
}

// IUClass identifies membership in a declared input/output IU class — the
// Go analogue of an isinstance check against a module's declared types.
type IUClass func(IU) bool

// ClassOf returns an IUClass matching any IU whose concrete type is T.
// Typical usage: ClassOf[*iu.TextIU]().
func ClassOf[T IU]() IUClass {
	return func(v IU) bool {
		_, ok := v.(T)
		return ok
	}
}

// BaseIU implements the common IU bookkeeping: lineage pointers, the
// depth-bound truncation, the processed-by set guarded by a per-IU lock,
// and the committed/revoked flags. Subtypes embed BaseIU and add typed
// payload fields plus their own Type() method.
type BaseIU struct {
	mu sync.Mutex

	iuid       string
	creator    Module
	previousIU IU
	groundedIn IU

	payload  interface{}
	metaData map[string]interface{}

	committed bool
	revoked   bool

	createdAt     time.Time
	processedList []Module
}

// InitBaseIU initializes b in place. Subtype constructors call this instead
// of returning a *BaseIU directly, because the lineage truncation below
// only needs the already-constructed ancestor chain, not self's own final
// concrete type.
func InitBaseIU(b *BaseIU, creator Module, iuid string, previousIU, groundedIn IU, payload interface{}) {
	b.creator = creator
	b.iuid = iuid
	b.previousIU = previousIU
	b.groundedIn = groundedIn
	b.payload = payload
	b.createdAt = nowFunc()

	b.metaData = map[string]interface{}{}
	if groundedIn != nil {
		for k, v := range groundedIn.MetaData() {
			b.metaData[k] = v
		}
	}

	truncateChain(previousIU, IU.PreviousIU, IU.SetPreviousIU)
	truncateChain(groundedIn, IU.GroundedIn, IU.SetGroundedIn)
}

// nowFunc is a seam for tests; production code always uses time.Now.
var nowFunc = time.Now

// truncateChain walks head's chain and severs the backlink of the ancestor
// that sits exactly MaxDepth hops away from the IU under construction (head
// is that IU's immediate ancestor, depth 0). The trigger depth is
// MaxDepth-1, one less than the naive per-hop counter: severing is applied
// repeatedly across successive constructions as the chain grows, and
// triggering at MaxDepth would leave the steady-state reachable chain one
// node longer than MaxDepth once the whole lineage stabilizes.
func truncateChain(head IU, next func(IU) IU, sever func(IU, IU)) {
	depth := 0
	cur := head
	for cur != nil {
		if depth == MaxDepth-1 {
			sever(cur, nil)
		}
		cur = next(cur)
		depth++
	}
}

func (b *BaseIU) IUID() string           { return b.iuid }
func (b *BaseIU) Creator() Module        { return b.creator }
func (b *BaseIU) PreviousIU() IU         { return b.previousIU }
func (b *BaseIU) SetPreviousIU(iu IU)    { b.previousIU = iu }
func (b *BaseIU) GroundedIn() IU         { return b.groundedIn }
func (b *BaseIU) SetGroundedIn(iu IU)    { b.groundedIn = iu }
func (b *BaseIU) CreatedAt() time.Time   { return b.createdAt }
func (b *BaseIU) Payload() interface{}   { return b.payload }
func (b *BaseIU) SetPayload(p interface{}) { b.payload = p }

// MetaData returns the live map; callers must not mutate it concurrently
// with other readers. It is populated once at construction by shallow-
// copying grounded_in's meta data, matching the inheritance rule in the
// data model.
func (b *BaseIU) MetaData() map[string]interface{} { return b.metaData }

func (b *BaseIU) Committed() bool     { return b.committed }
func (b *BaseIU) SetCommitted(c bool) { b.committed = c }
func (b *BaseIU) Revoked() bool       { return b.revoked }
func (b *BaseIU) SetRevoked(r bool)   { b.revoked = r }

func (b *BaseIU) Age() time.Duration { return nowFunc().Sub(b.createdAt) }

func (b *BaseIU) OlderThan(d time.Duration) bool { return b.Age() > d }

func (b *BaseIU) ProcessedList() []Module {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]Module(nil), b.processedList...)
}

func (b *BaseIU) SetProcessed(m Module) error {
	if m == nil {
		return errors.TypeErrorf("set_processed", "given object is not a module")
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	b.processedList = append(b.processedList, m)
	return nil
}

func (b *BaseIU) IsProcessedBy(m Module) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, p := range b.processedList {
		if p == m {
			return true
		}
	}
	return false
}

// Type satisfies the IU interface for BaseIU itself; every concrete
// subtype must shadow this with its own display name.
func (b *BaseIU) Type() string { return "Incremental Unit" }

// Equal implements the identity rule from the data model: two IUs are
// equal iff their iuid matches.
func (b *BaseIU) Equal(other IU) bool {
	if other == nil {
		return false
	}
	return b.iuid == other.IUID()
}
