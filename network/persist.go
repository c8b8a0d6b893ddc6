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

package network

import (
	"encoding/gob"
	"os"
	"sync"
	"time"

	"retico-go/errors"
	"retico-go/module"
	"retico-go/retry"
)

// persistRetryer guards Save/Load's filesystem I/O against the transient
// failures retry.IsRetryableNetworkError recognizes (e.g. a momentarily
// unavailable mount); a gob decode or encode failure is a permanent error
// and is never retried.
var persistRetryer = retry.New(retry.Config{
	MaxRetries:          2,
	InitialDelay:        20 * time.Millisecond,
	MaxDelay:            200 * time.Millisecond,
	BackoffFactor:       2.0,
	RandomizationFactor: 0.1,
	Timeout:             2 * time.Second,
}, nil)

func init() {
	// Only primitive-typed constructor arguments are ever recorded (see
	// Save and Factory), so these are the only dynamic types a
	// gob-encoded Args map will ever hold.
	gob.Register(int(0))
	gob.Register(float64(0))
	gob.Register(bool(false))
	gob.Register("")
	gob.Register(map[string]interface{}{})
}

// Factory reconstructs one module from its recorded class identifier and
// primitive-typed constructor arguments. This is the "construct from
// primitive mapping" adapter: each module type owns its own factory rather
// than the controller reflecting over field names.
type Factory func(args map[string]interface{}) (*module.Module, error)

var (
	registryMu sync.RWMutex
	registry   = map[string]Factory{}
)

// RegisterModuleClass makes classID reconstructable by Load. Module
// packages call this from an init() the way they'd register a flag or a
// codec.
func RegisterModuleClass(classID string, factory Factory) {
	registryMu.Lock()
	defer registryMu.Unlock()
	registry[classID] = factory
}

func lookupFactory(classID string) (Factory, bool) {
	registryMu.RLock()
	defer registryMu.RUnlock()
	f, ok := registry[classID]
	return f, ok
}

// moduleRecord is one module's persisted identity and constructor
// arguments, restricted to primitive-typed values per the network file
// format.
type moduleRecord struct {
	Name     string
	ClassID  string
	Args     map[string]interface{}
	Identity string
	MetaData map[string]interface{}
}

// connectionRecord is one persisted edge, ordered (consumer, provider) to
// match Connection and the source's own tuple order.
type connectionRecord struct {
	Consumer string
	Provider string
}

type networkFile struct {
	Modules     []moduleRecord
	Connections []connectionRecord
}

// Save discovers the union of the graphs reachable from seeds and writes
// it to path+".rtc". Only modules constructed with a ClassID (via
// module.Options) round-trip through Load; a module with no ClassID is
// still written with an empty one, which will fail to reconstruct.
// Segmented networks pass one seed per component in a single call.
func Save(path string, seeds ...*module.Module) error {
	modules, connections := Discover(seeds...)

	file := networkFile{}
	for _, m := range modules {
		args := map[string]interface{}{}
		for k, v := range m.Args() {
			switch v.(type) {
			case int, float64, bool, string, map[string]interface{}:
				args[k] = v
			}
		}
		file.Modules = append(file.Modules, moduleRecord{
			Name:     m.Name(),
			ClassID:  m.ClassID(),
			Args:     args,
			Identity: m.Identity(),
			MetaData: m.MetaData(),
		})
	}
	for _, c := range connections {
		file.Connections = append(file.Connections, connectionRecord{
			Consumer: c.Consumer.Identity(),
			Provider: c.Provider.Identity(),
		})
	}

	rtcPath := path + ".rtc"
	err := persistRetryer.Do("network.save", func() error {
		f, err := os.Create(rtcPath)
		if err != nil {
			return retry.WrapNetworkError(err)
		}
		defer f.Close()
		if err := gob.NewEncoder(f).Encode(file); err != nil {
			return retry.NewRetryableError(err, false)
		}
		return nil
	})
	if err != nil {
		return errors.NetworkErrorf("save", err, "writing network to %q", rtcPath)
	}
	return nil
}

// Load reconstructs a network previously written by Save, rebuilding every
// module via its registered Factory and replaying subscriptions in the
// recorded order. It returns the reconstructed modules and connections;
// the caller is responsible for calling Run once ready.
func Load(path string) ([]*module.Module, []Connection, error) {
	var file networkFile
	err := persistRetryer.Do("network.load", func() error {
		f, err := os.Open(path)
		if err != nil {
			return retry.WrapNetworkError(err)
		}
		defer f.Close()
		if err := gob.NewDecoder(f).Decode(&file); err != nil {
			return retry.NewRetryableError(err, false)
		}
		return nil
	})
	if err != nil {
		return nil, nil, errors.NetworkErrorf("load", err, "reading %q", path)
	}

	byIdentity := make(map[string]*module.Module, len(file.Modules))
	var modules []*module.Module
	for _, rec := range file.Modules {
		factory, ok := lookupFactory(rec.ClassID)
		if !ok {
			return nil, nil, errors.Newf(errors.CategoryNetwork, "load", "no registered factory for class %q (module %q)", rec.ClassID, rec.Name)
		}
		m, err := factory(rec.Args)
		if err != nil {
			return nil, nil, errors.NetworkErrorf("load", err, "reconstructing module %q", rec.Name)
		}
		for k, v := range rec.MetaData {
			m.MetaData()[k] = v
		}
		byIdentity[rec.Identity] = m
		modules = append(modules, m)
	}

	var connections []Connection
	for _, rec := range file.Connections {
		provider, ok := byIdentity[rec.Provider]
		if !ok {
			return nil, nil, errors.Newf(errors.CategoryNetwork, "load", "connection references unknown provider identity %q", rec.Provider)
		}
		consumer, ok := byIdentity[rec.Consumer]
		if !ok {
			return nil, nil, errors.Newf(errors.CategoryNetwork, "load", "connection references unknown consumer identity %q", rec.Consumer)
		}
		if _, err := provider.Subscribe(consumer); err != nil {
			return nil, nil, errors.NetworkErrorf("load", err, "replaying subscription %q -> %q", provider.Name(), consumer.Name())
		}
		connections = append(connections, Connection{Consumer: consumer, Provider: provider})
	}

	return modules, connections, nil
}
