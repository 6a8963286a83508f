// Copyright 2024 The OracleCDC Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.
//
// SPDX-License-Identifier: Apache-2.0

// Package ident holds lightweight, comparable identifiers for Oracle
// owners and tables, generalized from the teacher's internal/util/ident
// package (see the ident.Table / ident.Schema usages throughout
// internal/source/cdc/resolver.go). Unlike the teacher, which quotes
// and case-folds per target-database dialect, this package only ever
// deals with Oracle's single case-folding rule (unquoted identifiers
// are upper-cased), since the source side of this system is always
// Oracle.
package ident

import (
	"fmt"
	"sort"
	"strings"
)

// Ident is a single, case-normalized Oracle identifier.
type Ident struct {
	raw string
}

// New normalizes s the way Oracle would an unquoted identifier: upper
// case, trimmed. Quoted identifiers (surrounded by double quotes) are
// preserved verbatim, minus the quotes.
func New(s string) Ident {
	s = strings.TrimSpace(s)
	if len(s) >= 2 && s[0] == '"' && s[len(s)-1] == '"' {
		return Ident{raw: s[1 : len(s)-1]}
	}
	return Ident{raw: strings.ToUpper(s)}
}

// Raw returns the normalized identifier text.
func (i Ident) Raw() string { return i.raw }

// Empty reports whether the identifier has no content.
func (i Ident) Empty() bool { return i.raw == "" }

func (i Ident) String() string { return i.raw }

// Schema identifies an Oracle schema (user/owner).
type Schema struct {
	Owner Ident
}

// NewSchema constructs a Schema from an owner name.
func NewSchema(owner string) Schema { return Schema{Owner: New(owner)} }

func (s Schema) Raw() string    { return s.Owner.Raw() }
func (s Schema) String() string { return s.Owner.Raw() }

// Table identifies a schema-qualified Oracle table.
type Table struct {
	Schema Schema
	Name   Ident
}

// NewTable constructs a Table from an owner and table name.
func NewTable(owner, table string) Table {
	return Table{Schema: NewSchema(owner), Name: New(table)}
}

func (t Table) String() string {
	return fmt.Sprintf("%s.%s", t.Schema.Raw(), t.Name.Raw())
}

// ParseTable parses an "OWNER.TABLE" string.
func ParseTable(s string) (Table, error) {
	parts := strings.SplitN(s, ".", 2)
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return Table{}, fmt.Errorf("ident: invalid qualified table name %q", s)
	}
	return NewTable(parts[0], parts[1]), nil
}

// Map is a comparable-keyed generic map with deterministic Range order,
// generalized from the teacher's ident.TableMap[V] (see resolver.go's
// `toApply := &ident.TableMap[[]types.Mutation]{}`). Go maps do not
// guarantee iteration order, which would violate the deterministic
// schema-snapshot round-trip law (spec.md §8); Range sorts keys by
// their String() form before visiting them.
type Map[V any] struct {
	m map[Table]V
}

// Get returns the value and whether it was present.
func (m *Map[V]) Get(t Table) (V, bool) {
	v, ok := m.m[t]
	return v, ok
}

// GetZero returns the value, or the zero value of V if absent.
func (m *Map[V]) GetZero(t Table) V {
	return m.m[t]
}

// Put stores a value.
func (m *Map[V]) Put(t Table, v V) {
	if m.m == nil {
		m.m = make(map[Table]V)
	}
	m.m[t] = v
}

// Delete removes a key.
func (m *Map[V]) Delete(t Table) {
	delete(m.m, t)
}

// Len returns the number of entries.
func (m *Map[V]) Len() int { return len(m.m) }

// Range visits every entry in a deterministic (lexicographic by
// qualified name) order.
func (m *Map[V]) Range(fn func(Table, V) error) error {
	keys := make([]Table, 0, len(m.m))
	for k := range m.m {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i].String() < keys[j].String() })
	for _, k := range keys {
		if err := fn(k, m.m[k]); err != nil {
			return err
		}
	}
	return nil
}
