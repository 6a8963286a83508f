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

package schema

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"
	"strings"

	jsoniter "github.com/json-iterator/go"
	"github.com/pkg/errors"

	"github.com/bersler/oraclecdc/internal/types"
)

var snapshotJSON = jsoniter.ConfigCompatibleWithStandardLibrary

// element is one registered addElement pattern (spec.md §4.C): a
// regex over owner.table the user wants captured.
type element struct {
	ownerPattern *regexp.Regexp
	tablePattern *regexp.Regexp
	option       ElementOption
	explicitKeys []string
}

// Cache is the schema cache described in spec.md §3/§4.C. A single
// Cache instance is owned by one Analyzer goroutine; nothing in this
// package synchronizes access because the caller contract (spec.md §5)
// guarantees single-threaded mutation.
type Cache struct {
	database string

	users        *table[uint32, SysUser]
	objs         *table[uint32, SysObj]
	tabs         *table[uint32, SysTab]
	cols         *table[string, SysCol]
	ccols        *table[string, SysCCol]
	cdefs        *table[uint32, SysCDef]
	ecols        *table[string, SysECol]
	deferredStg  *table[uint32, SysDeferredStg]
	tabParts     *table[uint32, SysTabPart]
	tabSubParts  *table[uint32, SysTabSubPart]
	tabComParts  *table[uint32, SysTabComPart]

	dbCharsetID    uint32
	nCharCharsetID uint32

	elements []element

	// objectMap holds one OracleObject per captured base-table obj#.
	objectMap map[uint32]*OracleObject
	// partitionMap holds one entry per captured obj# reachable via a
	// partition/subpartition, pointing at the base table's object.
	partitionMap map[uint32]*OracleObject

	snapshotDir string
	lastScn     types.SCN
}

// New constructs an empty Cache for the named database, writing
// snapshot/checkpoint files under dir.
func New(database, snapshotDir string) *Cache {
	s := &Cache{
		database:     database,
		snapshotDir:  snapshotDir,
		objectMap:    make(map[uint32]*OracleObject),
		partitionMap: make(map[uint32]*OracleObject),
		lastScn:      types.ZeroSCN,
	}
	s.users = newTable(func(u SysUser) uint32 { return u.UserNo })
	s.objs = newTable(func(o SysObj) uint32 { return o.Obj })
	s.objs.addSecondary("owner", func(o SysObj) string { return fmt.Sprint(o.Owner) })
	s.tabs = newTable(func(t SysTab) uint32 { return t.Obj })
	s.tabs.addSecondary("obj", func(t SysTab) string { return fmt.Sprint(t.Obj) })
	s.cols = newTable(func(c SysCol) string { return fmt.Sprintf("%d.%d", c.Obj, c.Col) })
	s.cols.addSecondary("obj", func(c SysCol) string { return fmt.Sprint(c.Obj) })
	s.ccols = newTable(func(c SysCCol) string { return fmt.Sprintf("%d.%d", c.Con, c.IntCol) })
	s.ccols.addSecondary("obj", func(c SysCCol) string { return fmt.Sprint(c.Obj) })
	s.cdefs = newTable(func(c SysCDef) uint32 { return c.Con })
	s.cdefs.addSecondary("obj", func(c SysCDef) string { return fmt.Sprint(c.Obj) })
	s.ecols = newTable(func(e SysECol) string { return fmt.Sprintf("%d.%d", e.TabObj, e.ColNum) })
	s.deferredStg = newTable(func(d SysDeferredStg) uint32 { return d.Obj })
	s.tabParts = newTable(func(p SysTabPart) uint32 { return p.Obj })
	s.tabParts.addSecondary("bo", func(p SysTabPart) string { return fmt.Sprint(p.Bo) })
	s.tabSubParts = newTable(func(p SysTabSubPart) uint32 { return p.Obj })
	s.tabSubParts.addSecondary("pobj", func(p SysTabSubPart) string { return fmt.Sprint(p.PObj) })
	s.tabComParts = newTable(func(p SysTabComPart) uint32 { return p.Obj })
	s.tabComParts.addSecondary("bo", func(p SysTabComPart) string { return fmt.Sprint(p.Bo) })
	return s
}

// AddElement registers a regex match pattern for tables the user wants
// captured, per spec.md §4.C's addElement(owner, table, options).
func (s *Cache) AddElement(ownerPattern, tablePattern string, opt ElementOption, explicitKeys []string) error {
	op, err := compileOraclePattern(ownerPattern)
	if err != nil {
		return errors.Wrapf(err, "schema: invalid owner pattern %q", ownerPattern)
	}
	tp, err := compileOraclePattern(tablePattern)
	if err != nil {
		return errors.Wrapf(err, "schema: invalid table pattern %q", tablePattern)
	}
	s.elements = append(s.elements, element{ownerPattern: op, tablePattern: tp, option: opt, explicitKeys: explicitKeys})
	return nil
}

// compileOraclePattern translates an Oracle-style '%'/'_' glob (as
// used in the tables[] configuration entries) into a Go regexp.
func compileOraclePattern(pattern string) (*regexp.Regexp, error) {
	var b strings.Builder
	b.WriteByte('^')
	for _, r := range pattern {
		switch r {
		case '%':
			b.WriteString(".*")
		case '_':
			b.WriteString(".")
		default:
			b.WriteString(regexp.QuoteMeta(string(r)))
		}
	}
	b.WriteByte('$')
	return regexp.Compile(b.String())
}

// CheckDict is the O(1) lookup the Analyzer makes on every DML,
// spec.md §4.C's checkDict(obj, dataObj).
func (s *Cache) CheckDict(obj, dataObj uint32) *OracleObject {
	if oo, ok := s.objectMap[obj]; ok {
		return oo
	}
	if oo, ok := s.partitionMap[obj]; ok {
		return oo
	}
	_ = dataObj // matched by obj# alone; dataObj is validated by the caller against oo.DataObj
	return nil
}

// AddToDict registers obj (and any of its partitions/subpartitions)
// into objectMap/partitionMap if it matches a registered element and
// materializes successfully.
func (s *Cache) AddToDict(obj uint32) error {
	row, ok := s.objs.ByKey(obj)
	if !ok {
		return nil
	}
	return s.addObjectToDict(row)
}

func (s *Cache) addObjectToDict(row SysObj) error {
	user, ok := s.users.ByKey(row.Owner)
	if !ok {
		return nil
	}
	matched := element{}
	found := false
	for _, e := range s.elements {
		if e.ownerPattern.MatchString(user.Name) && e.tablePattern.MatchString(row.Name) {
			matched = e
			found = true
			break
		}
	}
	if !found {
		return nil
	}

	oo, err := s.materialize(row, matched.option, matched.explicitKeys)
	if err != nil {
		return err
	}
	if oo == nil {
		return nil
	}
	s.objectMap[row.Obj] = oo

	for _, p := range s.tabParts.BySecondary("bo", fmt.Sprint(row.Obj)) {
		s.partitionMap[p.Obj] = oo
	}
	for _, cp := range s.tabComParts.BySecondary("bo", fmt.Sprint(row.Obj)) {
		s.partitionMap[cp.Obj] = oo
		for _, sp := range s.tabSubParts.BySecondary("pobj", fmt.Sprint(cp.Obj)) {
			s.partitionMap[sp.Obj] = oo
		}
	}
	return nil
}

// RemoveFromDict drops obj (and any partitions pointing at it) from
// objectMap/partitionMap.
func (s *Cache) RemoveFromDict(obj uint32) {
	delete(s.objectMap, obj)
	for k, v := range s.partitionMap {
		if v.Obj == obj {
			delete(s.partitionMap, k)
		}
	}
}

// RebuildMaps drops OracleObjects for every touched user/table and
// re-materializes them using the registered patterns, per spec.md
// §4.C's rebuildMaps().
func (s *Cache) RebuildMaps() error {
	touchedObjs := map[uint32]bool{}
	s.objs.All(func(rowID types.RowId, o SysObj) {
		if s.objs.Touched(rowID) {
			touchedObjs[o.Obj] = true
		}
	})
	s.tabs.All(func(rowID types.RowId, t SysTab) {
		if s.tabs.Touched(rowID) {
			touchedObjs[t.Obj] = true
		}
	})
	s.cols.All(func(rowID types.RowId, c SysCol) {
		if s.cols.Touched(rowID) {
			touchedObjs[c.Obj] = true
		}
	})
	s.ccols.All(func(rowID types.RowId, c SysCCol) {
		if s.ccols.Touched(rowID) {
			touchedObjs[c.Obj] = true
		}
	})
	s.cdefs.All(func(rowID types.RowId, c SysCDef) {
		if s.cdefs.Touched(rowID) {
			touchedObjs[c.Obj] = true
		}
	})

	for obj := range touchedObjs {
		s.RemoveFromDict(obj)
	}
	for obj := range touchedObjs {
		row, ok := s.objs.ByKey(obj)
		if !ok {
			continue
		}
		if err := s.addObjectToDict(row); err != nil {
			return err
		}
	}

	s.objs.ClearTouched()
	s.tabs.ClearTouched()
	s.cols.ClearTouched()
	s.ccols.ClearTouched()
	s.cdefs.ClearTouched()
	return nil
}

// snapshotFile is the on-disk representation of a
// <database>-schema-<scn>.json file, per spec.md §3/§6.
type snapshotFile struct {
	Database       string           `json:"database"`
	Scn            uint64           `json:"scn"`
	DbCharsetID    uint32           `json:"dbCharsetId"`
	NCharCharsetID uint32           `json:"nCharCharsetId"`
	SysUser        []SysUser        `json:"sysUser"`
	SysObj         []SysObj         `json:"sysObj"`
	SysTab         []SysTab         `json:"sysTab"`
	SysCol         []SysCol         `json:"sysCol"`
	SysCCol        []SysCCol        `json:"sysCCol"`
	SysCDef        []SysCDef        `json:"sysCDef"`
	SysECol        []SysECol        `json:"sysECol"`
	SysDeferredStg []SysDeferredStg `json:"sysDeferredStg"`
	SysTabPart     []SysTabPart     `json:"sysTabPart"`
	SysTabSubPart  []SysTabSubPart  `json:"sysTabSubPart"`
	SysTabComPart  []SysTabComPart  `json:"sysTabComPart"`
}

func snapshotPath(dir, database string, scn types.SCN) string {
	return filepath.Join(dir, fmt.Sprintf("%s-schema-%d.json", database, uint64(scn)))
}

// LoadSnapshot reads the newest snapshot file whose snapshotScn ≤ scn,
// populating every SysXxx table and rebuilding objectMap/partitionMap.
// It reports false if no eligible snapshot exists.
func (s *Cache) LoadSnapshot(scn types.SCN) (bool, error) {
	candidates, err := s.listSnapshots()
	if err != nil {
		return false, err
	}
	var best types.SCN = types.ZeroSCN
	var bestFound bool
	for _, c := range candidates {
		if c <= scn && (!bestFound || c.Compare(best) > 0) {
			best = c
			bestFound = true
		}
	}
	if !bestFound {
		return false, nil
	}

	raw, err := os.ReadFile(snapshotPath(s.snapshotDir, s.database, best))
	if err != nil {
		return false, errors.Wrap(err, "schema: reading snapshot file")
	}
	var f snapshotFile
	if err := snapshotJSON.Unmarshal(raw, &f); err != nil {
		return false, errors.Wrap(err, "schema: decoding snapshot file")
	}

	s.dbCharsetID = f.DbCharsetID
	s.nCharCharsetID = f.NCharCharsetID
	for _, u := range f.SysUser {
		s.users.Insert(u.RowID, u)
	}
	for _, o := range f.SysObj {
		s.objs.Insert(o.RowID, o)
	}
	for _, t := range f.SysTab {
		s.tabs.Insert(t.RowID, t)
	}
	for _, c := range f.SysCol {
		s.cols.Insert(c.RowID, c)
	}
	for _, c := range f.SysCCol {
		s.ccols.Insert(c.RowID, c)
	}
	for _, c := range f.SysCDef {
		s.cdefs.Insert(c.RowID, c)
	}
	for _, e := range f.SysECol {
		s.ecols.Insert(e.RowID, e)
	}
	for _, d := range f.SysDeferredStg {
		s.deferredStg.Insert(d.RowID, d)
	}
	for _, p := range f.SysTabPart {
		s.tabParts.Insert(p.RowID, p)
	}
	for _, p := range f.SysTabSubPart {
		s.tabSubParts.Insert(p.RowID, p)
	}
	for _, p := range f.SysTabComPart {
		s.tabComParts.Insert(p.RowID, p)
	}

	s.lastScn = best

	var rebuildErr error
	s.objs.All(func(_ types.RowId, o SysObj) {
		if rebuildErr != nil {
			return
		}
		rebuildErr = s.addObjectToDict(o)
	})
	s.objs.ClearTouched()
	s.tabs.ClearTouched()
	s.cols.ClearTouched()
	s.ccols.ClearTouched()
	s.cdefs.ClearTouched()
	return true, rebuildErr
}

func (s *Cache) listSnapshots() ([]types.SCN, error) {
	entries, err := os.ReadDir(s.snapshotDir)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, errors.Wrap(err, "schema: listing snapshot directory")
	}
	prefix := s.database + "-schema-"
	var out []types.SCN
	for _, e := range entries {
		name := e.Name()
		if !strings.HasPrefix(name, prefix) || !strings.HasSuffix(name, ".json") {
			continue
		}
		numStr := strings.TrimSuffix(strings.TrimPrefix(name, prefix), ".json")
		n, err := strconv.ParseUint(numStr, 10, 64)
		if err != nil {
			continue
		}
		out = append(out, types.SCN(n))
	}
	return out, nil
}

// WriteSnapshot serializes current state tagged at scn, pruning older
// snapshots unless keep is set.
func (s *Cache) WriteSnapshot(scn types.SCN, keep bool) error {
	f := snapshotFile{
		Database:       s.database,
		Scn:            uint64(scn),
		DbCharsetID:    s.dbCharsetID,
		NCharCharsetID: s.nCharCharsetID,
	}
	s.users.All(func(_ types.RowId, u SysUser) { f.SysUser = append(f.SysUser, u) })
	s.objs.All(func(_ types.RowId, o SysObj) { f.SysObj = append(f.SysObj, o) })
	s.tabs.All(func(_ types.RowId, t SysTab) { f.SysTab = append(f.SysTab, t) })
	s.cols.All(func(_ types.RowId, c SysCol) { f.SysCol = append(f.SysCol, c) })
	s.ccols.All(func(_ types.RowId, c SysCCol) { f.SysCCol = append(f.SysCCol, c) })
	s.cdefs.All(func(_ types.RowId, c SysCDef) { f.SysCDef = append(f.SysCDef, c) })
	s.ecols.All(func(_ types.RowId, e SysECol) { f.SysECol = append(f.SysECol, e) })
	s.deferredStg.All(func(_ types.RowId, d SysDeferredStg) { f.SysDeferredStg = append(f.SysDeferredStg, d) })
	s.tabParts.All(func(_ types.RowId, p SysTabPart) { f.SysTabPart = append(f.SysTabPart, p) })
	s.tabSubParts.All(func(_ types.RowId, p SysTabSubPart) { f.SysTabSubPart = append(f.SysTabSubPart, p) })
	s.tabComParts.All(func(_ types.RowId, p SysTabComPart) { f.SysTabComPart = append(f.SysTabComPart, p) })

	sortSnapshot(&f)

	raw, err := snapshotJSON.MarshalIndent(f, "", "  ")
	if err != nil {
		return errors.Wrap(err, "schema: encoding snapshot")
	}

	final := snapshotPath(s.snapshotDir, s.database, scn)
	tmp := final + ".tmp"
	if err := os.WriteFile(tmp, raw, 0o644); err != nil {
		return errors.Wrap(err, "schema: writing snapshot temp file")
	}
	if err := os.Rename(tmp, final); err != nil {
		return errors.Wrap(err, "schema: renaming snapshot temp file")
	}
	s.lastScn = scn

	if !keep {
		return s.pruneSnapshots(scn)
	}
	return nil
}

func (s *Cache) pruneSnapshots(keep types.SCN) error {
	candidates, err := s.listSnapshots()
	if err != nil {
		return err
	}
	for _, c := range candidates {
		if c != keep {
			_ = os.Remove(snapshotPath(s.snapshotDir, s.database, c))
		}
	}
	return nil
}

// sortSnapshot orders every table slice by rowid string so that two
// snapshots of identical logical state serialize byte-for-byte
// identically regardless of map iteration order.
func sortSnapshot(f *snapshotFile) {
	sort.Slice(f.SysUser, func(i, j int) bool { return f.SysUser[i].RowID.String() < f.SysUser[j].RowID.String() })
	sort.Slice(f.SysObj, func(i, j int) bool { return f.SysObj[i].RowID.String() < f.SysObj[j].RowID.String() })
	sort.Slice(f.SysTab, func(i, j int) bool { return f.SysTab[i].RowID.String() < f.SysTab[j].RowID.String() })
	sort.Slice(f.SysCol, func(i, j int) bool { return f.SysCol[i].RowID.String() < f.SysCol[j].RowID.String() })
	sort.Slice(f.SysCCol, func(i, j int) bool { return f.SysCCol[i].RowID.String() < f.SysCCol[j].RowID.String() })
	sort.Slice(f.SysCDef, func(i, j int) bool { return f.SysCDef[i].RowID.String() < f.SysCDef[j].RowID.String() })
	sort.Slice(f.SysECol, func(i, j int) bool { return f.SysECol[i].RowID.String() < f.SysECol[j].RowID.String() })
	sort.Slice(f.SysDeferredStg, func(i, j int) bool {
		return f.SysDeferredStg[i].RowID.String() < f.SysDeferredStg[j].RowID.String()
	})
	sort.Slice(f.SysTabPart, func(i, j int) bool { return f.SysTabPart[i].RowID.String() < f.SysTabPart[j].RowID.String() })
	sort.Slice(f.SysTabSubPart, func(i, j int) bool {
		return f.SysTabSubPart[i].RowID.String() < f.SysTabSubPart[j].RowID.String()
	})
	sort.Slice(f.SysTabComPart, func(i, j int) bool {
		return f.SysTabComPart[i].RowID.String() < f.SysTabComPart[j].RowID.String()
	})
}

// Tables exposes the raw SysXxx tables to the System-Transaction
// engine (internal/systran), which is the only other component
// allowed to mutate them.
func (s *Cache) Tables() *Tables {
	return &Tables{
		Users:       s.users,
		Objs:        s.objs,
		Tabs:        s.tabs,
		Cols:        s.cols,
		CCols:       s.ccols,
		CDefs:       s.cdefs,
		ECols:       s.ecols,
		DeferredStg: s.deferredStg,
		TabParts:    s.tabParts,
		TabSubParts: s.tabSubParts,
		TabComParts: s.tabComParts,
	}
}

// Tables is a read/write handle onto the cache's raw dictionary
// tables, used by internal/systran to apply DML to SYS.xxx rows.
type Tables struct {
	Users       *table[uint32, SysUser]
	Objs        *table[uint32, SysObj]
	Tabs        *table[uint32, SysTab]
	Cols        *table[string, SysCol]
	CCols       *table[string, SysCCol]
	CDefs       *table[uint32, SysCDef]
	ECols       *table[string, SysECol]
	DeferredStg *table[uint32, SysDeferredStg]
	TabParts    *table[uint32, SysTabPart]
	TabSubParts *table[uint32, SysTabSubPart]
	TabComParts *table[uint32, SysTabComPart]
}

// SetCharsets records the database's default and nchar default
// character sets, resolved once at startup from the dictionary
// source.
func (s *Cache) SetCharsets(dbCharsetID, nCharCharsetID uint32) {
	s.dbCharsetID = dbCharsetID
	s.nCharCharsetID = nCharCharsetID
}

// LastScn reports the SCN the currently loaded snapshot was tagged
// with (ZeroSCN if no snapshot has ever been loaded or written).
func (s *Cache) LastScn() types.SCN { return s.lastScn }

// DatabaseName returns the database name this cache was constructed
// with, used to namespace checkpoint and snapshot files.
func (s *Cache) DatabaseName() string { return s.database }
