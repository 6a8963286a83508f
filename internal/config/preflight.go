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

package config

import (
	"github.com/pkg/errors"

	"github.com/bersler/oraclecdc/internal/types"
)

// Preflight validates the whole configuration tree, composing each
// source's and target's own Preflight the way
// internal/source/server/config.go composes c.CDC.Preflight before
// returning control to the caller.
func (c *Config) Preflight() error {
	if c.Version == "" {
		return types.NewConfigurationError(errors.New("config: version is required"))
	}
	if len(c.Sources) == 0 {
		return types.NewConfigurationError(errors.New("config: at least one source is required"))
	}
	if len(c.Targets) == 0 {
		return types.NewConfigurationError(errors.New("config: at least one target is required"))
	}

	aliases := make(map[string]bool, len(c.Sources))
	for i := range c.Sources {
		if err := c.Sources[i].Preflight(); err != nil {
			return err
		}
		if aliases[c.Sources[i].Alias] {
			return types.NewConfigurationError(errors.Errorf("config: duplicate source alias %q", c.Sources[i].Alias))
		}
		aliases[c.Sources[i].Alias] = true
	}

	targetAliases := make(map[string]bool, len(c.Targets))
	for i := range c.Targets {
		if err := c.Targets[i].Preflight(); err != nil {
			return err
		}
		if targetAliases[c.Targets[i].Alias] {
			return types.NewConfigurationError(errors.Errorf("config: duplicate target alias %q", c.Targets[i].Alias))
		}
		targetAliases[c.Targets[i].Alias] = true
		if !aliases[c.Targets[i].Source] {
			return types.NewConfigurationError(errors.Errorf("config: target %q refers to unknown source %q", c.Targets[i].Alias, c.Targets[i].Source))
		}
	}
	return nil
}

// Preflight validates one source entry.
func (s *Source) Preflight() error {
	if s.Alias == "" {
		return types.NewConfigurationError(errors.New("config: source alias is required"))
	}
	if s.Name == "" {
		return types.NewConfigurationError(errors.Errorf("config: source %q: name is required", s.Alias))
	}
	if err := s.Reader.Preflight(); err != nil {
		return errors.Wrapf(err, "config: source %q", s.Alias)
	}
	if err := s.Format.Preflight(); err != nil {
		return errors.Wrapf(err, "config: source %q", s.Alias)
	}
	if s.MemoryMinMB > 0 && s.MemoryMaxMB > 0 && s.MemoryMinMB > s.MemoryMaxMB {
		return types.NewConfigurationError(errors.Errorf("config: source %q: memory-min-mb exceeds memory-max-mb", s.Alias))
	}
	return nil
}

// Preflight validates one reader sub-object.
func (r *ReaderConfig) Preflight() error {
	switch r.Type {
	case ReaderOnline, ReaderOnlineStandby, ReaderOffline, ReaderASM, ReaderASMStandby, ReaderBatch:
	default:
		return types.NewConfigurationError(errors.Errorf("config: reader: unknown type %q", r.Type))
	}
	if r.Type == ReaderBatch && len(r.RedoLogs) == 0 {
		return types.NewConfigurationError(errors.New("config: reader: type \"batch\" requires redo-logs"))
	}
	if (r.Type == ReaderASM || r.Type == ReaderASMStandby) && r.ServerASM == "" {
		return types.NewConfigurationError(errors.Errorf("config: reader: type %q requires server-asm", r.Type))
	}
	if r.Type != ReaderBatch && r.Server == "" {
		return types.NewConfigurationError(errors.Errorf("config: reader: type %q requires server", r.Type))
	}
	return nil
}

// Preflight validates one format sub-object.
func (f *FormatConfig) Preflight() error {
	switch f.Type {
	case FormatJSON, FormatProtobuf, "":
	default:
		return types.NewConfigurationError(errors.Errorf("config: format: unknown type %q", f.Type))
	}
	for name, v := range map[string]int{"message": f.Message, "xid": f.Xid, "unknown": f.Unknown, "unknown-type": f.UnknownType} {
		if v < 0 || v > 1 {
			return types.NewConfigurationError(errors.Errorf("config: format.%s must be 0 or 1, got %d", name, v))
		}
	}
	if f.Timestamp < 0 || f.Timestamp > 3 {
		return types.NewConfigurationError(errors.Errorf("config: format.timestamp must be 0-3, got %d", f.Timestamp))
	}
	if f.Char < 0 || f.Char > 3 {
		return types.NewConfigurationError(errors.Errorf("config: format.char must be 0-3, got %d", f.Char))
	}
	if f.Scn < 0 || f.Scn > 3 {
		return types.NewConfigurationError(errors.Errorf("config: format.scn must be 0-3, got %d", f.Scn))
	}
	if f.Schema < 0 || f.Schema > 7 {
		return types.NewConfigurationError(errors.Errorf("config: format.schema must be 0-7, got %d", f.Schema))
	}
	if f.Column < 0 || f.Column > 2 {
		return types.NewConfigurationError(errors.Errorf("config: format.column must be 0-2, got %d", f.Column))
	}
	return nil
}

// Preflight validates one target entry, including the writer
// sub-object's mutually-exclusive start-position fields and
// sink-specific requirements.
func (t *Target) Preflight() error {
	if t.Alias == "" {
		return types.NewConfigurationError(errors.New("config: target alias is required"))
	}
	if t.Source == "" {
		return types.NewConfigurationError(errors.Errorf("config: target %q: source is required", t.Alias))
	}
	if err := t.Writer.Preflight(); err != nil {
		return errors.Wrapf(err, "config: target %q", t.Alias)
	}
	return nil
}

// Preflight validates one writer sub-object.
func (w *WriterConfig) Preflight() error {
	switch w.Type {
	case WriterFile, WriterKafka, WriterZeroMQ, WriterNetwork:
	default:
		return types.NewConfigurationError(errors.Errorf("config: writer: unknown type %q", w.Type))
	}

	starts := 0
	if w.StartSCN != nil {
		starts++
	}
	if w.StartSeq != nil {
		starts++
	}
	if w.StartTime != nil {
		starts++
	}
	if w.StartTimeRel != nil {
		starts++
	}
	if starts > 1 {
		return types.NewConfigurationError(errors.New("config: writer: start-scn/start-seq/start-time/start-time-rel are mutually exclusive"))
	}

	switch w.Type {
	case WriterFile:
		if w.Name == "" {
			return types.NewConfigurationError(errors.New("config: writer: type \"file\" requires name"))
		}
	case WriterKafka:
		if len(w.Brokers) == 0 || w.Topic == "" {
			return types.NewConfigurationError(errors.New("config: writer: type \"kafka\" requires brokers and topic"))
		}
	case WriterZeroMQ, WriterNetwork:
		if w.URI == "" {
			return types.NewConfigurationError(errors.Errorf("config: writer: type %q requires uri", w.Type))
		}
	}
	return nil
}
