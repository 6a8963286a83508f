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

// Package config loads and validates the fixed-path JSON configuration
// file (spec.md §6: "the config path is fixed to OpenLogReplicator.json
// in CWD and must be flock-exclusive"). Preflight chains are composed
// the way internal/source/server/config.go composes c.CDC.Preflight:
// each sub-object validates itself, the top-level Config aggregates
// the errors.
package config

import (
	"bytes"
	"encoding/json"
	"os"

	"github.com/pkg/errors"
	"golang.org/x/sys/unix"

	"github.com/bersler/oraclecdc/internal/types"
)

// FileName is the fixed configuration file name, resolved relative to
// the process's current working directory.
const FileName = "OpenLogReplicator.json"

// ReaderType enumerates spec.md §6's reader.type values.
type ReaderType string

const (
	ReaderOnline        ReaderType = "online"
	ReaderOnlineStandby ReaderType = "online-standby"
	ReaderOffline       ReaderType = "offline"
	ReaderASM           ReaderType = "asm"
	ReaderASMStandby    ReaderType = "asm-standby"
	ReaderBatch         ReaderType = "batch"
)

// WriterType enumerates spec.md §6's writer.type values.
type WriterType string

const (
	WriterFile    WriterType = "file"
	WriterKafka   WriterType = "kafka"
	WriterZeroMQ  WriterType = "zeromq"
	WriterNetwork WriterType = "network"
)

// FormatType enumerates spec.md §6's format.type values.
type FormatType string

const (
	FormatJSON     FormatType = "json"
	FormatProtobuf FormatType = "protobuf"
)

// ReaderConfig is one source's `reader` sub-object.
type ReaderConfig struct {
	Type          ReaderType `json:"type"`
	User          string     `json:"user,omitempty"`
	Password      string     `json:"password,omitempty"`
	Server        string     `json:"server,omitempty"`
	UserASM       string     `json:"user-asm,omitempty"`
	PasswordASM   string     `json:"password-asm,omitempty"`
	ServerASM     string     `json:"server-asm,omitempty"`
	PathMapping   [][2]string `json:"path-mapping,omitempty"`
	RedoLogs      []string   `json:"redo-logs,omitempty"`
	DisableChecks bool       `json:"disable-checks,omitempty"`
}

// FormatConfig is one source's `format` sub-object.
type FormatConfig struct {
	Type        FormatType `json:"type"`
	Message     int        `json:"message,omitempty"`
	Xid         int        `json:"xid,omitempty"`
	Timestamp   int        `json:"timestamp,omitempty"`
	Char        int        `json:"char,omitempty"`
	Scn         int        `json:"scn,omitempty"`
	Unknown     int        `json:"unknown,omitempty"`
	Schema      int        `json:"schema,omitempty"`
	Column      int        `json:"column,omitempty"`
	UnknownType int        `json:"unknown-type,omitempty"`
}

// CheckpointConfig is one source's `checkpoint` sub-object.
type CheckpointConfig struct {
	Path              string `json:"path,omitempty"`
	IntervalS         int    `json:"interval-s,omitempty"`
	IntervalMB        int    `json:"interval-mb,omitempty"`
	All               bool   `json:"all,omitempty"`
	OutputCheckpoint  bool   `json:"output-checkpoint,omitempty"`
	OutputLogSwitch   bool   `json:"output-log-switch,omitempty"`
}

// Source is one entry of the top-level `sources` array.
type Source struct {
	Alias         string           `json:"alias"`
	Name          string           `json:"name"`
	Reader        ReaderConfig     `json:"reader"`
	MemoryMinMB   int              `json:"memory-min-mb,omitempty"`
	MemoryMaxMB   int              `json:"memory-max-mb,omitempty"`
	ReadBufferMaxMB int            `json:"read-buffer-max-mb,omitempty"`
	Format        FormatConfig     `json:"format"`
	Tables        []string         `json:"tables,omitempty"`
	Flags         int              `json:"flags,omitempty"`
	RedoVerifyDelayUs int          `json:"redo-verify-delay-us,omitempty"`
	ArchReadSleepUs   int          `json:"arch-read-sleep-us,omitempty"`
	ArchReadRetry     int          `json:"arch-read-retry,omitempty"`
	RedoReadSleepUs   int          `json:"redo-read-sleep-us,omitempty"`
	EventTable    string           `json:"event-table,omitempty"`
	EventOwner    string           `json:"event-owner,omitempty"`
	Checkpoint    CheckpointConfig `json:"checkpoint,omitempty"`
}

// WriterConfig is one target's `writer` sub-object. The four mutually
// exclusive start-position fields and the sink-specific name/uri/
// brokers+topic fields are all optional per spec.md §6; Preflight
// enforces the exclusivity and the sink-specific requirements.
type WriterConfig struct {
	Type               WriterType `json:"type"`
	PollIntervalUs     int        `json:"poll-interval-us,omitempty"`
	StartSCN           *uint64    `json:"start-scn,omitempty"`
	StartSeq           *uint32    `json:"start-seq,omitempty"`
	StartTime          *string    `json:"start-time,omitempty"`
	StartTimeRel       *int64     `json:"start-time-rel,omitempty"`
	CheckpointIntervalS int       `json:"checkpoint-interval-s,omitempty"`
	QueueSize          int        `json:"queue-size,omitempty"`

	// file
	Name string `json:"name,omitempty"`
	// kafka
	Brokers []string `json:"brokers,omitempty"`
	Topic   string   `json:"topic,omitempty"`
	// zeromq / network
	URI string `json:"uri,omitempty"`
}

// Target is one entry of the top-level `targets` array.
type Target struct {
	Alias  string       `json:"alias"`
	Source string       `json:"source"`
	Writer WriterConfig `json:"writer"`
}

// Config is the full on-disk configuration file, per spec.md §6.
type Config struct {
	Version      string   `json:"version"`
	Trace        []string `json:"trace,omitempty"`
	Trace2       []string `json:"trace2,omitempty"`
	DumpRedoLog  bool     `json:"dump-redo-log,omitempty"`
	DumpRawData  bool     `json:"dump-raw-data,omitempty"`
	Sources      []Source `json:"sources"`
	Targets      []Target `json:"targets"`
}

// Load reads and parses path, returning a ConfigurationError on any
// JSON syntax problem (spec.md §7: "bad JSON ... causes shutdown
// before any redo processing").
func Load(path string) (*Config, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, types.NewConfigurationError(errors.Wrap(err, "config: reading configuration file"))
	}
	var cfg Config
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&cfg); err != nil {
		return nil, types.NewConfigurationError(errors.Wrap(err, "config: decoding configuration file"))
	}
	return &cfg, nil
}

// LockExclusive opens path (spec.md §6: the config path itself doubles
// as the single-instance lock) and takes a non-blocking exclusive
// flock, returning a ConfigurationError if another instance already
// holds it. The caller must keep the returned file open for the life
// of the process; closing it releases the lock.
func LockExclusive(path string) (*os.File, error) {
	f, err := os.OpenFile(path, os.O_RDONLY, 0)
	if err != nil {
		return nil, types.NewConfigurationError(errors.Wrap(err, "config: opening configuration file for locking"))
	}
	if err := unix.Flock(int(f.Fd()), unix.LOCK_EX|unix.LOCK_NB); err != nil {
		f.Close()
		return nil, types.NewConfigurationError(errors.Wrap(err, "config: another instance already holds the configuration lock"))
	}
	return f, nil
}
