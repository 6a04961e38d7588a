// Package saveslot stores named farm snapshots in the per-user data
// directory. Each slot holds a zstd-compressed JSON snapshot.
package saveslot

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/klauspost/compress/zstd"
	"github.com/quasilyte/gdata/v2"

	"github.com/talgya/homestead/internal/engine"
)

const slotsObject = "farms"

// ErrNoSlot is returned when loading a slot that was never saved.
var ErrNoSlot = errors.New("save slot not found")

// Slots is a set of named save slots for one application.
type Slots struct {
	m *gdata.Manager
}

// Open prepares the data directory for appName.
func Open(appName string) (*Slots, error) {
	m, err := gdata.Open(gdata.Config{AppName: appName})
	if err != nil {
		return nil, fmt.Errorf("open save data: %w", err)
	}
	return &Slots{m: m}, nil
}

// Exists reports whether the named slot holds a save.
func (s *Slots) Exists(name string) bool {
	return s.m.ObjectPropExists(slotsObject, name)
}

// Save writes the snapshot into the named slot.
func (s *Slots) Save(name string, snap *engine.Snapshot) error {
	data, err := Encode(snap)
	if err != nil {
		return err
	}
	if err := s.m.SaveObjectProp(slotsObject, name, data); err != nil {
		return fmt.Errorf("save slot %s: %w", name, err)
	}
	slog.Info("farm saved to slot", "slot", name, "tick", snap.Tick, "bytes", len(data))
	return nil
}

// Load reads the snapshot from the named slot.
func (s *Slots) Load(name string) (*engine.Snapshot, error) {
	if !s.Exists(name) {
		return nil, fmt.Errorf("%w: %s", ErrNoSlot, name)
	}
	data, err := s.m.LoadObjectProp(slotsObject, name)
	if err != nil {
		return nil, fmt.Errorf("load slot %s: %w", name, err)
	}
	return Decode(data)
}

// Slot binds one slot name so it can serve as an engine.Store.
func (s *Slots) Slot(name string) engine.Store {
	return slot{slots: s, name: name}
}

type slot struct {
	slots *Slots
	name  string
}

func (sl slot) Save(snap *engine.Snapshot) error { return sl.slots.Save(sl.name, snap) }
func (sl slot) Load() (*engine.Snapshot, error) { return sl.slots.Load(sl.name) }

// Encode serializes a snapshot as zstd-compressed JSON.
func Encode(snap *engine.Snapshot) ([]byte, error) {
	var buf bytes.Buffer
	enc, err := zstd.NewWriter(&buf, zstd.WithEncoderLevel(zstd.SpeedDefault))
	if err != nil {
		return nil, err
	}
	if err := json.NewEncoder(enc).Encode(snap); err != nil {
		enc.Close()
		return nil, fmt.Errorf("encode snapshot: %w", err)
	}
	if err := enc.Close(); err != nil {
		return nil, fmt.Errorf("compress snapshot: %w", err)
	}
	return buf.Bytes(), nil
}

// Decode reverses Encode.
func Decode(data []byte) (*engine.Snapshot, error) {
	dec, err := zstd.NewReader(bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	defer dec.Close()

	raw, err := io.ReadAll(dec)
	if err != nil {
		return nil, fmt.Errorf("decompress snapshot: %w", err)
	}
	var snap engine.Snapshot
	if err := json.Unmarshal(raw, &snap); err != nil {
		return nil, fmt.Errorf("decode snapshot: %w", err)
	}
	return &snap, nil
}
