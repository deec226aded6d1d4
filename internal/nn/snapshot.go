package nn

import (
	"bytes"
	"encoding/gob"
	"errors"
	"fmt"
)

// ErrSnapshotMismatch is returned when a snapshot does not fit a network.
var ErrSnapshotMismatch = errors.New("snapshot does not match network")

// snapshot is the gob payload of a network's parameters.
type snapshot struct {
	Name   string
	Shape  Shape
	Dims   [][]int
	Values [][]float64
}

// Snapshot serialises the network's parameters to an opaque blob.
func (m *MLP) Snapshot() ([]byte, error) {
	s := snapshot{Name: m.name, Shape: m.Shape()}
	for _, w := range m.weights {
		s.Dims = append(s.Dims, w.Shape().Clone())
		s.Values = append(s.Values, append([]float64(nil), w.Data().([]float64)...))
	}
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(s); err != nil {
		return nil, fmt.Errorf("encode %s snapshot: %w", m.name, err)
	}
	return buf.Bytes(), nil
}

// Restore overwrites the network's parameters from a blob produced by
// Snapshot on a network of the same shape.
func (m *MLP) Restore(blob []byte) error {
	s, err := decode(blob)
	if err != nil {
		return err
	}
	return m.restore(s)
}

// FromSnapshot builds a network directly from a blob.
func FromSnapshot(blob []byte) (*MLP, error) {
	s, err := decode(blob)
	if err != nil {
		return nil, err
	}
	m, err := NewMLP(s.Name, s.Shape, 0)
	if err != nil {
		return nil, err
	}
	if err := m.restore(s); err != nil {
		return nil, err
	}
	return m, nil
}

func (m *MLP) restore(s snapshot) error {
	if s.Shape != m.Shape() || len(s.Values) != len(m.weights) {
		return fmt.Errorf("%s: snapshot %+v vs network %+v: %w", m.name, s.Shape, m.Shape(), ErrSnapshotMismatch)
	}
	for i, w := range m.weights {
		dst := w.Data().([]float64)
		if len(dst) != len(s.Values[i]) {
			return fmt.Errorf("%s: param %d has %d values, want %d: %w", m.name, i, len(s.Values[i]), len(dst), ErrSnapshotMismatch)
		}
		copy(dst, s.Values[i])
	}
	return nil
}

func decode(blob []byte) (snapshot, error) {
	var s snapshot
	if err := gob.NewDecoder(bytes.NewReader(blob)).Decode(&s); err != nil {
		return s, fmt.Errorf("decode snapshot: %w", err)
	}
	return s, nil
}
