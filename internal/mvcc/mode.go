package mvcc

import (
	"github.com/coledb/coledb/internal/dberrors"
	"github.com/coledb/coledb/internal/encoding"
)

// ModeKind selects one of the three transaction modes (spec §4.3).
type ModeKind uint8

const (
	ModeReadWrite ModeKind = iota
	ModeReadOnly
	ModeSnapshot
)

// Mode is a transaction's access mode. Version is only meaningful when
// Kind is ModeSnapshot.
type Mode struct {
	Kind    ModeKind
	Version uint64
}

func ReadWrite() Mode           { return Mode{Kind: ModeReadWrite} }
func ReadOnly() Mode            { return Mode{Kind: ModeReadOnly} }
func Snapshot(version uint64) Mode { return Mode{Kind: ModeSnapshot, Version: version} }

// Mutable reports whether this mode permits Set/Delete.
func (m Mode) Mutable() bool { return m.Kind == ModeReadWrite }

// Satisfies reports whether a transaction already running in mode m can
// be reused for an operation that requires the capabilities of
// required, instead of opening a fresh transaction. The only
// capability that matters is mutability: a read-write transaction
// satisfies any requirement, but a read-only or snapshot transaction
// only satisfies another read-only/snapshot requirement.
func (m Mode) Satisfies(required Mode) bool {
	if required.Mutable() {
		return m.Mutable()
	}
	return true
}

func (m Mode) encode() []byte {
	switch m.Kind {
	case ModeReadWrite:
		return []byte{0x00}
	case ModeReadOnly:
		return []byte{0x01}
	case ModeSnapshot:
		return append([]byte{0x02}, encoding.EncodeUint64(m.Version)...)
	default:
		return []byte{0x00}
	}
}

func decodeMode(b []byte) (Mode, error) {
	buf := b
	tag, err := encoding.TakeByte(&buf)
	if err != nil {
		return Mode{}, err
	}
	switch tag {
	case 0x00:
		return ReadWrite(), nil
	case 0x01:
		return ReadOnly(), nil
	case 0x02:
		v, err := encoding.TakeUint64(&buf)
		if err != nil {
			return Mode{}, err
		}
		return Snapshot(v), nil
	default:
		return Mode{}, dberrors.New(dberrors.Mvcc, "invalid transaction mode tag %#x", tag)
	}
}

func (m Mode) String() string {
	switch m.Kind {
	case ModeReadWrite:
		return "read-write"
	case ModeReadOnly:
		return "read-only"
	case ModeSnapshot:
		return "snapshot"
	default:
		return "unknown"
	}
}
