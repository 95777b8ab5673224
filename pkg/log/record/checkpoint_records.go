package record

import (
	"encoding/binary"
	"fmt"

	"reldb/pkg/primitives"
)

// BeginCheckpoint marks where a checkpoint started; recovery's
// analysis pass begins scanning here.
type BeginCheckpoint struct {
	base
}

func NewBeginCheckpoint() *BeginCheckpoint {
	return &BeginCheckpoint{base: base{lsn: primitives.NullLSN, xid: primitives.NullXID, prevLSN: primitives.NullLSN}}
}

func (r *BeginCheckpoint) Type() LogType { return BeginCheckpointLog }

func (r *BeginCheckpoint) Size() uint32 { return headerSize + checksumSize }

func (r *BeginCheckpoint) Serialize() []byte { return seal(BeginCheckpointLog, &r.base, nil) }

func (r *BeginCheckpoint) Undo(PageFetcher, CatalogReader) error { return nil }

func (r *BeginCheckpoint) Redo(PageFetcher, CatalogReader) error { return nil }

// EndCheckpoint snapshots the active transaction table and dirty page
// table, letting analysis start from checkpoint state instead of the
// beginning of the log.
type EndCheckpoint struct {
	base
	ATT map[primitives.XID]primitives.LSN
	DPT map[primitives.PageKey]primitives.LSN
}

func NewEndCheckpoint(att map[primitives.XID]primitives.LSN, dpt map[primitives.PageKey]primitives.LSN) *EndCheckpoint {
	attCopy := make(map[primitives.XID]primitives.LSN, len(att))
	for xid, lsn := range att {
		attCopy[xid] = lsn
	}
	dptCopy := make(map[primitives.PageKey]primitives.LSN, len(dpt))
	for key, lsn := range dpt {
		dptCopy[key] = lsn
	}
	return &EndCheckpoint{
		base: base{lsn: primitives.NullLSN, xid: primitives.NullXID, prevLSN: primitives.NullLSN},
		ATT:  attCopy,
		DPT:  dptCopy,
	}
}

func (r *EndCheckpoint) Type() LogType { return EndCheckpointLog }

func (r *EndCheckpoint) Size() uint32 {
	return headerSize + uint32(4+len(r.ATT)*16) + uint32(4+len(r.DPT)*24) + checksumSize
}

func (r *EndCheckpoint) Serialize() []byte {
	payload := make([]byte, 4+len(r.ATT)*16+4+len(r.DPT)*24)

	binary.BigEndian.PutUint32(payload[0:], uint32(len(r.ATT)))
	off := 4
	for xid, lsn := range r.ATT {
		binary.BigEndian.PutUint64(payload[off:], uint64(xid))
		binary.BigEndian.PutUint64(payload[off+8:], uint64(lsn))
		off += 16
	}

	binary.BigEndian.PutUint32(payload[off:], uint32(len(r.DPT)))
	off += 4
	for key, lsn := range r.DPT {
		binary.BigEndian.PutUint64(payload[off:], uint64(key.TableID))
		binary.BigEndian.PutUint64(payload[off+8:], uint64(key.PageID))
		binary.BigEndian.PutUint64(payload[off+16:], uint64(lsn))
		off += 24
	}

	return seal(EndCheckpointLog, &r.base, payload)
}

func deserializeEndCheckpoint(b base, payload []byte) (*EndCheckpoint, error) {
	if len(payload) < 4 {
		return nil, fmt.Errorf("end checkpoint payload truncated: %d bytes", len(payload))
	}

	attLen := binary.BigEndian.Uint32(payload[0:])
	off := 4
	if len(payload) < off+int(attLen)*16+4 {
		return nil, fmt.Errorf("end checkpoint ATT truncated")
	}

	att := make(map[primitives.XID]primitives.LSN, attLen)
	for i := uint32(0); i < attLen; i++ {
		xid := primitives.XID(binary.BigEndian.Uint64(payload[off:]))
		att[xid] = primitives.LSN(binary.BigEndian.Uint64(payload[off+8:]))
		off += 16
	}

	dptLen := binary.BigEndian.Uint32(payload[off:])
	off += 4
	if len(payload) != off+int(dptLen)*24 {
		return nil, fmt.Errorf("end checkpoint DPT truncated")
	}

	dpt := make(map[primitives.PageKey]primitives.LSN, dptLen)
	for i := uint32(0); i < dptLen; i++ {
		key := primitives.PageKey{
			TableID: primitives.TableID(binary.BigEndian.Uint64(payload[off:])),
			PageID:  primitives.PageNumber(binary.BigEndian.Uint64(payload[off+8:])),
		}
		dpt[key] = primitives.LSN(binary.BigEndian.Uint64(payload[off+16:]))
		off += 24
	}

	return &EndCheckpoint{base: b, ATT: att, DPT: dpt}, nil
}

func (r *EndCheckpoint) Undo(PageFetcher, CatalogReader) error { return nil }

func (r *EndCheckpoint) Redo(PageFetcher, CatalogReader) error { return nil }
