package record

import (
	"encoding/binary"
	"fmt"

	"github.com/cespare/xxhash/v2"

	"reldb/pkg/primitives"
)

// Wire format. Every record is
//
//	[type:1][lsn:8][xid:8][prev_lsn:8][size:4][payload][checksum:8]
//
// in big-endian, where size counts the whole record including the
// xxhash trailer. The record with LSN L starts at log-file offset L.

// seal builds the final record bytes from a payload.
func seal(t LogType, b *base, payload []byte) []byte {
	size := headerSize + len(payload) + checksumSize
	buf := make([]byte, size)

	buf[0] = byte(t)
	binary.BigEndian.PutUint64(buf[1:], uint64(b.lsn))
	binary.BigEndian.PutUint64(buf[9:], uint64(b.xid))
	binary.BigEndian.PutUint64(buf[17:], uint64(b.prevLSN))
	binary.BigEndian.PutUint32(buf[25:], uint32(size))
	copy(buf[headerSize:], payload)

	sum := xxhash.Sum64(buf[:size-checksumSize])
	binary.BigEndian.PutUint64(buf[size-checksumSize:], sum)
	return buf
}

// Deserialize parses one record starting at the head of buf. The
// buffer may extend past the record; the size field bounds it. The
// expected LSN cross-checks that the caller read the right offset.
func Deserialize(lsn primitives.LSN, buf []byte) (LogRecord, error) {
	if len(buf) < headerSize+checksumSize {
		return nil, fmt.Errorf("log record truncated at lsn %d: %d bytes", lsn, len(buf))
	}

	t := LogType(buf[0])
	b := base{
		lsn:     primitives.LSN(binary.BigEndian.Uint64(buf[1:])),
		xid:     primitives.XID(binary.BigEndian.Uint64(buf[9:])),
		prevLSN: primitives.LSN(binary.BigEndian.Uint64(buf[17:])),
	}
	size := binary.BigEndian.Uint32(buf[25:])

	if b.lsn != lsn {
		return nil, fmt.Errorf("log record lsn mismatch: read at %d, header says %d", lsn, b.lsn)
	}
	if size < headerSize+checksumSize || uint32(len(buf)) < size {
		return nil, fmt.Errorf("log record at lsn %d claims %d bytes, have %d", lsn, size, len(buf))
	}

	stored := binary.BigEndian.Uint64(buf[size-checksumSize : size])
	if sum := xxhash.Sum64(buf[:size-checksumSize]); sum != stored {
		return nil, fmt.Errorf("log record checksum mismatch at lsn %d", lsn)
	}

	payload := buf[headerSize : size-checksumSize]
	switch t {
	case BeginLog:
		return &Begin{base: b}, nil
	case CommitLog:
		return &Commit{base: b}, nil
	case RollbackLog:
		return &Rollback{base: b}, nil
	case InsertLog:
		return deserializeInsert(b, payload)
	case DeleteLog:
		return deserializeDelete(b, payload)
	case NewPageLog:
		return deserializeNewPage(b, payload)
	case BeginCheckpointLog:
		return &BeginCheckpoint{base: b}, nil
	case EndCheckpointLog:
		return deserializeEndCheckpoint(b, payload)
	default:
		return nil, fmt.Errorf("unknown log record type %d at lsn %d", t, lsn)
	}
}
