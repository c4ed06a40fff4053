package durability

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"hash/crc32"
	"io"
	"os"
	"path/filepath"
	"sync"

	"github.com/tidwall/btree"
	"go.uber.org/zap"

	"github.com/latticedb/lattice/errs"
	"github.com/latticedb/lattice/logging"
)

// Record layout (spec.md §6 "Durability record layout"):
//
//	length(4) | type(1) | sequence_number(8) | crc(4) | payload
//
// length counts only the payload; crc is computed over
// type||sequence_number||payload so a truncated or bit-flipped tail is
// detected without needing a separate trailer.
const headerSize = 4 + 1 + 8 + 4

var (
	ErrCorrupt = errs.Code{Component: "durability", Number: 1, Name: "corrupt_tail"}
	ErrIO      = errs.Code{Component: "durability", Number: 2, Name: "io"}
	ErrClosed  = errs.Code{Component: "durability", Number: 3, Name: "closed"}
)

// offsetIndex maps a sequence number to the byte offset of its first record
// in the log file, so iter_from(sn) can seek instead of scanning from zero
// (SPEC_FULL §11, tidwall/btree).
type offsetEntry struct {
	seq    SequenceNumber
	offset int64
}

func offsetLess(a, b offsetEntry) bool { return a.seq < b.seq }

// Log is an append-only, sequence-numbered, type-tagged durability log
// backed by a single file, per spec.md §4.2.
type Log struct {
	mu       sync.Mutex
	file     *os.File
	w        *bufio.Writer
	nextSeq  SequenceNumber
	endOff   int64
	index    *btree.BTreeG[offsetEntry]
	closed   bool
	log      *zap.Logger
	dir      string
	fileName string
}

// Open opens (creating if necessary) the durability log rooted at dir,
// recovering its state via Recover.
func Open(dir string) (*Log, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, errs.Wrap(ErrIO, err, "creating wal directory %s", dir)
	}
	path := filepath.Join(dir, "wal.log")
	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE, 0o644)
	if err != nil {
		return nil, errs.Wrap(ErrIO, err, "opening wal file %s", path)
	}
	l := &Log{
		file:     f,
		index:    btree.NewBTreeG(offsetLess),
		log:      logging.Named("durability"),
		dir:      dir,
		fileName: path,
	}
	if err := l.recover(); err != nil {
		f.Close()
		return nil, err
	}
	l.w = bufio.NewWriter(f)
	return l, nil
}

// recover scans the log from byte 0, validating each record's CRC and
// indexing its offset. It stops at the first corrupt or incomplete record
// and truncates the file to that point, per spec.md §4.2 "Failure".
func (l *Log) recover() error {
	var off int64
	hdr := make([]byte, headerSize)
	for {
		n, err := l.file.ReadAt(hdr, off)
		if err == io.EOF && n == 0 {
			break
		}
		if err != nil && err != io.EOF {
			return errs.Wrap(ErrIO, err, "reading wal header at %d", off)
		}
		if n < headerSize {
			break // partial header: truncate tail
		}
		length := binary.BigEndian.Uint32(hdr[0:4])
		typ := RecordType(hdr[4])
		seq := SequenceNumberFromBE(hdr[5:13])
		wantCRC := binary.BigEndian.Uint32(hdr[13:17])

		payload := make([]byte, length)
		if length > 0 {
			pn, perr := l.file.ReadAt(payload, off+headerSize)
			if pn < int(length) || (perr != nil && perr != io.EOF) {
				break // partial payload: truncate tail
			}
		}
		if crc32.ChecksumIEEE(crcInput(typ, seq, payload)) != wantCRC {
			l.log.Warn("wal: corrupt tail detected, truncating", zap.Int64("offset", off))
			break
		}
		if _, ok := l.index.Get(offsetEntry{seq: seq}); !ok {
			l.index.Set(offsetEntry{seq: seq, offset: off})
		}
		l.nextSeq = seq.Next()
		off += headerSize + int64(length)
	}
	if err := l.file.Truncate(off); err != nil {
		return errs.Wrap(ErrIO, err, "truncating wal tail at %d", off)
	}
	l.endOff = off
	return nil
}

func crcInput(typ RecordType, seq SequenceNumber, payload []byte) []byte {
	buf := make([]byte, 0, 9+len(payload))
	buf = append(buf, byte(typ))
	buf = seq.AppendBE(buf)
	buf = append(buf, payload...)
	return buf
}

func (l *Log) writeLocked(seq SequenceNumber, typ RecordType, payload []byte) error {
	if l.closed {
		return errs.New(ErrClosed, "wal closed")
	}
	crc := crc32.ChecksumIEEE(crcInput(typ, seq, payload))
	hdr := make([]byte, headerSize)
	binary.BigEndian.PutUint32(hdr[0:4], uint32(len(payload)))
	hdr[4] = byte(typ)
	copy(hdr[5:13], seq.AppendBE(nil))
	binary.BigEndian.PutUint32(hdr[13:17], crc)

	copy(hdr[5:13], seq.AppendBE(nil))

	if _, err := l.w.Write(hdr); err != nil {
		return errs.Wrap(ErrIO, err, "writing wal header")
	}
	if _, err := l.w.Write(payload); err != nil {
		return errs.Wrap(ErrIO, err, "writing wal payload")
	}
	if _, ok := l.index.Get(offsetEntry{seq: seq}); !ok {
		l.index.Set(offsetEntry{seq: seq, offset: l.endOff})
	}
	l.endOff += headerSize + int64(len(payload))
	return nil
}

// SequencedWrite assigns the next sequence number to bytes and fsyncs it
// before returning, per spec.md §4.2 "sequenced_write".
func (l *Log) SequencedWrite(typ RecordType, payload []byte) (SequenceNumber, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	seq := l.nextSeq
	if err := l.writeLocked(seq, typ, payload); err != nil {
		return 0, err
	}
	if err := l.flushAndSyncLocked(); err != nil {
		return 0, err
	}
	l.nextSeq = seq.Next()
	return seq, nil
}

// UnsequencedWrite writes payload under the most recently assigned sequence
// number without advancing it, used for periodic statistics snapshots
// (spec.md §4.2, §5).
func (l *Log) UnsequencedWrite(typ RecordType, payload []byte) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	var seq SequenceNumber
	if l.nextSeq > 0 {
		seq = l.nextSeq.Previous()
	}
	if err := l.writeLocked(seq, typ, payload); err != nil {
		return err
	}
	return l.flushAndSyncLocked()
}

func (l *Log) flushAndSyncLocked() error {
	if err := l.w.Flush(); err != nil {
		return errs.Wrap(ErrIO, err, "flushing wal buffer")
	}
	if err := fsync(l.file); err != nil {
		return errs.Wrap(ErrIO, err, "fsyncing wal file")
	}
	return nil
}

// IterFrom returns the records with sequence number >= from, in order, up
// to the current end of log. It seeks via the in-memory offset index rather
// than scanning from zero.
func (l *Log) IterFrom(from SequenceNumber) ([]RawRecord, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	var startOff int64
	found := false
	l.index.Ascend(offsetEntry{seq: from}, func(e offsetEntry) bool {
		if !found {
			startOff = e.offset
			found = true
		}
		return false
	})
	if !found {
		return nil, nil
	}
	if err := l.w.Flush(); err != nil {
		return nil, errs.Wrap(ErrIO, err, "flushing before read")
	}
	return l.scanFrom(startOff)
}

func (l *Log) scanFrom(off int64) ([]RawRecord, error) {
	var out []RawRecord
	hdr := make([]byte, headerSize)
	for off < l.endOff {
		if _, err := l.file.ReadAt(hdr, off); err != nil {
			return nil, errs.Wrap(ErrIO, err, "reading wal header at %d", off)
		}
		length := binary.BigEndian.Uint32(hdr[0:4])
		typ := RecordType(hdr[4])
		seq := SequenceNumberFromBE(hdr[5:13])
		payload := make([]byte, length)
		if length > 0 {
			if _, err := l.file.ReadAt(payload, off+headerSize); err != nil {
				return nil, errs.Wrap(ErrIO, err, "reading wal payload at %d", off)
			}
		}
		out = append(out, RawRecord{SequenceNumber: seq, Type: typ, Bytes: payload})
		off += headerSize + int64(length)
	}
	return out, nil
}

// FindLastType scans backward for the most recent record of the given
// type, used to resume statistics on restart (spec.md §4.2).
func (l *Log) FindLastType(typ RecordType) (*RawRecord, error) {
	records, err := l.IterFrom(SequenceNumberMin)
	if err != nil {
		return nil, err
	}
	for i := len(records) - 1; i >= 0; i-- {
		if records[i].Type == typ {
			r := records[i]
			return &r, nil
		}
	}
	return nil, nil
}

// Close flushes and closes the underlying file.
func (l *Log) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.closed {
		return nil
	}
	l.closed = true
	if err := l.flushAndSyncLocked(); err != nil {
		return err
	}
	return l.file.Close()
}

func (l *Log) String() string {
	return fmt.Sprintf("Log(%s, nextSeq=%d)", l.fileName, l.nextSeq)
}
