// Package journal is the write-ahead log in front of the runtime inbox.
//
// Each accepted host event is framed as
//
//	uint32 length | uint32 crc32(body) | msgpack body
//
// and fsynced before the event is submitted. Events are committed as the loop
// applies them, possibly out of order. The sidecar file holds the highest
// sequence below which everything is applied, followed by any sequences
// applied above it. On the next start everything else is replayed.
package journal

import (
	"bufio"
	"encoding/binary"
	"errors"
	"fmt"
	"hash/crc32"
	"io"
	"maps"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/vmihailenco/msgpack/v5"

	"github.com/rustacademy/academy/internal/event"
)

const (
	headerSize   = 8
	maxFrameSize = 1 << 20
	commitSuffix = ".commit"
)

var errTornFrame = errors.New("journal: torn frame")

type record struct {
	Seq   uint64         `msgpack:"seq"`
	At    int64          `msgpack:"at"`
	Event event.Envelope `msgpack:"event"`
}

// Journal is a durable append-only log of accepted host events.
type Journal struct {
	mu         sync.Mutex
	path       string
	commitPath string
	file       *os.File
	lastSeq    uint64
	committed  uint64
	applied    map[uint64]struct{} // committed sequences above committed
}

// Open creates or opens the journal at path. Committed records are dropped
// from the file and a torn or corrupt tail is discarded.
func Open(path string) (*Journal, error) {
	if strings.TrimSpace(path) == "" {
		return nil, errors.New("journal: path is empty")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("journal: mkdir: %w", err)
	}

	j := &Journal{path: path, commitPath: path + commitSuffix}

	committed, applied, err := loadCommitted(j.commitPath)
	if err != nil {
		return nil, err
	}
	j.committed = committed
	j.applied = make(map[uint64]struct{}, len(applied))
	for _, seq := range applied {
		if seq > committed {
			j.applied[seq] = struct{}{}
		}
	}

	last, err := j.rewrite()
	if err != nil {
		return nil, err
	}
	j.lastSeq = max(last, committed)
	for seq := range j.applied {
		j.lastSeq = max(j.lastSeq, seq)
	}

	j.file, err = os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, fmt.Errorf("journal: open: %w", err)
	}
	return j, nil
}

// Append persists e and returns its sequence number. It returns once the
// frame is on disk.
func (j *Journal) Append(e event.Envelope) (uint64, error) {
	if strings.TrimSpace(e.Name) == "" {
		return 0, errors.New("journal: event has no name")
	}

	j.mu.Lock()
	defer j.mu.Unlock()

	if j.file == nil {
		return 0, errors.New("journal: closed")
	}

	seq := j.lastSeq + 1
	frame, err := encodeFrame(record{Seq: seq, At: time.Now().UnixNano(), Event: e})
	if err != nil {
		return 0, err
	}
	if _, err := j.file.Write(frame); err != nil {
		return 0, fmt.Errorf("journal: write: %w", err)
	}
	if err := j.file.Sync(); err != nil {
		return 0, fmt.Errorf("journal: sync: %w", err)
	}
	j.lastSeq = seq
	return seq, nil
}

// Commit records that the event with sequence seq has been applied. The
// commit mark only advances past seq once every earlier event is committed
// too, so an event that was appended but never applied is still replayed.
func (j *Journal) Commit(seq uint64) error {
	j.mu.Lock()
	defer j.mu.Unlock()

	if seq <= j.committed {
		return nil
	}
	if _, ok := j.applied[seq]; ok {
		return nil
	}

	mark := j.committed
	applied := maps.Clone(j.applied)
	applied[seq] = struct{}{}
	for {
		if _, ok := applied[mark+1]; !ok {
			break
		}
		mark++
		delete(applied, mark)
	}

	if err := storeCommitted(j.commitPath, mark, sortedSeqs(applied)); err != nil {
		return err
	}
	j.committed = mark
	j.applied = applied
	return nil
}

// Committed returns the commit mark: every event up to it has been applied.
func (j *Journal) Committed() uint64 {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.committed
}

// Pending reports how many appended events are not yet committed.
func (j *Journal) Pending() uint64 {
	j.mu.Lock()
	defer j.mu.Unlock()
	if j.lastSeq <= j.committed {
		return 0
	}
	return j.lastSeq - j.committed - uint64(len(j.applied))
}

// Replay calls fn for each uncommitted event in sequence order. An error
// from fn stops the replay and is returned.
func (j *Journal) Replay(fn func(seq uint64, e event.Envelope) error) error {
	if fn == nil {
		return errors.New("journal: replay callback is nil")
	}

	j.mu.Lock()
	committed := j.committed
	applied := maps.Clone(j.applied)
	j.mu.Unlock()

	f, err := os.Open(j.path)
	if err != nil {
		return fmt.Errorf("journal: open for replay: %w", err)
	}
	defer f.Close()

	return scan(f, func(r record) error {
		if isApplied(r.Seq, committed, applied) {
			return nil
		}
		return fn(r.Seq, r.Event)
	})
}

// Close closes the journal file. Further appends fail.
func (j *Journal) Close() error {
	j.mu.Lock()
	defer j.mu.Unlock()
	if j.file == nil {
		return nil
	}
	err := j.file.Close()
	j.file = nil
	return err
}

// rewrite copies the uncommitted records into a fresh file and swaps it in.
// It returns the highest sequence seen.
func (j *Journal) rewrite() (uint64, error) {
	src, err := os.OpenFile(j.path, os.O_CREATE|os.O_RDONLY, 0o644)
	if err != nil {
		return 0, fmt.Errorf("journal: open for rewrite: %w", err)
	}
	defer src.Close()

	tmp, err := os.CreateTemp(filepath.Dir(j.path), filepath.Base(j.path)+".*.tmp")
	if err != nil {
		return 0, fmt.Errorf("journal: create rewrite file: %w", err)
	}
	abort := func(err error) (uint64, error) {
		_ = tmp.Close()
		_ = os.Remove(tmp.Name())
		return 0, err
	}

	w := bufio.NewWriter(tmp)
	var last uint64
	err = scan(src, func(r record) error {
		last = max(last, r.Seq)
		if isApplied(r.Seq, j.committed, j.applied) {
			return nil
		}
		frame, err := encodeFrame(r)
		if err != nil {
			return err
		}
		_, err = w.Write(frame)
		return err
	})
	if err != nil {
		return abort(fmt.Errorf("journal: rewrite: %w", err))
	}
	if err := w.Flush(); err != nil {
		return abort(fmt.Errorf("journal: rewrite flush: %w", err))
	}
	if err := tmp.Sync(); err != nil {
		return abort(fmt.Errorf("journal: rewrite sync: %w", err))
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmp.Name())
		return 0, fmt.Errorf("journal: rewrite close: %w", err)
	}
	if err := os.Rename(tmp.Name(), j.path); err != nil {
		_ = os.Remove(tmp.Name())
		return 0, fmt.Errorf("journal: rewrite rename: %w", err)
	}
	return last, nil
}

func isApplied(seq, committed uint64, applied map[uint64]struct{}) bool {
	if seq <= committed {
		return true
	}
	_, ok := applied[seq]
	return ok
}

func sortedSeqs(set map[uint64]struct{}) []uint64 {
	return slices.Sorted(maps.Keys(set))
}

func encodeFrame(r record) ([]byte, error) {
	body, err := msgpack.Marshal(r)
	if err != nil {
		return nil, fmt.Errorf("journal: encode: %w", err)
	}
	if len(body) > maxFrameSize {
		return nil, fmt.Errorf("journal: record of %d bytes exceeds frame limit", len(body))
	}
	frame := make([]byte, headerSize+len(body))
	binary.BigEndian.PutUint32(frame[0:4], uint32(len(body)))
	binary.BigEndian.PutUint32(frame[4:8], crc32.ChecksumIEEE(body))
	copy(frame[headerSize:], body)
	return frame, nil
}

func readFrame(r *bufio.Reader) (record, error) {
	var rec record

	var header [headerSize]byte
	if _, err := io.ReadFull(r, header[:]); err != nil {
		if errors.Is(err, io.EOF) {
			return rec, io.EOF
		}
		return rec, errTornFrame
	}
	size := binary.BigEndian.Uint32(header[0:4])
	if size == 0 || size > maxFrameSize {
		return rec, errTornFrame
	}
	body := make([]byte, size)
	if _, err := io.ReadFull(r, body); err != nil {
		return rec, errTornFrame
	}
	if crc32.ChecksumIEEE(body) != binary.BigEndian.Uint32(header[4:8]) {
		return rec, errTornFrame
	}
	if err := msgpack.Unmarshal(body, &rec); err != nil {
		return rec, errTornFrame
	}
	return rec, nil
}

// scan feeds every intact record to fn. It stops quietly at the first torn
// or corrupt frame, so a crash mid-write loses only that event.
func scan(r io.Reader, fn func(record) error) error {
	br := bufio.NewReader(r)
	for {
		rec, err := readFrame(br)
		switch {
		case errors.Is(err, io.EOF), errors.Is(err, errTornFrame):
			return nil
		case err != nil:
			return err
		}
		if err := fn(rec); err != nil {
			return err
		}
	}
}

// loadCommitted reads the commit mark followed by the sequences applied
// above it, all whitespace separated.
func loadCommitted(path string) (uint64, []uint64, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return 0, nil, nil
	}
	if err != nil {
		return 0, nil, fmt.Errorf("journal: read commit mark: %w", err)
	}
	fields := strings.Fields(string(data))
	if len(fields) == 0 {
		return 0, nil, nil
	}
	seqs := make([]uint64, len(fields))
	for i, f := range fields {
		seqs[i], err = strconv.ParseUint(f, 10, 64)
		if err != nil {
			return 0, nil, fmt.Errorf("journal: parse commit mark: %w", err)
		}
	}
	return seqs[0], seqs[1:], nil
}

// storeCommitted replaces the commit mark atomically.
func storeCommitted(path string, mark uint64, applied []uint64) error {
	var b strings.Builder
	b.WriteString(strconv.FormatUint(mark, 10))
	for _, seq := range applied {
		b.WriteByte(' ')
		b.WriteString(strconv.FormatUint(seq, 10))
	}
	b.WriteByte('\n')

	tmp, err := os.CreateTemp(filepath.Dir(path), filepath.Base(path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("journal: create commit mark: %w", err)
	}
	_, werr := tmp.WriteString(b.String())
	if werr == nil {
		werr = tmp.Sync()
	}
	if cerr := tmp.Close(); werr == nil {
		werr = cerr
	}
	if werr == nil {
		werr = os.Rename(tmp.Name(), path)
	}
	if werr != nil {
		_ = os.Remove(tmp.Name())
		return fmt.Errorf("journal: store commit mark: %w", werr)
	}
	return nil
}
