package wal

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path"
	"sort"
	"strconv"
	"sync"
	"time"

	"github.com/wkalt/strata/util"
	"github.com/wkalt/strata/util/log"
)

/*
The file WAL is the durable staging area for appended record batches. Appends
are assigned a monotonically increasing sequence starting at 1, written to the
active log file, and acknowledged asynchronously once a sync has made them
durable. A flusher goroutine syncs the active file on a poll interval, so
appends are acknowledged in groups rather than paying a sync each.

The log is stored as a sequence of files in a single directory, each named by
the decimal sequence of the first record it contains. When the active file
exceeds a target size it is closed and a new one is opened. Trimming writes a
trim record to the active file and deletes any file whose records all fall at
or below the trim offset. The active file is never deleted, so the most recent
trim record always survives a restart.

On startup, Recover scans the files in order, restoring the next sequence and
the trim offset. A torn tail in the last file - from a crash mid-write - is
truncated at the last valid record. Recover must be called before the WAL is
ready to use. Replay then iterates the surviving un-trimmed appends, so the
caller can restore data that was durable locally but never migrated to remote
storage.
*/

////////////////////////////////////////////////////////////////////////////////

// FileWAL is a file-backed write-ahead log.
type FileWAL struct {
	waldir  string
	config  *config
	mtx     *sync.Mutex
	f       *os.File
	writer  *Writer
	counter uint64
	nextSeq uint64
	trimmed uint64
	pending []chan error
	closed  bool
	done    chan struct{}
	wg      sync.WaitGroup
}

// NewFileWAL constructs a file-backed WAL rooted at waldir. Recover must be
// called before the WAL is ready to use.
func NewFileWAL(waldir string, opts ...Option) (*FileWAL, error) {
	conf := &config{
		targetFileSize: 64 * megabyte,
		flushInterval:  10 * time.Millisecond,
	}
	for _, opt := range opts {
		opt(conf)
	}
	if err := util.EnsureDirectoryExists(waldir); err != nil {
		return nil, fmt.Errorf("failed to create wal directory: %w", err)
	}
	return &FileWAL{
		waldir:  waldir,
		config:  conf,
		mtx:     &sync.Mutex{},
		nextSeq: 1,
		done:    make(chan struct{}),
	}, nil
}

// Append writes data to the log under a newly assigned sequence. The record is
// durable once the result's Done channel resolves with a nil error.
func (w *FileWAL) Append(data []byte) (AppendResult, error) {
	w.mtx.Lock()
	defer w.mtx.Unlock()
	if w.closed {
		return AppendResult{}, ErrWALClosed
	}
	seq := w.nextSeq
	w.nextSeq++
	if _, err := w.writer.WriteAppend(seq, data); err != nil {
		return AppendResult{}, fmt.Errorf("failed to write append record: %w", err)
	}
	done := make(chan error, 1)
	w.pending = append(w.pending, done)
	if w.writer.size() > int64(w.config.targetFileSize) {
		if err := w.rotate(); err != nil {
			return AppendResult{}, err
		}
	}
	return AppendResult{Offset: seq, Done: done}, nil
}

// Trim records a trim at the given offset, marking every sequence at or below
// it reclaimable, and deletes any file whose records all fall at or below the
// offset.
func (w *FileWAL) Trim(ctx context.Context, offset uint64) error {
	w.mtx.Lock()
	defer w.mtx.Unlock()
	if w.closed {
		return ErrWALClosed
	}
	if offset <= w.trimmed {
		return nil
	}
	w.trimmed = offset
	if _, err := w.writer.WriteTrim(offset); err != nil {
		return fmt.Errorf("failed to write trim record: %w", err)
	}
	return w.removeTrimmedFiles(ctx)
}

// Recover scans the files in the waldir, restoring the next sequence and the
// trim offset and truncating any torn tail in the last file. Recover must be
// called before the WAL is ready to use.
func (w *FileWAL) Recover(ctx context.Context) error {
	w.mtx.Lock()
	defer w.mtx.Unlock()
	ids, err := listIDs(w.waldir)
	if err != nil {
		return err
	}
	if len(ids) == 0 {
		if err := w.rotate(); err != nil {
			return err
		}
		w.wg.Add(1)
		go w.flusher(ctx)
		return nil
	}
	log.Infof(ctx, "Replaying %d log files", len(ids))
	for i, id := range ids {
		if err := w.scanfile(ctx, id, i == len(ids)-1); err != nil {
			return err
		}
	}
	if w.trimmed+1 > w.nextSeq {
		w.nextSeq = w.trimmed + 1
	}
	if err := w.setfile(ids[len(ids)-1]); err != nil {
		return err
	}
	if err := w.removeTrimmedFiles(ctx); err != nil {
		return err
	}
	log.Infow(ctx, "Recovery complete",
		"next sequence", w.nextSeq,
		"trim offset", w.trimmed,
	)
	w.wg.Add(1)
	go w.flusher(ctx)
	return nil
}

// Replay iterates the un-trimmed append records in sequence order, calling fn
// for each. It is intended for use once, after Recover and before any appends.
func (w *FileWAL) Replay(ctx context.Context, fn func(seq uint64, data []byte) error) error {
	w.mtx.Lock()
	defer w.mtx.Unlock()
	ids, err := listIDs(w.waldir)
	if err != nil {
		return err
	}
	replayed := 0
	for _, id := range ids {
		n, err := w.replayfile(id, fn)
		if err != nil {
			return err
		}
		replayed += n
	}
	if replayed > 0 {
		log.Infof(ctx, "Replayed %d un-trimmed records", replayed)
	}
	return nil
}

// Stats returns statistics about the WAL.
func (w *FileWAL) Stats() Stats {
	w.mtx.Lock()
	defer w.mtx.Unlock()
	return Stats{
		NextSeq: w.nextSeq,
		Trimmed: w.trimmed,
	}
}

// Close stops the flusher, syncs the active file, resolves any pending
// appends, and closes the log. Appends and trims after Close fail with
// ErrWALClosed.
func (w *FileWAL) Close() error {
	w.mtx.Lock()
	if w.closed {
		w.mtx.Unlock()
		return nil
	}
	w.closed = true
	w.mtx.Unlock()
	close(w.done)
	w.wg.Wait()
	w.mtx.Lock()
	defer w.mtx.Unlock()
	if w.f == nil {
		return nil
	}
	if err := w.syncLocked(); err != nil {
		return err
	}
	if err := w.f.Close(); err != nil {
		return fmt.Errorf("failed to close log file: %w", err)
	}
	return nil
}

func (w *FileWAL) flusher(ctx context.Context) {
	defer w.wg.Done()
	ticker := time.NewTicker(w.config.flushInterval)
	defer ticker.Stop()
	for {
		select {
		case <-w.done:
			return
		case <-ticker.C:
			if err := w.flush(); err != nil {
				log.Errorf(ctx, "Failed to sync wal: %s", err)
			}
		}
	}
}

func (w *FileWAL) flush() error {
	w.mtx.Lock()
	defer w.mtx.Unlock()
	if w.f == nil || len(w.pending) == 0 {
		return nil
	}
	return w.syncLocked()
}

// syncLocked syncs the active file and resolves any pending appends with the
// outcome.
func (w *FileWAL) syncLocked() error {
	err := w.f.Sync()
	for _, done := range w.pending {
		done <- err
	}
	w.pending = w.pending[:0]
	if err != nil {
		return fmt.Errorf("failed to sync wal file: %w", err)
	}
	return nil
}

// rotate syncs and closes the active file, then opens a new one named by the
// next sequence to be assigned.
func (w *FileWAL) rotate() error {
	if w.f != nil {
		if err := w.syncLocked(); err != nil {
			return err
		}
		if err := w.f.Close(); err != nil {
			return fmt.Errorf("failed to close log file: %w", err)
		}
	}
	f, err := w.openw(strconv.FormatUint(w.nextSeq, 10))
	if err != nil {
		return fmt.Errorf("failed to create new log file: %w", err)
	}
	w.f = f
	w.counter = w.nextSeq
	w.writer, err = NewWriter(f, 0)
	if err != nil {
		return fmt.Errorf("failed to create new log writer: %w", err)
	}
	return nil
}

// scanfile replays one file through the recovery counters. Torn tails are only
// tolerated in the last file; an unexpected end or CRC mismatch in an earlier
// file is corruption and fails recovery.
func (w *FileWAL) scanfile(ctx context.Context, id uint64, last bool) error {
	f, err := w.openr(strconv.FormatUint(id, 10))
	if err != nil {
		return fmt.Errorf("failed to open wal file: %w", err)
	}
	defer util.MaybeWarn(ctx, f.Close)
	r, err := NewReader(f)
	if err != nil {
		if last && errors.Is(err, ErrBadMagic) {
			if err := f.Truncate(0); err != nil {
				return fmt.Errorf("failed to truncate file: %w", err)
			}
			log.Infof(ctx, "Truncated log file %d at 0", id)
			return nil
		}
		return fmt.Errorf("failed to construct wal reader: %w", err)
	}
	for {
		rectype, data, err := r.Next()
		if err != nil {
			switch {
			case errors.Is(err, io.EOF):
				return nil
			case last && (errors.Is(err, io.ErrUnexpectedEOF) || errors.Is(err, CRCMismatchError{})):
				if err := f.Truncate(r.Offset()); err != nil {
					return fmt.Errorf("failed to truncate file: %w", err)
				}
				log.Infof(ctx, "Truncated log file %d at %d", id, r.Offset())
				return nil
			}
			return fmt.Errorf("failed to read next wal record: %w", err)
		}
		switch rectype {
		case WALAppend:
			entry := ParseAppendEntry(data)
			w.nextSeq = entry.Seq + 1
		case WALTrim:
			if offset := ParseTrimEntry(data); offset > w.trimmed {
				w.trimmed = offset
			}
		}
	}
}

func (w *FileWAL) replayfile(id uint64, fn func(seq uint64, data []byte) error) (int, error) {
	f, err := w.openr(strconv.FormatUint(id, 10))
	if err != nil {
		return 0, fmt.Errorf("failed to open wal file: %w", err)
	}
	defer f.Close()
	r, err := NewReader(f)
	if err != nil {
		return 0, fmt.Errorf("failed to construct wal reader: %w", err)
	}
	replayed := 0
	for {
		rectype, data, err := r.Next()
		if err != nil {
			if errors.Is(err, io.EOF) {
				return replayed, nil
			}
			return replayed, fmt.Errorf("failed to read next wal record: %w", err)
		}
		if rectype != WALAppend {
			continue
		}
		entry := ParseAppendEntry(data)
		if entry.Seq <= w.trimmed {
			continue
		}
		if err := fn(entry.Seq, entry.Data); err != nil {
			return replayed, err
		}
		replayed++
	}
}

// setfile resumes writing at the end of the file with the given id.
func (w *FileWAL) setfile(id uint64) error {
	f, err := w.openw(strconv.FormatUint(id, 10))
	if err != nil {
		return fmt.Errorf("failed to open wal file: %w", err)
	}
	n, err := f.Seek(0, io.SeekEnd)
	if err != nil {
		return fmt.Errorf("failed to seek to file end: %w", err)
	}
	w.f = f
	w.counter = id
	w.writer, err = NewWriter(f, n)
	if err != nil {
		return fmt.Errorf("failed to construct wal writer: %w", err)
	}
	return nil
}

// removeTrimmedFiles deletes every file whose records all fall at or below the
// trim offset. A file's coverage ends where the next file begins; the active
// file is never removed.
func (w *FileWAL) removeTrimmedFiles(ctx context.Context) error {
	ids, err := listIDs(w.waldir)
	if err != nil {
		return err
	}
	remove := []uint64{}
	for i, id := range ids {
		if id == w.counter {
			continue
		}
		if i+1 < len(ids) && ids[i+1]-1 <= w.trimmed {
			remove = append(remove, id)
		}
	}
	if len(remove) == 0 {
		return nil
	}
	log.Infof(ctx, "Removing %d trimmed WAL files: %v", len(remove), remove)
	for _, id := range remove {
		if err := os.Remove(path.Join(w.waldir, strconv.FormatUint(id, 10))); err != nil {
			return fmt.Errorf("failed to remove file: %w", err)
		}
	}
	return nil
}

func (w *FileWAL) openw(name string) (*os.File, error) {
	f, err := os.OpenFile(w.waldir+"/"+name, os.O_RDWR|os.O_CREATE, 0644)
	if err != nil {
		return nil, fmt.Errorf("failed to open file: %w", err)
	}
	return f, nil
}

func (w *FileWAL) openr(name string) (*os.File, error) {
	f, err := os.OpenFile(w.waldir+"/"+name, os.O_RDWR, 0644)
	if err != nil {
		return nil, fmt.Errorf("failed to open file: %w", err)
	}
	return f, nil
}

func listDir(dir string) ([]string, error) {
	files, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to list directory: %w", err)
	}
	result := make([]string, 0, len(files))
	for _, f := range files {
		if f.IsDir() {
			continue
		}
		result = append(result, f.Name())
	}
	return result, nil
}

func listIDs(dir string) ([]uint64, error) {
	names, err := listDir(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to list wal directory: %w", err)
	}
	ids := make([]uint64, 0, len(names))
	for _, name := range names {
		id, err := strconv.ParseUint(name, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("failed to parse wal path: %w", err)
		}
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool {
		return ids[i] < ids[j]
	})
	return ids, nil
}
