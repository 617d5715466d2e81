package minikv

import (
	"bytes"
	"errors"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"

	"go.uber.org/multierr"

	"minikv/data"
	"minikv/index"
)

const hintFinishedKeyPrefix = "hint.finished."

// checkpoint runs on Close. It leaves behind a hint file (in-memory indexes
// only) and a finished marker recording the position the index is complete
// up to, so the next Open only replays records written after it.
//
// The marker is removed first and written last: a crash in between leaves no
// marker and the next Open falls back to a full replay.
func (db *DB) checkpoint() error {
	if err := db.activeFile.Sync(); err != nil {
		return multierr.Append(err, db.index.Close())
	}

	finishedPath := filepath.Join(db.options.DirPath, data.HintFinishedFileName)
	if err := removeIfExists(finishedPath); err != nil {
		return multierr.Append(err, db.index.Close())
	}

	if !index.IsPersistent(db.options.IndexType) {
		if err := db.writeHintFile(); err != nil {
			return multierr.Append(err, db.index.Close())
		}
	}

	// a persistent index is synced by Close, before the marker vouches for it
	if err := db.index.Close(); err != nil {
		return err
	}

	return db.writeHintFinished(&data.LogRecordPos{
		Fid:    db.activeFile.FileId,
		Offset: db.activeFile.WriteOff,
	})
}

func (db *DB) writeHintFile() error {
	hintPath := filepath.Join(db.options.DirPath, data.HintFileName)
	if err := removeIfExists(hintPath); err != nil {
		return err
	}

	hintFile, err := data.OpenHintFile(db.options.DirPath)
	if err != nil {
		return err
	}

	var writeErr error
	db.index.Foreach(func(key []byte, pos *data.LogRecordPos) bool {
		writeErr = hintFile.WriteHintRecord(key, pos)
		return writeErr == nil
	})
	if writeErr != nil {
		return multierr.Append(writeErr, hintFile.Close())
	}

	if err := hintFile.Sync(); err != nil {
		return multierr.Append(err, hintFile.Close())
	}
	return hintFile.Close()
}

func (db *DB) writeHintFinished(pos *data.LogRecordPos) error {
	finishedFile, err := data.OpenHintFinishedFile(db.options.DirPath)
	if err != nil {
		return err
	}

	finRecord := &data.LogRecord{
		Key:   hintFinishedKey(db.options.IndexType),
		Value: data.EncodeLogRecordPos(pos),
	}
	encRecord, _ := data.EncodeLogRecord(finRecord)
	if err := finishedFile.Write(encRecord); err != nil {
		return multierr.Append(err, finishedFile.Close())
	}
	if err := finishedFile.Sync(); err != nil {
		return multierr.Append(err, finishedFile.Close())
	}
	return finishedFile.Close()
}

// loadCheckpoint returns the position recorded by the last clean Close, or
// nil when there is none usable for the configured index type. Data files
// must already be loaded.
func (db *DB) loadCheckpoint() (*data.LogRecordPos, error) {
	finishedPath := filepath.Join(db.options.DirPath, data.HintFinishedFileName)
	if _, err := os.Stat(finishedPath); errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}

	finishedFile, err := data.OpenHintFinishedFile(db.options.DirPath)
	if err != nil {
		return nil, err
	}
	defer finishedFile.Close()

	record, _, err := finishedFile.ReadLogRecord(0)
	if err != nil {
		if err == io.EOF || err == io.ErrUnexpectedEOF ||
			errors.Is(err, data.ErrInvalidCRC) || errors.Is(err, data.ErrInvalidRecordHeader) {
			return nil, nil
		}
		return nil, err
	}

	// written under another index type
	if !bytes.Equal(record.Key, hintFinishedKey(db.options.IndexType)) {
		return nil, nil
	}

	pos := data.DecodeLogRecordPos(record.Value)
	dataFile := db.dataFile(pos.Fid)
	if dataFile == nil {
		return nil, nil
	}
	size, err := dataFile.IoManager.Size()
	if err != nil {
		return nil, err
	}
	if pos.Offset > size {
		return nil, nil
	}

	if !index.IsPersistent(db.options.IndexType) {
		hintPath := filepath.Join(db.options.DirPath, data.HintFileName)
		if _, err := os.Stat(hintPath); err != nil {
			return nil, nil
		}
	}
	return pos, nil
}

// loadIndexFromHintFile 从 hint 文件中加载索引
func (db *DB) loadIndexFromHintFile() error {
	hintFile, err := data.OpenHintFile(db.options.DirPath)
	if err != nil {
		return err
	}
	defer hintFile.Close()

	var offset int64 = 0
	for {
		logRecord, size, err := hintFile.ReadLogRecord(offset)
		if err != nil {
			if err == io.EOF {
				break
			}
			return err
		}
		pos := data.DecodeLogRecordPos(logRecord.Value)
		db.index.Put(logRecord.Key, pos)
		offset += size
	}
	return nil
}

func hintFinishedKey(typ IndexerType) []byte {
	return []byte(hintFinishedKeyPrefix + strconv.Itoa(int(typ)))
}

func removeIfExists(path string) error {
	if err := os.Remove(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return err
	}
	return nil
}
