package minikv

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"sync"

	"github.com/gofrs/flock"
	"go.uber.org/multierr"

	"minikv/data"
	"minikv/fio"
	"minikv/index"
	"minikv/logger"
)

const fileLockName = "flock"

// DB bitcask 存储引擎实例
type DB struct {
	options    Options
	mu         *sync.RWMutex
	fileIds    []int                     // 文件 id，只能在加载索引的时候使用
	activeFile *data.DataFile            // 当前活跃数据文件，可以用于写入
	olderFiles map[uint32]*data.DataFile // 旧的数据文件，只能用于读
	index      index.Indexer             // 内存索引
	fileLock   *flock.Flock
	closed     bool
}

// Stat 存储引擎统计信息
type Stat struct {
	KeyNum      uint  // key 的总数量
	DataFileNum uint  // 数据文件的数量
	DiskSize    int64 // 数据目录所占磁盘空间大小
}

// OpenDefault opens the store at dirPath with DefaultOptions.
func OpenDefault(dirPath string) (*DB, error) {
	opts := DefaultOptions
	opts.DirPath = dirPath
	return Open(opts)
}

// Open 打开 bitcask 存储引擎实例
// The directory is created when missing. A directory already held by
// another open DB fails with ErrStorageUnavailable.
func Open(options Options) (*DB, error) {
	if err := checkOptions(options); err != nil {
		return nil, err
	}

	if err := os.MkdirAll(options.DirPath, os.ModePerm); err != nil {
		return nil, storageUnavailable(err)
	}

	// 判断当前数据目录是否正在使用
	fileLock := flock.New(filepath.Join(options.DirPath, fileLockName))
	hold, err := fileLock.TryLock()
	if err != nil {
		return nil, storageUnavailable(err)
	}
	if !hold {
		return nil, storageUnavailable(ErrDatabaseIsUsing)
	}

	db := &DB{
		options:    options,
		mu:         new(sync.RWMutex),
		olderFiles: make(map[uint32]*data.DataFile),
		fileLock:   fileLock,
	}

	if err := db.load(); err != nil {
		err = multierr.Append(err, db.closeDataFiles())
		if db.index != nil {
			err = multierr.Append(err, db.index.Close())
		}
		err = storageUnavailable(multierr.Append(err, fileLock.Unlock()))
		logger.Error("Failed to open minikv store", err, "path", options.DirPath)
		return nil, err
	}

	logger.Info("Opened minikv store", "path", options.DirPath, "keys", db.index.Size(), "dataFiles", len(db.olderFiles)+1)
	return db, nil
}

func (db *DB) load() error {
	// a persistent index created fresh below cannot vouch for any checkpoint
	persistentIndexExists := false
	if index.IsPersistent(db.options.IndexType) {
		_, err := os.Stat(filepath.Join(db.options.DirPath, index.BPTreeIndexFileName))
		if err != nil && !errors.Is(err, fs.ErrNotExist) {
			return err
		}
		persistentIndexExists = err == nil
	}

	idx, err := index.NewIndexer(db.options.IndexType, db.options.DirPath)
	if err != nil {
		return err
	}
	db.index = idx

	// 加载数据文件
	if err := db.loadDataFiles(); err != nil {
		return err
	}

	checkpoint, err := db.loadCheckpoint()
	if err != nil {
		return err
	}
	if index.IsPersistent(db.options.IndexType) && !persistentIndexExists {
		checkpoint = nil
	}
	if checkpoint != nil && !index.IsPersistent(db.options.IndexType) {
		if err := db.loadIndexFromHintFile(); err != nil {
			return err
		}
	}

	// 从数据文件中加载索引
	if err := db.loadIndexFromDataFiles(checkpoint); err != nil {
		return err
	}

	// 重置 IO 类型为标准文件 IO
	if db.options.MMapAtStartup {
		if err := db.resetIoType(); err != nil {
			return err
		}
	}

	// a torn record at the tail of the active file must not be appended to
	size, err := db.activeFile.IoManager.Size()
	if err != nil {
		return err
	}
	if size > db.activeFile.WriteOff {
		logger.Warn("Skipping torn tail of active data file", "fileId", db.activeFile.FileId, "offset", db.activeFile.WriteOff, "size", size)
		db.olderFiles[db.activeFile.FileId] = db.activeFile
		if err := db.setActiveDataFile(); err != nil {
			return err
		}
	}
	return nil
}

// Put 写入 Key/Value 数据，key 不能为空
func (db *DB) Put(key []byte, value []byte) error {
	if len(key) == 0 {
		return ErrKeyIsEmpty
	}

	logRecord := &data.LogRecord{
		Key:   key,
		Value: value,
		Type:  data.LogRecordNormal,
	}

	db.mu.Lock()
	defer db.mu.Unlock()
	if db.closed {
		return ErrDatabaseClosed
	}

	pos, err := db.appendLogRecord(logRecord)
	if err != nil {
		return ioFailure(err)
	}

	// the caller owns key, so the index keeps its own copy
	if ok := db.index.Put(append([]byte(nil), key...), pos); !ok {
		return ioFailure(ErrIndexUpdateFailed)
	}
	return nil
}

// Get 根据 key 读取数据
// found is false with a nil error when the key has no current mapping.
func (db *DB) Get(key []byte) (value []byte, found bool, err error) {
	db.mu.RLock()
	defer db.mu.RUnlock()
	if db.closed {
		return nil, false, ErrDatabaseClosed
	}

	if len(key) == 0 {
		return nil, false, nil
	}

	// 从内存数据结构中取出 key 对应的索引信息
	logRecordPos := db.index.Get(key)
	if logRecordPos == nil {
		return nil, false, nil
	}

	value, found, err = db.getValueByPosition(logRecordPos)
	if err != nil {
		return nil, false, ioFailure(err)
	}
	return value, found, nil
}

// Delete 根据 key 删除对应的数据
func (db *DB) Delete(key []byte) error {
	_, err := db.Remove(key)
	return err
}

// Remove deletes key like Delete and reports whether it had a mapping. The
// check and the tombstone happen under one lock.
func (db *DB) Remove(key []byte) (existed bool, err error) {
	db.mu.Lock()
	defer db.mu.Unlock()
	if db.closed {
		return false, ErrDatabaseClosed
	}

	if len(key) == 0 {
		return false, nil
	}

	// 先检查 key 是否存在，如果不存在的话直接返回
	if pos := db.index.Get(key); pos == nil {
		return false, nil
	}

	// 构造 LogRecord，标识其是被删除的
	logRecord := &data.LogRecord{Key: key, Type: data.LogRecordDeleted}
	if _, err := db.appendLogRecord(logRecord); err != nil {
		return false, ioFailure(err)
	}

	if ok := db.index.Delete(key); !ok {
		return false, ioFailure(ErrIndexUpdateFailed)
	}
	return true, nil
}

// Sync 持久化数据文件
func (db *DB) Sync() error {
	db.mu.Lock()
	defer db.mu.Unlock()
	if db.closed {
		return ErrDatabaseClosed
	}
	if err := db.activeFile.Sync(); err != nil {
		return ioFailure(err)
	}
	return nil
}

// Stat 返回数据库的相关统计信息
func (db *DB) Stat() (*Stat, error) {
	db.mu.RLock()
	defer db.mu.RUnlock()
	if db.closed {
		return nil, ErrDatabaseClosed
	}

	dirSize, err := dirSize(db.options.DirPath)
	if err != nil {
		return nil, ioFailure(err)
	}
	return &Stat{
		KeyNum:      uint(db.index.Size()),
		DataFileNum: uint(len(db.olderFiles) + 1),
		DiskSize:    dirSize,
	}, nil
}

// Path returns the directory the store lives in.
func (db *DB) Path() string {
	return db.options.DirPath
}

// Close 关闭数据库
// Calling Close more than once is a no-op.
func (db *DB) Close() error {
	db.mu.Lock()
	defer db.mu.Unlock()
	if db.closed {
		return nil
	}
	db.closed = true

	err := db.checkpoint()
	err = multierr.Append(err, db.closeDataFiles())
	err = multierr.Append(err, db.fileLock.Unlock())
	if err != nil {
		err = ioFailure(err)
		logger.Error("Failed to close minikv store cleanly", err, "path", db.options.DirPath)
		return err
	}

	logger.Debug("Closed minikv store", "path", db.options.DirPath)
	return nil
}

// Destroy removes the store directory and everything in it. A missing
// directory is not an error. Destroy refuses to run while a DB holds the
// directory open, and leaves alone a non-empty directory holding no store files.
func Destroy(dirPath string) error {
	if dirPath == "" {
		return ErrDirPathIsEmpty
	}
	entries, err := os.ReadDir(dirPath)
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	} else if err != nil {
		return storageUnavailable(err)
	}
	if len(entries) > 0 && !isStoreDir(entries) {
		return storageUnavailable(ErrNotStoreDir)
	}

	fileLock := flock.New(filepath.Join(dirPath, fileLockName))
	hold, err := fileLock.TryLock()
	if err != nil {
		return storageUnavailable(err)
	}
	if !hold {
		return storageUnavailable(ErrDatabaseIsUsing)
	}
	defer fileLock.Unlock()

	if err := os.RemoveAll(dirPath); err != nil {
		return storageUnavailable(err)
	}

	logger.Info("Destroyed minikv store", "path", dirPath)
	return nil
}

// isStoreDir reports whether entries contain any file a store writes.
func isStoreDir(entries []fs.DirEntry) bool {
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		switch name := entry.Name(); {
		case name == fileLockName,
			name == data.HintFileName,
			name == data.HintFinishedFileName,
			name == index.BPTreeIndexFileName,
			strings.HasSuffix(name, data.DataFileNameSuffix):
			return true
		}
	}
	return false
}

// appendLogRecord 追加写数据到活跃文件中，调用方需要持有写锁
func (db *DB) appendLogRecord(logRecord *data.LogRecord) (*data.LogRecordPos, error) {
	encRecord, size := data.EncodeLogRecord(logRecord)

	// 如果写入的数据已经到达了活跃文件的阈值，则关闭活跃文件，并打开新的文件
	if db.activeFile.WriteOff > 0 && db.activeFile.WriteOff+size > db.options.DataFileSize {
		// 先持久化数据文件，保证已有的数据持久到磁盘当中
		if err := db.activeFile.Sync(); err != nil {
			return nil, err
		}

		// 当前活跃文件转换为旧的数据文件
		db.olderFiles[db.activeFile.FileId] = db.activeFile

		// 打开新的数据文件
		if err := db.setActiveDataFile(); err != nil {
			return nil, err
		}
	}

	writeOff := db.activeFile.WriteOff
	if err := db.activeFile.Write(encRecord); err != nil {
		return nil, err
	}

	return &data.LogRecordPos{Fid: db.activeFile.FileId, Offset: writeOff}, nil
}

// setActiveDataFile 设置当前活跃文件
// 在访问此方法前必须持有互斥锁
func (db *DB) setActiveDataFile() error {
	var initialFileId uint32 = 0
	if db.activeFile != nil {
		initialFileId = db.activeFile.FileId + 1
	}

	dataFile, err := data.OpenDataFile(db.options.DirPath, initialFileId, fio.StandardFIO)
	if err != nil {
		return err
	}
	db.activeFile = dataFile
	return nil
}

func (db *DB) dataFile(fileId uint32) *data.DataFile {
	if db.activeFile != nil && db.activeFile.FileId == fileId {
		return db.activeFile
	}
	return db.olderFiles[fileId]
}

func (db *DB) getValueByPosition(logRecordPos *data.LogRecordPos) ([]byte, bool, error) {
	// 根据文件 id 找到对应的数据文件
	dataFile := db.dataFile(logRecordPos.Fid)
	if dataFile == nil {
		return nil, false, ErrDataFileNotFound
	}

	// 根据偏移读取对应的数据
	logRecord, _, err := dataFile.ReadLogRecord(logRecordPos.Offset)
	if err != nil {
		if err == io.EOF || err == io.ErrUnexpectedEOF {
			return nil, false, ErrDataDirCorrupted
		}
		return nil, false, err
	}

	if logRecord.Type == data.LogRecordDeleted {
		return nil, false, nil
	}
	return logRecord.Value, true, nil
}

// loadDataFiles 从磁盘中加载数据文件
func (db *DB) loadDataFiles() error {
	dirEntries, err := os.ReadDir(db.options.DirPath)
	if err != nil {
		return err
	}

	var fileIds []int
	// 遍历目录中的所有文件，找到所有以 .data 结尾的文件
	for _, entry := range dirEntries {
		if !strings.HasSuffix(entry.Name(), data.DataFileNameSuffix) {
			continue
		}
		splitNames := strings.Split(entry.Name(), ".")
		fileId, err := strconv.Atoi(splitNames[0])
		// 数据目录有可能被损坏了
		if err != nil {
			return ErrDataDirCorrupted
		}
		fileIds = append(fileIds, fileId)
	}

	// 对文件 id 进行排序，从小到大依次加载
	sort.Ints(fileIds)
	db.fileIds = fileIds

	if len(fileIds) == 0 {
		return db.setActiveDataFile()
	}

	ioType := fio.StandardFIO
	if db.options.MMapAtStartup {
		ioType = fio.MemoryMap
	}

	for i, fid := range fileIds {
		dataFile, err := data.OpenDataFile(db.options.DirPath, uint32(fid), ioType)
		if err != nil {
			return err
		}
		// 最后一个，id 是最大的，说明是当前活跃文件
		if i == len(fileIds)-1 {
			db.activeFile = dataFile
		} else {
			db.olderFiles[uint32(fid)] = dataFile
		}
	}
	return nil
}

// loadIndexFromDataFiles 从数据文件中加载索引
// 遍历文件中的所有记录，并更新到内存索引中
// Replay starts at from when a checkpoint is available.
func (db *DB) loadIndexFromDataFiles(from *data.LogRecordPos) error {
	// 没有文件，说明数据库是空的，直接返回
	if len(db.fileIds) == 0 {
		return nil
	}

	for i, fid := range db.fileIds {
		var fileId = uint32(fid)
		if from != nil && fileId < from.Fid {
			continue
		}
		dataFile := db.dataFile(fileId)
		isActive := i == len(db.fileIds)-1

		var offset int64 = 0
		if from != nil && fileId == from.Fid {
			offset = from.Offset
		}
		for {
			logRecord, size, err := dataFile.ReadLogRecord(offset)
			if err != nil {
				if err == io.EOF {
					break
				}
				// only the active file can end in a torn write; older files
				// were synced whole before rotation
				if err == io.ErrUnexpectedEOF && isActive {
					break
				}
				if err == io.ErrUnexpectedEOF {
					return fmt.Errorf("%w: record at %d in data file %d overruns the file", ErrDataDirCorrupted, offset, fileId)
				}
				return err
			}

			// 构造内存索引并保存
			logRecordPos := &data.LogRecordPos{Fid: fileId, Offset: offset}
			var ok bool
			if logRecord.Type == data.LogRecordDeleted {
				db.index.Delete(logRecord.Key)
				ok = true
			} else {
				ok = db.index.Put(logRecord.Key, logRecordPos)
			}
			if !ok {
				return ErrIndexUpdateFailed
			}

			// 递增 offset，下一次从新的位置开始读取
			offset += size
		}

		// 如果是当前活跃文件，更新这个文件的 WriteOff
		if isActive {
			db.activeFile.WriteOff = offset
		}
	}
	return nil
}

func (db *DB) resetIoType() error {
	if db.activeFile == nil {
		return nil
	}
	if err := db.activeFile.SetIOManager(db.options.DirPath, fio.StandardFIO); err != nil {
		return err
	}
	for _, dataFile := range db.olderFiles {
		if err := dataFile.SetIOManager(db.options.DirPath, fio.StandardFIO); err != nil {
			return err
		}
	}
	return nil
}

func (db *DB) closeDataFiles() error {
	var err error
	if db.activeFile != nil {
		err = multierr.Append(err, db.activeFile.Close())
	}
	for _, file := range db.olderFiles {
		err = multierr.Append(err, file.Close())
	}
	return err
}

func dirSize(dirPath string) (int64, error) {
	var size int64
	err := filepath.WalkDir(dirPath, func(_ string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		info, err := d.Info()
		if err != nil {
			return err
		}
		size += info.Size()
		return nil
	})
	return size, err
}
