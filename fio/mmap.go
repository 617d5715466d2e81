package fio

import (
	"errors"
	"os"

	"golang.org/x/exp/mmap"
)

var ErrReadOnly = errors.New("mmap io manager is read only")

// MMap 内存文件映射
type MMap struct {
	readerAt *mmap.ReaderAt
}

// NewMMapIOManager maps fileName read-only, creating it first when missing.
func NewMMapIOManager(fileName string) (*MMap, error) {
	f, err := os.OpenFile(fileName, os.O_CREATE, DataFilePerm)
	if err != nil {
		return nil, err
	}
	if err := f.Close(); err != nil {
		return nil, err
	}
	readerAt, err := mmap.Open(fileName)
	if err != nil {
		return nil, err
	}
	return &MMap{readerAt: readerAt}, nil
}

func (mmap *MMap) Read(b []byte, offset int64) (int, error) {
	return mmap.readerAt.ReadAt(b, offset)
}

func (mmap *MMap) Write([]byte) (int, error) {
	return 0, ErrReadOnly
}

func (mmap *MMap) Sync() error {
	return ErrReadOnly
}

func (mmap *MMap) Close() error {
	return mmap.readerAt.Close()
}

func (mmap *MMap) Size() (int64, error) {
	return int64(mmap.readerAt.Len()), nil
}
