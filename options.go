package minikv

import (
	"os"
	"path/filepath"

	"minikv/index"
)

type Options struct {
	// 数据库数据目录
	DirPath string

	// 数据文件的大小，超过之后切换新的活跃文件
	DataFileSize int64

	// 索引类型
	IndexType IndexerType

	// 启动时是否使用 MMap 加载数据
	MMapAtStartup bool
}

type IndexerType = index.IndexType

const (
	// BTree 索引
	BTree IndexerType = index.Btree

	// ART 自适应基数树索引
	ART IndexerType = index.ART

	// BPlusTree B+ 树索引，将索引存储到磁盘上
	BPlusTree IndexerType = index.BPTree
)

var DefaultOptions = Options{
	DirPath:       filepath.Join(os.TempDir(), "minikv"),
	DataFileSize:  256 * 1024 * 1024, // 256MB
	IndexType:     BTree,
	MMapAtStartup: true,
}

func checkOptions(options Options) error {
	if options.DirPath == "" {
		return ErrDirPathIsEmpty
	}
	if options.DataFileSize <= 0 {
		return ErrDataFileSizeInvalid
	}
	switch options.IndexType {
	case BTree, ART, BPlusTree:
	default:
		return ErrIndexTypeInvalid
	}
	return nil
}
