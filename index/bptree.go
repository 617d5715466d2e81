package index

import (
	"path/filepath"

	bolt "go.etcd.io/bbolt"

	"minikv/data"
)

const BPTreeIndexFileName = "bptree-index"

var indexBucketName = []byte("minikv-index")

// BPlusTree B+ 树索引
// https://github.com/etcd-io/bbolt
type BPlusTree struct {
	tree *bolt.DB
}

// NewBPlusTree opens the bbolt file under dirPath. bbolt handles its own
// locking, so no extra mutex is needed here.
func NewBPlusTree(dirPath string) (*BPlusTree, error) {
	opts := *bolt.DefaultOptions
	opts.NoSync = true
	bptree, err := bolt.Open(filepath.Join(dirPath, BPTreeIndexFileName), 0644, &opts)
	if err != nil {
		return nil, err
	}

	if err := bptree.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(indexBucketName)
		return err
	}); err != nil {
		_ = bptree.Close()
		return nil, err
	}

	return &BPlusTree{tree: bptree}, nil
}

func (bpt *BPlusTree) Put(key []byte, pos *data.LogRecordPos) bool {
	err := bpt.tree.Update(func(tx *bolt.Tx) error {
		bucket := tx.Bucket(indexBucketName)
		return bucket.Put(key, data.EncodeLogRecordPos(pos))
	})
	return err == nil
}

func (bpt *BPlusTree) Get(key []byte) *data.LogRecordPos {
	var pos *data.LogRecordPos
	_ = bpt.tree.View(func(tx *bolt.Tx) error {
		bucket := tx.Bucket(indexBucketName)
		value := bucket.Get(key)
		if len(value) != 0 {
			pos = data.DecodeLogRecordPos(value)
		}
		return nil
	})
	return pos
}

func (bpt *BPlusTree) Delete(key []byte) bool {
	var ok bool
	_ = bpt.tree.Update(func(tx *bolt.Tx) error {
		bucket := tx.Bucket(indexBucketName)
		if value := bucket.Get(key); len(value) != 0 {
			ok = true
			return bucket.Delete(key)
		}
		return nil
	})
	return ok
}

func (bpt *BPlusTree) Size() int {
	var size int
	_ = bpt.tree.View(func(tx *bolt.Tx) error {
		bucket := tx.Bucket(indexBucketName)
		size = bucket.Stats().KeyN
		return nil
	})
	return size
}

func (bpt *BPlusTree) Foreach(fn func(key []byte, pos *data.LogRecordPos) bool) {
	_ = bpt.tree.View(func(tx *bolt.Tx) error {
		cursor := tx.Bucket(indexBucketName).Cursor()
		for k, v := cursor.First(); k != nil; k, v = cursor.Next() {
			if !fn(k, data.DecodeLogRecordPos(v)) {
				break
			}
		}
		return nil
	})
}

// Close syncs the bbolt file before closing it, since writes skip fsync.
func (bpt *BPlusTree) Close() error {
	if err := bpt.tree.Sync(); err != nil {
		_ = bpt.tree.Close()
		return err
	}
	return bpt.tree.Close()
}
