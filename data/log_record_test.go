package data

import (
	"hash/crc32"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestEncodeLogRecord(t *testing.T) {
	// 正常情况
	rec1 := &LogRecord{
		Key:   []byte("name"),
		Value: []byte("bitcask-go"),
		Type:  LogRecordNormal,
	}
	res1, n1 := EncodeLogRecord(rec1)
	assert.NotNil(t, res1)
	assert.Greater(t, n1, int64(5))
	assert.Equal(t, n1, int64(len(res1)))

	// value 为空的情况
	rec2 := &LogRecord{
		Key:  []byte("name"),
		Type: LogRecordNormal,
	}
	res2, n2 := EncodeLogRecord(rec2)
	assert.NotNil(t, res2)
	assert.Equal(t, int64(5+1+1+4), n2)

	// Deleted 情况
	rec3 := &LogRecord{
		Key:   []byte("name"),
		Value: []byte("bitcask-go"),
		Type:  LogRecordDeleted,
	}
	res3, _ := EncodeLogRecord(rec3)
	assert.Equal(t, LogRecordDeleted, res3[4])
}

func TestDecodeLogRecordHeader(t *testing.T) {
	rec := &LogRecord{
		Key:   []byte("name"),
		Value: []byte("bitcask-go"),
		Type:  LogRecordDeleted,
	}
	enc, _ := EncodeLogRecord(rec)

	h, size := decodeLogRecordHeader(enc)
	assert.NotNil(t, h)
	assert.Equal(t, int64(7), size)
	assert.Equal(t, crc32.ChecksumIEEE(enc[4:]), h.crc)
	assert.Equal(t, LogRecordDeleted, h.recordType)
	assert.Equal(t, uint32(4), h.keySize)
	assert.Equal(t, uint32(10), h.valueSize)

	h, size = decodeLogRecordHeader(enc[:3])
	assert.Nil(t, h)
	assert.Equal(t, int64(0), size)
}

func TestGetLogRecordCRC(t *testing.T) {
	rec := &LogRecord{
		Key:   []byte("name"),
		Value: []byte("bitcask-go"),
		Type:  LogRecordNormal,
	}
	enc, _ := EncodeLogRecord(rec)
	h, size := decodeLogRecordHeader(enc)

	crc := getLogRecordCRC(rec, enc[crc32.Size:size])
	assert.Equal(t, h.crc, crc)
	assert.Equal(t, uint32(0), getLogRecordCRC(nil, nil))
}

func TestLogRecordPos(t *testing.T) {
	pos := &LogRecordPos{Fid: 12, Offset: 9876543210}
	assert.Equal(t, pos, DecodeLogRecordPos(EncodeLogRecordPos(pos)))
}
