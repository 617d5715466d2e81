package redis

import (
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tidwall/redcon"

	"minikv"
)

func newTestStore(t *testing.T) Store {
	db, err := minikv.OpenDefault(filepath.Join(t.TempDir(), "minikv-redis"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func args(s ...string) [][]byte {
	b := make([][]byte, len(s))
	for i, v := range s {
		b[i] = []byte(v)
	}
	return b
}

func TestExecute_Ping(t *testing.T) {
	store := newTestStore(t)

	reply, err := execute(store, args("PING"))
	require.NoError(t, err)
	assert.Equal(t, redcon.SimpleString("PONG"), reply)

	reply, err = execute(store, args("ping", "hello"))
	require.NoError(t, err)
	assert.Equal(t, []byte("hello"), reply)

	_, err = execute(store, args("ping", "a", "b"))
	assert.EqualError(t, err, "ERR wrong number of arguments for 'ping' command")
}

func TestExecute_SetGet(t *testing.T) {
	store := newTestStore(t)

	reply, err := execute(store, args("SET", "my key", "my value"))
	require.NoError(t, err)
	assert.Equal(t, redcon.SimpleString("OK"), reply)

	reply, err = execute(store, args("GET", "my key"))
	require.NoError(t, err)
	assert.Equal(t, []byte("my value"), reply)

	reply, err = execute(store, args("GET", "missing"))
	require.NoError(t, err)
	assert.Nil(t, reply)

	_, err = execute(store, args("SET", "only-key"))
	assert.Error(t, err)
	_, err = execute(store, args("GET"))
	assert.Error(t, err)

	_, err = execute(store, args("SET", "", "v"))
	assert.ErrorIs(t, err, minikv.ErrKeyIsEmpty)
}

func TestExecute_DelExists(t *testing.T) {
	store := newTestStore(t)

	_, err := execute(store, args("SET", "a", "1"))
	require.NoError(t, err)
	_, err = execute(store, args("SET", "b", "2"))
	require.NoError(t, err)

	reply, err := execute(store, args("EXISTS", "a", "b", "c"))
	require.NoError(t, err)
	assert.Equal(t, 2, reply)

	reply, err = execute(store, args("DEL", "a", "c"))
	require.NoError(t, err)
	assert.Equal(t, 1, reply)

	reply, err = execute(store, args("EXISTS", "a"))
	require.NoError(t, err)
	assert.Equal(t, 0, reply)

	_, err = execute(store, args("DEL"))
	assert.Error(t, err)
}

func TestExecute_UnknownAndQuit(t *testing.T) {
	store := newTestStore(t)

	_, err := execute(store, args("FLUSHALL"))
	assert.EqualError(t, err, "ERR unknown command 'FLUSHALL'")

	_, err = execute(store, nil)
	assert.Error(t, err)

	_, err = execute(store, args("QUIT"))
	assert.ErrorIs(t, err, errQuit)
}

func TestExecute_ConcurrentDelCountsOnce(t *testing.T) {
	store := newTestStore(t)

	for round := 0; round < 20; round++ {
		_, err := execute(store, args("SET", "k", "v"))
		require.NoError(t, err)

		var (
			wg    sync.WaitGroup
			mu    sync.Mutex
			total int
		)
		for i := 0; i < 8; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				reply, err := execute(store, args("DEL", "k"))
				assert.NoError(t, err)
				mu.Lock()
				n, _ := reply.(int)
				total += n
				mu.Unlock()
			}()
		}
		wg.Wait()
		assert.Equal(t, 1, total)
	}
}
