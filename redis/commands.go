package redis

import (
	"errors"
	"fmt"
	"strings"

	"github.com/tidwall/redcon"
)

// Store is the subset of *minikv.DB the RESP front end needs.
type Store interface {
	Put(key []byte, value []byte) error
	Get(key []byte) ([]byte, bool, error)
	Remove(key []byte) (bool, error)
}

var errQuit = errors.New("quit")

type cmdHandler func(store Store, args [][]byte) (interface{}, error)

var supportedCommands = map[string]cmdHandler{
	"ping":   ping,
	"set":    set,
	"get":    get,
	"del":    del,
	"exists": exists,
	"quit":   quit,
}

func newWrongNumberOfArgsError(cmd string) error {
	return fmt.Errorf("ERR wrong number of arguments for '%s' command", cmd)
}

// execute runs a single command. The reply is one of nil (null bulk),
// redcon.SimpleString, []byte (bulk), int or an error.
func execute(store Store, args [][]byte) (interface{}, error) {
	if len(args) == 0 {
		return nil, errors.New("ERR empty command")
	}
	command := strings.ToLower(string(args[0]))
	handler, ok := supportedCommands[command]
	if !ok {
		return nil, fmt.Errorf("ERR unknown command '%s'", string(args[0]))
	}
	return handler(store, args[1:])
}

func ping(_ Store, args [][]byte) (interface{}, error) {
	switch len(args) {
	case 0:
		return redcon.SimpleString("PONG"), nil
	case 1:
		return args[0], nil
	default:
		return nil, newWrongNumberOfArgsError("ping")
	}
}

func set(store Store, args [][]byte) (interface{}, error) {
	if len(args) != 2 {
		return nil, newWrongNumberOfArgsError("set")
	}
	if err := store.Put(args[0], args[1]); err != nil {
		return nil, err
	}
	return redcon.SimpleString("OK"), nil
}

func get(store Store, args [][]byte) (interface{}, error) {
	if len(args) != 1 {
		return nil, newWrongNumberOfArgsError("get")
	}
	value, found, err := store.Get(args[0])
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, nil
	}
	return value, nil
}

func del(store Store, args [][]byte) (interface{}, error) {
	if len(args) == 0 {
		return nil, newWrongNumberOfArgsError("del")
	}
	var deleted int
	for _, key := range args {
		existed, err := store.Remove(key)
		if err != nil {
			return nil, err
		}
		if existed {
			deleted++
		}
	}
	return deleted, nil
}

func exists(store Store, args [][]byte) (interface{}, error) {
	if len(args) == 0 {
		return nil, newWrongNumberOfArgsError("exists")
	}
	var count int
	for _, key := range args {
		_, found, err := store.Get(key)
		if err != nil {
			return nil, err
		}
		if found {
			count++
		}
	}
	return count, nil
}

func quit(_ Store, _ [][]byte) (interface{}, error) {
	return redcon.SimpleString("OK"), errQuit
}
