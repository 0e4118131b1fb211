package utils

import (
	"bytes"
	"fmt"
	"sync"

	"github.com/bytedance/sonic"
)

var bufPool = sync.Pool{
	New: func() interface{} {
		return bytes.NewBuffer(make([]byte, 0, 1024))
	},
}

func Marshal(data interface{}) ([]byte, error) {
	buf := bufPool.Get().(*bytes.Buffer)
	buf.Reset()
	defer func() {
		if buf.Cap() < 16*1024 {
			bufPool.Put(buf)
		}
	}()

	enc := sonic.ConfigDefault.NewEncoder(buf)
	if err := enc.Encode(data); err != nil {
		return nil, err
	}

	out := make([]byte, buf.Len())
	copy(out, buf.Bytes())
	return out, nil
}

func Unmarshal[T any](data []byte, target *T) error {
	return sonic.ConfigDefault.Unmarshal(data, target)
}

// UnmarshalInto is the non-generic form for callers holding the target
// behind an interface.
func UnmarshalInto(data []byte, target interface{}) error {
	return sonic.ConfigDefault.Unmarshal(data, target)
}

// UnmarshalConfig re-marshals an untyped config subtree into a typed struct.
func UnmarshalConfig[T any](config interface{}, target *T) error {
	if config == nil {
		return fmt.Errorf("config is nil")
	}

	if typed, ok := config.(*T); ok {
		*target = *typed
		return nil
	}

	raw, err := sonic.ConfigDefault.Marshal(config)
	if err != nil {
		return err
	}

	return sonic.ConfigDefault.Unmarshal(raw, target)
}
