package redis

import (
	"context"
	"fmt"
	"net"
	"sync"
	"testing"
	"time"

	goredis "github.com/redis/go-redis/v9"
)

// fakeBackend is a go-redis hook that answers GET, SET and DEL from memory
// without calling the next hook, so no connection is ever dialed.
type fakeBackend struct {
	mu       sync.Mutex
	data     map[string]string
	ttls     map[string]time.Duration
	calls    int
	failNext int
	failErr  error
}

var _ goredis.Hook = (*fakeBackend)(nil)

func newFakeClient(t *testing.T, hooks ...goredis.Hook) (*goredis.Client, *fakeBackend) {
	t.Helper()
	fake := &fakeBackend{
		data: make(map[string]string),
		ttls: make(map[string]time.Duration),
	}

	rdb := goredis.NewClient(&goredis.Options{Addr: "fake.invalid:6379"})
	for _, h := range hooks {
		rdb.AddHook(h)
	}
	rdb.AddHook(fake)
	t.Cleanup(func() { _ = rdb.Close() })
	return rdb, fake
}

func (f *fakeBackend) failing(n int, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.failNext = n
	f.failErr = err
}

func (f *fakeBackend) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

func (f *fakeBackend) DialHook(next goredis.DialHook) goredis.DialHook {
	return func(ctx context.Context, network, addr string) (net.Conn, error) {
		return nil, fmt.Errorf("fake backend does not dial %s", addr)
	}
}

func (f *fakeBackend) ProcessPipelineHook(next goredis.ProcessPipelineHook) goredis.ProcessPipelineHook {
	return func(ctx context.Context, cmds []goredis.Cmder) error {
		return fmt.Errorf("fake backend does not pipeline")
	}
}

func (f *fakeBackend) ProcessHook(_ goredis.ProcessHook) goredis.ProcessHook {
	return func(ctx context.Context, cmd goredis.Cmder) error {
		f.mu.Lock()
		defer f.mu.Unlock()

		f.calls++
		if f.failNext > 0 {
			f.failNext--
			cmd.SetErr(f.failErr)
			return f.failErr
		}

		args := cmd.Args()
		key := fmt.Sprint(args[1])

		switch c := cmd.(type) {
		case *goredis.StringCmd:
			v, ok := f.data[key]
			if !ok {
				c.SetErr(goredis.Nil)
				return goredis.Nil
			}
			c.SetVal(v)
		case *goredis.StatusCmd:
			f.data[key] = toString(args[2])
			delete(f.ttls, key)
			if len(args) >= 5 {
				n, _ := args[4].(int64)
				unit := time.Second
				if args[3] == "px" {
					unit = time.Millisecond
				}
				f.ttls[key] = time.Duration(n) * unit
			}
			c.SetVal("OK")
		case *goredis.IntCmd:
			var n int64
			for _, a := range args[1:] {
				k := fmt.Sprint(a)
				if _, ok := f.data[k]; ok {
					delete(f.data, k)
					delete(f.ttls, k)
					n++
				}
			}
			c.SetVal(n)
		default:
			err := fmt.Errorf("fake backend: unsupported command %s", cmd.Name())
			cmd.SetErr(err)
			return err
		}
		return nil
	}
}

func toString(v any) string {
	switch s := v.(type) {
	case []byte:
		return string(s)
	case string:
		return s
	default:
		return fmt.Sprint(s)
	}
}
