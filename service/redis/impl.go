package redis

import (
	"errors"
	"time"

	"github.com/gomodule/redigo/redis"

	"github.com/nftmarket/goapi/base/ctx"
	"github.com/nftmarket/goapi/base/metrics"
)

var (
	// ErrNotFound is returned when the key does not exist
	ErrNotFound = errors.New("redis: not found")
)

const (
	// retTTLNoKey is the return value of TTL when the key does not exist
	retTTLNoKey = -2
)

// Service covers the redis operations the cache tier relies on.
type Service interface {
	Get(context ctx.Ctx, key string) ([]byte, error)
	Set(context ctx.Ctx, key string, value []byte, expire time.Duration) error
	Del(context ctx.Ctx, keys ...string) (int, error)
	TTL(context ctx.Ctx, key string) (int64, error)
	Exists(context ctx.Ctx, key string) (bool, error)
	Incrby(context ctx.Ctx, key string, value int) (int64, error)
}

type redImpl struct {
	name  string
	met   metrics.Service
	pools *Pools
}

// Pools represents different pool types
type Pools struct {
	Src *redis.Pool
}

// New redis pool
func New(name string, metrics metrics.Service, pools *Pools) Service {
	return &redImpl{
		name:  name,
		met:   metrics,
		pools: pools,
	}
}

func (r *redImpl) getConn() (redis.Conn, error) {
	defer r.met.BumpTime("getconn.time", "cluster", r.name).End()

	conn := r.pools.Src.Get()
	if err := conn.Err(); err != nil {
		r.met.BumpSum("getConn.err", 1, "cluster", r.name, "reason", err.Error())
		return nil, err
	}
	return conn, nil
}

func (r *redImpl) connDo(context ctx.Ctx, commandName string, args ...interface{}) (interface{}, error) {
	conn, err := r.getConn()
	if err != nil {
		return nil, err
	}

	reply, err := conn.Do(commandName, args...)

	// close asap, holding connections makes the pool burst
	if err := conn.Close(); err != nil {
		r.met.BumpSum("conn.Close.err", 1, "cluster", r.name)
	}
	return reply, err
}

func (r *redImpl) Get(context ctx.Ctx, key string) ([]byte, error) {
	defer r.met.BumpTime("time", "func", "get", "cluster", r.name).End()

	val, err := redis.Bytes(r.connDo(context, "GET", key))
	if err == redis.ErrNil {
		return nil, ErrNotFound
	} else if err != nil {
		r.met.BumpSum("get.err", 1, "cluster", r.name)
		return nil, err
	}
	return val, nil
}

func (r *redImpl) Set(context ctx.Ctx, key string, value []byte, expire time.Duration) error {
	defer r.met.BumpTime("time", "func", "set", "cluster", r.name).End()

	var err error
	if expire > 0 {
		_, err = r.connDo(context, "SETEX", key, int64(expire.Seconds()), value)
	} else {
		_, err = r.connDo(context, "SET", key, value)
	}
	if err != nil {
		r.met.BumpSum("set.err", 1, "cluster", r.name)
	}
	return err
}

func (r *redImpl) Del(context ctx.Ctx, keys ...string) (int, error) {
	defer r.met.BumpTime("time", "func", "del", "cluster", r.name).End()

	args := make([]interface{}, 0, len(keys))
	for _, k := range keys {
		args = append(args, k)
	}
	n, err := redis.Int(r.connDo(context, "DEL", args...))
	if err != nil {
		r.met.BumpSum("del.err", 1, "cluster", r.name)
		return 0, err
	}
	return n, nil
}

func (r *redImpl) TTL(context ctx.Ctx, key string) (int64, error) {
	ttl, err := redis.Int64(r.connDo(context, "TTL", key))
	if err != nil {
		return 0, err
	}
	if ttl == retTTLNoKey {
		return 0, ErrNotFound
	}
	return ttl, nil
}

func (r *redImpl) Exists(context ctx.Ctx, key string) (bool, error) {
	return redis.Bool(r.connDo(context, "EXISTS", key))
}

func (r *redImpl) Incrby(context ctx.Ctx, key string, value int) (int64, error) {
	return redis.Int64(r.connDo(context, "INCRBY", key, value))
}
