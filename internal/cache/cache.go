// Package cache keeps imported scenes in a bbolt file keyed by a hash of the
// archive bytes and the import parameters, so repeated batch runs skip the
// decode. Cached scenes carry no graph references (Bone.Joint and
// Bone.Objects are unset).
package cache

import (
	"encoding/binary"
	"fmt"
	"time"

	"github.com/DataDog/zstd"
	"github.com/cespare/xxhash/v2"
	"go.etcd.io/bbolt"

	"hsd-scene-io/internal/node"
	"hsd-scene-io/internal/scene"
	"hsd-scene-io/internal/scenefile"
)

var scenesBucket = []byte("scenes")

// Cache is safe for concurrent use; bbolt serializes writers.
type Cache struct {
	db *bbolt.DB
}

// Open opens or creates the cache file at path.
func Open(path string) (*Cache, error) {
	opts := *bbolt.DefaultOptions
	opts.Timeout = 10 * time.Second
	db, err := bbolt.Open(path, 0644, &opts)
	if err != nil {
		return nil, fmt.Errorf("cache: open %s: %w", path, err)
	}
	err = db.Update(func(tx *bbolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(scenesBucket)
		return err
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("cache: init %s: %w", path, err)
	}
	return &Cache{db: db}, nil
}

// Close releases the cache file.
func (c *Cache) Close() error {
	return c.db.Close()
}

// Key identifies one import of data. Options that do not change the result
// representation (units vs. global scale) are folded into the net scale.
func Key(data []byte, symbol string, offset int, kind node.DataKind, opts scene.ImportOptions) uint64 {
	d := xxhash.New()
	d.Write(data)
	fmt.Fprintf(d, "\x00v%d\x00%s\x00%d\x00%d\x00%g\x00%t\x00%t\x00%d\x00%t\x00%d\x00%d",
		scenefile.Version, symbol, offset, kind,
		scene.NetScale(opts.GlobalScale, opts.Units),
		opts.ImportAnimation, opts.IKHack, opts.MaxFrame, opts.UseMaxFrame,
		opts.AxisForward, opts.AxisUp)
	return d.Sum64()
}

func keyBytes(k uint64) []byte {
	var b [8]byte
	binary.BigEndian.PutUint64(b[:], k)
	return b[:]
}

// Get returns the cached file for key. ok is false on a miss.
func (c *Cache) Get(key uint64) (f *scenefile.File, ok bool, err error) {
	var payload []byte
	err = c.db.View(func(tx *bbolt.Tx) error {
		if v := tx.Bucket(scenesBucket).Get(keyBytes(key)); v != nil {
			payload = append([]byte(nil), v...)
		}
		return nil
	})
	if err != nil || payload == nil {
		return nil, false, err
	}
	raw, err := zstd.Decompress(nil, payload)
	if err != nil {
		return nil, false, fmt.Errorf("cache: entry %016x: %w", key, err)
	}
	f, err = scenefile.Unmarshal(raw, scenefile.Binary)
	if err != nil {
		return nil, false, fmt.Errorf("cache: entry %016x: %w", key, err)
	}
	return f, true, nil
}

// Put stores f under key, replacing any earlier entry.
func (c *Cache) Put(key uint64, f *scenefile.File) error {
	raw, err := scenefile.Marshal(f, scenefile.Binary)
	if err != nil {
		return err
	}
	payload, err := zstd.Compress(nil, raw)
	if err != nil {
		return fmt.Errorf("cache: compress: %w", err)
	}
	return c.db.Update(func(tx *bbolt.Tx) error {
		return tx.Bucket(scenesBucket).Put(keyBytes(key), payload)
	})
}

// Len reports the number of cached scenes.
func (c *Cache) Len() (n int, err error) {
	err = c.db.View(func(tx *bbolt.Tx) error {
		n = tx.Bucket(scenesBucket).Stats().KeyN
		return nil
	})
	return n, err
}

// Import returns the cached scene for these parameters or runs scene.Import
// and stores the result. Failed imports are not cached.
func (c *Cache) Import(source string, data []byte, symbol string, offset int, kind node.DataKind, opts scene.ImportOptions) (sc *scene.Scene, hit bool, err error) {
	key := Key(data, symbol, offset, kind, opts)
	f, ok, err := c.Get(key)
	if err != nil {
		return nil, false, err
	}
	if ok {
		sc = f.Scene
		sc.Warnings = f.Errors()
		return sc, true, nil
	}

	sc, err = scene.Import(data, symbol, offset, kind, opts)
	if err != nil {
		return nil, false, err
	}
	if err := c.Put(key, scenefile.New(source, sc)); err != nil {
		return sc, false, err
	}
	return sc, false, nil
}
