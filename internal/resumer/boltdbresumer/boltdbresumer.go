// Package boltdbresumer persists torrent resume state in a local BoltDB
// file: one bucket, keyed by info hash, values bencoded.
package boltdbresumer

import (
	"fmt"

	"github.com/boltdb/bolt"
	"github.com/zeebo/bencode"

	"github.com/nimbus-bt/nimbus/internal/resumer"
)

var bucketName = []byte("torrents")

// Resumer implements resumer.Resumer over a BoltDB file.
type Resumer struct {
	db *bolt.DB
}

// New opens (creating if necessary) the BoltDB file at path.
func New(path string) (*Resumer, error) {
	db, err := bolt.Open(path, 0o600, nil)
	if err != nil {
		return nil, err
	}
	err = db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(bucketName)
		return err
	})
	if err != nil {
		db.Close()
		return nil, err
	}
	return &Resumer{db: db}, nil
}

func (r *Resumer) Write(infoHash string, spec resumer.Spec) error {
	b, err := bencode.EncodeBytes(spec)
	if err != nil {
		return err
	}
	return r.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketName).Put([]byte(infoHash), b)
	})
}

func (r *Resumer) Read(infoHash string) (resumer.Spec, error) {
	var spec resumer.Spec
	err := r.db.View(func(tx *bolt.Tx) error {
		v := tx.Bucket(bucketName).Get([]byte(infoHash))
		if v == nil {
			return fmt.Errorf("boltdbresumer: no entry for %s", infoHash)
		}
		return bencode.DecodeBytes(v, &spec)
	})
	return spec, err
}

func (r *Resumer) ReadAll() (map[string]resumer.Spec, error) {
	out := make(map[string]resumer.Spec)
	err := r.db.View(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketName).ForEach(func(k, v []byte) error {
			var spec resumer.Spec
			if err := bencode.DecodeBytes(v, &spec); err != nil {
				return err
			}
			out[string(k)] = spec
			return nil
		})
	})
	return out, err
}

func (r *Resumer) Delete(infoHash string) error {
	return r.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketName).Delete([]byte(infoHash))
	})
}

func (r *Resumer) Close() error { return r.db.Close() }
