package storage

// PrefixDB wraps a DB and prepends a fixed prefix to all keys, giving each
// ledger component its own namespace within one underlying database.
type PrefixDB struct {
	inner  DB
	prefix []byte
}

// NewPrefixDB creates a new PrefixDB wrapping inner with the given prefix.
func NewPrefixDB(inner DB, prefix []byte) *PrefixDB {
	return &PrefixDB{inner: inner, prefix: append([]byte(nil), prefix...)}
}

func (p *PrefixDB) key(k []byte) []byte {
	out := make([]byte, 0, len(p.prefix)+len(k))
	return append(append(out, p.prefix...), k...)
}

// Get retrieves a value by key.
func (p *PrefixDB) Get(key []byte) ([]byte, error) { return p.inner.Get(p.key(key)) }

// Put stores a key-value pair.
func (p *PrefixDB) Put(key, value []byte) error { return p.inner.Put(p.key(key), value) }

// Delete removes a key.
func (p *PrefixDB) Delete(key []byte) error { return p.inner.Delete(p.key(key)) }

// Has checks if a key exists.
func (p *PrefixDB) Has(key []byte) (bool, error) { return p.inner.Has(p.key(key)) }

// ForEach iterates over keys with the given prefix inside the namespace.
// Keys passed to fn have the namespace stripped.
func (p *PrefixDB) ForEach(prefix []byte, fn func(key, value []byte) error) error {
	n := len(p.prefix)
	return p.inner.ForEach(p.key(prefix), func(key, value []byte) error {
		return fn(key[n:], value)
	})
}

// DeleteAll removes every key in the namespace in one batch.
func (p *PrefixDB) DeleteAll() error {
	b := NewBatch(p.inner)
	err := p.inner.ForEach(p.prefix, func(key, _ []byte) error {
		return b.Delete(key)
	})
	if err != nil {
		return err
	}
	return b.Commit()
}

// Close is a no-op; the inner DB owns its lifecycle.
func (p *PrefixDB) Close() error {
	return nil
}

// NewBatch returns a batch of the inner DB with keys namespaced.
func (p *PrefixDB) NewBatch() Batch {
	return &prefixBatch{inner: NewBatch(p.inner), db: p}
}

type prefixBatch struct {
	inner Batch
	db    *PrefixDB
}

func (b *prefixBatch) Put(key, value []byte) error { return b.inner.Put(b.db.key(key), value) }
func (b *prefixBatch) Delete(key []byte) error     { return b.inner.Delete(b.db.key(key)) }
func (b *prefixBatch) Commit() error               { return b.inner.Commit() }
