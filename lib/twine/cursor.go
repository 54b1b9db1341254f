package twine

// ArrayCursor is a lazy, single-pass, finite iterator over the child
// offsets of an array (or, with nItems capped accordingly, the
// argument list of a constructor). It borrows the decoder it was built
// from, which is cheap to copy (just a byte-slice reference).
//
// Usage:
//
//	for cur.Next() {
//	    off, err := cur.Offset()
//	    ...
//	}
//	if err := cur.Err(); err != nil { ... }
type ArrayCursor struct {
	dec     *Decoder
	off     Offset
	nItems  uint32
	current Offset
	err     error
	started bool
}

// Len returns the number of items the cursor will yield before
// exhaustion; callers can pre-size containers using this.
func (c *ArrayCursor) Len() int {
	return int(c.nItems)
}

// Next advances the cursor and reports whether another item is
// available. It must be called before the first Offset().
func (c *ArrayCursor) Next() bool {
	if c.err != nil || c.nItems == 0 {
		return false
	}
	if c.started {
		next, err := c.dec.Skip(c.current)
		if err != nil {
			c.err = err
			c.nItems = 0
			return false
		}
		c.off = next
	}
	c.started = true
	c.current = c.off
	c.nItems--
	return true
}

// Offset returns the current item's offset, or an error if skipping to
// it failed.
func (c *ArrayCursor) Offset() (Offset, error) {
	if c.err != nil {
		return 0, c.err
	}
	return c.current, nil
}

// Err returns the first error encountered during iteration, if any.
func (c *ArrayCursor) Err() error {
	return c.err
}

// MapCursor is a lazy, single-pass, finite iterator over the (key,
// value) offset pairs of a map.
type MapCursor struct {
	dec        *Decoder
	off        Offset
	nItems     uint32
	currentK   Offset
	currentV   Offset
	err        error
	started    bool
}

// Len returns the number of pairs the cursor will yield before exhaustion.
func (c *MapCursor) Len() int {
	return int(c.nItems)
}

// Next advances the cursor and reports whether another pair is available.
func (c *MapCursor) Next() bool {
	if c.err != nil || c.nItems == 0 {
		return false
	}
	if c.started {
		next, err := c.dec.Skip(c.currentV)
		if err != nil {
			c.err = err
			c.nItems = 0
			return false
		}
		c.off = next
	}
	c.started = true
	keyOff := c.off
	valOff, err := c.dec.Skip(keyOff)
	if err != nil {
		c.err = err
		c.nItems = 0
		return false
	}
	c.currentK = keyOff
	c.currentV = valOff
	c.nItems--
	return true
}

// Pair returns the current (key, value) offset pair.
func (c *MapCursor) Pair() (Offset, Offset, error) {
	if c.err != nil {
		return 0, 0, c.err
	}
	return c.currentK, c.currentV, nil
}

// Err returns the first error encountered during iteration, if any.
func (c *MapCursor) Err() error {
	return c.err
}
