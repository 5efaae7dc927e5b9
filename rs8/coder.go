package rs8

import (
	"context"
	"sync"
)

// Coder is an immutable-after-construction Reed-Solomon GF(2^8) coder
// for a fixed (k, n) shape.
type Coder struct {
	k, n        int
	concurrency int
	tables      *gfTables
	encMatrix   *matrix
}

// New constructs a Coder for k data packets and n total packets, with
// the given bounded parallelism for Encode/Decode (at least 1).
func New(k, n, concurrency int) (*Coder, error) {
	if concurrency < 1 {
		concurrency = 1
	}
	tables := newGFTables()
	enc, err := createEncodeMatrix(tables, k, n)
	if err != nil {
		return nil, err
	}
	return &Coder{k: k, n: n, concurrency: concurrency, tables: tables, encMatrix: enc}, nil
}

// K returns the number of data packets.
func (c *Coder) K() int { return c.k }

// N returns the total number of packets (data + parity).
func (c *Coder) N() int { return c.n }

// runRows runs fn(row) for rows 0..count-1 with bounded parallelism,
// checking ctx between dispatched rows.
func runRows(ctx context.Context, concurrency, count int, fn func(row int) error) error {
	sem := make(chan struct{}, concurrency)
	var wg sync.WaitGroup
	errCh := make(chan error, count)

	for row := 0; row < count; row++ {
		select {
		case <-ctx.Done():
			wg.Wait()
			return newError(KindCancelled, ctx.Err())
		default:
		}
		sem <- struct{}{}
		wg.Add(1)
		go func(row int) {
			defer wg.Done()
			defer func() { <-sem }()
			if err := ctx.Err(); err != nil {
				errCh <- newError(KindCancelled, err)
				return
			}
			if err := fn(row); err != nil {
				errCh <- err
			}
		}(row)
	}
	wg.Wait()
	close(errCh)
	for err := range errCh {
		if err != nil {
			return err
		}
	}
	return nil
}

// Encode computes repairs[row] for each row, where index[row] gives
// the global packet position (0..n-1) repairs[row] corresponds to.
// Positions < k are copies of the matching source; positions >= k are
// parity rows computed from the encode matrix.
func (c *Coder) Encode(ctx context.Context, sources [][]byte, index []int, repairs [][]byte, packetLength int) error {
	if len(sources) != c.k {
		return newError(KindInvalidUse, nil)
	}
	if len(index) != len(repairs) {
		return newError(KindInvalidUse, nil)
	}

	return runRows(ctx, c.concurrency, len(repairs), func(row int) error {
		scratch := make([]byte, packetLength)
		pos := index[row]
		dst := repairs[row]
		if pos < c.k {
			copy(dst[:packetLength], sources[pos][:packetLength])
			return nil
		}
		for i := 0; i < packetLength; i++ {
			dst[i] = 0
		}
		for col := 0; col < c.k; col++ {
			coeff := c.encMatrix.at(pos, col)
			c.tables.addMul(dst[:packetLength], sources[col][:packetLength], coeff, scratch)
		}
		return nil
	})
}

// shuffle places every received-but-systematic packet into its
// natural slot, leaving only parity positions unresolved for the
// matrix solve. Fails with duplicate-index on malformed input.
func shuffle(packets [][]byte, index []int, k int) error {
	for i := 0; i < k; {
		if index[i] >= k || index[i] == i {
			i++
			continue
		}
		c := index[i]
		if index[c] == c {
			return newError(KindDuplicateIndex, nil)
		}
		packets[i], packets[c] = packets[c], packets[i]
		index[i], index[c] = index[c], index[i]
	}
	return nil
}

// Decode reconstructs missing data packets in place. packets and index
// both have length k; index[i] names the global position packets[i]
// was received at. On return, every packets[i] is the i-th data
// packet and index[i] == i.
func (c *Coder) Decode(ctx context.Context, packets [][]byte, index []int, packetLength int) error {
	if len(packets) != c.k || len(index) != c.k {
		return newError(KindInvalidUse, nil)
	}

	if err := shuffle(packets, index, c.k); err != nil {
		return err
	}

	dec, err := createDecodeMatrix(c.tables, c.encMatrix, index, c.k)
	if err != nil {
		return err
	}

	missing := make([]int, 0, c.k)
	for r := 0; r < c.k; r++ {
		if index[r] >= c.k {
			missing = append(missing, r)
		}
	}

	decoded := make([][]byte, len(missing))
	err = runRows(ctx, c.concurrency, len(missing), func(j int) error {
		r := missing[j]
		scratch := make([]byte, packetLength)
		temp := make([]byte, packetLength)
		for col := 0; col < c.k; col++ {
			coeff := dec.at(r, col)
			c.tables.addMul(temp, packets[col][:packetLength], coeff, scratch)
		}
		decoded[j] = temp
		return nil
	})
	if err != nil {
		return err
	}

	for j, r := range missing {
		copy(packets[r][:packetLength], decoded[j])
		index[r] = r
	}
	return nil
}
