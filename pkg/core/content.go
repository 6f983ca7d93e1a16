package core

import (
	"errors"

	"github.com/tonkeeper/tongo/boc"
)

const (
	offchainContentPrefix = 0x01
	snakeCellBytes        = 127
)

// Content is either an off-chain metadata URI or a prebuilt content cell.
// The on-chain dictionary layout is produced elsewhere and passed as Raw.
type Content struct {
	uri *string
	raw *boc.Cell
}

func OffchainContent(uri string) Content {
	return Content{uri: &uri}
}

func RawContent(c *boc.Cell) Content {
	return Content{raw: c}
}

func (c Content) ToCell() (*boc.Cell, error) {
	switch {
	case c.raw != nil:
		return c.raw, nil
	case c.uri != nil:
		return snakeCell(append([]byte{offchainContentPrefix}, *c.uri...))
	}
	return nil, errors.New("empty content")
}

func snakeCell(data []byte) (*boc.Cell, error) {
	var chunks [][]byte
	for len(data) > snakeCellBytes {
		chunks = append(chunks, data[:snakeCellBytes])
		data = data[snakeCellBytes:]
	}
	chunks = append(chunks, data)
	var next *boc.Cell
	for i := len(chunks) - 1; i >= 0; i-- {
		cell := boc.NewCell()
		if err := cell.WriteBytes(chunks[i]); err != nil {
			return nil, err
		}
		if next != nil {
			if err := cell.AddRef(next); err != nil {
				return nil, err
			}
		}
		next = cell
	}
	return next, nil
}
