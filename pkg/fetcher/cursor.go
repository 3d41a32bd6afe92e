package fetcher

import (
	"context"

	"imgurcomments/pkg/imgur"
)

// Cursor flattens a ChunkStream into single comments. A new page is requested
// only when the buffered chunk is exhausted.
type Cursor struct {
	stream *ChunkStream
	buf    []imgur.Comment
}

// NewCursor wraps stream
func NewCursor(stream *ChunkStream) *Cursor {
	return &Cursor{stream: stream}
}

// Next returns the next comment, or io.EOF at the end of the stream
func (c *Cursor) Next(ctx context.Context) (imgur.Comment, error) {
	for len(c.buf) == 0 {
		chunk, err := c.stream.Next(ctx)
		if err != nil {
			return imgur.Comment{}, err
		}
		c.buf = chunk.Comments
	}

	comment := c.buf[0]
	c.buf = c.buf[1:]
	return comment, nil
}

// Stream returns the underlying chunk stream
func (c *Cursor) Stream() *ChunkStream {
	return c.stream
}
