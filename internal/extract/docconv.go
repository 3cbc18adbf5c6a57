package extract

import (
	"bytes"
	"context"
	"fmt"
	"strings"

	"code.sajari.com/docconv"
)

// converter matches docconv's Convert so tests can stub the native
// conversion
type converter func(r *bytes.Reader, mimeType string, readability bool) (*docconv.Response, error)

// Docconv extracts text from binary formats (PDF, DOCX, HTML) through
// the docconv conversion library. One instance is created per media
// type at registry construction.
type Docconv struct {
	mimeType string
	convert  converter
}

func NewDocconv(mimeType string) *Docconv {
	return &Docconv{
		mimeType: mimeType,
		convert: func(r *bytes.Reader, mimeType string, readability bool) (*docconv.Response, error) {
			return docconv.Convert(r, mimeType, readability)
		},
	}
}

func (e *Docconv) Extract(ctx context.Context, content []byte) (*Result, error) {
	type converted struct {
		res *docconv.Response
		err error
	}

	// docconv has no context support; run it aside so a stalled native
	// conversion cannot block the worker slot past its deadline
	done := make(chan converted, 1)
	go func() {
		res, err := e.convert(bytes.NewReader(content), e.mimeType, false)
		done <- converted{res: res, err: err}
	}()

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case c := <-done:
		if c.err != nil {
			return nil, fmt.Errorf("docconv extraction failed: %w", c.err)
		}
		text := strings.TrimSpace(c.res.Body)
		if text == "" {
			return nil, ErrEmptyContent
		}
		return &Result{Text: text}, nil
	}
}
