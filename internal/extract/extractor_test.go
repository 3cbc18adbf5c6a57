package extract

import (
	"bytes"
	"context"
	"errors"
	"testing"

	"code.sajari.com/docconv"
	"github.com/quaero-ai/quaero/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPlain_Extract(t *testing.T) {
	ctx := context.Background()
	e := NewPlain()

	result, err := e.Extract(ctx, []byte("  hello world  \n"))
	require.NoError(t, err)
	assert.Equal(t, "hello world", result.Text)
	assert.Empty(t, result.Headings)
	assert.Nil(t, result.Table)
}

func TestPlain_Extract_Empty(t *testing.T) {
	e := NewPlain()

	_, err := e.Extract(context.Background(), []byte("   \n\t"))
	assert.ErrorIs(t, err, ErrEmptyContent)
}

func TestPlain_Extract_InvalidUTF8(t *testing.T) {
	e := NewPlain()

	result, err := e.Extract(context.Background(), []byte{'o', 'k', 0xff, 0xfe})
	require.NoError(t, err)
	assert.Equal(t, "ok", result.Text)
}

func TestMarkdown_Extract_CollectsHeadings(t *testing.T) {
	e := NewMarkdown()

	text := "# Title\n\nIntro paragraph.\n\n## Install\n\nRun make.\n\n```\n# not a heading\n```\n\n## Usage\n\nCall it.\n"
	result, err := e.Extract(context.Background(), []byte(text))
	require.NoError(t, err)
	assert.Equal(t, []string{"# Title", "## Install", "## Usage"}, result.Headings)
}

func TestCSV_Extract(t *testing.T) {
	e := NewCSV()

	content := "name,age\nalice,30\nbob,25\n"
	result, err := e.Extract(context.Background(), []byte(content))
	require.NoError(t, err)

	require.NotNil(t, result.Table)
	assert.Equal(t, []string{"name", "age"}, result.Table.Columns)
	assert.Equal(t, [][]string{{"alice", "30"}, {"bob", "25"}}, result.Table.Rows)
	assert.Contains(t, result.Text, "name: alice, age: 30")
	assert.Contains(t, result.Text, "name: bob, age: 25")
}

func TestCSV_Extract_RaggedRow(t *testing.T) {
	e := NewCSV()

	content := "name,age\nalice,30\nbob\n"
	_, err := e.Extract(context.Background(), []byte(content))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "row 3")
}

func TestCSV_Extract_Empty(t *testing.T) {
	e := NewCSV()

	_, err := e.Extract(context.Background(), []byte(""))
	assert.ErrorIs(t, err, ErrEmptyContent)
}

func TestDocconv_Extract(t *testing.T) {
	e := &Docconv{
		mimeType: string(domain.MediaTypePDF),
		convert: func(r *bytes.Reader, mimeType string, readability bool) (*docconv.Response, error) {
			assert.Equal(t, string(domain.MediaTypePDF), mimeType)
			return &docconv.Response{Body: "  extracted body  "}, nil
		},
	}

	result, err := e.Extract(context.Background(), []byte("%PDF-1.4"))
	require.NoError(t, err)
	assert.Equal(t, "extracted body", result.Text)
}

func TestDocconv_Extract_Error(t *testing.T) {
	e := &Docconv{
		mimeType: string(domain.MediaTypePDF),
		convert: func(r *bytes.Reader, mimeType string, readability bool) (*docconv.Response, error) {
			return nil, errors.New("corrupt file")
		},
	}

	_, err := e.Extract(context.Background(), []byte("junk"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "docconv extraction failed")
}

func TestDocconv_Extract_ContextCancelled(t *testing.T) {
	block := make(chan struct{})
	e := &Docconv{
		mimeType: string(domain.MediaTypePDF),
		convert: func(r *bytes.Reader, mimeType string, readability bool) (*docconv.Response, error) {
			<-block
			return &docconv.Response{Body: "late"}, nil
		},
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := e.Extract(ctx, []byte("junk"))
	assert.ErrorIs(t, err, context.Canceled)
	close(block)
}

func TestRegistry_Extract_UnsupportedMediaType(t *testing.T) {
	r := NewRegistry()

	_, err := r.Extract(context.Background(), "application/zip", []byte("x"))
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrUnsupportedMediaType)
}

func TestRegistry_Extract_PlainText(t *testing.T) {
	r := NewRegistry()

	result, err := r.Extract(context.Background(), domain.MediaTypeText, []byte("some notes"))
	require.NoError(t, err)
	assert.Equal(t, "some notes", result.Text)
}

func TestRegistry_Extract_FallbackChain(t *testing.T) {
	// HTML falls back to plain extraction when docconv cannot convert
	r := NewRegistry()
	r.strategies[domain.MediaTypeHTML] = []Extractor{
		failingExtractor{},
		NewPlain(),
	}

	result, err := r.Extract(context.Background(), domain.MediaTypeHTML, []byte("<p>hi</p>"))
	require.NoError(t, err)
	assert.Equal(t, "<p>hi</p>", result.Text)
}

func TestRegistry_Extract_AllStrategiesFail(t *testing.T) {
	r := NewRegistry()
	r.strategies[domain.MediaTypeHTML] = []Extractor{failingExtractor{}, failingExtractor{}}

	_, err := r.Extract(context.Background(), domain.MediaTypeHTML, []byte("x"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "all extraction strategies failed")
}

func TestRegistry_Supports(t *testing.T) {
	r := NewRegistry()

	assert.True(t, r.Supports(domain.MediaTypePDF))
	assert.True(t, r.Supports(domain.MediaTypeCSV))
	assert.False(t, r.Supports("image/png"))
}

type failingExtractor struct{}

func (failingExtractor) Extract(ctx context.Context, content []byte) (*Result, error) {
	return nil, errors.New("boom")
}
