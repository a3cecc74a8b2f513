// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package extractor

import (
	"context"
	"image"
	"image/color"
	"image/png"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pdiddy/pii-masker/internal/container"
	"github.com/pdiddy/pii-masker/internal/testpdf"
	"github.com/pdiddy/pii-masker/pkg/types"
)

// fakeOCR returns canned tokens.
type fakeOCR struct {
	tokens []types.OCRToken
	err    error
	calls  int
}

func (f *fakeOCR) Recognize(context.Context, string) ([]types.OCRToken, error) {
	f.calls++
	return f.tokens, f.err
}

// fakeRuntime records the spec it was asked to run and replies with out.
type fakeRuntime struct {
	imageErr error
	runErr   error
	out      string
	spec     container.Spec
	stdin    []byte
}

func (f *fakeRuntime) Name() string { return "docker" }
func (f *fakeRuntime) Available(context.Context) bool { return true }
func (f *fakeRuntime) ImageExists(context.Context, string) error {
	return f.imageErr
}

func (f *fakeRuntime) Run(_ context.Context, spec container.Spec, stdin io.Reader, stdout io.Writer) error {
	f.spec = spec
	f.stdin, _ = io.ReadAll(stdin)
	if f.runErr != nil {
		return f.runErr
	}
	_, err := io.WriteString(stdout, f.out)
	return err
}

func writePNG(t *testing.T, w, h int) string {
	t.Helper()
	img := image.NewGray(image.Rect(0, 0, w, h))
	for i := range img.Pix {
		img.Pix[i] = 0xff
	}
	img.SetGray(0, 0, color.Gray{})
	path := filepath.Join(t.TempDir(), "scan.png")
	f, err := os.Create(path)
	require.NoError(t, err)
	require.NoError(t, png.Encode(f, img))
	require.NoError(t, f.Close())
	return path
}

const sampleTSV = "level\tpage_num\tblock_num\tpar_num\tline_num\tword_num\tleft\ttop\twidth\theight\tconf\ttext\n" +
	"1\t1\t0\t0\t0\t0\t0\t0\t400\t200\t-1\t\n" +
	"4\t1\t1\t1\t1\t0\t10\t10\t130\t20\t-1\t\n" +
	"5\t1\t1\t1\t1\t1\t10\t10\t90\t20\t96.5\t010-1234-5678\n" +
	"5\t1\t1\t1\t1\t2\t110\t10\t30\t20\t91\tKim\n" +
	"5\t1\t1\t1\t1\t3\t150\t10\t5\t20\t30\t \n" +
	"5\t1\t1\t1\t2\t1\t10\t50\t50\t20\t88\tSeoul\n"

func TestParseTSV(t *testing.T) {
	tokens, err := parseTSV(strings.NewReader(sampleTSV), 0)
	require.NoError(t, err)
	require.Len(t, tokens, 3)

	assert.Equal(t, types.OCRToken{
		BBox: types.Rect{X0: 10, Y0: 10, X1: 100, Y1: 30},
		Text: "010-1234-5678",
		Conf: 0.965,
	}, tokens[0])
	assert.Equal(t, "Kim", tokens[1].Text)
	assert.Equal(t, types.Rect{X0: 10, Y0: 50, X1: 60, Y1: 70}, tokens[2].BBox)

	t.Run("empty output", func(t *testing.T) {
		tokens, err := parseTSV(strings.NewReader(""), 0)
		require.NoError(t, err)
		assert.Empty(t, tokens)
	})
	t.Run("malformed row", func(t *testing.T) {
		_, err := parseTSV(strings.NewReader("5\t1\t1\n"), 0)
		assert.Error(t, err)
	})
	t.Run("bad number", func(t *testing.T) {
		_, err := parseTSV(strings.NewReader("5\t1\t1\t1\t1\t1\tx\t10\t90\t20\t96\tword\n"), 0)
		assert.Error(t, err)
	})
}

func TestNativeExtractorPDF(t *testing.T) {
	path := filepath.Join(t.TempDir(), "doc.pdf")
	require.NoError(t, testpdf.Write(path,
		testpdf.Page{Lines: []testpdf.Line{
			{X: 72, Y: 700, Size: 10, Text: "From John Doe"},
			{X: 72, Y: 650, Size: 10, Text: "Phone 010-1234-5678"},
		}},
		testpdf.Page{Lines: []testpdf.Line{{X: 72, Y: 700, Size: 10, Text: "Page two"}}},
	))

	ocr := &fakeOCR{}
	ex, err := (&NativeExtractor{OCR: ocr}).Extract(context.Background(), path)
	require.NoError(t, err)

	assert.Equal(t, 0, ocr.calls, "text layer is used for PDFs")
	assert.False(t, ex.Scanned)
	assert.Equal(t, 2, ex.Pages)
	assert.Equal(t, "From John Doe\nPhone 010-1234-5678\fPage two", ex.Text)

	var words []string
	for _, tok := range ex.Tokens {
		words = append(words, tok.Text)
	}
	assert.Equal(t, []string{"From", "John", "Doe", "Phone", "010-1234-5678", "Page", "two"}, words)
	assert.Equal(t, 1, ex.Tokens[len(ex.Tokens)-1].PageIndex)
	assert.InDelta(t, 72.0, ex.Tokens[0].BBox.X0, 0.01)
}

func TestNativeExtractorImage(t *testing.T) {
	path := writePNG(t, 400, 200)

	t.Run("no backend", func(t *testing.T) {
		_, err := (&NativeExtractor{}).Extract(context.Background(), path)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "no OCR backend")
	})

	t.Run("tokens become the text layer", func(t *testing.T) {
		tokens, err := parseTSV(strings.NewReader(sampleTSV), 0)
		require.NoError(t, err)
		ex, err := (&NativeExtractor{OCR: &fakeOCR{tokens: tokens}}).Extract(context.Background(), path)
		require.NoError(t, err)
		assert.True(t, ex.Scanned)
		assert.Equal(t, 1, ex.Pages)
		assert.Equal(t, "010-1234-5678 Kim\nSeoul", ex.Text)
		assert.Equal(t, tokens, ex.Tokens)
	})

	t.Run("backend failure", func(t *testing.T) {
		_, err := (&NativeExtractor{OCR: &fakeOCR{err: errors.New("engine crashed")}}).Extract(context.Background(), path)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "engine crashed")
	})

	t.Run("deterministic", func(t *testing.T) {
		tokens, _ := parseTSV(strings.NewReader(sampleTSV), 0)
		e := &NativeExtractor{OCR: &fakeOCR{tokens: tokens}}
		a, err := e.Extract(context.Background(), path)
		require.NoError(t, err)
		b, err := e.Extract(context.Background(), path)
		require.NoError(t, err)
		assert.Equal(t, a, b)
	})
}

func TestNativeExtractorErrors(t *testing.T) {
	_, err := (&NativeExtractor{}).Extract(context.Background(), filepath.Join(t.TempDir(), "missing.pdf"))
	assert.Error(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = (&NativeExtractor{}).Extract(ctx, writePNG(t, 4, 4))
	assert.ErrorIs(t, err, context.Canceled)
}

func TestContainerOCR(t *testing.T) {
	path := writePNG(t, 400, 200)
	raw, err := os.ReadFile(path)
	require.NoError(t, err)

	rt := &fakeRuntime{out: sampleTSV}
	c, err := NewContainerOCR(context.Background(), rt, "jitesoft/tesseract-ocr:latest", "kor+eng")
	require.NoError(t, err)

	tokens, err := c.Recognize(context.Background(), path)
	require.NoError(t, err)
	assert.Len(t, tokens, 3)
	assert.Equal(t, raw, rt.stdin, "image bytes are piped to the container")
	assert.Equal(t, container.Spec{
		Image:      "jitesoft/tesseract-ocr:latest",
		Entrypoint: "tesseract",
		Args:       []string{"stdin", "stdout", "-l", "kor+eng", "tsv"},
	}, rt.spec)

	t.Run("image missing", func(t *testing.T) {
		_, err := NewContainerOCR(context.Background(), &fakeRuntime{imageErr: errors.New("no such image")}, "ocr:1", "")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "no such image")
	})

	t.Run("default language", func(t *testing.T) {
		rt := &fakeRuntime{}
		c, err := NewContainerOCR(context.Background(), rt, "ocr:1", "")
		require.NoError(t, err)
		_, err = c.Recognize(context.Background(), path)
		require.NoError(t, err)
		assert.Contains(t, rt.spec.Args, "eng")
	})

	t.Run("run failure", func(t *testing.T) {
		c, err := NewContainerOCR(context.Background(), &fakeRuntime{runErr: errors.New("exit status 1")}, "ocr:1", "")
		require.NoError(t, err)
		_, err = c.Recognize(context.Background(), path)
		assert.Error(t, err)
	})
}

func TestNew(t *testing.T) {
	e, err := New(context.Background(), types.OCRConfig{Backend: "none"})
	require.NoError(t, err)
	assert.Nil(t, e.OCR)

	_, err = New(context.Background(), types.OCRConfig{Backend: "magic"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown OCR backend")
}
