// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package extractor

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/pdiddy/pii-masker/internal/container"
	"github.com/pdiddy/pii-masker/pkg/types"
)

// ContainerOCR pipes images through tesseract running in a container and
// parses its TSV output.
type ContainerOCR struct {
	runtime   container.Runtime
	image     string
	languages string
}

// NewContainerOCR checks that image exists in rt before returning.
func NewContainerOCR(ctx context.Context, rt container.Runtime, image, languages string) (*ContainerOCR, error) {
	if err := rt.ImageExists(ctx, image); err != nil {
		return nil, fmt.Errorf("tesseract image not available in %s: %w", rt.Name(), err)
	}
	if languages == "" {
		languages = "eng"
	}
	return &ContainerOCR{runtime: rt, image: image, languages: languages}, nil
}

// Recognize implements OCR.
func (c *ContainerOCR) Recognize(ctx context.Context, path string) ([]types.OCRToken, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	spec := container.Spec{
		Image:      c.image,
		Entrypoint: "tesseract",
		Args:       []string{"stdin", "stdout", "-l", c.languages, "tsv"},
	}
	var out bytes.Buffer
	if err := c.runtime.Run(ctx, spec, f, &out); err != nil {
		return nil, err
	}
	return parseTSV(&out, 0)
}

// TSV columns as written by tesseract 4 and later.
const (
	colLevel = iota
	colPage
	colBlock
	colPar
	colLine
	colWord
	colLeft
	colTop
	colWidth
	colHeight
	colConf
	colText
	tsvColumns
)

// wordLevel is the row level of individual words.
const wordLevel = 5

// parseTSV reads word rows from tesseract TSV output. Rows above word
// level and words that are only whitespace are skipped. Confidence is
// scaled to [0,1].
func parseTSV(r io.Reader, page int) ([]types.OCRToken, error) {
	var out []types.OCRToken
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 64*1024), 1<<20)
	line := 0
	for sc.Scan() {
		line++
		row := strings.TrimRight(sc.Text(), "\r")
		if row == "" || (line == 1 && strings.HasPrefix(row, "level")) {
			continue
		}
		f := strings.SplitN(row, "\t", tsvColumns)
		if len(f) < tsvColumns-1 {
			return nil, fmt.Errorf("tsv line %d: %d columns", line, len(f))
		}
		if f[colLevel] != strconv.Itoa(wordLevel) || len(f) < tsvColumns {
			continue
		}
		text := strings.TrimSpace(f[colText])
		if text == "" {
			continue
		}
		var box [4]float64
		for i, col := range []int{colLeft, colTop, colWidth, colHeight} {
			v, err := strconv.ParseFloat(f[col], 64)
			if err != nil {
				return nil, fmt.Errorf("tsv line %d: %w", line, err)
			}
			box[i] = v
		}
		conf, err := strconv.ParseFloat(f[colConf], 64)
		if err != nil {
			return nil, fmt.Errorf("tsv line %d: %w", line, err)
		}
		out = append(out, types.OCRToken{
			PageIndex: page,
			BBox:      types.Rect{X0: box[0], Y0: box[1], X1: box[0] + box[2], Y1: box[1] + box[3]},
			Text:      text,
			Conf:      clampConf(conf / 100),
		})
	}
	if err := sc.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

func clampConf(c float64) float64 {
	switch {
	case c < 0:
		return 0
	case c > 1:
		return 1
	}
	return c
}
