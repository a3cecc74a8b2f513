// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pdiddy/pii-masker/pkg/types"
)

func TestReadItems(t *testing.T) {
	dir := t.TempDir()
	yamlPath := filepath.Join(dir, "items.yaml")
	require.NoError(t, os.WriteFile(yamlPath, []byte(`
- filename: form.pdf
  pii_type: phone
  text: 010-1234-5678
  page_index: 1
  instance_index: 2
- filename: scan.png
  pii_type: RRN
  text: 900101-1234567
  bbox: [10, 20, 100, 40]
`), 0o644))

	items, err := readItems(yamlPath)
	require.NoError(t, err)
	require.Len(t, items, 2)
	assert.Equal(t, types.PIIItem{Filename: "form.pdf", Type: types.PiiPhone, Text: "010-1234-5678", PageIndex: 1, InstanceIndex: 2}, items[0])
	assert.Equal(t, types.PiiNationalID, items[1].Type)
	require.NotNil(t, items[1].BBox)
	assert.Equal(t, types.Rect{X0: 10, Y0: 20, X1: 100, Y1: 40}, *items[1].BBox)

	jsonPath := filepath.Join(dir, "items.json")
	require.NoError(t, os.WriteFile(jsonPath, []byte(`[{"filename":"a.pdf","pii_type":"email","text":"kim@example.com"}]`), 0o644))
	items, err = readItems(jsonPath)
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, "kim@example.com", items[0].Text)

	camelPath := filepath.Join(dir, "camel.json")
	require.NoError(t, os.WriteFile(camelPath, []byte(`[{"filename":"a.pdf","pii_type":"RRN","text":"900101-1234567","pageIndex":2,"bbox":[10,20,100,40]}]`), 0o644))
	items, err = readItems(camelPath)
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, 2, items[0].PageIndex)
	assert.Equal(t, types.PiiNationalID, items[0].Type)

	badPath := filepath.Join(dir, "bad.yaml")
	require.NoError(t, os.WriteFile(badPath, []byte(`[{"pii_type":"email","text":"x"}]`), 0o644))
	_, err = readItems(badPath)
	assert.ErrorContains(t, err, "needs filename and text")
}

func TestContextFromFlags(t *testing.T) {
	newCmd := func(args ...string) *cobra.Command {
		cmd := &cobra.Command{Use: "x"}
		contextFlags(cmd.Flags())
		require.NoError(t, cmd.Flags().Parse(args))
		return cmd
	}

	assert.Nil(t, contextFromFlags(newCmd()))

	bc := contextFromFlags(newCmd("--purpose", "claims", "--consent"))
	require.NotNil(t, bc)
	assert.Equal(t, "claims", bc.Purpose)
	assert.True(t, bc.HasConsent)
	assert.Equal(t, types.BusinessContext{Purpose: "claims", HasConsent: true}.WithDefaults(), *bc)
}

func TestClip(t *testing.T) {
	assert.Equal(t, "short", clip("short", 10))
	assert.Equal(t, "a b c", clip("a\n  b\tc", 10))
	assert.Equal(t, "개인정보...", clip("개인정보보호법 제17조", 7))
}
