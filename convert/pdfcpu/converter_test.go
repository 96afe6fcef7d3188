// Copyright 2025 Poiesic Systems
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package pdfcpu

import (
	"bytes"
	"context"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/poiesic/docai/convert"
)

// minimalPDF builds the smallest well-formed PDF with the given number of
// empty pages, including a correct xref table.
func minimalPDF(pageCount int) []byte {
	var b bytes.Buffer
	var offsets []int
	b.WriteString("%PDF-1.4\n")

	write := func(s string) {
		offsets = append(offsets, b.Len())
		b.WriteString(s)
	}

	kids := make([]string, pageCount)
	for i := range kids {
		kids[i] = fmt.Sprintf("%d 0 R", i+3)
	}
	write("1 0 obj\n<< /Type /Catalog /Pages 2 0 R >>\nendobj\n")
	write(fmt.Sprintf("2 0 obj\n<< /Type /Pages /Kids [%s] /Count %d >>\nendobj\n",
		strings.Join(kids, " "), pageCount))
	for i := 0; i < pageCount; i++ {
		write(fmt.Sprintf("%d 0 obj\n<< /Type /Page /Parent 2 0 R /MediaBox [0 0 612 792] >>\nendobj\n", i+3))
	}

	xrefOffset := b.Len()
	fmt.Fprintf(&b, "xref\n0 %d\n", len(offsets)+1)
	b.WriteString("0000000000 65535 f \n")
	for _, off := range offsets {
		fmt.Fprintf(&b, "%010d 00000 n \n", off)
	}
	fmt.Fprintf(&b, "trailer\n<< /Size %d /Root 1 0 R >>\nstartxref\n%d\n%%%%EOF\n",
		len(offsets)+1, xrefOffset)
	return b.Bytes()
}

func TestConvert_SplitsIntoPages(t *testing.T) {
	c := NewConverter()

	result, err := c.Convert(context.Background(), "sample.pdf", minimalPDF(3))
	require.NoError(t, err)
	assert.Equal(t, 3, result.PageCount)
	require.Len(t, result.Pages, 3)
	for i, page := range result.Pages {
		require.NotEmpty(t, page, "page %d", i+1)
		assert.True(t, bytes.HasPrefix(page, []byte("%PDF")), "page %d is not a PDF", i+1)
	}
}

func TestConvert_SinglePage(t *testing.T) {
	c := NewConverter()

	result, err := c.Convert(context.Background(), "one.pdf", minimalPDF(1))
	require.NoError(t, err)
	assert.Equal(t, 1, result.PageCount)
	require.Len(t, result.Pages, 1)
}

func TestConvert_NoExtensionAccepted(t *testing.T) {
	c := NewConverter()

	result, err := c.Convert(context.Background(), "upload-20250601", minimalPDF(1))
	require.NoError(t, err)
	assert.Equal(t, 1, result.PageCount)
}

func TestConvert_EmptyInput(t *testing.T) {
	c := NewConverter()
	_, err := c.Convert(context.Background(), "empty.pdf", nil)
	assert.ErrorIs(t, err, convert.ErrEmptyInput)
}

func TestConvert_UnsupportedExtension(t *testing.T) {
	c := NewConverter()
	_, err := c.Convert(context.Background(), "notes.docx", []byte("data"))
	assert.ErrorIs(t, err, convert.ErrUnsupportedFormat)
}

func TestConvert_CorruptInput(t *testing.T) {
	c := NewConverter()
	_, err := c.Convert(context.Background(), "broken.pdf", []byte("this is not a pdf at all"))
	assert.ErrorIs(t, err, convert.ErrCorruptInput)
}

func TestConvert_CancelledContext(t *testing.T) {
	c := NewConverter()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := c.Convert(ctx, "sample.pdf", []byte("%PDF-1.7"))
	assert.ErrorIs(t, err, context.Canceled)
}
