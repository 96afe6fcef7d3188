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


// Package pdfcpu implements convert.Converter for PDF files. The input is
// optimized with relaxed validation, then split into single-page PDFs.
package pdfcpu

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"

	"github.com/poiesic/docai/convert"
)

// Converter implements convert.Converter for PDF input.
type Converter struct {
	logger *slog.Logger
}

var _ convert.Converter = (*Converter)(nil)

// NewConverter creates a PDF converter.
func NewConverter() *Converter {
	return &Converter{
		logger: slog.Default().With("component", "pdf-converter"),
	}
}

// Convert validates and splits a PDF into single-page artifacts. All work
// happens in a temp directory that is removed before returning.
func (c *Converter) Convert(ctx context.Context, fileName string, raw []byte) (*convert.Result, error) {
	if len(raw) == 0 {
		return nil, convert.ErrEmptyInput
	}
	if ext := strings.ToLower(filepath.Ext(fileName)); ext != "" && ext != ".pdf" {
		return nil, fmt.Errorf("%w: %s", convert.ErrUnsupportedFormat, ext)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	tempDir, err := os.MkdirTemp("", "docai-convert-*")
	if err != nil {
		return nil, fmt.Errorf("create temp dir: %w", err)
	}
	defer os.RemoveAll(tempDir)

	sourcePath := filepath.Join(tempDir, "source.pdf")
	if err := os.WriteFile(sourcePath, raw, 0o600); err != nil {
		return nil, fmt.Errorf("write source file: %w", err)
	}

	// Optimization doubles as structural validation; a PDF that fails
	// relaxed validation will never convert.
	optimizedPath := filepath.Join(tempDir, "optimized.pdf")
	cfg := model.NewDefaultConfiguration()
	cfg.ValidationMode = model.ValidationRelaxed
	if err := api.OptimizeFile(sourcePath, optimizedPath, cfg); err != nil {
		c.logger.Warn("pdf failed validation", "file", fileName, "err", err)
		return nil, fmt.Errorf("%w: %v", convert.ErrCorruptInput, err)
	}

	pageCount, err := api.PageCountFile(optimizedPath)
	if err != nil {
		return nil, fmt.Errorf("%w: page count: %v", convert.ErrCorruptInput, err)
	}
	if pageCount == 0 {
		return nil, fmt.Errorf("%w: no pages", convert.ErrCorruptInput)
	}

	if err := api.SplitFile(optimizedPath, tempDir, 1, nil); err != nil {
		return nil, fmt.Errorf("split pdf: %w", err)
	}

	pages := make([][]byte, 0, pageCount)
	for i := 1; i <= pageCount; i++ {
		pagePath := filepath.Join(tempDir, fmt.Sprintf("optimized_%d.pdf", i))
		data, err := os.ReadFile(pagePath)
		if err != nil {
			return nil, fmt.Errorf("read page %d: %w", i, err)
		}
		pages = append(pages, data)
	}

	c.logger.Debug("converted document", "file", fileName, "pages", pageCount)
	return &convert.Result{PageCount: pageCount, Pages: pages}, nil
}
