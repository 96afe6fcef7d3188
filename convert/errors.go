package convert

import "errors"

var (
	// ErrUnsupportedFormat indicates a file type the converter cannot handle.
	// Retrying cannot succeed.
	ErrUnsupportedFormat = errors.New("convert: unsupported file format")

	// ErrCorruptInput indicates content that failed structural validation.
	// Retrying cannot succeed.
	ErrCorruptInput = errors.New("convert: corrupt input")

	// ErrEmptyInput indicates a zero-length file.
	ErrEmptyInput = errors.New("convert: empty input")
)
