package services

import (
	"fmt"
	"os"
	"strings"

	"github.com/google/renameio/v2"
	"golang.org/x/net/html/charset"
	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/ianaindex"

	"github.com/Belphemur/opensubtitles-dl/internal/apperrors"
)

// DefaultTranscoder implements Transcoder with golang.org/x/text encodings
type DefaultTranscoder struct{}

// NewTranscoder creates a transcoder
func NewTranscoder() Transcoder {
	return &DefaultTranscoder{}
}

// Transcode is a no-op when source is empty or both names resolve to the same encoding.
func (t *DefaultTranscoder) Transcode(path, source, target string) (bool, error) {
	if source == "" || strings.EqualFold(source, target) {
		return false, nil
	}

	src, srcName, err := lookupEncoding(source)
	if err != nil {
		return false, apperrors.Transcode("resolve source encoding", err)
	}
	dst, dstName, err := lookupEncoding(target)
	if err != nil {
		return false, apperrors.Transcode("resolve target encoding", err)
	}
	if srcName == dstName {
		return false, nil
	}

	content, err := os.ReadFile(path)
	if err != nil {
		return false, apperrors.Transcode("read subtitle", err)
	}

	converted, err := convert(content, src, dst)
	if err != nil {
		return false, apperrors.Transcode(fmt.Sprintf("convert %s to %s", source, target), err)
	}

	if err := renameio.WriteFile(path, converted, 0o644); err != nil {
		return false, apperrors.Transcode("write subtitle", err)
	}
	return true, nil
}

// convert decodes content to UTF-8 then encodes it to dst. Runes dst cannot
// represent make the encoder fail.
func convert(content []byte, src, dst encoding.Encoding) ([]byte, error) {
	utf8, err := src.NewDecoder().Bytes(content)
	if err != nil {
		return nil, err
	}
	return dst.NewEncoder().Bytes(utf8)
}

// lookupEncoding resolves an encoding label with the IANA registry first,
// then the WHATWG label table for names IANA does not know. The returned
// name is canonical and comparable.
func lookupEncoding(label string) (encoding.Encoding, string, error) {
	enc, err := ianaindex.IANA.Encoding(label)
	if err == nil && enc != nil {
		name, err := ianaindex.IANA.Name(enc)
		if err != nil {
			name = label
		}
		return enc, strings.ToLower(name), nil
	}

	if enc, name := charset.Lookup(label); enc != nil {
		return enc, name, nil
	}
	if err != nil {
		return nil, "", fmt.Errorf("unknown encoding %q: %w", label, err)
	}
	return nil, "", fmt.Errorf("unsupported encoding %q", label)
}
