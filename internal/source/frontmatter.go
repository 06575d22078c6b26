package source

import (
	"bytes"
	"errors"
	"fmt"

	"gopkg.in/yaml.v3"
)

var (
	// ErrNoFrontMatter indicates the content does not start with a YAML fence.
	ErrNoFrontMatter = errors.New("source: no front matter")
	// ErrMalformedFrontMatter indicates an opening fence without a closing one.
	ErrMalformedFrontMatter = errors.New("source: malformed front matter")
)

// NormalizeNewlines converts CRLF and CR line endings to LF.
func NormalizeNewlines(content []byte) []byte {
	content = bytes.ReplaceAll(content, []byte("\r\n"), []byte("\n"))
	return bytes.ReplaceAll(content, []byte("\r"), []byte("\n"))
}

// SplitFrontMatter separates a leading `---` YAML block from the body.
// bodyOffset is the byte offset of the body within content. content must
// already use LF line endings.
func SplitFrontMatter(content []byte) (meta, body []byte, bodyOffset int, err error) {
	if !bytes.HasPrefix(content, []byte("---\n")) {
		return nil, content, 0, ErrNoFrontMatter
	}
	rest := content[4:]
	if bytes.HasPrefix(rest, []byte("---\n")) {
		return nil, rest[4:], 8, nil
	}
	end := bytes.Index(rest, []byte("\n---\n"))
	if end < 0 {
		if bytes.HasSuffix(rest, []byte("\n---")) {
			return rest[:len(rest)-4], nil, len(content), nil
		}
		return nil, content, 0, ErrMalformedFrontMatter
	}
	meta = rest[:end]
	bodyOffset = 4 + end + len("\n---\n")
	return meta, content[bodyOffset:], bodyOffset, nil
}

// DecodeFrontMatter splits and decodes front matter into out.
// Content without front matter leaves out untouched and returns the content
// as the body.
func DecodeFrontMatter(content []byte, out any) (body []byte, bodyOffset int, err error) {
	meta, body, bodyOffset, err := SplitFrontMatter(content)
	if errors.Is(err, ErrNoFrontMatter) {
		return body, 0, nil
	}
	if err != nil {
		return nil, 0, err
	}
	if err := yaml.Unmarshal(meta, out); err != nil {
		return nil, 0, fmt.Errorf("%w: %v", ErrMalformedFrontMatter, err)
	}
	return body, bodyOffset, nil
}

// WriteFrontMatter renders meta as a YAML block followed by body.
func WriteFrontMatter(meta any, body []byte) ([]byte, error) {
	data, err := yaml.Marshal(meta)
	if err != nil {
		return nil, fmt.Errorf("encode front matter: %w", err)
	}
	var buf bytes.Buffer
	buf.WriteString("---\n")
	buf.Write(data)
	buf.WriteString("---\n")
	buf.Write(body)
	return buf.Bytes(), nil
}
