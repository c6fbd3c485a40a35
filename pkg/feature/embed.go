package feature

import (
	"bytes"
	"errors"
)

// Delimiters of the history block embedded in exported geometry files. The
// JSON encoder escapes '<' and '>' so neither can occur inside the block.
const (
	HistoryOpen  = "<ioscad-history>"
	HistoryClose = "</ioscad-history>"
)

// ErrNoHistory is returned when data carries no decodable history block.
var ErrNoHistory = errors.New("feature: no embedded history")

// EmbedHistory returns the delimited history block for t.
func EmbedHistory(t Tree) ([]byte, error) {
	doc, err := Encode(t)
	if err != nil {
		return nil, err
	}
	var buf bytes.Buffer
	buf.Grow(len(HistoryOpen) + len(doc) + len(HistoryClose))
	buf.WriteString(HistoryOpen)
	buf.Write(doc)
	buf.WriteString(HistoryClose)
	return buf.Bytes(), nil
}

// ExtractHistory locates the first history block in data, ignoring the
// surrounding bytes, and decodes it. A missing, unterminated or malformed
// block yields ErrNoHistory.
func ExtractHistory(data []byte) (Tree, error) {
	start := bytes.Index(data, []byte(HistoryOpen))
	if start < 0 {
		return Tree{}, ErrNoHistory
	}
	body := data[start+len(HistoryOpen):]
	end := bytes.Index(body, []byte(HistoryClose))
	if end < 0 {
		return Tree{}, ErrNoHistory
	}
	t, err := Decode(body[:end])
	if err != nil {
		return Tree{}, errors.Join(ErrNoHistory, err)
	}
	return t, nil
}
