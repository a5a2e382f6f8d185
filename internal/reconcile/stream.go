package reconcile

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"

	"github.com/ist-dresden/composum-platform-sub002/internal/content"
)

// DecodeStream reads a JSON array of markers from r and reconciles each
// element as it is decoded.
func DecodeStream(ctx context.Context, r io.Reader, acc content.Accessor, opts Options) (*Result, error) {
	dec := json.NewDecoder(r)
	if err := expectDelim(dec, '['); err != nil {
		return nil, err
	}
	rec := NewReconciler(acc, opts)
	for i := 0; dec.More(); i++ {
		var info VersionableInfo
		if err := dec.Decode(&info); err != nil {
			return nil, fmt.Errorf("decode versionables: element %d: %w", i, err)
		}
		if err := rec.Process(ctx, info); err != nil {
			return nil, err
		}
	}
	if err := expectDelim(dec, ']'); err != nil {
		return nil, err
	}
	return rec.Result(), nil
}

func expectDelim(dec *json.Decoder, want json.Delim) error {
	tok, err := dec.Token()
	if err != nil {
		return fmt.Errorf("decode versionables: %w", err)
	}
	if d, ok := tok.(json.Delim); !ok || d != want {
		return fmt.Errorf("decode versionables: expected %v, got %v", want, tok)
	}
	return nil
}

// ArrayWriter writes a JSON array one element at a time.
type ArrayWriter struct {
	w     *bufio.Writer
	count int
}

// NewArrayWriter starts an array on w.
func NewArrayWriter(w io.Writer) *ArrayWriter {
	return &ArrayWriter{w: bufio.NewWriter(w)}
}

// Write appends one element.
func (a *ArrayWriter) Write(v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	sep := ","
	if a.count == 0 {
		sep = "["
	}
	a.count++
	if _, err := a.w.WriteString(sep); err != nil {
		return err
	}
	_, err = a.w.Write(data)
	return err
}

// Close ends the array and flushes it. It does not close the underlying
// writer.
func (a *ArrayWriter) Close() error {
	end := "]"
	if a.count == 0 {
		end = "[]"
	}
	if _, err := a.w.WriteString(end + "\n"); err != nil {
		return err
	}
	return a.w.Flush()
}

// EncodeVersionables writes infos as a JSON array.
func EncodeVersionables(w io.Writer, infos []VersionableInfo) error {
	aw := NewArrayWriter(w)
	for _, info := range infos {
		if err := aw.Write(info); err != nil {
			return fmt.Errorf("encode versionables: %w", err)
		}
	}
	return aw.Close()
}

// StreamVersionables collects the markers below roots and writes them to
// w as they are found.
func StreamVersionables(ctx context.Context, w io.Writer, acc content.Accessor, roots []string, opts CollectOptions) error {
	aw := NewArrayWriter(w)
	err := WalkVersionables(ctx, acc, roots, opts, func(info VersionableInfo) error {
		return aw.Write(info)
	})
	if err != nil {
		return err
	}
	return aw.Close()
}
