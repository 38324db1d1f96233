package pointio

import (
	"bufio"
	"bytes"
	"context"
	"encoding/csv"
	"io"
	"strings"

	"github.com/rotisserie/eris"
	"golang.org/x/text/encoding/htmlindex"
)

// CSVOptions configures the streaming CSV parser.
type CSVOptions struct {
	Delimiter  rune   // default ','
	Encoding   string // source charset; empty or "utf-8" means no decoding
	Comment    rune   // comment character (0 = none)
	LazyQuotes bool
}

// StreamCSV reads delimited records and sends them to a channel. Input is
// decoded to UTF-8 and a leading byte order mark is dropped; the first record
// is otherwise sent like any other. Both channels are closed when processing
// completes.
func StreamCSV(ctx context.Context, r io.Reader, opts CSVOptions) (<-chan []string, <-chan error) {
	rowCh := make(chan []string, 64)
	errCh := make(chan error, 1)

	go func() {
		defer close(rowCh)
		defer close(errCh)

		src, err := decodeCharset(r, opts.Encoding)
		if err != nil {
			errCh <- err
			return
		}

		reader := csv.NewReader(skipBOM(src))
		if opts.Delimiter != 0 {
			reader.Comma = opts.Delimiter
		}
		if opts.Comment != 0 {
			reader.Comment = opts.Comment
		}
		reader.LazyQuotes = opts.LazyQuotes
		reader.FieldsPerRecord = -1

		for {
			if ctx.Err() != nil {
				errCh <- eris.Wrap(ctx.Err(), "csv: context cancelled")
				return
			}

			record, err := reader.Read()
			if err == io.EOF {
				return
			}
			if err != nil {
				errCh <- eris.Wrap(err, "csv: read row")
				return
			}

			select {
			case rowCh <- record:
			case <-ctx.Done():
				errCh <- eris.Wrap(ctx.Err(), "csv: context cancelled")
				return
			}
		}
	}()

	return rowCh, errCh
}

func decodeCharset(r io.Reader, charset string) (io.Reader, error) {
	switch strings.ToLower(strings.TrimSpace(charset)) {
	case "", "utf-8", "utf8":
		return r, nil
	}
	enc, err := htmlindex.Get(charset)
	if err != nil {
		return nil, eris.Wrapf(err, "csv: unsupported charset %q", charset)
	}
	return enc.NewDecoder().Reader(r), nil
}

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

func skipBOM(r io.Reader) io.Reader {
	br := bufio.NewReader(r)
	if b, err := br.Peek(len(utf8BOM)); err == nil && bytes.Equal(b, utf8BOM) {
		_, _ = br.Discard(len(utf8BOM))
	}
	return br
}

// ReadCSV collects a delimited stream into a Table. The first record is the
// header.
func ReadCSV(ctx context.Context, r io.Reader, opts CSVOptions) (*Table, error) {
	rowCh, errCh := StreamCSV(ctx, r, opts)

	t := &Table{}
	first := true
	for record := range rowCh {
		if first {
			first = false
			t.Header = record
			continue
		}
		t.Rows = append(t.Rows, record)
	}
	if err := <-errCh; err != nil {
		return nil, err
	}
	if first {
		return nil, eris.New("csv: empty input")
	}
	return t, nil
}

// WriteCSV writes the header and rows of t.
func WriteCSV(w io.Writer, t *Table, delimiter rune) error {
	cw := csv.NewWriter(w)
	if delimiter != 0 {
		cw.Comma = delimiter
	}
	if err := cw.Write(t.Header); err != nil {
		return eris.Wrap(err, "csv: write header")
	}
	if err := cw.WriteAll(t.Rows); err != nil {
		return eris.Wrap(err, "csv: write rows")
	}
	return nil
}
