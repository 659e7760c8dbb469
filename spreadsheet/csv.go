// Copyright 2020, 2026 Tamás Gulácsi.
//
// SPDX-License-Identifier: Apache-2.0

package spreadsheet

import (
	"bufio"
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"
	"unicode"

	"github.com/klauspost/compress/gzip"
	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/htmlindex"
	"golang.org/x/text/transform"
)

// EncName is the charset of the environment (from $LANG), utf-8 by default.
var EncName = "utf-8"

func init() {
	EncName = os.Getenv("LANG")
	if i := strings.IndexByte(EncName, '.'); i >= 0 {
		EncName = strings.ToLower(EncName[i+1:])
	}
	if EncName == "" || !strings.ContainsAny(EncName, "-0123456789") {
		EncName = "utf-8"
	}
}

// GetEncoding returns the named encoding, nil for UTF-8.
func GetEncoding(encName string) (encoding.Encoding, error) {
	encName = strings.ToLower(encName)
	if encName == "" || encName == "utf-8" || encName == "utf8" {
		return nil, nil
	}
	enc, err := htmlindex.Get(encName)
	if err != nil {
		err = fmt.Errorf("%q: %w", encName, err)
	}
	return enc, err
}

type csvReadCloser struct {
	*csv.Reader
	io.Closer
}

// OpenCsv opens the named file (stdin for "" or "-") for reading as CSV,
// decoding it from encName. The separator is guessed from the first line.
// A ".gz" file is decompressed.
func OpenCsv(fn, encName string) (csvReadCloser, error) {
	var enc encoding.Encoding
	if encName != "" {
		var err error
		if enc, err = GetEncoding(encName); err != nil {
			return csvReadCloser{}, err
		}
	}
	fh := os.Stdin
	if !(fn == "" || fn == "-") {
		var err error
		if fh, err = os.Open(fn); err != nil {
			return csvReadCloser{}, err
		}
	}
	r := io.ReadCloser(fh)
	if strings.HasSuffix(fn, ".gz") {
		zr, err := gzip.NewReader(fh)
		if err != nil {
			fh.Close()
			return csvReadCloser{}, fmt.Errorf("%q: %w", fn, err)
		}
		r = struct {
			io.Reader
			io.Closer
		}{zr, fh}
	}
	if enc != nil {
		r = struct {
			io.Reader
			io.Closer
		}{enc.NewDecoder().Reader(r), r}
	}
	br := bufio.NewReaderSize(r, 1<<20)
	b, err := br.Peek(1024)
	if err != nil && len(b) == 0 {
		r.Close()
		return csvReadCloser{}, err
	}
	sep := rune(',')
	for _, r := range string(b) {
		if r == '"' || r == '_' || r == ' ' || unicode.IsLetter(r) || unicode.IsNumber(r) {
			continue
		}
		sep = r
		break
	}
	cr := csv.NewReader(br)
	cr.ReuseRecord = true
	cr.Comma = sep
	return csvReadCloser{cr, r}, nil
}

// Create creates the named file for writing (stdout for "" or "-").
// A ".gz" file is compressed.
func Create(fn string) (io.WriteCloser, error) {
	if fn == "" || fn == "-" {
		return nopWriteCloser{os.Stdout}, nil
	}
	fh, err := os.Create(fn)
	if err != nil {
		return nil, err
	}
	if !strings.HasSuffix(fn, ".gz") {
		return fh, nil
	}
	return &gzipFile{Writer: gzip.NewWriter(fh), fh: fh}, nil
}

type nopWriteCloser struct{ io.Writer }

func (nopWriteCloser) Close() error { return nil }

type gzipFile struct {
	*gzip.Writer
	fh *os.File
}

func (g *gzipFile) Close() error {
	err := g.Writer.Close()
	if closeErr := g.fh.Close(); closeErr != nil && err == nil {
		err = closeErr
	}
	return err
}

var _ = (Writer)((*CSVWriter)(nil))

// CSVWriter is a Writer of a single sheet CSV file.
type CSVWriter struct {
	w     io.Writer
	enc   io.WriteCloser
	cw    *csv.Writer
	mu    sync.Mutex
	sheet bool
}

// NewCSVWriter returns a CSV Writer, encoding its output into encName.
// The CSV has only one sheet: the second NewSheet returns ErrTooManySheets.
func NewCSVWriter(w io.Writer, encName string) (*CSVWriter, error) {
	enc, err := GetEncoding(encName)
	if err != nil {
		return nil, err
	}
	cw := CSVWriter{w: w}
	if enc != nil {
		cw.enc = transform.NewWriter(w, enc.NewEncoder())
		cw.cw = csv.NewWriter(cw.enc)
	} else {
		cw.cw = csv.NewWriter(w)
	}
	return &cw, nil
}

// Comma sets the field delimiter.
func (cw *CSVWriter) Comma(r rune) { cw.cw.Comma = r }

func (cw *CSVWriter) NewSheet(name string, columns []Column) (Sheet, error) {
	cw.mu.Lock()
	defer cw.mu.Unlock()
	if cw.sheet {
		return nil, fmt.Errorf("%s: %w", name, ErrTooManySheets)
	}
	cw.sheet = true
	var hasHeader bool
	header := make([]string, len(columns))
	for i, c := range columns {
		header[i] = c.Name
		hasHeader = hasHeader || c.Name != ""
	}
	if hasHeader {
		if err := cw.cw.Write(header); err != nil {
			return nil, err
		}
	}
	return &csvSheet{w: cw}, nil
}

func (cw *CSVWriter) Close() error {
	cw.mu.Lock()
	defer cw.mu.Unlock()
	cw.cw.Flush()
	err := cw.cw.Error()
	if cw.enc != nil {
		if closeErr := cw.enc.Close(); closeErr != nil && err == nil {
			err = closeErr
		}
		cw.enc = nil
	}
	return err
}

type csvSheet struct {
	w   *CSVWriter
	rec []string
}

func (cs *csvSheet) Close() error { return nil }
func (cs *csvSheet) AppendRow(values ...any) error {
	cs.w.mu.Lock()
	defer cs.w.mu.Unlock()
	cs.rec = cs.rec[:0]
	for _, v := range values {
		cs.rec = append(cs.rec, FormatValue(v))
	}
	return cs.w.cw.Write(cs.rec)
}

// FormatValue returns the text form of a cell value.
func FormatValue(v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		return x
	case Number:
		return string(x)
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64)
	case int:
		return strconv.Itoa(x)
	case int64:
		return strconv.FormatInt(x, 10)
	case time.Time:
		if x.IsZero() {
			return ""
		}
		return x.Format("2006-01-02")
	case fmt.Stringer:
		return x.String()
	default:
		return fmt.Sprint(v)
	}
}
