// Copyright 2024 The OpenRacePlot Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package motec

import (
	"bufio"
	"encoding/csv"
	"encoding/json"
	"io"
	"math"
	"strconv"

	"golang.org/x/xerrors"
)

// RecordWriter is the interface implemented by record sinks.
type RecordWriter interface {
	WriteRecord(rec *Record) error
	// Flush writes any buffered data to the underlying output.
	Flush() error
}

// Format describes how records are laid out by the tabular writers.
type Format struct {
	Channels []string // channels to write, all when empty. Output follows schema order.
	Comma    rune     // field delimiter of CSV output, ',' when zero.
	Bool     bool     // write flag channels as 0 or 1 instead of their masked value.
}

// Columns returns the record indices selected by the format.
func (f Format) Columns() ([]int, error) {
	if len(f.Channels) == 0 {
		cols := make([]int, NumChannels)
		for i := range cols {
			cols[i] = i
		}
		return cols, nil
	}

	var sel [NumChannels]bool
	for _, name := range f.Channels {
		i := ChannelIndex(name)
		if i < 0 {
			return nil, xerrors.Errorf("motec: unknown channel %q", name)
		}
		sel[i] = true
	}

	cols := make([]int, 0, len(f.Channels))
	for i, ok := range sel {
		if ok {
			cols = append(cols, i)
		}
	}
	return cols, nil
}

// FormatValue returns the textual form of the value v of the i-th channel.
// Absent values are formatted as an empty string.
func (f Format) FormatValue(i int, v float64) string {
	return string(f.appendValue(nil, i, v))
}

func (f Format) appendValue(dst []byte, i int, v float64) []byte {
	if math.IsNaN(v) {
		return dst
	}
	ch := &schema[i]
	if ch.Kind == Flag && f.Bool {
		if v != 0 {
			return append(dst, '1')
		}
		return append(dst, '0')
	}
	return strconv.AppendFloat(dst, v, 'f', ch.Prec(), 64)
}

// CSVWriter writes records as rows of delimited text, after a header
// row holding the channel names.
type CSVWriter struct {
	w    *csv.Writer
	f    Format
	cols []int
	row  []string
	buf  []byte
	hdr  bool // whether the header row was written
}

// NewCSVWriter returns a CSVWriter writing to w.
func NewCSVWriter(w io.Writer, f Format) (*CSVWriter, error) {
	cols, err := f.Columns()
	if err != nil {
		return nil, err
	}
	cw := &CSVWriter{
		w:    csv.NewWriter(w),
		f:    f,
		cols: cols,
		row:  make([]string, len(cols)),
	}
	if f.Comma != 0 {
		cw.w.Comma = f.Comma
	}
	return cw, nil
}

func (cw *CSVWriter) header() error {
	if cw.hdr {
		return nil
	}
	cw.hdr = true
	for j, i := range cw.cols {
		cw.row[j] = schema[i].Name
	}
	return cw.write()
}

func (cw *CSVWriter) write() error {
	err := cw.w.Write(cw.row)
	if err != nil {
		return &IOError{Op: "write CSV row", Err: err}
	}
	return nil
}

// WriteRecord writes rec as one row.
func (cw *CSVWriter) WriteRecord(rec *Record) error {
	err := cw.header()
	if err != nil {
		return err
	}
	for j, i := range cw.cols {
		cw.buf = cw.f.appendValue(cw.buf[:0], i, rec.Values[i])
		cw.row[j] = string(cw.buf)
	}
	return cw.write()
}

// Flush writes the header row if no record was written, and flushes
// all buffered rows.
func (cw *CSVWriter) Flush() error {
	err := cw.header()
	if err != nil {
		return err
	}
	cw.w.Flush()
	if err := cw.w.Error(); err != nil {
		return &IOError{Op: "flush CSV rows", Err: err}
	}
	return nil
}

// JSONLWriter writes records as JSON objects, one per line.
// Object keys follow schema order; absent values are null.
type JSONLWriter struct {
	w    *bufio.Writer
	f    Format
	cols []int
	keys [][]byte
	buf  []byte
}

// NewJSONLWriter returns a JSONLWriter writing to w.
func NewJSONLWriter(w io.Writer, f Format) (*JSONLWriter, error) {
	cols, err := f.Columns()
	if err != nil {
		return nil, err
	}
	jw := &JSONLWriter{
		w:    bufio.NewWriter(w),
		f:    f,
		cols: cols,
		keys: make([][]byte, len(cols)),
	}
	for j, i := range cols {
		key, err := json.Marshal(schema[i].Name)
		if err != nil {
			return nil, xerrors.Errorf("motec: could not encode channel name %q: %w", schema[i].Name, err)
		}
		jw.keys[j] = key
	}
	return jw, nil
}

// WriteRecord writes rec as one JSON object.
func (jw *JSONLWriter) WriteRecord(rec *Record) error {
	jw.buf = jw.appendRecord(jw.buf[:0], rec)
	jw.buf = append(jw.buf, '\n')
	_, err := jw.w.Write(jw.buf)
	if err != nil {
		return &IOError{Op: "write JSON record", Err: err}
	}
	return nil
}

// Flush flushes all buffered records.
func (jw *JSONLWriter) Flush() error {
	err := jw.w.Flush()
	if err != nil {
		return &IOError{Op: "flush JSON records", Err: err}
	}
	return nil
}

func (jw *JSONLWriter) appendRecord(dst []byte, rec *Record) []byte {
	dst = append(dst, `{"frame":`...)
	dst = strconv.AppendInt(dst, rec.Frame, 10)
	for j, i := range jw.cols {
		dst = append(dst, ',')
		dst = append(dst, jw.keys[j]...)
		dst = append(dst, ':')
		v := rec.Values[i]
		if math.IsNaN(v) {
			dst = append(dst, "null"...)
			continue
		}
		dst = jw.f.appendValue(dst, i, v)
	}
	return append(dst, '}')
}

var (
	_ RecordWriter = (*CSVWriter)(nil)
	_ RecordWriter = (*JSONLWriter)(nil)
)
