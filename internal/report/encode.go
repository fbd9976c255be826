package report

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"io"
	"math"
	"reflect"
	"sort"
	"strconv"
	"strings"
)

func writeOrderedJSON(w io.Writer, v any) error {
	if v == nil {
		_, err := io.WriteString(w, "null")
		return err
	}
	switch val := v.(type) {
	case json.RawMessage:
		_, err := w.Write(val)
		return err
	case Record:
		raw, err := val.MarshalJSON()
		if err != nil {
			return err
		}
		_, err = w.Write(raw)
		return err
	case float64:
		return writeFloatJSON(w, val)
	case map[string]any:
		return writeOrderedMap(w, val)
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Map:
		if rv.Type().Key().Kind() == reflect.String {
			return writeOrderedMapValue(w, rv)
		}
	case reflect.Slice, reflect.Array:
		return writeOrderedSliceValue(w, rv)
	}
	return writeScalarJSON(w, v)
}

// writeFloatJSON encodes non-finite values as null, which encoding/json
// rejects.
func writeFloatJSON(w io.Writer, f float64) error {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		_, err := io.WriteString(w, "null")
		return err
	}
	return writeScalarJSON(w, f)
}

func writeOrderedMap(w io.Writer, m map[string]any) error {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	if _, err := io.WriteString(w, "{"); err != nil {
		return err
	}
	for i, k := range keys {
		if i > 0 {
			if _, err := io.WriteString(w, ","); err != nil {
				return err
			}
		}
		if err := writeScalarJSON(w, k); err != nil {
			return err
		}
		if _, err := io.WriteString(w, ":"); err != nil {
			return err
		}
		if err := writeOrderedJSON(w, m[k]); err != nil {
			return err
		}
	}
	_, err := io.WriteString(w, "}")
	return err
}

func writeOrderedMapValue(w io.Writer, rv reflect.Value) error {
	m := make(map[string]any, rv.Len())
	iter := rv.MapRange()
	for iter.Next() {
		m[iter.Key().String()] = iter.Value().Interface()
	}
	return writeOrderedMap(w, m)
}

func writeOrderedSliceValue(w io.Writer, rv reflect.Value) error {
	if rv.Kind() == reflect.Slice && rv.Type().Elem().Kind() == reflect.Uint8 {
		return writeScalarJSON(w, rv.Interface())
	}
	if _, err := io.WriteString(w, "["); err != nil {
		return err
	}
	for i := 0; i < rv.Len(); i++ {
		if i > 0 {
			if _, err := io.WriteString(w, ","); err != nil {
				return err
			}
		}
		if err := writeOrderedJSON(w, rv.Index(i).Interface()); err != nil {
			return err
		}
	}
	_, err := io.WriteString(w, "]")
	return err
}

func writeScalarJSON(w io.Writer, v any) error {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return err
	}
	data := bytes.TrimRight(buf.Bytes(), "\n")
	_, err := w.Write(data)
	return err
}

// writeRecordsJSON writes records as an indented JSON array, one record per
// line.
func writeRecordsJSON(w io.Writer, records []Record) error {
	if _, err := io.WriteString(w, "[\n"); err != nil {
		return err
	}
	for i, rec := range records {
		if _, err := io.WriteString(w, "  "); err != nil {
			return err
		}
		if err := writeOrderedJSON(w, rec); err != nil {
			return err
		}
		sep := ",\n"
		if i == len(records)-1 {
			sep = "\n"
		}
		if _, err := io.WriteString(w, sep); err != nil {
			return err
		}
	}
	_, err := io.WriteString(w, "]\n")
	return err
}

// writeRecordsCSV writes a header from the first record followed by one row
// per record. Nested values are encoded as JSON.
func writeRecordsCSV(w io.Writer, records []Record) error {
	cw := csv.NewWriter(w)
	if len(records) > 0 {
		if err := cw.Write(records[0].Keys()); err != nil {
			return err
		}
	}
	row := make([]string, 0)
	for _, rec := range records {
		row = row[:0]
		for _, f := range rec {
			cell, err := formatCell(f.Value)
			if err != nil {
				return err
			}
			row = append(row, cell)
		}
		if err := cw.Write(row); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

func formatCell(v any) (string, error) {
	switch val := v.(type) {
	case nil:
		return "", nil
	case string:
		return val, nil
	case bool:
		return strconv.FormatBool(val), nil
	case int:
		return strconv.Itoa(val), nil
	case float64:
		if math.IsNaN(val) || math.IsInf(val, 0) {
			return "", nil
		}
		return strconv.FormatFloat(val, 'f', -1, 64), nil
	}
	var b strings.Builder
	if err := writeOrderedJSON(&b, v); err != nil {
		return "", err
	}
	return b.String(), nil
}
