package bench

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"

	"vqlbench/internal/util"
)

// Columns names the input fields a pair is read from.
type Columns struct {
	Generated   string
	GroundTruth string
	Difficulty  string
	Index       string
	ID          string
	Question    string
}

// DefaultColumns matches the export of the answer-generation run.
func DefaultColumns() Columns {
	return Columns{
		Generated:   "generated_vql",
		GroundTruth: "ground_truth_vql",
		Difficulty:  "difficulty",
		Index:       "index",
		ID:          "id",
		Question:    "question",
	}
}

func (c Columns) withDefaults() Columns {
	def := DefaultColumns()
	if c.Generated == "" {
		c.Generated = def.Generated
	}
	if c.GroundTruth == "" {
		c.GroundTruth = def.GroundTruth
	}
	if c.Difficulty == "" {
		c.Difficulty = def.Difficulty
	}
	if c.Index == "" {
		c.Index = def.Index
	}
	if c.ID == "" {
		c.ID = def.ID
	}
	if c.Question == "" {
		c.Question = def.Question
	}
	return c
}

// Load reads pairs from a .yaml/.yml, .json or .csv file.
func Load(path string, cols Columns) ([]QueryPair, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrap(err, "open benchmark")
	}
	defer util.CloseWithErr(f, "benchmark file")

	var records []map[string]any
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		err = yaml.NewDecoder(f).Decode(&records)
	case ".json":
		err = json.NewDecoder(f).Decode(&records)
	case ".csv":
		records, err = readCSV(f)
	default:
		return nil, errors.Wrapf(ErrInvalidInput, "unsupported benchmark format %q", filepath.Ext(path))
	}
	if err != nil && err != io.EOF {
		return nil, errors.Wrapf(ErrInvalidInput, "decode %s: %v", path, err)
	}
	return FromRecords(records, cols)
}

// FromRecords builds pairs from decoded key/value records. A record without
// the generated or ground-truth field makes the whole batch invalid.
func FromRecords(records []map[string]any, cols Columns) ([]QueryPair, error) {
	cols = cols.withDefaults()
	pairs := make([]QueryPair, 0, len(records))
	for i, rec := range records {
		generated, ok := rec[cols.Generated]
		if !ok {
			return nil, errors.Wrapf(ErrInvalidInput, "record %d: missing column %q", i, cols.Generated)
		}
		truth, ok := rec[cols.GroundTruth]
		if !ok {
			return nil, errors.Wrapf(ErrInvalidInput, "record %d: missing column %q", i, cols.GroundTruth)
		}
		pair := QueryPair{
			Index:       i,
			Generated:   textOf(generated),
			GroundTruth: textOf(truth),
			Difficulty:  ParseDifficulty(rec[cols.Difficulty]),
			Question:    textOf(rec[cols.Question]),
			ID:          textOf(rec[cols.ID]),
		}
		if raw, ok := rec[cols.Index]; ok && textOf(raw) != "" {
			idx, err := intOf(raw)
			if err != nil {
				return nil, errors.Wrapf(ErrInvalidInput, "record %d: index %v: %v", i, raw, err)
			}
			pair.Index = idx
		}
		pair.Timings = GenerationTimings{
			SQLExecution:      floatOf(rec["sql_execution_time"]),
			VectorStoreSearch: floatOf(rec["vector_store_search_time"]),
			LLM:               floatOf(rec["llm_time"]),
			Total:             floatOf(rec["total_execution_time"]),
		}
		pairs = append(pairs, pair)
	}
	pairs = Normalize(pairs)
	if err := Validate(pairs); err != nil {
		return nil, err
	}
	return pairs, nil
}

func readCSV(r io.Reader) ([]map[string]any, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	header, err := reader.Read()
	if err != nil {
		return nil, err
	}
	for i := range header {
		header[i] = strings.TrimSpace(strings.TrimPrefix(header[i], "\ufeff"))
	}
	var records []map[string]any
	for {
		row, err := reader.Read()
		if err == io.EOF {
			return records, nil
		}
		if err != nil {
			return nil, err
		}
		rec := make(map[string]any, len(header))
		for i, name := range header {
			if i < len(row) {
				rec[name] = row[i]
			}
		}
		records = append(records, rec)
	}
}

func textOf(v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		return x
	default:
		return fmt.Sprint(x)
	}
}

func intOf(v any) (int, error) {
	switch x := v.(type) {
	case int:
		return x, nil
	case int64:
		return int(x), nil
	case float64:
		if x != float64(int(x)) {
			return 0, errors.Errorf("not an integer")
		}
		return int(x), nil
	case string:
		return strconv.Atoi(strings.TrimSpace(x))
	}
	return 0, errors.Errorf("unsupported type %T", v)
}

func floatOf(v any) float64 {
	switch x := v.(type) {
	case int:
		return float64(x)
	case int64:
		return float64(x)
	case float64:
		return x
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(x), 64)
		if err != nil {
			return 0
		}
		return f
	}
	return 0
}
