package ingest

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/helixmap/biograph-backend/internal/types"
)

// Row is one tabular ingestion record from an ETL feed. The schema is closed:
// rows that do not fit it are skipped at the boundary, never admitted as
// untyped blobs.
type Row struct {
	SubjectNamespace  string `validate:"required"`
	SubjectExternalID string `validate:"required"`
	SubjectType       string `validate:"required"`
	SubjectName       string

	Predicate string `validate:"required"`

	ObjectNamespace  string `validate:"required"`
	ObjectExternalID string `validate:"required"`
	ObjectType       string `validate:"required"`
	ObjectName       string

	Provenance string `validate:"required"`

	EvidenceSourceRef string
	Snippet           string
	PublicationYear   *int
	CitationCount     *int
	ClusterID         string
}

var rowValidator = validator.New()

// Validate checks required fields and the closed enumerations. It returns a
// human-readable reason suitable for the skip log.
func (r Row) Validate() error {
	if err := rowValidator.Struct(r); err != nil {
		return fmt.Errorf("missing required fields: %w", err)
	}
	if !types.Predicate(r.Predicate).Valid() {
		return fmt.Errorf("unknown predicate %q", r.Predicate)
	}
	if !types.Provenance(r.Provenance).Valid() {
		return fmt.Errorf("unknown provenance %q", r.Provenance)
	}
	if !types.NodeType(r.SubjectType).Valid() {
		return fmt.Errorf("unknown subject type %q", r.SubjectType)
	}
	if !types.NodeType(r.ObjectType).Valid() {
		return fmt.Errorf("unknown object type %q", r.ObjectType)
	}
	return nil
}

// expected column order for headerless files; files with a header row may
// reorder columns freely.
var columns = []string{
	"subject_namespace", "subject_external_id", "subject_type", "subject_name",
	"predicate",
	"object_namespace", "object_external_id", "object_type", "object_name",
	"provenance",
	"evidence_source_ref", "snippet", "publication_year", "citation_count", "cluster_id",
}

// ReadTSV parses tab-separated records into rows. Structurally broken lines
// come back as per-row errors; parsing continues past them.
func ReadTSV(r io.Reader) ([]Row, []error, error) {
	cr := csv.NewReader(r)
	cr.Comma = '\t'
	cr.FieldsPerRecord = -1
	cr.LazyQuotes = true

	var (
		rows    []Row
		rowErrs []error
		idx     map[string]int
		lineNo  int
	)

	for {
		rec, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			lineNo++
			rowErrs = append(rowErrs, fmt.Errorf("line %d: %w", lineNo, err))
			continue
		}
		lineNo++

		if idx == nil {
			idx = columnIndex(rec)
			if idx != nil {
				continue // header row consumed
			}
			idx = defaultIndex()
		}

		row, err := recordToRow(rec, idx)
		if err != nil {
			rowErrs = append(rowErrs, fmt.Errorf("line %d: %w", lineNo, err))
			continue
		}
		rows = append(rows, row)
	}
	return rows, rowErrs, nil
}

// columnIndex returns a column map when rec looks like a header row.
func columnIndex(rec []string) map[string]int {
	known := make(map[string]bool, len(columns))
	for _, c := range columns {
		known[c] = true
	}
	idx := make(map[string]int)
	matched := 0
	for i, field := range rec {
		name := strings.ToLower(strings.TrimSpace(field))
		if known[name] {
			idx[name] = i
			matched++
		}
	}
	if matched < 5 {
		return nil
	}
	return idx
}

func defaultIndex() map[string]int {
	idx := make(map[string]int, len(columns))
	for i, c := range columns {
		idx[c] = i
	}
	return idx
}

func recordToRow(rec []string, idx map[string]int) (Row, error) {
	get := func(name string) string {
		i, ok := idx[name]
		if !ok || i >= len(rec) {
			return ""
		}
		return strings.TrimSpace(rec[i])
	}

	row := Row{
		SubjectNamespace:  get("subject_namespace"),
		SubjectExternalID: get("subject_external_id"),
		SubjectType:       get("subject_type"),
		SubjectName:       get("subject_name"),
		Predicate:         get("predicate"),
		ObjectNamespace:   get("object_namespace"),
		ObjectExternalID:  get("object_external_id"),
		ObjectType:        get("object_type"),
		ObjectName:        get("object_name"),
		Provenance:        get("provenance"),
		EvidenceSourceRef: get("evidence_source_ref"),
		Snippet:           get("snippet"),
		ClusterID:         get("cluster_id"),
	}

	if v := get("publication_year"); v != "" {
		year, err := strconv.Atoi(v)
		if err != nil {
			return Row{}, fmt.Errorf("bad publication_year %q", v)
		}
		row.PublicationYear = &year
	}
	if v := get("citation_count"); v != "" {
		count, err := strconv.Atoi(v)
		if err != nil {
			return Row{}, fmt.Errorf("bad citation_count %q", v)
		}
		row.CitationCount = &count
	}
	return row, nil
}
