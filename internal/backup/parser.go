package backup

import (
	"bufio"
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/theirongolddev/fintrack/internal/model"
)

// ParseResult holds the output of parsing a single backup file.
type ParseResult struct {
	Set Set
	// Lines counts non-empty lines read.
	Lines int
	// Skipped counts lines for entity kinds this version does not know.
	Skipped     int
	ParseErrors int
	Err         error
}

// ParseFile reads a backup file. Records are deduplicated by id per kind,
// keeping the last line, so a file that was appended to twice restores the
// newest state.
func ParseFile(path string) ParseResult {
	f, err := os.Open(path) //nolint:gosec // backup path is chosen by the local user
	if err != nil {
		return ParseResult{Err: err}
	}
	defer func() { _ = f.Close() }()
	return Parse(f)
}

// Parse reads backup lines from r.
func Parse(r io.Reader) ParseResult {
	var (
		res   ParseResult
		order []model.EntityType
	)
	seen := make(map[model.EntityType]map[string]int)
	decoded := make(map[model.EntityType][]model.Record)

	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)

	for scanner.Scan() {
		line := bytes.TrimSpace(scanner.Bytes())
		if len(line) == 0 {
			continue
		}
		res.Lines++

		kind, ok := extractTopLevelEntity(line)
		if !ok {
			res.ParseErrors++
			continue
		}
		if !knownEntity(kind) {
			res.Skipped++
			continue
		}

		var l Line
		if err := json.Unmarshal(line, &l); err != nil {
			res.ParseErrors++
			continue
		}
		rec, err := decodeRecord(l)
		if err != nil || rec.RecordID() == "" {
			res.ParseErrors++
			continue
		}

		ids, ok := seen[l.Entity]
		if !ok {
			ids = make(map[string]int)
			seen[l.Entity] = ids
			order = append(order, l.Entity)
		}
		if i, dup := ids[rec.RecordID()]; dup {
			decoded[l.Entity][i] = rec
			continue
		}
		ids[rec.RecordID()] = len(decoded[l.Entity])
		decoded[l.Entity] = append(decoded[l.Entity], rec)
	}
	if err := scanner.Err(); err != nil {
		res.Err = err
		return res
	}

	for _, kind := range order {
		for _, rec := range decoded[kind] {
			res.Set.add(rec)
		}
	}
	return res
}

func knownEntity(kind string) bool {
	for _, et := range model.EntityTypes {
		if string(et) == kind {
			return true
		}
	}
	return false
}

func decodeRecord(l Line) (model.Record, error) {
	switch l.Entity {
	case model.EntityTransaction:
		return decodeAs[model.Transaction](l.Data)
	case model.EntityCategory:
		return decodeAs[model.Category](l.Data)
	case model.EntityBill:
		return decodeAs[model.Bill](l.Data)
	case model.EntityLoan:
		return decodeAs[model.Loan](l.Data)
	case model.EntityGoal:
		return decodeAs[model.SavingsGoal](l.Data)
	case model.EntityClient:
		return decodeAs[model.Client](l.Data)
	case model.EntityProduct:
		return decodeAs[model.Product](l.Data)
	case model.EntityQuote:
		return decodeAs[model.Quote](l.Data)
	}
	return nil, fmt.Errorf("%w: unknown entity %q", model.ErrInvalid, l.Entity)
}

func decodeAs[T model.Record](data json.RawMessage) (model.Record, error) {
	var rec T
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, err
	}
	return rec, nil
}

func (s *Set) add(rec model.Record) {
	switch r := rec.(type) {
	case model.Transaction:
		s.Transactions = append(s.Transactions, r)
	case model.Category:
		s.Categories = append(s.Categories, r)
	case model.Bill:
		s.Bills = append(s.Bills, r)
	case model.Loan:
		s.Loans = append(s.Loans, r)
	case model.SavingsGoal:
		s.Goals = append(s.Goals, r)
	case model.Client:
		s.Clients = append(s.Clients, r)
	case model.Product:
		s.Products = append(s.Products, r)
	case model.Quote:
		s.Quotes = append(s.Quotes, r)
	}
}

// entityKey is the byte sequence for a JSON key named "entity" (with quotes).
var entityKey = []byte(`"entity"`)

// extractTopLevelEntity finds the top-level "entity" field in a line.
// Tracks brace depth and string boundaries so keys inside "data" are
// ignored. Lines of unknown kinds are skipped without a full decode.
func extractTopLevelEntity(line []byte) (string, bool) {
	depth := 0
	for i := 0; i < len(line); {
		switch line[i] {
		case '"':
			if depth == 1 && bytes.HasPrefix(line[i:], entityKey) {
				if val, isKey := classifyEntity(line, i+len(entityKey)); isKey {
					return val, val != ""
				}
			}
			i = skipJSONString(line, i)
		case '{':
			depth++
			i++
		case '}':
			depth--
			i++
		default:
			i++
		}
	}
	return "", false
}

// classifyEntity checks whether pos follows a JSON key and returns its
// string value. isKey=false means "entity" appeared as a value.
func classifyEntity(line []byte, pos int) (val string, isKey bool) {
	i := skipSpaces(line, pos)
	if i >= len(line) || line[i] != ':' {
		return "", false
	}
	i = skipSpaces(line, i+1)
	if i >= len(line) || line[i] != '"' {
		return "", true
	}
	i++

	end := bytes.IndexByte(line[i:], '"')
	if end < 0 || end > 32 {
		return "", true
	}
	return string(line[i : i+end]), true
}

// skipJSONString advances past a JSON string starting at the opening quote.
//
//nolint:gosec // manual bounds checking throughout
func skipJSONString(line []byte, i int) int {
	i++ // skip opening quote
	for i < len(line) {
		switch line[i] {
		case '\\':
			i += 2
		case '"':
			return i + 1
		default:
			i++
		}
	}
	return i
}

func skipSpaces(line []byte, i int) int {
	for i < len(line) && (line[i] == ' ' || line[i] == '\t') {
		i++
	}
	return i
}
