package backup

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/theirongolddev/fintrack/internal/model"
)

// Write writes every record of src to w, one line each. Kinds are written
// in model.EntityTypes order, so clients and products precede the quotes
// that reference them.
func Write(w io.Writer, src Source) (int, error) {
	bw := bufio.NewWriter(w)
	n := 0
	for _, kind := range model.EntityTypes {
		for _, rec := range records(src, kind) {
			data, err := json.Marshal(rec)
			if err != nil {
				return n, fmt.Errorf("encoding %s %s: %w", kind, rec.RecordID(), err)
			}
			line, err := json.Marshal(Line{Entity: kind, Data: data})
			if err != nil {
				return n, err
			}
			if _, err := bw.Write(append(line, '\n')); err != nil {
				return n, err
			}
			n++
		}
	}
	return n, bw.Flush()
}

func records(src Source, kind model.EntityType) []model.Record {
	switch kind {
	case model.EntityTransaction:
		return asRecords(src.Transactions())
	case model.EntityCategory:
		return asRecords(src.Categories())
	case model.EntityBill:
		return asRecords(src.Bills())
	case model.EntityLoan:
		return asRecords(src.Loans())
	case model.EntityGoal:
		return asRecords(src.Goals())
	case model.EntityClient:
		return asRecords(src.Clients())
	case model.EntityProduct:
		return asRecords(src.Products())
	case model.EntityQuote:
		return asRecords(src.Quotes())
	}
	return nil
}

func asRecords[T model.Record](recs []T) []model.Record {
	out := make([]model.Record, len(recs))
	for i, r := range recs {
		out[i] = r
	}
	return out
}

// ApplyResult counts what Apply stored.
type ApplyResult struct {
	Applied  map[model.EntityType]int
	Rejected int
	// Err is the first rejection, if any.
	Err error
}

// Apply adds every record of set to dst. Records keep their ids, so
// applying the same backup twice replaces rather than duplicates. Invalid
// records are counted and skipped. Clients and products are applied before
// quotes.
func Apply(dst Target, set Set) ApplyResult {
	res := ApplyResult{Applied: make(map[model.EntityType]int)}
	track := func(kind model.EntityType, err error) {
		if err == nil {
			res.Applied[kind]++
			return
		}
		res.Rejected++
		if res.Err == nil {
			res.Err = err
		}
	}

	for _, r := range set.Transactions {
		_, err := dst.AddTransaction(r)
		track(model.EntityTransaction, err)
	}
	for _, r := range set.Categories {
		_, err := dst.AddCategory(r)
		track(model.EntityCategory, err)
	}
	for _, r := range set.Bills {
		_, err := dst.AddBill(r)
		track(model.EntityBill, err)
	}
	for _, r := range set.Loans {
		_, err := dst.AddLoan(r)
		track(model.EntityLoan, err)
	}
	for _, r := range set.Goals {
		_, err := dst.AddGoal(r)
		track(model.EntityGoal, err)
	}
	for _, r := range set.Clients {
		_, err := dst.AddClient(r)
		track(model.EntityClient, err)
	}
	for _, r := range set.Products {
		_, err := dst.AddProduct(r)
		track(model.EntityProduct, err)
	}
	for _, r := range set.Quotes {
		_, err := dst.AddQuote(r)
		track(model.EntityQuote, err)
	}
	return res
}

// Total returns the number of applied records.
func (r ApplyResult) Total() int {
	n := 0
	for _, c := range r.Applied {
		n += c
	}
	return n
}

// ErrEmpty is returned when a backup holds no records.
var ErrEmpty = errors.New("backup: no records found")
