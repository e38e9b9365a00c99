package book

import (
	_ "embed"
	"encoding/json"
	"fmt"
	"math"
	"os"

	"github.com/rs/zerolog"
)

//go:embed default_book.json
var defaultBook []byte

// Source is one raw book document.
type Source struct {
	Name string
	Data []byte
}

// Entry is the value stored under each key of a book file.
type Entry struct {
	Moves map[string]float64 `json:"moves"`
}

// File is the on-disk book document.
type File map[string]Entry

// Load parses and merges sources. A source that fails to parse is skipped and its
// error returned alongside the book; the book is always usable. When nothing usable
// remains the errors include ErrEmptyBook.
func Load(log zerolog.Logger, sources ...Source) (*Book, []error) {
	log = log.With().Str("component", "book").Logger()
	b := newBook()
	var errs []error
	for _, src := range sources {
		n, err := b.merge(src)
		if err != nil {
			log.Warn().Err(err).Str("source", src.Name).Msg("book source disabled")
			errs = append(errs, err)
			continue
		}
		log.Debug().Str("source", src.Name).Int("entries", n).Msg("book source merged")
	}
	b.buildIndex(log)
	if b.Len() == 0 {
		errs = append(errs, ErrEmptyBook)
	}
	log.Info().Int("positions", b.Len()).Int("sources", len(sources)).Int("failed", len(errs)).Msg("book loaded")
	return b, errs
}

// LoadFiles reads each path as a source; a missing file disables only that source.
func LoadFiles(log zerolog.Logger, paths ...string) (*Book, []error) {
	sources, errs := ReadFiles(paths...)
	b, loadErrs := Load(log, sources...)
	return b, append(errs, loadErrs...)
}

// ReadFiles reads each path into a Source. Unreadable files are reported and skipped.
func ReadFiles(paths ...string) ([]Source, []error) {
	var sources []Source
	var errs []error
	for _, p := range paths {
		data, err := os.ReadFile(p)
		if err != nil {
			errs = append(errs, fmt.Errorf("book %s: %w", p, err))
			continue
		}
		sources = append(sources, Source{Name: p, Data: data})
	}
	return sources, errs
}

func Default(log zerolog.Logger, extra ...Source) (*Book, []error) {
	return Load(log, append([]Source{{Name: "embedded", Data: defaultBook}}, extra...)...)
}

// merge adds one source to the raw table. Weights that are negative, zero or not
// finite are ignored. Nothing is merged when the document does not parse.
func (b *Book) merge(src Source) (int, error) {
	var doc File
	if err := json.Unmarshal(src.Data, &doc); err != nil {
		return 0, fmt.Errorf("book %s: %w", src.Name, err)
	}
	n := 0
	for key, e := range doc {
		nk, err := normalizeKey(key)
		if err != nil {
			continue
		}
		for move, w := range e.Moves {
			if w <= 0 || math.IsInf(w, 0) || math.IsNaN(w) {
				continue
			}
			b.addRaw(nk, normalizeMove(move), w)
			n++
		}
	}
	return n, nil
}
