package bridge

import (
	"time"

	"github.com/rs/zerolog"

	"chess-worker/book"
	"chess-worker/config"
)

// LoadBook merges the configured book files, on top of the embedded book when
// enabled. Failing sources are reported and left out.
func LoadBook(cfg config.BookConfig, log zerolog.Logger) (*book.Book, []error) {
	sources, errs := book.ReadFiles(cfg.Paths...)
	var b *book.Book
	var loadErrs []error
	if cfg.Embedded {
		b, loadErrs = book.Default(log, sources...)
	} else {
		b, loadErrs = book.Load(log, sources...)
	}
	return b, append(errs, loadErrs...)
}

// NewFromConfig builds a Worker from cfg and starts a Bridge around it. Book
// problems are returned but never prevent startup.
func NewFromConfig(cfg config.Config, log zerolog.Logger) (*Bridge, []error) {
	b, errs := LoadBook(cfg.Book, log)
	w := NewWorker(WorkerOptions{
		Engine:   cfg.Engine,
		Book:     b,
		Picker:   book.NewPicker(cfg.Book.MinRatio, cfg.Book.Exponent),
		Sessions: book.NewSessions(time.Duration(cfg.Book.SessionTTL)),
	}, log)
	return New(w, log), errs
}
