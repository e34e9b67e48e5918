package services

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"sync"

	"github.com/google/uuid"

	"github.com/ersonp/history-map/internal/domain/entities"
	"github.com/ersonp/history-map/internal/domain/ports"
	"github.com/ersonp/history-map/internal/infrastructure/parsers"
)

// IngestionService turns user input into candidates and holds the single
// review slot. A new batch cannot start until the current one is confirmed
// or discarded.
type IngestionService struct {
	completer ports.EventCompleter
	logger    *slog.Logger
	newID     func() string

	mu       sync.Mutex
	review   *Review
	reserved bool // a completer call is in flight
}

// NewIngestionService creates a new ingestion service.
func NewIngestionService(completer ports.EventCompleter, logger *slog.Logger) *IngestionService {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &IngestionService{
		completer: completer,
		logger:    logger,
		newID:     uuid.NewString,
	}
}

// SplitNames splits newline-separated input into trimmed, non-empty names.
func SplitNames(text string) []string {
	var names []string
	for _, line := range strings.Split(text, "\n") {
		if name := strings.TrimSpace(line); name != "" {
			names = append(names, name)
		}
	}
	return names
}

// AnalyzeNames asks the completer to fill in one event per name.
func (s *IngestionService) AnalyzeNames(ctx context.Context, text string) (*Review, error) {
	names := SplitNames(text)
	if len(names) == 0 {
		return nil, ErrEmptyInput
	}
	if err := s.reserve(); err != nil {
		return nil, err
	}

	events, err := s.completer.CompleteNames(ctx, names)
	if err != nil {
		s.release()
		return nil, &CollaboratorError{Op: "completing event names", Err: err}
	}
	return s.stageCompleted(SourceNames, text, events)
}

// Search asks the completer for events related to a free-text query.
func (s *IngestionService) Search(ctx context.Context, query string) (*Review, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, ErrEmptyInput
	}
	if err := s.reserve(); err != nil {
		return nil, err
	}

	events, err := s.completer.Search(ctx, query)
	if err != nil {
		s.release()
		return nil, &CollaboratorError{Op: "searching events", Err: err}
	}
	return s.stageCompleted(SourceSearch, query, events)
}

// ParseManual stages field::value records. Any invalid record rejects the batch.
func (s *IngestionService) ParseManual(text string) (*Review, error) {
	return s.stageParsed(strings.NewReader(text), &parsers.ManualParser{}, SourceManual, text)
}

// Import stages records read by parser. Any invalid record rejects the batch.
func (s *IngestionService) Import(r io.Reader, parser parsers.Parser) (*Review, error) {
	return s.stageParsed(r, parser, SourceImport, "")
}

func (s *IngestionService) stageParsed(r io.Reader, parser parsers.Parser, source Source, input string) (*Review, error) {
	if err := s.reserve(); err != nil {
		return nil, err
	}

	raws, err := parser.Parse(r)
	if err != nil {
		s.release()
		var syntaxErr *parsers.SyntaxError
		if errors.As(err, &syntaxErr) {
			return nil, &ValidationError{Record: syntaxErr.Record, Field: syntaxErr.Field, Message: syntaxErr.Message}
		}
		return nil, &ValidationError{Message: err.Error()}
	}
	if len(raws) == 0 {
		s.release()
		return nil, &ValidationError{Message: "no records found"}
	}

	candidates := make([]entities.Event, 0, len(raws))
	for i := range raws {
		ev, verr := convertRawEvent(&raws[i])
		if verr != nil {
			s.release()
			return nil, verr
		}
		if ev.ID == "" {
			ev.ID = s.newID()
		}
		candidates = append(candidates, ev)
	}

	return s.open(newReview(source, input, candidates, 0)), nil
}

// Current returns a copy of the open review.
func (s *IngestionService) Current() (*Review, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.review == nil {
		return nil, ErrNoReview
	}
	return s.review.clone(), nil
}

// Toggle flips candidate i in the open review.
func (s *IngestionService) Toggle(i int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.review == nil {
		return ErrNoReview
	}
	return s.review.Toggle(i)
}

// SelectOnly selects exactly the given candidates in the open review.
func (s *IngestionService) SelectOnly(indices []int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.review == nil {
		return ErrNoReview
	}
	return s.review.SelectOnly(indices)
}

// Confirm closes the review and returns the selected candidates.
func (s *IngestionService) Confirm() ([]entities.Event, Source, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.review == nil {
		return nil, "", ErrNoReview
	}
	selected := s.review.Selected()
	source := s.review.Source
	s.review = nil
	return selected, source, nil
}

// Discard closes the review without returning anything.
func (s *IngestionService) Discard() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.review = nil
}

// stageCompleted schema-checks completer output. Completer ids are never
// trusted; invalid records are dropped and logged.
func (s *IngestionService) stageCompleted(source Source, input string, events []entities.Event) (*Review, error) {
	candidates := make([]entities.Event, 0, len(events))
	dropped := 0
	for i, e := range events {
		e.Title = strings.TrimSpace(e.Title)
		e.DateStr = strings.TrimSpace(e.DateStr)
		if verr := ValidateEvent(e); verr != nil {
			dropped++
			s.logger.Warn("dropping completer candidate",
				"index", i, "title", e.Title, "field", verr.Field, "reason", verr.Message)
			continue
		}
		e.ID = s.newID()
		e.IsSaved = false
		candidates = append(candidates, e)
	}

	if len(candidates) == 0 {
		s.release()
		return nil, ErrNothingRecognized
	}
	s.logger.Debug("staged candidates", "source", source, "count", len(candidates), "dropped", dropped)
	return s.open(newReview(source, input, candidates, dropped)), nil
}

func (s *IngestionService) reserve() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.reserved || s.review != nil {
		return ErrReviewInProgress
	}
	s.reserved = true
	return nil
}

func (s *IngestionService) release() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.reserved = false
}

func (s *IngestionService) open(r *Review) *Review {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.reserved = false
	s.review = r
	return r.clone()
}

// convertRawEvent validates a parsed record and builds the event.
func convertRawEvent(raw *parsers.RawEvent) (entities.Event, *ValidationError) {
	ev := entities.Event{
		ID:          strings.TrimSpace(raw.ID),
		Title:       strings.TrimSpace(raw.Title),
		DateStr:     strings.TrimSpace(raw.DateStr),
		Description: strings.TrimSpace(raw.Description),
		Category:    strings.TrimSpace(raw.Category),
	}
	if raw.Location != nil {
		ev.Location.Name = strings.TrimSpace(raw.Location.Name)
		if raw.Location.Lat != nil {
			ev.Location.Lat = *raw.Location.Lat
		}
		if raw.Location.Lng != nil {
			ev.Location.Lng = *raw.Location.Lng
		}
	}

	if verr := ValidateEvent(ev); verr != nil {
		verr.Record = raw.Record
		return entities.Event{}, verr
	}
	return ev, nil
}
