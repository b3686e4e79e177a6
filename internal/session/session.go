// Package session holds one user's document workflow: upload, scan, review, redact, download.
package session

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/raaihank/pdf-redactor/internal/config"
	"github.com/raaihank/pdf-redactor/internal/geometry"
	"github.com/raaihank/pdf-redactor/internal/locate"
	"github.com/raaihank/pdf-redactor/internal/logger"
	"github.com/raaihank/pdf-redactor/internal/matchstore"
	"github.com/raaihank/pdf-redactor/internal/pdfdoc"
	"github.com/raaihank/pdf-redactor/internal/preview"
	"github.com/raaihank/pdf-redactor/internal/privacy"
	"github.com/raaihank/pdf-redactor/internal/redact"
	"go.uber.org/zap"
)

// ContentType of downloaded documents.
const ContentType = "application/pdf"

var (
	ErrNoDocument      = errors.New("no document loaded")
	ErrNothingSelected = errors.New("no located match is selected")
	ErrNotRedacted     = errors.New("document has not been redacted")
)

// State is the position of a session in its workflow.
type State int

const (
	StateEmpty State = iota
	StateLoaded
	StateScanned
	StateAnnotated
	StateRedacted
)

func (s State) String() string {
	switch s {
	case StateLoaded:
		return "loaded"
	case StateScanned:
		return "scanned"
	case StateAnnotated:
		return "annotated"
	case StateRedacted:
		return "redacted"
	default:
		return "empty"
	}
}

// MarshalText renders the state by name in JSON.
func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// UnmarshalText parses a state name.
func (s *State) UnmarshalText(text []byte) error {
	for st := StateEmpty; st <= StateRedacted; st++ {
		if st.String() == string(text) {
			*s = st
			return nil
		}
	}
	return fmt.Errorf("unknown session state %q", text)
}

// TierSource decides which rule tier a user's uploads are scanned with.
type TierSource interface {
	Tier(ctx context.Context, userID string) privacy.Tier
}

// StaticTier is a TierSource that always returns itself.
type StaticTier privacy.Tier

// Tier implements TierSource.
func (t StaticTier) Tier(context.Context, string) privacy.Tier {
	return privacy.Tier(t)
}

// Deps are the collaborators shared by every session. They are read-only or safe for
// concurrent use.
type Deps struct {
	Detector *privacy.Holder
	Resolver *locate.Resolver
	Engine   *redact.Engine
	Renderer *preview.Renderer
	Tiers    TierSource
	Logger   *logger.Logger
}

// NewDeps builds the shared collaborators from configuration.
func NewDeps(cfg *config.Config, tiers TierSource, log *logger.Logger) (*Deps, error) {
	detector, err := privacy.New(cfg.Detection, log.WithComponent("privacy"))
	if err != nil {
		return nil, fmt.Errorf("failed to create detector: %w", err)
	}
	return &Deps{
		Detector: privacy.NewHolder(detector),
		Resolver: locate.New(locate.Options{
			OccurrenceOrder: cfg.Locate.OccurrenceOrder,
			IgnoreCase:      cfg.Locate.IgnoreCase,
		}, log.WithComponent("locate")),
		Engine:   redact.New(cfg.Redaction, log.WithComponent("redact")),
		Renderer: preview.New(cfg.Preview, log.WithComponent("preview")),
		Tiers:    tiers,
		Logger:   log,
	}, nil
}

// Event is emitted after every successful command. It carries counts only.
type Event struct {
	Command  string
	Matches  int
	Selected int
	Pages    int
}

// Session is safe for concurrent use; commands are serialised and run to completion.
type Session struct {
	mu     sync.Mutex
	userID string
	deps   *Deps
	logger *logger.Logger
	notify func(Event)

	raw      []byte
	filename string
	premium  bool
	pages    int
	page     int
	store    *matchstore.Store
	redacted []byte
	state    State

	lastUsed atomic.Int64
}

// New creates an empty session for userID.
func New(userID string, deps *Deps) *Session {
	s := &Session{
		userID: userID,
		deps:   deps,
		logger: deps.Logger.WithSession(userID).WithComponent("session"),
		store:  matchstore.New(),
	}
	s.touch()
	return s
}

// OnEvent registers fn to be called after every successful command.
func (s *Session) OnEvent(fn func(Event)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.notify = fn
}

// Upload loads and scans a document. Uploading the file currently loaded again keeps the
// session as it is; any other file replaces it. It returns whether the session changed.
// On failure the session is left untouched.
func (s *Session) Upload(ctx context.Context, filename string, raw []byte) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.touch()

	if s.state != StateEmpty && filename == s.filename {
		s.logger.Debug("Same document uploaded again, keeping session")
		return false, nil
	}

	if err := pdfdoc.Validate(raw); err != nil {
		return false, err
	}
	doc, err := pdfdoc.Open(raw)
	if err != nil {
		return false, err
	}
	defer doc.Close()

	premium := s.deps.Tiers.Tier(ctx, s.userID) == privacy.TierPremium

	s.raw = bytes.Clone(raw)
	s.filename = filename
	s.premium = premium
	s.pages = doc.NumPages()
	s.page = 1
	s.redacted = nil
	s.state = StateLoaded

	s.store = s.scan(doc)
	s.state = StateScanned

	s.logger.Info("Document scanned",
		zap.Int("pages", s.pages),
		zap.Int("matches", s.store.Len()),
		zap.Bool("premium", premium),
	)
	s.emit("upload")
	return true, nil
}

func (s *Session) scan(doc *pdfdoc.Document) *matchstore.Store {
	store := matchstore.New()
	detector := s.deps.Detector.Load()

	for n := 1; n <= doc.NumPages(); n++ {
		page, err := doc.Page(n)
		if err != nil {
			s.logger.Warn("Skipping unreadable page", zap.Int("page", n), zap.Error(err))
			continue
		}
		text, err := page.Text()
		if err != nil {
			s.logger.Warn("Skipping page without text", zap.Int("page", n), zap.Error(err))
			continue
		}
		spans := detector.FindMatches(text, s.premium)
		for _, res := range s.deps.Resolver.ResolveSpans(page, text, spans) {
			store.Append(res.Span.PatternName, res.Span.Text, n, res.Rects)
		}
	}
	return store
}

// SetPage moves the preview cursor. Pages are 1-based.
func (s *Session) SetPage(n int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.touch()

	if err := s.requireDocument(); err != nil {
		return err
	}
	if n < 1 || n > s.pages {
		return fmt.Errorf("%w: %d of %d", pdfdoc.ErrPageOutOfRange, n, s.pages)
	}
	s.page = n
	return nil
}

// Toggle sets the selection of one match.
func (s *Session) Toggle(id int, selected bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.touch()

	if err := s.requireDocument(); err != nil {
		return err
	}
	if err := s.store.Toggle(id, selected); err != nil {
		return err
	}
	s.edited("toggle")
	return nil
}

// SelectAll selects every match.
func (s *Session) SelectAll() error {
	return s.mutate("select_all", func() { s.store.SelectAll() })
}

// ClearAll deselects every match.
func (s *Session) ClearAll() error {
	return s.mutate("clear_all", func() { s.store.ClearAll() })
}

// Dedupe deselects repeated matches and returns how many were deselected.
func (s *Session) Dedupe() (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.touch()

	if err := s.requireDocument(); err != nil {
		return 0, err
	}
	n := s.store.Dedupe()
	if n > 0 {
		s.edited("dedupe")
	}
	return n, nil
}

// ApplySelection sets the selection of several matches at once. Nothing changes when
// any ID is unknown.
func (s *Session) ApplySelection(selection map[int]bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.touch()

	if err := s.requireDocument(); err != nil {
		return err
	}
	for id := range selection {
		if _, err := s.store.Get(id); err != nil {
			return err
		}
	}
	for id, selected := range selection {
		s.store.Toggle(id, selected)
	}
	s.edited("apply")
	return nil
}

func (s *Session) mutate(command string, fn func()) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.touch()

	if err := s.requireDocument(); err != nil {
		return err
	}
	fn()
	s.edited(command)
	return nil
}

// AddManual searches every page for text and adds one selected match per page that
// contains it. The store is unchanged when the text is found nowhere.
func (s *Session) AddManual(text string) ([]int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.touch()

	if err := s.requireDocument(); err != nil {
		return nil, err
	}

	doc, err := pdfdoc.Open(s.raw)
	if err != nil {
		return nil, err
	}
	defer doc.Close()

	literal := strings.TrimSpace(text)
	rects := make(map[int][]geometry.Rect, doc.NumPages())
	if literal != "" {
		for n := 1; n <= doc.NumPages(); n++ {
			page, err := doc.Page(n)
			if err != nil {
				s.logger.Warn("Skipping unreadable page", zap.Int("page", n), zap.Error(err))
				continue
			}
			rects[n] = s.deps.Resolver.ResolveRects(page, literal)
		}
	}

	ids, err := s.store.AddManual(literal, rects)
	if err != nil {
		return nil, err
	}
	s.edited("manual")
	return ids, nil
}

// Redact applies every selected, located match. A failure keeps the previous result.
func (s *Session) Redact() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.touch()

	if err := s.requireDocument(); err != nil {
		return err
	}

	matches := s.store.Redactable()
	if len(matches) == 0 {
		return ErrNothingSelected
	}
	items := make([]redact.Item, len(matches))
	for i, m := range matches {
		items[i] = redact.Item{Page: m.Page, Rects: m.Rects}
	}

	out, err := s.deps.Engine.Redact(s.raw, items)
	if err != nil {
		s.logger.Error("Redaction failed", zap.Int("items", len(items)), zap.Error(err))
		return err
	}

	s.redacted = out
	s.state = StateRedacted
	s.emit("redact")
	return nil
}

// Download returns the redacted document.
func (s *Session) Download() (name, contentType string, data []byte, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.touch()

	if s.redacted == nil {
		return "", "", nil, ErrNotRedacted
	}
	return "redacted_" + s.filename, ContentType, bytes.Clone(s.redacted), nil
}

// Highlights returns the selected matches on the current page.
func (s *Session) Highlights() []matchstore.Match {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.store.OnPage(s.page)
}

// Preview renders page (1-based) of the original document with its selected matches
// highlighted, and returns the PNG and the page count. thumbWidth > 0 downsamples.
func (s *Session) Preview(page, thumbWidth int) ([]byte, int, error) {
	s.mu.Lock()
	raw, pages := s.raw, s.pages
	highlights := s.store.OnPage(page)
	err := s.requireDocument()
	s.touch()
	s.mu.Unlock()
	if err != nil {
		return nil, 0, err
	}

	// raw is never modified after upload, so rendering runs without the lock.
	if thumbWidth <= 0 {
		return s.deps.Renderer.RenderPNG(raw, page-1, highlights)
	}
	img, err := s.deps.Renderer.Render(raw, page-1, highlights)
	if err != nil {
		return nil, 0, err
	}
	out, err := preview.EncodePNG(preview.Thumbnail(img, thumbWidth))
	if err != nil {
		return nil, 0, err
	}
	return out, pages, nil
}

// MatchView is a match with its selection.
type MatchView struct {
	matchstore.Match
	Selected bool `json:"selected"`
}

// Group lists the matches of one type.
type Group struct {
	Type    string      `json:"type"`
	Matches []MatchView `json:"matches"`
}

// Summary describes the session for clients.
type Summary struct {
	Filename   string  `json:"filename,omitempty"`
	State      State   `json:"state"`
	Premium    bool    `json:"premium"`
	Page       int     `json:"page"`
	Pages      int     `json:"pages"`
	Total      int     `json:"total"`
	Selected   int     `json:"selected"`
	Redactable int     `json:"redactable"`
	Redacted   bool    `json:"redacted"`
	Groups     []Group `json:"groups"`
}

// Summary returns the matches grouped by type with their selection.
func (s *Session) Summary() Summary {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.touch()

	sum := Summary{
		Filename:   s.filename,
		State:      s.state,
		Premium:    s.premium,
		Page:       s.page,
		Pages:      s.pages,
		Total:      s.store.Len(),
		Selected:   s.store.SelectedCount(),
		Redactable: len(s.store.Redactable()),
		Redacted:   s.redacted != nil,
		Groups:     []Group{},
	}
	for _, g := range s.store.GroupByType() {
		group := Group{Type: g.Type}
		for _, m := range g.Matches {
			group.Matches = append(group.Matches, MatchView{Match: m, Selected: s.store.IsSelected(m.ID)})
		}
		sum.Groups = append(sum.Groups, group)
	}
	return sum
}

// Matches returns every match in ID order with its selection.
func (s *Session) Matches() []MatchView {
	s.mu.Lock()
	defer s.mu.Unlock()

	all := s.store.Matches()
	out := make([]MatchView, len(all))
	for i, m := range all {
		out[i] = MatchView{Match: m, Selected: s.store.IsSelected(m.ID)}
	}
	return out
}

// Filename returns the name of the loaded document.
func (s *Session) Filename() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.filename
}

// State returns the workflow state.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

func (s *Session) requireDocument() error {
	if s.state == StateEmpty {
		return ErrNoDocument
	}
	return nil
}

// edited records a change to matches or selection, which invalidates any redacted output.
func (s *Session) edited(command string) {
	s.redacted = nil
	s.state = StateAnnotated
	s.emit(command)
}

func (s *Session) emit(command string) {
	if s.notify == nil {
		return
	}
	s.notify(Event{
		Command:  command,
		Matches:  s.store.Len(),
		Selected: s.store.SelectedCount(),
		Pages:    s.pages,
	})
}

func (s *Session) touch() {
	s.lastUsed.Store(time.Now().UnixNano())
}

// idleSince reads the last use without s.mu so the manager never waits on a running command.
func (s *Session) idleSince() time.Time {
	return time.Unix(0, s.lastUsed.Load())
}
