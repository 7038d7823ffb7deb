package services

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/tbourn/go-codereview-backend/internal/analysis"
	"github.com/tbourn/go-codereview-backend/internal/apperror"
	"github.com/tbourn/go-codereview-backend/internal/domain"
	"github.com/tbourn/go-codereview-backend/internal/repo"
)

func newReviewSvc(t *testing.T, a *fakeAnalyzer) *ReviewService {
	t.Helper()
	return NewReviewService(newTestDB(t), repoShim{}, a)
}

func TestNewReviewService_Defaults(t *testing.T) {
	s := NewReviewService(nil, repoShim{}, &fakeAnalyzer{})
	if s.TitleMaxLen != 255 || s.IdempotencyTTL != 24*time.Hour {
		t.Fatalf("defaults: %+v", s)
	}
}

func TestReviewCreate_ValidationRunsBeforeAnalysis(t *testing.T) {
	a := &fakeAnalyzer{}
	s := newReviewSvc(t, a)
	ctx := context.Background()

	cases := []struct {
		in   CreateReviewInput
		want error
	}{
		{CreateReviewInput{Title: "t", Code: "   \n\t"}, ErrEmptyInput},
		{CreateReviewInput{Title: "  ", Code: "x"}, ErrTitleRequired},
		{CreateReviewInput{Title: "t", Code: "x", Focus: "style"}, ErrInvalidFocus},
	}
	for _, tc := range cases {
		_, err := s.Create(ctx, "u1", tc.in)
		if !errors.Is(err, tc.want) {
			t.Fatalf("Create(%+v) err = %v, want %v", tc.in, err, tc.want)
		}
		if !errors.Is(err, apperror.ErrValidation) {
			t.Fatalf("expected a validation kind, got %v", err)
		}
	}
	if a.calls != 0 {
		t.Fatalf("analyzer must not be called on invalid input, calls=%d", a.calls)
	}
}

func TestReviewCreate_PersistsAnalysis(t *testing.T) {
	a := &fakeAnalyzer{result: domain.Analysis{
		Summary: "fine",
		Score:   85,
		Issues:  []domain.Issue{{Severity: domain.SeverityLow, Category: "style", Issue: "naming", Suggestion: "rename"}},
	}}
	s := newReviewSvc(t, a)
	ctx := context.Background()

	rv, err := s.Create(ctx, "u1", CreateReviewInput{
		Title: "  My   first\treview ",
		Code:  "function add(a, b) { return a + b }",
		Focus: "Security",
	})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if rv.Title != "My first review" {
		t.Fatalf("title normalization: %q", rv.Title)
	}
	if rv.Language != "javascript" {
		t.Fatalf("language default: %q", rv.Language)
	}
	if rv.Score != 85 || rv.Analysis().Summary != "fine" {
		t.Fatalf("score/analysis not stored: %+v", rv)
	}
	if a.focus != analysis.FocusSecurity {
		t.Fatalf("focus passed = %q", a.focus)
	}

	got, err := s.Get(ctx, "u1", rv.ID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.Score != 85 || len(got.Analysis().Issues) != 1 {
		t.Fatalf("round trip: %+v", got)
	}
}

func TestReviewCreate_LanguageNormalized(t *testing.T) {
	s := newReviewSvc(t, &fakeAnalyzer{result: domain.Analysis{Issues: []domain.Issue{}}})
	rv, err := s.Create(context.Background(), "u1", CreateReviewInput{Title: "t", Code: "x", Language: " PYTHON "})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if rv.Language != "python" {
		t.Fatalf("language = %q", rv.Language)
	}
	if rv.Score != 0 {
		t.Fatalf("missing score should store 0, got %d", rv.Score)
	}
}

func TestReviewCreate_AnalysisErrorPropagates(t *testing.T) {
	upstream := apperror.Upstream("Failed to analyze code", errors.New("rate limited"))
	s := newReviewSvc(t, &fakeAnalyzer{err: upstream})
	ctx := context.Background()

	_, err := s.Create(ctx, "u1", CreateReviewInput{Title: "t", Code: "x"})
	if !errors.Is(err, apperror.ErrUpstream) {
		t.Fatalf("expected upstream error, got %v", err)
	}
	if n, _ := repo.CountReviews(ctx, s.DB, "u1"); n != 0 {
		t.Fatalf("nothing should be persisted, got %d rows", n)
	}
}

func TestReviewCreate_ClipsTitleByRunes(t *testing.T) {
	s := newReviewSvc(t, &fakeAnalyzer{})
	s.TitleMaxLen = 5
	rv, err := s.Create(context.Background(), "u1", CreateReviewInput{Title: "ñandú review", Code: "x"})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if rv.Title != "ñandú" {
		t.Fatalf("clip = %q", rv.Title)
	}
}

func TestReviewCreateIdempotent_Replays(t *testing.T) {
	a := &fakeAnalyzer{result: domain.Analysis{Summary: "s", Score: 50, Issues: []domain.Issue{}}}
	s := newReviewSvc(t, a)
	ctx := context.Background()
	in := CreateReviewInput{Title: "t", Code: "x"}

	first, replayed, err := s.CreateIdempotent(ctx, "u1", "key-1", in)
	if err != nil || replayed {
		t.Fatalf("first: replayed=%v err=%v", replayed, err)
	}
	second, replayed, err := s.CreateIdempotent(ctx, "u1", "key-1", in)
	if err != nil || !replayed {
		t.Fatalf("second: replayed=%v err=%v", replayed, err)
	}
	if second.ID != first.ID || a.calls != 1 {
		t.Fatalf("replay must return the stored review without analysis: ids %s/%s calls=%d", first.ID, second.ID, a.calls)
	}

	// Same key, other user: independent.
	other, replayed, err := s.CreateIdempotent(ctx, "u2", "key-1", in)
	if err != nil || replayed || other.ID == first.ID {
		t.Fatalf("other user: replayed=%v err=%v", replayed, err)
	}

	// No key: always creates.
	if _, replayed, _ := s.CreateIdempotent(ctx, "u1", " ", in); replayed {
		t.Fatalf("blank key must not replay")
	}
	if a.calls != 3 {
		t.Fatalf("calls = %d", a.calls)
	}
}

func TestReviewCreateIdempotent_DeletedReviewIsRecreated(t *testing.T) {
	a := &fakeAnalyzer{result: domain.Analysis{Issues: []domain.Issue{}}}
	s := newReviewSvc(t, a)
	ctx := context.Background()
	in := CreateReviewInput{Title: "t", Code: "x"}

	first, _, err := s.CreateIdempotent(ctx, "u1", "k", in)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if err := s.Delete(ctx, "u1", first.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}
	again, replayed, err := s.CreateIdempotent(ctx, "u1", "k", in)
	if err != nil || replayed || again.ID == first.ID {
		t.Fatalf("expected a fresh review: replayed=%v err=%v", replayed, err)
	}
}

func TestReviewCreateIdempotent_RecordFailureIsLogged(t *testing.T) {
	a := &fakeAnalyzer{result: domain.Analysis{Issues: []domain.Issue{}}}
	s := newReviewSvc(t, a)
	// Lookups keep working; only storing a new key fails.
	if err := s.DB.Exec(`CREATE TRIGGER idem_offline BEFORE INSERT ON idempotency
		BEGIN SELECT RAISE(ABORT, 'idempotency store offline'); END`).Error; err != nil {
		t.Fatalf("trigger: %v", err)
	}
	var buf bytes.Buffer
	ctx := zerolog.New(&buf).WithContext(context.Background())

	rv, replayed, err := s.CreateIdempotent(ctx, "u1", "k", CreateReviewInput{Title: "t", Code: "x"})
	if err != nil || replayed || rv == nil {
		t.Fatalf("create must succeed without the key record: replayed=%v err=%v", replayed, err)
	}
	out := buf.String()
	if !strings.Contains(out, `"level":"warn"`) || !strings.Contains(out, "idempotency: record not stored") || !strings.Contains(out, rv.ID) {
		t.Fatalf("expected a warn entry, got %q", out)
	}
}

func TestReviewCreateIdempotent_DuplicateIsSilent(t *testing.T) {
	a := &fakeAnalyzer{result: domain.Analysis{Issues: []domain.Issue{}}}
	s := newReviewSvc(t, a)
	var buf bytes.Buffer
	ctx := zerolog.New(&buf).WithContext(context.Background())

	if _, err := repo.CreateIdempotency(ctx, s.DB, "u1", ReviewScope, "k", "missing-review", 201, time.Hour); err != nil {
		t.Fatalf("seed key: %v", err)
	}
	// The stale record points at a missing review, so a fresh one is created
	// and storing the key again collides.
	if _, _, err := s.CreateIdempotent(ctx, "u1", "k", CreateReviewInput{Title: "t", Code: "x"}); err != nil {
		t.Fatalf("create: %v", err)
	}
	if strings.Contains(buf.String(), "idempotency: record not stored") {
		t.Fatalf("duplicate key must not be logged: %q", buf.String())
	}
}

func TestReviewList_PaginatesNewestFirst(t *testing.T) {
	s := newReviewSvc(t, &fakeAnalyzer{result: domain.Analysis{Issues: []domain.Issue{}}})
	ctx := context.Background()

	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	for i := 0; i < 15; i++ {
		ts := base.Add(time.Duration(i) * time.Minute)
		s.now = func() time.Time { return ts }
		if _, err := s.Create(ctx, "u1", CreateReviewInput{Title: strings.Repeat("t", i+1), Code: "x"}); err != nil {
			t.Fatalf("create %d: %v", i, err)
		}
	}
	seedReview(t, s.DB, "someone-else")

	items, total, err := s.List(ctx, "u1", 2, 10)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if total != 15 || len(items) != 5 {
		t.Fatalf("page 2: total=%d len=%d", total, len(items))
	}
	// Page 2 holds the five oldest, newest of them first.
	if items[0].Title != strings.Repeat("t", 5) || items[4].Title != "t" {
		t.Fatalf("ordering: first=%q last=%q", items[0].Title, items[4].Title)
	}

	items, total, err = s.List(ctx, "nobody", 0, 0)
	if err != nil || total != 0 || items == nil || len(items) != 0 {
		t.Fatalf("empty list: items=%v total=%d err=%v", items, total, err)
	}
}

func TestReviewGetDelete_OwnerScoped(t *testing.T) {
	s := newReviewSvc(t, &fakeAnalyzer{})
	ctx := context.Background()
	rv := seedReview(t, s.DB, "owner")

	if _, err := s.Get(ctx, "intruder", rv.ID); !errors.Is(err, ErrReviewNotFound) {
		t.Fatalf("foreign get: %v", err)
	}
	if err := s.Delete(ctx, "intruder", rv.ID); !errors.Is(err, ErrReviewNotFound) {
		t.Fatalf("foreign delete: %v", err)
	}
	if _, err := s.Get(ctx, "owner", rv.ID); err != nil {
		t.Fatalf("review must survive a foreign delete: %v", err)
	}
	if err := s.Delete(ctx, "owner", rv.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, err := s.Get(ctx, "owner", rv.ID); !errors.Is(err, apperror.ErrNotFound) {
		t.Fatalf("after delete: %v", err)
	}
	if err := s.Delete(ctx, "owner", rv.ID); !errors.Is(err, ErrReviewNotFound) {
		t.Fatalf("second delete: %v", err)
	}
}

func TestReviewFingerprint_ChangesWithList(t *testing.T) {
	s := newReviewSvc(t, &fakeAnalyzer{})
	ctx := context.Background()

	n, ts, err := s.Fingerprint(ctx, "u1")
	if err != nil || n != 0 || ts != nil {
		t.Fatalf("empty fingerprint: %d %v %v", n, ts, err)
	}
	seedReview(t, s.DB, "u1")
	n, ts, err = s.Fingerprint(ctx, "u1")
	if err != nil || n != 1 || ts == nil {
		t.Fatalf("fingerprint: %d %v %v", n, ts, err)
	}
}

func TestNormalizeLanguage(t *testing.T) {
	for in, want := range map[string]string{
		"":           "javascript",
		"  ":         "javascript",
		"Go":         "go",
		"TypeScript": "typescript",
	} {
		if got := normalizeLanguage(in); got != want {
			t.Errorf("normalizeLanguage(%q) = %q, want %q", in, got, want)
		}
	}
	if got := normalizeLanguage(strings.Repeat("a", 40)); len(got) != 32 {
		t.Errorf("language should be clipped to 32 runes, got %d", len(got))
	}
}

func TestNormalizeTitle(t *testing.T) {
	cases := map[string]string{
		"":                      "",
		"   leading   ":         "leading",
		"multi   spaces":        "multi spaces",
		"tabs\tand\nnewlines  ": "tabs and newlines",
		"cafe\u0301":           "caf\u00e9",
	}
	for in, want := range cases {
		if got := normalizeTitle(in); got != want {
			t.Errorf("normalizeTitle(%q) = %q; want %q", in, got, want)
		}
	}
}
