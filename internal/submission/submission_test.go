/*
Copyright © 2025 Acronis International GmbH.

Released under MIT license.
*/

package submission

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func makeReadyListing() Listing {
	return Listing{
		AppName:        "Acme Reviews",
		Tagline:        "Collect product reviews that actually sell",
		Description:    "Acme Reviews gathers customer feedback and turns it into social proof.",
		Category:       "marketing",
		Features:       []string{"review widgets", "email follow-ups"},
		Keywords:       []string{"reviews", "social proof"},
		LandingPageURL: "https://acme.example.com",
		SupportEmail:   "support@acme.example.com",
	}
}

func TestSubmissionValidate(t *testing.T) {
	screener := NewScreener(nil)

	t.Run("complete listing passes", func(t *testing.T) {
		sub := New("user-1", makeReadyListing())
		require.NoError(t, sub.Validate(screener))
	})

	t.Run("missing fields are all reported", func(t *testing.T) {
		sub := New("user-1", Listing{})
		err := sub.Validate(screener)
		var valErr *ValidationError
		require.True(t, errors.As(err, &valErr))
		require.Len(t, valErr.Issues, 5)
	})

	t.Run("overlong tagline is rejected", func(t *testing.T) {
		listing := makeReadyListing()
		listing.Tagline = strings.Repeat("x", MaxTaglineLen+1)
		err := New("user-1", listing).Validate(screener)
		var valErr *ValidationError
		require.True(t, errors.As(err, &valErr))
		require.Len(t, valErr.Issues, 1)
		require.Contains(t, valErr.Issues[0], "tagline is longer")
	})

	t.Run("prohibited phrase is found case-insensitively", func(t *testing.T) {
		listing := makeReadyListing()
		listing.Description = "We are the Shopify APPROVED solution for reviews."
		err := New("user-1", listing).Validate(screener)
		var valErr *ValidationError
		require.True(t, errors.As(err, &valErr))
		require.Len(t, valErr.Issues, 1)
		require.Contains(t, valErr.Issues[0], "shopify approved")
	})

	t.Run("nil screener skips screening", func(t *testing.T) {
		listing := makeReadyListing()
		listing.Description = "guaranteed sales overnight"
		require.NoError(t, New("user-1", listing).Validate(nil))
	})
}

func TestScreenerFind(t *testing.T) {
	screener := NewScreener([]string{"Forbidden Phrase", "another one"})
	found := screener.Find("this text has a FORBIDDEN phrase... a forbidden PHRASE, twice")
	require.Equal(t, []string{"forbidden phrase"}, found, "each phrase should be reported at most once")
	require.Empty(t, screener.Find("clean text"))
}

func TestMemoryStore(t *testing.T) {
	t.Run("get and delete of unknown submission", func(t *testing.T) {
		store := NewMemoryStore()
		_, err := store.Get("missing")
		require.ErrorIs(t, err, ErrNotFound)
		require.ErrorIs(t, store.Delete("missing"), ErrNotFound)
		require.ErrorIs(t, store.Update("missing", func(sub *Submission) {}), ErrNotFound)
	})

	t.Run("create, update, delete round trip", func(t *testing.T) {
		store := NewMemoryStore()
		sub := New("user-1", makeReadyListing())
		require.NoError(t, store.Create(sub))

		require.NoError(t, store.Update(sub.ID, func(s *Submission) {
			s.Listing.Tagline = "Updated tagline"
			s.Status = StatusReady
		}))

		got, err := store.Get(sub.ID)
		require.NoError(t, err)
		require.Equal(t, "Updated tagline", got.Listing.Tagline)
		require.Equal(t, StatusReady, got.Status)
		require.False(t, got.UpdatedAt.Before(sub.UpdatedAt))

		require.NoError(t, store.Delete(sub.ID))
		_, err = store.Get(sub.ID)
		require.ErrorIs(t, err, ErrNotFound)
	})

	t.Run("returned submission is a copy", func(t *testing.T) {
		store := NewMemoryStore()
		sub := New("user-1", makeReadyListing())
		require.NoError(t, store.Create(sub))

		got, err := store.Get(sub.ID)
		require.NoError(t, err)
		got.Listing.Features[0] = "mutated"
		got.Status = StatusExported

		reread, err := store.Get(sub.ID)
		require.NoError(t, err)
		require.Equal(t, "review widgets", reread.Listing.Features[0])
		require.Equal(t, StatusDraft, reread.Status)
	})

	t.Run("list by user is ordered and isolated", func(t *testing.T) {
		store := NewMemoryStore()
		first := New("user-1", makeReadyListing())
		first.CreatedAt = time.Now().UTC().Add(-time.Hour)
		second := New("user-1", makeReadyListing())
		other := New("user-2", makeReadyListing())
		require.NoError(t, store.Create(second))
		require.NoError(t, store.Create(first))
		require.NoError(t, store.Create(other))

		subs, err := store.ListByUser("user-1")
		require.NoError(t, err)
		require.Len(t, subs, 2)
		require.Equal(t, first.ID, subs[0].ID)
		require.Equal(t, second.ID, subs[1].ID)

		subs, err = store.ListByUser("user-3")
		require.NoError(t, err)
		require.Empty(t, subs)
	})
}
