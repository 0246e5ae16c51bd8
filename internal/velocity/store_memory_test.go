package velocity

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/suite"

	"payguard/internal/domain"
)

type InMemoryStoreSuite struct {
	suite.Suite
	store *InMemoryStore
	ctx   context.Context
	now   time.Time
}

func TestInMemoryStoreSuite(t *testing.T) {
	suite.Run(t, new(InMemoryStoreSuite))
}

func (s *InMemoryStoreSuite) SetupTest() {
	s.store = NewInMemoryStore(Limits{Window: time.Hour, MaxEntries: 5, MaxGeos: 2})
	s.ctx = context.Background()
	s.now = time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)
}

func (s *InMemoryStoreSuite) tx(id string, ago time.Duration, geo string) domain.Transaction {
	return domain.Transaction{
		IntentID:    id,
		Amount:      decimal.NewFromInt(40),
		Merchant:    "chai-stall@upi",
		Geolocation: geo,
		At:          s.now.Add(-ago),
	}
}

func (s *InMemoryStoreSuite) TestHistory() {
	s.Run("unknown user has empty history", func() {
		h, err := s.store.History(s.ctx, "nobody", s.now)
		s.Require().NoError(err)
		s.Empty(h.Recent)
		s.Zero(h.Samples())
	})

	s.Run("records in time order and builds the histogram", func() {
		s.Require().NoError(s.store.Record(s.ctx, "u1", s.tx("b", 10*time.Minute, "IN-KA")))
		s.Require().NoError(s.store.Record(s.ctx, "u1", s.tx("a", 20*time.Minute, "IN-MH")))

		h, err := s.store.History(s.ctx, "u1", s.now)
		s.Require().NoError(err)
		s.Require().Len(h.Recent, 2)
		s.Equal("a", h.Recent[0].IntentID)
		s.Equal("b", h.Recent[1].IntentID)
		s.Equal(2, h.HourHistogram[8])
		s.Equal([]string{"IN-MH", "IN-KA"}, h.RecentGeos)
	})
}

func (s *InMemoryStoreSuite) TestEviction() {
	s.Run("entries older than the window are dropped", func() {
		s.Require().NoError(s.store.Record(s.ctx, "u2", s.tx("old", 2*time.Hour, "")))
		s.Require().NoError(s.store.Record(s.ctx, "u2", s.tx("new", time.Minute, "")))

		h, err := s.store.History(s.ctx, "u2", s.now)
		s.Require().NoError(err)
		s.Require().Len(h.Recent, 1)
		s.Equal("new", h.Recent[0].IntentID)
		// the histogram is lifetime, not windowed
		s.Equal(2, h.Samples())
	})

	s.Run("entry cap keeps the newest", func() {
		for i := range 8 {
			s.Require().NoError(s.store.Record(s.ctx, "u3", s.tx(string(rune('a'+i)), time.Duration(8-i)*time.Minute, "")))
		}
		h, err := s.store.History(s.ctx, "u3", s.now)
		s.Require().NoError(err)
		s.Require().Len(h.Recent, 5)
		s.Equal("d", h.Recent[0].IntentID)
	})

	s.Run("geo list is distinct and capped", func() {
		for _, g := range []string{"A", "B", "A", "C"} {
			s.Require().NoError(s.store.Record(s.ctx, "u4", s.tx(g, time.Minute, g)))
		}
		h, err := s.store.History(s.ctx, "u4", s.now)
		s.Require().NoError(err)
		s.Equal([]string{"C", "A"}, h.RecentGeos)
	})
}

func (s *InMemoryStoreSuite) TestIdleUsersAreDropped() {
	store := NewInMemoryStore(Limits{Window: time.Hour, MaxEntries: 5}, WithMemoryIdleExpiry(24*time.Hour))

	for i := range 100 {
		user := "user-" + string(rune('a'+i%26)) + string(rune('a'+i/26))
		s.Require().NoError(store.Record(s.ctx, user, s.tx("once", 0, "")))
	}
	s.Require().Equal(100, store.size())

	s.Run("reading an idle user forgets it", func() {
		h, err := store.History(s.ctx, "user-aa", s.now.Add(25*time.Hour))
		s.Require().NoError(err)
		s.Zero(h.Samples())
		s.Equal(99, store.size())
	})

	s.Run("a later payment sweeps the rest", func() {
		later := s.tx("later", 0, "")
		later.At = s.now.Add(48 * time.Hour)
		s.Require().NoError(store.Record(s.ctx, "user-new", later))
		s.Equal(1, store.size())
	})

	s.Run("active users survive the sweep", func() {
		again := s.tx("again", 0, "")
		again.At = s.now.Add(50 * time.Hour)
		s.Require().NoError(store.Record(s.ctx, "user-new", again))
		h, err := store.History(s.ctx, "user-new", again.At)
		s.Require().NoError(err)
		s.Len(h.Recent, 1)
		s.Equal(2, h.Samples())
	})
}

func (s *InMemoryStoreSuite) TestConcurrentRecord() {
	var wg sync.WaitGroup
	for i := range 50 {
		wg.Go(func() {
			_ = s.store.Record(s.ctx, "u5", s.tx("c", time.Duration(i)*time.Second, ""))
		})
	}
	wg.Wait()

	h, err := s.store.History(s.ctx, "u5", s.now)
	s.Require().NoError(err)
	s.Len(h.Recent, 5)
	s.Equal(50, h.Samples())
}
