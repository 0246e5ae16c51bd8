//go:build integration

package ledger

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/suite"

	"payguard/pkg/testutil/containers"
)

type PostgresLedgerSuite struct {
	suite.Suite
	pg *containers.PostgresContainer
}

func TestPostgresLedgerSuite(t *testing.T) {
	suite.Run(t, new(PostgresLedgerSuite))
}

func (s *PostgresLedgerSuite) SetupSuite() {
	s.pg = containers.NewPostgresContainer(s.T())
	s.Require().NoError(NewPostgresStore(s.pg.DB).Migrate(context.Background()))
}

func (s *PostgresLedgerSuite) SetupTest() {
	_, err := s.pg.DB.Exec(`TRUNCATE ledger_entries`)
	s.Require().NoError(err)
}

// Two services over one table behave like two processes: only the store
// arbitrates between them.
func (s *PostgresLedgerSuite) TestTwoWritersShareOneChain() {
	ctx := context.Background()
	a, err := New(NewPostgresStore(s.pg.DB), WithMaxAttempts(50))
	s.Require().NoError(err)
	b, err := New(NewPostgresStore(s.pg.DB), WithMaxAttempts(50))
	s.Require().NoError(err)

	var wg sync.WaitGroup
	errs := make(chan error, 40)
	for i := range 20 {
		for _, svc := range []*Service{a, b} {
			wg.Go(func() {
				_, err := svc.Record(ctx, draft(fmt.Sprintf("int-%d", i), "APPROVE"))
				errs <- err
			})
		}
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		s.Require().NoError(err)
	}

	report, err := a.VerifyChain(ctx)
	s.Require().NoError(err)
	s.True(report.Valid, report.Reason)
	s.Equal(uint64(40), report.Checked)
}

func (s *PostgresLedgerSuite) TestTamperedRowIsDetected() {
	ctx := context.Background()
	svc, err := New(NewPostgresStore(s.pg.DB))
	s.Require().NoError(err)
	for i := range 4 {
		_, err := svc.Record(ctx, draft(fmt.Sprintf("int-%d", i), "DENY", "AMOUNT_LIMIT_EXCEEDED"))
		s.Require().NoError(err)
	}

	_, err = s.pg.DB.Exec(`UPDATE ledger_entries SET decision = 'APPROVE' WHERE sequence = 2`)
	s.Require().NoError(err)

	report, err := svc.VerifyChain(ctx)
	s.Require().NoError(err)
	s.False(report.Valid)
	s.Equal(uint64(2), report.BrokenAt)
}
