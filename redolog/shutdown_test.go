package redolog

import (
	"context"
	"testing"

	"github.com/stretchr/testify/suite"
)

type ShutdownSuite struct {
	suite.Suite
	log *Log
}

func (s *ShutdownSuite) SetupTest() {
	s.log = newTestLog(s.T(), testConfig())
}

func TestShutdownSuite(t *testing.T) {
	suite.Run(t, new(ShutdownSuite))
}

func (s *ShutdownSuite) TestFastShutdownClosesFilesAndReachesLastPhase() {
	mtr := s.log.Begin()
	mtr.Write(1, []byte("payload"))
	_, err := mtr.Commit()
	s.Require().NoError(err)

	err = s.log.Shutdown(context.Background(), true, QuiescenceChecks{})
	s.Require().NoError(err)
	s.Equal(shutdownLastPhase, s.log.Phase())
}

func (s *ShutdownSuite) TestFullShutdownRunsFinalCheckpoint() {
	mtr := s.log.Begin()
	mtr.Write(1, []byte("payload"))
	endLSN, err := mtr.Commit()
	s.Require().NoError(err)

	err = s.log.Shutdown(context.Background(), false, QuiescenceChecks{})
	s.Require().NoError(err)
	s.Equal(shutdownLastPhase, s.log.Phase())
	s.Equal(endLSN, s.log.CheckpointState().LastCheckpointLSN)
}

func (s *ShutdownSuite) TestFullShutdownStampsShutdownLSN() {
	var stamped uint64
	checks := QuiescenceChecks{
		StampShutdownLSN: func(lsn uint64) error {
			stamped = lsn
			return nil
		},
	}
	err := s.log.Shutdown(context.Background(), false, checks)
	s.Require().NoError(err)
	s.Equal(uint64(s.log.LSN()), stamped)
}

func (s *ShutdownSuite) TestFullShutdownRespectsQuiescenceOrder() {
	var order []string
	mk := func(name string) func() bool {
		return func() bool {
			order = append(order, name)
			return true
		}
	}
	checks := QuiescenceChecks{
		TimersCancelled:         mk("timers"),
		NoActiveTransactions:    mk("txns"),
		RollbackThreadExited:    mk("rollback"),
		EncryptionThreadsExited: mk("encryption"),
		PageCleanerIdle:         mk("page-cleaner"),
		NoPendingBufferPoolIO:   mk("buffer-pool-io"),
	}
	err := s.log.Shutdown(context.Background(), false, checks)
	s.Require().NoError(err)
	s.Equal([]string{"timers", "txns", "rollback", "encryption", "page-cleaner", "buffer-pool-io"}, order)
}
