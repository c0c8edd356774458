package redolog

import (
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"

	"github.com/ferrodb/redolog/common"
)

type CheckpointSuite struct {
	suite.Suite
	log *Log
}

func (s *CheckpointSuite) SetupTest() {
	s.log = newTestLog(s.T(), testConfig())
}

func TestCheckpointSuite(t *testing.T) {
	suite.Run(t, new(CheckpointSuite))
}

func (s *CheckpointSuite) TestCheckpointNoOpWhenNothingAdvanced() {
	done, err := s.log.Checkpoint()
	s.Require().NoError(err)
	s.True(done)
	s.Equal(common.LSN(1), s.log.CheckpointState().LastCheckpointLSN)
}

func (s *CheckpointSuite) TestCheckpointAdvancesPastCommittedWork() {
	mtr := s.log.Begin()
	mtr.Write(1, []byte("some redo bytes"))
	endLSN, err := mtr.Commit()
	s.Require().NoError(err)

	done, err := s.log.Checkpoint()
	s.Require().NoError(err)
	s.True(done)
	s.Equal(endLSN, s.log.CheckpointState().LastCheckpointLSN)
	s.Equal(0, s.log.CheckpointState().PendingCheckpointWrites)
}

func (s *CheckpointSuite) TestCheckpointTakesCurrentLSNNotOldestModification() {
	mtr1 := s.log.Begin()
	mtr1.Write(1, []byte("older page"))
	_, err := mtr1.Commit()
	s.Require().NoError(err)

	// A second mini-transaction touching a different page advances lsn
	// further, but the oldest tracked modification is still mtr1's.
	mtr2 := s.log.Begin()
	mtr2.Write(2, []byte("newer page"))
	currentLSN, err := mtr2.Commit()
	s.Require().NoError(err)

	oldest, ok := s.log.Tracker().OldestModification()
	s.Require().True(ok)
	s.Equal(common.LSN(1), oldest)

	done, err := s.log.Checkpoint()
	s.Require().NoError(err)
	s.True(done)
	s.Equal(currentLSN, s.log.CheckpointState().LastCheckpointLSN)
}

func (s *CheckpointSuite) TestMakeCheckpointConvergesWithNoopPreflusher() {
	mtr := s.log.Begin()
	mtr.Write(1, []byte("some redo bytes"))
	endLSN, err := mtr.Commit()
	s.Require().NoError(err)

	require.NoError(s.T(), s.log.MakeCheckpoint())
	s.Equal(endLSN, s.log.CheckpointState().LastCheckpointLSN)
}

func (s *CheckpointSuite) TestCheckAgeIsNoOpWithoutCrossingThreshold() {
	mtr := s.log.Begin()
	mtr.Write(1, []byte("tiny"))
	_, err := mtr.Commit()
	s.Require().NoError(err)
	s.Require().NoError(s.log.CheckAge())
	// checkFlushOrCheckpoint should not have been set for such a small
	// write against a multi-kilobyte buffer, so no checkpoint happens.
	s.Equal(common.LSN(1), s.log.CheckpointState().LastCheckpointLSN)
}
