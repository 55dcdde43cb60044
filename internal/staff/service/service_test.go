package service

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/suite"

	"kiosk/internal/biometric"
	"kiosk/internal/staff/store"
	id "kiosk/pkg/domain"
	dErrors "kiosk/pkg/domain-errors"
	"kiosk/pkg/requestcontext"
)

type StaffServiceSuite struct {
	suite.Suite
	ctx     context.Context
	service *Service
}

func TestStaffServiceSuite(t *testing.T) {
	suite.Run(t, new(StaffServiceSuite))
}

func (s *StaffServiceSuite) SetupTest() {
	s.ctx = requestcontext.WithTime(context.Background(), time.Date(2025, 3, 4, 8, 0, 0, 0, time.UTC))
	s.service = New(store.NewInMemory(), WithEmbeddingDimensions(3))
}

func (s *StaffServiceSuite) TestCreate() {
	s.Run("trims and activates", func() {
		st, err := s.service.Create(s.ctx, CreateCommand{Name: "  Ana Cruz ", EmployeeNumber: "E-100", Role: "nurse"})
		s.Require().NoError(err)
		s.Equal("Ana Cruz", st.Name)
		s.True(st.Active)
	})

	s.Run("employee number is unique", func() {
		_, err := s.service.Create(s.ctx, CreateCommand{Name: "Ben", EmployeeNumber: "E-100"})
		s.True(dErrors.HasCode(err, dErrors.CodeConflict))
	})

	s.Run("name is required", func() {
		_, err := s.service.Create(s.ctx, CreateCommand{EmployeeNumber: "E-101"})
		s.True(dErrors.HasCode(err, dErrors.CodeInvariantViolation))
	})
}

func (s *StaffServiceSuite) TestEnrollAndGallery() {
	home := id.BranchID(uuid.New())
	other := id.BranchID(uuid.New())

	roaming, err := s.service.Create(s.ctx, CreateCommand{Name: "Roaming", EmployeeNumber: "E-1"})
	s.Require().NoError(err)
	local, err := s.service.Create(s.ctx, CreateCommand{Name: "Local", EmployeeNumber: "E-2", BranchID: &other})
	s.Require().NoError(err)

	s.Require().NoError(s.service.Enroll(s.ctx, roaming.ID, biometric.Embedding{0, 0, 0}))
	s.Require().NoError(s.service.Enroll(s.ctx, roaming.ID, biometric.Embedding{0, 0, 1}))
	s.Require().NoError(s.service.Enroll(s.ctx, local.ID, biometric.Embedding{1, 1, 1}))

	s.Run("staff without a branch appear everywhere", func() {
		g, err := s.service.Gallery(s.ctx, home)
		s.Require().NoError(err)
		s.Len(g, 2)
		for _, t := range g {
			s.Equal(roaming.ID, t.StaffID)
		}
	})

	s.Run("branch staff appear at their branch", func() {
		g, err := s.service.Gallery(s.ctx, other)
		s.Require().NoError(err)
		s.Len(g, 3)
	})

	s.Run("wrong dimensions are rejected", func() {
		err := s.service.Enroll(s.ctx, roaming.ID, biometric.Embedding{0, 0})
		s.True(dErrors.HasCode(err, dErrors.CodeValidation))
	})

	s.Run("unknown staff", func() {
		err := s.service.Enroll(s.ctx, id.StaffID(uuid.New()), biometric.Embedding{0, 0, 0})
		s.True(dErrors.HasCode(err, dErrors.CodeNotFound))
	})
}
