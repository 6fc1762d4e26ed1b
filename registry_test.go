package plugin

import (
	"context"
	"testing"

	"github.com/stretchr/testify/suite"
)

type namedHandler string

func (n namedHandler) Name() string { return string(n) }

func (namedHandler) Handle(context.Context, *Invocation) error { return nil }

func names(regs []Registration) []string {
	out := make([]string, len(regs))
	for i, r := range regs {
		out[i] = r.Name
	}
	return out
}

type RegistrySuite struct {
	suite.Suite
	reg *Registry
}

func (s *RegistrySuite) SetupTest() {
	s.reg = NewRegistry()
	s.reg.Register(On(PostOperation, "Update", "account"), namedHandler("A"))
	s.reg.Register(On(PostOperation, "", ""), namedHandler("B"))
	s.reg.Register(On(PreOperation, "Create", ""), namedHandler("C"))
	s.reg.Register(On(PostOperation, "", "contact"), namedHandler("D"))
}

func TestRegistrySuite(t *testing.T) {
	suite.Run(t, new(RegistrySuite))
}

func (s *RegistrySuite) TestMatchesInRegistrationOrder() {
	got := s.reg.Match(PostOperation, "Update", "account")
	s.Assert().Equal([]string{"A", "B"}, names(got))
}

func (s *RegistrySuite) TestMatchIsCaseInsensitive() {
	got := s.reg.Match(PostOperation, "UPDATE", "Account")
	s.Assert().Equal([]string{"A", "B"}, names(got))
}

func (s *RegistrySuite) TestStageMustMatchExactly() {
	s.Assert().Empty(s.reg.Match(PreOperation, "Update", "account"))
	s.Assert().Empty(s.reg.Match(PreValidation, "Create", "account"))
}

func (s *RegistrySuite) TestWildcardsMatchEveryValue() {
	for _, message := range []string{"Create", "Update", "Delete", "Assign", "SetState"} {
		for _, entity := range []string{"account", "contact", "lead", ""} {
			got := names(s.reg.Match(PostOperation, message, entity))
			s.Assert().Contains(got, "B", "message=%s entity=%s", message, entity)
		}
	}
}

func (s *RegistrySuite) TestEntityWildcard() {
	s.Assert().Equal([]string{"C"}, names(s.reg.Match(PreOperation, "create", "lead")))
	s.Assert().Equal([]string{"B", "D"}, names(s.reg.Match(PostOperation, "Delete", "contact")))
}

func (s *RegistrySuite) TestNoMatchReturnsEmpty() {
	got := s.reg.Match(PreValidation, "Update", "account")
	s.Assert().Nil(got)
}

func (s *RegistrySuite) TestDuplicatesAreKept() {
	reg := NewRegistry()
	h := namedHandler("A")
	reg.Register(On(PostOperation, "Update", ""), h)
	reg.Register(On(PostOperation, "Update", ""), h)

	s.Assert().Equal([]string{"A", "A"}, names(reg.Match(PostOperation, "Update", "x")))
}

func (s *RegistrySuite) TestRegistrationsIsACopy() {
	regs := s.reg.Registrations()
	regs[0].Name = "changed"

	s.Assert().Equal("A", s.reg.Registrations()[0].Name)
	s.Assert().Equal(4, s.reg.Len())
}

func (s *RegistrySuite) TestRegisterPanicsOnInvalidStage() {
	s.Assert().Panics(func() {
		s.reg.Register(On(Stage(30), "Update", ""), namedHandler("X"))
	})
}

func (s *RegistrySuite) TestRegisterPanicsOnNilHandler() {
	s.Assert().Panics(func() {
		s.reg.Register(On(PostOperation, "Update", ""), nil)
	})
}

func (s *RegistrySuite) TestHandlerNames() {
	reg := NewRegistry()
	reg.RegisterFunc(On(PostOperation, "", ""), exampleStep)
	reg.Register(On(PostOperation, "", ""), plainHandler{})

	regs := reg.Registrations()
	s.Assert().Equal("plugin.exampleStep", regs[0].Name)
	s.Assert().Equal("plugin.plainHandler", regs[1].Name)
}

func exampleStep(context.Context, *Invocation) error { return nil }

type plainHandler struct{}

func (plainHandler) Handle(context.Context, *Invocation) error { return nil }

func TestEventKeyString(t *testing.T) {
	if got := On(PostOperation, "Update", "").String(); got != "PostOperation/Update/*" {
		t.Errorf("String() = %q", got)
	}
	if got := On(PreValidation, "", "account").String(); got != "PreValidation/*/account" {
		t.Errorf("String() = %q", got)
	}
}

func TestParseStage(t *testing.T) {
	tests := []struct {
		in      string
		want    Stage
		wantErr bool
	}{
		{"PreValidation", PreValidation, false},
		{"preoperation", PreOperation, false},
		{" PostOperation ", PostOperation, false},
		{"40", PostOperation, false},
		{"10", PreValidation, false},
		{"30", 0, true},
		{"MainOperation", 0, true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseStage(tt.in)
			if tt.wantErr {
				if err == nil {
					t.Errorf("ParseStage(%q) expected error", tt.in)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != tt.want {
				t.Errorf("ParseStage(%q) = %v, want %v", tt.in, got, tt.want)
			}
		})
	}
}
