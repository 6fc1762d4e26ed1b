package host

import (
	"testing"

	"github.com/stretchr/testify/suite"
)

type JSONInspectorSuite struct {
	suite.Suite
	inspector Inspector
}

func (s *JSONInspectorSuite) SetupTest() {
	s.inspector = JSONInspector()
}

func TestJSONInspectorSuite(t *testing.T) {
	suite.Run(t, new(JSONInspectorSuite))
}

func (s *JSONInspectorSuite) TestReturnsViewForValidJSON() {
	view, err := s.inspector.Inspect([]byte(`{"MessageName": "Update"}`))

	s.Require().NoError(err)
	s.Assert().NotNil(view)
}

func (s *JSONInspectorSuite) TestReturnsErrorForInvalidJSON() {
	_, err := s.inspector.Inspect([]byte(`{not valid}`))

	s.Assert().ErrorIs(err, ErrInvalidJSON)
}

func (s *JSONInspectorSuite) TestReturnsErrorForEmptyInput() {
	_, err := s.inspector.Inspect([]byte{})

	s.Assert().ErrorIs(err, ErrInvalidJSON)
}

type JSONViewSuite struct {
	suite.Suite
	view View
}

func (s *JSONViewSuite) SetupTest() {
	raw := []byte(`{
		"MessageName": "Update",
		"Stage": 40,
		"Depth": 1.0,
		"Rate": 0.25,
		"StageText": "40",
		"Synchronous": true,
		"PostEntityImages": [
			{"key": "PostImage", "value": {"LogicalName": "account"}}
		]
	}`)

	var err error
	s.view, err = JSONInspector().Inspect(raw)
	s.Require().NoError(err)
}

func TestJSONViewSuite(t *testing.T) {
	suite.Run(t, new(JSONViewSuite))
}

func (s *JSONViewSuite) TestHasField() {
	tests := map[string]struct {
		path   string
		exists bool
	}{
		"top level":      {"MessageName", true},
		"array element":  {"PostEntityImages.0.key", true},
		"nested value":   {"PostEntityImages.0.value.LogicalName", true},
		"missing":        {"PrimaryEntityName", false},
		"missing nested": {"PostEntityImages.1.key", false},
	}

	for name, tt := range tests {
		s.Run(name, func() {
			s.Assert().Equal(tt.exists, s.view.HasField(tt.path))
		})
	}
}

func (s *JSONViewSuite) TestGetString() {
	val, ok := s.view.GetString("MessageName")
	s.Require().True(ok)
	s.Assert().Equal("Update", val)

	_, ok = s.view.GetString("Stage")
	s.Assert().False(ok)

	_, ok = s.view.GetString("Synchronous")
	s.Assert().False(ok)

	_, ok = s.view.GetString("missing")
	s.Assert().False(ok)
}

func (s *JSONViewSuite) TestGetInt() {
	val, ok := s.view.GetInt("Stage")
	s.Require().True(ok)
	s.Assert().Equal(int64(40), val)

	val, ok = s.view.GetInt("Depth")
	s.Require().True(ok)
	s.Assert().Equal(int64(1), val)

	val, ok = s.view.GetInt("PostEntityImages.#")
	s.Require().True(ok)
	s.Assert().Equal(int64(1), val)

	_, ok = s.view.GetInt("Rate")
	s.Assert().False(ok)

	_, ok = s.view.GetInt("StageText")
	s.Assert().False(ok)

	_, ok = s.view.GetInt("MessageName")
	s.Assert().False(ok)

	_, ok = s.view.GetInt("missing")
	s.Assert().False(ok)
}
