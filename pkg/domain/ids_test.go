package domain

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	dErrors "civreg/pkg/domain-errors"
)

// parsers returns each id parser reduced to accept/reject.
func parsers() map[string]func(string) error {
	return map[string]func(string) error{
		"user":      func(s string) error { _, err := ParseUserID(s); return err },
		"household": func(s string) error { _, err := ParseHouseholdID(s); return err },
		"person":    func(s string) error { _, err := ParsePersonID(s); return err },
		"residence": func(s string) error { _, err := ParseResidenceID(s); return err },
		"complaint": func(s string) error { _, err := ParseComplaintID(s); return err },
	}
}

func TestParseRejectsNonIDs(t *testing.T) {
	inputs := map[string]string{
		"empty":          "",
		"blank":          "   ",
		"household code": "HK000001",
		"complaint code": "KN000001",
		"nil uuid":       uuid.Nil.String(),
		"sql fragment":   "'; DROP TABLE households;--",
		"null byte":      "550e8400\x00-e29b-41d4-a716-446655440000",
		"oversized":      strings.Repeat("a", 1000),
	}
	for kind, parse := range parsers() {
		for name, input := range inputs {
			t.Run(kind+"/"+name, func(t *testing.T) {
				err := parse(input)
				require.Error(t, err)
				assert.True(t, dErrors.HasCode(err, dErrors.CodeInvalidInput))
			})
		}
	}
}

func TestParseAcceptsUUIDs(t *testing.T) {
	for kind, parse := range parsers() {
		t.Run(kind, func(t *testing.T) {
			assert.NoError(t, parse("550e8400-e29b-41d4-a716-446655440000"))
			assert.NoError(t, parse("550E8400-E29B-41D4-A716-446655440000"))
		})
	}

	raw := uuid.New()
	got, err := ParsePersonID(raw.String())
	require.NoError(t, err)
	assert.Equal(t, PersonID(raw), got)
	assert.False(t, got.IsNil())
}

func TestIDsMarshalAsStrings(t *testing.T) {
	type members struct {
		Head    HouseholdID `json:"household"`
		Members []PersonID  `json:"members"`
	}
	in := members{Head: NewHouseholdID(), Members: []PersonID{NewPersonID()}}

	body, err := json.Marshal(in)
	require.NoError(t, err)
	assert.JSONEq(t, `{"household":"`+in.Head.String()+`","members":["`+in.Members[0].String()+`"]}`, string(body))

	var out members
	require.NoError(t, json.Unmarshal(body, &out))
	assert.Equal(t, in, out)

	assert.Error(t, json.Unmarshal([]byte(`{"members":["HK000001"]}`), &out))
}

func TestDedupePersonIDs(t *testing.T) {
	a, b, c := NewPersonID(), NewPersonID(), NewPersonID()
	assert.Equal(t, []PersonID{a, b, c}, DedupePersonIDs([]PersonID{a, b, a, c, b}))
	assert.Empty(t, DedupePersonIDs(nil))
}

func FuzzParsePersonID(f *testing.F) {
	for _, seed := range []string{"", "not-a-uuid", "HK000001", uuid.Nil.String(), "550e8400-e29b-41d4-a716-446655440000"} {
		f.Add(seed)
	}
	f.Fuzz(func(t *testing.T, input string) {
		got, err := ParsePersonID(input)
		if err != nil {
			return
		}
		if got.IsNil() {
			t.Fatal("nil id accepted")
		}
		again, err := ParsePersonID(got.String())
		if err != nil || again != got {
			t.Fatalf("round trip of %q changed the id", input)
		}
	})
}
