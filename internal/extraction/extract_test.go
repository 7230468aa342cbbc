package extraction

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"cvoptimizer/internal/errors"
	"cvoptimizer/internal/types"
)

func TestParseJobAnalysis_Wrappings(t *testing.T) {
	want := types.JobAnalysis{CompanyName: "Acme", Keywords: []string{"x"}}

	tests := []struct {
		name string
		raw  string
	}{
		{"bare object", `{"company_name":"Acme","keywords":["x"]}`},
		{"surrounding whitespace", "\n\t  {\"company_name\":\"Acme\",\"keywords\":[\"x\"]}  \n"},
		{"fence with language tag", "```json\n{\"company_name\":\"Acme\",\"keywords\":[\"x\"]}\n```"},
		{"fence without language tag", "```\n{\"company_name\":\"Acme\",\"keywords\":[\"x\"]}\n```"},
		{"fence without closing line", "```json\n{\"company_name\":\"Acme\",\"keywords\":[\"x\"]}"},
		{"fence with padding", "  ```json\n\n{\"company_name\":\"Acme\",\"keywords\":[\"x\"]}\n\n```\n"},
		{"multi line object in fence", "```json\n{\n  \"company_name\": \"Acme\",\n  \"keywords\": [\n    \"x\"\n  ]\n}\n```"},
		{"extra keys ignored", `{"company_name":"Acme","keywords":["x"],"seniority":"senior"}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseJobAnalysis(tt.raw)
			require.NoError(t, err)
			assert.Equal(t, want, got)
		})
	}
}

func TestParseJobAnalysis_Defaults(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want types.JobAnalysis
	}{
		{
			name: "missing company name",
			raw:  `{"keywords":["go","kubernetes"]}`,
			want: types.JobAnalysis{CompanyName: types.UnidentifiedCompany, Keywords: []string{"go", "kubernetes"}},
		},
		{
			name: "null company name",
			raw:  `{"company_name":null,"keywords":[]}`,
			want: types.JobAnalysis{CompanyName: types.UnidentifiedCompany, Keywords: []string{}},
		},
		{
			name: "missing keywords",
			raw:  `{"company_name":"Globex"}`,
			want: types.JobAnalysis{CompanyName: "Globex", Keywords: []string{}},
		},
		{
			name: "null keywords",
			raw:  `{"company_name":"Globex","keywords":null}`,
			want: types.JobAnalysis{CompanyName: "Globex", Keywords: []string{}},
		},
		{
			name: "empty object",
			raw:  `{}`,
			want: types.JobAnalysis{CompanyName: types.UnidentifiedCompany, Keywords: []string{}},
		},
		{
			name: "non string keywords are stringified",
			raw:  `{"company_name":"Globex","keywords":["go",3,true,1.5]}`,
			want: types.JobAnalysis{CompanyName: "Globex", Keywords: []string{"go", "3", "true", "1.5"}},
		},
		{
			name: "null keywords entries are kept",
			raw:  `{"company_name":"Globex","keywords":["go",null,"k8s"]}`,
			want: types.JobAnalysis{CompanyName: "Globex", Keywords: []string{"go", "", "k8s"}},
		},
		{
			name: "numeric company name",
			raw:  `{"company_name":42,"keywords":["go"]}`,
			want: types.JobAnalysis{CompanyName: "42", Keywords: []string{"go"}},
		},
		{
			name: "object company name",
			raw:  `{"company_name":{ "legal": "Acme Inc" },"keywords":[]}`,
			want: types.JobAnalysis{CompanyName: `{"legal":"Acme Inc"}`, Keywords: []string{}},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseJobAnalysis(tt.raw)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
			assert.NotNil(t, got.Keywords)
		})
	}
}

func TestParseJobAnalysis_Malformed(t *testing.T) {
	tests := []struct {
		name string
		raw  string
	}{
		{"empty", ""},
		{"prose", "The company is Acme and they want Go."},
		{"prose around object", `Sure! {"company_name":"Acme"}`},
		{"array", `["Acme"]`},
		{"null", `null`},
		{"truncated", `{"company_name":"Acme","keywords":["x"`},
		{"keywords not an array", `{"keywords":"go, rust"}`},
		{"fence only", "```json\n```"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseJobAnalysis(tt.raw)
			require.Error(t, err)
			assert.True(t, errors.HasCode(err, errors.ErrCodeMalformedAnalysis), "got %v", err)
		})
	}
}

func TestParseJobAnalysis_Idempotent(t *testing.T) {
	inputs := []string{
		"```json\n{\"company_name\":\"Acme\",\"keywords\":[\"x\",\"y\"]}\n```",
		`{"keywords":["solo"]}`,
		`{}`,
	}

	for _, raw := range inputs {
		first, err := ParseJobAnalysis(raw)
		require.NoError(t, err)

		encoded, err := json.Marshal(first)
		require.NoError(t, err)

		second, err := ParseJobAnalysis(string(encoded))
		require.NoError(t, err)
		assert.Equal(t, first, second)
	}
}

func TestStripCodeFences_LeavesOtherLines(t *testing.T) {
	raw := "```json\n{\"a\": \"``` inside\"}\n  ```indented\n```"
	assert.Equal(t, "{\"a\": \"``` inside\"}\n  ```indented", StripCodeFences(raw))

	assert.Equal(t, `{"a":1}`, StripCodeFences("  {\"a\":1}\n"))
}
