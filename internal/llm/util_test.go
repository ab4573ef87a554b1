package llm

import "testing"

func TestExtractJSONArray(t *testing.T) {
	cases := []struct {
		name string
		raw  string
		want []string
	}{
		{name: "bare", raw: `["a", "b"]`, want: []string{"a", "b"}},
		{name: "fenced", raw: "```json\n[\"a\", \"b\"]\n```", want: []string{"a", "b"}},
		{name: "fenced no tag", raw: "```\n[\"a\"]\n```", want: []string{"a"}},
		{name: "surrounding prose", raw: `Here is the list: ["a"] as requested.`, want: []string{"a"}},
	}
	for _, tc := range cases {
		var got []string
		if err := ExtractJSONArray(tc.raw, &got); err != nil {
			t.Fatalf("%s: %v", tc.name, err)
		}
		if len(got) != len(tc.want) {
			t.Fatalf("%s: got %v want %v", tc.name, got, tc.want)
		}
		for i := range tc.want {
			if got[i] != tc.want[i] {
				t.Fatalf("%s: got %v want %v", tc.name, got, tc.want)
			}
		}
	}
}

func TestExtractJSON(t *testing.T) {
	var got map[string]int
	if err := ExtractJSON("```json\n{\"a\": 1}\n```", &got); err != nil {
		t.Fatalf("ExtractJSON: %v", err)
	}
	if got["a"] != 1 {
		t.Fatalf("got %v", got)
	}
}

func TestExtract_Errors(t *testing.T) {
	var out []string
	if err := ExtractJSONArray("", &out); err == nil {
		t.Fatal("expected error for empty output")
	}
	if err := ExtractJSONArray("no brackets here", &out); err == nil {
		t.Fatal("expected error for missing JSON value")
	}
	if err := ExtractJSONArray("[not valid json]", &out); err == nil {
		t.Fatal("expected error for malformed JSON")
	}
}
