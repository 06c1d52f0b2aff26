package snapshot

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

const facebookPost = `- banner:
  - navigation "Facebook":
    - link "Home":
      - /url: https://www.facebook.com/
    - button "Menu"
- main:
  - heading "Morning notes from the harbour" [level=2]
  - text: "We finally shipped the new ferry timetable after three months of consultations."
  - text: "Ok"
  - img "Photo of the harbour"
  - button "Like" [pressed]
  - button "Share"
  - article "Comment by Jane Doe 8 hours ago":
    - text: "Congratulations to the whole team!"
    - link "Reply"
  - article "Comment by Minh Tran 2 hours ago":
    - text: "Great"
  - listitem:
    - text: "hmm"
  - region "Sponsored content here"
  - text: "12"
  - separator
  - slider "Volume"`

func TestClean_FacebookPost(t *testing.T) {
	want := `## Morning notes from the harbour
We finally shipped the new ferry timetable after three months of consultations.

--- Comment by Jane Doe 8 hours ago ---
Congratulations to the whole team!

--- Comment by Minh Tran 2 hours ago ---
Great
hmm
region "Sponsored content here"`

	assert.Equal(t, want, Clean(facebookPost))
}

func TestClean_Rules(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"empty", "", ""},
		{"whitespace", "  \n\t\n", ""},
		{"text unwrapped", `- text: "Hello there"`, "Hello there"},
		{"text without quotes", `- text: plain words`, "plain words"},
		{"short text dropped", `- text: "Hi"`, ""},
		{"three char text kept", `- text: "Wow"`, "Wow"},
		{"heading", `- heading "Title" [level=1]`, "## Title"},
		{"heading without level is generic", `- heading "Title"`, `heading "Title"`},
		{"comment attribution", `- article "Comment by Bob":`, "--- Comment by Bob ---"},
		{"article without comment is generic", `- article "Main feed"`, `article "Main feed"`},
		{"noise prefixes", "- button \"OK\"\n- link \"More\"\n- textbox \"Search\"\n- toolbar \"Tools\"", ""},
		{"noise substrings", "- /url: https://example.com\n- checkbox \"Remember\" [disabled]", ""},
		{"needs letters", "- 1234567 89", ""},
		{"needs length", "- cell", ""},
		{"text beats noise markers", `- text: "Pressed [pressed] still text"`, "Pressed [pressed] still text"},
		{"leading dashes in values", `- text: "-- dashes first"`, "dashes first"},
		{"prose passes through", "Already clean prose.", "Already clean prose."},
		{"unmarked lines skip node filters", "button \"Like\"\nok", "button \"Like\"\nok"},
		{
			name: "blank lines collapse",
			in:   "- text: \"one line\"\n\n\n\n- heading \"Two\" [level=3]\n\n\n- text: \"three\"",
			want: "one line\n\n## Two\nthree",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Clean(tt.in))
		})
	}
}

func TestClean_Idempotent(t *testing.T) {
	inputs := []string{
		facebookPost,
		`- text: "## looks like a heading"`,
		`- text: "--- Comment by Nobody ---"`,
		"- heading \"A\" [level=1]\n- heading \"B\" [level=2]",
		"- article \"Comment by X\":\n- article \"Comment by Y\":",
		"## Title\nbody\n\n--- Comment by Z ---\nreply",
		"- text: \"\t- tab then dash\"",
		"prose\n\n\n\nmore prose",
	}

	for _, in := range inputs {
		once := Clean(in)
		assert.Equal(t, once, Clean(once), "input: %q", in)
	}
}

func FuzzClean(f *testing.F) {
	f.Add(facebookPost)
	f.Add("- text: \"x\"\n- heading \"y\" [level=1]\n## z")
	f.Add("--- a ---\n- --- b ---\n-\n- ")
	f.Fuzz(func(t *testing.T, in string) {
		once := Clean(in)
		if twice := Clean(once); twice != once {
			t.Fatalf("not idempotent:\ninput %q\nonce  %q\ntwice %q", in, once, twice)
		}
		if strings.Contains(once, "\n\n\n") {
			t.Fatalf("blank lines not collapsed: %q", once)
		}
	})
}

func TestNoiseTables(t *testing.T) {
	for _, prefix := range NoisePrefixes {
		assert.True(t, isNoise(prefix+"x"), prefix)
	}
	for _, sub := range NoiseSubstrings {
		assert.True(t, isNoise("generic "+sub), sub)
	}
	assert.False(t, isNoise("region \"Feed\""))
}
