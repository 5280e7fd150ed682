package argv

import (
	"errors"
	"slices"
	"testing"
)

func TestSplit(t *testing.T) {
	t.Parallel()
	for _, tc := range []struct {
		in   string
		want []string
	}{
		{"", []string{}},
		{"   \t ", []string{}},
		{"key press MEDIA_PLAY", []string{"key", "press", "MEDIA_PLAY"}},
		{"  push  org.example\t'hello world'  ", []string{"push", "org.example", "hello world"}},
		{`push app "say \"hi\" \n"`, []string{"push", "app", `say "hi" \n`}},
		{`bt found aa:bb:cc:dd:ee:01 Living\ Room\ TV`, []string{"bt", "found", "aa:bb:cc:dd:ee:01", "Living Room TV"}},
		{`'it''s'`, []string{"its"}},
		{`a"b c"d`, []string{"ab cd"}},
		{`'' ""`, []string{"", ""}},
		{"sleep 1s # wait for discovery", []string{"sleep", "1s"}},
		{"# a comment line", []string{}},
		{"a#b", []string{"a#b"}},
		{"a \\\n b", []string{"a", "b"}},
		{"a\\\nb", []string{"ab"}},
		{"π '漢字' \"🐱\"", []string{"π", "漢字", "🐱"}},
	} {
		got, err := Split(tc.in)
		if err != nil {
			t.Errorf("Split(%q) error: %v", tc.in, err)
			continue
		}
		if !slices.Equal(got, tc.want) {
			t.Errorf("Split(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

func TestSplit_Unterminated(t *testing.T) {
	t.Parallel()
	for _, in := range []string{`'open`, `"open`, `trailing\`, `"escaped\"`} {
		if _, err := Split(in); !errors.Is(err, ErrUnterminated) {
			t.Errorf("Split(%q) error = %v, want ErrUnterminated", in, err)
		}
	}
}

func TestTokenize_Offsets(t *testing.T) {
	t.Parallel()
	toks, err := Tokenize(`sound  volume "MEDIA" 0.5`)
	if err != nil {
		t.Fatal(err)
	}
	want := []Token{
		{Text: "sound", Offset: 0},
		{Text: "volume", Offset: 7},
		{Text: "MEDIA", Offset: 14, Quoted: true},
		{Text: "0.5", Offset: 22},
	}
	if !slices.Equal(toks, want) {
		t.Fatalf("Tokenize = %+v, want %+v", toks, want)
	}
}

func TestBeforeCursor(t *testing.T) {
	t.Parallel()
	for _, tc := range []struct {
		in        string
		completed []string
		current   string
	}{
		{"", nil, ""},
		{"ke", nil, "ke"},
		{"key ", []string{"key"}, ""},
		{"key press MEDIA_P", []string{"key", "press"}, "MEDIA_P"},
		{`push app 'hello wo`, []string{"push", "app"}, "hello wo"},
		{`bt found x Living\ `, []string{"bt", "found", "x"}, "Living "},
		{"sleep 1s # note", []string{"sleep", "1s"}, ""},
	} {
		completed, current := BeforeCursor(tc.in)
		if !slices.Equal(completed, tc.completed) || current.Text != tc.current {
			t.Errorf("BeforeCursor(%q) = %q, %q; want %q, %q", tc.in, completed, current.Text, tc.completed, tc.current)
		}
	}
}

func FuzzSplitTokenizeAgree(f *testing.F) {
	for _, s := range []string{"", "a b", `'x' "y\z"`, "a\\\nb", "# c", `\`} {
		f.Add(s)
	}
	f.Fuzz(func(t *testing.T, s string) {
		toks, terr := Tokenize(s)
		args, serr := Split(s)
		if !errors.Is(terr, serr) && terr != serr {
			t.Fatalf("errors differ: %v vs %v", terr, serr)
		}
		if serr != nil {
			return
		}
		if len(toks) != len(args) {
			t.Fatalf("len differs: %d vs %d", len(toks), len(args))
		}
		for i := range toks {
			if toks[i].Text != args[i] {
				t.Fatalf("arg %d differs: %q vs %q", i, toks[i].Text, args[i])
			}
			if toks[i].Offset < 0 || toks[i].Offset >= len(s) {
				t.Fatalf("offset %d out of range", toks[i].Offset)
			}
		}
	})
}
