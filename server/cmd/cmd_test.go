package cmd

import (
	"strings"
	"testing"
)

type recordingSource struct {
	name   string
	output []*Output
}

func (s *recordingSource) Name() string { return s.name }

func (s *recordingSource) SendCommandOutput(o *Output) {
	s.output = append(s.output, o)
}

func (s *recordingSource) last(t *testing.T) *Output {
	t.Helper()
	if len(s.output) == 0 {
		t.Fatalf("no output was sent")
	}
	return s.output[len(s.output)-1]
}

type echoCommand struct {
	Text Varargs `cmd:"text"`
}

func (e echoCommand) Run(_ Source, o *Output) {
	o.Print(string(e.Text))
}

type regionList struct {
	List SubCommand `cmd:"list"`
}

func (regionList) Run(_ Source, o *Output) { o.Print("list") }

type regionInfo struct {
	Info  SubCommand    `cmd:"info"`
	Name  string        `cmd:"name"`
	Range Optional[int] `cmd:"range"`
}

func (r regionInfo) Run(_ Source, o *Output) {
	o.Printf("%s %d", r.Name, r.Range.LoadOr(100))
}

type consoleOnly struct {
	allowed bool
}

func (consoleOnly) Run(_ Source, o *Output) { o.Print("ran") }

func (c consoleOnly) Allow(Source) bool { return c.allowed }

func TestSplitArgs(t *testing.T) {
	cases := map[string][]string{
		"":                  nil,
		"a b  c":            {"a", "b", "c"},
		`say "hello world"`: {"say", "hello world"},
		`x ""`:              {"x", ""},
	}
	for line, want := range cases {
		got := splitArgs(line)
		if strings.Join(got, "|") != strings.Join(want, "|") || len(got) != len(want) {
			t.Fatalf("splitArgs(%q) = %q, want %q", line, got, want)
		}
	}
}

func TestCommandOverloads(t *testing.T) {
	c := New("region", "Manages regions.", []string{"rg"}, regionList{}, regionInfo{})
	src := &recordingSource{}

	c.Execute("list", src)
	if msgs := src.last(t).Messages(); len(msgs) != 1 || msgs[0] != "list" {
		t.Fatalf("list output = %v", msgs)
	}
	c.Execute("info spawn", src)
	if msgs := src.last(t).Messages(); len(msgs) != 1 || msgs[0] != "spawn 100" {
		t.Fatalf("info output = %v", msgs)
	}
	c.Execute("info spawn 20", src)
	if msgs := src.last(t).Messages(); len(msgs) != 1 || msgs[0] != "spawn 20" {
		t.Fatalf("info with range output = %v", msgs)
	}
	c.Execute("info spawn far", src)
	if o := src.last(t); o.ErrorCount() != 1 || o.MessageCount() != 0 {
		t.Fatalf("expected a parse error, got %v / %v", o.Messages(), o.Errors())
	}
	c.Execute("info", src)
	if o := src.last(t); o.ErrorCount() != 1 || !strings.Contains(o.Errors()[0].Error(), "name") {
		t.Fatalf("expected missing name error, got %v", o.Errors())
	}
}

func TestCommandUsage(t *testing.T) {
	c := New("region", "", nil, regionList{}, regionInfo{})
	want := "/region list\n/region info <name: string> [range: int]"
	if got := c.Usage(); got != want {
		t.Fatalf("Usage() = %q, want %q", got, want)
	}
}

func TestCommandAllow(t *testing.T) {
	src := &recordingSource{}
	New("locked", "", nil, consoleOnly{}).Execute("", src)
	if o := src.last(t); o.ErrorCount() != 1 {
		t.Fatalf("expected permission error, got %v", o.Messages())
	}
	New("open", "", nil, consoleOnly{allowed: true}).Execute("", src)
	if msgs := src.last(t).Messages(); len(msgs) != 1 || msgs[0] != "ran" {
		t.Fatalf("allowed command output = %v", msgs)
	}
}

func TestNewPanicsOnUnsupportedField(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Fatalf("New did not panic on a map field")
		}
	}()
	type bad struct {
		consoleOnly
		M map[string]int
	}
	New("bad", "", nil, bad{})
}

func TestExecuteLine(t *testing.T) {
	Register(New("echo", "Echoes text.", []string{"say"}, echoCommand{}))
	defer Unregister("echo")

	src := &recordingSource{name: "Console"}
	ExecuteLine(src, "/say hello  there", nil)
	if msgs := src.last(t).Messages(); len(msgs) != 1 || msgs[0] != "hello there" {
		t.Fatalf("echo output = %v", msgs)
	}

	ExecuteLine(src, "missing", nil)
	if o := src.last(t); o.ErrorCount() != 1 || !strings.Contains(o.Errors()[0].Error(), "missing") {
		t.Fatalf("unknown command output = %v", o.Errors())
	}

	sent := len(src.output)
	ExecuteLine(src, "echo blocked", func(c Command, args []string) bool {
		return c.Name() != "echo"
	})
	if len(src.output) != sent {
		t.Fatalf("before hook did not stop execution")
	}
}

func TestUnregisterRemovesAliases(t *testing.T) {
	Register(New("temp", "", []string{"tmp"}, echoCommand{}))
	if !Unregister("tmp") {
		t.Fatalf("Unregister(tmp) = false")
	}
	if _, ok := ByAlias("temp"); ok {
		t.Fatalf("temp still registered")
	}
	if _, ok := Commands()["tmp"]; ok {
		t.Fatalf("tmp still registered")
	}
}
