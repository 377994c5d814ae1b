package format

import (
	"bytes"
	"strings"
	"testing"
)

type sample struct {
	ID        int      `json:"id"`
	Status    string   `json:"status"`
	Milestone string   `json:"target_milestone"`
	Tags      []string `json:"tags"`
	Owner     *string  `json:"ownerName"`
}

func TestWrite_UnknownFormat(t *testing.T) {
	if err := Write(&bytes.Buffer{}, 1, "xml", false); err == nil {
		t.Fatalf("expected error")
	}
}

func TestWriteJSON_UsesTags(t *testing.T) {
	var buf bytes.Buffer
	if err := Write(&buf, sample{ID: 3, Status: "NEW"}, "json", false); err != nil {
		t.Fatalf("Write: %v", err)
	}
	got := strings.TrimSpace(buf.String())
	if !strings.Contains(got, `"target_milestone":""`) || !strings.HasPrefix(got, `{"id":3`) {
		t.Fatalf("unexpected json %s", got)
	}
}

func TestWriteEDN_KeywordsAndScalars(t *testing.T) {
	var buf bytes.Buffer
	v := sample{ID: 3, Status: "NEW", Milestone: "1.0", Tags: []string{"a", "b"}}
	if err := WriteEDN(&buf, v, false); err != nil {
		t.Fatalf("WriteEDN: %v", err)
	}
	want := `{:id 3 :owner-name nil :status "NEW" :tags ["a" "b"] :target-milestone "1.0"}` + "\n"
	if buf.String() != want {
		t.Fatalf("got %q\nwant %q", buf.String(), want)
	}
}

func TestWriteEDN_PrettyNests(t *testing.T) {
	var buf bytes.Buffer
	if err := WriteEDN(&buf, map[string]any{"cards": []int{1}, "empty": []int{}}, true); err != nil {
		t.Fatalf("WriteEDN: %v", err)
	}
	want := "{\n  :cards [\n    1\n  ]\n  :empty []\n}\n"
	if buf.String() != want {
		t.Fatalf("got %q\nwant %q", buf.String(), want)
	}
}

func TestWriteYAML(t *testing.T) {
	var buf bytes.Buffer
	if err := Write(&buf, sample{ID: 3, Status: "NEW"}, "yaml", false); err != nil {
		t.Fatalf("Write: %v", err)
	}
	if !strings.Contains(buf.String(), "status: NEW") || !strings.Contains(buf.String(), "id: 3") {
		t.Fatalf("unexpected yaml %q", buf.String())
	}
}
