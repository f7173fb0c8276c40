package main

import (
	"strings"
	"testing"
)

func TestRenderTableWrapsWideCells(t *testing.T) {
	long := strings.Repeat("mask geometry mismatch ", 8)
	out := renderTable([]tableColumn{
		{Title: "Case", WidthMax: 40},
		{Title: "Message", WidthMax: 20},
	}, [][]string{{"patient7_lesion1", long}})

	for _, title := range []string{"Case", "Message"} {
		if !strings.Contains(out, title) {
			t.Errorf("output missing header %q:\n%s", title, out)
		}
	}
	if strings.Contains(out, long) {
		t.Errorf("long message not wrapped:\n%s", out)
	}
}

func TestRenderTablePadsShortRows(t *testing.T) {
	out := renderTable([]tableColumn{{Title: "A"}, {Title: "B", Right: true}}, [][]string{{"x"}})
	if !strings.Contains(out, "x") {
		t.Errorf("row cell missing:\n%s", out)
	}
	if strings.Contains(out, "<nil>") {
		t.Errorf("missing cells must render empty:\n%s", out)
	}
}
