package extract

import "testing"

func TestDecodeObjectDirect(t *testing.T) {
	var out struct {
		Title string `json:"title"`
	}
	if err := DecodeObject(`{"title": "Calculus"}`, &out); err != nil {
		t.Fatalf("DecodeObject: %v", err)
	}
	if out.Title != "Calculus" {
		t.Fatalf("title = %q", out.Title)
	}
}

func TestDecodeObjectStripsCodeFences(t *testing.T) {
	resp := "Here is the structure:\n```json\n{\"title\": \"Calculus\"}\n```\nDone."
	var out struct {
		Title string `json:"title"`
	}
	if err := DecodeObject(resp, &out); err != nil {
		t.Fatalf("DecodeObject: %v", err)
	}
	if out.Title != "Calculus" {
		t.Fatalf("title = %q", out.Title)
	}
}

func TestDecodeObjectIgnoresSurroundingProse(t *testing.T) {
	resp := `Sure! The answer is {"title": "Calculus", "sections": []} as requested.`
	var out struct {
		Title string `json:"title"`
	}
	if err := DecodeObject(resp, &out); err != nil {
		t.Fatalf("DecodeObject: %v", err)
	}
	if out.Title != "Calculus" {
		t.Fatalf("title = %q", out.Title)
	}
}

func TestDecodeObjectRepairsTruncation(t *testing.T) {
	// Truncated mid-structure: unclosed brace and bracket, trailing comma.
	resp := `{"title": "Calculus", "sections": [{"title": "Ch 1"},`
	var out struct {
		Title    string `json:"title"`
		Sections []struct {
			Title string `json:"title"`
		} `json:"sections"`
	}
	if err := DecodeObject(resp, &out); err != nil {
		t.Fatalf("DecodeObject: %v", err)
	}
	if out.Title != "Calculus" || len(out.Sections) != 1 {
		t.Fatalf("out = %+v", out)
	}
}

func TestDecodeObjectRepairsUnterminatedString(t *testing.T) {
	resp := `{"title": "Calcul`
	var out struct {
		Title string `json:"title"`
	}
	if err := DecodeObject(resp, &out); err != nil {
		t.Fatalf("DecodeObject: %v", err)
	}
	if out.Title != "Calcul" {
		t.Fatalf("title = %q", out.Title)
	}
}

func TestDecodeObjectBackwardScan(t *testing.T) {
	// Cut off mid-element inside a code fence; only the last complete
	// elements survive.
	resp := "```json\n" + `{"sections": [{"title": "A"}, {"title": "B"}, {"tit` + "\n```"
	var out struct {
		Sections []struct {
			Title string `json:"title"`
		} `json:"sections"`
	}
	if err := DecodeObject(resp, &out); err != nil {
		t.Fatalf("DecodeObject: %v", err)
	}
	if len(out.Sections) != 2 || out.Sections[1].Title != "B" {
		t.Fatalf("sections = %+v", out.Sections)
	}
}

func TestDecodeObjectNoJSON(t *testing.T) {
	var out map[string]any
	if err := DecodeObject("I could not produce JSON, sorry.", &out); err == nil {
		t.Fatalf("expected error for JSON-free response")
	}
}
