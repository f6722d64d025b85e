package media

import "testing"

func TestClassify(t *testing.T) {
	cases := []struct {
		token string
		kind  Kind
	}{
		{"https://cdn.example.com/a.jpg?expires=1", KindFullURL},
		{"http://example.com/pic.png", KindFullURL},
		{"uploading-1000-0", KindPlaceholder},
		{"uploading-1690000000123-12", KindPlaceholder},
		{"1690000001-ab12-photo.jpg", KindFilename},
		{"20230731-scan.png", KindFilename},
		{"photo.jpg", KindOther},
		{"uploading-x-0", KindOther},
		{"uploading-1000-", KindOther},
		{"1690000001/escape.jpg", KindOther},
		{"", KindOther},
	}
	for _, tc := range cases {
		ref := Classify(tc.token)
		if ref.Kind != tc.kind {
			t.Errorf("Classify(%q).Kind = %v, want %v", tc.token, ref.Kind, tc.kind)
		}
	}
}

func TestClassifyPlaceholderParts(t *testing.T) {
	ref := Classify("uploading-1690000000123-7")
	if ref.Kind != KindPlaceholder {
		t.Fatalf("kind = %v, want placeholder", ref.Kind)
	}
	if ref.BatchID != 1690000000123 || ref.Index != 7 {
		t.Fatalf("batch/index = %d/%d, want 1690000000123/7", ref.BatchID, ref.Index)
	}
}

func TestPlaceholderNamespacesDisjoint(t *testing.T) {
	// A placeholder token must never classify as a filename: the two
	// namespaces are disjoint by construction.
	token := PlaceholderToken(1690000000123, 0)
	if Classify(token).Kind != KindPlaceholder {
		t.Fatalf("placeholder token %q misclassified", token)
	}
	if filenameRe.MatchString(token) {
		t.Fatalf("placeholder token %q matches filename pattern", token)
	}
}

func TestPlaceholderLine(t *testing.T) {
	line := PlaceholderLine("a.jpg", 1000, 0)
	want := "![Uploading a.jpg...](uploading-1000-0)"
	if line != want {
		t.Fatalf("line = %q, want %q", line, want)
	}
}
