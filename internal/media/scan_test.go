package media

import (
	"reflect"
	"testing"
)

func TestScanFiltersAndDeduplicates(t *testing.T) {
	markdown := "# Day\n\n" +
		"![image](1690000001-ab12-photo.jpg)\n" +
		"![ext](https://cdn.example.com/x.jpg)\n" +
		"![Uploading b.jpg...](uploading-1000-1)\n" +
		"![again](1690000001-ab12-photo.jpg)\n" +
		"![other](1690000002-cd34-b.png)\n"

	got := Scan(markdown)
	want := []string{"1690000001-ab12-photo.jpg", "1690000002-cd34-b.png"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("Scan = %v, want %v", got, want)
	}
}

func TestScanIgnoresNonImageSyntax(t *testing.T) {
	markdown := "a plain link [here](1690000001-ab12-photo.jpg) and bare text 1690000002-cd34-b.png\n"
	if got := Scan(markdown); len(got) != 0 {
		t.Fatalf("Scan = %v, want empty", got)
	}
}

func TestScanIgnoresCodeBlocks(t *testing.T) {
	markdown := "```\n![image](1690000001-ab12-photo.jpg)\n```\n"
	if got := Scan(markdown); len(got) != 0 {
		t.Fatalf("Scan = %v, want empty", got)
	}
}

func TestScanEmpty(t *testing.T) {
	if got := Scan(""); len(got) != 0 {
		t.Fatalf("Scan(\"\") = %v, want empty", got)
	}
}
