// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package acquire

import "testing"

func TestClassify(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		wantType IdentifierType
		wantNorm string
	}{
		{"arxiv bare", "2301.07041", TypeArxiv, "2301.07041"},
		{"arxiv with prefix", "arXiv:2301.07041", TypeArxiv, "2301.07041"},
		{"arxiv with version", "2301.07041v2", TypeArxiv, "2301.07041v2"},
		{"arxiv five digit", "2401.12345", TypeArxiv, "2401.12345"},
		{"doi", "10.1145/1234567.1234568", TypeDOI, "10.1145/1234567.1234568"},
		{"url", "https://example.com/paper.pdf", TypeURL, "https://example.com/paper.pdf"},
		{"whitespace", "  2301.07041  ", TypeArxiv, "2301.07041"},
		{"ftp is not a url", "ftp://example.com/x.pdf", TypeUnknown, "ftp://example.com/x.pdf"},
		{"garbage", "hello-world", TypeUnknown, "hello-world"},
		{"empty", "", TypeUnknown, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			gotType, gotNorm := Classify(tt.input)
			if gotType != tt.wantType {
				t.Errorf("Classify(%q) type = %v, want %v", tt.input, gotType, tt.wantType)
			}
			if gotNorm != tt.wantNorm {
				t.Errorf("Classify(%q) norm = %q, want %q", tt.input, gotNorm, tt.wantNorm)
			}
		})
	}
}

func TestResolvePDFURL(t *testing.T) {
	tests := []struct {
		name   string
		pdfURL string
		ids    []string
		want   string
	}{
		{"direct link wins", "https://x.org/a.pdf", []string{"2301.07041"}, "https://x.org/a.pdf"},
		{"arxiv fallback", "", []string{"arXiv:2301.07041"}, arxivPDFBase + "2301.07041"},
		{"doi fallback", "", []string{"10.1145/1.2"}, doiBase + "10.1145/1.2"},
		{"first resolvable id", "", []string{"junk", "", "2301.07041", "10.1145/1.2"}, arxivPDFBase + "2301.07041"},
		{"nothing resolves", "", []string{"junk"}, ""},
		{"no ids", "", nil, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ResolvePDFURL(tt.pdfURL, tt.ids...); got != tt.want {
				t.Errorf("ResolvePDFURL(%q, %v) = %q, want %q", tt.pdfURL, tt.ids, got, tt.want)
			}
		})
	}
}

func TestIdentifierTypeString(t *testing.T) {
	for typ, want := range map[IdentifierType]string{
		TypeArxiv: "arxiv", TypeDOI: "doi", TypeURL: "url", TypeUnknown: "unknown",
	} {
		if got := typ.String(); got != want {
			t.Errorf("%d.String() = %q, want %q", typ, got, want)
		}
	}
}
