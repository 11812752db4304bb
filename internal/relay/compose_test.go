package relay

import (
	"reflect"
	"testing"
)

func TestSplitReply(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want []string
	}{
		{"multi-line with blanks", "a\n\nb \n c", []string{"a", "b", "c"}},
		{"whitespace only", "   ", nil},
		{"empty", "", nil},
		{"single line", "hello", []string{"hello"}},
		{"trailing newline", "one\ntwo\n", []string{"one", "two"}},
		{"windows-ish padding", "  first  \n\t second \t", []string{"first", "second"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := SplitReply(tt.in)
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("SplitReply(%q) = %#v, want %#v", tt.in, got, tt.want)
			}
		})
	}
}
