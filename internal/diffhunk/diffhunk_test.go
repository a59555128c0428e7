package diffhunk

import (
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestParse(t *testing.T) {
	tests := []struct {
		name string
		hunk string
		want []Line
	}{
		{
			name: "empty",
			hunk: "",
		},
		{
			name: "whitespace only",
			hunk: "  \n ",
		},
		{
			name: "header seeds line numbers",
			hunk: "@@ -10,3 +20,4 @@ func main() {\n ctx := context.Background()\n-old()\n+new(ctx)\n+log(ctx)",
			want: []Line{
				{Kind: Context, Content: "ctx := context.Background()", Number: 20},
				{Kind: Remove, Content: "old()", Number: 21},
				{Kind: Add, Content: "new(ctx)", Number: 21},
				{Kind: Add, Content: "log(ctx)", Number: 22},
			},
		},
		{
			name: "header without counts",
			hunk: "@@ -1 +1 @@\n-a\n+b",
			want: []Line{
				{Kind: Remove, Content: "a", Number: 1},
				{Kind: Add, Content: "b", Number: 1},
			},
		},
		{
			name: "no header",
			hunk: "+added\n-removed\nplain",
			want: []Line{
				{Kind: Add, Content: "added"},
				{Kind: Remove, Content: "removed"},
				{Kind: Context, Content: "plain"},
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Parse(tt.hunk)
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Errorf("lines mismatch (-want +got):\n%s", diff)
			}
		})
	}
}
