package kg

import "testing"

func TestNormalizeKeyword(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		keyword string
		want    string
	}{
		{
			name:    "strips modifier prefix",
			keyword: "普通感冒",
			want:    "感冒",
		},
		{
			name:    "strips seasonal modifier",
			keyword: "季节性流感",
			want:    "流感",
		},
		{
			name:    "unchanged keyword yields empty",
			keyword: "糖尿病",
			want:    "",
		},
		{
			name:    "modifier-only keyword yields empty",
			keyword: "常见",
			want:    "",
		},
		{
			name:    "empty keyword",
			keyword: "",
			want:    "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if got := NormalizeKeyword(tt.keyword); got != tt.want {
				t.Errorf("NormalizeKeyword(%q) = %q, want %q", tt.keyword, got, tt.want)
			}
		})
	}
}
