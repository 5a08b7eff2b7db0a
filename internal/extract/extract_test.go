package extract

import "testing"

func TestCode(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{
			name: "go tagged fence",
			in:   "Here you go:\n```go\nfunc double(n int) int { return n * 2 }\n```\nHope that helps!",
			want: "func double(n int) int { return n * 2 }",
		},
		{
			name: "untagged fence",
			in:   "```\nfunc f() {}\n```",
			want: "func f() {}",
		},
		{
			name: "other language tag",
			in:   "```python\nprint(1)\n```",
			want: "print(1)",
		},
		{
			name: "crlf fence",
			in:   "```go\r\nfunc f() {}\r\n```",
			want: "func f() {}",
		},
		{
			name: "first of several blocks",
			in:   "```go\nfirst\n```\nand then\n```go\nsecond\n```",
			want: "first",
		},
		{
			name: "no fence returns whole text",
			in:   "  func bare() {}  \n",
			want: "func bare() {}",
		},
		{
			name: "unterminated fence returns whole text",
			in:   "```go\nfunc f() {}",
			want: "```go\nfunc f() {}",
		},
		{
			name: "fence with inner blank lines",
			in:   "```go\n\nfunc f() {}\n\n```",
			want: "func f() {}",
		},
		{
			name: "empty block",
			in:   "```go\n```",
			want: "",
		},
		{
			name: "empty response",
			in:   "",
			want: "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Code(tt.in); got != tt.want {
				t.Errorf("Code(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}
