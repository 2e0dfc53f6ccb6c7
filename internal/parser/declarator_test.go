package parser

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResolveName(t *testing.T) {
	tests := []struct {
		header string
		want   string
	}{
		{"int foo(int a)", "foo"},
		{"static unsigned long long counter_next(void)", "counter_next"},
		{"char *strdup_safe(const char *s)", "strdup_safe"},
		{"char * const * split(char *s, int *n)", "split"},
		{"int *(*make_table(void))[10]", "make_table"},
		{"void (*get_handler(int))(int)", "get_handler"},
		{"int (*make_handler(void))(int)", "make_handler"},
		{"int (foo)(void)", "foo"},
		{"struct point make_point(int x, int y)", "make_point"},
		{"struct point *alloc_point(void)", "alloc_point"},
		{"enum color { RED, GREEN } pick(void)", "pick"},
		{"size_t CWE121_Stack_Based_Buffer_Overflow__bad(void)", "CWE121_Stack_Based_Buffer_Overflow__bad"},
		{"static inline __attribute__((always_inline)) int fast(int x)", "fast"},
		{"int main(int argc, char **argv)", "main"},
		{"main()", "main"},
		{"void /* comment ( */ commented(void)", "commented"},
		{"unsigned char MixedCase_Name(int buf[static 4])", "MixedCase_Name"},
		{"int __cdecl cdecl_fn(void)", "cdecl_fn"},
		{"MACRO(x) int macro_prefixed(void)", "macro_prefixed"},
		{"API_EXPORT(1, 2) const char * const *qualified(void)", "qualified"},
		{"int old_style(a, b)", "old_style"},
		// Unknown words before the name are taken as typedef or macro specifiers.
		{"int foo bar(void)", "bar"},
		{"static MY_TYPE EXPORTED handle(int fd)", "handle"},
	}

	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			got, err := ResolveName(tt.header)
			require.NoError(t, err, tt.header)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestResolveNameErrors(t *testing.T) {
	tests := []struct {
		header string
		want   error
	}{
		{"int (a b)(void)", ErrMultipleIdentifiers},
		{"int (*fp)(int)", ErrNotFunction},
		{"int values[4]", ErrTrailingTokens},
		{"int ()(void)", ErrNoIdentifier},
		{"int (foo(void)", ErrUnbalanced},
		{"int foo(void))", ErrUnbalanced},
		{"int foo[3)", ErrUnbalanced},
		{"int (if)(void)", ErrNoIdentifier},
		{"int", ErrNoIdentifier},
		{"", ErrNoIdentifier},
	}

	for _, tt := range tests {
		t.Run(tt.header, func(t *testing.T) {
			_, err := ResolveName(tt.header)
			assert.ErrorIs(t, err, tt.want)
		})
	}
}

func TestParseHeaderShape(t *testing.T) {
	d, err := ParseHeader("int *(*make_table(void))[10]")
	require.NoError(t, err)

	want := Pointer{Inner: Array{
		Size: "10",
		Inner: Parenthesized{Inner: Pointer{Inner: Function{
			Params: "void",
			Inner:  Identifier{Name: "make_table"},
		}}},
	}}
	assert.Equal(t, want, d)
}

func TestSuffixesApplyLeftToRight(t *testing.T) {
	d, err := ParseHeader("int (grid(int n))[3][4]")
	require.NoError(t, err)

	outer, ok := d.(Array)
	require.True(t, ok, "outermost layer is %T", d)
	assert.Equal(t, "4", outer.Size)

	inner, ok := outer.Inner.(Array)
	require.True(t, ok)
	assert.Equal(t, "3", inner.Size)

	name, err := DeclaredName(d)
	require.NoError(t, err)
	assert.Equal(t, "grid", name)
}

func TestDeclaredNameAndUnwrap(t *testing.T) {
	d := Function{Inner: Parenthesized{Inner: Pointer{Inner: Identifier{Name: "cb"}}}, Params: "int"}
	name, err := DeclaredName(d)
	require.NoError(t, err)
	assert.Equal(t, "cb", name)
	assert.False(t, declaresFunction(d))

	assert.Nil(t, Unwrap(Identifier{Name: "x"}))
	_, err = DeclaredName(nil)
	assert.ErrorIs(t, err, ErrNoIdentifier)
}
