package sym

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseAndString(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"", "0"},
		{"42", "42"},
		{"s0", "s0"},
		{"4*s0", "4*s0"},
		{"s0 * 4 + 8", "4*s0 + 8"},
		{"(s0 + 1) * 2", "2*s0 + 2"},
		{"s1*s0", "s0*s1"},
		{"s0 - s0", "0"},
		{"-s0 + 3", "-s0 + 3"},
		{"batch*seq*4 - 16", "4*batch*seq - 16"},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			e, err := Parse(tt.in)
			require.NoError(t, err)
			assert.Equal(t, tt.want, e.String())
		})
	}
}

func TestParseErrors(t *testing.T) {
	for _, in := range []string{"(", "s0 +", "4 $ 2", "(s0", "s0 s1"} {
		_, err := Parse(in)
		assert.ErrorIs(t, err, ErrSyntax, "Parse(%q)", in)
	}
}

func TestEq(t *testing.T) {
	tests := []struct {
		a, b string
		want Relation
	}{
		{"128", "128", Equal},
		{"128", "64", NotEqual},
		{"4*s0", "s0*4", Equal},
		{"4*s0 + 8", "4*s0", NotEqual},
		{"s0", "s1", Unknown},
		{"2*s0", "s0", NotEqual}, // s0 >= 1
		{"s0", "s1 + 2", Unknown},
		{"s0*s1", "s1*s0", Equal},
	}
	for _, tt := range tests {
		got := Eq(MustParse(tt.a), MustParse(tt.b))
		assert.Equal(t, tt.want, got, "Eq(%s, %s)", tt.a, tt.b)
	}
}

func TestCmp(t *testing.T) {
	s, ok := Cmp(MustParse("4*s0 + 8"), MustParse("4*s0"))
	require.True(t, ok)
	assert.Equal(t, 1, s)

	s, ok = Cmp(MustParse("10"), MustParse("s0 + 20"))
	require.True(t, ok)
	assert.Equal(t, -1, s)

	_, ok = Cmp(MustParse("s0"), MustParse("100"))
	assert.False(t, ok)
}

func TestMin(t *testing.T) {
	m, ok := Min(MustParse("s0*4"), MustParse("s0*4 + 4"))
	require.True(t, ok)
	assert.Equal(t, "4*s0", m.String())

	_, ok = Min(Var("a"), Var("b"))
	assert.False(t, ok)
}

func TestEval(t *testing.T) {
	e := MustParse("s0*s1*4 + 2")
	assert.Equal(t, int64(4*3*5+2), e.Eval(Hints{Values: map[string]int64{"s0": 3, "s1": 5}}))
	assert.Equal(t, int64(4*DefaultHint*DefaultHint+2), e.Eval(Hints{}))
	assert.Equal(t, int64(4*2*2+2), e.Eval(Hints{Default: 2}))
}

func TestLessAgreesWithCmp(t *testing.T) {
	pairs := [][2]string{
		{"4*s0", "4*s0 + 8"},
		{"s0", "2*s0"},
		{"1", "s0 + 1"},
	}
	for _, p := range pairs {
		a, b := MustParse(p[0]), MustParse(p[1])
		s, ok := Cmp(a, b)
		require.True(t, ok)
		require.Equal(t, -1, s)
		assert.True(t, Less(a, b, Hints{}), "Less(%s, %s)", a, b)
		assert.False(t, Less(b, a, Hints{}), "Less(%s, %s)", b, a)
	}
}

func TestSumProduct(t *testing.T) {
	assert.True(t, Sum().IsZero())
	v, ok := Product().IsConst()
	require.True(t, ok)
	assert.Equal(t, int64(1), v)

	e := Product(Var("s0"), Const(128), Const(4))
	assert.Equal(t, "512*s0", e.String())
	assert.Equal(t, []string{"s0"}, e.Vars())
}

func TestJSONText(t *testing.T) {
	type wrapper struct {
		Size Expr `json:"size"`
	}
	data, err := json.Marshal(wrapper{Size: MustParse("s0*4")})
	require.NoError(t, err)
	assert.JSONEq(t, `{"size":"4*s0"}`, string(data))

	var w wrapper
	require.NoError(t, json.Unmarshal([]byte(`{"size":"(a+1)*2"}`), &w))
	assert.Equal(t, "2*a + 2", w.Size.String())
}
