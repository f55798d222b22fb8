package source

import (
	"context"
	"testing"

	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	lua "github.com/yuin/gopher-lua"

	"github.com/dshills/stormcomplete/internal/completion"
	"github.com/dshills/stormcomplete/internal/config"
)

type stubConfig struct {
	Limit  int    `toml:"limit"`
	Suffix string `toml:"suffix"`
}

func (c *stubConfig) Validate(path string) error {
	var errs config.BadConfigErrors
	if c.Limit < 0 {
		errs.AddWithValue(path+".limit", "must not be negative", c.Limit)
	}
	return errs.AsError()
}

type stubSource struct {
	name       string
	enabled    bool
	enableErr  error
	version    string
	enableSeen int
}

func (s *stubSource) Name() string { return s.name }

func (s *stubSource) Enable(_ context.Context, _ *completion.Document, _ *stubConfig) (bool, error) {
	s.enableSeen++
	return s.enabled, s.enableErr
}

func (s *stubSource) Complete(_ context.Context, _ *completion.Request, cfg *stubConfig) (completion.List, error) {
	out := completion.List{}
	for i := 0; i < cfg.Limit; i++ {
		out = append(out, completion.MustItem(s.name+cfg.Suffix))
	}
	return out, nil
}

type versionedSource struct {
	stubSource
}

func (s *versionedSource) CoreVersion() string { return s.version }

type scriptedSource struct {
	stubSource
}

func (s *scriptedSource) ScriptAPI() map[string]lua.LGFunction {
	return map[string]lua.LGFunction{
		"ping": func(L *lua.LState) int { L.Push(lua.LString("pong")); return 1 },
	}
}

type mapResolver map[string]PredicateFunc

func (m mapResolver) Resolve(name string) (PredicateFunc, error) {
	p, ok := m[name]
	if !ok {
		return nil, errors.Wrapf(ErrPredicateNotFound, "%s", name)
	}
	return p, nil
}

func constPredicate(v bool, err error) PredicateFunc {
	return func(context.Context, *completion.Document) (bool, error) { return v, err }
}

func defaults() stubConfig { return stubConfig{Limit: 1, Suffix: "!"} }

func TestParsePolicy(t *testing.T) {
	tests := []struct {
		in   any
		want EnablePolicy
		ok   bool
	}{
		{nil, Always(), true},
		{true, Always(), true},
		{false, Never(), true},
		{"is_go", Predicate("is_go"), true},
		{"", EnablePolicy{}, false},
		{int64(1), EnablePolicy{}, false},
	}
	for _, tt := range tests {
		got, ok := ParsePolicy(tt.in)
		assert.Equal(t, tt.ok, ok, "%v", tt.in)
		assert.Equal(t, tt.want, got, "%v", tt.in)
	}
	assert.Equal(t, "predicate(is_go)", Predicate("is_go").String())
	assert.Equal(t, "never", Never().String())
}

func TestRegisterDuplicateAndOrder(t *testing.T) {
	r := NewRegistry(APIVersion)
	require.NoError(t, Register[stubConfig](r, &stubSource{name: "b"}, nil))
	require.NoError(t, Register[stubConfig](r, &stubSource{name: "a"}, nil))

	err := Register[stubConfig](r, &stubSource{name: "a"}, nil)
	assert.True(t, errors.Is(err, ErrDuplicateSource))

	assert.Error(t, Register[stubConfig](r, &stubSource{name: ""}, nil))
	assert.Error(t, Register[stubConfig](r, &stubSource{name: "a.b"}, nil))

	assert.Equal(t, []string{"b", "a"}, r.Names())
	assert.Equal(t, 2, r.Len())
}

func TestRegisterVersion(t *testing.T) {
	tests := []struct {
		constraint string
		ok         bool
	}{
		{"", true},
		{">= 1.0, < 2", true},
		{"^1", true},
		{">= 2.0", false},
		{"not a constraint", false},
	}
	for _, tt := range tests {
		r := NewRegistry("1.4.0")
		src := &versionedSource{stubSource{name: "v", version: tt.constraint}}
		err := Register[stubConfig](r, src, nil)
		if tt.ok {
			assert.NoError(t, err, tt.constraint)
		} else {
			assert.Error(t, err, tt.constraint)
		}
	}

	r := NewRegistry("1.4.0")
	err := Register[stubConfig](r, &versionedSource{stubSource{name: "v", version: ">= 2"}}, nil)
	assert.True(t, errors.Is(err, ErrIncompatible))
}

func TestBuildDecodesConfig(t *testing.T) {
	r := NewRegistry(APIVersion)
	MustRegister[stubConfig](r, &stubSource{name: "one", enabled: true}, defaults)
	MustRegister[stubConfig](r, &stubSource{name: "two", enabled: true}, defaults)

	bundles, err := r.Build(map[string]map[string]any{
		"two": {"enable": true, "limit": int64(3)},
	}, nil)
	require.NoError(t, err)
	require.Len(t, bundles, 2)

	assert.Equal(t, 0, bundles[0].ID())
	assert.Equal(t, "one", bundles[0].Name())
	assert.Equal(t, &stubConfig{Limit: 1, Suffix: "!"}, bundles[0].Config())
	assert.Equal(t, &stubConfig{Limit: 3, Suffix: "!"}, bundles[1].Config())

	list, err := bundles[1].Complete(context.Background(), &completion.Request{})
	require.NoError(t, err)
	assert.Equal(t, []string{"two!", "two!", "two!"}, list.Texts())
}

func TestBuildBadConfig(t *testing.T) {
	r := NewRegistry(APIVersion)
	MustRegister[stubConfig](r, &stubSource{name: "one"}, defaults)
	MustRegister[stubConfig](r, &stubSource{name: "two"}, defaults)
	MustRegister[stubConfig](r, &stubSource{name: "three"}, defaults)
	MustRegister[stubConfig](r, &stubSource{name: "four"}, defaults)

	_, err := r.Build(map[string]map[string]any{
		"one":   {"enable": int64(1)},
		"two":   {"limti": int64(3)},
		"three": {"limit": int64(-1)},
		"four":  {"enable": "missing"},
		"ghost": {},
	}, mapResolver{})
	require.Error(t, err)
	require.True(t, errors.Is(err, config.ErrBadConfig))

	var errs *config.BadConfigErrors
	require.True(t, errors.As(err, &errs))
	assert.Equal(t, []string{
		"sources.four.enable",
		"sources.ghost",
		"sources.one.enable",
		"sources.three.limit",
		"sources.two.limti",
	}, errs.Paths())
}

func TestBuildPredicateWithoutResolver(t *testing.T) {
	r := NewRegistry(APIVersion)
	MustRegister[stubConfig](r, &stubSource{name: "one"}, nil)

	_, err := r.Build(map[string]map[string]any{"one": {"enable": "is_go"}}, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "sources.one.enable")
}

func TestBundleEnablePolicy(t *testing.T) {
	doc := completion.NewDocument("main.go", 1, nil, nil)
	ctx := context.Background()

	t.Run("never skips the source", func(t *testing.T) {
		src := &stubSource{name: "s", enabled: true}
		b := NewBundle[stubConfig](0, src, stubConfig{}, Never(), nil)
		ok, err := b.Enable(ctx, doc)
		require.NoError(t, err)
		assert.False(t, ok)
		assert.Zero(t, src.enableSeen)
	})

	t.Run("always defers to the source", func(t *testing.T) {
		src := &stubSource{name: "s", enabled: true}
		b := NewBundle[stubConfig](0, src, stubConfig{}, Always(), nil)
		ok, err := b.Enable(ctx, doc)
		require.NoError(t, err)
		assert.True(t, ok)
	})

	t.Run("predicate false skips the source", func(t *testing.T) {
		src := &stubSource{name: "s", enabled: true}
		b := NewBundle[stubConfig](0, src, stubConfig{}, Predicate("p"), constPredicate(false, nil))
		ok, err := b.Enable(ctx, doc)
		require.NoError(t, err)
		assert.False(t, ok)
		assert.Zero(t, src.enableSeen)
	})

	t.Run("predicate true defers to the source", func(t *testing.T) {
		src := &stubSource{name: "s", enabled: false}
		b := NewBundle[stubConfig](0, src, stubConfig{}, Predicate("p"), constPredicate(true, nil))
		ok, err := b.Enable(ctx, doc)
		require.NoError(t, err)
		assert.False(t, ok)
		assert.Equal(t, 1, src.enableSeen)
	})

	t.Run("predicate error", func(t *testing.T) {
		src := &stubSource{name: "s", enabled: true}
		b := NewBundle[stubConfig](0, src, stubConfig{}, Predicate("p"), constPredicate(false, errors.New("lua failed")))
		_, err := b.Enable(ctx, doc)
		require.Error(t, err)
		assert.Contains(t, err.Error(), `predicate "p"`)
		assert.Contains(t, err.Error(), "lua failed")
	})

	t.Run("source error", func(t *testing.T) {
		src := &stubSource{name: "s", enableErr: errors.New("boom")}
		b := NewBundle[stubConfig](0, src, stubConfig{}, Always(), nil)
		_, err := b.Enable(ctx, doc)
		assert.EqualError(t, err, "boom")
	})
}

func TestBuildResolvesPredicate(t *testing.T) {
	r := NewRegistry(APIVersion)
	MustRegister[stubConfig](r, &stubSource{name: "one", enabled: true}, nil)

	bundles, err := r.Build(map[string]map[string]any{
		"one": {"enable": "is_go"},
	}, mapResolver{"is_go": constPredicate(false, nil)})
	require.NoError(t, err)
	require.Len(t, bundles, 1)
	assert.Equal(t, PolicyPredicate, bundles[0].Policy().Kind())

	ok, err := bundles[0].Enable(context.Background(), completion.NewDocument("a.md", 1, nil, nil))
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestBundleScriptAPI(t *testing.T) {
	plain := NewBundle[stubConfig](0, &stubSource{name: "p"}, stubConfig{}, Always(), nil)
	assert.Nil(t, plain.ScriptAPI())

	scripted := NewBundle[stubConfig](0, &scriptedSource{stubSource{name: "s"}}, stubConfig{}, Always(), nil)
	assert.Contains(t, scripted.ScriptAPI(), "ping")
}
