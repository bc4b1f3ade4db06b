package nodes

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/wehubfusion/Daedalus/pkg/execution"
	"github.com/wehubfusion/Daedalus/pkg/graph"
	"github.com/wehubfusion/Daedalus/pkg/registry"
)

// fakeGenerator returns a canned response or error.
type fakeGenerator struct {
	response string
	err      error
	prompts  []string
}

func (f *fakeGenerator) Generate(ctx context.Context, prompt string) (string, error) {
	f.prompts = append(f.prompts, prompt)
	if f.err != nil {
		return "", f.err
	}
	return f.response, nil
}

func executeType(t *testing.T, reg *registry.Registry, name string, node graph.Node, inputs map[string]interface{}, ec registry.ExecutionContext) (interface{}, error) {
	t.Helper()
	typ, ok := reg.Get(name)
	require.True(t, ok, "type %s must be registered", name)
	require.NotNil(t, typ.Execute)
	return typ.Execute(context.Background(), node, inputs, ec)
}

func TestNewRegistryInstallsBuiltins(t *testing.T) {
	reg := NewRegistry(nil)
	assert.Equal(t, []string{
		"combine", "constant", "generate", "if", "input",
		"loop", "output", "split", "text",
	}, reg.TypeNames())

	// Control-flow descriptors carry traits but no execute function.
	ifType, _ := reg.Get("if")
	assert.True(t, ifType.Traits.Conditional)
	assert.Nil(t, ifType.Execute)
	assert.Equal(t, []string{"true", "false"}, ifType.OutputNames)

	loopType, _ := reg.Get("loop")
	assert.True(t, loopType.Traits.Loop)
	assert.Equal(t, []string{"body", "done"}, loopType.OutputNames)
}

func TestInputNode(t *testing.T) {
	reg := NewRegistry(nil)
	ec := execution.NewContext("wf", map[string]interface{}{"input": "hello"}, nil, nil)

	node := graph.Node{ID: "in", Type: "input"}
	result, err := executeType(t, reg, "input", node, nil, ec)
	require.NoError(t, err)
	assert.Equal(t, "hello", result)

	node.Data = map[string]interface{}{"variable": "missing"}
	_, err = executeType(t, reg, "input", node, nil, ec)
	require.Error(t, err)
}

func TestConstantNode(t *testing.T) {
	reg := NewRegistry(nil)
	ec := execution.NewContext("wf", nil, nil, nil)

	node := graph.Node{ID: "c", Type: "constant", Data: map[string]interface{}{"value": 42}}
	result, err := executeType(t, reg, "constant", node, nil, ec)
	require.NoError(t, err)
	assert.Equal(t, 42, result)
}

func TestOutputNodeStoresVariable(t *testing.T) {
	reg := NewRegistry(nil)
	ec := execution.NewContext("wf", nil, nil, nil)

	node := graph.Node{ID: "out", Type: "output"}
	result, err := executeType(t, reg, "output", node, map[string]interface{}{"value": "final"}, ec)
	require.NoError(t, err)
	assert.Equal(t, "final", result)

	stored, ok := ec.GetVariable("output")
	require.True(t, ok)
	assert.Equal(t, "final", stored)
}

func TestCombineNode(t *testing.T) {
	reg := NewRegistry(nil)
	ec := execution.NewContext("wf", nil, nil, nil)

	node := graph.Node{ID: "m", Type: "combine", Data: map[string]interface{}{"separator": ", "}}
	result, err := executeType(t, reg, "combine", node, map[string]interface{}{
		"first":  "alpha",
		"second": "beta",
		// a pruned branch delivers nil, which the combiner skips
		"third": nil,
	}, ec)
	require.NoError(t, err)
	assert.Equal(t, "alpha, beta", result)
}

func TestTextNodeOperations(t *testing.T) {
	reg := NewRegistry(nil)
	ec := execution.NewContext("wf", nil, nil, nil)

	cases := []struct {
		name string
		data map[string]interface{}
		in   string
		want string
	}{
		{"trim default", nil, "  padded  ", "padded"},
		{"uppercase", map[string]interface{}{"operation": "uppercase"}, "abc", "ABC"},
		{"lowercase", map[string]interface{}{"operation": "lowercase"}, "ABC", "abc"},
		{"title", map[string]interface{}{"operation": "title"}, "hello world", "Hello World"},
		{"capitalize", map[string]interface{}{"operation": "capitalize"}, "éclair time", "Éclair time"},
		{"replace", map[string]interface{}{"operation": "replace", "search": "a", "replacement": "o"}, "banana", "bonono"},
		{"prefix", map[string]interface{}{"operation": "prefix", "value": ">> "}, "msg", ">> msg"},
		{"suffix", map[string]interface{}{"operation": "suffix", "value": "!"}, "msg", "msg!"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			node := graph.Node{ID: "t", Type: "text", Data: tc.data}
			result, err := executeType(t, reg, "text", node, map[string]interface{}{"text": tc.in}, ec)
			require.NoError(t, err)
			assert.Equal(t, tc.want, result)
		})
	}
}

func TestTextNodeUnknownOperation(t *testing.T) {
	reg := NewRegistry(nil)
	ec := execution.NewContext("wf", nil, nil, nil)

	node := graph.Node{ID: "t", Type: "text", Data: map[string]interface{}{"operation": "reverse"}}
	_, err := executeType(t, reg, "text", node, map[string]interface{}{"text": "abc"}, ec)
	require.Error(t, err)
}

func TestSplitNodeProducesMultiOutput(t *testing.T) {
	reg := NewRegistry(nil)
	ec := execution.NewContext("wf", nil, nil, nil)

	node := graph.Node{ID: "s", Type: "split", Data: map[string]interface{}{"delimiter": ","}}
	result, err := executeType(t, reg, "split", node, map[string]interface{}{"text": "a,b,c"}, ec)
	require.NoError(t, err)

	multi, ok := execution.AsMultiOutput(result)
	require.True(t, ok)

	parts, _ := multi.Field("parts")
	assert.Equal(t, []string{"a", "b", "c"}, parts)
	count, _ := multi.Field("count")
	assert.Equal(t, 3, count)

	// The "length" alias resolves to the count field.
	splitType, _ := reg.Get("split")
	assert.Equal(t, "count", splitType.OutputField(graph.SlotByName("length")))
	assert.Equal(t, "parts", splitType.OutputField(graph.SlotByIndex(0)))
}

func TestGenerateNode(t *testing.T) {
	gen := &fakeGenerator{response: "a poem"}
	reg := NewRegistry(gen)
	ec := execution.NewContext("wf", nil, nil, nil)

	node := graph.Node{ID: "g", Type: "generate", Data: map[string]interface{}{"prompt": "write a poem about"}}
	result, err := executeType(t, reg, "generate", node, map[string]interface{}{"context": "the sea"}, ec)
	require.NoError(t, err)
	assert.Equal(t, "a poem", result)

	require.Len(t, gen.prompts, 1)
	assert.Contains(t, gen.prompts[0], "write a poem about")
	assert.Contains(t, gen.prompts[0], "the sea")
}

func TestGenerateNodeWithoutGenerator(t *testing.T) {
	reg := NewRegistry(nil)
	ec := execution.NewContext("wf", nil, nil, nil)

	node := graph.Node{ID: "g", Type: "generate", Data: map[string]interface{}{"prompt": "hi"}}
	_, err := executeType(t, reg, "generate", node, nil, ec)
	require.Error(t, err)
}

func TestGenerateNodePropagatesFailure(t *testing.T) {
	gen := &fakeGenerator{err: errors.New("model unavailable")}
	reg := NewRegistry(gen)
	ec := execution.NewContext("wf", nil, nil, nil)

	node := graph.Node{ID: "g", Type: "generate", Data: map[string]interface{}{"prompt": "hi"}}
	_, err := executeType(t, reg, "generate", node, nil, ec)
	require.ErrorContains(t, err, "model unavailable")
}
