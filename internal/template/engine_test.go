package template

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRender(t *testing.T) {
	tests := []struct {
		name string
		body string
		vars []string
		want string
	}{
		{
			name: "single placeholder",
			body: "Your verification code is {{v1}}",
			vars: []string{"482913"},
			want: "Your verification code is 482913",
		},
		{
			name: "multiple placeholders",
			body: "Hi {{v1}}, your booking at {{v2}} is confirmed for {{v3}}",
			vars: []string{"Omar", "Zamalek Club", "6pm"},
			want: "Hi Omar, your booking at Zamalek Club is confirmed for 6pm",
		},
		{
			name: "repeated placeholder",
			body: "{{v1}} and {{v1}} again",
			vars: []string{"x"},
			want: "x and x again",
		},
		{
			name: "missing var renders empty",
			body: "Hello {{v1}}, see {{v2}}",
			vars: []string{"Omar"},
			want: "Hello Omar, see ",
		},
		{
			name: "no vars at all",
			body: "Code: {{v1}}",
			vars: nil,
			want: "Code: ",
		},
		{
			name: "no placeholders",
			body: "plain message",
			vars: []string{"unused"},
			want: "plain message",
		},
		{
			name: "malformed placeholder left alone",
			body: "{{v}} {{vx}} {{ v1 }}",
			vars: []string{"x"},
			want: "{{v}} {{vx}} {{ v1 }}",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Render(tt.body, tt.vars))
		})
	}
}

func TestRenderTemplate(t *testing.T) {
	e := NewEngine(map[string]string{
		"otp": "Your verification code is {{v1}}",
	})

	got, err := e.RenderTemplate("otp", []string{"123456"})
	require.NoError(t, err)
	assert.Equal(t, "Your verification code is 123456", got)

	_, err = e.RenderTemplate("missing", nil)
	assert.Error(t, err)

	assert.True(t, e.Has("otp"))
	assert.False(t, e.Has("missing"))
}

func TestNewEngineNilRegistry(t *testing.T) {
	e := NewEngine(nil)
	assert.False(t, e.Has("anything"))
}
