package health

import (
	"testing"

	"github.com/cuemby/zkbalancer/pkg/types"
	"github.com/stretchr/testify/assert"
)

func TestCoerceValue(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  types.MetricValue
	}{
		{name: "digits", input: "42", want: types.IntValue(42)},
		{name: "zero", input: "0", want: types.IntValue(0)},
		{name: "float", input: "0.25", want: types.FloatValue(0.25)},
		{name: "negative is float", input: "-3", want: types.FloatValue(-3)},
		{name: "exponent", input: "1e3", want: types.FloatValue(1000)},
		{name: "state string", input: "leader", want: types.StringValue("leader")},
		{name: "version string", input: "3.8.4-9316c2a7a97e1666d8f4593f34dd6fc36ecc436c, built on 2024-02-12 22:16 UTC", want: types.StringValue("3.8.4-9316c2a7a97e1666d8f4593f34dd6fc36ecc436c, built on 2024-02-12 22:16 UTC")},
		{name: "empty", input: "", want: types.StringValue("")},
		{name: "overflowing digits fall back to float", input: "99999999999999999999", want: types.FloatValue(1e20)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, CoerceValue(tt.input))
		})
	}
}

func TestParseMntr(t *testing.T) {
	output := "zk_version\t3.8.4\n" +
		"zk_avg_latency\t0.5\n" +
		"zk_max_latency\t12\n" +
		"zk_num_alive_connections\t3\r\n" +
		"zk_server_state\tfollower\n" +
		"this line has no tab\n" +
		"\n" +
		"zk_padded\t  7  \n"

	metrics := ParseMntr(output)

	assert.Len(t, metrics, 6)
	assert.Equal(t, types.StringValue("3.8.4"), metrics["zk_version"])
	assert.Equal(t, types.FloatValue(0.5), metrics["zk_avg_latency"])
	assert.Equal(t, types.IntValue(12), metrics["zk_max_latency"])
	assert.Equal(t, types.IntValue(3), metrics["zk_num_alive_connections"])
	assert.Equal(t, types.StringValue("follower"), metrics["zk_server_state"])
	assert.Equal(t, types.IntValue(7), metrics["zk_padded"])
	_, ok := metrics["this line has no tab"]
	assert.False(t, ok)
}

func TestParseMntrEmpty(t *testing.T) {
	assert.Empty(t, ParseMntr(""))
	assert.Empty(t, ParseMntr("mntr is not executed because it is not in the whitelist.\n"))
}
