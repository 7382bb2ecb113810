package harness

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSnapshot_HidesDigests(t *testing.T) {
	r := sampleResult()
	r.sites["i"] = "cart GET /items"

	data, err := Snapshot("sample", r)
	require.NoError(t, err)

	assert.Equal(t,
		`{"iterations":[{"events":0,"faults":[],"injected":0,"number":1,"outcome":"passed"},`+
			`{"events":0,"faults":[{"fault":"exception(ConnectionError)","site":"cart GET /items"}],"injected":0,"number":2,`+
			`"observed":{"fault":"exception(ConnectionError)","method":"GET /items","service":"cart"},"outcome":"fault_observed"}],`+
			`"name":"sample"}`,
		string(data))
}

func TestAssertGolden_Sample(t *testing.T) {
	r := sampleResult()
	r.sites["i"] = "cart GET /items"
	require.NoError(t, AssertGolden(t, "sample", r))
}
