package customers

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalizeCode(t *testing.T) {
	cases := map[string]string{
		"4001":      "MFT-4001",
		" mft-4001": "MFT-4001",
		"MFT-ABC":   "MFT-ABC",
		"":          "",
		"   ":       "",
	}
	for in, want := range cases {
		assert.Equal(t, want, NormalizeCode(in), "input %q", in)
	}
}

func TestNextCode(t *testing.T) {
	assert.Equal(t, "MFT-4000", NextCode(nil, 0))
	assert.Equal(t, "MFT-4000", NextCode([]string{"MFT-12", "MFT-X1"}, 4000))
	assert.Equal(t, "MFT-5001", NextCode([]string{"MFT-4000", "MFT-5000", "MFT-4999"}, 4000))
	assert.Equal(t, "MFT-100", NextCode(nil, 100))
}
