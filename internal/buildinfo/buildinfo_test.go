package buildinfo

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestVersion_UnknownModule(t *testing.T) {
	assert.Equal(t, "unknown", Version("example.com/not/linked"))
}

func TestVersion_LinkedModule(t *testing.T) {
	// testify is linked into every test binary of this module
	v := Version("github.com/stretchr/testify")
	assert.NotEmpty(t, v)
}
