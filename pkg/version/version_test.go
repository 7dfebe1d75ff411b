package version_test

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/Sumatoshi-tech/sasspipe/pkg/version"
)

func TestString_StartsWithVersion(t *testing.T) {
	t.Parallel()

	got := version.String()

	assert.True(t, strings.HasPrefix(got, "sasspipe "+version.Version+" ("), got)
}
